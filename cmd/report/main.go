// Package main regenerates reports from a stored backtest run: the
// three CSV artifacts, the run report, and the method readiness gate.
// Stats can be recomputed from the stored trades when the run predates
// a formula change.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"squeezebot/internal/decision"
	"squeezebot/internal/logging"
	"squeezebot/internal/metrics"
	"squeezebot/internal/reporting"
	"squeezebot/internal/storage"
	chstore "squeezebot/internal/storage/clickhouse"
)

func main() {
	// Load .env file if exists
	godotenv.Load()

	// Parse flags (env vars as defaults)
	runID := flag.String("run-id", "", "Backtest run ID (required)")
	symbolPeriod := flag.String("symbol-period", "", "Series label, e.g. SPY_5m (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	initialEquity := flag.Float64("initial-equity", 10000, "Equity the run started from")
	recompute := flag.Bool("recompute", false, "Recompute method stats from stored trades")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger := logging.New(*logLevel)

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "--run-id is required")
		os.Exit(1)
	}
	if *symbolPeriod == "" {
		fmt.Fprintln(os.Stderr, "--symbol-period is required")
		os.Exit(1)
	}
	if *clickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "--clickhouse-dsn is required")
		os.Exit(1)
	}

	ctx := context.Background()

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	evaluations := chstore.NewEvaluationStore(conn)
	simulated := chstore.NewSimulatedTradeStore(conn)
	stats := chstore.NewMethodStatsStore(conn)

	// Recompute stats when asked. A duplicate-key error means the run
	// already has stats rows; that is fine unless recomputing.
	if *recompute {
		aggregator := metrics.NewAggregator(simulated, stats)
		if _, err := aggregator.ComputeAndStore(ctx, *runID, *initialEquity); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				logger.Warn().Str("run_id", *runID).Msg("stats already stored, keeping existing rows")
			} else {
				fmt.Fprintf(os.Stderr, "recompute stats: %v\n", err)
				os.Exit(1)
			}
		}
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	// Run report + CSVs
	generator := reporting.NewGenerator(evaluations, simulated, stats)
	evalCSV, tradeCSV, summaryCSV, err := generator.RenderRunCSVs(ctx, *runID, *symbolPeriod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render CSVs: %v\n", err)
		os.Exit(1)
	}
	report, err := generator.Generate(ctx, *runID, *symbolPeriod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate report: %v\n", err)
		os.Exit(1)
	}

	prefix := filepath.Join(*outputDir, *symbolPeriod)
	writeFile(prefix+"_evaluations.csv", evalCSV)
	writeFile(prefix+"_trades.csv", tradeCSV)
	writeFile(filepath.Join(*outputDir, "summary.csv"), summaryCSV)
	writeFile(prefix+"_report.md", reporting.RenderMarkdown(report))

	// Method readiness gate
	builder := decision.NewBuilder(stats, decision.NewEvaluator(decision.DefaultThresholds()))
	gate, err := builder.Build(ctx, *runID, *symbolPeriod, *initialEquity)
	if err != nil {
		if errors.Is(err, decision.ErrNoStats) {
			logger.Warn().Str("run_id", *runID).Msg("no stats for run, skipping readiness report")
		} else {
			fmt.Fprintf(os.Stderr, "build readiness report: %v\n", err)
			os.Exit(1)
		}
	} else {
		writeFile(filepath.Join(*outputDir, "METHOD_READINESS.md"), decision.RenderMarkdown(gate))
	}

	fmt.Printf("Reports for run %s written to %s\n", *runID, *outputDir)
}

func writeFile(path, content string) {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
		os.Exit(1)
	}
}
