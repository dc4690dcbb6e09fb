// Package main runs a historical backtest: candles come from CSV files
// or the Alpaca data API, every bar runs through the same signal cascade
// the live engine uses, and each entered signal is simulated under all
// five trailing methods. Output lands in storage and as CSV/Markdown
// files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/joho/godotenv"

	"squeezebot/internal/backtest"
	"squeezebot/internal/config"
	"squeezebot/internal/feed"
	"squeezebot/internal/logging"
	"squeezebot/internal/reporting"
	"squeezebot/internal/storage"
	chstore "squeezebot/internal/storage/clickhouse"
	"squeezebot/internal/storage/memory"
)

func main() {
	// Load .env file if exists
	godotenv.Load()

	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("SQUEEZEBOT_CONFIG"), "YAML config file path")
	symbols := flag.String("symbols", "", "Comma-separated symbols to backtest (default: config tickers)")
	dataDir := flag.String("data-dir", "", "Directory of per-symbol candle CSV files (default: Alpaca data API)")
	startStr := flag.String("start", "", "Backtest start date (YYYY-MM-DD)")
	endStr := flag.String("end", "", "Backtest end date (YYYY-MM-DD, default: today)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of ClickHouse")
	outputDir := flag.String("output-dir", "output", "Output directory for CSV and Markdown reports")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	// Resolve symbols and date range
	tickers := cfg.Trading.Tickers
	if *symbols != "" {
		tickers = splitSymbols(*symbols)
	}
	if len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "no symbols to backtest")
		os.Exit(1)
	}

	start, end, err := parseRange(*startStr, *endStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse date range: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create stores
	var (
		evaluations storage.EvaluationStore     = memory.NewEvaluationStore()
		simulated   storage.SimulatedTradeStore = memory.NewSimulatedTradeStore()
		stats       storage.MethodStatsStore    = memory.NewMethodStatsStore()
	)
	if !*useMemory {
		if *clickhouseDSN == "" {
			fmt.Fprintln(os.Stderr, "--clickhouse-dsn is required (use --use-memory for in-memory storage)")
			os.Exit(1)
		}
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect to clickhouse: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()
		evaluations = chstore.NewEvaluationStore(conn)
		simulated = chstore.NewSimulatedTradeStore(conn)
		stats = chstore.NewMethodStatsStore(conn)
	}

	// Pick the candle source
	var provider feed.Provider
	if *dataDir != "" {
		provider = feed.NewCSVProvider(*dataDir)
	} else {
		apiKey := os.Getenv("ALPACA_API_KEY")
		apiSecret := os.Getenv("ALPACA_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			fmt.Fprintln(os.Stderr, "set --data-dir or ALPACA_API_KEY/ALPACA_API_SECRET")
			os.Exit(1)
		}
		md := marketdata.NewClient(marketdata.ClientOpts{APIKey: apiKey, APISecret: apiSecret})
		provider = feed.NewAlpacaProvider(md, logger)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	generator := reporting.NewGenerator(evaluations, simulated, stats)
	var summaryRows []reporting.SummaryRow

	for _, symbol := range tickers {
		engine := backtest.NewEngine(backtest.OptionsFromConfig(cfg, symbol, logger))
		runner := backtest.NewRunner(backtest.RunnerOptions{
			Provider:    provider,
			Evaluations: evaluations,
			Simulated:   simulated,
			Stats:       stats,
			Engine:      engine,
			Logger:      logger,
		})

		res, err := runner.Run(ctx, start, end)
		if err != nil {
			logger.Error().Err(err).Str("symbol", symbol).Msg("backtest failed")
			continue
		}

		report, err := generator.Generate(ctx, res.RunID, res.Summary.SymbolPeriod)
		if err != nil {
			logger.Error().Err(err).Str("run_id", res.RunID).Msg("report generation failed")
			continue
		}
		summaryRows = append(summaryRows, report.Summary)

		prefix := filepath.Join(*outputDir, res.Summary.SymbolPeriod)
		writeFile(prefix+"_evaluations.csv", reporting.RenderEvaluationsCSV(res.Records))
		writeFile(prefix+"_trades.csv", reporting.RenderTradesCSV(res.Trades))
		writeFile(prefix+"_report.md", reporting.RenderMarkdown(report))

		logger.Info().
			Str("run_id", res.RunID).
			Str("symbol", symbol).
			Int("candles", len(res.Records)).
			Int("trades", len(res.Trades)).
			Str("optimal", string(res.Summary.OptimalMethod)).
			Msg("backtest complete")
		fmt.Printf("[%s] run %s: %d candles, %d simulated trades, optimal=%s\n",
			symbol, res.RunID, len(res.Records), len(res.Trades), res.Summary.OptimalMethod)
	}

	if len(summaryRows) == 0 {
		fmt.Fprintln(os.Stderr, "no runs completed")
		os.Exit(1)
	}
	writeFile(filepath.Join(*outputDir, "summary.csv"), reporting.RenderSummaryCSV(summaryRows))
	fmt.Printf("Summary saved to %s\n", filepath.Join(*outputDir, "summary.csv"))
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseRange resolves the backtest window. Defaults to the last 30 days.
func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if endStr != "" {
		parsed, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end date: %w", err)
		}
		end = parsed.Add(24*time.Hour - time.Second)
	}

	start := end.AddDate(0, 0, -30)
	if startStr != "" {
		parsed, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start date: %w", err)
		}
		start = parsed
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s", start, end)
	}
	return start, end, nil
}

func writeFile(path, content string) {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
		os.Exit(1)
	}
}
