// Package main is the emergency stop: it cancels every open broker
// order and liquidates every open position, best effort, then prints a
// JSON summary of what it managed to do.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"squeezebot/internal/broker"
	"squeezebot/internal/engine"
	"squeezebot/internal/logging"
	"squeezebot/internal/position"
	"squeezebot/internal/storage"
	"squeezebot/internal/storage/memory"
	pgstore "squeezebot/internal/storage/postgres"
)

// summary is the operator-facing result.
type summary struct {
	OrdersCanceled  int      `json:"orders_canceled"`
	PositionsClosed int      `json:"positions_closed"`
	Errors          []string `json:"errors"`
}

func main() {
	// Load .env file if exists
	godotenv.Load()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (no position book to close)")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall deadline")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger := logging.New(*logLevel)

	apiKey := os.Getenv("ALPACA_API_KEY")
	apiSecret := os.Getenv("ALPACA_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		fmt.Fprintln(os.Stderr, "ALPACA_API_KEY and ALPACA_API_SECRET are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var posStore storage.PositionStore = memory.NewPositionStore()
	var tradeStore storage.TradeStore = memory.NewTradeStore()
	if !*useMemory {
		if *postgresDSN == "" {
			fmt.Fprintln(os.Stderr, "--postgres-dsn is required (use --use-memory to skip the local book)")
			os.Exit(1)
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect to postgres: %v\n", err)
			os.Exit(1)
		}
		defer pool.Close()
		posStore = pgstore.NewPositionStore(pool)
		tradeStore = pgstore.NewTradeStore(pool)
	}

	gateway := broker.NewAlpaca(broker.AlpacaOptions{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   os.Getenv("ALPACA_BASE_URL"),
		Logger:    logger,
	})

	manager := position.NewManager(posStore, logger)
	eng := engine.New(engine.Options{
		Gateway:   gateway,
		Positions: manager,
		Trades:    tradeStore,
		Logger:    logger,
	})
	if err := eng.Restore(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "restore positions: %v\n", err)
		os.Exit(1)
	}

	// Adopt anything open at the broker that the local book missed, so
	// the sweep below sees every position.
	reconciler := position.NewReconciler(manager, gateway, position.ReconcilerOptions{Logger: logger})
	if err := reconciler.Reconcile(ctx, time.Now()); err != nil {
		logger.Warn().Err(err).Msg("pre-sweep reconcile failed, continuing with local book")
	}

	ordersBefore := 0
	if orders, err := gateway.OpenOrders(ctx); err == nil {
		ordersBefore = len(orders)
	}
	positionsBefore := len(manager.OpenPositions())

	err := eng.KillSwitch(ctx)

	out := summary{
		OrdersCanceled:  ordersBefore,
		PositionsClosed: positionsBefore - len(manager.OpenPositions()),
		Errors:          []string{},
	}
	if err != nil {
		out.Errors = strings.Split(err.Error(), "\n")
		// Failed cancels are still in the before count; subtract them.
		for _, e := range out.Errors {
			if strings.HasPrefix(e, "cancel order") {
				out.OrdersCanceled--
			}
		}
	}

	json.NewEncoder(os.Stdout).Encode(out)
	if len(out.Errors) > 0 {
		os.Exit(1)
	}
}
