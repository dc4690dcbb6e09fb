package storage

import (
	"context"
	"time"

	"squeezebot/internal/domain"
)

// PositionStore persists the position book. It is the single source of
// truth: state transitions write here first, then update the in-memory
// mirror. Every mutation appends an audit timestamp.
type PositionStore interface {
	// Add creates a position for a symbol. Returns ErrDuplicateKey when
	// a non-closed position for the symbol already exists.
	Add(ctx context.Context, p *domain.Position) error

	// Update replaces the stored position for the symbol. Returns
	// ErrNotFound if no non-closed position exists.
	Update(ctx context.Context, p *domain.Position) error

	// Close marks the position closed and moves it to history.
	// Returns ErrNotFound if no non-closed position exists.
	Close(ctx context.Context, symbol string, exitPrice float64, exitTime time.Time, reason string) error

	// GetBySymbol retrieves the non-closed position for a symbol.
	// Returns ErrNotFound if not exists.
	GetBySymbol(ctx context.Context, symbol string) (*domain.Position, error)

	// GetOpen retrieves all non-closed positions.
	GetOpen(ctx context.Context) ([]*domain.Position, error)

	// GetHistory retrieves closed positions, most recently closed first.
	GetHistory(ctx context.Context, limit int) ([]*domain.Position, error)
}

// TradeStore archives completed trades.
type TradeStore interface {
	// Insert adds a closed trade. Returns ErrDuplicateKey if the trade
	// ID exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not
	// exists.
	GetByID(ctx context.Context, id string) (*domain.Trade, error)

	// GetBySymbol retrieves all trades for a symbol, ordered by entry
	// time ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.Trade, error)
}

// CandleStore persists historical OHLCV bars for backtests.
type CandleStore interface {
	// InsertBulk adds candles. Duplicate (symbol, timeframe, timestamp)
	// rows fail the batch with ErrDuplicateKey.
	InsertBulk(ctx context.Context, candles []domain.Candle) error

	// GetRange retrieves candles for (symbol, timeframe) within
	// [start, end], ordered by timestamp ASC.
	GetRange(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) ([]domain.Candle, error)
}

// EvaluationStore persists the record-per-candle backtest trace.
type EvaluationStore interface {
	// InsertBulk adds evaluation records for a run.
	InsertBulk(ctx context.Context, records []*domain.EvaluationRecord) error

	// GetByRunID retrieves all records of a run ordered by candle index.
	GetByRunID(ctx context.Context, runID string) ([]*domain.EvaluationRecord, error)
}

// SimulatedTradeStore persists the record-per-trade backtest table.
type SimulatedTradeStore interface {
	// InsertBulk adds simulated trades for a run.
	InsertBulk(ctx context.Context, trades []*domain.SimulatedTrade) error

	// GetByRunID retrieves all simulated trades of a run ordered by
	// entry index ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.SimulatedTrade, error)

	// GetByRunAndMethod retrieves one method's trades for a run.
	GetByRunAndMethod(ctx context.Context, runID string, method domain.TrailingMethod) ([]*domain.SimulatedTrade, error)
}

// MethodStatsStore persists per-method aggregate stats per run.
type MethodStatsStore interface {
	// InsertBulk adds one run's per-method stats rows. Returns
	// ErrDuplicateKey if the run already has stats.
	InsertBulk(ctx context.Context, runID string, stats []domain.MethodStats) error

	// GetByRunID retrieves the stats rows for a run. Returns ErrNotFound
	// if the run has no stats.
	GetByRunID(ctx context.Context, runID string) ([]domain.MethodStats, error)
}
