package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	id, symbol, direction, state,
	entry_time, entry_price, quantity,
	stop_method, stop_price, high_water_mark, low_water_mark,
	exit_time, exit_price, exit_reason, realized_pnl,
	align_score, compression_signals
`

// Insert adds a closed trade. Returns ErrDuplicateKey if the trade ID exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.Symbol, t.Direction, t.State,
		t.EntryTime, t.EntryPrice, t.Quantity,
		t.Stop.Method, t.Stop.CurrentStop, t.Stop.HighWaterMark, t.Stop.LowWaterMark,
		nullableTime(t.ExitTime), t.ExitPrice, t.ExitReason, t.RealizedPnL,
		t.Signal.Alignment.Score, t.Signal.Compression.SignalCount,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
// The stored signal trail carries only the alignment score and compression
// signal count; the full per-candle trace lives in the evaluation store.
func (s *TradeStore) GetByID(ctx context.Context, id string) (*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetBySymbol retrieves all trades for a symbol, ordered by entry time ASC.
func (s *TradeStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE symbol = $1
		ORDER BY entry_time ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get trades by symbol: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var exitTime *time.Time

	err := row.Scan(
		&t.ID, &t.Symbol, &t.Direction, &t.State,
		&t.EntryTime, &t.EntryPrice, &t.Quantity,
		&t.Stop.Method, &t.Stop.CurrentStop, &t.Stop.HighWaterMark, &t.Stop.LowWaterMark,
		&exitTime, &t.ExitPrice, &t.ExitReason, &t.RealizedPnL,
		&t.Signal.Alignment.Score, &t.Signal.Compression.SignalCount,
	)
	if err != nil {
		return nil, err
	}

	if exitTime != nil {
		t.ExitTime = *exitTime
	}
	t.Signal.Symbol = t.Symbol
	t.Signal.Direction = t.Direction
	return &t, nil
}
