package clickhouse

import (
	"context"
	"fmt"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// SimulatedTradeStore implements storage.SimulatedTradeStore using ClickHouse.
type SimulatedTradeStore struct {
	conn *Conn
}

// NewSimulatedTradeStore creates a new SimulatedTradeStore.
func NewSimulatedTradeStore(conn *Conn) *SimulatedTradeStore {
	return &SimulatedTradeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SimulatedTradeStore = (*SimulatedTradeStore)(nil)

const simulatedTradeColumns = `
	trade_id, run_id, symbol, method, direction,
	entry_idx, entry_time, entry_price,
	exit_idx, exit_time, exit_price,
	exit_reason, pnl_pct, pnl_dollars, contract_price
`

// InsertBulk adds simulated trades for a run. Fails the entire batch on
// any duplicate trade ID.
func (s *SimulatedTradeStore) InsertBulk(ctx context.Context, trades []*domain.SimulatedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	// Intra-batch duplicates
	seen := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[t.TradeID] = struct{}{}
	}

	// Duplicates against existing rows; MergeTree does not enforce keys.
	for _, t := range trades {
		exists, err := s.exists(ctx, t.TradeID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO simulated_trades (`+simulatedTradeColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		err = batch.Append(
			t.TradeID, t.RunID, t.Symbol, string(t.Method), string(t.Direction),
			uint32(t.EntryIdx), t.EntryTime, t.EntryPrice,
			uint32(t.ExitIdx), t.ExitTime, t.ExitPrice,
			t.ExitReason, t.PnLPct, t.PnLDollars, t.ContractPrice,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all simulated trades of a run ordered by entry index.
func (s *SimulatedTradeStore) GetByRunID(ctx context.Context, runID string) ([]*domain.SimulatedTrade, error) {
	query := `
		SELECT ` + simulatedTradeColumns + `
		FROM simulated_trades
		WHERE run_id = ?
		ORDER BY entry_idx ASC, method ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query simulated trades by run id: %w", err)
	}
	defer rows.Close()

	return scanSimulatedTrades(rows)
}

// GetByRunAndMethod retrieves one method's trades for a run.
func (s *SimulatedTradeStore) GetByRunAndMethod(ctx context.Context, runID string, method domain.TrailingMethod) ([]*domain.SimulatedTrade, error) {
	query := `
		SELECT ` + simulatedTradeColumns + `
		FROM simulated_trades
		WHERE run_id = ? AND method = ?
		ORDER BY entry_idx ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, string(method))
	if err != nil {
		return nil, fmt.Errorf("query simulated trades by method: %w", err)
	}
	defer rows.Close()

	return scanSimulatedTrades(rows)
}

// exists checks if a trade with the given ID exists.
func (s *SimulatedTradeStore) exists(ctx context.Context, tradeID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM simulated_trades WHERE trade_id = ?`, tradeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanSimulatedTrades scans multiple rows into a slice.
func scanSimulatedTrades(rows chRows) ([]*domain.SimulatedTrade, error) {
	var trades []*domain.SimulatedTrade

	for rows.Next() {
		var t domain.SimulatedTrade
		var entryIdx, exitIdx uint32
		var method, direction string

		err := rows.Scan(
			&t.TradeID, &t.RunID, &t.Symbol, &method, &direction,
			&entryIdx, &t.EntryTime, &t.EntryPrice,
			&exitIdx, &t.ExitTime, &t.ExitPrice,
			&t.ExitReason, &t.PnLPct, &t.PnLDollars, &t.ContractPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("scan simulated trade row: %w", err)
		}

		t.EntryIdx = int(entryIdx)
		t.ExitIdx = int(exitIdx)
		t.Method = domain.TrailingMethod(method)
		t.Direction = domain.Direction(direction)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulated trade rows: %w", err)
	}

	return trades, nil
}
