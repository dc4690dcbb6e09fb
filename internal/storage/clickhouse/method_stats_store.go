package clickhouse

import (
	"context"
	"fmt"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// MethodStatsStore implements storage.MethodStatsStore using ClickHouse.
type MethodStatsStore struct {
	conn *Conn
}

// NewMethodStatsStore creates a new MethodStatsStore.
func NewMethodStatsStore(conn *Conn) *MethodStatsStore {
	return &MethodStatsStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MethodStatsStore = (*MethodStatsStore)(nil)

// InsertBulk adds one run's per-method stats rows. Returns ErrDuplicateKey
// if the run already has stats.
func (s *MethodStatsStore) InsertBulk(ctx context.Context, runID string, stats []domain.MethodStats) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(stats) == 0 {
		return nil
	}

	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM method_stats WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO method_stats (
			run_id, method, total_trades, winning_trades, losing_trades,
			win_rate, gross_profit, gross_loss, profit_factor,
			max_drawdown, final_equity
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, m := range stats {
		err = batch.Append(
			runID, string(m.Method),
			uint32(m.TotalTrades), uint32(m.WinningTrades), uint32(m.LosingTrades),
			m.WinRate, m.GrossProfit, m.GrossLoss, m.ProfitFactor,
			m.MaxDrawdown, m.FinalEquity,
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

// GetByRunID retrieves the stats rows for a run. Returns ErrNotFound if
// the run has no stats.
func (s *MethodStatsStore) GetByRunID(ctx context.Context, runID string) ([]domain.MethodStats, error) {
	query := `
		SELECT
			method, total_trades, winning_trades, losing_trades,
			win_rate, gross_profit, gross_loss, profit_factor,
			max_drawdown, final_equity
		FROM method_stats
		WHERE run_id = ?
		ORDER BY method ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query method stats by run id: %w", err)
	}
	defer rows.Close()

	var stats []domain.MethodStats
	for rows.Next() {
		var m domain.MethodStats
		var method string
		var total, winning, losing uint32

		err := rows.Scan(
			&method, &total, &winning, &losing,
			&m.WinRate, &m.GrossProfit, &m.GrossLoss, &m.ProfitFactor,
			&m.MaxDrawdown, &m.FinalEquity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan method stats row: %w", err)
		}

		m.Method = domain.TrailingMethod(method)
		m.TotalTrades = int(total)
		m.WinningTrades = int(winning)
		m.LosingTrades = int(losing)
		stats = append(stats, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate method stats rows: %w", err)
	}

	if len(stats) == 0 {
		return nil, storage.ErrNotFound
	}

	return stats, nil
}
