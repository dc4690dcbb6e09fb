package clickhouse

import (
	"context"
	"fmt"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// EvaluationStore implements storage.EvaluationStore using ClickHouse.
// Evaluation records are append-only and arrive in large per-run batches,
// so the MergeTree insert path fits without uniqueness checks.
type EvaluationStore struct {
	conn *Conn
}

// NewEvaluationStore creates a new EvaluationStore.
func NewEvaluationStore(conn *Conn) *EvaluationStore {
	return &EvaluationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EvaluationStore = (*EvaluationStore)(nil)

// InsertBulk adds evaluation records for a run.
func (s *EvaluationStore) InsertBulk(ctx context.Context, records []*domain.EvaluationRecord) error {
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO evaluations (
			run_id, symbol, candle_idx, ts,
			open, high, low, close, volume,
			ema9, ema15, vwap, bb_width, stoch_k, stoch_d, atr, adx,
			aligned, align_direction, align_score,
			compression_found, compression_dir, compression_signals,
			momentum_aligned, trend_aligned, entry_signal,
			trade_entered, trade_direction, equity, skip_reason
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.RunID, r.Symbol, uint32(r.CandleIdx), r.Timestamp,
			r.Open, r.High, r.Low, r.Close, r.Volume,
			r.EMA9, r.EMA15, r.VWAP, r.BBWidth, r.StochK, r.StochD, r.ATR, r.ADX,
			r.Aligned, string(r.AlignDirection), r.AlignScore,
			r.CompressionFound, string(r.CompressionDir), uint8(r.CompressionSignals),
			r.MomentumAligned, r.TrendAligned, r.EntrySignal,
			r.TradeEntered, string(r.TradeDirection), r.Equity, r.SkipReason,
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

// GetByRunID retrieves all records of a run ordered by candle index.
func (s *EvaluationStore) GetByRunID(ctx context.Context, runID string) ([]*domain.EvaluationRecord, error) {
	query := `
		SELECT
			run_id, symbol, candle_idx, ts,
			open, high, low, close, volume,
			ema9, ema15, vwap, bb_width, stoch_k, stoch_d, atr, adx,
			aligned, align_direction, align_score,
			compression_found, compression_dir, compression_signals,
			momentum_aligned, trend_aligned, entry_signal,
			trade_entered, trade_direction, equity, skip_reason
		FROM evaluations
		WHERE run_id = ?
		ORDER BY candle_idx ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations by run id: %w", err)
	}
	defer rows.Close()

	var records []*domain.EvaluationRecord
	for rows.Next() {
		var r domain.EvaluationRecord
		var candleIdx uint32
		var compressionSignals uint8
		var alignDir, compressionDir, tradeDir string

		err := rows.Scan(
			&r.RunID, &r.Symbol, &candleIdx, &r.Timestamp,
			&r.Open, &r.High, &r.Low, &r.Close, &r.Volume,
			&r.EMA9, &r.EMA15, &r.VWAP, &r.BBWidth, &r.StochK, &r.StochD, &r.ATR, &r.ADX,
			&r.Aligned, &alignDir, &r.AlignScore,
			&r.CompressionFound, &compressionDir, &compressionSignals,
			&r.MomentumAligned, &r.TrendAligned, &r.EntrySignal,
			&r.TradeEntered, &tradeDir, &r.Equity, &r.SkipReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", err)
		}

		r.CandleIdx = int(candleIdx)
		r.CompressionSignals = int(compressionSignals)
		r.AlignDirection = domain.Direction(alignDir)
		r.CompressionDir = domain.Direction(compressionDir)
		r.TradeDirection = domain.Direction(tradeDir)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluation rows: %w", err)
	}

	return records, nil
}
