package clickhouse

import (
	"context"
	"fmt"
	"time"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds candles. Duplicate (symbol, timeframe, timestamp) rows
// fail the entire batch with ErrDuplicateKey.
func (s *CandleStore) InsertBulk(ctx context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	type key struct {
		symbol    string
		timeframe domain.Timeframe
		ts        int64
	}
	seen := make(map[key]struct{}, len(candles))
	for _, c := range candles {
		if c.Symbol == "" || c.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{c.Symbol, c.Timeframe, c.Timestamp.UnixNano()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, c := range candles {
		exists, err := s.exists(ctx, c.Symbol, c.Timeframe, c.Timestamp)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, timeframe, ts, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.Symbol, string(c.Timeframe), c.Timestamp,
			c.Open, c.High, c.Low, c.Close, c.Volume,
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

// GetRange retrieves candles for (symbol, timeframe) within [start, end],
// ordered by timestamp ASC.
func (s *CandleStore) GetRange(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Candle, error) {
	query := `
		SELECT symbol, timeframe, ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, string(tf), start, end)
	if err != nil {
		return nil, fmt.Errorf("query candles by range: %w", err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		var timeframe string

		err := rows.Scan(
			&c.Symbol, &timeframe, &c.Timestamp,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.Timeframe = domain.Timeframe(timeframe)
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}

// exists checks if a candle with the given key exists.
func (s *CandleStore) exists(ctx context.Context, symbol string, tf domain.Timeframe, ts time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM candles
		WHERE symbol = ? AND timeframe = ? AND ts = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, string(tf), ts).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
