package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
// A partial unique index on (symbol) WHERE status = 'open' enforces the
// one-active-position-per-symbol invariant at the database level.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	symbol, trade_id, direction, status,
	quantity, entry_price, entry_time,
	stop_price, trailing_method, last_price,
	exit_price, exit_time, exit_reason,
	external, created_at, last_update
`

// Add creates a position for a symbol. Returns ErrDuplicateKey when a
// non-closed position for the symbol already exists.
func (s *PositionStore) Add(ctx context.Context, p *domain.Position) error {
	if p == nil || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	now := time.Now().UTC()
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES ($1, $2, $3, 'open', $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.pool.Exec(ctx, query,
		p.Symbol, p.TradeID, p.Direction,
		p.Quantity, p.EntryPrice, p.EntryTime,
		p.StopPrice, p.TrailingMethod, p.LastPrice,
		p.ExitPrice, nullableTime(p.ExitTime), p.ExitReason,
		p.External, createdAt, now,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update replaces the stored position for the symbol. Returns ErrNotFound
// if no non-closed position exists.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	if p == nil || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE positions SET
			trade_id = $2, direction = $3,
			quantity = $4, entry_price = $5, entry_time = $6,
			stop_price = $7, trailing_method = $8, last_price = $9,
			external = $10, last_update = $11
		WHERE symbol = $1 AND status = 'open'
	`

	tag, err := s.pool.Exec(ctx, query,
		p.Symbol, p.TradeID, p.Direction,
		p.Quantity, p.EntryPrice, p.EntryTime,
		p.StopPrice, p.TrailingMethod, p.LastPrice,
		p.External, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Close marks the position closed. Returns ErrNotFound if no non-closed
// position exists.
func (s *PositionStore) Close(ctx context.Context, symbol string, exitPrice float64, exitTime time.Time, reason string) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE positions SET
			status = 'closed', exit_price = $2, exit_time = $3, exit_reason = $4, last_update = $5
		WHERE symbol = $1 AND status = 'open'
	`

	tag, err := s.pool.Exec(ctx, query, symbol, exitPrice, exitTime, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetBySymbol retrieves the non-closed position for a symbol. Returns
// ErrNotFound if not exists.
func (s *PositionStore) GetBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE symbol = $1 AND status = 'open'
	`

	row := s.pool.QueryRow(ctx, query, symbol)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by symbol: %w", err)
	}
	return p, nil
}

// GetOpen retrieves all non-closed positions, ordered by symbol.
func (s *PositionStore) GetOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status = 'open'
		ORDER BY symbol ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetHistory retrieves closed positions, most recently closed first.
func (s *PositionStore) GetHistory(ctx context.Context, limit int) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status = 'closed'
		ORDER BY exit_time DESC, symbol ASC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get position history: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// nullableTime maps the zero time to NULL so TIMESTAMPTZ columns stay clean.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// scanPosition scans a single row into a Position.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var exitTime *time.Time

	err := row.Scan(
		&p.Symbol, &p.TradeID, &p.Direction, &p.Status,
		&p.Quantity, &p.EntryPrice, &p.EntryTime,
		&p.StopPrice, &p.TrailingMethod, &p.LastPrice,
		&p.ExitPrice, &exitTime, &p.ExitReason,
		&p.External, &p.CreatedAt, &p.LastUpdate,
	)
	if err != nil {
		return nil, err
	}

	if exitTime != nil {
		p.ExitTime = *exitTime
	}
	return &p, nil
}

// scanPositions scans multiple rows into a slice of Position.
func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position

	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}
