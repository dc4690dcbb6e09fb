package feed

import (
	"context"
	"errors"
	"time"

	"squeezebot/internal/domain"
)

// ErrDataUnavailable indicates the provider cannot serve the requested
// range. Callers treat it as a local data error, not a fatal one.
var ErrDataUnavailable = errors.New("market data unavailable")

// QuoteHandler receives live quote updates. Handlers run on the
// provider's read goroutine and must not block.
type QuoteHandler func(domain.Quote)

// CancelFunc tears down a live subscription.
type CancelFunc func()

// Provider serves historical candles and live quote streams.
type Provider interface {
	// GetCandles returns candles for (symbol, timeframe) within
	// [start, end], oldest first. Returns ErrDataUnavailable when the
	// provider has no data for the range.
	GetCandles(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) ([]domain.Candle, error)

	// Subscribe streams live quotes for symbols to handler until the
	// returned cancel is called or ctx is done.
	Subscribe(ctx context.Context, symbols []string, handler QuoteHandler) (CancelFunc, error)
}
