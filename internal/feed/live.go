package feed

import (
	"context"
	"time"

	"squeezebot/internal/domain"
)

// LiveProvider pairs a historical bar source with the websocket quote
// stream into a single Provider for live trading.
type LiveProvider struct {
	history Provider
	stream  *Stream
}

var _ Provider = (*LiveProvider)(nil)

// NewLiveProvider combines history and stream.
func NewLiveProvider(history Provider, stream *Stream) *LiveProvider {
	return &LiveProvider{history: history, stream: stream}
}

// GetCandles delegates to the historical source.
func (p *LiveProvider) GetCandles(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) ([]domain.Candle, error) {
	return p.history.GetCandles(ctx, symbol, timeframe, start, end)
}

// Subscribe registers handler on the stream. The returned cancel
// closes the stream; one live subscription per process.
func (p *LiveProvider) Subscribe(_ context.Context, symbols []string, handler QuoteHandler) (CancelFunc, error) {
	if err := p.stream.Subscribe(symbols, handler); err != nil {
		return nil, err
	}
	return func() { p.stream.Close() }, nil
}
