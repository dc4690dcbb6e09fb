package feed

import (
	"sync"
	"time"

	"squeezebot/internal/domain"
)

// maxHistory bounds the per-symbol candle buffer. Indicator warmup needs
// far fewer bars than this.
const maxHistory = 100

// CandleBuilder aggregates live quotes into fixed-period OHLCV bars.
// The bid/ask midpoint is the price; quote timestamps floor to the
// period boundary so a bar covers [t, t+period). Completed bars append
// to a bounded per-symbol history.
type CandleBuilder struct {
	period    time.Duration
	timeframe domain.Timeframe

	mu      sync.Mutex
	current map[string]*domain.Candle
	history map[string][]domain.Candle
}

// NewCandleBuilder creates a builder producing bars of the given period.
func NewCandleBuilder(period time.Duration, timeframe domain.Timeframe) *CandleBuilder {
	return &CandleBuilder{
		period:    period,
		timeframe: timeframe,
		current:   make(map[string]*domain.Candle),
		history:   make(map[string][]domain.Candle),
	}
}

// OnQuote folds one quote into the working bar. When the quote crosses a
// period boundary the finished bar is returned; otherwise nil.
func (b *CandleBuilder) OnQuote(q domain.Quote) *domain.Candle {
	price := q.Mid()
	if price <= 0 || q.Timestamp.IsZero() {
		return nil
	}
	bucket := q.Timestamp.Truncate(b.period)

	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.current[q.Symbol]
	if cur == nil {
		b.current[q.Symbol] = newCandle(q.Symbol, b.timeframe, bucket, price, q.Volume)
		return nil
	}

	if bucket.After(cur.Timestamp) {
		completed := *cur
		b.appendHistory(completed)
		b.current[q.Symbol] = newCandle(q.Symbol, b.timeframe, bucket, price, q.Volume)
		return &completed
	}

	// Same bucket: extend the working bar. Late quotes from a previous
	// bucket also land here rather than reopening a closed bar.
	cur.Close = price
	if price > cur.High {
		cur.High = price
	}
	if price < cur.Low {
		cur.Low = price
	}
	cur.Volume += q.Volume
	return nil
}

func newCandle(symbol string, tf domain.Timeframe, ts time.Time, price, volume float64) *domain.Candle {
	return &domain.Candle{
		Symbol:    symbol,
		Timeframe: tf,
		Timestamp: ts,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    volume,
	}
}

func (b *CandleBuilder) appendHistory(c domain.Candle) {
	h := append(b.history[c.Symbol], c)
	if len(h) > maxHistory {
		h = h[len(h)-maxHistory:]
	}
	b.history[c.Symbol] = h
}

// History returns a copy of the completed bars for a symbol, oldest first.
func (b *CandleBuilder) History(symbol string) []domain.Candle {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.history[symbol]
	out := make([]domain.Candle, len(h))
	copy(out, h)
	return out
}

// Seed preloads historical bars, keeping only the most recent maxHistory.
func (b *CandleBuilder) Seed(symbol string, candles []domain.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := make([]domain.Candle, len(candles))
	copy(h, candles)
	if len(h) > maxHistory {
		h = h[len(h)-maxHistory:]
	}
	b.history[symbol] = h
}
