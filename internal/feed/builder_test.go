package feed

import (
	"testing"
	"time"

	"squeezebot/internal/domain"
)

func quoteAt(symbol string, ts time.Time, bid, ask, volume float64) domain.Quote {
	return domain.Quote{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Volume:    volume,
		Timestamp: ts,
	}
}

func TestCandleBuilderRollover(t *testing.T) {
	b := NewCandleBuilder(time.Minute, domain.Timeframe1Min)
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	if c := b.OnQuote(quoteAt("SPY", base.Add(5*time.Second), 100.0, 100.2, 0)); c != nil {
		t.Fatalf("first quote completed a bar: %+v", c)
	}
	if c := b.OnQuote(quoteAt("SPY", base.Add(20*time.Second), 101.0, 101.2, 0)); c != nil {
		t.Fatalf("same-bucket quote completed a bar: %+v", c)
	}
	if c := b.OnQuote(quoteAt("SPY", base.Add(40*time.Second), 99.0, 99.2, 0)); c != nil {
		t.Fatalf("same-bucket quote completed a bar: %+v", c)
	}

	completed := b.OnQuote(quoteAt("SPY", base.Add(65*time.Second), 102.0, 102.2, 0))
	if completed == nil {
		t.Fatal("boundary crossing did not complete a bar")
	}

	if !completed.Timestamp.Equal(base) {
		t.Errorf("expected bar timestamp %v, got %v", base, completed.Timestamp)
	}
	if completed.Open != 100.1 {
		t.Errorf("expected open 100.1, got %v", completed.Open)
	}
	if completed.High != 101.1 {
		t.Errorf("expected high 101.1, got %v", completed.High)
	}
	if completed.Low != 99.1 {
		t.Errorf("expected low 99.1, got %v", completed.Low)
	}
	if completed.Close != 99.1 {
		t.Errorf("expected close 99.1, got %v", completed.Close)
	}

	history := b.History("SPY")
	if len(history) != 1 {
		t.Fatalf("expected 1 bar in history, got %d", len(history))
	}
	if history[0] != *completed {
		t.Errorf("history bar differs from returned bar")
	}
}

func TestCandleBuilderMidpointPrice(t *testing.T) {
	b := NewCandleBuilder(time.Minute, domain.Timeframe1Min)
	ts := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	b.OnQuote(domain.Quote{Symbol: "SPY", Bid: 100, Ask: 102, Timestamp: ts})
	b.OnQuote(domain.Quote{Symbol: "SPY", Last: 105, Timestamp: ts.Add(10 * time.Second)})

	completed := b.OnQuote(quoteAt("SPY", ts.Add(61*time.Second), 100, 100, 0))
	if completed == nil {
		t.Fatal("expected completed bar")
	}
	if completed.Open != 101 {
		t.Errorf("expected midpoint open 101, got %v", completed.Open)
	}
	if completed.Close != 105 {
		t.Errorf("expected last-price fallback close 105, got %v", completed.Close)
	}
}

func TestCandleBuilderIgnoresBadQuotes(t *testing.T) {
	b := NewCandleBuilder(time.Minute, domain.Timeframe1Min)
	ts := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	b.OnQuote(domain.Quote{Symbol: "SPY", Timestamp: ts})
	b.OnQuote(domain.Quote{Symbol: "SPY", Bid: 100, Ask: 100.2})

	if c := b.OnQuote(quoteAt("SPY", ts.Add(61*time.Second), 100, 100, 0)); c != nil {
		t.Fatalf("bar built from ignored quotes: %+v", c)
	}
}

func TestCandleBuilderLateQuoteDoesNotReopenBar(t *testing.T) {
	b := NewCandleBuilder(time.Minute, domain.Timeframe1Min)
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	b.OnQuote(quoteAt("SPY", base.Add(5*time.Second), 100, 100, 0))
	completed := b.OnQuote(quoteAt("SPY", base.Add(65*time.Second), 101, 101, 0))
	if completed == nil {
		t.Fatal("expected completed bar")
	}

	// A quote stamped inside the closed bucket folds into the working
	// bar instead of mutating history.
	if c := b.OnQuote(quoteAt("SPY", base.Add(30*time.Second), 90, 90, 0)); c != nil {
		t.Fatalf("late quote completed a bar: %+v", c)
	}

	history := b.History("SPY")
	if len(history) != 1 {
		t.Fatalf("expected 1 bar in history, got %d", len(history))
	}
	if history[0].Low != 100 {
		t.Errorf("closed bar was mutated by late quote: low %v", history[0].Low)
	}

	next := b.OnQuote(quoteAt("SPY", base.Add(125*time.Second), 102, 102, 0))
	if next == nil {
		t.Fatal("expected second completed bar")
	}
	if next.Low != 90 {
		t.Errorf("late quote not folded into working bar: low %v", next.Low)
	}
}

func TestCandleBuilderSymbolIsolation(t *testing.T) {
	b := NewCandleBuilder(time.Minute, domain.Timeframe1Min)
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	b.OnQuote(quoteAt("SPY", base, 100, 100, 0))
	b.OnQuote(quoteAt("QQQ", base, 400, 400, 0))

	completed := b.OnQuote(quoteAt("SPY", base.Add(61*time.Second), 101, 101, 0))
	if completed == nil || completed.Symbol != "SPY" {
		t.Fatalf("expected SPY bar, got %+v", completed)
	}
	if len(b.History("QQQ")) != 0 {
		t.Error("QQQ history affected by SPY rollover")
	}
}

func TestCandleBuilderHistoryBounded(t *testing.T) {
	b := NewCandleBuilder(time.Minute, domain.Timeframe1Min)
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

	for i := 0; i < maxHistory+50; i++ {
		b.OnQuote(quoteAt("SPY", base.Add(time.Duration(i)*time.Minute), 100, 100, 0))
	}

	history := b.History("SPY")
	if len(history) != maxHistory {
		t.Fatalf("expected history capped at %d, got %d", maxHistory, len(history))
	}
	// Oldest retained bar should be the (50th) minute, not the first.
	want := base.Add(49 * time.Minute)
	if !history[0].Timestamp.Equal(want) {
		t.Errorf("expected oldest bar at %v, got %v", want, history[0].Timestamp)
	}
}

func TestCandleBuilderSeed(t *testing.T) {
	b := NewCandleBuilder(time.Minute, domain.Timeframe1Min)
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

	seed := make([]domain.Candle, maxHistory+10)
	for i := range seed {
		seed[i] = domain.Candle{
			Symbol:    "SPY",
			Timeframe: domain.Timeframe1Min,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      100, High: 100, Low: 100, Close: 100,
		}
	}
	b.Seed("SPY", seed)

	history := b.History("SPY")
	if len(history) != maxHistory {
		t.Fatalf("expected seed trimmed to %d, got %d", maxHistory, len(history))
	}
	if !history[len(history)-1].Timestamp.Equal(seed[len(seed)-1].Timestamp) {
		t.Error("seed did not keep the most recent bars")
	}
}
