package trailing

import (
	"math"
	"testing"

	"squeezebot/internal/domain"
)

const eps = 1e-9

func bullishInput(price float64, history []domain.Candle) Input {
	return Input{
		Direction:    domain.DirectionBullish,
		EntryPrice:   100,
		CurrentPrice: price,
		History:      history,
	}
}

func flatCandles(n int, price float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 100}
	}
	return out
}

func TestFactory_AllMethods(t *testing.T) {
	cfg := DefaultConfig()
	for _, name := range domain.AllTrailingMethods {
		m, err := New(name, cfg)
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		if m.Name() != name {
			t.Errorf("expected name %s, got %s", name, m.Name())
		}
	}

	if _, err := New("BANDS", cfg); err == nil {
		t.Error("expected error for unknown method")
	}

	if got := len(All(cfg)); got != 5 {
		t.Errorf("expected 5 methods, got %d", got)
	}
}

func TestPercentTrail_BothDirections(t *testing.T) {
	m := &PercentTrail{TrailPct: 0.01}

	stop, ok := m.Candidate(bullishInput(200, nil))
	if !ok || math.Abs(stop-198) > eps {
		t.Errorf("expected bullish stop 198, got %f (ok=%t)", stop, ok)
	}

	in := bullishInput(200, nil)
	in.Direction = domain.DirectionBearish
	stop, ok = m.Candidate(in)
	if !ok || math.Abs(stop-202) > eps {
		t.Errorf("expected bearish stop 202, got %f (ok=%t)", stop, ok)
	}

	if _, ok := m.Candidate(bullishInput(0, nil)); ok {
		t.Error("expected not ok on zero price")
	}
}

func TestFixedTrail_BothDirections(t *testing.T) {
	m := &FixedTrail{Points: 2.5}

	stop, ok := m.Candidate(bullishInput(100, nil))
	if !ok || math.Abs(stop-97.5) > eps {
		t.Errorf("expected bullish stop 97.5, got %f", stop)
	}

	in := bullishInput(100, nil)
	in.Direction = domain.DirectionBearish
	stop, _ = m.Candidate(in)
	if math.Abs(stop-102.5) > eps {
		t.Errorf("expected bearish stop 102.5, got %f", stop)
	}
}

func TestATRTrail_UsesATRMultiple(t *testing.T) {
	m := &ATRTrail{Period: 1, Multiple: 1.5}

	// Flat candles: TR is constant 2 (high-low), so ATR=2.
	history := flatCandles(5, 100)
	stop, ok := m.Candidate(bullishInput(101, history))
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(stop-98) > eps {
		t.Errorf("expected stop 101-3=98, got %f", stop)
	}

	if _, ok := m.Candidate(bullishInput(101, history[:1])); ok {
		t.Error("expected not ok with insufficient history")
	}
}

func TestEMATrail_TracksCloses(t *testing.T) {
	m := &EMATrail{Period: 9}

	history := flatCandles(12, 100)
	stop, ok := m.Candidate(bullishInput(101, history))
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(stop-100) > eps {
		t.Errorf("expected EMA 100 on flat closes, got %f", stop)
	}
}

func TestHeikenAshiTrail_LowestLowOfWindow(t *testing.T) {
	m := &HeikenAshiTrail{Lookback: 3}

	history := []domain.Candle{
		{Open: 100, High: 102, Low: 98, Close: 101},
		{Open: 101, High: 103, Low: 99, Close: 102},
		{Open: 102, High: 104, Low: 100, Close: 103},
		{Open: 103, High: 105, Low: 101, Close: 104},
	}
	stop, ok := m.Candidate(bullishInput(104, history))
	if !ok {
		t.Fatal("expected ok")
	}
	// HA lows never exceed the real lows; the stop must sit at or below
	// the lowest real low of the last three candles.
	if stop > 101 {
		t.Errorf("expected stop <= 101, got %f", stop)
	}
	if stop < 98 {
		t.Errorf("stop unexpectedly below the window: %f", stop)
	}

	if _, ok := m.Candidate(bullishInput(104, nil)); ok {
		t.Error("expected not ok without history")
	}
}

func TestHeikenAshiTrail_BearishHighestHigh(t *testing.T) {
	m := &HeikenAshiTrail{Lookback: 2}

	history := []domain.Candle{
		{Open: 104, High: 106, Low: 102, Close: 103},
		{Open: 103, High: 105, Low: 101, Close: 102},
		{Open: 102, High: 104, Low: 100, Close: 101},
	}
	in := bullishInput(101, history)
	in.Direction = domain.DirectionBearish
	stop, ok := m.Candidate(in)
	if !ok {
		t.Fatal("expected ok")
	}
	if stop < 104 {
		t.Errorf("expected stop at or above highest high of window, got %f", stop)
	}
}

func TestTighten_RatchetMonotonic(t *testing.T) {
	// Bullish: any candidate sequence yields a non-decreasing stop.
	candidates := []float64{99, 99.5, 99.2, 100.1, 99.8, 101}
	stop := 0.0
	prev := 0.0
	for _, c := range candidates {
		stop = Tighten(domain.DirectionBullish, stop, c)
		if stop < prev {
			t.Fatalf("bullish stop loosened: %f -> %f", prev, stop)
		}
		prev = stop
	}
	if stop != 101 {
		t.Errorf("expected final stop 101, got %f", stop)
	}

	// Bearish: non-increasing.
	stop = 0
	prev = math.Inf(1)
	for _, c := range []float64{103, 102.5, 102.8, 101.9, 102.2} {
		stop = Tighten(domain.DirectionBearish, stop, c)
		if stop > prev {
			t.Fatalf("bearish stop loosened: %f -> %f", prev, stop)
		}
		prev = stop
	}
	if stop != 101.9 {
		t.Errorf("expected final stop 101.9, got %f", stop)
	}
}

func TestTighten_ZeroCurrentSeeds(t *testing.T) {
	if got := Tighten(domain.DirectionBullish, 0, 99.8); got != 99.8 {
		t.Errorf("expected seed 99.8, got %f", got)
	}
}
