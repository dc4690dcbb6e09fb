package idhash

import (
	"testing"
	"time"

	"squeezebot/internal/domain"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name      string
		symbol    string
		direction domain.Direction
		timeframe domain.Timeframe
		entryTime time.Time
		wantLen   int // hash length should be 64
	}{
		{
			name:      "bullish entry",
			symbol:    "SPY",
			direction: domain.DirectionBullish,
			timeframe: domain.Timeframe5Min,
			entryTime: time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC),
			wantLen:   64,
		},
		{
			name:      "bearish entry",
			symbol:    "QQQ",
			direction: domain.DirectionBearish,
			timeframe: domain.Timeframe1Min,
			entryTime: time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
			wantLen:   64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.symbol, tt.direction, tt.timeframe, tt.entryTime)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeTradeID(tt.symbol, tt.direction, tt.timeframe, tt.entryTime)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_Determinism(t *testing.T) {
	entry := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	// Compute multiple times
	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		results[i] = ComputeTradeID("SPY", domain.DirectionBullish, domain.Timeframe5Min, entry)
	}

	// All should be identical
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Errorf("Determinism failed: results[%d]=%s != results[0]=%s", i, results[i], results[0])
		}
	}
}

func TestComputeTradeID_DifferentInputs(t *testing.T) {
	entry := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	base := ComputeTradeID("SPY", domain.DirectionBullish, domain.Timeframe5Min, entry)

	// Different symbol should produce different hash
	diffSymbol := ComputeTradeID("QQQ", domain.DirectionBullish, domain.Timeframe5Min, entry)
	if base == diffSymbol {
		t.Error("Different symbol should produce different hash")
	}

	// Different direction should produce different hash
	diffDirection := ComputeTradeID("SPY", domain.DirectionBearish, domain.Timeframe5Min, entry)
	if base == diffDirection {
		t.Error("Different direction should produce different hash")
	}

	// Different timeframe should produce different hash
	diffTimeframe := ComputeTradeID("SPY", domain.DirectionBullish, domain.Timeframe1Min, entry)
	if base == diffTimeframe {
		t.Error("Different timeframe should produce different hash")
	}

	// Different entry time should produce different hash
	diffTime := ComputeTradeID("SPY", domain.DirectionBullish, domain.Timeframe5Min, entry.Add(time.Minute))
	if base == diffTime {
		t.Error("Different entry time should produce different hash")
	}
}
