package indicator

import (
	"math"
	"testing"

	"squeezebot/internal/domain"
)

const eps = 1e-9

func candlesFromCloses(closes ...float64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{Open: c, High: c, Low: c, Close: c, Volume: 100}
	}
	return out
}

func TestEMA_KnownValues(t *testing.T) {
	// SMA(1,2,3)=2, k=0.5: EMA after 4 is 3, after 5 is 4.
	candles := candlesFromCloses(1, 2, 3, 4, 5)
	ema, ok := EMA(candles, 3)
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(ema-4) > eps {
		t.Errorf("expected EMA 4, got %f", ema)
	}
}

func TestEMA_InsufficientHistory(t *testing.T) {
	if _, ok := EMA(candlesFromCloses(1, 2), 3); ok {
		t.Error("expected not ok for short series")
	}
}

func TestVWAP_WeightsByVolume(t *testing.T) {
	candles := []domain.Candle{
		{High: 10, Low: 10, Close: 10, Volume: 100},
		{High: 20, Low: 20, Close: 20, Volume: 300},
	}
	vwap, ok := VWAP(candles)
	if !ok {
		t.Fatal("expected ok")
	}
	// (10*100 + 20*300) / 400 = 17.5
	if math.Abs(vwap-17.5) > eps {
		t.Errorf("expected VWAP 17.5, got %f", vwap)
	}
}

func TestVWAP_ZeroVolume(t *testing.T) {
	candles := []domain.Candle{{High: 10, Low: 10, Close: 10, Volume: 0}}
	if _, ok := VWAP(candles); ok {
		t.Error("expected not ok on zero total volume")
	}
}

func TestBollingerWidth_FlatSeriesIsZero(t *testing.T) {
	width, ok := BollingerWidth(candlesFromCloses(5, 5, 5, 5, 5), 5)
	if !ok {
		t.Fatal("expected ok")
	}
	if width != 0 {
		t.Errorf("expected zero width on flat series, got %f", width)
	}
}

func TestBollingerWidth_ZeroMiddleBand(t *testing.T) {
	if _, ok := BollingerWidth(candlesFromCloses(-1, 1), 2); ok {
		t.Error("expected not ok when middle band is zero")
	}
}

func TestStochastic_CloseAtHigh(t *testing.T) {
	candles := []domain.Candle{
		{High: 2, Low: 0, Close: 1},
		{High: 2, Low: 0, Close: 2},
	}
	k, d, ok := Stochastic(candles, 2, 1, 1)
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(k-100) > eps || math.Abs(d-100) > eps {
		t.Errorf("expected %%K=%%D=100, got k=%f d=%f", k, d)
	}
}

func TestStochastic_FlatRangeIsMidpoint(t *testing.T) {
	candles := candlesFromCloses(5, 5, 5, 5)
	k, _, ok := Stochastic(candles, 2, 1, 1)
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(k-50) > eps {
		t.Errorf("expected %%K=50 on flat range, got %f", k)
	}
}

func TestATR_SingleTrueRange(t *testing.T) {
	candles := []domain.Candle{
		{High: 10, Low: 9, Close: 9.5},
		{High: 11, Low: 10, Close: 10.5},
	}
	atr, ok := ATR(candles, 1)
	if !ok {
		t.Fatal("expected ok")
	}
	// TR = max(11-10, |11-9.5|, |10-9.5|) = 1.5
	if math.Abs(atr-1.5) > eps {
		t.Errorf("expected ATR 1.5, got %f", atr)
	}
}

func TestADX_TrendingSeries(t *testing.T) {
	var candles []domain.Candle
	for i := 0; i < 40; i++ {
		p := 100 + float64(i)
		candles = append(candles, domain.Candle{
			Open: p, High: p + 1, Low: p - 1, Close: p + 0.5,
		})
	}
	adx, ok := ADX(candles, 14)
	if !ok {
		t.Fatal("expected ok")
	}
	if adx < 0 || adx > 100 {
		t.Errorf("ADX out of range: %f", adx)
	}
	// A monotonic uptrend should register strong directional movement.
	if adx < 50 {
		t.Errorf("expected high ADX on steady trend, got %f", adx)
	}
}

func TestDonchianRange(t *testing.T) {
	candles := []domain.Candle{
		{High: 12, Low: 8},
		{High: 11, Low: 10},
		{High: 10.5, Low: 9.5},
	}
	r, ok := DonchianRange(candles, 2)
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(r-1.5) > eps {
		t.Errorf("expected range 1.5 over last two candles, got %f", r)
	}
}

func TestMeanVolume_Windows(t *testing.T) {
	candles := make([]domain.Candle, 20)
	for i := range candles {
		candles[i].Volume = float64(i + 1)
	}
	// Last 5 volumes: 16..20, mean 18.
	last5, ok := MeanVolume(candles, 5, 0)
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(last5-18) > eps {
		t.Errorf("expected mean 18, got %f", last5)
	}
	// Prior 15 volumes: 1..15, mean 8.
	prior15, ok := MeanVolume(candles, 20, 5)
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(prior15-8) > eps {
		t.Errorf("expected mean 8, got %f", prior15)
	}
}

func TestHeikenAshi_SeedAndChain(t *testing.T) {
	candles := []domain.Candle{
		{Open: 10, High: 13, Low: 9, Close: 12},
		{Open: 12, High: 14, Low: 11, Close: 13},
	}
	ha := HeikenAshi(candles)
	if len(ha) != 2 {
		t.Fatalf("expected 2 HA candles, got %d", len(ha))
	}

	// First: close=(10+13+9+12)/4=11, open=(10+12)/2=11.
	if math.Abs(ha[0].Close-11) > eps || math.Abs(ha[0].Open-11) > eps {
		t.Errorf("unexpected first HA candle: %+v", ha[0])
	}
	// Second: open=(11+11)/2=11, close=(12+14+11+13)/4=12.5.
	if math.Abs(ha[1].Open-11) > eps || math.Abs(ha[1].Close-12.5) > eps {
		t.Errorf("unexpected second HA candle: %+v", ha[1])
	}
	if !ha[1].Bullish() {
		t.Error("expected second HA candle bullish")
	}
	if math.Abs(ha[1].High-14) > eps || math.Abs(ha[1].Low-11) > eps {
		t.Errorf("unexpected second HA high/low: %+v", ha[1])
	}
}

func TestHeikenAshi_Empty(t *testing.T) {
	if ha := HeikenAshi(nil); ha != nil {
		t.Error("expected nil for empty input")
	}
}
