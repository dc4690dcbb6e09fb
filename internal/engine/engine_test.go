package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"squeezebot/internal/broker"
	"squeezebot/internal/domain"
	"squeezebot/internal/exit"
	"squeezebot/internal/position"
	"squeezebot/internal/session"
	"squeezebot/internal/signal"
	"squeezebot/internal/storage/memory"
	"squeezebot/internal/trailing"
)

// ladderBars builds a rising bar series where every bar contains the
// previous close and spans exactly 0.8 points, so the true range (and
// therefore ATR) is a constant 0.8.
func ladderBars(symbol string, start time.Time, startClose float64, steps []float64) []domain.Candle {
	var out []domain.Candle
	prevClose := startClose
	for i, step := range steps {
		close := prevClose + step
		out = append(out, domain.Candle{
			Symbol:    symbol,
			Timeframe: domain.Timeframe5Min,
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      prevClose,
			High:      prevClose + 0.4,
			Low:       prevClose - 0.4,
			Close:     close,
			Volume:    10000,
		})
		prevClose = close
	}
	return out
}

type testHarness struct {
	engine    *Engine
	paper     *broker.Paper
	positions *position.Manager
	trades    *memory.TradeStore
	clock     *session.SimClock
	price     *float64
}

func newHarness(t *testing.T, trail trailing.Method, rules *session.Rules) *testHarness {
	t.Helper()

	price := 100.0
	paper := broker.NewPaper(func(string) (float64, error) { return price, nil }, zerolog.Nop())
	positions := position.NewManager(memory.NewPositionStore(), zerolog.Nop())
	trades := memory.NewTradeStore()
	clock := session.NewSimClock(time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC))

	compression := signal.NewCompressionDetector(signal.CompressionConfig{
		Window:            20,
		RequiredCount:     2,
		BBWidthThreshold:  0.05,
		DonchianThreshold: 0.6,
		VolumeThreshold:   0.3,
		EMAPeriod:         15,
	})
	evaluator := signal.NewEvaluator(signal.EvaluatorOptions{
		Compression: compression,
		Momentum: signal.NewMomentumConfirmer(signal.MomentumConfig{
			StochKPeriod: 5, StochDPeriod: 3, StochSmooth: 2,
			BullishThreshold: 20, BearishThreshold: 80, EMAPeriod: 15,
		}),
		Entry:  signal.NewEntryTrigger(signal.EntryConfig{WickTolerancePct: 0.1}),
		Logger: zerolog.Nop(),
	})

	eng := New(Options{
		Config: Config{
			Timeframe:     domain.Timeframe5Min,
			Quantity:      2,
			TradeSymbols:  []string{"XYZ"},
			BasketSymbols: []string{"XLK"},
		},
		Basket:    signal.NewTracker([]string{"XLK"}, nil, 0.002),
		Alignment: signal.NewAlignmentDetector(domain.BasketModeMegaCap, 60),
		Evaluator: evaluator,
		Exits: exit.NewEvaluator(exit.Config{
			MinProfitBeforeHA: 0.005,
			LossGuardPct:      -0.001,
			StochExtremeUpper: 85,
			StochExtremeLower: 15,
			StochKPeriod:      5,
			StochDPeriod:      3,
			StochSmooth:       2,
			EMAPeriod:         15,
		}, nil, rules),
		Trailing:  trail,
		Gateway:   paper,
		Positions: positions,
		Trades:    trades,
		Rules:     rules,
		Clock:     clock,
		Logger:    zerolog.Nop(),
	})

	h := &testHarness{
		engine:    eng,
		paper:     paper,
		positions: positions,
		trades:    trades,
		clock:     clock,
		price:     &price,
	}
	return h
}

func tradeableSignal(symbol string, dir domain.Direction, ts time.Time) domain.TradeSignal {
	return domain.TradeSignal{
		Symbol:    symbol,
		Direction: dir,
		Timestamp: ts,
		Alignment: domain.AlignmentResult{Aligned: true, Direction: dir, Score: 75},
		Compression: domain.CompressionResult{
			Detected: true, Direction: dir, SignalCount: 2,
			BollingerSqueeze: true, DonchianContract: true,
		},
		MomentumOK: true,
		TrendOK:    true,
		VolumeOK:   true,
		ADXOK:      true,
		EntryOK:    true,
	}
}

// TestTradeLifecycleWithATRTrail drives a full bullish trade: entry at
// 101.0 with a constant 0.8 ATR seeds the stop at 99.8, the rally to
// 103.0 ratchets it to 101.8, and the pullback bar exits at the stop
// with positive realized profit.
func TestTradeLifecycleWithATRTrail(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &trailing.ATRTrail{Period: 14, Multiple: 1.5}, nil)
	start := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	// 20 warm bars ending at close 101.0.
	steps := make([]float64, 20)
	steps[19] = 0.4 // last warm step lands exactly on 101.0
	history := ladderBars("XYZ", start, 100.6, steps)
	for i := 0; i < 19; i++ {
		history[i].Close = 100.6
		history[i].Open = 100.6
		history[i].High = 101.0
		history[i].Low = 100.2
	}
	if got := history[len(history)-1].Close; got != 101.0 {
		t.Fatalf("fixture: expected final warm close 101.0, got %v", got)
	}

	*h.price = 101.0
	h.engine.enter(ctx, tradeableSignal("XYZ", domain.DirectionBullish, h.clock.Now()),
		Event{Candle: history[len(history)-1], History: history}, h.clock.Now())

	tr, ok := h.engine.ActiveTrade("XYZ")
	if !ok || tr.State != domain.TradeStateOpen {
		t.Fatalf("expected open trade, got %+v", tr)
	}
	if tr.EntryPrice != 101.0 {
		t.Fatalf("expected entry 101.0, got %v", tr.EntryPrice)
	}
	if tr.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", tr.Quantity)
	}
	if diff := tr.Stop.CurrentStop - 99.8; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected initial stop 99.8, got %v", tr.Stop.CurrentStop)
	}

	p, ok := h.positions.Get("XYZ")
	if !ok {
		t.Fatal("position not persisted on open")
	}
	if p.TradeID != tr.ID {
		t.Error("position trade ID mismatch")
	}

	// Rally: five +0.4 bars carry the close to 103.0; ATR stays 0.8.
	rally := ladderBars("XYZ", start.Add(100*time.Minute), 101.0, []float64{0.4, 0.4, 0.4, 0.4, 0.6})
	rally[4].Close = 103.0
	rally[4].High = 103.0
	rally[4].Low = 102.2
	prevStop := tr.Stop.CurrentStop
	for _, bar := range rally {
		history = append(history, bar)
		h.clock.Set(h.clock.Now().Add(5 * time.Minute))
		*h.price = bar.Close
		h.engine.Process(ctx, Event{Candle: bar, History: history})

		if tr.State != domain.TradeStateOpen {
			t.Fatalf("trade exited early at close %v: %s", bar.Close, tr.ExitReason)
		}
		if tr.Stop.CurrentStop < prevStop {
			t.Fatalf("stop loosened from %v to %v", prevStop, tr.Stop.CurrentStop)
		}
		prevStop = tr.Stop.CurrentStop
	}

	if diff := tr.Stop.CurrentStop - 101.8; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("expected stop ratcheted to 101.8 at close 103.0, got %v", tr.Stop.CurrentStop)
	}
	if tr.Stop.HighWaterMark < 103.0 {
		t.Errorf("expected high-water mark >= 103.0, got %v", tr.Stop.HighWaterMark)
	}

	// Pullback bar touches the stop.
	crash := domain.Candle{
		Symbol: "XYZ", Timeframe: domain.Timeframe5Min,
		Timestamp: start.Add(130 * time.Minute),
		Open:      103.0, High: 103.0, Low: 101.5, Close: 101.8, Volume: 10000,
	}
	history = append(history, crash)
	h.clock.Set(h.clock.Now().Add(5 * time.Minute))
	*h.price = 101.8
	h.engine.Process(ctx, Event{Candle: crash, History: history})

	if tr.State != domain.TradeStateClosed {
		t.Fatalf("expected trade closed, state %s", tr.State)
	}
	if tr.ExitReason != domain.ExitReasonStopLoss {
		t.Errorf("expected %q, got %q", domain.ExitReasonStopLoss, tr.ExitReason)
	}
	if tr.RealizedPnL <= 0 {
		t.Errorf("expected positive realized PnL, got %v", tr.RealizedPnL)
	}

	if _, ok := h.engine.ActiveTrade("XYZ"); ok {
		t.Error("symbol slot not released after close")
	}
	if h.positions.HasOpen("XYZ") {
		t.Error("position still open after exit")
	}

	archived, err := h.trades.GetByID(ctx, tr.ID)
	if err != nil {
		t.Fatalf("trade not archived: %v", err)
	}
	if archived.ExitReason != domain.ExitReasonStopLoss {
		t.Errorf("archived exit reason %q", archived.ExitReason)
	}
}

func TestEntryGatedAfterCutoff(t *testing.T) {
	rules, err := session.NewRules(session.RulesConfig{
		OpenTime: "09:30", CloseTime: "16:00", CutoffTime: "15:15",
		Timezone: "America/New_York", NoTradeWindowMinutes: 3, AutoCloseMinutes: 15,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	h := newHarness(t, &trailing.FixedTrail{Points: 1.0}, rules)

	// 15:30 New York is past the 15:15 cutoff.
	h.clock.Set(time.Date(2025, 6, 2, 19, 30, 0, 0, time.UTC))

	bar := domain.Candle{
		Symbol: "XYZ", Timeframe: domain.Timeframe5Min,
		Timestamp: h.clock.Now(), Open: 100, High: 100.5, Low: 99.5, Close: 100.2,
	}
	h.engine.Process(ctx, Event{Candle: bar, History: []domain.Candle{bar}})

	if _, ok := h.engine.ActiveTrade("XYZ"); ok {
		t.Error("trade opened after cutoff")
	}
	orders, _ := h.paper.OpenOrders(ctx)
	if len(orders) != 0 {
		t.Errorf("orders submitted after cutoff: %d", len(orders))
	}
}

// failingGateway rejects every order submission.
type failingGateway struct {
	broker.Gateway
	calls int
}

func (g *failingGateway) SubmitOrder(ctx context.Context, spec domain.OrderSpec) (*broker.Order, error) {
	g.calls++
	return nil, broker.ErrRejected
}

func TestEntryFailureReleasesSlot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &trailing.FixedTrail{Points: 1.0}, nil)

	gw := &failingGateway{Gateway: h.paper}
	h.engine.gateway = gw

	ts := h.clock.Now()
	bar := domain.Candle{Symbol: "XYZ", Timestamp: ts, Open: 100, High: 100.5, Low: 99.5, Close: 100.2}
	h.engine.enter(ctx, tradeableSignal("XYZ", domain.DirectionBullish, ts),
		Event{Candle: bar, History: []domain.Candle{bar}}, ts)

	if gw.calls != 1 {
		t.Fatalf("entry order submitted %d times, want exactly 1", gw.calls)
	}
	if _, ok := h.engine.ActiveTrade("XYZ"); ok {
		t.Error("slot still held after failed entry")
	}
	if h.positions.HasOpen("XYZ") {
		t.Error("position persisted for failed entry")
	}
}

// TestDuplicateSignalKeepsSingleTrade feeds a second qualifying bar for
// a symbol that already holds an open trade: no second order may go out
// and the original trade stays untouched.
func TestDuplicateSignalKeepsSingleTrade(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &trailing.ATRTrail{Period: 14, Multiple: 1.5}, nil)
	start := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	steps := make([]float64, 20)
	steps[19] = 0.4
	history := ladderBars("XYZ", start, 100.6, steps)
	for i := 0; i < 19; i++ {
		history[i].Close = 100.6
		history[i].Open = 100.6
		history[i].High = 101.0
		history[i].Low = 100.2
	}

	*h.price = 101.0
	h.engine.enter(ctx, tradeableSignal("XYZ", domain.DirectionBullish, h.clock.Now()),
		Event{Candle: history[len(history)-1], History: history}, h.clock.Now())

	first, ok := h.engine.ActiveTrade("XYZ")
	if !ok || first.State != domain.TradeStateOpen {
		t.Fatalf("expected open trade, got %+v", first)
	}
	if got := h.paper.OrderCount(); got != 1 {
		t.Fatalf("expected 1 order after entry, got %d", got)
	}
	firstID := first.ID
	entryPrice := first.EntryPrice

	// Another bullish bar while the trade is open. The symbol slot is
	// taken, so no entry evaluation runs.
	bar := domain.Candle{
		Symbol: "XYZ", Timeframe: domain.Timeframe5Min,
		Timestamp: start.Add(100 * time.Minute),
		Open:      101.0, High: 101.5, Low: 100.9, Close: 101.4, Volume: 10000,
	}
	history = append(history, bar)
	h.clock.Set(h.clock.Now().Add(5 * time.Minute))
	*h.price = 101.4
	h.engine.Process(ctx, Event{Candle: bar, History: history})

	if got := h.paper.OrderCount(); got != 1 {
		t.Errorf("duplicate signal submitted an order, %d total", got)
	}
	tr, ok := h.engine.ActiveTrade("XYZ")
	if !ok || tr.ID != firstID {
		t.Fatalf("original trade replaced: %+v", tr)
	}
	if tr.State != domain.TradeStateOpen || tr.EntryPrice != entryPrice {
		t.Errorf("trade mutated by duplicate signal: state %s entry %v", tr.State, tr.EntryPrice)
	}
	if s := h.positions.Summary(); s.OpenCount != 1 {
		t.Errorf("expected 1 open position, got %d", s.OpenCount)
	}
}

// TestInitialStopSeededFromConfiguredRule opens on a history too thin
// for the ATR trail to propose a stop; the configured fixed-percentage
// rule places the initial stop instead.
func TestInitialStopSeededFromConfiguredRule(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &trailing.ATRTrail{Period: 14, Multiple: 1.5}, nil)
	h.engine.seeder = trailing.NewSeeder(domain.StopFixedPercentage, trailing.Config{FixedStopPct: 2.0})

	start := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	history := ladderBars("XYZ", start, 100.6, []float64{0.4})

	*h.price = 101.0
	h.engine.enter(ctx, tradeableSignal("XYZ", domain.DirectionBullish, h.clock.Now()),
		Event{Candle: history[0], History: history}, h.clock.Now())

	tr, ok := h.engine.ActiveTrade("XYZ")
	if !ok || tr.State != domain.TradeStateOpen {
		t.Fatalf("expected open trade, got %+v", tr)
	}
	want := 101.0 * 0.98
	if diff := tr.Stop.CurrentStop - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected seeded stop %v, got %v", want, tr.Stop.CurrentStop)
	}
	p, ok := h.positions.Get("XYZ")
	if !ok {
		t.Fatal("position not persisted on open")
	}
	if p.StopPrice != tr.Stop.CurrentStop {
		t.Errorf("persisted stop %v does not match trade stop %v", p.StopPrice, tr.Stop.CurrentStop)
	}
}

func TestRestoreResumesOpenTrade(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &trailing.FixedTrail{Points: 1.0}, nil)

	seed := &domain.Position{
		Symbol: "XYZ", TradeID: "t-1", Direction: domain.DirectionBullish,
		Quantity: 2, EntryPrice: 100, EntryTime: h.clock.Now().Add(-time.Hour),
		StopPrice: 99.0, TrailingMethod: domain.TrailingFixed, LastPrice: 100.5,
	}
	if err := h.positions.Open(ctx, seed); err != nil {
		t.Fatal(err)
	}

	fresh := New(Options{
		Config:    Config{Timeframe: domain.Timeframe5Min, Quantity: 2, TradeSymbols: []string{"XYZ"}},
		Trailing:  &trailing.FixedTrail{Points: 1.0},
		Gateway:   h.paper,
		Positions: h.positions,
		Trades:    h.trades,
		Clock:     h.clock,
		Logger:    zerolog.Nop(),
	})
	if err := fresh.Restore(ctx); err != nil {
		t.Fatal(err)
	}

	tr, ok := fresh.ActiveTrade("XYZ")
	if !ok {
		t.Fatal("restored trade missing")
	}
	if tr.State != domain.TradeStateOpen || tr.Stop.CurrentStop != 99.0 {
		t.Errorf("restored trade state %s stop %v", tr.State, tr.Stop.CurrentStop)
	}
}

func TestKillSwitch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &trailing.FixedTrail{Points: 1.0}, nil)

	ts := h.clock.Now()
	*h.price = 100.0
	bar := domain.Candle{Symbol: "XYZ", Timestamp: ts, Open: 100, High: 100.4, Low: 99.6, Close: 100}
	h.engine.enter(ctx, tradeableSignal("XYZ", domain.DirectionBullish, ts),
		Event{Candle: bar, History: []domain.Candle{bar}}, ts)

	if _, ok := h.engine.ActiveTrade("XYZ"); !ok {
		t.Fatal("fixture: trade did not open")
	}

	if err := h.engine.KillSwitch(ctx); err != nil {
		t.Fatalf("kill switch: %v", err)
	}

	if _, ok := h.engine.ActiveTrade("XYZ"); ok {
		t.Error("trade still active after kill switch")
	}
	if h.positions.HasOpen("XYZ") {
		t.Error("position still open after kill switch")
	}
	brokerPositions, _ := h.paper.Positions(ctx)
	if len(brokerPositions) != 0 {
		t.Errorf("broker still holds %d positions", len(brokerPositions))
	}

	trades, err := h.trades.GetBySymbol(ctx, "XYZ")
	if err != nil || len(trades) != 1 {
		t.Fatalf("expected 1 archived trade, got %d (%v)", len(trades), err)
	}
	if trades[0].ExitReason != domain.ExitReasonKillSwitch {
		t.Errorf("exit reason %q", trades[0].ExitReason)
	}
}

func TestKillSwitchReportsPartialFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &trailing.FixedTrail{Points: 1.0}, nil)

	seed := &domain.Position{
		Symbol: "GHOST", TradeID: "t-2", Direction: domain.DirectionBullish,
		Quantity: 1, EntryPrice: 50, EntryTime: h.clock.Now(), LastPrice: 50,
	}
	if err := h.positions.Open(ctx, seed); err != nil {
		t.Fatal(err)
	}

	// Broker has no GHOST position; kill switch must still close it
	// locally and succeed.
	if err := h.engine.KillSwitch(ctx); err != nil {
		t.Fatalf("kill switch with broker-flat position: %v", err)
	}
	if h.positions.HasOpen("GHOST") {
		t.Error("broker-flat position not closed locally")
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	h := newHarness(t, &trailing.FixedTrail{Points: 1.0}, nil)
	h.engine.queue = make(chan Event, 1)

	ev := Event{Candle: domain.Candle{Symbol: "XYZ"}}
	if !h.engine.Enqueue(ev) {
		t.Fatal("first enqueue should succeed")
	}
	if h.engine.Enqueue(ev) {
		t.Error("second enqueue should drop on full queue")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newHarness(t, &trailing.FixedTrail{Points: 1.0}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
