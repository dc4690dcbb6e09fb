package position

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"squeezebot/internal/broker"
	"squeezebot/internal/domain"
	"squeezebot/internal/storage/memory"
)

func newTestReconciler(t *testing.T, staleAfter time.Duration) (*Manager, *broker.Paper, *Reconciler) {
	t.Helper()
	m := NewManager(memory.NewPositionStore(), zerolog.Nop())
	paper := broker.NewPaper(func(string) (float64, error) { return 100.0, nil }, zerolog.Nop())
	r := NewReconciler(m, paper, ReconcilerOptions{StaleAfter: staleAfter, Logger: zerolog.Nop()})
	return m, paper, r
}

func TestReconciler_ClosesLocalOrphan(t *testing.T) {
	m, _, r := newTestReconciler(t, 24*time.Hour)
	ctx := context.Background()
	now := time.Date(2024, 3, 12, 9, 25, 0, 0, time.UTC)

	local := &domain.Position{
		Symbol: "SPY", TradeID: "t1", Direction: domain.DirectionBullish,
		EntryTime: now.Add(-time.Hour), LastPrice: 501.0,
	}
	if err := m.Open(ctx, local); err != nil {
		t.Fatal(err)
	}

	if err := r.Reconcile(ctx, now); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if m.HasOpen("SPY") {
		t.Error("Orphan position should be closed")
	}

	history, _ := m.store.GetHistory(ctx, 10)
	if len(history) != 1 || history[0].ExitReason != domain.ExitReasonNotAtBroker {
		t.Errorf("Expected force-close with broker-missing reason, got %v", history)
	}
}

func TestReconciler_AdoptsExternalPosition(t *testing.T) {
	m, paper, r := newTestReconciler(t, 24*time.Hour)
	ctx := context.Background()
	now := time.Date(2024, 3, 12, 9, 25, 0, 0, time.UTC)

	paper.SetPosition(domain.BrokerPosition{
		Symbol: "QQQ", Quantity: 3, Direction: domain.DirectionBearish, AvgPrice: 430.5,
	})

	if err := r.Reconcile(ctx, now); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	adopted, exists := m.Get("QQQ")
	if !exists {
		t.Fatal("Broker position should be adopted")
	}
	if !adopted.External {
		t.Error("Adopted position should be marked external")
	}
	if adopted.Direction != domain.DirectionBearish || adopted.Quantity != 3 {
		t.Errorf("Adopted fields wrong: %+v", adopted)
	}
}

func TestReconciler_Idempotent(t *testing.T) {
	m, paper, r := newTestReconciler(t, 24*time.Hour)
	ctx := context.Background()
	now := time.Date(2024, 3, 12, 9, 25, 0, 0, time.UTC)

	paper.SetPosition(domain.BrokerPosition{
		Symbol: "AAPL", Quantity: 1, Direction: domain.DirectionBullish, AvgPrice: 190.0,
	})

	if err := r.Reconcile(ctx, now); err != nil {
		t.Fatalf("First reconcile failed: %v", err)
	}
	first, _ := m.Get("AAPL")

	if err := r.Reconcile(ctx, now.Add(time.Minute)); err != nil {
		t.Fatalf("Second reconcile failed: %v", err)
	}
	second, _ := m.Get("AAPL")

	if first.TradeID != second.TradeID {
		t.Error("Second reconcile should not replace the adopted position")
	}

	s := m.Summary()
	if s.OpenCount != 1 {
		t.Errorf("Expected 1 open position, got %d", s.OpenCount)
	}
}

func TestReconciler_SweepsStalePositions(t *testing.T) {
	m, paper, r := newTestReconciler(t, 24*time.Hour)
	ctx := context.Background()
	now := time.Date(2024, 3, 12, 9, 25, 0, 0, time.UTC)

	paper.SetPosition(domain.BrokerPosition{
		Symbol: "TSLA", Quantity: 1, Direction: domain.DirectionBullish, AvgPrice: 180.0,
	})
	stale := &domain.Position{
		Symbol: "TSLA", TradeID: "t1", Direction: domain.DirectionBullish,
		EntryTime: now.Add(-48 * time.Hour), LastPrice: 181.0,
	}
	if err := m.Open(ctx, stale); err != nil {
		t.Fatal(err)
	}

	if err := r.Reconcile(ctx, now); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if m.HasOpen("TSLA") {
		t.Error("Stale position should be swept")
	}
	history, _ := m.store.GetHistory(ctx, 10)
	if len(history) != 1 || history[0].ExitReason != domain.ExitReasonStale {
		t.Errorf("Expected stale-sweep close, got %v", history)
	}

	// Broker side is flat too, so the next pass does not re-adopt.
	positions, _ := paper.Positions(ctx)
	if len(positions) != 0 {
		t.Errorf("Broker position should be liquidated, got %v", positions)
	}
}

func TestReconciler_SweepKeysOnLastUpdate(t *testing.T) {
	m, paper, r := newTestReconciler(t, 24*time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()

	paper.SetPosition(domain.BrokerPosition{
		Symbol: "NVDA", Quantity: 2, Direction: domain.DirectionBullish, AvgPrice: 118.0,
	})
	aged := &domain.Position{
		Symbol: "NVDA", TradeID: "t1", Direction: domain.DirectionBullish,
		EntryTime: now.Add(-25 * time.Hour), LastPrice: 119.0,
	}
	if err := m.Open(ctx, aged); err != nil {
		t.Fatal(err)
	}
	// Stop updates keep arriving, so the position is live despite its age.
	if err := m.UpdateStop(ctx, "NVDA", 117.5, 119.2); err != nil {
		t.Fatal(err)
	}

	if err := r.SweepStale(ctx, now); err != nil {
		t.Fatalf("SweepStale failed: %v", err)
	}
	if !m.HasOpen("NVDA") {
		t.Error("Recently updated position should survive the sweep")
	}

	abandoned := &domain.Position{
		Symbol: "MSFT", TradeID: "t2", Direction: domain.DirectionBearish,
		EntryTime: now.Add(-25 * time.Hour), LastPrice: 410.0,
	}
	if err := m.Open(ctx, abandoned); err != nil {
		t.Fatal(err)
	}

	if err := r.SweepStale(ctx, now); err != nil {
		t.Fatalf("SweepStale failed: %v", err)
	}
	if m.HasOpen("MSFT") {
		t.Error("Position without updates past the threshold should be swept")
	}
	if !m.HasOpen("NVDA") {
		t.Error("Live position should still be open after the second sweep")
	}
}
