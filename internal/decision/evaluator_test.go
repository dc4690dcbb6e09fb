package decision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"squeezebot/internal/domain"
	"squeezebot/internal/storage/memory"
)

func readyStats(method domain.TrailingMethod) domain.MethodStats {
	return domain.MethodStats{
		Method:        method,
		TotalTrades:   20,
		WinningTrades: 12,
		LosingTrades:  8,
		WinRate:       60,
		GrossProfit:   3000,
		GrossLoss:     1200,
		ProfitFactor:  2.5,
		MaxDrawdown:   8,
		FinalEquity:   11800,
	}
}

func TestGrade_Ready(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())

	report := e.Grade(readyStats(domain.TrailingATR), 10000)

	if report.Verdict != VerdictReady {
		t.Errorf("expected READY, got %s", report.Verdict)
	}
	if report.Method != string(domain.TrailingATR) {
		t.Errorf("expected method %s, got %s", domain.TrailingATR, report.Method)
	}
	if len(report.Criteria) != 5 {
		t.Fatalf("expected 5 criteria, got %d", len(report.Criteria))
	}
	for _, c := range report.Criteria {
		if !c.Pass {
			t.Errorf("criterion %q failed: %s", c.Name, c.Actual)
		}
	}
}

func TestGrade_TooFewTrades(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	stats := readyStats(domain.TrailingATR)
	stats.TotalTrades = 3

	report := e.Grade(stats, 10000)

	if report.Verdict != VerdictNotReady {
		t.Errorf("expected NOT_READY, got %s", report.Verdict)
	}
	if report.Criteria[0].Pass {
		t.Error("sample size criterion should fail with 3 trades")
	}
}

func TestGrade_WeakProfitFactor(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	stats := readyStats(domain.TrailingEMA)
	stats.ProfitFactor = 1.1

	report := e.Grade(stats, 10000)

	if report.Verdict != VerdictNotReady {
		t.Errorf("expected NOT_READY, got %s", report.Verdict)
	}
}

func TestGrade_DeepDrawdown(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	stats := readyStats(domain.TrailingPercent)
	stats.MaxDrawdown = 32

	report := e.Grade(stats, 10000)

	if report.Verdict != VerdictNotReady {
		t.Errorf("expected NOT_READY, got %s", report.Verdict)
	}
	if report.Criteria[3].Pass {
		t.Error("drawdown criterion should fail at 32%")
	}
}

func TestGrade_EquityLoss(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	stats := readyStats(domain.TrailingFixed)
	stats.FinalEquity = 9200

	report := e.Grade(stats, 10000)

	if report.Verdict != VerdictNotReady {
		t.Errorf("expected NOT_READY, got %s", report.Verdict)
	}
}

func TestGradeRun(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())

	weak := readyStats(domain.TrailingEMA)
	weak.ProfitFactor = 0.8

	summary := domain.RunSummary{
		RunID:         "run-1",
		SymbolPeriod:  "SPY_5m",
		Stats:         []domain.MethodStats{readyStats(domain.TrailingATR), weak},
		OptimalMethod: domain.TrailingATR,
	}

	report := e.GradeRun(summary, 10000)

	if len(report.Methods) != 2 {
		t.Fatalf("expected 2 method reports, got %d", len(report.Methods))
	}
	if report.Methods[0].Verdict != VerdictReady {
		t.Errorf("ATR should be READY, got %s", report.Methods[0].Verdict)
	}
	if report.Methods[1].Verdict != VerdictNotReady {
		t.Errorf("EMA should be NOT_READY, got %s", report.Methods[1].Verdict)
	}
	if report.Optimal != string(domain.TrailingATR) {
		t.Errorf("expected optimal ATR, got %s", report.Optimal)
	}
}

func TestBuilder_Build(t *testing.T) {
	ctx := context.Background()
	stats := memory.NewMethodStatsStore()

	err := stats.InsertBulk(ctx, "run-1", []domain.MethodStats{
		readyStats(domain.TrailingATR),
	})
	if err != nil {
		t.Fatalf("insert stats: %v", err)
	}

	b := NewBuilder(stats, NewEvaluator(DefaultThresholds()))
	report, err := b.Build(ctx, "run-1", "SPY_5m", 10000)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if report.Optimal != string(domain.TrailingATR) {
		t.Errorf("expected optimal ATR, got %s", report.Optimal)
	}
	if len(report.Methods) != 1 || report.Methods[0].Verdict != VerdictReady {
		t.Errorf("unexpected methods: %+v", report.Methods)
	}
}

func TestBuilder_Build_MissingRun(t *testing.T) {
	b := NewBuilder(memory.NewMethodStatsStore(), NewEvaluator(DefaultThresholds()))

	_, err := b.Build(context.Background(), "missing", "SPY_5m", 10000)
	if !errors.Is(err, ErrNoStats) {
		t.Fatalf("expected ErrNoStats, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())

	weak := readyStats(domain.TrailingEMA)
	weak.WinRate = 25

	report := e.GradeRun(domain.RunSummary{
		RunID:         "run-1",
		SymbolPeriod:  "SPY_5m",
		Stats:         []domain.MethodStats{readyStats(domain.TrailingATR), weak},
		OptimalMethod: domain.TrailingATR,
	}, 10000)

	md := RenderMarkdown(report)

	for _, want := range []string{
		"# Trailing Method Readiness Report",
		"Methods ready: 1/2",
		"## ATR_TRAIL: READY",
		"## EMA_TRAIL: NOT_READY",
		"| 1 | Sample size |",
		"- Failed: Win rate",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}
