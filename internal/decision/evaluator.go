package decision

import (
	"fmt"

	"squeezebot/internal/domain"
)

// Evaluator grades method stats against the thresholds.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates a decision evaluator.
func NewEvaluator(thresholds Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Grade produces the verdict for one method. READY requires every
// criterion to pass; any failure yields NOT_READY.
func (e *Evaluator) Grade(stats domain.MethodStats, initialEquity float64) MethodReport {
	criteria := e.evaluateCriteria(stats, initialEquity)

	verdict := VerdictReady
	for _, c := range criteria {
		if !c.Pass {
			verdict = VerdictNotReady
			break
		}
	}

	return MethodReport{
		Method:   string(stats.Method),
		Verdict:  verdict,
		Criteria: criteria,
	}
}

// GradeRun grades every method of a run summary.
func (e *Evaluator) GradeRun(summary domain.RunSummary, initialEquity float64) *RunReport {
	report := &RunReport{
		RunID:        summary.RunID,
		SymbolPeriod: summary.SymbolPeriod,
		Optimal:      string(summary.OptimalMethod),
		Methods:      make([]MethodReport, 0, len(summary.Stats)),
	}
	for _, stats := range summary.Stats {
		report.Methods = append(report.Methods, e.Grade(stats, initialEquity))
	}
	return report
}

// evaluateCriteria evaluates the 5 readiness criteria.
func (e *Evaluator) evaluateCriteria(stats domain.MethodStats, initialEquity float64) []CriterionResult {
	t := e.thresholds
	criteria := make([]CriterionResult, 5)

	// 1. Enough trades for the stats to mean anything.
	criteria[0] = CriterionResult{
		Name:      "Sample size",
		Threshold: fmt.Sprintf(">= %d trades", t.MinTrades),
		Actual:    fmt.Sprintf("%d", stats.TotalTrades),
		Pass:      stats.TotalTrades >= t.MinTrades,
	}

	// 2. Profit factor.
	criteria[1] = CriterionResult{
		Name:      "Profit factor",
		Threshold: fmt.Sprintf(">= %.2f", t.MinProfitFactor),
		Actual:    fmt.Sprintf("%.2f", stats.ProfitFactor),
		Pass:      stats.ProfitFactor >= t.MinProfitFactor,
	}

	// 3. Win rate.
	criteria[2] = CriterionResult{
		Name:      "Win rate",
		Threshold: fmt.Sprintf(">= %.0f%%", t.MinWinRate),
		Actual:    fmt.Sprintf("%.1f%%", stats.WinRate),
		Pass:      stats.WinRate >= t.MinWinRate,
	}

	// 4. Drawdown stays inside the risk budget.
	criteria[3] = CriterionResult{
		Name:      "Max drawdown",
		Threshold: fmt.Sprintf("<= %.0f%%", t.MaxDrawdownPct),
		Actual:    fmt.Sprintf("%.1f%%", stats.MaxDrawdown),
		Pass:      stats.MaxDrawdown <= t.MaxDrawdownPct,
	}

	// 5. The run ends above where it started.
	criteria[4] = CriterionResult{
		Name:      "Equity gain",
		Threshold: fmt.Sprintf("> %.0f", initialEquity),
		Actual:    fmt.Sprintf("%.2f", stats.FinalEquity),
		Pass:      stats.FinalEquity > initialEquity,
	}

	return criteria
}
