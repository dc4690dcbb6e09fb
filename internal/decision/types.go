// Package decision grades backtested trailing methods into READY or
// NOT_READY verdicts before a method is trusted with live capital.
package decision

// Verdict represents the final READY/NOT_READY result for one method.
type Verdict string

const (
	VerdictReady    Verdict = "READY"
	VerdictNotReady Verdict = "NOT_READY"
)

// Thresholds holds the grading criteria limits.
type Thresholds struct {
	MinTrades       int     // minimum simulated trades for significance
	MinProfitFactor float64 // gross profit over gross loss
	MinWinRate      float64 // percent
	MaxDrawdownPct  float64 // percent of equity peak
}

// DefaultThresholds returns the grading defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinTrades:       10,
		MinProfitFactor: 1.5,
		MinWinRate:      40,
		MaxDrawdownPct:  25,
	}
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// MethodReport is the verdict and checklist for one trailing method.
type MethodReport struct {
	Method   string
	Verdict  Verdict
	Criteria []CriterionResult
}

// RunReport grades every method of one backtest run.
type RunReport struct {
	RunID        string
	SymbolPeriod string
	Optimal      string
	Methods      []MethodReport
}
