package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a RunReport as a Markdown string.
func RenderMarkdown(report *RunReport) string {
	var sb strings.Builder

	sb.WriteString("# Trailing Method Readiness Report\n\n")
	sb.WriteString(fmt.Sprintf("Run: %s  \n", report.RunID))
	sb.WriteString(fmt.Sprintf("Series: %s  \n", report.SymbolPeriod))
	sb.WriteString(fmt.Sprintf("Optimal method: %s\n\n", report.Optimal))

	ready := 0
	for _, m := range report.Methods {
		if m.Verdict == VerdictReady {
			ready++
		}
	}
	sb.WriteString(fmt.Sprintf("Methods ready: %d/%d\n\n", ready, len(report.Methods)))

	for _, m := range report.Methods {
		sb.WriteString(fmt.Sprintf("## %s: %s\n\n", m.Method, m.Verdict))
		sb.WriteString("| # | Criterion | Threshold | Actual | Pass |\n")
		sb.WriteString("|---|-----------|-----------|--------|------|\n")
		for i, c := range m.Criteria {
			passStr := "PASS"
			if !c.Pass {
				passStr = "FAIL"
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
				i+1, c.Name, c.Threshold, c.Actual, passStr))
		}
		sb.WriteString("\n")

		if m.Verdict == VerdictNotReady {
			for _, c := range m.Criteria {
				if !c.Pass {
					sb.WriteString(fmt.Sprintf("- Failed: %s (actual: %s)\n", c.Name, c.Actual))
				}
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
