package cli

import (
	"fmt"
	"io"

	"github.com/apilens/apilens/internal/check"
)

func renderReport(w io.Writer, ok bool, issues []check.DiffIssue, summary check.Summary, recs []check.Recommendation) {
	if ok {
		fmt.Fprintln(w, "Result: compatible")
	} else {
		fmt.Fprintln(w, "Result: incompatible")
	}
	fmt.Fprintf(w, "Score:  %d/100 (%d error(s), %d warning(s))\n",
		summary.CompatibilityScore, summary.ErrorCount, summary.WarningCount)

	if len(issues) > 0 {
		fmt.Fprintln(w)
		for _, issue := range issues {
			fmt.Fprintf(w, "  [%s] %s: %s", issue.Severity, issue.Type, issue.Message)
			if issue.Location != "" {
				fmt.Fprintf(w, " (%s)", issue.Location)
			}
			fmt.Fprintln(w)
			if issue.Suggestion != "" {
				fmt.Fprintf(w, "      did you mean %s?\n", issue.Suggestion)
			}
		}
	}

	if len(recs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recommendations:")
		for _, rec := range recs {
			fmt.Fprintf(w, "  - (%s) %s\n", rec.Priority, rec.Text)
		}
	}
}
