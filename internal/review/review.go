// Package review distills a validation summary into prioritized followup
// hints for the analyst working the flagged queue.
package review

import (
	"fmt"

	"interview-insights-go/internal/types"
)

// Hint is one followup: what was found, what to do, what it buys.
type Hint struct {
	Finding string `json:"finding"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// Hints derives followups from the summary, coverage gaps first. An empty
// corpus yields no hints.
func Hints(summary *types.ValidationSummary) []Hint {
	if summary == nil || summary.TotalInterviews == 0 {
		return nil
	}

	var hints []Hint

	gaps := 0
	worstID := ""
	worstCoverage := 100.0
	for _, rep := range summary.Interviews {
		if rep.CoveragePercentage >= 100 {
			continue
		}
		gaps++
		if rep.CoveragePercentage < worstCoverage {
			worstCoverage = rep.CoveragePercentage
			worstID = rep.InterviewID
		}
	}
	if gaps > 0 {
		hints = append(hints, Hint{
			Finding: fmt.Sprintf("%d interviews have unanalyzed turns, worst is %s at %.1f%%", gaps, worstID, worstCoverage),
			Action:  "Rerun the annotate stage with -force on the affected documents",
			Impact:  "Recovers coverage lost to failed batches",
		})
	}

	if summary.Flagged > 0 {
		hints = append(hints, Hint{
			Finding: fmt.Sprintf("%d of %d interviews are flagged for review", summary.Flagged, summary.TotalInterviews),
			Action:  "Work through the flagged artifacts before using the corpus",
			Impact:  "Keeps low-quality annotations out of downstream analysis",
		})
	}

	if len(hints) == 0 {
		hints = append(hints, Hint{
			Finding: fmt.Sprintf("All %d interviews accepted", summary.TotalInterviews),
			Action:  "No intervention needed, archive the run",
			Impact:  "Corpus is ready for analysis",
		})
	}
	return hints
}
