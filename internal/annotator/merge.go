package annotator

import (
	"sort"

	"interview-insights-go/internal/types"
)

// Merge folds per-batch results and failed batches into the artifact:
// results concatenate in turn order, coverage recomputes from what was
// actually analyzed. Batches never overlap, so this is pure aggregation.
func Merge(ann *types.InterviewAnnotation, results []types.AnnotationResult, failed []types.Batch) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].TurnID < results[j].TurnID
	})
	ann.Turns = results
	ann.AnalyzedTurns = len(results)

	var unanalyzed []int
	for _, b := range failed {
		unanalyzed = append(unanalyzed, b.TurnIDs()...)
	}
	sort.Ints(unanalyzed)
	ann.UnanalyzedTurnIDs = unanalyzed

	if ann.TotalTurns > 0 {
		ann.CoveragePercentage = 100 * float64(ann.AnalyzedTurns) / float64(ann.TotalTurns)
	} else {
		ann.CoveragePercentage = 0
	}

	ann.OverallConfidence = meanConfidence(results)
}

func meanConfidence(results []types.AnnotationResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Confidence
	}
	return sum / float64(len(results))
}
