package validator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"interview-insights-go/internal/config"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/metrics"
	"interview-insights-go/internal/types"
)

const lowConfidenceIssue = "Low confidence"

// Quality deductions per failed check. A coverage shortfall weighs more
// than shaky confidence because missing turns cannot be reviewed at all.
const (
	coverageDeduction   = 0.15
	confidenceDeduction = 0.10
)

// Validator applies the acceptance checks to merged artifacts and builds
// the corpus-level summary.
type Validator struct {
	cfg config.AnnotationConfig
	log *logger.Logger
}

func New(cfg config.AnnotationConfig, log *logger.Logger) *Validator {
	return &Validator{cfg: cfg, log: log}
}

// Evaluate runs the acceptance checks on a merged artifact in place:
// quality issues are appended, the quality score is computed, and the
// artifact lands in Accepted or FlaggedForReview. Issues recorded before
// validation (a missing synthesis pass) keep flagging the interview but
// do not lower the score. Already validated artifacts are re-checked
// from scratch, so the validate stage can rerun after threshold changes.
func (v *Validator) Evaluate(ann *types.InterviewAnnotation) {
	if ann.Status.Terminal() {
		resetValidation(ann)
	}
	if !ann.Status.CanTransitionTo(types.StatusValidated) {
		v.log.WithInterview(ann.InterviewID).WithFields(map[string]interface{}{
			"status": ann.Status,
		}).Error("Artifact not in a validatable state")
		return
	}
	ann.Status = types.StatusValidated

	quality := 1.0
	if ann.CoveragePercentage < v.cfg.CoverageThreshold {
		ann.Issues = append(ann.Issues, fmt.Sprintf("Low turn coverage: %.1f%%", ann.CoveragePercentage))
		quality -= coverageDeduction
	}
	if ann.OverallConfidence < v.cfg.MinConfidence {
		ann.Issues = append(ann.Issues, lowConfidenceIssue)
		quality -= confidenceDeduction
	}
	if quality < 0 {
		quality = 0
	}
	ann.QualityScore = quality

	next := types.StatusAccepted
	if len(ann.Issues) > 0 {
		next = types.StatusFlaggedForReview
	}
	ann.Status = next

	metrics.RecordInterview(string(next), time.Duration(ann.Stats.ProcessingSeconds*float64(time.Second)))
	metrics.RecordCoverage(ann.CoveragePercentage)

	v.log.WithInterview(ann.InterviewID).WithFields(map[string]interface{}{
		"status":   ann.Status,
		"quality":  ann.QualityScore,
		"coverage": ann.CoveragePercentage,
		"issues":   len(ann.Issues),
	}).Info("Interview validated")
}

// resetValidation strips the marks Evaluate left on a previous pass.
func resetValidation(ann *types.InterviewAnnotation) {
	var kept []string
	for _, issue := range ann.Issues {
		if issue == lowConfidenceIssue || strings.HasPrefix(issue, "Low turn coverage:") {
			continue
		}
		kept = append(kept, issue)
	}
	ann.Issues = kept
	ann.QualityScore = 0
	ann.Status = types.StatusMerged
}

// ReportFor condenses a validated artifact into its summary row.
func ReportFor(ann *types.InterviewAnnotation) types.InterviewReport {
	return types.InterviewReport{
		InterviewID:        ann.InterviewID,
		Status:             ann.Status,
		QualityScore:       ann.QualityScore,
		CoveragePercentage: ann.CoveragePercentage,
		AnalyzedTurns:      ann.AnalyzedTurns,
		TotalTurns:         ann.TotalTurns,
		OverallConfidence:  ann.OverallConfidence,
		CostUSD:            ann.Stats.CostUSD,
		APICalls:           ann.Stats.APICalls,
		ProcessingSeconds:  ann.Stats.ProcessingSeconds,
		Issues:             ann.Issues,
	}
}

// Summarize aggregates per-interview reports into the corpus summary.
// Total cost is the exact sum of per-interview costs; averages are over
// all interviews in the run.
func Summarize(reports []types.InterviewReport, runID string, generatedAt time.Time) *types.ValidationSummary {
	summary := &types.ValidationSummary{
		RunID:           runID,
		GeneratedAt:     generatedAt.UTC(),
		TotalInterviews: len(reports),
		Interviews:      append([]types.InterviewReport(nil), reports...),
	}

	sort.Slice(summary.Interviews, func(i, j int) bool {
		return summary.Interviews[i].InterviewID < summary.Interviews[j].InterviewID
	})

	if len(reports) == 0 {
		return summary
	}

	var qualitySum, coverageSum float64
	for _, r := range summary.Interviews {
		switch r.Status {
		case types.StatusAccepted:
			summary.Accepted++
		case types.StatusFlaggedForReview:
			summary.Flagged++
		}

		switch {
		case r.QualityScore >= 0.95:
			summary.Distribution.High++
		case r.QualityScore >= 0.75:
			summary.Distribution.Medium++
		default:
			summary.Distribution.Low++
		}

		qualitySum += r.QualityScore
		coverageSum += r.CoveragePercentage
		summary.TotalCostUSD += r.CostUSD
		summary.TotalAPICalls += r.APICalls
	}

	n := float64(len(summary.Interviews))
	summary.SuccessRate = 100 * float64(summary.Accepted) / n
	summary.AverageQuality = qualitySum / n
	summary.AverageCoverage = coverageSum / n
	summary.AverageCostUSD = summary.TotalCostUSD / n

	return summary
}
