package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-insights-go/internal/config"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

func testValidator() *Validator {
	cfg := config.AnnotationConfig{MinConfidence: 0.60, CoverageThreshold: 95.0}
	return New(cfg, logger.New())
}

func mergedArtifact(coverage, confidence float64) *types.InterviewAnnotation {
	return &types.InterviewAnnotation{
		InterviewID:        "cit-042",
		Status:             types.StatusMerged,
		TotalTurns:         16,
		AnalyzedTurns:      int(coverage / 100 * 16),
		CoveragePercentage: coverage,
		OverallConfidence:  confidence,
	}
}

func TestEvaluateAccepted(t *testing.T) {
	ann := mergedArtifact(100.0, 0.9)
	testValidator().Evaluate(ann)

	assert.Equal(t, types.StatusAccepted, ann.Status)
	assert.Equal(t, 1.0, ann.QualityScore)
	assert.Empty(t, ann.Issues)
}

func TestEvaluateLowCoverage(t *testing.T) {
	ann := mergedArtifact(75.0, 0.9)
	testValidator().Evaluate(ann)

	assert.Equal(t, types.StatusFlaggedForReview, ann.Status)
	assert.Equal(t, []string{"Low turn coverage: 75.0%"}, ann.Issues)
	assert.InDelta(t, 0.85, ann.QualityScore, 1e-9)
}

func TestEvaluateLowConfidence(t *testing.T) {
	ann := mergedArtifact(100.0, 0.45)
	testValidator().Evaluate(ann)

	assert.Equal(t, types.StatusFlaggedForReview, ann.Status)
	assert.Equal(t, []string{"Low confidence"}, ann.Issues)
	assert.InDelta(t, 0.90, ann.QualityScore, 1e-9)
}

func TestEvaluateBothIssues(t *testing.T) {
	ann := mergedArtifact(50.0, 0.3)
	testValidator().Evaluate(ann)

	assert.Equal(t, types.StatusFlaggedForReview, ann.Status)
	assert.Equal(t, []string{"Low turn coverage: 50.0%", "Low confidence"}, ann.Issues)
	assert.InDelta(t, 0.75, ann.QualityScore, 1e-9)
}

func TestEvaluateThresholdBoundaries(t *testing.T) {
	// Exactly meeting a threshold passes; only falling below it flags.
	ann := mergedArtifact(95.0, 0.60)
	testValidator().Evaluate(ann)

	assert.Equal(t, types.StatusAccepted, ann.Status)
	assert.Equal(t, 1.0, ann.QualityScore)
}

func TestEvaluatePriorIssueFlagsWithoutDeduction(t *testing.T) {
	ann := mergedArtifact(100.0, 0.9)
	ann.Issues = []string{"Interview-level synthesis unavailable"}
	testValidator().Evaluate(ann)

	assert.Equal(t, types.StatusFlaggedForReview, ann.Status)
	assert.Equal(t, 1.0, ann.QualityScore)
	assert.Len(t, ann.Issues, 1)
}

func TestEvaluateReRunsOnValidatedArtifacts(t *testing.T) {
	ann := mergedArtifact(75.0, 0.9)
	ann.Issues = []string{"Interview-level synthesis unavailable"}
	v := testValidator()

	v.Evaluate(ann)
	require.Equal(t, types.StatusFlaggedForReview, ann.Status)
	require.Len(t, ann.Issues, 2)

	// A second pass must not stack duplicate issues or double-deduct.
	v.Evaluate(ann)
	assert.Equal(t, types.StatusFlaggedForReview, ann.Status)
	assert.Equal(t, []string{"Interview-level synthesis unavailable", "Low turn coverage: 75.0%"}, ann.Issues)
	assert.InDelta(t, 0.85, ann.QualityScore, 1e-9)
}

func TestEvaluateRejectsWrongState(t *testing.T) {
	ann := mergedArtifact(100.0, 0.9)
	ann.Status = types.StatusPending
	testValidator().Evaluate(ann)

	assert.Equal(t, types.StatusPending, ann.Status)
	assert.Zero(t, ann.QualityScore)
}

func TestReportFor(t *testing.T) {
	ann := mergedArtifact(75.0, 0.8)
	ann.Stats = types.ProcessingStats{CostUSD: 0.42, APICalls: 5, ProcessingSeconds: 12.5}
	testValidator().Evaluate(ann)

	report := ReportFor(ann)
	assert.Equal(t, "cit-042", report.InterviewID)
	assert.Equal(t, types.StatusFlaggedForReview, report.Status)
	assert.InDelta(t, 0.85, report.QualityScore, 1e-9)
	assert.Equal(t, 75.0, report.CoveragePercentage)
	assert.Equal(t, 12, report.AnalyzedTurns)
	assert.Equal(t, 16, report.TotalTurns)
	assert.Equal(t, 0.42, report.CostUSD)
	assert.Equal(t, 5, report.APICalls)
	assert.Equal(t, []string{"Low turn coverage: 75.0%"}, report.Issues)
}

func TestSummarize(t *testing.T) {
	reports := []types.InterviewReport{
		{InterviewID: "cit-003", Status: types.StatusFlaggedForReview, QualityScore: 0.85, CoveragePercentage: 75.0, CostUSD: 0.30, APICalls: 5},
		{InterviewID: "cit-001", Status: types.StatusAccepted, QualityScore: 1.0, CoveragePercentage: 100.0, CostUSD: 0.20, APICalls: 3},
		{InterviewID: "cit-002", Status: types.StatusAccepted, QualityScore: 1.0, CoveragePercentage: 100.0, CostUSD: 0.25, APICalls: 3},
		{InterviewID: "cit-004", Status: types.StatusFlaggedForReview, QualityScore: 0.70, CoveragePercentage: 50.0, CostUSD: 0.10, APICalls: 2},
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	summary := Summarize(reports, "run-7", now)

	assert.Equal(t, "run-7", summary.RunID)
	assert.Equal(t, now, summary.GeneratedAt)
	assert.Equal(t, 4, summary.TotalInterviews)
	assert.Equal(t, 2, summary.Accepted)
	assert.Equal(t, 2, summary.Flagged)
	assert.Equal(t, 50.0, summary.SuccessRate)
	assert.InDelta(t, 0.8875, summary.AverageQuality, 1e-9)
	assert.InDelta(t, 81.25, summary.AverageCoverage, 1e-9)

	// Aggregate cost is the exact sum of the per-interview costs.
	assert.InDelta(t, 0.85, summary.TotalCostUSD, 1e-9)
	assert.InDelta(t, 0.2125, summary.AverageCostUSD, 1e-9)
	assert.Equal(t, 13, summary.TotalAPICalls)

	assert.Equal(t, 2, summary.Distribution.High)
	assert.Equal(t, 1, summary.Distribution.Medium)
	assert.Equal(t, 1, summary.Distribution.Low)

	ids := make([]string, 0, len(summary.Interviews))
	for _, r := range summary.Interviews {
		ids = append(ids, r.InterviewID)
	}
	assert.Equal(t, []string{"cit-001", "cit-002", "cit-003", "cit-004"}, ids)

	require.NotPanics(t, func() { Summarize(nil, "run-7", now) })
	empty := Summarize(nil, "run-7", now)
	assert.Zero(t, empty.TotalInterviews)
	assert.Zero(t, empty.SuccessRate)
}
