package types

import "time"

// InterviewReport is the per-interview row of the validation summary.
type InterviewReport struct {
	InterviewID        string          `json:"interview_id"`
	Status             InterviewStatus `json:"status"`
	QualityScore       float64         `json:"quality_score"`
	CoveragePercentage float64         `json:"coverage_percentage"`
	AnalyzedTurns      int             `json:"analyzed_turns"`
	TotalTurns         int             `json:"total_turns"`
	OverallConfidence  float64         `json:"overall_confidence"`
	CostUSD            float64         `json:"cost_usd"`
	APICalls           int             `json:"api_calls"`
	ProcessingSeconds  float64         `json:"processing_seconds"`
	Issues             []string        `json:"issues,omitempty"`
}

// QualityDistribution buckets interviews by quality score.
type QualityDistribution struct {
	High   int `json:"high"`   // >= 0.95
	Medium int `json:"medium"` // >= 0.75
	Low    int `json:"low"`    // < 0.75
}

// ValidationSummary is the corpus-level aggregate report written by the
// validate stage and consumed by the export stage and the dashboard.
type ValidationSummary struct {
	RunID           string              `json:"run_id,omitempty"`
	GeneratedAt     time.Time           `json:"generated_at"`
	TotalInterviews int                 `json:"total_interviews"`
	Accepted        int                 `json:"accepted"`
	Flagged         int                 `json:"flagged_for_review"`
	SuccessRate     float64             `json:"success_rate"`
	AverageQuality  float64             `json:"average_quality"`
	AverageCoverage float64             `json:"average_coverage"`
	AverageCostUSD  float64             `json:"average_cost_usd"`
	TotalCostUSD    float64             `json:"total_cost_usd"`
	TotalAPICalls   int                 `json:"total_api_calls"`
	Distribution    QualityDistribution `json:"quality_distribution"`
	Interviews      []InterviewReport   `json:"interviews"`
}
