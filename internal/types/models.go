package types

import "time"

// InterviewStatus tracks an interview through the annotation pipeline.
// Accepted and FlaggedForReview are terminal; a flagged interview is only
// reprocessed by re-running the pipeline.
type InterviewStatus string

const (
	StatusPending          InterviewStatus = "pending"
	StatusInProgress       InterviewStatus = "in_progress"
	StatusMerged           InterviewStatus = "merged"
	StatusValidated        InterviewStatus = "validated"
	StatusAccepted         InterviewStatus = "accepted"
	StatusFlaggedForReview InterviewStatus = "flagged_for_review"
)

var statusTransitions = map[InterviewStatus][]InterviewStatus{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusMerged},
	StatusMerged:     {StatusValidated},
	StatusValidated:  {StatusAccepted, StatusFlaggedForReview},
}

// CanTransitionTo reports whether moving from s to next is a legal step.
func (s InterviewStatus) CanTransitionTo(next InterviewStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s InterviewStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusFlaggedForReview
}

type SpeakerRole string

const (
	RoleInterviewer SpeakerRole = "interviewer"
	RoleParticipant SpeakerRole = "participant"
	RoleUnknown     SpeakerRole = "unknown"
)

// Turn is one utterance by one speaker. Turn IDs are 1-based sequence
// positions assigned by the segmenter and never change afterwards.
type Turn struct {
	TurnID  int         `json:"turn_id"`
	Speaker SpeakerRole `json:"speaker"`
	Text    string      `json:"text"`
}

type InterviewMetadata struct {
	Date             time.Time `json:"date"`
	Location         string    `json:"location,omitempty"`
	ParticipantCount int       `json:"participant_count,omitempty"`
	SourceFile       string    `json:"source_file,omitempty"`
}

// Interview is immutable once loaded and segmented.
type Interview struct {
	ID       string            `json:"id"`
	RawText  string            `json:"raw_text"`
	Metadata InterviewMetadata `json:"metadata"`
	Turns    []Turn            `json:"turns"`
}

// Batch groups consecutive turns for a single annotation call. Batches are
// ephemeral: they exist only between planning and merging and are never
// persisted.
type Batch struct {
	Index int
	Turns []Turn
}

// TurnIDs returns the ids of the batch's turns in order.
func (b Batch) TurnIDs() []int {
	ids := make([]int, len(b.Turns))
	for i, t := range b.Turns {
		ids[i] = t.TurnID
	}
	return ids
}

// AnnotationResult is the per-turn output of a batch annotation call. The
// tag facets are a fixed set; vocabularies come from the schema config.
type AnnotationResult struct {
	TurnID         int      `json:"turn_id"`
	FunctionalTags []string `json:"functional_tags"`
	ContentTags    []string `json:"content_tags"`
	EvidenceTags   []string `json:"evidence_tags"`
	EmotionalTags  []string `json:"emotional_tags"`
	Confidence     float64  `json:"confidence"`
}

// InterviewSynthesis is the interview-level pass output.
type InterviewSynthesis struct {
	Priorities         []string `json:"priorities"`
	NarrativeFeatures  []string `json:"narrative_features"`
	ParticipantProfile string   `json:"participant_profile"`
	Confidence         float64  `json:"confidence"`
}

// ProcessingStats accumulates cost and timing attributable to one interview.
type ProcessingStats struct {
	CostUSD           float64   `json:"cost_usd"`
	APICalls          int       `json:"api_calls"`
	PromptTokens      int       `json:"prompt_tokens"`
	CompletionTokens  int       `json:"completion_tokens"`
	ProcessingSeconds float64   `json:"processing_seconds"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	Model             string    `json:"model"`
}

// InterviewAnnotation is the final artifact for one interview: per-turn
// results in turn order, the synthesis pass, coverage and quality fields,
// and processing metadata. It is written once and never mutated afterwards.
type InterviewAnnotation struct {
	InterviewID        string              `json:"interview_id"`
	RunID              string              `json:"run_id"`
	Status             InterviewStatus     `json:"status"`
	Metadata           InterviewMetadata   `json:"metadata"`
	Turns              []AnnotationResult  `json:"turns"`
	Synthesis          *InterviewSynthesis `json:"synthesis,omitempty"`
	TotalTurns         int                 `json:"total_turns"`
	AnalyzedTurns      int                 `json:"analyzed_turns"`
	CoveragePercentage float64             `json:"coverage_percentage"`
	OverallConfidence  float64             `json:"overall_confidence"`
	UnanalyzedTurnIDs  []int               `json:"unanalyzed_turn_ids,omitempty"`
	Issues             []string            `json:"issues,omitempty"`
	QualityScore       float64             `json:"quality_score"`
	Stats              ProcessingStats     `json:"stats"`
}
