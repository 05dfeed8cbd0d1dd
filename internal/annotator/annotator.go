package annotator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"interview-insights-go/internal/config"
	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

const synthesisUnavailableIssue = "Interview-level synthesis unavailable"

// Annotator drives the multi-pass annotation of single interviews:
// per-batch turn annotation plus one interview-level synthesis call,
// merged into one artifact.
type Annotator struct {
	caller *Caller
	cfg    config.AnnotationConfig
	log    *logger.Logger
}

func New(caller *Caller, cfg config.AnnotationConfig, log *logger.Logger) *Annotator {
	return &Annotator{caller: caller, cfg: cfg, log: log}
}

// Process annotates one interview and returns the merged artifact. Batch
// failures are recorded, not returned: the artifact completes with reduced
// coverage. The context cancels in-flight calls on shutdown; issueDeadline,
// when non-zero, stops new batch calls once it passes while the current
// call finishes on its own timeout.
func (a *Annotator) Process(ctx context.Context, iv *types.Interview, runID string, issueDeadline time.Time) (*types.InterviewAnnotation, error) {
	start := time.Now()
	log := a.log.WithInterview(iv.ID)

	ann := &types.InterviewAnnotation{
		InterviewID: iv.ID,
		RunID:       runID,
		Status:      types.StatusPending,
		Metadata:    iv.Metadata,
		TotalTurns:  len(iv.Turns),
		Stats: types.ProcessingStats{
			StartedAt: start.UTC(),
			Model:     a.caller.Model(),
		},
	}

	batches := PlanBatches(iv.Turns, a.cfg.BatchSize)
	a.advance(ann, types.StatusInProgress)
	log.WithField("batches", len(batches)).Debug("Annotation passes starting")

	var (
		results    []types.AnnotationResult
		failed     []types.Batch
		batchStats CallStats

		synthesis *types.InterviewSynthesis
		synStats  CallStats
		synErr    error
	)

	// The synthesis pass is independent of the batch loop; run both at
	// once. Goroutines only write their own captures, merged after Wait.
	g := &errgroup.Group{}

	g.Go(func() error {
		if ctx.Err() != nil || a.pastDeadline(issueDeadline) {
			synErr = apperrors.New("synthesis pass skipped, no time left in run")
			return nil
		}
		synthesis, synStats, synErr = a.caller.Synthesize(ctx, iv)
		return nil
	})

	g.Go(func() error {
		for i, batch := range batches {
			if ctx.Err() != nil || a.pastDeadline(issueDeadline) {
				failed = append(failed, batches[i:]...)
				log.WithField("remaining_batches", len(batches)-i).
					Warn("Stopped issuing batch calls, remaining turns unanalyzed")
				return nil
			}

			res, stats, err := a.caller.AnnotateBatch(ctx, iv, batch)
			batchStats.add(stats)
			if err != nil {
				failed = append(failed, batch)
				if apperrors.Is(err, apperrors.ErrBudgetExceeded) {
					failed = append(failed, batches[i+1:]...)
					log.WithField("remaining_batches", len(batches)-i-1).
						Warn("Budget exhausted, remaining turns unanalyzed")
					return nil
				}
				continue
			}
			results = append(results, res...)
		}
		return nil
	})

	_ = g.Wait()

	Merge(ann, results, failed)
	a.advance(ann, types.StatusMerged)

	ann.Synthesis = synthesis
	if synErr != nil {
		ann.Issues = append(ann.Issues, synthesisUnavailableIssue)
	}

	ann.Stats.APICalls = batchStats.Calls + synStats.Calls
	ann.Stats.PromptTokens = batchStats.PromptTokens + synStats.PromptTokens
	ann.Stats.CompletionTokens = batchStats.CompletionTokens + synStats.CompletionTokens
	ann.Stats.CostUSD = batchStats.CostUSD + synStats.CostUSD
	ann.Stats.FinishedAt = time.Now().UTC()
	ann.Stats.ProcessingSeconds = time.Since(start).Seconds()

	log.WithFields(map[string]interface{}{
		"analyzed_turns": ann.AnalyzedTurns,
		"total_turns":    ann.TotalTurns,
		"coverage":       ann.CoveragePercentage,
		"api_calls":      ann.Stats.APICalls,
		"cost_usd":       ann.Stats.CostUSD,
	}).Info("Interview merged")

	return ann, ctx.Err()
}

func (a *Annotator) pastDeadline(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}

func (a *Annotator) advance(ann *types.InterviewAnnotation, next types.InterviewStatus) {
	if !ann.Status.CanTransitionTo(next) {
		a.log.WithFields(map[string]interface{}{
			"interview_id": ann.InterviewID,
			"from":         ann.Status,
			"to":           next,
		}).Error("Illegal status transition")
	}
	ann.Status = next
}
