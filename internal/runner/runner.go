// Package runner sequences the pipeline stages over a corpus: annotate
// fans interviews out to a worker pool, validate applies the acceptance
// checks and writes the summary, extract renders the review workbook.
// Stage completion is recorded as marker files; each stage requires its
// predecessor's marker.
package runner

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"interview-insights-go/internal/annotator"
	"interview-insights-go/internal/budget"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/corpus"
	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/events"
	"interview-insights-go/internal/export"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/progress"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/types"
	"interview-insights-go/internal/validator"
)

const workbookFile = "validation_report.xlsx"

// Deps are the pipeline collaborators. Archive and Hub may be nil;
// Publisher handles its disabled configuration itself.
type Deps struct {
	Loader    *corpus.Loader
	Annotator *annotator.Annotator
	Validator *validator.Validator
	Store     *store.Store
	Archive   *store.Archive
	Publisher *events.Publisher
	Hub       *progress.Hub
	Tracker   *budget.Tracker
}

type Runner struct {
	cfg  *config.Config
	deps Deps
	log  *logger.Logger
}

func New(cfg *config.Config, deps Deps, log *logger.Logger) *Runner {
	return &Runner{cfg: cfg, deps: deps, log: log}
}

// NewRunID returns a fresh short run identifier.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// AnnotateResult reports what the annotate stage did with the corpus.
type AnnotateResult struct {
	RunID     string
	Documents int
	Annotated int
	Skipped   int
	Failed    int
	Remaining int
	CostUSD   float64
	Elapsed   time.Duration
}

const (
	outcomeAnnotated = "annotated"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
	outcomeAborted   = "aborted"
)

// Annotate runs the annotation stage: every corpus document becomes a
// merged artifact on disk unless one already exists and force is off.
// After the run timeout, no further documents or batches start; work
// already in flight finishes on its own request timeouts.
func (r *Runner) Annotate(ctx context.Context, runID string, force bool) (*AnnotateResult, error) {
	if runID == "" {
		runID = NewRunID()
	}
	log := r.log.WithRun(runID)
	start := time.Now()
	deadline := start.Add(r.cfg.Annotation.RunTimeout)

	docs, err := r.deps.Loader.Documents()
	if err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"documents": len(docs),
		"workers":   r.cfg.Annotation.Workers,
		"deadline":  deadline.UTC().Format(time.RFC3339),
	}).Info("Annotation stage starting")

	result := &AnnotateResult{RunID: runID, Documents: len(docs)}
	var mu sync.Mutex

	work := func(path string) {
		outcome := r.annotateOne(ctx, path, runID, deadline, force)

		mu.Lock()
		switch outcome {
		case outcomeAnnotated:
			result.Annotated++
		case outcomeSkipped:
			result.Skipped++
		case outcomeFailed:
			result.Failed++
		case outcomeAborted:
			result.Remaining++
		}
		completed := result.Annotated + result.Skipped + result.Failed
		mu.Unlock()

		r.deps.Hub.Broadcast(progress.Update{
			Type:        progress.UpdateInterviewCompleted,
			RunID:       runID,
			InterviewID: corpus.DocumentID(path),
			Completed:   completed,
			Total:       len(docs),
			CostUSD:     r.deps.Tracker.SpentUSD(),
		})
	}

	fed := dispatch(ctx, docs, r.cfg.Annotation.Workers, deadline, r.deps.Tracker.Exceeded, work)
	result.Remaining += len(docs) - fed
	result.CostUSD = r.deps.Tracker.SpentUSD()
	result.Elapsed = time.Since(start)

	if ctx.Err() != nil {
		log.WithField("annotated", result.Annotated).Warn("Annotation stage interrupted")
		return result, ctx.Err()
	}

	if err := r.deps.Store.WriteMarker(store.StageAnnotate, store.MarkerStamp{
		RunID:       runID,
		CompletedAt: time.Now().UTC(),
		Interviews:  result.Annotated + result.Skipped,
	}); err != nil {
		return result, err
	}

	log.WithFields(map[string]interface{}{
		"annotated": result.Annotated,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
		"remaining": result.Remaining,
		"cost_usd":  result.CostUSD,
		"elapsed":   result.Elapsed.Round(time.Millisecond).String(),
	}).Info("Annotation stage completed")
	return result, nil
}

func (r *Runner) annotateOne(ctx context.Context, path, runID string, deadline time.Time, force bool) string {
	id := corpus.DocumentID(path)
	log := r.log.WithRun(runID).WithField("interview_id", id)

	if !force && r.deps.Store.HasAnnotation(id) {
		log.Debug("Artifact exists, skipping (use force to reprocess)")
		return outcomeSkipped
	}

	iv, err := r.deps.Loader.Load(path)
	if err != nil {
		log.WithError(err).Warn("Skipping document")
		return outcomeFailed
	}

	r.deps.Hub.Broadcast(progress.Update{
		Type:        progress.UpdateInterviewStarted,
		RunID:       runID,
		InterviewID: iv.ID,
	})

	ann, err := r.deps.Annotator.Process(ctx, iv, runID, deadline)
	if err != nil {
		log.WithError(err).Warn("Interview aborted before completion")
		return outcomeAborted
	}

	if err := r.deps.Store.WriteAnnotation(ann); err != nil {
		log.WithError(err).Error("Cannot persist artifact")
		return outcomeFailed
	}
	if r.deps.Archive != nil {
		if err := r.deps.Archive.SaveAnnotation(ctx, ann); err != nil {
			log.WithError(err).Warn("Archive write failed, disk artifact remains authoritative")
		}
	}
	return outcomeAnnotated
}

// Validate applies the acceptance checks to every artifact, writes the
// updated artifacts and the corpus summary, and publishes events.
func (r *Runner) Validate(ctx context.Context) (*types.ValidationSummary, error) {
	stamp, err := r.deps.Store.ReadMarker(store.StageAnnotate)
	if err != nil {
		return nil, apperrors.Wrap(err, "validate requires a completed annotate stage")
	}
	log := r.log.WithRun(stamp.RunID)

	anns, err := r.deps.Store.ListAnnotations()
	if err != nil {
		return nil, err
	}
	if len(anns) == 0 {
		return nil, apperrors.NewNotFound("no artifacts to validate")
	}

	reports := make([]types.InterviewReport, 0, len(anns))
	for _, ann := range anns {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r.deps.Validator.Evaluate(ann)
		if err := r.deps.Store.WriteAnnotation(ann); err != nil {
			return nil, err
		}
		if r.deps.Archive != nil {
			if err := r.deps.Archive.SaveAnnotation(ctx, ann); err != nil {
				log.WithError(err).Warn("Archive write failed, disk artifact remains authoritative")
			}
		}
		r.deps.Publisher.PublishInterview(ann)
		reports = append(reports, validator.ReportFor(ann))
	}

	summary := validator.Summarize(reports, stamp.RunID, time.Now())
	if err := r.deps.Store.WriteSummary(summary); err != nil {
		return nil, err
	}
	if r.deps.Archive != nil {
		if err := r.deps.Archive.SaveSummary(ctx, summary); err != nil {
			log.WithError(err).Warn("Archive write failed, disk summary remains authoritative")
		}
	}
	r.deps.Publisher.PublishRunCompleted(summary)
	r.deps.Hub.Broadcast(progress.Update{
		Type:      progress.UpdateRunCompleted,
		RunID:     summary.RunID,
		Completed: summary.TotalInterviews,
		Total:     summary.TotalInterviews,
		CostUSD:   summary.TotalCostUSD,
	})

	if err := r.deps.Store.WriteMarker(store.StageValidate, store.MarkerStamp{
		RunID:       stamp.RunID,
		CompletedAt: time.Now().UTC(),
		Interviews:  summary.TotalInterviews,
	}); err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"interviews":   summary.TotalInterviews,
		"accepted":     summary.Accepted,
		"flagged":      summary.Flagged,
		"success_rate": summary.SuccessRate,
		"total_cost":   summary.TotalCostUSD,
	}).Info("Validation stage completed")
	return summary, nil
}

// Extract renders the review workbook from the validation summary.
func (r *Runner) Extract(ctx context.Context) (string, error) {
	stamp, err := r.deps.Store.ReadMarker(store.StageValidate)
	if err != nil {
		return "", apperrors.Wrap(err, "extract requires a completed validate stage")
	}

	summary, err := r.deps.Store.ReadSummary()
	if err != nil {
		return "", err
	}

	path := filepath.Join(r.deps.Store.Dir(), workbookFile)
	if err := export.WriteWorkbook(path, summary); err != nil {
		return "", err
	}

	if err := r.deps.Store.WriteMarker(store.StageExtract, store.MarkerStamp{
		RunID:       stamp.RunID,
		CompletedAt: time.Now().UTC(),
		Interviews:  summary.TotalInterviews,
	}); err != nil {
		return "", err
	}

	r.log.WithRun(stamp.RunID).WithField("workbook", path).Info("Extract stage completed")
	return path, nil
}

// Run executes annotate, validate, and extract in order under one run id
// and returns the summary and the workbook path.
func (r *Runner) Run(ctx context.Context, runID string, force bool) (*types.ValidationSummary, string, error) {
	if runID == "" {
		runID = NewRunID()
	}

	if _, err := r.Annotate(ctx, runID, force); err != nil {
		return nil, "", err
	}
	summary, err := r.Validate(ctx)
	if err != nil {
		return nil, "", err
	}
	path, err := r.Extract(ctx)
	if err != nil {
		return nil, "", err
	}
	return summary, path, nil
}
