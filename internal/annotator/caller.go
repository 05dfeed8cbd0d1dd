package annotator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"interview-insights-go/internal/budget"
	"interview-insights-go/internal/config"
	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/llm"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/metrics"
	"interview-insights-go/internal/types"
)

// CallStats is the spend accounting for one logical annotation call,
// including its failed attempts. It is attributed to the parent interview
// whether or not the call eventually succeeded.
type CallStats struct {
	Calls            int
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

func (s *CallStats) add(other CallStats) {
	s.Calls += other.Calls
	s.PromptTokens += other.PromptTokens
	s.CompletionTokens += other.CompletionTokens
	s.CostUSD += other.CostUSD
}

// Caller issues annotation calls against one provider with bounded
// retries, charging every attempt to the shared budget tracker.
type Caller struct {
	provider llm.Provider
	prompts  *PromptBuilder
	schema   *config.AnnotationSchema
	tracker  *budget.Tracker
	pricing  budget.Pricing
	cfg      config.AnnotationConfig
	llmCfg   config.LLMConfig
	log      *logger.Logger
}

func NewCaller(
	provider llm.Provider,
	schema *config.AnnotationSchema,
	tracker *budget.Tracker,
	pricing budget.Pricing,
	cfg config.AnnotationConfig,
	llmCfg config.LLMConfig,
	log *logger.Logger,
) *Caller {
	return &Caller{
		provider: provider,
		prompts:  NewPromptBuilder(schema),
		schema:   schema,
		tracker:  tracker,
		pricing:  pricing,
		cfg:      cfg,
		llmCfg:   llmCfg,
		log:      log,
	}
}

// Model reports the configured model name, recorded on artifacts.
func (c *Caller) Model() string {
	return c.llmCfg.Model
}

// AnnotateBatch runs one per-batch annotation call. On success the results
// cover every turn of the batch in turn order.
func (c *Caller) AnnotateBatch(ctx context.Context, iv *types.Interview, batch types.Batch) ([]types.AnnotationResult, CallStats, error) {
	req := llm.Request{
		System:      c.prompts.BatchSystem(),
		User:        c.prompts.BatchUser(batch),
		MaxTokens:   c.llmCfg.MaxTokens,
		Temperature: c.llmCfg.Temperature,
		ForceJSON:   true,
	}

	var results []types.AnnotationResult
	stats, err := c.callWithRetry(ctx, req, "batch", func(content string) error {
		parsed, parseErr := parseBatchResponse(content, batch, c.schema)
		if parseErr != nil {
			return parseErr
		}
		results = parsed
		return nil
	})

	status := "ok"
	if err != nil {
		status = "failed"
		c.log.WithInterview(iv.ID).WithFields(map[string]interface{}{
			"batch":    batch.Index,
			"attempts": stats.Calls,
		}).WithError(err).Warn("Batch annotation failed, turns excluded from coverage")
	}
	metrics.RecordBatchCall(c.provider.Name(), status)

	return results, stats, err
}

// Synthesize runs the interview-level pass over the whole transcript.
func (c *Caller) Synthesize(ctx context.Context, iv *types.Interview) (*types.InterviewSynthesis, CallStats, error) {
	req := llm.Request{
		System:      c.prompts.SynthesisSystem(),
		User:        c.prompts.SynthesisUser(iv),
		MaxTokens:   c.llmCfg.MaxTokens,
		Temperature: c.llmCfg.Temperature,
		ForceJSON:   true,
	}

	var synthesis *types.InterviewSynthesis
	stats, err := c.callWithRetry(ctx, req, "synthesis", func(content string) error {
		parsed, parseErr := parseSynthesisResponse(content)
		if parseErr != nil {
			return parseErr
		}
		synthesis = parsed
		return nil
	})

	status := "ok"
	if err != nil {
		status = "failed"
		c.log.WithInterview(iv.ID).WithError(err).Warn("Synthesis pass failed")
	}
	metrics.RecordSynthesisCall(c.provider.Name(), status)

	return synthesis, stats, err
}

// callWithRetry reserves budget, issues the call, and parses the reply,
// retrying transient failures and malformed responses up to the configured
// bound. Tokens from failed attempts still settle into the budget and the
// returned stats: a batch that ultimately fails was still paid for.
func (c *Caller) callWithRetry(ctx context.Context, req llm.Request, pass string, parse func(content string) error) (CallStats, error) {
	stats := CallStats{}
	estimate := c.pricing.Estimate(len(req.System)+len(req.User), req.MaxTokens)
	attempt := 0

	op := func() error {
		if err := c.tracker.Reserve(estimate); err != nil {
			metrics.RecordBudgetRefusal()
			return backoff.Permanent(err)
		}

		attempt++
		if attempt > 1 {
			metrics.RecordRetry()
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()

		observe := metrics.ObserveAnnotationLatency(c.provider.Name(), pass)
		resp, err := c.provider.Complete(callCtx, req)
		observe()

		if err != nil {
			c.tracker.Release(estimate)
			if !apperrors.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			c.log.WithError(err).WithFields(map[string]interface{}{
				"pass": pass, "attempt": attempt,
			}).Debug("Annotation attempt failed")
			return err
		}

		actual := c.pricing.Cost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		c.tracker.Settle(estimate, actual)
		stats.Calls++
		stats.PromptTokens += resp.Usage.PromptTokens
		stats.CompletionTokens += resp.Usage.CompletionTokens
		stats.CostUSD += actual
		metrics.AddTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		metrics.AddCost(actual)

		if parseErr := parse(resp.Content); parseErr != nil {
			c.log.WithError(parseErr).WithFields(map[string]interface{}{
				"pass": pass, "attempt": attempt,
			}).Debug("Annotation attempt returned malformed payload")
			return parseErr
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryBackoff
	if bo.InitialInterval <= 0 {
		bo.InitialInterval = 500 * time.Millisecond
	}
	bo.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.cfg.MaxRetries)), ctx))
	return stats, err
}
