package annotator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-insights-go/internal/budget"
	"interview-insights-go/internal/config"
	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/llm"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

// scriptedProvider replays a fixed sequence of replies; the last entry
// repeats once the script runs out.
type scriptedProvider struct {
	mu      sync.Mutex
	script  []scriptedReply
	calls   int
	lastReq llm.Request
}

type scriptedReply struct {
	content string
	err     error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.calls
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	p.calls++
	p.lastReq = req

	reply := p.script[idx]
	if reply.err != nil {
		return nil, reply.err
	}
	return &llm.Response{
		Content: reply.content,
		Usage:   llm.Usage{PromptTokens: 100, CompletionTokens: 50},
		Model:   "test-model",
	}, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testPricing() budget.Pricing {
	return budget.Pricing{PromptPer1K: 0.005, CompletionPer1K: 0.015}
}

// costPerCall is what the scripted 100/50 usage settles to under
// testPricing.
const costPerCall = 0.00125

func newTestCaller(provider llm.Provider, tracker *budget.Tracker, maxRetries int) *Caller {
	cfg := config.AnnotationConfig{
		BatchSize:      4,
		MaxRetries:     maxRetries,
		RetryBackoff:   time.Millisecond,
		RequestTimeout: 5 * time.Second,
	}
	llmCfg := config.LLMConfig{Model: "test-model", Temperature: 0.2, MaxTokens: 512}
	return NewCaller(provider, config.DefaultSchema(), tracker, testPricing(), cfg, llmCfg, logger.New())
}

func validBatchJSON(batch types.Batch) string {
	entries := make([]string, 0, len(batch.Turns))
	for _, turn := range batch.Turns {
		entries = append(entries, fmt.Sprintf(
			`{"turn_id": %d, "functional_tags": ["answer"], "content_tags": ["transport"], "evidence_tags": ["observation"], "emotional_tags": ["neutral"], "confidence": 0.9}`,
			turn.TurnID))
	}
	return `{"turns": [` + strings.Join(entries, ", ") + `]}`
}

const validSynthesisJSON = `{"priorities": ["transport"], "narrative_features": ["personal anecdotes"], "participant_profile": "Engaged resident.", "confidence": 0.9}`

func TestAnnotateBatchFirstTry(t *testing.T) {
	batch := twoTurnBatch()
	provider := &scriptedProvider{script: []scriptedReply{{content: validBatchJSON(batch)}}}
	tracker := budget.NewTracker(0)
	caller := newTestCaller(provider, tracker, 3)
	iv := &types.Interview{ID: "iv-1", Turns: batch.Turns}

	results, stats, err := caller.AnnotateBatch(context.Background(), iv, batch)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, provider.callCount())
	assert.Equal(t, 1, stats.Calls)
	assert.Equal(t, 100, stats.PromptTokens)
	assert.Equal(t, 50, stats.CompletionTokens)
	assert.InDelta(t, costPerCall, stats.CostUSD, 1e-9)
	assert.InDelta(t, costPerCall, tracker.SpentUSD(), 1e-9)

	assert.Contains(t, provider.lastReq.User, "[4] interviewer:")
	assert.Contains(t, provider.lastReq.User, "[5] participant:")
	assert.True(t, provider.lastReq.ForceJSON)
}

func TestAnnotateBatchRetriesTransientFailures(t *testing.T) {
	batch := twoTurnBatch()
	provider := &scriptedProvider{script: []scriptedReply{
		{err: fmt.Errorf("connection reset")},
		{err: fmt.Errorf("connection reset")},
		{content: validBatchJSON(batch)},
	}}
	tracker := budget.NewTracker(0)
	caller := newTestCaller(provider, tracker, 3)
	iv := &types.Interview{ID: "iv-1", Turns: batch.Turns}

	results, stats, err := caller.AnnotateBatch(context.Background(), iv, batch)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 3, provider.callCount())
	// Failed transport attempts return no usage, so only the final call
	// settles into stats and the tracker.
	assert.Equal(t, 1, stats.Calls)
	assert.InDelta(t, costPerCall, tracker.SpentUSD(), 1e-9)
}

func TestAnnotateBatchRetriesMalformedThenSucceeds(t *testing.T) {
	batch := twoTurnBatch()
	provider := &scriptedProvider{script: []scriptedReply{
		{content: "I refuse to answer in JSON."},
		{content: validBatchJSON(batch)},
	}}
	tracker := budget.NewTracker(0)
	caller := newTestCaller(provider, tracker, 3)
	iv := &types.Interview{ID: "iv-1", Turns: batch.Turns}

	results, stats, err := caller.AnnotateBatch(context.Background(), iv, batch)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, provider.callCount())
	// The malformed attempt still consumed tokens; both attempts count.
	assert.Equal(t, 2, stats.Calls)
	assert.InDelta(t, 2*costPerCall, stats.CostUSD, 1e-9)
	assert.InDelta(t, 2*costPerCall, tracker.SpentUSD(), 1e-9)
}

func TestAnnotateBatchExhaustsRetries(t *testing.T) {
	batch := twoTurnBatch()
	provider := &scriptedProvider{script: []scriptedReply{{err: fmt.Errorf("upstream unavailable")}}}
	tracker := budget.NewTracker(0)
	caller := newTestCaller(provider, tracker, 2)
	iv := &types.Interview{ID: "iv-1", Turns: batch.Turns}

	results, stats, err := caller.AnnotateBatch(context.Background(), iv, batch)
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Equal(t, 3, provider.callCount(), "two retries on top of the first attempt")
	assert.Equal(t, 0, stats.Calls)
	assert.Zero(t, tracker.SpentUSD(), "failed transport attempts release their reservation")
}

func TestAnnotateBatchPersistentlyMalformed(t *testing.T) {
	batch := twoTurnBatch()
	provider := &scriptedProvider{script: []scriptedReply{{content: "{not json"}}}
	tracker := budget.NewTracker(0)
	caller := newTestCaller(provider, tracker, 3)
	iv := &types.Interview{ID: "iv-1", Turns: batch.Turns}

	results, stats, err := caller.AnnotateBatch(context.Background(), iv, batch)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMalformedResponse))
	assert.Nil(t, results)
	assert.Equal(t, 4, provider.callCount())
	assert.Equal(t, 4, stats.Calls)
	assert.InDelta(t, 4*costPerCall, tracker.SpentUSD(), 1e-9)
}

func TestAnnotateBatchRejectionIsNotRetried(t *testing.T) {
	batch := twoTurnBatch()
	provider := &scriptedProvider{script: []scriptedReply{
		{err: apperrors.NewProviderRejected("invalid request", map[string]interface{}{"http_status": 400})},
	}}
	tracker := budget.NewTracker(0)
	caller := newTestCaller(provider, tracker, 3)
	iv := &types.Interview{ID: "iv-1", Turns: batch.Turns}

	_, _, err := caller.AnnotateBatch(context.Background(), iv, batch)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrProviderRejected))
	assert.Equal(t, 1, provider.callCount())
	assert.Zero(t, tracker.SpentUSD())
}

func TestAnnotateBatchBudgetRefusal(t *testing.T) {
	batch := twoTurnBatch()
	provider := &scriptedProvider{script: []scriptedReply{{content: validBatchJSON(batch)}}}
	tracker := budget.NewTracker(0.0001)
	caller := newTestCaller(provider, tracker, 3)
	iv := &types.Interview{ID: "iv-1", Turns: batch.Turns}

	_, stats, err := caller.AnnotateBatch(context.Background(), iv, batch)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBudgetExceeded))
	assert.Equal(t, 0, provider.callCount(), "refused call never reaches the provider")
	assert.Equal(t, 0, stats.Calls)
	assert.Equal(t, int64(1), tracker.RefusedReservations())
}

func TestSynthesize(t *testing.T) {
	provider := &scriptedProvider{script: []scriptedReply{{content: validSynthesisJSON}}}
	tracker := budget.NewTracker(0)
	caller := newTestCaller(provider, tracker, 3)
	iv := &types.Interview{ID: "iv-1", Turns: twoTurnBatch().Turns}

	syn, stats, err := caller.Synthesize(context.Background(), iv)
	require.NoError(t, err)
	require.NotNil(t, syn)
	assert.Equal(t, []string{"transport"}, syn.Priorities)
	assert.Equal(t, "Engaged resident.", syn.ParticipantProfile)
	assert.Equal(t, 1, stats.Calls)
	assert.Contains(t, provider.lastReq.User, "TRANSCRIPT:")
}
