package budget

import (
	"math"
	"sync/atomic"

	apperrors "interview-insights-go/internal/errors"
)

// Pricing converts provider-reported token usage into dollars.
type Pricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// Cost prices actual token usage.
func (p Pricing) Cost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1000*p.PromptPer1K +
		float64(completionTokens)/1000*p.CompletionPer1K
}

// Estimate prices a call before it is made: prompt length in characters
// approximated at four characters per token, plus the completion cap.
func (p Pricing) Estimate(promptChars, maxCompletionTokens int) float64 {
	return p.Cost(promptChars/4, maxCompletionTokens)
}

// Tracker is the process-wide spend accumulator shared by all workers.
// Amounts are stored as integral micro-dollars so concurrent updates stay
// exact. A limit of zero disables the ceiling; accumulation still happens.
type Tracker struct {
	limitMicros int64
	usedMicros  atomic.Int64
	refused     atomic.Int64
}

func NewTracker(limitUSD float64) *Tracker {
	return &Tracker{limitMicros: toMicros(limitUSD)}
}

// Reserve atomically claims an estimated spend before a call is issued.
// It fails with ErrBudgetExceeded when the claim would cross the ceiling;
// the caller must not issue the call in that case.
func (t *Tracker) Reserve(estimateUSD float64) error {
	est := toMicros(estimateUSD)
	for {
		used := t.usedMicros.Load()
		next := used + est
		if t.limitMicros > 0 && next > t.limitMicros {
			t.refused.Add(1)
			return apperrors.NewBudgetExceeded("cost ceiling would be exceeded",
				map[string]interface{}{
					"limit_usd":    fromMicros(t.limitMicros),
					"spent_usd":    fromMicros(used),
					"estimate_usd": estimateUSD,
				})
		}
		if t.usedMicros.CompareAndSwap(used, next) {
			return nil
		}
	}
}

// Settle replaces a prior reservation with the actual spend once the
// provider reports real usage. The delta may be negative.
func (t *Tracker) Settle(estimateUSD, actualUSD float64) {
	t.usedMicros.Add(toMicros(actualUSD) - toMicros(estimateUSD))
}

// Release returns an unused reservation after a failed call.
func (t *Tracker) Release(estimateUSD float64) {
	t.usedMicros.Add(-toMicros(estimateUSD))
}

// SpentUSD reports total settled spend.
func (t *Tracker) SpentUSD() float64 {
	return fromMicros(t.usedMicros.Load())
}

// LimitUSD reports the configured ceiling (0 = unlimited).
func (t *Tracker) LimitUSD() float64 {
	return fromMicros(t.limitMicros)
}

// Exceeded reports whether the ceiling refuses further work.
func (t *Tracker) Exceeded() bool {
	return t.limitMicros > 0 && t.usedMicros.Load() >= t.limitMicros
}

// RefusedReservations reports how many reservations the ceiling rejected.
func (t *Tracker) RefusedReservations() int64 {
	return t.refused.Load()
}

func toMicros(usd float64) int64 {
	return int64(math.Round(usd * 1e6))
}

func fromMicros(m int64) float64 {
	return float64(m) / 1e6
}
