package budget

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "interview-insights-go/internal/errors"
)

func TestPricingCost(t *testing.T) {
	p := Pricing{PromptPer1K: 0.005, CompletionPer1K: 0.015}
	assert.InDelta(t, 0.005+0.015, p.Cost(1000, 1000), 1e-9)
	assert.InDelta(t, 0.0025, p.Cost(500, 0), 1e-9)
	assert.Equal(t, 0.0, p.Cost(0, 0))
}

func TestPricingEstimateUsesCharHeuristic(t *testing.T) {
	p := Pricing{PromptPer1K: 0.01, CompletionPer1K: 0.03}
	// 4000 chars ~ 1000 prompt tokens plus a 500 token completion cap.
	assert.InDelta(t, 0.01+0.015, p.Estimate(4000, 500), 1e-9)
}

func TestReserveWithinLimit(t *testing.T) {
	tr := NewTracker(1.00)
	require.NoError(t, tr.Reserve(0.40))
	require.NoError(t, tr.Reserve(0.40))
	assert.InDelta(t, 0.80, tr.SpentUSD(), 1e-9)
	assert.False(t, tr.Exceeded())
}

func TestReserveRefusesAtCeiling(t *testing.T) {
	tr := NewTracker(1.00)
	require.NoError(t, tr.Reserve(0.90))

	err := tr.Reserve(0.20)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBudgetExceeded))
	assert.Equal(t, int64(1), tr.RefusedReservations())

	// The refused reservation must not count as spend.
	assert.InDelta(t, 0.90, tr.SpentUSD(), 1e-9)
}

func TestUnlimitedTrackerNeverRefuses(t *testing.T) {
	tr := NewTracker(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, tr.Reserve(10.0))
	}
	assert.InDelta(t, 1000.0, tr.SpentUSD(), 1e-6)
	assert.False(t, tr.Exceeded())
}

func TestSettleAdjustsReservation(t *testing.T) {
	tr := NewTracker(10)
	require.NoError(t, tr.Reserve(1.00))
	tr.Settle(1.00, 0.25)
	assert.InDelta(t, 0.25, tr.SpentUSD(), 1e-9)

	tr.Release(0.25)
	assert.InDelta(t, 0.0, tr.SpentUSD(), 1e-9)
}

func TestConcurrentSettleIsExact(t *testing.T) {
	tr := NewTracker(0)
	const workers = 32
	const perWorker = 250

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := tr.Reserve(0.001); err != nil {
					t.Error(err)
					return
				}
				tr.Settle(0.001, 0.002)
			}
		}()
	}
	wg.Wait()

	assert.InDelta(t, workers*perWorker*0.002, tr.SpentUSD(), 1e-6)
}

func TestConcurrentReserveRespectsCeiling(t *testing.T) {
	tr := NewTracker(1.00)
	const workers = 16

	granted := make(chan struct{}, workers*100)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if tr.Reserve(0.01) == nil {
					granted <- struct{}{}
				}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	assert.Equal(t, 100, count, "exactly limit/estimate reservations should be granted")
	assert.True(t, tr.Exceeded())
}
