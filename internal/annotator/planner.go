package annotator

import (
	"interview-insights-go/internal/types"
)

// PlanBatches partitions turns into consecutive, non-overlapping batches
// of at most size turns; the last batch may be smaller. The partition is
// deterministic and order-preserving. Empty input plans zero batches.
func PlanBatches(turns []types.Turn, size int) []types.Batch {
	if size < 1 || len(turns) == 0 {
		return nil
	}

	batches := make([]types.Batch, 0, (len(turns)+size-1)/size)
	for start := 0; start < len(turns); start += size {
		end := min(start+size, len(turns))
		batches = append(batches, types.Batch{
			Index: len(batches),
			Turns: turns[start:end],
		})
	}
	return batches
}
