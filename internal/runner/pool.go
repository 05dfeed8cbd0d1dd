package runner

import (
	"context"
	"sync"
	"time"

	"interview-insights-go/internal/metrics"
)

// dispatch feeds paths to a fixed set of workers. Feeding stops once the
// context ends, the deadline passes, or shouldStop reports true; jobs
// already handed to a worker run to completion. Returns how many paths
// were fed.
func dispatch(ctx context.Context, paths []string, workers int, deadline time.Time, shouldStop func() bool, work func(path string)) int {
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				metrics.WorkerStarted()
				work(path)
				metrics.WorkerFinished()
			}
		}()
	}

	fed := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		if shouldStop != nil && shouldStop() {
			break
		}
		jobs <- path
		fed++
	}
	close(jobs)
	wg.Wait()
	return fed
}
