package probe

import (
	"context"
	"sync"

	"github.com/opspulse/opspulse/internal/domain"
)

// Runner sweeps a target list with bounded parallelism. Each probe is
// independent; one target's failure never aborts the others.
type Runner struct {
	Checker     Checker
	Concurrency int // 0 means one worker per target
}

func NewRunner(checker Checker, concurrency int) *Runner {
	return &Runner{Checker: checker, Concurrency: concurrency}
}

// Sweep probes every target and returns exactly one result per target,
// in input order.
func (r *Runner) Sweep(ctx context.Context, targets []domain.ServiceTarget) []Result {
	results := make([]Result, len(targets))
	if len(targets) == 0 {
		return results
	}

	limit := r.Concurrency
	if limit <= 0 || limit > len(targets) {
		limit = len(targets)
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, tgt := range targets {
		i, tgt := i, tgt
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			results[i] = r.Checker.Check(ctx, tgt)
		}()
	}

	wg.Wait()
	return results
}
