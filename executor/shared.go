package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trueleo/rusher/outcome"
)

// executeShared implements spec.md §4.3's Shared discipline: users drivers
// race to consume a shared pool of iterations, bounded by a deadline.
//
// The consumed-iteration counter starts at zero and each driver fetch-adds
// before checking the prior value against the target — see DESIGN.md for
// why this, not the original's literal "initialize the counter to the
// target" reading, is the only interpretation consistent with spec.md §8's
// invariant 2 and scenario 3. Every claimed prior value is unique, so
// exactly `iterations` operations run unless the deadline or cancellation
// stops the drivers first; no iteration beyond the target is issued.
func (e *Executor) executeShared(priorExecutorDuration time.Duration) (Task, <-chan outcome.Outcome) {
	out := make(chan outcome.Outcome, outcomeBufferSize)

	task := func(ctx context.Context) error {
		defer close(out)

		e.bridge.ExecutorStarted(e.id, time.Now(), priorExecutorDuration)
		defer e.bridge.ExecutorEnded(e.id)
		e.bridge.SetUsers(e.id, e.cfg.Users, e.cfg.Users)
		iterations := e.cfg.Iterations
		duration := e.cfg.Duration
		e.bridge.SetTotals(e.id, &iterations, &duration)

		deadline := time.Now().Add(e.cfg.Duration)
		var consumed atomic.Uint64

		g, gctx := errgroup.WithContext(ctx)
		for i := uint64(0); i < e.cfg.Users; i++ {
			g.Go(func() error {
				user, err := e.builder.Build(gctx, e.store)
				if err != nil {
					return fmt.Errorf("executor: build user: %w", err)
				}
				for time.Now().Before(deadline) {
					if gctx.Err() != nil {
						return nil
					}
					prior := consumed.Add(1) - 1
					if prior >= e.cfg.Iterations {
						return nil
					}
					sendOutcome(gctx, out, e.runIteration(gctx, user))
				}
				return nil
			})
		}
		return g.Wait()
	}

	return task, out
}
