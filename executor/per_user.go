package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trueleo/rusher/outcome"
)

// executePerUser implements spec.md §4.3's PerUser discipline: each of
// users drivers performs exactly iterations operations, with no deadline.
func (e *Executor) executePerUser(priorExecutorDuration time.Duration) (Task, <-chan outcome.Outcome) {
	out := make(chan outcome.Outcome, outcomeBufferSize)

	task := func(ctx context.Context) error {
		defer close(out)

		e.bridge.ExecutorStarted(e.id, time.Now(), priorExecutorDuration)
		defer e.bridge.ExecutorEnded(e.id)
		e.bridge.SetUsers(e.id, e.cfg.Users, e.cfg.Users)
		totalIteration := e.cfg.Users * e.cfg.Iterations
		e.bridge.SetTotals(e.id, &totalIteration, nil)

		g, gctx := errgroup.WithContext(ctx)
		for i := uint64(0); i < e.cfg.Users; i++ {
			g.Go(func() error {
				user, err := e.builder.Build(gctx, e.store)
				if err != nil {
					return fmt.Errorf("executor: build user: %w", err)
				}
				for j := uint64(0); j < e.cfg.Iterations; j++ {
					if gctx.Err() != nil {
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
