package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trueleo/rusher/outcome"
)

// executeConstant implements spec.md §4.3's Constant discipline: users
// drivers loop independently until a shared deadline, with no pacing or
// synchronization between them.
func (e *Executor) executeConstant(priorExecutorDuration time.Duration) (Task, <-chan outcome.Outcome) {
	out := make(chan outcome.Outcome, outcomeBufferSize)

	task := func(ctx context.Context) error {
		defer close(out)

		e.bridge.ExecutorStarted(e.id, time.Now(), priorExecutorDuration)
		defer e.bridge.ExecutorEnded(e.id)
		e.bridge.SetUsers(e.id, e.cfg.Users, e.cfg.Users)

		deadline := time.Now().Add(e.cfg.Duration)

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
					sendOutcome(gctx, out, e.runIteration(gctx, user))
				}
				return nil
			})
		}
		return g.Wait()
	}

	return task, out
}
