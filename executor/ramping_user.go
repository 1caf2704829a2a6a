package executor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trueleo/rusher/outcome"
	"github.com/trueleo/rusher/vu"
)

// executeRampingUser implements spec.md §4.3's RampingUser discipline: the
// user pool is monotonically non-decreasing across stages; each stage grows
// the pool to its target (if larger than the current pool) before running
// every currently-allocated user continuously until the stage deadline.
func (e *Executor) executeRampingUser(priorExecutorDuration time.Duration) (Task, <-chan outcome.Outcome) {
	out := make(chan outcome.Outcome, outcomeBufferSize)

	task := func(ctx context.Context) error {
		defer close(out)

		e.bridge.ExecutorStarted(e.id, time.Now(), priorExecutorDuration)
		defer e.bridge.ExecutorEnded(e.id)

		var totalDuration time.Duration
		for _, s := range e.cfg.Stages {
			totalDuration += s.Duration
		}
		e.bridge.SetTotals(e.id, nil, &totalDuration)

		users, err := e.buildUsers(ctx, e.cfg.PreAllocate)
		if err != nil {
			return err
		}
		maxUsers := e.cfg.PreAllocate
		e.bridge.SetUsers(e.id, uint64(len(users)), maxUsers)

		for stageIdx, stage := range e.cfg.Stages {
			if ctx.Err() != nil {
				return nil
			}

			if stage.Target > uint64(len(users)) {
				grow, err := e.buildUsers(ctx, stage.Target-uint64(len(users)))
				if err != nil {
					return err
				}
				users = append(users, grow...)
			}
			if stage.Target > maxUsers {
				maxUsers = stage.Target
			}
			e.bridge.SetUsers(e.id, uint64(len(users)), maxUsers)
			e.bridge.SetStage(e.id, uint64(stageIdx+1), uint64(len(e.cfg.Stages)), stage.Duration)

			if err := e.runStage(ctx, users, stage.Duration, out); err != nil {
				return err
			}
		}
		return nil
	}

	return task, out
}

func (e *Executor) runStage(ctx context.Context, users []vu.User, duration time.Duration, out chan<- outcome.Outcome) error {
	deadline := time.Now().Add(duration)
	g, gctx := errgroup.WithContext(ctx)
	for _, user := range users {
		user := user
		g.Go(func() error {
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
