package executor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trueleo/rusher/outcome"
	"github.com/trueleo/rusher/vu"
)

// lockedUser pairs a user with the exclusive-use lock the arrival-rate pool
// needs: the invariant "at most one in-flight operation per user" is
// enforced here with a try-lock instead of an owning driver loop, since the
// pool is shared across the cyclic scan.
type lockedUser struct {
	mu   sync.Mutex
	user vu.User
}

// acquireNext scans the pool once, starting at start, for the first user
// whose lock is free. Returning false after one full pass — rather than
// spinning until one frees, as the Rust original's infinite cyclic iterator
// does — keeps a stalled window from burning CPU; see DESIGN.md.
func acquireNext(pool []*lockedUser, start int) (*lockedUser, int, bool) {
	n := len(pool)
	if n == 0 {
		return nil, 0, false
	}
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if pool[idx].mu.TryLock() {
			return pool[idx], idx, true
		}
	}
	return nil, 0, false
}

// executeRampingArrivalRate implements spec.md §4.3's RampingArrivalRate
// discipline (and, via a single-stage Config, ConstantArrivalRate): an open
// model that starts operations at a target rate per window, growing the
// user pool on demand up to MaxUsers.
func (e *Executor) executeRampingArrivalRate(priorExecutorDuration time.Duration) (Task, <-chan outcome.Outcome) {
	out := make(chan outcome.Outcome, outcomeBufferSize)

	task := func(ctx context.Context) error {
		defer close(out)

		e.bridge.ExecutorStarted(e.id, time.Now(), priorExecutorDuration)
		defer e.bridge.ExecutorEnded(e.id)

		var totalDuration time.Duration
		for _, s := range e.cfg.RateStages {
			totalDuration += s.Duration
		}
		e.bridge.SetTotals(e.id, nil, &totalDuration)

		built, err := e.buildUsers(ctx, e.cfg.PreAllocate)
		if err != nil {
			return err
		}
		pool := make([]*lockedUser, 0, len(built))
		for _, u := range built {
			pool = append(pool, &lockedUser{user: u})
		}
		e.bridge.SetUsers(e.id, uint64(len(pool)), e.cfg.MaxUsers)

		cycleIdx := 0
		for stageIdx, stage := range e.cfg.RateStages {
			if ctx.Err() != nil {
				return nil
			}
			e.bridge.SetStage(e.id, uint64(stageIdx+1), uint64(len(e.cfg.RateStages)), stage.Duration)

			pool, cycleIdx, err = e.runArrivalStage(ctx, pool, cycleIdx, stage, out)
			if err != nil {
				return err
			}
		}
		return nil
	}

	return task, out
}

func (e *Executor) runArrivalStage(ctx context.Context, pool []*lockedUser, cycleIdx int, stage RateStage, out chan<- outcome.Outcome) ([]*lockedUser, int, error) {
	stageDeadline := time.Now().Add(stage.Duration)

	for time.Now().Before(stageDeadline) {
		windowDeadline := time.Now().Add(stage.Rate.Window)
		var started uint64

		g, gctx := errgroup.WithContext(ctx)
		for started < stage.Rate.Count && time.Now().Before(windowDeadline) && time.Now().Before(stageDeadline) {
			lu, idx, ok := acquireNext(pool, cycleIdx)
			if !ok {
				break
			}
			cycleIdx = (idx + 1) % len(pool)
			started++
			g.Go(func() error {
				defer lu.mu.Unlock()
				sendOutcome(gctx, out, e.runIteration(gctx, lu.user))
				return nil
			})
		}
		_ = g.Wait()

		if started < stage.Rate.Count && uint64(len(pool)) < e.cfg.MaxUsers {
			need := stage.Rate.Count - started
			if room := e.cfg.MaxUsers - uint64(len(pool)); need > room {
				need = room
			}
			grown, err := e.buildUsers(ctx, need)
			if err != nil {
				return pool, cycleIdx, err
			}
			for _, u := range grown {
				pool = append(pool, &lockedUser{user: u})
			}
			e.bridge.SetUsers(e.id, uint64(len(pool)), e.cfg.MaxUsers)
		}

		if remaining := time.Until(windowDeadline); remaining > 0 {
			select {
			case <-time.After(remaining):
			case <-ctx.Done():
				return pool, cycleIdx, nil
			}
		}
	}

	return pool, cycleIdx, nil
}
