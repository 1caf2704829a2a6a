package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/trueleo/rusher/outcome"
)

func (e *Executor) executeOnce(priorExecutorDuration time.Duration) (Task, <-chan outcome.Outcome) {
	out := make(chan outcome.Outcome, 1)

	task := func(ctx context.Context) error {
		defer close(out)

		e.bridge.ExecutorStarted(e.id, time.Now(), priorExecutorDuration)
		defer e.bridge.ExecutorEnded(e.id)
		e.bridge.SetUsers(e.id, 1, 1)

		user, err := e.builder.Build(ctx, e.store)
		if err != nil {
			return fmt.Errorf("executor: build user: %w", err)
		}

		sendOutcome(ctx, out, e.runIteration(ctx, user))
		return nil
	}

	return task, out
}
