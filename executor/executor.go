package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trueleo/rusher/datastore"
	"github.com/trueleo/rusher/outcome"
	"github.com/trueleo/rusher/telemetry"
	"github.com/trueleo/rusher/vu"
)

// outcomeBufferSize is the channel capacity backing the "unbounded, send
// never blocks in practice" contract of spec.md §5: generous buffering plus
// a runner that drains continuously.
const outcomeBufferSize = 1024

// Task is the driver returned by Execute. Running it blocks until the
// executor's discipline completes or ctx is cancelled. A non-nil error
// means the plan itself failed (e.g. a builder error), which is fatal and
// distinct from per-iteration outcomes carried on the Outcomes channel.
type Task func(ctx context.Context) error

// Executor drives one Config against a shared vu.Builder and datastore,
// reporting through a telemetry.Bridge.
type Executor struct {
	id         uint64
	scenarioID uint64
	cfg        Config
	builder    vu.Builder
	store      *datastore.Store
	bridge     *telemetry.Bridge
	log        logrus.FieldLogger
}

// New builds an Executor. id and scenarioID tag every message this executor
// emits through bridge.
func New(id, scenarioID uint64, cfg Config, builder vu.Builder, store *datastore.Store, bridge *telemetry.Bridge, log logrus.FieldLogger) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Executor{
		id:         id,
		scenarioID: scenarioID,
		cfg:        cfg,
		builder:    builder,
		store:      store,
		bridge:     bridge,
		log:        log.WithFields(logrus.Fields{"executor_id": id, "discipline": cfg.Discipline.String()}),
	}, nil
}

// Execute returns a driver task and a receive end for per-iteration
// outcomes, per spec.md §4.3. priorExecutorDuration is the wall time
// already spent by earlier executors in the same scenario, reported
// verbatim in the ExecutorStart message.
func (e *Executor) Execute(priorExecutorDuration time.Duration) (Task, <-chan outcome.Outcome) {
	switch e.cfg.Discipline {
	case Once:
		return e.executeOnce(priorExecutorDuration)
	case Constant:
		return e.executeConstant(priorExecutorDuration)
	case Shared:
		return e.executeShared(priorExecutorDuration)
	case PerUser:
		return e.executePerUser(priorExecutorDuration)
	case RampingUser:
		return e.executeRampingUser(priorExecutorDuration)
	case ConstantArrivalRate, RampingArrivalRate:
		return e.executeRampingArrivalRate(priorExecutorDuration)
	default:
		out := make(chan outcome.Outcome)
		close(out)
		return func(context.Context) error {
			return fmt.Errorf("executor: unknown discipline %d", e.cfg.Discipline)
		}, out
	}
}

// buildUsers synchronously builds n users in sequence, matching the
// original's "synchronously build" language for pool growth.
func (e *Executor) buildUsers(ctx context.Context, n uint64) ([]vu.User, error) {
	users := make([]vu.User, 0, n)
	for i := uint64(0); i < n; i++ {
		u, err := e.builder.Build(ctx, e.store)
		if err != nil {
			return nil, fmt.Errorf("executor: build user: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}

// runIteration opens a per-iteration task span, invokes the user's
// operation with panic recovery, and closes the span — emitting TaskTime.
func (e *Executor) runIteration(ctx context.Context, user vu.User) outcome.Outcome {
	taskCtx, span := e.bridge.StartTask(ctx, e.id, e.scenarioID)
	defer span.End()
	return e.callSafely(taskCtx, user)
}

func (e *Executor) callSafely(ctx context.Context, user vu.User) (out outcome.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome.AsPanic(r)
		}
	}()
	out = user.Call(ctx)
	if out != nil && !outcome.IsTermination(out) {
		e.log.WithError(out).Debug("iteration returned a non-fatal error")
	}
	return out
}

func sendOutcome(ctx context.Context, out chan<- outcome.Outcome, o outcome.Outcome) {
	select {
	case out <- o:
	case <-ctx.Done():
	}
}
