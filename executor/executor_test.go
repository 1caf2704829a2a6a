package executor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/trueleo/rusher/datastore"
	"github.com/trueleo/rusher/executor"
	"github.com/trueleo/rusher/outcome"
	"github.com/trueleo/rusher/telemetry"
	"github.com/trueleo/rusher/vu"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func noopBuilder() vu.Builder {
	return vu.BuilderFunc(func(ctx context.Context, store *datastore.Store) (vu.User, error) {
		return vu.Func(func(ctx context.Context) outcome.Outcome { return nil }), nil
	})
}

func countingBuilder(calls *atomic.Uint64) vu.Builder {
	return vu.BuilderFunc(func(ctx context.Context, store *datastore.Store) (vu.User, error) {
		return vu.Func(func(ctx context.Context) outcome.Outcome {
			calls.Add(1)
			return nil
		}), nil
	})
}

func drainOutcomes(out <-chan outcome.Outcome) []outcome.Outcome {
	var all []outcome.Outcome
	for o := range out {
		all = append(all, o)
	}
	return all
}

func TestOnceRunsExactlyOneIteration(t *testing.T) {
	t.Parallel()
	bridge := telemetry.New(64, 50*time.Millisecond)
	defer drainBridge(bridge)()

	exec, err := executor.New(1, 1, executor.NewOnce(), noopBuilder(), datastore.New(), bridge, nil)
	require.NoError(t, err)

	task, out := exec.Execute(0)
	done := make(chan []outcome.Outcome, 1)
	go func() { done <- drainOutcomes(out) }()

	require.NoError(t, task(context.Background()))
	outcomes := <-done
	assert.Len(t, outcomes, 1)
	assert.Nil(t, outcomes[0])
}

func TestPerUserRunsExactlyUsersTimesIterations(t *testing.T) {
	t.Parallel()
	bridge := telemetry.New(64, 50*time.Millisecond)
	defer drainBridge(bridge)()

	var calls atomic.Uint64
	exec, err := executor.New(1, 1, executor.NewPerUser(3, 4), countingBuilder(&calls), datastore.New(), bridge, nil)
	require.NoError(t, err)

	task, out := exec.Execute(0)
	done := make(chan []outcome.Outcome, 1)
	go func() { done <- drainOutcomes(out) }()

	require.NoError(t, task(context.Background()))
	outcomes := <-done
	assert.Len(t, outcomes, 12)
	assert.EqualValues(t, 12, calls.Load())
}

func TestConstantKeepsUsersActiveForDuration(t *testing.T) {
	t.Parallel()
	bridge := telemetry.New(64, 50*time.Millisecond)
	defer drainBridge(bridge)()

	exec, err := executor.New(1, 1, executor.NewConstant(4, 150*time.Millisecond), noopBuilder(), datastore.New(), bridge, nil)
	require.NoError(t, err)

	task, out := exec.Execute(0)
	start := time.Now()
	done := make(chan []outcome.Outcome, 1)
	go func() { done <- drainOutcomes(out) }()

	require.NoError(t, task(context.Background()))
	elapsed := time.Since(start)
	outcomes := <-done

	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.NotEmpty(t, outcomes)
}

func TestSharedCapsTotalIterationsWithOverIssuance(t *testing.T) {
	t.Parallel()
	bridge := telemetry.New(64, 50*time.Millisecond)
	defer drainBridge(bridge)()

	const users, iterations = 2, 10
	builder := vu.BuilderFunc(func(ctx context.Context, store *datastore.Store) (vu.User, error) {
		return vu.Func(func(ctx context.Context) outcome.Outcome {
			time.Sleep(5 * time.Millisecond)
			return nil
		}), nil
	})

	exec, err := executor.New(1, 1, executor.NewShared(users, iterations, 2*time.Second), builder, datastore.New(), bridge, nil)
	require.NoError(t, err)

	task, out := exec.Execute(0)
	done := make(chan []outcome.Outcome, 1)
	go func() { done <- drainOutcomes(out) }()

	require.NoError(t, task(context.Background()))
	outcomes := <-done

	assert.GreaterOrEqual(t, len(outcomes), iterations)
	assert.LessOrEqual(t, len(outcomes), iterations+users-1)
}

func TestRampingUserPoolGrowsToLargestTarget(t *testing.T) {
	t.Parallel()
	bridge := telemetry.New(64, 20*time.Millisecond)
	defer drainBridge(bridge)()

	var builds atomic.Uint64
	builder := vu.BuilderFunc(func(ctx context.Context, store *datastore.Store) (vu.User, error) {
		builds.Add(1)
		return vu.Func(func(ctx context.Context) outcome.Outcome { return nil }), nil
	})

	stages := []executor.Stage{
		{Duration: 40 * time.Millisecond, Target: 1},
		{Duration: 40 * time.Millisecond, Target: 3},
		{Duration: 40 * time.Millisecond, Target: 2},
	}
	exec, err := executor.New(1, 1, executor.NewRampingUser(1, stages), builder, datastore.New(), bridge, nil)
	require.NoError(t, err)

	task, out := exec.Execute(0)
	done := make(chan []outcome.Outcome, 1)
	go func() { done <- drainOutcomes(out) }()

	require.NoError(t, task(context.Background()))
	<-done

	// One pre-allocated user, two more for the target-3 stage, none for the
	// later target-2 stage.
	assert.EqualValues(t, 3, builds.Load())
}

func TestConstantArrivalRateRespectsMaxUsers(t *testing.T) {
	t.Parallel()
	bridge := telemetry.New(64, 20*time.Millisecond)
	defer drainBridge(bridge)()

	var builds atomic.Uint64
	builder := vu.BuilderFunc(func(ctx context.Context, store *datastore.Store) (vu.User, error) {
		builds.Add(1)
		return vu.Func(func(ctx context.Context) outcome.Outcome {
			time.Sleep(20 * time.Millisecond)
			return nil
		}), nil
	})

	cfg := executor.NewConstantArrivalRate(1, executor.Rate{Count: 10, Window: 100 * time.Millisecond}, 5, 200*time.Millisecond)
	exec, err := executor.New(1, 1, cfg, builder, datastore.New(), bridge, nil)
	require.NoError(t, err)

	task, out := exec.Execute(0)
	done := make(chan []outcome.Outcome, 1)
	go func() { done <- drainOutcomes(out) }()

	require.NoError(t, task(context.Background()))
	outcomes := <-done
	assert.NotEmpty(t, outcomes)
	assert.LessOrEqual(t, builds.Load(), uint64(5))
}

func TestTerminationErrorIsForwardedNotSwallowed(t *testing.T) {
	t.Parallel()
	bridge := telemetry.New(64, 50*time.Millisecond)
	defer drainBridge(bridge)()

	builder := vu.BuilderFunc(func(ctx context.Context, store *datastore.Store) (vu.User, error) {
		return vu.Func(func(ctx context.Context) outcome.Outcome {
			return outcome.Termination(assert.AnError)
		}), nil
	})

	exec, err := executor.New(1, 1, executor.NewOnce(), builder, datastore.New(), bridge, nil)
	require.NoError(t, err)

	task, out := exec.Execute(0)
	done := make(chan []outcome.Outcome, 1)
	go func() { done <- drainOutcomes(out) }()

	require.NoError(t, task(context.Background()))
	outcomes := <-done
	require.Len(t, outcomes, 1)
	assert.True(t, outcome.IsTermination(outcomes[0]))
}

func TestPanicInUserOperationBecomesTerminationError(t *testing.T) {
	t.Parallel()
	bridge := telemetry.New(64, 50*time.Millisecond)
	defer drainBridge(bridge)()

	builder := vu.BuilderFunc(func(ctx context.Context, store *datastore.Store) (vu.User, error) {
		return vu.Func(func(ctx context.Context) outcome.Outcome {
			panic("boom")
		}), nil
	})

	exec, err := executor.New(1, 1, executor.NewOnce(), builder, datastore.New(), bridge, nil)
	require.NoError(t, err)

	task, out := exec.Execute(0)
	done := make(chan []outcome.Outcome, 1)
	go func() { done <- drainOutcomes(out) }()

	require.NoError(t, task(context.Background()))
	outcomes := <-done
	require.Len(t, outcomes, 1)
	assert.True(t, outcome.IsTermination(outcomes[0]))
}

// drainBridge returns a cleanup func that drains and closes bridge so
// telemetry goroutines never leak past a test, keeping goleak's TestMain
// verification clean.
func drainBridge(bridge *telemetry.Bridge) func() {
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case _, ok := <-bridge.Messages():
				if !ok {
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return func() {
		bridge.End()
		close(stop)
	}
}
