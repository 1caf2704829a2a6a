// Package engine mirrors the original's runner module: it sequences
// scenarios, owns their telemetry bridge, and optionally drives the TUI
// and web display consumers, matching spec.md §4.4's Scenario runner
// contract.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nu7hatch/gouuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/trueleo/rusher/display"
	"github.com/trueleo/rusher/executor"
	"github.com/trueleo/rusher/outcome"
	"github.com/trueleo/rusher/scenario"
	"github.com/trueleo/rusher/telemetry"
)

// mergedOutcomeBuffer sizes the per-scenario fan-in channel draining every
// plan's outcome stream, matching spec.md §5's "unbounded, send never
// blocks in practice" contract.
const mergedOutcomeBuffer = 4096

// Runner sequences a fixed list of scenarios, one at a time, cancelling the
// remainder of a run on the first TerminationError.
type Runner struct {
	scenarios []*scenario.Scenario
	opts      Options
	bridge    *telemetry.Bridge
	runID     string

	mu          sync.Mutex
	subscribers []chan telemetry.Message
}

// New builds a Runner over scenarios, in the order they should execute.
func New(scenarios []*scenario.Scenario, opts Options) *Runner {
	opts = opts.withDefaults()

	runID := "unknown"
	if id, err := uuid.NewV4(); err == nil {
		runID = id.String()
	}

	return &Runner{
		scenarios: scenarios,
		opts:      opts,
		bridge:    telemetry.New(opts.MessageBuffer, opts.TickInterval),
		runID:     runID,
	}
}

// Subscribe registers a new consumer of the message stream. Every message
// is delivered to every subscriber at least once; a slow subscriber slows
// delivery to everyone (spec.md §8 invariant 8's at-least-once guarantee
// takes priority over display responsiveness).
func (r *Runner) Subscribe(buffer int) <-chan telemetry.Message {
	ch := make(chan telemetry.Message, buffer)
	r.mu.Lock()
	r.subscribers = append(r.subscribers, ch)
	r.mu.Unlock()
	return ch
}

func (r *Runner) broadcast() {
	for msg := range r.bridge.Messages() {
		r.mu.Lock()
		subs := make([]chan telemetry.Message, len(r.subscribers))
		copy(subs, r.subscribers)
		r.mu.Unlock()

		for _, ch := range subs {
			ch <- msg
		}
	}

	r.mu.Lock()
	for _, ch := range r.subscribers {
		close(ch)
	}
	r.mu.Unlock()
}

// Run drives every scenario in order and returns once the run has
// completed, been terminated by a TerminationError, or ctx was cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log := r.opts.Logger.WithField("run_id", r.runID)
	log.Info("run starting")

	go r.broadcast()

	var displayWG sync.WaitGroup
	displayCtx, cancelDisplay := context.WithCancel(context.Background())
	if r.opts.EnableTUI {
		displayWG.Add(1)
		go func() {
			defer displayWG.Done()
			if err := display.RunTUI(displayCtx, r.Subscribe(r.opts.MessageBuffer)); err != nil {
				log.WithError(err).Warn("tui display exited with error")
			}
		}()
	}
	if r.opts.EnableWeb {
		displayWG.Add(1)
		go func() {
			defer displayWG.Done()
			if err := display.RunWeb(displayCtx, r.opts.WebAddr, r.Subscribe(r.opts.MessageBuffer)); err != nil {
				log.WithError(err).Warn("web display exited with error")
			}
		}()
	}

	var runErr error
	var executorID uint64
	for scenarioIdx, sc := range r.scenarios {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		scenarioID := uint64(scenarioIdx)
		r.bridge.ScenarioChanged(scenarioID)
		log.WithField("scenario", sc.Label).Info("scenario entering")

		terminated, err := r.runScenario(ctx, scenarioID, sc, &executorID, log)
		if err != nil {
			runErr = err
			break
		}
		if terminated {
			break
		}
	}

	r.bridge.End()
	cancelDisplay()
	displayWG.Wait()

	log.WithError(runErr).Info("run finished")
	return runErr
}

func (r *Runner) runScenario(ctx context.Context, scenarioID uint64, sc *scenario.Scenario, nextExecutorID *uint64, log logrus.FieldLogger) (terminated bool, err error) {
	scenarioCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type scheduled struct {
		exec  *executor.Executor
		delay time.Duration
	}

	execs := make([]scheduled, 0, len(sc.Plans))
	for _, p := range sc.Plans {
		id := *nextExecutorID
		*nextExecutorID++

		store := p.NewStore()
		ex, buildErr := executor.New(id, scenarioID, p.Config(), p.Builder(), store, r.bridge, log)
		if buildErr != nil {
			return false, fmt.Errorf("engine: build executor %d (%s): %w", id, p.Label(), buildErr)
		}
		execs = append(execs, scheduled{exec: ex, delay: p.StartAfter()})
	}

	merged := make(chan outcome.Outcome, mergedOutcomeBuffer)
	var pump sync.WaitGroup
	// Seeded before any goroutine starts so the closer's Wait below can
	// never observe a zero counter before every executor has had a chance
	// to register its pump: each scheduled executor owes exactly one
	// pump.Done(), whether it runs its pump goroutine or bails out early on
	// gctx.Done().
	pump.Add(len(execs))

	g, gctx := errgroup.WithContext(scenarioCtx)
	scenarioStart := time.Now()

	for _, sch := range execs {
		sch := sch
		g.Go(func() error {
			select {
			case <-time.After(sch.delay):
			case <-gctx.Done():
				pump.Done()
				return nil
			}

			priorDuration := time.Since(scenarioStart)
			task, out := sch.exec.Execute(priorDuration)

			go func() {
				defer pump.Done()
				for o := range out {
					select {
					case merged <- o:
					case <-gctx.Done():
					}
				}
			}()

			return task(gctx)
		})
	}

	go func() {
		pump.Wait()
		close(merged)
	}()

	var terminationErr error
	for o := range merged {
		if o == nil {
			continue
		}
		if outcome.IsTermination(o) {
			terminationErr = o
			r.bridge.ReportTermination(o)
			cancel()
			break
		}
		r.bridge.ReportError(o)
	}

	waitErr := g.Wait()
	if terminationErr != nil {
		return true, nil
	}
	if waitErr != nil {
		r.bridge.ReportTermination(waitErr)
		return false, waitErr
	}
	return false, nil
}
