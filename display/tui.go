// Package display implements the two minimal display consumers spec.md
// §4.6 specifies an input contract for: a colored terminal renderer and an
// SSE web server. Both are driven purely by the telemetry.Message stream;
// neither reaches back into the engine.
package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/trueleo/rusher/telemetry"
)

// executorStats accumulates the TUI's running per-executor picture, per
// spec.md §4.6: min/max/total task time, current counts, stage, and
// metrics.
type executorStats struct {
	id                     uint64
	taskCount              uint64
	minDuration            time.Duration
	maxDuration            time.Duration
	totalDuration          time.Duration
	users, maxUsers        uint64
	stage, stages          uint64
	stageDuration          time.Duration
	totalIteration         *uint64
	totalPlannedDuration   *time.Duration
	metrics                []telemetry.MetricReading
	ended                  bool
}

func (s *executorStats) observeTaskTime(d time.Duration) {
	s.taskCount++
	s.totalDuration += d
	if s.taskCount == 1 || d < s.minDuration {
		s.minDuration = d
	}
	if d > s.maxDuration {
		s.maxDuration = d
	}
}

// RunTUI renders the message stream to a colored terminal until the stream
// closes or ctx is cancelled. It never initiates cancellation itself; it
// only reacts to telemetry.KindEnd, per spec.md §8 invariant 8.
func RunTUI(ctx context.Context, messages <-chan telemetry.Message) error {
	return renderLoop(ctx, messages, colorableOutput())
}

func renderLoop(ctx context.Context, messages <-chan telemetry.Message, out io.Writer) error {
	scenarioID := uint64(0)
	executors := make(map[uint64]*executorStats)
	order := make([]uint64, 0)

	render := func() {
		renderTUI(out, scenarioID, executors, order)
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			render()
		case msg, ok := <-messages:
			if !ok {
				render()
				return nil
			}
			switch msg.Kind {
			case telemetry.KindScenarioChanged:
				scenarioID = msg.ScenarioID
			case telemetry.KindTaskTime:
				st, exists := executors[msg.ExecutionID]
				if !exists {
					st = &executorStats{id: msg.ExecutionID}
					executors[msg.ExecutionID] = st
					order = append(order, msg.ExecutionID)
				}
				st.observeTaskTime(msg.Duration)
			case telemetry.KindExecutorStart:
				st, exists := executors[msg.ID]
				if !exists {
					st = &executorStats{id: msg.ID}
					executors[msg.ID] = st
					order = append(order, msg.ID)
				}
			case telemetry.KindExecutorUpdate:
				st, exists := executors[msg.ID]
				if !exists {
					st = &executorStats{id: msg.ID}
					executors[msg.ID] = st
					order = append(order, msg.ID)
				}
				st.users, st.maxUsers = msg.Users, msg.MaxUsers
				st.totalIteration = msg.TotalIteration
				st.totalPlannedDuration = msg.TotalDuration
				if msg.Stage != nil {
					st.stage = *msg.Stage
				}
				if msg.Stages != nil {
					st.stages = *msg.Stages
				}
				if msg.StageDuration != nil {
					st.stageDuration = *msg.StageDuration
				}
				st.metrics = msg.Metrics
			case telemetry.KindExecutorEnd:
				if st, exists := executors[msg.ID]; exists {
					st.ended = true
				}
			case telemetry.KindError:
				fmt.Fprintln(out, color.YellowString("error: %s", msg.Err))
			case telemetry.KindTerminatedError:
				fmt.Fprintln(out, color.RedString("terminated: %s", msg.Err))
			case telemetry.KindEnd:
				render()
				return nil
			}
		}
	}
}

func colorableOutput() io.Writer {
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return colorable.NewColorableStdout()
	}
	return colorable.NewNonColorable(os.Stdout)
}

func renderTUI(out io.Writer, scenarioID uint64, executors map[uint64]*executorStats, order []uint64) {
	bold := color.New(color.Bold)
	bold.Fprintf(out, "scenario %d\n", scenarioID)

	sorted := append([]uint64(nil), order...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, id := range sorted {
		st := executors[id]
		status := color.GreenString("running")
		if st.ended {
			status = color.New(color.Faint).Sprint("done")
		}

		fmt.Fprintf(out, "  [%d] %s users=%d/%d", id, status, st.users, st.maxUsers)
		if st.stages > 0 {
			fmt.Fprintf(out, " stage=%d/%d", st.stage, st.stages)
		}
		if st.taskCount > 0 {
			avg := st.totalDuration / time.Duration(st.taskCount)
			fmt.Fprintf(out, " tasks=%d min=%s max=%s avg=%s", st.taskCount, st.minDuration, st.maxDuration, avg)
		}
		fmt.Fprintln(out)
	}
}
