// Package telemetry is the bridge between per-iteration spans/events
// emitted from inside user operations and the aggregated metric registry
// and message stream consumed by a display. Spans and events are modeled
// on OpenTelemetry tracing, the direct Go analogue of the original's
// tracing subscriber/layer.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/trueleo/rusher/metrics"
)

const (
	taskSpanName = "task"

	attrExecutionID = "rusher.execution_id"
	attrScenarioID  = "rusher.scenario_id"

	// Reserved event attribute names, matching spec.md §4.5's "value" and
	// "metric_type" fields verbatim.
	attrValue      = "value"
	attrMetricType = "metric_type"
)

// executorState accumulates the fields an ExecutorUpdate message reports
// for one executor between emission ticks.
type executorState struct {
	mu             sync.Mutex
	users          uint64
	maxUsers       uint64
	totalIteration *uint64
	totalDuration  *time.Duration
	stage          *uint64
	stageDuration  *time.Duration
	stages         *uint64
	dirty          bool
}

// Bridge owns the metric registry, the span processor that feeds it, and
// the outgoing message channel. One Bridge is installed per run.
type Bridge struct {
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	registry       *metrics.Registry

	messages chan Message

	tickInterval time.Duration
	stopTicker   chan struct{}
	tickerDone   chan struct{}

	mu        sync.Mutex
	executors map[uint64]*executorState
}

// New installs a Bridge with the given message-channel buffer size and
// update tick interval (spec.md §4.5 calls for "at most one message per
// executor per tick (≈400 ms)").
func New(bufferSize int, tickInterval time.Duration) *Bridge {
	b := &Bridge{
		registry:     metrics.NewRegistry(),
		messages:     make(chan Message, bufferSize),
		tickInterval: tickInterval,
		stopTicker:   make(chan struct{}),
		tickerDone:   make(chan struct{}),
		executors:    make(map[uint64]*executorState),
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(&taskSpanProcessor{bridge: b}),
	)
	b.tracerProvider = tp
	b.tracer = tp.Tracer("github.com/trueleo/rusher/telemetry")

	go b.tick()
	return b
}

// Registry exposes the underlying metric registry, mainly for tests.
func (b *Bridge) Registry() *metrics.Registry { return b.registry }

// Messages returns the receive end of the message stream.
func (b *Bridge) Messages() <-chan Message { return b.messages }

func (b *Bridge) send(m Message) {
	b.messages <- m
}

// StartTask opens a per-iteration span carrying the owning executor and
// scenario ids. Callers must End() the returned span exactly once; doing so
// emits a TaskTime message.
func (b *Bridge) StartTask(ctx context.Context, executorID, scenarioID uint64) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, taskSpanName, trace.WithAttributes(
		attribute.Int64(attrExecutionID, int64(executorID)),
		attribute.Int64(attrScenarioID, int64(scenarioID)),
	))
}

// ObserveValue records a float-valued metric event on the span in ctx, per
// spec.md §4.5: "field value supplies the measurement; all other fields
// become attributes appended to the key" (in the order given here).
func ObserveValue(ctx context.Context, name string, metricType metrics.Type, value float64, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	all := append([]attribute.KeyValue{
		attribute.String(attrMetricType, metricType.String()),
		attribute.Float64(attrValue, value),
	}, attrs...)
	span.AddEvent(name, trace.WithAttributes(all...))
}

// ObserveDuration records a duration-valued metric event, always of type
// DurationHistogram.
func ObserveDuration(ctx context.Context, name string, value time.Duration, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	all := append([]attribute.KeyValue{
		attribute.String(attrMetricType, metrics.DurationHistogram.String()),
		attribute.Int64(attrValue, int64(value)),
	}, attrs...)
	span.AddEvent(name, trace.WithAttributes(all...))
}

// ObserveCount records a counter increment, always of type Counter.
func ObserveCount(ctx context.Context, name string, delta uint64, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	all := append([]attribute.KeyValue{
		attribute.String(attrMetricType, metrics.Counter.String()),
		attribute.Int64(attrValue, int64(delta)),
	}, attrs...)
	span.AddEvent(name, trace.WithAttributes(all...))
}

// ExecutorStarted emits an ExecutorStart message immediately (it is a
// one-shot lifecycle event, not subject to tick coalescing).
func (b *Bridge) ExecutorStarted(id uint64, startTime time.Time, priorExecutorDuration time.Duration) {
	b.mu.Lock()
	if _, ok := b.executors[id]; !ok {
		b.executors[id] = &executorState{}
	}
	b.mu.Unlock()
	b.send(ExecutorStart(id, startTime, priorExecutorDuration))
}

// SetUsers records the current/max user counts for executor id, marking it
// dirty for the next coalesced tick.
func (b *Bridge) SetUsers(id uint64, users, maxUsers uint64) {
	st := b.stateFor(id)
	st.mu.Lock()
	st.users, st.maxUsers = users, maxUsers
	st.dirty = true
	st.mu.Unlock()
}

// SetTotals records the total-iteration/total-duration fields, when the
// executor's discipline has a defined total (Shared, PerUser, and the
// stage-summed duration of the ramping executors).
func (b *Bridge) SetTotals(id uint64, totalIteration *uint64, totalDuration *time.Duration) {
	st := b.stateFor(id)
	st.mu.Lock()
	st.totalIteration, st.totalDuration = totalIteration, totalDuration
	st.dirty = true
	st.mu.Unlock()
}

// SetStage records the current stage index/count/duration for ramping
// executors.
func (b *Bridge) SetStage(id uint64, stage, stages uint64, stageDuration time.Duration) {
	st := b.stateFor(id)
	st.mu.Lock()
	st.stage, st.stages, st.stageDuration = &stage, &stages, &stageDuration
	st.dirty = true
	st.mu.Unlock()
}

func (b *Bridge) stateFor(id uint64) *executorState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.executors[id]
	if !ok {
		st = &executorState{}
		b.executors[id] = st
	}
	return st
}

// ExecutorEnded flushes a final ExecutorUpdate (if dirty) and emits
// ExecutorEnd.
func (b *Bridge) ExecutorEnded(id uint64) {
	b.flushOne(id)
	b.mu.Lock()
	delete(b.executors, id)
	b.mu.Unlock()
	b.send(ExecutorEnd(id))
}

// ScenarioChanged emits a ScenarioChanged message. Per spec.md §8 invariant
// 8, callers must emit this before any TaskTime/ExecutorUpdate tagged with
// the new scenario id.
func (b *Bridge) ScenarioChanged(scenarioID uint64) {
	b.send(telemetryScenarioChanged(scenarioID))
}

func telemetryScenarioChanged(scenarioID uint64) Message { return ScenarioChanged(scenarioID) }

// ReportError emits a non-fatal Error message.
func (b *Bridge) ReportError(err error) {
	b.send(Error(err.Error()))
}

// ReportTermination emits a fatal TerminatedError message.
func (b *Bridge) ReportTermination(err error) {
	b.send(TerminatedError(err.Error()))
}

// End stops the coalescing ticker and emits the terminal End message. Per
// spec.md §8 invariant 8, End is always the last message; callers must not
// use the Bridge afterward.
func (b *Bridge) End() {
	close(b.stopTicker)
	<-b.tickerDone
	b.send(End())
	close(b.messages)
	_ = b.tracerProvider.Shutdown(context.Background())
}

func (b *Bridge) tick() {
	defer close(b.tickerDone)
	ticker := time.NewTicker(b.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopTicker:
			return
		case <-ticker.C:
			b.flushAll()
		}
	}
}

func (b *Bridge) flushAll() {
	b.mu.Lock()
	ids := make([]uint64, 0, len(b.executors))
	for id := range b.executors {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.flushOne(id)
	}
}

func (b *Bridge) flushOne(id uint64) {
	b.mu.Lock()
	st, ok := b.executors[id]
	b.mu.Unlock()
	if !ok {
		return
	}

	st.mu.Lock()
	if !st.dirty {
		st.mu.Unlock()
		return
	}
	msg := Message{
		Kind:           KindExecutorUpdate,
		ID:             id,
		Users:          st.users,
		MaxUsers:       st.maxUsers,
		TotalIteration: st.totalIteration,
		TotalDuration:  st.totalDuration,
		Stage:          st.stage,
		StageDuration:  st.stageDuration,
		Stages:         st.stages,
	}
	st.dirty = false
	st.mu.Unlock()

	msg.Metrics = toReadings(b.registry.Entries())
	b.send(msg)
}

func toReadings(entries []metrics.Entry) []MetricReading {
	out := make([]MetricReading, 0, len(entries))
	for _, e := range entries {
		out = append(out, MetricReading{Key: e.Key, Snapshot: e.Snapshot})
	}
	return out
}

// taskSpanProcessor unpacks every ended "task" span into a TaskTime message
// and folds its non-reserved events into metric registry updates.
type taskSpanProcessor struct {
	bridge *Bridge
}

func (p *taskSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *taskSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if s.Name() != taskSpanName {
		return
	}

	var executionID, scenarioID uint64
	for _, a := range s.Attributes() {
		switch string(a.Key) {
		case attrExecutionID:
			executionID = uint64(a.Value.AsInt64())
		case attrScenarioID:
			scenarioID = uint64(a.Value.AsInt64())
		}
	}

	duration := s.EndTime().Sub(s.StartTime())
	p.bridge.send(TaskTime(executionID, scenarioID, duration))

	for _, ev := range s.Events() {
		p.foldEvent(ev)
	}
}

func (p *taskSpanProcessor) foldEvent(ev sdktrace.Event) {
	var metricType metrics.Type
	var haveType bool
	var rawValue attribute.Value
	var haveValue bool
	attrs := make([]attribute.KeyValue, 0, len(ev.Attributes))

	for _, a := range ev.Attributes {
		switch string(a.Key) {
		case attrMetricType:
			if t, ok := metrics.ParseType(a.Value.AsString()); ok {
				metricType, haveType = t, true
			}
		case attrValue:
			rawValue, haveValue = a.Value, true
		default:
			attrs = append(attrs, a)
		}
	}

	if !haveType || !haveValue {
		return
	}

	key := metrics.Key{Name: ev.Name, Type: metricType, Attributes: attrs}
	p.bridge.registry.Observe(key, toMetricValue(metricType, rawValue))
}

func toMetricValue(t metrics.Type, raw attribute.Value) metrics.Value {
	switch t {
	case metrics.Counter:
		return metrics.Uint(uint64(raw.AsInt64()))
	case metrics.DurationHistogram:
		return metrics.Dur(time.Duration(raw.AsInt64()))
	default:
		return metrics.Float(raw.AsFloat64())
	}
}

func (p *taskSpanProcessor) Shutdown(context.Context) error { return nil }

func (p *taskSpanProcessor) ForceFlush(context.Context) error { return nil }
