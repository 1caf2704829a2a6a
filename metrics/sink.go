package metrics

import (
	"encoding/json"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/influxdata/tdigest"
)

// observationBuffer is the number of raw observations a histogram sink
// accumulates before merging them into its t-digest, amortizing the cost of
// maintaining the estimator.
const observationBuffer = 4096

// Value is a measurement carried by a TaskEvent's "value" field — one of a
// signed integer, an unsigned integer, a float, or a duration. Exactly one
// field is meaningful; Kind says which.
type Value struct {
	kind valueKind
	i    int64
	u    uint64
	f    float64
	d    time.Duration
}

type valueKind int

const (
	kindNumber valueKind = iota
	kindUnsigned
	kindFloat
	kindDuration
)

// Int builds a signed-integer Value.
func Int(v int64) Value { return Value{kind: kindNumber, i: v} }

// Uint builds an unsigned-integer Value.
func Uint(v uint64) Value { return Value{kind: kindUnsigned, u: v} }

// Float builds a floating-point Value.
func Float(v float64) Value { return Value{kind: kindFloat, f: v} }

// Dur builds a duration Value.
func Dur(v time.Duration) Value { return Value{kind: kindDuration, d: v} }

// MarshalJSON renders the single meaningful field for this Value's kind.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindNumber:
		return json.Marshal(v.i)
	case kindUnsigned:
		return json.Marshal(v.u)
	case kindDuration:
		return json.Marshal(toWireDurationValue(v.d))
	default:
		return json.Marshal(v.f)
	}
}

func toWireDurationValue(d time.Duration) map[string]int64 {
	return map[string]int64{"secs": int64(d / time.Second), "nanos": int64(d % time.Second)}
}

// Snapshot is the current reading of a metric, shaped for emission in an
// ExecutorUpdate message.
type Snapshot struct {
	Counter   *uint64
	Gauge     *Value
	Quantiles *Quantiles
}

// Quantiles is the p50/p90/p95/p99 estimate plus running sum a histogram
// sink reports.
type Quantiles struct {
	P50, P90, P95, P99 float64
	Sum                float64
	// IsDuration indicates the four percentiles and sum should be rendered
	// as durations (nanoseconds) rather than bare floats.
	IsDuration bool
}

// MarshalJSON renders percentiles as durations when IsDuration is set,
// matching spec.md §6's structured-duration wire format.
func (q Quantiles) MarshalJSON() ([]byte, error) {
	if !q.IsDuration {
		return json.Marshal(struct {
			P50, P90, P95, P99, Sum float64
		}{q.P50, q.P90, q.P95, q.P99, q.Sum})
	}
	return json.Marshal(struct {
		P50, P90, P95, P99, Sum map[string]int64
	}{
		toWireDurationValue(time.Duration(q.P50)),
		toWireDurationValue(time.Duration(q.P90)),
		toWireDurationValue(time.Duration(q.P95)),
		toWireDurationValue(time.Duration(q.P99)),
		toWireDurationValue(time.Duration(q.Sum)),
	})
}

// MarshalJSON renders whichever of Counter, Gauge, or Quantiles is set.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	switch {
	case s.Counter != nil:
		return json.Marshal(*s.Counter)
	case s.Gauge != nil:
		return json.Marshal(*s.Gauge)
	case s.Quantiles != nil:
		return json.Marshal(*s.Quantiles)
	default:
		return json.Marshal(nil)
	}
}

// sink is the per-entry storage strategy for a metric type.
type sink interface {
	update(v Value)
	snapshot() Snapshot
}

// counterSink is a monotonic counter, relaxed atomic add.
type counterSink struct {
	value atomic.Uint64
}

func newCounterSink() *counterSink { return &counterSink{} }

func (c *counterSink) update(v Value) {
	switch v.kind {
	case kindUnsigned:
		c.value.Add(v.u)
	case kindNumber:
		c.value.Add(uint64(v.i))
	}
}

func (c *counterSink) snapshot() Snapshot {
	n := c.value.Load()
	return Snapshot{Counter: &n}
}

// gaugeSink is a last-write-wins scalar, whatever numeric kind was last
// observed.
type gaugeSink struct {
	mu    sync.Mutex
	value Value
	set   bool
}

func newGaugeSink() *gaugeSink { return &gaugeSink{} }

func (g *gaugeSink) update(v Value) {
	switch v.kind {
	case kindFloat, kindNumber, kindUnsigned, kindDuration:
	default:
		return
	}
	g.mu.Lock()
	g.value = v
	g.set = true
	g.mu.Unlock()
}

func (g *gaugeSink) snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.set {
		return Snapshot{Gauge: &Value{kind: kindFloat}}
	}
	v := g.value
	return Snapshot{Gauge: &v}
}

// histogramSink is a streaming percentile estimator: raw observations
// buffer up to observationBuffer entries before merging into a t-digest, plus
// a running sum. isDuration selects whether updates expect a Duration value
// (converted to nanoseconds) or a bare Float.
type histogramSink struct {
	mu         sync.Mutex
	digest     *tdigest.TDigest
	buffer     []float64
	sum        float64
	isDuration bool
}

func newHistogramSink(isDuration bool) *histogramSink {
	return &histogramSink{isDuration: isDuration}
}

func (h *histogramSink) update(v Value) {
	var observed float64
	switch {
	case h.isDuration && v.kind == kindDuration:
		observed = float64(v.d.Nanoseconds())
	case h.isDuration && v.kind == kindFloat:
		observed = v.f
	case !h.isDuration && v.kind == kindFloat:
		observed = v.f
	default:
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += observed
	h.buffer = append(h.buffer, observed)
	if len(h.buffer) >= observationBuffer {
		h.mergeLocked()
	}
}

func (h *histogramSink) mergeLocked() {
	if len(h.buffer) == 0 {
		return
	}
	if h.digest == nil {
		h.digest = tdigest.NewWithCompression(100)
	}
	for _, v := range h.buffer {
		h.digest.Add(v, 1)
	}
	h.buffer = h.buffer[:0]
}

func (h *histogramSink) quantile(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.buffer) > 0 {
		h.mergeLocked()
	}
	if h.digest == nil {
		return 0
	}
	return h.digest.Quantile(q)
}

func (h *histogramSink) snapshot() Snapshot {
	q := Quantiles{
		P50:        h.quantile(0.5),
		P90:        h.quantile(0.9),
		P95:        h.quantile(0.95),
		P99:        h.quantile(0.99),
		IsDuration: h.isDuration,
	}
	h.mu.Lock()
	q.Sum = h.sum
	h.mu.Unlock()

	for _, p := range []*float64{&q.P50, &q.P90, &q.P95, &q.P99, &q.Sum} {
		if math.IsNaN(*p) {
			*p = 0
		}
	}
	return Snapshot{Quantiles: &q}
}

func newSink(t Type) sink {
	switch t {
	case Counter:
		return newCounterSink()
	case Gauge:
		return newGaugeSink()
	case Histogram:
		return newHistogramSink(false)
	case DurationHistogram:
		return newHistogramSink(true)
	default:
		panic("metrics: unknown type")
	}
}
