package metrics

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Type is the storage discipline for a metric.
type Type int

const (
	// Counter is a monotonic u64, updated with a relaxed atomic add.
	Counter Type = iota
	// Gauge is a last-write-wins scalar.
	Gauge
	// Histogram is a streaming percentile estimator over arbitrary floats.
	Histogram
	// DurationHistogram is a streaming percentile estimator over durations.
	DurationHistogram
)

// String renders the metric type the way it appears in a TaskEvent's
// "metric_type" field.
func (t Type) String() string {
	switch t {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Histogram:
		return "histogram"
	case DurationHistogram:
		return "duration"
	default:
		return "unknown"
	}
}

// ParseType parses the "metric_type" field of a TaskEvent.
func ParseType(s string) (Type, bool) {
	switch s {
	case "counter":
		return Counter, true
	case "gauge":
		return Gauge, true
	case "histogram":
		return Histogram, true
	case "duration":
		return DurationHistogram, true
	default:
		return 0, false
	}
}

// Key identifies a metric: a name, a type, and an ordered attribute list.
// Attribute order is preserved — never sorted or canonicalized — so that
// labels render in a visually stable order across updates.
type Key struct {
	Name       string
	Type       Type
	Attributes []attribute.KeyValue
}

// fingerprint is a hashable, order-sensitive encoding of Key used internally
// as a concurrent map key. It is not the representation exposed to callers.
func (k Key) fingerprint() string {
	var b strings.Builder
	b.WriteString(k.Name)
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(int(k.Type)))
	for _, attr := range k.Attributes {
		b.WriteByte(0)
		b.WriteString(string(attr.Key))
		b.WriteByte('=')
		b.WriteString(attr.Value.Emit())
	}
	return b.String()
}

// MarshalJSON renders Key with its attributes as an ordered array of
// {key, value} pairs — attribute.KeyValue has no JSON encoding of its own,
// since OpenTelemetry only ever needs it for OTLP export.
func (k Key) MarshalJSON() ([]byte, error) {
	type wireAttr struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	attrs := make([]wireAttr, 0, len(k.Attributes))
	for _, a := range k.Attributes {
		attrs = append(attrs, wireAttr{Key: string(a.Key), Value: a.Value.Emit()})
	}
	return json.Marshal(struct {
		Name       string     `json:"name"`
		MetricType string     `json:"metricType"`
		Attributes []wireAttr `json:"attributes"`
	}{k.Name, k.Type.String(), attrs})
}
