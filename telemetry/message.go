package telemetry

import (
	"encoding/json"
	"time"

	"github.com/trueleo/rusher/metrics"
)

// Kind discriminates the Message tagged union.
type Kind int

const (
	KindTaskTime Kind = iota
	KindExecutorStart
	KindExecutorUpdate
	KindExecutorEnd
	KindError
	KindTerminatedError
	KindScenarioChanged
	KindEnd
)

// MetricReading is one (key, snapshot) pair as emitted on the wire.
type MetricReading struct {
	Key      metrics.Key
	Snapshot metrics.Snapshot
}

// Message is the engine's output: a tagged union delivered to display
// consumers. Exactly the fields spec.md §6 lists are present for each Kind;
// fields irrelevant to a given Kind are left at their zero value and,
// through MarshalJSON, omitted from the wire form.
type Message struct {
	Kind Kind

	// TaskTime
	ExecutionID uint64
	ScenarioID  uint64
	Duration    time.Duration

	// ExecutorStart
	ID                     uint64
	StartTime              time.Time
	PriorExecutorDuration  time.Duration

	// ExecutorUpdate
	Users          uint64
	MaxUsers       uint64
	TotalIteration *uint64
	TotalDuration  *time.Duration
	Stage          *uint64
	StageDuration  *time.Duration
	Stages         *uint64
	Metrics        []MetricReading

	// Error / TerminatedError
	Err string
}

// TaskTime builds a TaskTime message.
func TaskTime(executionID, scenarioID uint64, duration time.Duration) Message {
	return Message{Kind: KindTaskTime, ExecutionID: executionID, ScenarioID: scenarioID, Duration: duration}
}

// ExecutorStart builds an ExecutorStart message.
func ExecutorStart(id uint64, startTime time.Time, priorExecutorDuration time.Duration) Message {
	return Message{Kind: KindExecutorStart, ID: id, StartTime: startTime, PriorExecutorDuration: priorExecutorDuration}
}

// ExecutorEnd builds an ExecutorEnd message.
func ExecutorEnd(id uint64) Message {
	return Message{Kind: KindExecutorEnd, ID: id}
}

// Error builds a non-fatal Error message.
func Error(err string) Message {
	return Message{Kind: KindError, Err: err}
}

// TerminatedError builds a fatal TerminatedError message.
func TerminatedError(err string) Message {
	return Message{Kind: KindTerminatedError, Err: err}
}

// ScenarioChanged builds a ScenarioChanged message.
func ScenarioChanged(scenarioID uint64) Message {
	return Message{Kind: KindScenarioChanged, ScenarioID: scenarioID}
}

// End builds the terminal End message.
func End() Message {
	return Message{Kind: KindEnd}
}

// wireDuration serializes a duration as a structured {secs, nanos} object,
// matching spec.md §6's "durations as structured objects" note.
type wireDuration struct {
	Secs  int64 `json:"secs"`
	Nanos int32 `json:"nanos"`
}

func toWireDuration(d time.Duration) wireDuration {
	return wireDuration{Secs: int64(d / time.Second), Nanos: int32(d % time.Second)}
}

// MarshalJSON renders Message in the optional serde-compatible wire format:
// RFC3339-millisecond timestamps, structured durations, nil fields omitted.
func (m Message) MarshalJSON() ([]byte, error) {
	type wireMetric struct {
		Key      metrics.Key      `json:"key"`
		Snapshot metrics.Snapshot `json:"snapshot"`
	}

	switch m.Kind {
	case KindTaskTime:
		return json.Marshal(struct {
			Type        string       `json:"type"`
			ExecutionID uint64       `json:"executionId"`
			ScenarioID  uint64       `json:"scenarioId"`
			Duration    wireDuration `json:"duration"`
		}{"taskTime", m.ExecutionID, m.ScenarioID, toWireDuration(m.Duration)})
	case KindExecutorStart:
		return json.Marshal(struct {
			Type                  string       `json:"type"`
			ID                    uint64       `json:"id"`
			StartTime             string       `json:"startTime"`
			PriorExecutorDuration wireDuration `json:"priorExecutorDuration"`
		}{
			"executorStart", m.ID,
			m.StartTime.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			toWireDuration(m.PriorExecutorDuration),
		})
	case KindExecutorUpdate:
		metricsOut := make([]wireMetric, 0, len(m.Metrics))
		for _, mr := range m.Metrics {
			metricsOut = append(metricsOut, wireMetric{Key: mr.Key, Snapshot: mr.Snapshot})
		}

		var totalDuration *wireDuration
		if m.TotalDuration != nil {
			d := toWireDuration(*m.TotalDuration)
			totalDuration = &d
		}
		var stageDuration *wireDuration
		if m.StageDuration != nil {
			d := toWireDuration(*m.StageDuration)
			stageDuration = &d
		}

		return json.Marshal(struct {
			Type           string        `json:"type"`
			ID             uint64        `json:"id"`
			Users          uint64        `json:"users"`
			MaxUsers       uint64        `json:"maxUsers"`
			TotalIteration *uint64       `json:"totalIteration,omitempty"`
			TotalDuration  *wireDuration `json:"totalDuration,omitempty"`
			Stage          *uint64       `json:"stage,omitempty"`
			StageDuration  *wireDuration `json:"stageDuration,omitempty"`
			Stages         *uint64       `json:"stages,omitempty"`
			Metrics        []wireMetric  `json:"metrics"`
		}{
			"executorUpdate", m.ID, m.Users, m.MaxUsers,
			m.TotalIteration, totalDuration, m.Stage, stageDuration, m.Stages, metricsOut,
		})
	case KindExecutorEnd:
		return json.Marshal(struct {
			Type string `json:"type"`
			ID   uint64 `json:"id"`
		}{"executorEnd", m.ID})
	case KindError:
		return json.Marshal(struct {
			Type string `json:"type"`
			Err  string `json:"err"`
		}{"error", m.Err})
	case KindTerminatedError:
		return json.Marshal(struct {
			Type string `json:"type"`
			Err  string `json:"err"`
		}{"terminatedError", m.Err})
	case KindScenarioChanged:
		return json.Marshal(struct {
			Type       string `json:"type"`
			ScenarioID uint64 `json:"scenarioId"`
		}{"scenarioChanged", m.ScenarioID})
	case KindEnd:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{"end"})
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{"unknown"})
	}
}
