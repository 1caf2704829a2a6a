package display

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trueleo/rusher/metrics"
	"github.com/trueleo/rusher/telemetry"
)

func TestRenderLoopExitsOnEnd(t *testing.T) {
	t.Parallel()

	messages := make(chan telemetry.Message, 8)
	messages <- telemetry.ScenarioChanged(0)
	messages <- telemetry.ExecutorStart(1, time.Now(), 0)
	messages <- telemetry.TaskTime(1, 0, 5*time.Millisecond)
	messages <- telemetry.Message{
		Kind: telemetry.KindExecutorUpdate, ID: 1, Users: 2, MaxUsers: 2,
		Metrics: []telemetry.MetricReading{{
			Key:      metrics.Key{Name: "http_reqs", Type: metrics.Counter},
			Snapshot: metrics.Snapshot{},
		}},
	}
	messages <- telemetry.ExecutorEnd(1)
	messages <- telemetry.End()
	close(messages)

	var buf bytes.Buffer
	err := renderLoop(context.Background(), messages, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "scenario 0")
	assert.Contains(t, buf.String(), "users=2/2")
}

func TestRenderLoopExitsOnChannelClose(t *testing.T) {
	t.Parallel()

	messages := make(chan telemetry.Message)
	close(messages)

	var buf bytes.Buffer
	err := renderLoop(context.Background(), messages, &buf)
	require.NoError(t, err)
}

func TestRenderLoopRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	messages := make(chan telemetry.Message)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := renderLoop(ctx, messages, &buf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderLoopReportsErrors(t *testing.T) {
	t.Parallel()

	messages := make(chan telemetry.Message, 2)
	messages <- telemetry.Error("boom")
	messages <- telemetry.End()
	close(messages)

	var buf bytes.Buffer
	err := renderLoop(context.Background(), messages, &buf)
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), "boom"))
}
