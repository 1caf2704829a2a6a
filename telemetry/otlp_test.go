package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trueleo/rusher/telemetry"
)

// TestWithOTLPExporterRegistersGRPCExporter exercises the gRPC OTLP export
// path end to end against the real otlptracegrpc/otlptrace client stack:
// the client dials lazily (no transport.WithBlock), so registering the
// exporter against an unreachable loopback address succeeds synchronously
// without needing a live collector, the same way the donor's own
// output/opentelemetry wiring is exercised without a real backend.
func TestWithOTLPExporterRegistersGRPCExporter(t *testing.T) {
	t.Parallel()
	b := telemetry.New(4, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := b.WithOTLPExporter(ctx, telemetry.OTLPConfig{
		Protocol: telemetry.ExporterGRPC,
		Endpoint: "127.0.0.1:0",
		Insecure: true,
	})
	require.NoError(t, err)

	b.End()
}

// TestWithOTLPExporterRegistersHTTPExporter exercises the HTTP OTLP export
// path the same way.
func TestWithOTLPExporterRegistersHTTPExporter(t *testing.T) {
	t.Parallel()
	b := telemetry.New(4, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := b.WithOTLPExporter(ctx, telemetry.OTLPConfig{
		Protocol: telemetry.ExporterHTTP,
		Endpoint: "127.0.0.1:0",
		Insecure: true,
	})
	require.NoError(t, err)

	b.End()
}

func TestWithOTLPExporterRejectsUnknownProtocol(t *testing.T) {
	t.Parallel()
	b := telemetry.New(4, 50*time.Millisecond)
	defer b.End()

	err := b.WithOTLPExporter(context.Background(), telemetry.OTLPConfig{Protocol: "carrier-pigeon"})
	require.Error(t, err)
}
