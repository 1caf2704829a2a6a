package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ExporterProtocol selects the wire protocol used to ship spans to an
// external OTLP collector, for deployments that want the raw trace data
// alongside (or instead of) the folded Message stream.
type ExporterProtocol string

const (
	ExporterGRPC ExporterProtocol = "grpc"
	ExporterHTTP ExporterProtocol = "http"
)

// OTLPConfig configures an optional secondary span exporter. It has no
// effect on the Message stream returned by Messages(); it exists purely to
// let an operator also point a run at a collector for external analysis.
type OTLPConfig struct {
	Protocol ExporterProtocol
	Endpoint string
	Insecure bool
}

// WithOTLPExporter registers an additional batched span processor that
// ships spans to an external OTLP collector, independent of the in-process
// folding into Messages. Call before the Bridge observes its first span.
func (b *Bridge) WithOTLPExporter(ctx context.Context, cfg OTLPConfig) error {
	client, err := newOTLPClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("telemetry: build otlp client: %w", err)
	}

	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return fmt.Errorf("telemetry: start otlp exporter: %w", err)
	}

	b.tracerProvider.RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	return nil
}

func newOTLPClient(ctx context.Context, cfg OTLPConfig) (otlptrace.Client, error) {
	switch cfg.Protocol {
	case ExporterHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.NewClient(opts...), nil
	case ExporterGRPC, "":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.NewClient(opts...), nil
	default:
		return nil, fmt.Errorf("telemetry: unknown exporter protocol %q", cfg.Protocol)
	}
}
