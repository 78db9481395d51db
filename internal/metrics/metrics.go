// Package metrics wires the OTel SDK metric pipeline to a Prometheus
// exporter, grounded on the provider-setup shape used across the example
// pack (sdkmetric.NewMeterProvider + otel/exporters/prometheus).
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the process-wide instruments for the streaming and batch
// transcription pipelines.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	activeConnections metric.Int64UpDownCounter
	utterancesStarted metric.Int64Counter
	utterancesEnded   metric.Int64Counter
	asrCallsTotal     metric.Int64Counter
	asrFailuresTotal  metric.Int64Counter
	committedDuration metric.Float64Histogram
}

// New builds the meter provider (registering its Prometheus exporter as
// the global otel MeterProvider) and the instruments recorded throughout
// the session and batch pipelines. Call Shutdown on process exit.
func New() (*Metrics, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("github.com/sonicscribe/sonicscribe")

	activeConnections, err := meter.Int64UpDownCounter("sonicscribe_active_connections",
		metric.WithDescription("Number of currently open streaming connections"))
	if err != nil {
		return nil, err
	}
	utterancesStarted, err := meter.Int64Counter("sonicscribe_utterances_started_total",
		metric.WithDescription("Total number of utterances detected as started"))
	if err != nil {
		return nil, err
	}
	utterancesEnded, err := meter.Int64Counter("sonicscribe_utterances_ended_total",
		metric.WithDescription("Total number of utterances finalized"))
	if err != nil {
		return nil, err
	}
	asrCallsTotal, err := meter.Int64Counter("sonicscribe_asr_calls_total",
		metric.WithDescription("Total number of ASR engine calls"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}
	asrFailuresTotal, err := meter.Int64Counter("sonicscribe_asr_failures_total",
		metric.WithDescription("Total number of failed ASR engine calls"))
	if err != nil {
		return nil, err
	}
	committedDuration, err := meter.Float64Histogram("sonicscribe_committed_utterance_duration_seconds",
		metric.WithDescription("Wall-clock duration of committed utterances"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		provider:          provider,
		activeConnections: activeConnections,
		utterancesStarted: utterancesStarted,
		utterancesEnded:   utterancesEnded,
		asrCallsTotal:     asrCallsTotal,
		asrFailuresTotal:  asrFailuresTotal,
		committedDuration: committedDuration,
	}, nil
}

func (m *Metrics) ConnectionOpened(ctx context.Context) { m.activeConnections.Add(ctx, 1) }
func (m *Metrics) ConnectionClosed(ctx context.Context) { m.activeConnections.Add(ctx, -1) }

func (m *Metrics) UtteranceStarted(ctx context.Context) { m.utterancesStarted.Add(ctx, 1) }

func (m *Metrics) UtteranceEnded(ctx context.Context, duration time.Duration) {
	m.utterancesEnded.Add(ctx, 1)
	m.committedDuration.Record(ctx, duration.Seconds())
}

func (m *Metrics) ASRCall(ctx context.Context, provider string, success bool) {
	m.asrCallsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
	if !success {
		m.asrFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
	}
}

// Shutdown flushes and releases the meter provider's resources.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
