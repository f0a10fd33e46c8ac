// Package obs holds the OpenTelemetry instruments of the bridge.
package obs

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/dvcrn/responses-bridge"

// Metrics counts stream activity. A nil *Metrics records nothing.
type Metrics struct {
	streamsStarted  metric.Int64Counter
	frames          metric.Int64Counter
	framesSkipped   metric.Int64Counter
	events          metric.Int64Counter
	streamsFinished metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.streamsStarted, err = meter.Int64Counter(
		"bridge.streams.started",
		metric.WithDescription("Streams opened against an upstream"),
		metric.WithUnit("{stream}"),
	); err != nil {
		return nil, err
	}
	if m.frames, err = meter.Int64Counter(
		"bridge.frames",
		metric.WithDescription("Transport frames recovered from upstream bodies"),
		metric.WithUnit("{frame}"),
	); err != nil {
		return nil, err
	}
	if m.framesSkipped, err = meter.Int64Counter(
		"bridge.frames.skipped",
		metric.WithDescription("Frames dropped because they were not valid JSON"),
		metric.WithUnit("{frame}"),
	); err != nil {
		return nil, err
	}
	if m.events, err = meter.Int64Counter(
		"bridge.events",
		metric.WithDescription("Responses events emitted"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, err
	}
	if m.streamsFinished, err = meter.Int64Counter(
		"bridge.streams.finished",
		metric.WithDescription("Streams that ended, by status"),
		metric.WithUnit("{stream}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Global returns instruments on the globally registered meter provider.
func Global() (*Metrics, error) {
	return NewMetrics(otel.GetMeterProvider().Meter(meterName))
}

func (m *Metrics) StreamStarted(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.streamsStarted.Add(ctx, 1, metric.WithAttributes(AttrProvider.String(provider)))
}

func (m *Metrics) Frame(ctx context.Context, provider string, skipped bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(AttrProvider.String(provider))
	m.frames.Add(ctx, 1, attrs)
	if skipped {
		m.framesSkipped.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) Event(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.events.Add(ctx, 1, metric.WithAttributes(AttrEventType.String(eventType)))
}

func (m *Metrics) StreamFinished(ctx context.Context, provider, status string) {
	if m == nil {
		return
	}
	m.streamsFinished.Add(ctx, 1, metric.WithAttributes(
		AttrProvider.String(provider),
		AttrStatus.String(status),
	))
}

// Setup installs a meter provider that periodically writes metrics to w and
// registers it globally. The returned function flushes and stops it.
func Setup(w io.Writer, interval time.Duration) (func(context.Context) error, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}
	if interval <= 0 {
		interval = time.Minute
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}
