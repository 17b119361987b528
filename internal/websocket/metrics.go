package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"seriesdash/internal/infrastructure"
)

// Metrics provides OpenTelemetry metrics for WebSocket sessions
type Metrics struct {
	sessionsTotal   metric.Int64Counter
	sessionsActive  metric.Int64UpDownCounter
	sessionDuration metric.Float64Histogram
	messagesTotal   metric.Int64Counter
	messageBytes    metric.Int64Counter
	messageErrors   metric.Int64Counter
	messageLatency  metric.Float64Histogram
	upgradeErrors   metric.Int64Counter
}

// NewMetrics creates the session instruments on meter. A nil meter yields
// no-op instruments.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter(infrastructure.InstrumentationName)
	}

	sessionsTotal, err := meter.Int64Counter(
		"websocket_sessions",
		metric.WithDescription("Total number of WebSocket sessions"),
	)
	if err != nil {
		return nil, err
	}

	sessionsActive, err := meter.Int64UpDownCounter(
		"websocket_sessions_active",
		metric.WithDescription("Number of open WebSocket sessions"),
	)
	if err != nil {
		return nil, err
	}

	sessionDuration, err := meter.Float64Histogram(
		"websocket_session_duration_seconds",
		metric.WithDescription("Duration of WebSocket sessions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	messagesTotal, err := meter.Int64Counter(
		"websocket_messages",
		metric.WithDescription("Total number of WebSocket messages"),
	)
	if err != nil {
		return nil, err
	}

	messageBytes, err := meter.Int64Counter(
		"websocket_message_bytes",
		metric.WithDescription("Total bytes of WebSocket messages"),
	)
	if err != nil {
		return nil, err
	}

	messageErrors, err := meter.Int64Counter(
		"websocket_message_errors",
		metric.WithDescription("Selection messages answered with an error"),
	)
	if err != nil {
		return nil, err
	}

	messageLatency, err := meter.Float64Histogram(
		"websocket_message_latency_seconds",
		metric.WithDescription("Time from receiving a selection to queueing its reply"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	upgradeErrors, err := meter.Int64Counter(
		"websocket_upgrade_errors",
		metric.WithDescription("Failed WebSocket upgrades"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		sessionsTotal:   sessionsTotal,
		sessionsActive:  sessionsActive,
		sessionDuration: sessionDuration,
		messagesTotal:   messagesTotal,
		messageBytes:    messageBytes,
		messageErrors:   messageErrors,
		messageLatency:  messageLatency,
		upgradeErrors:   upgradeErrors,
	}, nil
}

// The Record methods are safe to call on a nil receiver.

// RecordSessionStart records a new session on dataset
func (m *Metrics) RecordSessionStart(ctx context.Context, dataset string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("dataset", dataset))
	m.sessionsTotal.Add(ctx, 1, attrs)
	m.sessionsActive.Add(ctx, 1, attrs)
}

// RecordSessionEnd records a closed session
func (m *Metrics) RecordSessionEnd(ctx context.Context, dataset string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("dataset", dataset))
	m.sessionsActive.Add(ctx, -1, attrs)
	m.sessionDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordMessage records a message in direction "in" or "out"
func (m *Metrics) RecordMessage(ctx context.Context, direction string, size int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("direction", direction))
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, int64(size), attrs)
}

// RecordReply records how long a selection took to answer
func (m *Metrics) RecordReply(ctx context.Context, dataset string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	ds := attribute.String("dataset", dataset)
	if failed {
		m.messageErrors.Add(ctx, 1, metric.WithAttributes(ds))
	}
	m.messageLatency.Record(ctx, d.Seconds(), metric.WithAttributes(ds, attribute.Bool("failed", failed)))
}

// RecordUpgradeError records a failed upgrade
func (m *Metrics) RecordUpgradeError(ctx context.Context) {
	if m == nil {
		return
	}
	m.upgradeErrors.Add(ctx, 1)
}
