package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("slate-api")

type moveRequestMetrics struct {
	logger           *log.Logger
	span             trace.Span
	route            string
	start            time.Time
	authDuration     time.Duration
	fetchDuration    time.Duration
	writeDuration    time.Duration
	crossParent      bool
	resolveScheduled bool
	errorStage       string
}

func newMoveRequestMetrics(ctx context.Context, route string, logger *log.Logger) (*moveRequestMetrics, context.Context) {
	spanCtx, span := tracer.Start(ctx, route)
	return &moveRequestMetrics{
		logger: logger,
		span:   span,
		route:  route,
		start:  time.Now(),
	}, spanCtx
}

func (m *moveRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *moveRequestMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *moveRequestMetrics) ObserveWrite(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.writeDuration = duration
}

func (m *moveRequestMetrics) SetCrossParent(cross bool) {
	m.crossParent = cross
}

func (m *moveRequestMetrics) SetResolveScheduled(scheduled bool) {
	m.resolveScheduled = scheduled
}

func (m *moveRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *moveRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":             m.route,
		"status":            status,
		"total_ms":          durationToMillis(time.Since(m.start)),
		"cross_parent":      m.crossParent,
		"resolve_scheduled": m.resolveScheduled,
	}

	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.fetchDuration > 0 {
		fields["fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.writeDuration > 0 {
		fields["write_ms"] = durationToMillis(m.writeDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("move.request.metrics")

	if m.span != nil {
		m.span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Bool("move.cross_parent", m.crossParent),
			attribute.Bool("move.resolve_scheduled", m.resolveScheduled),
		)
		if m.errorStage != "" {
			m.span.SetAttributes(attribute.String("move.error_stage", m.errorStage))
		}
		if err != nil {
			m.span.SetStatus(codes.Error, err.Error())
		}
		m.span.End()
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
