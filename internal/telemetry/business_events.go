package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DomainEvents provides helper methods for tracing monitoring-domain
// operations: recognition attempts, detection recording, and station
// lifecycle transitions. These are higher-level spans than the generic
// DB/HTTP/cache instrumentation in database.go and http_client.go.
type DomainEvents struct {
	tracer trace.Tracer
}

// NewDomainEvents creates a new domain events tracer
func NewDomainEvents() *DomainEvents {
	return &DomainEvents{
		tracer: otel.Tracer("domain-events"),
	}
}

// ============================================================================
// RECOGNITION
// ============================================================================

// RecognitionAttrs carries attributes describing one recognition attempt
// against a single decoded segment.
type RecognitionAttrs struct {
	StationID    string
	Method       string // "local", "external_a", "external_b", "none"
	Confidence   float64
	LocalHit     bool
	FallbackUsed bool // true when the Local Matcher missed and the cascade ran
}

// TraceRecognize creates a span for one segment's recognition attempt,
// covering both the Local Matcher lookup and the External Recognizer
// cascade fallback.
func (de *DomainEvents) TraceRecognize(ctx context.Context, attrs RecognitionAttrs) (context.Context, trace.Span) {
	ctx, span := de.tracer.Start(ctx, "recognition.attempt",
		trace.WithAttributes(
			attribute.String("station.id", attrs.StationID),
			attribute.String("recognition.method", attrs.Method),
			attribute.Float64("recognition.confidence", attrs.Confidence),
		),
	)

	if attrs.LocalHit {
		span.SetAttributes(attribute.Bool("recognition.local_hit", true))
	}
	if attrs.FallbackUsed {
		span.SetAttributes(attribute.Bool("recognition.fallback_used", true))
	}

	return ctx, span
}

// ============================================================================
// DETECTION / PLAY RECORDING
// ============================================================================

// DetectionAttrs carries attributes describing a closed play being
// persisted by the Stats Recorder.
type DetectionAttrs struct {
	StationID  string
	TrackID    string
	Method     string
	Confidence float64
	DurationS  float64
}

// TraceRecordDetection creates a span for persisting one closed play
// plus its derived station/track statistics.
func (de *DomainEvents) TraceRecordDetection(ctx context.Context, attrs DetectionAttrs) (context.Context, trace.Span) {
	ctx, span := de.tracer.Start(ctx, "detection.record",
		trace.WithAttributes(
			attribute.String("station.id", attrs.StationID),
			attribute.String("track.id", attrs.TrackID),
			attribute.String("detection.method", attrs.Method),
			attribute.Float64("detection.confidence", attrs.Confidence),
			attribute.Float64("detection.duration_s", attrs.DurationS),
		),
	)
	return ctx, span
}

// ============================================================================
// STATION LIFECYCLE
// ============================================================================

// StationEventAttrs carries attributes for Scheduler-driven station
// lifecycle transitions.
type StationEventAttrs struct {
	StationID  string
	StreamURL  string
	Reason     string // stop/restart reason, empty on admit
	RestartTry int
}

// TraceStationAdmit creates a span for the Scheduler admitting a
// station and handing it to a new Supervisor.
func (de *DomainEvents) TraceStationAdmit(ctx context.Context, attrs StationEventAttrs) (context.Context, trace.Span) {
	ctx, span := de.tracer.Start(ctx, "station.admit",
		trace.WithAttributes(
			attribute.String("station.id", attrs.StationID),
		),
	)
	return ctx, span
}

// TraceStationRestart creates a span for a Supervisor restart following
// a fatal pipeline error (spec.md §7).
func (de *DomainEvents) TraceStationRestart(ctx context.Context, attrs StationEventAttrs) (context.Context, trace.Span) {
	ctx, span := de.tracer.Start(ctx, "station.restart",
		trace.WithAttributes(
			attribute.String("station.id", attrs.StationID),
			attribute.Int("station.restart_attempt", attrs.RestartTry),
		),
	)
	if attrs.Reason != "" {
		span.SetAttributes(attribute.String("station.restart_reason", attrs.Reason))
	}
	return ctx, span
}

// RecordDomainError records an error on a domain span, tagging whether
// the caller intends to retry.
func RecordDomainError(span trace.Span, err error, retryable bool) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("error.retryable", retryable))
	}
}

// ============================================================================
// HELPER: Global instance for convenient access
// ============================================================================

var globalDomainEvents *DomainEvents

// GetDomainEvents returns the global domain events tracer
func GetDomainEvents() *DomainEvents {
	if globalDomainEvents == nil {
		globalDomainEvents = NewDomainEvents()
	}
	return globalDomainEvents
}
