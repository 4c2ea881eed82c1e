package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ============================================================================
// AWS S3 / SEGMENT ARCHIVE CALLS
// ============================================================================

// TraceS3Call creates a span for AWS S3 operations performed by the
// Segment Archiver (internal/storage) when it writes audio segments and
// fingerprint blobs to cold storage.
// Examples: put_object, get_object, delete_object, list_objects
func TraceS3Call(ctx context.Context, operation string, attrs map[string]interface{}) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("s3").Start(ctx, "s3."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("s3.operation", operation),
		),
	)

	if bucket, ok := attrs["bucket"].(string); ok && bucket != "" {
		span.SetAttributes(attribute.String("s3.bucket", bucket))
	}
	if key, ok := attrs["key"].(string); ok && key != "" {
		span.SetAttributes(attribute.String("s3.key", key))
	}
	if contentType, ok := attrs["content_type"].(string); ok && contentType != "" {
		span.SetAttributes(attribute.String("s3.content_type", contentType))
	}
	if sizeBytes, ok := attrs["size_bytes"].(int64); ok && sizeBytes > 0 {
		span.SetAttributes(attribute.Int64("s3.size_bytes", sizeBytes))
	}
	if duration, ok := attrs["duration_ms"].(int64); ok && duration > 0 {
		span.SetAttributes(attribute.Int64("s3.duration_ms", duration))
	}

	return ctx, span
}

// ============================================================================
// EXTERNAL RECOGNITION SERVICE CALLS
// ============================================================================

// TraceRecognitionServiceCall creates a span for a call to one of the
// External Recognizer cascade's two services (spec.md §4.5).
// Examples: service_a.lookup, service_b.identify
func TraceRecognitionServiceCall(ctx context.Context, service string, operation string, attrs map[string]interface{}) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("recognition-service").Start(ctx, service+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("recognition_service.name", service),
			attribute.String("recognition_service.operation", operation),
		),
	)

	if retryCount, ok := attrs["retry_count"].(int); ok && retryCount > 0 {
		span.SetAttributes(attribute.Int("recognition_service.retry_count", retryCount))
	}
	if rateLimited, ok := attrs["rate_limited"].(bool); ok && rateLimited {
		span.SetAttributes(attribute.Bool("recognition_service.rate_limited", true))
	}
	if candidateCount, ok := attrs["candidate_count"].(int); ok {
		span.SetAttributes(attribute.Int("recognition_service.candidate_count", candidateCount))
	}

	return ctx, span
}

// ============================================================================
// CACHE OPERATIONS
// ============================================================================

// TraceCacheCall creates a span for a cache (Redis) operation.
// Examples: get, set, delete, ttl, incr
func TraceCacheCall(ctx context.Context, operation string, attrs map[string]interface{}) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("cache").Start(ctx, "cache."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.operation", operation),
		),
	)

	if key, ok := attrs["key"].(string); ok && key != "" {
		span.SetAttributes(attribute.String("cache.key", key))
	}
	if hit, ok := attrs["hit"].(bool); ok {
		span.SetAttributes(attribute.Bool("cache.hit", hit))
	}
	if ttl, ok := attrs["ttl_seconds"].(int); ok && ttl > 0 {
		span.SetAttributes(attribute.Int("cache.ttl_seconds", ttl))
	}

	return ctx, span
}

// ============================================================================
// ERROR AND SUCCESS RECORDING
// ============================================================================

// RecordServiceError records a service error in the current span
func RecordServiceError(span trace.Span, service string, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err, trace.WithStackTrace(true))
		span.SetAttributes(attribute.String("error.type", "service_error"))
	}
}

// RecordServiceSuccess records success metrics for a service call
func RecordServiceSuccess(span trace.Span, attrs map[string]interface{}) {
	if itemCount, ok := attrs["item_count"].(int); ok {
		span.SetAttributes(attribute.Int("result.item_count", itemCount))
	}
	if durationMs, ok := attrs["duration_ms"].(int64); ok {
		span.SetAttributes(attribute.Int64("result.duration_ms", durationMs))
	}

	span.SetStatus(codes.Ok, "")
}

// ============================================================================
// CORRELATION ID HELPER
// ============================================================================

// SetCorrelationID sets a correlation ID in span attributes, the same ID
// internal/httpmiddleware.RequestID attaches to each inbound request.
func SetCorrelationID(span trace.Span, correlationID string) {
	if correlationID != "" {
		span.SetAttributes(attribute.String("trace.correlation_id", correlationID))
	}
}
