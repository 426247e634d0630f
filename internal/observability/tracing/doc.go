// Package tracing provides OpenTelemetry spans for cycle phases and
// outbound HTTP calls.
//
// No exporter is configured here; spans go to whatever TracerProvider the
// process installs with otel.SetTracerProvider (a no-op by default).
//
// Example usage:
//
//	ctx, span := tracing.StartPhase(ctx, "analyze", attribute.String("topic", t))
//	defer span.End()
//	if err != nil {
//	    tracing.RecordError(span, err)
//	}
package tracing
