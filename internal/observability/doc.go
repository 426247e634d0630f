// Package observability groups the logging, metrics and tracing helpers
// shared by every cycle phase.
//
// Subpackages:
//   - logging: slog constructors, context propagation and secret masking
//   - metrics: Prometheus collectors for cycles, phases and documents
//   - tracing: OpenTelemetry tracer and outbound trace propagation
//
// Example usage:
//
//	logger := logging.New(logging.FormatJSON)
//	ctx, span := tracing.StartPhase(ctx, "ideate")
//	defer span.End()
//	metrics.RecordPhase("ideate", time.Since(start), err)
package observability
