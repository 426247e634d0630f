// Package logging provides structured logging utilities built on log/slog.
//
// Key features:
//   - JSON and text output, level from LOG_LEVEL
//   - Cycle id propagation through context
//   - Masking of API keys and OAuth tokens in error strings
//
// Example usage:
//
//	logger := logging.New(logging.FormatText)
//	ctx = logging.WithLogger(ctx, logger.With(slog.String("cycle_id", id)))
//	logging.FromContext(ctx).Error("cycle failed",
//	    slog.String("error", logging.SanitizeError(err)))
package logging
