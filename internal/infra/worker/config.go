package worker

import (
	"fmt"
	"log/slog"

	"kairos/internal/pkg/config"
)

// WorkerConfig holds the configuration of schedule mode: when cycles run and
// where the health and metrics endpoints listen.
//
// Environment variables:
//   - CRON_SCHEDULE: five-field cron expression (default: "0 6 * * 1")
//   - WORKER_TIMEZONE: IANA timezone name (default: "UTC")
//   - WORKER_HEALTH_PORT: integer 1024-65535 (default: 9091)
//   - METRICS_PORT: integer 1024-65535 (default: 9090)
type WorkerConfig struct {
	// CronSchedule is the cron expression for cycle scheduling.
	// Format: "minute hour day month weekday"
	// Default: "0 6 * * 1" (Mondays at 06:00)
	CronSchedule string

	// Timezone is the IANA timezone the schedule is evaluated in.
	Timezone string

	// HealthPort is the port of the liveness/readiness server.
	HealthPort int

	// MetricsPort is the port of the Prometheus /metrics server.
	MetricsPort int
}

// DefaultConfig returns a WorkerConfig with the default weekly schedule.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule: "0 6 * * 1",
		Timezone:     "UTC",
		HealthPort:   9091,
		MetricsPort:  9090,
	}
}

// Validate checks every field and reports all failures together.
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errors = append(errors, fmt.Errorf("cron schedule: %w", err))
	}

	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}

	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}

	if err := config.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("metrics port: %w", err))
	}

	if c.HealthPort == c.MetricsPort {
		errors = append(errors, fmt.Errorf("health port and metrics port must differ, both are %d", c.HealthPort))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	return nil
}

// LoadConfigFromEnv loads the worker configuration with the fail-open
// strategy: every invalid value is replaced by its default, logged and
// counted on metrics (which may be nil). The returned error is non-nil only
// when the result still fails Validate, which happens when both ports were
// set to the same value.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()

	var cm *config.ConfigMetrics
	if metrics != nil {
		cm = metrics.ConfigMetrics
	}
	tr := config.NewTracker(logger, cm)

	cfg.CronSchedule = config.Track(tr, "cron_schedule",
		config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule))

	cfg.Timezone = config.Track(tr, "timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone))

	cfg.HealthPort = config.Track(tr, "health_port",
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
			return config.ValidateIntRange(v, 1024, 65535)
		}))

	cfg.MetricsPort = config.Track(tr, "metrics_port",
		config.LoadEnvInt("METRICS_PORT", cfg.MetricsPort, func(v int) error {
			return config.ValidateIntRange(v, 1024, 65535)
		}))

	tr.Finish()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
