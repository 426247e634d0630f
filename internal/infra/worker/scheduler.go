package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"kairos/internal/domain/entity"
	"kairos/internal/observability/logging"
)

// CycleRunner runs one cycle for a topic.
type CycleRunner interface {
	RunCycle(ctx context.Context, topic entity.Topic) (*entity.CycleResult, error)
}

// Scheduler runs a cycle for a fixed topic on a cron schedule. A tick that
// fires while the previous cycle is still running is skipped.
type Scheduler struct {
	cfg     WorkerConfig
	runner  CycleRunner
	topic   entity.Topic
	logger  *slog.Logger
	metrics *WorkerMetrics
	health  *HealthServer
	running atomic.Bool
	now     func() time.Time
}

// NewScheduler wires runner to the schedule in cfg. metrics and health may
// be nil.
func NewScheduler(cfg WorkerConfig, runner CycleRunner, topic entity.Topic, logger *slog.Logger, metrics *WorkerMetrics, health *HealthServer) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:     cfg,
		runner:  runner,
		topic:   topic,
		logger:  logger,
		metrics: metrics,
		health:  health,
		now:     time.Now,
	}
}

// Start registers the job and blocks until ctx is cancelled. It then stops
// the cron and waits for a running cycle to return; the cycle itself sees
// ctx cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		s.logger.Error("invalid timezone, using UTC", slog.String("timezone", s.cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{s.logger})),
	)
	if _, err := c.AddFunc(s.cfg.CronSchedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	c.Start()

	if s.health != nil {
		s.health.SetReady(true)
	}
	s.logger.Info("scheduler started",
		slog.String("topic", s.topic.String()),
		slog.String("schedule", s.cfg.CronSchedule),
		slog.String("timezone", loc.String()))

	<-ctx.Done()

	if s.health != nil {
		s.health.SetReady(false)
	}
	s.logger.Info("scheduler stopping, waiting for running cycle")
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// RunOnce executes one scheduled cycle and records its outcome. It returns
// false without running when a cycle is already in flight.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous cycle still running, skipping tick", slog.String("topic", s.topic.String()))
		s.recordJobRun("skipped")
		return false
	}
	defer s.running.Store(false)

	start := s.now()
	s.recordJobRun("started")
	s.logger.Info("scheduled cycle started", slog.String("topic", s.topic.String()))

	result, err := s.runner.RunCycle(ctx, s.topic)
	finished := s.now()
	duration := finished.Sub(start)

	status := RunStatus{
		Topic:      s.topic.String(),
		StartedAt:  start,
		FinishedAt: finished,
		Duration:   duration,
	}
	if result != nil {
		status.Outcome = string(result.State)
		if result.Failed() {
			status.Outcome = "analysis_failed"
		}
	}

	if err != nil {
		status.Status = "failure"
		status.Error = logging.SanitizeError(err)
		s.logger.Error("scheduled cycle failed",
			slog.String("topic", s.topic.String()),
			slog.Duration("duration", duration),
			slog.String("error", status.Error))
	} else {
		status.Status = "success"
		s.logger.Info("scheduled cycle completed",
			slog.String("topic", s.topic.String()),
			slog.String("outcome", status.Outcome),
			slog.Duration("duration", duration))
	}

	if s.metrics != nil {
		s.metrics.RecordJobRun(status.Status)
		s.metrics.RecordJobDuration(duration.Seconds())
		if err == nil {
			s.metrics.RecordLastSuccess()
		}
	}
	if s.health != nil {
		s.health.RecordRun(status)
	}
	return true
}

func (s *Scheduler) recordJobRun(status string) {
	if s.metrics != nil {
		s.metrics.RecordJobRun(status)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.Any("error", err))...)
}
