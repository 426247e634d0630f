// kairos runs the idea, analysis and news cycle for a topic and publishes
// the results as Google Docs.
//
// Usage:
//
//	kairos <topic>              run one cycle and exit
//	kairos <topic> --schedule   run a cycle on CRON_SCHEDULE until interrupted
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kairos/internal/config"
	"kairos/internal/domain/entity"
	"kairos/internal/infra/worker"
	"kairos/internal/observability/logging"
	pkgconfig "kairos/internal/pkg/config"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var schedule bool

	cmd := &cobra.Command{
		Use:   "kairos <topic>",
		Short: "Generate, analyze and publish a startup idea and a news briefing for a topic",
		Long: "kairos asks a language model for a startup idea about the topic, sends it to the\n" +
			"analysis service, publishes the report as a Google Doc, then publishes a\n" +
			"news briefing for the same topic.",
		Args:          cobra.ExactArgs(1),
		Version:       version,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := entity.NewTopic(args[0])
			if err != nil {
				return err
			}
			// Argument errors print usage; runtime errors do not.
			cmd.SilenceUsage = true

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if schedule {
				return runScheduled(ctx, topic)
			}
			return runOnce(ctx, topic)
		},
	}
	cmd.Flags().BoolVar(&schedule, "schedule", false, "keep running and execute the cycle on CRON_SCHEDULE")
	return cmd
}

// initLogger builds the process logger from LOG_FORMAT and LOG_LEVEL and
// installs it as the slog default.
func initLogger() *slog.Logger {
	logger := logging.New(pkgconfig.LoadEnvString("LOG_FORMAT", logging.FormatText))
	slog.SetDefault(logger)
	return logger
}

func loadConfig(logger *slog.Logger) (*config.Config, config.Prompts, error) {
	cfg, err := config.Load(logger, pkgconfig.NewConfigMetrics("kairos", nil))
	if err != nil {
		return nil, config.Prompts{}, err
	}
	prompts, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, config.Prompts{}, err
	}
	logger.Info("configuration loaded",
		slog.String("generator", cfg.Generator.Type),
		slog.String("analysis_url", cfg.Analysis.BaseURL),
		slog.Bool("headlines", cfg.News.Enabled()),
		slog.String("share_mode", string(cfg.Publish.ShareMode)),
		slog.Bool("quota_recovery", cfg.Publish.QuotaRecoveryEnabled),
		slog.Duration("cycle_timeout", cfg.CycleTimeout))
	return cfg, prompts, nil
}

// runOnce runs a single cycle. An analysis failure that was reported in a
// failure document is not an error.
func runOnce(ctx context.Context, topic entity.Topic) error {
	logger := initLogger()
	ctx = logging.WithLogger(ctx, logger)

	cfg, prompts, err := loadConfig(logger)
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", logging.SanitizeError(err)))
		return err
	}

	orchestrator, err := buildOrchestrator(ctx, cfg, prompts)
	if err != nil {
		logger.Error("failed to initialize", slog.String("error", logging.SanitizeError(err)))
		return err
	}

	result, err := orchestrator.RunCycle(ctx, topic)
	if err != nil {
		return fmt.Errorf("cycle aborted in state %s: %s", result.State, logging.SanitizeError(err))
	}

	for _, doc := range result.Documents() {
		fmt.Fprintf(os.Stdout, "%s\t%s\n", doc.Title, doc.URL)
	}
	return nil
}

// runScheduled serves health and metrics endpoints and runs a cycle on the
// configured schedule until ctx is cancelled.
func runScheduled(ctx context.Context, topic entity.Topic) error {
	logger := initLogger()
	ctx = logging.WithLogger(ctx, logger)

	cfg, prompts, err := loadConfig(logger)
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", logging.SanitizeError(err)))
		return err
	}

	workerMetrics := worker.NewWorkerMetrics(nil)
	workerConfig, err := worker.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		return err
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("health_port", workerConfig.HealthPort),
		slog.Int("metrics_port", workerConfig.MetricsPort))

	orchestrator, err := buildOrchestrator(ctx, cfg, prompts)
	if err != nil {
		logger.Error("failed to initialize", slog.String("error", logging.SanitizeError(err)))
		return err
	}

	startMetricsServer(ctx, logger, workerConfig.MetricsPort)

	healthServer := worker.NewHealthServer(fmt.Sprintf(":%d", workerConfig.HealthPort), logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	scheduler := worker.NewScheduler(*workerConfig, orchestrator, topic, logger, workerMetrics, healthServer)
	return scheduler.Start(ctx)
}
