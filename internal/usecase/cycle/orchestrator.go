// Package cycle runs one pipeline cycle for a topic:
//
//	START → IDEATE → ANALYZE → REPORT_PUBLISHED → SUMMARIZE → NEWS_PUBLISHED → DONE
//
// An analysis failure takes the ANALYZE → FAILURE_REPORT_PUBLISHED → DONE
// edge instead: a failure report is published and the news phase is skipped.
// Every other error aborts the cycle and is returned to the caller.
package cycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"kairos/internal/domain/entity"
	"kairos/internal/observability/logging"
	"kairos/internal/observability/metrics"
	"kairos/internal/observability/tracing"
)

// Phase names used for spans and metrics.
const (
	PhaseIdeate        = "ideate"
	PhaseAnalyze       = "analyze"
	PhaseAuthenticate  = "authenticate"
	PhasePublishReport = "publish_report"
	PhasePublishFail   = "publish_failure_report"
	PhaseSummarize     = "summarize"
	PhasePublishNews   = "publish_news"
)

// IdeaGenerator produces a startup idea for a topic.
type IdeaGenerator interface {
	Generate(ctx context.Context, topic entity.Topic) (string, error)
}

// NewsSummarizer produces a news briefing for a topic.
type NewsSummarizer interface {
	Summarize(ctx context.Context, topic entity.Topic) (string, error)
}

// Analyzer sends an idea to the analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, idea string) (entity.AnalysisResult, error)
}

// Publisher publishes documents with one credential.
type Publisher interface {
	Publish(ctx context.Context, title, content, folderID string) (*entity.DocumentRef, error)
	PostPublish(ctx context.Context, doc *entity.DocumentRef) entity.ShareResult
}

// PublisherFactory resolves a credential and returns a Publisher bound to
// it. It is called once per cycle.
type PublisherFactory interface {
	NewPublisher(ctx context.Context) (Publisher, error)
}

// PublisherFactoryFunc adapts a function to PublisherFactory.
type PublisherFactoryFunc func(ctx context.Context) (Publisher, error)

// NewPublisher implements PublisherFactory.
func (f PublisherFactoryFunc) NewPublisher(ctx context.Context) (Publisher, error) {
	return f(ctx)
}

// Config holds cycle settings.
type Config struct {
	// FolderID is where every document of the cycle is published.
	FolderID string

	// Timeout bounds one cycle; zero means no bound.
	Timeout time.Duration

	// Now is the clock used for the news title date.
	Now func() time.Time
}

// Orchestrator runs cycles. It holds no per-cycle state and may be reused.
type Orchestrator struct {
	ideas      IdeaGenerator
	analyzer   Analyzer
	news       NewsSummarizer
	publishers PublisherFactory
	config     Config
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(ideas IdeaGenerator, analyzer Analyzer, news NewsSummarizer, publishers PublisherFactory, cfg Config) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		ideas:      ideas,
		analyzer:   analyzer,
		news:       news,
		publishers: publishers,
		config:     cfg,
	}
}

// run holds the state of one cycle.
type run struct {
	topic     entity.Topic
	result    *entity.CycleResult
	publisher Publisher
}

// RunCycle runs one cycle for topic. The returned result is never nil and
// shows how far the cycle got, also when an error is returned.
func (o *Orchestrator) RunCycle(ctx context.Context, topic entity.Topic) (*entity.CycleResult, error) {
	start := time.Now()
	result := &entity.CycleResult{Topic: topic}
	result.Enter(entity.StateStart)

	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	logger := logging.FromContext(ctx).With(slog.String("topic", topic.String()))
	ctx = logging.WithLogger(ctx, logger)

	ctx, span := tracing.GetTracer().Start(ctx, "cycle")
	span.SetAttributes(attribute.String("cycle.topic", topic.String()))
	defer span.End()

	logger.InfoContext(ctx, "Starting cycle")

	r := &run{topic: topic, result: result}
	outcome, err := o.run(ctx, r)

	result.Duration = time.Since(start)
	metrics.RecordCycle(outcome, result.Duration)
	span.SetAttributes(
		attribute.String("cycle.outcome", outcome),
		attribute.String("cycle.state", string(result.State)))
	tracing.RecordError(span, err)

	if err != nil {
		logger.ErrorContext(ctx, "Cycle aborted",
			slog.String("state", string(result.State)),
			slog.Duration("duration", result.Duration),
			slog.String("error", logging.SanitizeError(err)))
		return result, err
	}

	logger.InfoContext(ctx, "Cycle completed",
		slog.String("outcome", outcome),
		slog.Int("documents", len(result.Documents())),
		slog.Duration("duration", result.Duration))
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, r *run) (string, error) {
	r.result.Enter(entity.StateIdeate)
	err := o.phase(ctx, PhaseIdeate, func(ctx context.Context) error {
		idea, err := o.ideas.Generate(ctx, r.topic)
		r.result.Idea = idea
		return err
	})
	if err != nil {
		return metrics.OutcomeAborted, err
	}

	r.result.Enter(entity.StateAnalyze)
	var analysis entity.AnalysisResult
	err = o.phase(ctx, PhaseAnalyze, func(ctx context.Context) error {
		var err error
		analysis, err = o.analyzer.Analyze(ctx, r.result.Idea)
		return err
	})
	if err != nil {
		var analysisErr *entity.AnalysisError
		if !errors.As(err, &analysisErr) {
			return metrics.OutcomeAborted, err
		}
		if err := o.publishFailureReport(ctx, r, analysisErr); err != nil {
			return metrics.OutcomeAborted, err
		}
		r.result.Enter(entity.StateDone)
		return metrics.OutcomeAnalysisFailed, nil
	}

	report := RenderReport(r.result.Idea, analysis)
	ref, err := o.publish(ctx, r, PhasePublishReport, report)
	if err != nil {
		return metrics.OutcomeAborted, err
	}
	r.result.Report = ref
	r.result.Enter(entity.StateReportPublished)

	r.result.Enter(entity.StateSummarize)
	var summary string
	err = o.phase(ctx, PhaseSummarize, func(ctx context.Context) error {
		var err error
		summary, err = o.news.Summarize(ctx, r.topic)
		return err
	})
	if err != nil {
		return metrics.OutcomeAborted, err
	}

	news := RenderNews(r.topic, summary, o.config.Now())
	ref, err = o.publish(ctx, r, PhasePublishNews, news)
	if err != nil {
		return metrics.OutcomeAborted, err
	}
	r.result.News = ref
	r.result.Enter(entity.StateNewsPublished)

	r.result.Enter(entity.StateDone)
	return metrics.OutcomeSuccess, nil
}

func (o *Orchestrator) publishFailureReport(ctx context.Context, r *run, cause *entity.AnalysisError) error {
	logging.FromContext(ctx).WarnContext(ctx, "Analysis failed, publishing failure report",
		slog.Int("status_code", cause.StatusCode),
		slog.String("error", logging.SanitizeError(cause)))

	report := RenderFailureReport(r.topic, r.result.Idea, cause)
	ref, err := o.publish(ctx, r, PhasePublishFail, report)
	if err != nil {
		return err
	}
	r.result.FailureReport = ref
	r.result.Enter(entity.StateFailureReportPublished)
	return nil
}

// publish publishes report and runs the post-publish step. The publisher is
// created on first use so credentials are only resolved when needed.
func (o *Orchestrator) publish(ctx context.Context, r *run, phase string, report entity.Report) (*entity.DocumentRef, error) {
	if r.publisher == nil {
		err := o.phase(ctx, PhaseAuthenticate, func(ctx context.Context) error {
			p, err := o.publishers.NewPublisher(ctx)
			r.publisher = p
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	var ref *entity.DocumentRef
	err := o.phase(ctx, phase, func(ctx context.Context) error {
		var err error
		ref, err = r.publisher.Publish(ctx, report.Title, report.Body, o.config.FolderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.publisher.PostPublish(ctx, ref)
	return ref, nil
}

// phase runs fn in its own span and records its duration.
func (o *Orchestrator) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartPhase(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	metrics.RecordPhase(name, duration, err)
	tracing.RecordError(span, err)

	logger := logging.FromContext(ctx)
	if err != nil {
		logger.DebugContext(ctx, "Phase failed",
			slog.String("phase", name),
			slog.Duration("duration", duration))
		return err
	}
	logger.InfoContext(ctx, "Phase completed",
		slog.String("phase", name),
		slog.Duration("duration", duration))
	return nil
}
