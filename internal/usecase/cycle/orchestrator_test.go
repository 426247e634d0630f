package cycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"kairos/internal/domain/entity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// callLog records calls across all fakes in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeIdeas struct {
	log  *callLog
	idea string
	err  error
}

func (f *fakeIdeas) Generate(_ context.Context, topic entity.Topic) (string, error) {
	f.log.add("generate " + topic.String())
	return f.idea, f.err
}

type fakeNews struct {
	log     *callLog
	summary string
	err     error
}

func (f *fakeNews) Summarize(_ context.Context, topic entity.Topic) (string, error) {
	f.log.add("summarize " + topic.String())
	return f.summary, f.err
}

type fakeAnalyzer struct {
	log    *callLog
	result entity.AnalysisResult
	err    error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, idea string) (entity.AnalysisResult, error) {
	f.log.add("analyze " + idea)
	return f.result, f.err
}

type published struct {
	title    string
	body     string
	folderID string
}

type fakePublisher struct {
	log       *callLog
	mu        sync.Mutex
	docs      []published
	failTitle string
	err       error
	next      int
}

func (f *fakePublisher) Publish(_ context.Context, title, content, folderID string) (*entity.DocumentRef, error) {
	f.log.add("publish " + title)
	if f.err != nil && strings.HasPrefix(title, f.failTitle) {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.docs = append(f.docs, published{title: title, body: content, folderID: folderID})
	return entity.NewDocumentRef(string(rune('a'+f.next-1))+"-doc", title), nil
}

func (f *fakePublisher) PostPublish(_ context.Context, doc *entity.DocumentRef) entity.ShareResult {
	f.log.add("post " + doc.ID)
	return entity.ShareResult{Skipped: true}
}

type fixture struct {
	log       *callLog
	ideas     *fakeIdeas
	analyzer  *fakeAnalyzer
	news      *fakeNews
	publisher *fakePublisher
	authErr   error
	authCalls int
}

func newFixture() *fixture {
	log := &callLog{}
	return &fixture{
		log:   log,
		ideas: &fakeIdeas{log: log, idea: "Solar-powered cold storage for smallholder farms"},
		analyzer: &fakeAnalyzer{log: log, result: entity.AnalysisResult{
			Viability:  "VIABILITY-TEXT",
			Risk:       "RISK-TEXT",
			ActionPlan: "PLAN-TEXT",
		}},
		news:      &fakeNews{log: log, summary: "Agritech funding rose this week."},
		publisher: &fakePublisher{log: log},
	}
}

func (f *fixture) orchestrator() *Orchestrator {
	factory := PublisherFactoryFunc(func(context.Context) (Publisher, error) {
		f.authCalls++
		f.log.add("authenticate")
		if f.authErr != nil {
			return nil, f.authErr
		}
		return f.publisher, nil
	})
	return NewOrchestrator(f.ideas, f.analyzer, f.news, factory, Config{
		FolderID: "folder-1",
		Timeout:  time.Minute,
		Now:      func() time.Time { return testNow },
	})
}

func TestRunCycle_Success(t *testing.T) {
	f := newFixture()
	result, err := f.orchestrator().RunCycle(context.Background(), entity.Topic("agritech"))
	require.NoError(t, err)

	idea := "Solar-powered cold storage for smallholder farms"
	assert.Equal(t, []string{
		"generate agritech",
		"analyze " + idea,
		"authenticate",
		"publish Ethical Adversary Analysis: " + idea,
		"post a-doc",
		"summarize agritech",
		"publish Weekly Intelligence Briefing: agritech - 2025-03-10",
		"post b-doc",
	}, f.log.all())

	assert.Equal(t, []entity.CycleState{
		entity.StateStart,
		entity.StateIdeate,
		entity.StateAnalyze,
		entity.StateReportPublished,
		entity.StateSummarize,
		entity.StateNewsPublished,
		entity.StateDone,
	}, result.Trail)
	assert.Equal(t, entity.StateDone, result.State)
	assert.Equal(t, idea, result.Idea)
	assert.False(t, result.Failed())
	require.NotNil(t, result.Report)
	require.NotNil(t, result.News)
	assert.Len(t, result.Documents(), 2)

	require.Len(t, f.publisher.docs, 2)
	assert.Equal(t, "folder-1", f.publisher.docs[0].folderID)
	assert.Equal(t, "Agritech funding rose this week.", f.publisher.docs[1].body)

	body := f.publisher.docs[0].body
	positions := []int{
		strings.Index(body, idea),
		strings.Index(body, "VIABILITY-TEXT"),
		strings.Index(body, "RISK-TEXT"),
		strings.Index(body, "PLAN-TEXT"),
	}
	for i, p := range positions {
		require.GreaterOrEqual(t, p, 0, "section %d missing", i)
		if i > 0 {
			assert.Greater(t, p, positions[i-1], "section %d out of order", i)
		}
	}
}

func TestRunCycle_AnalysisFailurePublishesFailureReport(t *testing.T) {
	f := newFixture()
	f.analyzer.err = &entity.AnalysisError{StatusCode: 503, Err: errors.New("space is sleeping")}

	result, err := f.orchestrator().RunCycle(context.Background(), entity.Topic("agritech"))
	require.NoError(t, err)

	require.Len(t, f.publisher.docs, 1)
	doc := f.publisher.docs[0]
	assert.Contains(t, doc.title, "FAILED")
	assert.Contains(t, doc.body, "agritech")
	assert.Contains(t, doc.body, "Solar-powered cold storage")
	assert.Contains(t, doc.body, "space is sleeping")

	for _, call := range f.log.all() {
		assert.NotContains(t, call, "summarize", "news must not run after analysis failure")
	}
	assert.True(t, result.Failed())
	assert.Nil(t, result.Report)
	assert.Nil(t, result.News)
	assert.Equal(t, []entity.CycleState{
		entity.StateStart,
		entity.StateIdeate,
		entity.StateAnalyze,
		entity.StateFailureReportPublished,
		entity.StateDone,
	}, result.Trail)
}

func TestRunCycle_MissingAnalysisSectionsShowNA(t *testing.T) {
	f := newFixture()
	f.analyzer.result = entity.AnalysisResult{Risk: "RISK-TEXT"}

	_, err := f.orchestrator().RunCycle(context.Background(), entity.Topic("agritech"))
	require.NoError(t, err)

	body := f.publisher.docs[0].body
	assert.Contains(t, body, "# Product Viability Report (Blue Team)\n\nN/A")
	assert.Contains(t, body, "# Risk Report (Red Team)\n\nRISK-TEXT")
	assert.Contains(t, body, "# Action Plan (Resolution)\n\nN/A")
}

func TestRunCycle_AbortingErrors(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		wantIs    error
		wantState entity.CycleState
		wantDocs  int
	}{
		{
			name: "generation error",
			setup: func(f *fixture) {
				f.ideas.err = &entity.GenerationError{Op: "generate idea", Err: errors.New("quota")}
			},
			wantIs:    entity.ErrGeneration,
			wantState: entity.StateIdeate,
		},
		{
			name: "non analysis error from analyzer",
			setup: func(f *fixture) {
				f.analyzer.err = context.Canceled
			},
			wantIs:    context.Canceled,
			wantState: entity.StateAnalyze,
		},
		{
			name: "auth error",
			setup: func(f *fixture) {
				f.authErr = &entity.AuthError{Op: "resolve credential", Err: errors.New("no token")}
			},
			wantIs:    entity.ErrAuth,
			wantState: entity.StateAnalyze,
		},
		{
			name: "report publish error",
			setup: func(f *fixture) {
				f.publisher.failTitle = "Ethical Adversary Analysis: "
				f.publisher.err = &entity.PublishError{Op: "create", Err: errors.New("403")}
			},
			wantIs:    entity.ErrPublish,
			wantState: entity.StateAnalyze,
		},
		{
			name: "summary error after report",
			setup: func(f *fixture) {
				f.news.err = &entity.GenerationError{Op: "summarize news", Err: errors.New("refusal")}
			},
			wantIs:    entity.ErrGeneration,
			wantState: entity.StateSummarize,
			wantDocs:  1,
		},
		{
			name: "failure report publish error",
			setup: func(f *fixture) {
				f.analyzer.err = &entity.AnalysisError{Err: errors.New("timeout")}
				f.publisher.failTitle = "Ethical Adversary Analysis FAILED"
				f.publisher.err = &entity.PublishError{Op: "create", Err: errors.New("500")}
			},
			wantIs:    entity.ErrPublish,
			wantState: entity.StateAnalyze,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			result, err := f.orchestrator().RunCycle(context.Background(), entity.Topic("agritech"))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			require.NotNil(t, result)
			assert.Equal(t, tt.wantState, result.State)
			assert.Len(t, f.publisher.docs, tt.wantDocs)
		})
	}
}

func TestRunCycle_GenerationErrorSkipsEverythingElse(t *testing.T) {
	f := newFixture()
	f.ideas.err = &entity.GenerationError{Op: "generate idea", Err: errors.New("boom")}

	_, err := f.orchestrator().RunCycle(context.Background(), entity.Topic("agritech"))
	require.Error(t, err)
	assert.Equal(t, []string{"generate agritech"}, f.log.all())
	assert.Zero(t, f.authCalls, "credentials are resolved only when publishing")
}

func TestRunCycle_NotIdempotent(t *testing.T) {
	f := newFixture()
	o := f.orchestrator()

	first, err := o.RunCycle(context.Background(), entity.Topic("agritech"))
	require.NoError(t, err)
	second, err := o.RunCycle(context.Background(), entity.Topic("agritech"))
	require.NoError(t, err)

	assert.Len(t, f.publisher.docs, 4)
	assert.Equal(t, 2, f.authCalls, "each cycle resolves its own credential")
	assert.NotEqual(t, first.Report.ID, second.Report.ID)
	assert.NotEqual(t, first.News.ID, second.News.ID)
}

func TestRunCycle_AppliesTimeout(t *testing.T) {
	f := newFixture()
	var hasDeadline bool
	o := NewOrchestrator(
		ideaFunc(func(ctx context.Context) (string, error) {
			_, hasDeadline = ctx.Deadline()
			return "", &entity.GenerationError{Op: "generate idea", Err: errors.New("stop")}
		}),
		f.analyzer, f.news, nil, Config{Timeout: time.Second})

	_, err := o.RunCycle(context.Background(), entity.Topic("agritech"))
	require.Error(t, err)
	assert.True(t, hasDeadline)
}

type ideaFunc func(ctx context.Context) (string, error)

func (fn ideaFunc) Generate(ctx context.Context, _ entity.Topic) (string, error) { return fn(ctx) }

func TestRunCycle_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})

	f := newFixture()
	f.analyzer.err = &entity.AnalysisError{StatusCode: 500, Err: errors.New("down")}

	_, err := f.orchestrator().RunCycle(context.Background(), entity.Topic("agritech"))
	require.NoError(t, err)

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{
		"cycle.ideate",
		"cycle.analyze",
		"cycle.authenticate",
		"cycle.publish_failure_report",
		"cycle",
	}, names)
}
