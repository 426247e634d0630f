package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"kairos/internal/config"
	"kairos/internal/domain/entity"
	"kairos/internal/infra/analysis"
	"kairos/internal/infra/completion"
	"kairos/internal/infra/feed"
	"kairos/internal/infra/gdocs"
	"kairos/internal/infra/googleauth"
	"kairos/internal/observability/logging"
	"kairos/internal/observability/tracing"
	"kairos/internal/usecase/cycle"
	"kairos/internal/usecase/generate"
	"kairos/internal/usecase/publish"
)

// buildOrchestrator wires every cycle component from cfg.
func buildOrchestrator(ctx context.Context, cfg *config.Config, prompts config.Prompts) (*cycle.Orchestrator, error) {
	completer, err := createCompleter(ctx, cfg.Generator)
	if err != nil {
		return nil, err
	}

	headlines, err := createHeadlineSource(cfg.News)
	if err != nil {
		return nil, err
	}

	analyzer, err := analysis.NewClient(analysis.Config{
		BaseURL: cfg.Analysis.BaseURL,
		Timeout: cfg.Analysis.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create analysis client: %w", err)
	}

	ideaPrompt := prompts.Idea
	if ideaPrompt == "" {
		ideaPrompt = generate.DefaultIdeaPrompt
	}
	newsPrompt := prompts.News
	if newsPrompt == "" {
		newsPrompt = generate.DefaultNewsPrompt
	}

	return cycle.NewOrchestrator(
		generate.NewIdeaGenerator(completer, ideaPrompt),
		analyzer,
		generate.NewNewsSummarizer(completer, newsPrompt, headlines),
		newPublisherFactory(cfg),
		cycle.Config{
			FolderID: cfg.Publish.FolderID,
			Timeout:  cfg.CycleTimeout,
		},
	), nil
}

// createCompleter selects the language model adapter for GENERATOR_TYPE.
func createCompleter(ctx context.Context, cfg config.GeneratorConfig) (generate.Completer, error) {
	ccfg := completion.Config{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
		HTTPClient:  &http.Client{Transport: tracing.NewTransport(nil)},
	}

	switch cfg.Type {
	case config.GeneratorGemini:
		return completion.NewGemini(ctx, ccfg)
	case config.GeneratorClaude:
		return completion.NewClaude(ccfg)
	case config.GeneratorOpenAI:
		return completion.NewOpenAI(ccfg)
	default:
		return nil, fmt.Errorf("unknown generator type %q", cfg.Type)
	}
}

// createHeadlineSource returns nil when no feed is configured. The result is
// an interface so that a disabled source is a true nil.
func createHeadlineSource(cfg config.NewsConfig) (generate.HeadlineSource, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	client := &http.Client{
		Transport: tracing.NewTransport(nil),
		Timeout:   cfg.FetchTimeout,
	}
	source, err := feed.NewHeadlineSource(client, cfg.FeedURL, cfg.MaxHeadlines, cfg.FetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("create headline source: %w", err)
	}
	return source, nil
}

// newPublisherFactory resolves a credential for every cycle and binds a
// publish service to it. The quota recoverer is shared so recoveries from
// overlapping cycles never run concurrently.
func newPublisherFactory(cfg *config.Config) cycle.PublisherFactory {
	resolver := googleauth.NewResolver(googleauth.Config{
		TokenFile:          cfg.Google.TokenFile,
		OAuthClientJSON:    cfg.Google.OAuthClientJSON,
		ServiceAccountJSON: cfg.Google.ServiceAccountJSON,
	})
	recoverer := publish.NewQuotaRecoverer()
	publishConfig := publish.Config{
		FolderID:             cfg.Publish.FolderID,
		ShareEmail:           cfg.Publish.ShareEmail,
		ShareMode:            cfg.Publish.ShareMode,
		QuotaRecoveryEnabled: cfg.Publish.QuotaRecoveryEnabled,
		KeepLastN:            cfg.Publish.KeepLastN,
	}

	return cycle.PublisherFactoryFunc(func(ctx context.Context) (cycle.Publisher, error) {
		cred, err := resolver.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		logging.FromContext(ctx).InfoContext(ctx, "Google credential resolved",
			slog.String("source", string(cred.Source)))

		return bindPublisher(ctx, cred.HTTPClient(), newDocumentStore, publishConfig, recoverer)
	})
}

// documentStoreFunc builds the Docs and Drive client for one credential.
type documentStoreFunc func(ctx context.Context, httpClient *http.Client) (publish.DocumentStore, error)

func newDocumentStore(ctx context.Context, httpClient *http.Client) (publish.DocumentStore, error) {
	return gdocs.NewWithHTTPClient(ctx, httpClient)
}

// bindPublisher creates a publish service over the store built from
// httpClient. A store that cannot be built is a *entity.PublishError.
func bindPublisher(ctx context.Context, httpClient *http.Client, newStore documentStoreFunc, cfg publish.Config, recoverer *publish.QuotaRecoverer) (cycle.Publisher, error) {
	store, err := newStore(ctx, httpClient)
	if err != nil {
		return nil, &entity.PublishError{Op: "create document client", Err: err}
	}
	return publish.NewService(store, cfg, recoverer), nil
}
