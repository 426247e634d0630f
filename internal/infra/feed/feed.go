// Package feed fetches recent headlines for a topic from an RSS/Atom search
// feed. It uses the gofeed library with circuit breaker and retry logic.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"kairos/internal/domain/entity"
	"kairos/internal/observability/metrics"
	"kairos/internal/resilience/circuitbreaker"
	"kairos/internal/resilience/retry"
	"kairos/internal/utils/text"
)

// TopicPlaceholder is replaced by the query-escaped topic in the feed URL.
const TopicPlaceholder = "{topic}"

const maxSummaryRunes = 280

// DefaultTimeout bounds a Headlines call when no timeout is given.
const DefaultTimeout = 15 * time.Second

// HeadlineSource fetches the newest headlines for a topic from a feed URL
// template such as "https://news.google.com/rss/search?q={topic}".
type HeadlineSource struct {
	client         *http.Client
	urlTemplate    string
	limit          int
	timeout        time.Duration
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewHeadlineSource creates a HeadlineSource. limit caps the number of
// headlines returned and timeout bounds each Headlines call, retries
// included. A non-positive timeout means DefaultTimeout.
func NewHeadlineSource(client *http.Client, urlTemplate string, limit int, timeout time.Duration) (*HeadlineSource, error) {
	if !strings.Contains(urlTemplate, TopicPlaceholder) {
		return nil, fmt.Errorf("feed url must contain %s", TopicPlaceholder)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("headline limit must be positive, got %d", limit)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HeadlineSource{
		client:         client,
		urlTemplate:    urlTemplate,
		limit:          limit,
		timeout:        timeout,
		circuitBreaker: circuitbreaker.New(circuitbreaker.NewsFeedConfig()),
		retryConfig:    retry.DefaultConfig(),
	}, nil
}

// FeedURL returns the feed URL for topic.
func (s *HeadlineSource) FeedURL(topic entity.Topic) string {
	return strings.ReplaceAll(s.urlTemplate, TopicPlaceholder, url.QueryEscape(topic.String()))
}

// Headlines returns up to limit headlines for topic, newest first.
func (s *HeadlineSource) Headlines(ctx context.Context, topic entity.Topic) ([]entity.Headline, error) {
	feedURL := s.FeedURL(topic)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var items []entity.Headline
	err := retry.WithBackoff(ctx, s.retryConfig, func() error {
		result, err := circuitbreaker.Run(s.circuitBreaker, func() ([]entity.Headline, error) {
			return s.doFetch(ctx, feedURL)
		})
		if err != nil {
			if errors.Is(err, circuitbreaker.ErrOpen) {
				slog.Warn("headline feed circuit breaker open, request rejected",
					slog.String("service", "news-feed"),
					slog.String("url", feedURL))
				return retry.Permanent(err)
			}
			return err
		}
		items = result
		return nil
	})
	metrics.RecordHeadlines(len(items), err)
	if err != nil {
		return nil, fmt.Errorf("fetch headlines: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > s.limit {
		items = items[:s.limit]
	}
	return items, nil
}

// doFetch performs the actual feed fetch without retry or circuit breaker.
func (s *HeadlineSource) doFetch(ctx context.Context, feedURL string) ([]entity.Headline, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "KairosBot"
	fp.Client = s.client

	parsed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &retry.HTTPError{StatusCode: httpErr.StatusCode, Message: httpErr.Status, Err: err}
		}
		return nil, err
	}

	items := make([]entity.Headline, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		title := text.CollapseWhitespace(it.Title)
		if title == "" {
			continue
		}

		var publishedAt time.Time
		switch {
		case it.PublishedParsed != nil:
			publishedAt = *it.PublishedParsed
		case it.UpdatedParsed != nil:
			publishedAt = *it.UpdatedParsed
		}

		// A malformed link is dropped; the headline is still useful.
		link := strings.TrimSpace(it.Link)
		if entity.ValidateLink(link) != nil {
			link = ""
		}

		items = append(items, entity.Headline{
			Title:       title,
			URL:         link,
			Summary:     text.Truncate(stripHTML(it.Description), maxSummaryRunes),
			PublishedAt: publishedAt,
		})
	}
	return items, nil
}

// stripHTML returns the visible text of an HTML fragment.
func stripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return text.CollapseWhitespace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return text.CollapseWhitespace(fragment)
	}
	return text.CollapseWhitespace(doc.Text())
}
