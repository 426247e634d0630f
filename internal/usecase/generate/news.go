package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"kairos/internal/domain/entity"
	"kairos/internal/observability/logging"
)

// NewsSummarizer asks the model for a one-paragraph news briefing.
type NewsSummarizer struct {
	completer Completer
	template  string
	headlines HeadlineSource
}

// NewNewsSummarizer creates a NewsSummarizer. headlines may be nil; an empty
// template selects DefaultNewsPrompt.
func NewNewsSummarizer(completer Completer, template string, headlines HeadlineSource) *NewsSummarizer {
	if template == "" {
		template = DefaultNewsPrompt
	}
	return &NewsSummarizer{completer: completer, template: template, headlines: headlines}
}

// Summarize returns the summary text. Headline fetch failures only drop the
// headline context.
func (s *NewsSummarizer) Summarize(ctx context.Context, topic entity.Topic) (string, error) {
	prompt := RenderPrompt(s.template, topic)

	if s.headlines != nil {
		items, err := s.headlines.Headlines(ctx, topic)
		if err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "Headline fetch failed, summarizing without headlines",
				slog.String("topic", topic.String()),
				slog.Any("error", err))
		} else {
			prompt += formatHeadlines(items)
		}
	}

	return complete(ctx, s.completer, "summarize news", prompt)
}

func formatHeadlines(items []entity.Headline) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\nUse these recent headlines as context:\n")
	for _, h := range items {
		sb.WriteString("- ")
		sb.WriteString(h.Title)
		if !h.PublishedAt.IsZero() {
			fmt.Fprintf(&sb, " (%s)", h.PublishedAt.Format("2006-01-02"))
		}
		if h.URL != "" {
			fmt.Fprintf(&sb, " <%s>", h.URL)
		}
		sb.WriteString("\n")
		if h.Summary != "" {
			sb.WriteString("  ")
			sb.WriteString(h.Summary)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
