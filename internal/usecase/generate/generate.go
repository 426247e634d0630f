// Package generate turns a topic into model text: a one-sentence startup idea
// and a weekly news summary. Each operation is exactly one completion call.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"kairos/internal/domain/entity"
	"kairos/internal/observability/logging"
	"kairos/internal/utils/text"
)

// TopicPlaceholder is replaced with the topic in prompt templates.
const TopicPlaceholder = "{topic}"

// Built-in prompt templates.
const (
	DefaultIdeaPrompt = "You are a creative venture capitalist. Generate a single, interesting, and novel startup idea related to the topic of {topic}. The idea should be a short, one-sentence concept."

	DefaultNewsPrompt = "You are a news analyst. Find the top 3 most significant news articles and developments from the past week on the topic of '{topic}' and write a concise, one-paragraph summary for a weekly intelligence briefing."
)

// Completer is a single-shot text completion backend.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// HeadlineSource supplies recent headlines for a topic.
type HeadlineSource interface {
	Headlines(ctx context.Context, topic entity.Topic) ([]entity.Headline, error)
}

// Errors wrapped in *entity.GenerationError for unusable output.
var (
	ErrEmptyOutput = errors.New("model returned empty text")
	ErrRefusal     = errors.New("model refused the prompt")
)

var refusalPrefixes = []string{
	"i'm sorry",
	"i’m sorry",
	"i cannot",
	"i can't",
	"i can’t",
	"as an ai",
}

// RenderPrompt substitutes topic into template.
func RenderPrompt(template string, topic entity.Topic) string {
	return strings.ReplaceAll(template, TopicPlaceholder, topic.String())
}

// checkOutput rejects empty and refused output.
func checkOutput(out string) error {
	if out == "" {
		return ErrEmptyOutput
	}
	lower := strings.ToLower(out)
	for _, prefix := range refusalPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return fmt.Errorf("%w: %q", ErrRefusal, text.Truncate(out, 80))
		}
	}
	return nil
}

// complete runs one completion and validates the result.
func complete(ctx context.Context, c Completer, op, prompt string) (string, error) {
	out, err := c.Complete(ctx, prompt)
	if err != nil {
		return "", &entity.GenerationError{Op: op, Err: err}
	}
	out = strings.TrimSpace(out)
	if err := checkOutput(out); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "Unusable model output",
			slog.String("op", op),
			slog.String("provider", c.Name()),
			slog.Any("error", err))
		return "", &entity.GenerationError{Op: op, Err: err}
	}
	return out, nil
}

// IdeaGenerator asks the model for one startup idea.
type IdeaGenerator struct {
	completer Completer
	template  string
}

// NewIdeaGenerator creates an IdeaGenerator. An empty template selects
// DefaultIdeaPrompt.
func NewIdeaGenerator(completer Completer, template string) *IdeaGenerator {
	if template == "" {
		template = DefaultIdeaPrompt
	}
	return &IdeaGenerator{completer: completer, template: template}
}

// Generate returns the idea text, with surrounding quotes removed.
func (g *IdeaGenerator) Generate(ctx context.Context, topic entity.Topic) (string, error) {
	idea, err := complete(ctx, g.completer, "generate idea", RenderPrompt(g.template, topic))
	if err != nil {
		return "", err
	}
	idea = text.TrimQuotes(idea)
	if idea == "" {
		return "", &entity.GenerationError{Op: "generate idea", Err: ErrEmptyOutput}
	}
	return idea, nil
}
