package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TopicPlaceholder is replaced with the topic in prompt templates and the
// headline feed URL.
const TopicPlaceholder = "{topic}"

// Prompts holds prompt template overrides. Empty fields keep the built-in
// template.
type Prompts struct {
	Idea string `yaml:"idea"`
	News string `yaml:"news"`
}

// LoadPrompts reads overrides from a YAML file such as
//
//	idea: "Pitch one startup idea about {topic}."
//	news: "Summarize this week's news about {topic}."
//
// An empty path returns empty Prompts. Every non-empty template must contain
// {topic}.
func LoadPrompts(path string) (Prompts, error) {
	var p Prompts
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read prompts file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse prompts file %s: %w", path, err)
	}

	p.Idea = strings.TrimSpace(p.Idea)
	p.News = strings.TrimSpace(p.News)
	for name, tmpl := range map[string]string{"idea": p.Idea, "news": p.News} {
		if tmpl != "" && !strings.Contains(tmpl, TopicPlaceholder) {
			return Prompts{}, fmt.Errorf("prompt %q must contain %s", name, TopicPlaceholder)
		}
	}
	return p, nil
}
