// Package entity defines the core domain entities of a publishing cycle.
// It contains the transient values a cycle passes between its phases (Topic,
// AnalysisResult, DocumentRef) and the typed errors used to decide whether a
// cycle recovers or aborts.
package entity

import "strings"

// Topic is the free-text subject that drives both generation calls.
type Topic string

// NewTopic trims surrounding whitespace and rejects empty input.
func NewTopic(raw string) (Topic, error) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return "", ErrEmptyTopic
	}
	return Topic(t), nil
}

// String returns the topic text.
func (t Topic) String() string {
	return string(t)
}
