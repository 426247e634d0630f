package entity

import "time"

// Headline is one recent news item used to ground the news summary prompt.
type Headline struct {
	Title       string
	URL         string
	Summary     string
	PublishedAt time.Time
}
