package models

import "time"

type NewsArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary,omitempty"`
	Category    string    `json:"category,omitempty"`
	Symbols     []string  `json:"symbols,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
