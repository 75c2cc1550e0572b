// Package models defines the core data structures used throughout StockDeck.
package models

import (
	"fmt"
	"time"
)

// Sentiment is a provider-assigned tone label for a news item.
// The empty string means the provider does not supply sentiment at all,
// which is distinct from an explicit SentimentNeutral.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Category is a news feed category selectable from the dashboard.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryTechnology Category = "technology"
	CategoryEarnings   Category = "earnings"
)

// Categories lists all valid categories in display order.
func Categories() []Category {
	return []Category{CategoryGeneral, CategoryTechnology, CategoryEarnings}
}

// ParseCategory validates a raw category string.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryGeneral, CategoryTechnology, CategoryEarnings:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown news category %q", s)
}

// NewsItem is the normalized, provider-agnostic representation of one
// news entry. IDs are unique within a retrieval batch only, not globally.
type NewsItem struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	URL         string    `json:"url"` // "#" when no real link exists
	Source      string    `json:"source"`
	ImageURL    string    `json:"image_url,omitempty"`
	Sentiment   Sentiment `json:"sentiment,omitempty"` // empty = provider supplies none
	Category    Category  `json:"category,omitempty"`  // echo of the requested category, if scoped
	PublishedAt time.Time `json:"published_at"`
}

// Phase describes where the news widget is in its retrieval lifecycle.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	// PhaseDegraded means sample content is shown because every real
	// provider failed or returned nothing.
	PhaseDegraded Phase = "degraded"
)
