package newsfeed

import (
	"strings"
	"time"

	"github.com/stockdeck/stockdeck/pkg/models"
)

// sampleEntry is one fixed placeholder headline.
type sampleEntry struct {
	title     string
	summary   string
	sentiment models.Sentiment
	age       time.Duration // offset back from the reference instant
}

// sampleData is the fixed five-item dataset served when every real
// provider fails. Titles are chosen so the substring category filters
// select a stable subset.
var sampleData = []sampleEntry{
	{
		title:     "Stocks Edge Higher as Investors Rotate Into Value",
		summary:   "Major indices closed modestly higher as money moved out of growth names and into industrials and financials.",
		sentiment: models.SentimentNeutral,
		age:       45 * time.Minute,
	},
	{
		title:     "AI Chipmakers Extend Rally on Data Center Demand",
		summary:   "Semiconductor names tied to AI infrastructure posted another session of gains on strong order commentary.",
		sentiment: models.SentimentPositive,
		age:       2 * time.Hour,
	},
	{
		title:     "Crypto Assets Steady After Volatile Week",
		summary:   "Digital asset prices held in a narrow range as traders weighed regulatory headlines against ETF inflows.",
		sentiment: models.SentimentNeutral,
		age:       4 * time.Hour,
	},
	{
		title:     "Quarterly Earnings Season Opens With Upbeat Bank Results",
		summary:   "The first wave of quarterly reports beat expectations, led by better-than-forecast net interest income.",
		sentiment: models.SentimentPositive,
		age:       6 * time.Hour,
	},
	{
		title:     "Big Tech Valuations Divide Wall Street Analysts",
		summary:   "Strategists remain split on whether megacap tech multiples leave room for further upside this year.",
		sentiment: models.SentimentNeutral,
		age:       9 * time.Hour,
	},
}

// categoryKeywords drives the title-substring category filter. General
// has no entry: it returns the full set unfiltered.
var categoryKeywords = map[models.Category][]string{
	models.CategoryTechnology: {"tech", "ai", "crypto"},
	models.CategoryEarnings:   {"earnings", "quarterly"},
}

// SampleSource serves deterministic placeholder headlines as the
// fallback chain's last resort. It never fails; a filter that matches
// nothing legitimately returns an empty slice.
type SampleSource struct {
	reference time.Time
}

// NewSampleSource captures the reference instant the fixed timestamps
// hang off, so repeated Get calls are value-identical.
func NewSampleSource() *SampleSource {
	return &SampleSource{reference: time.Now().Truncate(time.Minute)}
}

// Name returns the source label shown on sample items.
func (s *SampleSource) Name() string { return "StockDeck Samples" }

// Get returns the sample items matching the category, in dataset order.
func (s *SampleSource) Get(category models.Category) []models.NewsItem {
	keywords := categoryKeywords[category]

	items := make([]models.NewsItem, 0, len(sampleData))
	for _, e := range sampleData {
		if len(keywords) > 0 && !titleMatches(e.title, keywords) {
			continue
		}
		items = append(items, models.NewsItem{
			ID:          len(items) + 1,
			Title:       e.title,
			Summary:     e.summary,
			URL:         "#",
			Source:      s.Name(),
			Sentiment:   e.sentiment,
			Category:    category,
			PublishedAt: s.reference.Add(-e.age),
		})
	}
	return items
}

// titleMatches reports whether the title contains any keyword,
// case-insensitively.
func titleMatches(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
