package newsfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/stockdeck/stockdeck/internal/infra"
	"github.com/stockdeck/stockdeck/pkg/models"
)

// WireSource is one RSS feed contributing to the home-page market wire.
type WireSource struct {
	Name   string
	RSSURL string
}

// DefaultWireSources lists the financial news RSS feeds polled for the
// market wire.
var DefaultWireSources = []WireSource{
	{
		Name:   "CNBC Markets",
		RSSURL: "https://www.cnbc.com/id/20910258/device/rss/rss.html",
	},
	{
		Name:   "MarketWatch Top Stories",
		RSSURL: "https://feeds.content.dowjones.io/public/rss/mw_topstories",
	},
	{
		Name:   "Yahoo Finance",
		RSSURL: "https://finance.yahoo.com/news/rssindex",
	},
}

// Wire fetches the home page's headline ticker from a fixed set of RSS
// feeds. It is separate from the widget's fallback chain: per-source
// failures are skipped, results are merged and sorted newest first.
type Wire struct {
	sources []WireSource
	cache   *infra.Cache
	limiter *infra.RateLimiter
	parser  *gofeed.Parser
}

// NewWire creates a market wire over the default sources.
func NewWire() *Wire {
	return NewWireWithSources(DefaultWireSources)
}

// NewWireWithSources creates a market wire over custom sources.
func NewWireWithSources(sources []WireSource) *Wire {
	return &Wire{
		sources: sources,
		cache:   infra.NewCache(10 * time.Minute),
		limiter: infra.NewRateLimiter(2, time.Second), // conservative: 2 req/s
		parser:  gofeed.NewParser(),
	}
}

// Headlines returns recent headlines from all configured sources, capped
// at limit (0 = uncapped).
func (w *Wire) Headlines(ctx context.Context, limit int) ([]models.NewsItem, error) {
	cacheKey := fmt.Sprintf("wire:%d", limit)
	if cached, ok := w.cache.Get(cacheKey); ok {
		return cached.([]models.NewsItem), nil
	}

	var all []models.NewsItem
	for _, src := range w.sources {
		items, err := w.fetchRSS(ctx, src)
		if err != nil {
			// Non-critical: skip failed sources.
			continue
		}
		all = append(all, items...)
	}

	sortItemsByDate(all)

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	for i := range all {
		all[i].ID = i + 1
	}

	w.cache.Set(cacheKey, all)
	return all, nil
}

// fetchRSS parses one RSS feed into canonical items.
func (w *Wire) fetchRSS(ctx context.Context, src WireSource) ([]models.NewsItem, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := w.parser.ParseURLWithContext(src.RSSURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", src.Name, err)
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		item := models.NewsItem{
			Title:   it.Title,
			URL:     it.Link,
			Source:  src.Name,
			Summary: cleanHTML(it.Description),
		}
		if it.PublishedParsed != nil {
			item.PublishedAt = *it.PublishedParsed
		}
		if len(it.Enclosures) > 0 {
			item.ImageURL = it.Enclosures[0].URL
		}
		items = append(items, item)
	}

	return items, nil
}

// sortItemsByDate sorts items by published date (newest first).
// Simple insertion sort — fine for small slices.
func sortItemsByDate(items []models.NewsItem) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && items[j].PublishedAt.Before(key.PublishedAt) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
