package newsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stockdeck/stockdeck/pkg/models"
)

// avTimeLayout is Alpha Vantage's compact timestamp format.
const avTimeLayout = "20060102T150405"

// avTopics is the fixed multi-topic query sent on every request. The
// NEWS_SENTIMENT endpoint has no category parameter, so this provider's
// results are effectively "general" regardless of the selected category
// and are deliberately not filtered downstream.
const avTopics = "financial_markets,earnings,technology"

// AlphaVantageClient is the primary news provider, backed by Alpha
// Vantage's sentiment-tagged NEWS_SENTIMENT feed.
type AlphaVantageClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// AlphaVantageOption configures the Alpha Vantage client.
type AlphaVantageOption func(*AlphaVantageClient)

// WithAlphaVantageBaseURL sets a custom base URL (e.g., for tests).
func WithAlphaVantageBaseURL(url string) AlphaVantageOption {
	return func(c *AlphaVantageClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithAlphaVantageHTTPClient sets a custom HTTP client.
func WithAlphaVantageHTTPClient(client *http.Client) AlphaVantageOption {
	return func(c *AlphaVantageClient) { c.client = client }
}

// NewAlphaVantageClient creates the primary provider. An empty apiKey is
// accepted; the client then fails every Fetch with ErrMissingAPIKey so
// the fallback chain stays uniform.
func NewAlphaVantageClient(apiKey string, opts ...AlphaVantageOption) *AlphaVantageClient {
	c := &AlphaVantageClient{
		apiKey:  apiKey,
		baseURL: "https://www.alphavantage.co",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider name shown in logs.
func (c *AlphaVantageClient) Name() string { return "Alpha Vantage" }

// --- Alpha Vantage response types ---

type avResponse struct {
	Feed []avFeedItem `json:"feed"`

	// Error envelopes. ErrorMessage signals a bad request; Note and
	// Information are throttle notices. All three mean no usable feed.
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

type avFeedItem struct {
	Title                string  `json:"title"`
	URL                  string  `json:"url"`
	TimePublished        string  `json:"time_published"`
	Summary              string  `json:"summary"`
	BannerImage          string  `json:"banner_image"`
	Source               string  `json:"source"`
	OverallSentimentLabel string `json:"overall_sentiment_label"`
}

// Fetch retrieves the fixed multi-topic feed. The category argument is
// accepted for interface uniformity but does not alter the query, and
// returned items carry no category echo.
func (c *AlphaVantageClient) Fetch(ctx context.Context, _ models.Category) ([]models.NewsItem, error) {
	if c.apiKey == "" {
		return nil, providerErr(c.Name(), ErrMissingAPIKey)
	}

	q := url.Values{}
	q.Set("function", "NEWS_SENTIMENT")
	q.Set("topics", avTopics)
	q.Set("limit", "10")
	q.Set("apikey", c.apiKey)

	reqURL := c.baseURL + "/query?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, providerErr(c.Name(), err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, providerErr(c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, providerErr(c.Name(), fmt.Errorf("HTTP %d: %s", resp.StatusCode, body))
	}

	var payload avResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, providerErr(c.Name(), fmt.Errorf("decode response: %w", err))
	}

	switch {
	case payload.ErrorMessage != "":
		return nil, providerErr(c.Name(), fmt.Errorf("API error: %s", payload.ErrorMessage))
	case payload.Note != "":
		return nil, providerErr(c.Name(), fmt.Errorf("API throttled: %s", payload.Note))
	case payload.Information != "":
		return nil, providerErr(c.Name(), fmt.Errorf("API notice: %s", payload.Information))
	}

	items := make([]models.NewsItem, 0, len(payload.Feed))
	for i, f := range payload.Feed {
		item := models.NewsItem{
			ID:        i + 1,
			Title:     f.Title,
			Summary:   f.Summary,
			URL:       f.URL,
			Source:    f.Source,
			ImageURL:  f.BannerImage,
			Sentiment: avSentiment(f.OverallSentimentLabel),
		}
		if t, err := time.Parse(avTimeLayout, f.TimePublished); err == nil {
			item.PublishedAt = t
		}
		items = append(items, item)
	}

	return truncate(items), nil
}

// avSentiment maps Alpha Vantage's five-point sentiment scale onto the
// canonical labels. A missing or unknown label maps to absent, never to
// a guessed default.
func avSentiment(label string) models.Sentiment {
	switch strings.ToLower(label) {
	case "bullish", "somewhat-bullish", "somewhat_bullish":
		return models.SentimentPositive
	case "bearish", "somewhat-bearish", "somewhat_bearish":
		return models.SentimentNegative
	case "neutral":
		return models.SentimentNeutral
	default:
		return ""
	}
}
