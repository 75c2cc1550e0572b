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

// newsAPIQueries maps each category to the search-term string sent to the
// /everything endpoint. The table is fixed; every category must have an
// entry.
var newsAPIQueries = map[models.Category]string{
	models.CategoryGeneral:    "stock market OR investing OR financial markets",
	models.CategoryTechnology: "technology stocks OR tech earnings OR semiconductor",
	models.CategoryEarnings:   "earnings report OR quarterly results OR financial results",
}

// NewsAPIClient is the secondary news provider, backed by NewsAPI's
// free-text article search. Unlike the primary provider it is
// category-scoped, so items echo the requested category. NewsAPI supplies
// no sentiment; items carry an absent sentiment.
type NewsAPIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewsAPIOption configures the NewsAPI client.
type NewsAPIOption func(*NewsAPIClient)

// WithNewsAPIBaseURL sets a custom base URL (e.g., for tests).
func WithNewsAPIBaseURL(url string) NewsAPIOption {
	return func(c *NewsAPIClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithNewsAPIHTTPClient sets a custom HTTP client.
func WithNewsAPIHTTPClient(client *http.Client) NewsAPIOption {
	return func(c *NewsAPIClient) { c.client = client }
}

// NewNewsAPIClient creates the secondary provider. As with the primary,
// an empty apiKey yields a client that fails every Fetch with
// ErrMissingAPIKey rather than being skipped.
func NewNewsAPIClient(apiKey string, opts ...NewsAPIOption) *NewsAPIClient {
	c := &NewsAPIClient{
		apiKey:  apiKey,
		baseURL: "https://newsapi.org/v2",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider name shown in logs.
func (c *NewsAPIClient) Name() string { return "NewsAPI" }

// --- NewsAPI response types ---

type naResponse struct {
	Status   string      `json:"status"` // "ok" or "error"
	Code     string      `json:"code,omitempty"`
	Message  string      `json:"message,omitempty"`
	Articles []naArticle `json:"articles"`
}

type naArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
}

// Fetch searches articles for the category's query terms.
func (c *NewsAPIClient) Fetch(ctx context.Context, category models.Category) ([]models.NewsItem, error) {
	if c.apiKey == "" {
		return nil, providerErr(c.Name(), ErrMissingAPIKey)
	}

	term, ok := newsAPIQueries[category]
	if !ok {
		term = newsAPIQueries[models.CategoryGeneral]
	}

	q := url.Values{}
	q.Set("q", term)
	q.Set("language", "en")
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", "10")
	q.Set("apiKey", c.apiKey)

	reqURL := c.baseURL + "/everything?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, providerErr(c.Name(), err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, providerErr(c.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, providerErr(c.Name(), fmt.Errorf("read response: %w", err))
	}

	// NewsAPI reports failures in the body with an HTTP error status as
	// well; decode first so the provider message wins over a bare code.
	var payload naResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, providerErr(c.Name(), fmt.Errorf("HTTP %d: %s", resp.StatusCode, body))
		}
		return nil, providerErr(c.Name(), fmt.Errorf("decode response: %w", err))
	}

	if payload.Status == "error" {
		return nil, providerErr(c.Name(), fmt.Errorf("API error (%s): %s", payload.Code, payload.Message))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, providerErr(c.Name(), fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	items := make([]models.NewsItem, 0, len(payload.Articles))
	for i, a := range payload.Articles {
		item := models.NewsItem{
			ID:       i + 1,
			Title:    a.Title,
			Summary:  cleanHTML(a.Description),
			URL:      a.URL,
			Source:   a.Source.Name,
			ImageURL: a.URLToImage,
			Category: category,
		}
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			item.PublishedAt = t
		}
		items = append(items, item)
	}

	return truncate(items), nil
}
