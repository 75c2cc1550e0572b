// Package newsfeed implements the market-news widget's content retrieval:
// two external providers attempted in a fixed order, with a deterministic
// sample dataset as the last resort, orchestrated by Engine.
package newsfeed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/stockdeck/stockdeck/pkg/models"
)

// MaxItems caps the number of items any source may contribute to a
// single retrieval. Items beyond the cap are discarded in provider order.
const MaxItems = 10

// ErrMissingAPIKey is returned (wrapped in a *ProviderError) by providers
// constructed without a credential. A missing key is valid configuration:
// the provider fails every call and the chain falls through normally.
var ErrMissingAPIKey = errors.New("newsfeed: API key not configured")

// Provider is a single external news source. Fetch returns normalized
// items in upstream order, truncated to MaxItems. Every failure mode —
// transport error, non-2xx, malformed payload, provider error envelope,
// missing credential — surfaces as a *ProviderError.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, category models.Category) ([]models.NewsItem, error)
}

// ProviderError wraps any failure of a single provider attempt.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// providerErr builds a *ProviderError for the named provider.
func providerErr(name string, err error) *ProviderError {
	return &ProviderError{Provider: name, Err: err}
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// truncate caps items at MaxItems, keeping upstream order.
func truncate(items []models.NewsItem) []models.NewsItem {
	if len(items) > MaxItems {
		return items[:MaxItems]
	}
	return items
}
