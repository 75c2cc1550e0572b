// Package market provides quote and daily-history retrieval for the
// stock view page and the home page's index strip, backed by Yahoo
// Finance's public quote and chart endpoints.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stockdeck/stockdeck/internal/infra"
	"github.com/stockdeck/stockdeck/pkg/models"
)

// ErrSymbolNotFound indicates the symbol is unknown upstream.
var ErrSymbolNotFound = errors.New("market: symbol not found")

// IndexSymbols are the three benchmark indices shown on the home page
// strip, in display order.
var IndexSymbols = []string{"^GSPC", "^DJI", "^IXIC"}

// Client fetches quotes and daily candles. Quotes are cached for five
// minutes; history somewhat longer since daily bars barely move
// intraday.
type Client struct {
	baseURL string
	client  *http.Client
	cache   *infra.Cache
	limiter *infra.RateLimiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Yahoo Finance base URL (for tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a market data client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: "https://query1.finance.yahoo.com",
		client:  &http.Client{Timeout: 15 * time.Second},
		cache:   infra.NewCache(5 * time.Minute),
		limiter: infra.NewRateLimiter(5, time.Second), // 5 req/s
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- Yahoo Finance API types ---

type yhQuoteResponse struct {
	QuoteResponse struct {
		Result []yhQuoteResult `json:"result"`
		Error  *yhError        `json:"error"`
	} `json:"quoteResponse"`
}

type yhQuoteResult struct {
	Symbol                     string  `json:"symbol"`
	ShortName                  string  `json:"shortName"`
	LongName                   string  `json:"longName"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketChange        float64 `json:"regularMarketChange"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	RegularMarketOpen          float64 `json:"regularMarketOpen"`
	RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	RegularMarketVolume        int64   `json:"regularMarketVolume"`
	MarketCap                  float64 `json:"marketCap"`
	FiftyTwoWeekHigh           float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow            float64 `json:"fiftyTwoWeekLow"`
	TrailingPE                 float64 `json:"trailingPE"`
	DividendYield              float64 `json:"dividendYield"`
	RegularMarketTime          int64   `json:"regularMarketTime"`
}

type yhChartResponse struct {
	Chart struct {
		Result []yhChartResult `json:"result"`
		Error  *yhError        `json:"error"`
	} `json:"chart"`
}

type yhChartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []yhOHLCV `json:"quote"`
	} `json:"indicators"`
}

type yhOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yhError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// Quote returns a near-real-time quote for the symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = NormalizeSymbol(symbol)

	cacheKey := "quote:" + symbol
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*models.Quote), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, symbol)
	var resp yhQuoteResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("market quote %s: %w", symbol, err)
	}

	if resp.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("market quote %s: %s", symbol, resp.QuoteResponse.Error.Description)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	r := resp.QuoteResponse.Result[0]
	quote := &models.Quote{
		Symbol:        r.Symbol,
		Name:          coalesce(r.LongName, r.ShortName, r.Symbol),
		LastPrice:     r.RegularMarketPrice,
		Change:        r.RegularMarketChange,
		ChangePct:     r.RegularMarketChangePercent,
		Open:          r.RegularMarketOpen,
		High:          r.RegularMarketDayHigh,
		Low:           r.RegularMarketDayLow,
		PrevClose:     r.RegularMarketPreviousClose,
		Volume:        r.RegularMarketVolume,
		WeekHigh52:    r.FiftyTwoWeekHigh,
		WeekLow52:     r.FiftyTwoWeekLow,
		MarketCap:     r.MarketCap,
		PE:            r.TrailingPE,
		DividendYield: r.DividendYield * 100, // ratio → percentage
		Timestamp:     time.Unix(r.RegularMarketTime, 0),
	}

	c.cache.Set(cacheKey, quote)
	return quote, nil
}

// Daily returns up to days daily candles for the symbol, oldest first.
func (c *Client) Daily(ctx context.Context, symbol string, days int) ([]models.OHLCV, error) {
	symbol = NormalizeSymbol(symbol)
	if days <= 0 {
		days = 90
	}

	cacheKey := fmt.Sprintf("daily:%s:%d", symbol, days)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]models.OHLCV), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	to := time.Now()
	from := to.AddDate(0, 0, -days)
	url := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		c.baseURL, symbol, from.Unix(), to.Unix())

	var resp yhChartResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("market history %s: %w", symbol, err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("market history %s: %s", symbol, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	candles := parseCandles(resp.Chart.Result[0])

	c.cache.SetWithTTL(cacheKey, candles, 15*time.Minute)
	return candles, nil
}

// Indices fetches the benchmark index quotes sequentially, skipping
// any that fail. Never errors: a bad upstream day produces a shorter
// strip, not a broken page.
func (c *Client) Indices(ctx context.Context) []*models.Quote {
	quotes := make([]*models.Quote, 0, len(IndexSymbols))
	for _, sym := range IndexSymbols {
		q, err := c.Quote(ctx, sym)
		if err != nil {
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes
}

// --- Helpers ---

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	body, _, err := infra.DoGetWith(ctx, c.client, url, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// NormalizeSymbol uppercases a plain ticker while leaving index
// symbols (^GSPC) intact.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func parseCandles(result yhChartResult) []models.OHLCV {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	q := result.Indicators.Quote[0]
	candles := make([]models.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := models.OHLCV{
			Timestamp: time.Unix(ts, 0),
		}
		if i < len(q.Open) && q.Open[i] != nil {
			c.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			c.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			c.Low = *q.Low[i]
		}
		if i < len(q.Close) && q.Close[i] != nil {
			c.Close = *q.Close[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		candles = append(candles, c)
	}
	return candles
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
