// Package coingecko implements the market data provider client. The public
// API is rate limited with HTTP 429; the client waits a fixed cooldown and
// retries the same request once before giving up.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	defaultBaseURL     = "https://api.coingecko.com/api/v3"
	defaultHTTPTimeout = 15 * time.Second
	defaultCooldown    = 60 * time.Second
	defaultVsCurrency  = "usd"
)

var (
	// ErrRateLimited signals an HTTP 429 that survived the cooldown retry.
	ErrRateLimited = errors.New("coingecko: rate limited")
	// ErrFetchFailed wraps transport errors and non-2xx responses.
	ErrFetchFailed = errors.New("coingecko: fetch failed")
)

// Client talks to the CoinGecko REST API.
type Client struct {
	baseURL    string
	apiKey     string
	vsCurrency string
	cooldown   time.Duration
	httpClient *http.Client
}

// Option customises the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCooldown overrides the 429 cooldown.
func WithCooldown(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

// WithAPIKey sets the demo/pro API key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// NewClient constructs a client with defaults applied.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		vsCurrency: defaultVsCurrency,
		cooldown:   defaultCooldown,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig builds a client from a hydrated config section.
func NewClientFromConfig(cfg *Config) *Client {
	if cfg == nil {
		return NewClient()
	}
	opts := []Option{
		WithBaseURL(cfg.BaseURL),
		WithAPIKey(cfg.APIKey),
		WithCooldown(cfg.Cooldown),
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
	}
	return NewClient(opts...)
}

// Markets fetches one page of market snapshots ordered by descending market
// cap. An empty slice means the pagination is exhausted.
func (c *Client) Markets(ctx context.Context, page, perPage int) ([]CoinMarket, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 100
	}
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "1h,24h,7d")

	return c.fetchMarkets(ctx, q)
}

// Market fetches the snapshot for a single coin identifier.
func (c *Client) Market(ctx context.Context, coinID string) (*CoinMarket, error) {
	if coinID == "" {
		return nil, fmt.Errorf("%w: empty coin id", ErrFetchFailed)
	}
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("ids", coinID)
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "1h,24h,7d")

	rows, err := c.fetchMarkets(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: coin %s not found", ErrFetchFailed, coinID)
	}
	return &rows[0], nil
}

func (c *Client) fetchMarkets(ctx context.Context, q url.Values) ([]CoinMarket, error) {
	endpoint := c.baseURL + "/coins/markets?" + q.Encode()

	rows, err := c.doMarkets(ctx, endpoint)
	if !errors.Is(err, ErrRateLimited) {
		return rows, err
	}

	// One cooldown-and-retry pass; a second 429 propagates to the caller.
	logx.WithContext(ctx).Slowf("coingecko: 429 received, cooling down %s before retry", c.cooldown)
	select {
	case <-time.After(c.cooldown):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.doMarkets(ctx, endpoint)
}

func (c *Client) doMarkets(ctx context.Context, endpoint string) ([]CoinMarket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: http %d", ErrFetchFailed, resp.StatusCode)
	}

	var rows []CoinMarket
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrFetchFailed, err)
	}
	return rows, nil
}
