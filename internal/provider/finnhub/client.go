package finnhub

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"MarketFeed/internal/domain/models"
	"MarketFeed/internal/provider/ratelimit"
	"MarketFeed/pkg/httpx"
)

const (
	Name       = "finnhub"
	defaultURL = "https://finnhub.io/api/v1"
)

// Client wraps the Finnhub REST API. Quotes resolve one symbol per
// request, so the aggregator fans out through the rate limiter.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	limiter *ratelimit.Limiter
	now     func() time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithHTTPClient(h *httpx.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		http:    httpx.NewClient(),
		baseURL: defaultURL,
		apiKey:  apiKey,
		limiter: ratelimit.New(60, time.Minute),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return Name }

func (c *Client) Supports(t models.AssetType) bool { return t == models.AssetTypeStocks }

func (c *Client) Batch() bool { return false }

type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// Quotes fetches each symbol individually. The contract allows at most
// one symbol per call here; the aggregator supplies singletons.
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	quotes := make([]models.Quote, 0, len(symbols))
	for _, sym := range symbols {
		q, err := c.quote(ctx, sym)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func (c *Client) quote(ctx context.Context, symbol string) (models.Quote, error) {
	if err := c.limiter.Take(ctx); err != nil {
		return models.Quote{}, err
	}
	u := fmt.Sprintf("%s/quote?symbol=%s&token=%s", c.baseURL, url.QueryEscape(symbol), c.apiKey)

	var resp quoteResponse
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return models.Quote{}, err
	}
	if resp.Current <= 0 {
		return models.Quote{}, &httpx.Error{Kind: httpx.KindMalformed, URL: u, Err: fmt.Errorf("no price for %s", symbol)}
	}

	ts := c.now()
	if resp.Timestamp > 0 {
		ts = time.Unix(resp.Timestamp, 0).UTC()
	}
	return models.Quote{
		Symbol:        symbol,
		Price:         resp.Current,
		Change:        resp.Change,
		PercentChange: resp.PercentChange,
		High24h:       resp.High,
		Low24h:        resp.Low,
		Open:          resp.Open,
		PrevClose:     resp.PrevClose,
		Currency:      "USD",
		AssetType:     models.AssetTypeStocks,
		Source:        Name,
		Timestamp:     ts,
	}, nil
}

type symbolEntry struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Currency    string `json:"currency"`
	Type        string `json:"type"`
	MIC         string `json:"mic"`
}

func (c *Client) Assets(ctx context.Context, assetType models.AssetType) ([]models.Asset, error) {
	if assetType != models.AssetTypeStocks {
		return nil, fmt.Errorf("finnhub: unsupported asset type %s", assetType)
	}
	if err := c.limiter.Take(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/stock/symbol?exchange=US&token=%s", c.baseURL, c.apiKey)

	var entries []symbolEntry
	if err := c.http.GetJSON(ctx, u, &entries); err != nil {
		return nil, err
	}

	now := c.now()
	assets := make([]models.Asset, 0, len(entries))
	for _, e := range entries {
		if e.Symbol == "" || e.Type != "Common Stock" {
			continue
		}
		assets = append(assets, models.Asset{
			Symbol:    e.Symbol,
			Name:      e.Description,
			AssetType: models.AssetTypeStocks,
			Exchange:  e.MIC,
			Currency:  e.Currency,
			Source:    Name,
			LastSeen:  now,
		})
	}
	return assets, nil
}
