package coinmarketcap

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"MarketFeed/internal/domain/models"
	"MarketFeed/internal/provider/ratelimit"
	"MarketFeed/pkg/httpx"
)

const (
	Name       = "coinmarketcap"
	defaultURL = "https://pro-api.coinmarketcap.com/v1"
)

// Client wraps the CoinMarketCap Pro API, the fallback crypto source.
type Client struct {
	http    *httpx.Client
	baseURL string
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
		http:    httpx.NewClient(httpx.WithHeader("X-CMC_PRO_API_KEY", apiKey)),
		baseURL: defaultURL,
		limiter: ratelimit.New(30, time.Minute),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return Name }

func (c *Client) Supports(t models.AssetType) bool { return t == models.AssetTypeCrypto }

func (c *Client) Batch() bool { return true }

func baseSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, suffix := range []string{"-USD", "USDT", "USD"} {
		if cut, ok := strings.CutSuffix(s, suffix); ok && cut != "" {
			return cut
		}
	}
	return s
}

type quotesResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string]struct {
		Name  string `json:"name"`
		Quote map[string]struct {
			Price            float64 `json:"price"`
			Volume24h        float64 `json:"volume_24h"`
			PercentChange24h float64 `json:"percent_change_24h"`
			MarketCap        float64 `json:"market_cap"`
			LastUpdated      string  `json:"last_updated"`
		} `json:"quote"`
	} `json:"data"`
}

// Quotes resolves all symbols in one quotes/latest call, keyed by the
// base currency symbol.
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	symbolByBase := make(map[string]string, len(symbols))
	bases := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		base := baseSymbol(sym)
		if _, dup := symbolByBase[base]; !dup {
			symbolByBase[base] = sym
			bases = append(bases, base)
		}
	}
	if len(bases) == 0 {
		return nil, nil
	}

	if err := c.limiter.Take(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/cryptocurrency/quotes/latest?symbol=%s&convert=USD",
		c.baseURL, url.QueryEscape(strings.Join(bases, ",")))

	var resp quotesResponse
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.Status.ErrorCode != 0 {
		return nil, &httpx.Error{Kind: httpx.KindMalformed, URL: u,
			Err: fmt.Errorf("api error %d: %s", resp.Status.ErrorCode, resp.Status.ErrorMessage)}
	}

	now := c.now()
	quotes := make([]models.Quote, 0, len(resp.Data))
	for base, entry := range resp.Data {
		sym, ok := symbolByBase[base]
		if !ok {
			continue
		}
		usd, ok := entry.Quote["USD"]
		if !ok || usd.Price <= 0 {
			continue
		}
		ts := now
		if t, err := time.Parse(time.RFC3339, usd.LastUpdated); err == nil {
			ts = t.UTC()
		}
		quotes = append(quotes, models.Quote{
			Symbol:        sym,
			Price:         usd.Price,
			Change:        usd.Price * usd.PercentChange24h / 100,
			PercentChange: usd.PercentChange24h,
			Volume:        int64(usd.Volume24h),
			MarketCap:     usd.MarketCap,
			Currency:      "USD",
			AssetType:     models.AssetTypeCrypto,
			Source:        Name,
			Timestamp:     ts,
		})
	}
	return quotes, nil
}

type listingsResponse struct {
	Data []struct {
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	} `json:"data"`
}

func (c *Client) Assets(ctx context.Context, assetType models.AssetType) ([]models.Asset, error) {
	if assetType != models.AssetTypeCrypto {
		return nil, fmt.Errorf("coinmarketcap: unsupported asset type %s", assetType)
	}
	if err := c.limiter.Take(ctx); err != nil {
		return nil, err
	}
	u := c.baseURL + "/cryptocurrency/listings/latest?limit=100&convert=USD"

	var resp listingsResponse
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	now := c.now()
	assets := make([]models.Asset, 0, len(resp.Data))
	for _, e := range resp.Data {
		if e.Symbol == "" {
			continue
		}
		assets = append(assets, models.Asset{
			Symbol:    e.Symbol,
			Name:      e.Name,
			AssetType: models.AssetTypeCrypto,
			Currency:  "USD",
			Source:    Name,
			LastSeen:  now,
		})
	}
	return assets, nil
}
