package coingecko

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
	Name       = "coingecko"
	defaultURL = "https://api.coingecko.com/api/v3"
)

// idBySymbol maps ticker symbols to CoinGecko coin ids. The simple
// price endpoint only accepts ids, not tickers.
var idBySymbol = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"ADA":  "cardano",
	"DOT":  "polkadot",
	"XRP":  "ripple",
	"LTC":  "litecoin",
	"DOGE": "dogecoin",
	"SOL":  "solana",
	"BNB":  "binancecoin",
}

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

func New(opts ...Option) *Client {
	c := &Client{
		http:    httpx.NewClient(),
		baseURL: defaultURL,
		limiter: ratelimit.New(10, time.Minute),
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

// baseSymbol strips pair suffixes, so BTC-USD and BTCUSDT both resolve
// to the BTC coin id.
func baseSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, suffix := range []string{"-USD", "USDT", "USD"} {
		if cut, ok := strings.CutSuffix(s, suffix); ok && cut != "" {
			return cut
		}
	}
	return s
}

type priceEntry struct {
	USD       float64 `json:"usd"`
	USDChange float64 `json:"usd_24h_change"`
	USDMktCap float64 `json:"usd_market_cap"`
	USDVolume float64 `json:"usd_24h_vol"`
}

// Quotes resolves all symbols in one simple/price call. Symbols with
// no known coin id or missing from the response are omitted.
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	symbolByID := make(map[string]string, len(symbols))
	ids := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		id, ok := idBySymbol[baseSymbol(sym)]
		if !ok {
			continue
		}
		if _, dup := symbolByID[id]; !dup {
			symbolByID[id] = sym
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := c.limiter.Take(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true&include_market_cap=true&include_24hr_vol=true",
		c.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	var resp map[string]priceEntry
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	now := c.now()
	quotes := make([]models.Quote, 0, len(resp))
	for id, entry := range resp {
		sym, ok := symbolByID[id]
		if !ok || entry.USD <= 0 {
			continue
		}
		change := entry.USD * entry.USDChange / 100
		quotes = append(quotes, models.Quote{
			Symbol:        sym,
			Price:         entry.USD,
			Change:        change,
			PercentChange: entry.USDChange,
			Volume:        int64(entry.USDVolume),
			MarketCap:     entry.USDMktCap,
			Currency:      "USD",
			AssetType:     models.AssetTypeCrypto,
			Source:        Name,
			Timestamp:     now,
		})
	}
	return quotes, nil
}

type coinEntry struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

func (c *Client) Assets(ctx context.Context, assetType models.AssetType) ([]models.Asset, error) {
	if assetType != models.AssetTypeCrypto {
		return nil, fmt.Errorf("coingecko: unsupported asset type %s", assetType)
	}
	if err := c.limiter.Take(ctx); err != nil {
		return nil, err
	}
	u := c.baseURL + "/coins/list"

	var entries []coinEntry
	if err := c.http.GetJSON(ctx, u, &entries); err != nil {
		return nil, err
	}

	tracked := make(map[string]bool, len(idBySymbol))
	for _, id := range idBySymbol {
		tracked[id] = true
	}

	now := c.now()
	assets := make([]models.Asset, 0, len(tracked))
	for _, e := range entries {
		if !tracked[e.ID] {
			continue
		}
		assets = append(assets, models.Asset{
			Symbol:    strings.ToUpper(e.Symbol),
			Name:      e.Name,
			AssetType: models.AssetTypeCrypto,
			Currency:  "USD",
			Source:    Name,
			LastSeen:  now,
		})
	}
	return assets, nil
}
