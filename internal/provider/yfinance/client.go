package yfinance

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
	Name       = "yfinance"
	defaultURL = "https://query1.finance.yahoo.com"
)

// Client wraps the Yahoo Finance quote API: the primary equity source
// and the forex fallback. One request resolves many symbols.
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
		limiter: ratelimit.New(100, time.Minute),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return Name }

func (c *Client) Supports(t models.AssetType) bool {
	return t == models.AssetTypeStocks || t == models.AssetTypeForex
}

func (c *Client) Batch() bool { return true }

// yahooSymbol rewrites a forex pair into Yahoo's EURUSD=X form;
// equities pass through unchanged.
func yahooSymbol(symbol string) string {
	if from, to, ok := strings.Cut(strings.ToUpper(symbol), "/"); ok {
		return from + to + "=X"
	}
	return symbol
}

type quoteResult struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"regularMarketPrice"`
	Change        float64 `json:"regularMarketChange"`
	ChangePercent float64 `json:"regularMarketChangePercent"`
	Volume        int64   `json:"regularMarketVolume"`
	MarketCap     float64 `json:"marketCap"`
	DayHigh       float64 `json:"regularMarketDayHigh"`
	DayLow        float64 `json:"regularMarketDayLow"`
	Open          float64 `json:"regularMarketOpen"`
	PrevClose     float64 `json:"regularMarketPreviousClose"`
	Currency      string  `json:"currency"`
	MarketTime    int64   `json:"regularMarketTime"`
	LongName      string  `json:"longName"`
	ShortName     string  `json:"shortName"`
	Exchange      string  `json:"fullExchangeName"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  any           `json:"error"`
	} `json:"quoteResponse"`
}

// Quotes resolves all symbols in one request. Symbols Yahoo does not
// return are omitted from the result.
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	requestedByYahoo := make(map[string]string, len(symbols))
	yahooSyms := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		ys := yahooSymbol(sym)
		if _, dup := requestedByYahoo[ys]; !dup {
			requestedByYahoo[ys] = sym
			yahooSyms = append(yahooSyms, ys)
		}
	}

	if err := c.limiter.Take(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(strings.Join(yahooSyms, ",")))

	var resp quoteResponse
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	now := c.now()
	quotes := make([]models.Quote, 0, len(resp.QuoteResponse.Result))
	for _, r := range resp.QuoteResponse.Result {
		sym, ok := requestedByYahoo[r.Symbol]
		if !ok || r.Price <= 0 {
			continue
		}
		ts := now
		if r.MarketTime > 0 {
			ts = time.Unix(r.MarketTime, 0).UTC()
		}
		quotes = append(quotes, models.Quote{
			Symbol:        sym,
			Price:         r.Price,
			Change:        r.Change,
			PercentChange: r.ChangePercent,
			Volume:        r.Volume,
			MarketCap:     r.MarketCap,
			High24h:       r.DayHigh,
			Low24h:        r.DayLow,
			Open:          r.Open,
			PrevClose:     r.PrevClose,
			Currency:      r.Currency,
			AssetType:     models.ClassifySymbol(sym),
			Source:        Name,
			Timestamp:     ts,
		})
	}
	return quotes, nil
}

// curatedStocks is the equity catalog: Yahoo has no cheap listing
// endpoint, so the universe is the large caps we track.
var curatedStocks = []struct{ symbol, name string }{
	{"AAPL", "Apple Inc."},
	{"MSFT", "Microsoft Corporation"},
	{"GOOGL", "Alphabet Inc."},
	{"AMZN", "Amazon.com, Inc."},
	{"NVDA", "NVIDIA Corporation"},
	{"META", "Meta Platforms, Inc."},
	{"TSLA", "Tesla, Inc."},
	{"BRK-B", "Berkshire Hathaway Inc."},
	{"JPM", "JPMorgan Chase & Co."},
	{"V", "Visa Inc."},
	{"JNJ", "Johnson & Johnson"},
	{"WMT", "Walmart Inc."},
	{"UNH", "UnitedHealth Group Incorporated"},
	{"PG", "The Procter & Gamble Company"},
	{"MA", "Mastercard Incorporated"},
	{"HD", "The Home Depot, Inc."},
	{"XOM", "Exxon Mobil Corporation"},
	{"BAC", "Bank of America Corporation"},
	{"KO", "The Coca-Cola Company"},
	{"DIS", "The Walt Disney Company"},
}

var curatedForex = []struct{ pair, name string }{
	{"EUR/USD", "Euro / US Dollar"},
	{"GBP/USD", "British Pound / US Dollar"},
	{"USD/JPY", "US Dollar / Japanese Yen"},
	{"USD/CHF", "US Dollar / Swiss Franc"},
	{"AUD/USD", "Australian Dollar / US Dollar"},
	{"USD/CAD", "US Dollar / Canadian Dollar"},
	{"NZD/USD", "New Zealand Dollar / US Dollar"},
	{"EUR/GBP", "Euro / British Pound"},
	{"EUR/JPY", "Euro / Japanese Yen"},
	{"GBP/JPY", "British Pound / Japanese Yen"},
	{"EUR/CHF", "Euro / Swiss Franc"},
	{"AUD/JPY", "Australian Dollar / Japanese Yen"},
	{"CHF/JPY", "Swiss Franc / Japanese Yen"},
	{"EUR/AUD", "Euro / Australian Dollar"},
	{"GBP/CHF", "British Pound / Swiss Franc"},
	{"USD/SGD", "US Dollar / Singapore Dollar"},
	{"USD/HKD", "US Dollar / Hong Kong Dollar"},
	{"USD/MXN", "US Dollar / Mexican Peso"},
	{"USD/SEK", "US Dollar / Swedish Krona"},
	{"USD/NOK", "US Dollar / Norwegian Krone"},
}

func (c *Client) Assets(ctx context.Context, assetType models.AssetType) ([]models.Asset, error) {
	now := c.now()
	switch assetType {
	case models.AssetTypeStocks:
		assets := make([]models.Asset, 0, len(curatedStocks))
		for _, s := range curatedStocks {
			assets = append(assets, models.Asset{
				Symbol:    s.symbol,
				Name:      s.name,
				AssetType: models.AssetTypeStocks,
				Currency:  "USD",
				Source:    Name,
				LastSeen:  now,
			})
		}
		return assets, nil
	case models.AssetTypeForex:
		assets := make([]models.Asset, 0, len(curatedForex))
		for _, p := range curatedForex {
			parts := strings.Split(p.pair, "/")
			assets = append(assets, models.Asset{
				Symbol:    p.pair,
				Name:      p.name,
				AssetType: models.AssetTypeForex,
				Currency:  parts[1],
				Source:    Name,
				LastSeen:  now,
			})
		}
		return assets, nil
	default:
		return nil, fmt.Errorf("yfinance: unsupported asset type %s", assetType)
	}
}
