package alphavantage

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"MarketFeed/internal/domain/models"
	"MarketFeed/internal/provider/ratelimit"
	"MarketFeed/pkg/httpx"
)

const (
	Name       = "alphavantage"
	defaultURL = "https://www.alphavantage.co"
)

// Client wraps the Alpha Vantage API: the primary forex source and a
// secondary equity quote source. Every quote costs one request, and
// the free tier allows 5 per minute, so the limiter matters here more
// than anywhere else.
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
		limiter: ratelimit.New(5, time.Minute),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return Name }

func (c *Client) Supports(t models.AssetType) bool {
	return t == models.AssetTypeForex || t == models.AssetTypeStocks
}

func (c *Client) Batch() bool { return false }

// splitPair parses EUR/USD or EURUSD=X into base and quote currencies.
func splitPair(symbol string) (string, string, bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if from, to, ok := strings.Cut(s, "/"); ok && len(from) == 3 && len(to) == 3 {
		return from, to, true
	}
	if cut, ok := strings.CutSuffix(s, "=X"); ok && len(cut) == 6 {
		return cut[:3], cut[3:], true
	}
	return "", "", false
}

func (c *Client) Quotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	quotes := make([]models.Quote, 0, len(symbols))
	for _, sym := range symbols {
		var (
			q   models.Quote
			err error
		)
		if models.ClassifySymbol(sym) == models.AssetTypeForex {
			q, err = c.exchangeRate(ctx, sym)
		} else {
			q, err = c.globalQuote(ctx, sym)
		}
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

type exchangeRateResponse struct {
	Rate struct {
		FromCode string `json:"1. From_Currency Code"`
		ToCode   string `json:"3. To_Currency Code"`
		Rate     string `json:"5. Exchange Rate"`
		Bid      string `json:"8. Bid Price"`
		Ask      string `json:"9. Ask Price"`
	} `json:"Realtime Currency Exchange Rate"`
	Note string `json:"Note"`
}

func (c *Client) exchangeRate(ctx context.Context, symbol string) (models.Quote, error) {
	from, to, ok := splitPair(symbol)
	if !ok {
		return models.Quote{}, fmt.Errorf("alphavantage: bad forex pair %q", symbol)
	}
	if err := c.limiter.Take(ctx); err != nil {
		return models.Quote{}, err
	}
	u := fmt.Sprintf("%s/query?function=CURRENCY_EXCHANGE_RATE&from_currency=%s&to_currency=%s&apikey=%s",
		c.baseURL, from, to, c.apiKey)

	var resp exchangeRateResponse
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return models.Quote{}, err
	}
	// Alpha Vantage signals quota exhaustion with HTTP 200 plus a Note.
	if resp.Note != "" {
		return models.Quote{}, &httpx.Error{Kind: httpx.KindRateLimited, URL: u, Err: fmt.Errorf("quota note: %s", resp.Note)}
	}
	rate, err := strconv.ParseFloat(resp.Rate.Rate, 64)
	if err != nil || rate <= 0 {
		return models.Quote{}, &httpx.Error{Kind: httpx.KindMalformed, URL: u, Err: fmt.Errorf("bad rate %q", resp.Rate.Rate)}
	}

	return models.Quote{
		Symbol:    symbol,
		Price:     rate,
		Currency:  to,
		AssetType: models.AssetTypeForex,
		Source:    Name,
		Timestamp: c.now(),
	}, nil
}

type globalQuoteResponse struct {
	Quote struct {
		Price         string `json:"05. price"`
		Open          string `json:"02. open"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Volume        string `json:"06. volume"`
		PrevClose     string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
	Note string `json:"Note"`
}

func (c *Client) globalQuote(ctx context.Context, symbol string) (models.Quote, error) {
	if err := c.limiter.Take(ctx); err != nil {
		return models.Quote{}, err
	}
	u := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		c.baseURL, url.QueryEscape(symbol), c.apiKey)

	var resp globalQuoteResponse
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return models.Quote{}, err
	}
	if resp.Note != "" {
		return models.Quote{}, &httpx.Error{Kind: httpx.KindRateLimited, URL: u, Err: fmt.Errorf("quota note: %s", resp.Note)}
	}
	price, err := strconv.ParseFloat(resp.Quote.Price, 64)
	if err != nil || price <= 0 {
		return models.Quote{}, &httpx.Error{Kind: httpx.KindMalformed, URL: u, Err: fmt.Errorf("bad price %q", resp.Quote.Price)}
	}

	q := models.Quote{
		Symbol:    symbol,
		Price:     price,
		Currency:  "USD",
		AssetType: models.AssetTypeStocks,
		Source:    Name,
		Timestamp: c.now(),
	}
	q.Change, _ = strconv.ParseFloat(resp.Quote.Change, 64)
	q.PercentChange, _ = strconv.ParseFloat(strings.TrimSuffix(resp.Quote.ChangePercent, "%"), 64)
	q.Open, _ = strconv.ParseFloat(resp.Quote.Open, 64)
	q.High24h, _ = strconv.ParseFloat(resp.Quote.High, 64)
	q.Low24h, _ = strconv.ParseFloat(resp.Quote.Low, 64)
	q.PrevClose, _ = strconv.ParseFloat(resp.Quote.PrevClose, 64)
	q.Volume, _ = strconv.ParseInt(resp.Quote.Volume, 10, 64)
	return q, nil
}

// majorPairs is the forex catalog; Alpha Vantage has no listing
// endpoint so the universe is fixed.
var majorPairs = []struct{ pair, name string }{
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
}

// Assets serves the fixed major-pair catalog for forex. Stock quotes
// are supported via GLOBAL_QUOTE, but there is no listing endpoint, so
// the stock catalog is empty and other providers fill it.
func (c *Client) Assets(ctx context.Context, assetType models.AssetType) ([]models.Asset, error) {
	if assetType == models.AssetTypeStocks {
		return nil, nil
	}
	if assetType != models.AssetTypeForex {
		return nil, fmt.Errorf("alphavantage: unsupported asset type %s", assetType)
	}
	now := c.now()
	assets := make([]models.Asset, 0, len(majorPairs))
	for _, p := range majorPairs {
		_, to, _ := splitPair(p.pair)
		assets = append(assets, models.Asset{
			Symbol:    p.pair,
			Name:      p.name,
			AssetType: models.AssetTypeForex,
			Currency:  to,
			Source:    Name,
			LastSeen:  now,
		})
	}
	return assets, nil
}
