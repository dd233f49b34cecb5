package yfinance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"MarketFeed/internal/domain/models"
)

func TestYahooSymbol(t *testing.T) {
	cases := map[string]string{
		"EUR/USD": "EURUSD=X",
		"usd/jpy": "USDJPY=X",
		"AAPL":    "AAPL",
		"BTC-USD": "BTC-USD",
	}
	for in, want := range cases {
		if got := yahooSymbol(in); got != want {
			t.Errorf("yahooSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQuotesBatchMapsBackToRequestedSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbols"); got != "AAPL,EURUSD=X" {
			t.Errorf("symbols = %q", got)
		}
		w.Write([]byte(`{"quoteResponse":{"result":[
			{"symbol":"AAPL","regularMarketPrice":150.25,"regularMarketChange":1.5,
			 "regularMarketChangePercent":1.01,"regularMarketVolume":51234567,
			 "regularMarketPreviousClose":148.75,"currency":"USD","regularMarketTime":1767225600},
			{"symbol":"EURUSD=X","regularMarketPrice":1.0852,"currency":"USD"}
		],"error":null}}`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	quotes, err := c.Quotes(context.Background(), []string{"AAPL", "EUR/USD"})
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("got %d quotes, want 2", len(quotes))
	}

	bySymbol := make(map[string]models.Quote)
	for _, q := range quotes {
		bySymbol[q.Symbol] = q
	}
	if q := bySymbol["AAPL"]; q.Price != 150.25 || q.AssetType != models.AssetTypeStocks {
		t.Fatalf("aapl: %+v", q)
	}
	if q := bySymbol["EUR/USD"]; q.Price != 1.0852 || q.AssetType != models.AssetTypeForex {
		t.Fatalf("eurusd: %+v", q)
	}
}

func TestQuotesOmitsMissingSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[
			{"symbol":"AAPL","regularMarketPrice":150.25,"currency":"USD"}
		],"error":null}}`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	quotes, err := c.Quotes(context.Background(), []string{"AAPL", "DELISTED"})
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Symbol != "AAPL" {
		t.Fatalf("quotes = %+v", quotes)
	}
}

func TestQuotesEmptyInput(t *testing.T) {
	c := New(WithBaseURL("http://unreachable.invalid"))
	quotes, err := c.Quotes(context.Background(), nil)
	if err != nil || quotes != nil {
		t.Fatalf("got %v, %v", quotes, err)
	}
}

func TestAssetsCatalogs(t *testing.T) {
	c := New()
	stocks, err := c.Assets(context.Background(), models.AssetTypeStocks)
	if err != nil || len(stocks) != 20 {
		t.Fatalf("stocks: %d, %v", len(stocks), err)
	}
	forex, err := c.Assets(context.Background(), models.AssetTypeForex)
	if err != nil || len(forex) != 20 {
		t.Fatalf("forex: %d, %v", len(forex), err)
	}
	if forex[0].Currency != "USD" {
		t.Fatalf("eur/usd currency = %q", forex[0].Currency)
	}
	if _, err := c.Assets(context.Background(), models.AssetTypeCrypto); err == nil {
		t.Fatal("expected error for crypto catalog")
	}
}
