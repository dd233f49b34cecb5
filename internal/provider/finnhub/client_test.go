package finnhub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MarketFeed/internal/domain/models"
	"MarketFeed/pkg/httpx"
)

func TestQuoteNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "key" {
			t.Errorf("token = %q", r.URL.Query().Get("token"))
		}
		if r.URL.Query().Get("symbol") != "AAPL" {
			t.Errorf("symbol = %q", r.URL.Query().Get("symbol"))
		}
		w.Write([]byte(`{"c":150.25,"d":1.5,"dp":1.01,"h":152,"l":149,"o":149.5,"pc":148.75,"t":1767225600}`))
	}))
	defer srv.Close()

	c := New("key", WithBaseURL(srv.URL))
	quotes, err := c.Quotes(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("got %d quotes", len(quotes))
	}
	q := quotes[0]
	if q.Symbol != "AAPL" || q.Price != 150.25 || q.PrevClose != 148.75 {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if q.Source != Name || q.AssetType != models.AssetTypeStocks {
		t.Fatalf("source/type: %+v", q)
	}
	if q.Timestamp != time.Unix(1767225600, 0).UTC() {
		t.Fatalf("timestamp = %v", q.Timestamp)
	}
}

func TestQuoteZeroPriceIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c":0,"d":0,"dp":0}`))
	}))
	defer srv.Close()

	c := New("key", WithBaseURL(srv.URL))
	_, err := c.Quotes(context.Background(), []string{"NOPE"})
	if err == nil {
		t.Fatal("expected error for zero price")
	}
	if got := httpx.KindOf(err); got != httpx.KindMalformed {
		t.Fatalf("kind = %v, want malformed", got)
	}
}

func TestAssetsFiltersNonCommonStock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol":"AAPL","description":"APPLE INC","currency":"USD","type":"Common Stock","mic":"XNAS"},
			{"symbol":"SPY","description":"SPDR S+P 500","currency":"USD","type":"ETP","mic":"ARCX"},
			{"symbol":"","description":"empty","currency":"USD","type":"Common Stock"}
		]`))
	}))
	defer srv.Close()

	c := New("key", WithBaseURL(srv.URL))
	assets, err := c.Assets(context.Background(), models.AssetTypeStocks)
	if err != nil {
		t.Fatalf("Assets: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("got %d assets, want 1", len(assets))
	}
	if assets[0].Symbol != "AAPL" || assets[0].Exchange != "XNAS" {
		t.Fatalf("unexpected asset: %+v", assets[0])
	}
}

func TestAssetsRejectsUnsupportedType(t *testing.T) {
	c := New("key")
	if _, err := c.Assets(context.Background(), models.AssetTypeCrypto); err == nil {
		t.Fatal("expected error for crypto catalog")
	}
}

func TestCompanyNewsTagsSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "TSLA" {
			t.Errorf("symbol = %q", got)
		}
		w.Write([]byte(`[
			{"headline":"Deliveries up","url":"https://example.com/a","source":"wire","datetime":1767225600},
			{"headline":"","url":"https://example.com/b","datetime":1767225601}
		]`))
	}))
	defer srv.Close()

	c := New("key", WithBaseURL(srv.URL))
	articles, err := c.CompanyNews(context.Background(), "TSLA", time.Now().Add(-24*time.Hour), time.Now())
	if err != nil {
		t.Fatalf("CompanyNews: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
	if len(articles[0].Symbols) != 1 || articles[0].Symbols[0] != "TSLA" {
		t.Fatalf("symbols = %v", articles[0].Symbols)
	}
}

func TestQuotePropagatesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New("key", WithBaseURL(srv.URL))
	_, err := c.Quotes(context.Background(), []string{"AAPL"})
	if got := httpx.KindOf(err); got != httpx.KindRateLimited {
		t.Fatalf("kind = %v, want rate_limited", got)
	}
	var he *httpx.Error
	if !errors.As(err, &he) {
		t.Fatalf("error type: %T", err)
	}
}
