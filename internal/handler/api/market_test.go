package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"MarketFeed/internal/breaker"
	"MarketFeed/internal/domain/models"
	"MarketFeed/internal/provider"
	"MarketFeed/internal/repository"
	"MarketFeed/internal/usecase"
	"MarketFeed/pkg/cache"
	"MarketFeed/pkg/logger"
)

type stubClient struct{}

func (stubClient) Name() string                          { return "stub" }
func (stubClient) Supports(models.AssetType) bool        { return true }
func (stubClient) Batch() bool                           { return true }
func (stubClient) Quotes(context.Context, []string) ([]models.Quote, error) {
	return nil, nil
}
func (stubClient) Assets(context.Context, models.AssetType) ([]models.Asset, error) {
	return nil, nil
}

type stubMetrics struct{}

func (stubMetrics) RecordProviderRequest(string, string) {}
func (stubMetrics) RecordProviderFailure(string, string) {}
func (stubMetrics) RecordBreakerState(string, int)       {}
func (stubMetrics) RecordLatency(string, float64)        {}
func (stubMetrics) RecordDropped(string, int)            {}
func (stubMetrics) RecordLastPrice(string, float64)      {}
func (stubMetrics) RecordCacheResult(string, bool)       {}

type fixture struct {
	echo  *echo.Echo
	store *repository.MarketStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	mem := cache.NewMemory(cache.WithCapacity(100))
	t.Cleanup(func() { mem.Close() })

	store := repository.NewMarketStore(mem, repository.MarketStoreOptions{})
	agg := usecase.NewAggregator(
		map[models.AssetType][]provider.Client{models.AssetTypeStocks: {stubClient{}}},
		breaker.NewRegistry(breaker.Options{}),
		stubMetrics{}, log,
	)
	query := usecase.NewQueryService(store, stubMetrics{})
	handler := NewMarketHandler(query, agg, mem, log)

	e := echo.New()
	handler.RegisterRoutes(e)
	return &fixture{echo: e, store: store}
}

func (f *fixture) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return rec, body
}

func TestHealthOK(t *testing.T) {
	f := newFixture(t)
	rec, body := f.get(t, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"].(float64) != 200 {
		t.Fatalf("body = %v", body)
	}
}

func TestQuoteFoundAndMissing(t *testing.T) {
	f := newFixture(t)
	f.store.PutQuotes(context.Background(), []models.Quote{{
		Symbol: "AAPL", Price: 150, AssetType: models.AssetTypeStocks,
		Source: "test", Timestamp: time.Now().UTC(),
	}})

	rec, body := f.get(t, "/api/v1/quote/aapl")
	if rec.Code != http.StatusOK || body["status"].(float64) != 200 {
		t.Fatalf("status = %d body = %v", rec.Code, body)
	}
	data := body["data"].(map[string]interface{})
	if data["symbol"] != "AAPL" || data["price"].(float64) != 150 {
		t.Fatalf("data = %v", data)
	}

	_, body = f.get(t, "/api/v1/quote/MSFT")
	if body["status"].(float64) != 404 {
		t.Fatalf("missing quote status = %v", body["status"])
	}
}

func TestQuotesRequiresSymbols(t *testing.T) {
	f := newFixture(t)
	_, body := f.get(t, "/api/v1/quotes")
	if body["status"].(float64) != 400 {
		t.Fatalf("status = %v, want 400", body["status"])
	}
}

func TestQuotesPartialResult(t *testing.T) {
	f := newFixture(t)
	f.store.PutQuotes(context.Background(), []models.Quote{{
		Symbol: "AAPL", Price: 150, AssetType: models.AssetTypeStocks,
		Source: "test", Timestamp: time.Now().UTC(),
	}})

	_, body := f.get(t, "/api/v1/quotes?symbols=AAPL,MSFT")
	data := body["data"].(map[string]interface{})
	quotes := data["quotes"].(map[string]interface{})
	if len(quotes) != 1 {
		t.Fatalf("quotes = %v", quotes)
	}
	missing := data["missing"].([]interface{})
	if len(missing) != 1 || missing[0] != "MSFT" {
		t.Fatalf("missing = %v", missing)
	}
}

func TestAssetsBadTypeIs400(t *testing.T) {
	f := newFixture(t)
	_, body := f.get(t, "/api/v1/assets/bonds")
	if body["status"].(float64) != 400 {
		t.Fatalf("status = %v, want 400", body["status"])
	}
}

func TestAssetsEmptyCatalog(t *testing.T) {
	f := newFixture(t)
	rec, body := f.get(t, "/api/v1/assets/stocks")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := body["data"].(map[string]interface{})
	if data["count"].(float64) != 0 {
		t.Fatalf("count = %v", data["count"])
	}
}

func TestProviderStatuses(t *testing.T) {
	f := newFixture(t)
	rec, body := f.get(t, "/api/v1/providers/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := body["data"].(map[string]interface{})
	providers := data["providers"].([]interface{})
	if len(providers) != 1 {
		t.Fatalf("providers = %v", providers)
	}
	p := providers[0].(map[string]interface{})
	if p["name"] != "stub" || p["state"] != "CLOSED" {
		t.Fatalf("provider = %v", p)
	}

	// No loop has run yet, so no refresh stamps.
	if updates := data["last_updates"].(map[string]interface{}); len(updates) != 0 {
		t.Fatalf("last_updates = %v", updates)
	}
	f.store.SetLastUpdate(context.Background(), "quotes", time.Now().UTC())
	_, body = f.get(t, "/api/v1/providers/status")
	data = body["data"].(map[string]interface{})
	if _, ok := data["last_updates"].(map[string]interface{})["quotes"]; !ok {
		t.Fatalf("quotes stamp missing: %v", data["last_updates"])
	}
}

// unavailableCache simulates a lost cache backend.
type unavailableCache struct{}

func (unavailableCache) fail() error {
	return fmt.Errorf("%w: connection refused", cache.ErrCacheUnavailable)
}

func (c unavailableCache) Set(context.Context, string, []byte, time.Duration) error {
	return c.fail()
}

func (c unavailableCache) Get(context.Context, string) ([]byte, error) {
	return nil, c.fail()
}

func (c unavailableCache) MSet(context.Context, map[string][]byte, time.Duration) error {
	return c.fail()
}

func (c unavailableCache) MGet(context.Context, []string) (map[string][]byte, error) {
	return nil, c.fail()
}

func (c unavailableCache) Delete(context.Context, ...string) error { return c.fail() }
func (c unavailableCache) Clear(context.Context, string) error     { return c.fail() }
func (c unavailableCache) Health(context.Context) error            { return c.fail() }
func (unavailableCache) Close() error                              { return nil }

func newUnavailableFixture(t *testing.T) *fixture {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	store := repository.NewMarketStore(unavailableCache{}, repository.MarketStoreOptions{})
	agg := usecase.NewAggregator(
		map[models.AssetType][]provider.Client{models.AssetTypeStocks: {stubClient{}}},
		breaker.NewRegistry(breaker.Options{}),
		stubMetrics{}, log,
	)
	query := usecase.NewQueryService(store, stubMetrics{})
	handler := NewMarketHandler(query, agg, unavailableCache{}, log)

	e := echo.New()
	handler.RegisterRoutes(e)
	return &fixture{echo: e, store: store}
}

func TestCacheUnavailableIs503(t *testing.T) {
	f := newUnavailableFixture(t)

	_, body := f.get(t, "/api/v1/quote/AAPL")
	if body["status"].(float64) != 503 {
		t.Fatalf("quote status = %v, want 503", body["status"])
	}

	_, body = f.get(t, "/api/v1/assets/stocks")
	if body["status"].(float64) != 503 {
		t.Fatalf("assets status = %v, want 503", body["status"])
	}

	_, body = f.get(t, "/health")
	if body["status"].(float64) != 503 {
		t.Fatalf("health status = %v, want 503", body["status"])
	}
}

func TestNewsEmpty(t *testing.T) {
	f := newFixture(t)
	_, body := f.get(t, "/api/v1/news")
	data := body["data"].(map[string]interface{})
	if data["count"].(float64) != 0 {
		t.Fatalf("count = %v", data["count"])
	}
}
