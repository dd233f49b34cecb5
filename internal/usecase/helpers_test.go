package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketFeed/internal/breaker"
	"MarketFeed/internal/domain/models"
	"MarketFeed/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testRegistry() *breaker.Registry {
	return breaker.NewRegistry(breaker.Options{FailureThreshold: 3, OpenTimeout: time.Minute})
}

// nopMetrics satisfies repository.Metrics while counting drops.
type nopMetrics struct {
	mu      sync.Mutex
	dropped int
}

func (m *nopMetrics) RecordProviderRequest(string, string)  {}
func (m *nopMetrics) RecordProviderFailure(string, string)  {}
func (m *nopMetrics) RecordBreakerState(string, int)        {}
func (m *nopMetrics) RecordLatency(string, float64)         {}
func (m *nopMetrics) RecordLastPrice(string, float64)       {}
func (m *nopMetrics) RecordCacheResult(string, bool)        {}
func (m *nopMetrics) RecordDropped(_ string, count int) {
	m.mu.Lock()
	m.dropped += count
	m.mu.Unlock()
}

var errProviderDown = errors.New("provider down")

// fakeClient is a scriptable provider.Client.
type fakeClient struct {
	name    string
	types   []models.AssetType
	batch   bool
	mu      sync.Mutex
	calls   int
	quotes  func(symbols []string) ([]models.Quote, error)
	assets  func(assetType models.AssetType) ([]models.Asset, error)
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Supports(t models.AssetType) bool {
	for _, at := range f.types {
		if at == t {
			return true
		}
	}
	return false
}

func (f *fakeClient) Batch() bool { return f.batch }

func (f *fakeClient) Quotes(_ context.Context, symbols []string) ([]models.Quote, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.quotes == nil {
		return nil, errProviderDown
	}
	return f.quotes(symbols)
}

func (f *fakeClient) Assets(_ context.Context, assetType models.AssetType) ([]models.Asset, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.assets == nil {
		return nil, errProviderDown
	}
	return f.assets(assetType)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quotesFor(source string, symbols ...string) func([]string) ([]models.Quote, error) {
	serve := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		serve[s] = true
	}
	return func(requested []string) ([]models.Quote, error) {
		var out []models.Quote
		for _, sym := range requested {
			if len(serve) > 0 && !serve[sym] {
				continue
			}
			out = append(out, models.Quote{
				Symbol:    sym,
				Price:     100,
				AssetType: models.ClassifySymbol(sym),
				Source:    source,
				Timestamp: time.Now().UTC(),
			})
		}
		return out, nil
	}
}
