package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketFeed/internal/domain/models"
	"MarketFeed/internal/domain/repository"
)

// QueryService answers read requests purely from the cache. It never
// reaches a provider: a miss is a miss, which keeps read latency flat
// no matter how upstreams behave.
type QueryService struct {
	store   repository.MarketStore
	metrics repository.Metrics
}

func NewQueryService(store repository.MarketStore, metrics repository.Metrics) *QueryService {
	return &QueryService{store: store, metrics: metrics}
}

func (s *QueryService) Assets(ctx context.Context, assetType models.AssetType) ([]models.Asset, error) {
	assets, err := s.store.Assets(ctx, assetType)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	s.metrics.RecordCacheResult("assets", len(assets) > 0)
	return assets, nil
}

// QuoteSet is a batch read result: quotes that were cached and the
// symbols that were not.
type QuoteSet struct {
	Quotes  map[string]models.Quote `json:"quotes"`
	Missing []string                `json:"missing,omitempty"`
}

func (s *QueryService) Quotes(ctx context.Context, symbols []string) (QuoteSet, error) {
	normalized := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		normalized = append(normalized, sym)
	}

	found, err := s.store.Quotes(ctx, normalized)
	if err != nil {
		return QuoteSet{}, fmt.Errorf("query quotes: %w", err)
	}

	set := QuoteSet{Quotes: found}
	for _, sym := range normalized {
		_, ok := found[sym]
		s.metrics.RecordCacheResult("quotes", ok)
		if !ok {
			set.Missing = append(set.Missing, sym)
		}
	}
	return set, nil
}

// Quote reads a single symbol; ok is false on a cache miss.
func (s *QueryService) Quote(ctx context.Context, symbol string) (models.Quote, bool, error) {
	set, err := s.Quotes(ctx, []string{symbol})
	if err != nil {
		return models.Quote{}, false, err
	}
	q, ok := set.Quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	return q, ok, nil
}

func (s *QueryService) ActiveSymbols(ctx context.Context) ([]string, error) {
	symbols, err := s.store.ActiveSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("query active symbols: %w", err)
	}
	return symbols, nil
}

func (s *QueryService) GeneralNews(ctx context.Context) ([]models.NewsArticle, error) {
	articles, err := s.store.GeneralNews(ctx)
	if err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}
	return articles, nil
}

func (s *QueryService) CompanyNews(ctx context.Context, symbol string) ([]models.NewsArticle, error) {
	articles, err := s.store.CompanyNews(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("query company news: %w", err)
	}
	return articles, nil
}

// LastUpdates reports when each refresh loop last completed
// successfully. Loops that have not run yet are absent from the map.
func (s *QueryService) LastUpdates(ctx context.Context) (map[string]time.Time, error) {
	keys := []string{"quotes", "news"}
	for _, assetType := range models.AllAssetTypes() {
		keys = append(keys, "assets:"+string(assetType))
	}

	out := make(map[string]time.Time, len(keys))
	for _, key := range keys {
		at, err := s.store.LastUpdate(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("query last update %s: %w", key, err)
		}
		if !at.IsZero() {
			out[key] = at
		}
	}
	return out, nil
}
