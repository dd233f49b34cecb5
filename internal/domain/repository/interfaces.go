package repository

import (
	"context"
	"time"

	"MarketFeed/internal/domain/models"
)

// MarketStore is the cache-backed view of current market state. Reads
// fail only when the cache infrastructure itself fails; missing data
// surfaces as empty results, never as errors.
type MarketStore interface {
	PutQuotes(ctx context.Context, quotes []models.Quote) error
	Quotes(ctx context.Context, symbols []string) (map[string]models.Quote, error)
	ReplaceAssets(ctx context.Context, assetType models.AssetType, assets []models.Asset) error
	Assets(ctx context.Context, assetType models.AssetType) ([]models.Asset, error)
	ActiveSymbols(ctx context.Context) ([]string, error)
	SetActiveSymbols(ctx context.Context, symbols []string) error
	SetLastUpdate(ctx context.Context, key string, at time.Time) error
	LastUpdate(ctx context.Context, key string) (time.Time, error)
	PutGeneralNews(ctx context.Context, articles []models.NewsArticle) error
	GeneralNews(ctx context.Context) ([]models.NewsArticle, error)
	PutCompanyNews(ctx context.Context, symbol string, articles []models.NewsArticle) error
	CompanyNews(ctx context.Context, symbol string) ([]models.NewsArticle, error)
}

type Metrics interface {
	RecordProviderRequest(provider, op string)
	RecordProviderFailure(provider, kind string)
	RecordBreakerState(provider string, state int)
	RecordLatency(op string, seconds float64)
	RecordDropped(provider string, count int)
	RecordLastPrice(symbol string, price float64)
	RecordCacheResult(namespace string, hit bool)
}

// QuoteSink receives every successfully refreshed quote batch, e.g. a
// Kafka topic feeding downstream consumers.
type QuoteSink interface {
	PublishQuotes(ctx context.Context, quotes []models.Quote) error
	Close() error
}

// HistoryStore persists quote ticks for later range queries.
type HistoryStore interface {
	StoreQuotes(ctx context.Context, quotes []models.Quote) error
	History(ctx context.Context, symbol string, from, to time.Time) ([]models.Quote, error)
	Health(ctx context.Context) error
	Close() error
}

type NewsProvider interface {
	GeneralNews(ctx context.Context) ([]models.NewsArticle, error)
	CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsArticle, error)
}
