package provider

import (
	"context"

	"MarketFeed/internal/domain/models"
)

// Client is one upstream market-data source. Implementations normalize
// provider payloads into domain models and never write to the cache.
type Client interface {
	Name() string
	Supports(assetType models.AssetType) bool
	// Batch reports whether Quotes resolves all symbols in a single
	// upstream call. Non-batch providers are fanned out per symbol.
	Batch() bool
	Quotes(ctx context.Context, symbols []string) ([]models.Quote, error)
	Assets(ctx context.Context, assetType models.AssetType) ([]models.Asset, error)
}
