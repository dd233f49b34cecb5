//go:build wireinject
// +build wireinject

package di

import (
	"MarketFeed/pkg/config"
	"MarketFeed/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient infrastructure
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Storage and resilience
		ProvideMarketStore,
		ProvideBreakerRegistry,

		// Providers
		ProvideFinnhubClient,
		ProvideProviderChains,

		// Use cases
		ProvideAggregator,
		ProvideQueryService,
		ProvideScheduler,

		// Optional sinks
		ProvideQuoteSink,
		ProvideHistoryStore,
		ProvideStream,

		// HTTP surface
		ProvideMarketHandler,
		ProvideHTTPServer,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
