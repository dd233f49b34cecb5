package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"MarketFeed/internal/breaker"
	"MarketFeed/internal/domain/models"
	"MarketFeed/internal/domain/repository"
	"MarketFeed/internal/provider"
	"MarketFeed/pkg/httpx"
	"MarketFeed/pkg/logger"
)

type route struct {
	client  provider.Client
	breaker *breaker.Breaker
}

// Aggregator fans quote and catalog requests out to providers, one
// primary and any number of fallbacks per asset class. A symbol moves
// down the chain only when the provider ahead of it failed, was open,
// or omitted the symbol from a batch response.
type Aggregator struct {
	routes      map[models.AssetType][]route
	breakers    *breaker.Registry
	metrics     repository.Metrics
	log         *logger.Logger
	concurrency int
}

type AggregatorOption func(*Aggregator)

// WithConcurrency bounds the per-symbol fan-out for non-batch
// providers.
func WithConcurrency(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// NewAggregator builds the routing table from the provider chain
// order: for each asset type, clients appear in priority order.
func NewAggregator(
	chains map[models.AssetType][]provider.Client,
	breakers *breaker.Registry,
	metrics repository.Metrics,
	log *logger.Logger,
	opts ...AggregatorOption,
) *Aggregator {
	a := &Aggregator{
		routes:      make(map[models.AssetType][]route, len(chains)),
		breakers:    breakers,
		metrics:     metrics,
		log:         log,
		concurrency: 4,
	}
	for assetType, clients := range chains {
		for _, c := range clients {
			if !c.Supports(assetType) {
				continue
			}
			a.routes[assetType] = append(a.routes[assetType], route{
				client:  c,
				breaker: breakers.Get(c.Name()),
			})
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchResult carries the quotes that resolved and the symbols no
// provider could serve this round.
type FetchResult struct {
	Quotes  []models.Quote
	Dropped []string
}

// FetchQuotes resolves quotes for symbols of mixed asset classes.
// Partial failure is the normal case: whatever resolved is returned,
// and unresolved symbols are reported, never turned into an error.
func (a *Aggregator) FetchQuotes(ctx context.Context, symbols []string) FetchResult {
	var result FetchResult
	for assetType, group := range models.GroupSymbolsByType(symbols) {
		quotes, dropped := a.fetchTypedQuotes(ctx, assetType, group)
		result.Quotes = append(result.Quotes, quotes...)
		result.Dropped = append(result.Dropped, dropped...)
	}
	return result
}

func (a *Aggregator) fetchTypedQuotes(ctx context.Context, assetType models.AssetType, symbols []string) ([]models.Quote, []string) {
	remaining := symbols
	var quotes []models.Quote

	for _, rt := range a.routes[assetType] {
		if len(remaining) == 0 {
			break
		}
		got := a.callRoute(ctx, rt, remaining)
		if len(got) == 0 {
			continue
		}
		quotes = append(quotes, got...)
		remaining = subtractSymbols(remaining, got)
	}

	if len(remaining) > 0 {
		a.metrics.RecordDropped(string(assetType), len(remaining))
		a.log.Warn("symbols unresolved by all providers",
			logger.String("asset_type", string(assetType)),
			logger.Strings("symbols", remaining),
		)
	}
	return quotes, remaining
}

func (a *Aggregator) callRoute(ctx context.Context, rt route, symbols []string) []models.Quote {
	if rt.client.Batch() {
		return a.callBatch(ctx, rt, symbols)
	}
	return a.callPerSymbol(ctx, rt, symbols)
}

// callBatch issues one provider call for the whole symbol set under a
// single breaker execution. A successful response that omits symbols
// leaves those symbols for the next route; only the call itself
// counts against the breaker.
func (a *Aggregator) callBatch(ctx context.Context, rt route, symbols []string) []models.Quote {
	name := rt.client.Name()
	a.metrics.RecordProviderRequest(name, "quotes")
	start := time.Now()

	var quotes []models.Quote
	err := rt.breaker.Execute(func() error {
		var opErr error
		quotes, opErr = rt.client.Quotes(ctx, symbols)
		return opErr
	})
	a.metrics.RecordLatency("provider_quotes", time.Since(start).Seconds())

	if err != nil {
		a.recordFailure(name, err)
		return nil
	}
	return quotes
}

// callPerSymbol fans out one call per symbol with bounded
// concurrency; each call passes through the breaker individually.
func (a *Aggregator) callPerSymbol(ctx context.Context, rt route, symbols []string) []models.Quote {
	name := rt.client.Name()

	var mu sync.Mutex
	var quotes []models.Quote

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			a.metrics.RecordProviderRequest(name, "quotes")
			start := time.Now()

			var got []models.Quote
			err := rt.breaker.Execute(func() error {
				var opErr error
				got, opErr = rt.client.Quotes(gctx, []string{sym})
				return opErr
			})
			a.metrics.RecordLatency("provider_quotes", time.Since(start).Seconds())

			if err != nil {
				a.recordFailure(name, err)
				return nil // keep the group going; failure means fallback
			}
			mu.Lock()
			quotes = append(quotes, got...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return quotes
}

func (a *Aggregator) recordFailure(name string, err error) {
	if err == breaker.ErrOpen {
		a.metrics.RecordProviderFailure(name, "breaker_open")
		return
	}
	kind := string(httpx.KindOf(err))
	a.metrics.RecordProviderFailure(name, kind)
	a.log.Warn("provider call failed",
		logger.String("provider", name),
		logger.String("kind", kind),
		logger.Error(err),
	)
}

// FetchAssets merges catalogs across the chain: the primary wins on
// symbol collisions, fallbacks fill gaps. An empty merged catalog
// with at least one provider failure reports the last failure so the
// caller keeps the previous snapshot.
func (a *Aggregator) FetchAssets(ctx context.Context, assetType models.AssetType) ([]models.Asset, error) {
	var (
		merged  []models.Asset
		seen    = make(map[string]bool)
		lastErr error
	)
	for _, rt := range a.routes[assetType] {
		name := rt.client.Name()
		a.metrics.RecordProviderRequest(name, "assets")
		start := time.Now()

		var assets []models.Asset
		err := rt.breaker.Execute(func() error {
			var opErr error
			assets, opErr = rt.client.Assets(ctx, assetType)
			return opErr
		})
		a.metrics.RecordLatency("provider_assets", time.Since(start).Seconds())

		if err != nil {
			a.recordFailure(name, err)
			lastErr = err
			continue
		}
		for _, asset := range assets {
			key := strings.ToUpper(asset.Symbol)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, asset)
		}
	}
	if len(merged) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return merged, nil
}

// ProviderStatuses exposes breaker snapshots for the status endpoint.
func (a *Aggregator) ProviderStatuses() []breaker.Status {
	return a.breakers.Statuses()
}

func subtractSymbols(symbols []string, quotes []models.Quote) []string {
	resolved := make(map[string]bool, len(quotes))
	for _, q := range quotes {
		resolved[strings.ToUpper(q.Symbol)] = true
	}
	var out []string
	for _, sym := range symbols {
		if !resolved[strings.ToUpper(sym)] {
			out = append(out, sym)
		}
	}
	return out
}
