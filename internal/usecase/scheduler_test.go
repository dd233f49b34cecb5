package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"MarketFeed/internal/domain/models"
	domrepo "MarketFeed/internal/domain/repository"
	"MarketFeed/internal/provider"
	"MarketFeed/internal/repository"
	"MarketFeed/pkg/cache"
)

func newTestStore(t *testing.T) *repository.MarketStore {
	t.Helper()
	mem := cache.NewMemory(cache.WithCapacity(1000))
	t.Cleanup(func() { mem.Close() })
	return repository.NewMarketStore(mem, repository.MarketStoreOptions{})
}

type captureSink struct {
	mu     sync.Mutex
	quotes []models.Quote
}

func (c *captureSink) PublishQuotes(_ context.Context, quotes []models.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes = append(c.quotes, quotes...)
	return nil
}

func (c *captureSink) Close() error { return nil }

func newStockScheduler(t *testing.T, client provider.Client, opts SchedulerOptions, schedOpts ...SchedulerOption) (*Scheduler, *repository.MarketStore) {
	t.Helper()
	store := newTestStore(t)
	agg := NewAggregator(
		map[models.AssetType][]provider.Client{models.AssetTypeStocks: {client}},
		testRegistry(), &nopMetrics{}, testLogger(t),
	)
	return NewScheduler(agg, store, &nopMetrics{}, testLogger(t), opts, schedOpts...), store
}

func TestRefreshQuotesWritesStoreAndSink(t *testing.T) {
	client := &fakeClient{name: "p", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: quotesFor("p")}
	sink := &captureSink{}
	sched, store := newStockScheduler(t, client,
		SchedulerOptions{SeedSymbols: []string{"AAPL", "MSFT"}},
		WithQuoteSinks(sink),
	)
	ctx := context.Background()
	store.SetActiveSymbols(ctx, []string{"AAPL", "MSFT"})

	sched.refreshQuotes(ctx)

	got, err := store.Quotes(ctx, []string{"AAPL", "MSFT"})
	if err != nil || len(got) != 2 {
		t.Fatalf("stored quotes = %v, %v", got, err)
	}
	if at, _ := store.LastUpdate(ctx, "quotes"); at.IsZero() {
		t.Fatal("quote refresh not stamped")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.quotes) != 2 {
		t.Fatalf("sink received %d quotes, want 2", len(sink.quotes))
	}
}

func TestRefreshQuotesFailureLeavesNoStamp(t *testing.T) {
	client := &fakeClient{name: "p", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: func([]string) ([]models.Quote, error) { return nil, errProviderDown }}
	sched, store := newStockScheduler(t, client, SchedulerOptions{SeedSymbols: []string{"AAPL"}})
	ctx := context.Background()

	sched.refreshQuotes(ctx)

	if at, _ := store.LastUpdate(ctx, "quotes"); !at.IsZero() {
		t.Fatalf("failed refresh stamped at %v", at)
	}
}

func TestRefreshQuotesFallsBackToSeeds(t *testing.T) {
	client := &fakeClient{name: "p", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: quotesFor("p")}
	sched, store := newStockScheduler(t, client, SchedulerOptions{SeedSymbols: []string{"AAPL"}})
	ctx := context.Background()

	// No active set in the cache: seeds are used.
	sched.refreshQuotes(ctx)
	got, _ := store.Quotes(ctx, []string{"AAPL"})
	if len(got) != 1 {
		t.Fatalf("stored quotes = %v", got)
	}
}

func TestRefreshAssetsReplacesCatalog(t *testing.T) {
	client := &fakeClient{name: "p", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		assets: func(models.AssetType) ([]models.Asset, error) {
			return []models.Asset{{Symbol: "AAPL", AssetType: models.AssetTypeStocks, Source: "p"}}, nil
		}}
	sched, store := newStockScheduler(t, client, SchedulerOptions{})
	ctx := context.Background()

	sched.refreshAssets(ctx)

	assets, err := store.Assets(ctx, models.AssetTypeStocks)
	if err != nil || len(assets) != 1 {
		t.Fatalf("assets = %v, %v", assets, err)
	}
	if at, _ := store.LastUpdate(ctx, "assets:stocks"); at.IsZero() {
		t.Fatal("last update not recorded")
	}
}

func TestRefreshAssetsFailureKeepsPreviousSnapshot(t *testing.T) {
	failing := false
	client := &fakeClient{name: "p", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		assets: func(models.AssetType) ([]models.Asset, error) {
			if failing {
				return nil, errProviderDown
			}
			return []models.Asset{{Symbol: "AAPL", AssetType: models.AssetTypeStocks, Source: "p"}}, nil
		}}
	sched, store := newStockScheduler(t, client, SchedulerOptions{})
	ctx := context.Background()

	sched.refreshAssets(ctx)
	failing = true
	sched.refreshAssets(ctx)

	assets, err := store.Assets(ctx, models.AssetTypeStocks)
	if err != nil || len(assets) != 1 {
		t.Fatalf("previous snapshot lost: %v, %v", assets, err)
	}
}

func TestTickPanicIsContained(t *testing.T) {
	client := &fakeClient{name: "p", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: func([]string) ([]models.Quote, error) { panic("bad payload") }}
	sched, store := newStockScheduler(t, client, SchedulerOptions{SeedSymbols: []string{"AAPL"}})
	ctx := context.Background()
	store.SetActiveSymbols(ctx, []string{"AAPL"})

	// Must not propagate the panic.
	sched.runGuarded(ctx, "quotes", sched.refreshQuotes)
}

type fakeNews struct {
	general []models.NewsArticle
	company map[string][]models.NewsArticle
}

func (f *fakeNews) GeneralNews(context.Context) ([]models.NewsArticle, error) {
	return f.general, nil
}

func (f *fakeNews) CompanyNews(_ context.Context, symbol string, _, _ time.Time) ([]models.NewsArticle, error) {
	return f.company[symbol], nil
}

var _ domrepo.NewsProvider = (*fakeNews)(nil)

func TestRefreshNewsStoresArticles(t *testing.T) {
	client := &fakeClient{name: "p", types: []models.AssetType{models.AssetTypeStocks}, batch: true}
	news := &fakeNews{
		general: []models.NewsArticle{{Title: "markets up", URL: "https://example.com/1", PublishedAt: time.Now()}},
		company: map[string][]models.NewsArticle{
			"AAPL": {{Title: "apple news", URL: "https://example.com/2", PublishedAt: time.Now()}},
		},
	}
	sched, store := newStockScheduler(t, client,
		SchedulerOptions{NewsSymbols: []string{"AAPL", "MSFT"}},
		WithNewsProvider(news),
	)
	ctx := context.Background()

	sched.refreshNews(ctx)

	general, err := store.GeneralNews(ctx)
	if err != nil || len(general) != 1 {
		t.Fatalf("general news = %v, %v", general, err)
	}
	company, err := store.CompanyNews(ctx, "AAPL")
	if err != nil || len(company) != 1 {
		t.Fatalf("company news = %v, %v", company, err)
	}
	// MSFT had no articles; nothing stored, nothing failed.
	empty, err := store.CompanyNews(ctx, "MSFT")
	if err != nil || empty != nil {
		t.Fatalf("msft news = %v, %v", empty, err)
	}
	if at, _ := store.LastUpdate(ctx, "news"); at.IsZero() {
		t.Fatal("news refresh not stamped")
	}
}

// stampRejectingStore fails every last-update write; everything else
// goes through.
type stampRejectingStore struct {
	domrepo.MarketStore
}

func (s *stampRejectingStore) SetLastUpdate(context.Context, string, time.Time) error {
	return errProviderDown
}

func TestRefreshAssetsSurvivesStampFailure(t *testing.T) {
	client := &fakeClient{name: "p", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		assets: func(models.AssetType) ([]models.Asset, error) {
			return []models.Asset{{Symbol: "AAPL", AssetType: models.AssetTypeStocks, Source: "p"}}, nil
		}}
	inner := newTestStore(t)
	agg := NewAggregator(
		map[models.AssetType][]provider.Client{models.AssetTypeStocks: {client}},
		testRegistry(), &nopMetrics{}, testLogger(t),
	)
	store := &stampRejectingStore{MarketStore: inner}
	sched := NewScheduler(agg, store, &nopMetrics{}, testLogger(t), SchedulerOptions{})
	ctx := context.Background()

	sched.refreshAssets(ctx)

	assets, err := inner.Assets(ctx, models.AssetTypeStocks)
	if err != nil || len(assets) != 1 {
		t.Fatalf("catalog lost to stamp failure: %v, %v", assets, err)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	client := &fakeClient{name: "p", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: quotesFor("p"),
		assets: func(models.AssetType) ([]models.Asset, error) {
			return []models.Asset{{Symbol: "AAPL", AssetType: models.AssetTypeStocks, Source: "p"}}, nil
		}}
	sched, store := newStockScheduler(t, client, SchedulerOptions{
		QuoteInterval: 10 * time.Millisecond,
		SeedSymbols:   []string{"AAPL"},
	})
	ctx := context.Background()

	sched.Start(ctx)
	defer sched.Stop()

	deadline := time.After(2 * time.Second)
	for {
		got, _ := store.Quotes(ctx, []string{"AAPL"})
		if len(got) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("quote never appeared")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
