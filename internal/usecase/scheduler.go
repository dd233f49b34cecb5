package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketFeed/internal/domain/models"
	"MarketFeed/internal/domain/repository"
	"MarketFeed/pkg/logger"
)

type SchedulerOptions struct {
	QuoteInterval time.Duration
	AssetInterval time.Duration
	NewsInterval  time.Duration
	// Seed symbols refreshed when no active set is in the cache yet.
	SeedSymbols []string
	// NewsSymbols get per-company headlines on the news tick.
	NewsSymbols []string
}

func (o *SchedulerOptions) withDefaults() {
	if o.QuoteInterval <= 0 {
		o.QuoteInterval = 5 * time.Second
	}
	if o.AssetInterval <= 0 {
		o.AssetInterval = 24 * time.Hour
	}
	if o.NewsInterval <= 0 {
		o.NewsInterval = 15 * time.Minute
	}
}

// Scheduler drives the periodic refresh loops: asset catalogs, active
// quotes, and news. Each tick runs under a panic guard so one bad
// provider payload cannot kill the loop. Sinks are best-effort; their
// failures are logged and never block the cache write.
type Scheduler struct {
	aggregator *Aggregator
	store      repository.MarketStore
	news       repository.NewsProvider
	sinks      []repository.QuoteSink
	history    repository.HistoryStore
	metrics    repository.Metrics
	log        *logger.Logger
	opts       SchedulerOptions

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type SchedulerOption func(*Scheduler)

// WithQuoteSinks registers downstream publishers for refreshed quotes.
func WithQuoteSinks(sinks ...repository.QuoteSink) SchedulerOption {
	return func(s *Scheduler) { s.sinks = append(s.sinks, sinks...) }
}

// WithHistoryStore persists every refreshed quote batch.
func WithHistoryStore(h repository.HistoryStore) SchedulerOption {
	return func(s *Scheduler) { s.history = h }
}

// WithNewsProvider enables the news refresh loop.
func WithNewsProvider(p repository.NewsProvider) SchedulerOption {
	return func(s *Scheduler) { s.news = p }
}

func NewScheduler(
	aggregator *Aggregator,
	store repository.MarketStore,
	metrics repository.Metrics,
	log *logger.Logger,
	opts SchedulerOptions,
	schedOpts ...SchedulerOption,
) *Scheduler {
	opts.withDefaults()
	s := &Scheduler{
		aggregator: aggregator,
		store:      store,
		metrics:    metrics,
		log:        log,
		opts:       opts,
	}
	for _, opt := range schedOpts {
		opt(s)
	}
	return s
}

// Start launches the refresh loops. Assets and news run once up front
// so the cache is warm before the first quote tick reads the active
// symbol set.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.runGuarded(ctx, "assets", s.refreshAssets)
	if len(s.opts.SeedSymbols) > 0 {
		if err := s.store.SetActiveSymbols(ctx, s.opts.SeedSymbols); err != nil {
			s.log.Error("seed active symbols", logger.Error(err))
		}
	}

	s.loop(ctx, "quotes", s.opts.QuoteInterval, s.refreshQuotes)
	s.loop(ctx, "assets", s.opts.AssetInterval, s.refreshAssets)
	if s.news != nil {
		s.runGuarded(ctx, "news", s.refreshNews)
		s.loop(ctx, "news", s.opts.NewsInterval, s.refreshNews)
	}

	s.log.Info("scheduler started",
		logger.Duration("quote_interval", s.opts.QuoteInterval),
		logger.Duration("asset_interval", s.opts.AssetInterval),
		logger.Duration("news_interval", s.opts.NewsInterval),
	)
}

// Stop cancels the loops and waits for in-flight ticks.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, tick func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runGuarded(ctx, name, tick)
			}
		}
	}()
}

func (s *Scheduler) runGuarded(ctx context.Context, name string, tick func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordProviderFailure(name, "panic")
			s.log.Error("refresh tick panicked",
				logger.String("loop", name),
				logger.Error(fmt.Errorf("%v", r)),
			)
		}
	}()
	tick(ctx)
}

func (s *Scheduler) refreshQuotes(ctx context.Context) {
	symbols, err := s.store.ActiveSymbols(ctx)
	if err != nil {
		s.log.Error("read active symbols", logger.Error(err))
		return
	}
	if len(symbols) == 0 {
		symbols = s.opts.SeedSymbols
	}
	if len(symbols) == 0 {
		return
	}

	start := time.Now()
	res := s.aggregator.FetchQuotes(ctx, symbols)
	s.metrics.RecordLatency("refresh_quotes", time.Since(start).Seconds())

	if len(res.Quotes) == 0 {
		return
	}
	if err := s.store.PutQuotes(ctx, res.Quotes); err != nil {
		s.log.Error("store quotes", logger.Error(err))
		return
	}
	for _, q := range res.Quotes {
		s.metrics.RecordLastPrice(q.Symbol, q.Price)
	}
	if err := s.store.SetLastUpdate(ctx, "quotes", time.Now().UTC()); err != nil {
		s.log.Error("stamp quote refresh", logger.Error(err))
	}
	s.publish(ctx, res.Quotes)

	s.log.Debug("quotes refreshed",
		logger.Int("resolved", len(res.Quotes)),
		logger.Int("dropped", len(res.Dropped)),
	)
}

func (s *Scheduler) publish(ctx context.Context, quotes []models.Quote) {
	for _, sink := range s.sinks {
		if err := sink.PublishQuotes(ctx, quotes); err != nil {
			s.log.Error("publish quotes to sink", logger.Error(err))
		}
	}
	if s.history != nil {
		if err := s.history.StoreQuotes(ctx, quotes); err != nil {
			s.log.Error("persist quote history", logger.Error(err))
		}
	}
}

// refreshAssets swaps each catalog only on success; a failed refresh
// leaves the previous snapshot in place until its TTL runs out.
func (s *Scheduler) refreshAssets(ctx context.Context) {
	for _, assetType := range models.AllAssetTypes() {
		start := time.Now()
		assets, err := s.aggregator.FetchAssets(ctx, assetType)
		s.metrics.RecordLatency("refresh_assets", time.Since(start).Seconds())

		if err != nil {
			s.log.Warn("asset catalog refresh failed, keeping previous snapshot",
				logger.String("asset_type", string(assetType)),
				logger.Error(err),
			)
			continue
		}
		if len(assets) == 0 {
			continue
		}
		if err := s.store.ReplaceAssets(ctx, assetType, assets); err != nil {
			s.log.Error("store assets", logger.Error(err))
			continue
		}
		if err := s.store.SetLastUpdate(ctx, "assets:"+string(assetType), time.Now().UTC()); err != nil {
			s.log.Error("stamp asset refresh", logger.Error(err))
		}
		s.log.Info("asset catalog refreshed",
			logger.String("asset_type", string(assetType)),
			logger.Int("count", len(assets)),
		)
	}
}

func (s *Scheduler) refreshNews(ctx context.Context) {
	stamp := false
	general, err := s.news.GeneralNews(ctx)
	if err != nil {
		s.log.Warn("general news refresh failed", logger.Error(err))
	} else if len(general) > 0 {
		if err := s.store.PutGeneralNews(ctx, general); err != nil {
			s.log.Error("store general news", logger.Error(err))
		} else {
			stamp = true
		}
	}

	to := time.Now().UTC()
	from := to.Add(-7 * 24 * time.Hour)
	for _, sym := range s.opts.NewsSymbols {
		articles, err := s.news.CompanyNews(ctx, sym, from, to)
		if err != nil {
			s.log.Warn("company news refresh failed",
				logger.String("symbol", sym),
				logger.Error(err),
			)
			continue
		}
		if len(articles) == 0 {
			continue
		}
		if err := s.store.PutCompanyNews(ctx, sym, articles); err != nil {
			s.log.Error("store company news", logger.Error(err))
			continue
		}
		stamp = true
	}

	if stamp {
		if err := s.store.SetLastUpdate(ctx, "news", time.Now().UTC()); err != nil {
			s.log.Error("stamp news refresh", logger.Error(err))
		}
	}
}
