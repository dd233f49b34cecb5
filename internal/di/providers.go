package di

import (
	"context"
	"fmt"
	"time"

	"MarketFeed/internal/breaker"
	"MarketFeed/internal/domain/models"
	"MarketFeed/internal/domain/repository"
	"MarketFeed/internal/handler/api"
	"MarketFeed/internal/provider"
	"MarketFeed/internal/provider/alphavantage"
	"MarketFeed/internal/provider/coingecko"
	"MarketFeed/internal/provider/coinmarketcap"
	"MarketFeed/internal/provider/finnhub"
	"MarketFeed/internal/provider/ratelimit"
	"MarketFeed/internal/provider/yfinance"
	internalrepo "MarketFeed/internal/repository"
	"MarketFeed/internal/service/stream"
	"MarketFeed/internal/usecase"
	"MarketFeed/pkg/cache"
	pkgch "MarketFeed/pkg/clickhouse"
	"MarketFeed/pkg/config"
	"MarketFeed/pkg/httpserver"
	"MarketFeed/pkg/httpx"
	pkgkafka "MarketFeed/pkg/kafka"
	"MarketFeed/pkg/logger"
	"MarketFeed/pkg/metrics"
	"MarketFeed/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the configured cache backend.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	c, err := cache.New(cache.Config{
		Backend:  cfg.Cache.Backend,
		Capacity: cfg.Cache.Capacity,
		Redis: cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return c, nil
}

// ProvideMarketStore creates the cached market data store.
func ProvideMarketStore(c cache.Service, cfg *config.Config) repository.MarketStore {
	return internalrepo.NewMarketStore(c, internalrepo.MarketStoreOptions{
		QuoteTTL: cfg.Cache.QuoteTTL,
		AssetTTL: cfg.Cache.AssetTTL,
		NewsTTL:  cfg.Cache.NewsTTL,
	})
}

// ProvideBreakerRegistry creates the per-provider circuit breaker
// registry with state transitions exported to metrics and logs.
func ProvideBreakerRegistry(cfg *config.Config, m repository.Metrics, log *logger.Logger) *breaker.Registry {
	r := breaker.NewRegistry(breaker.Options{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenTimeout:      cfg.Breaker.OpenTimeout,
	})
	r.SetOnStateChange(func(name string, from, to breaker.State) {
		m.RecordBreakerState(name, int(to))
		log.Warn("breaker state change",
			logger.String("provider", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	return r
}

// ProvideFinnhubClient creates the Finnhub REST client. It serves both
// the stocks fallback chain and the news refresh loop.
func ProvideFinnhubClient(cfg *config.Config) *finnhub.Client {
	return finnhub.New(cfg.Providers.Finnhub.APIKey,
		finnhub.WithHTTPClient(httpx.NewClient(httpx.WithTimeout(cfg.Providers.Timeout))),
		finnhub.WithLimiter(ratelimit.New(cfg.Providers.Finnhub.RatePerMinute, time.Minute)),
	)
}

// ProvideProviderChains builds the provider priority chains per asset
// class. Order matters: the first client that resolves a symbol wins,
// later clients only see what earlier ones could not serve.
func ProvideProviderChains(cfg *config.Config, fh *finnhub.Client) map[models.AssetType][]provider.Client {
	yf := yfinance.New(
		yfinance.WithHTTPClient(httpx.NewClient(httpx.WithTimeout(cfg.Providers.Timeout))),
		yfinance.WithLimiter(ratelimit.New(cfg.Providers.YFinance.RatePerMinute, time.Minute)),
	)
	cg := coingecko.New(
		coingecko.WithHTTPClient(httpx.NewClient(httpx.WithTimeout(cfg.Providers.Timeout))),
		coingecko.WithLimiter(ratelimit.New(cfg.Providers.CoinGecko.RatePerMinute, time.Minute)),
	)
	cmc := coinmarketcap.New(cfg.Providers.CoinMarketCap.APIKey,
		coinmarketcap.WithHTTPClient(httpx.NewClient(
			httpx.WithTimeout(cfg.Providers.Timeout),
			httpx.WithHeader("X-CMC_PRO_API_KEY", cfg.Providers.CoinMarketCap.APIKey),
		)),
		coinmarketcap.WithLimiter(ratelimit.New(cfg.Providers.CoinMarketCap.RatePerMinute, time.Minute)),
	)
	av := alphavantage.New(cfg.Providers.AlphaVantage.APIKey,
		alphavantage.WithHTTPClient(httpx.NewClient(httpx.WithTimeout(cfg.Providers.Timeout))),
		alphavantage.WithLimiter(ratelimit.New(cfg.Providers.AlphaVantage.RatePerMinute, time.Minute)),
	)

	return map[models.AssetType][]provider.Client{
		models.AssetTypeStocks: {yf, fh},
		models.AssetTypeCrypto: {cg, cmc},
		models.AssetTypeForex:  {av, yf},
	}
}

// ProvideAggregator creates the fallback-chain quote aggregator.
func ProvideAggregator(
	cfg *config.Config,
	chains map[models.AssetType][]provider.Client,
	breakers *breaker.Registry,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Aggregator {
	return usecase.NewAggregator(chains, breakers, m, log,
		usecase.WithConcurrency(cfg.Providers.Concurrency))
}

// ProvideQueryService creates the read-only query path over the store.
func ProvideQueryService(store repository.MarketStore, m repository.Metrics) *usecase.QueryService {
	return usecase.NewQueryService(store, m)
}

// ProvideQuoteSink creates the Kafka quote publisher, or nil when
// Kafka is disabled.
func ProvideQuoteSink(cfg *config.Config) (repository.QuoteSink, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideHistoryStore creates the ClickHouse quote history store, or
// nil when ClickHouse is disabled.
func ProvideHistoryStore(cfg *config.Config) (repository.HistoryStore, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	history, err := internalrepo.NewQuoteHistory(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("quote history: %w", err)
	}
	return history, nil
}

// ProvideScheduler creates the background refresh scheduler. The news
// loop only runs with a Finnhub API key, and Kafka/ClickHouse sinks
// attach only when enabled.
func ProvideScheduler(
	aggregator *usecase.Aggregator,
	store repository.MarketStore,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
	sink repository.QuoteSink,
	history repository.HistoryStore,
	fh *finnhub.Client,
) *usecase.Scheduler {
	var opts []usecase.SchedulerOption
	if sink != nil {
		opts = append(opts, usecase.WithQuoteSinks(sink))
	}
	if history != nil {
		opts = append(opts, usecase.WithHistoryStore(history))
	}
	if cfg.Providers.Finnhub.APIKey != "" {
		opts = append(opts, usecase.WithNewsProvider(fh))
	}
	return usecase.NewScheduler(aggregator, store, m, log, usecase.SchedulerOptions{
		QuoteInterval: cfg.Scheduler.QuoteInterval,
		AssetInterval: cfg.Scheduler.AssetInterval,
		NewsInterval:  cfg.Scheduler.NewsInterval,
		SeedSymbols:   cfg.Scheduler.Symbols,
		NewsSymbols:   cfg.Scheduler.NewsSymbols,
	}, opts...)
}

// ProvideStream creates the Finnhub WebSocket stream, or nil when
// streaming is disabled.
func ProvideStream(
	cfg *config.Config,
	store repository.MarketStore,
	m repository.Metrics,
	log *logger.Logger,
) *stream.Finnhub {
	if !cfg.Providers.Finnhub.Stream {
		return nil
	}
	return stream.NewFinnhub(
		cfg.Providers.Finnhub.APIKey,
		cfg.Providers.Finnhub.StreamSymbols,
		store,
		m,
		log,
		stream.WithWebsocketURL(cfg.Providers.Finnhub.WebSocketURL),
		stream.WithPingInterval(cfg.Providers.Finnhub.PingInterval),
	)
}

// ProvideMarketHandler creates the HTTP API handler.
func ProvideMarketHandler(
	query *usecase.QueryService,
	aggregator *usecase.Aggregator,
	cacheSvc cache.Service,
	log *logger.Logger,
	history repository.HistoryStore,
) *api.MarketHandler {
	var opts []api.MarketHandlerOption
	if history != nil {
		opts = append(opts, api.WithHistory(history))
	}
	return api.NewMarketHandler(query, aggregator, cacheSvc, log, opts...)
}

// ProvideHTTPServer creates the Echo HTTP server.
func ProvideHTTPServer(handler *api.MarketHandler, log *logger.Logger, cfg *config.Config) *httpserver.Server {
	return httpserver.NewServer(handler, log,
		httpserver.WithPort(cfg.Server.Port),
		httpserver.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		httpserver.WithCORS(cfg.Server.CORS),
	)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	scheduler *usecase.Scheduler,
	streamClient *stream.Finnhub,
	httpServer *httpserver.Server,
	sink repository.QuoteSink,
	history repository.HistoryStore,
	cacheSvc cache.Service,
) *server.App {
	return server.New(cfg, log, scheduler, streamClient, httpServer, sink, history, cacheSvc)
}
