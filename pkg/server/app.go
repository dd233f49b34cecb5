package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketFeed/internal/domain/repository"
	"MarketFeed/internal/service/stream"
	"MarketFeed/internal/usecase"
	"MarketFeed/pkg/cache"
	"MarketFeed/pkg/config"
	"MarketFeed/pkg/httpserver"
	"MarketFeed/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	scheduler  *usecase.Scheduler
	stream     *stream.Finnhub
	httpServer *httpserver.Server
	sink       repository.QuoteSink
	history    repository.HistoryStore
	cache      cache.Service

	streamCancel context.CancelFunc
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *logger.Logger,
	scheduler *usecase.Scheduler,
	streamClient *stream.Finnhub,
	httpServer *httpserver.Server,
	sink repository.QuoteSink,
	history repository.HistoryStore,
	cacheSvc cache.Service,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		scheduler:  scheduler,
		stream:     streamClient,
		httpServer: httpServer,
		sink:       sink,
		history:    history,
		cache:      cacheSvc,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.scheduler.Start(ctx)
	a.log.Info("scheduler started",
		logger.Strings("symbols", a.cfg.Scheduler.Symbols),
		logger.Duration("quote_interval", a.cfg.Scheduler.QuoteInterval),
	)

	if a.stream != nil {
		var streamCtx context.Context
		streamCtx, a.streamCancel = context.WithCancel(ctx)
		go a.stream.Run(streamCtx)
		a.log.Info("finnhub stream started",
			logger.Strings("symbols", a.cfg.Providers.Finnhub.StreamSymbols))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start", logger.Error(err))
		return err
	}
	a.log.Info("http server started", logger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops all services in reverse startup order: no new HTTP
// traffic first, then the refresh loops, then downstream sinks.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Warn("http shutdown", logger.Error(err))
	}

	if a.streamCancel != nil {
		a.streamCancel()
	}
	a.scheduler.Stop()

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Warn("quote sink close", logger.Error(err))
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("history store close", logger.Error(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.log.Warn("cache close", logger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
