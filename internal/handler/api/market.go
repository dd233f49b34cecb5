package api

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"MarketFeed/internal/domain/models"
	"MarketFeed/internal/domain/repository"
	"MarketFeed/internal/usecase"
	"MarketFeed/pkg/cache"
	"MarketFeed/pkg/httpserver"
	"MarketFeed/pkg/logger"
)

// MarketHandler serves the read API. Every endpoint answers from the
// cache through the query service; no request ever waits on an
// upstream provider.
type MarketHandler struct {
	query      *usecase.QueryService
	aggregator *usecase.Aggregator
	history    repository.HistoryStore
	cache      cache.Service
	log        *logger.Logger
}

type MarketHandlerOption func(*MarketHandler)

// WithHistory enables the /history endpoint.
func WithHistory(h repository.HistoryStore) MarketHandlerOption {
	return func(m *MarketHandler) { m.history = h }
}

func NewMarketHandler(
	query *usecase.QueryService,
	aggregator *usecase.Aggregator,
	cacheSvc cache.Service,
	log *logger.Logger,
	opts ...MarketHandlerOption,
) *MarketHandler {
	h := &MarketHandler{
		query:      query,
		aggregator: aggregator,
		cache:      cacheSvc,
		log:        log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	v1 := e.Group("/api/v1")
	v1.GET("/assets/:asset_type", h.Assets)
	v1.GET("/quotes", h.Quotes)
	v1.GET("/quote/:symbol", h.Quote)
	v1.GET("/symbols/active", h.ActiveSymbols)
	v1.GET("/news", h.News)
	v1.GET("/providers/status", h.ProviderStatuses)
	if h.history != nil {
		v1.GET("/history/:symbol", h.History)
	}
}

// Health reports cache reachability; provider health is visible via
// /providers/status instead, since a degraded provider does not make
// the feed unhealthy.
func (h *MarketHandler) Health(c echo.Context) error {
	if err := h.cache.Health(c.Request().Context()); err != nil {
		return httpserver.ServiceUnavailableResponse(c, map[string]string{"cache": err.Error()})
	}
	return httpserver.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *MarketHandler) Assets(c echo.Context) error {
	assetType, err := models.ParseAssetType(c.Param("asset_type"))
	if err != nil {
		return httpserver.BadRequestResponse(c, httpserver.BadRequestError(err.Error()))
	}

	assets, err := h.query.Assets(c.Request().Context(), assetType)
	if err != nil {
		return h.cacheError(c, err)
	}
	if assets == nil {
		assets = []models.Asset{}
	}
	return httpserver.SuccessResponse(c, map[string]interface{}{
		"asset_type": assetType,
		"assets":     assets,
		"count":      len(assets),
	})
}

type quotesRequest struct {
	Symbols string `query:"symbols" validate:"required"`
}

func (h *MarketHandler) Quotes(c echo.Context) error {
	var req quotesRequest
	if payload := httpserver.ReadAndValidateRequest(c, &req); payload != nil {
		return httpserver.BadRequestResponse(c, payload)
	}

	symbols := strings.Split(req.Symbols, ",")
	set, err := h.query.Quotes(c.Request().Context(), symbols)
	if err != nil {
		return h.cacheError(c, err)
	}
	return httpserver.SuccessResponse(c, set)
}

func (h *MarketHandler) Quote(c echo.Context) error {
	symbol := c.Param("symbol")
	quote, ok, err := h.query.Quote(c.Request().Context(), symbol)
	if err != nil {
		return h.cacheError(c, err)
	}
	if !ok {
		return httpserver.NotFoundResponse(c, httpserver.NotFoundErrorf("no quote for %s", strings.ToUpper(symbol)))
	}
	return httpserver.SuccessResponse(c, quote)
}

func (h *MarketHandler) ActiveSymbols(c echo.Context) error {
	symbols, err := h.query.ActiveSymbols(c.Request().Context())
	if err != nil {
		return h.cacheError(c, err)
	}
	if symbols == nil {
		symbols = []string{}
	}
	return httpserver.SuccessResponse(c, map[string]interface{}{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

// News serves general headlines, or company headlines when ?symbol=
// is present.
func (h *MarketHandler) News(c echo.Context) error {
	ctx := c.Request().Context()
	symbol := strings.TrimSpace(c.QueryParam("symbol"))

	var (
		articles []models.NewsArticle
		err      error
	)
	if symbol == "" {
		articles, err = h.query.GeneralNews(ctx)
	} else {
		articles, err = h.query.CompanyNews(ctx, symbol)
	}
	if err != nil {
		return h.cacheError(c, err)
	}
	if articles == nil {
		articles = []models.NewsArticle{}
	}
	return httpserver.SuccessResponse(c, map[string]interface{}{
		"articles": articles,
		"count":    len(articles),
	})
}

func (h *MarketHandler) ProviderStatuses(c echo.Context) error {
	updates, err := h.query.LastUpdates(c.Request().Context())
	if err != nil {
		return h.cacheError(c, err)
	}
	return httpserver.SuccessResponse(c, map[string]interface{}{
		"providers":    h.aggregator.ProviderStatuses(),
		"last_updates": updates,
	})
}

type historyRequest struct {
	From string `query:"from"`
	To   string `query:"to"`
}

func (h *MarketHandler) History(c echo.Context) error {
	var req historyRequest
	if payload := httpserver.ReadAndValidateRequest(c, &req); payload != nil {
		return httpserver.BadRequestResponse(c, payload)
	}

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	var err error
	if req.From != "" {
		if from, err = time.Parse(time.RFC3339, req.From); err != nil {
			return httpserver.BadRequestResponse(c, httpserver.BadRequestError("from must be RFC3339"))
		}
	}
	if req.To != "" {
		if to, err = time.Parse(time.RFC3339, req.To); err != nil {
			return httpserver.BadRequestResponse(c, httpserver.BadRequestError("to must be RFC3339"))
		}
	}

	quotes, err := h.history.History(c.Request().Context(), c.Param("symbol"), from, to)
	if err != nil {
		h.log.Error("history query", logger.Error(err))
		return httpserver.InternalServerErrorResponse(c)
	}
	if quotes == nil {
		quotes = []models.Quote{}
	}
	return httpserver.SuccessResponse(c, map[string]interface{}{
		"symbol": strings.ToUpper(c.Param("symbol")),
		"quotes": quotes,
		"count":  len(quotes),
	})
}

func (h *MarketHandler) cacheError(c echo.Context, err error) error {
	h.log.Error("cache read failed", logger.Error(err))
	if errors.Is(err, cache.ErrCacheUnavailable) {
		return httpserver.ServiceUnavailableResponse(c, httpserver.ServiceUnavailableError("cache unavailable"))
	}
	return httpserver.InternalServerErrorResponse(c)
}

var _ httpserver.Handler = (*MarketHandler)(nil)
