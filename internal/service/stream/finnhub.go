package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"MarketFeed/internal/domain/models"
	"MarketFeed/internal/domain/repository"
	"MarketFeed/pkg/logger"
)

const defaultWebsocketURL = "wss://ws.finnhub.io"

// Finnhub streams live trades over WebSocket and folds them into the
// market store as price-only quote ticks. The periodic refresh loop
// still owns the slow-moving fields; the store's merge keeps them.
type Finnhub struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	store   repository.MarketStore
	metrics repository.Metrics
	log     *logger.Logger

	conn *websocket.Conn
}

type Option func(*Finnhub)

func WithWebsocketURL(u string) Option {
	return func(f *Finnhub) { f.websocketURL = u }
}

func WithReconnectDelay(d time.Duration) Option {
	return func(f *Finnhub) { f.reconnectDelay = d }
}

func WithPingInterval(d time.Duration) Option {
	return func(f *Finnhub) { f.pingInterval = d }
}

func NewFinnhub(
	apiKey string,
	symbols []string,
	store repository.MarketStore,
	metrics repository.Metrics,
	log *logger.Logger,
	opts ...Option,
) *Finnhub {
	f := &Finnhub{
		apiKey:         apiKey,
		websocketURL:   defaultWebsocketURL,
		symbols:        symbols,
		reconnectDelay: 5 * time.Second,
		pingInterval:   30 * time.Second,
		store:          store,
		metrics:        metrics,
		log:            log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Finnhub) connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", f.websocketURL, f.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("finnhub stream connect: %w", err)
	}
	f.conn = conn

	for _, s := range f.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	f.log.Info("finnhub stream connected", logger.Int("symbols", len(f.symbols)))
	return nil
}

type tradeEvent struct {
	Symbol string  `json:"s"`
	Price  float64 `json:"p"`
	Volume float64 `json:"v"`
	TimeMs int64   `json:"t"`
}

type streamMessage struct {
	Type string       `json:"type"`
	Data []tradeEvent `json:"data"`
}

// Run connects and consumes trade frames until the context is done,
// reconnecting after read failures.
func (f *Finnhub) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := f.connect(ctx); err != nil {
			f.metrics.RecordProviderFailure("finnhub_stream", "unreachable")
			f.log.Warn("finnhub stream connect failed, retrying", logger.Error(err))
			if !sleepCtx(ctx, f.reconnectDelay) {
				return
			}
			continue
		}

		err := f.consume(ctx)
		f.conn.Close()
		if ctx.Err() != nil {
			return
		}
		f.metrics.RecordProviderFailure("finnhub_stream", "disconnected")
		f.log.Warn("finnhub stream disconnected, reconnecting", logger.Error(err))
		if !sleepCtx(ctx, f.reconnectDelay) {
			return
		}
	}
}

func (f *Finnhub) consume(ctx context.Context) error {
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := f.conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "trade" {
			continue // non-trade frame
		}
		f.applyTrades(ctx, msg.Data)
	}
}

func (f *Finnhub) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(f.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = f.conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

func (f *Finnhub) applyTrades(ctx context.Context, trades []tradeEvent) {
	quotes := make([]models.Quote, 0, len(trades))
	for _, t := range trades {
		if t.Symbol == "" || t.Price <= 0 {
			continue
		}
		quotes = append(quotes, models.Quote{
			Symbol:    t.Symbol,
			Price:     t.Price,
			AssetType: models.ClassifySymbol(t.Symbol),
			Source:    "finnhub_stream",
			Timestamp: time.UnixMilli(t.TimeMs).UTC(),
		})
		f.metrics.RecordLastPrice(t.Symbol, t.Price)
	}
	if len(quotes) == 0 {
		return
	}
	if err := f.store.PutQuotes(ctx, quotes); err != nil {
		f.log.Error("store stream quotes", logger.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
