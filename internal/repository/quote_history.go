package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketFeed/internal/domain/models"
	"MarketFeed/pkg/clickhouse"
)

const quoteHistoryTable = "quote_history"

var quoteHistorySchema = []string{
	`CREATE TABLE IF NOT EXISTS quote_history (
		symbol        LowCardinality(String),
		price         Float64,
		change        Float64,
		percent_change Float64,
		volume        Int64,
		asset_type    LowCardinality(String),
		source        LowCardinality(String),
		ts            DateTime64(3, 'UTC')
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(ts)
	ORDER BY (symbol, ts)
	TTL toDateTime(ts) + INTERVAL 90 DAY`,
}

// QuoteHistory persists quote ticks to ClickHouse for range queries.
type QuoteHistory struct {
	client *clickhouse.Client
}

func NewQuoteHistory(ctx context.Context, client *clickhouse.Client) (*QuoteHistory, error) {
	if err := client.InitSchema(ctx, quoteHistorySchema); err != nil {
		return nil, fmt.Errorf("quote history schema: %w", err)
	}
	return &QuoteHistory{client: client}, nil
}

// StoreQuotes inserts a batch as a single multi-row statement.
func (h *QuoteHistory) StoreQuotes(ctx context.Context, quotes []models.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(quoteHistoryTable)
	sb.WriteString(" (symbol, price, change, percent_change, volume, asset_type, source, ts) VALUES ")

	args := make([]any, 0, len(quotes)*8)
	for i, q := range quotes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			q.Symbol, q.Price, q.Change, q.PercentChange,
			q.Volume, string(q.AssetType), q.Source, q.Timestamp.UTC(),
		)
	}

	if _, err := h.client.DB().ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert %d quotes: %w", len(quotes), err)
	}
	return nil
}

// History returns the ticks for one symbol within [from, to], oldest
// first.
func (h *QuoteHistory) History(ctx context.Context, symbol string, from, to time.Time) ([]models.Quote, error) {
	const query = `SELECT symbol, price, change, percent_change, volume, asset_type, source, ts
		FROM quote_history
		WHERE symbol = ? AND ts >= ? AND ts <= ?
		ORDER BY ts`

	rows, err := h.client.DB().QueryContext(ctx, query, strings.ToUpper(symbol), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query history %s: %w", symbol, err)
	}
	defer rows.Close()

	var quotes []models.Quote
	for rows.Next() {
		var (
			q         models.Quote
			assetType string
		)
		if err := rows.Scan(&q.Symbol, &q.Price, &q.Change, &q.PercentChange,
			&q.Volume, &assetType, &q.Source, &q.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		q.AssetType = models.AssetType(assetType)
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

func (h *QuoteHistory) Health(ctx context.Context) error {
	return h.client.Health(ctx)
}

func (h *QuoteHistory) Close() error {
	return h.client.Close()
}
