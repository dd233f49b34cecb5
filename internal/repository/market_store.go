package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"MarketFeed/internal/domain/models"
	"MarketFeed/pkg/cache"
)

const (
	quoteKeyPrefix   = "quotes:"
	assetKeyPrefix   = "assets:"
	activeSymbolsKey = "symbols:active"
	lastUpdatePrefix = "lastupdate:"
	generalNewsKey   = "news:general"
	companyNewsKey   = "news:company:"
)

type MarketStoreOptions struct {
	QuoteTTL         time.Duration
	AssetTTL         time.Duration
	NewsTTL          time.Duration
	ActiveSymbolsTTL time.Duration
}

func (o *MarketStoreOptions) withDefaults() {
	if o.QuoteTTL <= 0 {
		o.QuoteTTL = 5 * time.Minute
	}
	if o.AssetTTL <= 0 {
		o.AssetTTL = 24 * time.Hour
	}
	if o.NewsTTL <= 0 {
		o.NewsTTL = 30 * time.Minute
	}
	if o.ActiveSymbolsTTL <= 0 {
		o.ActiveSymbolsTTL = time.Hour
	}
}

// MarketStore keeps current market state in the cache. Quote writes
// are last-writer-by-timestamp; asset catalogs are replaced whole, so
// readers never observe a partially refreshed list.
type MarketStore struct {
	cache cache.Service
	opts  MarketStoreOptions

	// writeMu serializes the read-compare-write in PutQuotes so two
	// concurrent refreshes cannot interleave a stale overwrite.
	writeMu sync.Mutex
}

func NewMarketStore(c cache.Service, opts MarketStoreOptions) *MarketStore {
	opts.withDefaults()
	return &MarketStore{cache: c, opts: opts}
}

func quoteKey(symbol string) string {
	return quoteKeyPrefix + strings.ToUpper(symbol)
}

// PutQuotes writes a batch, rejecting any quote older than the cached
// one and merging slow-moving fields the incoming quote lacks. Stream
// ticks carry only a price, so PrevClose and friends survive from the
// last full refresh.
func (s *MarketStore) PutQuotes(ctx context.Context, quotes []models.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	keys := make([]string, 0, len(quotes))
	for _, q := range quotes {
		keys = append(keys, quoteKey(q.Symbol))
	}
	existing, err := s.cache.MGet(ctx, keys)
	if err != nil {
		return fmt.Errorf("read existing quotes: %w", err)
	}

	entries := make(map[string][]byte, len(quotes))
	for _, q := range quotes {
		if !q.Valid() {
			continue
		}
		key := quoteKey(q.Symbol)
		if raw, ok := existing[key]; ok {
			var prev models.Quote
			if err := json.Unmarshal(raw, &prev); err == nil {
				if !q.Timestamp.After(prev.Timestamp) {
					continue // stale write
				}
				q = mergeQuote(q, prev)
			}
		}
		raw, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal quote %s: %w", q.Symbol, err)
		}
		entries[key] = raw
	}
	if len(entries) == 0 {
		return nil
	}
	if err := s.cache.MSet(ctx, entries, s.opts.QuoteTTL); err != nil {
		return fmt.Errorf("write quotes: %w", err)
	}
	return nil
}

// mergeQuote fills fields the incoming quote does not carry from the
// previous cached value, recomputing change against the inherited
// previous close.
func mergeQuote(q, prev models.Quote) models.Quote {
	if q.PrevClose == 0 && prev.PrevClose != 0 {
		q.PrevClose = prev.PrevClose
		if q.Change == 0 && q.PercentChange == 0 {
			q.Change = q.Price - q.PrevClose
			q.PercentChange = q.Change / q.PrevClose * 100
		}
	}
	if q.Open == 0 {
		q.Open = prev.Open
	}
	if q.High24h == 0 {
		q.High24h = prev.High24h
	}
	if q.Low24h == 0 {
		q.Low24h = prev.Low24h
	}
	if q.Volume == 0 {
		q.Volume = prev.Volume
	}
	if q.MarketCap == 0 {
		q.MarketCap = prev.MarketCap
	}
	if q.Currency == "" {
		q.Currency = prev.Currency
	}
	return q
}

// Quotes returns the cached quotes for symbols, keyed by symbol.
// Missing symbols are absent from the map, not errors.
func (s *MarketStore) Quotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	if len(symbols) == 0 {
		return map[string]models.Quote{}, nil
	}
	keys := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		keys = append(keys, quoteKey(sym))
	}
	raw, err := s.cache.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read quotes: %w", err)
	}

	out := make(map[string]models.Quote, len(raw))
	for i, key := range keys {
		b, ok := raw[key]
		if !ok {
			continue
		}
		var q models.Quote
		if err := json.Unmarshal(b, &q); err != nil {
			continue // corrupt entry; treat as miss
		}
		out[symbols[i]] = q
	}
	return out, nil
}

// ReplaceAssets atomically swaps the catalog for one asset type by
// storing the whole list as a single value.
func (s *MarketStore) ReplaceAssets(ctx context.Context, assetType models.AssetType, assets []models.Asset) error {
	raw, err := json.Marshal(assets)
	if err != nil {
		return fmt.Errorf("marshal assets: %w", err)
	}
	if err := s.cache.Set(ctx, assetKeyPrefix+string(assetType), raw, s.opts.AssetTTL); err != nil {
		return fmt.Errorf("write assets %s: %w", assetType, err)
	}
	return nil
}

func (s *MarketStore) Assets(ctx context.Context, assetType models.AssetType) ([]models.Asset, error) {
	raw, err := s.cache.Get(ctx, assetKeyPrefix+string(assetType))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read assets %s: %w", assetType, err)
	}
	var assets []models.Asset
	if err := json.Unmarshal(raw, &assets); err != nil {
		return nil, nil
	}
	return assets, nil
}

func (s *MarketStore) SetActiveSymbols(ctx context.Context, symbols []string) error {
	raw, err := json.Marshal(symbols)
	if err != nil {
		return fmt.Errorf("marshal active symbols: %w", err)
	}
	if err := s.cache.Set(ctx, activeSymbolsKey, raw, s.opts.ActiveSymbolsTTL); err != nil {
		return fmt.Errorf("write active symbols: %w", err)
	}
	return nil
}

func (s *MarketStore) ActiveSymbols(ctx context.Context) ([]string, error) {
	raw, err := s.cache.Get(ctx, activeSymbolsKey)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read active symbols: %w", err)
	}
	var symbols []string
	if err := json.Unmarshal(raw, &symbols); err != nil {
		return nil, nil
	}
	return symbols, nil
}

func (s *MarketStore) SetLastUpdate(ctx context.Context, key string, at time.Time) error {
	raw, _ := at.UTC().MarshalText()
	if err := s.cache.Set(ctx, lastUpdatePrefix+key, raw, s.opts.AssetTTL); err != nil {
		return fmt.Errorf("write last update %s: %w", key, err)
	}
	return nil
}

func (s *MarketStore) LastUpdate(ctx context.Context, key string) (time.Time, error) {
	raw, err := s.cache.Get(ctx, lastUpdatePrefix+key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read last update %s: %w", key, err)
	}
	var t time.Time
	if err := t.UnmarshalText(raw); err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func (s *MarketStore) PutGeneralNews(ctx context.Context, articles []models.NewsArticle) error {
	raw, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("marshal news: %w", err)
	}
	if err := s.cache.Set(ctx, generalNewsKey, raw, s.opts.NewsTTL); err != nil {
		return fmt.Errorf("write general news: %w", err)
	}
	return nil
}

func (s *MarketStore) GeneralNews(ctx context.Context) ([]models.NewsArticle, error) {
	return s.readNews(ctx, generalNewsKey)
}

func (s *MarketStore) PutCompanyNews(ctx context.Context, symbol string, articles []models.NewsArticle) error {
	raw, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("marshal news: %w", err)
	}
	key := companyNewsKey + strings.ToUpper(symbol)
	if err := s.cache.Set(ctx, key, raw, s.opts.NewsTTL); err != nil {
		return fmt.Errorf("write company news %s: %w", symbol, err)
	}
	return nil
}

func (s *MarketStore) CompanyNews(ctx context.Context, symbol string) ([]models.NewsArticle, error) {
	return s.readNews(ctx, companyNewsKey+strings.ToUpper(symbol))
}

func (s *MarketStore) readNews(ctx context.Context, key string) ([]models.NewsArticle, error) {
	raw, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read news %s: %w", key, err)
	}
	var articles []models.NewsArticle
	if err := json.Unmarshal(raw, &articles); err != nil {
		return nil, nil
	}
	return articles, nil
}
