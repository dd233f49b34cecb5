package usecase

import (
	"context"
	"testing"

	"MarketFeed/internal/domain/models"
	"MarketFeed/internal/provider"
)

func stockChain(primary, fallback provider.Client) map[models.AssetType][]provider.Client {
	return map[models.AssetType][]provider.Client{
		models.AssetTypeStocks: {primary, fallback},
	}
}

func TestFetchQuotesPrimaryServesAll(t *testing.T) {
	primary := &fakeClient{name: "primary", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: quotesFor("primary")}
	fallback := &fakeClient{name: "fallback", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: quotesFor("fallback")}

	a := NewAggregator(stockChain(primary, fallback), testRegistry(), &nopMetrics{}, testLogger(t))
	res := a.FetchQuotes(context.Background(), []string{"AAPL", "MSFT"})

	if len(res.Quotes) != 2 || len(res.Dropped) != 0 {
		t.Fatalf("quotes = %d, dropped = %v", len(res.Quotes), res.Dropped)
	}
	for _, q := range res.Quotes {
		if q.Source != "primary" {
			t.Fatalf("quote from %s, want primary", q.Source)
		}
	}
	if fallback.callCount() != 0 {
		t.Fatal("fallback called although primary served everything")
	}
}

func TestFetchQuotesFallbackFillsGaps(t *testing.T) {
	// Primary answers only AAPL; MSFT must come from the fallback.
	primary := &fakeClient{name: "primary", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: quotesFor("primary", "AAPL")}
	fallback := &fakeClient{name: "fallback", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: quotesFor("fallback")}

	a := NewAggregator(stockChain(primary, fallback), testRegistry(), &nopMetrics{}, testLogger(t))
	res := a.FetchQuotes(context.Background(), []string{"AAPL", "MSFT"})

	bySource := make(map[string]string)
	for _, q := range res.Quotes {
		bySource[q.Symbol] = q.Source
	}
	if bySource["AAPL"] != "primary" || bySource["MSFT"] != "fallback" {
		t.Fatalf("sources = %v", bySource)
	}
	if len(res.Dropped) != 0 {
		t.Fatalf("dropped = %v", res.Dropped)
	}
}

func TestFetchQuotesPrimaryFailureUsesFallback(t *testing.T) {
	primary := &fakeClient{name: "primary", types: []models.AssetType{models.AssetTypeStocks}, batch: true}
	fallback := &fakeClient{name: "fallback", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: quotesFor("fallback")}

	a := NewAggregator(stockChain(primary, fallback), testRegistry(), &nopMetrics{}, testLogger(t))
	res := a.FetchQuotes(context.Background(), []string{"AAPL"})

	if len(res.Quotes) != 1 || res.Quotes[0].Source != "fallback" {
		t.Fatalf("quotes = %+v", res.Quotes)
	}
}

func TestFetchQuotesAllProvidersDownDrops(t *testing.T) {
	primary := &fakeClient{name: "primary", types: []models.AssetType{models.AssetTypeStocks}, batch: true}
	fallback := &fakeClient{name: "fallback", types: []models.AssetType{models.AssetTypeStocks}, batch: true}
	metrics := &nopMetrics{}

	a := NewAggregator(stockChain(primary, fallback), testRegistry(), metrics, testLogger(t))
	res := a.FetchQuotes(context.Background(), []string{"AAPL", "MSFT"})

	if len(res.Quotes) != 0 {
		t.Fatalf("quotes = %+v", res.Quotes)
	}
	if len(res.Dropped) != 2 {
		t.Fatalf("dropped = %v, want both symbols", res.Dropped)
	}
	if metrics.dropped != 2 {
		t.Fatalf("dropped metric = %d, want 2", metrics.dropped)
	}
}

func TestFetchQuotesOpenBreakerSkipsProvider(t *testing.T) {
	primary := &fakeClient{name: "primary", types: []models.AssetType{models.AssetTypeStocks}, batch: true}
	fallback := &fakeClient{name: "fallback", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: quotesFor("fallback")}

	reg := testRegistry()
	a := NewAggregator(stockChain(primary, fallback), reg, &nopMetrics{}, testLogger(t))

	// Trip the primary's breaker: threshold is 3.
	for i := 0; i < 3; i++ {
		a.FetchQuotes(context.Background(), []string{"AAPL"})
	}
	primaryCalls := primary.callCount()

	res := a.FetchQuotes(context.Background(), []string{"AAPL"})
	if primary.callCount() != primaryCalls {
		t.Fatal("primary invoked while its breaker is open")
	}
	if len(res.Quotes) != 1 || res.Quotes[0].Source != "fallback" {
		t.Fatalf("quotes = %+v", res.Quotes)
	}
}

func TestFetchQuotesPerSymbolFanOut(t *testing.T) {
	// Non-batch provider that fails only for ONE of the symbols.
	primary := &fakeClient{name: "primary", types: []models.AssetType{models.AssetTypeStocks}, batch: false,
		quotes: func(symbols []string) ([]models.Quote, error) {
			if len(symbols) == 1 && symbols[0] == "BAD" {
				return nil, errProviderDown
			}
			return quotesFor("primary")(symbols)
		}}
	fallback := &fakeClient{name: "fallback", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: quotesFor("fallback")}

	a := NewAggregator(stockChain(primary, fallback), testRegistry(), &nopMetrics{}, testLogger(t))
	res := a.FetchQuotes(context.Background(), []string{"AAPL", "BAD", "MSFT"})

	bySource := make(map[string]string)
	for _, q := range res.Quotes {
		bySource[q.Symbol] = q.Source
	}
	if bySource["AAPL"] != "primary" || bySource["MSFT"] != "primary" || bySource["BAD"] != "fallback" {
		t.Fatalf("sources = %v", bySource)
	}
}

func TestFetchQuotesGroupsMixedAssetClasses(t *testing.T) {
	stocks := &fakeClient{name: "stocks", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		quotes: quotesFor("stocks")}
	crypto := &fakeClient{name: "crypto", types: []models.AssetType{models.AssetTypeCrypto}, batch: true,
		quotes: quotesFor("crypto")}

	chains := map[models.AssetType][]provider.Client{
		models.AssetTypeStocks: {stocks},
		models.AssetTypeCrypto: {crypto},
	}
	a := NewAggregator(chains, testRegistry(), &nopMetrics{}, testLogger(t))
	res := a.FetchQuotes(context.Background(), []string{"AAPL", "BTC"})

	if len(res.Quotes) != 2 {
		t.Fatalf("quotes = %+v", res.Quotes)
	}
	bySource := make(map[string]string)
	for _, q := range res.Quotes {
		bySource[q.Symbol] = q.Source
	}
	if bySource["AAPL"] != "stocks" || bySource["BTC"] != "crypto" {
		t.Fatalf("sources = %v", bySource)
	}
}

func TestFetchAssetsMergesWithPrimaryPriority(t *testing.T) {
	primary := &fakeClient{name: "primary", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		assets: func(models.AssetType) ([]models.Asset, error) {
			return []models.Asset{
				{Symbol: "AAPL", Name: "Apple (primary)", AssetType: models.AssetTypeStocks, Source: "primary"},
			}, nil
		}}
	fallback := &fakeClient{name: "fallback", types: []models.AssetType{models.AssetTypeStocks}, batch: true,
		assets: func(models.AssetType) ([]models.Asset, error) {
			return []models.Asset{
				{Symbol: "AAPL", Name: "Apple (fallback)", AssetType: models.AssetTypeStocks, Source: "fallback"},
				{Symbol: "TSLA", Name: "Tesla", AssetType: models.AssetTypeStocks, Source: "fallback"},
			}, nil
		}}

	a := NewAggregator(stockChain(primary, fallback), testRegistry(), &nopMetrics{}, testLogger(t))
	assets, err := a.FetchAssets(context.Background(), models.AssetTypeStocks)
	if err != nil {
		t.Fatalf("FetchAssets: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("assets = %+v", assets)
	}
	for _, asset := range assets {
		if asset.Symbol == "AAPL" && asset.Source != "primary" {
			t.Fatalf("primary lost the collision: %+v", asset)
		}
	}
}

func TestFetchAssetsAllDownReturnsError(t *testing.T) {
	primary := &fakeClient{name: "primary", types: []models.AssetType{models.AssetTypeStocks}, batch: true}
	fallback := &fakeClient{name: "fallback", types: []models.AssetType{models.AssetTypeStocks}, batch: true}

	a := NewAggregator(stockChain(primary, fallback), testRegistry(), &nopMetrics{}, testLogger(t))
	if _, err := a.FetchAssets(context.Background(), models.AssetTypeStocks); err == nil {
		t.Fatal("expected error when every provider failed")
	}
}
