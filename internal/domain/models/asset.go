package models

import (
	"fmt"
	"strings"
	"time"
)

type AssetType string

const (
	AssetTypeStocks AssetType = "stocks"
	AssetTypeCrypto AssetType = "crypto"
	AssetTypeForex  AssetType = "forex"
)

func AllAssetTypes() []AssetType {
	return []AssetType{AssetTypeStocks, AssetTypeCrypto, AssetTypeForex}
}

func ParseAssetType(s string) (AssetType, error) {
	switch AssetType(strings.ToLower(strings.TrimSpace(s))) {
	case AssetTypeStocks:
		return AssetTypeStocks, nil
	case AssetTypeCrypto:
		return AssetTypeCrypto, nil
	case AssetTypeForex:
		return AssetTypeForex, nil
	default:
		return "", fmt.Errorf("unknown asset type %q", s)
	}
}

// Asset is one tradable instrument as reported by a provider catalog.
type Asset struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	AssetType AssetType `json:"asset_type"`
	Exchange  string    `json:"exchange,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	Source    string    `json:"source"`
	LastSeen  time.Time `json:"last_seen"`
}

var cryptoBases = []string{"BTC", "ETH", "ADA", "DOT", "XRP", "LTC", "DOGE", "SOL", "BNB"}

// ClassifySymbol maps a raw symbol to its asset class. Forex pairs carry a
// slash or a Yahoo "=X" suffix; crypto symbols start with a known base
// currency; everything else is treated as an equity ticker.
func ClassifySymbol(symbol string) AssetType {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "/") || strings.HasSuffix(s, "=X") {
		return AssetTypeForex
	}
	for _, base := range cryptoBases {
		if s == base || strings.HasPrefix(s, base+"-") || strings.HasPrefix(s, base+"USD") {
			return AssetTypeCrypto
		}
	}
	return AssetTypeStocks
}

func GroupSymbolsByType(symbols []string) map[AssetType][]string {
	groups := make(map[AssetType][]string)
	for _, sym := range symbols {
		t := ClassifySymbol(sym)
		groups[t] = append(groups[t], sym)
	}
	return groups
}
