package models

import "time"

// Quote is a normalized price point for one symbol. Fields a provider
// does not report stay zero and are merged from the previous cached
// quote on write.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	PercentChange float64   `json:"percent_change"`
	Volume        int64     `json:"volume,omitempty"`
	MarketCap     float64   `json:"market_cap,omitempty"`
	High24h       float64   `json:"high_24h,omitempty"`
	Low24h        float64   `json:"low_24h,omitempty"`
	Open          float64   `json:"open,omitempty"`
	PrevClose     float64   `json:"prev_close,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	AssetType     AssetType `json:"asset_type"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

func (q Quote) Valid() bool {
	return q.Symbol != "" && q.Price > 0 && !q.Timestamp.IsZero()
}
