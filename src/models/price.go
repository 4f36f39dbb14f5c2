package models

// MPriceRecord is the normalized per-instrument price snapshot, one per symbol.
// Providers with different response shapes are mapped into this record by the
// price sources; consumers treat it as read-only.
type MPriceRecord struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Change24h    float64 `json:"change_24h"`
	ChangePct24h float64 `json:"change_pct_24h"`
	MarketCap    float64 `json:"market_cap"`
	Volume24h    float64 `json:"volume_24h"`
	Timestamp    int64   `json:"timestamp"`
}
