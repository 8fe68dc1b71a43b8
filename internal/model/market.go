package model

import "time"

// Candle is the most recent 1-minute bar of a trading pair.
// Volume is the quote-currency notional traded during the bar.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Snapshot holds the derived metrics for one symbol at one fetch instant.
// Values are never mutated after Evaluate returns them.
type Snapshot struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Spread    float64   `json:"spread"`
	NATR      float64   `json:"natr"`
	Change    float64   `json:"change"`
	Trades    int       `json:"trades"`
	Active    bool      `json:"active"`
	FetchedAt time.Time `json:"fetched_at"`
}
