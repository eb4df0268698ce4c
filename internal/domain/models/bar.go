package models

import "time"

// MarketBar represents one OHLCV record for a (symbol, timestamp) pair.
// Bars for a symbol are ordered by timestamp, non-decreasing.
type MarketBar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
