// Package market provides instrument metadata, candle data and the
// per-instrument rolling window store the cycle engine reads from.
package market

import "time"

// Candle represents OHLC (Open, High, Low, Close) candlestick data for one
// bar interval of one instrument.
type Candle struct {
	Instrument string
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Time       time.Time
	Interval   time.Duration
}

// TypicalPrice is (H+L+C)/3, the price VWAP accumulates.
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3.0
}
