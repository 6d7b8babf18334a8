package indicators

import (
	"github.com/rustyeddy/tradebot/market"
)

// VWAP is a streaming Volume-Weighted Average Price indicator. Unlike the
// fixed-lookback indicators it accumulates over the full session window it
// is fed, so it must be Reset() at each session/window boundary.
type VWAP struct {
	cumPV  float64
	cumVol float64
	count  int
	last   float64
}

func NewVWAP() *VWAP {
	return &VWAP{}
}

func (v *VWAP) Name() string {
	return "VWAP"
}

func (v *VWAP) Warmup() int {
	return 1
}

func (v *VWAP) Reset() {
	v.cumPV = 0
	v.cumVol = 0
	v.count = 0
	v.last = 0
}

func (v *VWAP) Update(c market.Candle) {
	v.cumPV += c.TypicalPrice() * c.Volume
	v.cumVol += c.Volume
	v.count++
	v.last = c.Close
}

func (v *VWAP) Ready() bool {
	return v.count >= 1
}

func (v *VWAP) Value() float64 {
	if !v.Ready() {
		return 0
	}
	if v.cumVol == 0 {
		// Zero-volume session: fall back to the last close
		return v.last
	}
	return v.cumPV / v.cumVol
}
