package indicators

import (
	"fmt"

	"github.com/rustyeddy/tradebot/market"
)

// RSI is a streaming Relative Strength Index indicator using Wilder's
// smoothing.
type RSI struct {
	period      int
	avgGain     float64
	avgLoss     float64
	count       int // number of deltas consumed
	gainSum     float64
	lossSum     float64
	prevClose   float64
	hasPrevious bool
}

// NewRSI creates a new Relative Strength Index indicator with the given period
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI(%d)", r.period)
}

func (r *RSI) Warmup() int {
	// Need period+1 candles because a delta requires a previous close
	return r.period + 1
}

func (r *RSI) Reset() {
	r.avgGain = 0
	r.avgLoss = 0
	r.count = 0
	r.gainSum = 0
	r.lossSum = 0
	r.hasPrevious = false
}

func (r *RSI) Update(c market.Candle) {
	if !r.hasPrevious {
		r.prevClose = c.Close
		r.hasPrevious = true
		return
	}

	delta := c.Close - r.prevClose
	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.count < r.period {
		// During warmup, accumulate sums for the initial averages
		r.gainSum += gain
		r.lossSum += loss
		r.count++
		if r.count == r.period {
			r.avgGain = r.gainSum / float64(r.period)
			r.avgLoss = r.lossSum / float64(r.period)
		}
	} else {
		// Wilder's smoothing
		r.avgGain = (r.avgGain*float64(r.period-1) + gain) / float64(r.period)
		r.avgLoss = (r.avgLoss*float64(r.period-1) + loss) / float64(r.period)
		r.count++
	}

	r.prevClose = c.Close
}

func (r *RSI) Ready() bool {
	return r.count >= r.period
}

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - (100 / (1 + rs))
}
