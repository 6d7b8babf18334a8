package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/tradebot/market"
)

func candlesFromCloses(closes ...float64) []market.Candle {
	out := make([]market.Candle, 0, len(closes))
	for i, c := range closes {
		out = append(out, market.Candle{
			Instrument: "TEST",
			Open:       c,
			High:       c + 1,
			Low:        c - 1,
			Close:      c,
			Volume:     100,
			Time:       time.Unix(int64(i+1)*60, 0),
		})
	}
	return out
}

func feed(ind Indicator, candles []market.Candle) {
	for _, c := range candles {
		ind.Update(c)
	}
}

func TestMA(t *testing.T) {
	ma := NewMA(5)
	feed(ma, candlesFromCloses(102, 105, 106, 108, 110, 111, 113, 114, 116, 118))

	assert.True(t, ma.Ready())
	// Last 5 closes: 111,113,114,116,118 => 572/5 = 114.4
	assert.InDelta(t, 114.4, ma.Value(), 0.001)
}

func TestEMA(t *testing.T) {
	ema := NewEMA(3)
	feed(ema, candlesFromCloses(1, 2, 3))
	// Seeded with SMA of the first 3 closes
	assert.True(t, ema.Ready())
	assert.InDelta(t, 2.0, ema.Value(), 0.001)

	feed(ema, candlesFromCloses(4, 5))
	// multiplier 0.5: 2 -> 3 -> 4
	assert.InDelta(t, 4.0, ema.Value(), 0.001)
}

func TestEMANotReadyDuringWarmup(t *testing.T) {
	ema := NewEMA(20)
	feed(ema, candlesFromCloses(1, 2, 3))
	assert.False(t, ema.Ready())
	assert.Equal(t, 0.0, ema.Value())
}

func TestRSIKnownValues(t *testing.T) {
	rsi := NewRSI(3)
	feed(rsi, candlesFromCloses(10, 11, 10.5, 11.5))

	assert.True(t, rsi.Ready())
	// Gains: 1, 0, 1 -> avg 2/3. Losses: 0, 0.5, 0 -> avg 1/6. RS = 4.
	assert.InDelta(t, 80.0, rsi.Value(), 0.001)
}

func TestRSIAllGains(t *testing.T) {
	rsi := NewRSI(14)
	closes := make([]float64, 16)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	feed(rsi, candlesFromCloses(closes...))

	assert.True(t, rsi.Ready())
	assert.Equal(t, 100.0, rsi.Value())
}

func TestRSIInsufficientData(t *testing.T) {
	// 13 bars give only 12 deltas; a 14-period RSI must not report a value.
	rsi := NewRSI(14)
	closes := make([]float64, 13)
	for i := range closes {
		closes[i] = 100
	}
	feed(rsi, candlesFromCloses(closes...))

	assert.False(t, rsi.Ready())
	assert.Equal(t, 0.0, rsi.Value())
}

func TestATRWilderSmoothing(t *testing.T) {
	atr := NewATR(3)
	candles := []market.Candle{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 13, Low: 11, Close: 12},
	}
	feed(atr, candles)

	assert.True(t, atr.Ready())
	// Every true range is 2, so smoothing holds at 2.
	assert.InDelta(t, 2.0, atr.Value(), 0.001)
}

func TestTrueRange(t *testing.T) {
	current := market.Candle{High: 110, Low: 100, Close: 105}
	previous := market.Candle{Close: 104}
	assert.InDelta(t, 10.0, trueRange(current, previous), 0.001)
}

func TestMACDWarmup(t *testing.T) {
	macd := NewMACD(12, 26, 9)
	assert.Equal(t, 35, macd.Warmup())

	closes := make([]float64, 34)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	feed(macd, candlesFromCloses(closes...))
	assert.False(t, macd.Ready())

	feed(macd, candlesFromCloses(101))
	assert.True(t, macd.Ready())
	assert.InDelta(t, macd.Value()-macd.Signal(), macd.Histogram(), 1e-9)
}

func TestBollingerBands(t *testing.T) {
	bb := NewBollinger(3, 2)
	feed(bb, candlesFromCloses(1, 2, 3))

	assert.True(t, bb.Ready())
	assert.InDelta(t, 2.0, bb.Value(), 0.001)
	// Population sigma over {1,2,3} is sqrt(2/3).
	sigma := 0.816496580927726
	assert.InDelta(t, 2+2*sigma, bb.Upper(), 0.001)
	assert.InDelta(t, 2-2*sigma, bb.Lower(), 0.001)
}

func TestVWAP(t *testing.T) {
	vwap := NewVWAP()
	vwap.Update(market.Candle{High: 12, Low: 8, Close: 10, Volume: 10})
	vwap.Update(market.Candle{High: 22, Low: 18, Close: 20, Volume: 30})

	assert.True(t, vwap.Ready())
	assert.InDelta(t, 17.5, vwap.Value(), 0.001)
}

func TestVWAPZeroVolumeFallsBackToClose(t *testing.T) {
	vwap := NewVWAP()
	vwap.Update(market.Candle{High: 12, Low: 8, Close: 10, Volume: 0})
	assert.InDelta(t, 10.0, vwap.Value(), 0.001)
}

func TestReset(t *testing.T) {
	inds := []Indicator{NewMA(3), NewEMA(3), NewRSI(3), NewATR(3), NewMACD(3, 5, 2), NewBollinger(3, 2), NewVWAP()}
	candles := candlesFromCloses(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	for _, ind := range inds {
		feed(ind, candles)
		ind.Reset()
		assert.False(t, ind.Ready(), ind.Name())
	}
}
