package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebot/market"
)

// syntheticWindow builds a deterministic pseudo-random walk.
func syntheticWindow(n int) []market.Candle {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		price += 2 * math.Sin(float64(i)*0.7)
		closes[i] = price
	}
	return candlesFromCloses(closes...)
}

func TestSnapshotCompleteWindow(t *testing.T) {
	eng := NewEngine(20)
	snap := eng.Compute(syntheticWindow(40))

	assert.True(t, snap.Complete(), "missing: %v", snap.Missing)
	assert.Equal(t, 40, snap.BarCount)
	assert.Equal(t, "TEST", snap.Instrument)

	for _, key := range []string{KeyPrice, KeyRSI, KeyMACD, KeyMACDSignal, KeyMACDHistogram,
		KeyBBUpper, KeyBBMiddle, KeyBBLower, KeyEMA(20), KeyVWAP, KeyATR,
		KeyPriceChange(1), KeyPriceChange(5), KeyPriceChange(15), KeyVolumeRatio} {
		_, ok := snap.Get(key)
		assert.True(t, ok, "missing value %s", key)
	}
}

func TestSnapshotInsufficientDataMarkers(t *testing.T) {
	// 13 bars of equal closing price: RSI(14) must report insufficient data,
	// not a value.
	closes := make([]float64, 13)
	for i := range closes {
		closes[i] = 100
	}
	eng := NewEngine(20)
	snap := eng.Compute(candlesFromCloses(closes...))

	_, ok := snap.Get(KeyRSI)
	assert.False(t, ok)
	assert.Contains(t, snap.Missing, KeyRSI)
	assert.False(t, snap.Complete())

	// Price itself is always present.
	price, ok := snap.Get(KeyPrice)
	require.True(t, ok)
	assert.Equal(t, 100.0, price)
}

func TestSnapshotEmptyWindow(t *testing.T) {
	eng := NewEngine(20)
	snap := eng.Compute(nil)

	assert.Equal(t, 0, snap.BarCount)
	assert.False(t, snap.Complete())
	assert.Empty(t, snap.Values)
}

func TestSnapshotDeterministic(t *testing.T) {
	// Replaying the same ordered window yields an identical snapshot.
	eng := NewEngine(20)
	window := syntheticWindow(60)

	a := eng.Compute(window)
	b := eng.Compute(window)

	require.Equal(t, a.Values, b.Values)
	require.Equal(t, a.Missing, b.Missing)
	assert.Equal(t, a.Time, b.Time)
}
