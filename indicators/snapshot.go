package indicators

import (
	"fmt"
	"time"

	"github.com/rustyeddy/tradebot/market"
)

// Snapshot value keys. These names flow through to the reasoning context, so
// they are part of the engine's wire surface and must stay stable.
const (
	KeyPrice         = "price"
	KeyRSI           = "rsi_14"
	KeyMACD          = "macd"
	KeyMACDSignal    = "macd_signal"
	KeyMACDHistogram = "macd_histogram"
	KeyBBUpper       = "bb_upper"
	KeyBBMiddle      = "bb_middle"
	KeyBBLower       = "bb_lower"
	KeyATR           = "atr_14"
	KeyVWAP          = "vwap"
	KeyVolumeRatio   = "volume_ratio"
)

// KeyEMA returns the snapshot key for an EMA of the given period.
func KeyEMA(period int) string {
	return fmt.Sprintf("ema_%d", period)
}

// KeyPriceChange returns the snapshot key for the percent change over n bars.
func KeyPriceChange(n int) string {
	return fmt.Sprintf("price_change_%d", n)
}

// Snapshot is the indicator view of one instrument at one bar, derived from
// the rolling window and recomputed each cycle. Indicators whose minimum
// period is unmet are listed in Missing instead of reporting a degraded
// value; a snapshot with Missing entries is lower-confidence reasoning
// input, not an error.
type Snapshot struct {
	Instrument string
	Time       time.Time
	BarCount   int
	Values     map[string]float64
	Missing    []string
}

// Complete reports whether every indicator had enough data.
func (s Snapshot) Complete() bool {
	return len(s.Missing) == 0
}

// Get returns a named value and whether it was computed.
func (s Snapshot) Get(key string) (float64, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// Engine derives a Snapshot from a window of candles. It is a pure function
// of its input: fresh indicator state is built per call, so replaying the
// same ordered window always yields an identical snapshot.
type Engine struct {
	emaPeriod int
}

// NewEngine creates an indicator engine. emaPeriod configures the EMA
// (default 20 when <= 0); the remaining periods are the conventional ones.
func NewEngine(emaPeriod int) *Engine {
	if emaPeriod <= 0 {
		emaPeriod = 20
	}
	return &Engine{emaPeriod: emaPeriod}
}

// Compute runs every indicator over the window, oldest bar first.
func (e *Engine) Compute(window []market.Candle) Snapshot {
	snap := Snapshot{
		BarCount: len(window),
		Values:   make(map[string]float64),
	}
	if len(window) == 0 {
		snap.Missing = []string{KeyRSI, KeyMACD, KeyBBMiddle, KeyEMA(e.emaPeriod), KeyVWAP, KeyATR}
		return snap
	}
	last := window[len(window)-1]
	snap.Instrument = last.Instrument
	snap.Time = last.Time
	snap.Values[KeyPrice] = last.Close

	rsi := NewRSI(14)
	macd := NewMACD(12, 26, 9)
	bb := NewBollinger(20, 2)
	ema := NewEMA(e.emaPeriod)
	vwap := NewVWAP()
	atr := NewATR(14)

	for _, c := range window {
		rsi.Update(c)
		macd.Update(c)
		bb.Update(c)
		ema.Update(c)
		vwap.Update(c)
		atr.Update(c)
	}

	put := func(key string, ind Indicator) {
		if ind.Ready() {
			snap.Values[key] = ind.Value()
		} else {
			snap.Missing = append(snap.Missing, key)
		}
	}

	put(KeyRSI, rsi)
	put(KeyMACD, macd)
	if macd.Ready() {
		snap.Values[KeyMACDSignal] = macd.Signal()
		snap.Values[KeyMACDHistogram] = macd.Histogram()
	}
	put(KeyBBMiddle, bb)
	if bb.Ready() {
		snap.Values[KeyBBUpper] = bb.Upper()
		snap.Values[KeyBBLower] = bb.Lower()
	}
	put(KeyEMA(e.emaPeriod), ema)
	put(KeyVWAP, vwap)
	put(KeyATR, atr)

	// Context extras: recent momentum and relative volume. These are
	// omitted rather than marked missing when the window is short.
	for _, n := range []int{1, 5, 15} {
		if pc, ok := pctChange(window, n); ok {
			snap.Values[KeyPriceChange(n)] = pc
		}
	}
	if vr, ok := volumeRatio(window, 20); ok {
		snap.Values[KeyVolumeRatio] = vr
	}

	return snap
}

func pctChange(window []market.Candle, n int) (float64, bool) {
	if len(window) <= n {
		return 0, false
	}
	prev := window[len(window)-1-n].Close
	if prev == 0 {
		return 0, false
	}
	return (window[len(window)-1].Close - prev) / prev, true
}

func volumeRatio(window []market.Candle, lookback int) (float64, bool) {
	if len(window) < lookback {
		return 0, false
	}
	sum := 0.0
	for _, c := range window[len(window)-lookback:] {
		sum += c.Volume
	}
	avg := sum / float64(lookback)
	if avg == 0 {
		return 0, false
	}
	return window[len(window)-1].Volume / avg, true
}
