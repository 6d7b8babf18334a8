package indicators

import (
	"fmt"

	"github.com/rustyeddy/tradebot/market"
)

// MACD is a streaming Moving Average Convergence/Divergence indicator.
// Value() returns the MACD line; Signal() and Histogram() expose the rest.
type MACD struct {
	fast   *ExponentialMA
	slow   *ExponentialMA
	signal *ExponentialMA
	count  int
}

// NewMACD creates a MACD indicator with the given fast/slow/signal periods.
// The conventional parameterization is 12/26/9.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD(%d,%d,%d)", m.fast.period, m.slow.period, m.signal.period)
}

func (m *MACD) Warmup() int {
	// The signal line needs signal-period MACD values, which only exist once
	// the slow EMA is ready.
	return m.slow.period + m.signal.period
}

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.count = 0
}

func (m *MACD) Update(c market.Candle) {
	m.fast.Update(c)
	m.slow.Update(c)
	m.count++
	if m.fast.Ready() && m.slow.Ready() {
		m.signal.update(m.fast.Value() - m.slow.Value())
	}
}

func (m *MACD) Ready() bool {
	return m.signal.Ready()
}

// Value returns the MACD line (fast EMA - slow EMA).
func (m *MACD) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.fast.Value() - m.slow.Value()
}

// Signal returns the signal line (EMA of the MACD line).
func (m *MACD) Signal() float64 {
	if !m.Ready() {
		return 0
	}
	return m.signal.Value()
}

// Histogram returns MACD line minus signal line.
func (m *MACD) Histogram() float64 {
	if !m.Ready() {
		return 0
	}
	return m.Value() - m.Signal()
}
