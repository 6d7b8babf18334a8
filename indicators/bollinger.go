package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/tradebot/market"
)

// Bollinger is a streaming Bollinger Bands indicator. Value() returns the
// middle band (SMA); Upper() and Lower() return the bands at stdDev standard
// deviations.
type Bollinger struct {
	period int
	stdDev float64
	closes []float64
}

// NewBollinger creates a Bollinger Bands indicator; the conventional
// parameterization is period 20 at 2 standard deviations.
func NewBollinger(period int, stdDev float64) *Bollinger {
	return &Bollinger{
		period: period,
		stdDev: stdDev,
		closes: make([]float64, 0, period),
	}
}

func (b *Bollinger) Name() string {
	return fmt.Sprintf("BB(%d,%g)", b.period, b.stdDev)
}

func (b *Bollinger) Warmup() int {
	return b.period
}

func (b *Bollinger) Reset() {
	b.closes = b.closes[:0]
}

func (b *Bollinger) Update(c market.Candle) {
	b.closes = append(b.closes, c.Close)
	if len(b.closes) > b.period {
		b.closes = b.closes[1:]
	}
}

func (b *Bollinger) Ready() bool {
	return len(b.closes) >= b.period
}

// Value returns the middle band.
func (b *Bollinger) Value() float64 {
	if !b.Ready() {
		return 0
	}
	return b.mean()
}

func (b *Bollinger) Upper() float64 {
	if !b.Ready() {
		return 0
	}
	return b.mean() + b.stdDev*b.sigma()
}

func (b *Bollinger) Lower() float64 {
	if !b.Ready() {
		return 0
	}
	return b.mean() - b.stdDev*b.sigma()
}

func (b *Bollinger) mean() float64 {
	sum := 0.0
	for _, c := range b.closes {
		sum += c
	}
	return sum / float64(len(b.closes))
}

// sigma is the population standard deviation over the window.
func (b *Bollinger) sigma() float64 {
	mean := b.mean()
	varsum := 0.0
	for _, c := range b.closes {
		d := c - mean
		varsum += d * d
	}
	return math.Sqrt(varsum / float64(len(b.closes)))
}
