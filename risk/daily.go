package risk

import "time"

// DayFunc maps a wall-clock instant to a trading-day identifier. The crypto
// profile uses calendar UTC days; the stock profile uses the exchange
// session's local date.
type DayFunc func(time.Time) string

// CalendarDay identifies trading days by UTC calendar date.
func CalendarDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// SessionDay identifies trading days by the exchange's local date. loc is
// the market timezone (e.g. America/New_York).
func SessionDay(loc *time.Location) DayFunc {
	return func(t time.Time) string {
		return t.In(loc).Format("2006-01-02")
	}
}

// DailyState tracks one trading day's cumulative P&L and the halt flag.
// Halted is monotonic within a day: once set it stays set until the day
// boundary resets the whole state.
type DailyState struct {
	Day           string
	StartingValue float64
	Realized      float64
	Unrealized    float64
	Halted        bool
}

// Loss returns the cumulative loss for the day as a positive number, zero
// when the day is flat or up.
func (d DailyState) Loss() float64 {
	total := d.Realized + d.Unrealized
	if total >= 0 {
		return 0
	}
	return -total
}

// breached reports whether the day's loss has reached the limit fraction of
// the starting portfolio value.
func (d DailyState) breached(limit float64) bool {
	if d.StartingValue <= 0 || limit <= 0 {
		return false
	}
	return d.Loss() >= limit*d.StartingValue
}
