package risk

import (
	"log/slog"
	"sync"
	"time"
)

// Limits is the static risk configuration, read once at startup.
type Limits struct {
	MaxPositionPct float64 // max fraction of portfolio value per position
	DailyLossLimit float64 // fraction of starting value that halts the day
}

// Ledger is the single writer for positions and daily risk state. It is
// mutated from the cycle's risk-check/execute sequence and from asynchronous
// fill notifications, so every mutation goes through one mutex.
type Ledger struct {
	mu sync.Mutex

	limits         Limits
	dayFn          DayFunc
	now            func() time.Time
	log            *slog.Logger
	positions      map[string]Position
	portfolioValue float64
	daily          DailyState
}

func NewLedger(limits Limits, dayFn DayFunc, log *slog.Logger) *Ledger {
	if dayFn == nil {
		dayFn = CalendarDay
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		limits:    limits,
		dayFn:     dayFn,
		now:       time.Now,
		log:       log.With("component", "ledger"),
		positions: make(map[string]Position),
	}
}

// Restore seeds the ledger from recovered state (journal at process start).
func (l *Ledger) Restore(positions []Position, daily DailyState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions = make(map[string]Position, len(positions))
	for _, p := range positions {
		l.positions[p.Instrument] = p
	}
	l.daily = daily
}

// Reconcile adopts venue truth at cycle start: portfolio value and the open
// position set. A mismatch with the ledger's own view is resolved in the
// venue's favor.
func (l *Ledger) Reconcile(portfolioValue float64, positions []Position) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.portfolioValue = portfolioValue
	l.rolloverLocked()

	// A day restored without a persisted snapshot has no loss anchor yet;
	// the first reconcile of that day supplies it. Without an anchor the
	// daily loss limit can never trip.
	if l.daily.StartingValue == 0 && portfolioValue > 0 {
		l.daily.StartingValue = portfolioValue
		l.log.Info("daily starting value anchored", "day", l.daily.Day, "starting_value", portfolioValue)
	}

	venue := make(map[string]Position, len(positions))
	for _, p := range positions {
		// Spot venues report quantities but no entry price; keep our own
		// average entry when the venue doesn't supply one.
		if p.AvgEntry == 0 {
			if prev, ok := l.positions[p.Instrument]; ok {
				p.AvgEntry = prev.AvgEntry
				if p.OpenedAt.IsZero() {
					p.OpenedAt = prev.OpenedAt
				}
			}
		}
		venue[p.Instrument] = p
	}
	for id := range l.positions {
		if _, ok := venue[id]; !ok {
			l.log.Warn("position missing at venue, dropping", "instrument", id)
		}
	}
	l.positions = venue
}

// rolloverLocked resets daily state when the trading day has changed.
// Caller holds l.mu.
func (l *Ledger) rolloverLocked() {
	day := l.dayFn(l.now())
	if l.daily.Day == day {
		return
	}
	l.daily = DailyState{
		Day:           day,
		StartingValue: l.portfolioValue,
	}
	l.log.Info("trading day rolled over", "day", day, "starting_value", l.portfolioValue)
}

// Evaluate applies the risk rules to an intent, first violation wins:
//
//  1. day halted          -> reject (enter-long only; exits stay permitted)
//  2. duplicate position  -> reject
//  3. notional over limit -> clamp, never expand
//  4. exit with nothing   -> reject
//  5. otherwise           -> accept as requested
func (l *Ledger) Evaluate(intent Intent) Verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	qty, notional := normalize(intent)
	_, open := l.positions[intent.Instrument]

	switch intent.Action {
	case EnterLong:
		if l.daily.Halted {
			return Verdict{Outcome: Rejected, Reason: ReasonDailyLossLimit}
		}
		if open {
			return Verdict{Outcome: Rejected, Reason: ReasonPositionAlready}
		}
		maxNotional := l.limits.MaxPositionPct * l.portfolioValue
		if maxNotional > 0 && notional > maxNotional {
			clampedQty := qty
			if intent.Price > 0 {
				clampedQty = maxNotional / intent.Price
			}
			return Verdict{
				Outcome:  Clamped,
				Quantity: clampedQty,
				Notional: maxNotional,
				Reason:   ReasonMaxPositionClamp,
			}
		}
		return Verdict{Outcome: Accepted, Quantity: qty, Notional: notional}

	case Exit:
		if !open {
			return Verdict{Outcome: Rejected, Reason: ReasonNoPositionToClose}
		}
		pos := l.positions[intent.Instrument]
		if qty <= 0 || qty > pos.Quantity {
			qty = pos.Quantity
		}
		return Verdict{Outcome: Accepted, Quantity: qty, Notional: qty * intent.Price}

	default:
		// Hold carries no exposure change.
		return Verdict{Outcome: Accepted}
	}
}

func normalize(intent Intent) (qty, notional float64) {
	qty = intent.Quantity
	notional = intent.Notional
	if qty == 0 && intent.Price > 0 {
		qty = notional / intent.Price
	}
	if notional == 0 {
		notional = qty * intent.Price
	}
	return qty, notional
}

// ApplyFill updates positions and realized P&L from an execution result,
// then re-checks the daily loss limit.
func (l *Ledger) ApplyFill(fill Fill) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fill.Quantity <= 0 {
		return
	}

	switch fill.Side {
	case EnterLong:
		pos, ok := l.positions[fill.Instrument]
		if !ok {
			l.positions[fill.Instrument] = Position{
				Instrument: fill.Instrument,
				Quantity:   fill.Quantity,
				AvgEntry:   fill.Price,
				OpenedAt:   fill.Time,
			}
			break
		}
		// Partial-fill top-up keeps a volume-weighted entry price.
		total := pos.Quantity + fill.Quantity
		pos.AvgEntry = (pos.AvgEntry*pos.Quantity + fill.Price*fill.Quantity) / total
		pos.Quantity = total
		l.positions[fill.Instrument] = pos

	case Exit:
		pos, ok := l.positions[fill.Instrument]
		if !ok {
			l.log.Warn("fill for unknown position", "instrument", fill.Instrument)
			return
		}
		qty := fill.Quantity
		if qty > pos.Quantity {
			qty = pos.Quantity
		}
		l.daily.Realized += (fill.Price - pos.AvgEntry) * qty
		pos.Quantity -= qty
		if pos.Quantity <= 1e-9 {
			delete(l.positions, fill.Instrument)
		} else {
			l.positions[fill.Instrument] = pos
		}
	}

	l.checkHaltLocked()
}

// MarkToMarket revalues open positions against the latest prices and
// re-checks the daily loss limit, so unrealized loss alone can halt the day.
// It runs at the start of every cycle and after every fill.
func (l *Ledger) MarkToMarket(prices map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rolloverLocked()

	unrealized := 0.0
	for id, pos := range l.positions {
		price, ok := prices[id]
		if !ok {
			continue
		}
		unrealized += (price - pos.AvgEntry) * pos.Quantity
	}
	l.daily.Unrealized = unrealized
	l.checkHaltLocked()
}

// checkHaltLocked sets Halted when the cumulative loss reaches the limit.
// Caller holds l.mu. Halted is never cleared here; only rollover resets it.
func (l *Ledger) checkHaltLocked() {
	if l.daily.Halted {
		return
	}
	if l.daily.breached(l.limits.DailyLossLimit) {
		l.daily.Halted = true
		l.log.Warn("daily loss limit breached, halting entries for the day",
			"day", l.daily.Day,
			"loss", l.daily.Loss(),
			"starting_value", l.daily.StartingValue)
	}
}

// Position returns the open position for an instrument, if any.
func (l *Ledger) Position(instrument string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[instrument]
	return p, ok
}

// Positions returns a copy of all open positions.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	return out
}

// Daily returns a copy of the current day's risk state.
func (l *Ledger) Daily() DailyState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.daily
}

// PortfolioValue returns the value adopted at the last reconcile.
func (l *Ledger) PortfolioValue() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.portfolioValue
}

// Halted reports whether the current day is halted.
func (l *Ledger) Halted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.daily.Halted
}
