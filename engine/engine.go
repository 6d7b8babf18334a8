// Package engine drives the trading cycle: one pass over the instrument
// universe through fetch, screen, indicators, decide, risk check, execute
// and record. Instruments are isolated from each other's failures; every
// evaluated instrument leaves exactly one audit record.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rustyeddy/tradebot/agent"
	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/compliance"
	"github.com/rustyeddy/tradebot/indicators"
	"github.com/rustyeddy/tradebot/journal"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/risk"
)

// ErrCycleInProgress is returned when a cycle start is refused because the
// previous one has not finished. The scheduler logs and waits for the next
// tick; nothing is queued.
var ErrCycleInProgress = errors.New("previous cycle still running")

// Config is the orchestrator's static configuration.
type Config struct {
	Profile          string
	Lookback         int
	MaxPositionPct   float64
	ProviderTimeout  time.Duration
	ExecutionTimeout time.Duration
}

// Deps are the components one profile's orchestrator drives. Profiles never
// share state: each gets its own full set.
type Deps struct {
	Universe   market.Universe
	Store      *market.WindowStore
	Data       broker.MarketData // nil when a stream feeds the store
	Indicators *indicators.Engine
	Compliance *compliance.Cache
	Ledger     *risk.Ledger
	Provider   agent.Provider
	Venue      broker.Venue
	Journal    journal.Journal
	Mirror     journal.Sink // optional flat-file copy of audit records
	Day        risk.DayFunc

	// LatestPrice overrides the window's last close as the mark price,
	// letting the fast profile mark against the in-flight streamed candle.
	LatestPrice func(instrument string) (float64, bool)

	Log *slog.Logger
}

// Orchestrator runs cycles for one profile.
type Orchestrator struct {
	cfg         Config
	deps        Deps
	log         *slog.Logger
	now         func() time.Time
	flattenWait time.Duration

	busy  atomic.Bool
	state atomic.Int32
}

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 64
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 15 * time.Second
	}
	if deps.Day == nil {
		deps.Day = risk.CalendarDay
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Orchestrator{
		cfg:         cfg,
		deps:        deps,
		log:         deps.Log.With("component", "engine", "profile", cfg.Profile),
		now:         time.Now,
		flattenWait: 2 * time.Minute,
	}
}

// acquire takes the single-cycle slot, waiting up to wait for an in-flight
// cycle to finish.
func (o *Orchestrator) acquire(ctx context.Context, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for !o.busy.CompareAndSwap(false, true) {
		if wait <= 0 || time.Now().After(deadline) {
			return ErrCycleInProgress
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return nil
}

// State reports the pipeline's current step.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Restore rebuilds the ledger from the journal after a process restart.
func (o *Orchestrator) Restore() error {
	recs, err := o.deps.Journal.OpenPositions()
	if err != nil {
		return err
	}
	positions := make([]risk.Position, 0, len(recs))
	for _, r := range recs {
		positions = append(positions, risk.Position{
			Instrument: r.Instrument,
			Quantity:   r.Quantity,
			AvgEntry:   r.AvgEntry,
			OpenedAt:   r.OpenedAt,
		})
	}

	day := o.deps.Day(o.now())
	daily := risk.DailyState{Day: day}
	if d, ok, err := o.deps.Journal.Daily(day); err != nil {
		return err
	} else if ok {
		daily = risk.DailyState{
			Day:           d.Day,
			StartingValue: d.StartingValue,
			Realized:      d.Realized,
			Unrealized:    d.Unrealized,
			Halted:        d.Halted,
		}
	}

	o.deps.Ledger.Restore(positions, daily)
	o.log.Info("ledger restored", "positions", len(positions), "day", day, "halted", daily.Halted)
	return nil
}

// RunCycle executes one full cycle. Overlapping starts are refused, venue
// truth is adopted and positions are marked to market before any instrument
// is evaluated, and the cycle stops cooperatively between instruments when
// ctx is cancelled.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if !o.busy.CompareAndSwap(false, true) {
		metricCyclesSkipped.Inc()
		o.log.Warn("cycle start refused", "err", ErrCycleInProgress)
		return ErrCycleInProgress
	}
	defer o.busy.Store(false)
	defer o.setState(StateIdle)

	cycleID := ulid.Make().String()
	log := o.log.With("cycle", cycleID)
	metricCyclesRun.Inc()
	log.Info("cycle start", "instruments", len(o.deps.Universe))

	o.setState(StateFetchData)
	o.reconcile(ctx, log)
	o.deps.Ledger.MarkToMarket(o.markPrices())
	if o.deps.Ledger.Halted() {
		o.setState(StateHalted)
		metricHalted.Set(1)
		log.Warn("day halted, entries blocked, exits still evaluated")
	} else {
		metricHalted.Set(0)
	}

	for _, inst := range o.deps.Universe {
		if err := ctx.Err(); err != nil {
			log.Info("cycle stopped between instruments", "err", err)
			o.persistState(log)
			return err
		}
		if !inst.Tradable {
			continue
		}
		o.runInstrument(ctx, cycleID, inst.ID, log)
	}

	o.persistState(log)
	log.Info("cycle done")
	return nil
}

// reconcile adopts venue truth at cycle start. A snapshot failure keeps the
// ledger's own view; the next cycle retries.
func (o *Orchestrator) reconcile(ctx context.Context, log *slog.Logger) {
	acct, err := o.deps.Venue.AccountSnapshot(ctx)
	if err != nil {
		log.Warn("account snapshot failed, keeping ledger view", "err", err)
		return
	}
	positions := make([]risk.Position, 0, len(acct.Positions))
	for _, p := range acct.Positions {
		positions = append(positions, risk.Position{
			Instrument: p.Instrument,
			Quantity:   p.Quantity,
			AvgEntry:   p.AvgEntry,
		})
	}
	o.deps.Ledger.Reconcile(acct.PortfolioValue, positions)
}

func (o *Orchestrator) markPrices() map[string]float64 {
	prices := make(map[string]float64)
	for _, pos := range o.deps.Ledger.Positions() {
		if p, ok := o.latestPrice(pos.Instrument); ok {
			prices[pos.Instrument] = p
		}
	}
	return prices
}

func (o *Orchestrator) latestPrice(instrument string) (float64, bool) {
	if o.deps.LatestPrice != nil {
		if p, ok := o.deps.LatestPrice(instrument); ok {
			return p, true
		}
	}
	if bar, ok := o.deps.Store.Last(instrument); ok {
		return bar.Close, true
	}
	return 0, false
}

// runInstrument drives one instrument through the pipeline. It always ends
// with exactly one audit record, whatever happened along the way.
func (o *Orchestrator) runInstrument(ctx context.Context, cycleID, id string, log *slog.Logger) {
	rec := journal.AuditRecord{
		CycleID:    cycleID,
		Instrument: id,
		Time:       o.now().UTC(),
		Action:     string(agent.Hold),
	}

	// FETCH_DATA
	o.setState(StateFetchData)
	if o.deps.Data != nil {
		bar, err := o.deps.Data.LatestBar(ctx, id)
		if err != nil {
			rec.ExecOutcome = journal.ExecNotAttempted
			rec.Err = err.Error()
			log.Warn("market data unavailable", "instrument", id, "err", err)
			o.recordFailure(rec, log)
			return
		}
		if err := o.deps.Store.Append(id, bar); err != nil {
			// The same closed bar polled twice is normal between cycles.
			if !errors.Is(err, market.ErrOutOfOrderBar) {
				log.Warn("bar append failed", "instrument", id, "err", err)
			}
		}
	}
	window := o.deps.Store.Window(id, o.cfg.Lookback)
	if len(window) == 0 {
		rec.ExecOutcome = journal.ExecNotAttempted
		rec.Err = "no bars buffered"
		o.recordFailure(rec, log)
		return
	}
	price := window[len(window)-1].Close
	if p, ok := o.latestPrice(id); ok {
		price = p
	}

	// SCREEN
	o.setState(StateScreen)
	o.deps.Compliance.Ensure(ctx, []string{id})
	verdict := o.deps.Compliance.Lookup(id)
	rec.VerdictStatus = string(verdict.Status)
	pos, hasPos := o.deps.Ledger.Position(id)
	eligible := verdict.Eligible(o.now())
	if !eligible && !hasPos {
		// Nothing to unwind and no approved verdict: the provider is never
		// consulted for this instrument this cycle.
		rec.RiskOutcome = string(risk.Rejected)
		rec.RiskReason = "not-compliance-approved"
		rec.ExecOutcome = journal.ExecNotAttempted
		o.record(rec, log)
		return
	}

	// INDICATORS
	o.setState(StateIndicators)
	snap := o.deps.Indicators.Compute(window)

	// DECIDE
	o.setState(StateDecide)
	dc := agent.Context{
		Instrument:     id,
		Snapshot:       snap,
		Verdict:        verdict,
		DailyPnL:       o.deps.Ledger.Daily().Realized + o.deps.Ledger.Daily().Unrealized,
		PortfolioValue: o.deps.Ledger.PortfolioValue(),
		MaxPositionPct: o.cfg.MaxPositionPct,
		Degraded:       !snap.Complete(),
	}
	if hasPos {
		dc.Position = &pos
	}

	dctx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	decision, err := o.deps.Provider.Decide(dctx, dc)
	cancel()
	switch {
	case err == nil:
	case errors.Is(err, agent.ErrMalformedDecision):
		log.Warn("malformed decision, holding", "instrument", id, "err", err)
		decision = agent.Decision{Instrument: id, Action: agent.Hold}
		rec.Err = err.Error()
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		rec.ExecOutcome = journal.ExecProviderTimeout
		rec.Err = err.Error()
		log.Warn("provider timed out", "instrument", id)
		o.recordFailure(rec, log)
		return
	default:
		rec.ExecOutcome = journal.ExecNotAttempted
		rec.Err = err.Error()
		log.Warn("provider failed", "instrument", id, "err", err)
		o.recordFailure(rec, log)
		return
	}

	rec.Action = string(decision.Action)
	rec.Quantity = decision.Quantity
	rec.Notional = decision.Notional
	rec.Confidence = decision.Confidence
	rec.Rationale = decision.Rationale
	metricDecisions.WithLabelValues(string(decision.Action)).Inc()

	// Default-deny: an entry without a fresh approved verdict never reaches
	// the ledger, even when the provider asked for one.
	if decision.Action == agent.EnterLong && !eligible {
		rec.RiskOutcome = string(risk.Rejected)
		rec.RiskReason = "not-compliance-approved"
		rec.ExecOutcome = journal.ExecNotAttempted
		o.record(rec, log)
		return
	}

	// RISK_CHECK
	o.setState(StateRiskCheck)
	intent := risk.Intent{
		Instrument: id,
		Action:     decision.RiskAction(),
		Quantity:   decision.Quantity,
		Notional:   decision.Notional,
		Price:      price,
	}
	v := o.deps.Ledger.Evaluate(intent)
	rec.RiskOutcome = string(v.Outcome)
	rec.RiskReason = v.Reason

	if v.Outcome == risk.Rejected || decision.Action == agent.Hold {
		rec.ExecOutcome = journal.ExecNotAttempted
		o.record(rec, log)
		return
	}

	o.execute(ctx, rec, intent.Action, v.Quantity, log)
}

// execute submits an approved order. The audit record goes in first with a
// pending outcome; if that write fails the order is never sent.
func (o *Orchestrator) execute(ctx context.Context, rec journal.AuditRecord, action risk.Action, qty float64, log *slog.Logger) {
	rec.ExecOutcome = journal.ExecPending
	if err := o.deps.Journal.Append(rec); err != nil {
		metricAuditFailures.Inc()
		log.Error("audit write failed, order not sent", "instrument", rec.Instrument, "err", err)
		return
	}

	o.setState(StateExecute)
	side := broker.Buy
	if action == risk.Exit {
		side = broker.Sell
	}
	ectx, cancel := context.WithTimeout(ctx, o.cfg.ExecutionTimeout)
	res, err := o.deps.Venue.SubmitOrder(ectx, broker.OrderRequest{
		Instrument: rec.Instrument,
		Side:       side,
		Quantity:   qty,
	})
	cancel()
	metricOrdersSent.Inc()

	var outcome, errMsg string
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		// Order state unknown; the next cycle's reconcile adopts venue truth.
		outcome = journal.ExecExecutionTimeout
		errMsg = err.Error()
		log.Warn("execution timed out", "instrument", rec.Instrument)
	case err != nil:
		outcome = journal.ExecError
		errMsg = err.Error()
		log.Warn("order submission failed", "instrument", rec.Instrument, "err", err)
	case res.Status == broker.Filled:
		outcome = journal.ExecFilled
	case res.Status == broker.PartialFilled:
		outcome = journal.ExecPartial
	default:
		outcome = journal.ExecRejected
		errMsg = res.Reason
	}

	if (outcome == journal.ExecFilled || outcome == journal.ExecPartial) && res.FillQuantity > 0 {
		metricOrdersFilled.Inc()
		o.deps.Ledger.ApplyFill(risk.Fill{
			Instrument: rec.Instrument,
			Side:       action,
			Quantity:   res.FillQuantity,
			Price:      res.FillPrice,
			Time:       o.now().UTC(),
		})
		if err := o.deps.Journal.RecordFill(journal.FillRecord{
			CycleID:    rec.CycleID,
			Instrument: rec.Instrument,
			Side:       string(side),
			Quantity:   res.FillQuantity,
			Price:      res.FillPrice,
			Time:       o.now().UTC(),
		}); err != nil {
			log.Error("fill record failed", "instrument", rec.Instrument, "err", err)
		}
	}

	// RECORD
	if outcome == journal.ExecError || outcome == journal.ExecExecutionTimeout {
		o.setState(StateError)
	} else {
		o.setState(StateRecord)
	}
	if err := o.deps.Journal.FinalizeExecution(rec.CycleID, rec.Instrument, outcome, res.FillPrice, res.FillQuantity, errMsg); err != nil {
		metricAuditFailures.Inc()
		log.Error("audit finalize failed", "instrument", rec.Instrument, "err", err)
	}
	rec.ExecOutcome = outcome
	rec.FillPrice = res.FillPrice
	rec.FillQuantity = res.FillQuantity
	rec.Err = errMsg
	o.mirror(rec, log)
	log.Info("order recorded",
		"instrument", rec.Instrument, "action", rec.Action,
		"outcome", outcome, "qty", res.FillQuantity, "price", res.FillPrice)
}

// record writes the audit record for a pipeline that never reached EXECUTE.
func (o *Orchestrator) record(rec journal.AuditRecord, log *slog.Logger) {
	o.setState(StateRecord)
	o.append(rec, log)
}

// recordFailure writes the audit record for an instrument whose pipeline
// failed before EXECUTE. The write happens in the ERROR state so observers
// can tell a failed instrument from a cleanly recorded one.
func (o *Orchestrator) recordFailure(rec journal.AuditRecord, log *slog.Logger) {
	o.setState(StateError)
	o.append(rec, log)
}

func (o *Orchestrator) append(rec journal.AuditRecord, log *slog.Logger) {
	if err := o.deps.Journal.Append(rec); err != nil {
		metricAuditFailures.Inc()
		log.Error("audit write failed", "instrument", rec.Instrument, "err", err)
	}
	o.mirror(rec, log)
}

func (o *Orchestrator) mirror(rec journal.AuditRecord, log *slog.Logger) {
	if o.deps.Mirror == nil {
		return
	}
	if err := o.deps.Mirror.Append(rec); err != nil {
		log.Warn("audit mirror failed", "instrument", rec.Instrument, "err", err)
	}
}

// persistState snapshots positions and daily risk state so a restart can
// restore the ledger.
func (o *Orchestrator) persistState(log *slog.Logger) {
	positions := o.deps.Ledger.Positions()
	recs := make([]journal.PositionRecord, 0, len(positions))
	for _, p := range positions {
		recs = append(recs, journal.PositionRecord{
			Instrument: p.Instrument,
			Quantity:   p.Quantity,
			AvgEntry:   p.AvgEntry,
			OpenedAt:   p.OpenedAt,
		})
	}
	if err := o.deps.Journal.SavePositions(recs); err != nil {
		log.Error("position snapshot failed", "err", err)
	}

	d := o.deps.Ledger.Daily()
	if err := o.deps.Journal.SaveDaily(journal.DailyRecord{
		Day:           d.Day,
		StartingValue: d.StartingValue,
		Realized:      d.Realized,
		Unrealized:    d.Unrealized,
		Halted:        d.Halted,
	}); err != nil {
		log.Error("daily snapshot failed", "err", err)
	}
}

// PreMarket force-refreshes compliance verdicts for the whole universe and
// adopts venue truth, so the first cycle of the day starts from fresh state.
// A cycle already holding the slot wins; the refresh is skipped and the next
// cycle reconciles anyway.
func (o *Orchestrator) PreMarket(ctx context.Context) {
	log := o.log.With("job", "pre-market")
	if !o.busy.CompareAndSwap(false, true) {
		log.Warn("pre-market refresh skipped", "err", ErrCycleInProgress)
		return
	}
	defer o.busy.Store(false)
	log.Info("pre-market start")
	for _, inst := range o.deps.Universe {
		if _, err := o.deps.Compliance.Refresh(ctx, inst.ID); err != nil {
			log.Warn("verdict refresh failed", "instrument", inst.ID, "err", err)
		}
	}
	o.reconcile(ctx, log)
	o.deps.Ledger.MarkToMarket(o.markPrices())
	log.Info("pre-market done")
}

// CloseAll flattens every open position, one audited exit per instrument.
// Used by the slow profile's end-of-day job. It shares the single-cycle slot
// with RunCycle, waiting briefly for an in-flight cycle rather than racing
// its EXECUTE step.
func (o *Orchestrator) CloseAll(ctx context.Context) error {
	if err := o.acquire(ctx, o.flattenWait); err != nil {
		o.log.Warn("close-all could not take the cycle slot", "err", err)
		return err
	}
	defer o.busy.Store(false)
	defer o.setState(StateIdle)

	cycleID := ulid.Make().String()
	log := o.log.With("cycle", cycleID, "job", "close-all")
	log.Info("flattening open positions", "count", len(o.deps.Ledger.Positions()))

	for _, pos := range o.deps.Ledger.Positions() {
		if err := ctx.Err(); err != nil {
			return err
		}
		price, _ := o.latestPrice(pos.Instrument)
		rec := journal.AuditRecord{
			CycleID:       cycleID,
			Instrument:    pos.Instrument,
			Time:          o.now().UTC(),
			Action:        string(agent.Exit),
			Quantity:      pos.Quantity,
			Confidence:    1,
			Rationale:     "end of day flatten",
			VerdictStatus: string(o.deps.Compliance.Lookup(pos.Instrument).Status),
		}
		v := o.deps.Ledger.Evaluate(risk.Intent{
			Instrument: pos.Instrument,
			Action:     risk.Exit,
			Quantity:   pos.Quantity,
			Price:      price,
		})
		rec.RiskOutcome = string(v.Outcome)
		rec.RiskReason = v.Reason
		if v.Outcome == risk.Rejected {
			rec.ExecOutcome = journal.ExecNotAttempted
			o.record(rec, log)
			continue
		}
		o.execute(ctx, rec, risk.Exit, v.Quantity, log)
	}

	o.persistState(log)
	d := o.deps.Ledger.Daily()
	log.Info("day summary",
		"realized", d.Realized, "unrealized", d.Unrealized,
		"starting_value", d.StartingValue, "halted", d.Halted)
	return nil
}
