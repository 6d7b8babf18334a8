// Package sim is a deterministic in-memory venue used for paper runs and
// tests. Orders fill immediately at the last set price.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustyeddy/tradebot/broker"
)

type position struct {
	quantity float64
	avgEntry float64
}

// Engine implements broker.Venue against an internal book of prices and
// positions.
type Engine struct {
	mu        sync.Mutex
	cash      float64
	prices    map[string]float64
	positions map[string]*position

	// Test hooks: when set, the next order gets this outcome.
	nextReject  string
	nextPartial float64
}

func NewEngine(startingCash float64) *Engine {
	return &Engine{
		cash:      startingCash,
		prices:    make(map[string]float64),
		positions: make(map[string]*position),
	}
}

// SetPrice sets the fill/valuation price for an instrument.
func (e *Engine) SetPrice(instrument string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[instrument] = price
}

// RejectNext makes the next submitted order come back rejected.
func (e *Engine) RejectNext(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextReject = reason
}

// PartialNext makes the next submitted order fill only the given fraction.
func (e *Engine) PartialNext(fraction float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextPartial = fraction
}

func (e *Engine) SubmitOrder(_ context.Context, req broker.OrderRequest) (broker.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.nextReject != "" {
		reason := e.nextReject
		e.nextReject = ""
		return broker.ExecutionResult{Status: broker.OrderRejected, Reason: reason}, nil
	}

	price, ok := e.prices[req.Instrument]
	if !ok || price <= 0 {
		return broker.ExecutionResult{Status: broker.OrderRejected, Reason: "no-price"},
			fmt.Errorf("%w: no price for %s", broker.ErrDataUnavailable, req.Instrument)
	}

	qty := req.Quantity
	status := broker.Filled
	if e.nextPartial > 0 && e.nextPartial < 1 {
		qty = req.Quantity * e.nextPartial
		status = broker.PartialFilled
		e.nextPartial = 0
	}

	switch req.Side {
	case broker.Buy:
		e.cash -= qty * price
		pos := e.positions[req.Instrument]
		if pos == nil {
			e.positions[req.Instrument] = &position{quantity: qty, avgEntry: price}
		} else {
			total := pos.quantity + qty
			pos.avgEntry = (pos.avgEntry*pos.quantity + price*qty) / total
			pos.quantity = total
		}
	case broker.Sell:
		pos := e.positions[req.Instrument]
		if pos == nil {
			return broker.ExecutionResult{Status: broker.OrderRejected, Reason: "no-position"}, nil
		}
		if qty > pos.quantity {
			qty = pos.quantity
		}
		e.cash += qty * price
		pos.quantity -= qty
		if pos.quantity <= 1e-9 {
			delete(e.positions, req.Instrument)
		}
	}

	return broker.ExecutionResult{
		Status:       status,
		FillPrice:    price,
		FillQuantity: qty,
	}, nil
}

func (e *Engine) AccountSnapshot(_ context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	value := e.cash
	positions := make([]broker.AccountPosition, 0, len(e.positions))
	for id, pos := range e.positions {
		value += pos.quantity * e.prices[id]
		positions = append(positions, broker.AccountPosition{
			Instrument: id,
			Quantity:   pos.quantity,
			AvgEntry:   pos.avgEntry,
		})
	}

	return broker.Account{
		PortfolioValue: value,
		Balances:       map[string]float64{"USD": e.cash},
		Positions:      positions,
	}, nil
}
