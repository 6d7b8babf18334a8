// Package broker defines the external market-data and execution-venue ports
// the cycle engine trades through, plus the adapters' shared types.
package broker

import (
	"context"
	"errors"

	"github.com/rustyeddy/tradebot/market"
)

// ErrDataUnavailable signals a transient market-data failure; the affected
// instrument is skipped for the cycle and retried next cycle.
var ErrDataUnavailable = errors.New("market data unavailable")

// MarketData supplies price bars, either by poll (slow profile) or as the
// REST fallback behind a streaming buffer (fast profile).
type MarketData interface {
	// LatestBar returns the most recent closed bar for the instrument.
	LatestBar(ctx context.Context, instrument string) (market.Candle, error)

	// History returns up to limit most recent closed bars, oldest first.
	History(ctx context.Context, instrument string, limit int) ([]market.Candle, error)
}

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderRequest is a market order submitted to the venue.
type OrderRequest struct {
	Instrument string
	Side       Side
	Quantity   float64
}

// ExecStatus classifies what the venue did with an order.
type ExecStatus string

const (
	Filled        ExecStatus = "filled"
	PartialFilled ExecStatus = "partial"
	OrderRejected ExecStatus = "rejected"
)

// ExecutionResult is the venue's answer to an order submission.
type ExecutionResult struct {
	Status       ExecStatus
	FillPrice    float64
	FillQuantity float64
	Reason       string // set when rejected
}

// AccountPosition is one open position as the venue reports it.
type AccountPosition struct {
	Instrument string
	Quantity   float64
	AvgEntry   float64
}

// Account is the venue's snapshot of the account, fetched at cycle start to
// reconcile the ledger. Venue truth wins on mismatch.
type Account struct {
	PortfolioValue float64
	Balances       map[string]float64
	Positions      []AccountPosition
}

// Venue routes orders and reports account truth.
type Venue interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (ExecutionResult, error)
	AccountSnapshot(ctx context.Context) (Account, error)
}
