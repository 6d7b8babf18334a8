package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebot/broker"
)

func TestBuyThenSellRoundTrip(t *testing.T) {
	e := NewEngine(10_000)
	e.SetPrice("BTCUSDT", 100)
	ctx := context.Background()

	res, err := e.SubmitOrder(ctx, broker.OrderRequest{Instrument: "BTCUSDT", Side: broker.Buy, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, broker.Filled, res.Status)
	assert.InDelta(t, 100.0, res.FillPrice, 1e-9)

	e.SetPrice("BTCUSDT", 110)
	res, err = e.SubmitOrder(ctx, broker.OrderRequest{Instrument: "BTCUSDT", Side: broker.Sell, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, broker.Filled, res.Status)

	acct, err := e.AccountSnapshot(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10_100.0, acct.PortfolioValue, 1e-9)
	assert.Empty(t, acct.Positions)
}

func TestPartialFill(t *testing.T) {
	e := NewEngine(10_000)
	e.SetPrice("BTCUSDT", 100)
	e.PartialNext(0.5)

	res, err := e.SubmitOrder(context.Background(),
		broker.OrderRequest{Instrument: "BTCUSDT", Side: broker.Buy, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, broker.PartialFilled, res.Status)
	assert.InDelta(t, 5.0, res.FillQuantity, 1e-9)
}

func TestRejectNext(t *testing.T) {
	e := NewEngine(10_000)
	e.SetPrice("BTCUSDT", 100)
	e.RejectNext("venue-closed")

	res, err := e.SubmitOrder(context.Background(),
		broker.OrderRequest{Instrument: "BTCUSDT", Side: broker.Buy, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, broker.OrderRejected, res.Status)
	assert.Equal(t, "venue-closed", res.Reason)
}

func TestNoPriceIsDataUnavailable(t *testing.T) {
	e := NewEngine(10_000)

	_, err := e.SubmitOrder(context.Background(),
		broker.OrderRequest{Instrument: "DOGEUSDT", Side: broker.Buy, Quantity: 1})
	assert.ErrorIs(t, err, broker.ErrDataUnavailable)
}

func TestAccountSnapshotValuesOpenPositions(t *testing.T) {
	e := NewEngine(10_000)
	e.SetPrice("BTCUSDT", 100)
	_, err := e.SubmitOrder(context.Background(),
		broker.OrderRequest{Instrument: "BTCUSDT", Side: broker.Buy, Quantity: 10})
	require.NoError(t, err)

	e.SetPrice("BTCUSDT", 120)
	acct, err := e.AccountSnapshot(context.Background())
	require.NoError(t, err)
	// 9000 cash + 10 * 120.
	assert.InDelta(t, 10_200.0, acct.PortfolioValue, 1e-9)
	require.Len(t, acct.Positions, 1)
	assert.InDelta(t, 100.0, acct.Positions[0].AvgEntry, 1e-9)
}
