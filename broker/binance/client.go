// Package binance adapts the Binance spot API to the broker ports: REST for
// klines, account state and market orders, plus a websocket kline stream
// feeding the rolling window store.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sdk "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/market"
)

const barInterval = "1m"

// quoteAsset is the stable quote everything is valued in.
const quoteAsset = "USDT"

// Client implements broker.MarketData and broker.Venue against Binance spot.
type Client struct {
	api     *sdk.Client
	limiter *rate.Limiter
	steps   map[string]decimal.Decimal // LOT_SIZE step per symbol
	step    decimal.Decimal            // default step
}

// NewClient builds a Binance client. testnet routes all calls to the spot
// testnet so a dry-run can never touch live funds.
func NewClient(apiKey, secretKey string, testnet bool) *Client {
	sdk.UseTestnet = testnet
	return &Client{
		api:     sdk.NewClient(apiKey, secretKey),
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		steps:   make(map[string]decimal.Decimal),
		step:    decimal.New(1, -5), // 0.00001
	}
}

// SetStepSize overrides the quantity step for a symbol (LOT_SIZE filter).
func (c *Client) SetStepSize(symbol string, step float64) {
	c.steps[symbol] = decimal.NewFromFloat(step)
}

func (c *Client) stepFor(symbol string) decimal.Decimal {
	if s, ok := c.steps[symbol]; ok {
		return s
	}
	return c.step
}

// LatestBar returns the most recent *closed* 1m bar. Binance reports the
// in-progress candle as the last kline, so two are fetched and the earlier
// one returned.
func (c *Client) LatestBar(ctx context.Context, instrument string) (market.Candle, error) {
	bars, err := c.History(ctx, instrument, 1)
	if err != nil {
		return market.Candle{}, err
	}
	if len(bars) == 0 {
		return market.Candle{}, fmt.Errorf("%w: no closed bars for %s", broker.ErrDataUnavailable, instrument)
	}
	return bars[len(bars)-1], nil
}

// History returns up to limit closed 1m bars, oldest first.
func (c *Client) History(ctx context.Context, instrument string, limit int) ([]market.Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	klines, err := c.api.NewKlinesService().
		Symbol(instrument).
		Interval(barInterval).
		Limit(limit + 1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: klines %s: %v", broker.ErrDataUnavailable, instrument, err)
	}
	if len(klines) > 0 {
		// Drop the in-progress candle.
		klines = klines[:len(klines)-1]
	}

	out := make([]market.Candle, 0, len(klines))
	for _, k := range klines {
		out = append(out, market.Candle{
			Instrument: instrument,
			Open:       parseF(k.Open),
			High:       parseF(k.High),
			Low:        parseF(k.Low),
			Close:      parseF(k.Close),
			Volume:     parseF(k.Volume),
			Time:       time.UnixMilli(k.OpenTime).UTC(),
			Interval:   time.Minute,
		})
	}
	return out, nil
}

// SubmitOrder places a market order, rounding the quantity down to the
// symbol's step size. A request rounding to zero is rejected locally.
func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.ExecutionResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return broker.ExecutionResult{}, err
	}

	qty := roundStep(req.Quantity, c.stepFor(req.Instrument))
	if qty.IsZero() {
		return broker.ExecutionResult{Status: broker.OrderRejected, Reason: "quantity-below-step"}, nil
	}

	side := sdk.SideTypeBuy
	if req.Side == broker.Sell {
		side = sdk.SideTypeSell
	}

	order, err := c.api.NewCreateOrderService().
		Symbol(req.Instrument).
		Side(side).
		Type(sdk.OrderTypeMarket).
		Quantity(qty.String()).
		Do(ctx)
	if err != nil {
		return broker.ExecutionResult{}, fmt.Errorf("submit %s %s: %w", req.Side, req.Instrument, err)
	}

	result := broker.ExecutionResult{
		FillQuantity: parseF(order.ExecutedQuantity),
		FillPrice:    fillPrice(order),
	}
	switch order.Status {
	case sdk.OrderStatusTypeFilled:
		result.Status = broker.Filled
	case sdk.OrderStatusTypePartiallyFilled:
		result.Status = broker.PartialFilled
	default:
		result.Status = broker.OrderRejected
		result.Reason = string(order.Status)
	}
	return result, nil
}

// AccountSnapshot values every balance in the quote asset and reports
// non-quote balances as open positions. Spot balances carry no entry price;
// the ledger keeps its own average entry for quantities that match.
func (c *Client) AccountSnapshot(ctx context.Context) (broker.Account, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return broker.Account{}, err
	}
	acct, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return broker.Account{}, fmt.Errorf("account snapshot: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return broker.Account{}, err
	}
	tickers, err := c.api.NewListPricesService().Do(ctx)
	if err != nil {
		return broker.Account{}, fmt.Errorf("account snapshot prices: %w", err)
	}
	prices := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		prices[t.Symbol] = parseF(t.Price)
	}

	out := broker.Account{Balances: make(map[string]float64)}
	for _, b := range acct.Balances {
		total := parseF(b.Free) + parseF(b.Locked)
		if total == 0 {
			continue
		}
		out.Balances[b.Asset] = total

		if b.Asset == quoteAsset {
			out.PortfolioValue += total
			continue
		}
		symbol := b.Asset + quoteAsset
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		out.PortfolioValue += total * price
		out.Positions = append(out.Positions, broker.AccountPosition{
			Instrument: symbol,
			Quantity:   total,
		})
	}
	return out, nil
}

func fillPrice(order *sdk.CreateOrderResponse) float64 {
	// Volume-weighted across partial fills.
	var pv, v float64
	for _, f := range order.Fills {
		p := parseF(f.Price)
		q := parseF(f.Quantity)
		pv += p * q
		v += q
	}
	if v == 0 {
		return parseF(order.Price)
	}
	return pv / v
}

func roundStep(qty float64, step decimal.Decimal) decimal.Decimal {
	d := decimal.NewFromFloat(qty)
	if step.IsZero() {
		return d
	}
	return d.Div(step).Floor().Mul(step)
}

func parseF(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
