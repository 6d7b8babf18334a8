package binance

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebot/market"
)

func klinePayload(symbol string, openTimeMs int64, close string, final bool) []byte {
	return fmt.Appendf(nil,
		`{"stream":"%s@kline_1m","data":{"e":"kline","s":"%s","k":{"t":%d,"T":%d,"o":"100.0","h":"101.0","l":"99.0","c":"%s","v":"12.5","x":%t}}}`,
		symbol, symbol, openTimeMs, openTimeMs+59_999, close, final)
}

func TestHandleMessageAppendsClosedCandle(t *testing.T) {
	store := market.NewWindowStore(16)
	s := NewStream([]string{"BTCUSDT"}, store, false, nil)

	s.handleMessage(klinePayload("BTCUSDT", 60_000, "100.5", true))

	require.Equal(t, 1, store.Len("BTCUSDT"))
	last, ok := store.Last("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 100.5, last.Close, 1e-9)
	assert.InDelta(t, 12.5, last.Volume, 1e-9)
}

func TestHandleMessageTracksInProgressPrice(t *testing.T) {
	store := market.NewWindowStore(16)
	s := NewStream([]string{"BTCUSDT"}, store, false, nil)

	s.handleMessage(klinePayload("BTCUSDT", 60_000, "100.7", false))

	// Not appended to the window...
	assert.Equal(t, 0, store.Len("BTCUSDT"))
	// ...but visible as the latest price for mark-to-market.
	price, ok := s.LatestPrice("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 100.7, price, 1e-9)
}

func TestHandleMessageDropsDuplicateAfterReconnect(t *testing.T) {
	store := market.NewWindowStore(16)
	s := NewStream([]string{"BTCUSDT"}, store, false, nil)

	s.handleMessage(klinePayload("BTCUSDT", 60_000, "100.5", true))
	s.handleMessage(klinePayload("BTCUSDT", 60_000, "100.5", true))

	assert.Equal(t, 1, store.Len("BTCUSDT"))
}

func TestHandleMessageIgnoresGarbage(t *testing.T) {
	store := market.NewWindowStore(16)
	s := NewStream([]string{"BTCUSDT"}, store, false, nil)

	s.handleMessage([]byte("not json"))
	s.handleMessage([]byte(`{"stream":"x","data":{"e":"trade"}}`))

	assert.Equal(t, 0, store.Len("BTCUSDT"))
}

func TestReconnectBackoffDoublesAndCaps(t *testing.T) {
	var b reconnectBackoff

	assert.Equal(t, time.Second, b.next(false))
	assert.Equal(t, 2*time.Second, b.next(false))
	assert.Equal(t, 4*time.Second, b.next(false))
	for i := 0; i < 10; i++ {
		b.next(false)
	}
	assert.Equal(t, maxReconnectWait, b.next(false))
}

func TestReconnectBackoffResetsAfterConnection(t *testing.T) {
	var b reconnectBackoff
	for i := 0; i < 8; i++ {
		b.next(false)
	}
	require.Equal(t, maxReconnectWait, b.next(false))

	// A session that got connected drops straight back to the floor, so a
	// stream that ran healthy for hours does not inherit the long wait.
	assert.Equal(t, time.Second, b.next(true))
	assert.Equal(t, 2*time.Second, b.next(false))
}

func TestStreamURL(t *testing.T) {
	s := NewStream([]string{"BTCUSDT", "ETHUSDT"}, market.NewWindowStore(4), false, nil)
	assert.Equal(t,
		"wss://stream.binance.com:9443/stream?streams=btcusdt@kline_1m/ethusdt@kline_1m",
		s.url)
}

func TestRoundStep(t *testing.T) {
	c := NewClient("", "", true)
	c.SetStepSize("BTCUSDT", 0.001)

	q := roundStep(0.12345, c.stepFor("BTCUSDT"))
	assert.Equal(t, "0.123", q.String())

	q = roundStep(0.0004, c.stepFor("BTCUSDT"))
	assert.True(t, q.IsZero())
}
