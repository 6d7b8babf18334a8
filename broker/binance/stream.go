package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyeddy/tradebot/market"
)

const (
	streamHost        = "wss://stream.binance.com:9443"
	streamTestnetHost = "wss://stream.testnet.binance.vision"

	readTimeout      = 60 * time.Second
	maxReconnectWait = 60 * time.Second
)

// Stream subscribes to 1m kline streams and appends *closed* candles into
// the window store as they arrive, independently of the cycle task. The
// in-progress candle's close is tracked as the latest price so the cycle's
// mark-to-market never lags a full bar.
type Stream struct {
	url    string
	store  *market.WindowStore
	log    *slog.Logger
	dialer *websocket.Dialer

	mu     sync.RWMutex
	latest map[string]float64
}

// NewStream builds a combined-stream client for the given symbols.
func NewStream(symbols []string, store *market.WindowStore, testnet bool, log *slog.Logger) *Stream {
	if log == nil {
		log = slog.Default()
	}
	host := streamHost
	if testnet {
		host = streamTestnetHost
	}
	parts := make([]string, 0, len(symbols))
	for _, s := range symbols {
		parts = append(parts, strings.ToLower(s)+"@kline_1m")
	}
	return &Stream{
		url:    fmt.Sprintf("%s/stream?streams=%s", host, strings.Join(parts, "/")),
		store:  store,
		log:    log.With("component", "stream"),
		dialer: websocket.DefaultDialer,
		latest: make(map[string]float64),
	}
}

// LatestPrice returns the most recent streamed price for an instrument,
// closed bar or not.
func (s *Stream) LatestPrice(instrument string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.latest[instrument]
	return p, ok
}

// reconnectBackoff doubles the wait on consecutive dial failures and drops
// back to one second once a connection has been established.
type reconnectBackoff struct {
	wait time.Duration
}

func (b *reconnectBackoff) next(connected bool) time.Duration {
	if connected || b.wait <= 0 {
		b.wait = time.Second
		return b.wait
	}
	b.wait *= 2
	if b.wait > maxReconnectWait {
		b.wait = maxReconnectWait
	}
	return b.wait
}

// Run connects and pumps messages until ctx is cancelled, reconnecting with
// exponential backoff on any failure. A session that ran after a successful
// dial resets the backoff.
func (s *Stream) Run(ctx context.Context) error {
	var backoff reconnectBackoff
	for {
		connected, err := s.pump(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := backoff.next(connected)
		if err != nil {
			s.log.Warn("stream disconnected, reconnecting", "err", err, "wait", wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// pump reports whether the dial succeeded along with the terminal error.
func (s *Stream) pump(ctx context.Context) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()
	s.log.Info("stream connected", "url", s.url)

	// Unblock the read loop when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return true, err
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		s.handleMessage(raw)
	}
}

// Combined-stream kline payload.
type streamEnvelope struct {
	Stream string     `json:"stream"`
	Data   klineEvent `json:"data"`
}

type klineEvent struct {
	Event  string `json:"e"`
	Symbol string `json:"s"`
	Kline  struct {
		OpenTime  int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Open      string `json:"o"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Close     string `json:"c"`
		Volume    string `json:"v"`
		Final     bool   `json:"x"`
	} `json:"k"`
}

func (s *Stream) handleMessage(raw []byte) {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Debug("unparseable stream message", "err", err)
		return
	}
	ev := env.Data
	if ev.Event != "kline" || ev.Symbol == "" {
		return
	}

	px := parseF(ev.Kline.Close)
	s.mu.Lock()
	s.latest[ev.Symbol] = px
	s.mu.Unlock()

	// Only closed candles enter the window; the in-progress candle would
	// violate the strictly-increasing timestamp contract on its next update.
	if !ev.Kline.Final {
		return
	}

	candle := market.Candle{
		Instrument: ev.Symbol,
		Open:       parseF(ev.Kline.Open),
		High:       parseF(ev.Kline.High),
		Low:        parseF(ev.Kline.Low),
		Close:      px,
		Volume:     parseF(ev.Kline.Volume),
		Time:       time.UnixMilli(ev.Kline.OpenTime).UTC(),
		Interval:   time.Minute,
	}
	if err := s.store.Append(ev.Symbol, candle); err != nil {
		if errors.Is(err, market.ErrOutOfOrderBar) {
			// Duplicate delivery after a reconnect; drop it.
			s.log.Debug("dropped out-of-order bar", "instrument", ev.Symbol, "time", candle.Time)
			return
		}
		s.log.Warn("failed to buffer bar", "instrument", ev.Symbol, "err", err)
	}
}
