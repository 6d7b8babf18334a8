package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Cache holds the latest verdict per instrument. Lookup never calls the
// provider; Refresh does, explicitly, and a provider failure leaves any
// cached verdict in place until its TTL runs out.
type Cache struct {
	mu       sync.RWMutex
	verdicts map[string]Verdict

	screener Screener
	ttl      time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func NewCache(screener Screener, ttl time.Duration, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		verdicts: make(map[string]Verdict),
		screener: screener,
		ttl:      ttl,
		now:      time.Now,
		log:      log.With("component", "compliance"),
	}
}

// Lookup returns the cached verdict for an instrument. Absent or expired
// entries come back as Unknown.
func (c *Cache) Lookup(instrument string) Verdict {
	c.mu.RLock()
	v, ok := c.verdicts[instrument]
	c.mu.RUnlock()

	if !ok || !v.Fresh(c.now()) {
		return Verdict{Instrument: instrument, Status: Unknown}
	}
	return v
}

// Store overwrites any prior verdict and stamps the expiry from the
// configured TTL.
func (c *Cache) Store(v Verdict) {
	if v.ComputedAt.IsZero() {
		v.ComputedAt = c.now()
	}
	v.ExpiresAt = v.ComputedAt.Add(c.ttl)

	c.mu.Lock()
	c.verdicts[v.Instrument] = v
	c.mu.Unlock()
}

// Refresh screens the instrument and stores the result. On provider failure
// the previous verdict (if any) is retained and the error returned.
func (c *Cache) Refresh(ctx context.Context, instrument string) (Verdict, error) {
	v, err := c.screener.Screen(ctx, instrument)
	if err != nil {
		c.log.Warn("screen failed, keeping cached verdict",
			"instrument", instrument, "err", err)
		return c.Lookup(instrument), fmt.Errorf("refresh %s: %w", instrument, err)
	}
	v.Instrument = instrument
	c.Store(v)
	return c.Lookup(instrument), nil
}

// Ensure refreshes only instruments whose cached verdict is stale. Used by
// the pre-market routine and lazily by the cycle's SCREEN step.
func (c *Cache) Ensure(ctx context.Context, instruments []string) {
	for _, id := range instruments {
		if c.Lookup(id).Status != Unknown {
			continue
		}
		if _, err := c.Refresh(ctx, id); err != nil {
			// Default-deny: the instrument simply stays Unknown this cycle.
			continue
		}
	}
}
