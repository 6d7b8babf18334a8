package market

import (
	"fmt"
	"sync"
)

// ErrOutOfOrderBar is returned when an appended bar's timestamp is not
// strictly greater than the last stored bar for that instrument.
var ErrOutOfOrderBar = fmt.Errorf("out-of-order bar")

// DefaultWindowCapacity covers the longest indicator lookback (200-period
// average) with headroom.
const DefaultWindowCapacity = 256

// WindowStore keeps a fixed-capacity, time-ordered buffer of candles per
// instrument. Appends and reads for the same instrument are serialized;
// different instruments share no lock, so a streaming producer never blocks
// a cycle reading another instrument's window.
type WindowStore struct {
	mu       sync.RWMutex // guards the buffers map only
	capacity int
	buffers  map[string]*ring
}

type ring struct {
	mu      sync.Mutex
	candles []Candle // oldest first, len <= capacity
}

func NewWindowStore(capacity int) *WindowStore {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &WindowStore{
		capacity: capacity,
		buffers:  make(map[string]*ring),
	}
}

func (s *WindowStore) buffer(instrument string) *ring {
	s.mu.RLock()
	r, ok := s.buffers[instrument]
	s.mu.RUnlock()
	if ok {
		return r
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok = s.buffers[instrument]; ok {
		return r
	}
	r = &ring{candles: make([]Candle, 0, s.capacity)}
	s.buffers[instrument] = r
	return r
}

// Append stores a bar, evicting the oldest when capacity is exceeded.
// Timestamps must be strictly increasing per instrument.
func (s *WindowStore) Append(instrument string, c Candle) error {
	r := s.buffer(instrument)
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.candles); n > 0 && !c.Time.After(r.candles[n-1].Time) {
		return fmt.Errorf("%w: %s at %s, last stored %s",
			ErrOutOfOrderBar, instrument, c.Time, r.candles[n-1].Time)
	}

	r.candles = append(r.candles, c)
	if len(r.candles) > s.capacity {
		copy(r.candles, r.candles[1:])
		r.candles = r.candles[:s.capacity]
	}
	return nil
}

// Window returns a copy of the most recent lookback bars, oldest first, or
// fewer if that many are not available. It never pads or fabricates data.
func (s *WindowStore) Window(instrument string, lookback int) []Candle {
	r := s.buffer(instrument)
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.candles)
	if lookback > n {
		lookback = n
	}
	out := make([]Candle, lookback)
	copy(out, r.candles[n-lookback:])
	return out
}

// Last returns the most recent bar, if any.
func (s *WindowStore) Last(instrument string) (Candle, bool) {
	r := s.buffer(instrument)
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.candles) == 0 {
		return Candle{}, false
	}
	return r.candles[len(r.candles)-1], true
}

// Len reports how many bars are buffered for an instrument.
func (s *WindowStore) Len(instrument string) int {
	r := s.buffer(instrument)
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.candles)
}
