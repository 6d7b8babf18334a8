package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseDecision validates a raw provider response against the decision
// schema. Any defect returns ErrMalformedDecision; the caller downgrades
// the decision to a hold and records why.
func ParseDecision(raw []byte, instrument string) (Decision, error) {
	cleaned := stripFences(string(raw))
	if cleaned == "" {
		return Decision{}, fmt.Errorf("%w: empty response", ErrMalformedDecision)
	}

	var d Decision
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	if d.Instrument == "" {
		d.Instrument = instrument
	}
	if d.Instrument != instrument {
		return Decision{}, fmt.Errorf("%w: decision for %q, wanted %q",
			ErrMalformedDecision, d.Instrument, instrument)
	}

	switch d.Action {
	case EnterLong, Exit, Hold:
	default:
		return Decision{}, fmt.Errorf("%w: unknown action %q", ErrMalformedDecision, d.Action)
	}
	if d.Quantity < 0 || d.Notional < 0 {
		return Decision{}, fmt.Errorf("%w: negative size", ErrMalformedDecision)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return Decision{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformedDecision, d.Confidence)
	}
	if d.Action == EnterLong && d.Quantity == 0 && d.Notional == 0 {
		return Decision{}, fmt.Errorf("%w: enter-long without a size", ErrMalformedDecision)
	}
	return d, nil
}

// stripFences removes markdown code fences that chat models like to wrap
// JSON in, with or without a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
