package agent

import (
	"fmt"
	"sort"
	"strings"
)

const systemPrompt = `You are a disciplined trading analyst. For the single
instrument described below, decide one of: enter-long, exit, hold.

Rules you must follow:
1. Only enter-long an instrument whose compliance status is approved.
2. Never size a position above the stated per-position limit.
3. When the indicator data is marked degraded, prefer hold.
4. Exits close an existing position; never exit what is not held.
5. If nothing is compelling, hold. Holding costs nothing.

Respond with ONLY a JSON object matching this schema, no prose:
{
  "action": "enter-long" | "exit" | "hold",
  "quantity": <number, 0 when not entering>,
  "notional": <number, optional alternative to quantity>,
  "confidence": <number 0-1>,
  "rationale": "<one or two sentences>"
}`

// buildPrompt renders one instrument's cycle context. The layout is stable
// and the indicator keys are sorted so identical inputs produce identical
// prompts.
func buildPrompt(dc Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== INSTRUMENT ===\n%s\n\n", dc.Instrument)

	fmt.Fprintf(&b, "=== COMPLIANCE ===\nstatus: %s", dc.Verdict.Status)
	if len(dc.Verdict.Reasons) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(dc.Verdict.Reasons, "; "))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "=== PORTFOLIO ===\nvalue: %.2f\ntoday pnl: %+.2f\nmax position: %.0f%% of portfolio\n\n",
		dc.PortfolioValue, dc.DailyPnL, dc.MaxPositionPct*100)

	b.WriteString("=== POSITION ===\n")
	if dc.Position == nil {
		b.WriteString("none\n\n")
	} else {
		fmt.Fprintf(&b, "%.8g @ %.2f (opened %s)\n\n",
			dc.Position.Quantity, dc.Position.AvgEntry,
			dc.Position.OpenedAt.Format("2006-01-02 15:04"))
	}

	b.WriteString("=== INDICATORS ===\n")
	if dc.Degraded {
		b.WriteString("WARNING: degraded, some indicators lack enough history\n")
	}
	keys := make([]string, 0, len(dc.Snapshot.Values))
	for k := range dc.Snapshot.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %.6g\n", k, dc.Snapshot.Values[k])
	}
	for _, k := range dc.Snapshot.Missing {
		fmt.Fprintf(&b, "%s: insufficient data\n", k)
	}
	fmt.Fprintf(&b, "bars: %d\n\n", dc.Snapshot.BarCount)

	b.WriteString("Decide now for this instrument.")
	return b.String()
}
