package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecisionPlainJSON(t *testing.T) {
	raw := []byte(`{"action":"enter-long","quantity":1.5,"confidence":0.8,"rationale":"momentum"}`)

	d, err := ParseDecision(raw, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", d.Instrument)
	assert.Equal(t, EnterLong, d.Action)
	assert.InDelta(t, 1.5, d.Quantity, 1e-9)
	assert.InDelta(t, 0.8, d.Confidence, 1e-9)
}

func TestParseDecisionStripsFences(t *testing.T) {
	raw := []byte("```json\n{\"action\":\"hold\",\"confidence\":0.5,\"rationale\":\"flat\"}\n```")

	d, err := ParseDecision(raw, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, Hold, d.Action)
}

func TestParseDecisionRejectsUnknownAction(t *testing.T) {
	_, err := ParseDecision([]byte(`{"action":"short","confidence":0.5}`), "AAPL")
	require.ErrorIs(t, err, ErrMalformedDecision)
}

func TestParseDecisionRejectsBadConfidence(t *testing.T) {
	_, err := ParseDecision([]byte(`{"action":"hold","confidence":1.5}`), "AAPL")
	require.ErrorIs(t, err, ErrMalformedDecision)
}

func TestParseDecisionRejectsUnsizedEntry(t *testing.T) {
	_, err := ParseDecision([]byte(`{"action":"enter-long","confidence":0.9}`), "AAPL")
	require.ErrorIs(t, err, ErrMalformedDecision)
}

func TestParseDecisionRejectsWrongInstrument(t *testing.T) {
	raw := []byte(`{"instrument":"MSFT","action":"hold","confidence":0.5}`)
	_, err := ParseDecision(raw, "AAPL")
	require.ErrorIs(t, err, ErrMalformedDecision)
}

func TestParseDecisionRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not json", "```\n```"} {
		_, err := ParseDecision([]byte(raw), "AAPL")
		assert.ErrorIs(t, err, ErrMalformedDecision, "raw=%q", raw)
	}
}

func TestParseDecisionNotionalEntry(t *testing.T) {
	raw := []byte(`{"action":"enter-long","notional":5000,"confidence":0.7,"rationale":"breakout"}`)

	d, err := ParseDecision(raw, "ETHUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 5000.0, d.Notional, 1e-9)
	assert.Zero(t, d.Quantity)
}
