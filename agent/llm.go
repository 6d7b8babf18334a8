package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// LLMConfig configures the chat-completions provider. BaseURL points at any
// OpenAI-compatible endpoint (OpenAI itself, a local Ollama, a proxy).
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// LLMProvider calls an OpenAI-compatible chat-completions endpoint and
// parses the reply into a Decision.
type LLMProvider struct {
	cfg    LLMConfig
	client *http.Client
	log    *slog.Logger
}

func NewLLMProvider(cfg LLMConfig, log *slog.Logger) *LLMProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	if log == nil {
		log = slog.Default()
	}
	return &LLMProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.With("component", "llm", "model", cfg.Model),
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Decide sends the rendered context and returns the validated decision.
// Transport failures and over-deadline calls surface as errors; a reply that
// arrives but fails validation surfaces as ErrMalformedDecision.
func (p *LLMProvider) Decide(ctx context.Context, dc Context) (Decision, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(dc)},
		},
		Temperature:    p.cfg.Temperature,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return Decision{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Decision{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Decision{}, fmt.Errorf("chat completion read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("chat completion: status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	if cr.Error != nil {
		return Decision{}, fmt.Errorf("chat completion: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return Decision{}, fmt.Errorf("%w: no choices", ErrMalformedDecision)
	}

	d, err := ParseDecision([]byte(cr.Choices[0].Message.Content), dc.Instrument)
	if err != nil {
		return Decision{}, err
	}
	p.log.Debug("decision received",
		"instrument", dc.Instrument,
		"action", d.Action,
		"confidence", d.Confidence,
		"elapsed", time.Since(start))
	return d, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
