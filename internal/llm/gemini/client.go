// Package gemini is a TextGenerator backed by the Gemini generateContent API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/llm"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string // if empty, falls back to env GEMINI_API_KEY
	BaseURL     string // default https://generativelanguage.googleapis.com/v1beta
	Model       string // default gemini-1.5-flash
	Temperature float32
	Timeout     time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

var _ llm.TextGenerator = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{}, logger: logger}
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Text(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, false)
}

func (c *Client) JSON(ctx context.Context, prompt string) (map[string]any, error) {
	text, err := c.generate(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	obj, ok := llm.DecodeObject(text)
	if !ok {
		c.logger.Warn("llm.json.fallback", "provider", c.Name(), "reply_len", len(text))
	}
	return obj, nil
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.text.request",
		"req_id", rid,
		"provider", c.Name(),
		"model", c.cfg.Model,
		"prompt_len", len(prompt),
		"json", jsonMode,
	)

	genCfg := map[string]any{"temperature": c.cfg.Temperature}
	if jsonMode {
		genCfg["responseMimeType"] = "application/json"
	}
	body := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]any{{"text": prompt}}},
		},
		"generationConfig": genCfg,
	}

	callCtx, cancel := common.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	raw, err := llm.SendJSON(callCtx, c.http, endpoint, body, map[string]string{"x-goog-api-key": c.cfg.APIKey}, c.logger)
	if err != nil {
		c.logger.Error("llm.text.http_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", llm.CallError(c.Name(), err)
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", llm.CallError(c.Name(), fmt.Errorf("decode gemini response: %w", err))
	}
	if len(resp.Candidates) == 0 {
		return "", llm.CallError(c.Name(), fmt.Errorf("no candidates in gemini response"))
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		c.logger.Warn("llm.text.empty", "req_id", rid, "finish_reason", resp.Candidates[0].FinishReason)
	}

	c.logger.Info("llm.text.ok",
		"req_id", rid,
		"provider", c.Name(),
		"reply_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
