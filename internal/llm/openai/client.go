package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/funeral-audit/internal/common"
	"github.com/joseph-ayodele/funeral-audit/internal/llm"
)

var _ llm.TextGenerator = (*Client)(nil)

// Text sends prompt as a single user message and returns the trimmed reply.
func (c *Client) Text(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, false)
}

// JSON asks for a json_object reply and decodes it. Unparsable replies come
// back as the raw-text fallback object, not as an error.
func (c *Client) JSON(ctx context.Context, prompt string) (map[string]any, error) {
	text, err := c.complete(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	obj, ok := llm.DecodeObject(text)
	if !ok {
		c.logger.Warn("llm.json.fallback", "provider", c.Name(), "reply_len", len(text))
	}
	return obj, nil
}

func (c *Client) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.text.request",
		"req_id", rid,
		"provider", c.Name(),
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
		"json", jsonMode,
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	if jsonMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	callCtx, cancel := common.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := llm.SendJSON(callCtx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.text.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", llm.CallError(c.Name(), err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.text.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return "", llm.CallError(c.Name(), fmt.Errorf("decode openai response: %w", err))
	}
	if len(cc.Choices) == 0 {
		return "", llm.CallError(c.Name(), fmt.Errorf("no choices in openai response"))
	}
	// An empty reply is a valid answer; callers decide what it means.
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	c.logger.Info("llm.text.ok",
		"req_id", rid,
		"provider", c.Name(),
		"reply_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}
