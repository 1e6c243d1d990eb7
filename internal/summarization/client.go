package summarization

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

// Prompt is prepended to every transcript chunk sent for summarization
const Prompt = "Summarize the following part of a meeting transcript. " +
	"Keep the key points, decisions and action items. Answer in the language of the transcript.\n\n"

const (
	defaultTimeout     = 120 * time.Second
	defaultMaxElapsed  = 2 * time.Minute
	chatCompletionPath = "/v1/chat/completions"
)

// Config describes an OpenAI-compatible chat completions endpoint
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	// MaxElapsed caps the total time spent retrying one chunk
	MaxElapsed time.Duration
}

// Client summarizes transcript chunks through a chat completions API
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
	log        logrus.FieldLogger
}

// NewClient creates a summarization client
func NewClient(cfg Config, log logrus.FieldLogger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = defaultMaxElapsed
	}
	maxElapsed := cfg.MaxElapsed

	return &Client{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + chatCompletionPath,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = maxElapsed
			return b
		},
		log: log.WithField("module", "summarization"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Summarize returns the model's summary of text. Server errors and transport
// failures are retried with exponential backoff; client errors are not.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty text", types.ErrSummarization)
	}

	data, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: Prompt + text}},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %w", types.ErrSummarization, err)
	}

	var summary string
	attempt := 0
	op := func() error {
		attempt++
		out, err := c.call(ctx, data)
		if err != nil {
			c.log.WithError(err).WithField("attempt", attempt).Warn("llm request failed")
			return err
		}
		summary = out
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrSummarization, err)
	}

	c.log.WithFields(logrus.Fields{
		"input_len":  len(text),
		"output_len": len(summary),
		"attempts":   attempt,
	}).Debug("chunk summarized")
	return summary, nil
}

func (c *Client) call(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("llm server error %d: %s", resp.StatusCode, snippet(body))
	case resp.StatusCode >= 400:
		return "", backoff.Permanent(fmt.Errorf("llm rejected request %d: %s", resp.StatusCode, snippet(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("json decode error: %v body=%s", err, snippet(body))
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", backoff.Permanent(errors.New(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm response has no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("llm returned an empty summary")
	}
	return content, nil
}

func snippet(b []byte) string {
	const limit = 300
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
