package analyzer

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
	"github.com/damoang/angple-moderation/internal/common"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Config analyzer client settings
type Config struct {
	ProxyURL   string // OpenAI 호환 프록시 base URL (e.g. "http://127.0.0.1:8317/v1")
	ProxyKey   string
	Model      string
	Timeout    time.Duration
	MaxRetries uint64

	BreakerMaxRequests         uint32
	BreakerInterval            time.Duration
	BreakerTimeout             time.Duration
	BreakerConsecutiveFailures uint32

	// RetryInitialInterval first backoff delay; 0 uses 200ms
	RetryInitialInterval time.Duration
}

// Client calls an OpenAI-format chat completions endpoint to score and
// explain content. Every failure wraps common.ErrAnalyzerUnavailable.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     zerolog.Logger
}

// NewClient creates a new analyzer Client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 200 * time.Millisecond
	}
	if cfg.BreakerConsecutiveFailures == 0 {
		cfg.BreakerConsecutiveFailures = 5
	}

	settings := gobreaker.Settings{
		Name:        "content-analyzer",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Enabled reports whether a proxy URL is configured
func (c *Client) Enabled() bool {
	return c.cfg.ProxyURL != ""
}

// complete sends one chat completion and returns the assistant text
func (c *Client) complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("analyzer not configured: %w", common.ErrAnalyzerUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var text string
		operation := func() error {
			var callErr error
			text, callErr = c.callProvider(ctx, systemPrompt, userMessage)
			return callErr
		}

		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = c.cfg.RetryInitialInterval
		policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.cfg.MaxRetries), ctx)

		if err := backoff.Retry(operation, policy); err != nil {
			return nil, err
		}
		return text, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrAnalyzerUnavailable, err)
	}
	return result.(string), nil
}

// callProvider OpenAI 포맷 호출. 4xx 응답은 재시도하지 않음
func (c *Client) callProvider(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	reqBody := map[string]interface{}{
		"model":       c.cfg.Model,
		"max_tokens":  512,
		"temperature": 0,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userMessage},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", backoff.Permanent(err)
	}

	url := strings.TrimRight(c.cfg.ProxyURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ProxyKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ProxyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("analyzer returned %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", backoff.Permanent(statusErr)
		}
		return "", statusErr
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode completion: %w", err))
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", backoff.Permanent(errors.New("completion has no content"))
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// extractJSON 코드블록에서 JSON 추출
func extractJSON(rawText string) string {
	if idx := strings.Index(rawText, "```"); idx >= 0 {
		start := strings.Index(rawText[idx:], "\n")
		if start >= 0 {
			end := strings.Index(rawText[idx+start+1:], "```")
			if end >= 0 {
				return strings.TrimSpace(rawText[idx+start+1 : idx+start+1+end])
			}
		}
	}
	return strings.TrimSpace(rawText)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
