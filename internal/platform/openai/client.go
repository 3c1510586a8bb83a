package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/ctxutil"
	"github.com/yungbote/autopilot-backend/internal/platform/httpx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/retry"
)

// Base URLs of OpenAI-compatible vendors. Paths below them start at /v1.
const (
	OpenAIBaseURL   = "https://api.openai.com"
	TogetherBaseURL = "https://api.together.xyz"
	GroqBaseURL     = "https://api.groq.com/openai"
)

// Config describes one OpenAI-compatible endpoint.
type Config struct {
	// Vendor only labels logs.
	Vendor  string
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// MaxRetries counts retries after the first attempt for retryable
	// statuses. Zero sends every request exactly once.
	MaxRetries int
}

type client struct {
	log        *logger.Logger
	vendor     string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

func newClient(log *logger.Logger, cfg Config, defaultBase string) (*client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, apierr.Wrap(apierr.ErrConfig, "missing %s api key", vendorName(cfg.Vendor))
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &client{
		log:        log.With("service", vendorName(cfg.Vendor)+"Client"),
		vendor:     vendorName(cfg.Vendor),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      strings.TrimSpace(cfg.Model),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		sleep:      retry.SleepContext,
	}, nil
}

func vendorName(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "OpenAI"
	}
	return v
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpx.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("%s decode error: %w", strings.ToLower(c.vendor), uErr)
			}
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("Request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if serr := c.sleep(ctx, sleepFor); serr != nil {
			return serr
		}
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}
