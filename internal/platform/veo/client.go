package veo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/httpx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/retry"
	"github.com/yungbote/autopilot-backend/internal/platform/videogen"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultAPIVersion = "v1beta"
	DefaultModel      = "veo-2.0-generate-preview-0123"
)

// Capabilities states what the configured account is allowed to do.
type Capabilities struct {
	VideoGeneration bool
}

type Config struct {
	APIKey       string
	BaseURL      string
	APIVersion   string
	Model        string
	Capabilities Capabilities
	PollInterval time.Duration
	// Deadline bounds the whole poll phase.
	Deadline time.Duration
	Timeout  time.Duration
	Retry    retry.Policy
}

type Client struct {
	log   *logger.Logger
	cfg   Config
	http  *http.Client
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

type predictRequest struct {
	Instances  []instance `json:"instances"`
	Parameters parameters `json:"parameters"`
}

type instance struct {
	Prompt string `json:"prompt"`
}

type parameters struct {
	SampleCount int `json:"sampleCount"`
}

type operation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse *struct {
			GeneratedSamples []sample `json:"generatedSamples"`
		} `json:"generateVideoResponse,omitempty"`
		Videos []videoPayload `json:"videos,omitempty"`
	} `json:"response,omitempty"`
}

type sample struct {
	Video videoPayload `json:"video"`
}

type videoPayload struct {
	URI                string `json:"uri,omitempty"`
	GCSURI             string `json:"gcsUri,omitempty"`
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
}

func New(log *logger.Logger, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 150 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = retry.Default()
	}
	cfg.Retry = cfg.Retry.Only(IsRateLimited)
	return &Client{
		log:   log.With("client", "Veo"),
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		sleep: retry.SleepContext,
		now:   time.Now,
	}
}

func (c *Client) Name() string { return "veo" }

func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.cfg.APIKey) != ""
}

// IsRateLimited reports quota exhaustion, the only submission failure worth
// retrying.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var sc httpx.HTTPStatusCoder
	if errors.As(err, &sc) && sc.HTTPStatusCode() == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func (c *Client) headers() map[string]string {
	return map[string]string{"x-goog-api-key": c.cfg.APIKey}
}

// Generate submits one long-running generation, waits for it and returns
// the first sample's bytes.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if !c.Configured() {
		return nil, apierr.Wrap(apierr.ErrConfig, "GOOGLE_API_KEY not configured")
	}
	if !c.cfg.Capabilities.VideoGeneration {
		return nil, apierr.Wrap(apierr.ErrCapabilityUnavailable, "video generation is not enabled for model %s", c.cfg.Model)
	}

	op, err := c.submit(ctx, prompt)
	if err != nil {
		if IsRateLimited(err) {
			return nil, fmt.Errorf("veo generation failed: %w: %w", apierr.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("veo generation failed: %w", err)
	}
	if strings.TrimSpace(op.Name) == "" {
		return nil, apierr.Wrap(apierr.ErrProviderFailed, "veo operation never started")
	}

	op, err = c.wait(ctx, op)
	if err != nil {
		return nil, err
	}

	payload, ok := firstVideo(op)
	if !ok {
		return nil, apierr.Wrap(apierr.ErrProviderFailed, "veo operation %s finished without a result", op.Name)
	}
	return videogen.Normalize(ctx, videogen.Artifact{Base64: payload.BytesBase64Encoded, URI: payload.URI}, c.fetch)
}

func (c *Client) submit(ctx context.Context, prompt string) (operation, error) {
	endpoint := fmt.Sprintf("%s/%s/models/%s:predictLongRunning", c.cfg.BaseURL, c.cfg.APIVersion, url.PathEscape(c.cfg.Model))
	body := predictRequest{
		Instances:  []instance{{Prompt: prompt}},
		Parameters: parameters{SampleCount: 1},
	}
	policy := c.cfg.Retry
	if policy.Sleep == nil {
		policy.Sleep = c.sleep
	}
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		c.log.Warn("Veo quota exhausted, retrying", "attempt", attempt, "sleep", wait.String(), "error", err.Error())
	}
	return retry.Do(ctx, policy, func(ctx context.Context) (operation, error) {
		var op operation
		err := httpx.DoJSON(ctx, c.http, http.MethodPost, endpoint, c.headers(), body, &op)
		return op, err
	})
}

func (c *Client) wait(ctx context.Context, op operation) (operation, error) {
	deadline := c.now().Add(c.cfg.Deadline)
	for !op.Done {
		if !c.now().Before(deadline) {
			return op, apierr.Wrap(apierr.ErrTimeout, "veo operation %s not done after %s", op.Name, c.cfg.Deadline)
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return op, err
		}
		next, err := c.poll(ctx, op.Name)
		if err != nil {
			return op, fmt.Errorf("poll veo operation: %w", err)
		}
		if next.Name == "" {
			next.Name = op.Name
		}
		op = next
	}
	if op.Error != nil {
		return op, apierr.Wrap(apierr.ErrProviderFailed, "veo: %s", op.Error.Message)
	}
	return op, nil
}

func (c *Client) poll(ctx context.Context, name string) (operation, error) {
	var op operation
	endpoint := fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, c.cfg.APIVersion, strings.TrimLeft(name, "/"))
	err := httpx.DoJSON(ctx, c.http, http.MethodGet, endpoint, c.headers(), nil, &op)
	return op, err
}

func firstVideo(op operation) (videoPayload, bool) {
	if op.Response == nil {
		return videoPayload{}, false
	}
	if r := op.Response.GenerateVideoResponse; r != nil && len(r.GeneratedSamples) > 0 {
		v := r.GeneratedSamples[0].Video
		if v.URI == "" {
			v.URI = v.GCSURI
		}
		return v, true
	}
	if len(op.Response.Videos) > 0 {
		v := op.Response.Videos[0]
		if v.URI == "" {
			v.URI = v.GCSURI
		}
		return v, true
	}
	return videoPayload{}, false
}

// Generated file URIs are served by the same API and need the key.
func (c *Client) fetch(ctx context.Context, uri string) ([]byte, error) {
	var headers map[string]string
	if strings.HasPrefix(uri, c.cfg.BaseURL) {
		headers = c.headers()
	}
	b, _, err := httpx.Download(ctx, c.http, uri, headers)
	return b, err
}
