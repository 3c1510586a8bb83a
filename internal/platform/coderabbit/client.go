package coderabbit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/httpx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/retry"
)

const (
	DefaultBaseURL = "https://api.coderabbit.ai"
	reportPath     = "/api/v1/report.generate"
	dateLayout     = "2006-01-02"
)

// Insights is the review report exactly as the service returns it.
type Insights map[string]any

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// Window is how far back the report reaches from now.
	Window time.Duration
	Retry  retry.Policy
	Now    func() time.Time
}

type Client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

type reportRequest struct {
	Repository string `json:"repository"`
	From       string `json:"from"`
	To         string `json:"to"`
}

func New(log *logger.Logger, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = 14 * 24 * time.Hour
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = retry.Default()
	}
	cfg.Retry = cfg.Retry.Only(httpx.IsTransportError)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		log:  log.With("client", "CodeRabbit"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.cfg.APIKey) != ""
}

// Fetch requests the review report for repoURL over the trailing window.
// Only transport failures are retried; an HTTP error status ends the call.
func (c *Client) Fetch(ctx context.Context, repoURL string) (Insights, error) {
	if !c.Configured() {
		return nil, apierr.Wrap(apierr.ErrConfig, "CODERABBIT_API_KEY not configured")
	}
	now := c.cfg.Now().UTC()
	body := reportRequest{
		Repository: repoURL,
		From:       now.Add(-c.cfg.Window).Format(dateLayout),
		To:         now.Format(dateLayout),
	}
	headers := map[string]string{"x-coderabbitai-api-key": c.cfg.APIKey}

	policy := c.cfg.Retry
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		c.log.Warn("CodeRabbit request retrying", "repo", repoURL, "attempt", attempt, "sleep", wait.String(), "error", err.Error())
	}
	return retry.Do(ctx, policy, func(ctx context.Context) (Insights, error) {
		var out Insights
		if err := httpx.DoJSON(ctx, c.http, http.MethodPost, c.cfg.BaseURL+reportPath, headers, body, &out); err != nil {
			return nil, err
		}
		if out == nil {
			out = Insights{}
		}
		return out, nil
	})
}
