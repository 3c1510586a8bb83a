package pika

import (
	"context"
	"errors"
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

const DefaultBaseURL = "https://api.pika.art"

type Config struct {
	APIKey       string
	BaseURL      string
	AspectRatio  string
	PollInterval time.Duration
	MaxPolls     int
	Timeout      time.Duration
}

type Client struct {
	log   *logger.Logger
	cfg   Config
	http  *http.Client
	sleep func(ctx context.Context, d time.Duration) error
}

type generateRequest struct {
	Prompt  string          `json:"prompt"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	AspectRatio string `json:"aspect_ratio"`
}

type job struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	Output   *struct {
		URL string `json:"url"`
	} `json:"output,omitempty"`
	Error any `json:"error,omitempty"`
}

func New(log *logger.Logger, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = "16:9"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 30
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		log:   log.With("client", "Pika"),
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		sleep: retry.SleepContext,
	}
}

func (c *Client) Name() string { return "pika" }

func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.cfg.APIKey) != ""
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}

// Generate submits a job and polls it at a fixed interval for a bounded
// number of attempts.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if !c.Configured() {
		return nil, apierr.Wrap(apierr.ErrConfig, "PIKA_API_KEY not configured")
	}

	var created job
	body := generateRequest{Prompt: prompt, Options: generateOptions{AspectRatio: c.cfg.AspectRatio}}
	if err := httpx.DoJSON(ctx, c.http, http.MethodPost, c.cfg.BaseURL+"/generate", c.headers(), body, &created); err != nil {
		return nil, err
	}
	if strings.TrimSpace(created.ID) == "" {
		return nil, apierr.Wrap(apierr.ErrProviderFailed, "pika response missing job id")
	}

	statusURL := c.cfg.BaseURL + "/generate/" + url.PathEscape(created.ID)
	for attempt := 1; attempt <= c.cfg.MaxPolls; attempt++ {
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return nil, err
		}
		var cur job
		err := httpx.DoJSON(ctx, c.http, http.MethodGet, statusURL, c.headers(), nil, &cur)
		if err != nil {
			var sc httpx.HTTPStatusCoder
			if errors.As(err, &sc) {
				c.log.Warn("Pika status check failed", "job_id", created.ID, "attempt", attempt, "status", sc.HTTPStatusCode())
				continue
			}
			return nil, err
		}

		switch strings.ToLower(strings.TrimSpace(cur.Status)) {
		case "finished":
			videoURL := cur.VideoURL
			if videoURL == "" && cur.Output != nil {
				videoURL = cur.Output.URL
			}
			if videoURL == "" {
				return nil, apierr.Wrap(apierr.ErrProviderFailed, "pika job %s finished without a video url", created.ID)
			}
			return videogen.Normalize(ctx, videogen.Artifact{URI: videoURL}, c.fetch)
		case "failed":
			return nil, apierr.Wrap(apierr.ErrProviderFailed, "pika generation failed: %v", cur.Error)
		}
	}
	return nil, apierr.Wrap(apierr.ErrTimeout, "pika job %s not finished after %d polls", created.ID, c.cfg.MaxPolls)
}

func (c *Client) fetch(ctx context.Context, uri string) ([]byte, error) {
	b, _, err := httpx.Download(ctx, c.http, uri, nil)
	return b, err
}
