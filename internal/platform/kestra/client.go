package kestra

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
)

type Config struct {
	BaseURL   string
	Namespace string
	Flow      string
	Timeout   time.Duration
}

// Client triggers the analysis flow and reads its execution logs.
type Client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

type TriggerInput struct {
	RepoURL         string `json:"repoUrl"`
	Branch          string `json:"branch"`
	UserEmail       string `json:"userEmail"`
	GitHubToken     string `json:"githubToken"`
	CodeRabbitToken string `json:"coderabbitToken"`
}

type Execution struct {
	ID    string `json:"id"`
	State struct {
		Current   string    `json:"current"`
		StartDate time.Time `json:"startDate"`
	} `json:"state"`
}

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	TaskID    string    `json:"taskId"`
	Message   string    `json:"message"`
}

func New(log *logger.Logger, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://kestra:8080"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Namespace == "" {
		cfg.Namespace = "hackathon"
	}
	if cfg.Flow == "" {
		cfg.Flow = "devops-autopilot"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		log:  log.With("client", "Kestra"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Trigger starts a new execution of the configured flow.
func (c *Client) Trigger(ctx context.Context, in TriggerInput) (Execution, error) {
	var out Execution
	endpoint := c.cfg.BaseURL + "/api/v1/executions/trigger/" + url.PathEscape(c.cfg.Namespace) + "/" + url.PathEscape(c.cfg.Flow)
	err := httpx.DoJSON(ctx, c.http, http.MethodPost, endpoint, nil, in, &out)
	if err != nil {
		var se *httpx.StatusError
		switch {
		case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
			return out, apierr.Wrap(apierr.ErrNotFound, "kestra flow %s/%s not found", c.cfg.Namespace, c.cfg.Flow)
		case errors.As(err, &se):
			return out, apierr.Wrap(apierr.ErrProviderFailed, "kestra error: %s", se.Error())
		case httpx.IsTransportError(err):
			return out, apierr.Wrap(apierr.ErrProviderFailed, "cannot reach kestra at %s: %v", c.cfg.BaseURL, err)
		}
		return out, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return out, apierr.Wrap(apierr.ErrProviderFailed, "kestra trigger response missing execution id")
	}
	return out, nil
}

// Logs returns every log line recorded so far for an execution.
func (c *Client) Logs(ctx context.Context, executionID string) ([]LogEntry, error) {
	var out []LogEntry
	endpoint := c.cfg.BaseURL + "/api/v1/executions/" + url.PathEscape(executionID) + "/logs"
	if err := httpx.DoJSON(ctx, c.http, http.MethodGet, endpoint, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
