package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/ctxutil"
	"github.com/yungbote/autopilot-backend/internal/platform/httpx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

type VideoConfig struct {
	Config
	Size         string
	Seconds      int
	PollInterval time.Duration
	Deadline     time.Duration
}

// VideoClient renders prompts through the /v1/videos job API.
type VideoClient struct {
	*client
	size         string
	seconds      int
	pollInterval time.Duration
	deadline     time.Duration
}

type videoJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewVideoClient(log *logger.Logger, cfg VideoConfig) (*VideoClient, error) {
	if cfg.Vendor == "" {
		cfg.Vendor = "Sora"
	}
	base, err := newClient(log, cfg.Config, OpenAIBaseURL)
	if err != nil {
		return nil, err
	}
	if base.model == "" {
		return nil, apierr.Wrap(apierr.ErrConfig, "missing OPENAI_VIDEO_MODEL")
	}
	vc := &VideoClient{
		client:       base,
		size:         strings.TrimSpace(cfg.Size),
		seconds:      normalizeVideoDurationSeconds(cfg.Seconds),
		pollInterval: cfg.PollInterval,
		deadline:     cfg.Deadline,
	}
	if vc.size == "" {
		vc.size = "1280x720"
	}
	if vc.pollInterval <= 0 {
		vc.pollInterval = 2 * time.Second
	}
	if vc.deadline <= 0 {
		vc.deadline = 20 * time.Minute
	}
	return vc, nil
}

func (v *VideoClient) Name() string { return "sora" }

func (v *VideoClient) Configured() bool { return v != nil && v.client != nil }

func normalizeVideoDurationSeconds(dur int) int {
	if dur <= 0 {
		return 8
	}
	allowed := []int{4, 8, 12}
	best := allowed[0]
	for _, a := range allowed[1:] {
		if absInt(dur-a) < absInt(dur-best) {
			best = a
		}
	}
	return best
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (v *VideoClient) createVideoJob(ctx context.Context, prompt string) (videoJobResponse, error) {
	var out videoJobResponse
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("prompt", prompt)
	_ = writer.WriteField("model", v.model)
	_ = writer.WriteField("size", v.size)
	_ = writer.WriteField("seconds", strconv.Itoa(v.seconds))
	_ = writer.Close()

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, v.baseURL+"/v1/videos", &buf)
	if err != nil {
		return out, err
	}
	req.Header.Set("Authorization", "Bearer "+v.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return out, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return out, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, &httpx.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (v *VideoClient) getVideoJob(ctx context.Context, id string) (videoJobResponse, error) {
	var out videoJobResponse
	err := v.do(ctx, http.MethodGet, "/v1/videos/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Generate submits a job, polls it to a terminal state and downloads the
// rendered content.
func (v *VideoClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apierr.Wrap(apierr.ErrInvalidArgument, "video prompt required")
	}

	job, err := v.createVideoJob(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(job.ID) == "" {
		return nil, errors.New("video create missing id")
	}

	status := strings.ToLower(strings.TrimSpace(job.Status))
	deadline := time.Now().Add(v.deadline)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	for status != "completed" && status != "succeeded" {
		if status == "failed" || status == "canceled" {
			msg := "video generation failed"
			if job.Error != nil && strings.TrimSpace(job.Error.Message) != "" {
				msg = job.Error.Message
			}
			return nil, apierr.Wrap(apierr.ErrProviderFailed, "sora: %s", msg)
		}
		if time.Now().After(deadline) {
			return nil, apierr.Wrap(apierr.ErrTimeout, "sora job %s still %q", job.ID, status)
		}
		if err := v.sleep(ctx, v.pollInterval); err != nil {
			return nil, err
		}
		job, err = v.getVideoJob(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		status = strings.ToLower(strings.TrimSpace(job.Status))
	}

	b, _, err := httpx.Download(ctx, v.httpClient, v.baseURL+"/v1/videos/"+url.PathEscape(job.ID)+"/content",
		map[string]string{"Authorization": "Bearer " + v.apiKey})
	if err != nil {
		return nil, err
	}
	return b, nil
}
