package openai

import (
	"context"
	"net/http"
	"strings"

	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the chat-completions body. Sampling fields left nil are
// omitted so each vendor applies its own defaults.
type ChatRequest struct {
	Model             string    `json:"model"`
	Messages          []Message `json:"messages"`
	MaxTokens         int       `json:"max_tokens,omitempty"`
	Temperature       *float64  `json:"temperature,omitempty"`
	TopP              *float64  `json:"top_p,omitempty"`
	TopK              *int      `json:"top_k,omitempty"`
	RepetitionPenalty *float64  `json:"repetition_penalty,omitempty"`
	Stop              []string  `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ChatClient talks to any OpenAI-compatible /v1/chat/completions endpoint.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
	Model() string
}

func NewChatClient(log *logger.Logger, cfg Config) (ChatClient, error) {
	return newClient(log, cfg, OpenAIBaseURL)
}

func (c *client) Model() string { return c.model }

// Complete returns the content of the first choice.
func (c *client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		req.Model = c.model
	}
	if req.Model == "" {
		return "", apierr.Wrap(apierr.ErrConfig, "%s model not configured", c.vendor)
	}
	var out chatResponse
	if err := c.do(ctx, http.MethodPost, "/v1/chat/completions", req, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", apierr.Wrap(apierr.ErrProviderFailed, "%s returned no choices", c.vendor)
	}
	return out.Choices[0].Message.Content, nil
}

func Float(v float64) *float64 { return &v }

func Int(v int) *int { return &v }
