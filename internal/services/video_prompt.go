package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/autopilot-backend/internal/observability"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/coderabbit"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/openai"
	"github.com/yungbote/autopilot-backend/internal/platform/promptstyle"
)

const DefaultVideoPromptModel = "llama-3.3-70b-versatile"

// VideoPromptBuilder condenses insights into a short scene description.
type VideoPromptBuilder interface {
	Build(ctx context.Context, insights coderabbit.Insights) (string, error)
}

type videoPromptBuilder struct {
	log     *logger.Logger
	chat    openai.ChatClient
	metrics *observability.Metrics
}

func NewVideoPromptBuilder(log *logger.Logger, chat openai.ChatClient, metrics *observability.Metrics) VideoPromptBuilder {
	return &videoPromptBuilder{
		log:     log.With("service", "VideoPromptBuilder"),
		chat:    chat,
		metrics: metrics,
	}
}

func (b *videoPromptBuilder) Build(ctx context.Context, insights coderabbit.Insights) (string, error) {
	if b.chat == nil {
		return "", apierr.Wrap(apierr.ErrConfig, "LLM client not available")
	}
	prompt, err := promptstyle.VideoPrompt(insights)
	if err != nil {
		return "", apierr.Wrap(apierr.ErrInvalidArgument, "encode insights: %v", err)
	}
	model := b.chat.Model()
	if model == "" {
		model = DefaultVideoPromptModel
	}

	start := time.Now()
	out, err := b.chat.Complete(ctx, openai.ChatRequest{
		Model:    model,
		Messages: []openai.Message{{Role: "user", Content: prompt}},
	})
	b.metrics.ObserveProvider("groq", "llm", err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("build video prompt: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", apierr.Wrap(apierr.ErrProviderFailed, "empty video prompt")
	}
	return out, nil
}
