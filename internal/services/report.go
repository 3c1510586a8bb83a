package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/autopilot-backend/internal/observability"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/coderabbit"
	"github.com/yungbote/autopilot-backend/internal/platform/httpx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/openai"
	"github.com/yungbote/autopilot-backend/internal/platform/promptstyle"
	"github.com/yungbote/autopilot-backend/internal/platform/retry"
)

const DefaultReportModel = "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo"

// ReportGenerator writes an executive summary of review insights.
type ReportGenerator interface {
	Generate(ctx context.Context, insights coderabbit.Insights) (string, error)
}

type reportGenerator struct {
	log     *logger.Logger
	chat    openai.ChatClient
	retry   retry.Policy
	metrics *observability.Metrics
}

// NewReportGenerator returns nil when chat is nil, which the pipeline reads
// as "reports disabled".
func NewReportGenerator(log *logger.Logger, chat openai.ChatClient, policy retry.Policy, metrics *observability.Metrics) ReportGenerator {
	if chat == nil {
		return nil
	}
	if policy.MaxRetries == 0 {
		policy = retry.Default()
	}
	slog := log.With("service", "ReportGenerator")
	policy = policy.Only(httpx.IsTransportError)
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, wait time.Duration, err error) {
			slog.Warn("Report request failed, retrying", "attempt", attempt, "sleep", wait.String(), "error", err.Error())
		}
	}
	return &reportGenerator{log: slog, chat: chat, retry: policy, metrics: metrics}
}

func (g *reportGenerator) Generate(ctx context.Context, insights coderabbit.Insights) (string, error) {
	prompt, err := promptstyle.Report(insights)
	if err != nil {
		return "", apierr.Wrap(apierr.ErrInvalidArgument, "encode insights: %v", err)
	}
	req := openai.ChatRequest{
		Model:             g.chat.Model(),
		Messages:          []openai.Message{{Role: "user", Content: prompt}},
		MaxTokens:         512,
		Temperature:       openai.Float(0.7),
		TopP:              openai.Float(0.7),
		TopK:              openai.Int(50),
		RepetitionPenalty: openai.Float(1),
		Stop:              []string{"<|eot_id|>"},
	}
	if req.Model == "" {
		req.Model = DefaultReportModel
	}

	start := time.Now()
	out, err := retry.Do(ctx, g.retry, func(ctx context.Context) (string, error) {
		return g.chat.Complete(ctx, req)
	})
	g.metrics.ObserveProvider("together", "llm", err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("generate report: %w", err)
	}
	return strings.TrimSpace(out), nil
}
