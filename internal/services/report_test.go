package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/coderabbit"
	"github.com/yungbote/autopilot-backend/internal/platform/httpx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/retry"
)

func noSleepPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:    3,
		BackoffFactor: 2,
		Jitter:        func() float64 { return 0 },
		Sleep:         func(context.Context, time.Duration) error { return nil },
	}
}

func TestReportGeneratorRequestShape(t *testing.T) {
	chat := &fakeChat{model: DefaultReportModel, outs: []string{"  summary  "}}
	gen := NewReportGenerator(logger.Nop(), chat, noSleepPolicy(), nil)
	out, err := gen.Generate(context.Background(), coderabbit.Insights{"repo": "acme/api"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "summary" {
		t.Fatalf("out: got=%q", out)
	}
	req := chat.reqs[0]
	if req.Model != DefaultReportModel || req.MaxTokens != 512 {
		t.Fatalf("model/max_tokens: got=%+v", req)
	}
	if *req.Temperature != 0.7 || *req.TopP != 0.7 || *req.TopK != 50 || *req.RepetitionPenalty != 1 {
		t.Fatalf("sampling: got=%+v", req)
	}
	if len(req.Stop) != 1 || req.Stop[0] != "<|eot_id|>" {
		t.Fatalf("stop: got=%v", req.Stop)
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "\"repo\": \"acme/api\"") {
		t.Fatalf("messages: got=%+v", req.Messages)
	}
}

func TestReportGeneratorRetriesTransportOnly(t *testing.T) {
	chat := &fakeChat{
		outs: []string{"", "", "ok"},
		errs: []error{io.ErrUnexpectedEOF, io.ErrUnexpectedEOF, nil},
	}
	out, err := NewReportGenerator(logger.Nop(), chat, noSleepPolicy(), nil).Generate(context.Background(), coderabbit.Insights{})
	if err != nil || out != "ok" {
		t.Fatalf("got out=%q err=%v", out, err)
	}
	if len(chat.reqs) != 3 {
		t.Fatalf("attempts: want=3 got=%d", len(chat.reqs))
	}

	chat = &fakeChat{errs: []error{&httpx.StatusError{StatusCode: 500}}}
	_, err = NewReportGenerator(logger.Nop(), chat, noSleepPolicy(), nil).Generate(context.Background(), coderabbit.Insights{})
	if err == nil || len(chat.reqs) != 1 {
		t.Fatalf("status errors are not retried: attempts=%d err=%v", len(chat.reqs), err)
	}
}

func TestReportGeneratorNilChat(t *testing.T) {
	if NewReportGenerator(logger.Nop(), nil, retry.Policy{}, nil) != nil {
		t.Fatalf("nil chat must disable the generator")
	}
}

func TestVideoPromptBuilder(t *testing.T) {
	chat := &fakeChat{outs: []string{"\n a glowing pipeline \n"}}
	out, err := NewVideoPromptBuilder(logger.Nop(), chat, nil).Build(context.Background(), coderabbit.Insights{"repo": "acme/api"})
	if err != nil || out != "a glowing pipeline" {
		t.Fatalf("got out=%q err=%v", out, err)
	}
	if chat.reqs[0].Model != DefaultVideoPromptModel {
		t.Fatalf("model: got=%q", chat.reqs[0].Model)
	}
	if !strings.Contains(chat.reqs[0].Messages[0].Content, "tech-storyteller") {
		t.Fatalf("prompt: got=%q", chat.reqs[0].Messages[0].Content)
	}
}

func TestVideoPromptBuilderWithoutClient(t *testing.T) {
	_, err := NewVideoPromptBuilder(logger.Nop(), nil, nil).Build(context.Background(), coderabbit.Insights{})
	if !errors.Is(err, apierr.ErrConfig) || !strings.Contains(err.Error(), "LLM client not available") {
		t.Fatalf("want ErrConfig got=%v", err)
	}
}
