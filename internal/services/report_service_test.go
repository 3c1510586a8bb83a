package services

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/autopilot-backend/internal/data/repos/reports"
	"github.com/yungbote/autopilot-backend/internal/data/repos/testutil"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/coderabbit"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

func TestReportServiceGenerateAndGet(t *testing.T) {
	log := logger.Nop()
	repo := reports.NewReportRepo(testutil.DB(t), log)
	chat := &fakeChat{outs: []string{"exec summary"}}
	svc := NewReportService(log,
		&fakeInsights{out: coderabbit.Insights{"repo": "acme/api"}},
		NewReportGenerator(log, chat, noSleepPolicy(), nil),
		repo,
	)

	rep, err := svc.Generate(context.Background(), GenerateReportRequest{RepoURL: "https://github.com/acme/api", ExecutionID: "e1"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.Body != "exec summary" || rep.ExecutionID != "e1" {
		t.Fatalf("report: got=%+v", rep)
	}
	got, err := svc.Get(context.Background(), "e1")
	if err != nil || got.ID != rep.ID {
		t.Fatalf("Get: got=%+v err=%v", got, err)
	}
}

func TestReportServiceValidation(t *testing.T) {
	log := logger.Nop()
	repo := reports.NewReportRepo(testutil.DB(t), log)

	svc := NewReportService(log, &fakeInsights{}, nil, repo)
	if _, err := svc.Generate(context.Background(), GenerateReportRequest{RepoURL: "r"}); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Fatalf("missing execution id: got=%v", err)
	}
	if _, err := svc.Generate(context.Background(), GenerateReportRequest{RepoURL: "r", ExecutionID: "e"}); !errors.Is(err, apierr.ErrConfig) {
		t.Fatalf("no generator: got=%v", err)
	}

	svc = NewReportService(log, &fakeInsights{err: apierr.Wrap(apierr.ErrConfig, "no key")}, NewReportGenerator(log, &fakeChat{}, noSleepPolicy(), nil), repo)
	if _, err := svc.Generate(context.Background(), GenerateReportRequest{RepoURL: "r", ExecutionID: "e"}); !errors.Is(err, apierr.ErrConfig) {
		t.Fatalf("insights failure: got=%v", err)
	}
}
