package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/autopilot-backend/internal/data/repos/reports"
	types "github.com/yungbote/autopilot-backend/internal/domain"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/coderabbit"
	"github.com/yungbote/autopilot-backend/internal/platform/dbctx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

type GenerateReportRequest struct {
	RepoURL     string `json:"repo_url"`
	ExecutionID string `json:"execution_id"`
	UserEmail   string `json:"user_email"`
}

type InsightsSource interface {
	Fetch(ctx context.Context, repoURL string) (coderabbit.Insights, error)
}

// ReportService produces executive reports outside the video pipeline.
type ReportService interface {
	Generate(ctx context.Context, req GenerateReportRequest) (*types.Report, error)
	Get(ctx context.Context, executionID string) (*types.Report, error)
}

type reportService struct {
	log       *logger.Logger
	insights  InsightsSource
	generator ReportGenerator
	repo      reports.ReportRepo
}

func NewReportService(log *logger.Logger, insights InsightsSource, generator ReportGenerator, repo reports.ReportRepo) ReportService {
	return &reportService{
		log:       log.With("service", "ReportService"),
		insights:  insights,
		generator: generator,
		repo:      repo,
	}
}

func (s *reportService) Generate(ctx context.Context, req GenerateReportRequest) (*types.Report, error) {
	req.RepoURL = strings.TrimSpace(req.RepoURL)
	req.ExecutionID = strings.TrimSpace(req.ExecutionID)
	if req.RepoURL == "" || req.ExecutionID == "" {
		return nil, apierr.Wrap(apierr.ErrInvalidArgument, "Missing repo_url or execution_id")
	}
	if s.generator == nil {
		return nil, apierr.Wrap(apierr.ErrConfig, "TOGETHER_API_KEY not configured")
	}

	insights, err := s.insights.Fetch(ctx, req.RepoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch insights: %w", err)
	}
	body, err := s.generator.Generate(ctx, insights)
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.Upsert(dbctx.Context{Ctx: ctx}, &types.Report{
		ExecutionID: req.ExecutionID,
		RepoURL:     req.RepoURL,
		UserEmail:   strings.TrimSpace(req.UserEmail),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}
	s.log.Info("Report generated", "execution_id", req.ExecutionID)
	return stored, nil
}

func (s *reportService) Get(ctx context.Context, executionID string) (*types.Report, error) {
	return s.repo.GetByExecutionID(dbctx.Context{Ctx: ctx}, strings.TrimSpace(executionID))
}
