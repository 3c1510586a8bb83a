package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/yungbote/autopilot-backend/internal/data/repos/media"
	"github.com/yungbote/autopilot-backend/internal/data/repos/reports"
	"github.com/yungbote/autopilot-backend/internal/data/repos/runs"
	types "github.com/yungbote/autopilot-backend/internal/domain"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/cache"
	"github.com/yungbote/autopilot-backend/internal/platform/dbctx"
	"github.com/yungbote/autopilot-backend/internal/platform/kestra"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

const recentRunsLimit = 50

var branchPattern = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

type TriggerRequest struct {
	RepoURL   string `json:"repo_url"`
	Branch    string `json:"branch"`
	UserEmail string `json:"user_email"`
}

type TriggerResult struct {
	Success     bool   `json:"success"`
	ExecutionID string `json:"execution_id"`
	Message     string `json:"message"`
	StatusURL   string `json:"status_url"`
}

type Stats struct {
	TotalRuns      int64 `json:"total_runs"`
	TotalArtefacts int64 `json:"total_artefacts"`
	TotalReports   int64 `json:"total_reports"`
	RecentRuns24h  int64 `json:"recent_runs_24h"`
}

// WorkflowEngine is the part of the Kestra client runs need.
type WorkflowEngine interface {
	Trigger(ctx context.Context, in kestra.TriggerInput) (kestra.Execution, error)
	Logs(ctx context.Context, executionID string) ([]kestra.LogEntry, error)
}

type RunService interface {
	Get(ctx context.Context, id string) (*types.Run, error)
	ListRecent(ctx context.Context) ([]*types.Run, error)
	Invalidate(ctx context.Context, id string)
	Trigger(ctx context.Context, req TriggerRequest) (TriggerResult, error)
	Logs(ctx context.Context, executionID string) ([]kestra.LogEntry, error)
	Video(ctx context.Context, executionID string) (*types.Artefact, error)
	Stats(ctx context.Context) (Stats, error)
}

type RunServiceDeps struct {
	Runs      runs.RunRepo
	Artefacts media.ArtefactRepo
	Reports   reports.ReportRepo
	Engine    WorkflowEngine
	Cache     cache.Cache
	CacheTTL  time.Duration
	// GitHubToken and CodeRabbitToken are forwarded to triggered flows.
	GitHubToken     string
	CodeRabbitToken string
	Now             func() time.Time
}

type runService struct {
	log  *logger.Logger
	deps RunServiceDeps
}

func NewRunService(log *logger.Logger, d RunServiceDeps) RunService {
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 30 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &runService{log: log.With("service", "RunService"), deps: d}
}

func runCacheKey(id string) string { return "run:" + id }

func (s *runService) Get(ctx context.Context, id string) (*types.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apierr.Wrap(apierr.ErrInvalidArgument, "run id required")
	}
	var cached types.Run
	if hit, err := s.deps.Cache.GetJSON(ctx, runCacheKey(id), &cached); err != nil {
		s.log.Warn("Run cache read failed", "run_id", id, "error", err.Error())
	} else if hit {
		return &cached, nil
	}

	run, err := s.deps.Runs.Get(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Cache.SetJSON(ctx, runCacheKey(id), run, s.deps.CacheTTL); err != nil {
		s.log.Warn("Run cache write failed", "run_id", id, "error", err.Error())
	}
	return run, nil
}

func (s *runService) Invalidate(ctx context.Context, id string) {
	if err := s.deps.Cache.Delete(ctx, runCacheKey(id)); err != nil {
		s.log.Warn("Run cache invalidation failed", "run_id", id, "error", err.Error())
	}
}

func (s *runService) ListRecent(ctx context.Context) ([]*types.Run, error) {
	return s.deps.Runs.ListRecent(dbctx.Context{Ctx: ctx}, recentRunsLimit)
}

func validateTrigger(req TriggerRequest) (TriggerRequest, error) {
	req.RepoURL = strings.TrimSpace(req.RepoURL)
	req.Branch = strings.TrimSpace(req.Branch)
	req.UserEmail = strings.TrimSpace(req.UserEmail)
	if req.Branch == "" {
		req.Branch = "main"
	}

	u, err := url.Parse(req.RepoURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return req, apierr.Wrap(apierr.ErrInvalidArgument, "repo_url must be an absolute http(s) url")
	}
	if !strings.Contains(u.Host, "github.com") {
		return req, apierr.Wrap(apierr.ErrInvalidArgument, "Only GitHub repositories are supported")
	}
	if len(req.Branch) > 255 {
		return req, apierr.Wrap(apierr.ErrInvalidArgument, "Branch name too long")
	}
	if !branchPattern.MatchString(req.Branch) {
		return req, apierr.Wrap(apierr.ErrInvalidArgument, "Invalid branch name characters")
	}
	if req.UserEmail == "" || !strings.Contains(req.UserEmail, "@") {
		return req, apierr.Wrap(apierr.ErrInvalidArgument, "user_email must be a valid email address")
	}
	return req, nil
}

func (s *runService) Trigger(ctx context.Context, req TriggerRequest) (TriggerResult, error) {
	req, err := validateTrigger(req)
	if err != nil {
		return TriggerResult{}, err
	}
	if s.deps.Engine == nil {
		return TriggerResult{}, apierr.Wrap(apierr.ErrConfig, "workflow engine not configured")
	}
	if strings.TrimSpace(s.deps.GitHubToken) == "" {
		return TriggerResult{}, apierr.Wrap(apierr.ErrUnauthorized, "GitHub token missing")
	}
	if strings.TrimSpace(s.deps.CodeRabbitToken) == "" {
		return TriggerResult{}, apierr.Wrap(apierr.ErrConfig, "CODERABBIT_API_KEY not configured")
	}

	exec, err := s.deps.Engine.Trigger(ctx, kestra.TriggerInput{
		RepoURL:         req.RepoURL,
		Branch:          req.Branch,
		UserEmail:       req.UserEmail,
		GitHubToken:     s.deps.GitHubToken,
		CodeRabbitToken: s.deps.CodeRabbitToken,
	})
	if err != nil {
		return TriggerResult{}, fmt.Errorf("trigger workflow: %w", err)
	}

	started := exec.State.StartDate
	if started.IsZero() {
		started = s.deps.Now().UTC()
	}
	run := &types.Run{
		ID:        exec.ID,
		Repo:      req.RepoURL,
		Branch:    req.Branch,
		UserEmail: req.UserEmail,
		Status:    types.RunStatusRunning,
		StartedAt: &started,
	}
	if err := s.deps.Runs.Create(dbctx.Context{Ctx: ctx}, run); err != nil {
		return TriggerResult{}, fmt.Errorf("store run: %w", err)
	}
	s.log.Info("Workflow triggered", "run_id", exec.ID, "repo", req.RepoURL, "branch", req.Branch)

	return TriggerResult{
		Success:     true,
		ExecutionID: exec.ID,
		Message:     "Autopilot launched - video will be ready after workflow finishes",
		StatusURL:   "/api/status/" + exec.ID,
	}, nil
}

func (s *runService) Logs(ctx context.Context, executionID string) ([]kestra.LogEntry, error) {
	if s.deps.Engine == nil {
		return nil, apierr.Wrap(apierr.ErrConfig, "workflow engine not configured")
	}
	return s.deps.Engine.Logs(ctx, executionID)
}

func (s *runService) Video(ctx context.Context, executionID string) (*types.Artefact, error) {
	return s.deps.Artefacts.GetBySession(dbctx.Context{Ctx: ctx}, strings.TrimSpace(executionID))
}

func (s *runService) Stats(ctx context.Context) (Stats, error) {
	dbc := dbctx.Context{Ctx: ctx}
	var out Stats
	var err error
	if out.TotalRuns, err = s.deps.Runs.Count(dbc); err != nil {
		return out, fmt.Errorf("count runs: %w", err)
	}
	if out.RecentRuns24h, err = s.deps.Runs.CountSince(dbc, s.deps.Now().Add(-24*time.Hour)); err != nil {
		return out, fmt.Errorf("count recent runs: %w", err)
	}
	if out.TotalArtefacts, err = s.deps.Artefacts.Count(dbc); err != nil {
		return out, fmt.Errorf("count artefacts: %w", err)
	}
	if s.deps.Reports != nil {
		if out.TotalReports, err = s.deps.Reports.Count(dbc); err != nil {
			return out, fmt.Errorf("count reports: %w", err)
		}
	}
	return out, nil
}
