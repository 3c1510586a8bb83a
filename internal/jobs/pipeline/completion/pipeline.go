package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/autopilot-backend/internal/data/repos/media"
	"github.com/yungbote/autopilot-backend/internal/observability"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/coderabbit"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/objectstore"
	"github.com/yungbote/autopilot-backend/internal/services"
)

const (
	DefaultTimeout = 30 * time.Minute

	// ReportFailedText replaces the report when generation fails.
	ReportFailedText = "Report generation failed."

	MessageWithReport = "Autopilot finished - video & report ready"
	MessageVideoOnly  = "Autopilot finished - video ready"
)

type InsightsFetcher interface {
	Fetch(ctx context.Context, repoURL string) (coderabbit.Insights, error)
}

type Input struct {
	ExecutionID string
	RepoURL     string
	UserEmail   string
}

type Result struct {
	Message    string `json:"message"`
	ArtefactID string `json:"artefact_id"`
	Provider   string `json:"provider"`
}

type Deps struct {
	Log      *logger.Logger
	Insights InsightsFetcher
	// Reports is optional; without it artefacts carry no report.
	Reports   services.ReportGenerator
	Prompts   services.VideoPromptBuilder
	Videos    services.VideoChain
	Artefacts media.ArtefactRepo
	// Blobs is optional; without it video bytes stay on the artefact row.
	Blobs   objectstore.Store
	Metrics *observability.Metrics
	Timeout time.Duration
}

// Pipeline turns a finished analysis run into a stored video artefact. It
// never writes run status; callers map the returned error to a terminal
// state.
type Pipeline struct {
	log       *logger.Logger
	insights  InsightsFetcher
	reports   services.ReportGenerator
	prompts   services.VideoPromptBuilder
	videos    services.VideoChain
	artefacts media.ArtefactRepo
	blobs     objectstore.Store
	metrics   *observability.Metrics
	timeout   time.Duration
}

func New(d Deps) (*Pipeline, error) {
	if d.Log == nil || d.Insights == nil || d.Prompts == nil || d.Videos == nil || d.Artefacts == nil {
		return nil, fmt.Errorf("completion pipeline: missing dependency")
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	return &Pipeline{
		log:       d.Log.With("pipeline", "completion"),
		insights:  d.Insights,
		reports:   d.Reports,
		prompts:   d.Prompts,
		videos:    d.Videos,
		artefacts: d.Artefacts,
		blobs:     d.Blobs,
		metrics:   d.Metrics,
		timeout:   d.Timeout,
	}, nil
}

// runContext carries intermediate results between stages.
type runContext struct {
	ctx      context.Context
	in       Input
	log      *logger.Logger
	insights coderabbit.Insights
	report   *string
	prompt   string
	video    []byte
	provider string
}

func (p *Pipeline) Run(ctx context.Context, in Input) (Result, error) {
	in.ExecutionID = strings.TrimSpace(in.ExecutionID)
	in.RepoURL = strings.TrimSpace(in.RepoURL)
	if in.ExecutionID == "" || in.RepoURL == "" {
		return Result{}, apierr.Wrap(apierr.ErrInvalidArgument, "execution id and repo url are required")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, "completion.Run", "execution_id", in.ExecutionID, "repo", in.RepoURL)
	defer span.End()

	rc := &runContext{
		ctx: ctx,
		in:  in,
		log: p.log.With("execution_id", in.ExecutionID),
	}
	rc.log.Info("Completion pipeline started", "repo", in.RepoURL)

	stages := []struct {
		name string
		fn   func(*runContext) error
	}{
		{"insights", p.stageInsights},
		{"narrate", p.stageNarrate},
		{"render", p.stageRender},
	}
	for _, s := range stages {
		if err := p.runStage(rc, s.name, s.fn); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, s.name)
			rc.log.Error("Completion pipeline failed", "stage", s.name, "error", err.Error())
			return Result{}, err
		}
	}

	var artefactID string
	err := p.runStage(rc, "persist", func(rc *runContext) error {
		id, err := p.stagePersist(rc)
		artefactID = id
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist")
		rc.log.Error("Completion pipeline failed", "stage", "persist", "error", err.Error())
		return Result{}, err
	}

	msg := MessageVideoOnly
	if rc.report != nil {
		msg = MessageWithReport
	}
	rc.log.Info("Completion pipeline finished", "artefact_id", artefactID, "provider", rc.provider)
	return Result{Message: msg, ArtefactID: artefactID, Provider: rc.provider}, nil
}

func (p *Pipeline) runStage(rc *runContext, name string, fn func(*runContext) error) error {
	parent := rc.ctx
	ctx, span := observability.StartSpan(parent, "completion."+name)
	rc.ctx = ctx
	start := time.Now()
	err := fn(rc)
	p.metrics.ObserveStage(name, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	rc.ctx = parent
	return err
}

// RunCompletion adapts Run to the dispatcher's runner contract.
func (p *Pipeline) RunCompletion(ctx context.Context, job services.CompletionJob) (services.CompletionOutcome, error) {
	res, err := p.Run(ctx, Input{ExecutionID: job.ExecutionID, RepoURL: job.RepoURL, UserEmail: job.UserEmail})
	if err != nil {
		return services.CompletionOutcome{}, err
	}
	return services.CompletionOutcome{Message: res.Message, ArtefactID: res.ArtefactID, Provider: res.Provider}, nil
}

var _ services.CompletionRunner = (*Pipeline)(nil)
