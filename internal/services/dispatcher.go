package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/autopilot-backend/internal/data/repos/runs"
	types "github.com/yungbote/autopilot-backend/internal/domain"
	"github.com/yungbote/autopilot-backend/internal/jobs/runtime"
	"github.com/yungbote/autopilot-backend/internal/observability"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/dbctx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

const (
	VideoSkipped    = "skipped"
	VideoReady      = "ready"
	VideoInProgress = "in_progress"
	VideoQueued     = "queued"
)

// CompletionSignal is the engine's notice that a run finished. Either ID or
// ExecutionID identifies the run.
type CompletionSignal struct {
	ID          string `json:"id"`
	ExecutionID string `json:"executionId"`
	Repo        string `json:"repo"`
	UserEmail   string `json:"user_email"`
}

func (s CompletionSignal) RunID() string {
	if id := strings.TrimSpace(s.ID); id != "" {
		return id
	}
	return strings.TrimSpace(s.ExecutionID)
}

type DispatchResult struct {
	Status string `json:"status"`
	Video  string `json:"video"`
	TaskID string `json:"task_id,omitempty"`
}

type CompletionJob struct {
	ExecutionID string
	RepoURL     string
	UserEmail   string
}

type CompletionOutcome struct {
	Message    string
	ArtefactID string
	Provider   string
}

// CompletionRunner executes the post-run pipeline synchronously.
type CompletionRunner interface {
	RunCompletion(ctx context.Context, job CompletionJob) (CompletionOutcome, error)
}

type TaskLauncher interface {
	Launch(key string, fn runtime.TaskFunc, onDone runtime.OnDone) (runtime.TaskInfo, error)
}

type RunCacheInvalidator interface {
	Invalidate(ctx context.Context, runID string)
}

type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, text string) error
}

// CompletionDispatcher records completion webhooks and launches at most one
// orchestration per run.
type CompletionDispatcher interface {
	HandleCompletion(ctx context.Context, sig CompletionSignal) (DispatchResult, error)
	// Orchestrate claims the run and runs the pipeline inline.
	Orchestrate(ctx context.Context, runID string) (*types.Run, error)
}

type completionDispatcher struct {
	log        *logger.Logger
	runs       runs.RunRepo
	runner     CompletionRunner
	tasks      TaskLauncher
	invalidate func(ctx context.Context, runID string)
	notifier   Notifier
	metrics    *observability.Metrics
	staleAfter time.Duration
}

type DispatcherDeps struct {
	Runs   runs.RunRepo
	Runner CompletionRunner
	Tasks  TaskLauncher
	// RunCache is optional.
	RunCache RunCacheInvalidator
	// Notifier is optional.
	Notifier Notifier
	Metrics  *observability.Metrics
	// StaleAfter lets a new claim take over a token held this long.
	StaleAfter time.Duration
}

func NewCompletionDispatcher(log *logger.Logger, d DispatcherDeps) CompletionDispatcher {
	cd := &completionDispatcher{
		log:        log.With("service", "CompletionDispatcher"),
		runs:       d.Runs,
		runner:     d.Runner,
		tasks:      d.Tasks,
		notifier:   d.Notifier,
		metrics:    d.Metrics,
		staleAfter: d.StaleAfter,
		invalidate: func(context.Context, string) {},
	}
	if d.RunCache != nil {
		cd.invalidate = d.RunCache.Invalidate
	}
	return cd
}

func (d *completionDispatcher) HandleCompletion(ctx context.Context, sig CompletionSignal) (DispatchResult, error) {
	runID := sig.RunID()
	if runID == "" {
		d.metrics.IncWebhook("kestra", "invalid")
		return DispatchResult{}, apierr.Wrap(apierr.ErrInvalidArgument, "Missing executionId in webhook payload")
	}
	log := d.log.WithContext(ctx).With("run_id", runID)
	dbc := dbctx.Context{Ctx: ctx}

	if err := d.runs.MarkCompleted(dbc, runID, strings.TrimSpace(sig.Repo), strings.TrimSpace(sig.UserEmail), time.Now().UTC()); err != nil {
		d.metrics.IncWebhook("kestra", "error")
		return DispatchResult{}, fmt.Errorf("mark run completed: %w", err)
	}
	d.invalidate(ctx, runID)

	run, err := d.runs.Get(dbc, runID)
	if err != nil {
		d.metrics.IncWebhook("kestra", "error")
		return DispatchResult{}, fmt.Errorf("reload run: %w", err)
	}

	result := DispatchResult{Status: "processed"}
	switch {
	case run.Repo == "" || run.UserEmail == "":
		log.Warn("Skipping video generation: repo or user_email missing on run")
		result.Video = VideoSkipped
	case run.Status == types.RunStatusVideoReady:
		result.Video = VideoReady
	default:
		token, ok, err := d.runs.ClaimOrchestration(dbc, runID, d.staleAfter)
		if err != nil {
			d.metrics.IncWebhook("kestra", "error")
			return DispatchResult{}, fmt.Errorf("claim orchestration: %w", err)
		}
		if !ok {
			result.Video = VideoInProgress
			break
		}
		info, err := d.launch(run, token)
		if err != nil {
			d.release(runID, token, err)
			if errors.Is(err, runtime.ErrTaskActive) {
				result.Video = VideoInProgress
				break
			}
			d.metrics.IncWebhook("kestra", "error")
			return DispatchResult{}, fmt.Errorf("launch orchestration: %w", err)
		}
		result.Video = VideoQueued
		result.TaskID = info.ID
	}
	d.metrics.IncWebhook("kestra", result.Video)
	log.Info("Completion webhook processed", "video", result.Video)
	return result, nil
}

func (d *completionDispatcher) launch(run *types.Run, token string) (runtime.TaskInfo, error) {
	job := CompletionJob{ExecutionID: run.ID, RepoURL: run.Repo, UserEmail: run.UserEmail}
	var outcome CompletionOutcome
	return d.tasks.Launch(run.ID,
		func(ctx context.Context) error {
			var err error
			outcome, err = d.runner.RunCompletion(ctx, job)
			return err
		},
		func(ctx context.Context, err error) {
			d.finish(ctx, job, token, outcome, err)
		},
	)
}

// release hands back a token whose task never started. The run keeps the
// status the claim found so a later delivery can launch again.
func (d *completionDispatcher) release(runID, token string, cause error) {
	if _, err := d.runs.ReleaseOrchestration(dbctx.Context{Ctx: context.Background()}, runID, token); err != nil {
		d.log.Error("Releasing orchestration token failed", "run_id", runID, "error", err.Error())
		return
	}
	d.log.Warn("Orchestration launch failed, token released", "run_id", runID, "error", cause.Error())
}

func (d *completionDispatcher) finish(ctx context.Context, job CompletionJob, token string, outcome CompletionOutcome, runErr error) {
	log := d.log.With("run_id", job.ExecutionID)
	out := runs.Outcome{Status: types.RunStatusVideoReady, CompletionMessage: outcome.Message, ArtefactID: outcome.ArtefactID}
	if runErr != nil {
		out = runs.Outcome{Status: types.RunStatusVideoFailed, Error: runErr.Error()}
		log.Error("Post-run video generation failed", "error", runErr.Error())
	}

	applied, err := d.runs.FinishOrchestration(dbctx.Context{Ctx: ctx}, job.ExecutionID, token, out)
	if err != nil {
		log.Error("Recording orchestration outcome failed", "status", out.Status, "error", err.Error())
		return
	}
	if !applied {
		d.metrics.IncOrchestration("stale")
		return
	}
	d.metrics.IncOrchestration(string(out.Status))
	d.invalidate(ctx, job.ExecutionID)

	if d.notifier != nil && d.notifier.Enabled() {
		if err := d.notifier.Notify(ctx, notificationText(job, out, outcome.Provider)); err != nil {
			log.Warn("Slack notification failed", "error", err.Error())
		}
	}
}

func (d *completionDispatcher) Orchestrate(ctx context.Context, runID string) (*types.Run, error) {
	runID = strings.TrimSpace(runID)
	dbc := dbctx.Context{Ctx: ctx}
	run, err := d.runs.Get(dbc, runID)
	if err != nil {
		return nil, err
	}
	if run.Repo == "" || run.UserEmail == "" {
		return nil, apierr.Wrap(apierr.ErrInvalidArgument, "run %s has no repo or owner", runID)
	}
	if run.Status == types.RunStatusVideoReady {
		return run, nil
	}
	token, ok, err := d.runs.ClaimOrchestration(dbc, runID, d.staleAfter)
	if err != nil {
		return nil, fmt.Errorf("claim orchestration: %w", err)
	}
	if !ok {
		return nil, apierr.Wrap(apierr.ErrConflict, "run %s is not claimable (status %s)", runID, run.Status)
	}
	job := CompletionJob{ExecutionID: run.ID, RepoURL: run.Repo, UserEmail: run.UserEmail}
	outcome, runErr := d.runner.RunCompletion(ctx, job)
	d.finish(context.WithoutCancel(ctx), job, token, outcome, runErr)
	if reloaded, err := d.runs.Get(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, runID); err == nil {
		run = reloaded
	}
	return run, runErr
}

func notificationText(job CompletionJob, out runs.Outcome, provider string) string {
	if out.Status == types.RunStatusVideoReady {
		return fmt.Sprintf("Autopilot run %s for %s is ready (%s): %s", job.ExecutionID, job.RepoURL, provider, out.CompletionMessage)
	}
	return fmt.Sprintf("Autopilot run %s for %s failed: %s", job.ExecutionID, job.RepoURL, out.Error)
}
