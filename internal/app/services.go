package app

import (
	"fmt"
	"time"

	"github.com/yungbote/autopilot-backend/internal/data/repos"
	"github.com/yungbote/autopilot-backend/internal/jobs/pipeline/completion"
	"github.com/yungbote/autopilot-backend/internal/jobs/runtime"
	"github.com/yungbote/autopilot-backend/internal/observability"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/retry"
	"github.com/yungbote/autopilot-backend/internal/services"
)

type Services struct {
	Runs       services.RunService
	Reports    services.ReportService
	Dispatcher services.CompletionDispatcher
	Auth       services.OperatorAuth
	Pipeline   *completion.Pipeline
	Tasks      *runtime.Registry
}

func wireServices(log *logger.Logger, cfg Config, r repos.Set, c Clients, metrics *observability.Metrics) (Services, error) {
	reportGen := services.NewReportGenerator(log, c.Together, retry.Default(), metrics)
	prompts := services.NewVideoPromptBuilder(log, c.Groq, metrics)
	videos := services.NewVideoChain(log, metrics, c.Videos...)

	pipeline, err := completion.New(completion.Deps{
		Log:       log,
		Insights:  c.CodeRabbit,
		Reports:   reportGen,
		Prompts:   prompts,
		Videos:    videos,
		Artefacts: r.Artefacts,
		Blobs:     c.Blobs,
		Metrics:   metrics,
		Timeout:   cfg.Orchestration.Timeout,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init completion pipeline: %w", err)
	}

	tasks := runtime.NewRegistry(log, metrics, runtime.Config{
		// The pipeline bounds itself; the extra minute covers persistence.
		TaskTimeout: cfg.Orchestration.Timeout + time.Minute,
		Retain:      cfg.Orchestration.RetainTasks,
	})

	runSvc := services.NewRunService(log, services.RunServiceDeps{
		Runs:            r.Runs,
		Artefacts:       r.Artefacts,
		Reports:         r.Reports,
		Engine:          c.Kestra,
		Cache:           c.Cache,
		CacheTTL:        cfg.Redis.RunCacheTTL,
		GitHubToken:     cfg.Kestra.GitHubToken,
		CodeRabbitToken: cfg.Providers.CodeRabbitAPIKey,
	})

	dispatcher := services.NewCompletionDispatcher(log, services.DispatcherDeps{
		Runs:       r.Runs,
		Runner:     pipeline,
		Tasks:      tasks,
		RunCache:   runSvc,
		Notifier:   c.Slack,
		Metrics:    metrics,
		StaleAfter: cfg.Orchestration.StaleAfter,
	})

	log.Info("Video providers configured", "order", videos.Providers())

	return Services{
		Runs:       runSvc,
		Reports:    services.NewReportService(log, c.CodeRabbit, reportGen, r.Reports),
		Dispatcher: dispatcher,
		Auth:       services.NewOperatorAuth(log, cfg.Server.JWTSecretKey),
		Pipeline:   pipeline,
		Tasks:      tasks,
	}, nil
}
