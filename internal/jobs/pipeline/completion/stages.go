package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	types "github.com/yungbote/autopilot-backend/internal/domain"
	"github.com/yungbote/autopilot-backend/internal/platform/dbctx"
	"github.com/yungbote/autopilot-backend/internal/platform/videogen"
)

func (p *Pipeline) stageInsights(rc *runContext) error {
	insights, err := p.insights.Fetch(rc.ctx, rc.in.RepoURL)
	if err != nil {
		return fmt.Errorf("fetch insights: %w", err)
	}
	rc.insights = insights
	return nil
}

// stageNarrate produces the report and the video prompt concurrently. Only
// the prompt can fail the run.
func (p *Pipeline) stageNarrate(rc *runContext) error {
	g, ctx := errgroup.WithContext(rc.ctx)

	if p.reports != nil {
		g.Go(func() error {
			report, err := p.reports.Generate(ctx, rc.insights)
			if err != nil {
				rc.log.Warn("Report generation failed", "error", err.Error())
				report = ReportFailedText
			}
			rc.report = &report
			return nil
		})
	}

	var prompt string
	g.Go(func() error {
		out, err := p.prompts.Build(ctx, rc.insights)
		if err != nil {
			return err
		}
		prompt = out
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	rc.prompt = prompt
	rc.log.Debug("Video prompt ready", "prompt", rc.prompt)
	return nil
}

func (p *Pipeline) stageRender(rc *runContext) error {
	b, provider, err := p.videos.Generate(rc.ctx, rc.prompt)
	if err != nil {
		return fmt.Errorf("generate video: %w", err)
	}
	rc.video = b
	rc.provider = provider
	return nil
}

func (p *Pipeline) stagePersist(rc *runContext) (string, error) {
	contentType := videogen.SniffMime(rc.video)
	a := &types.Artefact{
		Session:     rc.in.ExecutionID,
		UserEmail:   rc.in.UserEmail,
		RepoURL:     rc.in.RepoURL,
		Tool:        types.ToolVideoGeneration,
		Prompt:      rc.prompt,
		Provider:    rc.provider,
		ContentType: contentType,
		SizeBytes:   int64(len(rc.video)),
		Report:      rc.report,
		Status:      types.ArtefactStatusReady,
	}
	if raw, err := json.Marshal(rc.insights); err != nil {
		rc.log.Warn("Insights snapshot skipped", "error", err.Error())
	} else {
		a.Insights = datatypes.JSON(raw)
	}

	if p.blobs != nil {
		key := StorageKey(rc.in.ExecutionID)
		if err := p.blobs.Put(rc.ctx, key, contentType, rc.video); err != nil {
			return "", fmt.Errorf("store video: %w", err)
		}
		a.StorageKey = key
	} else {
		a.VideoBytes = rc.video
	}

	stored, err := p.artefacts.Upsert(dbctx.Context{Ctx: rc.ctx}, a)
	if err != nil {
		if a.StorageKey != "" {
			p.dropBlob(rc, a.StorageKey)
		}
		return "", fmt.Errorf("persist artefact: %w", err)
	}
	return stored.ID.String(), nil
}

// dropBlob removes a stored video whose artefact row was never written. A
// key still referenced by an earlier artefact of the same run is kept.
func (p *Pipeline) dropBlob(rc *runContext, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(rc.ctx), blobCleanupTimeout)
	defer cancel()
	if prev, err := p.artefacts.GetBySession(dbctx.Context{Ctx: ctx}, rc.in.ExecutionID); err == nil && prev.StorageKey == key {
		return
	}
	if err := p.blobs.Delete(ctx, key); err != nil {
		rc.log.Warn("Orphaned video blob", "storage_key", key, "error", err.Error())
	}
}

const blobCleanupTimeout = 10 * time.Second

// StorageKey is the object key of a run's video.
func StorageKey(executionID string) string {
	return "artefacts/" + executionID + ".mp4"
}
