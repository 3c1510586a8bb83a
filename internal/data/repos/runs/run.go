package runs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/autopilot-backend/internal/domain"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/dbctx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

// Outcome is the terminal state written by the orchestration token holder.
type Outcome struct {
	Status            types.RunStatus
	CompletionMessage string
	ArtefactID        string
	Error             string
}

type RunRepo interface {
	Create(dbc dbctx.Context, run *types.Run) error
	Get(dbc dbctx.Context, id string) (*types.Run, error)
	ListRecent(dbc dbctx.Context, limit int) ([]*types.Run, error)
	MarkCompleted(dbc dbctx.Context, id, repo, userEmail string, finishedAt time.Time) error
	ClaimOrchestration(dbc dbctx.Context, id string, staleAfter time.Duration) (string, bool, error)
	FinishOrchestration(dbc dbctx.Context, id, token string, outcome Outcome) (bool, error)
	ReleaseOrchestration(dbc dbctx.Context, id, token string) (bool, error)
	Count(dbc dbctx.Context) (int64, error)
	CountSince(dbc dbctx.Context, since time.Time) (int64, error)
}

type runRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRunRepo(db *gorm.DB, baseLog *logger.Logger) RunRepo {
	return &runRepo{
		db:  db,
		log: baseLog.With("repo", "RunRepo"),
	}
}

func (r *runRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *runRepo) Create(dbc dbctx.Context, run *types.Run) error {
	if run == nil || run.ID == "" {
		return apierr.Wrap(apierr.ErrInvalidArgument, "run id required")
	}
	return r.tx(dbc).Create(run).Error
}

func (r *runRepo) Get(dbc dbctx.Context, id string) (*types.Run, error) {
	var run types.Run
	err := r.tx(dbc).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.Wrap(apierr.ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *runRepo) ListRecent(dbc dbctx.Context, limit int) ([]*types.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.Run
	if err := r.tx(dbc).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkCompleted upserts the run and moves it to COMPLETED. A run that
// already reached VIDEO_READY keeps its status. Repo and owner are only
// written when non-empty.
func (r *runRepo) MarkCompleted(dbc dbctx.Context, id, repo, userEmail string, finishedAt time.Time) error {
	if id == "" {
		return apierr.Wrap(apierr.ErrInvalidArgument, "run id required")
	}
	return r.tx(dbc).Transaction(func(txx *gorm.DB) error {
		seed := &types.Run{
			ID:         id,
			Repo:       repo,
			UserEmail:  userEmail,
			Status:     types.RunStatusCompleted,
			FinishedAt: &finishedAt,
		}
		if err := txx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":      types.RunStatusCompleted,
			"finished_at": finishedAt,
			"updated_at":  time.Now(),
		}
		if repo != "" {
			updates["repo"] = repo
		}
		if userEmail != "" {
			updates["user_email"] = userEmail
		}
		return txx.Model(&types.Run{}).
			Where("id = ? AND status <> ?", id, types.RunStatusVideoReady).
			Updates(updates).Error
	})
}

// ClaimOrchestration hands out a fresh token when the run is COMPLETED and
// nobody holds one. A token older than staleAfter counts as abandoned.
func (r *runRepo) ClaimOrchestration(dbc dbctx.Context, id string, staleAfter time.Duration) (string, bool, error) {
	token := uuid.NewString()
	now := time.Now()

	q := r.tx(dbc).Model(&types.Run{}).
		Where("id = ? AND status = ?", id, types.RunStatusCompleted)
	if staleAfter > 0 {
		q = q.Where("(orchestration_token = '' OR orchestration_started_at IS NULL OR orchestration_started_at < ?)", now.Add(-staleAfter))
	} else {
		q = q.Where("orchestration_token = ''")
	}
	res := q.Updates(map[string]interface{}{
		"orchestration_token":      token,
		"orchestration_started_at": now,
		"updated_at":               now,
	})
	if res.Error != nil {
		return "", false, res.Error
	}
	if res.RowsAffected == 0 {
		return "", false, nil
	}
	return token, true, nil
}

// FinishOrchestration writes the outcome only while token is still current
// and releases it. It reports false for a stale writer.
func (r *runRepo) FinishOrchestration(dbc dbctx.Context, id, token string, outcome Outcome) (bool, error) {
	if token == "" {
		return false, apierr.Wrap(apierr.ErrInvalidArgument, "orchestration token required")
	}
	res := r.tx(dbc).Model(&types.Run{}).
		Where("id = ? AND orchestration_token = ?", id, token).
		Updates(map[string]interface{}{
			"status":              outcome.Status,
			"completion_message":  outcome.CompletionMessage,
			"artefact_id":         outcome.ArtefactID,
			"error":               outcome.Error,
			"orchestration_token": "",
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		r.log.Warn("Ignoring stale orchestration outcome", "run_id", id, "status", outcome.Status)
		return false, nil
	}
	return true, nil
}

// ReleaseOrchestration drops a token whose task never started. Status and
// outcome fields are left as they were.
func (r *runRepo) ReleaseOrchestration(dbc dbctx.Context, id, token string) (bool, error) {
	if token == "" {
		return false, apierr.Wrap(apierr.ErrInvalidArgument, "orchestration token required")
	}
	res := r.tx(dbc).Model(&types.Run{}).
		Where("id = ? AND orchestration_token = ?", id, token).
		Updates(map[string]interface{}{
			"orchestration_token": "",
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *runRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := r.tx(dbc).Model(&types.Run{}).Count(&n).Error
	return n, err
}

func (r *runRepo) CountSince(dbc dbctx.Context, since time.Time) (int64, error) {
	var n int64
	err := r.tx(dbc).Model(&types.Run{}).Where("created_at >= ?", since).Count(&n).Error
	return n, err
}
