package media

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/autopilot-backend/internal/domain"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/dbctx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

type ArtefactRepo interface {
	Upsert(dbc dbctx.Context, artefact *types.Artefact) (*types.Artefact, error)
	GetBySession(dbc dbctx.Context, session string) (*types.Artefact, error)
	Count(dbc dbctx.Context) (int64, error)
	CountSince(dbc dbctx.Context, since time.Time) (int64, error)
}

type artefactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtefactRepo(db *gorm.DB, baseLog *logger.Logger) ArtefactRepo {
	return &artefactRepo{
		db:  db,
		log: baseLog.With("repo", "ArtefactRepo"),
	}
}

func (r *artefactRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

// Upsert writes the artefact for its session, replacing the content of an
// earlier one, and returns the stored row.
func (r *artefactRepo) Upsert(dbc dbctx.Context, artefact *types.Artefact) (*types.Artefact, error) {
	if artefact == nil || artefact.Session == "" {
		return nil, apierr.Wrap(apierr.ErrInvalidArgument, "artefact session required")
	}
	if artefact.SizeBytes == 0 {
		artefact.SizeBytes = int64(len(artefact.VideoBytes))
	}

	var out *types.Artefact
	err := r.tx(dbc).Transaction(func(txx *gorm.DB) error {
		if err := txx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_email",
				"repo_url",
				"tool",
				"prompt",
				"provider",
				"video_bytes",
				"storage_key",
				"content_type",
				"size_bytes",
				"report",
				"insights",
				"status",
				"updated_at",
			}),
		}).Create(artefact).Error; err != nil {
			return err
		}
		var stored types.Artefact
		if err := txx.Where("session = ?", artefact.Session).First(&stored).Error; err != nil {
			return err
		}
		out = &stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *artefactRepo) GetBySession(dbc dbctx.Context, session string) (*types.Artefact, error) {
	var a types.Artefact
	err := r.tx(dbc).Where("session = ?", session).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.Wrap(apierr.ErrNotFound, "artefact for %s", session)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *artefactRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := r.tx(dbc).Model(&types.Artefact{}).Count(&n).Error
	return n, err
}

func (r *artefactRepo) CountSince(dbc dbctx.Context, since time.Time) (int64, error) {
	var n int64
	err := r.tx(dbc).Model(&types.Artefact{}).Where("created_at >= ?", since).Count(&n).Error
	return n, err
}
