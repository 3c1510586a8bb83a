package reports

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/autopilot-backend/internal/domain"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/dbctx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

type ReportRepo interface {
	Upsert(dbc dbctx.Context, report *types.Report) (*types.Report, error)
	GetByExecutionID(dbc dbctx.Context, executionID string) (*types.Report, error)
	Count(dbc dbctx.Context) (int64, error)
}

type reportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return &reportRepo{
		db:  db,
		log: baseLog.With("repo", "ReportRepo"),
	}
}

func (r *reportRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *reportRepo) Upsert(dbc dbctx.Context, report *types.Report) (*types.Report, error) {
	if report == nil || report.ExecutionID == "" {
		return nil, apierr.Wrap(apierr.ErrInvalidArgument, "execution id required")
	}
	var out *types.Report
	err := r.tx(dbc).Transaction(func(txx *gorm.DB) error {
		if err := txx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "execution_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"repo_url", "user_email", "body", "updated_at"}),
		}).Create(report).Error; err != nil {
			return err
		}
		var stored types.Report
		if err := txx.Where("execution_id = ?", report.ExecutionID).First(&stored).Error; err != nil {
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

func (r *reportRepo) GetByExecutionID(dbc dbctx.Context, executionID string) (*types.Report, error) {
	var rep types.Report
	err := r.tx(dbc).Where("execution_id = ?", executionID).First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.Wrap(apierr.ErrNotFound, "report for %s", executionID)
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *reportRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := r.tx(dbc).Model(&types.Report{}).Count(&n).Error
	return n, err
}
