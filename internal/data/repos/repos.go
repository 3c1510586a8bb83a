package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/autopilot-backend/internal/data/repos/media"
	"github.com/yungbote/autopilot-backend/internal/data/repos/reports"
	"github.com/yungbote/autopilot-backend/internal/data/repos/runs"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

type RunRepo = runs.RunRepo
type ArtefactRepo = media.ArtefactRepo
type ReportRepo = reports.ReportRepo

// Set is every repository the service uses, sharing one connection pool.
type Set struct {
	Runs      RunRepo
	Artefacts ArtefactRepo
	Reports   ReportRepo
}

func New(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Runs:      runs.NewRunRepo(db, log),
		Artefacts: media.NewArtefactRepo(db, log),
		Reports:   reports.NewReportRepo(db, log),
	}
}
