package domain

import (
	"github.com/yungbote/autopilot-backend/internal/domain/media"
	"github.com/yungbote/autopilot-backend/internal/domain/reports"
	"github.com/yungbote/autopilot-backend/internal/domain/runs"
)

type (
	Run       = runs.Run
	RunStatus = runs.RunStatus
	Artefact  = media.Artefact
	Report    = reports.Report
)

const (
	RunStatusRunning     = runs.RunStatusRunning
	RunStatusCompleted   = runs.RunStatusCompleted
	RunStatusVideoReady  = runs.RunStatusVideoReady
	RunStatusVideoFailed = runs.RunStatusVideoFailed

	ToolVideoGeneration = media.ToolVideoGeneration
	ArtefactStatusReady = media.ArtefactStatusReady
)
