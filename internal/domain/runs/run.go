package runs

import "time"

type RunStatus string

const (
	RunStatusRunning     RunStatus = "RUNNING"
	RunStatusCompleted   RunStatus = "COMPLETED"
	RunStatusVideoReady  RunStatus = "VIDEO_READY"
	RunStatusVideoFailed RunStatus = "VIDEO_FAILED"
)

// Terminal reports whether no further automatic transition is expected.
func (s RunStatus) Terminal() bool {
	return s == RunStatusVideoReady || s == RunStatusVideoFailed
}

// Run is one execution of the analysis workflow, keyed by the engine's
// execution id.
type Run struct {
	ID                     string     `gorm:"column:id;primaryKey" json:"id"`
	Repo                   string     `gorm:"column:repo;index" json:"repo"`
	Branch                 string     `gorm:"column:branch" json:"branch,omitempty"`
	UserEmail              string     `gorm:"column:user_email;index" json:"user_email"`
	Status                 RunStatus  `gorm:"column:status;not null;index" json:"status"`
	StartedAt              *time.Time `gorm:"column:started_at;index" json:"timestamp,omitempty"`
	FinishedAt             *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CompletionMessage      string     `gorm:"column:completion_message" json:"completion_message,omitempty"`
	ArtefactID             string     `gorm:"column:artefact_id" json:"artefact_id,omitempty"`
	Error                  string     `gorm:"column:error" json:"error,omitempty"`
	OrchestrationToken     string     `gorm:"column:orchestration_token;not null;default:''" json:"-"`
	OrchestrationStartedAt *time.Time `gorm:"column:orchestration_started_at" json:"-"`
	CreatedAt              time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"not null" json:"updated_at"`
}

func (Run) TableName() string { return "run" }
