package media

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ToolVideoGeneration = "video_generation"
	ArtefactStatusReady = "READY"
)

// Artefact is the persisted output of one completed orchestration. Session
// is the owning run id and is unique.
type Artefact struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Session     string         `gorm:"column:session;not null;uniqueIndex" json:"session"`
	UserEmail   string         `gorm:"column:user_email;index" json:"user_email"`
	RepoURL     string         `gorm:"column:repo_url" json:"repo_url"`
	Tool        string         `gorm:"column:tool;not null" json:"tool"`
	Prompt      string         `gorm:"column:prompt" json:"prompt"`
	Provider    string         `gorm:"column:provider" json:"provider"`
	VideoBytes  []byte         `gorm:"column:video_bytes" json:"-"`
	StorageKey  string         `gorm:"column:storage_key" json:"storage_key,omitempty"`
	ContentType string         `gorm:"column:content_type" json:"content_type"`
	SizeBytes   int64          `gorm:"column:size_bytes" json:"size_bytes"`
	Report      *string        `gorm:"column:report" json:"report"`
	Insights    datatypes.JSON `gorm:"column:insights" json:"insights,omitempty"`
	Status      string         `gorm:"column:status;not null" json:"status"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Artefact) TableName() string { return "artefact" }

func (a *Artefact) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
