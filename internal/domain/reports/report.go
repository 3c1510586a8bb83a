package reports

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Report is an executive summary generated on demand for an execution.
type Report struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExecutionID string    `gorm:"column:execution_id;not null;uniqueIndex" json:"execution_id"`
	RepoURL     string    `gorm:"column:repo_url;not null" json:"repo_url"`
	UserEmail   string    `gorm:"column:user_email" json:"user_email,omitempty"`
	Body        string    `gorm:"column:body;not null" json:"report"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Report) TableName() string { return "report" }

func (r *Report) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
