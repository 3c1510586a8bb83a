package db

import (
	"fmt"

	types "github.com/yungbote/autopilot-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.Run{},
		&types.Artefact{},
		&types.Report{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
