package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/autopilot-backend/internal/data/db"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "migrate",
		Short:         "Apply database migrations and exit",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			theDB, err := db.Open(log, cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			if sqlDB, err := theDB.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := db.AutoMigrateAll(theDB); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", cfg.Database.Driver)
			return nil
		},
	}
}
