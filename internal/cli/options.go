package cli

import (
	"fmt"
	"os"

	"github.com/yungbote/autopilot-backend/internal/app"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

// apply pushes flag overrides into the environment so app.LoadConfig sees
// them the same way it sees deployment variables.
func (o *RootOptions) apply() error {
	if o.ConfigFile != "" {
		if err := os.Setenv(app.ConfigFileEnv, o.ConfigFile); err != nil {
			return fmt.Errorf("set config file: %w", err)
		}
	}
	if o.LogMode != "" {
		if err := os.Setenv("LOG_MODE", o.LogMode); err != nil {
			return fmt.Errorf("set log mode: %w", err)
		}
	}
	return nil
}

// loadConfig is used by the commands that do not need the full app.
func loadConfig() (app.Config, *logger.Logger, error) {
	mode := os.Getenv("LOG_MODE")
	if mode == "" {
		mode = "development"
	}
	log, err := logger.New(mode)
	if err != nil {
		return app.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := app.LoadConfig(log)
	if err != nil {
		log.Sync()
		return app.Config{}, nil, err
	}
	return cfg, log, nil
}
