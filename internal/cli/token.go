package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/autopilot-backend/internal/services"
)

type tokenOptions struct {
	*RootOptions
	ttl time.Duration
}

// NewTokenCommand mints an operator bearer token for the protected routes.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "token <email>",
		Short:         "Issue an operator token signed with JWT_SECRET_KEY",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			auth := services.NewOperatorAuth(log, cfg.Server.JWTSecretKey)
			tok, err := auth.Issue(args[0], opts.ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().DurationVar(&opts.ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
