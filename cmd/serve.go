package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newServeCmd creates the 'serve' subcommand, which runs the HTTP API until
// SIGINT or SIGTERM.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the bulletin HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			s.logger.Info("serving", zap.Int("port", s.cfg.Server.Port))
			return s.app.Run(cmd.Context())
		},
	}
}
