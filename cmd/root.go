// Package cmd defines and implements the CLI commands for the aibulletin executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/bulletin"
	"github.com/Menenkel/aibulletin/internal/config"
	"github.com/Menenkel/aibulletin/internal/crawler"
	"github.com/Menenkel/aibulletin/internal/logging"
	"github.com/Menenkel/aibulletin/internal/server"
)

var cfgFile string

// sessionKeyType is the key for storing the session in the context.
type sessionKeyType string

const sessionKey sessionKeyType = "session"

// Crawler runs a crawl batch without summarizing it.
type Crawler interface {
	CrawlAndAggregate(ctx context.Context, urls []string, followLinks bool, maxDepth int) (crawler.Result, error)
}

// Analyzer runs the full crawl and summarize pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, req bulletin.Request) (bulletin.Response, error)
}

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close()
	Run(ctx context.Context) error
	Crawler() Crawler
	Analyzer() Analyzer
}

type session struct {
	app    App
	cfg    config.Config
	logger *zap.Logger
}

type serverApp struct {
	*server.App
}

func (a serverApp) Crawler() Crawler   { return a.Orchestrator() }
func (a serverApp) Analyzer() Analyzer { return a.Service() }

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (App, error) {
	app, err := server.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return serverApp{App: app}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aibulletin",
		Short: "Crawls drought sources and writes regional bulletins.",
		Long: `aibulletin gathers text from drought monitoring web pages and PDF reports,
following same-site links to a bounded depth, and asks a language model to
turn the combined corpus into a regional drought bulletin.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Builds the application once flags are parsed and before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), &cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), sessionKey, &session{app: appInstance, cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if s, err := resolveSession(cmd.Context()); err == nil {
				s.app.Close()
				_ = s.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML); environment variables use the BULLETIN_ prefix")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())

	return cmd
}

func resolveSession(ctx context.Context) (*session, error) {
	if ctx == nil {
		return nil, errors.New("application services not initialized")
	}
	s, ok := ctx.Value(sessionKey).(*session)
	if !ok || s == nil || s.app == nil {
		return nil, errors.New("application services not initialized")
	}
	return s, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
