// Package server assembles the bulletin service from configuration and runs
// its HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/api"
	"github.com/Menenkel/aibulletin/internal/bulletin"
	"github.com/Menenkel/aibulletin/internal/config"
	"github.com/Menenkel/aibulletin/internal/crawler"
	collyfetcher "github.com/Menenkel/aibulletin/internal/fetcher/colly"
	headlessfetcher "github.com/Menenkel/aibulletin/internal/fetcher/headless"
	"github.com/Menenkel/aibulletin/internal/headless/detector"
	"github.com/Menenkel/aibulletin/internal/metrics"
	"github.com/Menenkel/aibulletin/internal/pdf"
	"github.com/Menenkel/aibulletin/internal/policy/ratelimit"
	"github.com/Menenkel/aibulletin/internal/publisher"
	memorypublisher "github.com/Menenkel/aibulletin/internal/publisher/memory"
	gcppublisher "github.com/Menenkel/aibulletin/internal/publisher/pubsub"
	"github.com/Menenkel/aibulletin/internal/regions"
	"github.com/Menenkel/aibulletin/internal/storage"
	gcsstorage "github.com/Menenkel/aibulletin/internal/storage/gcs"
	localstorage "github.com/Menenkel/aibulletin/internal/storage/local"
	memorystorage "github.com/Menenkel/aibulletin/internal/storage/memory"
	pgstore "github.com/Menenkel/aibulletin/internal/storage/postgres"
	"github.com/Menenkel/aibulletin/internal/summarize"
)

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	apiServer    *api.Server
	service      *bulletin.Service
	orchestrator *crawler.Orchestrator
	keys         *bulletin.KeyManager
	settings     storage.SettingsStore
	gcsBlobs     *gcsstorage.BlobStore
	pgArchive    *pgstore.Archive
	pubsub       *gcppublisher.Publisher
	closeOnce    sync.Once
}

// Build creates the application's dependencies. The logger is owned by the
// caller.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("headless", cfg.Headless.Enabled),
	)
	metrics.Init()

	catalog, err := regions.Load(cfg.Regions.File)
	if err != nil {
		return nil, fmt.Errorf("regions init failed: %w", err)
	}

	blobs, err := setupBlobStore(ctx, app)
	if err != nil {
		return nil, err
	}
	if app.settings, err = setupSettings(app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	archive, err := setupArchive(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	pub, err := setupPublisher(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	app.orchestrator, err = setupCrawler(app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	app.keys = bulletin.NewKeyManager(app.settings, app.validateKey, logger.Named("keys"))
	if _, err := app.keys.Load(ctx, cfg.LLM.APIKey); err != nil {
		logger.Warn("stored api key unavailable", zap.Error(err))
	}

	app.service = bulletin.NewService(bulletin.Options{
		Crawler:         app.orchestrator,
		Keys:            app.keys,
		Settings:        app.settings,
		Regions:         catalog,
		NewSummarizer:   app.newSummarizer,
		DevSummarizer:   summarize.Mock{Delay: time.Duration(cfg.LLM.MockDelayMs) * time.Millisecond},
		Blobs:           blobs,
		Archive:         archive,
		Publisher:       pub,
		Topic:           cfg.PubSub.TopicName,
		DefaultMaxDepth: cfg.Crawler.MaxDepthDefault,
		Logger:          logger.Named("bulletin"),
	})

	app.apiServer = api.NewServer(api.Deps{
		Bulletins: app.service,
		Keys:      app.keys,
		Settings:  app.settings,
		Archive:   archive,
		Regions:   catalog,
		Logger:    logger.Named("api"),
	}, *cfg)
	return app, nil
}

// Handler exposes the HTTP routes.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Service exposes the bulletin service for one-shot commands.
func (a *App) Service() *bulletin.Service {
	return a.service
}

// Orchestrator exposes the batch crawler for one-shot commands.
func (a *App) Orchestrator() *crawler.Orchestrator {
	return a.orchestrator
}

// Keys exposes the API key manager.
func (a *App) Keys() *bulletin.KeyManager {
	return a.keys
}

// Run starts the HTTP server and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases external clients. Run closes the app on shutdown; later
// calls are no-ops.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.closeInfrastructure()
		a.logger.Info("shutdown complete")
	})
}

func (a *App) closeInfrastructure() {
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsBlobs != nil {
		if err := a.gcsBlobs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgArchive != nil {
		a.pgArchive.Close()
	}
}

func (a *App) summarizerOptions(key string) summarize.Options {
	llm := a.cfg.LLM
	return summarize.Options{
		APIKey:      key,
		BaseURL:     llm.BaseURL,
		Model:       llm.Model,
		MaxTokens:   llm.MaxTokens,
		Temperature: llm.Temperature,
		MaxRetries:  llm.MaxRetries,
		Timeout:     time.Duration(llm.TimeoutSec) * time.Second,
		Logger:      a.logger.Named("summarize"),
	}
}

func (a *App) newSummarizer(key string) summarize.Summarizer {
	return summarize.NewOpenAI(a.summarizerOptions(key))
}

func (a *App) validateKey(ctx context.Context, key string) error {
	return summarize.NewOpenAI(a.summarizerOptions(key)).Ping(ctx)
}

func setupBlobStore(ctx context.Context, app *App) (storage.BlobStore, error) {
	cfg := app.cfg.Storage
	switch cfg.Backend {
	case "gcs":
		blobs, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Prefix})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.gcsBlobs = blobs
		app.logger.Info("using GCS corpus storage", zap.String("bucket", cfg.GCSBucket))
		return blobs, nil
	case "local":
		blobs, err := localstorage.New(localstorage.Config{BaseDir: filepath.Join(cfg.DataDir, cfg.Prefix)})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("using local corpus storage", zap.String("path", filepath.Join(cfg.DataDir, cfg.Prefix)))
		return blobs, nil
	default:
		app.logger.Info("using in-memory corpus storage")
		return memorystorage.NewBlobStore(), nil
	}
}

// setupSettings keeps operator settings on disk for every backend except
// memory, so keys and history survive restarts even when corpora go to GCS.
func setupSettings(app *App) (storage.SettingsStore, error) {
	cfg := app.cfg.Storage
	if cfg.Backend == "memory" {
		return memorystorage.NewSettingsStore(cfg.HistoryLimit), nil
	}
	settings, err := localstorage.NewSettingsStore(localstorage.Config{BaseDir: cfg.DataDir}, cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("settings store init failed: %w", err)
	}
	return settings, nil
}

func setupArchive(ctx context.Context, app *App) (storage.Archive, error) {
	db := app.cfg.DB
	if db.DSN == "" {
		app.logger.Warn("no database DSN configured, archiving bulletins in memory")
		return memorystorage.NewArchive(), nil
	}
	archive, err := pgstore.NewArchive(ctx, pgstore.ArchiveConfig{
		DSN:      db.DSN,
		Table:    db.Table,
		MaxConns: int32(db.MaxOpenConns), //nolint:gosec // validated small value
	})
	if err != nil {
		return nil, fmt.Errorf("bulletin archive init failed: %w", err)
	}
	app.pgArchive = archive
	if err := archive.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("bulletin archive schema: %w", err)
	}
	app.logger.Info("bulletin archive initialized", zap.String("table", db.Table))
	return archive, nil
}

func setupPublisher(ctx context.Context, app *App) (publisher.Publisher, error) {
	ps := app.cfg.PubSub
	if ps.TopicName == "" || ps.ProjectID == "" {
		app.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	pub, err := gcppublisher.Open(ctx, ps.ProjectID, ps.TopicName)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.pubsub = pub
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", ps.ProjectID),
		zap.String("topic", ps.TopicName),
	)
	return pub, nil
}

func setupCrawler(app *App) (*crawler.Orchestrator, error) {
	cfg := app.cfg
	scope, err := crawler.ParseScope(cfg.Crawler.LinkScope)
	if err != nil {
		return nil, fmt.Errorf("crawler scope: %w", err)
	}

	var limiter *ratelimit.Limiter
	if cfg.Crawler.DomainRPS > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Crawler.DomainRPS,
			DefaultBurst: cfg.Crawler.DomainBurst,
		})
		app.logger.Info("rate limiter enabled",
			zap.Float64("domain_rps", cfg.Crawler.DomainRPS),
			zap.Int("domain_burst", cfg.Crawler.DomainBurst),
		)
	}

	pdfOpts := pdf.Options{
		Timeout:   cfg.PDFTimeout(),
		UserAgent: cfg.Crawler.UserAgent,
		TempDir:   cfg.PDF.TempDir,
		Retry: pdf.NewExponentialRetryPolicy(
			cfg.PDF.MaxRetries,
			time.Duration(cfg.PDF.BackoffInitialMs)*time.Millisecond,
			time.Duration(cfg.PDF.BackoffMaxMs)*time.Millisecond,
		),
		Logger: app.logger.Named("pdf"),
	}
	engineOpts := crawler.EngineOptions{
		Filter:      crawler.LinkFilter{Scope: scope, MaxPerPage: cfg.Crawler.FanOut},
		PageTimeout: cfg.PageTimeout(),
		Logger:      app.logger.Named("engine"),
	}
	if limiter != nil {
		pdfOpts.Limiter = limiter
		engineOpts.Limiter = limiter
	}
	engineOpts.PDF = pdf.NewExtractor(pdfOpts)

	return crawler.NewOrchestrator(crawler.OrchestratorOptions{
		Engine:   crawler.NewEngine(engineOpts),
		Renderer: setupRenderer(app),
		Limits: crawler.Limits{
			SubLinkChars: cfg.Corpus.SubLinkChars,
			SourceChars:  cfg.Corpus.SourceChars,
			CorpusChars:  cfg.Corpus.MaxChars,
		},
		FanOut: cfg.Crawler.FanOut,
		Logger: app.logger.Named("batch"),
	}), nil
}

func setupRenderer(app *App) crawler.Renderer {
	cfg := app.cfg
	static := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: !cfg.Crawler.IgnoreRobots,
		ClientTimeout: cfg.PageTimeout(),
	}, app.logger.Named("colly"))
	if !cfg.Headless.Enabled {
		app.logger.Info("headless rendering disabled, using static colly renderer",
			zap.String("user_agent", cfg.Crawler.UserAgent))
		return static
	}

	headless := headlessfetcher.NewRenderer(headlessfetcher.Config{
		ExecPath:       cfg.Headless.ExecPath,
		UserAgent:      cfg.Crawler.UserAgent,
		NetworkIdle:    time.Duration(cfg.Headless.NetworkIdleMs) * time.Millisecond,
		EvalTimeout:    time.Duration(cfg.Headless.EvalTimeoutSec) * time.Second,
		DisableSandbox: cfg.Headless.DisableSandbox,
		WindowWidth:    cfg.Headless.WindowWidth,
		WindowHeight:   cfg.Headless.WindowHeight,
		BlockMedia:     cfg.Headless.BlockMediaTypes,
	}, app.logger.Named("headless"))
	if cfg.Headless.Mode == "auto" {
		app.logger.Info("using colly renderer with headless promotion",
			zap.Int("promote_min_bytes", cfg.Headless.PromoteMinBytes))
		return detector.NewRenderer(static, headless,
			detector.NewHeuristic(cfg.Headless.PromoteMinBytes), app.logger.Named("promote"))
	}
	app.logger.Info("using headless chrome renderer", zap.String("exec_path", cfg.Headless.ExecPath))
	return headless
}
