package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"effectharvest/internal/adapters/catalog"
	"effectharvest/internal/adapters/downloader"
	"effectharvest/internal/adapters/localstorage"
	"effectharvest/internal/adapters/sqliteindex"
	"effectharvest/internal/config"
	"effectharvest/internal/core/domain"
	"effectharvest/internal/logging"
	"effectharvest/internal/service"
	"effectharvest/internal/textutil"
)

type commandContext struct {
	configFlag        *string
	logLevelFlag      *string
	minResolutionFlag *string
	workersFlag       *int

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, minResolutionFlag *string, workersFlag *int) *commandContext {
	return &commandContext{
		configFlag:        configFlag,
		logLevelFlag:      logLevelFlag,
		minResolutionFlag: minResolutionFlag,
		workersFlag:       workersFlag,
	}
}

// ensureConfig loads the configuration once and applies command-line overrides.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := c.applyOverrides(cfg); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) applyOverrides(cfg *config.Config) error {
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
	}
	if c.minResolutionFlag != nil && strings.TrimSpace(*c.minResolutionFlag) != "" {
		res, err := domain.ParseResolution(*c.minResolutionFlag)
		if err != nil {
			return fmt.Errorf("--min-resolution: %w", err)
		}
		cfg.Download.MinResolution = res.String()
	}
	if c.workersFlag != nil && *c.workersFlag != 0 {
		if *c.workersFlag < 0 {
			return fmt.Errorf("--workers must be positive, got %d", *c.workersFlag)
		}
		cfg.Download.MaxWorkers = *c.workersFlag
	}
	return nil
}

func (c *commandContext) logger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Console:    cmd.ErrOrStderr(),
	})
}

// app is the wired pipeline for one command invocation.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	lock         *flock.Flock
	index        *sqliteindex.Store
	orchestrator *service.Orchestrator
	progress     *progressReporter
}

// openApp takes the run lock and wires every adapter from the configuration.
func (c *commandContext) openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another effect-harvest run is active (lock %s)", cfg.LockPath())
	}

	index, err := sqliteindex.Open(ctx, cfg.IndexPath())
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	storage := localstorage.NewLocalStorage(afero.NewOsFs(), cfg.Paths.ResultsDir, cfg.Paths.VideoDir)
	store := service.NewResultStore(storage, index, logger)

	client := catalog.NewClient(catalog.Options{
		BaseURL: cfg.Catalog.BaseURL,
		Params:  cfg.Catalog.Params,
		Headers: cfg.Catalog.Headers,
		Cookies: cfg.Catalog.Cookies,
		Timeout: cfg.RequestTimeout(),
	}, nil)
	delay, jitter := cfg.PageDelay()
	paginator := service.NewPaginator(client, service.PaginatorOptions{
		Delay:    delay,
		Jitter:   jitter,
		Attempts: cfg.Catalog.FetchAttempts,
	}, logger)

	progress := newProgressReporter(cmd.ErrOrStderr())
	dl := downloader.NewHTTPDownloader(downloader.Options{
		Timeout:   cfg.DownloadTimeout(),
		UserAgent: cfg.Catalog.Headers["user-agent"],
		Referer:   cfg.Download.Referer,
	}, nil)
	scheduler := service.NewScheduler(dl, storage, logger,
		service.WithFileNamer(textutil.FileNamer(cfg.Download.ASCIIFileNames)),
		service.WithOutcomeHook(progress.observe),
	)

	orchestrator := service.NewOrchestrator(paginator, scheduler, store, service.OrchestratorOptions{
		Query:           cfg.Query,
		SaveFullResult:  cfg.Output.SaveFullResult,
		SaveDescriptors: cfg.Output.SaveVideoURLs,
		MinResolution:   cfg.MinResolution(),
		Workers:         cfg.Download.MaxWorkers,
		BeforeDownload:  progress.start,
	}, logger)

	return &app{
		cfg:          cfg,
		logger:       logger,
		lock:         lock,
		index:        index,
		orchestrator: orchestrator,
		progress:     progress,
	}, nil
}

func (a *app) Close() {
	a.progress.finish()
	if err := a.index.Close(); err != nil {
		a.logger.Warn("failed to close record index", "error", err)
	}
	if err := a.lock.Unlock(); err != nil {
		a.logger.Warn("failed to release run lock", "error", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
