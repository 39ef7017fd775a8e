package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/semmidev/stowage/internal/adapter/compressor"
	"github.com/semmidev/stowage/internal/adapter/finder"
	"github.com/semmidev/stowage/internal/adapter/notifier"
	"github.com/semmidev/stowage/internal/adapter/storage"
	"github.com/semmidev/stowage/internal/config"
	"github.com/semmidev/stowage/internal/domain"
	"github.com/semmidev/stowage/internal/infrastructure/logger"
	"github.com/semmidev/stowage/internal/infrastructure/progress"
	"github.com/semmidev/stowage/internal/infrastructure/scheduler"
	"github.com/semmidev/stowage/internal/usecase"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	store     storage.Store
	uploadUC  *usecase.Upload
	fetchUC   *usecase.Fetch
	deleteUC  *usecase.Delete
	scheduler *scheduler.Scheduler
}

type options struct {
	progressOut io.Writer
	logger      *logger.Logger
}

type Option func(*options)

// WithProgressOutput redirects the progress bar, stderr by default.
func WithProgressOutput(w io.Writer) Option {
	return func(o *options) { o.progressOut = w }
}

// WithLogger replaces the logger built from the config.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{progressOut: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		var err error
		log, err = logger.New(cfg.App.LogLevel, cfg.App.LogFile, cfg.App.Debug)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	log.Infof("Starting %s", cfg.App.Name)
	showConfig(cfg, log)

	store, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Backend, err)
	}
	log.Infof("✓ %s storage ready (bucket: %s)", cfg.Storage.Backend, bucketName(cfg))

	task := usecase.NewUploadTask(store, compressor.NewGzip(), usecase.UploadTaskOptions{
		Base:           cfg.Upload.Base,
		KeyPrefix:      cfg.Upload.KeyPrefix,
		Expiry:         cfg.Upload.CredentialExpiry,
		AllowOverwrite: cfg.Upload.Overrides,
		GzipExtensions: cfg.Upload.GzipExtensions,
	})

	var bar usecase.Progress = progress.NewBar(o.progressOut, "upload")
	if cfg.App.Debug {
		bar = progress.Nop{}
	}

	uploadOpts := []usecase.UploadOption{}
	if cfg.Upload.ReportKey != "" {
		uploadOpts = append(uploadOpts, usecase.WithReportPublisher(store, cfg.Upload.ReportKey))
	}
	if cfg.Notify.Telegram.Enabled {
		tg, err := notifier.NewTelegram(&cfg.Notify.Telegram)
		if err != nil {
			log.Errorf("Failed to initialize Telegram: %v", err)
		} else {
			uploadOpts = append(uploadOpts, usecase.WithNotifier(tg, cfg.App.Name, bucketName(cfg)))
			log.Infof("✓ Telegram notifications enabled")
		}
	}

	uploadUC := usecase.NewUpload(
		finder.NewGlob(cfg.Upload.Cwd, cfg.Upload.Glob, cfg.Upload.GlobIgnore),
		usecase.NewScheduler(task, cfg.Upload.ParallelCount, bar, log),
		log,
		cfg.Upload.Output,
		uploadOpts...,
	)

	return &App{
		config:   cfg,
		logger:   log,
		store:    store,
		uploadUC: uploadUC,
		fetchUC:  usecase.NewFetch(store, log, cfg.Fetch.PageSize, cfg.Fetch.Output),
		deleteUC: usecase.NewDelete(store, log, cfg.Delete.BatchSize, cfg.Delete.Input, cfg.Delete.Output),
	}, nil
}

func bucketName(cfg *config.Config) string {
	if cfg.Storage.Backend == config.BackendLocal {
		return storage.LocalBucket
	}
	return cfg.Storage.Bucket
}

func showConfig(cfg *config.Config, log *logger.Logger) {
	log.Infof("Storage: backend=%s region=%s bucket=%s endpoint=%s",
		cfg.Storage.Backend, cfg.Storage.Region, bucketName(cfg), cfg.Storage.Endpoint)
	log.Infof("Credentials: access_key=%s secret_key=%s",
		config.Masked(cfg.Storage.AccessKey), config.Masked(cfg.Storage.SecretKey))
	log.Infof("Upload: cwd=%s base=%s prefix=%q glob=%s ignore=%v overrides=%t parallel=%d",
		cfg.Upload.Cwd, cfg.Upload.Base, cfg.Upload.KeyPrefix, cfg.Upload.Glob,
		cfg.Upload.GlobIgnore, cfg.Upload.Overrides, cfg.Upload.ParallelCount)
	log.Debugf("Artifacts: upload=%s fetch=%s delete=%s",
		cfg.Upload.Output, cfg.Fetch.Output, cfg.Delete.Output)
}

func (a *App) Upload(ctx context.Context) (domain.RunStats, error) {
	return a.uploadUC.Execute(ctx)
}

// Fetch lists prefix, or the configured prefix when it is empty.
func (a *App) Fetch(ctx context.Context, prefix string) ([]string, error) {
	if prefix == "" {
		prefix = a.config.Fetch.Prefix
	}
	return a.fetchUC.Execute(ctx, prefix)
}

// Delete runs the batch delete. A missing key list is reported and the
// operation skipped.
func (a *App) Delete(ctx context.Context) error {
	_, err := a.deleteUC.Execute(ctx)
	if errors.Is(err, domain.ErrKeyListMissing) {
		a.logger.Errorf("%v", err)
		return nil
	}
	return err
}

// RunScheduled runs an upload on every tick of spec until ctx is done.
func (a *App) RunScheduled(ctx context.Context, spec string) error {
	a.scheduler = scheduler.New(ctx, func(err error) {
		a.logger.Errorf("Scheduled upload failed: %v", err)
	})

	if err := a.scheduler.AddJob(spec, func(ctx context.Context) error {
		a.logger.Infof("=== Triggered scheduled upload ===")
		_, err := a.uploadUC.Execute(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("failed to schedule upload: %w", err)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started: %s", spec)

	<-ctx.Done()
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	a.logger.Close()
}

func (a *App) Config() *config.Config {
	return a.config
}
