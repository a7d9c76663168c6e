package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"MovieHarvester/internal/catalog"
	"MovieHarvester/internal/config"
	"MovieHarvester/internal/domain"
	"MovieHarvester/internal/infrastructure/checkpoint"
	"MovieHarvester/internal/infrastructure/scheduler"
	"MovieHarvester/internal/infrastructure/storage"
	"MovieHarvester/internal/infrastructure/telegram"
	"MovieHarvester/internal/infrastructure/tmdb"
	"MovieHarvester/internal/logging"
	"MovieHarvester/internal/metrics"
	"MovieHarvester/internal/ports"
	"MovieHarvester/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	source     ports.CatalogSource
	store      ports.DatasetStore
	repository ports.RecordRepository
	notifier   ports.Notifier
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := catalog.NewRegistry()
	registry.Register("tmdb", tmdb.NewClient(cfg.Catalog, baseLogger.With("component", "catalog.tmdb")))

	source, err := registry.Resolve(cfg.Catalog.Provider)
	if err != nil {
		return nil, err
	}

	var repository ports.RecordRepository
	if cfg.Database.DSN != "" {
		db, err := storage.Open(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect record mirror: %w", err)
		}
		repository = storage.NewPostgresRepository(db)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	if cfg.Metrics.Addr != "" {
		metrics.Serve(cfg.Metrics.Addr)
	}

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		source:     source,
		store:      checkpoint.NewStore(cfg.Output),
		repository: repository,
		notifier:   notifier,
	}, nil
}

// Run performs a single harvest, or keeps re-running it on an interval in
// daemon mode.
func (a *Application) Run(ctx context.Context) error {
	if !a.cfg.Daemon.Enabled {
		return a.runOnce(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	driver := scheduler.NewIntervalScheduler(a.cfg.Daemon.Interval())
	job := func(time.Time) {
		if err := a.runOnce(ctx); err != nil {
			a.logger.Error("harvest run failed", "error", err)
			if errors.Is(err, domain.ErrUnauthorized) {
				cancel()
			}
		}
	}

	if err := driver.Start(ctx, job); err != nil {
		return err
	}
	<-ctx.Done()
	return driver.Stop(context.Background())
}

// runOnce resumes from the freshest existing snapshot and executes one
// harvest. A crashed run leaves its progress on the partial path, so that one
// is considered alongside the full snapshot.
func (a *Application) runOnce(ctx context.Context) error {
	logger := a.logger.With("component", "harvester", "run_id", uuid.NewString())

	loaded, err := checkpoint.LoadLatest(a.cfg.Output.FullPath, a.cfg.Output.PartialPath)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	harvester := usecase.NewHarvester(usecase.HarvesterDeps{
		Source:     a.source,
		Store:      a.store,
		Repository: a.repository,
		Notifier:   a.notifier,
		Harvest:    a.cfg.Harvest,
		Classifier: a.cfg.Classifier,
		Logger:     logger,
	})
	harvester.Resume(loaded)

	return harvester.Run(ctx)
}
