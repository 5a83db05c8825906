package main

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/narwhalmedia/simulcast/internal/archive"
	"github.com/narwhalmedia/simulcast/internal/catalog/grouping"
	"github.com/narwhalmedia/simulcast/internal/catalog/repository"
	"github.com/narwhalmedia/simulcast/internal/catalog/rules"
	"github.com/narwhalmedia/simulcast/internal/catalog/service"
	"github.com/narwhalmedia/simulcast/internal/catalog/simulcast"
	"github.com/narwhalmedia/simulcast/internal/ingestion"
	"github.com/narwhalmedia/simulcast/internal/notify"
	"github.com/narwhalmedia/simulcast/internal/notify/kafka"
	natsnotify "github.com/narwhalmedia/simulcast/internal/notify/nats"
	"github.com/narwhalmedia/simulcast/internal/platform"
	"github.com/narwhalmedia/simulcast/pkg/config"
	"github.com/narwhalmedia/simulcast/pkg/database"
	"github.com/narwhalmedia/simulcast/pkg/events"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/logger"
	"github.com/narwhalmedia/simulcast/pkg/utils"
)

// app holds every wired component of one process.
type app struct {
	cfg    *config.Config
	logger *logger.ZapLogger
	db     *gorm.DB
	repo   repository.Repository
	cache  *utils.InMemoryCache
	bus    *events.InMemoryEventBus
	nats   *natsnotify.Client

	registry   *platform.Registry
	classifier *simulcast.Classifier
	ingest     *service.IngestService
	admin      *service.AdminService
	query      *service.QueryService
	job        *ingestion.Job

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	log, err := cfg.Logger.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	a := &app{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	a.closers = append(a.closers, func() error {
		_ = log.Sync()
		return nil
	})

	log.Info("Connecting to database", interfaces.String("driver", cfg.Database.Driver))
	a.db, err = database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	db := a.db
	a.closers = append(a.closers, func() error { return database.Close(db) })
	a.repo = repository.NewGormRepository(a.db)

	a.cache = utils.NewInMemoryCacheWithCleanup(cfg.Catalog.ReadCacheTTL)
	a.closers = append(a.closers, func() error {
		a.cache.Close()
		return nil
	})

	a.bus = events.NewInMemoryEventBus(log)
	if err := a.bus.Subscribe(events.CatalogChangedEventType, service.NewCacheInvalidator(a.cache, log)); err != nil {
		return nil, err
	}

	publisher, err := a.newPublisher()
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)

	var archiver service.Archiver
	if cfg.Archive.Enabled {
		client, err := archive.NewS3Client(ctx, cfg.Archive)
		if err != nil {
			return nil, err
		}
		archiver = archive.NewS3Archiver(client, cfg.Archive.Bucket, cfg.Archive.Prefix, log)
	}

	a.registry, err = platform.NewRegistry(cfg.Platforms, platform.RetryPolicyFromConfig(cfg.Ingestion), log)
	if err != nil {
		return nil, err
	}

	builder := grouping.NewBuilder(a.repo, cfg.Catalog.GroupingWindow, log)
	a.classifier = simulcast.NewClassifier(a.repo, cfg.Catalog.SimulcastRange(), log)
	a.ingest = service.NewIngestService(a.repo, rules.NewStore(a.repo, log), archiver, a.bus, cfg.Catalog, log)
	a.admin = service.NewAdminService(a.repo, a.classifier, a.bus, log)
	a.query = service.NewQueryService(a.repo, builder, a.cache, cfg.Catalog.ReadCacheTTL, log)
	a.job = ingestion.NewJob(a.repo, a.registry, a.ingest, a.classifier, builder,
		notify.NewService(publisher, log), cfg.Ingestion, cfg.Catalog, log)

	return a, nil
}

// newPublisher connects the configured notification backend. With NATS the catalog
// change events are relayed to JetStream as well.
func (a *app) newPublisher() (notify.Publisher, error) {
	switch a.cfg.Notify.Backend {
	case "nats":
		client, cleanup, err := natsnotify.NewClient(a.cfg.Notify.NATS, a.logger.Zap())
		if err != nil {
			return nil, err
		}
		a.nats = client
		a.closers = append(a.closers, func() error {
			cleanup()
			return nil
		})
		if err := a.bus.Subscribe(events.CatalogChangedEventType, natsnotify.NewCatalogRelay(client, a.logger.Zap())); err != nil {
			return nil, err
		}
		return natsnotify.NewPublisher(client, a.logger.Zap()), nil
	case "kafka":
		return kafka.NewPublisher(a.cfg.Notify.Kafka.Brokers, a.cfg.Notify.Kafka.Topic)
	default:
		return notify.NewLogPublisher(a.logger), nil
	}
}

func (a *app) migrate() error {
	return database.RunMigrations(a.db, a.logger)
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
