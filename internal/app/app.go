package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-kpi/internal/dto"
	"github.com/noah-isme/enrollment-kpi/internal/handler"
	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/internal/repository"
	"github.com/noah-isme/enrollment-kpi/internal/service"
	"github.com/noah-isme/enrollment-kpi/internal/source"
	"github.com/noah-isme/enrollment-kpi/pkg/cache"
	"github.com/noah-isme/enrollment-kpi/pkg/config"
	"github.com/noah-isme/enrollment-kpi/pkg/database"
	"github.com/noah-isme/enrollment-kpi/pkg/jobs"
)

type studentStore interface {
	UpsertBatch(ctx context.Context, records []models.StudentRecord) error
	ListByYear(ctx context.Context, schoolYear string) ([]models.StudentRecord, error)
}

type snapshotStore interface {
	Save(ctx context.Context, snapshot *models.Snapshot) error
	CreateCountDay(ctx context.Context, snapshot *models.Snapshot) (bool, error)
	CountDay(ctx context.Context, schoolYear string) (*models.Snapshot, error)
	Latest(ctx context.Context, schoolYear string) (*models.Snapshot, error)
	DeleteUnlockedExcept(ctx context.Context, schoolYear, keepID string) (int64, error)
}

type timelineStore interface {
	ReplaceYear(ctx context.Context, schoolYear string, weeks []models.EnrollmentWeek) error
	ListByYear(ctx context.Context, schoolYear string) ([]models.EnrollmentWeek, error)
}

type configStore interface {
	GetSettings(ctx context.Context) (*models.AppSettings, error)
	SaveSettings(ctx context.Context, settings *models.AppSettings) error
	GetSources(ctx context.Context) (*models.SourceLayout, error)
	SaveSources(ctx context.Context, layout *models.SourceLayout) error
}

type stores struct {
	students  studentStore
	snapshots snapshotStore
	timeline  timelineStore
	config    configStore
	ping      func(ctx context.Context) error
	close     func(ctx context.Context) error
}

// App holds the wired services shared by the HTTP server and the CLI.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Metrics   *service.MetricsService
	Cache     *service.CacheService
	Settings  *service.SettingsService
	Sync      *service.SyncService
	Snapshots *service.SnapshotService
	Timeline  *service.TimelineService
	Pipeline  *service.PipelineService
	Dashboard *service.DashboardService
	Queue     *jobs.Queue

	checks    map[string]handler.ReadinessCheck
	cacheRepo *repository.CacheRepository
	stores    stores
}

// New connects the configured store and cache and builds every service.
// The sync queue is created but not started.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: service.NewMetricsService(),
		stores:  st,
		checks:  map[string]handler.ReadinessCheck{"store": st.ping},
	}

	var cacheBackend service.CacheRepository
	if cfg.Dashboard.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("dashboard cache unavailable, serving from store", zap.Error(err))
		} else {
			a.cacheRepo = repository.NewCacheRepository(client, "kpi", logger)
			cacheBackend = a.cacheRepo
			a.checks["cache"] = a.cacheRepo.Ping
		}
	}
	a.Cache = service.NewCacheService(cacheBackend, a.Metrics, cfg.Dashboard.CacheTTL, logger, cacheBackend != nil)

	a.Settings = service.NewSettingsService(service.SettingsServiceParams{
		Repo: st.config,
		FileLayout: func() (models.SourceLayout, bool, error) {
			return config.LoadSourceLayout(cfg.Source.BasesFile)
		},
		Logger: logger,
	})

	client := source.NewClient(source.ClientConfig{
		BaseURL:     cfg.Source.BaseURL,
		Token:       cfg.Source.Token,
		TimeZone:    cfg.Source.TimeZone,
		Locale:      cfg.Source.Locale,
		HTTPTimeout: cfg.Source.HTTPTimeout,
		Logger:      logger,
	})
	a.Sync = service.NewSyncService(service.SyncServiceParams{
		Source:   client,
		Layout:   a.Settings,
		Students: st.students,
		Metrics:  a.Metrics,
		Logger:   logger,
		Config: service.SyncServiceConfig{
			BatchSize:        cfg.Sync.BatchSize,
			YearlessFallback: cfg.Sync.YearlessFallback,
			OnlyBases:        cfg.Sync.OnlyBases,
		},
	})

	a.Snapshots = service.NewSnapshotService(service.SnapshotServiceParams{
		Students:  st.students,
		Snapshots: st.snapshots,
		Metrics:   a.Metrics,
		Logger:    logger,
		Location:  reportingLocation(cfg.Source.TimeZone, logger),
	})
	a.Timeline = service.NewTimelineService(st.students, st.timeline, logger)

	a.Pipeline = service.NewPipelineService(service.PipelineServiceParams{
		Sync:      a.Sync,
		Settings:  a.Settings,
		Snapshots: a.Snapshots,
		Timeline:  a.Timeline,
		Cache:     a.Cache,
		Logger:    logger,
	})

	a.Dashboard = service.NewDashboardService(service.DashboardServiceParams{
		Snapshots: st.snapshots,
		Timeline:  st.timeline,
		Settings:  a.Settings,
		Cache:     a.Cache,
		Logger:    logger,
		Config:    service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	a.Queue = jobs.NewQueue("sync", a.runSyncJob, jobs.QueueConfig{
		Workers:    cfg.Sync.QueueWorkers,
		MaxRetries: cfg.Sync.QueueRetries,
		RetryDelay: 30 * time.Second,
		Logger:     logger,
	})

	return a, nil
}

func (a *App) runSyncJob(ctx context.Context, job jobs.Job) (interface{}, error) {
	req, ok := job.Payload.(dto.SyncRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	return a.Pipeline.Run(ctx, req.SchoolYear, req.SkipMetrics)
}

// Close stops the queue and releases store and cache connections.
func (a *App) Close(ctx context.Context) error {
	if a.Queue != nil {
		a.Queue.Stop()
	}
	var errs []error
	if a.cacheRepo != nil {
		errs = append(errs, a.cacheRepo.Close())
	}
	if a.stores.close != nil {
		errs = append(errs, a.stores.close(ctx))
	}
	return errors.Join(errs...)
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, db, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return stores{}, err
		}
		if err := database.EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return stores{}, err
		}
		logger.Info("using document store", zap.String("database", cfg.Mongo.Database))
		return mongoStores(client, db, cfg.Sync.BatchSize), nil
	case config.StoreDriverPostgres, "":
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return stores{}, err
		}
		if err := database.MigratePostgres(ctx, db); err != nil {
			_ = db.Close()
			return stores{}, err
		}
		logger.Info("using relational store", zap.String("database", cfg.Database.Name))
		return postgresStores(db), nil
	default:
		return stores{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func postgresStores(db *sqlx.DB) stores {
	return stores{
		students:  repository.NewStudentRepository(db),
		snapshots: repository.NewSnapshotRepository(db),
		timeline:  repository.NewTimelineRepository(db),
		config:    repository.NewConfigurationRepository(db),
		ping:      db.PingContext,
		close:     func(context.Context) error { return db.Close() },
	}
}

func mongoStores(client *mongo.Client, db *mongo.Database, batchSize int) stores {
	return stores{
		students:  repository.NewMongoStudentRepository(db),
		snapshots: repository.NewMongoSnapshotRepository(db),
		timeline:  repository.NewMongoTimelineRepository(db, batchSize),
		config:    repository.NewMongoConfigurationRepository(db),
		ping:      func(ctx context.Context) error { return client.Ping(ctx, nil) },
		close:     client.Disconnect,
	}
}

func reportingLocation(name string, logger *zap.Logger) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown reporting time zone, using UTC", zap.String("timeZone", name), zap.Error(err))
		return time.UTC
	}
	return loc
}
