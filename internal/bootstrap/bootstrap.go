// Package bootstrap wires configuration, infrastructure and services shared by
// the API server and the registryctl CLI.
package bootstrap

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/events"
	"github.com/noah-isme/registrar-api/internal/repository"
	"github.com/noah-isme/registrar-api/internal/service"
	"github.com/noah-isme/registrar-api/pkg/cache"
	"github.com/noah-isme/registrar-api/pkg/config"
	"github.com/noah-isme/registrar-api/pkg/database"
	"github.com/noah-isme/registrar-api/pkg/storage"
)

// App holds the wired dependency graph.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	Metrics     *service.MetricsService
	Hub         *events.Hub
	Store       *repository.RegistryStore
	Cache       *service.CacheService
	Registry    *service.Registry
	Students    *service.StudentService
	Courses     *service.CourseService
	Enrollments *service.EnrollmentService
	Exports     *service.ExportService
	Imports     *service.ImportService
}

// New connects to PostgreSQL (required) and Redis (optional; the cache is
// disabled when it is unreachable) and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger, DB: db}

	cacheEnabled := cfg.Cache.Enabled
	if cacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, collection cache disabled", zap.Error(err))
			cacheEnabled = false
		} else {
			app.Redis = client
		}
	}

	app.Metrics = service.NewMetricsService()
	app.Hub = events.NewHub(logger)
	app.Metrics.WatchSubscribers(app.Hub.Subscribers)
	app.Store = repository.NewRegistryStore(db, logger, app.Metrics)
	app.Cache = service.NewCacheService(repository.NewCacheRepository(app.Redis, logger), app.Metrics, cfg.Cache.TTL, logger, cacheEnabled)
	app.Registry = service.NewRegistry(app.Store, app.Cache, app.Hub, app.Metrics, service.ListLimits{
		DefaultPageSize: cfg.List.DefaultPageSize,
		MaxPageSize:     cfg.List.MaxPageSize,
	}, logger)

	validate := validator.New()
	app.Students = service.NewStudentService(app.Registry, validate, logger)
	app.Courses = service.NewCourseService(app.Registry, validate, logger)
	app.Enrollments = service.NewEnrollmentService(app.Registry, validate, logger)
	app.Imports = service.NewImportService(app.Students, app.Courses, app.Enrollments, app.Metrics, cfg.Import.MaxBytes, logger)

	exportCfg := service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL}
	local, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logger.Warn("export storage unavailable, stored exports disabled", zap.Error(err))
		app.Exports = service.NewExportService(app.Registry, nil, nil, exportCfg, logger)
	} else {
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		app.Exports = service.NewExportService(app.Registry, local, signer, exportCfg, logger)
	}

	return app, nil
}

// Close releases connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
