package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"promptscan-backend/internal/export"
	"promptscan-backend/internal/jobs"
	"promptscan-backend/internal/llm"
	"promptscan-backend/internal/llm/providers"
	"promptscan-backend/internal/queue"
	"promptscan-backend/internal/runs"
	"promptscan-backend/internal/services/health"
	"promptscan-backend/internal/sessions"
	"promptscan-backend/internal/shared/config"
	"promptscan-backend/internal/shared/server"
	"promptscan-backend/internal/shared/server/middleware"
	"promptscan-backend/internal/shared/storage/db"
	"promptscan-backend/internal/shared/storage/object"
	localstore "promptscan-backend/internal/shared/storage/object/local"
	s3store "promptscan-backend/internal/shared/storage/object/s3"
	"promptscan-backend/internal/shared/telemetry"
	"promptscan-backend/internal/stream"
)

// App holds shared dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Queue    queue.Client
	Provider llm.Provider
	Options  llm.Options

	Manual *sessions.Manager
	Batch  *sessions.Manager
	Hub    *stream.Hub

	ExportsService *export.Service
	JobsService    *jobs.Service
	HealthService  *health.Service
}

// Build prepares shared dependencies and the router. Call Start before
// serving so live events reach stream clients.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if cfg.LogLevel != "" {
		telemetry.SetLevel(cfg.LogLevel)
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	provider, opts, err := providers.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		Queue:    queueClient,
		Provider: provider,
		Options:  opts,
		Hub:      stream.NewHub(),
	}
	buildServices(app)

	managers := map[string]*sessions.Manager{
		sessions.LaneManual: app.Manual,
		sessions.LaneBatch:  app.Batch,
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:  cfg,
		Health:  app.HealthService,
		Runs:    runs.NewHandler(app.Manual, app.Batch, app.ExportsService),
		Exports: export.NewHandler(app.ExportsService),
		Jobs:    jobs.NewHandler(app.JobsService),
		Stream:  stream.NewHandler(app.Hub, managers, middleware.OriginAllowed(cfg.CORSAllowOrigin)),
	})

	return app, nil
}

// Start runs the stream hub until ctx ends and forwards lane events to it.
func (a *App) Start(ctx context.Context) {
	unsubManual := a.Manual.Subscribe(a.Hub.Publish)
	unsubBatch := a.Batch.Subscribe(a.Hub.Publish)
	go func() {
		a.Hub.Run(ctx)
		unsubManual()
		unsubBatch()
	}()
}

// Close releases the database pool.
func (a *App) Close() error {
	a.Manual.Reset()
	a.Batch.Reset()
	if a.DB != nil && !db.IsLambdaRuntime() {
		return a.DB.Close()
	}
	return nil
}

func buildServices(app *App) {
	var exportRepo export.Repo
	var jobRepo jobs.Repo
	if app.DB != nil {
		exportRepo = &export.PGRepo{DB: app.DB}
		jobRepo = &jobs.PGRepo{DB: app.DB}
	} else {
		exportRepo = export.NewMemoryRepo()
		jobRepo = jobs.NewMemoryRepo()
	}

	app.Manual = sessions.NewManager(sessions.LaneManual, newScheduler(app))
	app.Batch = sessions.NewManager(sessions.LaneBatch, newScheduler(app))

	app.ExportsService = &export.Service{Repo: exportRepo, Store: app.Store}
	app.JobsService = &jobs.Service{
		Repo:      jobRepo,
		Store:     app.Store,
		Queue:     app.Queue,
		Scheduler: newScheduler(app),
		Exports:   app.ExportsService,
	}
	app.HealthService = &health.Service{
		DB:          app.DB,
		ObjectStore: app.Config.ObjectStoreType,
		LLMProvider: app.Config.LLMProvider,
		BatchQueue:  app.Queue != nil,
	}
}

func newScheduler(app *App) *sessions.Scheduler {
	sch := sessions.NewScheduler(app.Provider, app.Options)
	if app.Config.PromptDelay >= 0 {
		sch.Delay = app.Config.PromptDelay
	}
	return sch
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		telemetry.Info("bootstrap.database", map[string]any{"mode": "memory", "reason": "DATABASE_URL empty"})
		return nil, nil
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database", map[string]any{"mode": "memory", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.BatchQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.BatchQueueURL)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
