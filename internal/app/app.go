package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	httpapi "github.com/yungbote/forfeit-backend/internal/http"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/observability"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *httpapi.Server
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, cfg.Otel)

	pg, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(log)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(log, cfg, reposet, clients)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	sqlDB, err := theDB.DB()
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres pool: %w", err)
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       wireServer(log, cfg, sqlDB, serviceset),
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background enforcement and reminder loops when enabled.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Cfg.RunLoops && a.Services.Orchestrator != nil {
		a.Services.Orchestrator.Start(ctx)
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(addr)
}

// Shutdown stops the HTTP listener and waits for in-flight requests.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return nil
	}
	return a.Server.Shutdown(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	var errs []error
	if a.pg != nil {
		errs = append(errs, a.pg.Close())
	}
	if a.otelShutdown != nil {
		errs = append(errs, a.otelShutdown(context.Background()))
	}
	if err := errors.Join(errs...); err != nil && a.Log != nil {
		a.Log.Warn("Shutdown finished with errors", "error", err)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
