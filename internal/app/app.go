package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/threadchat-backend/internal/data/db"
	"github.com/yungbote/threadchat-backend/internal/data/repos"
	"github.com/yungbote/threadchat-backend/internal/http"
	"github.com/yungbote/threadchat-backend/internal/observability"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
	"github.com/yungbote/threadchat-backend/internal/realtime"
	"github.com/yungbote/threadchat-backend/internal/realtime/bus"
)

const shutdownGrace = 5 * time.Second

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *db.Service
	Repos    repos.Repos
	Services Services
	SSEHub   *realtime.SSEHub
	Bus      bus.Bus
	Router   *gin.Engine
	Server   *http.Server

	shutdownOtel func(context.Context) error
}

// New builds the whole object graph once. Nothing here reads configuration
// after this point.
func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.LogMode == "production" || cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	a := &App{Log: log, Cfg: cfg}
	a.shutdownOtel = observability.InitOTel(ctx, log, cfg.TracingConfig())

	log.Info("Opening database...", "driver", cfg.DB.Driver)
	a.DB, err = db.Open(cfg.DatabaseConfig(), log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := a.DB.Migrate(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	secrets, err := newSecrets(ctx, cfg.Engine)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init paramstore: %w", err)
	}
	eng, err := newEngine(ctx, cfg.Engine, secrets, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}

	a.Bus, err = wireBus(ctx, cfg.Realtime, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init realtime bus: %w", err)
	}
	a.SSEHub = realtime.NewSSEHub(log)

	a.Repos = repos.New(a.DB.DB(), log)
	a.Services = wireServices(log, cfg, a.Repos, eng, a.Bus)
	handlers := wireHandlers(log, cfg, a.DB.DB(), a.Services, a.SSEHub)
	a.Router = wireRouter(log, cfg, handlers)
	a.Server = http.NewServer(log, cfg.HTTP.Addr, cfg.HTTP.ShutdownTimeout, a.Router)
	a.Server.OnShutdown(a.SSEHub.Shutdown)
	return a, nil
}

// Run serves HTTP and forwards bus events to the hub until ctx ends or
// either side fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return errors.New("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Bus.StartForwarder(gctx, a.SSEHub.Broadcast)
	})
	g.Go(func() error {
		return a.Server.Run(gctx)
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Log.Warn("Realtime bus close failed", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("Database close failed", "error", err)
		}
	}
	if a.shutdownOtel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := a.shutdownOtel(ctx); err != nil {
			a.Log.Warn("Tracer shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}
