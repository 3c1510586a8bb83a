package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/autopilot-backend/internal/data/db"
	"github.com/yungbote/autopilot-backend/internal/data/repos"
	apphttp "github.com/yungbote/autopilot-backend/internal/http"
	"github.com/yungbote/autopilot-backend/internal/observability"
	"github.com/yungbote/autopilot-backend/internal/platform/cache"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    repos.Set
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics
	Server   *apphttp.Server

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New loads configuration and wires the whole service. The caller owns
// the returned logger through App.Close.
func New(ctx context.Context) (*App, error) {
	bootLog, err := logger.New("development")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := LoadConfig(bootLog)
	if err != nil {
		return nil, err
	}
	log := bootLog
	if cfg.Server.LogMode != "development" {
		if log, err = logger.New(cfg.Server.LogMode); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	if cfg.Server.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	theDB, err := db.Open(log, cfg.Database)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(theDB); err != nil {
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Telemetry.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Headers:     observability.ParseHeaders(cfg.Telemetry.Headers),
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	metrics := observability.Init(cfg.Telemetry.MetricsEnabled, cfg.Telemetry.ScrapeInterval)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	reposet := repos.New(theDB, log)
	serviceset, err := wireServices(log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close(log)
		log.Sync()
		return nil, err
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		Server:       wireServer(log, cfg, theDB, serviceset, clients, metrics),
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background collectors.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Metrics.StartDBCollector(ctx, a.Log, a.DB)
	if rdb := cache.Underlying(a.Clients.Cache); rdb != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, rdb)
	}
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Server.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(addr)
}

// Shutdown stops accepting requests, then cancels and waits for detached
// tasks so their outcomes are recorded.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if a.Services.Tasks != nil {
		if err := a.Services.Tasks.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("task shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close(a.Log)
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err.Error())
		}
		cancel()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
