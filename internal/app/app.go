package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"licman/internal/cache"
	"licman/internal/config"
	"licman/internal/infrastructure"
	"licman/internal/license"
	"licman/internal/middleware"
	"licman/internal/services"
	"licman/internal/store"
	transport "licman/internal/transport/http"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Application is the composed process: engine, services, scheduler, and
// the HTTP server around them.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	KV      store.KV
	Cache   cache.Cache
	Manager *license.Manager

	LicenseService services.LicenseService
	HealthService  services.HealthService
	Gate           *middleware.LicenseGate

	scheduler *license.Scheduler
	server    *http.Server
}

// New builds the application from configuration.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig builds the application from an already loaded config.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("version", Version),
		slog.String("store_path", cfg.License.StorePath))

	otelProviders, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	metrics, err := license.NewMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to register license metrics: %w", err)
	}

	kv, err := store.NewFileKV(cfg.License.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	c := cache.New(time.Minute)
	manager := license.NewManager(cfg.License, kv, c, logger, metrics)

	app := &Application{
		Config:         cfg,
		Logger:         logger,
		OTelProviders:  otelProviders,
		KV:             kv,
		Cache:          c,
		Manager:        manager,
		LicenseService: services.NewLicenseService(manager, logger),
		HealthService:  services.NewHealthService(manager, Version),
		Gate:           middleware.NewLicenseGate(manager, logger),
		scheduler:      license.NewScheduler(manager, cfg.License.PullInterval, logger),
	}

	router := transport.NewRouter(transport.RouterDeps{
		LicenseService: app.LicenseService,
		HealthService:  app.HealthService,
		Gate:           app.Gate,
		MetricsHandler: otelProviders.PrometheusHTTP,
		Logger:         logger,
	})

	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

// Run starts the scheduler and HTTP server and blocks until SIGINT or
// SIGTERM, then shuts down gracefully.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.scheduler.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("http server shutdown failed", slog.String("error", err.Error()))
	}
	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("metrics shutdown failed", slog.String("error", err.Error()))
	}
	infrastructure.CloseLogFile()

	return nil
}
