package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-storeauth"
	"github.com/goliatone/go-storeauth/activitymap"
	"github.com/goliatone/go-storeauth/middleware/ratelimit"
	"github.com/goliatone/go-storeauth/repository"
)

type App struct {
	config  *Config
	logger  *glog.BaseLogger
	db      *bun.DB
	repo    *repository.Manager
	ledger  *auth.CachedLedger
	service *auth.Service
	srv     router.Server[*fiber.App]
	metrics *http.Server
	reg     *prometheus.Registry
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	app := &App{
		config: cfg,
		logger: newLogger(cfg.LogLevel),
		reg:    prometheus.NewRegistry(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, app); err != nil {
		app.GetLogger("app").Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *glog.BaseLogger {
	lvl := glog.Info
	switch level {
	case "trace":
		lvl = glog.Trace
	case "debug":
		lvl = glog.Debug
	case "warn":
		lvl = glog.Warn
	case "error":
		lvl = glog.Error
	}

	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(lvl),
		glog.WithName("storeauth"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}

func run(ctx context.Context, app *App) error {
	if err := WithPersistence(ctx, app); err != nil {
		return err
	}
	defer app.db.Close()

	if err := WithService(ctx, app); err != nil {
		return err
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		return err
	}

	reaper := auth.NewReaper(app.ledger, app.config.Ledger.ReapInterval).
		WithLogger(app.GetLogger("reaper"))
	go func() {
		if err := reaper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.GetLogger("reaper").Error("reaper stopped", "error", err)
		}
	}()

	errc := make(chan error, 2)
	go func() {
		app.GetLogger("http").Info("listening", "address", app.config.Server.Address)
		if err := app.srv.Serve(app.config.Server.Address); err != nil {
			errc <- err
		}
	}()

	if app.metrics != nil {
		go func() {
			app.GetLogger("metrics").Info("listening", "address", app.metrics.Addr)
			if err := app.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		app.GetLogger("app").Info("shutting down")
	case serveErr = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("http").Error("shutdown failed", "error", err)
	}
	if app.metrics != nil {
		if err := app.metrics.Shutdown(shutdownCtx); err != nil {
			app.GetLogger("metrics").Error("shutdown failed", "error", err)
		}
	}
	return serveErr
}

// WithPersistence opens the database and brings the schema up to date.
func WithPersistence(ctx context.Context, app *App) error {
	pcfg := app.config.Persistence
	logger := app.GetLogger("persistence")

	switch pcfg.Driver {
	case driverPostgres:
		version, err := repository.Migrate(pcfg.DSN)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", "version", version)

		sqldb, err := sql.Open("pgx", pcfg.DSN)
		if err != nil {
			return err
		}
		app.db = bun.NewDB(sqldb, pgdialect.New())

	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, pcfg.DSN)
		if err != nil {
			return err
		}
		sqldb.SetMaxOpenConns(1)
		app.db = bun.NewDB(sqldb, sqlitedialect.New())

		if err := repository.CreateSchema(ctx, app.db); err != nil {
			return err
		}
		logger.Info("schema ready", "driver", driverSQLite)
	}

	if err := app.db.PingContext(ctx); err != nil {
		return err
	}

	app.repo = repository.NewRepositoryManager(app.db)
	app.repo.MustValidate()
	return nil
}

// WithService wires stores, the cached ledger and activity sinks into the service.
func WithService(_ context.Context, app *App) error {
	lcfg := app.config.Ledger
	app.ledger = auth.NewCachedLedger(app.repo.RevokedTokens(), lcfg.CacheSize, lcfg.CacheTTL)

	app.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sinks := auth.MultiSink{
		auth.NewMetricsSink(app.reg),
		activitymap.NewLogSink(app.GetLogger("activity")),
	}

	service, err := auth.NewService(app.config.Auth, app.repo.Stores(app.ledger),
		auth.WithServiceLogger(app.GetLogger("auth")),
		auth.WithServiceActivitySink(sinks),
	)
	if err != nil {
		return err
	}
	app.service = service
	return nil
}

// WithHTTPServer builds the fiber adapter, mounts the auth routes and the metrics listener.
func WithHTTPServer(_ context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		cfg := ratelimit.TrustedProxyConfig(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: false,
			StrictRouting:     false,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
		}, app.config.Server.ProxyHeader, app.config.Server.TrustedProxies)
		fa := fiber.New(cfg)
		fa.Use(ratelimit.ResolveClientIP())
		return router.DefaultFiberOptions(fa)
	})
	srv.Router().WithLogger(app.GetLogger("router"))

	controller := auth.NewAuthController(app.service,
		auth.WithRateLimit(ratelimit.Config{
			PerSecond: app.config.RateLimit.PerSecond,
			Burst:     app.config.RateLimit.Burst,
		}),
	)
	controller.Auther.WithLogger(app.GetLogger("auth:http"))
	controller.Logger = app.GetLogger("auth:ctrl")

	auth.RegisterAuthRoutes(srv.Router(), controller)

	srv.Router().Get("/healthz", func(ctx router.Context) error {
		if err := app.db.PingContext(ctx.Context()); err != nil {
			return ctx.Status(http.StatusServiceUnavailable).SendString("unavailable")
		}
		return ctx.SendString("ok")
	})

	app.srv = srv

	if addr := app.config.Server.MetricsAddress; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(app.reg, promhttp.HandlerOpts{}))
		app.metrics = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return nil
}
