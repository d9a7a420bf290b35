package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/aussiebroadwan/tollgate/internal/token/cache"
	"github.com/aussiebroadwan/tollgate/internal/token/cache/drivers/memory"
	"github.com/aussiebroadwan/tollgate/internal/token/cache/drivers/redis"
	"github.com/aussiebroadwan/tollgate/internal/token/cache/drivers/sqlite"
	httpapi "github.com/aussiebroadwan/tollgate/internal/token/http"
	"github.com/aussiebroadwan/tollgate/internal/token/service"
	"github.com/aussiebroadwan/tollgate/pkg/clock"
	"github.com/aussiebroadwan/tollgate/pkg/registry"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

const (
	// BuildVersion is overridden at build time via -ldflags.
	BuildVersion = "v0.1.0"
)

// Application is the token service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	cache        cache.Cache
	engine       *service.Engine
	housekeeping *service.HousekeepingService
	sweeping     bool

	etcd         *clientv3.Client
	registry     *registry.Registry
	registration atomic.Pointer[registry.Registration]

	listener net.Listener
	server   *http.Server
	router   *httpapi.Router
}

// New builds the application: cache, engine and HTTP router. Nothing is
// served or announced until Start.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "token-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initCache(); err != nil {
		return nil, err
	}
	if err := app.initEngine(); err != nil {
		_ = app.cache.Close()
		return nil, err
	}
	if err := app.initRegistry(); err != nil {
		_ = app.cache.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Start binds the listener, serves in the background and then registers
// the service in etcd. Registration happens only once the port accepts
// connections. The returned channel reports a fatal serve error.
func (app *Application) Start(ctx context.Context) (<-chan error, error) {
	if app.housekeeping != nil && !app.sweeping {
		app.housekeeping.Start()
		app.sweeping = true
	}

	ln, err := net.Listen("tcp", app.cfg.Service.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", app.cfg.Service.ListenAddr, err)
	}
	app.listener = ln

	serverErrors := make(chan error, 1)
	go func() {
		if err := app.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	app.logger.Info("token service listening",
		"addr", ln.Addr().String(),
		"version", BuildVersion,
		"cache", app.cfg.CacheDriver,
		"audiences", app.engine.Audiences(),
	)

	if app.registry != nil {
		rec := app.cfg.Service.Record(app.cfg.Domain)
		reg, err := app.registry.Register(ctx, rec, app.cfg.Service.Lease)
		if err != nil {
			return nil, fmt.Errorf("register in etcd: %w", err)
		}
		app.registration.Store(reg)
	}

	return serverErrors, nil
}

// Addr is the bound listen address, available after Start.
func (app *Application) Addr() string {
	if app.listener == nil {
		return ""
	}
	return app.listener.Addr().String()
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	serverErrors, err := app.Start(context.Background())
	if err != nil {
		_ = app.Shutdown()
		return err
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		_ = app.Shutdown()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown stops the heartbeat first, leaving the key to expire with its
// lease, then drains HTTP and closes the backends.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down token service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if reg := app.registration.Swap(nil); reg != nil {
		reg.Stop()
		app.logger.Info("heartbeat stopped, key expires with its lease", "key", reg.Key)
	}

	if app.listener != nil {
		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.Error("graceful server shutdown failed", "error", err)
			if err := app.server.Close(); err != nil {
				app.logger.Error("error closing server", "error", err)
			}
		}
	}

	if app.sweeping {
		app.housekeeping.Stop()
		app.sweeping = false
	}

	var errs []error
	if app.etcd != nil {
		if err := app.etcd.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close etcd client: %w", err))
		}
	}
	if err := app.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}

	app.logger.Info("token service stopped")
	return errors.Join(errs...)
}

func (app *Application) initCache() error {
	switch app.cfg.CacheDriver {
	case CacheRedis:
		c, err := redis.Open(app.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to open redis cache: %w", err)
		}
		app.cache = c

	case CacheMemory:
		c, err := memory.New(memory.DefaultConfig())
		if err != nil {
			return fmt.Errorf("failed to create memory cache: %w", err)
		}
		app.cache = c
		app.logger.Warn("memory cache is per process; replicas will sign different pairs")

	case CacheSQLite:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", app.cfg.CacheFile)
		c, err := sqlite.Open(dsn, clock.Real())
		if err != nil {
			return fmt.Errorf("failed to open sqlite cache: %w", err)
		}
		app.cache = c
		app.housekeeping = service.NewHousekeepingService(c, app.logger, app.cfg.HousekeepingInterval)

	default:
		return fmt.Errorf("unknown cache driver %q", app.cfg.CacheDriver)
	}

	app.logger.Info("token cache ready", "driver", app.cfg.CacheDriver)
	return nil
}

func (app *Application) initEngine() error {
	key, err := LoadSigningKey(app.cfg, app.logger)
	if err != nil {
		return err
	}

	if len(app.cfg.Expires) == 0 {
		app.logger.Warn("TOKEN_EXPIRES is empty, every generate request will be rejected")
	}

	engine, err := service.NewEngine(service.Config{
		Key:          key,
		Method:       app.cfg.Algorithm,
		Domain:       app.cfg.Domain,
		RefreshRatio: app.cfg.RefreshRatio,
		Expires:      app.cfg.Expires,
	}, service.Dependencies{
		Cache:  app.cache,
		Logger: app.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create token engine: %w", err)
	}
	app.engine = engine
	return nil
}

func (app *Application) initRegistry() error {
	if !app.cfg.Register {
		app.logger.Info("etcd registration disabled")
		return nil
	}

	cli, err := registry.NewEtcdClient(app.cfg.Etcd)
	if err != nil {
		return err
	}
	app.etcd = cli
	app.registry = registry.New(cli, app.logger)
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.engine, BuildVersion, app.logger)
	if app.registry != nil {
		router.RegistryCheck = func() error {
			reg := app.registration.Load()
			if reg == nil {
				return errors.New("not registered")
			}
			return reg.Err()
		}
	}
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
