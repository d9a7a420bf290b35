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
	"syscall"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/aussiebroadwan/tollgate/pkg/balancer"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/registry"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
)

const BuildVersion = "v0.1.0"

// Application is an edge service that authenticates every request against
// the token service before it reaches the inner handlers.
type Application struct {
	cfg    Config
	logger *slog.Logger

	etcd     *clientv3.Client
	registry *registry.Registry
	balancer *balancer.RoundRobin
	stopDisc context.CancelFunc

	tokens   *tokensdk.Client
	listener net.Listener
	server   *http.Server
}

func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.TokenURL != "" {
		client, err := tokensdk.NewClient(cfg.TokenURL)
		if err != nil {
			return nil, fmt.Errorf("token service url: %w", err)
		}
		app.tokens = client
		app.logger.Info("using fixed token service", "url", cfg.TokenURL)
	} else {
		cli, err := registry.NewEtcdClient(cfg.Etcd)
		if err != nil {
			return nil, err
		}
		app.etcd = cli
		app.registry = registry.New(cli, app.logger)
		app.balancer = balancer.NewRoundRobin(app.logger)
		app.tokens = tokensdk.NewClientWithResolver(app.balancer)
	}

	handler, err := Handler(cfg, app.tokens, app.ready, BuildVersion)
	if err != nil {
		app.closeEtcd()
		return nil, err
	}

	app.server = &http.Server{
		Handler:           httpx.Chain(handler, slogx.HTTPMiddleware(app.logger)),
		ReadHeaderTimeout: 3 * time.Second,
	}
	return app, nil
}

// Start subscribes to token service announcements, then serves.
func (app *Application) Start(ctx context.Context) (<-chan error, error) {
	if app.registry != nil {
		discCtx, cancel := context.WithCancel(context.Background())
		events, err := app.registry.Discover(discCtx, app.cfg.TokenDomain)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("discover %s: %w", app.cfg.TokenDomain, err)
		}
		app.stopDisc = cancel
		go app.balancer.Run(discCtx, events)
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", app.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", app.cfg.ListenAddr, err)
	}
	app.listener = ln

	serverErrors := make(chan error, 1)
	go func() {
		if err := app.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	app.logger.Info("gateway listening",
		"addr", ln.Addr().String(),
		"auth_method", app.cfg.AuthMethod,
		"token_domain", app.cfg.TokenDomain,
	)
	return serverErrors, nil
}

func (app *Application) Addr() string {
	if app.listener == nil {
		return ""
	}
	return app.listener.Addr().String()
}

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

func (app *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	var err error
	if app.listener != nil {
		if err = app.server.Shutdown(ctx); err != nil {
			_ = app.server.Close()
		}
	}
	if app.stopDisc != nil {
		app.stopDisc()
	}
	app.closeEtcd()

	app.logger.Info("gateway stopped")
	return err
}

// ready fails while discovery has not produced a token service endpoint.
func (app *Application) ready() error {
	if app.balancer != nil && app.balancer.Len() == 0 {
		return balancer.ErrNoEndpoints
	}
	return nil
}

func (app *Application) closeEtcd() {
	if app.etcd == nil {
		return
	}
	if err := app.etcd.Close(); err != nil {
		app.logger.Warn("closing etcd client", "error", err)
	}
	app.etcd = nil
}
