package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Temutjin2k/geo-tracker/config"
	"github.com/Temutjin2k/geo-tracker/internal/adapter/http/handler"
	"github.com/Temutjin2k/geo-tracker/internal/adapter/http/middleware"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
)

const serverIPAddress = "%s:%s"

type API struct {
	mode   types.ServiceMode
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	cfg  config.Config
	log  logger.Logger
}

type handlers struct {
	health *handler.Health
	relay  *handler.Relay
}

// New builds the HTTP server of the given mode. relayService is required in relay mode only.
func New(cfg config.Config, relayService handler.RelayService, logger logger.Logger) (*API, error) {
	var addr string
	handlers := &handlers{
		health: handler.NewHealth(string(cfg.Mode), logger),
	}

	switch cfg.Mode {
	case types.RelayService:
		if relayService == nil {
			return nil, errors.New("relay service is required")
		}
		addr = fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Relay.Port)
		handlers.relay = handler.NewRelay(relayService, logger)
	case types.ClientService:
		if cfg.Client.MetricsPort == "" {
			return nil, errors.New("client metrics port is not configured")
		}
		addr = fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Client.MetricsPort)
	default:
		return nil, fmt.Errorf("invalid mode: %s", cfg.Mode)
	}

	api := &API{
		mode:   cfg.Mode,
		mux:    http.NewServeMux(),
		routes: handlers,
		m:      middleware.NewMiddleware(logger),
		addr:   addr,
		cfg:    cfg,
		log:    logger,
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:              api.addr,
		Handler:           api.withMiddleware(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return api, nil
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	if a.routes.relay != nil {
		a.routes.relay.Drain()
	}

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

// Run serves in the background; a listener failure is reported on errCh.
func (a *API) Run(ctx context.Context, errCh chan<- error) {
	a.server.BaseContext = func(net.Listener) context.Context {
		return context.WithoutCancel(ctx)
	}

	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

// Handler exposes the routed handler with its middleware chain
func (a *API) Handler() http.Handler {
	return a.server.Handler
}

func (a *API) withMiddleware() http.Handler {
	return a.m.Recover(a.m.RequestID(a.m.Logging(a.m.Metrics(string(a.mode))(a.mux))))
}
