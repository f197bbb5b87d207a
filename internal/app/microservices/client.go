package microservices

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Temutjin2k/geo-tracker/config"
	"github.com/Temutjin2k/geo-tracker/internal/adapter/http/server"
	"github.com/Temutjin2k/geo-tracker/internal/adapter/locsource"
	"github.com/Temutjin2k/geo-tracker/internal/adapter/osrm"
	"github.com/Temutjin2k/geo-tracker/internal/adapter/renderer"
	"github.com/Temutjin2k/geo-tracker/internal/adapter/wsclient"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/internal/service/tracker"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
)

type ClientService struct {
	session    *tracker.Session
	channel    *wsclient.Channel
	httpServer *server.API

	cfg config.Config
	log logger.Logger
}

func NewClient(ctx context.Context, cfg config.Config, log logger.Logger) (*ClientService, error) {
	channel, err := wsclient.Dial(ctx, cfg.Client.ServerURL, log)
	if err != nil {
		log.Error(ctx, "failed to connect to relay", err, "url", cfg.Client.ServerURL)
		return nil, err
	}

	source, err := newLocationSource(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to setup location source", err)
		_ = channel.Close()
		return nil, err
	}

	session := tracker.NewSession(
		tracker.SessionConfig{
			UserName:      cfg.Client.UserName,
			MaxPathLength: cfg.Client.MaxPathLength,
		},
		channel,
		source,
		renderer.NewConsole(log),
		osrm.New(cfg.Routing.OSRMURL, cfg.Routing.Profile),
		log,
	)

	s := &ClientService{
		session: session,
		channel: channel,
		cfg:     cfg,
		log:     log,
	}

	if cfg.Client.MetricsPort != "" {
		s.httpServer, err = server.New(cfg, nil, log)
		if err != nil {
			log.Error(ctx, "failed to setup http server", err)
			_ = channel.Close()
			return nil, err
		}
	}

	return s, nil
}

func newLocationSource(ctx context.Context, cfg config.Config, log logger.Logger) (tracker.LocationSource, error) {
	switch cfg.Location.Source {
	case types.SourceUDP:
		opts := tracker.LocationOptions{
			HighAccuracy: cfg.Location.HighAccuracy,
			Timeout:      cfg.Location.Timeout,
			MaximumAge:   cfg.Location.MaximumAge,
		}
		return locsource.ListenUDP(ctx, cfg.Location.UDPAddr, opts, log)
	case types.SourceReplay:
		return locsource.NewReplay(cfg.Location.ReplayFile, cfg.Location.ReplayInterval, cfg.Location.ReplayLoop, log), nil
	default:
		return nil, fmt.Errorf("unknown location source: %s", cfg.Location.Source)
	}
}

func (s *ClientService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(wrap.WithAction(ctx, "client_start"))
	defer cancel()

	errCh := make(chan error, 1)
	if s.httpServer != nil {
		s.httpServer.Run(ctx, errCh)
	}

	runCh := make(chan error, 1)
	go func() {
		runCh <- s.session.Run(ctx)
	}()
	defer func() {
		s.close(ctx)
		s.log.Info(ctx, "client service closed")
	}()

	quitCh := make(chan struct{})
	go func() {
		if newCommandLoop(os.Stdin, os.Stdout, s.session).run(ctx) {
			close(quitCh)
		}
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "client started", "server", s.cfg.Client.ServerURL, "location_source", s.cfg.Location.Source)

	select {
	case err := <-runCh:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		s.log.Info(ctx, "shuting down application", "signal", sig.String())
		return nil
	case <-quitCh:
		s.log.Info(ctx, "quit requested")
		return nil
	}
}

func (s *ClientService) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	if s.httpServer != nil {
		if err := s.httpServer.Stop(ctx); err != nil {
			s.log.Warn(ctx, "failed to gracefully close http server", "error", err.Error())
		}
	}

	if err := s.channel.Close(); err != nil {
		s.log.Debug(ctx, "transport channel already closed", "error", err.Error())
	}
}
