package microservices

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Temutjin2k/geo-tracker/config"
	"github.com/Temutjin2k/geo-tracker/internal/adapter/http/server"
	"github.com/Temutjin2k/geo-tracker/internal/adapter/memory"
	natsbroker "github.com/Temutjin2k/geo-tracker/internal/adapter/nats"
	rabbitbroker "github.com/Temutjin2k/geo-tracker/internal/adapter/rabbit"
	redisstore "github.com/Temutjin2k/geo-tracker/internal/adapter/redis"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/internal/service/relay"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
	"github.com/Temutjin2k/geo-tracker/pkg/rabbit"
	"github.com/Temutjin2k/geo-tracker/pkg/tracing"
	ws "github.com/Temutjin2k/geo-tracker/pkg/wsHub"
)

type RelayService struct {
	relay      *relay.Service
	httpServer *server.API

	rabbitClient *rabbit.RabbitMQ
	natsConn     *nats.Conn
	redisClient  *goredis.Client
	stopTracing  func(context.Context) error

	cfg config.Config
	log logger.Logger
}

func NewRelay(ctx context.Context, cfg config.Config, log logger.Logger) (*RelayService, error) {
	s := &RelayService{
		cfg: cfg,
		log: log,
	}

	if cfg.Tracing.Enabled {
		stop, err := tracing.Setup(ctx, string(types.RelayService))
		if err != nil {
			log.Error(ctx, "failed to setup tracing", err)
			return nil, err
		}
		s.stopTracing = stop
	}

	broker, err := s.newBroker(ctx)
	if err != nil {
		s.close(ctx)
		return nil, err
	}

	snapshots, err := s.newSnapshotStore(ctx)
	if err != nil {
		_ = broker.Close()
		s.close(ctx)
		return nil, err
	}

	s.relay = relay.New(ws.NewConnHub(log), broker, snapshots, log)

	s.httpServer, err = server.New(cfg, s.relay, log)
	if err != nil {
		log.Error(ctx, "failed to setup http server", err)
		_ = s.relay.Close()
		s.close(ctx)
		return nil, err
	}

	return s, nil
}

func (s *RelayService) newBroker(ctx context.Context) (relay.Broker, error) {
	switch s.cfg.Relay.Broker {
	case types.BrokerMemory:
		return memory.NewBroker(), nil

	case types.BrokerRabbitMQ:
		client, err := rabbit.New(ctx, s.cfg.RabbitMQ.GetDSN(), s.log)
		if err != nil {
			s.log.Error(ctx, "failed to connect to rabbitmq", err)
			return nil, err
		}
		s.rabbitClient = client
		return rabbitbroker.NewLocationBroker(client, s.cfg.RabbitMQ.Exchange, s.log), nil

	case types.BrokerNATS:
		conn, err := nats.Connect(s.cfg.NATS.URL, nats.Name("geo-tracker relay"), nats.MaxReconnects(-1))
		if err != nil {
			s.log.Error(ctx, "failed to connect to nats", err)
			return nil, err
		}
		s.natsConn = conn
		return natsbroker.NewBroker(conn, s.cfg.NATS.Subject, s.log), nil

	default:
		return nil, fmt.Errorf("unknown broker: %s", s.cfg.Relay.Broker)
	}
}

func (s *RelayService) newSnapshotStore(ctx context.Context) (relay.SnapshotStore, error) {
	switch s.cfg.Relay.Snapshot {
	case types.SnapshotMemory:
		return memory.NewSnapshotStore(), nil

	case types.SnapshotRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     s.cfg.Redis.Addr,
			Password: s.cfg.Redis.Password,
			DB:       s.cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			s.log.Error(ctx, "failed to connect to redis", err)
			return nil, err
		}
		s.redisClient = client
		return redisstore.NewSnapshotStore(client, s.cfg.Redis.KeyPrefix, s.cfg.Relay.SnapshotTTL), nil

	default:
		return nil, fmt.Errorf("unknown snapshot store: %s", s.cfg.Relay.Snapshot)
	}
}

func (s *RelayService) Start(ctx context.Context) error {
	ctx = wrap.WithAction(ctx, "relay_start")
	errCh := make(chan error, 1)

	if err := s.relay.Start(ctx); err != nil {
		s.close(ctx)
		return err
	}

	s.httpServer.Run(ctx, errCh)
	defer func() {
		s.close(ctx)
		s.log.Info(ctx, "relay service closed")
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "relay service started",
		"instance_id", s.relay.InstanceID(),
		"broker", s.cfg.Relay.Broker,
		"snapshot", s.cfg.Relay.Snapshot,
	)

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		s.log.Info(ctx, "shuting down application", "signal", sig.String())
		return nil
	case <-ctx.Done():
		return nil
	}
}

// close releases everything in reverse order of construction
func (s *RelayService) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	if s.httpServer != nil {
		if err := s.httpServer.Stop(ctx); err != nil {
			s.log.Warn(ctx, "failed to gracefully close http server", "error", err.Error())
		}
	}

	if s.relay != nil {
		if err := s.relay.Close(); err != nil {
			s.log.Warn(ctx, "failed to close relay", "error", err.Error())
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn(ctx, "failed to close redis client", "error", err.Error())
		}
	}

	if s.natsConn != nil {
		s.natsConn.Close()
	}

	if s.rabbitClient != nil {
		if err := s.rabbitClient.Close(ctx); err != nil {
			s.log.Warn(ctx, "failed to close rabbitmq", "error", err.Error())
		}
	}

	if s.stopTracing != nil {
		if err := s.stopTracing(ctx); err != nil {
			s.log.Warn(ctx, "failed to flush traces", "error", err.Error())
		}
	}
}
