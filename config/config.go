package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/configparser"
)

// Flags
var (
	modeFlag   = flag.String("mode", "", "application mode: relay or client")
	nameFlag   = flag.String("name", "", "display name shown to other participants (client mode)")
	serverFlag = flag.String("server", "", "relay websocket URL (client mode)")
)

// Errors
var (
	ErrModeNotProvided = errors.New("mode flag not provided")
)

// Config contains all configuration variables of the application
type (
	Config struct {
		Mode     types.ServiceMode `validate:"oneof=relay client"`
		LogLevel string            `env:"LOG_LEVEL" default:"INFO" validate:"oneof=DEBUG INFO WARN ERROR"`

		Relay    RelayConfig
		RabbitMQ RabbitMQConfig
		NATS     NATSConfig
		Redis    RedisConfig
		Tracing  TracingConfig
		Client   ClientConfig
		Location LocationConfig
		Routing  RoutingConfig
	}

	RelayConfig struct {
		Port        string             `env:"RELAY_PORT" default:"3000" validate:"required,numeric"`
		Broker      types.BrokerKind   `env:"RELAY_BROKER" default:"memory" validate:"oneof=memory rabbitmq nats"`
		Snapshot    types.SnapshotKind `env:"RELAY_SNAPSHOT" default:"memory" validate:"oneof=memory redis"`
		SnapshotTTL time.Duration      `env:"RELAY_SNAPSHOT_TTL" default:"1m"`
	}

	RabbitMQConfig struct {
		Host     string `env:"RABBITMQ_HOST" default:"localhost"`
		Port     string `env:"RABBITMQ_PORT" default:"5672"`
		User     string `env:"RABBITMQ_USER" default:"guest"`
		Password string `env:"RABBITMQ_PASSWORD" default:"guest"`
		Exchange string `env:"RABBITMQ_EXCHANGE" default:"location_fanout"`
	}

	NATSConfig struct {
		URL     string `env:"NATS_URL" default:"nats://localhost:4222"`
		Subject string `env:"NATS_SUBJECT" default:"tracker.locations"`
	}

	RedisConfig struct {
		Addr      string `env:"REDIS_ADDR" default:"localhost:6379"`
		Password  string `env:"REDIS_PASSWORD"`
		DB        int    `env:"REDIS_DB" default:"0"`
		KeyPrefix string `env:"REDIS_KEY_PREFIX" default:"tracker:participant:"`
	}

	TracingConfig struct {
		Enabled bool `env:"TRACING_ENABLED" default:"false"`
	}

	ClientConfig struct {
		ServerURL     string `env:"CLIENT_SERVER_URL" default:"ws://localhost:3000/ws" validate:"required,url"`
		UserName      string `env:"CLIENT_USER_NAME"`
		MetricsPort   string `env:"CLIENT_METRICS_PORT" validate:"omitempty,numeric"`
		MaxPathLength int    `env:"CLIENT_MAX_PATH_LENGTH" default:"0" validate:"gte=0"`
	}

	LocationConfig struct {
		Source         types.LocationSourceKind `env:"LOCATION_SOURCE" default:"udp" validate:"oneof=udp replay"`
		UDPAddr        string                   `env:"LOCATION_UDP_ADDR" default:"0.0.0.0:49002"`
		ReplayFile     string                   `env:"LOCATION_REPLAY_FILE" validate:"required_if=Source replay"`
		ReplayInterval time.Duration            `env:"LOCATION_REPLAY_INTERVAL" default:"1s"`
		ReplayLoop     bool                     `env:"LOCATION_REPLAY_LOOP" default:"false"`
		HighAccuracy   bool                     `env:"LOCATION_HIGH_ACCURACY" default:"true"`
		Timeout        time.Duration            `env:"LOCATION_TIMEOUT" default:"5s"`
		MaximumAge     time.Duration            `env:"LOCATION_MAXIMUM_AGE" default:"0s"`
	}

	RoutingConfig struct {
		OSRMURL string `env:"ROUTING_OSRM_URL" default:"https://router.project-osrm.org" validate:"required,url"`
		Profile string `env:"ROUTING_PROFILE" default:"driving"`
	}
)

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
	)
}

func NewConfig(filepath string) (*Config, error) {
	cfg := &Config{}

	// Loading enviromental variables and parsing to config struct.
	if err := configparser.LoadAndParseYaml(filepath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	// Parsing flags
	if err := parseFlags(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the value constraints declared on the config structs
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

func parseFlags(cfg *Config) error {
	if modeFlag == nil || *modeFlag == "" {
		return ErrModeNotProvided
	}

	cfg.Mode = types.ServiceMode(*modeFlag)

	if *nameFlag != "" {
		cfg.Client.UserName = *nameFlag
	}
	if *serverFlag != "" {
		cfg.Client.ServerURL = *serverFlag
	}

	return nil
}
