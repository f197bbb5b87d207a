package types

type ServiceMode string

// Relay - assigns participant ids and fans out positions between connections
// Client - one participant: publishes its own position and renders everybody else
const (
	RelayService  ServiceMode = "relay"
	ClientService ServiceMode = "client"
)

// BrokerKind selects how relay instances share events
type BrokerKind string

const (
	BrokerMemory   BrokerKind = "memory"
	BrokerRabbitMQ BrokerKind = "rabbitmq"
	BrokerNATS     BrokerKind = "nats"
)

// SnapshotKind selects where the relay keeps last-known positions
type SnapshotKind string

const (
	SnapshotMemory SnapshotKind = "memory"
	SnapshotRedis  SnapshotKind = "redis"
)

// LocationSourceKind selects the device location source of a client
type LocationSourceKind string

const (
	SourceUDP    LocationSourceKind = "udp"
	SourceReplay LocationSourceKind = "replay"
)

// DefaultUserName is used when a participant does not provide a display name
const DefaultUserName = "Anonymous User"
