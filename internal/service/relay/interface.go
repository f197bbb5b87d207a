package relay

import (
	"context"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
)

type (
	// Broker carries relay events between relay instances.
	// Subscribe delivers events to handler from a single goroutine, in publish order per publisher.
	Broker interface {
		Publish(ctx context.Context, ev models.RelayEvent) error
		Subscribe(ctx context.Context, handler func(ctx context.Context, ev models.RelayEvent)) error
		Close() error
	}

	// SnapshotStore keeps the last known position of every connected participant
	SnapshotStore interface {
		Put(ctx context.Context, loc models.ReceiveLocation) error
		Delete(ctx context.Context, id string) error
		List(ctx context.Context) ([]models.ReceiveLocation, error)
	}
)
