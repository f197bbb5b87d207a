package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
)

type collector struct {
	mu     sync.Mutex
	events []models.RelayEvent
}

func (c *collector) handle(_ context.Context, ev models.RelayEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestBroker_DeliversInPublishOrder(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ctx := context.Background()

	var first, second collector
	require.NoError(t, b.Subscribe(ctx, first.handle))
	require.NoError(t, b.Subscribe(ctx, second.handle))

	for i := range 50 {
		loc := &models.ReceiveLocation{ID: "A", Latitude: float64(i)}
		require.NoError(t, b.Publish(ctx, models.RelayEvent{Origin: "test", Location: loc}))
	}

	require.Eventually(t, func() bool {
		return first.len() == 50 && second.len() == 50
	}, 2*time.Second, 10*time.Millisecond)

	first.mu.Lock()
	defer first.mu.Unlock()
	for i, ev := range first.events {
		require.Equal(t, float64(i), ev.Location.Latitude, fmt.Sprintf("event %d out of order", i))
	}
}

func TestBroker_ClosedRejectsPublish(t *testing.T) {
	b := NewBroker()
	ctx := context.Background()

	var c collector
	require.NoError(t, b.Subscribe(ctx, c.handle))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	err := b.Publish(ctx, models.RelayEvent{DepartedID: "A"})
	require.ErrorIs(t, err, types.ErrBrokerClosed)
	require.ErrorIs(t, b.Subscribe(ctx, c.handle), types.ErrBrokerClosed)
}

func TestSnapshotStore_PutListDelete(t *testing.T) {
	s := NewSnapshotStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, models.ReceiveLocation{ID: "b", Latitude: 1}))
	require.NoError(t, s.Put(ctx, models.ReceiveLocation{ID: "a", Latitude: 2}))
	require.NoError(t, s.Put(ctx, models.ReceiveLocation{ID: "b", Latitude: 3}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].ID)
	require.Equal(t, 3.0, list[1].Latitude)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "missing"))

	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "b", list[0].ID)
}
