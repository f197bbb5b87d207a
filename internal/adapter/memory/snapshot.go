package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
)

// SnapshotStore keeps the latest position of each participant in memory
type SnapshotStore struct {
	mu        sync.RWMutex
	positions map[string]models.ReceiveLocation
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		positions: make(map[string]models.ReceiveLocation),
	}
}

func (s *SnapshotStore) Put(_ context.Context, loc models.ReceiveLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[loc.ID] = loc
	return nil
}

func (s *SnapshotStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, id)
	return nil
}

// List returns every known position ordered by participant id
func (s *SnapshotStore) List(_ context.Context) ([]models.ReceiveLocation, error) {
	s.mu.RLock()
	out := make([]models.ReceiveLocation, 0, len(s.positions))
	for _, loc := range s.positions {
		out = append(out, loc)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.ReceiveLocation) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}
