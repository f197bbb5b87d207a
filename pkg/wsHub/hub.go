package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
)

var (
	ErrEmptyConn      = errors.New("connection is empty")
	ErrConnIsNotFound = errors.New("connection not found")
)

// ConnectionHub keeps every active websocket connection of this process
type ConnectionHub struct {
	clients map[string]*Conn
	l       logger.Logger
	mu      sync.Mutex
	wg      sync.WaitGroup
}

func NewConnHub(l logger.Logger) *ConnectionHub {
	return &ConnectionHub{
		clients: make(map[string]*Conn),
		l:       l,
	}
}

// Add registers a connection. An existing connection with the same id is closed.
func (h *ConnectionHub) Add(newConn *Conn) error {
	if newConn == nil {
		return ErrEmptyConn
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := wrap.WithAction(context.Background(), "add_ws_connection")

	if existing, ok := h.clients[newConn.entityID]; ok {
		h.l.Warn(ctx, "replacing existing connection", "entity_id", existing.entityID)
		if err := existing.Close(); err != nil {
			h.l.Warn(ctx, "failed to close existing conn", "entity_id", existing.entityID, "err", err.Error())
		}
		h.wg.Done()
	}

	h.clients[newConn.entityID] = newConn
	h.wg.Add(1)

	return nil
}

// Delete removes and closes the connection with the given id
func (h *ConnectionHub) Delete(entityID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.clients[entityID]
	if !ok {
		return ErrConnIsNotFound
	}

	if err := conn.Close(); err != nil {
		h.l.Warn(wrap.WithAction(context.Background(), "ws_connection_delete"),
			"failed to close conn",
			"entity_id", conn.entityID,
			"err", err.Error(),
		)
	}

	delete(h.clients, entityID)
	h.wg.Done()

	return nil
}

// SendTo sends msg to one connection, ErrConnIsNotFound if it is not registered
func (h *ConnectionHub) SendTo(id string, msg any) error {
	conn, err := h.GetConn(id)
	if err != nil {
		return err
	}
	return conn.Send(msg)
}

// Broadcast sends msg to every registered connection and reports how many writes succeeded.
// Writes happen outside the hub lock.
func (h *ConnectionHub) Broadcast(msg any) (int, error) {
	var (
		sent int
		errs []error
	)

	for id, conn := range h.Clients() {
		if err := conn.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		sent++
	}

	return sent, errors.Join(errs...)
}

// Close closes every websocket connection
func (h *ConnectionHub) Close() {
	for id := range h.Clients() {
		_ = h.Delete(id)
	}

	h.wg.Wait()

	h.l.Info(wrap.WithAction(context.Background(), "hub_close"), "all websocket connections closed gracefully")
}

// Clients returns a copy of the registered connections
func (h *ConnectionHub) Clients() map[string]*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	copyMap := make(map[string]*Conn, len(h.clients))
	for id, conn := range h.clients {
		copyMap[id] = conn
	}
	return copyMap
}

// GetConn returns the connection registered under id
func (h *ConnectionHub) GetConn(id string) (*Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.clients[id]
	if !ok {
		return nil, ErrConnIsNotFound
	}
	return conn, nil
}

func (h *ConnectionHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
