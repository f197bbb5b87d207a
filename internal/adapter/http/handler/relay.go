package handler

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
)

type RelayService interface {
	Serve(ctx context.Context, conn *websocket.Conn) error
}

// Relay upgrades participant connections and hands them to the relay service
type Relay struct {
	service  RelayService
	upgrader websocket.Upgrader
	draining atomic.Bool
	log      logger.Logger
}

func NewRelay(service RelayService, log logger.Logger) *Relay {
	return &Relay{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// participants connect from any origin, like the browser map did
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Drain refuses new connections; existing ones are left to the service
func (h *Relay) Drain() {
	h.draining.Store(true)
}

// HandleWS - GET /ws
func (h *Relay) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), types.ActionParticipantJoined)

	if h.draining.Load() {
		errorResponse(w, http.StatusServiceUnavailable, "relay is shutting down")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already answered with an HTTP error
		h.log.Warn(ctx, "websocket upgrade failed", "error", err.Error(), "remote_addr", r.RemoteAddr)
		return
	}

	if err := h.service.Serve(ctx, conn); err != nil {
		h.log.Error(wrap.ErrorCtx(ctx, err), "participant connection ended with error", err)
	}
}
