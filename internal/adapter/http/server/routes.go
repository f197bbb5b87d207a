package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
)

func (a *API) setupRoutes() {
	// System Health
	a.mux.HandleFunc("GET /health", a.routes.health.HealthCheck)
	a.mux.Handle("GET /metrics", promhttp.Handler())

	if a.mode == types.RelayService {
		a.mux.HandleFunc("GET /ws", a.routes.relay.HandleWS) // participant websocket
	}
}
