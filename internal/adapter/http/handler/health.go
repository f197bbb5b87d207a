package handler

import (
	"net/http"
	"time"

	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
)

type Health struct {
	serviceName string
	startedAt   time.Time
	log         logger.Logger
}

func NewHealth(serviceName string, log logger.Logger) *Health {
	return &Health{
		serviceName: serviceName,
		startedAt:   time.Now(),
		log:         log,
	}
}

// HealthCheck - returns system information.
func (a *Health) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "health_check")

	response := envelope{
		"status": "available",
		"system_info": map[string]string{
			"service-name": a.serviceName,
			"uptime":       time.Since(a.startedAt).Truncate(time.Second).String(),
		},
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		a.log.Error(ctx, "healthcheck", err)
		return
	}
}
