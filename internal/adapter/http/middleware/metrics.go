package middleware

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Temutjin2k/geo-tracker/pkg/metrics"
)

// statusRecorder keeps the response status; a successful hijack counts as 101
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}

	conn, buf, err := h.Hijack()
	if err == nil {
		rw.statusCode = http.StatusSwitchingProtocols
	}
	return conn, buf, err
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics records request count and latency per route. Websocket upgrades live as long as the
// participant stays connected, so they are only counted by outcome and kept out of the
// latency histogram and the in-flight gauge.
func (m *Middleware) Metrics(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics endpoint to avoid recursion
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			rw := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			if websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(rw, r)
				metrics.RecordWebSocketUpgrade(serviceName, rw.statusCode)
				return
			}

			start := time.Now()
			metrics.HttpRequestsInFlight.WithLabelValues(serviceName).Inc()
			defer metrics.HttpRequestsInFlight.WithLabelValues(serviceName).Dec()

			next.ServeHTTP(rw, r)

			metrics.RecordHTTPMetrics(serviceName, r.Method, r.URL.Path, rw.statusCode, time.Since(start))
		})
	}
}
