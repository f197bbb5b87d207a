package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Temutjin2k/geo-tracker/pkg/logger"
)

func TestHealthCheck(t *testing.T) {
	h := NewHealth("relay", logger.NewNop())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Status     string            `json:"status"`
		SystemInfo map[string]string `json:"system_info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "available", body.Status)
	require.Equal(t, "relay", body.SystemInfo["service-name"])
}

type serveFunc func(ctx context.Context, conn *websocket.Conn) error

func (f serveFunc) Serve(ctx context.Context, conn *websocket.Conn) error { return f(ctx, conn) }

func TestRelay_HandleWS(t *testing.T) {
	served := make(chan struct{}, 1)
	h := NewRelay(serveFunc(func(_ context.Context, conn *websocket.Conn) error {
		defer conn.Close()
		served <- struct{}{}
		return conn.WriteJSON(map[string]string{"event": "session"})
	}), logger.NewNop())

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "session", msg["event"])
	<-served

	// plain HTTP is refused by the upgrader
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	h.Drain()
	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
