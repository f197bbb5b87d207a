package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
)

func TestRequestID(t *testing.T) {
	m := NewMiddleware(logger.NewNop())

	var seen string
	h := m.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = wrap.GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NotEmpty(t, seen)
		require.Equal(t, seen, rec.Header().Get(requestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, "req-42", seen)
		require.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
	})
}

func TestRecover(t *testing.T) {
	m := NewMiddleware(logger.NewNop())

	h := m.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "close", rec.Header().Get("Connection"))
	require.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestLogging_RecordsStatus(t *testing.T) {
	m := NewMiddleware(logger.NewNop())

	var wrapped *responseWriterWrapper
	h := m.Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped = w.(*responseWriterWrapper)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, http.StatusTeapot, wrapped.status)

	// the recorder cannot be hijacked
	_, _, err := wrapped.Hijack()
	require.ErrorIs(t, err, http.ErrNotSupported)
}
