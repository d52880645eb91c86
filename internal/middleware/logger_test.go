package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoggerRecordsStatusAndRoute(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(Logger(zerolog.New(&buf)))
	r.Get("/api/music/{id}/stream", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/music/{id}/stream", routePattern(r))
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/music/abc/stream", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "GET", line["method"])
	require.Equal(t, "/api/music/abc/stream", line["path"])
	require.EqualValues(t, http.StatusNotFound, line["status"])
}
