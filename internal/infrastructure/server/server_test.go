package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseform/servicecore/internal/infrastructure/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.RateLimit.Enabled = false

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
	})
	return srv
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "health", method: http.MethodGet, path: "/health", status: http.StatusOK},
		{name: "metrics scrape", method: http.MethodGet, path: "/metrics", status: http.StatusOK},
		{name: "list breakers", method: http.MethodGet, path: "/api/v1/breakers", status: http.StatusOK},
		{name: "unknown breaker", method: http.MethodGet, path: "/api/v1/breakers/nope", status: http.StatusNotFound},
		{name: "cache stats", method: http.MethodGet, path: "/api/v1/cache/stats", status: http.StatusOK},
		{name: "cache sweep", method: http.MethodPost, path: "/api/v1/cache/sweep", status: http.StatusOK},
		{name: "stats", method: http.MethodGet, path: "/api/v1/stats", status: http.StatusOK},
		{name: "me without credential", method: http.MethodGet, path: "/api/v1/me", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}
