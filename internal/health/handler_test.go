// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	up   = CheckerFunc(func(context.Context) error { return nil })
	down = CheckerFunc(func(context.Context) error { return errors.New("connection refused") })
)

func serve(t *testing.T, h *Handler, path string) (int, ReadinessResponse) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		deps   []Dependency
		code   int
		status string
	}{
		{
			name:   "all up",
			deps:   []Dependency{{Name: "database", Checker: up}, {Name: "redis", Checker: up, Optional: true}},
			code:   http.StatusOK,
			status: "ok",
		},
		{
			name:   "optional down",
			deps:   []Dependency{{Name: "database", Checker: up}, {Name: "redis", Checker: down, Optional: true}},
			code:   http.StatusOK,
			status: "degraded",
		},
		{
			name:   "required down",
			deps:   []Dependency{{Name: "database", Checker: down}, {Name: "redis", Checker: up, Optional: true}},
			code:   http.StatusServiceUnavailable,
			status: "unavailable",
		},
		{
			name:   "required missing",
			deps:   []Dependency{{Name: "database"}},
			code:   http.StatusServiceUnavailable,
			status: "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serve(t, NewHandler(tt.deps...), "/readyz")

			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, body.Status)
			require.Len(t, body.Checks, len(tt.deps))
			for i, dep := range tt.deps {
				assert.Equal(t, dep.Name, body.Checks[i].Name)
			}
		})
	}
}

func TestShutdownAndNotReady(t *testing.T) {
	h := NewHandler(Dependency{Name: "database", Checker: up})

	code, body := serve(t, h, "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)

	h.SetReady(false)
	code, body = serve(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", body.Status)

	h.SetShutdown(true)
	for _, path := range []string{"/healthz", "/readyz"} {
		code, body = serve(t, h, path)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "shutting_down", body.Status)
	}
}
