package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/api/v1/admin/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/admin/users/{id}", "404")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"1", "2", "3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/"+id, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.InDelta(t, before+3, testutil.ToFloat64(counter), 0.001)
}

func TestMetrics_UnmatchedRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/known", func(w http.ResponseWriter, r *http.Request) {})

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/abc", nil))

	assert.InDelta(t, before+1, testutil.ToFloat64(counter), 0.001)
}

func TestRoutePattern_WithoutRouter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/plain", nil)
	assert.Equal(t, unmatchedRoute, routePattern(req))
}
