package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/cassiomorais/storesync/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_LabelsByRoutePatternAndStatus(t *testing.T) {
	tests := []struct {
		method  string
		pattern string
		path    string
		status  int
	}{
		{http.MethodPost, "/api/v1/operations", "/api/v1/operations", http.StatusAccepted},
		{http.MethodPost, "/api/v1/operations", "/api/v1/operations", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/operations/{id}", "/api/v1/operations/123", http.StatusOK},
		{http.MethodDelete, "/api/v1/operations", "/api/v1/operations", http.StatusNoContent},
		{http.MethodPost, "/api/v1/sync", "/api/v1/sync", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path+" "+strconv.Itoa(tt.status), func(t *testing.T) {
			metrics := observability.NewMetrics("test", prometheus.NewRegistry())
			r := chi.NewRouter()
			r.Use(Metrics(metrics))
			r.MethodFunc(tt.method, tt.pattern, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, 1.0, promtestutil.ToFloat64(
				metrics.HTTPRequestsTotal.WithLabelValues(tt.method, tt.pattern, strconv.Itoa(tt.status))))
			assert.Equal(t, 1, promtestutil.CollectAndCount(metrics.HTTPRequestDuration))
		})
	}
}

func TestMetrics_FallsBackToPathWithoutRouter(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	h := Metrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/unrouted", nil))

	// No WriteHeader call counts as 200.
	assert.Equal(t, 1.0, promtestutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/unrouted", "200")))
}

func TestStatusWriter_RecordsExplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

	sw.WriteHeader(http.StatusConflict)

	assert.Equal(t, http.StatusConflict, sw.statusCode)
	assert.Equal(t, http.StatusConflict, w.Code)
}
