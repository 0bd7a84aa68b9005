package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Put("/v1/notifications/{id}", okHandler)

	before := testutil.ToFloat64(httpRequests.WithLabelValues("/v1/notifications/{id}", http.MethodPut, "200"))
	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/v1/notifications/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("/v1/notifications/{id}", http.MethodPut, "200"))

	assert.Equal(t, 2.0, after-before)
}
