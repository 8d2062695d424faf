package telemetry

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer returns a chi mux exposing /healthz and /metrics, grounded on
// the teacher's pkg/metrics.Server shape. The caller owns the http.Server
// lifecycle; this only builds the handler.
func NewServer() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
