package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/preflight/pkg/log"
	"github.com/bft-labs/preflight/pkg/preflight"
)

// Response is the JSON body of every status endpoint.
type Response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// StatusFunc reports the orchestrator state.
type StatusFunc func() preflight.State

// NewRouter builds the status routes:
//   - GET /healthz - liveness, always 200
//   - GET /readyz  - 200 while the server is running, 503 otherwise
//   - GET /version - build versions
//   - GET /metrics - Prometheus exposition (when gatherer is non-nil)
func NewRouter(status StatusFunc, gatherer prometheus.Gatherer, versions map[string]string, logger log.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	startedAt := time.Now()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Response{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"uptime_sec": int64(time.Since(startedAt).Seconds()),
			},
		})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		state := status()
		if state != preflight.StateRunning {
			writeJSON(w, http.StatusServiceUnavailable, Response{
				Status:    "unhealthy",
				Timestamp: time.Now().UTC(),
				Error:     "state is " + state.String(),
			})
			return
		}
		writeJSON(w, http.StatusOK, Response{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Data:      map[string]string{"state": state.String()},
		})
	})

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Response{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Data:      versions,
		})
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs each request at debug level; probes are frequent.
func requestLogger(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("status request",
				log.String("request_id", middleware.GetReqID(r.Context())),
				log.String("method", r.Method),
				log.String("path", r.URL.Path),
				log.Int("status", ww.Status()),
				log.Duration("duration", time.Since(start)))
		})
	}
}
