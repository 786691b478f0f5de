// Package api exposes reports, job status and run events over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis/v13/screener/internal/api/handlers"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

// Handlers groups what the router serves. Nil members are not routed.
type Handlers struct {
	Report    *handlers.ReportHandler
	Scheduler *handlers.SchedulerHandler
	Hub       *Hub
	Metrics   http.Handler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics).Methods("GET")
	}
	if h.Hub != nil {
		r.Handle("/ws/runs", h.Hub)
	}

	api := r.PathPrefix("/api").Subrouter()

	// Report endpoints ("latest" 라우트가 {date}보다 먼저)
	if h.Report != nil {
		api.HandleFunc("/reports/latest", h.Report.GetLatest).Methods("GET")
		api.HandleFunc("/reports/latest/markdown", h.Report.GetLatestMarkdown).Methods("GET")
		api.HandleFunc("/reports/latest/candidates", h.Report.GetLatestCandidates).Methods("GET")
		api.HandleFunc("/reports/{date}", h.Report.GetByDate).Methods("GET")
	}

	// Scheduler endpoints
	if h.Scheduler != nil {
		api.HandleFunc("/scheduler/jobs", h.Scheduler.ListJobs).Methods("GET")
		api.HandleFunc("/scheduler/jobs/{name}/run", h.Scheduler.TriggerJob).Methods("POST")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "screener",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					respondInternalError(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func respondInternalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "Internal server error",
	})
}
