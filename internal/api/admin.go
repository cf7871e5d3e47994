package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/optionrank/internal/api/handlers"
	"github.com/wonny/optionrank/pkg/logger"
)

// BreakerReporter exposes a snapshot source's circuit breaker state
type BreakerReporter interface {
	BreakerState() string
}

// NewAdminRouter builds the worker's admin surface: health, metrics and the
// maintenance scheduler. Any of sched, breaker and gatherer may be nil.
func NewAdminRouter(sched handlers.JobScheduler, breaker BreakerReporter, gatherer prometheus.Gatherer, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", workerHealthHandler(breaker)).Methods("GET")

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	if sched != nil {
		h := handlers.NewSchedulerHandler(sched, log)
		r.HandleFunc("/scheduler/jobs", h.ListJobs).Methods("GET")
		r.HandleFunc("/scheduler/jobs/{name}", h.GetHistory).Methods("GET")
		r.HandleFunc("/scheduler/jobs/{name}/run", h.RunJob).Methods("POST")
	}

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// workerHealthHandler reports the worker as degraded while the snapshot breaker is open
func workerHealthHandler(breaker BreakerReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "optionrank-worker",
		}
		status := http.StatusOK

		if breaker != nil {
			state := breaker.BreakerState()
			body["snapshot_breaker"] = state
			if state == "open" {
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}
