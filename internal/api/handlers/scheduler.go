package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/optionrank/internal/scheduler"
	"github.com/wonny/optionrank/pkg/logger"
)

// JobScheduler is the maintenance scheduler surface exposed on the worker admin port
type JobScheduler interface {
	GetAllJobs() []string
	GetJobStats() map[string]scheduler.JobStats
	GetJobHistory(jobName string) (*scheduler.JobHistory, error)
	RunJob(jobName string) (scheduler.JobResult, error)
}

const defaultHistoryLimit = 20

// SchedulerHandler serves maintenance job stats, history and manual runs
type SchedulerHandler struct {
	sched  JobScheduler
	logger *logger.Logger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(sched JobScheduler, log *logger.Logger) *SchedulerHandler {
	return &SchedulerHandler{sched: sched, logger: log}
}

// ListJobs handles GET /scheduler/jobs
func (h *SchedulerHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	stats := h.sched.GetJobStats()

	out := make([]scheduler.JobStats, 0, len(stats))
	for _, name := range h.sched.GetAllJobs() {
		if s, ok := stats[name]; ok {
			out = append(out, s)
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"jobs": out})
}

// GetHistory handles GET /scheduler/jobs/{name}?limit=N
func (h *SchedulerHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	history, err := h.sched.GetJobHistory(name)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"job_name":     name,
		"success_rate": history.GetSuccessRate(),
		"results":      history.GetLatestResults(limit),
	})
}

// RunJob handles POST /scheduler/jobs/{name}/run; the response carries the finished result
func (h *SchedulerHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	result, err := h.sched.RunJob(name)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"job":     name,
		"success": result.Success,
	}).Info("Scheduled job run on demand")

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, result)
}
