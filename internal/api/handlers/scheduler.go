package handlers

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis/v13/screener/internal/scheduler"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

// JobControl is the part of the scheduler exposed over HTTP
type JobControl interface {
	GetJobStats() map[string]scheduler.JobStats
	RunJob(jobName string) error
}

// SchedulerHandler exposes job status and manual triggers
type SchedulerHandler struct {
	jobs   JobControl
	logger *logger.Logger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(jobs JobControl, log *logger.Logger) *SchedulerHandler {
	return &SchedulerHandler{
		jobs:   jobs,
		logger: log.WithComponent("scheduler_handler"),
	}
}

// ListJobs returns statistics for every registered job, sorted by name
// GET /api/scheduler/jobs
func (h *SchedulerHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	stats := h.jobs.GetJobStats()
	out := make([]scheduler.JobStats, 0, len(stats))
	for _, s := range stats {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobName < out[j].JobName })

	respondJSON(w, http.StatusOK, out)
}

// TriggerJob starts a job outside its schedule
// POST /api/scheduler/jobs/{name}/run
func (h *SchedulerHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.jobs.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.WithField("job", name).Info("Job triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"job":    name,
		"status": "started",
	})
}
