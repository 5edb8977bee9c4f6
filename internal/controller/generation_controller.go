package controller

import (
	"net/http"

	"github.com/unclebandit/postplanner-backend/internal/service"
)

type GenerationController struct {
	GenerationService *service.GenerationService
}

// Create queues a generation job and answers 202 with its id; clients poll
// GET /generation-jobs/{id} for progress.
func (c *GenerationController) Create(w http.ResponseWriter, r *http.Request) {
	var body service.GenerationRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := c.GenerationService.RequestGeneration(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "job": job})
}

func (c *GenerationController) List(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := queryInt(r, "schedule_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var filter *int
	if scheduleID > 0 {
		filter = &scheduleID
	}
	jobs, err := c.GenerationService.ListJobs(r.Context(), filter, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": jobs})
}

// Active answers with the active job, or null when none is running.
func (c *GenerationController) Active(w http.ResponseWriter, r *http.Request) {
	job, err := c.GenerationService.GetActiveJob(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (c *GenerationController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	job, err := c.GenerationService.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
