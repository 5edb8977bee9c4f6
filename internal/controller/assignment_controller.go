package controller

import (
	"net/http"

	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

type AssignmentController struct {
	AssignmentService *service.AssignmentService
}

func (c *AssignmentController) Create(w http.ResponseWriter, r *http.Request) {
	var body service.AssignRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	assignment, err := c.AssignmentService.Assign(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, assignment)
}

func (c *AssignmentController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Status        model.AssignmentStatus `json:"status"`
		FailureReason string                 `json:"failure_reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	assignment, err := c.AssignmentService.UpdateStatus(r.Context(), id, body.Status, body.FailureReason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

// Delete cancels the assignment; the row is kept as history.
func (c *AssignmentController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := c.AssignmentService.Cancel(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
