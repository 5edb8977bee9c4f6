package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
)

type errorBody struct {
	Code    appErrors.Kind `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("[HTTP] failed to encode response")
	}
}

// writeError renders err as {"error": {...}} with the status of its kind.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := appErrors.HTTPStatus(err)
	body := errorBody{Code: appErrors.KindOf(err), Message: err.Error()}

	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Details = appErr.Details
	}
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("[HTTP] request failed")
		if body.Code == appErrors.KindInternal {
			body.Message = "internal server error"
		}
	}
	writeJSON(w, status, map[string]any{"error": body})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return appErrors.NewValidation("invalid request body: %v", err)
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, appErrors.NewValidation("invalid %s %q", name, raw)
	}
	return id, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, appErrors.NewValidation("invalid %s %q", name, raw)
	}
	return id, nil
}

func queryDate(r *http.Request, name string, required bool) (*model.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			return nil, appErrors.NewValidation("query parameter %s is required (YYYY-MM-DD)", name)
		}
		return nil, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return nil, appErrors.NewValidation("%s: %v", name, err)
	}
	return &d, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, appErrors.NewValidation("invalid %s %q", name, raw)
	}
	return n, nil
}
