package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/postplanner-backend/internal/controller"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Controllers struct {
	Schedules   *controller.ScheduleController
	Contents    *controller.ContentController
	Assignments *controller.AssignmentController
	Generation  *controller.GenerationController
	DB          Pinger // optional
}

func NewRouter(c Controllers) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", health(c.DB))

	r.Route("/schedules", func(r chi.Router) {
		r.Post("/", c.Schedules.Create)
		r.Get("/", c.Schedules.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", c.Schedules.Get)
			r.Put("/", c.Schedules.Update)
			r.Delete("/", c.Schedules.Delete)
			r.Patch("/enabled", c.Schedules.SetEnabled)
			r.Patch("/status", c.Schedules.SetStatus)
			r.Get("/availability", c.Schedules.Availability)
			r.Get("/next-generatable-week", c.Schedules.NextGeneratableWeek)
			r.Get("/assignments", c.Schedules.ListAssignments)
		})
	})

	r.Route("/contents", func(r chi.Router) {
		r.Post("/", c.Contents.Create)
		r.Get("/{id}", c.Contents.Get)
		r.Post("/{id}/reject", c.Contents.Reject)
		r.Delete("/{id}", c.Contents.Delete)
	})

	r.Route("/assignments", func(r chi.Router) {
		r.Post("/", c.Assignments.Create)
		r.Patch("/{id}", c.Assignments.UpdateStatus)
		r.Delete("/{id}", c.Assignments.Delete)
	})

	r.Route("/generation-jobs", func(r chi.Router) {
		r.Post("/", c.Generation.Create)
		r.Get("/", c.Generation.List)
		r.Get("/active", c.Generation.Active)
		r.Get("/{id}", c.Generation.Get)
	})

	return r
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				logrus.WithError(err).Warn("[HTTP] health check: database unreachable")
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logrus.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("[HTTP] request")
	})
}
