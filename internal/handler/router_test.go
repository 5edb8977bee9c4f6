package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/postplanner-backend/internal/controller"
	"github.com/unclebandit/postplanner-backend/internal/generator"
	"github.com/unclebandit/postplanner-backend/internal/handler"
	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/repository/memstore"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, uuid.UUID) error { return nil }

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("connection refused") }

// newServer wires the router over a fresh store; the clock sits at
// 08:00 UTC on Monday 2024-06-10.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memstore.New()
	now := func() time.Time { return time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC) }

	avail := &service.AvailabilityService{
		ScheduleRepo:   store.Schedules,
		AssignmentRepo: store.Assignments,
		Policy:         service.WeekPolicyGenerated,
		Now:            now,
	}
	assign := &service.AssignmentService{
		ScheduleRepo:   store.Schedules,
		ContentRepo:    store.Contents,
		AssignmentRepo: store.Assignments,
		Now:            now,
	}
	gen := &service.GenerationService{
		JobRepo:      store.Jobs,
		ContentRepo:  store.Contents,
		Availability: avail,
		Assignments:  assign,
		Generator:    generator.NewMock(),
		Dispatcher:   nopDispatcher{},
		Now:          now,
	}
	r := handler.NewRouter(handler.Controllers{
		Schedules: &controller.ScheduleController{
			ScheduleService:     &service.ScheduleService{ScheduleRepo: store.Schedules},
			AvailabilityService: avail,
			AssignmentService:   assign,
		},
		Contents:    &controller.ContentController{ContentService: &service.ContentService{ContentRepo: store.Contents}},
		Assignments: &controller.AssignmentController{AssignmentService: assign},
		Generation:  &controller.GenerationController{GenerationService: gen},
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func errorOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error body, got %v", body)
	return e
}

var dailyReels = map[string]any{
	"account_id": 1,
	"name":       "Daily Posts",
	"frequency":  "daily",
	"timezone":   "UTC",
	"time_slots": []map[string]any{{
		"day_of_week":   1,
		"start_time":    "09:00",
		"end_time":      "10:00",
		"post_type":     "reel",
		"label":         "Morning reel",
		"reel_duration": 16,
	}},
}

func createSchedule(t *testing.T, srv *httptest.Server) (int, int) {
	t.Helper()
	resp, body := do(t, srv, http.MethodPost, "/schedules", dailyReels)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	slots := body["time_slots"].([]any)
	require.Len(t, slots, 1)
	return int(body["id"].(float64)), int(slots[0].(map[string]any)["id"].(float64))
}

func createContent(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	resp, body := do(t, srv, http.MethodPost, "/contents", map[string]any{
		"account_id": 1, "caption": "hello", "type": "reel",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return int(body["id"].(float64))
}

func TestHealthz(t *testing.T) {
	srv := newServer(t)
	resp, body := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	degraded := httptest.NewServer(handler.NewRouter(handler.Controllers{
		Schedules:   &controller.ScheduleController{},
		Contents:    &controller.ContentController{},
		Assignments: &controller.AssignmentController{},
		Generation:  &controller.GenerationController{},
		DB:          downDB{},
	}))
	defer degraded.Close()
	resp, body = do(t, degraded, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
}

func TestScheduleValidationErrorShape(t *testing.T) {
	srv := newServer(t)
	resp, body := do(t, srv, http.MethodPost, "/schedules", map[string]any{
		"account_id": 1,
		"name":       "Broken",
		"frequency":  "daily",
		"time_slots": []map[string]any{{
			"day_of_week": 1, "start_time": "09:00", "end_time": "10:00", "post_type": "reel",
		}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	e := errorOf(t, body)
	assert.Equal(t, "VALIDATION", e["code"])
	assert.Contains(t, e["message"], "time_slots[0]")
}

func TestAvailabilityEndpoint(t *testing.T) {
	srv := newServer(t)
	id, slotID := createSchedule(t, srv)

	resp, body := do(t, srv, http.MethodGet, "/schedules/"+strconv.Itoa(id)+"/availability?date=2024-06-11", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	slot := data[0].(map[string]any)
	assert.Equal(t, float64(slotID), slot["time_slot_id"])
	assert.Equal(t, "2024-06-11", slot["date"])
	assert.Equal(t, "09:00", slot["start_time"])

	resp, body = do(t, srv, http.MethodGet, "/schedules/"+strconv.Itoa(id)+"/availability", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "VALIDATION", errorOf(t, body)["code"])

	resp, body = do(t, srv, http.MethodGet, "/schedules/999/availability?date=2024-06-11", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorOf(t, body)["code"])
}

func TestDoubleBookingReturnsConflict(t *testing.T) {
	srv := newServer(t)
	id, slotID := createSchedule(t, srv)
	first, second := createContent(t, srv), createContent(t, srv)

	req := func(contentID int) map[string]any {
		return map[string]any{
			"schedule_id": id, "time_slot_id": slotID, "content_id": contentID, "scheduled_date": "2024-06-11",
		}
	}
	resp, body := do(t, srv, http.MethodPost, "/assignments", req(first))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "09:00", body["scheduled_time"])
	assignmentID := body["id"].(float64)

	resp, body = do(t, srv, http.MethodPost, "/assignments", req(second))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	e := errorOf(t, body)
	assert.Equal(t, "CONFLICT", e["code"])
	details := e["details"].(map[string]any)
	assert.Equal(t, assignmentID, details["blocking_assignment_id"])

	resp, body = do(t, srv, http.MethodGet, "/schedules/"+strconv.Itoa(id)+"/availability?date=2024-06-11", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["data"])

	resp, _ = do(t, srv, http.MethodDelete, "/assignments/"+strconv.Itoa(int(assignmentID)), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, "/schedules/"+strconv.Itoa(id)+"/availability?date=2024-06-11", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)
}

func TestAssignmentStatusTransitions(t *testing.T) {
	srv := newServer(t)
	id, slotID := createSchedule(t, srv)
	contentID := createContent(t, srv)
	resp, body := do(t, srv, http.MethodPost, "/assignments", map[string]any{
		"schedule_id": id, "time_slot_id": slotID, "content_id": contentID, "scheduled_date": "2024-06-12",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	path := "/assignments/" + strconv.Itoa(int(body["id"].(float64)))

	resp, body = do(t, srv, http.MethodPatch, path, map[string]any{"status": "published"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "published", body["status"])
	assert.NotEmpty(t, body["published_at"])

	resp, body = do(t, srv, http.MethodPatch, path, map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "IMMUTABLE", errorOf(t, body)["code"])

	resp, body = do(t, srv, http.MethodPost, "/contents/"+strconv.Itoa(contentID)+"/reject", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "IMMUTABLE", errorOf(t, body)["code"])
}

func TestGenerationJobEndpoints(t *testing.T) {
	srv := newServer(t)
	id, _ := createSchedule(t, srv)

	resp, body := do(t, srv, http.MethodGet, "/generation-jobs/active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body)

	resp, body = do(t, srv, http.MethodPost, "/generation-jobs", map[string]any{"schedule_id": id})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, body)
	jobID := body["job_id"].(string)
	job := body["job"].(map[string]any)
	assert.Equal(t, "pending", job["status"])
	assert.Equal(t, "2024-06-10", job["generation_week"])

	resp, body = do(t, srv, http.MethodPost, "/generation-jobs", map[string]any{"schedule_id": id})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	e := errorOf(t, body)
	assert.Equal(t, "CONFLICT", e["code"])
	assert.Equal(t, jobID, e["details"].(map[string]any)["blocking_job_id"])

	resp, body = do(t, srv, http.MethodGet, "/generation-jobs/active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, jobID, body["id"])

	resp, body = do(t, srv, http.MethodGet, "/generation-jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["progress"])

	resp, _ = do(t, srv, http.MethodGet, "/generation-jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/generation-jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, "/generation-jobs?schedule_id="+strconv.Itoa(id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)
}

func TestNextGeneratableWeekEndpoint(t *testing.T) {
	srv := newServer(t)
	id, _ := createSchedule(t, srv)
	resp, body := do(t, srv, http.MethodGet, "/schedules/"+strconv.Itoa(id)+"/next-generatable-week", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.NewDate(2024, time.June, 10).String(), body["next_week"])
}

func TestDeleteScheduleReportsCancelled(t *testing.T) {
	srv := newServer(t)
	id, slotID := createSchedule(t, srv)
	contentID := createContent(t, srv)
	resp, _ := do(t, srv, http.MethodPost, "/assignments", map[string]any{
		"schedule_id": id, "time_slot_id": slotID, "content_id": contentID, "scheduled_date": "2024-06-13",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, srv, http.MethodDelete, "/schedules/"+strconv.Itoa(id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, float64(1), body["cancelled_assignments"])

	// Assignment history keeps the schedule row, retired.
	resp, body = do(t, srv, http.MethodGet, "/schedules/"+strconv.Itoa(id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["is_enabled"])
	assert.Equal(t, "inactive", body["status"])

	resp, body = do(t, srv, http.MethodGet, "/schedules/"+strconv.Itoa(id)+"/availability?date=2024-06-13", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
