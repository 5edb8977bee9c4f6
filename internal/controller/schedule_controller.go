package controller

import (
	"net/http"
	"strings"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/repository"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

type ScheduleController struct {
	ScheduleService     *service.ScheduleService
	AvailabilityService *service.AvailabilityService
	AssignmentService   *service.AssignmentService
}

type timeSlotBody struct {
	model.TimeSlot
	IsEnabled *bool `json:"is_enabled"`
}

type scheduleBody struct {
	AccountID   int                  `json:"account_id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Frequency   model.Frequency      `json:"frequency"`
	Status      model.ScheduleStatus `json:"status"`
	IsEnabled   *bool                `json:"is_enabled"`
	StartDate   *model.Date          `json:"start_date"`
	EndDate     *model.Date          `json:"end_date"`
	CustomDays  []int                `json:"custom_days"`
	Timezone    string               `json:"timezone"`
	TimeSlots   []timeSlotBody       `json:"time_slots"`
}

// toModel applies defaults: schedules and slots are enabled unless the
// body says otherwise.
func (b scheduleBody) toModel() (*model.Schedule, []model.TimeSlot) {
	s := &model.Schedule{
		AccountID:   b.AccountID,
		Name:        strings.TrimSpace(b.Name),
		Description: b.Description,
		Frequency:   b.Frequency,
		Status:      b.Status,
		IsEnabled:   b.IsEnabled == nil || *b.IsEnabled,
		StartDate:   b.StartDate,
		EndDate:     b.EndDate,
		CustomDays:  b.CustomDays,
		Timezone:    b.Timezone,
	}
	slots := make([]model.TimeSlot, len(b.TimeSlots))
	for i, tb := range b.TimeSlots {
		slots[i] = tb.TimeSlot
		slots[i].IsEnabled = tb.IsEnabled == nil || *tb.IsEnabled
	}
	return s, slots
}

func (c *ScheduleController) Create(w http.ResponseWriter, r *http.Request) {
	var body scheduleBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	schedule, slots := body.toModel()
	created, err := c.ScheduleService.Create(r.Context(), schedule, slots)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (c *ScheduleController) List(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt(r, "account_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	schedules, err := c.ScheduleService.List(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": schedules})
}

func (c *ScheduleController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	schedule, err := c.ScheduleService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (c *ScheduleController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body scheduleBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	schedule, slots := body.toModel()
	schedule.ID = id
	updated, err := c.ScheduleService.Update(r.Context(), schedule, slots)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (c *ScheduleController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cancelled, err := c.ScheduleService.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id, "cancelled_assignments": cancelled})
}

func (c *ScheduleController) SetEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		IsEnabled *bool `json:"is_enabled"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.IsEnabled == nil {
		writeError(w, r, appErrors.NewValidation("is_enabled is required"))
		return
	}
	schedule, err := c.ScheduleService.SetEnabled(r.Context(), id, *body.IsEnabled)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (c *ScheduleController) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Status model.ScheduleStatus `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	schedule, err := c.ScheduleService.SetStatus(r.Context(), id, body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

type slotView struct {
	TimeSlotID int            `json:"time_slot_id"`
	Date       model.Date     `json:"date"`
	StartTime  string         `json:"start_time"`
	EndTime    string         `json:"end_time"`
	DayOfWeek  int            `json:"day_of_week"`
	PostType   model.PostType `json:"post_type"`
	Label      string         `json:"label"`
}

func (c *ScheduleController) Availability(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := queryDate(r, "date", true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	open, err := c.AvailabilityService.GetAvailableSlots(r.Context(), id, *date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]slotView, len(open))
	for i, inst := range open {
		views[i] = slotView{
			TimeSlotID: inst.TimeSlotID,
			Date:       inst.Date,
			StartTime:  inst.StartTime,
			EndTime:    inst.EndTime,
			DayOfWeek:  inst.DayOfWeek,
			PostType:   inst.PostType,
			Label:      inst.Label,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": views})
}

func (c *ScheduleController) NextGeneratableWeek(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	week, err := c.AvailabilityService.NextGeneratableWeek(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"next_week": week})
}

func (c *ScheduleController) ListAssignments(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := repository.AssignmentFilter{ScheduleID: id}
	if filter.From, err = queryDate(r, "from", false); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.To, err = queryDate(r, "to", false); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, model.AssignmentStatus(strings.TrimSpace(s)))
		}
	}
	list, err := c.AssignmentService.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}
