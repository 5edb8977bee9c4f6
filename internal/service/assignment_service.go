package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/recurrence"
	"github.com/unclebandit/postplanner-backend/internal/repository"
)

type AssignmentService struct {
	ScheduleRepo   repository.ScheduleRepositoryInterface
	ContentRepo    repository.ContentRepositoryInterface
	AssignmentRepo repository.AssignmentRepositoryInterface
	Now            func() time.Time
}

type AssignRequest struct {
	ScheduleID    int        `json:"schedule_id"`
	TimeSlotID    *int       `json:"time_slot_id,omitempty"`
	ContentID     int        `json:"content_id"`
	ScheduledDate model.Date `json:"scheduled_date"`
	ScheduledTime string     `json:"scheduled_time,omitempty"`
	Priority      int        `json:"priority"`
	Notes         string     `json:"notes,omitempty"`
}

// allowedFrom lists, per target status, the statuses an assignment may move from.
var allowedFrom = map[model.AssignmentStatus][]model.AssignmentStatus{
	model.AssignmentScheduled: {model.AssignmentQueued},
	model.AssignmentPublished: model.PendingAssignmentStatuses,
	model.AssignmentFailed:    model.PendingAssignmentStatuses,
	model.AssignmentCancelled: model.PendingAssignmentStatuses,
}

func (s *AssignmentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Assign binds content to a schedule date (and optionally a slot) as a
// manual, queued assignment.
func (s *AssignmentService) Assign(ctx context.Context, req AssignRequest) (*model.ScheduledContent, error) {
	return s.assign(ctx, req, model.AssignmentQueued, nil)
}

// AssignGenerated binds content produced by a generation job. Such
// assignments start out scheduled.
func (s *AssignmentService) AssignGenerated(ctx context.Context, req AssignRequest, jobID uuid.UUID) (*model.ScheduledContent, error) {
	return s.assign(ctx, req, model.AssignmentScheduled, &jobID)
}

func (s *AssignmentService) assign(ctx context.Context, req AssignRequest, status model.AssignmentStatus, jobID *uuid.UUID) (*model.ScheduledContent, error) {
	if req.ScheduledDate.IsZero() {
		return nil, appErrors.NewValidation("scheduled_date is required")
	}
	if req.ScheduledTime != "" {
		if _, err := model.ParseClock(req.ScheduledTime); err != nil {
			return nil, appErrors.NewValidation("scheduled_time %q is not a valid HH:MM time", req.ScheduledTime)
		}
	}

	schedule, err := s.ScheduleRepo.GetByID(ctx, req.ScheduleID)
	if err != nil {
		return nil, err
	}
	if !schedule.Usable() {
		return nil, appErrors.NewValidation("schedule %d is not accepting assignments", schedule.ID)
	}
	if !schedule.Covers(req.ScheduledDate) {
		return nil, appErrors.NewValidation("scheduled_date %s is outside the schedule date range", req.ScheduledDate)
	}

	content, err := s.ContentRepo.GetByID(ctx, req.ContentID)
	if err != nil {
		return nil, err
	}
	switch content.Status {
	case model.ContentPublished:
		return nil, appErrors.NewImmutable("content %d is already published", content.ID)
	case model.ContentRejected:
		return nil, appErrors.NewValidation("content %d is rejected and cannot be scheduled", content.ID)
	}
	if schedule.AccountID != 0 && content.AccountID != 0 && content.AccountID != schedule.AccountID {
		return nil, appErrors.NewValidation("content %d belongs to another account", content.ID)
	}

	scheduledTime := req.ScheduledTime
	if req.TimeSlotID != nil {
		inst, err := s.slotInstance(ctx, schedule, *req.TimeSlotID, req.ScheduledDate)
		if err != nil {
			return nil, err
		}
		if content.Type != "" && content.Type != inst.PostType {
			return nil, appErrors.NewValidation("content type %s does not match slot post type %s", content.Type, inst.PostType)
		}
		if scheduledTime == "" {
			scheduledTime = inst.StartTime
		}
	}

	a := &model.ScheduledContent{
		ScheduleID:      schedule.ID,
		TimeSlotID:      req.TimeSlotID,
		ContentID:       content.ID,
		ScheduledDate:   req.ScheduledDate,
		ScheduledTime:   scheduledTime,
		Status:          status,
		Priority:        req.Priority,
		Notes:           req.Notes,
		GenerationJobID: jobID,
	}
	// The repository insert re-checks slot and content occupancy atomically.
	if err := s.AssignmentRepo.Create(ctx, a); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"assignment_id": a.ID,
		"schedule_id":   a.ScheduleID,
		"content_id":    a.ContentID,
		"date":          a.ScheduledDate.String(),
		"status":        a.Status,
	}).Info("[ASSIGNMENT] content assigned")
	return a, nil
}

// slotInstance checks that slotID belongs to the schedule, occurs on date and
// is still open there.
func (s *AssignmentService) slotInstance(ctx context.Context, schedule *model.Schedule, slotID int, date model.Date) (*model.SlotInstance, error) {
	slots, err := s.ScheduleRepo.ListSlots(ctx, schedule.ID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, t := range slots {
		if t.ID == slotID {
			found = true
			break
		}
	}
	if !found {
		return nil, appErrors.NewValidation("time slot %d does not belong to schedule %d", slotID, schedule.ID)
	}

	var inst *model.SlotInstance
	for _, candidate := range recurrence.ResolveSlotInstances(schedule, slots, date) {
		if candidate.TimeSlotID == slotID {
			c := candidate
			inst = &c
			break
		}
	}
	if inst == nil {
		return nil, appErrors.NewValidation("time slot %d does not occur on %s (%s)", slotID, date, date.Weekday())
	}

	active, err := s.AssignmentRepo.ListActiveBetween(ctx, schedule.ID, date, date)
	if err != nil {
		return nil, err
	}
	if blocking, ok := occupiedSlots(active)[slotKey{slotID, date}]; ok {
		return nil, appErrors.NewConflict("time slot is already booked for this date", map[string]any{
			"schedule_id":            schedule.ID,
			"time_slot_id":           slotID,
			"scheduled_date":         date.String(),
			"blocking_assignment_id": blocking,
		})
	}
	return inst, nil
}

func (s *AssignmentService) Get(ctx context.Context, id int) (*model.ScheduledContent, error) {
	return s.AssignmentRepo.GetByID(ctx, id)
}

// UpdateStatus moves an assignment through its lifecycle:
// queued -> scheduled, and queued|scheduled -> published|failed|cancelled.
func (s *AssignmentService) UpdateStatus(ctx context.Context, id int, to model.AssignmentStatus, failureReason string) (*model.ScheduledContent, error) {
	if !to.Valid() {
		return nil, appErrors.NewValidation("unknown assignment status %q", to)
	}
	if to == model.AssignmentFailed && failureReason == "" {
		return nil, appErrors.NewValidation("failure_reason is required when marking an assignment failed")
	}

	current, err := s.AssignmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from, ok := allowedFrom[to]
	if err := checkTransition(current, to, from, ok); err != nil {
		return nil, err
	}

	updated, err := s.AssignmentRepo.Transition(ctx, id, from, to, failureReason, s.now())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// Someone else moved it between the read and the write.
		latest, err := s.AssignmentRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, checkTransition(latest, to, from, ok)
	}

	logrus.WithFields(logrus.Fields{
		"assignment_id": id,
		"from":          current.Status,
		"to":            to,
	}).Info("[ASSIGNMENT] status changed")
	return updated, nil
}

func checkTransition(current *model.ScheduledContent, to model.AssignmentStatus, from []model.AssignmentStatus, known bool) error {
	if current.Status == model.AssignmentPublished {
		return appErrors.NewImmutable("assignment %d is published and cannot change", current.ID)
	}
	if known {
		for _, f := range from {
			if f == current.Status {
				return nil
			}
		}
	}
	return appErrors.NewConflict(
		fmt.Sprintf("cannot move assignment from %s to %s", current.Status, to),
		map[string]any{
			"assignment_id":  current.ID,
			"current_status": string(current.Status),
			"target_status":  string(to),
		})
}

// Cancel removes an assignment from its slot. Only queued or scheduled
// assignments can be cancelled.
func (s *AssignmentService) Cancel(ctx context.Context, id int) (*model.ScheduledContent, error) {
	return s.UpdateStatus(ctx, id, model.AssignmentCancelled, "cancelled by user")
}

func (s *AssignmentService) List(ctx context.Context, f repository.AssignmentFilter) ([]model.ScheduledContent, error) {
	if _, err := s.ScheduleRepo.GetByID(ctx, f.ScheduleID); err != nil {
		return nil, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, appErrors.NewValidation("to must not be before from")
	}
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, appErrors.NewValidation("unknown assignment status %q", st)
		}
	}
	return s.AssignmentRepo.List(ctx, f)
}
