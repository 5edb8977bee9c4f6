package memstore

import (
	"context"
	"sort"
	"time"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/repository"
)

type AssignmentRepository struct {
	s *Store
}

func (r *AssignmentRepository) Create(_ context.Context, a *model.ScheduledContent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contents[a.ContentID]
	if !ok {
		return appErrors.NewNotFound("content", a.ContentID)
	}
	switch c.Status {
	case model.ContentPublished:
		return appErrors.NewImmutable("content %d is already published", a.ContentID)
	case model.ContentRejected:
		return appErrors.NewValidation("content %d is rejected and cannot be scheduled", a.ContentID)
	}

	for _, cur := range r.s.assignments {
		if !cur.Status.Active() {
			continue
		}
		if a.TimeSlotID != nil && cur.TimeSlotID != nil && *cur.TimeSlotID == *a.TimeSlotID &&
			cur.ScheduleID == a.ScheduleID && cur.ScheduledDate.Equal(a.ScheduledDate) {
			return appErrors.NewConflict("time slot is already booked for this date", map[string]any{
				"schedule_id":            a.ScheduleID,
				"time_slot_id":           a.TimeSlotID,
				"scheduled_date":         a.ScheduledDate.String(),
				"blocking_assignment_id": cur.ID,
			})
		}
		if cur.ContentID == a.ContentID {
			return appErrors.NewConflict("content is already bound to an active assignment", map[string]any{
				"content_id": a.ContentID,
			})
		}
	}

	now := time.Now()
	a.ID = r.s.id()
	a.CreatedAt, a.UpdatedAt = now, now
	stored := *a
	r.s.assignments[a.ID] = &stored
	if c.Status == model.ContentGenerated {
		c.Status = model.ContentQueued
		c.UpdatedAt = &now
	}
	return nil
}

func (r *AssignmentRepository) GetByID(_ context.Context, id int) (*model.ScheduledContent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.assignments[id]
	if !ok {
		return nil, appErrors.NewNotFound("assignment", id)
	}
	out := *a
	return &out, nil
}

func (r *AssignmentRepository) ListActiveBetween(ctx context.Context, scheduleID int, from, to model.Date) ([]model.ScheduledContent, error) {
	return r.List(ctx, repository.AssignmentFilter{
		ScheduleID: scheduleID,
		From:       &from,
		To:         &to,
		Statuses:   model.ActiveAssignmentStatuses,
	})
}

func (r *AssignmentRepository) List(_ context.Context, f repository.AssignmentFilter) ([]model.ScheduledContent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []model.ScheduledContent{}
	for _, a := range r.s.assignments {
		if a.ScheduleID != f.ScheduleID {
			continue
		}
		if f.From != nil && a.ScheduledDate.Before(*f.From) {
			continue
		}
		if f.To != nil && a.ScheduledDate.After(*f.To) {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, a.Status) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		x, y := out[i], out[j]
		if !x.ScheduledDate.Equal(y.ScheduledDate) {
			return x.ScheduledDate.Before(y.ScheduledDate)
		}
		if x.ScheduledTime != y.ScheduledTime {
			return x.ScheduledTime < y.ScheduledTime
		}
		if x.Priority != y.Priority {
			return x.Priority < y.Priority
		}
		return x.ID < y.ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *AssignmentRepository) Transition(_ context.Context, id int, from []model.AssignmentStatus, to model.AssignmentStatus, failureReason string, at time.Time) (*model.ScheduledContent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.assignments[id]
	if !ok || !hasStatus(from, a.Status) {
		return nil, nil
	}
	a.Status = to
	a.FailureReason = failureReason
	a.UpdatedAt = at
	if to == model.AssignmentPublished {
		published := at
		a.PublishedAt = &published
		if c, ok := r.s.contents[a.ContentID]; ok {
			c.Status = model.ContentPublished
			c.UpdatedAt = &published
		}
	}
	out := *a
	return &out, nil
}

func hasStatus(set []model.AssignmentStatus, s model.AssignmentStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
