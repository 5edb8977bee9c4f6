package memstore

import (
	"context"
	"sort"
	"time"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
)

type ScheduleRepository struct {
	s *Store
}

func (r *ScheduleRepository) Create(_ context.Context, sch *model.Schedule, slots []model.TimeSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sch.ID = r.s.id()
	sch.CreatedAt = time.Now()
	if sch.Status == "" {
		sch.Status = model.ScheduleActive
	}
	stored := *sch
	stored.TimeSlots = nil
	r.s.schedules[sch.ID] = &stored

	for i := range slots {
		slots[i].ID = r.s.id()
		slots[i].ScheduleID = sch.ID
		slots[i].CreatedAt = sch.CreatedAt
		t := slots[i]
		r.s.slots[t.ID] = &t
	}
	sch.TimeSlots = slots
	return nil
}

func (r *ScheduleRepository) Update(_ context.Context, sch *model.Schedule, slots []model.TimeSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.schedules[sch.ID]
	if !ok {
		return appErrors.NewNotFound("schedule", sch.ID)
	}
	for _, t := range slots {
		if t.ID == 0 {
			continue
		}
		if cur, ok := r.s.slots[t.ID]; !ok || cur.ScheduleID != sch.ID {
			return appErrors.NewValidation("time slot %d does not belong to schedule %d", t.ID, sch.ID)
		}
	}

	now := time.Now()
	stored := *sch
	stored.TimeSlots = nil
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = &now
	r.s.schedules[sch.ID] = &stored

	keep := map[int]bool{}
	for i := range slots {
		slots[i].ScheduleID = sch.ID
		if slots[i].ID == 0 {
			slots[i].ID = r.s.id()
			slots[i].CreatedAt = now
		}
		keep[slots[i].ID] = true
		t := slots[i]
		if prev, ok := r.s.slots[t.ID]; ok && t.Moved(prev) {
			r.s.cancelWhere("time slot changed", func(a *model.ScheduledContent) bool {
				return a.TimeSlotID != nil && *a.TimeSlotID == t.ID
			})
		}
		r.s.slots[t.ID] = &t
	}
	r.s.cancelWhere("time slot removed", func(a *model.ScheduledContent) bool {
		return a.ScheduleID == sch.ID && a.TimeSlotID != nil && !keep[*a.TimeSlotID]
	})
	for id, t := range r.s.slots {
		if t.ScheduleID == sch.ID && !keep[id] {
			r.dropSlot(id)
		}
	}
	sch.TimeSlots = slots
	return nil
}

// dropSlot deletes a slot and nulls references, like ON DELETE SET NULL.
func (r *ScheduleRepository) dropSlot(id int) {
	delete(r.s.slots, id)
	for _, a := range r.s.assignments {
		if a.TimeSlotID != nil && *a.TimeSlotID == id {
			a.TimeSlotID = nil
		}
	}
}

func (r *ScheduleRepository) GetByID(_ context.Context, id int) (*model.Schedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sch, ok := r.s.schedules[id]
	if !ok {
		return nil, appErrors.NewNotFound("schedule", id)
	}
	out := *sch
	out.CustomDays = append([]int(nil), sch.CustomDays...)
	return &out, nil
}

func (r *ScheduleRepository) ListSlots(_ context.Context, scheduleID int) ([]model.TimeSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.slotsOf(scheduleID), nil
}

func (r *ScheduleRepository) ListByAccount(_ context.Context, accountID int) ([]*model.Schedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []*model.Schedule{}
	for _, sch := range r.s.schedules {
		if sch.AccountID == accountID {
			c := *sch
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *ScheduleRepository) SetEnabled(_ context.Context, id int, enabled bool) error {
	return r.mutate(id, func(sch *model.Schedule) { sch.IsEnabled = enabled })
}

func (r *ScheduleRepository) SetStatus(_ context.Context, id int, status model.ScheduleStatus) error {
	return r.mutate(id, func(sch *model.Schedule) { sch.Status = status })
}

func (r *ScheduleRepository) mutate(id int, fn func(*model.Schedule)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sch, ok := r.s.schedules[id]
	if !ok {
		return appErrors.NewNotFound("schedule", id)
	}
	fn(sch)
	now := time.Now()
	sch.UpdatedAt = &now
	return nil
}

func (r *ScheduleRepository) Delete(_ context.Context, id int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sch, ok := r.s.schedules[id]
	if !ok {
		return 0, appErrors.NewNotFound("schedule", id)
	}
	cancelled := r.s.cancelWhere("schedule deleted", func(a *model.ScheduledContent) bool {
		return a.ScheduleID == id
	})
	for slotID, t := range r.s.slots {
		if t.ScheduleID == id {
			r.dropSlot(slotID)
		}
	}
	history := false
	for _, a := range r.s.assignments {
		if a.ScheduleID == id {
			history = true
			break
		}
	}
	if history {
		sch.IsEnabled = false
		sch.Status = model.ScheduleInactive
	} else {
		delete(r.s.schedules, id)
	}
	return cancelled, nil
}
