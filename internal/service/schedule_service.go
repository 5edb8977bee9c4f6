package service

import (
	"context"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/repository"
	"github.com/unclebandit/postplanner-backend/internal/validations"
)

type ScheduleService struct {
	ScheduleRepo repository.ScheduleRepositoryInterface
}

func normalizeSchedule(s *model.Schedule) {
	if s.Status == "" {
		s.Status = model.ScheduleActive
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if s.Frequency != model.FrequencyCustom {
		s.CustomDays = nil
	}
}

func (s *ScheduleService) Create(ctx context.Context, schedule *model.Schedule, slots []model.TimeSlot) (*model.Schedule, error) {
	normalizeSchedule(schedule)
	if err := validations.ValidateSchedule(schedule, slots); err != nil {
		return nil, err
	}
	if err := s.ScheduleRepo.Create(ctx, schedule, slots); err != nil {
		return nil, err
	}
	schedule.TimeSlots = slots
	logrus.WithFields(logrus.Fields{"schedule_id": schedule.ID, "slots": len(slots)}).Info("[SCHEDULE] created")
	return schedule, nil
}

// Update replaces the schedule fields and its whole slot set. Slots carrying
// an ID are kept, the rest are new.
func (s *ScheduleService) Update(ctx context.Context, schedule *model.Schedule, slots []model.TimeSlot) (*model.Schedule, error) {
	existing, err := s.ScheduleRepo.GetByID(ctx, schedule.ID)
	if err != nil {
		return nil, err
	}
	known, err := s.ScheduleRepo.ListSlots(ctx, schedule.ID)
	if err != nil {
		return nil, err
	}
	ids := make(map[int]bool, len(known))
	for _, t := range known {
		ids[t.ID] = true
	}
	for _, t := range slots {
		if t.ID != 0 && !ids[t.ID] {
			return nil, appErrors.NewValidation("time slot %d does not belong to schedule %d", t.ID, schedule.ID)
		}
	}

	schedule.AccountID = existing.AccountID
	schedule.CreatedAt = existing.CreatedAt
	normalizeSchedule(schedule)
	if err := validations.ValidateSchedule(schedule, slots); err != nil {
		return nil, err
	}
	if err := s.ScheduleRepo.Update(ctx, schedule, slots); err != nil {
		return nil, err
	}
	return s.Get(ctx, schedule.ID)
}

// Get returns the schedule with its slot template attached.
func (s *ScheduleService) Get(ctx context.Context, id int) (*model.Schedule, error) {
	schedule, err := s.ScheduleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	slots, err := s.ScheduleRepo.ListSlots(ctx, id)
	if err != nil {
		return nil, err
	}
	schedule.TimeSlots = slots
	return schedule, nil
}

func (s *ScheduleService) List(ctx context.Context, accountID int) ([]*model.Schedule, error) {
	if accountID <= 0 {
		return nil, appErrors.NewValidation("account_id is required")
	}
	return s.ScheduleRepo.ListByAccount(ctx, accountID)
}

func (s *ScheduleService) SetEnabled(ctx context.Context, id int, enabled bool) (*model.Schedule, error) {
	if err := s.ScheduleRepo.SetEnabled(ctx, id, enabled); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *ScheduleService) SetStatus(ctx context.Context, id int, status model.ScheduleStatus) (*model.Schedule, error) {
	switch status {
	case model.ScheduleActive, model.SchedulePaused, model.ScheduleInactive:
	default:
		return nil, appErrors.NewValidation("unknown schedule status %q", status)
	}
	if err := s.ScheduleRepo.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete cancels the schedule's pending assignments and removes it with its slots.
func (s *ScheduleService) Delete(ctx context.Context, id int) (int, error) {
	cancelled, err := s.ScheduleRepo.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	logrus.WithFields(logrus.Fields{"schedule_id": id, "cancelled": cancelled}).Info("[SCHEDULE] deleted")
	return cancelled, nil
}
