package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/recurrence"
	"github.com/unclebandit/postplanner-backend/internal/repository"
)

// WeekPolicy decides which existing assignments make a week ineligible for
// another generation run.
type WeekPolicy string

const (
	// WeekPolicyGenerated blocks a week holding any active assignment created
	// by a generation job.
	WeekPolicyGenerated WeekPolicy = "generated"
	// WeekPolicyAny blocks a week holding any active assignment at all.
	WeekPolicyAny WeekPolicy = "any"
	// WeekPolicyNone only looks at open capacity.
	WeekPolicyNone WeekPolicy = "none"
)

const DefaultHorizonWeeks = 52

func ParseWeekPolicy(s string) WeekPolicy {
	switch WeekPolicy(s) {
	case WeekPolicyAny, WeekPolicyNone:
		return WeekPolicy(s)
	default:
		return WeekPolicyGenerated
	}
}

func (p WeekPolicy) blocks(a model.ScheduledContent) bool {
	switch p {
	case WeekPolicyAny:
		return true
	case WeekPolicyNone:
		return false
	default:
		return a.GenerationJobID != nil
	}
}

// AvailabilityService answers which slot instances are still open. Nothing is
// cached between calls.
type AvailabilityService struct {
	ScheduleRepo   repository.ScheduleRepositoryInterface
	AssignmentRepo repository.AssignmentRepositoryInterface
	HorizonWeeks   int
	Policy         WeekPolicy
	Now            func() time.Time
}

func (s *AvailabilityService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AvailabilityService) horizon() int {
	if s.HorizonWeeks <= 0 {
		return DefaultHorizonWeeks
	}
	return s.HorizonWeeks
}

// usableSchedule loads a schedule with its slots. Disabled or non-active
// schedules are reported as not found.
func (s *AvailabilityService) usableSchedule(ctx context.Context, scheduleID int) (*model.Schedule, []model.TimeSlot, error) {
	schedule, err := s.ScheduleRepo.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, nil, err
	}
	if !schedule.Usable() {
		return nil, nil, appErrors.NewNotFound("schedule", scheduleID)
	}
	slots, err := s.ScheduleRepo.ListSlots(ctx, scheduleID)
	if err != nil {
		return nil, nil, err
	}
	return schedule, slots, nil
}

func (s *AvailabilityService) GetAvailableSlots(ctx context.Context, scheduleID int, date model.Date) ([]model.SlotInstance, error) {
	if date.IsZero() {
		return nil, appErrors.NewValidation("date is required")
	}
	schedule, slots, err := s.usableSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	active, err := s.AssignmentRepo.ListActiveBetween(ctx, scheduleID, date, date)
	if err != nil {
		return nil, err
	}
	return openSlots(schedule, slots, date, occupiedSlots(active)), nil
}

type slotKey struct {
	slotID int
	date   model.Date
}

func occupiedSlots(active []model.ScheduledContent) map[slotKey]int {
	taken := make(map[slotKey]int, len(active))
	for _, a := range active {
		if a.TimeSlotID == nil {
			continue
		}
		taken[slotKey{*a.TimeSlotID, a.ScheduledDate}] = a.ID
	}
	return taken
}

func openSlots(schedule *model.Schedule, slots []model.TimeSlot, date model.Date, taken map[slotKey]int) []model.SlotInstance {
	open := []model.SlotInstance{}
	for _, inst := range recurrence.ResolveSlotInstances(schedule, slots, date) {
		if _, ok := taken[slotKey{inst.TimeSlotID, date}]; ok {
			continue
		}
		open = append(open, inst)
	}
	return open
}

// NextGeneratableWeek returns the Monday of the first week, scanning forward
// from the later of today and the schedule start, that has open capacity on a
// day not yet passed and is not blocked by the week policy. It returns nil
// when nothing qualifies within the horizon.
func (s *AvailabilityService) NextGeneratableWeek(ctx context.Context, scheduleID int) (*model.Date, error) {
	schedule, slots, err := s.usableSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	today := model.DateIn(s.now(), schedule.Location())
	first := recurrence.FirstScanWeek(schedule, today)
	last := first.AddDays(7*s.horizon() - 1)
	if schedule.EndDate != nil && schedule.EndDate.Before(last) {
		last = *schedule.EndDate
	}
	if last.Before(first) {
		return nil, nil
	}

	active, err := s.AssignmentRepo.ListActiveBetween(ctx, scheduleID, first, recurrence.WeekEnd(last))
	if err != nil {
		return nil, err
	}
	taken := occupiedSlots(active)
	blocked := map[model.Date]bool{}
	for _, a := range active {
		if s.Policy.blocks(a) {
			blocked[a.ScheduledDate.WeekStart()] = true
		}
	}

	for monday := first; !monday.After(last); monday = monday.AddDays(7) {
		if blocked[monday] {
			continue
		}
		if weekHasCapacity(schedule, slots, monday, today, taken) {
			week := monday
			return &week, nil
		}
	}
	logrus.WithFields(logrus.Fields{
		"schedule_id": scheduleID,
		"from":        first.String(),
		"weeks":       s.horizon(),
	}).Info("[AVAILABILITY] no generatable week within horizon")
	return nil, nil
}

func weekHasCapacity(schedule *model.Schedule, slots []model.TimeSlot, monday, today model.Date, taken map[slotKey]int) bool {
	for _, date := range recurrence.WeekDates(monday) {
		if date.Before(today) {
			continue
		}
		if len(openSlots(schedule, slots, date, taken)) > 0 {
			return true
		}
	}
	return false
}

// OpenSlotsInWeek returns the open instances of every remaining day of the
// week starting at monday, together with the schedule and its slot template.
func (s *AvailabilityService) OpenSlotsInWeek(ctx context.Context, scheduleID int, monday model.Date) (*model.Schedule, []model.TimeSlot, []model.SlotInstance, error) {
	schedule, slots, err := s.usableSchedule(ctx, scheduleID)
	if err != nil {
		return nil, nil, nil, err
	}
	monday = monday.WeekStart()
	active, err := s.AssignmentRepo.ListActiveBetween(ctx, scheduleID, monday, recurrence.WeekEnd(monday))
	if err != nil {
		return nil, nil, nil, err
	}
	taken := occupiedSlots(active)
	today := model.DateIn(s.now(), schedule.Location())

	instances := []model.SlotInstance{}
	for _, date := range recurrence.WeekDates(monday) {
		if date.Before(today) {
			continue
		}
		instances = append(instances, openSlots(schedule, slots, date, taken)...)
	}
	return schedule, slots, instances, nil
}
