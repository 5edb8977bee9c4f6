// Package recurrence projects a schedule's weekly slot template onto
// calendar dates. Everything here is pure: no I/O, no clock.
package recurrence

import (
	"time"

	"github.com/unclebandit/postplanner-backend/internal/model"
)

// ResolveSlotInstances returns the slot instances of schedule that fall on
// target, in the order of slots. Dates outside the schedule bounds, disabled
// slots and structurally unusable schedules yield no instances rather than
// an error. Past dates resolve the same as future ones.
func ResolveSlotInstances(schedule *model.Schedule, slots []model.TimeSlot, target model.Date) []model.SlotInstance {
	instances := []model.SlotInstance{}
	if schedule == nil || !schedule.IsEnabled || target.IsZero() {
		return instances
	}
	if !schedule.Covers(target) {
		return instances
	}

	weekday := target.Weekday()
	if schedule.Frequency == model.FrequencyCustom && !schedule.HasCustomDay(weekday) {
		return instances
	}

	loc := schedule.Location()
	for _, slot := range slots {
		if !slot.IsEnabled {
			continue
		}
		if !appliesOn(schedule.Frequency, slot, weekday) {
			continue
		}
		instances = append(instances, instanceOf(schedule, slot, target, loc))
	}
	return instances
}

// ResolveAt resolves the instances for the calendar day that instant t falls
// on in the schedule's timezone.
func ResolveAt(schedule *model.Schedule, slots []model.TimeSlot, t time.Time) []model.SlotInstance {
	if schedule == nil {
		return []model.SlotInstance{}
	}
	return ResolveSlotInstances(schedule, slots, model.DateIn(t, schedule.Location()))
}

func appliesOn(freq model.Frequency, slot model.TimeSlot, weekday time.Weekday) bool {
	switch freq {
	case model.FrequencyDaily:
		return true
	case model.FrequencyWeekly, model.FrequencyCustom:
		return slot.DayOfWeek == int(weekday)
	default:
		return false
	}
}

func instanceOf(schedule *model.Schedule, slot model.TimeSlot, date model.Date, loc *time.Location) model.SlotInstance {
	inst := model.SlotInstance{
		TimeSlotID: slot.ID,
		ScheduleID: schedule.ID,
		Date:       date,
		DayOfWeek:  int(date.Weekday()),
		StartTime:  slot.StartTime,
		EndTime:    slot.EndTime,
		PostType:   slot.PostType,
		Label:      slot.Label,
	}
	midnight := date.In(loc)
	if start, err := model.ParseClock(slot.StartTime); err == nil {
		inst.StartsAt = wallClock(midnight, start, loc)
	}
	if end, err := model.ParseClock(slot.EndTime); err == nil {
		inst.EndsAt = wallClock(midnight, end, loc)
	}
	return inst
}

// wallClock builds the instant for a wall-clock minute of day. time.Date
// normalises times that fall into a DST gap.
func wallClock(midnight time.Time, minutes int, loc *time.Location) time.Time {
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day(), minutes/60, minutes%60, 0, 0, loc)
}
