package recurrence

import "github.com/unclebandit/postplanner-backend/internal/model"

// WeekDates returns the seven dates of the ISO week starting at monday.
func WeekDates(monday model.Date) []model.Date {
	start := monday.WeekStart()
	dates := make([]model.Date, 7)
	for i := range dates {
		dates[i] = start.AddDays(i)
	}
	return dates
}

// WeekEnd returns the Sunday closing the ISO week that contains d.
func WeekEnd(d model.Date) model.Date {
	return d.WeekStart().AddDays(6)
}

// FirstScanWeek is the Monday a forward week scan starts from: the week
// containing the later of today and the schedule start date.
func FirstScanWeek(schedule *model.Schedule, today model.Date) model.Date {
	from := today
	if schedule.StartDate != nil && schedule.StartDate.After(from) {
		from = *schedule.StartDate
	}
	return from.WeekStart()
}
