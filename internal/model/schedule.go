// internal/model/schedule.go
package model

import "time"

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
	FrequencyCustom Frequency = "custom"
)

type ScheduleStatus string

const (
	ScheduleActive   ScheduleStatus = "active"
	SchedulePaused   ScheduleStatus = "paused"
	ScheduleInactive ScheduleStatus = "inactive"
)

type Schedule struct {
	ID          int            `db:"id" json:"id"`
	AccountID   int            `db:"account_id" json:"account_id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	Frequency   Frequency      `db:"frequency" json:"frequency"`
	Status      ScheduleStatus `db:"status" json:"status"`
	IsEnabled   bool           `db:"is_enabled" json:"is_enabled"`
	StartDate   *Date          `db:"start_date" json:"start_date,omitempty"`
	EndDate     *Date          `db:"end_date" json:"end_date,omitempty"`
	CustomDays  []int          `db:"custom_days" json:"custom_days,omitempty"` // 0=Sunday..6=Saturday
	Timezone    string         `db:"timezone" json:"timezone"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time     `db:"updated_at" json:"updated_at,omitempty"`

	TimeSlots []TimeSlot `db:"-" json:"time_slots,omitempty"`
}

// Location resolves the schedule timezone, falling back to UTC.
func (s *Schedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Usable reports whether the schedule can take new assignments.
func (s *Schedule) Usable() bool {
	return s.IsEnabled && s.Status == ScheduleActive
}

// Covers reports whether d falls inside the inclusive start/end bounds.
func (s *Schedule) Covers(d Date) bool {
	if s.StartDate != nil && d.Before(*s.StartDate) {
		return false
	}
	if s.EndDate != nil && d.After(*s.EndDate) {
		return false
	}
	return true
}

func (s *Schedule) HasCustomDay(wd time.Weekday) bool {
	for _, d := range s.CustomDays {
		if d == int(wd) {
			return true
		}
	}
	return false
}
