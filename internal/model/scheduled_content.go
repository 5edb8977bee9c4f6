// internal/model/scheduled_content.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type AssignmentStatus string

const (
	AssignmentQueued    AssignmentStatus = "queued"
	AssignmentScheduled AssignmentStatus = "scheduled"
	AssignmentPublished AssignmentStatus = "published"
	AssignmentFailed    AssignmentStatus = "failed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// Active statuses occupy their slot and their content.
func (s AssignmentStatus) Active() bool {
	return s == AssignmentQueued || s == AssignmentScheduled || s == AssignmentPublished
}

func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentPublished || s == AssignmentFailed || s == AssignmentCancelled
}

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentQueued, AssignmentScheduled, AssignmentPublished, AssignmentFailed, AssignmentCancelled:
		return true
	}
	return false
}

// ActiveAssignmentStatuses lists the statuses counted by the double-booking guard.
var ActiveAssignmentStatuses = []AssignmentStatus{AssignmentQueued, AssignmentScheduled, AssignmentPublished}

// PendingAssignmentStatuses can still be cancelled or published.
var PendingAssignmentStatuses = []AssignmentStatus{AssignmentQueued, AssignmentScheduled}

type ScheduledContent struct {
	ID              int              `db:"id" json:"id"`
	ScheduleID      int              `db:"schedule_id" json:"schedule_id"`
	TimeSlotID      *int             `db:"time_slot_id" json:"time_slot_id,omitempty"`
	ContentID       int              `db:"content_id" json:"content_id"`
	ScheduledDate   Date             `db:"scheduled_date" json:"scheduled_date"`
	ScheduledTime   string           `db:"scheduled_time" json:"scheduled_time,omitempty"`
	Status          AssignmentStatus `db:"status" json:"status"`
	Priority        int              `db:"priority" json:"priority"`
	Notes           string           `db:"notes" json:"notes,omitempty"`
	FailureReason   string           `db:"failure_reason" json:"failure_reason,omitempty"`
	PublishedAt     *time.Time       `db:"published_at" json:"published_at,omitempty"`
	GenerationJobID *uuid.UUID       `db:"generation_job_id" json:"generation_job_id,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}
