// internal/model/generation_job.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) Active() bool {
	return s == JobPending || s == JobProcessing
}

type GenerationJob struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	ScheduleID            int        `db:"schedule_id" json:"schedule_id"`
	GenerationWeek        Date       `db:"generation_week" json:"generation_week"` // Monday
	Status                JobStatus  `db:"status" json:"status"`
	Progress              int        `db:"progress" json:"progress"`
	UserInstructions      string     `db:"user_instructions" json:"user_instructions,omitempty"`
	GeneratedContentCount int        `db:"generated_content_count" json:"generated_content_count"`
	FailedSlotCount       int        `db:"failed_slot_count" json:"failed_slot_count"`
	ErrorMessage          string     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
	StartedAt             *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt            *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}
