package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/unclebandit/postplanner-backend/internal/model"
)

type ScheduleRepositoryInterface interface {
	// Create stores the schedule and its slot template, filling in IDs.
	Create(ctx context.Context, s *model.Schedule, slots []model.TimeSlot) error
	// Update replaces the schedule fields and its slot set. Slots missing from
	// slots are removed and their pending assignments cancelled.
	Update(ctx context.Context, s *model.Schedule, slots []model.TimeSlot) error
	GetByID(ctx context.Context, id int) (*model.Schedule, error)
	ListSlots(ctx context.Context, scheduleID int) ([]model.TimeSlot, error)
	ListByAccount(ctx context.Context, accountID int) ([]*model.Schedule, error)
	SetEnabled(ctx context.Context, id int, enabled bool) error
	SetStatus(ctx context.Context, id int, status model.ScheduleStatus) error
	// Delete cancels pending assignments, then removes the slots and the schedule.
	Delete(ctx context.Context, id int) (cancelled int, err error)
}

type ContentRepositoryInterface interface {
	Create(ctx context.Context, c *model.Content) error
	GetByID(ctx context.Context, id int) (*model.Content, error)
	// Reject marks content rejected and cancels its pending assignments.
	Reject(ctx context.Context, id int) (cancelled int, err error)
	// Delete cancels pending assignments and removes the content.
	Delete(ctx context.Context, id int) (cancelled int, err error)
}

type AssignmentFilter struct {
	ScheduleID int
	From       *model.Date
	To         *model.Date
	Statuses   []model.AssignmentStatus
	Limit      int
}

type AssignmentRepositoryInterface interface {
	// Create inserts an assignment atomically against the double-booking and
	// content-binding guards, and marks generated content queued.
	Create(ctx context.Context, a *model.ScheduledContent) error
	GetByID(ctx context.Context, id int) (*model.ScheduledContent, error)
	ListActiveBetween(ctx context.Context, scheduleID int, from, to model.Date) ([]model.ScheduledContent, error)
	List(ctx context.Context, f AssignmentFilter) ([]model.ScheduledContent, error)
	// Transition moves an assignment to `to` only if its current status is in
	// from. It returns (nil, nil) when no row matched. Publishing also marks
	// the content published.
	Transition(ctx context.Context, id int, from []model.AssignmentStatus, to model.AssignmentStatus, failureReason string, at time.Time) (*model.ScheduledContent, error)
}

type GenerationJobRepositoryInterface interface {
	// CreateIfNoneActive inserts job only when no other job is pending or
	// processing; otherwise it returns a Conflict naming the blocking job.
	CreateIfNoneActive(ctx context.Context, job *model.GenerationJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.GenerationJob, error)
	GetActive(ctx context.Context) (*model.GenerationJob, error)
	List(ctx context.Context, scheduleID *int, limit int) ([]*model.GenerationJob, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// UpdateProgress and Complete report false when the job is no longer
	// processing, e.g. after the reaper failed it.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress, generated, failed int, at time.Time) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, generated, failed int, errorMessage string, at time.Time) (bool, error)
	Fail(ctx context.Context, id uuid.UUID, errorMessage string, at time.Time) (bool, error)
	ListStale(ctx context.Context, before time.Time) ([]*model.GenerationJob, error)
}

// withTx runs fn in a transaction, rolling back on error.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// uniqueViolation returns the violated index name for a 23505 error.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}

func statusStrings[T ~string](statuses []T) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func intsFrom(arr pq.Int64Array) []int {
	if arr == nil {
		return nil
	}
	out := make([]int, len(arr))
	for i, v := range arr {
		out[i] = int(v)
	}
	return out
}

func int64sFrom(in []int) pq.Int64Array {
	if in == nil {
		return nil
	}
	out := make(pq.Int64Array, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
