package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/postplanner-backend/internal/db"
	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
)

type AssignmentRepository struct {
	DB *sql.DB
}

var assignmentColumns = []string{
	"id", "schedule_id", "time_slot_id", "content_id", "scheduled_date", "scheduled_time", "status",
	"priority", "notes", "failure_reason", "published_at", "generation_job_id", "created_at", "updated_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *AssignmentRepository) Create(ctx context.Context, a *model.ScheduledContent) error {
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now

	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var status model.ContentStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM contents WHERE id=$1 FOR UPDATE`, a.ContentID).Scan(&status)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.NewNotFound("content", a.ContentID)
			}
			return fmt.Errorf("lock content: %w", err)
		}
		switch status {
		case model.ContentPublished:
			return appErrors.NewImmutable("content %d is already published", a.ContentID)
		case model.ContentRejected:
			return appErrors.NewValidation("content %d is rejected and cannot be scheduled", a.ContentID)
		}

		query := `
			INSERT INTO scheduled_contents (schedule_id, time_slot_id, content_id, scheduled_date, scheduled_time, status, priority, notes, generation_job_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id
		`
		err = tx.QueryRowContext(ctx, query,
			a.ScheduleID, nullInt(a.TimeSlotID), a.ContentID, a.ScheduledDate, a.ScheduledTime, a.Status,
			a.Priority, a.Notes, nullUUID(a.GenerationJobID), a.CreatedAt, a.UpdatedAt,
		).Scan(&a.ID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE contents SET status='queued', updated_at=NOW() WHERE id=$1 AND status='generated'`, a.ContentID)
		if err != nil {
			return fmt.Errorf("queue content: %w", err)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	constraint, ok := uniqueViolation(err)
	if !ok {
		if appErrors.KindOf(err) != appErrors.KindInternal {
			return err
		}
		return fmt.Errorf("insert assignment: %w", err)
	}
	switch constraint {
	case db.ActiveSlotIndex:
		return r.slotTakenError(ctx, a)
	case db.ActiveContentIndex:
		return appErrors.NewConflict("content is already bound to an active assignment", map[string]any{
			"content_id": a.ContentID,
		})
	default:
		return appErrors.NewConflict("assignment conflicts with an existing one", map[string]any{"constraint": constraint})
	}
}

// slotTakenError names the assignment that won the slot, so callers can show it.
func (r *AssignmentRepository) slotTakenError(ctx context.Context, a *model.ScheduledContent) error {
	details := map[string]any{
		"schedule_id":    a.ScheduleID,
		"time_slot_id":   a.TimeSlotID,
		"scheduled_date": a.ScheduledDate.String(),
	}
	var blockingID int
	err := r.DB.QueryRowContext(ctx, `
		SELECT id FROM scheduled_contents
		WHERE schedule_id=$1 AND time_slot_id=$2 AND scheduled_date=$3 AND status IN ('queued', 'scheduled', 'published')
		LIMIT 1
	`, a.ScheduleID, nullInt(a.TimeSlotID), a.ScheduledDate).Scan(&blockingID)
	if err == nil {
		details["blocking_assignment_id"] = blockingID
	} else if err != sql.ErrNoRows {
		logrus.WithError(err).Warn("[ASSIGNMENT] failed to load blocking assignment")
	}
	return appErrors.NewConflict("time slot is already booked for this date", details)
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id int) (*model.ScheduledContent, error) {
	query, args, err := psql.Select(assignmentColumns...).From("scheduled_contents").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	a, err := scanAssignment(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewNotFound("assignment", id)
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

func (r *AssignmentRepository) ListActiveBetween(ctx context.Context, scheduleID int, from, to model.Date) ([]model.ScheduledContent, error) {
	return r.List(ctx, AssignmentFilter{
		ScheduleID: scheduleID,
		From:       &from,
		To:         &to,
		Statuses:   model.ActiveAssignmentStatuses,
	})
}

func (r *AssignmentRepository) List(ctx context.Context, f AssignmentFilter) ([]model.ScheduledContent, error) {
	q := psql.Select(assignmentColumns...).From("scheduled_contents").Where(sq.Eq{"schedule_id": f.ScheduleID})
	if f.From != nil {
		q = q.Where(sq.GtOrEq{"scheduled_date": *f.From})
	}
	if f.To != nil {
		q = q.Where(sq.LtOrEq{"scheduled_date": *f.To})
	}
	if len(f.Statuses) > 0 {
		q = q.Where(sq.Eq{"status": statusStrings(f.Statuses)})
	}
	q = q.OrderBy("scheduled_date", "scheduled_time", "priority", "id")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build assignment query: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	out := []model.ScheduledContent{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *AssignmentRepository) Transition(ctx context.Context, id int, from []model.AssignmentStatus, to model.AssignmentStatus, failureReason string, at time.Time) (*model.ScheduledContent, error) {
	var updated *model.ScheduledContent
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		q := psql.Update("scheduled_contents").
			Set("status", string(to)).
			Set("failure_reason", failureReason).
			Set("updated_at", at).
			Where(sq.Eq{"id": id, "status": statusStrings(from)}).
			Suffix("RETURNING " + strings.Join(assignmentColumns, ", "))
		if to == model.AssignmentPublished {
			q = q.Set("published_at", at)
		}
		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build transition: %w", err)
		}
		a, err := scanAssignment(tx.QueryRowContext(ctx, query, args...))
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("transition assignment: %w", err)
		}
		if to == model.AssignmentPublished {
			if _, err := tx.ExecContext(ctx, `UPDATE contents SET status='published', updated_at=$2 WHERE id=$1`, a.ContentID, at); err != nil {
				return fmt.Errorf("publish content: %w", err)
			}
		}
		updated = a
		return nil
	})
	return updated, err
}

func scanAssignment(row rowScanner) (*model.ScheduledContent, error) {
	var a model.ScheduledContent
	var slotID sql.NullInt64
	var jobID uuid.NullUUID
	err := row.Scan(&a.ID, &a.ScheduleID, &slotID, &a.ContentID, &a.ScheduledDate, &a.ScheduledTime, &a.Status,
		&a.Priority, &a.Notes, &a.FailureReason, &a.PublishedAt, &jobID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.TimeSlotID = intPtr(slotID)
	if jobID.Valid {
		id := jobID.UUID
		a.GenerationJobID = &id
	}
	return &a, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

var _ AssignmentRepositoryInterface = (*AssignmentRepository)(nil)
