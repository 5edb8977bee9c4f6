package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
)

type ScheduleRepository struct {
	DB *sql.DB
}

const scheduleColumns = `id, account_id, name, description, frequency, status, is_enabled, start_date, end_date, custom_days, timezone, created_at, updated_at`

const slotColumns = `id, schedule_id, day_of_week, start_time, end_time, post_type, is_enabled, label, tone, dimensions, preferred_voice_accent, reel_duration, story_type, image_count, created_at`

// ====================== Schedules ======================

func (r *ScheduleRepository) Create(ctx context.Context, s *model.Schedule, slots []model.TimeSlot) error {
	s.CreatedAt = time.Now()
	if s.Status == "" {
		s.Status = model.ScheduleActive
	}
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		query := `
			INSERT INTO schedules (account_id, name, description, frequency, status, is_enabled, start_date, end_date, custom_days, timezone, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id
		`
		err := tx.QueryRowContext(ctx, query,
			s.AccountID, s.Name, s.Description, s.Frequency, s.Status, s.IsEnabled,
			model.NullDateFrom(s.StartDate), model.NullDateFrom(s.EndDate), int64sFrom(s.CustomDays), s.Timezone, s.CreatedAt,
		).Scan(&s.ID)
		if err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
		for i := range slots {
			slots[i].ScheduleID = s.ID
			if err := insertSlot(ctx, tx, &slots[i]); err != nil {
				return err
			}
		}
		s.TimeSlots = slots
		return nil
	})
}

func (r *ScheduleRepository) Update(ctx context.Context, s *model.Schedule, slots []model.TimeSlot) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		query := `
			UPDATE schedules
			SET name=$1, description=$2, frequency=$3, status=$4, is_enabled=$5, start_date=$6, end_date=$7, custom_days=$8, timezone=$9, updated_at=NOW()
			WHERE id=$10
		`
		res, err := tx.ExecContext(ctx, query,
			s.Name, s.Description, s.Frequency, s.Status, s.IsEnabled,
			model.NullDateFrom(s.StartDate), model.NullDateFrom(s.EndDate), int64sFrom(s.CustomDays), s.Timezone, s.ID,
		)
		if err != nil {
			return fmt.Errorf("update schedule: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return appErrors.NewNotFound("schedule", s.ID)
		}

		keep := pq.Int64Array{}
		for i := range slots {
			slots[i].ScheduleID = s.ID
			if slots[i].ID == 0 {
				if err := insertSlot(ctx, tx, &slots[i]); err != nil {
					return err
				}
			} else {
				if err := cancelMovedSlotAssignments(ctx, tx, &slots[i]); err != nil {
					return err
				}
				if err := updateSlot(ctx, tx, &slots[i]); err != nil {
					return err
				}
			}
			keep = append(keep, int64(slots[i].ID))
		}

		// Pending bookings of removed slots are cancelled before the slot goes.
		_, err = tx.ExecContext(ctx, `
			UPDATE scheduled_contents
			SET status='cancelled', failure_reason='time slot removed', updated_at=NOW()
			WHERE schedule_id=$1 AND status IN ('queued', 'scheduled')
			  AND time_slot_id IS NOT NULL AND NOT (time_slot_id = ANY($2))
		`, s.ID, keep)
		if err != nil {
			return fmt.Errorf("cancel removed slot assignments: %w", err)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM time_slots WHERE schedule_id=$1 AND NOT (id = ANY($2))`, s.ID, keep)
		if err != nil {
			return fmt.Errorf("delete removed slots: %w", err)
		}
		s.TimeSlots = slots
		return nil
	})
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id int) (*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id=$1`
	s, err := scanSchedule(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewNotFound("schedule", id)
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

func (r *ScheduleRepository) ListByAccount(ctx context.Context, accountID int) ([]*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE account_id=$1 ORDER BY id DESC`
	rows, err := r.DB.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	schedules := []*model.Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (r *ScheduleRepository) SetEnabled(ctx context.Context, id int, enabled bool) error {
	return r.exec1(ctx, id, `UPDATE schedules SET is_enabled=$1, updated_at=NOW() WHERE id=$2`, enabled, id)
}

func (r *ScheduleRepository) SetStatus(ctx context.Context, id int, status model.ScheduleStatus) error {
	return r.exec1(ctx, id, `UPDATE schedules SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
}

func (r *ScheduleRepository) Delete(ctx context.Context, id int) (int, error) {
	var cancelled int
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM schedules WHERE id=$1 FOR UPDATE`, id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.NewNotFound("schedule", id)
			}
			return fmt.Errorf("lock schedule: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE scheduled_contents
			SET status='cancelled', failure_reason='schedule deleted', updated_at=NOW()
			WHERE schedule_id=$1 AND status IN ('queued', 'scheduled')
		`, id)
		if err != nil {
			return fmt.Errorf("cancel schedule assignments: %w", err)
		}
		n, _ := res.RowsAffected()
		cancelled = int(n)

		// Assignment rows keep their history; the slot reference is nulled by the FK.
		if _, err := tx.ExecContext(ctx, `DELETE FROM time_slots WHERE schedule_id=$1`, id); err != nil {
			return fmt.Errorf("delete slots: %w", err)
		}
		// Rows that still reference the schedule (history) keep it alive as disabled.
		var refs int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_contents WHERE schedule_id=$1`, id).Scan(&refs); err != nil {
			return fmt.Errorf("count schedule history: %w", err)
		}
		if refs > 0 {
			_, err = tx.ExecContext(ctx, `UPDATE schedules SET is_enabled=FALSE, status='inactive', updated_at=NOW() WHERE id=$1`, id)
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM schedules WHERE id=$1`, id)
		}
		if err != nil {
			return fmt.Errorf("delete schedule: %w", err)
		}
		return nil
	})
	return cancelled, err
}

func (r *ScheduleRepository) exec1(ctx context.Context, id int, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewNotFound("schedule", id)
	}
	return nil
}

// ====================== Time slots ======================

func (r *ScheduleRepository) ListSlots(ctx context.Context, scheduleID int) ([]model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE schedule_id=$1 ORDER BY day_of_week, start_time, id`
	rows, err := r.DB.QueryContext(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	slots := []model.TimeSlot{}
	for rows.Next() {
		var t model.TimeSlot
		var reel, images sql.NullInt64
		if err := rows.Scan(&t.ID, &t.ScheduleID, &t.DayOfWeek, &t.StartTime, &t.EndTime, &t.PostType, &t.IsEnabled,
			&t.Label, &t.Tone, &t.Dimensions, &t.PreferredVoiceAccent, &reel, &t.StoryType, &images, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		t.ReelDuration = intPtr(reel)
		t.ImageCount = intPtr(images)
		slots = append(slots, t)
	}
	return slots, rows.Err()
}

func insertSlot(ctx context.Context, tx *sql.Tx, t *model.TimeSlot) error {
	t.CreatedAt = time.Now()
	query := `
		INSERT INTO time_slots (schedule_id, day_of_week, start_time, end_time, post_type, is_enabled, label, tone, dimensions, preferred_voice_accent, reel_duration, story_type, image_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	err := tx.QueryRowContext(ctx, query,
		t.ScheduleID, t.DayOfWeek, t.StartTime, t.EndTime, t.PostType, t.IsEnabled, t.Label,
		t.Tone, t.Dimensions, t.PreferredVoiceAccent, nullInt(t.ReelDuration), t.StoryType, nullInt(t.ImageCount), t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

// cancelMovedSlotAssignments cancels pending bookings of a kept slot whose
// timing or post type is about to change. It must run before updateSlot.
func cancelMovedSlotAssignments(ctx context.Context, tx *sql.Tx, t *model.TimeSlot) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE scheduled_contents
		SET status='cancelled', failure_reason='time slot changed', updated_at=NOW()
		WHERE time_slot_id=$1 AND status IN ('queued', 'scheduled')
		  AND EXISTS (
			SELECT 1 FROM time_slots
			WHERE id=$1 AND schedule_id=$2
			  AND (day_of_week<>$3 OR start_time<>$4 OR end_time<>$5 OR post_type<>$6)
		  )
	`, t.ID, t.ScheduleID, t.DayOfWeek, t.StartTime, t.EndTime, t.PostType)
	if err != nil {
		return fmt.Errorf("cancel moved slot assignments: %w", err)
	}
	return nil
}

func updateSlot(ctx context.Context, tx *sql.Tx, t *model.TimeSlot) error {
	query := `
		UPDATE time_slots
		SET day_of_week=$1, start_time=$2, end_time=$3, post_type=$4, is_enabled=$5, label=$6, tone=$7, dimensions=$8,
		    preferred_voice_accent=$9, reel_duration=$10, story_type=$11, image_count=$12
		WHERE id=$13 AND schedule_id=$14
	`
	res, err := tx.ExecContext(ctx, query,
		t.DayOfWeek, t.StartTime, t.EndTime, t.PostType, t.IsEnabled, t.Label, t.Tone, t.Dimensions,
		t.PreferredVoiceAccent, nullInt(t.ReelDuration), t.StoryType, nullInt(t.ImageCount), t.ID, t.ScheduleID,
	)
	if err != nil {
		return fmt.Errorf("update slot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewValidation("time slot %d does not belong to schedule %d", t.ID, t.ScheduleID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*model.Schedule, error) {
	var s model.Schedule
	var start, end model.NullDate
	var days pq.Int64Array
	err := row.Scan(&s.ID, &s.AccountID, &s.Name, &s.Description, &s.Frequency, &s.Status, &s.IsEnabled,
		&start, &end, &days, &s.Timezone, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.StartDate = start.Ptr()
	s.EndDate = end.Ptr()
	s.CustomDays = intsFrom(days)
	return &s, nil
}

var _ ScheduleRepositoryInterface = (*ScheduleRepository)(nil)
