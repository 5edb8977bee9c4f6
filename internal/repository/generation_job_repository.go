package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
)

type GenerationJobRepository struct {
	DB *sql.DB
}

// generationLockKey serialises job creation across every API instance.
const generationLockKey = 727_001

var jobColumns = []string{
	"id", "schedule_id", "generation_week", "status", "progress", "user_instructions", "generated_content_count",
	"failed_slot_count", "error_message", "created_at", "updated_at", "started_at", "finished_at",
}

func (r *GenerationJobRepository) CreateIfNoneActive(ctx context.Context, job *model.GenerationJob) error {
	now := time.Now()
	job.CreatedAt, job.UpdatedAt = now, now
	if job.Status == "" {
		job.Status = model.JobPending
	}

	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, generationLockKey); err != nil {
			return fmt.Errorf("acquire generation lock: %w", err)
		}
		active, err := r.getActive(ctx, tx)
		if err != nil {
			return err
		}
		if active != nil {
			return JobActiveConflict(active)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO generation_jobs (id, schedule_id, generation_week, status, progress, user_instructions, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 0, $5, $6, $7)
		`, job.ID, job.ScheduleID, job.GenerationWeek, job.Status, job.UserInstructions, job.CreatedAt, job.UpdatedAt)
		return err
	})
	if err == nil {
		return nil
	}
	// The partial unique index is the backstop if the advisory lock is bypassed.
	if _, ok := uniqueViolation(err); ok {
		active, getErr := r.GetActive(ctx)
		if getErr == nil && active != nil {
			return JobActiveConflict(active)
		}
		return appErrors.NewConflict("another generation job is already active", nil)
	}
	if appErrors.KindOf(err) != appErrors.KindInternal {
		return err
	}
	return fmt.Errorf("insert generation job: %w", err)
}

// JobActiveConflict builds the conflict returned while another job holds the slot.
func JobActiveConflict(active *model.GenerationJob) error {
	return appErrors.NewConflict("another generation job is already active", map[string]any{
		"blocking_job_id": active.ID.String(),
		"schedule_id":     active.ScheduleID,
		"status":          string(active.Status),
		"progress":        active.Progress,
	})
}

func (r *GenerationJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.GenerationJob, error) {
	query, args, err := psql.Select(jobColumns...).From("generation_jobs").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, err
	}
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewNotFound("generation job", id)
		}
		return nil, fmt.Errorf("get generation job: %w", err)
	}
	return job, nil
}

func (r *GenerationJobRepository) GetActive(ctx context.Context) (*model.GenerationJob, error) {
	return r.getActive(ctx, r.DB)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *GenerationJobRepository) getActive(ctx context.Context, q queryer) (*model.GenerationJob, error) {
	query, args, err := psql.Select(jobColumns...).From("generation_jobs").
		Where(sq.Eq{"status": statusStrings([]model.JobStatus{model.JobPending, model.JobProcessing})}).
		OrderBy("created_at").Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	job, err := scanJob(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active generation job: %w", err)
	}
	return job, nil
}

func (r *GenerationJobRepository) List(ctx context.Context, scheduleID *int, limit int) ([]*model.GenerationJob, error) {
	q := psql.Select(jobColumns...).From("generation_jobs").OrderBy("created_at DESC")
	if scheduleID != nil {
		q = q.Where(sq.Eq{"schedule_id": *scheduleID})
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query, args, err := q.Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, err
	}
	return r.query(ctx, query, args...)
}

func (r *GenerationJobRepository) MarkProcessing(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE generation_jobs SET status='processing', started_at=$2, updated_at=$2
		WHERE id=$1 AND status='pending'
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark job processing: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// UpdateProgress never lets progress move backwards.
func (r *GenerationJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress, generated, failed int, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE generation_jobs
		SET progress=GREATEST(progress, $2), generated_content_count=$3, failed_slot_count=$4, updated_at=$5
		WHERE id=$1 AND status='processing'
	`, id, progress, generated, failed, at)
	if err != nil {
		return false, fmt.Errorf("update job progress: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *GenerationJobRepository) Complete(ctx context.Context, id uuid.UUID, generated, failed int, errorMessage string, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE generation_jobs
		SET status='completed', progress=100, generated_content_count=$2, failed_slot_count=$3, error_message=$4, updated_at=$5, finished_at=$5
		WHERE id=$1 AND status='processing'
	`, id, generated, failed, errorMessage, at)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *GenerationJobRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE generation_jobs SET status='failed', error_message=$2, updated_at=$3, finished_at=$3
		WHERE id=$1 AND status IN ('pending', 'processing')
	`, id, errorMessage, at)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *GenerationJobRepository) ListStale(ctx context.Context, before time.Time) ([]*model.GenerationJob, error) {
	query, args, err := psql.Select(jobColumns...).From("generation_jobs").
		Where(sq.Eq{"status": statusStrings([]model.JobStatus{model.JobPending, model.JobProcessing})}).
		Where(sq.Lt{"updated_at": before}).
		OrderBy("updated_at").ToSql()
	if err != nil {
		return nil, err
	}
	return r.query(ctx, query, args...)
}

func (r *GenerationJobRepository) query(ctx context.Context, query string, args ...any) ([]*model.GenerationJob, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list generation jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*model.GenerationJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*model.GenerationJob, error) {
	var j model.GenerationJob
	err := row.Scan(&j.ID, &j.ScheduleID, &j.GenerationWeek, &j.Status, &j.Progress, &j.UserInstructions,
		&j.GeneratedContentCount, &j.FailedSlotCount, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

var _ GenerationJobRepositoryInterface = (*GenerationJobRepository)(nil)
