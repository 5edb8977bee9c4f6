package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/repository"
)

type GenerationJobRepository struct {
	s *Store
}

func (r *GenerationJobRepository) CreateIfNoneActive(_ context.Context, job *model.GenerationJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if active := r.active(); active != nil {
		return repository.JobActiveConflict(active)
	}
	now := time.Now()
	job.CreatedAt, job.UpdatedAt = now, now
	if job.Status == "" {
		job.Status = model.JobPending
	}
	stored := *job
	r.s.jobs[job.ID] = &stored
	return nil
}

func (r *GenerationJobRepository) GetByID(_ context.Context, id uuid.UUID) (*model.GenerationJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	job, ok := r.s.jobs[id]
	if !ok {
		return nil, appErrors.NewNotFound("generation job", id)
	}
	out := *job
	return &out, nil
}

func (r *GenerationJobRepository) GetActive(_ context.Context) (*model.GenerationJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if active := r.active(); active != nil {
		out := *active
		return &out, nil
	}
	return nil, nil
}

func (r *GenerationJobRepository) active() *model.GenerationJob {
	for _, job := range r.s.jobs {
		if job.Status.Active() {
			return job
		}
	}
	return nil
}

func (r *GenerationJobRepository) List(_ context.Context, scheduleID *int, limit int) ([]*model.GenerationJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []*model.GenerationJob{}
	for _, job := range r.s.jobs {
		if scheduleID != nil && job.ScheduleID != *scheduleID {
			continue
		}
		c := *job
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *GenerationJobRepository) MarkProcessing(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	job, ok := r.s.jobs[id]
	if !ok || job.Status != model.JobPending {
		return false, nil
	}
	job.Status = model.JobProcessing
	started := at
	job.StartedAt = &started
	job.UpdatedAt = at
	return true, nil
}

func (r *GenerationJobRepository) UpdateProgress(_ context.Context, id uuid.UUID, progress, generated, failed int, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	job, ok := r.s.jobs[id]
	if !ok || job.Status != model.JobProcessing {
		return false, nil
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	job.GeneratedContentCount = generated
	job.FailedSlotCount = failed
	job.UpdatedAt = at
	return true, nil
}

func (r *GenerationJobRepository) Complete(_ context.Context, id uuid.UUID, generated, failed int, errorMessage string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	job, ok := r.s.jobs[id]
	if !ok || job.Status != model.JobProcessing {
		return false, nil
	}
	job.Status = model.JobCompleted
	job.Progress = 100
	job.GeneratedContentCount = generated
	job.FailedSlotCount = failed
	job.ErrorMessage = errorMessage
	finished := at
	job.FinishedAt = &finished
	job.UpdatedAt = at
	return true, nil
}

func (r *GenerationJobRepository) Fail(_ context.Context, id uuid.UUID, errorMessage string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	job, ok := r.s.jobs[id]
	if !ok || !job.Status.Active() {
		return false, nil
	}
	job.Status = model.JobFailed
	job.ErrorMessage = errorMessage
	finished := at
	job.FinishedAt = &finished
	job.UpdatedAt = at
	return true, nil
}

func (r *GenerationJobRepository) ListStale(_ context.Context, before time.Time) ([]*model.GenerationJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []*model.GenerationJob{}
	for _, job := range r.s.jobs {
		if job.Status.Active() && job.UpdatedAt.Before(before) {
			c := *job
			out = append(out, &c)
		}
	}
	return out, nil
}

// Touch overrides a job's updated_at; tests use it to age a job.
func (r *GenerationJobRepository) Touch(id uuid.UUID, at time.Time) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if job, ok := r.s.jobs[id]; ok {
		job.UpdatedAt = at
	}
}
