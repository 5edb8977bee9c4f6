package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/generator"
	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/repository"
)

// ErrJobAbandoned is returned by Run when the job stopped being processing
// underneath it, e.g. because the reaper failed it. Nothing more is written
// under the job once this is seen.
var ErrJobAbandoned = errors.New("generation job is no longer processing")

// JobDispatcher hands a freshly created job to whatever executes it.
type JobDispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

// JobLease marks a running job as owned so the reaper leaves it alone.
type JobLease interface {
	Acquire(ctx context.Context, jobID uuid.UUID) (bool, error)
	Renew(ctx context.Context, jobID uuid.UUID) (bool, error)
	Release(ctx context.Context, jobID uuid.UUID) error
	Held(ctx context.Context, jobID uuid.UUID) (bool, error)
}

type GenerationRequest struct {
	ScheduleID       int         `json:"schedule_id"`
	GenerationWeek   *model.Date `json:"generation_week,omitempty"`
	UserInstructions string      `json:"user_instructions,omitempty"`
}

// GenerationService creates generation jobs and runs them. Only one job may be
// pending or processing across the whole deployment.
type GenerationService struct {
	JobRepo      repository.GenerationJobRepositoryInterface
	ContentRepo  repository.ContentRepositoryInterface
	Availability *AvailabilityService
	Assignments  *AssignmentService
	Generator    generator.Generator
	Dispatcher   JobDispatcher
	Lease        JobLease // optional

	// GenerateTimeout bounds a single generator call.
	GenerateTimeout time.Duration
	Now             func() time.Time
}

func (s *GenerationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RequestGeneration validates the target week, inserts a pending job under the
// global single-flight guard and dispatches it. It returns as soon as the job
// is queued.
func (s *GenerationService) RequestGeneration(ctx context.Context, req GenerationRequest) (*model.GenerationJob, error) {
	// An active job blocks every request, whatever the target schedule looks
	// like. CreateIfNoneActive repeats the check atomically.
	active, err := s.JobRepo.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, repository.JobActiveConflict(active)
	}

	var week model.Date
	if req.GenerationWeek != nil {
		week = req.GenerationWeek.WeekStart()
		_, _, open, err := s.Availability.OpenSlotsInWeek(ctx, req.ScheduleID, week)
		if err != nil {
			return nil, err
		}
		if len(open) == 0 {
			return nil, appErrors.NewNoCapacity("week of %s has no open slots for schedule %d", week, req.ScheduleID)
		}
	} else {
		next, err := s.Availability.NextGeneratableWeek(ctx, req.ScheduleID)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, appErrors.NewNoCapacity("schedule %d has no generatable week within the next %d weeks",
				req.ScheduleID, s.Availability.horizon())
		}
		week = *next
	}

	job := &model.GenerationJob{
		ID:               uuid.New(),
		ScheduleID:       req.ScheduleID,
		GenerationWeek:   week,
		Status:           model.JobPending,
		UserInstructions: req.UserInstructions,
	}
	if err := s.JobRepo.CreateIfNoneActive(ctx, job); err != nil {
		return nil, err
	}

	entry := logrus.WithFields(logrus.Fields{
		"job_id":      job.ID.String(),
		"schedule_id": job.ScheduleID,
		"week":        week.String(),
	})
	if err := s.Dispatcher.Dispatch(ctx, job.ID); err != nil {
		entry.WithError(err).Error("[GENERATION] dispatch failed, releasing job")
		if _, ferr := s.JobRepo.Fail(context.WithoutCancel(ctx), job.ID, "dispatch failed: "+err.Error(), s.now()); ferr != nil {
			entry.WithError(ferr).Error("[GENERATION] could not mark undispatched job failed")
		}
		return nil, appErrors.NewUpstream("could not dispatch generation job", err)
	}
	entry.Info("[GENERATION] job queued")
	return job, nil
}

// Run executes a pending job. Deliveries of a job that is no longer pending
// are ignored. The returned error is only for logging by the caller; the
// outcome is always recorded on the job.
func (s *GenerationService) Run(ctx context.Context, jobID uuid.UUID) (err error) {
	log := logrus.WithField("job_id", jobID.String())

	claimed, err := s.JobRepo.MarkProcessing(ctx, jobID, s.now())
	if err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}
	if !claimed {
		log.Info("[GENERATION] job is not pending, skipping delivery")
		return nil
	}

	if s.Lease != nil {
		if ok, lerr := s.Lease.Acquire(ctx, jobID); lerr != nil || !ok {
			log.WithError(lerr).Warn("[GENERATION] running without a lease")
		}
		defer func() {
			if rerr := s.Lease.Release(context.WithoutCancel(ctx), jobID); rerr != nil {
				log.WithError(rerr).Warn("[GENERATION] lease release failed")
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation panicked: %v", r)
			s.fail(ctx, jobID, err.Error())
		}
	}()

	job, err := s.JobRepo.GetByID(ctx, jobID)
	if err != nil {
		s.fail(ctx, jobID, err.Error())
		return err
	}
	return s.process(ctx, job, log)
}

func (s *GenerationService) process(ctx context.Context, job *model.GenerationJob, log *logrus.Entry) error {
	schedule, slots, units, err := s.Availability.OpenSlotsInWeek(ctx, job.ScheduleID, job.GenerationWeek)
	if err != nil {
		s.fail(ctx, job.ID, err.Error())
		return err
	}
	slotByID := make(map[int]model.TimeSlot, len(slots))
	for _, t := range slots {
		slotByID[t.ID] = t
	}

	total := len(units)
	log.WithField("units", total).Info("[GENERATION] job started")
	if total == 0 {
		return s.complete(ctx, job.ID, 0, 0, "no open slots remained in the target week")
	}

	generated, failed := 0, 0
	var lastErr error
	for i, inst := range units {
		if cerr := ctx.Err(); cerr != nil {
			s.fail(ctx, job.ID, fmt.Sprintf("interrupted after %d of %d slots: %v", i, total, cerr))
			return cerr
		}

		contentID, uerr := s.fillSlot(ctx, job, schedule, slotByID[inst.TimeSlotID], inst)
		if uerr != nil {
			failed++
			lastErr = uerr
			log.WithError(uerr).WithFields(logrus.Fields{
				"time_slot_id": inst.TimeSlotID,
				"date":         inst.Date.String(),
			}).Warn("[GENERATION] slot failed")
		} else {
			generated++
		}

		progress := (i + 1) * 100 / total
		owned, perr := s.JobRepo.UpdateProgress(ctx, job.ID, progress, generated, failed, s.now())
		if perr != nil {
			s.fail(ctx, job.ID, "progress update failed: "+perr.Error())
			return perr
		}
		if !owned {
			s.retireDraft(ctx, contentID)
			log.WithField("completed_units", i).Warn("[GENERATION] job was finished elsewhere, stopping")
			return ErrJobAbandoned
		}
		if !s.keepLease(ctx, job.ID, log) {
			s.fail(ctx, job.ID, fmt.Sprintf("lease lost after %d of %d slots", i+1, total))
			return ErrJobAbandoned
		}
	}

	summary := ""
	if failed > 0 {
		summary = fmt.Sprintf("%d of %d slots failed: %v", failed, total, lastErr)
	}
	if generated == 0 {
		s.fail(ctx, job.ID, summary)
		log.WithField("failed", failed).Error("[GENERATION] job failed, nothing generated")
		return lastErr
	}
	log.WithFields(logrus.Fields{"generated": generated, "failed": failed}).Info("[GENERATION] job completed")
	return s.complete(ctx, job.ID, generated, failed, summary)
}

// keepLease renews the job lease. A lease that expired is taken again when
// nobody else holds it; false means another worker owns the job now.
// Errors from the lease store are logged and tolerated.
func (s *GenerationService) keepLease(ctx context.Context, jobID uuid.UUID, log *logrus.Entry) bool {
	if s.Lease == nil {
		return true
	}
	ok, err := s.Lease.Renew(ctx, jobID)
	if err != nil {
		log.WithError(err).Warn("[GENERATION] lease renew failed")
		return true
	}
	if ok {
		return true
	}
	ok, err = s.Lease.Acquire(ctx, jobID)
	if err != nil {
		log.WithError(err).Warn("[GENERATION] lease reacquire failed")
		return true
	}
	if !ok {
		log.Error("[GENERATION] lease is held by another worker")
	}
	return ok
}

// retireDraft rejects a draft written under a job that is no longer ours,
// which also cancels its assignment.
func (s *GenerationService) retireDraft(ctx context.Context, contentID int) {
	if contentID == 0 {
		return
	}
	if _, err := s.ContentRepo.Reject(context.WithoutCancel(ctx), contentID); err != nil {
		logrus.WithError(err).WithField("content_id", contentID).Warn("[GENERATION] could not retire draft of abandoned job")
	}
}

// fillSlot generates one draft, stores it and binds it to the slot instance.
// It returns the id of the stored draft.
func (s *GenerationService) fillSlot(ctx context.Context, job *model.GenerationJob, schedule *model.Schedule, slot model.TimeSlot, inst model.SlotInstance) (int, error) {
	genCtx := ctx
	if s.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.GenerateTimeout)
		defer cancel()
	}

	draft, err := s.Generator.Generate(genCtx, generator.HintsFor(schedule, slot, inst.Date), job.UserInstructions)
	if err != nil {
		var appErr *appErrors.Error
		if !errors.As(err, &appErr) {
			err = appErrors.NewUpstream("content generation failed", err)
		}
		return 0, err
	}

	content := &model.Content{
		AccountID:       schedule.AccountID,
		Caption:         draft.Caption,
		HashTags:        draft.HashTags,
		Type:            inst.PostType,
		Status:          model.ContentGenerated,
		GeneratedSource: draft.Source,
		UsedTopics:      draft.UsedTopics,
		Tone:            draft.Tone,
	}
	if err := s.ContentRepo.Create(ctx, content); err != nil {
		return 0, fmt.Errorf("store draft: %w", err)
	}

	slotID := inst.TimeSlotID
	_, err = s.Assignments.AssignGenerated(ctx, AssignRequest{
		ScheduleID:    schedule.ID,
		TimeSlotID:    &slotID,
		ContentID:     content.ID,
		ScheduledDate: inst.Date,
	}, job.ID)
	if err != nil {
		// The slot was taken meanwhile; the orphan draft is retired.
		if _, rerr := s.ContentRepo.Reject(ctx, content.ID); rerr != nil {
			logrus.WithError(rerr).WithField("content_id", content.ID).Warn("[GENERATION] could not retire orphan draft")
		}
		return 0, err
	}
	return content.ID, nil
}

func (s *GenerationService) complete(ctx context.Context, jobID uuid.UUID, generated, failed int, summary string) error {
	ok, err := s.JobRepo.Complete(ctx, jobID, generated, failed, summary, s.now())
	if err != nil {
		s.fail(ctx, jobID, "completion failed: "+err.Error())
		return err
	}
	if !ok {
		logrus.WithField("job_id", jobID.String()).Warn("[GENERATION] job was finished elsewhere, completion skipped")
		return ErrJobAbandoned
	}
	return nil
}

func (s *GenerationService) fail(ctx context.Context, jobID uuid.UUID, message string) {
	if _, err := s.JobRepo.Fail(context.WithoutCancel(ctx), jobID, message, s.now()); err != nil {
		logrus.WithError(err).WithField("job_id", jobID.String()).Error("[GENERATION] could not mark job failed")
	}
}

func (s *GenerationService) GetJob(ctx context.Context, id uuid.UUID) (*model.GenerationJob, error) {
	return s.JobRepo.GetByID(ctx, id)
}

// GetActiveJob returns the pending or processing job, or nil when none is active.
func (s *GenerationService) GetActiveJob(ctx context.Context) (*model.GenerationJob, error) {
	return s.JobRepo.GetActive(ctx)
}

func (s *GenerationService) ListJobs(ctx context.Context, scheduleID *int, limit int) ([]*model.GenerationJob, error) {
	return s.JobRepo.List(ctx, scheduleID, limit)
}
