package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/postplanner-backend/internal/repository"
)

// Reaper fails active jobs that stopped reporting progress, so a crashed
// worker cannot hold the single-flight slot forever.
type Reaper struct {
	JobRepo    repository.GenerationJobRepositoryInterface
	Lease      JobLease // optional; a held lease keeps a job alive
	StaleAfter time.Duration
	Interval   time.Duration
	Now        func() time.Time
}

func (r *Reaper) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Start runs ReapOnce every Interval until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	tkr := time.NewTicker(interval)
	defer tkr.Stop()

	logrus.WithFields(logrus.Fields{
		"interval":    interval.String(),
		"stale_after": r.StaleAfter.String(),
	}).Info("[REAPER] started")
	for {
		select {
		case <-ctx.Done():
			logrus.Info("[REAPER] stopped")
			return
		case <-tkr.C:
			if _, err := r.ReapOnce(ctx); err != nil {
				logrus.WithError(err).Warn("[REAPER] pass failed")
			}
		}
	}
}

// ReapOnce fails every stale job and returns how many it failed.
func (r *Reaper) ReapOnce(ctx context.Context) (int, error) {
	now := r.now()
	before := now.Add(-r.StaleAfter)
	jobs, err := r.JobRepo.ListStale(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("list stale jobs: %w", err)
	}

	reaped := 0
	for _, job := range jobs {
		log := logrus.WithField("job_id", job.ID.String())
		if r.Lease != nil {
			held, err := r.Lease.Held(ctx, job.ID)
			if err != nil {
				log.WithError(err).Warn("[REAPER] lease check failed, skipping")
				continue
			}
			if held {
				continue
			}
		}
		msg := fmt.Sprintf("stale: no progress since %s", job.UpdatedAt.UTC().Format(time.RFC3339))
		ok, err := r.JobRepo.Fail(ctx, job.ID, msg, now)
		if err != nil {
			log.WithError(err).Warn("[REAPER] could not fail stale job")
			continue
		}
		if ok {
			reaped++
			log.WithField("status", job.Status).Warn("[REAPER] stale job marked failed")
		}
	}
	return reaped, nil
}
