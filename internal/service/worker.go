package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// JobRunner executes one generation job.
type JobRunner interface {
	Run(ctx context.Context, jobID uuid.UUID) error
}

// JobDelivery is a job id handed over by a transport. Done is called with the
// run result once the job has been processed.
type JobDelivery struct {
	JobID uuid.UUID
	Done  func(err error)
}

// Worker processes deliveries one at a time.
type Worker struct {
	Runner  JobRunner
	JobChan <-chan JobDelivery
}

func NewWorker(runner JobRunner, jobChan <-chan JobDelivery) *Worker {
	return &Worker{
		Runner:  runner,
		JobChan: jobChan,
	}
}

// Start blocks until the channel is closed or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-w.JobChan:
			if !ok {
				return
			}
			err := w.Runner.Run(ctx, d.JobID)
			if err != nil {
				logrus.WithError(err).WithField("job_id", d.JobID.String()).Warn("[WORKER] job run returned an error")
			}
			if d.Done != nil {
				d.Done(err)
			}
		}
	}
}
