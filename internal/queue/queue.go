package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const GenerationTopic = "generation_jobs"

type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue delivers each published payload to every subscriber of the
// topic on its own goroutine, retrying failed handlers with a linear backoff.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	inflight sync.WaitGroup

	MaxRetries int
	Backoff    time.Duration
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Payload    any
	RetryCount int
	MaxRetries int
}

func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		job := JobPayload{Topic: topic, Payload: payload, MaxRetries: q.MaxRetries}
		q.inflight.Add(1)
		go q.processJob(handler, job)
	}
	return nil
}

func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	defer q.inflight.Done()
	log := logrus.WithFields(logrus.Fields{"topic": job.Topic, "payload": fmt.Sprint(job.Payload)})

	for {
		err := handler(job.Payload)
		if err == nil {
			log.Debug("[QUEUE] job processed")
			return
		}

		job.RetryCount++
		if job.RetryCount > job.MaxRetries {
			log.WithError(err).Errorf("[QUEUE] job permanently failed after %d attempts", job.RetryCount)
			return
		}
		log.WithError(err).Warnf("[QUEUE] job failed (attempt %d/%d)", job.RetryCount, job.MaxRetries)
		time.Sleep(time.Duration(job.RetryCount) * q.Backoff)
	}
}

func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has finished, including retries.
func (q *InMemoryQueue) Wait() {
	q.inflight.Wait()
}

// StartGenerationSubscriber runs each generation job id published on
// GenerationTopic with run. Handler errors trigger the queue's retry; run is
// expected to ignore jobs it already picked up.
func StartGenerationSubscriber(ctx context.Context, q Queue, run func(ctx context.Context, jobID uuid.UUID) error) error {
	err := q.Subscribe(GenerationTopic, func(payload any) error {
		jobID, ok := payload.(uuid.UUID)
		if !ok {
			logrus.Warnf("[QUEUE] invalid generation payload type %T, dropping", payload)
			return nil
		}
		logrus.WithField("job_id", jobID.String()).Info("[QUEUE] processing generation job")
		return run(ctx, jobID)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", GenerationTopic, err)
	}
	return nil
}

// TopicDispatcher publishes job ids to a Queue topic.
type TopicDispatcher struct {
	Queue Queue
	Topic string
}

func (d *TopicDispatcher) Dispatch(_ context.Context, jobID uuid.UUID) error {
	topic := d.Topic
	if topic == "" {
		topic = GenerationTopic
	}
	return d.Queue.Publish(topic, jobID)
}
