package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/unclebandit/postplanner-backend/internal/app"
	"github.com/unclebandit/postplanner-backend/internal/config"
	"github.com/unclebandit/postplanner-backend/internal/logging"
	"github.com/unclebandit/postplanner-backend/internal/queue"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("[WORKER] failed to initialise")
	}
	defer a.Close()

	conn, err := amqp.Dial(cfg.Dispatch.AMQPURL)
	if err != nil {
		logrus.WithError(err).Fatal("[WORKER] failed to connect to RabbitMQ")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logrus.WithError(err).Fatal("[WORKER] failed to open a channel")
	}
	defer ch.Close()

	q, err := queue.DeclareQueue(ch, cfg.Dispatch.QueueName)
	if err != nil {
		logrus.WithError(err).Fatal("[WORKER] failed to declare queue")
	}
	// One unacked job at a time: generation is single-flight anyway.
	if err := ch.Qos(1, 0, false); err != nil {
		logrus.WithError(err).Fatal("[WORKER] failed to set QoS")
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logrus.WithError(err).Fatal("[WORKER] failed to register consumer")
	}

	jobs := make(chan service.JobDelivery)
	go forward(ctx, msgs, jobs)
	go a.Reaper.Start(ctx)

	logrus.WithField("queue", q.Name).Info("[WORKER] running, waiting for generation jobs...")
	service.NewWorker(a.Generation, jobs).Start(ctx)
	logrus.Info("[WORKER] stopped")
}

// forward converts broker deliveries into JobDeliveries until msgs closes or
// ctx is cancelled.
func forward(ctx context.Context, msgs <-chan amqp.Delivery, jobs chan<- service.JobDelivery) {
	defer close(jobs)
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				return
			}
			job, ok := toJobDelivery(d)
			if !ok {
				continue
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return
			}
		}
	}
}

// toJobDelivery decodes d. Undecodable messages are acked and dropped. A
// failed run is requeued once; a redelivered failure is acked because the
// job record already carries the failure.
func toJobDelivery(d amqp.Delivery) (service.JobDelivery, bool) {
	jobID, err := queue.DecodeGenerationMessage(d.Body)
	if err != nil {
		logrus.WithError(err).Warn("[WORKER] invalid job message, dropping")
		_ = d.Ack(false)
		return service.JobDelivery{}, false
	}
	return service.JobDelivery{
		JobID: jobID,
		Done: func(runErr error) {
			log := logrus.WithField("job_id", jobID.String())
			if runErr != nil && !d.Redelivered {
				log.WithError(runErr).Warn("[WORKER] job failed, requeueing once")
				if err := d.Nack(false, true); err != nil {
					log.WithError(err).Error("[WORKER] nack failed")
				}
				return
			}
			if err := d.Ack(false); err != nil {
				log.WithError(err).Error("[WORKER] ack failed")
			}
		},
	}, true
}
