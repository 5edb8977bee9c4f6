// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/postplanner-backend/internal/app"
	"github.com/unclebandit/postplanner-backend/internal/config"
	"github.com/unclebandit/postplanner-backend/internal/controller"
	"github.com/unclebandit/postplanner-backend/internal/handler"
	"github.com/unclebandit/postplanner-backend/internal/logging"
	"github.com/unclebandit/postplanner-backend/internal/queue"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("[SERVER] failed to initialise")
	}
	defer a.Close()

	// Jobs run in this process unless a separate worker consumes them.
	var memQueue *queue.InMemoryQueue
	switch cfg.Dispatch.Mode {
	case "amqp":
		publisher, err := queue.NewAMQPPublisher(cfg.Dispatch.AMQPURL, cfg.Dispatch.QueueName)
		if err != nil {
			logrus.WithError(err).Fatal("[SERVER] failed to connect to RabbitMQ")
		}
		defer publisher.Close()
		a.Generation.Dispatcher = publisher
	default:
		memQueue = queue.NewInMemoryQueue()
		if err := queue.StartGenerationSubscriber(ctx, memQueue, a.Generation.Run); err != nil {
			logrus.WithError(err).Fatal("[SERVER] failed to start generation subscriber")
		}
		a.Generation.Dispatcher = &queue.TopicDispatcher{Queue: memQueue, Topic: queue.GenerationTopic}
	}

	go a.Reaper.Start(ctx)

	controllers := handler.Controllers{
		Schedules: &controller.ScheduleController{
			ScheduleService:     a.Schedules,
			AvailabilityService: a.Availability,
			AssignmentService:   a.Assignments,
		},
		Contents:    &controller.ContentController{ContentService: a.Contents},
		Assignments: &controller.AssignmentController{AssignmentService: a.Assignments},
		Generation:  &controller.GenerationController{GenerationService: a.Generation},
	}
	if a.DB != nil {
		controllers.DB = a.DB
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.NewRouter(controllers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("[SERVER] 🚀 listening on :%s (storage=%s, dispatch=%s, generator=%s)",
			cfg.HTTPPort, cfg.StorageDriver, cfg.Dispatch.Mode, cfg.Generator.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("[SERVER] listen failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("[SERVER] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("[SERVER] graceful shutdown failed")
	}
	if memQueue != nil {
		memQueue.Wait()
	}
}
