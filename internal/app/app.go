// Package app assembles repositories, services and infrastructure from an
// AppConfig. cmd/server and cmd/worker share it.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/postplanner-backend/internal/config"
	"github.com/unclebandit/postplanner-backend/internal/db"
	"github.com/unclebandit/postplanner-backend/internal/generator"
	"github.com/unclebandit/postplanner-backend/internal/lease"
	"github.com/unclebandit/postplanner-backend/internal/repository"
	"github.com/unclebandit/postplanner-backend/internal/repository/memstore"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

type Repositories struct {
	Schedules   repository.ScheduleRepositoryInterface
	Contents    repository.ContentRepositoryInterface
	Assignments repository.AssignmentRepositoryInterface
	Jobs        repository.GenerationJobRepositoryInterface
}

type App struct {
	Config config.AppConfig
	DB     *sql.DB // nil with the memory driver
	Repos  Repositories

	Schedules    *service.ScheduleService
	Contents     *service.ContentService
	Availability *service.AvailabilityService
	Assignments  *service.AssignmentService
	Generation   *service.GenerationService
	Reaper       *service.Reaper

	closers []func()
}

// Build connects storage, the generator and the optional lease store. The
// caller sets Generation.Dispatcher since it depends on the process role.
func Build(ctx context.Context, cfg config.AppConfig) (*App, error) {
	a := &App{Config: cfg}

	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	gen, err := NewGenerator(ctx, cfg.Generator)
	if err != nil {
		a.Close()
		return nil, err
	}

	var jobLease service.JobLease
	if cfg.Valkey.Enabled() {
		client, err := lease.Connect(ctx, cfg.Valkey.Addr, cfg.Valkey.Password, cfg.Valkey.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		m := lease.NewManager(client, "", cfg.Valkey.LeaseTTL)
		a.closers = append(a.closers, m.Close)
		jobLease = m
		logrus.WithField("holder", m.Holder()).Info("[APP] job leases enabled")
	}

	a.Schedules = &service.ScheduleService{ScheduleRepo: a.Repos.Schedules}
	a.Contents = &service.ContentService{ContentRepo: a.Repos.Contents}
	a.Availability = &service.AvailabilityService{
		ScheduleRepo:   a.Repos.Schedules,
		AssignmentRepo: a.Repos.Assignments,
		HorizonWeeks:   cfg.Generation.HorizonWeeks,
		Policy:         service.ParseWeekPolicy(cfg.Generation.WeekPolicy),
	}
	a.Assignments = &service.AssignmentService{
		ScheduleRepo:   a.Repos.Schedules,
		ContentRepo:    a.Repos.Contents,
		AssignmentRepo: a.Repos.Assignments,
	}
	a.Generation = &service.GenerationService{
		JobRepo:         a.Repos.Jobs,
		ContentRepo:     a.Repos.Contents,
		Availability:    a.Availability,
		Assignments:     a.Assignments,
		Generator:       gen,
		Lease:           jobLease,
		GenerateTimeout: cfg.Generator.Timeout,
	}
	a.Reaper = &service.Reaper{
		JobRepo:    a.Repos.Jobs,
		Lease:      jobLease,
		StaleAfter: cfg.Generation.StaleAfter,
		Interval:   cfg.Generation.ReaperInterval,
	}
	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	switch a.Config.StorageDriver {
	case "memory":
		store := memstore.New()
		a.Repos = Repositories{
			Schedules:   store.Schedules,
			Contents:    store.Contents,
			Assignments: store.Assignments,
			Jobs:        store.Jobs,
		}
		logrus.Warn("[APP] using in-memory storage, data is lost on restart")
		return nil
	case "postgres", "":
		conn, err := db.Init(ctx, a.Config.Database.DSN())
		if err != nil {
			return err
		}
		if err := db.EnsureSchema(ctx, conn); err != nil {
			conn.Close()
			return err
		}
		a.DB = conn
		a.closers = append(a.closers, func() { conn.Close() })
		a.Repos = Repositories{
			Schedules:   &repository.ScheduleRepository{DB: conn},
			Contents:    &repository.ContentRepository{DB: conn},
			Assignments: &repository.AssignmentRepository{DB: conn},
			Jobs:        &repository.GenerationJobRepository{DB: conn},
		}
		return nil
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", a.Config.StorageDriver)
	}
}

// NewGenerator picks the content generator named by cfg.Provider.
func NewGenerator(ctx context.Context, cfg config.GeneratorConfig) (generator.Generator, error) {
	switch cfg.Provider {
	case "", "mock":
		return generator.NewMock(), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini generator")
		}
		return generator.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai generator")
		}
		return generator.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("unknown GENERATOR %q", cfg.Provider)
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
