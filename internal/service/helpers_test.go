package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/generator"
	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/repository/memstore"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

// 2024-06-10 is a Monday.
var june10 = model.NewDate(2024, time.June, 10)

type captureDispatcher struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (d *captureDispatcher) Dispatch(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, id)
	return nil
}

type fakeLease struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func newFakeLease() *fakeLease { return &fakeLease{held: map[uuid.UUID]bool{}} }

func (l *fakeLease) Acquire(_ context.Context, id uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[id] {
		return false, nil
	}
	l.held[id] = true
	return true, nil
}

func (l *fakeLease) Renew(_ context.Context, id uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[id], nil
}

func (l *fakeLease) Release(_ context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
	return nil
}

func (l *fakeLease) Held(_ context.Context, id uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[id], nil
}

type testEnv struct {
	store      *memstore.Store
	schedules  *service.ScheduleService
	contents   *service.ContentService
	avail      *service.AvailabilityService
	assign     *service.AssignmentService
	gen        *service.GenerationService
	mock       *generator.Mock
	dispatcher *captureDispatcher
}

// newEnv wires every service over one in-memory store with the clock fixed
// at 08:00 UTC on today.
func newEnv(today model.Date) *testEnv {
	store := memstore.New()
	now := func() time.Time { return today.In(time.UTC).Add(8 * time.Hour) }

	avail := &service.AvailabilityService{
		ScheduleRepo:   store.Schedules,
		AssignmentRepo: store.Assignments,
		HorizonWeeks:   52,
		Policy:         service.WeekPolicyGenerated,
		Now:            now,
	}
	assign := &service.AssignmentService{
		ScheduleRepo:   store.Schedules,
		ContentRepo:    store.Contents,
		AssignmentRepo: store.Assignments,
		Now:            now,
	}
	mock := generator.NewMock()
	dispatcher := &captureDispatcher{}
	return &testEnv{
		store:     store,
		schedules: &service.ScheduleService{ScheduleRepo: store.Schedules},
		contents:  &service.ContentService{ContentRepo: store.Contents},
		avail:     avail,
		assign:    assign,
		gen: &service.GenerationService{
			JobRepo:      store.Jobs,
			ContentRepo:  store.Contents,
			Availability: avail,
			Assignments:  assign,
			Generator:    mock,
			Dispatcher:   dispatcher,
			Now:          now,
		},
		mock:       mock,
		dispatcher: dispatcher,
	}
}

func intp(n int) *int { return &n }

func reelSlot(day int, start, end string) model.TimeSlot {
	return model.TimeSlot{
		DayOfWeek:    day,
		StartTime:    start,
		EndTime:      end,
		PostType:     model.PostReel,
		IsEnabled:    true,
		Label:        "Reel " + start,
		ReelDuration: intp(16),
	}
}

func imageSlot(day int, start, end string) model.TimeSlot {
	return model.TimeSlot{
		DayOfWeek:  day,
		StartTime:  start,
		EndTime:    end,
		PostType:   model.PostWithImage,
		IsEnabled:  true,
		Label:      "Image " + start,
		ImageCount: intp(1),
	}
}

func createSchedule(t *testing.T, e *testEnv, name string, freq model.Frequency, slots ...model.TimeSlot) *model.Schedule {
	t.Helper()
	s, err := e.schedules.Create(context.Background(), &model.Schedule{
		AccountID: 1,
		Name:      name,
		Frequency: freq,
		IsEnabled: true,
		Timezone:  "UTC",
	}, slots)
	require.NoError(t, err)
	return s
}

// dailyPosts is a daily schedule with a single 09:00-10:00 reel slot.
func dailyPosts(t *testing.T, e *testEnv) *model.Schedule {
	return createSchedule(t, e, "Daily Posts", model.FrequencyDaily, reelSlot(1, "09:00", "10:00"))
}

func createContent(t *testing.T, e *testEnv, typ model.PostType) *model.Content {
	t.Helper()
	c, err := e.contents.Create(context.Background(), &model.Content{
		AccountID: 1,
		Caption:   "hello",
		Type:      typ,
	})
	require.NoError(t, err)
	return c
}

func requireKind(t *testing.T, err error, kind appErrors.Kind) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected *appErrors.Error, got %T: %v", err, err)
	require.Equal(t, kind, appErr.Kind, appErr.Message)
	return appErr
}
