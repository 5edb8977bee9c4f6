// Package memstore keeps every repository in process memory behind a single
// mutex. Each method is atomic, which gives the same check-and-insert
// guarantees the Postgres unique indexes give.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/repository"
)

type Store struct {
	mu          sync.Mutex
	nextID      int
	schedules   map[int]*model.Schedule
	slots       map[int]*model.TimeSlot
	contents    map[int]*model.Content
	assignments map[int]*model.ScheduledContent
	jobs        map[uuid.UUID]*model.GenerationJob

	Schedules   *ScheduleRepository
	Contents    *ContentRepository
	Assignments *AssignmentRepository
	Jobs        *GenerationJobRepository
}

func New() *Store {
	s := &Store{
		schedules:   map[int]*model.Schedule{},
		slots:       map[int]*model.TimeSlot{},
		contents:    map[int]*model.Content{},
		assignments: map[int]*model.ScheduledContent{},
		jobs:        map[uuid.UUID]*model.GenerationJob{},
	}
	s.Schedules = &ScheduleRepository{s: s}
	s.Contents = &ContentRepository{s: s}
	s.Assignments = &AssignmentRepository{s: s}
	s.Jobs = &GenerationJobRepository{s: s}
	return s
}

// id must be called with mu held.
func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

// cancelWhere cancels pending assignments matching pred; mu must be held.
func (s *Store) cancelWhere(reason string, pred func(a *model.ScheduledContent) bool) int {
	n := 0
	now := time.Now()
	for _, a := range s.assignments {
		if (a.Status == model.AssignmentQueued || a.Status == model.AssignmentScheduled) && pred(a) {
			a.Status = model.AssignmentCancelled
			a.FailureReason = reason
			a.UpdatedAt = now
			n++
		}
	}
	return n
}

func (s *Store) slotsOf(scheduleID int) []model.TimeSlot {
	out := []model.TimeSlot{}
	for _, t := range s.slots {
		if t.ScheduleID == scheduleID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

var (
	_ repository.ScheduleRepositoryInterface      = (*ScheduleRepository)(nil)
	_ repository.ContentRepositoryInterface       = (*ContentRepository)(nil)
	_ repository.AssignmentRepositoryInterface    = (*AssignmentRepository)(nil)
	_ repository.GenerationJobRepositoryInterface = (*GenerationJobRepository)(nil)
)
