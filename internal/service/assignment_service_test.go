package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/repository"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

func TestAssign_ResolvesTimeAndQueuesContent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := dailyPosts(t, e)
	c := createContent(t, e, model.PostReel)
	slotID := s.TimeSlots[0].ID

	a, err := e.assign.Assign(ctx, service.AssignRequest{
		ScheduleID: s.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentQueued, a.Status)
	assert.Equal(t, "09:00", a.ScheduledTime)
	assert.Nil(t, a.GenerationJobID)

	stored, err := e.contents.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContentQueued, stored.Status)
}

func TestAssign_ConcurrentDoubleBookingHasOneWinner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := dailyPosts(t, e)
	slotID := s.TimeSlots[0].ID

	const callers = 8
	contents := make([]*model.Content, callers)
	for i := range contents {
		contents[i] = createContent(t, e, model.PostReel)
	}

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.assign.Assign(ctx, service.AssignRequest{
				ScheduleID: s.ID, TimeSlotID: &slotID, ContentID: contents[i].ID, ScheduledDate: june10,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		appErr := requireKind(t, err, appErrors.KindConflict)
		assert.Contains(t, appErr.Details, "blocking_assignment_id")
	}
	assert.Equal(t, 1, succeeded)

	active, err := e.store.Assignments.ListActiveBetween(ctx, s.ID, june10, june10)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestAssign_ContentAlreadyBound(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := dailyPosts(t, e)
	c := createContent(t, e, model.PostReel)
	slotID := s.TimeSlots[0].ID

	_, err := e.assign.Assign(ctx, service.AssignRequest{
		ScheduleID: s.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10,
	})
	require.NoError(t, err)

	_, err = e.assign.Assign(ctx, service.AssignRequest{
		ScheduleID: s.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10.AddDays(1),
	})
	appErr := requireKind(t, err, appErrors.KindConflict)
	assert.Equal(t, c.ID, appErr.Details["content_id"])
}

func TestAssign_ContentReusableAfterCancel(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := dailyPosts(t, e)
	c := createContent(t, e, model.PostReel)
	slotID := s.TimeSlots[0].ID

	a, err := e.assign.Assign(ctx, service.AssignRequest{
		ScheduleID: s.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10,
	})
	require.NoError(t, err)
	_, err = e.assign.Cancel(ctx, a.ID)
	require.NoError(t, err)

	_, err = e.assign.Assign(ctx, service.AssignRequest{
		ScheduleID: s.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10.AddDays(1),
	})
	assert.NoError(t, err)
}

func TestAssign_Rejections(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	weekly := createSchedule(t, e, "Mondays", model.FrequencyWeekly, imageSlot(1, "09:00", "10:00"))
	other := createSchedule(t, e, "Other", model.FrequencyDaily, imageSlot(1, "12:00", "13:00"))
	slotID := weekly.TimeSlots[0].ID
	foreignSlot := other.TimeSlots[0].ID

	t.Run("missing content", func(t *testing.T) {
		_, err := e.assign.Assign(ctx, service.AssignRequest{
			ScheduleID: weekly.ID, TimeSlotID: &slotID, ContentID: 404, ScheduledDate: june10,
		})
		requireKind(t, err, appErrors.KindNotFound)
	})

	t.Run("missing schedule", func(t *testing.T) {
		c := createContent(t, e, model.PostWithImage)
		_, err := e.assign.Assign(ctx, service.AssignRequest{
			ScheduleID: 404, ContentID: c.ID, ScheduledDate: june10,
		})
		requireKind(t, err, appErrors.KindNotFound)
	})

	t.Run("slot of another schedule", func(t *testing.T) {
		c := createContent(t, e, model.PostWithImage)
		_, err := e.assign.Assign(ctx, service.AssignRequest{
			ScheduleID: weekly.ID, TimeSlotID: &foreignSlot, ContentID: c.ID, ScheduledDate: june10,
		})
		requireKind(t, err, appErrors.KindValidation)
	})

	t.Run("slot does not occur on that weekday", func(t *testing.T) {
		c := createContent(t, e, model.PostWithImage)
		_, err := e.assign.Assign(ctx, service.AssignRequest{
			ScheduleID: weekly.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10.AddDays(1),
		})
		requireKind(t, err, appErrors.KindValidation)
	})

	t.Run("content type mismatch", func(t *testing.T) {
		c := createContent(t, e, model.PostReel)
		_, err := e.assign.Assign(ctx, service.AssignRequest{
			ScheduleID: weekly.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10,
		})
		requireKind(t, err, appErrors.KindValidation)
	})

	t.Run("missing date", func(t *testing.T) {
		c := createContent(t, e, model.PostWithImage)
		_, err := e.assign.Assign(ctx, service.AssignRequest{ScheduleID: weekly.ID, ContentID: c.ID})
		requireKind(t, err, appErrors.KindValidation)
	})

	t.Run("rejected content", func(t *testing.T) {
		c := createContent(t, e, model.PostWithImage)
		_, _, err := e.contents.Reject(ctx, c.ID)
		require.NoError(t, err)
		_, err = e.assign.Assign(ctx, service.AssignRequest{
			ScheduleID: weekly.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10,
		})
		requireKind(t, err, appErrors.KindValidation)
	})
}

func TestAssign_PublishedContentIsImmutable(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := dailyPosts(t, e)
	c := createContent(t, e, model.PostReel)
	slotID := s.TimeSlots[0].ID

	a, err := e.assign.Assign(ctx, service.AssignRequest{
		ScheduleID: s.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10,
	})
	require.NoError(t, err)
	_, err = e.assign.UpdateStatus(ctx, a.ID, model.AssignmentPublished, "")
	require.NoError(t, err)

	_, err = e.assign.Assign(ctx, service.AssignRequest{
		ScheduleID: s.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10.AddDays(1),
	})
	requireKind(t, err, appErrors.KindImmutable)
}

func TestAssign_DateOnly(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := dailyPosts(t, e)
	c := createContent(t, e, model.PostReel)

	a, err := e.assign.Assign(ctx, service.AssignRequest{
		ScheduleID: s.ID, ContentID: c.ID, ScheduledDate: june10, ScheduledTime: "15:30",
	})
	require.NoError(t, err)
	assert.Nil(t, a.TimeSlotID)
	assert.Equal(t, "15:30", a.ScheduledTime)

	// A date-only assignment does not occupy the slot.
	open, err := e.avail.GetAvailableSlots(ctx, s.ID, june10)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func newQueuedAssignment(t *testing.T, e *testEnv, s *model.Schedule, date model.Date) *model.ScheduledContent {
	t.Helper()
	c := createContent(t, e, model.PostReel)
	slotID := s.TimeSlots[0].ID
	a, err := e.assign.Assign(context.Background(), service.AssignRequest{
		ScheduleID: s.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: date,
	})
	require.NoError(t, err)
	return a
}

func TestUpdateStatus_StateMachine(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := dailyPosts(t, e)

	t.Run("queued to published", func(t *testing.T) {
		a := newQueuedAssignment(t, e, s, june10)
		updated, err := e.assign.UpdateStatus(ctx, a.ID, model.AssignmentPublished, "")
		require.NoError(t, err)
		assert.Equal(t, model.AssignmentPublished, updated.Status)
		require.NotNil(t, updated.PublishedAt)

		content, err := e.contents.Get(ctx, a.ContentID)
		require.NoError(t, err)
		assert.Equal(t, model.ContentPublished, content.Status)

		for _, to := range []model.AssignmentStatus{
			model.AssignmentQueued, model.AssignmentScheduled, model.AssignmentFailed, model.AssignmentCancelled,
		} {
			_, err := e.assign.UpdateStatus(ctx, a.ID, to, "reason")
			requireKind(t, err, appErrors.KindImmutable)
		}
		_, err = e.assign.Cancel(ctx, a.ID)
		requireKind(t, err, appErrors.KindImmutable)
	})

	t.Run("queued to scheduled to failed", func(t *testing.T) {
		a := newQueuedAssignment(t, e, s, june10.AddDays(1))
		updated, err := e.assign.UpdateStatus(ctx, a.ID, model.AssignmentScheduled, "")
		require.NoError(t, err)
		assert.Equal(t, model.AssignmentScheduled, updated.Status)

		_, err = e.assign.UpdateStatus(ctx, a.ID, model.AssignmentQueued, "")
		requireKind(t, err, appErrors.KindConflict)

		_, err = e.assign.UpdateStatus(ctx, a.ID, model.AssignmentFailed, "")
		requireKind(t, err, appErrors.KindValidation)

		updated, err = e.assign.UpdateStatus(ctx, a.ID, model.AssignmentFailed, "token expired")
		require.NoError(t, err)
		assert.Equal(t, "token expired", updated.FailureReason)

		for _, to := range []model.AssignmentStatus{
			model.AssignmentQueued, model.AssignmentScheduled, model.AssignmentPublished, model.AssignmentCancelled,
		} {
			_, err := e.assign.UpdateStatus(ctx, a.ID, to, "x")
			requireKind(t, err, appErrors.KindConflict)
		}
	})

	t.Run("cancelled is terminal", func(t *testing.T) {
		a := newQueuedAssignment(t, e, s, june10.AddDays(2))
		_, err := e.assign.Cancel(ctx, a.ID)
		require.NoError(t, err)

		_, err = e.assign.UpdateStatus(ctx, a.ID, model.AssignmentPublished, "")
		appErr := requireKind(t, err, appErrors.KindConflict)
		assert.Equal(t, "cancelled", appErr.Details["current_status"])
		_, err = e.assign.Cancel(ctx, a.ID)
		requireKind(t, err, appErrors.KindConflict)
	})

	t.Run("unknown status and missing assignment", func(t *testing.T) {
		_, err := e.assign.UpdateStatus(ctx, 1, model.AssignmentStatus("archived"), "")
		requireKind(t, err, appErrors.KindValidation)
		_, err = e.assign.UpdateStatus(ctx, 9999, model.AssignmentCancelled, "")
		requireKind(t, err, appErrors.KindNotFound)
	})
}

func TestListAssignments_FiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := dailyPosts(t, e)
	later := newQueuedAssignment(t, e, s, june10.AddDays(2))
	first := newQueuedAssignment(t, e, s, june10)
	cancelled := newQueuedAssignment(t, e, s, june10.AddDays(1))
	_, err := e.assign.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)

	all, err := e.assign.List(ctx, repository.AssignmentFilter{ScheduleID: s.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{first.ID, cancelled.ID, later.ID}, []int{all[0].ID, all[1].ID, all[2].ID})

	to := june10.AddDays(1)
	active, err := e.assign.List(ctx, repository.AssignmentFilter{
		ScheduleID: s.ID,
		To:         &to,
		Statuses:   model.ActiveAssignmentStatuses,
	})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)

	from := june10.AddDays(3)
	_, err = e.assign.List(ctx, repository.AssignmentFilter{ScheduleID: s.ID, From: &from, To: &to})
	requireKind(t, err, appErrors.KindValidation)
}
