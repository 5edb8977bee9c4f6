package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

func TestGetAvailableSlots_DailyPostsScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := dailyPosts(t, e)

	open, err := e.avail.GetAvailableSlots(ctx, s.ID, june10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "09:00", open[0].StartTime)
	assert.Equal(t, model.PostReel, open[0].PostType)
	assert.Equal(t, 1, open[0].DayOfWeek)

	c1 := createContent(t, e, model.PostReel)
	slotID := open[0].TimeSlotID
	_, err = e.assign.Assign(ctx, service.AssignRequest{
		ScheduleID:    s.ID,
		TimeSlotID:    &slotID,
		ContentID:     c1.ID,
		ScheduledDate: june10,
	})
	require.NoError(t, err)

	open, err = e.avail.GetAvailableSlots(ctx, s.ID, june10)
	require.NoError(t, err)
	assert.Empty(t, open)

	// The following day is untouched.
	open, err = e.avail.GetAvailableSlots(ctx, s.ID, june10.AddDays(1))
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestGetAvailableSlots_Idempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := createSchedule(t, e, "Weekly", model.FrequencyWeekly,
		imageSlot(1, "09:00", "10:00"), reelSlot(1, "18:00", "19:00"), imageSlot(2, "09:00", "10:00"))

	first, err := e.avail.GetAvailableSlots(ctx, s.ID, june10)
	require.NoError(t, err)
	second, err := e.avail.GetAvailableSlots(ctx, s.ID, june10)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
}

func TestGetAvailableSlots_AssignThenCancelRestoresSlot(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := dailyPosts(t, e)
	slotID := s.TimeSlots[0].ID
	c := createContent(t, e, model.PostReel)

	a, err := e.assign.Assign(ctx, service.AssignRequest{
		ScheduleID: s.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10,
	})
	require.NoError(t, err)

	open, err := e.avail.GetAvailableSlots(ctx, s.ID, june10)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = e.assign.Cancel(ctx, a.ID)
	require.NoError(t, err)

	open, err = e.avail.GetAvailableSlots(ctx, s.ID, june10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, slotID, open[0].TimeSlotID)
}

func TestGetAvailableSlots_NotFound(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)

	_, err := e.avail.GetAvailableSlots(ctx, 999, june10)
	requireKind(t, err, appErrors.KindNotFound)

	s := dailyPosts(t, e)
	_, err = e.schedules.SetEnabled(ctx, s.ID, false)
	require.NoError(t, err)
	_, err = e.avail.GetAvailableSlots(ctx, s.ID, june10)
	requireKind(t, err, appErrors.KindNotFound)

	_, err = e.schedules.SetEnabled(ctx, s.ID, true)
	require.NoError(t, err)
	_, err = e.schedules.SetStatus(ctx, s.ID, model.SchedulePaused)
	require.NoError(t, err)
	_, err = e.avail.GetAvailableSlots(ctx, s.ID, june10)
	requireKind(t, err, appErrors.KindNotFound)
}

func TestGetAvailableSlots_OutsideBoundsIsEmpty(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	start := june10.AddDays(7)
	s, err := e.schedules.Create(ctx, &model.Schedule{
		AccountID: 1, Name: "Later", Frequency: model.FrequencyDaily, IsEnabled: true, StartDate: &start,
	}, []model.TimeSlot{reelSlot(1, "09:00", "10:00")})
	require.NoError(t, err)

	open, err := e.avail.GetAvailableSlots(ctx, s.ID, june10)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestNextGeneratableWeek_SkipsPassedDays(t *testing.T) {
	ctx := context.Background()
	// Wednesday: the only slot of this week (Monday) has already passed.
	e := newEnv(june10.AddDays(2))
	s := createSchedule(t, e, "Mondays", model.FrequencyWeekly, imageSlot(1, "09:00", "10:00"))

	week, err := e.avail.NextGeneratableWeek(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, week)
	assert.Equal(t, "2024-06-17", week.String())
}

func TestNextGeneratableWeek_PolicyGeneratedSkipsGeneratedWeeks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := createSchedule(t, e, "Two slots", model.FrequencyWeekly,
		imageSlot(1, "09:00", "10:00"), imageSlot(2, "09:00", "10:00"))

	// One generated assignment in the current week blocks the whole week even
	// though the Tuesday slot is still open.
	c := createContent(t, e, model.PostWithImage)
	slotID := s.TimeSlots[0].ID
	_, err := e.assign.AssignGenerated(ctx, service.AssignRequest{
		ScheduleID: s.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10,
	}, uuid.New())
	require.NoError(t, err)

	week, err := e.avail.NextGeneratableWeek(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, week)
	assert.Equal(t, "2024-06-17", week.String())

	e.avail.Policy = service.WeekPolicyNone
	week, err = e.avail.NextGeneratableWeek(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, week)
	assert.Equal(t, "2024-06-10", week.String())
}

func TestNextGeneratableWeek_PolicyAnyCountsManualAssignments(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	s := createSchedule(t, e, "Two slots", model.FrequencyWeekly,
		imageSlot(1, "09:00", "10:00"), imageSlot(2, "09:00", "10:00"))
	c := createContent(t, e, model.PostWithImage)
	slotID := s.TimeSlots[0].ID
	_, err := e.assign.Assign(ctx, service.AssignRequest{
		ScheduleID: s.ID, TimeSlotID: &slotID, ContentID: c.ID, ScheduledDate: june10,
	})
	require.NoError(t, err)

	week, err := e.avail.NextGeneratableWeek(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", week.String())

	e.avail.Policy = service.WeekPolicyAny
	week, err = e.avail.NextGeneratableWeek(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-17", week.String())
}

func TestNextGeneratableWeek_NoneWithinHorizon(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)

	empty := createSchedule(t, e, "No slots", model.FrequencyDaily)
	week, err := e.avail.NextGeneratableWeek(ctx, empty.ID)
	require.NoError(t, err)
	assert.Nil(t, week)

	end := june10.AddDays(-1)
	ended, err := e.schedules.Create(ctx, &model.Schedule{
		AccountID: 1, Name: "Ended", Frequency: model.FrequencyDaily, IsEnabled: true, EndDate: &end,
	}, []model.TimeSlot{reelSlot(1, "09:00", "10:00")})
	require.NoError(t, err)
	week, err = e.avail.NextGeneratableWeek(ctx, ended.ID)
	require.NoError(t, err)
	assert.Nil(t, week)
}

func TestNextGeneratableWeek_StartsFromScheduleStart(t *testing.T) {
	ctx := context.Background()
	e := newEnv(june10)
	start := model.NewDate(2024, 7, 3) // Wednesday
	s, err := e.schedules.Create(ctx, &model.Schedule{
		AccountID: 1, Name: "July", Frequency: model.FrequencyDaily, IsEnabled: true, StartDate: &start,
	}, []model.TimeSlot{reelSlot(1, "09:00", "10:00")})
	require.NoError(t, err)

	week, err := e.avail.NextGeneratableWeek(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, week)
	assert.Equal(t, "2024-07-01", week.String())
}

func TestParseWeekPolicy(t *testing.T) {
	assert.Equal(t, service.WeekPolicyAny, service.ParseWeekPolicy("any"))
	assert.Equal(t, service.WeekPolicyNone, service.ParseWeekPolicy("none"))
	assert.Equal(t, service.WeekPolicyGenerated, service.ParseWeekPolicy("generated"))
	assert.Equal(t, service.WeekPolicyGenerated, service.ParseWeekPolicy("bogus"))
}
