package validations

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
)

// ValidateSchedule checks a schedule and its slot template before it is stored.
func ValidateSchedule(s *model.Schedule, slots []model.TimeSlot) error {
	err := validation.ValidateStruct(s,
		validation.Field(&s.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&s.AccountID, validation.Required),
		validation.Field(&s.Frequency, validation.Required,
			validation.In(model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyCustom)),
		validation.Field(&s.Status, validation.In(model.ScheduleActive, model.SchedulePaused, model.ScheduleInactive)),
		validation.Field(&s.Timezone, validation.By(validTimezone)),
		validation.Field(&s.CustomDays,
			validation.When(s.Frequency == model.FrequencyCustom, validation.Required),
			validation.Each(validation.Min(0), validation.Max(6))),
		validation.Field(&s.EndDate, validation.By(endNotBeforeStart(s.StartDate))),
	)
	if err != nil {
		return toAppError("schedule", err)
	}
	for i := range slots {
		if err := ValidateTimeSlot(&slots[i]); err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) {
				prefix := fmt.Sprintf("time_slots[%d]", i)
				appErr.Message = prefix + ": " + appErr.Message
				details := make(map[string]any, len(appErr.Details))
				for field, msg := range appErr.Details {
					details[prefix+"."+field] = msg
				}
				appErr.Details = details
			}
			return err
		}
	}
	return nil
}

func ValidateTimeSlot(t *model.TimeSlot) error {
	err := validation.ValidateStruct(t,
		validation.Field(&t.DayOfWeek, validation.Min(0), validation.Max(6)),
		validation.Field(&t.StartTime, validation.Required, validation.By(validClock)),
		validation.Field(&t.EndTime, validation.Required, validation.By(validClock), validation.By(endAfter(t.StartTime))),
		validation.Field(&t.PostType, validation.Required,
			validation.In(model.PostWithImage, model.PostReel, model.PostStory)),
		validation.Field(&t.StoryType,
			validation.When(t.PostType == model.PostStory, validation.Required),
			validation.In(model.StoryImage, model.StoryVideo)),
		validation.Field(&t.ReelDuration,
			validation.When(t.NeedsDuration(), validation.Required, validation.Min(1), validation.Max(180))),
		validation.Field(&t.ImageCount,
			validation.When(t.PostType != model.PostWithImage, validation.Nil.Error("only allowed for post_with_image")),
			validation.By(imageCountInRange)),
		validation.Field(&t.Label, validation.Length(0, 80)),
	)
	if err != nil {
		return toAppError("time slot", err)
	}
	return nil
}

func validTimezone(value any) error {
	tz, _ := value.(string)
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return errors.New("must be an IANA timezone name")
	}
	return nil
}

func validClock(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := model.ParseClock(s); err != nil {
		return errors.New("must be a time in HH:MM format")
	}
	return nil
}

func endAfter(start string) validation.RuleFunc {
	return func(value any) error {
		end, _ := value.(string)
		s, err := model.ParseClock(start)
		if err != nil {
			return nil
		}
		e, err := model.ParseClock(end)
		if err != nil {
			return nil
		}
		if e <= s {
			return errors.New("must be after start_time on the same day")
		}
		return nil
	}
}

func endNotBeforeStart(start *model.Date) validation.RuleFunc {
	return func(value any) error {
		end, _ := value.(*model.Date)
		if end == nil || start == nil {
			return nil
		}
		if end.Before(*start) {
			return errors.New("must not be before start_date")
		}
		return nil
	}
}

func imageCountInRange(value any) error {
	n, _ := value.(*int)
	if n == nil {
		return nil
	}
	if *n < 1 || *n > 5 {
		return errors.New("must be between 1 and 5")
	}
	return nil
}

func toAppError(subject string, err error) error {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for field, fe := range fieldErrs {
			details[field] = fe.Error()
		}
		return &appErrors.Error{
			Kind:    appErrors.KindValidation,
			Message: fmt.Sprintf("invalid %s: %s", subject, err.Error()),
			Details: details,
		}
	}
	return appErrors.NewValidation("invalid %s: %s", subject, err.Error())
}
