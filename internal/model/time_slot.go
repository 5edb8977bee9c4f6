// internal/model/time_slot.go
package model

import "time"

type PostType string

const (
	PostWithImage PostType = "post_with_image"
	PostReel      PostType = "reel"
	PostStory     PostType = "story"
)

type StoryType string

const (
	StoryImage StoryType = "image"
	StoryVideo StoryType = "video"
)

type TimeSlot struct {
	ID         int       `db:"id" json:"id"`
	ScheduleID int       `db:"schedule_id" json:"schedule_id"`
	DayOfWeek  int       `db:"day_of_week" json:"day_of_week"` // 0=Sunday..6=Saturday
	StartTime  string    `db:"start_time" json:"start_time"`   // HH:MM, schedule timezone
	EndTime    string    `db:"end_time" json:"end_time"`
	PostType   PostType  `db:"post_type" json:"post_type"`
	IsEnabled  bool      `db:"is_enabled" json:"is_enabled"`
	Label      string    `db:"label" json:"label"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`

	// Generation hints, only read by the generation orchestrator.
	Tone                 string    `db:"tone" json:"tone,omitempty"`
	Dimensions           string    `db:"dimensions" json:"dimensions,omitempty"`
	PreferredVoiceAccent string    `db:"preferred_voice_accent" json:"preferred_voice_accent,omitempty"`
	ReelDuration         *int      `db:"reel_duration" json:"reel_duration,omitempty"` // seconds
	StoryType            StoryType `db:"story_type" json:"story_type,omitempty"`
	ImageCount           *int      `db:"image_count" json:"image_count,omitempty"`
}

// NeedsDuration reports whether the slot produces video and so requires a duration.
func (t *TimeSlot) NeedsDuration() bool {
	return t.PostType == PostReel || (t.PostType == PostStory && t.StoryType == StoryVideo)
}

// Moved reports whether t fires at a different time, or with a different post
// type, than prev. Bookings made against prev no longer fit t.
func (t *TimeSlot) Moved(prev *TimeSlot) bool {
	return t.DayOfWeek != prev.DayOfWeek || t.StartTime != prev.StartTime ||
		t.EndTime != prev.EndTime || t.PostType != prev.PostType
}

// SlotInstance is a TimeSlot resolved against one calendar date.
type SlotInstance struct {
	TimeSlotID int       `json:"time_slot_id"`
	ScheduleID int       `json:"schedule_id"`
	Date       Date      `json:"date"`
	DayOfWeek  int       `json:"day_of_week"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	PostType   PostType  `json:"post_type"`
	Label      string    `json:"label"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
}
