// Package generator holds the content-generation capability the generation
// orchestrator calls once per open slot.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unclebandit/postplanner-backend/internal/model"
)

// Hints describe one slot instance to fill.
type Hints struct {
	AccountID            int
	ScheduleName         string
	Date                 model.Date
	StartTime            string
	Label                string
	PostType             model.PostType
	Tone                 string
	Dimensions           string
	PreferredVoiceAccent string
	ReelDuration         *int
	StoryType            model.StoryType
	ImageCount           *int
}

func HintsFor(schedule *model.Schedule, slot model.TimeSlot, date model.Date) Hints {
	return Hints{
		AccountID:            schedule.AccountID,
		ScheduleName:         schedule.Name,
		Date:                 date,
		StartTime:            slot.StartTime,
		Label:                slot.Label,
		PostType:             slot.PostType,
		Tone:                 slot.Tone,
		Dimensions:           slot.Dimensions,
		PreferredVoiceAccent: slot.PreferredVoiceAccent,
		ReelDuration:         slot.ReelDuration,
		StoryType:            slot.StoryType,
		ImageCount:           slot.ImageCount,
	}
}

// Draft is the generated post before it is stored as Content.
type Draft struct {
	Caption    string   `json:"caption"`
	HashTags   []string `json:"hash_tags"`
	UsedTopics []string `json:"used_topics"`
	Tone       string   `json:"tone"`
	Source     string   `json:"-"`
}

type Generator interface {
	Generate(ctx context.Context, hints Hints, instructions string) (*Draft, error)
}

const systemPrompt = `You write social media posts for a brand account.
Reply with a single JSON object with the keys "caption" (string), "hash_tags" (array of strings without the # sign),
"used_topics" (array of short strings) and "tone" (string). Do not wrap the JSON in markdown.`

func buildPrompt(h Hints, instructions string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Post type: %s\n", h.PostType)
	fmt.Fprintf(&b, "Publish date: %s (%s) at %s\n", h.Date, h.Date.Weekday(), h.StartTime)
	if h.ScheduleName != "" {
		fmt.Fprintf(&b, "Schedule: %s\n", h.ScheduleName)
	}
	if h.Label != "" {
		fmt.Fprintf(&b, "Slot label: %s\n", h.Label)
	}
	if h.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", h.Tone)
	}
	if h.Dimensions != "" {
		fmt.Fprintf(&b, "Dimensions: %s\n", h.Dimensions)
	}
	if h.PreferredVoiceAccent != "" {
		fmt.Fprintf(&b, "Voice-over accent: %s\n", h.PreferredVoiceAccent)
	}
	if h.StoryType != "" {
		fmt.Fprintf(&b, "Story type: %s\n", h.StoryType)
	}
	if h.ReelDuration != nil {
		fmt.Fprintf(&b, "Video length: %d seconds\n", *h.ReelDuration)
	}
	if h.ImageCount != nil {
		fmt.Fprintf(&b, "Number of images: %d\n", *h.ImageCount)
	}
	if s := strings.TrimSpace(instructions); s != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n", s)
	}
	return b.String()
}

// parseDraft accepts the model reply, tolerating a fenced code block.
func parseDraft(text, source string) (*Draft, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var d Draft
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	d.Caption = strings.TrimSpace(d.Caption)
	if d.Caption == "" {
		return nil, fmt.Errorf("draft has an empty caption")
	}
	for i, tag := range d.HashTags {
		d.HashTags[i] = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	}
	d.Source = source
	return &d, nil
}
