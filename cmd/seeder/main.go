// cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/unclebandit/postplanner-backend/internal/app"
	"github.com/unclebandit/postplanner-backend/internal/config"
	"github.com/unclebandit/postplanner-backend/internal/logging"
	"github.com/unclebandit/postplanner-backend/internal/model"
)

type slotFixture struct {
	DayOfWeek    int    `yaml:"day_of_week"`
	StartTime    string `yaml:"start_time"`
	EndTime      string `yaml:"end_time"`
	PostType     string `yaml:"post_type"`
	Label        string `yaml:"label"`
	Disabled     bool   `yaml:"disabled"`
	Tone         string `yaml:"tone"`
	Dimensions   string `yaml:"dimensions"`
	VoiceAccent  string `yaml:"preferred_voice_accent"`
	ReelDuration *int   `yaml:"reel_duration"`
	StoryType    string `yaml:"story_type"`
	ImageCount   *int   `yaml:"image_count"`
}

type scheduleFixture struct {
	AccountID   int           `yaml:"account_id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Frequency   string        `yaml:"frequency"`
	CustomDays  []int         `yaml:"custom_days"`
	Timezone    string        `yaml:"timezone"`
	StartDate   string        `yaml:"start_date"`
	EndDate     string        `yaml:"end_date"`
	TimeSlots   []slotFixture `yaml:"time_slots"`
}

type contentFixture struct {
	AccountID int      `yaml:"account_id"`
	Caption   string   `yaml:"caption"`
	Type      string   `yaml:"type"`
	HashTags  []string `yaml:"hash_tags"`
	Tone      string   `yaml:"tone"`
}

type fixtures struct {
	Schedules []scheduleFixture `yaml:"schedules"`
	Contents  []contentFixture  `yaml:"contents"`
}

func loadFixtures(r io.Reader) (*fixtures, error) {
	var fx fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &fx, nil
}

func optionalDate(raw string) (*model.Date, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (f scheduleFixture) toModel() (*model.Schedule, []model.TimeSlot, error) {
	start, err := optionalDate(f.StartDate)
	if err != nil {
		return nil, nil, fmt.Errorf("schedule %q start_date: %w", f.Name, err)
	}
	end, err := optionalDate(f.EndDate)
	if err != nil {
		return nil, nil, fmt.Errorf("schedule %q end_date: %w", f.Name, err)
	}
	s := &model.Schedule{
		AccountID:   f.AccountID,
		Name:        f.Name,
		Description: f.Description,
		Frequency:   model.Frequency(f.Frequency),
		IsEnabled:   true,
		StartDate:   start,
		EndDate:     end,
		CustomDays:  f.CustomDays,
		Timezone:    f.Timezone,
	}
	slots := make([]model.TimeSlot, len(f.TimeSlots))
	for i, t := range f.TimeSlots {
		slots[i] = model.TimeSlot{
			DayOfWeek:            t.DayOfWeek,
			StartTime:            t.StartTime,
			EndTime:              t.EndTime,
			PostType:             model.PostType(t.PostType),
			IsEnabled:            !t.Disabled,
			Label:                t.Label,
			Tone:                 t.Tone,
			Dimensions:           t.Dimensions,
			PreferredVoiceAccent: t.VoiceAccent,
			ReelDuration:         t.ReelDuration,
			StoryType:            model.StoryType(t.StoryType),
			ImageCount:           t.ImageCount,
		}
	}
	return s, slots, nil
}

// seed creates every fixture through the services so the usual validation
// applies.
func seed(ctx context.Context, a *app.App, fx *fixtures) error {
	for _, f := range fx.Schedules {
		s, slots, err := f.toModel()
		if err != nil {
			return err
		}
		created, err := a.Schedules.Create(ctx, s, slots)
		if err != nil {
			return fmt.Errorf("schedule %q: %w", f.Name, err)
		}
		logrus.WithField("schedule_id", created.ID).Infof("[SEED] schedule %q", created.Name)
	}
	for i, f := range fx.Contents {
		created, err := a.Contents.Create(ctx, &model.Content{
			AccountID: f.AccountID,
			Caption:   f.Caption,
			Type:      model.PostType(f.Type),
			HashTags:  f.HashTags,
			Tone:      f.Tone,
		})
		if err != nil {
			return fmt.Errorf("content #%d: %w", i+1, err)
		}
		logrus.WithField("content_id", created.ID).Info("[SEED] content")
	}
	return nil
}

func main() {
	path := flag.String("file", "seed/fixtures.yaml", "YAML fixture file")
	flag.Parse()

	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	f, err := os.Open(*path)
	if err != nil {
		logrus.WithError(err).Fatalf("[SEED] failed to open %s", *path)
	}
	defer f.Close()

	fx, err := loadFixtures(f)
	if err != nil {
		logrus.WithError(err).Fatal("[SEED] invalid fixtures")
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("[SEED] failed to initialise")
	}
	defer a.Close()

	if err := seed(ctx, a, fx); err != nil {
		logrus.WithError(err).Fatal("[SEED] seeding failed")
	}
	logrus.Info("[SEED] database seeding completed successfully")
}
