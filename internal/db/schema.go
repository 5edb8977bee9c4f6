package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Constraint names are matched by the repositories to turn unique
// violations into conflicts.
const (
	ActiveSlotIndex    = "scheduled_contents_active_slot_uidx"
	ActiveContentIndex = "scheduled_contents_active_content_uidx"
	ActiveJobIndex     = "generation_jobs_single_active_uidx"
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS schedules (
		id SERIAL PRIMARY KEY,
		account_id INT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		frequency TEXT NOT NULL CHECK (frequency IN ('daily', 'weekly', 'custom')),
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'paused', 'inactive')),
		is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		start_date DATE,
		end_date DATE,
		custom_days INT[],
		timezone TEXT NOT NULL DEFAULT 'UTC',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ,
		CHECK (end_date IS NULL OR start_date IS NULL OR end_date >= start_date)
	);`,
	`CREATE TABLE IF NOT EXISTS time_slots (
		id SERIAL PRIMARY KEY,
		schedule_id INT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
		day_of_week SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		post_type TEXT NOT NULL CHECK (post_type IN ('post_with_image', 'reel', 'story')),
		is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		label TEXT NOT NULL DEFAULT '',
		tone TEXT NOT NULL DEFAULT '',
		dimensions TEXT NOT NULL DEFAULT '',
		preferred_voice_accent TEXT NOT NULL DEFAULT '',
		reel_duration INT,
		story_type TEXT NOT NULL DEFAULT '',
		image_count INT CHECK (image_count IS NULL OR image_count BETWEEN 1 AND 5),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS time_slots_schedule_idx ON time_slots(schedule_id);`,
	`CREATE TABLE IF NOT EXISTS contents (
		id SERIAL PRIMARY KEY,
		account_id INT NOT NULL,
		caption TEXT NOT NULL,
		hash_tags TEXT[],
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'generated' CHECK (status IN ('generated', 'queued', 'published', 'rejected')),
		generated_source TEXT NOT NULL DEFAULT '',
		used_topics TEXT[],
		tone TEXT NOT NULL DEFAULT '',
		media_refs TEXT[],
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	);`,
	`CREATE TABLE IF NOT EXISTS generation_jobs (
		id UUID PRIMARY KEY,
		schedule_id INT NOT NULL,
		generation_week DATE NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
		progress INT NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
		user_instructions TEXT NOT NULL DEFAULT '',
		generated_content_count INT NOT NULL DEFAULT 0,
		failed_slot_count INT NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ
	);`,
	// At most one pending/processing job in the whole system.
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + ActiveJobIndex + `
		ON generation_jobs ((status IN ('pending', 'processing')))
		WHERE status IN ('pending', 'processing');`,
	`CREATE TABLE IF NOT EXISTS scheduled_contents (
		id SERIAL PRIMARY KEY,
		schedule_id INT NOT NULL REFERENCES schedules(id),
		time_slot_id INT REFERENCES time_slots(id) ON DELETE SET NULL,
		content_id INT NOT NULL REFERENCES contents(id),
		scheduled_date DATE NOT NULL,
		scheduled_time TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK (status IN ('queued', 'scheduled', 'published', 'failed', 'cancelled')),
		priority INT NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMPTZ,
		generation_job_id UUID REFERENCES generation_jobs(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	// Double-booking guard: one active assignment per slot occurrence.
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + ActiveSlotIndex + `
		ON scheduled_contents (schedule_id, time_slot_id, scheduled_date)
		WHERE status IN ('queued', 'scheduled', 'published');`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + ActiveContentIndex + `
		ON scheduled_contents (content_id)
		WHERE status IN ('queued', 'scheduled', 'published');`,
	`CREATE INDEX IF NOT EXISTS scheduled_contents_schedule_date_idx ON scheduled_contents(schedule_id, scheduled_date);`,
}

// EnsureSchema creates tables and the uniqueness guards the services rely on.
func EnsureSchema(ctx context.Context, conn *sql.DB) error {
	for _, q := range ddl {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
