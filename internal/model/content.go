// internal/model/content.go
package model

import "time"

type ContentStatus string

const (
	ContentGenerated ContentStatus = "generated"
	ContentQueued    ContentStatus = "queued"
	ContentPublished ContentStatus = "published"
	ContentRejected  ContentStatus = "rejected"
)

type Content struct {
	ID              int           `db:"id" json:"id"`
	AccountID       int           `db:"account_id" json:"account_id"`
	Caption         string        `db:"caption" json:"caption"`
	HashTags        []string      `db:"hash_tags" json:"hash_tags"`
	Type            PostType      `db:"type" json:"type"`
	Status          ContentStatus `db:"status" json:"status"`
	GeneratedSource string        `db:"generated_source" json:"generated_source,omitempty"`
	UsedTopics      []string      `db:"used_topics" json:"used_topics,omitempty"`
	Tone            string        `db:"tone" json:"tone,omitempty"`
	MediaRefs       []string      `db:"media_refs" json:"media_refs,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time    `db:"updated_at" json:"updated_at,omitempty"`
}

// Assignable reports whether the content may be bound to a new assignment.
func (c *Content) Assignable() bool {
	return c.Status == ContentGenerated || c.Status == ContentQueued
}
