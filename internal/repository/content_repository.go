package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
)

type ContentRepository struct {
	DB *sql.DB
}

const contentColumns = `id, account_id, caption, hash_tags, type, status, generated_source, used_topics, tone, media_refs, created_at, updated_at`

func (r *ContentRepository) Create(ctx context.Context, c *model.Content) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.ContentGenerated
	}
	query := `
		INSERT INTO contents (account_id, caption, hash_tags, type, status, generated_source, used_topics, tone, media_refs, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		c.AccountID, c.Caption, pq.Array(c.HashTags), c.Type, c.Status, c.GeneratedSource,
		pq.Array(c.UsedTopics), c.Tone, pq.Array(c.MediaRefs), c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

func (r *ContentRepository) GetByID(ctx context.Context, id int) (*model.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM contents WHERE id=$1`
	var c model.Content
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.AccountID, &c.Caption, pq.Array(&c.HashTags), &c.Type, &c.Status, &c.GeneratedSource,
		pq.Array(&c.UsedTopics), &c.Tone, pq.Array(&c.MediaRefs), &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewNotFound("content", id)
		}
		return nil, fmt.Errorf("get content: %w", err)
	}
	return &c, nil
}

func (r *ContentRepository) Reject(ctx context.Context, id int) (int, error) {
	var cancelled int
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := lockMutableContent(ctx, tx, id); err != nil {
			return err
		}
		n, err := cancelContentAssignments(ctx, tx, id, "content rejected")
		if err != nil {
			return err
		}
		cancelled = n
		_, err = tx.ExecContext(ctx, `UPDATE contents SET status='rejected', updated_at=NOW() WHERE id=$1`, id)
		if err != nil {
			return fmt.Errorf("reject content: %w", err)
		}
		return nil
	})
	return cancelled, err
}

func (r *ContentRepository) Delete(ctx context.Context, id int) (int, error) {
	var cancelled int
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := lockMutableContent(ctx, tx, id); err != nil {
			return err
		}
		n, err := cancelContentAssignments(ctx, tx, id, "content deleted")
		if err != nil {
			return err
		}
		cancelled = n

		var refs int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_contents WHERE content_id=$1`, id).Scan(&refs); err != nil {
			return fmt.Errorf("count content history: %w", err)
		}
		// Cancelled history still points at the row, so it is retired instead.
		if refs > 0 {
			_, err = tx.ExecContext(ctx, `UPDATE contents SET status='rejected', updated_at=NOW() WHERE id=$1`, id)
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM contents WHERE id=$1`, id)
		}
		if err != nil {
			return fmt.Errorf("delete content: %w", err)
		}
		return nil
	})
	return cancelled, err
}

func lockMutableContent(ctx context.Context, tx *sql.Tx, id int) error {
	var status model.ContentStatus
	err := tx.QueryRowContext(ctx, `SELECT status FROM contents WHERE id=$1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.NewNotFound("content", id)
		}
		return fmt.Errorf("lock content: %w", err)
	}
	if status == model.ContentPublished {
		return appErrors.NewImmutable("content %d is published and cannot be changed", id)
	}
	return nil
}

func cancelContentAssignments(ctx context.Context, tx *sql.Tx, contentID int, reason string) (int, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE scheduled_contents
		SET status='cancelled', failure_reason=$2, updated_at=NOW()
		WHERE content_id=$1 AND status IN ('queued', 'scheduled')
	`, contentID, reason)
	if err != nil {
		return 0, fmt.Errorf("cancel content assignments: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

var _ ContentRepositoryInterface = (*ContentRepository)(nil)
