package memstore

import (
	"context"
	"time"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
	"github.com/unclebandit/postplanner-backend/internal/model"
)

type ContentRepository struct {
	s *Store
}

func (r *ContentRepository) Create(_ context.Context, c *model.Content) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c.ID = r.s.id()
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.ContentGenerated
	}
	stored := *c
	r.s.contents[c.ID] = &stored
	return nil
}

func (r *ContentRepository) GetByID(_ context.Context, id int) (*model.Content, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contents[id]
	if !ok {
		return nil, appErrors.NewNotFound("content", id)
	}
	out := *c
	return &out, nil
}

func (r *ContentRepository) Reject(_ context.Context, id int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, err := r.mutable(id)
	if err != nil {
		return 0, err
	}
	n := r.s.cancelWhere("content rejected", func(a *model.ScheduledContent) bool { return a.ContentID == id })
	r.retire(c)
	return n, nil
}

func (r *ContentRepository) Delete(_ context.Context, id int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, err := r.mutable(id)
	if err != nil {
		return 0, err
	}
	n := r.s.cancelWhere("content deleted", func(a *model.ScheduledContent) bool { return a.ContentID == id })
	for _, a := range r.s.assignments {
		if a.ContentID == id {
			r.retire(c)
			return n, nil
		}
	}
	delete(r.s.contents, id)
	return n, nil
}

func (r *ContentRepository) mutable(id int) (*model.Content, error) {
	c, ok := r.s.contents[id]
	if !ok {
		return nil, appErrors.NewNotFound("content", id)
	}
	if c.Status == model.ContentPublished {
		return nil, appErrors.NewImmutable("content %d is published and cannot be changed", id)
	}
	return c, nil
}

func (r *ContentRepository) retire(c *model.Content) {
	now := time.Now()
	c.Status = model.ContentRejected
	c.UpdatedAt = &now
}
