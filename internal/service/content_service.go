package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/repository"
	"github.com/unclebandit/postplanner-backend/internal/validations"
)

type ContentService struct {
	ContentRepo repository.ContentRepositoryInterface
}

// Create stores manually authored content.
func (s *ContentService) Create(ctx context.Context, c *model.Content) (*model.Content, error) {
	c.Status = model.ContentGenerated
	if c.GeneratedSource == "" {
		c.GeneratedSource = "manual"
	}
	if err := validations.ValidateContent(c); err != nil {
		return nil, err
	}
	if err := s.ContentRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ContentService) Get(ctx context.Context, id int) (*model.Content, error) {
	return s.ContentRepo.GetByID(ctx, id)
}

func (s *ContentService) Reject(ctx context.Context, id int) (*model.Content, int, error) {
	cancelled, err := s.ContentRepo.Reject(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	logrus.WithFields(logrus.Fields{"content_id": id, "cancelled": cancelled}).Info("[CONTENT] rejected")
	c, err := s.ContentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, cancelled, err
	}
	return c, cancelled, nil
}

func (s *ContentService) Delete(ctx context.Context, id int) (int, error) {
	cancelled, err := s.ContentRepo.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	logrus.WithFields(logrus.Fields{"content_id": id, "cancelled": cancelled}).Info("[CONTENT] deleted")
	return cancelled, nil
}
