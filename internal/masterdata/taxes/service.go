package taxes

import (
	"context"
	"fmt"
	"strings"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// Service handles tax code logic.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(t Tax) error {
	if strings.TrimSpace(t.Code) == "" {
		return fmt.Errorf("taxes: code is required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("taxes: name is required: %w", httpx.ErrValidation)
	}
	if t.Rate < 0 || t.Rate > 100 {
		return fmt.Errorf("taxes: rate must be between 0 and 100: %w", httpx.ErrValidation)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, t Tax) (Tax, error) {
	if err := s.validate(t); err != nil {
		return Tax{}, err
	}
	return s.repo.Create(ctx, t)
}

func (s *Service) Get(ctx context.Context, schoolID, id int64) (Tax, error) {
	return s.repo.Get(ctx, schoolID, id)
}

func (s *Service) List(ctx context.Context, schoolID int64) ([]Tax, error) {
	return s.repo.List(ctx, schoolID)
}

func (s *Service) Update(ctx context.Context, t Tax) error {
	if err := s.validate(t); err != nil {
		return err
	}
	return s.repo.Update(ctx, t)
}

func (s *Service) Delete(ctx context.Context, schoolID, id int64) error {
	return s.repo.Delete(ctx, schoolID, id)
}
