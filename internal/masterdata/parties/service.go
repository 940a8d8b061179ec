package parties

import (
	"context"
	"fmt"
	"strings"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// Service handles party logic.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(p Party) error {
	if !p.Kind.Valid() {
		return fmt.Errorf("parties: unknown kind %q: %w", p.Kind, httpx.ErrValidation)
	}
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("parties: code is required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("parties: name is required: %w", httpx.ErrValidation)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p Party) (Party, error) {
	if err := s.validate(p); err != nil {
		return Party{}, err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, schoolID, id int64) (Party, error) {
	return s.repo.Get(ctx, schoolID, id)
}

// Require fetches a party and checks its kind, used by sub-ledgers to reject
// e.g. billing an employee as a customer.
func (s *Service) Require(ctx context.Context, schoolID, id int64, kind PartyKind) (Party, error) {
	p, err := s.repo.Get(ctx, schoolID, id)
	if err != nil {
		return Party{}, err
	}
	if p.Kind != kind {
		return Party{}, fmt.Errorf("parties: party %s is %s, expected %s: %w", p.Code, p.Kind, kind, httpx.ErrValidation)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, schoolID int64, kind PartyKind) ([]Party, error) {
	return s.repo.List(ctx, schoolID, kind)
}

func (s *Service) Update(ctx context.Context, p Party) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("parties: name is required: %w", httpx.ErrValidation)
	}
	return s.repo.Update(ctx, p)
}
