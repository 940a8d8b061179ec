package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
)

// Service handles chart-of-accounts business logic.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(acc Account) error {
	if strings.TrimSpace(acc.Code) == "" {
		return fmt.Errorf("accounts: code is required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(acc.Name) == "" {
		return fmt.Errorf("accounts: name is required: %w", httpx.ErrValidation)
	}
	if !acc.Type.Valid() {
		return fmt.Errorf("accounts: unknown account type %q: %w", acc.Type, httpx.ErrValidation)
	}
	return nil
}

// Create registers a new account in the chart.
func (s *Service) Create(ctx context.Context, acc Account) (Account, error) {
	if err := s.validate(acc); err != nil {
		return Account{}, err
	}
	if acc.ParentID != nil {
		parent, err := s.repo.Get(ctx, acc.SchoolID, *acc.ParentID)
		if err != nil {
			return Account{}, err
		}
		if parent.Type != acc.Type {
			return Account{}, fmt.Errorf("accounts: parent %s has type %s, child must match: %w", parent.Code, parent.Type, httpx.ErrValidation)
		}
	}
	acc.IsActive = true
	return s.repo.Create(ctx, acc)
}

// Update modifies an account. Accounts already referenced by posted journal
// lines are immutable except for their name; code and type changes would
// rewrite history behind posted entries.
func (s *Service) Update(ctx context.Context, acc Account) error {
	if err := s.validate(acc); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, acc.SchoolID, acc.ID)
	if err != nil {
		return err
	}
	if current.Code != acc.Code || current.Type != acc.Type {
		referenced, err := s.repo.IsReferenced(ctx, acc.SchoolID, acc.ID)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("accounts: account %s is referenced by posted entries: %w", current.Code, httpx.ErrState)
		}
	}
	return s.repo.Update(ctx, acc)
}

// Deactivate hides the account from new postings without deleting it.
func (s *Service) Deactivate(ctx context.Context, schoolID, id int64) error {
	return s.repo.SetActive(ctx, schoolID, id, false)
}

// Activate re-enables the account.
func (s *Service) Activate(ctx context.Context, schoolID, id int64) error {
	return s.repo.SetActive(ctx, schoolID, id, true)
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, schoolID, id int64) (Account, error) {
	return s.repo.Get(ctx, schoolID, id)
}

// GetByCode resolves an account by its code.
func (s *Service) GetByCode(ctx context.Context, schoolID int64, code string) (Account, error) {
	return s.repo.GetByCode(ctx, schoolID, code)
}

// List returns the full chart ordered by code.
func (s *Service) List(ctx context.Context, schoolID int64) ([]Account, error) {
	return s.repo.List(ctx, schoolID)
}
