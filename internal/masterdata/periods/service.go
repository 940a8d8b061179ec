package periods

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles fiscal period lifecycle.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds Service instance.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create opens a new fiscal period.
func (s *Service) Create(ctx context.Context, p Period) (Period, error) {
	if strings.TrimSpace(p.Code) == "" {
		return Period{}, fmt.Errorf("periods: code is required: %w", httpx.ErrValidation)
	}
	if !p.EndDate.After(p.StartDate) {
		return Period{}, fmt.Errorf("periods: end date must follow start date: %w", httpx.ErrValidation)
	}
	p.Status = StatusOpen
	return s.repo.Create(ctx, p)
}

// Close moves a period to CLOSED. Draft journals inside the period block the
// close; they must be posted or deleted first.
func (s *Service) Close(ctx context.Context, schoolID, id, actorID int64) (Period, error) {
	p, err := s.repo.Get(ctx, schoolID, id)
	if err != nil {
		return Period{}, err
	}
	if p.Status == StatusClosed {
		return Period{}, fmt.Errorf("periods: period %s already closed: %w", p.Code, httpx.ErrState)
	}
	drafts, err := s.repo.CountDraftJournals(ctx, schoolID, id)
	if err != nil {
		return Period{}, err
	}
	if drafts > 0 {
		return Period{}, fmt.Errorf("periods: period %s has %d draft journals: %w", p.Code, drafts, httpx.ErrState)
	}
	if err := s.repo.SetStatus(ctx, schoolID, id, StatusClosed, actorID); err != nil {
		return Period{}, err
	}
	p.Status = StatusClosed
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			SchoolID: schoolID,
			ActorID:  actorID,
			Action:   "period.close",
			Entity:   "period",
			EntityID: p.Code,
		})
	}
	return p, nil
}

// Reopen moves a closed period back to OPEN.
func (s *Service) Reopen(ctx context.Context, schoolID, id, actorID int64) (Period, error) {
	p, err := s.repo.Get(ctx, schoolID, id)
	if err != nil {
		return Period{}, err
	}
	if p.Status != StatusClosed {
		return Period{}, fmt.Errorf("periods: period %s is not closed: %w", p.Code, httpx.ErrState)
	}
	if err := s.repo.SetStatus(ctx, schoolID, id, StatusOpen, actorID); err != nil {
		return Period{}, err
	}
	p.Status = StatusOpen
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			SchoolID: schoolID,
			ActorID:  actorID,
			Action:   "period.reopen",
			Entity:   "period",
			EntityID: p.Code,
		})
	}
	return p, nil
}

// Get returns one period.
func (s *Service) Get(ctx context.Context, schoolID, id int64) (Period, error) {
	return s.repo.Get(ctx, schoolID, id)
}

// List returns all periods ordered by start date.
func (s *Service) List(ctx context.Context, schoolID int64) ([]Period, error) {
	return s.repo.List(ctx, schoolID)
}

// Resolve finds the period covering a date.
func (s *Service) Resolve(ctx context.Context, schoolID int64, date time.Time) (Period, error) {
	return s.repo.GetByDate(ctx, schoolID, date)
}

// EnsureOpen verifies the period can accept postings.
func (s *Service) EnsureOpen(ctx context.Context, schoolID, id int64) (Period, error) {
	p, err := s.repo.Get(ctx, schoolID, id)
	if err != nil {
		return Period{}, err
	}
	if p.Status != StatusOpen {
		return Period{}, fmt.Errorf("periods: period %s is closed: %w", p.Code, httpx.ErrState)
	}
	return p, nil
}
