package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/periods"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements the journal ledger operations: draft creation, posting
// and reversal.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates the input and stores a DRAFT journal entry. The journal
// number is assigned here; posting later re-checks balance and period status.
func (s *Service) Create(ctx context.Context, input CreateJournalInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := resolveLines(ctx, tx, input.SchoolID, input.Lines)
		if err != nil {
			return err
		}
		var period periods.Period
		if input.PeriodID != nil {
			period, err = tx.GetPeriodForPosting(ctx, input.SchoolID, *input.PeriodID)
		} else {
			period, err = tx.GetPeriodByDate(ctx, input.SchoolID, input.EntryDate)
		}
		if err != nil {
			return err
		}
		if period.Status != periods.StatusOpen {
			return ErrPeriodClosed
		}
		number, err := tx.NextJournalNo(ctx, input.SchoolID, NumberPrefix(PrefixGeneral, input.EntryDate))
		if err != nil {
			return err
		}
		debit, credit := input.Totals()
		inserted, err := tx.InsertEntry(ctx, JournalEntry{
			SchoolID:    input.SchoolID,
			JournalNo:   number,
			EntryDate:   input.EntryDate,
			PeriodID:    period.ID,
			Description: input.Description,
			Reference:   input.Reference,
			Status:      StatusDraft,
			TotalDebit:  debit,
			TotalCredit: credit,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
			return err
		}
		inserted.Lines = lines
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, input.SchoolID, input.ActorID, "journal.create", entry.JournalNo, map[string]any{
		"journal_id": entry.ID,
	})
	return entry, nil
}

// Post moves a DRAFT entry to POSTED. Balance and period-open status are
// re-validated at post time; the period may have closed since creation.
func (s *Service) Post(ctx context.Context, schoolID, entryID, actorID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, schoolID, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrNotDraft
		}
		lines, err := tx.GetLines(ctx, current.ID)
		if err != nil {
			return err
		}
		if len(lines) < 2 {
			return ErrTooFewLines
		}
		var debit, credit float64
		for _, line := range lines {
			debit += line.Debit
			credit += line.Credit
		}
		if math.Abs(debit-credit) > BalanceTolerance {
			return ErrUnbalanced
		}
		period, err := tx.GetPeriodForPosting(ctx, schoolID, current.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != periods.StatusOpen {
			return ErrPeriodClosed
		}
		now := s.now()
		if err := tx.MarkPosted(ctx, current.ID, actorID, now); err != nil {
			return err
		}
		current.Status = StatusPosted
		current.PostedBy = &actorID
		current.PostedAt = &now
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, schoolID, actorID, "journal.post", entry.JournalNo, map[string]any{
		"journal_id": entry.ID,
	})
	return entry, nil
}

// Reverse creates a POSTED entry with every leg swapped and marks the
// original REVERSED. Reversal entries cannot be reversed again; undoing a
// reversal means posting the original lines anew.
func (s *Service) Reverse(ctx context.Context, input ReverseJournalInput) (original, reversal JournalEntry, err error) {
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, input.SchoolID, input.EntryID)
		if err != nil {
			return err
		}
		if current.Status == StatusReversed || current.ReversedEntryID != nil {
			return ErrAlreadyReversed
		}
		if current.Status != StatusPosted {
			return ErrNotPosted
		}
		if current.ReversalOfID != nil {
			return ErrIsReversal
		}
		lines, err := tx.GetLines(ctx, current.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrNoLines
		}
		reversalDate := s.now()
		if input.ReversalDate != nil {
			reversalDate = *input.ReversalDate
		}
		description := input.Reason
		if description == "" {
			description = fmt.Sprintf("Reversal of %s", current.JournalNo)
		}
		inserted, err := InsertPosted(ctx, tx, EntryInput{
			SchoolID:     input.SchoolID,
			EntryDate:    reversalDate,
			Description:  description,
			Reference:    current.JournalNo,
			NumberKind:   PrefixReversal,
			PostedBy:     input.ActorID,
			ReversalOfID: &current.ID,
			Lines:        SwapLines(lines),
		}, s.now())
		if err != nil {
			return err
		}
		if err := tx.MarkReversed(ctx, current.ID, inserted.ID); err != nil {
			return err
		}
		current.Status = StatusReversed
		current.ReversedEntryID = &inserted.ID
		current.Lines = lines
		original = current
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, JournalEntry{}, err
	}
	s.record(ctx, input.SchoolID, input.ActorID, "journal.reverse", original.JournalNo, map[string]any{
		"journal_id":  original.ID,
		"reversal_id": reversal.ID,
		"reversal_no": reversal.JournalNo,
		"reason":      input.Reason,
	})
	return original, reversal, nil
}

// Get returns one journal entry with lines.
func (s *Service) Get(ctx context.Context, schoolID, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, schoolID, id)
}

// List returns journal entries matching the filter.
func (s *Service) List(ctx context.Context, schoolID int64, filter ListFilter) ([]JournalEntry, error) {
	return s.repo.List(ctx, schoolID, filter)
}

func (s *Service) record(ctx context.Context, schoolID, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		SchoolID: schoolID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
}

func resolveLines(ctx context.Context, tx TxRepository, schoolID int64, inputs []LineInput) ([]JournalLine, error) {
	lines := make([]JournalLine, 0, len(inputs))
	ids := make([]int64, 0, len(inputs))
	for i, in := range inputs {
		accountID := in.AccountID
		if accountID == 0 {
			resolved, err := tx.ResolveAccount(ctx, schoolID, in.AccountCode)
			if err != nil {
				return nil, err
			}
			accountID = resolved
		}
		ids = append(ids, accountID)
		lines = append(lines, JournalLine{
			LineNo:       i + 1,
			AccountID:    accountID,
			Description:  in.Description,
			Debit:        in.Debit,
			Credit:       in.Credit,
			CostCenterID: in.CostCenterID,
			TaxCodeID:    in.TaxCodeID,
			PartyID:      in.PartyID,
		})
	}
	if err := tx.EnsureAccountsActive(ctx, schoolID, ids); err != nil {
		return nil, err
	}
	return lines, nil
}
