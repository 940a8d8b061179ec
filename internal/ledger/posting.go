package ledger

import (
	"context"
	"time"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/periods"
)

// EntryInput describes an entry to be inserted directly in POSTED state. The
// posting engine and the reversal path share this helper so period checks,
// numbering and totals are computed in exactly one place.
type EntryInput struct {
	SchoolID     int64
	EntryDate    time.Time
	PeriodID     int64 // 0 resolves the period from EntryDate
	Description  string
	Reference    string
	NumberKind   string // PrefixGeneral or PrefixReversal
	PostedBy     int64
	ReversalOfID *int64
	Lines        []JournalLine
}

// InsertPosted validates the period, assigns the next journal number and
// inserts the entry with its lines in POSTED state. Must run inside the
// caller's transaction so the insert commits atomically with whatever
// document or event produced it.
func InsertPosted(ctx context.Context, tx TxRepository, in EntryInput, now time.Time) (JournalEntry, error) {
	if len(in.Lines) < 2 {
		return JournalEntry{}, ErrTooFewLines
	}
	var period periods.Period
	var err error
	if in.PeriodID != 0 {
		period, err = tx.GetPeriodForPosting(ctx, in.SchoolID, in.PeriodID)
	} else {
		period, err = tx.GetPeriodByDate(ctx, in.SchoolID, in.EntryDate)
	}
	if err != nil {
		return JournalEntry{}, err
	}
	if period.Status != periods.StatusOpen {
		return JournalEntry{}, ErrPeriodClosed
	}

	kind := in.NumberKind
	if kind == "" {
		kind = PrefixGeneral
	}
	number, err := tx.NextJournalNo(ctx, in.SchoolID, NumberPrefix(kind, in.EntryDate))
	if err != nil {
		return JournalEntry{}, err
	}

	var debit, credit float64
	for _, line := range in.Lines {
		debit += line.Debit
		credit += line.Credit
	}

	postedBy := in.PostedBy
	postedAt := now
	entry := JournalEntry{
		SchoolID:     in.SchoolID,
		JournalNo:    number,
		EntryDate:    in.EntryDate,
		PeriodID:     period.ID,
		Description:  in.Description,
		Reference:    in.Reference,
		Status:       StatusPosted,
		TotalDebit:   debit,
		TotalCredit:  credit,
		ReversalOfID: in.ReversalOfID,
		PostedBy:     &postedBy,
		PostedAt:     &postedAt,
	}
	inserted, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.InsertLines(ctx, inserted.ID, in.Lines); err != nil {
		return JournalEntry{}, err
	}
	inserted.Lines = in.Lines
	return inserted, nil
}

// SwapLines returns a copy of lines with debit and credit exchanged, used to
// build reversal entries.
func SwapLines(lines []JournalLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for i, line := range lines {
		out = append(out, JournalLine{
			LineNo:       i + 1,
			AccountID:    line.AccountID,
			Description:  line.Description,
			Debit:        line.Credit,
			Credit:       line.Debit,
			CostCenterID: line.CostCenterID,
			TaxCodeID:    line.TaxCodeID,
			PartyID:      line.PartyID,
		})
	}
	return out
}
