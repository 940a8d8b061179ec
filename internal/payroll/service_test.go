package payroll

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/parties"
	"github.com/classbridge-erp/classbridge-erp/internal/posting"
)

type fakeRepo struct {
	structures map[int64]SalaryStructure
	runs       map[int64]Run
	nextID     int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{structures: map[int64]SalaryStructure{}, runs: map[int64]Run{}, nextID: 1}
}

func (f *fakeRepo) UpsertStructure(_ context.Context, st SalaryStructure) (SalaryStructure, error) {
	for id, existing := range f.structures {
		if existing.SchoolID == st.SchoolID && existing.EmployeeID == st.EmployeeID {
			st.ID = id
			st.IsActive = true
			f.structures[id] = st
			return st, nil
		}
	}
	st.ID = f.nextID
	f.nextID++
	st.IsActive = true
	f.structures[st.ID] = st
	return st, nil
}

func (f *fakeRepo) ListActiveStructures(_ context.Context, schoolID int64) ([]SalaryStructure, error) {
	var out []SalaryStructure
	for id := int64(1); id < f.nextID; id++ {
		st, ok := f.structures[id]
		if ok && st.SchoolID == schoolID && st.IsActive {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateRun(_ context.Context, run Run) (Run, error) {
	for _, existing := range f.runs {
		if existing.SchoolID == run.SchoolID && existing.PeriodLabel == run.PeriodLabel {
			return Run{}, ErrDuplicatePeriod
		}
	}
	run.ID = f.nextID
	f.nextID++
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeRepo) GetRun(_ context.Context, schoolID, id int64) (Run, error) {
	run, ok := f.runs[id]
	if !ok || run.SchoolID != schoolID {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

func (f *fakeRepo) ListRuns(_ context.Context, schoolID int64) ([]Run, error) {
	var out []Run
	for _, run := range f.runs {
		if run.SchoolID == schoolID {
			out = append(out, run)
		}
	}
	return out, nil
}

func (f *fakeRepo) ReplaceLines(_ context.Context, run Run) (Run, error) {
	stored, ok := f.runs[run.ID]
	if !ok || (stored.Status != StatusDraft && stored.Status != StatusGenerated) {
		return Run{}, ErrBadTransition
	}
	run.Status = StatusGenerated
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeRepo) SetRunStatus(_ context.Context, schoolID, id int64, from, to RunStatus, lockedBy *int64) error {
	run, ok := f.runs[id]
	if !ok || run.SchoolID != schoolID || run.Status != from {
		return ErrBadTransition
	}
	run.Status = to
	if lockedBy != nil {
		run.LockedBy = lockedBy
	}
	f.runs[id] = run
	return nil
}

func (f *fakeRepo) SetRunPosted(_ context.Context, schoolID, id, journalEntryID int64) error {
	run, ok := f.runs[id]
	if !ok || run.SchoolID != schoolID || run.Status != StatusLocked {
		return ErrBadTransition
	}
	run.Status = StatusPosted
	run.JournalEntryID = &journalEntryID
	f.runs[id] = run
	return nil
}

type fakeParties struct{}

func (fakeParties) Require(_ context.Context, _, id int64, kind parties.PartyKind) (parties.Party, error) {
	if kind != parties.KindEmployee {
		return parties.Party{}, fmt.Errorf("parties: party %d is not a %s", id, kind)
	}
	return parties.Party{ID: id, Kind: kind}, nil
}

type fakeAccounts struct{}

func (fakeAccounts) GetByCode(_ context.Context, _ int64, code string) (accounts.Account, error) {
	return accounts.Account{ID: int64(len(code)) + 10, Code: code, IsActive: true}, nil
}

type fakePoster struct {
	nextEntry int64
	posted    map[string]posting.PostResult
	lastLines posting.PostLinesRequest
	calls     int
}

func (f *fakePoster) PostLines(_ context.Context, req posting.PostLinesRequest) (posting.PostResult, error) {
	f.calls++
	if prior, ok := f.posted[req.IdempotencyKey]; ok {
		prior.AlreadyPosted = true
		return prior, nil
	}
	if err := req.Validate(); err != nil {
		return posting.PostResult{}, err
	}
	f.lastLines = req
	f.nextEntry++
	result := posting.PostResult{JournalEntryID: f.nextEntry}
	f.posted[req.IdempotencyKey] = result
	return result, nil
}

func newTestService() (*Service, *fakeRepo, *fakePoster) {
	repo := newFakeRepo()
	poster := &fakePoster{nextEntry: 500, posted: map[string]posting.PostResult{}}
	svc := NewService(repo, fakeParties{}, fakeAccounts{}, poster, nil, DefaultConfig())
	svc.WithNow(func() time.Time { return time.Date(2025, 9, 30, 10, 0, 0, 0, time.UTC) })
	return svc, repo, poster
}

func setupRun(t *testing.T, svc *Service) Run {
	t.Helper()
	ctx := context.Background()
	_, err := svc.UpsertStructure(ctx, UpsertStructureInput{
		SchoolID: 1, EmployeeID: 100, Basic: 3000, Allowances: 500, Deductions: 200, Tax: 300,
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = svc.UpsertStructure(ctx, UpsertStructureInput{
		SchoolID: 1, EmployeeID: 101, Basic: 2000, Allowances: 0, Deductions: 0, Tax: 100,
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	run, err := svc.CreateRun(ctx, 1, 5, "2025-09", time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return run
}

func TestGenerateRunSnapshotsStructures(t *testing.T) {
	svc, _, _ := newTestService()
	run := setupRun(t, svc)

	generated, err := svc.GenerateRun(context.Background(), 1, 5, run.ID)
	require.NoError(t, err)
	require.Equal(t, StatusGenerated, generated.Status)
	require.Len(t, generated.Lines, 2)
	require.Equal(t, 5500.0, generated.TotalGross)
	require.Equal(t, 200.0, generated.TotalDeductions)
	require.Equal(t, 400.0, generated.TotalTax)
	require.Equal(t, 4900.0, generated.TotalNet)

	// regeneration replaces the snapshot while still GENERATED
	regenerated, err := svc.GenerateRun(context.Background(), 1, 5, run.ID)
	require.NoError(t, err)
	require.Len(t, regenerated.Lines, 2)
}

func TestRunLifecycle(t *testing.T) {
	svc, _, poster := newTestService()
	run := setupRun(t, svc)

	// cannot lock or post before generating
	_, err := svc.LockRun(context.Background(), 1, 5, run.ID)
	require.ErrorIs(t, err, ErrBadTransition)
	_, _, err = svc.PostRun(context.Background(), 1, 5, run.ID)
	require.ErrorIs(t, err, ErrBadTransition)

	_, err = svc.GenerateRun(context.Background(), 1, 5, run.ID)
	require.NoError(t, err)
	locked, err := svc.LockRun(context.Background(), 1, 5, run.ID)
	require.NoError(t, err)
	require.Equal(t, StatusLocked, locked.Status)

	// a locked run cannot regenerate
	_, err = svc.GenerateRun(context.Background(), 1, 5, run.ID)
	require.ErrorIs(t, err, ErrBadTransition)

	posted, result, err := svc.PostRun(context.Background(), 1, 5, run.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.JournalEntryID)
	require.False(t, result.AlreadyPosted)

	req := poster.lastLines
	require.Equal(t, fmt.Sprintf("PAYROLL:%d", run.ID), req.IdempotencyKey)
	require.Len(t, req.Lines, 3)
	require.Equal(t, 5500.0, req.Lines[0].Debit)  // expense: gross
	require.Equal(t, 4900.0, req.Lines[1].Credit) // payable: net
	require.Equal(t, 600.0, req.Lines[2].Credit)  // withholdings: deductions + tax
}

func TestRepostReturnsOriginalJournal(t *testing.T) {
	svc, _, _ := newTestService()
	run := setupRun(t, svc)

	_, err := svc.GenerateRun(context.Background(), 1, 5, run.ID)
	require.NoError(t, err)
	_, err = svc.LockRun(context.Background(), 1, 5, run.ID)
	require.NoError(t, err)
	posted, first, err := svc.PostRun(context.Background(), 1, 5, run.ID)
	require.NoError(t, err)
	require.False(t, first.AlreadyPosted)

	again, replay, err := svc.PostRun(context.Background(), 1, 5, run.ID)
	require.NoError(t, err)
	require.Equal(t, *posted.JournalEntryID, *again.JournalEntryID)
	require.True(t, replay.AlreadyPosted)
	require.Equal(t, first.JournalEntryID, replay.JournalEntryID)
}

func TestStructureValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.UpsertStructure(ctx, UpsertStructureInput{SchoolID: 1, EmployeeID: 100, Basic: 0})
	require.Error(t, err)

	_, err = svc.UpsertStructure(ctx, UpsertStructureInput{
		SchoolID: 1, EmployeeID: 100, Basic: 1000, Deductions: 900, Tax: 200,
	})
	require.Error(t, err) // net would be negative
}
