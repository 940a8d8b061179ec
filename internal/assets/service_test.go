package assets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
	"github.com/classbridge-erp/classbridge-erp/internal/posting"
)

type fakeRepo struct {
	assets   map[int64]Asset
	schedule map[int64]ScheduleRow
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{assets: map[int64]Asset{}, schedule: map[int64]ScheduleRow{}, nextID: 1}
}

func (f *fakeRepo) Create(_ context.Context, asset Asset) (Asset, error) {
	for _, a := range f.assets {
		if a.SchoolID == asset.SchoolID && a.Code == asset.Code {
			return Asset{}, ErrDuplicateCode
		}
	}
	asset.ID = f.nextID
	f.nextID++
	f.assets[asset.ID] = asset
	return asset, nil
}

func (f *fakeRepo) Get(_ context.Context, schoolID, id int64) (Asset, error) {
	a, ok := f.assets[id]
	if !ok || a.SchoolID != schoolID {
		return Asset{}, ErrAssetNotFound
	}
	return a, nil
}

func (f *fakeRepo) List(_ context.Context, schoolID int64, status AssetStatus) ([]Asset, error) {
	var out []Asset
	for id := int64(1); id < f.nextID; id++ {
		a, ok := f.assets[id]
		if !ok || a.SchoolID != schoolID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeRepo) SetCapitalized(_ context.Context, schoolID, id, journalEntryID int64) error {
	a, ok := f.assets[id]
	if !ok || a.SchoolID != schoolID {
		return ErrAssetNotFound
	}
	if a.JournalEntryID == nil {
		a.JournalEntryID = &journalEntryID
		f.assets[id] = a
	}
	return nil
}

func (f *fakeRepo) ApplyDepreciation(_ context.Context, row ScheduleRow) (ScheduleRow, error) {
	a, ok := f.assets[row.AssetID]
	if !ok || a.Status != StatusActive {
		return ScheduleRow{}, ErrDisposed
	}
	a.AccumulatedDep = row.AccumulatedDep
	a.CarryingAmount = row.CarryingAmount
	f.assets[a.ID] = a
	row.ID = f.nextID
	f.nextID++
	f.schedule[row.ID] = row
	return row, nil
}

func (f *fakeRepo) Schedule(_ context.Context, schoolID, assetID int64) ([]ScheduleRow, error) {
	var out []ScheduleRow
	for id := int64(1); id < f.nextID; id++ {
		row, ok := f.schedule[id]
		if ok && row.SchoolID == schoolID && row.AssetID == assetID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeRepo) SetScheduleRowPosted(_ context.Context, schoolID, id, journalEntryID int64) error {
	row, ok := f.schedule[id]
	if !ok || row.SchoolID != schoolID {
		return nil
	}
	row.JournalEntryID = &journalEntryID
	f.schedule[id] = row
	return nil
}

func (f *fakeRepo) MarkDisposed(_ context.Context, asset Asset) error {
	a, ok := f.assets[asset.ID]
	if !ok || a.Status != StatusActive {
		return ErrDisposed
	}
	a.Status = StatusDisposed
	a.DisposedAt = asset.DisposedAt
	a.DisposalAmount = asset.DisposalAmount
	f.assets[a.ID] = a
	return nil
}

type fakeAccounts struct{}

func (fakeAccounts) GetByCode(_ context.Context, _ int64, code string) (accounts.Account, error) {
	return accounts.Account{ID: int64(len(code)), Code: code, IsActive: true}, nil
}

type fakePoster struct {
	nextEntry int64
	posted    map[string]posting.PostResult
	requests  []posting.PostRequest
}

func (f *fakePoster) Post(_ context.Context, req posting.PostRequest) (posting.PostResult, error) {
	if prior, ok := f.posted[req.IdempotencyKey]; ok {
		prior.AlreadyPosted = true
		return prior, nil
	}
	if err := req.Validate(); err != nil {
		return posting.PostResult{}, err
	}
	f.requests = append(f.requests, req)
	f.nextEntry++
	result := posting.PostResult{JournalEntryID: f.nextEntry}
	f.posted[req.IdempotencyKey] = result
	return result, nil
}

func newTestService() (*Service, *fakePoster) {
	poster := &fakePoster{nextEntry: 400, posted: map[string]posting.PostResult{}}
	svc := NewService(newFakeRepo(), fakeAccounts{}, poster, nil, DefaultConfig())
	svc.WithNow(func() time.Time { return time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC) })
	return svc, poster
}

func capitalizeBus(t *testing.T, svc *Service) Asset {
	t.Helper()
	asset, _, err := svc.Capitalize(context.Background(), CapitalizeInput{
		SchoolID: 1, ActorID: 5, Code: "BUS-01", Name: "School Bus",
		Category: "VEHICLES", Cost: 36000, ResidualValue: 0, UsefulLifeMonths: 36,
		AcquiredAt: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return asset
}

func TestCapitalize(t *testing.T) {
	svc, poster := newTestService()

	asset := capitalizeBus(t, svc)
	require.Equal(t, StatusActive, asset.Status)
	require.Equal(t, 36000.0, asset.CarryingAmount)
	require.NotNil(t, asset.JournalEntryID)
	require.Equal(t, posting.TxnAssetCapitalize, poster.requests[0].TxnType)
	require.Equal(t, 1000.0, asset.MonthlyDepreciation())
}

func TestDepreciationRuns(t *testing.T) {
	svc, poster := newTestService()
	asset := capitalizeBus(t, svc)

	row, _, err := svc.Depreciate(context.Background(), DepreciateInput{
		SchoolID: 1, ActorID: 5, AssetID: asset.ID,
		RunDate: time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, 1000.0, row.Amount) // straight-line default
	require.Equal(t, 1000.0, row.AccumulatedDep)
	require.Equal(t, 35000.0, row.CarryingAmount)
	require.NotNil(t, row.JournalEntryID)
	require.Equal(t, posting.TxnAssetDepreciate, poster.requests[len(poster.requests)-1].TxnType)

	// per-run override
	row, _, err = svc.Depreciate(context.Background(), DepreciateInput{
		SchoolID: 1, ActorID: 5, AssetID: asset.ID,
		RunDate: time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC), Amount: 2500,
	})
	require.NoError(t, err)
	require.Equal(t, 2500.0, row.Amount)
	require.Equal(t, 32500.0, row.CarryingAmount)

	rows, err := svc.Schedule(context.Background(), 1, asset.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestDepreciationClampsAtResidual(t *testing.T) {
	svc, _ := newTestService()
	asset := capitalizeBus(t, svc)

	row, _, err := svc.Depreciate(context.Background(), DepreciateInput{
		SchoolID: 1, ActorID: 5, AssetID: asset.ID,
		RunDate: time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC), Amount: 50000,
	})
	require.NoError(t, err)
	require.Equal(t, 36000.0, row.Amount) // clamped to the depreciable base
	require.Equal(t, 0.0, row.CarryingAmount)

	_, _, err = svc.Depreciate(context.Background(), DepreciateInput{
		SchoolID: 1, ActorID: 5, AssetID: asset.ID,
		RunDate: time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrFullyDepreciated)
}

func TestDisposeIsTerminal(t *testing.T) {
	svc, poster := newTestService()
	asset := capitalizeBus(t, svc)

	proceeds := 30000.0
	disposed, _, err := svc.Dispose(context.Background(), DisposeInput{
		SchoolID: 1, ActorID: 5, AssetID: asset.ID,
		DisposedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Proceeds: &proceeds,
	})
	require.NoError(t, err)
	require.Equal(t, StatusDisposed, disposed.Status)
	require.Equal(t, 30000.0, *disposed.DisposalAmount)
	require.Equal(t, posting.TxnAssetDispose, poster.requests[len(poster.requests)-1].TxnType)

	_, _, err = svc.Depreciate(context.Background(), DepreciateInput{
		SchoolID: 1, ActorID: 5, AssetID: asset.ID,
		RunDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrDisposed)

	_, _, err = svc.Dispose(context.Background(), DisposeInput{
		SchoolID: 1, ActorID: 5, AssetID: asset.ID,
		DisposedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrDisposed)
}
