package inventory

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/items"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/warehouses"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/posting"
)

type stockKey struct {
	item, warehouse int64
}

type fakeRepo struct {
	stocks map[stockKey]Stock
	moves  map[int64]Move
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stocks: map[stockKey]Stock{}, moves: map[int64]Move{}, nextID: 1}
}

func (f *fakeRepo) GetMove(_ context.Context, schoolID, id int64) (Move, error) {
	m, ok := f.moves[id]
	if !ok || m.SchoolID != schoolID {
		return Move{}, ErrMoveNotFound
	}
	return m, nil
}

func (f *fakeRepo) ListMoves(_ context.Context, schoolID int64, filter MoveFilter) ([]Move, error) {
	var out []Move
	for id := int64(1); id < f.nextID; id++ {
		m, ok := f.moves[id]
		if !ok || m.SchoolID != schoolID {
			continue
		}
		if filter.ItemID != 0 && m.ItemID != filter.ItemID {
			continue
		}
		if filter.WarehouseID != 0 && m.WarehouseID != filter.WarehouseID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRepo) StockLevels(_ context.Context, schoolID, warehouseID int64) ([]Stock, error) {
	var out []Stock
	for _, s := range f.stocks {
		if s.SchoolID != schoolID {
			continue
		}
		if warehouseID != 0 && s.WarehouseID != warehouseID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeRepo) SetMovePosted(_ context.Context, schoolID, id, journalEntryID int64) error {
	m, ok := f.moves[id]
	if !ok || m.SchoolID != schoolID {
		return ErrMoveNotFound
	}
	if m.JournalEntryID != nil {
		return ErrMovePosted
	}
	m.JournalEntryID = &journalEntryID
	f.moves[id] = m
	return nil
}

func (f *fakeRepo) ValuationTotal(_ context.Context, schoolID int64) (float64, error) {
	var total float64
	for _, s := range f.stocks {
		if s.SchoolID == schoolID {
			total += s.Valuation
		}
	}
	return total, nil
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &fakeTx{repo: f})
}

type fakeTx struct {
	repo *fakeRepo
}

func (t *fakeTx) GetStockForUpdate(_ context.Context, schoolID, itemID, warehouseID int64) (Stock, error) {
	if s, ok := t.repo.stocks[stockKey{itemID, warehouseID}]; ok {
		return s, nil
	}
	return Stock{SchoolID: schoolID, ItemID: itemID, WarehouseID: warehouseID}, nil
}

func (t *fakeTx) UpsertStock(_ context.Context, stock Stock) error {
	t.repo.stocks[stockKey{stock.ItemID, stock.WarehouseID}] = stock
	return nil
}

func (t *fakeTx) InsertMove(_ context.Context, move Move) (Move, error) {
	move.ID = t.repo.nextID
	t.repo.nextID++
	t.repo.moves[move.ID] = move
	return move, nil
}

type fakeItems struct{}

func (fakeItems) Get(_ context.Context, schoolID, id int64) (items.Item, error) {
	return items.Item{ID: id, SchoolID: schoolID}, nil
}

type fakeWarehouses struct{}

func (fakeWarehouses) Get(_ context.Context, schoolID, id int64) (warehouses.Warehouse, error) {
	return warehouses.Warehouse{ID: id, SchoolID: schoolID}, nil
}

type fakeAccounts struct{}

func (fakeAccounts) GetByCode(_ context.Context, _ int64, code string) (accounts.Account, error) {
	id, err := strconv.ParseInt(code, 10, 64)
	if err != nil {
		return accounts.Account{}, err
	}
	return accounts.Account{ID: id, Code: code, IsActive: true}, nil
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

func newTestService() (*Service, *fakeRepo, *fakePoster) {
	repo := newFakeRepo()
	poster := &fakePoster{nextEntry: 300, posted: map[string]posting.PostResult{}}
	svc := NewService(repo, fakeItems{}, fakeWarehouses{}, fakeAccounts{}, poster, nil, DefaultConfig())
	svc.WithNow(func() time.Time { return time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC) })
	return svc, repo, poster
}

func receive(t *testing.T, svc *Service, qty, cost float64) Move {
	t.Helper()
	m, _, err := svc.RecordMove(context.Background(), RecordMoveInput{
		SchoolID: 1, ActorID: 5, ItemID: 1, WarehouseID: 1,
		MoveType: MovePurchaseReceipt, Quantity: qty, UnitCost: cost,
		MoveDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return m
}

func TestMovingAverage(t *testing.T) {
	svc, repo, _ := newTestService()

	receive(t, svc, 10, 10)
	m := receive(t, svc, 10, 20)
	require.Equal(t, 20.0, m.QtyAfter)
	require.Equal(t, 15.0, m.AvgCostAfter)

	issue, _, err := svc.RecordMove(context.Background(), RecordMoveInput{
		SchoolID: 1, ActorID: 5, ItemID: 1, WarehouseID: 1,
		MoveType: MoveIssueSale, Quantity: 5,
		MoveDate: time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, 75.0, issue.CostMoved)
	require.Equal(t, 15.0, issue.QtyAfter)
	require.Equal(t, 15.0, issue.AvgCostAfter) // outbound leaves the average unchanged

	stock := repo.stocks[stockKey{1, 1}]
	require.Equal(t, 225.0, stock.Valuation)

	total, err := svc.ValuationTotal(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 225.0, total)
}

func TestInsufficientStock(t *testing.T) {
	svc, _, _ := newTestService()
	receive(t, svc, 3, 10)

	_, _, err := svc.RecordMove(context.Background(), RecordMoveInput{
		SchoolID: 1, ActorID: 5, ItemID: 1, WarehouseID: 1,
		MoveType: MoveIssueSale, Quantity: 4,
		MoveDate: time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAllowNegativeStockOptIn(t *testing.T) {
	repo := newFakeRepo()
	poster := &fakePoster{nextEntry: 300, posted: map[string]posting.PostResult{}}
	cfg := DefaultConfig()
	cfg.AllowNegative = true
	svc := NewService(repo, fakeItems{}, fakeWarehouses{}, fakeAccounts{}, poster, nil, cfg)
	svc.WithNow(func() time.Time { return time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC) })

	receive(t, svc, 3, 10)

	m, _, err := svc.RecordMove(context.Background(), RecordMoveInput{
		SchoolID: 1, ActorID: 5, ItemID: 1, WarehouseID: 1,
		MoveType: MoveIssueSale, Quantity: 4,
		MoveDate: time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, -1.0, m.QtyAfter)
	require.Equal(t, 40.0, m.CostMoved) // issued at the standing average
}

func TestZeroQuantityRestockTakesNewCost(t *testing.T) {
	svc, _, _ := newTestService()
	receive(t, svc, 5, 10)

	_, _, err := svc.RecordMove(context.Background(), RecordMoveInput{
		SchoolID: 1, ActorID: 5, ItemID: 1, WarehouseID: 1,
		MoveType: MoveIssueSale, Quantity: 5,
		MoveDate: time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	m := receive(t, svc, 2, 30)
	require.Equal(t, 30.0, m.AvgCostAfter)
}

func TestMovesPostToGL(t *testing.T) {
	svc, _, poster := newTestService()

	m := receive(t, svc, 10, 10)
	require.NotNil(t, m.JournalEntryID)
	require.Len(t, poster.requests, 1)
	require.Equal(t, posting.TxnPurchaseReceipt, poster.requests[0].TxnType)
	require.Equal(t, 100.0, poster.requests[0].Amount)
	require.Equal(t, fmt.Sprintf("INVMOVE:%d", m.ID), poster.requests[0].IdempotencyKey)

	// a retried post replays the idempotency key and says so
	_, result, err := svc.PostMove(context.Background(), 1, 5, m.ID)
	require.NoError(t, err)
	require.True(t, result.AlreadyPosted)
	require.Equal(t, *m.JournalEntryID, result.JournalEntryID)
}

func TestTransferMovesStockWithoutGL(t *testing.T) {
	svc, repo, poster := newTestService()
	receive(t, svc, 10, 12)
	posted := len(poster.requests)

	moves, err := svc.Transfer(context.Background(), TransferInput{
		SchoolID: 1, ActorID: 5, ItemID: 1, FromWarehouseID: 1, ToWarehouseID: 2,
		Quantity: 4, MoveDate: time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, moves, 2)
	require.Equal(t, MoveTransferOut, moves[0].MoveType)
	require.Equal(t, MoveTransferIn, moves[1].MoveType)
	require.Len(t, poster.requests, posted) // no GL entry for transfers

	require.Equal(t, 6.0, repo.stocks[stockKey{1, 1}].Quantity)
	require.Equal(t, 4.0, repo.stocks[stockKey{1, 2}].Quantity)
	require.Equal(t, 12.0, repo.stocks[stockKey{1, 2}].AvgCost)

	// valuation is conserved across the transfer
	total, err := svc.ValuationTotal(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 120.0, total)

	_, err = svc.Transfer(context.Background(), TransferInput{
		SchoolID: 1, ActorID: 5, ItemID: 1, FromWarehouseID: 1, ToWarehouseID: 1,
		Quantity: 1, MoveDate: time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrSameWarehouse)
}

func TestOutboundAdjustment(t *testing.T) {
	svc, _, poster := newTestService()
	receive(t, svc, 10, 10)

	m, _, err := svc.RecordMove(context.Background(), RecordMoveInput{
		SchoolID: 1, ActorID: 5, ItemID: 1, WarehouseID: 1,
		MoveType: MoveAdjustment, Quantity: 2, Outbound: true,
		MoveDate: time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC), Reference: "stocktake loss",
	})
	require.NoError(t, err)
	require.Equal(t, 20.0, m.CostMoved)
	require.Equal(t, 8.0, m.QtyAfter)

	last := poster.requests[len(poster.requests)-1]
	require.Equal(t, posting.TxnStockAdjustment, last.TxnType)
	require.Equal(t, int64(5900), last.DebitAccountID) // shrinkage expense
	require.Equal(t, int64(1300), last.CreditAccountID)
}

func TestAdjustmentUnitCostMatchesDirection(t *testing.T) {
	svc, _, poster := newTestService()
	receive(t, svc, 10, 10)

	// An outbound adjustment issues at the standing average; a caller-supplied
	// cost would flip its GL pair inbound and break the control balance.
	_, _, err := svc.RecordMove(context.Background(), RecordMoveInput{
		SchoolID: 1, ActorID: 5, ItemID: 1, WarehouseID: 1,
		MoveType: MoveAdjustment, Quantity: 2, Outbound: true, UnitCost: 7,
		MoveDate: time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = svc.RecordMove(context.Background(), RecordMoveInput{
		SchoolID: 1, ActorID: 5, ItemID: 1, WarehouseID: 1,
		MoveType: MoveAdjustment, Quantity: 2,
		MoveDate: time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, httpx.ErrValidation) // inbound without a unit cost

	m, _, err := svc.RecordMove(context.Background(), RecordMoveInput{
		SchoolID: 1, ActorID: 5, ItemID: 1, WarehouseID: 1,
		MoveType: MoveAdjustment, Quantity: 2, UnitCost: 12,
		MoveDate: time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, 12.0, m.QtyAfter)

	last := poster.requests[len(poster.requests)-1]
	require.Equal(t, int64(1300), last.DebitAccountID) // inbound pair
	require.Equal(t, int64(5900), last.CreditAccountID)
}
