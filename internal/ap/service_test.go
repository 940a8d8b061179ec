package ap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classbridge-erp/classbridge-erp/internal/ledger"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/parties"
	"github.com/classbridge-erp/classbridge-erp/internal/posting"
)

type fakeRepo struct {
	bills    map[int64]Bill
	payments map[int64]Payment
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{bills: map[int64]Bill{}, payments: map[int64]Payment{}, nextID: 1}
}

func (f *fakeRepo) CreateBill(_ context.Context, bill Bill) (Bill, error) {
	bill.ID = f.nextID
	f.nextID++
	bill.Number = fmt.Sprintf("BILL-%06d", bill.ID)
	for i := range bill.Lines {
		bill.Lines[i].BillID = bill.ID
	}
	f.bills[bill.ID] = bill
	return bill, nil
}

func (f *fakeRepo) GetBill(_ context.Context, schoolID, id int64) (Bill, error) {
	bill, ok := f.bills[id]
	if !ok || bill.SchoolID != schoolID {
		return Bill{}, ErrBillNotFound
	}
	return bill, nil
}

func (f *fakeRepo) ListBills(_ context.Context, schoolID int64, _ BillFilter) ([]Bill, error) {
	var out []Bill
	for _, bill := range f.bills {
		if bill.SchoolID == schoolID {
			out = append(out, bill)
		}
	}
	return out, nil
}

func (f *fakeRepo) SetBillPosted(_ context.Context, schoolID, id, journalEntryID int64) error {
	bill, ok := f.bills[id]
	if !ok || bill.SchoolID != schoolID {
		return ErrBillNotFound
	}
	if bill.Status != StatusDraft {
		return ErrNotDraft
	}
	bill.Status = StatusPosted
	bill.JournalEntryID = &journalEntryID
	f.bills[id] = bill
	return nil
}

func (f *fakeRepo) CreatePayment(_ context.Context, pay Payment) (Payment, error) {
	pay.ID = f.nextID
	f.nextID++
	pay.Number = fmt.Sprintf("PAY-%06d", pay.ID)
	f.payments[pay.ID] = pay
	return pay, nil
}

func (f *fakeRepo) GetPayment(_ context.Context, schoolID, id int64) (Payment, error) {
	pay, ok := f.payments[id]
	if !ok || pay.SchoolID != schoolID {
		return Payment{}, ErrPaymentNotFound
	}
	return pay, nil
}

func (f *fakeRepo) ListPayments(_ context.Context, schoolID, _ int64) ([]Payment, error) {
	var out []Payment
	for _, pay := range f.payments {
		if pay.SchoolID == schoolID {
			out = append(out, pay)
		}
	}
	return out, nil
}

func (f *fakeRepo) ApplyPayment(_ context.Context, pay Payment, journalEntryID int64) error {
	stored, ok := f.payments[pay.ID]
	if !ok || stored.SchoolID != pay.SchoolID {
		return ErrPaymentNotFound
	}
	if stored.JournalEntryID != nil {
		return ErrPaymentPosted
	}
	if pay.BillID != nil {
		bill := f.bills[*pay.BillID]
		if bill.PaidAmount+pay.Amount > bill.Total+0.01 {
			return ErrOverpayment
		}
		bill.PaidAmount += pay.Amount
		if bill.PaidAmount >= bill.Total-0.01 {
			bill.Status = StatusPaid
		} else {
			bill.Status = StatusPartiallyPaid
		}
		f.bills[bill.ID] = bill
	}
	stored.JournalEntryID = &journalEntryID
	f.payments[pay.ID] = stored
	return nil
}

func (f *fakeRepo) Aging(_ context.Context, _ int64, _ time.Time) (AgingBucket, error) {
	return AgingBucket{}, nil
}

func (f *fakeRepo) Statement(_ context.Context, _, _ int64, _, _ time.Time) ([]StatementRow, error) {
	return nil, nil
}

func (f *fakeRepo) OutstandingTotal(_ context.Context, schoolID int64) (float64, error) {
	var total float64
	for _, bill := range f.bills {
		if bill.SchoolID == schoolID && (bill.Status == StatusPosted || bill.Status == StatusPartiallyPaid) {
			total += bill.Outstanding()
		}
	}
	return total, nil
}

type fakeParties struct{ kinds map[int64]parties.PartyKind }

func (f *fakeParties) Require(_ context.Context, _, id int64, kind parties.PartyKind) (parties.Party, error) {
	got, ok := f.kinds[id]
	if !ok || got != kind {
		return parties.Party{}, fmt.Errorf("parties: party %d is not a %s", id, kind)
	}
	return parties.Party{ID: id, Kind: kind}, nil
}

type fakeAccounts struct{ byCode map[string]int64 }

func (f *fakeAccounts) GetByCode(_ context.Context, _ int64, code string) (accounts.Account, error) {
	id, ok := f.byCode[code]
	if !ok {
		return accounts.Account{}, fmt.Errorf("accounts: %s not found", code)
	}
	return accounts.Account{ID: id, Code: code, IsActive: true}, nil
}

type fakePoster struct {
	nextEntry int64
	posted    map[string]posting.PostResult
	lastLines posting.PostLinesRequest
	failWith  error
}

func (f *fakePoster) Post(_ context.Context, req posting.PostRequest) (posting.PostResult, error) {
	if prior, ok := f.posted[req.IdempotencyKey]; ok {
		prior.AlreadyPosted = true
		return prior, nil
	}
	if f.failWith != nil {
		return posting.PostResult{}, f.failWith
	}
	if err := req.Validate(); err != nil {
		return posting.PostResult{}, err
	}
	f.nextEntry++
	result := posting.PostResult{JournalEntryID: f.nextEntry, JournalNo: fmt.Sprintf("GL-20250901-%04d", f.nextEntry)}
	f.posted[req.IdempotencyKey] = result
	return result, nil
}

func (f *fakePoster) PostLines(_ context.Context, req posting.PostLinesRequest) (posting.PostResult, error) {
	if prior, ok := f.posted[req.IdempotencyKey]; ok {
		prior.AlreadyPosted = true
		return prior, nil
	}
	if f.failWith != nil {
		return posting.PostResult{}, f.failWith
	}
	if err := req.Validate(); err != nil {
		return posting.PostResult{}, err
	}
	f.lastLines = req
	f.nextEntry++
	result := posting.PostResult{JournalEntryID: f.nextEntry, JournalNo: fmt.Sprintf("GL-20250901-%04d", f.nextEntry)}
	f.posted[req.IdempotencyKey] = result
	return result, nil
}

func newTestService() (*Service, *fakeRepo, *fakePoster) {
	repo := newFakeRepo()
	poster := &fakePoster{nextEntry: 200, posted: map[string]posting.PostResult{}}
	svc := NewService(repo,
		&fakeParties{kinds: map[int64]parties.PartyKind{30: parties.KindVendor, 10: parties.KindCustomer}},
		&fakeAccounts{byCode: map[string]int64{"2100": 1, "5100": 2, "1150": 3, "1010": 4, "5200": 5}},
		poster, nil, DefaultConfig())
	svc.WithNow(func() time.Time { return time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC) })
	return svc, repo, poster
}

func TestPostBillGroupsExpenseLines(t *testing.T) {
	svc, _, poster := newTestService()
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	utilities := int64(5)

	bill, err := svc.CreateBill(context.Background(), CreateBillInput{
		SchoolID: 1, VendorID: 30, BillDate: date, VendorRef: "V-1881",
		Lines: []CreateBillLineInput{
			{Description: "Chairs", Quantity: 10, UnitPrice: 40, TaxRate: 10},
			{Description: "Desks", Quantity: 5, UnitPrice: 80, TaxRate: 10},
			{Description: "Electricity", Quantity: 1, UnitPrice: 200, ExpenseAccountID: &utilities},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1000.0, bill.Subtotal)
	require.Equal(t, 80.0, bill.TaxTotal)
	require.Equal(t, 1080.0, bill.Total)

	_, result, err := svc.PostBill(context.Background(), 1, 7, bill.ID)
	require.NoError(t, err)
	require.False(t, result.AlreadyPosted)
	require.NotEmpty(t, result.JournalNo)

	req := poster.lastLines
	require.Equal(t, fmt.Sprintf("APBILL:%d", bill.ID), req.IdempotencyKey)
	// default expense (grouped), specific expense, input tax, payable
	require.Len(t, req.Lines, 4)
	require.Equal(t, 800.0, req.Lines[0].Debit)
	require.Equal(t, 200.0, req.Lines[1].Debit)
	require.Equal(t, 80.0, req.Lines[2].Debit)
	require.Equal(t, 1080.0, req.Lines[3].Credit)
}

func TestBillRejectsCustomerParty(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateBill(context.Background(), CreateBillInput{
		SchoolID: 1, VendorID: 10, BillDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		Lines:    []CreateBillLineInput{{Quantity: 1, UnitPrice: 100}},
	})
	require.Error(t, err)
}

func TestPaymentLifecycle(t *testing.T) {
	svc, repo, _ := newTestService()
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	bill, err := svc.CreateBill(context.Background(), CreateBillInput{
		SchoolID: 1, VendorID: 30, BillDate: date,
		Lines:    []CreateBillLineInput{{Description: "Paper", Quantity: 1, UnitPrice: 500}},
	})
	require.NoError(t, err)
	_, _, err = svc.PostBill(context.Background(), 1, 7, bill.ID)
	require.NoError(t, err)

	pay, result, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		SchoolID: 1, ActorID: 7, VendorID: 30, BillID: &bill.ID,
		Amount: 500, PaymentDate: date.AddDate(0, 0, 3), Method: "BANK",
	})
	require.NoError(t, err)
	require.NotNil(t, pay.JournalEntryID)
	require.False(t, result.AlreadyPosted)

	updated, err := repo.GetBill(context.Background(), 1, bill.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)

	// a fully paid bill accepts no further payments
	_, _, err = svc.CreatePayment(context.Background(), CreatePaymentInput{
		SchoolID: 1, ActorID: 7, VendorID: 30, BillID: &bill.ID,
		Amount: 1, PaymentDate: date.AddDate(0, 0, 4),
	})
	require.ErrorIs(t, err, ErrBillNotOpen)
}

func TestPaymentPostingFailureLeavesBillOpen(t *testing.T) {
	svc, repo, poster := newTestService()
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	bill, err := svc.CreateBill(context.Background(), CreateBillInput{
		SchoolID: 1, VendorID: 30, BillDate: date,
		Lines:    []CreateBillLineInput{{Description: "Paper", Quantity: 1, UnitPrice: 500}},
	})
	require.NoError(t, err)
	_, _, err = svc.PostBill(context.Background(), 1, 7, bill.ID)
	require.NoError(t, err)

	poster.failWith = ledger.ErrPeriodClosed
	_, _, err = svc.CreatePayment(context.Background(), CreatePaymentInput{
		SchoolID: 1, ActorID: 7, VendorID: 30, BillID: &bill.ID,
		Amount: 500, PaymentDate: date.AddDate(0, 0, 3), Method: "BANK",
	})
	require.ErrorIs(t, err, ledger.ErrPeriodClosed)

	// the bill was not touched while the GL entry rolled back
	updated, err := repo.GetBill(context.Background(), 1, bill.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, updated.Status)
	require.Equal(t, 0.0, updated.PaidAmount)

	// the stored payment stays unapplied and retries cleanly
	payments, err := repo.ListPayments(context.Background(), 1, 30)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Nil(t, payments[0].JournalEntryID)

	poster.failWith = nil
	pay, result, err := svc.PostPayment(context.Background(), 1, 7, payments[0].ID)
	require.NoError(t, err)
	require.NotNil(t, pay.JournalEntryID)
	require.False(t, result.AlreadyPosted)

	updated, err = repo.GetBill(context.Background(), 1, bill.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)
}
