package ar

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
	"github.com/classbridge-erp/classbridge-erp/internal/recon"
)

type fakeRepo struct {
	invoices map[int64]Invoice
	receipts map[int64]Receipt
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{invoices: map[int64]Invoice{}, receipts: map[int64]Receipt{}, nextID: 1}
}

func (f *fakeRepo) CreateInvoice(_ context.Context, inv Invoice) (Invoice, error) {
	inv.ID = f.nextID
	f.nextID++
	inv.Number = fmt.Sprintf("INV-%06d", inv.ID)
	for i := range inv.Lines {
		inv.Lines[i].InvoiceID = inv.ID
	}
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeRepo) GetInvoice(_ context.Context, schoolID, id int64) (Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok || inv.SchoolID != schoolID {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (f *fakeRepo) ListInvoices(_ context.Context, schoolID int64, _ InvoiceFilter) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range f.invoices {
		if inv.SchoolID == schoolID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeRepo) SetInvoicePosted(_ context.Context, schoolID, id, journalEntryID int64) error {
	inv, ok := f.invoices[id]
	if !ok || inv.SchoolID != schoolID {
		return ErrInvoiceNotFound
	}
	if inv.Status != StatusDraft {
		return ErrNotDraft
	}
	inv.Status = StatusPosted
	inv.JournalEntryID = &journalEntryID
	f.invoices[id] = inv
	return nil
}

func (f *fakeRepo) CreateReceipt(_ context.Context, rec Receipt) (Receipt, error) {
	rec.ID = f.nextID
	f.nextID++
	rec.Number = fmt.Sprintf("RCT-%06d", rec.ID)
	f.receipts[rec.ID] = rec
	return rec, nil
}

func (f *fakeRepo) GetReceipt(_ context.Context, schoolID, id int64) (Receipt, error) {
	rec, ok := f.receipts[id]
	if !ok || rec.SchoolID != schoolID {
		return Receipt{}, ErrReceiptNotFound
	}
	return rec, nil
}

func (f *fakeRepo) ListReceipts(_ context.Context, schoolID, _ int64) ([]Receipt, error) {
	var out []Receipt
	for _, rec := range f.receipts {
		if rec.SchoolID == schoolID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRepo) ApplyReceipt(_ context.Context, rec Receipt, journalEntryID int64) error {
	stored, ok := f.receipts[rec.ID]
	if !ok || stored.SchoolID != rec.SchoolID {
		return ErrReceiptNotFound
	}
	if stored.JournalEntryID != nil {
		return ErrReceiptPosted
	}
	if rec.InvoiceID != nil {
		inv := f.invoices[*rec.InvoiceID]
		if inv.PaidAmount+rec.Amount > inv.Total+0.01 {
			return ErrOverpayment
		}
		inv.PaidAmount += rec.Amount
		if inv.PaidAmount >= inv.Total-0.01 {
			inv.Status = StatusPaid
		} else {
			inv.Status = StatusPartiallyPaid
		}
		f.invoices[inv.ID] = inv
	}
	stored.JournalEntryID = &journalEntryID
	f.receipts[rec.ID] = stored
	return nil
}

func (f *fakeRepo) Aging(_ context.Context, schoolID int64, asOf time.Time) (AgingBucket, error) {
	var b AgingBucket
	for _, inv := range f.invoices {
		if inv.SchoolID != schoolID || (inv.Status != StatusPosted && inv.Status != StatusPartiallyPaid) {
			continue
		}
		days := int(asOf.Sub(inv.DueDate).Hours() / 24)
		out := inv.Outstanding()
		switch {
		case days <= 30:
			b.Current += out
		case days <= 60:
			b.Bucket60 += out
		case days <= 90:
			b.Bucket90 += out
		default:
			b.Bucket90P += out
		}
		b.Total += out
	}
	return b, nil
}

func (f *fakeRepo) Statement(_ context.Context, _, _ int64, _, _ time.Time) ([]StatementRow, error) {
	return nil, nil
}

func (f *fakeRepo) OutstandingTotal(_ context.Context, schoolID int64) (float64, error) {
	b, _ := f.Aging(context.Background(), schoolID, time.Now())
	return b.Total, nil
}

type fakeParties struct{ kinds map[int64]parties.PartyKind }

func (f *fakeParties) Require(_ context.Context, _, id int64, kind parties.PartyKind) (parties.Party, error) {
	got, ok := f.kinds[id]
	if !ok {
		return parties.Party{}, fmt.Errorf("parties: not found")
	}
	if got != kind {
		return parties.Party{}, fmt.Errorf("parties: party %d is %s, expected %s", id, got, kind)
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
	lastPost  posting.PostRequest
	lineReqs  []posting.PostLinesRequest
	posts     []posting.PostRequest
	failWith  error
}

func newFakePoster() *fakePoster {
	return &fakePoster{nextEntry: 100, posted: map[string]posting.PostResult{}}
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
	f.lastPost = req
	f.posts = append(f.posts, req)
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
	f.lineReqs = append(f.lineReqs, req)
	f.nextEntry++
	result := posting.PostResult{JournalEntryID: f.nextEntry, JournalNo: fmt.Sprintf("GL-20250901-%04d", f.nextEntry)}
	f.posted[req.IdempotencyKey] = result
	return result, nil
}

// balances sums debit minus credit per account id across everything posted.
func (f *fakePoster) balances() map[int64]float64 {
	out := map[int64]float64{}
	for _, req := range f.lineReqs {
		for _, l := range req.Lines {
			out[l.AccountID] += l.Debit - l.Credit
		}
	}
	for _, req := range f.posts {
		out[req.DebitAccountID] += req.Amount
		out[req.CreditAccountID] -= req.Amount
	}
	return out
}

func newTestService() (*Service, *fakeRepo, *fakePoster) {
	repo := newFakeRepo()
	poster := newFakePoster()
	svc := NewService(repo,
		&fakeParties{kinds: map[int64]parties.PartyKind{10: parties.KindCustomer, 20: parties.KindVendor}},
		&fakeAccounts{byCode: map[string]int64{"1200": 1, "4000": 2, "2150": 3, "1010": 4}},
		poster, nil, DefaultConfig())
	svc.WithNow(func() time.Time { return time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC) })
	return svc, repo, poster
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	svc, _, _ := newTestService()

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SchoolID:    1,
		CustomerID:  10,
		InvoiceDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		Lines: []CreateInvoiceLineInput{
			{Description: "Tuition Term 1", Quantity: 1, UnitPrice: 1000, TaxRate: 10},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1000.0, inv.Subtotal)
	require.Equal(t, 100.0, inv.TaxTotal)
	require.Equal(t, 1100.0, inv.Total)
	require.Equal(t, StatusDraft, inv.Status)
	require.Equal(t, "INV-000001", inv.Number)
	require.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), inv.DueDate)
}

func TestCreateInvoiceRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService()
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{SchoolID: 1, CustomerID: 10, InvoiceDate: date})
	require.ErrorIs(t, err, ErrNoLines)

	_, err = svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SchoolID: 1, CustomerID: 10, InvoiceDate: date,
		Lines: []CreateInvoiceLineInput{{Quantity: 0, UnitPrice: 100}},
	})
	require.Error(t, err)

	_, err = svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SchoolID: 1, CustomerID: 10, InvoiceDate: date,
		Lines: []CreateInvoiceLineInput{{Quantity: 1, UnitPrice: 100, TaxRate: 150}},
	})
	require.Error(t, err)

	// vendors cannot be invoiced as customers
	_, err = svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SchoolID: 1, CustomerID: 20, InvoiceDate: date,
		Lines: []CreateInvoiceLineInput{{Quantity: 1, UnitPrice: 100}},
	})
	require.Error(t, err)
}

func TestPostInvoiceThreeLines(t *testing.T) {
	svc, _, poster := newTestService()
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SchoolID: 1, CustomerID: 10, InvoiceDate: date,
		Lines: []CreateInvoiceLineInput{{Description: "Tuition", Quantity: 1, UnitPrice: 1000, TaxRate: 10}},
	})
	require.NoError(t, err)

	posted, result, err := svc.PostInvoice(context.Background(), 1, 5, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.JournalEntryID)
	require.False(t, result.AlreadyPosted)
	require.NotEmpty(t, result.JournalNo)

	req := poster.lastLines
	require.Equal(t, "ARINV:1", req.IdempotencyKey)
	require.Len(t, req.Lines, 3)
	require.Equal(t, 1100.0, req.Lines[0].Debit)  // receivables
	require.Equal(t, 1000.0, req.Lines[1].Credit) // revenue
	require.Equal(t, 100.0, req.Lines[2].Credit)  // tax payable

	// reposting is idempotent
	_, _, err = svc.PostInvoice(context.Background(), 1, 5, inv.ID)
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestPostInvoiceWithoutTaxSkipsTaxLine(t *testing.T) {
	svc, _, poster := newTestService()
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SchoolID: 1, CustomerID: 10, InvoiceDate: date,
		Lines: []CreateInvoiceLineInput{{Description: "Books", Quantity: 2, UnitPrice: 50}},
	})
	require.NoError(t, err)

	_, _, err = svc.PostInvoice(context.Background(), 1, 5, inv.ID)
	require.NoError(t, err)
	require.Len(t, poster.lastLines.Lines, 2)
}

func TestReceiptLifecycle(t *testing.T) {
	svc, repo, _ := newTestService()
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SchoolID: 1, CustomerID: 10, InvoiceDate: date,
		Lines: []CreateInvoiceLineInput{{Description: "Tuition", Quantity: 1, UnitPrice: 1000, TaxRate: 10}},
	})
	require.NoError(t, err)
	_, _, err = svc.PostInvoice(context.Background(), 1, 5, inv.ID)
	require.NoError(t, err)

	rec, result, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		SchoolID: 1, ActorID: 5, CustomerID: 10, InvoiceID: &inv.ID,
		Amount: 600, ReceiptDate: date.AddDate(0, 0, 5), Method: "BANK",
	})
	require.NoError(t, err)
	require.NotNil(t, rec.JournalEntryID)
	require.False(t, result.AlreadyPosted)

	updated, err := repo.GetInvoice(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, updated.Status)
	require.Equal(t, 500.0, updated.Outstanding())

	// overpayment of the remainder is rejected
	_, _, err = svc.CreateReceipt(context.Background(), CreateReceiptInput{
		SchoolID: 1, ActorID: 5, CustomerID: 10, InvoiceID: &inv.ID,
		Amount: 800, ReceiptDate: date.AddDate(0, 0, 6),
	})
	require.ErrorIs(t, err, ErrOverpayment)

	_, _, err = svc.CreateReceipt(context.Background(), CreateReceiptInput{
		SchoolID: 1, ActorID: 5, CustomerID: 10, InvoiceID: &inv.ID,
		Amount: 500, ReceiptDate: date.AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	updated, err = repo.GetInvoice(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)
	require.Equal(t, 0.0, updated.Outstanding())
}

func TestReceiptAgainstDraftRejected(t *testing.T) {
	svc, _, _ := newTestService()
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SchoolID: 1, CustomerID: 10, InvoiceDate: date,
		Lines: []CreateInvoiceLineInput{{Description: "Tuition", Quantity: 1, UnitPrice: 500}},
	})
	require.NoError(t, err)

	_, _, err = svc.CreateReceipt(context.Background(), CreateReceiptInput{
		SchoolID: 1, ActorID: 5, CustomerID: 10, InvoiceID: &inv.ID,
		Amount: 100, ReceiptDate: date,
	})
	require.ErrorIs(t, err, ErrInvoiceNotOpen)
}

func TestAgingBuckets(t *testing.T) {
	svc, repo, _ := newTestService()
	asOf := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	mk := func(due time.Time, total float64) {
		repo.invoices[repo.nextID] = Invoice{
			ID: repo.nextID, SchoolID: 1, CustomerID: 10,
			DueDate: due, Total: total, Status: StatusPosted,
		}
		repo.nextID++
	}
	mk(asOf.AddDate(0, 0, -10), 100)  // current
	mk(asOf.AddDate(0, 0, -45), 200)  // 31-60
	mk(asOf.AddDate(0, 0, -70), 300)  // 61-90
	mk(asOf.AddDate(0, 0, -120), 400) // 90+

	b, err := svc.Aging(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 100.0, b.Current)
	require.Equal(t, 200.0, b.Bucket60)
	require.Equal(t, 300.0, b.Bucket90)
	require.Equal(t, 400.0, b.Bucket90P)
	require.Equal(t, 1000.0, b.Total)
}

func TestReceiptPostingFailureLeavesInvoiceOpen(t *testing.T) {
	svc, repo, poster := newTestService()
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SchoolID: 1, CustomerID: 10, InvoiceDate: date,
		Lines: []CreateInvoiceLineInput{{Description: "Tuition", Quantity: 1, UnitPrice: 1000, TaxRate: 10}},
	})
	require.NoError(t, err)
	_, _, err = svc.PostInvoice(context.Background(), 1, 5, inv.ID)
	require.NoError(t, err)

	poster.failWith = ledger.ErrPeriodClosed
	_, _, err = svc.CreateReceipt(context.Background(), CreateReceiptInput{
		SchoolID: 1, ActorID: 5, CustomerID: 10, InvoiceID: &inv.ID,
		Amount: 1100, ReceiptDate: date.AddDate(0, 0, 5), Method: "BANK",
	})
	require.ErrorIs(t, err, ledger.ErrPeriodClosed)

	// the invoice was not touched while the GL entry rolled back
	updated, err := repo.GetInvoice(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, updated.Status)
	require.Equal(t, 0.0, updated.PaidAmount)

	// the stored receipt stays unapplied and can be retried once the
	// period reopens
	receipts, err := repo.ListReceipts(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Nil(t, receipts[0].JournalEntryID)

	poster.failWith = nil
	rec, result, err := svc.PostReceipt(context.Background(), 1, 5, receipts[0].ID)
	require.NoError(t, err)
	require.NotNil(t, rec.JournalEntryID)
	require.False(t, result.AlreadyPosted)

	updated, err = repo.GetInvoice(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)
}

func TestPostReceiptReplayReportsAlreadyPosted(t *testing.T) {
	svc, repo, _ := newTestService()
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SchoolID: 1, CustomerID: 10, InvoiceDate: date,
		Lines: []CreateInvoiceLineInput{{Description: "Tuition", Quantity: 1, UnitPrice: 500}},
	})
	require.NoError(t, err)
	_, _, err = svc.PostInvoice(context.Background(), 1, 5, inv.ID)
	require.NoError(t, err)

	rec, first, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		SchoolID: 1, ActorID: 5, CustomerID: 10, InvoiceID: &inv.ID,
		Amount: 500, ReceiptDate: date, Method: "CASH",
	})
	require.NoError(t, err)
	require.False(t, first.AlreadyPosted)

	again, result, err := svc.PostReceipt(context.Background(), 1, 5, rec.ID)
	require.NoError(t, err)
	require.True(t, result.AlreadyPosted)
	require.Equal(t, first.JournalEntryID, result.JournalEntryID)
	require.Equal(t, first.JournalNo, result.JournalNo)
	require.Equal(t, rec.JournalEntryID, again.JournalEntryID)

	// the replay did not apply the payment a second time
	updated, err := repo.GetInvoice(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)
	require.Equal(t, 500.0, updated.PaidAmount)
}

// glFromPoster answers control balances from everything the fake poster saw,
// mapping account ids back to chart codes.
type glFromPoster struct {
	poster *fakePoster
	codes  map[string]int64
}

func (g glFromPoster) ControlBalance(_ context.Context, _ int64, code string) (float64, error) {
	id, ok := g.codes[code]
	if !ok {
		return 0, nil
	}
	return g.poster.balances()[id], nil
}

type zeroTotal struct{}

func (zeroTotal) OutstandingTotal(context.Context, int64) (float64, error) { return 0, nil }
func (zeroTotal) ValuationTotal(context.Context, int64) (float64, error)  { return 0, nil }

func TestTuitionFlowReconciles(t *testing.T) {
	svc, _, poster := newTestService()
	codes := map[string]int64{"1200": 1, "4000": 2, "2150": 3, "1010": 4}
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SchoolID: 1, CustomerID: 10, InvoiceDate: date,
		Lines: []CreateInvoiceLineInput{{Description: "Tuition Term 1", Quantity: 1, UnitPrice: 1000, TaxRate: 10}},
	})
	require.NoError(t, err)
	_, _, err = svc.PostInvoice(context.Background(), 1, 5, inv.ID)
	require.NoError(t, err)

	checker := recon.NewChecker(svc, zeroTotal{}, zeroTotal{}, glFromPoster{poster: poster, codes: codes}, recon.DefaultConfig())

	// posted but unpaid: sub-ledger and control both carry 1100
	result, err := checker.Check(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, result.Matched)
	require.Equal(t, 1100.0, result.Rows[0].SubledgerBalance)
	require.Equal(t, 1100.0, result.Rows[0].GLBalance)

	// full settlement drains both sides to zero
	_, _, err = svc.CreateReceipt(context.Background(), CreateReceiptInput{
		SchoolID: 1, ActorID: 5, CustomerID: 10, InvoiceID: &inv.ID,
		Amount: 1100, ReceiptDate: date.AddDate(0, 0, 3), Method: "BANK",
	})
	require.NoError(t, err)

	result, err = checker.Check(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, result.Matched)
	require.Equal(t, 0.0, result.Rows[0].Difference)
	require.Equal(t, 0.0, result.Rows[0].GLBalance)

	// cash holds what receivables released
	require.Equal(t, 1100.0, poster.balances()[codes["1010"]])
}
