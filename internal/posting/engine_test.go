package posting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classbridge-erp/classbridge-erp/internal/ledger"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/periods"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeRepo struct {
	rules    map[string]Rule
	events   map[string]Event
	entries  map[int64]ledger.JournalEntry
	lines    map[int64][]ledger.JournalLine
	nextID   int64
	closed   bool
	inTx     bool
	raceKeys map[string]bool // keys committed by a concurrent transaction, invisible in-tx
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		rules:    map[string]Rule{},
		events:   map[string]Event{},
		entries:  map[int64]ledger.JournalEntry{},
		lines:    map[int64][]ledger.JournalLine{},
		raceKeys: map[string]bool{},
	}
}

func ruleKey(module, txnType string) string { return module + "/" + txnType }

func (f *fakeRepo) GetEventByKey(ctx context.Context, schoolID int64, key string) (*Event, error) {
	if f.inTx && f.raceKeys[key] {
		return nil, nil
	}
	ev, ok := f.events[key]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (f *fakeRepo) GetRule(ctx context.Context, schoolID int64, module, txnType string) (Rule, error) {
	rule, ok := f.rules[ruleKey(module, txnType)]
	if !ok {
		return Rule{}, ErrRuleNotFound
	}
	return rule, nil
}

func (f *fakeRepo) UpsertRule(ctx context.Context, rule Rule) (Rule, error) {
	f.nextID++
	rule.ID = f.nextID
	rule.IsActive = true
	f.rules[ruleKey(rule.Module, rule.TxnType)] = rule
	return rule, nil
}

func (f *fakeRepo) ListRules(ctx context.Context, schoolID int64) ([]Rule, error) {
	var out []Rule
	for _, rule := range f.rules {
		out = append(out, rule)
	}
	return out, nil
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	f.inTx = true
	defer func() { f.inTx = false }()
	return fn(ctx, f)
}

func (f *fakeRepo) GetPeriodForPosting(ctx context.Context, schoolID, periodID int64) (periods.Period, error) {
	return f.period(), nil
}

func (f *fakeRepo) GetPeriodByDate(ctx context.Context, schoolID int64, date time.Time) (periods.Period, error) {
	return f.period(), nil
}

func (f *fakeRepo) period() periods.Period {
	status := periods.StatusOpen
	if f.closed {
		status = periods.StatusClosed
	}
	return periods.Period{ID: 1, SchoolID: 1, Code: "2026-03", Status: status}
}

func (f *fakeRepo) NextJournalNo(ctx context.Context, schoolID int64, prefix string) (string, error) {
	return ledger.FormatNumber(prefix, len(f.entries)+1), nil
}

func (f *fakeRepo) InsertEntry(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	f.nextID++
	entry.ID = f.nextID
	f.entries[entry.ID] = entry
	return entry, nil
}

func (f *fakeRepo) InsertLines(ctx context.Context, entryID int64, lines []ledger.JournalLine) error {
	f.lines[entryID] = lines
	return nil
}

func (f *fakeRepo) GetEntryForUpdate(ctx context.Context, schoolID, id int64) (ledger.JournalEntry, error) {
	return f.entries[id], nil
}

func (f *fakeRepo) GetLines(ctx context.Context, entryID int64) ([]ledger.JournalLine, error) {
	return f.lines[entryID], nil
}

func (f *fakeRepo) MarkPosted(ctx context.Context, id, postedBy int64, at time.Time) error {
	return nil
}

func (f *fakeRepo) MarkReversed(ctx context.Context, originalID, reversalID int64) error {
	return nil
}

func (f *fakeRepo) ResolveAccount(ctx context.Context, schoolID int64, code string) (int64, error) {
	return 0, ledger.ErrJournalNotFound
}

func (f *fakeRepo) EnsureAccountsActive(ctx context.Context, schoolID int64, ids []int64) error {
	return nil
}

func (f *fakeRepo) InsertEvent(ctx context.Context, event Event) (Event, error) {
	if f.raceKeys[event.IdempotencyKey] {
		return Event{}, ErrDuplicateKey
	}
	if _, exists := f.events[event.IdempotencyKey]; exists {
		return Event{}, ErrDuplicateKey
	}
	f.nextID++
	event.ID = f.nextID
	f.events[event.IdempotencyKey] = event
	return event, nil
}

func (f *fakeRepo) GetJournalNo(ctx context.Context, schoolID, entryID int64) (string, error) {
	return f.entries[entryID].JournalNo, nil
}

type fakeMetrics struct {
	posted   []string
	failures map[string]string
}

func (f *fakeMetrics) ObservePosting(module string) {
	f.posted = append(f.posted, module)
}

func (f *fakeMetrics) ObservePostingFailure(module, reason string) {
	if f.failures == nil {
		f.failures = map[string]string{}
	}
	f.failures[module] = reason
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (f *fakeAudit) Record(ctx context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func newTestEngine() (*Engine, *fakeRepo, *fakeMetrics, *fakeAudit) {
	repo := newFakeRepo()
	metrics := &fakeMetrics{}
	audit := &fakeAudit{}
	engine := NewEngine(repo, audit, metrics)
	engine.WithNow(func() time.Time { return testNow })
	return engine, repo, metrics, audit
}

func receiptRequest(key string) PostRequest {
	return PostRequest{
		SchoolID:       1,
		ActorID:        7,
		Module:         ModuleAR,
		TxnType:        TxnARReceipt,
		SourceRef:      "RCT-000001",
		IdempotencyKey: key,
		Amount:         600,
		Description:    "Receipt RCT-000001",
		EntryDate:      testNow,
	}
}

func TestPostResolvesRule(t *testing.T) {
	ctx := context.Background()
	engine, repo, metrics, audit := newTestEngine()
	_, err := engine.ConfigureRule(ctx, Rule{
		SchoolID: 1, Module: ModuleAR, TxnType: TxnARReceipt,
		DebitAccountID: 10, CreditAccountID: 20, IsActive: true,
	})
	require.NoError(t, err)

	result, err := engine.Post(ctx, receiptRequest("ARRCT:1"))
	require.NoError(t, err)
	require.False(t, result.AlreadyPosted)
	require.NotZero(t, result.JournalEntryID)

	lines := repo.lines[result.JournalEntryID]
	require.Len(t, lines, 2)
	require.Equal(t, int64(10), lines[0].AccountID)
	require.Equal(t, 600.0, lines[0].Debit)
	require.Equal(t, int64(20), lines[1].AccountID)
	require.Equal(t, 600.0, lines[1].Credit)

	entry := repo.entries[result.JournalEntryID]
	require.Equal(t, ledger.StatusPosted, entry.Status)

	require.Equal(t, []string{ModuleAR}, metrics.posted)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "posting.AR", audit.logs[0].Action)
}

func TestPostReplaySameKey(t *testing.T) {
	ctx := context.Background()
	engine, repo, metrics, _ := newTestEngine()
	_, _ = engine.ConfigureRule(ctx, Rule{
		SchoolID: 1, Module: ModuleAR, TxnType: TxnARReceipt,
		DebitAccountID: 10, CreditAccountID: 20, IsActive: true,
	})

	first, err := engine.Post(ctx, receiptRequest("ARRCT:1"))
	require.NoError(t, err)

	replay, err := engine.Post(ctx, receiptRequest("ARRCT:1"))
	require.NoError(t, err)
	require.True(t, replay.AlreadyPosted)
	require.Equal(t, first.JournalEntryID, replay.JournalEntryID)
	require.Equal(t, first.JournalNo, replay.JournalNo)

	require.Len(t, repo.entries, 1, "replay must not create a second journal")
	require.Len(t, metrics.posted, 1, "replay is not a new posting")
}

func TestPostWithoutRuleFails(t *testing.T) {
	ctx := context.Background()
	engine, _, metrics, _ := newTestEngine()

	_, err := engine.Post(ctx, receiptRequest("ARRCT:1"))
	require.ErrorIs(t, err, ErrRuleNotFound)
	require.Equal(t, "configuration", metrics.failures[ModuleAR])
}

func TestPostExplicitAccountsSkipRule(t *testing.T) {
	ctx := context.Background()
	engine, repo, _, _ := newTestEngine()

	req := receiptRequest("ARRCT:1")
	req.DebitAccountID = 30
	req.CreditAccountID = 40
	result, err := engine.Post(ctx, req)
	require.NoError(t, err)

	lines := repo.lines[result.JournalEntryID]
	require.Equal(t, int64(30), lines[0].AccountID)
	require.Equal(t, int64(40), lines[1].AccountID)
}

func TestPostValidation(t *testing.T) {
	ctx := context.Background()
	engine, _, _, _ := newTestEngine()

	req := receiptRequest("ARRCT:1")
	req.Amount = 0
	_, err := engine.Post(ctx, req)
	require.Error(t, err)

	req = receiptRequest("")
	_, err = engine.Post(ctx, req)
	require.Error(t, err)

	req = receiptRequest("ARRCT:1")
	req.TxnType = "UNKNOWN"
	_, err = engine.Post(ctx, req)
	require.Error(t, err)

	req = receiptRequest("ARRCT:1")
	req.DebitAccountID = 30 // credit side missing
	_, err = engine.Post(ctx, req)
	require.Error(t, err)
}

func TestPostClosedPeriod(t *testing.T) {
	ctx := context.Background()
	engine, repo, metrics, _ := newTestEngine()
	repo.closed = true

	req := receiptRequest("ARRCT:1")
	req.DebitAccountID = 30
	req.CreditAccountID = 40
	_, err := engine.Post(ctx, req)
	require.ErrorIs(t, err, ledger.ErrPeriodClosed)
	require.Equal(t, "period_closed", metrics.failures[ModuleAR])
}

func TestPostLinesBalancedSet(t *testing.T) {
	ctx := context.Background()
	engine, repo, _, _ := newTestEngine()

	result, err := engine.PostLines(ctx, PostLinesRequest{
		SchoolID:       1,
		ActorID:        7,
		Module:         ModuleAR,
		TxnType:        TxnARInvoice,
		SourceRef:      "INV-000001",
		IdempotencyKey: "ARINV:1",
		Amount:         1100,
		EntryDate:      testNow,
		Lines: []ledger.JournalLine{
			{LineNo: 1, AccountID: 10, Debit: 1100},
			{LineNo: 2, AccountID: 20, Credit: 1000},
			{LineNo: 3, AccountID: 21, Credit: 100},
		},
	})
	require.NoError(t, err)
	require.Len(t, repo.lines[result.JournalEntryID], 3)
}

func TestPostLinesRejectsUnbalanced(t *testing.T) {
	ctx := context.Background()
	engine, _, _, _ := newTestEngine()

	_, err := engine.PostLines(ctx, PostLinesRequest{
		SchoolID:       1,
		Module:         ModuleAR,
		TxnType:        TxnARInvoice,
		IdempotencyKey: "ARINV:1",
		EntryDate:      testNow,
		Lines: []ledger.JournalLine{
			{AccountID: 10, Debit: 1100},
			{AccountID: 20, Credit: 1000},
		},
	})
	require.ErrorIs(t, err, ledger.ErrUnbalanced)
}

func TestDuplicateRaceIsSuccess(t *testing.T) {
	ctx := context.Background()
	engine, repo, _, _ := newTestEngine()

	// another transaction committed the same key first
	repo.raceKeys["ARRCT:1"] = true
	repo.events["ARRCT:1"] = Event{ID: 99, SchoolID: 1, IdempotencyKey: "ARRCT:1", JournalEntryID: 42}
	repo.entries[42] = ledger.JournalEntry{ID: 42, SchoolID: 1, JournalNo: "GL-20250901-0042"}

	req := receiptRequest("ARRCT:1")
	req.DebitAccountID = 30
	req.CreditAccountID = 40
	result, err := engine.Post(ctx, req)
	require.NoError(t, err)
	require.True(t, result.AlreadyPosted)
	require.Equal(t, int64(42), result.JournalEntryID)
	// the recovered result carries the winner's journal number, same as a
	// plain replay
	require.Equal(t, "GL-20250901-0042", result.JournalNo)
}

func TestConfigureRuleValidation(t *testing.T) {
	ctx := context.Background()
	engine, _, _, _ := newTestEngine()

	_, err := engine.ConfigureRule(ctx, Rule{SchoolID: 1, Module: "FOO", TxnType: "BAR",
		DebitAccountID: 1, CreditAccountID: 2})
	require.Error(t, err)

	_, err = engine.ConfigureRule(ctx, Rule{SchoolID: 1, Module: ModuleAP, TxnType: TxnAPPayment,
		DebitAccountID: 0, CreditAccountID: 2})
	require.Error(t, err)
}
