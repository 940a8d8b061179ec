package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/classbridge-erp/classbridge-erp/internal/ledger"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort abstracts posting counters.
type MetricsPort interface {
	ObservePosting(module string)
	ObservePostingFailure(module, reason string)
}

// Engine converts sub-ledger business events into posted journal entries,
// exactly once per idempotency key. All sub-ledgers share this path so
// idempotency and transaction handling live in one place.
type Engine struct {
	repo    Repository
	audit   AuditPort
	metrics MetricsPort
	now     func() time.Time
}

// NewEngine builds Engine instance.
func NewEngine(repo Repository, audit AuditPort, metrics MetricsPort) *Engine {
	return &Engine{repo: repo, audit: audit, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Post records a two-line posting for the event. When accounts are omitted
// the active rule for (module, txn type) resolves them. Safe to retry: a
// replayed idempotency key returns the original result unchanged.
func (e *Engine) Post(ctx context.Context, req PostRequest) (PostResult, error) {
	if err := req.Validate(); err != nil {
		e.observeFailure(req.Module, "validation")
		return PostResult{}, err
	}
	if req.SourceRef == "" {
		req.SourceRef = uuid.NewString()
	}
	amount := shared.Float2(shared.Money2(req.Amount))
	var result PostResult
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		prior, err := e.replay(ctx, tx, req.SchoolID, req.IdempotencyKey)
		if err != nil || prior != nil {
			result = fromPrior(prior)
			return err
		}
		debitAccount, creditAccount := req.DebitAccountID, req.CreditAccountID
		if debitAccount == 0 {
			rule, err := tx.GetRule(ctx, req.SchoolID, req.Module, req.TxnType)
			if err != nil {
				return err
			}
			debitAccount, creditAccount = rule.DebitAccountID, rule.CreditAccountID
		}
		lines := []ledger.JournalLine{
			{LineNo: 1, AccountID: debitAccount, Description: req.Description, Debit: amount, PartyID: req.PartyID},
			{LineNo: 2, AccountID: creditAccount, Description: req.Description, Credit: amount, PartyID: req.PartyID},
		}
		entry, err := e.insert(ctx, tx, eventInsert{
			SchoolID:       req.SchoolID,
			ActorID:        req.ActorID,
			Module:         req.Module,
			TxnType:        req.TxnType,
			SourceRef:      req.SourceRef,
			IdempotencyKey: req.IdempotencyKey,
			Amount:         amount,
			Description:    req.Description,
			EntryDate:      req.EntryDate,
			Lines:          lines,
		})
		if err != nil {
			return err
		}
		result = PostResult{JournalEntryID: entry.ID, JournalNo: entry.JournalNo}
		return nil
	})
	return e.finish(ctx, req.SchoolID, req.ActorID, req.Module, req.TxnType, req.IdempotencyKey, result, err)
}

// PostLines records a posting with an explicit balanced line set, for events
// whose GL effect needs more than one debit/credit pair.
func (e *Engine) PostLines(ctx context.Context, req PostLinesRequest) (PostResult, error) {
	if err := req.Validate(); err != nil {
		e.observeFailure(req.Module, "validation")
		return PostResult{}, err
	}
	if req.SourceRef == "" {
		req.SourceRef = uuid.NewString()
	}
	var result PostResult
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		prior, err := e.replay(ctx, tx, req.SchoolID, req.IdempotencyKey)
		if err != nil || prior != nil {
			result = fromPrior(prior)
			return err
		}
		entry, err := e.insert(ctx, tx, eventInsert{
			SchoolID:       req.SchoolID,
			ActorID:        req.ActorID,
			Module:         req.Module,
			TxnType:        req.TxnType,
			SourceRef:      req.SourceRef,
			IdempotencyKey: req.IdempotencyKey,
			Amount:         req.Amount,
			Description:    req.Description,
			EntryDate:      req.EntryDate,
			Lines:          req.Lines,
		})
		if err != nil {
			return err
		}
		result = PostResult{JournalEntryID: entry.ID, JournalNo: entry.JournalNo}
		return nil
	})
	return e.finish(ctx, req.SchoolID, req.ActorID, req.Module, req.TxnType, req.IdempotencyKey, result, err)
}

type eventInsert struct {
	SchoolID       int64
	ActorID        int64
	Module         string
	TxnType        string
	SourceRef      string
	IdempotencyKey string
	Amount         float64
	Description    string
	EntryDate      time.Time
	Lines          []ledger.JournalLine
}

type replayResult struct {
	JournalEntryID int64
	JournalNo      string
}

// replay returns the prior result when the idempotency key was already
// processed, nil when the event is new.
func (e *Engine) replay(ctx context.Context, tx TxRepository, schoolID int64, key string) (*replayResult, error) {
	event, err := tx.GetEventByKey(ctx, schoolID, key)
	if err != nil || event == nil {
		return nil, err
	}
	no, err := tx.GetJournalNo(ctx, schoolID, event.JournalEntryID)
	if err != nil {
		return nil, err
	}
	return &replayResult{JournalEntryID: event.JournalEntryID, JournalNo: no}, nil
}

func (e *Engine) insert(ctx context.Context, tx TxRepository, in eventInsert) (ledger.JournalEntry, error) {
	entry, err := ledger.InsertPosted(ctx, tx, ledger.EntryInput{
		SchoolID:    in.SchoolID,
		EntryDate:   in.EntryDate,
		Description: in.Description,
		Reference:   in.SourceRef,
		NumberKind:  ledger.PrefixGeneral,
		PostedBy:    in.ActorID,
		Lines:       in.Lines,
	}, e.now())
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if _, err := tx.InsertEvent(ctx, Event{
		SchoolID:       in.SchoolID,
		Module:         in.Module,
		TxnType:        in.TxnType,
		SourceRef:      in.SourceRef,
		IdempotencyKey: in.IdempotencyKey,
		Amount:         in.Amount,
		JournalEntryID: entry.ID,
	}); err != nil {
		return ledger.JournalEntry{}, err
	}
	return entry, nil
}

func fromPrior(prior *replayResult) PostResult {
	if prior == nil {
		return PostResult{}
	}
	return PostResult{JournalEntryID: prior.JournalEntryID, JournalNo: prior.JournalNo, AlreadyPosted: true}
}

// finish translates the transaction outcome: a duplicate-key loss in a race
// means another transaction posted the same event first, which is a success.
func (e *Engine) finish(ctx context.Context, schoolID, actorID int64, module, txnType, key string, result PostResult, err error) (PostResult, error) {
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			event, readErr := e.repo.GetEventByKey(ctx, schoolID, key)
			if readErr == nil && event != nil {
				no, noErr := e.repo.GetJournalNo(ctx, schoolID, event.JournalEntryID)
				if noErr == nil {
					return PostResult{JournalEntryID: event.JournalEntryID, JournalNo: no, AlreadyPosted: true}, nil
				}
			}
		}
		e.observeFailure(module, failureReason(err))
		return PostResult{}, err
	}
	if !result.AlreadyPosted {
		if e.metrics != nil {
			e.metrics.ObservePosting(module)
		}
		if e.audit != nil {
			_ = e.audit.Record(ctx, shared.AuditLog{
				SchoolID: schoolID,
				ActorID:  actorID,
				Action:   fmt.Sprintf("posting.%s", module),
				Entity:   "posting_event",
				EntityID: key,
				Meta: map[string]any{
					"txn_type":   txnType,
					"journal_id": result.JournalEntryID,
					"journal_no": result.JournalNo,
				},
				At: e.now(),
			})
		}
	}
	return result, nil
}

func (e *Engine) observeFailure(module, reason string) {
	if e.metrics != nil {
		e.metrics.ObservePostingFailure(module, reason)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrRuleNotFound):
		return "configuration"
	case errors.Is(err, ledger.ErrPeriodClosed):
		return "period_closed"
	case errors.Is(err, ledger.ErrUnbalanced), errors.Is(err, ledger.ErrTooFewLines):
		return "validation"
	default:
		return "error"
	}
}

// Rules exposes rule configuration for handlers.
func (e *Engine) Rules(ctx context.Context, schoolID int64) ([]Rule, error) {
	return e.repo.ListRules(ctx, schoolID)
}

// ConfigureRule validates and stores a posting rule.
func (e *Engine) ConfigureRule(ctx context.Context, rule Rule) (Rule, error) {
	if !KnownEvent(rule.Module, rule.TxnType) {
		return Rule{}, fmt.Errorf("posting: unknown event %s/%s: %w", rule.Module, rule.TxnType, httpx.ErrValidation)
	}
	if rule.DebitAccountID == 0 || rule.CreditAccountID == 0 {
		return Rule{}, fmt.Errorf("posting: rule requires debit and credit accounts: %w", httpx.ErrValidation)
	}
	return e.repo.UpsertRule(ctx, rule)
}
