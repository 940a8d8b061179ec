package payroll

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/classbridge-erp/classbridge-erp/internal/ledger"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/parties"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/posting"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// Config names the accounts payroll runs post against.
type Config struct {
	ExpenseAccount     string
	PayableAccount     string
	WithholdingAccount string
}

// DefaultConfig matches the seeded chart of accounts.
func DefaultConfig() Config {
	return Config{
		ExpenseAccount:     "5600",
		PayableAccount:     "2300",
		WithholdingAccount: "2150",
	}
}

// PartyPort resolves and validates parties.
type PartyPort interface {
	Require(ctx context.Context, schoolID, id int64, kind parties.PartyKind) (parties.Party, error)
}

// AccountPort resolves control accounts by code.
type AccountPort interface {
	GetByCode(ctx context.Context, schoolID int64, code string) (accounts.Account, error)
}

// PosterPort is the slice of the posting engine payroll uses.
type PosterPort interface {
	PostLines(ctx context.Context, req posting.PostLinesRequest) (posting.PostResult, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs payroll: salary structures, run generation, the lock approval
// gate and the final GL posting.
type Service struct {
	repo     Repository
	parties  PartyPort
	accounts AccountPort
	poster   PosterPort
	audit    AuditPort
	cfg      Config
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, parties PartyPort, accounts AccountPort, poster PosterPort, audit AuditPort, cfg Config) *Service {
	return &Service{repo: repo, parties: parties, accounts: accounts, poster: poster, audit: audit, cfg: cfg, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// UpsertStructure creates or replaces an employee's salary structure.
func (s *Service) UpsertStructure(ctx context.Context, in UpsertStructureInput) (SalaryStructure, error) {
	if in.Basic <= 0 {
		return SalaryStructure{}, fmt.Errorf("payroll: basic salary must be positive: %w", httpx.ErrValidation)
	}
	if in.Allowances < 0 || in.Deductions < 0 || in.Tax < 0 {
		return SalaryStructure{}, fmt.Errorf("payroll: allowances, deductions and tax cannot be negative: %w", httpx.ErrValidation)
	}
	st := SalaryStructure{
		SchoolID:      in.SchoolID,
		EmployeeID:    in.EmployeeID,
		Basic:         shared.Float2(shared.Money2(in.Basic)),
		Allowances:    shared.Float2(shared.Money2(in.Allowances)),
		Deductions:    shared.Float2(shared.Money2(in.Deductions)),
		Tax:           shared.Float2(shared.Money2(in.Tax)),
		EffectiveFrom: in.EffectiveFrom,
	}
	if st.Net() < 0 {
		return SalaryStructure{}, fmt.Errorf("payroll: deductions and tax exceed gross pay: %w", httpx.ErrValidation)
	}
	if _, err := s.parties.Require(ctx, in.SchoolID, in.EmployeeID, parties.KindEmployee); err != nil {
		return SalaryStructure{}, err
	}
	return s.repo.UpsertStructure(ctx, st)
}

// CreateRun opens an empty DRAFT run for a period label like "2025-09".
func (s *Service) CreateRun(ctx context.Context, schoolID, actorID int64, periodLabel string, runDate time.Time) (Run, error) {
	if strings.TrimSpace(periodLabel) == "" {
		return Run{}, fmt.Errorf("payroll: period label is required: %w", httpx.ErrValidation)
	}
	if runDate.IsZero() {
		return Run{}, fmt.Errorf("payroll: run date is required: %w", httpx.ErrValidation)
	}
	run, err := s.repo.CreateRun(ctx, Run{
		SchoolID:    schoolID,
		PeriodLabel: strings.TrimSpace(periodLabel),
		RunDate:     runDate,
		Status:      StatusDraft,
	})
	if err != nil {
		return Run{}, err
	}
	s.record(ctx, schoolID, actorID, "payroll.run.create", run.ID, map[string]any{"period": run.PeriodLabel})
	return run, nil
}

// GenerateRun snapshots every active salary structure into run lines and
// sums the totals. Regenerating a GENERATED run replaces the snapshot;
// locked and posted runs refuse.
func (s *Service) GenerateRun(ctx context.Context, schoolID, actorID, runID int64) (Run, error) {
	run, err := s.repo.GetRun(ctx, schoolID, runID)
	if err != nil {
		return Run{}, err
	}
	if run.Status != StatusDraft && run.Status != StatusGenerated {
		return Run{}, ErrBadTransition
	}
	structures, err := s.repo.ListActiveStructures(ctx, schoolID)
	if err != nil {
		return Run{}, err
	}
	if len(structures) == 0 {
		return Run{}, ErrNoStructures
	}

	gross, deductions, tax, net := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	run.Lines = run.Lines[:0]
	for _, st := range structures {
		lineGross := shared.Money2(st.Gross())
		lineNet := shared.Money2(st.Net())
		gross = gross.Add(lineGross)
		deductions = deductions.Add(shared.Money2(st.Deductions))
		tax = tax.Add(shared.Money2(st.Tax))
		net = net.Add(lineNet)
		run.Lines = append(run.Lines, RunLine{
			EmployeeID: st.EmployeeID,
			Basic:      st.Basic,
			Allowances: st.Allowances,
			Deductions: st.Deductions,
			Tax:        st.Tax,
			Gross:      shared.Float2(lineGross),
			Net:        shared.Float2(lineNet),
		})
	}
	run.TotalGross = shared.Float2(gross)
	run.TotalDeductions = shared.Float2(deductions)
	run.TotalTax = shared.Float2(tax)
	run.TotalNet = shared.Float2(net)

	run, err = s.repo.ReplaceLines(ctx, run)
	if err != nil {
		return Run{}, err
	}
	s.record(ctx, schoolID, actorID, "payroll.run.generate", run.ID, map[string]any{
		"period": run.PeriodLabel, "employees": len(run.Lines), "total_net": run.TotalNet,
	})
	return run, nil
}

// LockRun approves a generated run, freezing its snapshot.
func (s *Service) LockRun(ctx context.Context, schoolID, actorID, runID int64) (Run, error) {
	if err := s.repo.SetRunStatus(ctx, schoolID, runID, StatusGenerated, StatusLocked, &actorID); err != nil {
		return Run{}, err
	}
	s.record(ctx, schoolID, actorID, "payroll.run.lock", runID, nil)
	return s.repo.GetRun(ctx, schoolID, runID)
}

// PostRun posts a locked run as one journal: debit payroll expense for the
// gross, credit payroll payable for the net and the withholding account for
// deductions plus tax. Re-posting an already posted run returns the run
// unchanged with its original journal.
func (s *Service) PostRun(ctx context.Context, schoolID, actorID, runID int64) (Run, posting.PostResult, error) {
	run, err := s.repo.GetRun(ctx, schoolID, runID)
	if err != nil {
		return Run{}, posting.PostResult{}, err
	}
	// A POSTED run falls through to the engine, which replays the
	// idempotency key and reports the original journal.
	if run.Status != StatusLocked && run.Status != StatusPosted {
		return Run{}, posting.PostResult{}, ErrBadTransition
	}

	expAcc, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.ExpenseAccount)
	if err != nil {
		return Run{}, posting.PostResult{}, fmt.Errorf("payroll: expense account %s: %w", s.cfg.ExpenseAccount, err)
	}
	payAcc, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.PayableAccount)
	if err != nil {
		return Run{}, posting.PostResult{}, fmt.Errorf("payroll: payable account %s: %w", s.cfg.PayableAccount, err)
	}
	withheld := shared.Float2(shared.Money2(run.TotalDeductions + run.TotalTax))
	desc := fmt.Sprintf("Payroll %s", run.PeriodLabel)
	lines := []ledger.JournalLine{
		{LineNo: 1, AccountID: expAcc.ID, Description: desc, Debit: run.TotalGross},
		{LineNo: 2, AccountID: payAcc.ID, Description: desc, Credit: run.TotalNet},
	}
	if withheld > 0 {
		whAcc, err := s.accounts.GetByCode(ctx, schoolID, s.cfg.WithholdingAccount)
		if err != nil {
			return Run{}, posting.PostResult{}, fmt.Errorf("payroll: withholding account %s: %w", s.cfg.WithholdingAccount, err)
		}
		lines = append(lines, ledger.JournalLine{LineNo: 3, AccountID: whAcc.ID, Description: desc, Credit: withheld})
	}

	result, err := s.poster.PostLines(ctx, posting.PostLinesRequest{
		SchoolID:       schoolID,
		ActorID:        actorID,
		Module:         posting.ModulePayroll,
		TxnType:        posting.TxnPayrollRun,
		SourceRef:      run.PeriodLabel,
		IdempotencyKey: fmt.Sprintf("PAYROLL:%d", run.ID),
		Amount:         run.TotalGross,
		Description:    desc,
		EntryDate:      run.RunDate,
		Lines:          lines,
	})
	if err != nil {
		return Run{}, posting.PostResult{}, err
	}
	if err := s.repo.SetRunPosted(ctx, schoolID, run.ID, result.JournalEntryID); err != nil {
		// A replayed posting finds the run already flipped; that is the
		// desired end state, not a failure.
		if !result.AlreadyPosted {
			return Run{}, result, err
		}
	}
	if !result.AlreadyPosted {
		s.record(ctx, schoolID, actorID, "payroll.run.post", run.ID, map[string]any{
			"period": run.PeriodLabel, "journal_id": result.JournalEntryID,
		})
	}
	run, err = s.repo.GetRun(ctx, schoolID, runID)
	return run, result, err
}

// GetRun fetches one run with its lines.
func (s *Service) GetRun(ctx context.Context, schoolID, id int64) (Run, error) {
	return s.repo.GetRun(ctx, schoolID, id)
}

// ListRuns lists runs, newest first.
func (s *Service) ListRuns(ctx context.Context, schoolID int64) ([]Run, error) {
	return s.repo.ListRuns(ctx, schoolID)
}

// ListStructures lists the active salary structures.
func (s *Service) ListStructures(ctx context.Context, schoolID int64) ([]SalaryStructure, error) {
	return s.repo.ListActiveStructures(ctx, schoolID)
}

func (s *Service) record(ctx context.Context, schoolID, actorID int64, action string, runID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		SchoolID: schoolID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "payroll_run",
		EntityID: fmt.Sprintf("%d", runID),
		Meta:     meta,
		At:       s.now(),
	})
}
