package assets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/posting"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// Config names the accounts asset events post against.
type Config struct {
	AssetAccount      string
	AccumDepAccount   string
	DepExpenseAccount string
	CashAccount       string
}

// DefaultConfig matches the seeded chart of accounts.
func DefaultConfig() Config {
	return Config{
		AssetAccount:      "1500",
		AccumDepAccount:   "1590",
		DepExpenseAccount: "5700",
		CashAccount:       "1010",
	}
}

// AccountPort resolves control accounts by code.
type AccountPort interface {
	GetByCode(ctx context.Context, schoolID int64, code string) (accounts.Account, error)
}

// PosterPort is the slice of the posting engine assets uses.
type PosterPort interface {
	Post(ctx context.Context, req posting.PostRequest) (posting.PostResult, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the fixed-asset lifecycle: capitalize, depreciate, dispose.
type Service struct {
	repo     Repository
	accounts AccountPort
	poster   PosterPort
	audit    AuditPort
	cfg      Config
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, accounts AccountPort, poster PosterPort, audit AuditPort, cfg Config) *Service {
	return &Service{repo: repo, accounts: accounts, poster: poster, audit: audit, cfg: cfg, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Capitalize creates an asset and posts its acquisition: debit the asset
// account, credit cash. The returned PostResult carries the journal
// reference and whether it was a replay.
func (s *Service) Capitalize(ctx context.Context, in CapitalizeInput) (Asset, posting.PostResult, error) {
	if strings.TrimSpace(in.Code) == "" {
		return Asset{}, posting.PostResult{}, fmt.Errorf("assets: code is required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return Asset{}, posting.PostResult{}, fmt.Errorf("assets: name is required: %w", httpx.ErrValidation)
	}
	if in.Cost <= 0 {
		return Asset{}, posting.PostResult{}, fmt.Errorf("assets: cost must be positive: %w", httpx.ErrValidation)
	}
	if in.ResidualValue < 0 || in.ResidualValue > in.Cost {
		return Asset{}, posting.PostResult{}, fmt.Errorf("assets: residual value must be between 0 and cost: %w", httpx.ErrValidation)
	}
	if in.UsefulLifeMonths <= 0 {
		return Asset{}, posting.PostResult{}, fmt.Errorf("assets: useful life must be positive: %w", httpx.ErrValidation)
	}
	if in.AcquiredAt.IsZero() {
		return Asset{}, posting.PostResult{}, fmt.Errorf("assets: acquisition date is required: %w", httpx.ErrValidation)
	}

	cost := shared.Float2(shared.Money2(in.Cost))
	asset, err := s.repo.Create(ctx, Asset{
		SchoolID:         in.SchoolID,
		Code:             strings.TrimSpace(in.Code),
		Name:             strings.TrimSpace(in.Name),
		Category:         in.Category,
		Cost:             cost,
		ResidualValue:    shared.Float2(shared.Money2(in.ResidualValue)),
		UsefulLifeMonths: in.UsefulLifeMonths,
		CarryingAmount:   cost,
		AcquiredAt:       in.AcquiredAt,
		Status:           StatusActive,
	})
	if err != nil {
		return Asset{}, posting.PostResult{}, err
	}

	assetAcc, err := s.accounts.GetByCode(ctx, in.SchoolID, s.cfg.AssetAccount)
	if err != nil {
		return Asset{}, posting.PostResult{}, fmt.Errorf("assets: asset account %s: %w", s.cfg.AssetAccount, err)
	}
	cashAcc, err := s.accounts.GetByCode(ctx, in.SchoolID, s.cfg.CashAccount)
	if err != nil {
		return Asset{}, posting.PostResult{}, fmt.Errorf("assets: cash account %s: %w", s.cfg.CashAccount, err)
	}
	result, err := s.poster.Post(ctx, posting.PostRequest{
		SchoolID:        in.SchoolID,
		ActorID:         in.ActorID,
		Module:          posting.ModuleAssets,
		TxnType:         posting.TxnAssetCapitalize,
		SourceRef:       asset.Code,
		IdempotencyKey:  fmt.Sprintf("ASSETCAP:%d", asset.ID),
		Amount:          asset.Cost,
		Description:     fmt.Sprintf("Capitalize %s", asset.Name),
		EntryDate:       asset.AcquiredAt,
		DebitAccountID:  assetAcc.ID,
		CreditAccountID: cashAcc.ID,
	})
	if err != nil {
		return Asset{}, posting.PostResult{}, err
	}
	if err := s.repo.SetCapitalized(ctx, in.SchoolID, asset.ID, result.JournalEntryID); err != nil {
		return Asset{}, result, err
	}
	s.record(ctx, in.SchoolID, in.ActorID, "assets.capitalize", asset.ID, map[string]any{
		"code": asset.Code, "cost": asset.Cost,
	})
	asset, err = s.repo.Get(ctx, in.SchoolID, asset.ID)
	return asset, result, err
}

// Depreciate runs one period. Amount zero takes the straight-line monthly
// default; overrides cover other methods. The run never takes accumulated
// depreciation past cost minus residual; an overshooting amount is clamped
// to the remaining depreciable base.
func (s *Service) Depreciate(ctx context.Context, in DepreciateInput) (ScheduleRow, posting.PostResult, error) {
	if in.Amount < 0 {
		return ScheduleRow{}, posting.PostResult{}, fmt.Errorf("assets: depreciation amount cannot be negative: %w", httpx.ErrValidation)
	}
	if in.RunDate.IsZero() {
		return ScheduleRow{}, posting.PostResult{}, fmt.Errorf("assets: run date is required: %w", httpx.ErrValidation)
	}
	asset, err := s.repo.Get(ctx, in.SchoolID, in.AssetID)
	if err != nil {
		return ScheduleRow{}, posting.PostResult{}, err
	}
	if asset.Status != StatusActive {
		return ScheduleRow{}, posting.PostResult{}, ErrDisposed
	}
	remaining := shared.Float2(shared.Money2(asset.Cost - asset.ResidualValue - asset.AccumulatedDep))
	if remaining <= 0 {
		return ScheduleRow{}, posting.PostResult{}, ErrFullyDepreciated
	}
	amount := in.Amount
	if amount == 0 {
		amount = asset.MonthlyDepreciation()
	}
	amount = shared.Float2(shared.Money2(amount))
	if amount > remaining {
		amount = remaining
	}
	if amount <= 0 {
		return ScheduleRow{}, posting.PostResult{}, ErrFullyDepreciated
	}

	accumulated := shared.Float2(shared.Money2(asset.AccumulatedDep + amount))
	row, err := s.repo.ApplyDepreciation(ctx, ScheduleRow{
		SchoolID:       in.SchoolID,
		AssetID:        asset.ID,
		RunDate:        in.RunDate,
		Amount:         amount,
		AccumulatedDep: accumulated,
		CarryingAmount: shared.Float2(shared.Money2(asset.Cost - accumulated)),
	})
	if err != nil {
		return ScheduleRow{}, posting.PostResult{}, err
	}

	expAcc, err := s.accounts.GetByCode(ctx, in.SchoolID, s.cfg.DepExpenseAccount)
	if err != nil {
		return ScheduleRow{}, posting.PostResult{}, fmt.Errorf("assets: depreciation expense account %s: %w", s.cfg.DepExpenseAccount, err)
	}
	accumAcc, err := s.accounts.GetByCode(ctx, in.SchoolID, s.cfg.AccumDepAccount)
	if err != nil {
		return ScheduleRow{}, posting.PostResult{}, fmt.Errorf("assets: accumulated depreciation account %s: %w", s.cfg.AccumDepAccount, err)
	}
	result, err := s.poster.Post(ctx, posting.PostRequest{
		SchoolID:        in.SchoolID,
		ActorID:         in.ActorID,
		Module:          posting.ModuleAssets,
		TxnType:         posting.TxnAssetDepreciate,
		SourceRef:       asset.Code,
		IdempotencyKey:  fmt.Sprintf("ASSETDEP:%d", row.ID),
		Amount:          amount,
		Description:     fmt.Sprintf("Depreciation %s", asset.Name),
		EntryDate:       in.RunDate,
		DebitAccountID:  expAcc.ID,
		CreditAccountID: accumAcc.ID,
	})
	if err != nil {
		return ScheduleRow{}, posting.PostResult{}, err
	}
	if err := s.repo.SetScheduleRowPosted(ctx, in.SchoolID, row.ID, result.JournalEntryID); err != nil {
		return ScheduleRow{}, result, err
	}
	row.JournalEntryID = &result.JournalEntryID
	s.record(ctx, in.SchoolID, in.ActorID, "assets.depreciate", asset.ID, map[string]any{
		"code": asset.Code, "amount": amount, "carrying": row.CarryingAmount,
	})
	return row, result, nil
}

// Dispose retires an asset, posting cash in for the sale proceeds or, absent
// proceeds, for the carrying amount. Disposal is terminal.
func (s *Service) Dispose(ctx context.Context, in DisposeInput) (Asset, posting.PostResult, error) {
	if in.DisposedAt.IsZero() {
		return Asset{}, posting.PostResult{}, fmt.Errorf("assets: disposal date is required: %w", httpx.ErrValidation)
	}
	asset, err := s.repo.Get(ctx, in.SchoolID, in.AssetID)
	if err != nil {
		return Asset{}, posting.PostResult{}, err
	}
	if asset.Status != StatusActive {
		return Asset{}, posting.PostResult{}, ErrDisposed
	}
	amount := asset.CarryingAmount
	if in.Proceeds != nil {
		if *in.Proceeds < 0 {
			return Asset{}, posting.PostResult{}, fmt.Errorf("assets: proceeds cannot be negative: %w", httpx.ErrValidation)
		}
		amount = shared.Float2(shared.Money2(*in.Proceeds))
	}

	disposedAt := in.DisposedAt
	asset.DisposedAt = &disposedAt
	asset.DisposalAmount = &amount
	if err := s.repo.MarkDisposed(ctx, asset); err != nil {
		return Asset{}, posting.PostResult{}, err
	}
	var result posting.PostResult
	if amount > 0 {
		cashAcc, err := s.accounts.GetByCode(ctx, in.SchoolID, s.cfg.CashAccount)
		if err != nil {
			return Asset{}, posting.PostResult{}, fmt.Errorf("assets: cash account %s: %w", s.cfg.CashAccount, err)
		}
		assetAcc, err := s.accounts.GetByCode(ctx, in.SchoolID, s.cfg.AssetAccount)
		if err != nil {
			return Asset{}, posting.PostResult{}, fmt.Errorf("assets: asset account %s: %w", s.cfg.AssetAccount, err)
		}
		result, err = s.poster.Post(ctx, posting.PostRequest{
			SchoolID:        in.SchoolID,
			ActorID:         in.ActorID,
			Module:          posting.ModuleAssets,
			TxnType:         posting.TxnAssetDispose,
			SourceRef:       asset.Code,
			IdempotencyKey:  fmt.Sprintf("ASSETDISP:%d", asset.ID),
			Amount:          amount,
			Description:     fmt.Sprintf("Dispose %s", asset.Name),
			EntryDate:       in.DisposedAt,
			DebitAccountID:  cashAcc.ID,
			CreditAccountID: assetAcc.ID,
		})
		if err != nil {
			return Asset{}, posting.PostResult{}, err
		}
	}
	s.record(ctx, in.SchoolID, in.ActorID, "assets.dispose", asset.ID, map[string]any{
		"code": asset.Code, "amount": amount,
	})
	asset, err = s.repo.Get(ctx, in.SchoolID, asset.ID)
	return asset, result, err
}

// Get fetches one asset.
func (s *Service) Get(ctx context.Context, schoolID, id int64) (Asset, error) {
	return s.repo.Get(ctx, schoolID, id)
}

// Schedule lists the depreciation history of one asset.
func (s *Service) Schedule(ctx context.Context, schoolID, assetID int64) ([]ScheduleRow, error) {
	if _, err := s.repo.Get(ctx, schoolID, assetID); err != nil {
		return nil, err
	}
	return s.repo.Schedule(ctx, schoolID, assetID)
}

// Register reports every asset with cost, accumulated depreciation, carrying
// amount and the current monthly charge.
func (s *Service) Register(ctx context.Context, schoolID int64) ([]RegisterRow, error) {
	list, err := s.repo.List(ctx, schoolID, "")
	if err != nil {
		return nil, err
	}
	out := make([]RegisterRow, 0, len(list))
	for _, a := range list {
		monthly := 0.0
		if a.Status == StatusActive {
			monthly = shared.Float2(shared.Money2(a.MonthlyDepreciation()))
		}
		out = append(out, RegisterRow{Asset: a, MonthlyAmount: monthly})
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, schoolID, actorID int64, action string, assetID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		SchoolID: schoolID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "fixed_asset",
		EntityID: fmt.Sprintf("%d", assetID),
		Meta:     meta,
		At:       s.now(),
	})
}
