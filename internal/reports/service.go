package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Service builds financial reports with a short-lived cache and in-flight
// deduplication: concurrent requests for the same report share one build.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
}

// NewService builds Service instance. A nil cache disables caching.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

func filterKey(kind string, schoolID int64, filter Filter) string {
	from, to := "", ""
	if !filter.DateFrom.IsZero() {
		from = filter.DateFrom.Format("20060102")
	}
	if !filter.DateTo.IsZero() {
		to = filter.DateTo.Format("20060102")
	}
	return fmt.Sprintf("reports:%s:%d:%d:%s:%s", kind, schoolID, filter.PeriodID, from, to)
}

func (s *Service) build(ctx context.Context, kind string, schoolID int64, filter Filter, dest interface{}, builder func([]AccountBalance) interface{}) error {
	key, err := s.cache.BuildKey(ctx, filterKey(kind, schoolID, filter))
	if err != nil {
		return err
	}
	return s.cache.FetchJSON(ctx, key, dest, func(ctx context.Context) (interface{}, error) {
		result, err, _ := s.group.Do(key, func() (interface{}, error) {
			balances, err := s.repo.Balances(ctx, schoolID, filter)
			if err != nil {
				return nil, err
			}
			return builder(balances), nil
		})
		return result, err
	})
}

// TrialBalance builds the trial balance for the filter.
func (s *Service) TrialBalance(ctx context.Context, schoolID int64, filter Filter) (TrialBalance, error) {
	var report TrialBalance
	err := s.build(ctx, "tb", schoolID, filter, &report, func(balances []AccountBalance) interface{} {
		return BuildTrialBalance(balances)
	})
	return report, err
}

// ProfitAndLoss builds the P&L for the filter.
func (s *Service) ProfitAndLoss(ctx context.Context, schoolID int64, filter Filter) (ProfitAndLoss, error) {
	var report ProfitAndLoss
	err := s.build(ctx, "pl", schoolID, filter, &report, func(balances []AccountBalance) interface{} {
		return BuildProfitAndLoss(balances)
	})
	return report, err
}

// BalanceSheet builds the balance sheet for the filter.
func (s *Service) BalanceSheet(ctx context.Context, schoolID int64, filter Filter) (BalanceSheet, error) {
	var report BalanceSheet
	err := s.build(ctx, "bs", schoolID, filter, &report, func(balances []AccountBalance) interface{} {
		return BuildBalanceSheet(balances)
	})
	return report, err
}

// TrialBalanceCSV renders the trial balance as CSV for export.
func (s *Service) TrialBalanceCSV(ctx context.Context, schoolID int64, filter Filter) ([]byte, error) {
	report, err := s.TrialBalance(ctx, schoolID, filter)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"account_code", "account_name", "type", "debit", "credit"})
	for _, row := range report.Rows {
		_ = w.Write([]string{
			row.Code,
			row.Name,
			string(row.Type),
			strconv.FormatFloat(row.Debit, 'f', 2, 64),
			strconv.FormatFloat(row.Credit, 'f', 2, 64),
		})
	}
	_ = w.Write([]string{"TOTAL", "", "",
		strconv.FormatFloat(report.TotalDebit, 'f', 2, 64),
		strconv.FormatFloat(report.TotalCredit, 'f', 2, 64),
	})
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Invalidate drops cached reports after a posting changes the ledger.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
