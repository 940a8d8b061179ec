package reports

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
)

type fakeReportRepo struct {
	balances []AccountBalance
	calls    int
}

func (f *fakeReportRepo) Balances(ctx context.Context, schoolID int64, filter Filter) ([]AccountBalance, error) {
	f.calls++
	return f.balances, nil
}

func (f *fakeReportRepo) ControlBalance(ctx context.Context, schoolID int64, accountCode string) (float64, error) {
	for _, b := range f.balances {
		if b.Code == accountCode {
			return b.Debit - b.Credit, nil
		}
	}
	return 0, nil
}

func newCachedService(t *testing.T) (*Service, *fakeReportRepo) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &fakeReportRepo{balances: sampleBalances()}
	return NewService(repo, NewCache(client, time.Minute)), repo
}

func TestTrialBalanceCached(t *testing.T) {
	ctx := context.Background()
	svc, repo := newCachedService(t)

	first, err := svc.TrialBalance(ctx, 1, Filter{PeriodID: 3})
	require.NoError(t, err)
	require.True(t, first.Balanced)
	require.Equal(t, 1, repo.calls)

	second, err := svc.TrialBalance(ctx, 1, Filter{PeriodID: 3})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.calls, "second read should hit the cache")

	// a different filter is a different key
	_, err = svc.TrialBalance(ctx, 1, Filter{PeriodID: 4})
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestInvalidateForcesRebuild(t *testing.T) {
	ctx := context.Background()
	svc, repo := newCachedService(t)

	_, err := svc.ProfitAndLoss(ctx, 1, Filter{PeriodID: 3})
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	require.NoError(t, svc.Invalidate(ctx))

	repo.balances = append(repo.balances, AccountBalance{
		AccountID: 7, Code: "5900", Name: "Stock Adjustments",
		Type: accounts.TypeExpense, Debit: 50,
	})
	pl, err := svc.ProfitAndLoss(ctx, 1, Filter{PeriodID: 3})
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
	require.Equal(t, 750.0, pl.TotalExpense)
}

func TestNilCachePassthrough(t *testing.T) {
	ctx := context.Background()
	repo := &fakeReportRepo{balances: sampleBalances()}
	svc := NewService(repo, nil)

	for i := 0; i < 2; i++ {
		bs, err := svc.BalanceSheet(ctx, 1, Filter{})
		require.NoError(t, err)
		require.True(t, bs.Balanced)
	}
	require.Equal(t, 2, repo.calls)
}

func TestTrialBalanceCSV(t *testing.T) {
	ctx := context.Background()
	repo := &fakeReportRepo{balances: sampleBalances()}
	svc := NewService(repo, nil)

	raw, err := svc.TrialBalanceCSV(ctx, 1, Filter{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 8) // header + 6 accounts + total
	require.Equal(t, "account_code,account_name,type,debit,credit", lines[0])
	require.Contains(t, lines[7], "TOTAL")
	require.Contains(t, lines[2], "1200,Accounts Receivable,ASSET,500.00,0.00")
}