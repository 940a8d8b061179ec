package reports

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
)

func sampleBalances() []AccountBalance {
	// one month of a small school: tuition billed, salaries paid
	return []AccountBalance{
		{AccountID: 1, Code: "1010", Name: "Cash", Type: accounts.TypeAsset, Debit: 600, Credit: 0},
		{AccountID: 2, Code: "1200", Name: "Accounts Receivable", Type: accounts.TypeAsset, Debit: 1100, Credit: 600},
		{AccountID: 3, Code: "2150", Name: "Tax Payable", Type: accounts.TypeLiability, Debit: 0, Credit: 100},
		{AccountID: 4, Code: "3000", Name: "Opening Equity", Type: accounts.TypeEquity, Debit: 0, Credit: 700},
		{AccountID: 5, Code: "4000", Name: "Tuition Revenue", Type: accounts.TypeRevenue, Debit: 0, Credit: 1000},
		{AccountID: 6, Code: "5600", Name: "Payroll Expense", Type: accounts.TypeExpense, Debit: 700, Credit: 0},
	}
}

func TestBuildTrialBalance(t *testing.T) {
	tb := BuildTrialBalance(sampleBalances())

	require.Len(t, tb.Rows, 6)
	require.Equal(t, tb.TotalDebit, tb.TotalCredit)
	require.True(t, tb.Balanced)

	// AR netted into the debit column
	require.Equal(t, "1200", tb.Rows[1].Code)
	require.Equal(t, 500.0, tb.Rows[1].Debit)
	require.Equal(t, 0.0, tb.Rows[1].Credit)
}

func TestBuildProfitAndLoss(t *testing.T) {
	pl := BuildProfitAndLoss(sampleBalances())

	require.Len(t, pl.Revenue, 1)
	require.Len(t, pl.Expenses, 1)
	require.Equal(t, 1000.0, pl.TotalRevenue)
	require.Equal(t, 700.0, pl.TotalExpense)
	require.Equal(t, 300.0, pl.NetIncome)
}

func TestBuildBalanceSheet(t *testing.T) {
	bs := BuildBalanceSheet(sampleBalances())

	require.Equal(t, 1100.0, bs.TotalAssets) // cash 600 + AR 500
	require.Equal(t, 100.0, bs.TotalLiabilities)
	require.Equal(t, 300.0, bs.CurrentEarnings)
	require.Equal(t, 1000.0, bs.TotalEquity) // opening 700 + earnings 300
	require.True(t, bs.Balanced)
}

func TestBuildBalanceSheetUnbalancedDetected(t *testing.T) {
	balances := sampleBalances()
	balances[0].Debit += 50 // simulate a bypassed posting path

	bs := BuildBalanceSheet(balances)
	require.False(t, bs.Balanced)
}

func TestEmptyBalances(t *testing.T) {
	tb := BuildTrialBalance(nil)
	require.Empty(t, tb.Rows)
	require.True(t, tb.Balanced)

	pl := BuildProfitAndLoss(nil)
	require.Equal(t, 0.0, pl.NetIncome)

	bs := BuildBalanceSheet(nil)
	require.True(t, bs.Balanced)
}
