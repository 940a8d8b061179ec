package reports

import (
	"math"
	"sort"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// Builders are pure functions over aggregated balances so they test without
// a database and cache safely.

const (
	trialBalanceTolerance = 0.0001
	balanceSheetTolerance = 0.01
)

// BuildTrialBalance nets each account into its debit or credit column and
// sums the grand totals.
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	rows := make([]TrialBalanceRow, 0, len(balances))
	var totalDebit, totalCredit float64
	for _, b := range sorted(balances) {
		net := b.Debit - b.Credit
		row := TrialBalanceRow{AccountID: b.AccountID, Code: b.Code, Name: b.Name, Type: b.Type}
		if net >= 0 {
			row.Debit = shared.Float2(shared.Money2(net))
		} else {
			row.Credit = shared.Float2(shared.Money2(-net))
		}
		totalDebit += row.Debit
		totalCredit += row.Credit
		rows = append(rows, row)
	}
	totalDebit = shared.Float2(shared.Money2(totalDebit))
	totalCredit = shared.Float2(shared.Money2(totalCredit))
	return TrialBalance{
		Rows:        rows,
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		Balanced:    math.Abs(totalDebit-totalCredit) <= trialBalanceTolerance,
	}
}

// BuildProfitAndLoss keeps revenue and expense accounts only: revenue is
// credit minus debit, expense debit minus credit.
func BuildProfitAndLoss(balances []AccountBalance) ProfitAndLoss {
	var report ProfitAndLoss
	for _, b := range sorted(balances) {
		switch b.Type {
		case accounts.TypeRevenue:
			amount := shared.Float2(shared.Money2(b.Credit - b.Debit))
			report.Revenue = append(report.Revenue, ReportLine{AccountID: b.AccountID, Code: b.Code, Name: b.Name, Amount: amount})
			report.TotalRevenue += amount
		case accounts.TypeExpense:
			amount := shared.Float2(shared.Money2(b.Debit - b.Credit))
			report.Expenses = append(report.Expenses, ReportLine{AccountID: b.AccountID, Code: b.Code, Name: b.Name, Amount: amount})
			report.TotalExpense += amount
		}
	}
	report.TotalRevenue = shared.Float2(shared.Money2(report.TotalRevenue))
	report.TotalExpense = shared.Float2(shared.Money2(report.TotalExpense))
	report.NetIncome = shared.Float2(shared.Money2(report.TotalRevenue - report.TotalExpense))
	return report
}

// BuildBalanceSheet keeps asset, liability and equity accounts, folding the
// range's net income into equity as current earnings.
func BuildBalanceSheet(balances []AccountBalance) BalanceSheet {
	var report BalanceSheet
	for _, b := range sorted(balances) {
		switch b.Type {
		case accounts.TypeAsset:
			amount := shared.Float2(shared.Money2(b.Debit - b.Credit))
			report.Assets = append(report.Assets, ReportLine{AccountID: b.AccountID, Code: b.Code, Name: b.Name, Amount: amount})
			report.TotalAssets += amount
		case accounts.TypeLiability:
			amount := shared.Float2(shared.Money2(b.Credit - b.Debit))
			report.Liabilities = append(report.Liabilities, ReportLine{AccountID: b.AccountID, Code: b.Code, Name: b.Name, Amount: amount})
			report.TotalLiabilities += amount
		case accounts.TypeEquity:
			amount := shared.Float2(shared.Money2(b.Credit - b.Debit))
			report.Equity = append(report.Equity, ReportLine{AccountID: b.AccountID, Code: b.Code, Name: b.Name, Amount: amount})
			report.TotalEquity += amount
		}
	}
	pl := BuildProfitAndLoss(balances)
	report.CurrentEarnings = pl.NetIncome
	report.TotalAssets = shared.Float2(shared.Money2(report.TotalAssets))
	report.TotalLiabilities = shared.Float2(shared.Money2(report.TotalLiabilities))
	report.TotalEquity = shared.Float2(shared.Money2(report.TotalEquity + report.CurrentEarnings))
	report.Balanced = math.Abs(report.TotalAssets-(report.TotalLiabilities+report.TotalEquity)) <= balanceSheetTolerance
	return report
}

func sorted(balances []AccountBalance) []AccountBalance {
	out := make([]AccountBalance, len(balances))
	copy(out, balances)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
