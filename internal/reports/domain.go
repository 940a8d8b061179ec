package reports

import (
	"time"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
)

// Filter narrows report aggregation. Zero values mean no filter; PeriodID
// and the date range combine with AND when both are set.
type Filter struct {
	PeriodID int64
	DateFrom time.Time
	DateTo   time.Time
}

// AccountBalance is one account's aggregated posted activity, the input row
// for every report builder.
type AccountBalance struct {
	AccountID int64                `json:"account_id"`
	Code      string               `json:"code"`
	Name      string               `json:"name"`
	Type      accounts.AccountType `json:"type"`
	Debit     float64              `json:"debit"`
	Credit    float64              `json:"credit"`
}

// TrialBalanceRow nets each account into its natural column.
type TrialBalanceRow struct {
	AccountID int64                `json:"account_id"`
	Code      string               `json:"code"`
	Name      string               `json:"name"`
	Type      accounts.AccountType `json:"type"`
	Debit     float64              `json:"debit"`
	Credit    float64              `json:"credit"`
}

// TrialBalance lists per-account net balances with grand totals.
type TrialBalance struct {
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  float64           `json:"total_debit"`
	TotalCredit float64           `json:"total_credit"`
	Balanced    bool              `json:"balanced"`
}

// ReportLine is one account row in the P&L or balance sheet.
type ReportLine struct {
	AccountID int64   `json:"account_id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
}

// ProfitAndLoss groups revenue against expenses.
type ProfitAndLoss struct {
	Revenue      []ReportLine `json:"revenue"`
	Expenses     []ReportLine `json:"expenses"`
	TotalRevenue float64      `json:"total_revenue"`
	TotalExpense float64      `json:"total_expense"`
	NetIncome    float64      `json:"net_income"`
}

// BalanceSheet groups assets against liabilities and equity. Current
// earnings carries the net income of the filtered range into equity so the
// statement balances without a formal closing entry.
type BalanceSheet struct {
	Assets           []ReportLine `json:"assets"`
	Liabilities      []ReportLine `json:"liabilities"`
	Equity           []ReportLine `json:"equity"`
	CurrentEarnings  float64      `json:"current_earnings"`
	TotalAssets      float64      `json:"total_assets"`
	TotalLiabilities float64      `json:"total_liabilities"`
	TotalEquity      float64      `json:"total_equity"`
	Balanced         bool         `json:"balanced"`
}
