// Package recon compares each sub-ledger total against its general ledger
// control account. A mismatch means a posting bypassed the engine or a
// control account was touched by a manual journal.
package recon

import (
	"context"
	"math"

	"github.com/shopspring/decimal"

	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// Tolerance absorbs rounding drift between decimal sub-ledger math and the
// summed GL columns.
const Tolerance = 0.01

// Row is one sub-ledger vs control account comparison.
type Row struct {
	Subledger        string  `json:"subledger"`
	ControlAccount   string  `json:"control_account"`
	SubledgerBalance float64 `json:"subledger_balance"`
	GLBalance        float64 `json:"gl_balance"`
	Difference       float64 `json:"difference"`
	Matched          bool    `json:"matched"`
}

// Result is the full reconciliation run.
type Result struct {
	Rows    []Row `json:"rows"`
	Matched bool  `json:"matched"`
}

// ARPort exposes the receivables sub-ledger total.
type ARPort interface {
	OutstandingTotal(ctx context.Context, schoolID int64) (float64, error)
}

// APPort exposes the payables sub-ledger total.
type APPort interface {
	OutstandingTotal(ctx context.Context, schoolID int64) (float64, error)
}

// InventoryPort exposes the stock valuation total.
type InventoryPort interface {
	ValuationTotal(ctx context.Context, schoolID int64) (float64, error)
}

// GLPort reads signed control account balances, debit minus credit.
type GLPort interface {
	ControlBalance(ctx context.Context, schoolID int64, accountCode string) (float64, error)
}

// Config names the control accounts each sub-ledger posts into.
type Config struct {
	ReceivableAccount string
	PayableAccount    string
	InventoryAccount  string
}

// DefaultConfig matches the default sub-ledger posting configuration.
func DefaultConfig() Config {
	return Config{
		ReceivableAccount: "1200",
		PayableAccount:    "2100",
		InventoryAccount:  "1300",
	}
}

// Checker runs the sub-ledger to GL comparisons.
type Checker struct {
	ar  ARPort
	ap  APPort
	inv InventoryPort
	gl  GLPort
	cfg Config
}

// NewChecker builds Checker instance.
func NewChecker(ar ARPort, ap APPort, inv InventoryPort, gl GLPort, cfg Config) *Checker {
	return &Checker{ar: ar, ap: ap, inv: inv, gl: gl, cfg: cfg}
}

// Check compares every sub-ledger against its control account.
func (c *Checker) Check(ctx context.Context, schoolID int64) (Result, error) {
	arTotal, err := c.ar.OutstandingTotal(ctx, schoolID)
	if err != nil {
		return Result{}, err
	}
	arGL, err := c.gl.ControlBalance(ctx, schoolID, c.cfg.ReceivableAccount)
	if err != nil {
		return Result{}, err
	}

	apTotal, err := c.ap.OutstandingTotal(ctx, schoolID)
	if err != nil {
		return Result{}, err
	}
	apGL, err := c.gl.ControlBalance(ctx, schoolID, c.cfg.PayableAccount)
	if err != nil {
		return Result{}, err
	}

	invTotal, err := c.inv.ValuationTotal(ctx, schoolID)
	if err != nil {
		return Result{}, err
	}
	invGL, err := c.gl.ControlBalance(ctx, schoolID, c.cfg.InventoryAccount)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Rows: []Row{
			compare("AR", c.cfg.ReceivableAccount, arTotal, arGL),
			compare("AP", c.cfg.PayableAccount, apTotal, -apGL),
			compare("INVENTORY", c.cfg.InventoryAccount, invTotal, invGL),
		},
		Matched: true,
	}
	for _, row := range result.Rows {
		if !row.Matched {
			result.Matched = false
		}
	}
	return result, nil
}

func compare(subledger, account string, subTotal, glBalance float64) Row {
	diff := shared.Float2(shared.Money2(subTotal).Sub(decimal.NewFromFloat(glBalance)))
	return Row{
		Subledger:        subledger,
		ControlAccount:   account,
		SubledgerBalance: subTotal,
		GLBalance:        glBalance,
		Difference:       diff,
		Matched:          math.Abs(diff) <= Tolerance,
	}
}
