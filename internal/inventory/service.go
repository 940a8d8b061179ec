package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/accounts"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/items"
	"github.com/classbridge-erp/classbridge-erp/internal/masterdata/warehouses"
	"github.com/classbridge-erp/classbridge-erp/internal/platform/httpx"
	"github.com/classbridge-erp/classbridge-erp/internal/posting"
	"github.com/classbridge-erp/classbridge-erp/internal/shared"
)

// Config names the accounts inventory moves post against.
type Config struct {
	InventoryAccount  string
	COGSAccount       string
	InboundCredit     string
	AdjustmentAccount string
	// AllowNegative lets outbound moves drive a stock level below zero.
	// Off by default; schools that record issues before receipts opt in.
	AllowNegative bool
}

// DefaultConfig matches the seeded chart of accounts. InboundCredit is the
// payables control because school stock almost always arrives on account.
func DefaultConfig() Config {
	return Config{
		InventoryAccount:  "1300",
		COGSAccount:       "5500",
		InboundCredit:     "2100",
		AdjustmentAccount: "5900",
	}
}

// ItemPort resolves items.
type ItemPort interface {
	Get(ctx context.Context, schoolID, id int64) (items.Item, error)
}

// WarehousePort resolves warehouses.
type WarehousePort interface {
	Get(ctx context.Context, schoolID, id int64) (warehouses.Warehouse, error)
}

// AccountPort resolves control accounts by code.
type AccountPort interface {
	GetByCode(ctx context.Context, schoolID int64, code string) (accounts.Account, error)
}

// PosterPort is the slice of the posting engine inventory uses.
type PosterPort interface {
	Post(ctx context.Context, req posting.PostRequest) (posting.PostResult, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service maintains moving-average stock levels and their GL postings.
type Service struct {
	repo     Repository
	items    ItemPort
	houses   WarehousePort
	accounts AccountPort
	poster   PosterPort
	audit    AuditPort
	cfg      Config
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, items ItemPort, houses WarehousePort, accounts AccountPort, poster PosterPort, audit AuditPort, cfg Config) *Service {
	return &Service{repo: repo, items: items, houses: houses, accounts: accounts, poster: poster, audit: audit, cfg: cfg, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// apply runs the moving-average update for one move against one stock level.
// Inbound: new_avg = (old_qty*old_avg + qty*unit_cost) / new_qty. Outbound:
// the average is unchanged and the move carries qty at that average. Every
// intermediate rounds (qty and avg to 4 decimals, money to 2) so replaying
// the move history always reproduces the stored valuation.
func apply(stock Stock, qty, unitCost float64, inbound, allowNegative bool) (Stock, float64, error) {
	oldQty := decimal.NewFromFloat(stock.Quantity)
	oldAvg := decimal.NewFromFloat(stock.AvgCost)
	moveQty := decimal.NewFromFloat(qty)

	var costMoved decimal.Decimal
	if inbound {
		cost := decimal.NewFromFloat(unitCost)
		newQty := shared.Round4(oldQty.Add(moveQty))
		newAvg := shared.Round4(cost)
		if !newQty.IsZero() {
			newAvg = shared.Round4(oldQty.Mul(oldAvg).Add(moveQty.Mul(cost)).Div(newQty))
		}
		costMoved = shared.Round2(moveQty.Mul(cost))
		stock.Quantity = shared.Float4(newQty)
		stock.AvgCost = shared.Float4(newAvg)
		stock.Valuation = shared.Float2(newQty.Mul(newAvg))
		return stock, shared.Float2(costMoved), nil
	}

	newQty := shared.Round4(oldQty.Sub(moveQty))
	if newQty.IsNegative() && !allowNegative {
		return Stock{}, 0, fmt.Errorf("item %d warehouse %d has %s, need %s: %w",
			stock.ItemID, stock.WarehouseID, oldQty, moveQty, ErrInsufficientStock)
	}
	costMoved = shared.Round2(moveQty.Mul(oldAvg))
	stock.Quantity = shared.Float4(newQty)
	stock.Valuation = shared.Float2(newQty.Mul(oldAvg))
	return stock, shared.Float2(costMoved), nil
}

// RecordMove applies a purchase receipt, sale issue or adjustment, then
// posts the GL effect. The level update and the move row commit together;
// the GL posting is retryable through PostMove.
func (s *Service) RecordMove(ctx context.Context, in RecordMoveInput) (Move, posting.PostResult, error) {
	if !in.MoveType.Valid() || in.MoveType == MoveTransferIn || in.MoveType == MoveTransferOut {
		return Move{}, posting.PostResult{}, fmt.Errorf("inventory: move type %q not accepted here: %w", in.MoveType, httpx.ErrValidation)
	}
	if in.Quantity <= 0 {
		return Move{}, posting.PostResult{}, fmt.Errorf("inventory: quantity must be positive: %w", httpx.ErrValidation)
	}
	if in.MoveDate.IsZero() {
		return Move{}, posting.PostResult{}, fmt.Errorf("inventory: move date is required: %w", httpx.ErrValidation)
	}
	inbound := in.MoveType.Inbound() || (in.MoveType == MoveAdjustment && !in.Outbound)
	if inbound && in.UnitCost < 0 {
		return Move{}, posting.PostResult{}, fmt.Errorf("inventory: unit cost cannot be negative: %w", httpx.ErrValidation)
	}
	// The stored unit cost doubles as the adjustment's direction marker for
	// the GL pair, so each direction pins its cost shape here.
	if in.MoveType == MoveAdjustment {
		if in.Outbound && in.UnitCost != 0 {
			return Move{}, posting.PostResult{}, fmt.Errorf("inventory: outbound adjustments issue at the standing average, not a unit cost: %w", httpx.ErrValidation)
		}
		if !in.Outbound && in.UnitCost <= 0 {
			return Move{}, posting.PostResult{}, fmt.Errorf("inventory: inbound adjustments require a unit cost: %w", httpx.ErrValidation)
		}
	}
	if _, err := s.items.Get(ctx, in.SchoolID, in.ItemID); err != nil {
		return Move{}, posting.PostResult{}, err
	}
	if _, err := s.houses.Get(ctx, in.SchoolID, in.WarehouseID); err != nil {
		return Move{}, posting.PostResult{}, err
	}

	var move Move
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stock, err := tx.GetStockForUpdate(ctx, in.SchoolID, in.ItemID, in.WarehouseID)
		if err != nil {
			return err
		}
		next, costMoved, err := apply(stock, in.Quantity, in.UnitCost, inbound, s.cfg.AllowNegative)
		if err != nil {
			return err
		}
		if err := tx.UpsertStock(ctx, next); err != nil {
			return err
		}
		move, err = tx.InsertMove(ctx, Move{
			SchoolID:     in.SchoolID,
			ItemID:       in.ItemID,
			WarehouseID:  in.WarehouseID,
			MoveType:     in.MoveType,
			Quantity:     in.Quantity,
			UnitCost:     in.UnitCost,
			CostMoved:    costMoved,
			QtyAfter:     next.Quantity,
			AvgCostAfter: next.AvgCost,
			MoveDate:     in.MoveDate,
			Reference:    in.Reference,
		})
		return err
	})
	if err != nil {
		return Move{}, posting.PostResult{}, err
	}
	s.record(ctx, in.SchoolID, in.ActorID, "inventory.move", move)
	return s.PostMove(ctx, in.SchoolID, in.ActorID, move.ID)
}

// Transfer issues stock from one warehouse and receives it into another at
// the source average cost, atomically. Both warehouses draw on the single
// inventory control account, so a transfer has no net GL effect and posts
// no journal.
func (s *Service) Transfer(ctx context.Context, in TransferInput) ([]Move, error) {
	if in.FromWarehouseID == in.ToWarehouseID {
		return nil, ErrSameWarehouse
	}
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("inventory: quantity must be positive: %w", httpx.ErrValidation)
	}
	if in.MoveDate.IsZero() {
		return nil, fmt.Errorf("inventory: move date is required: %w", httpx.ErrValidation)
	}
	if _, err := s.items.Get(ctx, in.SchoolID, in.ItemID); err != nil {
		return nil, err
	}
	if _, err := s.houses.Get(ctx, in.SchoolID, in.FromWarehouseID); err != nil {
		return nil, err
	}
	if _, err := s.houses.Get(ctx, in.SchoolID, in.ToWarehouseID); err != nil {
		return nil, err
	}

	var moves []Move
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		source, err := tx.GetStockForUpdate(ctx, in.SchoolID, in.ItemID, in.FromWarehouseID)
		if err != nil {
			return err
		}
		avgOut := source.AvgCost
		sourceNext, _, err := apply(source, in.Quantity, 0, false, s.cfg.AllowNegative)
		if err != nil {
			return err
		}
		dest, err := tx.GetStockForUpdate(ctx, in.SchoolID, in.ItemID, in.ToWarehouseID)
		if err != nil {
			return err
		}
		destNext, _, err := apply(dest, in.Quantity, avgOut, true, false)
		if err != nil {
			return err
		}
		if err := tx.UpsertStock(ctx, sourceNext); err != nil {
			return err
		}
		if err := tx.UpsertStock(ctx, destNext); err != nil {
			return err
		}
		out, err := tx.InsertMove(ctx, Move{
			SchoolID: in.SchoolID, ItemID: in.ItemID, WarehouseID: in.FromWarehouseID,
			MoveType: MoveTransferOut, Quantity: in.Quantity, UnitCost: avgOut,
			CostMoved: shared.Float2(shared.Money2(in.Quantity * avgOut)),
			QtyAfter:  sourceNext.Quantity, AvgCostAfter: sourceNext.AvgCost,
			MoveDate: in.MoveDate, Reference: in.Reference,
		})
		if err != nil {
			return err
		}
		into, err := tx.InsertMove(ctx, Move{
			SchoolID: in.SchoolID, ItemID: in.ItemID, WarehouseID: in.ToWarehouseID,
			MoveType: MoveTransferIn, Quantity: in.Quantity, UnitCost: avgOut,
			CostMoved: shared.Float2(shared.Money2(in.Quantity * avgOut)),
			QtyAfter:  destNext.Quantity, AvgCostAfter: destNext.AvgCost,
			MoveDate: in.MoveDate, Reference: in.Reference,
		})
		if err != nil {
			return err
		}
		moves = []Move{out, into}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, m := range moves {
		s.record(ctx, in.SchoolID, in.ActorID, "inventory.transfer", m)
	}
	return moves, nil
}

// PostMove posts the GL entry for a recorded move. Transfers and zero-cost
// moves have no GL effect and return unchanged with an empty result. The
// returned PostResult carries the journal reference and whether it was a
// replay.
func (s *Service) PostMove(ctx context.Context, schoolID, actorID, moveID int64) (Move, posting.PostResult, error) {
	move, err := s.repo.GetMove(ctx, schoolID, moveID)
	if err != nil {
		return Move{}, posting.PostResult{}, err
	}
	if move.MoveType == MoveTransferIn || move.MoveType == MoveTransferOut || move.CostMoved == 0 {
		return move, posting.PostResult{}, nil
	}

	debitCode, creditCode, txnType := s.accountsFor(move)
	debitAcc, err := s.accounts.GetByCode(ctx, schoolID, debitCode)
	if err != nil {
		return Move{}, posting.PostResult{}, fmt.Errorf("inventory: account %s: %w", debitCode, err)
	}
	creditAcc, err := s.accounts.GetByCode(ctx, schoolID, creditCode)
	if err != nil {
		return Move{}, posting.PostResult{}, fmt.Errorf("inventory: account %s: %w", creditCode, err)
	}
	result, err := s.poster.Post(ctx, posting.PostRequest{
		SchoolID:        schoolID,
		ActorID:         actorID,
		Module:          posting.ModuleInventory,
		TxnType:         txnType,
		SourceRef:       move.Reference,
		IdempotencyKey:  fmt.Sprintf("INVMOVE:%d", move.ID),
		Amount:          move.CostMoved,
		Description:     fmt.Sprintf("Stock %s item %d", move.MoveType, move.ItemID),
		EntryDate:       move.MoveDate,
		DebitAccountID:  debitAcc.ID,
		CreditAccountID: creditAcc.ID,
	})
	if err != nil {
		return Move{}, posting.PostResult{}, err
	}
	if err := s.repo.SetMovePosted(ctx, schoolID, move.ID, result.JournalEntryID); err != nil && !result.AlreadyPosted {
		return Move{}, result, err
	}
	move, err = s.repo.GetMove(ctx, schoolID, moveID)
	return move, result, err
}

// accountsFor maps a move to its debit/credit pair: inbound stock debits the
// inventory control, issues expense it to COGS, adjustments go against the
// shrinkage account in the matching direction.
func (s *Service) accountsFor(move Move) (debit, credit, txnType string) {
	switch move.MoveType {
	case MovePurchaseReceipt:
		return s.cfg.InventoryAccount, s.cfg.InboundCredit, posting.TxnPurchaseReceipt
	case MoveIssueSale:
		return s.cfg.COGSAccount, s.cfg.InventoryAccount, posting.TxnIssueSale
	default: // adjustment; RecordMove guarantees inbound carries a unit cost and outbound none
		if move.UnitCost > 0 {
			return s.cfg.InventoryAccount, s.cfg.AdjustmentAccount, posting.TxnStockAdjustment
		}
		return s.cfg.AdjustmentAccount, s.cfg.InventoryAccount, posting.TxnStockAdjustment
	}
}

// StockLevels lists current levels, optionally for one warehouse.
func (s *Service) StockLevels(ctx context.Context, schoolID, warehouseID int64) ([]Stock, error) {
	return s.repo.StockLevels(ctx, schoolID, warehouseID)
}

// StockCard lists the move history of one item in one warehouse with the
// post-move quantity and average on each row.
func (s *Service) StockCard(ctx context.Context, schoolID, itemID, warehouseID int64) ([]Move, error) {
	return s.repo.ListMoves(ctx, schoolID, MoveFilter{ItemID: itemID, WarehouseID: warehouseID})
}

// ListMoves lists moves, newest last.
func (s *Service) ListMoves(ctx context.Context, schoolID int64, filter MoveFilter) ([]Move, error) {
	return s.repo.ListMoves(ctx, schoolID, filter)
}

// ValuationTotal is the sub-ledger total used by reconciliation.
func (s *Service) ValuationTotal(ctx context.Context, schoolID int64) (float64, error) {
	return s.repo.ValuationTotal(ctx, schoolID)
}

func (s *Service) record(ctx context.Context, schoolID, actorID int64, action string, move Move) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		SchoolID: schoolID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "stock_move",
		EntityID: fmt.Sprintf("%d", move.ID),
		Meta: map[string]any{
			"item_id": move.ItemID, "warehouse_id": move.WarehouseID,
			"move_type": move.MoveType, "quantity": move.Quantity, "cost_moved": move.CostMoved,
		},
		At: s.now(),
	})
}
