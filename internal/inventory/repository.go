package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/db"
)

// Repository persists stock moves and levels.
type Repository interface {
	GetMove(ctx context.Context, schoolID, id int64) (Move, error)
	ListMoves(ctx context.Context, schoolID int64, filter MoveFilter) ([]Move, error)
	StockLevels(ctx context.Context, schoolID, warehouseID int64) ([]Stock, error)
	SetMovePosted(ctx context.Context, schoolID, id, journalEntryID int64) error
	ValuationTotal(ctx context.Context, schoolID int64) (float64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository serialises level updates: GetStockForUpdate row-locks the
// level so two moves on the same item and warehouse apply one after the
// other instead of both reading the same starting average.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, schoolID, itemID, warehouseID int64) (Stock, error)
	UpsertStock(ctx context.Context, stock Stock) error
	InsertMove(ctx context.Context, move Move) (Move, error)
}

// MoveFilter narrows move listings; ItemID plus WarehouseID yields the
// stock card for that item.
type MoveFilter struct {
	ItemID      int64
	WarehouseID int64
	Limit       int
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const moveColumns = `id, school_id, item_id, warehouse_id, move_type, quantity, unit_cost,
cost_moved, qty_after, avg_cost_after, move_date, reference, journal_entry_id, created_at`

func scanMove(row pgx.Row) (Move, error) {
	var m Move
	err := row.Scan(&m.ID, &m.SchoolID, &m.ItemID, &m.WarehouseID, &m.MoveType, &m.Quantity, &m.UnitCost,
		&m.CostMoved, &m.QtyAfter, &m.AvgCostAfter, &m.MoveDate, &m.Reference, &m.JournalEntryID, &m.CreatedAt)
	return m, err
}

func (r *repository) GetMove(ctx context.Context, schoolID, id int64) (Move, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+moveColumns+` FROM stock_moves WHERE school_id=$1 AND id=$2`, schoolID, id)
	m, err := scanMove(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Move{}, ErrMoveNotFound
	}
	return m, err
}

func (r *repository) ListMoves(ctx context.Context, schoolID int64, filter MoveFilter) ([]Move, error) {
	query := `SELECT ` + moveColumns + ` FROM stock_moves WHERE school_id=$1`
	args := []any{schoolID}
	if filter.ItemID != 0 {
		args = append(args, filter.ItemID)
		query += fmt.Sprintf(" AND item_id=$%d", len(args))
	}
	if filter.WarehouseID != 0 {
		args = append(args, filter.WarehouseID)
		query += fmt.Sprintf(" AND warehouse_id=$%d", len(args))
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Move
	for rows.Next() {
		m, err := scanMove(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) StockLevels(ctx context.Context, schoolID, warehouseID int64) ([]Stock, error) {
	query := `SELECT school_id, item_id, warehouse_id, quantity, avg_cost, valuation, updated_at
FROM stock_levels WHERE school_id=$1`
	args := []any{schoolID}
	if warehouseID != 0 {
		args = append(args, warehouseID)
		query += fmt.Sprintf(" AND warehouse_id=$%d", len(args))
	}
	query += " ORDER BY warehouse_id, item_id"
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Stock
	for rows.Next() {
		var s Stock
		if err := rows.Scan(&s.SchoolID, &s.ItemID, &s.WarehouseID, &s.Quantity, &s.AvgCost, &s.Valuation, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) SetMovePosted(ctx context.Context, schoolID, id, journalEntryID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stock_moves SET journal_entry_id=$1
WHERE school_id=$2 AND id=$3 AND journal_entry_id IS NULL`, journalEntryID, schoolID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMovePosted
	}
	return nil
}

// ValuationTotal sums stock valuations, the sub-ledger side of the inventory
// control reconciliation.
func (r *repository) ValuationTotal(ctx context.Context, schoolID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(valuation), 0) FROM stock_levels WHERE school_id=$1`, schoolID).Scan(&total)
	return total, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetStockForUpdate(ctx context.Context, schoolID, itemID, warehouseID int64) (Stock, error) {
	row := r.tx.QueryRow(ctx, `SELECT school_id, item_id, warehouse_id, quantity, avg_cost, valuation, updated_at
FROM stock_levels WHERE school_id=$1 AND item_id=$2 AND warehouse_id=$3 FOR UPDATE`, schoolID, itemID, warehouseID)
	var s Stock
	err := row.Scan(&s.SchoolID, &s.ItemID, &s.WarehouseID, &s.Quantity, &s.AvgCost, &s.Valuation, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stock{SchoolID: schoolID, ItemID: itemID, WarehouseID: warehouseID}, nil
	}
	return s, err
}

func (r *txRepository) UpsertStock(ctx context.Context, stock Stock) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_levels (school_id, item_id, warehouse_id, quantity, avg_cost, valuation)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (school_id, item_id, warehouse_id)
DO UPDATE SET quantity=EXCLUDED.quantity, avg_cost=EXCLUDED.avg_cost, valuation=EXCLUDED.valuation, updated_at=NOW()`,
		stock.SchoolID, stock.ItemID, stock.WarehouseID, stock.Quantity, stock.AvgCost, stock.Valuation)
	return err
}

func (r *txRepository) InsertMove(ctx context.Context, move Move) (Move, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO stock_moves
(school_id, item_id, warehouse_id, move_type, quantity, unit_cost, cost_moved, qty_after, avg_cost_after, move_date, reference)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id, created_at`,
		move.SchoolID, move.ItemID, move.WarehouseID, move.MoveType, move.Quantity, move.UnitCost,
		move.CostMoved, move.QtyAfter, move.AvgCostAfter, move.MoveDate, move.Reference)
	if err := row.Scan(&move.ID, &move.CreatedAt); err != nil {
		return Move{}, err
	}
	return move, nil
}
