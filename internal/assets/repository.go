package assets

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge-erp/classbridge-erp/internal/platform/db"
)

// Repository persists assets and depreciation schedules.
type Repository interface {
	Create(ctx context.Context, asset Asset) (Asset, error)
	Get(ctx context.Context, schoolID, id int64) (Asset, error)
	List(ctx context.Context, schoolID int64, status AssetStatus) ([]Asset, error)
	SetCapitalized(ctx context.Context, schoolID, id, journalEntryID int64) error
	ApplyDepreciation(ctx context.Context, row ScheduleRow) (ScheduleRow, error)
	Schedule(ctx context.Context, schoolID, assetID int64) ([]ScheduleRow, error)
	SetScheduleRowPosted(ctx context.Context, schoolID, id, journalEntryID int64) error
	MarkDisposed(ctx context.Context, asset Asset) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const assetColumns = `id, school_id, code, name, category, cost, residual_value, useful_life_months,
accumulated_depreciation, carrying_amount, acquired_at, disposed_at, disposal_amount, status,
journal_entry_id, created_at, updated_at`

func scanAsset(row pgx.Row) (Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.SchoolID, &a.Code, &a.Name, &a.Category, &a.Cost, &a.ResidualValue,
		&a.UsefulLifeMonths, &a.AccumulatedDep, &a.CarryingAmount, &a.AcquiredAt, &a.DisposedAt,
		&a.DisposalAmount, &a.Status, &a.JournalEntryID, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) Create(ctx context.Context, asset Asset) (Asset, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO fixed_assets
(school_id, code, name, category, cost, residual_value, useful_life_months, carrying_amount, acquired_at, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id, created_at, updated_at`,
		asset.SchoolID, asset.Code, asset.Name, asset.Category, asset.Cost, asset.ResidualValue,
		asset.UsefulLifeMonths, asset.CarryingAmount, asset.AcquiredAt, asset.Status)
	if err := row.Scan(&asset.ID, &asset.CreatedAt, &asset.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Asset{}, ErrDuplicateCode
		}
		return Asset{}, err
	}
	return asset, nil
}

func (r *repository) Get(ctx context.Context, schoolID, id int64) (Asset, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM fixed_assets WHERE school_id=$1 AND id=$2`, schoolID, id)
	a, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Asset{}, ErrAssetNotFound
	}
	return a, err
}

func (r *repository) List(ctx context.Context, schoolID int64, status AssetStatus) ([]Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM fixed_assets WHERE school_id=$1`
	args := []any{schoolID}
	if status != "" {
		args = append(args, status)
		query += ` AND status=$2`
	}
	query += ` ORDER BY code`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) SetCapitalized(ctx context.Context, schoolID, id, journalEntryID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE fixed_assets SET journal_entry_id=$1, updated_at=NOW()
WHERE school_id=$2 AND id=$3 AND journal_entry_id IS NULL`, journalEntryID, schoolID, id)
	return err
}

// ApplyDepreciation inserts the schedule row and moves the asset's
// accumulated and carrying amounts in one statement pair. The guard on
// status and accumulated depreciation keeps concurrent runs from
// over-depreciating.
func (r *repository) ApplyDepreciation(ctx context.Context, row ScheduleRow) (ScheduleRow, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE fixed_assets SET
accumulated_depreciation = $1, carrying_amount = $2, updated_at = NOW()
WHERE school_id=$3 AND id=$4 AND status=$5 AND accumulated_depreciation < $1`,
			row.AccumulatedDep, row.CarryingAmount, row.SchoolID, row.AssetID, StatusActive)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrDisposed
		}
		return tx.QueryRow(ctx, `INSERT INTO depreciation_schedule
(school_id, asset_id, run_date, amount, accumulated_after, carrying_after)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`,
			row.SchoolID, row.AssetID, row.RunDate, row.Amount, row.AccumulatedDep, row.CarryingAmount).
			Scan(&row.ID, &row.CreatedAt)
	})
	if err != nil {
		return ScheduleRow{}, err
	}
	return row, nil
}

func (r *repository) Schedule(ctx context.Context, schoolID, assetID int64) ([]ScheduleRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, school_id, asset_id, run_date, amount, accumulated_after, carrying_after, journal_entry_id, created_at
FROM depreciation_schedule WHERE school_id=$1 AND asset_id=$2 ORDER BY run_date, id`, schoolID, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScheduleRow
	for rows.Next() {
		var row ScheduleRow
		if err := rows.Scan(&row.ID, &row.SchoolID, &row.AssetID, &row.RunDate, &row.Amount,
			&row.AccumulatedDep, &row.CarryingAmount, &row.JournalEntryID, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) SetScheduleRowPosted(ctx context.Context, schoolID, id, journalEntryID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE depreciation_schedule SET journal_entry_id=$1
WHERE school_id=$2 AND id=$3 AND journal_entry_id IS NULL`, journalEntryID, schoolID, id)
	return err
}

func (r *repository) MarkDisposed(ctx context.Context, asset Asset) error {
	tag, err := r.pool.Exec(ctx, `UPDATE fixed_assets SET
status=$1, disposed_at=$2, disposal_amount=$3, updated_at=NOW()
WHERE school_id=$4 AND id=$5 AND status=$6`,
		StatusDisposed, asset.DisposedAt, asset.DisposalAmount, asset.SchoolID, asset.ID, StatusActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDisposed
	}
	return nil
}
