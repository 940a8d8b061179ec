// Package audit exposes the audit trail written by the other modules. It is
// read-only; records are appended through shared.AuditLogger.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultLimit caps unbounded trail queries.
const DefaultLimit = 100

// Entry is one audit trail record.
type Entry struct {
	ID         int64           `json:"id"`
	SchoolID   int64           `json:"school_id"`
	ActorID    int64           `json:"actor_id"`
	Action     string          `json:"action"`
	Entity     string          `json:"entity"`
	EntityID   string          `json:"entity_id"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Filter narrows a trail query. Zero values mean no restriction.
type Filter struct {
	Entity string
	Action string
	Limit  int
}

// Repository reads the audit trail.
type Repository interface {
	List(ctx context.Context, schoolID int64, filter Filter) ([]Entry, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, schoolID int64, filter Filter) ([]Entry, error) {
	query := `SELECT id, school_id, actor_id, action, entity, entity_id, meta, occurred_at
FROM audit_logs WHERE school_id=$1`
	args := []any{schoolID}
	if filter.Entity != "" {
		args = append(args, filter.Entity)
		query += fmt.Sprintf(" AND entity=$%d", len(args))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND action=$%d", len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SchoolID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.Meta, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
