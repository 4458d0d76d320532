package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feetrack/feetrack/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) Append(ctx context.Context, e *Entry) error {
	detail := e.Detail
	if detail == nil {
		detail = map[string]string{}
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO claim_audit (claim_id, kind, description, detail, actor_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		e.ClaimID, e.Kind, e.Description, detail, e.ActorID).
		Scan(&e.ID, &e.CreatedAt)
}

func (r *repoPG) ListForClaim(ctx context.Context, claimID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM claim_audit WHERE claim_id = $1`, claimID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, claim_id, kind, description, detail, actor_id, created_at
		FROM claim_audit
		WHERE claim_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, claimID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ClaimID, &e.Kind, &e.Description, &e.Detail, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &e)
	}
	return items, total, rows.Err()
}
