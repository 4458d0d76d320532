package consultation

import (
	"context"
	"fmt"
	"strings"

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

const cols = `id, doctor_id, patient_id, plan_id, payer_type, consultation_date,
	billed_amount, protocol, has_claim, notes, created_at, updated_at`

func scan(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(&c.ID, &c.DoctorID, &c.PatientID, &c.PlanID, &c.PayerType, &c.Date,
		&c.BilledAmount, &c.Protocol, &c.HasClaim, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultations (id, doctor_id, patient_id, plan_id, payer_type,
			consultation_date, billed_amount, protocol, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.DoctorID, c.PatientID, c.PlanID, c.PayerType,
		c.Date, c.BilledAmount, c.Protocol, c.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return scan(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM consultations WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, c *Consultation) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE consultations SET doctor_id=$2, patient_id=$3, plan_id=$4, payer_type=$5,
			consultation_date=$6, billed_amount=$7, protocol=$8, notes=$9, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.DoctorID, c.PatientID, c.PlanID, c.PayerType,
		c.Date, c.BilledAmount, c.Protocol, c.Notes)
	return err
}

func (r *repoPG) SetHasClaim(ctx context.Context, id uuid.UUID, hasClaim bool) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE consultations SET has_claim=$2, updated_at=NOW() WHERE id = $1`, id, hasClaim)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM consultations WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Consultation, int, error) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.DoctorID != nil {
		add("doctor_id = $%d", *f.DoctorID)
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.PayerType != "" {
		add("payer_type = $%d", f.PayerType)
	}
	if f.From != nil {
		add("consultation_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("consultation_date <= $%d", *f.To)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM consultations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+cols+` FROM consultations%s ORDER BY consultation_date DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Consultation
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}
