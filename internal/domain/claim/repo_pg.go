package claim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

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

const cols = `id, consultation_id, plan_id, status,
	gross_value, rejected_value, net_value, payout_value,
	guide_number, notes, rejection_reason, rejected_at,
	appeal_filed, appeal_status, appeal_reason, appeal_filed_at, recovered_value,
	paid_at, version_id, created_at, updated_at`

func scan(row pgx.Row) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.ConsultationID, &c.PlanID, &c.Status,
		&c.GrossValue, &c.RejectedValue, &c.NetValue, &c.PayoutValue,
		&c.GuideNumber, &c.Notes, &c.RejectionReason, &c.RejectedAt,
		&c.AppealFiled, &c.AppealStatus, &c.AppealReason, &c.AppealFiledAt, &c.RecoveredValue,
		&c.PaidAt, &c.VersionID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *Claim) error {
	c.ID = uuid.New()
	c.VersionID = 1
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO claims (id, consultation_id, plan_id, status,
			gross_value, rejected_value, net_value, payout_value,
			guide_number, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.ConsultationID, c.PlanID, c.Status,
		c.GrossValue, c.RejectedValue, c.NetValue, c.PayoutValue,
		c.GuideNumber, c.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return scan(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM claims WHERE id = $1`, id))
}

func (r *repoPG) GetByConsultation(ctx context.Context, consultationID uuid.UUID) (*Claim, error) {
	return scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM claims WHERE consultation_id = $1`, consultationID))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM claims WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, c *Claim) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE claims SET status=$3,
			gross_value=$4, rejected_value=$5, net_value=$6, payout_value=$7,
			guide_number=$8, notes=$9, rejection_reason=$10, rejected_at=$11,
			appeal_filed=$12, appeal_status=$13, appeal_reason=$14, appeal_filed_at=$15,
			recovered_value=$16, paid_at=$17,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $2`,
		c.ID, c.VersionID, c.Status,
		c.GrossValue, c.RejectedValue, c.NetValue, c.PayoutValue,
		c.GuideNumber, c.Notes, c.RejectionReason, c.RejectedAt,
		c.AppealFiled, c.AppealStatus, c.AppealReason, c.AppealFiledAt,
		c.RecoveredValue, c.PaidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	c.VersionID++
	return nil
}

func (f ListFilter) build() (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("c.status = $%d", f.Status)
	}
	if f.PlanID != nil {
		add("c.plan_id = $%d", *f.PlanID)
	}
	if f.DoctorID != nil {
		add("co.doctor_id = $%d", *f.DoctorID)
	}
	if f.HasRejection != nil {
		if *f.HasRejection {
			conds = append(conds, "c.rejected_value > 0")
		} else {
			conds = append(conds, "c.rejected_value = 0")
		}
	}
	if f.From != nil {
		add("c.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("c.created_at <= $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const fromClause = ` FROM claims c JOIN consultations co ON co.id = c.consultation_id`

func prefixed() string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = "c." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Claim, int, error) {
	where, args := f.build()

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+fromClause+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s%s%s ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d`,
		prefixed(), fromClause, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Claim
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Stats(ctx context.Context, f ListFilter) (*Stats, error) {
	where, args := f.build()

	var s Stats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(c.gross_value), 0),
			COALESCE(SUM(c.rejected_value), 0),
			COALESCE(SUM(c.net_value), 0),
			COALESCE(SUM(c.payout_value), 0)`+fromClause+where, args...).
		Scan(&s.Count, &s.GrossTotal, &s.RejectedTotal, &s.NetTotal, &s.PayoutTotal)
	if err != nil {
		return nil, err
	}

	if s.GrossTotal.Sign() > 0 {
		s.RejectionRate = s.RejectedTotal.Mul(decimal.NewFromInt(100)).Div(s.GrossTotal).Round(2)
	}
	return &s, nil
}

func (r *repoPG) ReportByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*DoctorReportRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, p.name, COUNT(*),
			COALESCE(SUM(c.gross_value), 0),
			COALESCE(SUM(c.net_value), 0),
			COALESCE(SUM(c.payout_value), 0)
		FROM claims c
		JOIN consultations co ON co.id = c.consultation_id
		JOIN insurance_plans p ON p.id = c.plan_id
		WHERE co.doctor_id = $1
		GROUP BY p.id, p.name
		ORDER BY p.name`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var report []*DoctorReportRow
	for rows.Next() {
		var row DoctorReportRow
		if err := rows.Scan(&row.PlanID, &row.PlanName, &row.Count,
			&row.GrossTotal, &row.NetTotal, &row.PayoutTotal); err != nil {
			return nil, err
		}
		report = append(report, &row)
	}
	return report, rows.Err()
}

func (r *repoPG) ListGrossMismatches(ctx context.Context) ([]*GrossMismatch, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT c.id, c.consultation_id, c.gross_value, co.billed_amount
		FROM claims c
		JOIN consultations co ON co.id = c.consultation_id
		WHERE c.gross_value <> co.billed_amount
		ORDER BY c.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*GrossMismatch
	for rows.Next() {
		var m GrossMismatch
		if err := rows.Scan(&m.ClaimID, &m.ConsultationID, &m.ClaimGross, &m.BilledAmount); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}
