package claim

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Claim statuses. A claim starts PENDING, is sent to the payer as
// SUBMITTED, and ends PAID, REJECTED or CANCELLED. REJECTED claims can
// return to the flow through a rejection update or an appeal.
const (
	StatusPending   = "PENDING"
	StatusSubmitted = "SUBMITTED"
	StatusPaid      = "PAID"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
)

// Appeal statuses. An appeal is PENDING from filing until the payer's
// decision comes back.
const (
	AppealPending           = "PENDING"
	AppealFullyAccepted     = "FULLY_ACCEPTED"
	AppealPartiallyAccepted = "PARTIALLY_ACCEPTED"
	AppealDenied            = "DENIED"
)

// Claim maps to the claims table. NetValue and PayoutValue are derived,
// always through Recompute, and persist alongside the inputs so reports
// never recalculate. VersionID backs optimistic locking.
type Claim struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	ConsultationID  uuid.UUID        `db:"consultation_id" json:"consultation_id"`
	PlanID          uuid.UUID        `db:"plan_id" json:"plan_id"`
	Status          string           `db:"status" json:"status"`
	GrossValue      decimal.Decimal  `db:"gross_value" json:"gross_value"`
	RejectedValue   decimal.Decimal  `db:"rejected_value" json:"rejected_value"`
	NetValue        decimal.Decimal  `db:"net_value" json:"net_value"`
	PayoutValue     decimal.Decimal  `db:"payout_value" json:"payout_value"`
	GuideNumber     *string          `db:"guide_number" json:"guide_number,omitempty"`
	Notes           *string          `db:"notes" json:"notes,omitempty"`
	RejectionReason *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RejectedAt      *time.Time       `db:"rejected_at" json:"rejected_at,omitempty"`
	AppealFiled     bool             `db:"appeal_filed" json:"appeal_filed"`
	AppealStatus    *string          `db:"appeal_status" json:"appeal_status,omitempty"`
	AppealReason    *string          `db:"appeal_reason" json:"appeal_reason,omitempty"`
	AppealFiledAt   *time.Time       `db:"appeal_filed_at" json:"appeal_filed_at,omitempty"`
	RecoveredValue  decimal.Decimal  `db:"recovered_value" json:"recovered_value"`
	PaidAt          *time.Time       `db:"paid_at" json:"paid_at,omitempty"`
	VersionID       int              `db:"version_id" json:"version_id"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// GetVersionID returns the current version.
func (c *Claim) GetVersionID() int { return c.VersionID }

// SetVersionID sets the current version.
func (c *Claim) SetVersionID(v int) { c.VersionID = v }

// HasOpenAppeal reports whether an appeal was filed and is still awaiting
// the payer's decision.
func (c *Claim) HasOpenAppeal() bool {
	return c.AppealFiled && c.AppealStatus != nil && *c.AppealStatus == AppealPending
}

// Stats aggregates a claim listing. RejectionRate is the rejected share of
// the gross total, as a percentage with two decimals.
type Stats struct {
	Count         int             `json:"count"`
	GrossTotal    decimal.Decimal `json:"gross_total"`
	RejectedTotal decimal.Decimal `json:"rejected_total"`
	NetTotal      decimal.Decimal `json:"net_total"`
	PayoutTotal   decimal.Decimal `json:"payout_total"`
	RejectionRate decimal.Decimal `json:"rejection_rate"`
}

// DoctorReportRow is one line of the per-doctor payout report, grouped by
// insurance plan.
type DoctorReportRow struct {
	PlanID      uuid.UUID       `json:"plan_id"`
	PlanName    string          `json:"plan_name"`
	Count       int             `json:"count"`
	GrossTotal  decimal.Decimal `json:"gross_total"`
	NetTotal    decimal.Decimal `json:"net_total"`
	PayoutTotal decimal.Decimal `json:"payout_total"`
}

// GrossMismatch pairs a claim whose gross value drifted from the billed
// amount on its consultation.
type GrossMismatch struct {
	ClaimID        uuid.UUID       `json:"claim_id"`
	ConsultationID uuid.UUID       `json:"consultation_id"`
	ClaimGross     decimal.Decimal `json:"claim_gross"`
	BilledAmount   decimal.Decimal `json:"billed_amount"`
}
