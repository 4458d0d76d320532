package consultation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payer types. Claims can only be opened for insurance consultations;
// private ones are settled directly with the patient.
const (
	PayerInsurance = "insurance"
	PayerPrivate   = "private"
)

// Consultation maps to the consultations table. HasClaim flips when the
// claim engine opens a claim for it.
type Consultation struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	DoctorID     uuid.UUID       `db:"doctor_id" json:"doctor_id"`
	PatientID    uuid.UUID       `db:"patient_id" json:"patient_id"`
	PlanID       *uuid.UUID      `db:"plan_id" json:"plan_id,omitempty"`
	PayerType    string          `db:"payer_type" json:"payer_type"`
	Date         time.Time       `db:"consultation_date" json:"consultation_date"`
	BilledAmount decimal.Decimal `db:"billed_amount" json:"billed_amount"`
	Protocol     *string         `db:"protocol" json:"protocol,omitempty"`
	HasClaim     bool            `db:"has_claim" json:"has_claim"`
	Notes        *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}
