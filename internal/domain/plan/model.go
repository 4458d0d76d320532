package plan

import (
	"time"

	"github.com/google/uuid"
)

// Plan maps to the insurance_plans table. ANSCode is the payer's registry
// number with the national insurance agency.
type Plan struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	PlanType  *string   `db:"plan_type" json:"plan_type,omitempty"`
	ANSCode   *string   `db:"ans_code" json:"ans_code,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
