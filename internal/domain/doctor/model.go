package doctor

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Doctor maps to the doctors table. PayoutPercent overrides the service-wide
// default when set.
type Doctor struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	Name          string           `db:"name" json:"name"`
	CRM           string           `db:"crm" json:"crm"`
	Specialty     *string          `db:"specialty" json:"specialty,omitempty"`
	PayoutPercent *decimal.Decimal `db:"payout_percent" json:"payout_percent,omitempty"`
	Active        bool             `db:"active" json:"active"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}
