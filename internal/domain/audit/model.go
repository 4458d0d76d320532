package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry kinds. One per claim lifecycle event.
const (
	KindCreated             = "created"
	KindStatusChanged       = "status_changed"
	KindRejectionRegistered = "rejection_registered"
	KindAppealFiled         = "appeal_filed"
	KindAppealResolved      = "appeal_resolved"
	KindGrossCorrected      = "gross_corrected"
)

// Entry is one row of a claim's append-only trail. Entries are never
// updated or deleted.
type Entry struct {
	ID          int64             `db:"id" json:"id"`
	ClaimID     uuid.UUID         `db:"claim_id" json:"claim_id"`
	Kind        string            `db:"kind" json:"kind"`
	Description string            `db:"description" json:"description"`
	Detail      map[string]string `db:"detail" json:"detail"`
	ActorID     *string           `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// Detail builds the entry payload. Writers use the fixed keys below so the
// trail stays queryable; extra keys are allowed.
type Detail map[string]string

const (
	DetailOldValue = "old_value"
	DetailNewValue = "new_value"
	DetailReason   = "reason"
)

func NewDetail() Detail { return Detail{} }

func (d Detail) OldValue(v string) Detail {
	d[DetailOldValue] = v
	return d
}

func (d Detail) NewValue(v string) Detail {
	d[DetailNewValue] = v
	return d
}

func (d Detail) Reason(v string) Detail {
	if v != "" {
		d[DetailReason] = v
	}
	return d
}

func (d Detail) Set(key, value string) Detail {
	d[key] = value
	return d
}
