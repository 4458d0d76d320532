package claim

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinels the storage layer reports back. Services wrap them into typed
// errors with the operation name attached.
var (
	ErrNotFound        = errors.New("claim not found")
	ErrVersionConflict = errors.New("claim was modified concurrently")
)

// ListFilter narrows List and Stats. Zero values mean "no filter".
type ListFilter struct {
	Status       string
	PlanID       *uuid.UUID
	DoctorID     *uuid.UUID
	HasRejection *bool
	From         *time.Time
	To           *time.Time
}

type Repository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	GetByConsultation(ctx context.Context, consultationID uuid.UUID) (*Claim, error)
	// GetForUpdate locks the row for the remainder of the surrounding
	// transaction. Only valid inside one.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Claim, error)
	// Update persists all mutable fields, guarded by c.VersionID. On success
	// the version on c is bumped; a stale version yields ErrVersionConflict.
	Update(ctx context.Context, c *Claim) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Claim, int, error)
	Stats(ctx context.Context, f ListFilter) (*Stats, error)
	ReportByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*DoctorReportRow, error)
	// ListGrossMismatches returns claims whose gross value differs from the
	// billed amount of their consultation.
	ListGrossMismatches(ctx context.Context) ([]*GrossMismatch, error)
}
