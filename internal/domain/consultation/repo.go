package consultation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	PayerType string
	From      *time.Time
	To        *time.Time
}

type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Update(ctx context.Context, c *Consultation) error
	SetHasClaim(ctx context.Context, id uuid.UUID, hasClaim bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Consultation, int, error)
}
