package audit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	ListForClaim(ctx context.Context, claimID uuid.UUID, limit, offset int) ([]*Entry, int, error)
}
