package claim

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error kinds. Handlers map these onto HTTP statuses; services branch on
// them for retry decisions.
const (
	KindInvalidTransition     = "invalid_transition"
	KindInvalidAmount         = "invalid_amount"
	KindAppealAlreadyOpen     = "appeal_already_open"
	KindNoOpenAppeal          = "no_open_appeal"
	KindInvalidRecoveredValue = "invalid_recovered_value"
	KindConflict              = "conflict"
	KindNotFound              = "not_found"
	KindAlreadyExists         = "already_exists"
)

// Error is the package's typed failure. Op names the operation that failed,
// Kind classifies it, Reason is a human-readable detail.
type Error struct {
	Op      string
	ClaimID uuid.UUID
	Kind    string
	Reason  string
}

func (e *Error) Error() string {
	if e.ClaimID == uuid.Nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: claim %s: %s: %s", e.Op, e.ClaimID, e.Kind, e.Reason)
}

// E builds an *Error.
func E(op string, claimID uuid.UUID, kind, reason string) *Error {
	return &Error{Op: op, ClaimID: claimID, Kind: kind, Reason: reason}
}

// KindOf extracts the kind from err, or "" when err is not a claim error.
func KindOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err is a claim error of the given kind.
func IsKind(err error, kind string) bool {
	return KindOf(err) == kind
}
