package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/feetrack/feetrack/internal/domain/audit"
	"github.com/feetrack/feetrack/internal/domain/consultation"
	"github.com/feetrack/feetrack/internal/domain/doctor"
	"github.com/feetrack/feetrack/internal/platform/db"
)

// maxRetries bounds how often a mutation is retried after losing an
// optimistic-lock race. Each retry re-reads the claim from scratch.
const maxRetries = 3

type Service struct {
	claims        Repository
	audits        audit.Repository
	consultations consultation.Repository
	doctors       doctor.Repository
	runTx         db.TxRunner
	defaultPayout decimal.Decimal
}

func NewService(claims Repository, audits audit.Repository, consultations consultation.Repository, doctors doctor.Repository, runTx db.TxRunner) *Service {
	return &Service{
		claims:        claims,
		audits:        audits,
		consultations: consultations,
		doctors:       doctors,
		runTx:         runTx,
		defaultPayout: DefaultPayoutPercent,
	}
}

// SetDefaultPayoutPercent overrides the built-in default share.
func (s *Service) SetDefaultPayoutPercent(pct decimal.Decimal) {
	s.defaultPayout = pct
}

// payoutPercentFor resolves the share for the doctor behind the claim's
// consultation, falling back to the service default.
func (s *Service) payoutPercentFor(ctx context.Context, consultationID uuid.UUID) (decimal.Decimal, error) {
	cons, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("load consultation: %w", err)
	}
	doc, err := s.doctors.GetByID(ctx, cons.DoctorID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("load doctor: %w", err)
	}
	if doc.PayoutPercent != nil {
		return *doc.PayoutPercent, nil
	}
	return s.defaultPayout, nil
}

func (s *Service) journal(ctx context.Context, claimID uuid.UUID, kind, description string, detail audit.Detail, actorID string) error {
	e := &audit.Entry{
		ClaimID:     claimID,
		Kind:        kind,
		Description: description,
		Detail:      detail,
	}
	if actorID != "" {
		e.ActorID = &actorID
	}
	return s.audits.Append(ctx, e)
}

// mutate runs fn inside a transaction with the claim row locked, retrying
// on version conflicts from a fresh read.
func (s *Service) mutate(ctx context.Context, op string, id uuid.UUID, fn func(ctx context.Context, c *Claim) error) (*Claim, error) {
	var result *Claim
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.runTx(ctx, func(ctx context.Context) error {
			c, err := s.claims.GetForUpdate(ctx, id)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return E(op, id, KindNotFound, "claim does not exist")
				}
				return err
			}
			if err := fn(ctx, c); err != nil {
				return err
			}
			result = c
			return nil
		})
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, E(op, id, KindConflict, fmt.Sprintf("gave up after %d attempts", maxRetries))
}

// CreateInput describes a new claim. Monetary fields come from the
// consultation; only identifiers and free text are caller-supplied.
type CreateInput struct {
	ConsultationID uuid.UUID `json:"consultation_id"`
	GuideNumber    *string   `json:"guide_number,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
}

// Create opens a claim for an insurance consultation. The gross value is
// the consultation's billed amount; one claim per consultation.
func (s *Service) Create(ctx context.Context, in CreateInput, actorID string) (*Claim, error) {
	const op = "claim.Create"

	var c *Claim
	err := s.runTx(ctx, func(ctx context.Context) error {
		cons, err := s.consultations.GetByID(ctx, in.ConsultationID)
		if err != nil {
			return E(op, uuid.Nil, KindNotFound, fmt.Sprintf("consultation %s not found", in.ConsultationID))
		}
		if cons.PayerType != consultation.PayerInsurance || cons.PlanID == nil {
			return E(op, uuid.Nil, KindInvalidTransition, "claims require an insurance consultation with a plan")
		}
		if cons.HasClaim {
			return E(op, uuid.Nil, KindAlreadyExists, fmt.Sprintf("consultation %s already has a claim", cons.ID))
		}
		if cons.BilledAmount.Sign() < 0 {
			return E(op, uuid.Nil, KindInvalidAmount, "billed amount must not be negative")
		}

		pct, err := s.payoutPercentFor(ctx, cons.ID)
		if err != nil {
			return err
		}

		net, payout := Recompute(cons.BilledAmount, decimal.Zero, pct)
		c = &Claim{
			ConsultationID: cons.ID,
			PlanID:         *cons.PlanID,
			Status:         StatusPending,
			GrossValue:     cons.BilledAmount,
			RejectedValue:  decimal.Zero,
			NetValue:       net,
			PayoutValue:    payout,
			RecoveredValue: decimal.Zero,
			GuideNumber:    in.GuideNumber,
			Notes:          in.Notes,
		}
		if err := s.claims.Create(ctx, c); err != nil {
			return err
		}
		if err := s.consultations.SetHasClaim(ctx, cons.ID, true); err != nil {
			return err
		}
		return s.journal(ctx, c.ID, audit.KindCreated, "claim created",
			audit.NewDetail().NewValue(StatusPending).Set("gross_value", c.GrossValue.StringFixed(2)),
			actorID)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Submit sends a PENDING claim to the payer.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, actorID string) (*Claim, error) {
	const op = "claim.Submit"
	return s.mutate(ctx, op, id, func(ctx context.Context, c *Claim) error {
		if c.Status != StatusPending {
			return E(op, id, KindInvalidTransition, fmt.Sprintf("cannot submit a %s claim", c.Status))
		}
		old := c.Status
		c.Status = StatusSubmitted
		if err := s.claims.Update(ctx, c); err != nil {
			return err
		}
		return s.journal(ctx, id, audit.KindStatusChanged, "claim submitted to payer",
			audit.NewDetail().OldValue(old).NewValue(c.Status), actorID)
	})
}

// MarkPaid settles a SUBMITTED claim in full. The payer's settlement date
// may differ from the day it is recorded, so paidAt is caller-supplied and
// falls back to now.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, paidAt *time.Time, actorID string) (*Claim, error) {
	const op = "claim.MarkPaid"
	return s.mutate(ctx, op, id, func(ctx context.Context, c *Claim) error {
		if c.Status != StatusSubmitted {
			return E(op, id, KindInvalidTransition, fmt.Sprintf("cannot pay a %s claim", c.Status))
		}
		old := c.Status
		when := time.Now()
		if paidAt != nil {
			when = *paidAt
		}
		c.Status = StatusPaid
		c.PaidAt = &when
		if err := s.claims.Update(ctx, c); err != nil {
			return err
		}
		return s.journal(ctx, id, audit.KindStatusChanged, "claim paid",
			audit.NewDetail().OldValue(old).NewValue(c.Status), actorID)
	})
}

// Cancel withdraws a claim from the flow. Monetary values stay frozen as a
// record of what was in play. Paid claims cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason, actorID string) (*Claim, error) {
	const op = "claim.Cancel"
	return s.mutate(ctx, op, id, func(ctx context.Context, c *Claim) error {
		if c.Status == StatusPaid {
			return E(op, id, KindInvalidTransition, "paid claims cannot be cancelled")
		}
		if c.Status == StatusCancelled {
			return E(op, id, KindInvalidTransition, "claim is already cancelled")
		}
		old := c.Status
		c.Status = StatusCancelled
		if err := s.claims.Update(ctx, c); err != nil {
			return err
		}
		return s.journal(ctx, id, audit.KindStatusChanged, "claim cancelled",
			audit.NewDetail().OldValue(old).NewValue(c.Status).Reason(reason), actorID)
	})
}

// RegisterRejection records the payer's rejection. It is legal from any
// state except PAID and CANCELLED. A zero value clears the rejection and
// sends the claim back to PENDING for rework; any positive value marks it
// REJECTED and discards the previous appeal sub-state, since an appeal
// answers one specific rejection.
func (s *Service) RegisterRejection(ctx context.Context, id uuid.UUID, value decimal.Decimal, reason, actorID string) (*Claim, error) {
	const op = "claim.RegisterRejection"
	return s.mutate(ctx, op, id, func(ctx context.Context, c *Claim) error {
		if c.Status == StatusPaid || c.Status == StatusCancelled {
			return E(op, id, KindInvalidTransition, fmt.Sprintf("cannot register a rejection on a %s claim", c.Status))
		}
		if value.Sign() < 0 {
			return E(op, id, KindInvalidAmount, "rejected value must not be negative")
		}
		if value.GreaterThan(c.GrossValue) {
			return E(op, id, KindInvalidAmount, "rejected value cannot exceed gross value")
		}

		pct, err := s.payoutPercentFor(ctx, c.ConsultationID)
		if err != nil {
			return err
		}

		oldValue := c.RejectedValue
		c.RejectedValue = value
		c.NetValue, c.PayoutValue = Recompute(c.GrossValue, c.RejectedValue, pct)

		c.AppealFiled = false
		c.AppealStatus = nil
		c.AppealReason = nil
		c.AppealFiledAt = nil
		c.RecoveredValue = decimal.Zero

		if value.Sign() == 0 {
			c.Status = StatusPending
			c.RejectionReason = nil
			c.RejectedAt = nil
		} else {
			now := time.Now()
			c.Status = StatusRejected
			c.RejectedAt = &now
			if reason != "" {
				c.RejectionReason = &reason
			}
		}

		if err := s.claims.Update(ctx, c); err != nil {
			return err
		}
		return s.journal(ctx, id, audit.KindRejectionRegistered, "rejection registered",
			audit.NewDetail().
				OldValue(oldValue.StringFixed(2)).
				NewValue(c.RejectedValue.StringFixed(2)).
				Reason(reason),
			actorID)
	})
}

// FileAppeal opens an appeal against the current rejection. One appeal per
// rejection: filing again, even after a resolution, needs a fresh rejection
// first.
func (s *Service) FileAppeal(ctx context.Context, id uuid.UUID, reason, actorID string) (*Claim, error) {
	const op = "claim.FileAppeal"
	return s.mutate(ctx, op, id, func(ctx context.Context, c *Claim) error {
		if c.Status != StatusRejected {
			return E(op, id, KindInvalidTransition, fmt.Sprintf("cannot appeal a %s claim", c.Status))
		}
		if c.AppealFiled {
			return E(op, id, KindAppealAlreadyOpen, "an appeal already exists for this rejection")
		}

		now := time.Now()
		status := AppealPending
		c.AppealFiled = true
		c.AppealStatus = &status
		c.AppealFiledAt = &now
		if reason != "" {
			c.AppealReason = &reason
		}

		if err := s.claims.Update(ctx, c); err != nil {
			return err
		}
		return s.journal(ctx, id, audit.KindAppealFiled, "appeal filed",
			audit.NewDetail().NewValue(AppealPending).Reason(reason), actorID)
	})
}

// ResolveAppeal records the payer's decision on an open appeal. The
// recovered value moves out of the rejected bucket; when nothing remains
// rejected the claim settles as PAID, otherwise it stays REJECTED with the
// residual.
func (s *Service) ResolveAppeal(ctx context.Context, id uuid.UUID, outcome string, recovered decimal.Decimal, actorID string) (*Claim, error) {
	const op = "claim.ResolveAppeal"
	return s.mutate(ctx, op, id, func(ctx context.Context, c *Claim) error {
		if !c.HasOpenAppeal() {
			return E(op, id, KindNoOpenAppeal, "no appeal is awaiting a decision")
		}

		switch outcome {
		case AppealFullyAccepted:
			recovered = c.RejectedValue
		case AppealDenied:
			recovered = decimal.Zero
		case AppealPartiallyAccepted:
			if recovered.Sign() <= 0 || recovered.GreaterThanOrEqual(c.RejectedValue) {
				return E(op, id, KindInvalidRecoveredValue,
					"partially accepted appeals need a recovered value between zero and the rejected value, exclusive")
			}
		default:
			return E(op, id, KindInvalidRecoveredValue, fmt.Sprintf("unknown appeal outcome: %s", outcome))
		}

		pct, err := s.payoutPercentFor(ctx, c.ConsultationID)
		if err != nil {
			return err
		}

		oldRejected := c.RejectedValue
		c.RejectedValue = c.RejectedValue.Sub(recovered)
		c.RecoveredValue = recovered
		c.AppealStatus = &outcome
		c.NetValue, c.PayoutValue = Recompute(c.GrossValue, c.RejectedValue, pct)

		if c.RejectedValue.Sign() == 0 {
			now := time.Now()
			c.Status = StatusPaid
			c.PaidAt = &now
		} else {
			c.Status = StatusRejected
		}

		if err := s.claims.Update(ctx, c); err != nil {
			return err
		}
		return s.journal(ctx, id, audit.KindAppealResolved, "appeal resolved",
			audit.NewDetail().
				OldValue(oldRejected.StringFixed(2)).
				NewValue(c.RejectedValue.StringFixed(2)).
				Set("outcome", outcome).
				Set("recovered_value", recovered.StringFixed(2)),
			actorID)
	})
}

// GrossCorrection is one reconciliation applied by CorrectGrossValues.
type GrossCorrection struct {
	ClaimID  uuid.UUID       `json:"claim_id"`
	OldGross decimal.Decimal `json:"old_gross"`
	NewGross decimal.Decimal `json:"new_gross"`
}

// CorrectGrossValues is an administrative reconciliation: claims whose
// gross drifted from the consultation's billed amount get the billed amount
// written back. Derived values are deliberately left alone so the drift
// stays visible until the next recomputing operation.
func (s *Service) CorrectGrossValues(ctx context.Context, actorID string) ([]GrossCorrection, error) {
	mismatches, err := s.claims.ListGrossMismatches(ctx)
	if err != nil {
		return nil, err
	}

	corrections := make([]GrossCorrection, 0, len(mismatches))
	for _, m := range mismatches {
		_, err := s.mutate(ctx, "claim.CorrectGrossValues", m.ClaimID, func(ctx context.Context, c *Claim) error {
			if c.GrossValue.Equal(m.BilledAmount) {
				return nil
			}
			// The claims table bounds rejected_value by gross_value. A billed
			// amount below the current rejection cannot be written back; it
			// needs a rejection update first.
			if m.BilledAmount.LessThan(c.RejectedValue) {
				return nil
			}
			old := c.GrossValue
			c.GrossValue = m.BilledAmount
			if err := s.claims.Update(ctx, c); err != nil {
				return err
			}
			corrections = append(corrections, GrossCorrection{ClaimID: c.ID, OldGross: old, NewGross: c.GrossValue})
			return s.journal(ctx, c.ID, audit.KindGrossCorrected, "gross value reconciled with consultation",
				audit.NewDetail().OldValue(old.StringFixed(2)).NewValue(c.GrossValue.StringFixed(2)),
				actorID)
		})
		if err != nil {
			return nil, err
		}
	}
	return corrections, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, err := s.claims.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, E("claim.Get", id, KindNotFound, "claim does not exist")
	}
	return c, err
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Claim, int, error) {
	return s.claims.List(ctx, f, limit, offset)
}

func (s *Service) Stats(ctx context.Context, f ListFilter) (*Stats, error) {
	return s.claims.Stats(ctx, f)
}

func (s *Service) ReportByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*DoctorReportRow, error) {
	return s.claims.ReportByDoctor(ctx, doctorID)
}

// History returns the claim's audit trail, newest first.
func (s *Service) History(ctx context.Context, id uuid.UUID, limit, offset int) ([]*audit.Entry, int, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.audits.ListForClaim(ctx, id, limit, offset)
}
