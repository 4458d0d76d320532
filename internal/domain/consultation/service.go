package consultation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	consultations Repository
}

func NewService(consultations Repository) *Service {
	return &Service{consultations: consultations}
}

func validate(c *Consultation) error {
	if c.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if c.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if c.Date.IsZero() {
		return fmt.Errorf("consultation_date is required")
	}
	if c.BilledAmount.Sign() < 0 {
		return fmt.Errorf("billed_amount must not be negative")
	}
	switch c.PayerType {
	case PayerInsurance:
		if c.PlanID == nil {
			return fmt.Errorf("plan_id is required for insurance consultations")
		}
	case PayerPrivate:
	default:
		return fmt.Errorf("invalid payer_type: %s", c.PayerType)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, c *Consultation) error {
	if c.PayerType == "" {
		c.PayerType = PayerInsurance
	}
	if err := validate(c); err != nil {
		return err
	}
	return s.consultations.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.consultations.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, c *Consultation) error {
	if err := validate(c); err != nil {
		return err
	}
	return s.consultations.Update(ctx, c)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.HasClaim {
		return fmt.Errorf("consultation has an open claim and cannot be deleted")
	}
	return s.consultations.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Consultation, int, error) {
	return s.consultations.List(ctx, f, limit, offset)
}
