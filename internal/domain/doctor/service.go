package doctor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	doctors Repository
}

func NewService(doctors Repository) *Service {
	return &Service{doctors: doctors}
}

func validatePayoutPercent(pct *decimal.Decimal) error {
	if pct == nil {
		return nil
	}
	if pct.Sign() <= 0 || pct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("payout_percent must be in (0, 100], got %s", pct)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, d *Doctor) error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.CRM == "" {
		return fmt.Errorf("crm is required")
	}
	if err := validatePayoutPercent(d.PayoutPercent); err != nil {
		return err
	}
	d.Active = true
	return s.doctors.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, d *Doctor) error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := validatePayoutPercent(d.PayoutPercent); err != nil {
		return err
	}
	return s.doctors.Update(ctx, d)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.doctors.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, activeOnly, limit, offset)
}
