package plan

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	plans Repository
}

func NewService(plans Repository) *Service {
	return &Service{plans: plans}
}

func (s *Service) Create(ctx context.Context, p *Plan) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	p.Active = true
	return s.plans.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Plan, error) {
	return s.plans.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Plan) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.plans.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.plans.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Plan, int, error) {
	return s.plans.List(ctx, activeOnly, limit, offset)
}
