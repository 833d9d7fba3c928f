package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service keeps the physician and lab order queue of the ward.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates and stores a new order. Physician orders start open,
// lab orders start pending with a routine priority unless one is given.
func (s *Service) Create(ctx context.Context, o *Order) error {
	o.Description = strings.TrimSpace(o.Description)
	if o.Description == "" {
		return fmt.Errorf("description is required")
	}
	if o.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if o.Kind == "" {
		o.Kind = KindDoctor
	}
	if !o.Kind.Valid() {
		return fmt.Errorf("unknown order kind %q", o.Kind)
	}
	o.Category = strings.TrimSpace(o.Category)
	if o.Status == "" || o.Status == StatusDone {
		o.Status = StatusOpen
		if o.Kind == KindLab {
			o.Status = StatusPending
		}
	}
	if !o.Status.Valid() {
		return fmt.Errorf("unknown order status %q", o.Status)
	}
	if o.Kind == KindLab && o.Category == "" {
		o.Category = DefaultLabPriority
	}
	o.CompletedAt = nil
	o.CompletedBy = nil
	return s.repo.Create(ctx, o)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Order, error) {
	return s.repo.List(ctx, f)
}

// Toggle closes an order that is not done and reopens a done one.
func (s *Service) Toggle(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Done() {
		o.Status = StatusOpen
		o.CompletedAt = nil
		o.CompletedBy = nil
	} else {
		now := s.now()
		o.Status = StatusDone
		o.CompletedAt = &now
		o.CompletedBy = actor
	}
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}
