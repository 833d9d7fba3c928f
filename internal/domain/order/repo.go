package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("order not found")

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// Update persists the status and completion fields.
	Update(ctx context.Context, o *Order) error
	List(ctx context.Context, f Filter) ([]*Order, error)
}
