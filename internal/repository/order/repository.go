package order

import (
	"context"

	"storefront-api/internal/domain"
)

// Repository persists immutable order records. Create allocates the order
// number, decrements variant stock and deletes the source cart in a single
// transaction; Update only ever touches lifecycle fields.
type Repository interface {
	Create(ctx context.Context, o *domain.Order, sourceCartID string) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
}
