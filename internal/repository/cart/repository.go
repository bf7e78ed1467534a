package cart

import (
	"context"

	"storefront-api/internal/domain"
)

// Repository owns at most one live cart per identity. Reads treat expired
// carts as absent; only Save and DeleteExpired touch expired rows.
type Repository interface {
	GetByIdentity(ctx context.Context, identity domain.Identity) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, cartID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
