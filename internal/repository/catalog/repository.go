package catalog

import (
	"context"

	"storefront-api/internal/domain"
)

// Repository is the read-only inventory reference: the source of truth for
// price-at-add-time and stock-at-checkout-time.
type Repository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}
