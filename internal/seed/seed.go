package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-api/internal/domain"
	tokenrepo "storefront-api/internal/repository/token"
)

type productSeed struct {
	SKU                string
	Name               string
	Description        string
	PriceCents         int64
	DiscountPriceCents int64
	Images             string
	Variants           []variantSeed
}

type variantSeed struct {
	SKU        string
	Name       string
	PriceCents int64
	Stock      int
	Image      string
	Attributes string
}

// Apply inserts basic seed data for manual testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	products := []productSeed{
		{
			SKU:         "SKU-TSHIRT",
			Name:        "Basic T-Shirt",
			Description: "Soft cotton tee",
			PriceCents:  1999,
			Images:      `[{"url":"https://img.example.com/tshirt-front.jpg","isPrimary":true},{"url":"https://img.example.com/tshirt-back.jpg"}]`,
			Variants: []variantSeed{
				{SKU: "SKU-TSHIRT-S", Name: "Small", PriceCents: 1999, Stock: 25, Attributes: `{"size":"S"}`},
				{SKU: "SKU-TSHIRT-M", Name: "Medium", PriceCents: 1999, Stock: 40, Attributes: `{"size":"M"}`},
				{SKU: "SKU-TSHIRT-L", Name: "Large", PriceCents: 2199, Stock: 8, Attributes: `{"size":"L"}`},
			},
		},
		{
			SKU:                "SKU-MUG",
			Name:               "Ceramic Mug",
			Description:        "Mug with logo",
			PriceCents:         1299,
			DiscountPriceCents: 999,
			Images:             `[{"url":"https://img.example.com/mug.jpg","isPrimary":true}]`,
		},
		{
			SKU:        "SKU-POSTER",
			Name:       "Poster",
			PriceCents: 899,
			Images:     `[]`,
		},
	}

	for _, p := range products {
		var productID string
		if err := pool.QueryRow(ctx, `
INSERT INTO products (name, description, sku, status, price_cents, discount_price_cents, images)
VALUES ($1, NULLIF($2, ''), $3, 'active', $4, $5, $6::jsonb)
ON CONFLICT (sku) DO UPDATE SET name = EXCLUDED.name, price_cents = EXCLUDED.price_cents
RETURNING id::text
`, p.Name, p.Description, p.SKU, p.PriceCents, p.DiscountPriceCents, p.Images).Scan(&productID); err != nil {
			return fmt.Errorf("seed product %s: %w", p.SKU, err)
		}

		for _, v := range p.Variants {
			attrs := v.Attributes
			if attrs == "" {
				attrs = "{}"
			}
			if _, err := pool.Exec(ctx, `
INSERT INTO product_variants (product_id, name, sku, price_cents, stock, image, attributes)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
ON CONFLICT (sku) DO UPDATE SET stock = EXCLUDED.stock, price_cents = EXCLUDED.price_cents
`, productID, v.Name, v.SKU, v.PriceCents, v.Stock, v.Image, attrs); err != nil {
				return fmt.Errorf("seed variant %s: %w", v.SKU, err)
			}
		}
	}

	// A long-lived demo token so authenticated flows can be exercised by hand.
	tokens := tokenrepo.NewPostgres(pool)
	err := tokens.Create(ctx, tokenrepo.Token{
		Token:     "demo-user-token",
		UserID:    "demo-user",
		ExpiresAt: time.Now().Add(365 * 24 * time.Hour),
	})
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("seed token: %w", err)
	}

	return nil
}
