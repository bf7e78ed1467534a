package catalog

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-api/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	// Product ids arrive from clients; a malformed uuid can never match a
	// row, it must not surface as a query error.
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}

	const q = `
SELECT id::text, name, COALESCE(description, ''), sku, status, price_cents, discount_price_cents, images, attributes, created_at
FROM products
WHERE id = $1
`
	var p domain.Product
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.SKU,
		&p.Status,
		&p.PriceCents,
		&p.DiscountPriceCents,
		&p.Images,
		&p.Attributes,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("catalog repo: get id=%s error=%v", id, err)
		return nil, err
	}

	const variantsQuery = `
SELECT id::text, product_id::text, name, sku, price_cents, discount_price_cents, stock, image, attributes
FROM product_variants
WHERE product_id = $1
ORDER BY sku ASC
`
	rows, err := r.pool.Query(ctx, variantsQuery, p.ID)
	if err != nil {
		r.logger.Printf("catalog repo: variants id=%s error=%v", id, err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(
			&v.ID,
			&v.ProductID,
			&v.Name,
			&v.SKU,
			&v.PriceCents,
			&v.DiscountPriceCents,
			&v.Stock,
			&v.Image,
			&v.Attributes,
		); err != nil {
			return nil, err
		}
		p.Variants = append(p.Variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &p, nil
}
