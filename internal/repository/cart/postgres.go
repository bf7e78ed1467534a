package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-api/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) GetByIdentity(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	const byUser = `
SELECT id::text, user_id, session_id, expires_at, created_at, updated_at
FROM carts
WHERE user_id = $1 AND expires_at > now()
`
	const bySession = `
SELECT id::text, user_id, session_id, expires_at, created_at, updated_at
FROM carts
WHERE session_id = $1 AND expires_at > now()
`
	q, owner := byUser, identity.UserID
	if !identity.IsUser() {
		q, owner = bySession, identity.SessionID
	}

	var cart domain.Cart
	var userID, sessionID *string
	err := r.pool.QueryRow(ctx, q, owner).Scan(
		&cart.ID,
		&userID,
		&sessionID,
		&cart.ExpiresAt,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if userID != nil {
		cart.UserID = *userID
	}
	if sessionID != nil {
		cart.SessionID = *sessionID
	}

	const itemsQuery = `
SELECT product_id::text, variant_id::text, quantity, price_cents, added_at
FROM cart_items
WHERE cart_id = $1
ORDER BY position ASC
`
	rows, err := r.pool.Query(ctx, itemsQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		var variantID *string
		if err := rows.Scan(&item.ProductID, &variantID, &item.Quantity, &item.PriceCents, &item.AddedAt); err != nil {
			return nil, err
		}
		if variantID != nil {
			item.VariantID = *variantID
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &cart, nil
}

// Save upserts the cart row and replaces its item list wholesale. Cart
// mutation is deliberately last-write-wins on the whole item array.
func (r *postgresRepo) Save(ctx context.Context, cart *domain.Cart) error {
	if err := cart.Identity().Validate(); err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// An expired cart for the same identity would collide with the
	// one-live-cart unique index; it reads as absent, so drop it here.
	if cart.UserID != "" {
		if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE user_id = $1 AND expires_at <= now() AND id <> $2`, cart.UserID, cart.ID); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE session_id = $1 AND expires_at <= now() AND id <> $2`, cart.SessionID, cart.ID); err != nil {
			return err
		}
	}

	var userID, sessionID *string
	if cart.UserID != "" {
		userID = &cart.UserID
	}
	if cart.SessionID != "" {
		sessionID = &cart.SessionID
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO carts (id, user_id, session_id, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (id) DO UPDATE SET expires_at = EXCLUDED.expires_at, updated_at = now()
`, cart.ID, userID, sessionID, cart.ExpiresAt); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
		return err
	}

	for i, item := range cart.Items {
		var variantID *string
		if item.VariantID != "" {
			v := item.VariantID
			variantID = &v
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO cart_items (id, cart_id, position, product_id, variant_id, quantity, price_cents, added_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, uuid.New().String(), cart.ID, i, item.ProductID, variantID, item.Quantity, item.PriceCents, item.AddedAt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *postgresRepo) Delete(ctx context.Context, cartID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	return err
}

func (r *postgresRepo) DeleteExpired(ctx context.Context) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
