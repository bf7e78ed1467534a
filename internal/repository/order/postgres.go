package order

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const orderColumns = `
id::text, order_number, user_id, session_id, status, payment_method, payment_status,
subtotal_cents, tax_cents, shipping_cents, discount_cents, total_cents,
shipping_address, billing_address, notes, internal_notes, tracking_number, cancelled_reason,
refunded_amount_cents, cancelled_at, shipped_at, delivered_at, refunded_at, created_at, updated_at`

// Create allocates the next order number for the year, conditionally
// decrements variant stock, inserts the order and deletes the source cart,
// all in one transaction. A concurrent allocation of the same number
// surfaces as ErrConflict; callers retry.
func (r *postgresRepo) Create(ctx context.Context, o *domain.Order, sourceCartID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	prefix := domain.OrderNumberPrefix(now.Year())

	var seq int
	if err := tx.QueryRow(ctx, `
SELECT COALESCE(MAX(split_part(order_number, '-', 3)::int), 0) + 1
FROM orders
WHERE order_number LIKE $1 || '%'
`, prefix).Scan(&seq); err != nil {
		return err
	}
	o.OrderNumber = domain.FormatOrderNumber(now.Year(), seq)

	for _, item := range o.Items {
		if item.VariantID == "" {
			continue
		}
		cmd, err := tx.Exec(ctx, `
UPDATE product_variants
SET stock = stock - $2
WHERE id = $1 AND stock >= $2
`, item.VariantID, item.Quantity)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return domain.Validationf("INSUFFICIENT_STOCK",
				"insufficient stock for %s", item.SKU)
		}
	}

	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.CreatedAt = now
	o.UpdatedAt = now

	var userID, sessionID *string
	if o.UserID != "" {
		userID = &o.UserID
	}
	if o.SessionID != "" {
		sessionID = &o.SessionID
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO orders (
    id, order_number, user_id, session_id, status, payment_method, payment_status,
    subtotal_cents, tax_cents, shipping_cents, discount_cents, total_cents,
    shipping_address, billing_address, notes, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
`, o.ID, o.OrderNumber, userID, sessionID, o.Status, o.PaymentMethod, o.PaymentStatus,
		o.SubtotalCents, o.TaxCents, o.ShippingCents, o.DiscountCents, o.TotalCents,
		o.ShippingAddress, o.BillingAddress, o.Notes, now); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrConflict
		}
		return err
	}

	for i, item := range o.Items {
		var variantID *string
		if item.VariantID != "" {
			v := item.VariantID
			variantID = &v
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO order_items (
    id, order_id, position, product_id, variant_id, product_name, variant_name,
    sku, quantity, unit_price_cents, total_price_cents, image, attributes
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`, uuid.New().String(), o.ID, i, item.ProductID, variantID, item.ProductName, item.VariantName,
			item.SKU, item.Quantity, item.UnitPriceCents, item.TotalPriceCents, item.Image, item.Attributes); err != nil {
			return err
		}
	}

	if sourceCartID != "" {
		if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, sourceCartID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Printf("order repo: created number=%s items=%d total_cents=%d", o.OrderNumber, len(o.Items), o.TotalCents)
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	// The id is a client-supplied reference; a malformed uuid can never
	// match a row, it must not surface as a query error.
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return r.fetchOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *postgresRepo) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.fetchOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := r.fetchItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// Update writes lifecycle fields only; items, addresses, totals and the
// order number are write-once.
func (r *postgresRepo) Update(ctx context.Context, o *domain.Order) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE orders SET
    status = $2,
    payment_status = $3,
    tracking_number = $4,
    internal_notes = $5,
    cancelled_reason = $6,
    refunded_amount_cents = $7,
    cancelled_at = $8,
    shipped_at = $9,
    delivered_at = $10,
    refunded_at = $11,
    updated_at = now()
WHERE id = $1
`, o.ID, o.Status, o.PaymentStatus, o.TrackingNumber, o.InternalNotes, o.CancelledReason,
		o.RefundedAmountCents, o.CancelledAt, o.ShippedAt, o.DeliveredAt, o.RefundedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) fetchOrder(ctx context.Context, q string, arg interface{}) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, q, arg)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	items, err := r.fetchItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *postgresRepo) fetchItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
SELECT product_id::text, variant_id::text, product_name, variant_name, sku,
       quantity, unit_price_cents, total_price_cents, image, attributes
FROM order_items
WHERE order_id = $1
ORDER BY position ASC
`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		var variantID *string
		if err := rows.Scan(
			&item.ProductID,
			&variantID,
			&item.ProductName,
			&item.VariantName,
			&item.SKU,
			&item.Quantity,
			&item.UnitPriceCents,
			&item.TotalPriceCents,
			&item.Image,
			&item.Attributes,
		); err != nil {
			return nil, err
		}
		if variantID != nil {
			item.VariantID = *variantID
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var userID, sessionID *string
	if err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&userID,
		&sessionID,
		&o.Status,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.SubtotalCents,
		&o.TaxCents,
		&o.ShippingCents,
		&o.DiscountCents,
		&o.TotalCents,
		&o.ShippingAddress,
		&o.BillingAddress,
		&o.Notes,
		&o.InternalNotes,
		&o.TrackingNumber,
		&o.CancelledReason,
		&o.RefundedAmountCents,
		&o.CancelledAt,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.RefundedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if userID != nil {
		o.UserID = *userID
	}
	if sessionID != nil {
		o.SessionID = *sessionID
	}
	return &o, nil
}
