package order

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-api/internal/domain"
	"storefront-api/internal/migrate"
)

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE order_items, orders, cart_items, carts, product_variants, products, tokens CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func seedVariant(ctx context.Context, t *testing.T, pool *pgxpool.Pool, sku string, stock int) string {
	t.Helper()
	var productID string
	if err := pool.QueryRow(ctx, `
INSERT INTO products (name, sku, price_cents) VALUES ($1, $2, 1999) RETURNING id::text
`, "Product "+sku, sku).Scan(&productID); err != nil {
		t.Fatalf("seed product %s: %v", sku, err)
	}
	var variantID string
	if err := pool.QueryRow(ctx, `
INSERT INTO product_variants (product_id, name, sku, price_cents, stock)
VALUES ($1, $2, $3, 1999, $4) RETURNING id::text
`, productID, "Variant "+sku, sku+"-V", stock).Scan(&variantID); err != nil {
		t.Fatalf("seed variant %s: %v", sku, err)
	}
	return variantID
}

func seedCartRow(ctx context.Context, t *testing.T, pool *pgxpool.Pool, sessionID string) string {
	t.Helper()
	id := uuid.New().String()
	if _, err := pool.Exec(ctx, `
INSERT INTO carts (id, session_id, expires_at) VALUES ($1, $2, now() + interval '7 days')
`, id, sessionID); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	return id
}

func variantStock(ctx context.Context, t *testing.T, pool *pgxpool.Pool, variantID string) int {
	t.Helper()
	var stock int
	if err := pool.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id = $1`, variantID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

func orderCount(ctx context.Context, t *testing.T, pool *pgxpool.Pool) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&n); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	return n
}

func draftItem(variantID string, quantity int) domain.OrderItem {
	return domain.OrderItem{
		ProductID:       uuid.New().String(),
		VariantID:       variantID,
		ProductName:     "Product",
		SKU:             "SKU-" + uuid.New().String()[:8],
		Quantity:        quantity,
		UnitPriceCents:  1999,
		TotalPriceCents: 1999 * int64(quantity),
	}
}

func draftOrder(items ...domain.OrderItem) *domain.Order {
	var subtotal int64
	for _, item := range items {
		subtotal += item.TotalPriceCents
	}
	return &domain.Order{
		SessionID:     uuid.New().String(),
		Items:         items,
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodCard,
		PaymentStatus: domain.PaymentStatusPending,
		SubtotalCents: subtotal,
		TotalCents:    subtotal,
		ShippingAddress: domain.Address{
			FullName: "Ada Lovelace", Street: "12 Analytical Way",
			City: "London", PostalCode: "EC1A", Country: "GB",
		},
		BillingAddress: domain.Address{
			FullName: "Ada Lovelace", Street: "12 Analytical Way",
			City: "London", PostalCode: "EC1A", Country: "GB",
		},
	}
}

func TestCreateAllocatesSequentialNumbers(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	year := time.Now().UTC().Year()

	for seq := 1; seq <= 3; seq++ {
		o := draftOrder(draftItem("", 1))
		if err := repo.Create(ctx, o, ""); err != nil {
			t.Fatalf("create %d: %v", seq, err)
		}
		if want := domain.FormatOrderNumber(year, seq); o.OrderNumber != want {
			t.Fatalf("order %d number = %s, want %s", seq, o.OrderNumber, want)
		}
		if !strings.HasPrefix(o.OrderNumber, domain.OrderNumberPrefix(year)) {
			t.Fatalf("number %s not scoped to year %d", o.OrderNumber, year)
		}

		got, err := repo.GetByNumber(ctx, o.OrderNumber)
		if err != nil {
			t.Fatalf("get by number: %v", err)
		}
		if got.ID != o.ID || len(got.Items) != 1 {
			t.Fatalf("round trip mismatch: %+v", got)
		}
	}
}

func TestCreateDecrementsVariantStock(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	variantID := seedVariant(ctx, t, pool, "SKU-A", 5)

	if err := repo.Create(ctx, draftOrder(draftItem(variantID, 3)), ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if stock := variantStock(ctx, t, pool, variantID); stock != 2 {
		t.Fatalf("stock = %d, want 2", stock)
	}
}

func TestCreateInsufficientStockRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	okVariant := seedVariant(ctx, t, pool, "SKU-A", 5)
	scarceVariant := seedVariant(ctx, t, pool, "SKU-B", 1)
	cartID := seedCartRow(ctx, t, pool, "s1")

	// The first line's decrement succeeds before the second one fails; the
	// rollback must undo it.
	err := repo.Create(ctx, draftOrder(draftItem(okVariant, 1), draftItem(scarceVariant, 2)), cartID)
	v := domain.AsValidation(err)
	if v == nil || v.Code != "INSUFFICIENT_STOCK" {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}

	if n := orderCount(ctx, t, pool); n != 0 {
		t.Fatalf("order row must not survive the rollback, found %d", n)
	}
	if stock := variantStock(ctx, t, pool, okVariant); stock != 5 {
		t.Fatalf("first line's decrement not rolled back: stock = %d", stock)
	}
	if stock := variantStock(ctx, t, pool, scarceVariant); stock != 1 {
		t.Fatalf("scarce stock changed: %d", stock)
	}

	var carts int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM carts WHERE id = $1`, cartID).Scan(&carts); err != nil {
		t.Fatalf("count carts: %v", err)
	}
	if carts != 1 {
		t.Fatal("source cart must survive a failed create")
	}
}

func TestCreateDuplicateNumberIsConflict(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	year := time.Now().UTC().Year()

	// A concurrent checkout holds the same freshly-allocated number in an
	// uncommitted transaction; this create blocks on the unique index and
	// loses once the other side commits.
	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO orders (id, order_number, session_id, payment_method, subtotal_cents, total_cents, shipping_address, billing_address)
VALUES ($1, $2, $3, 'card', 0, 0, '{}'::jsonb, '{}'::jsonb)
`, uuid.New().String(), domain.FormatOrderNumber(year, 1), uuid.New().String()); err != nil {
		t.Fatalf("insert racing order: %v", err)
	}
	timer := time.AfterFunc(500*time.Millisecond, func() { _ = tx.Commit(ctx) })
	defer timer.Stop()

	err = repo.Create(ctx, draftOrder(draftItem("", 1)), "")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict from the lost race, got %v", err)
	}
}

func TestCreateDeletesSourceCart(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	cartID := seedCartRow(ctx, t, pool, "s1")

	o := draftOrder(draftItem("", 2))
	if err := repo.Create(ctx, o, cartID); err != nil {
		t.Fatalf("create: %v", err)
	}

	var carts int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM carts WHERE id = $1`, cartID).Scan(&carts); err != nil {
		t.Fatalf("count carts: %v", err)
	}
	if carts != 0 {
		t.Fatal("source cart must be gone after a successful create")
	}

	if _, err := repo.GetByID(ctx, o.ID); err != nil {
		t.Fatalf("created order not readable: %v", err)
	}
}

func TestGetByIDMalformedIDIsNotFound(t *testing.T) {
	repo := NewPostgres(nil, nil)
	if _, err := repo.GetByID(context.Background(), "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for malformed id, got %v", err)
	}
}
