package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront-api/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeCartStore struct {
	byOwner map[string]*domain.Cart
	saveErr error
	deleted []string
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{byOwner: make(map[string]*domain.Cart)}
}

func ownerKey(id domain.Identity) string {
	if id.IsUser() {
		return "u:" + id.UserID
	}
	return "s:" + id.SessionID
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp
}

func (f *fakeCartStore) GetByIdentity(_ context.Context, identity domain.Identity) (*domain.Cart, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	cart, ok := f.byOwner[ownerKey(identity)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneCart(cart), nil
}

func (f *fakeCartStore) Save(_ context.Context, cart *domain.Cart) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.byOwner[ownerKey(cart.Identity())] = cloneCart(cart)
	return nil
}

func (f *fakeCartStore) Delete(_ context.Context, cartID string) error {
	f.deleted = append(f.deleted, cartID)
	for key, cart := range f.byOwner {
		if cart.ID == cartID {
			delete(f.byOwner, key)
		}
	}
	return nil
}

type fakeCatalog struct {
	products map[string]*domain.Product
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func newService(store *fakeCartStore, catalog *fakeCatalog) *Service {
	return &Service{carts: store, catalog: catalog, now: func() time.Time { return testNow }}
}

func simpleProduct() *domain.Product {
	return &domain.Product{
		ID:         "p1",
		Name:       "Mug",
		SKU:        "SKU-MUG",
		Status:     domain.ProductStatusActive,
		PriceCents: 1299,
		Images:     []domain.ProductImage{{URL: "mug.jpg", IsPrimary: true}},
	}
}

func variantProduct(stock int) *domain.Product {
	return &domain.Product{
		ID:         "p2",
		Name:       "Shirt",
		SKU:        "SKU-SHIRT",
		Status:     domain.ProductStatusActive,
		PriceCents: 1999,
		Variants: []domain.Variant{
			{ID: "v1", ProductID: "p2", Name: "Medium", SKU: "SKU-SHIRT-M", PriceCents: 1999, Stock: stock},
		},
	}
}

func TestAddItemCreatesCartLazily(t *testing.T) {
	store := newFakeCartStore()
	svc := newService(store, &fakeCatalog{products: map[string]*domain.Product{"p1": simpleProduct()}})

	view, err := svc.AddItem(context.Background(), domain.UserIdentity("u1"), AddItemInput{ProductID: "p1", Quantity: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := testNow.Add(domain.UserCartTTL); !view.ExpiresAt.Equal(want) {
		t.Fatalf("user cart expiry = %v, want %v", view.ExpiresAt, want)
	}

	view, err = svc.AddItem(context.Background(), domain.GuestIdentity("s1"), AddItemInput{ProductID: "p1", Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := testNow.Add(domain.GuestCartTTL); !view.ExpiresAt.Equal(want) {
		t.Fatalf("guest cart expiry = %v, want %v", view.ExpiresAt, want)
	}
}

func TestAddItemRejectsBadInput(t *testing.T) {
	store := newFakeCartStore()
	catalog := &fakeCatalog{products: map[string]*domain.Product{"p1": simpleProduct()}}
	svc := newService(store, catalog)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, domain.Identity{}, AddItemInput{ProductID: "p1", Quantity: 1}); domain.AsValidation(err) == nil {
		t.Fatalf("expected validation for empty identity, got %v", err)
	}
	if _, err := svc.AddItem(ctx, domain.UserIdentity("u1"), AddItemInput{ProductID: "p1", Quantity: 0}); domain.AsValidation(err) == nil {
		t.Fatalf("expected validation for zero quantity, got %v", err)
	}
	if _, err := svc.AddItem(ctx, domain.UserIdentity("u1"), AddItemInput{ProductID: "nope", Quantity: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for missing product, got %v", err)
	}

	inactive := simpleProduct()
	inactive.ID = "p3"
	inactive.Status = domain.ProductStatusDraft
	catalog.products["p3"] = inactive
	_, err := svc.AddItem(ctx, domain.UserIdentity("u1"), AddItemInput{ProductID: "p3", Quantity: 1})
	if v := domain.AsValidation(err); v == nil || v.Code != "PRODUCT_UNAVAILABLE" {
		t.Fatalf("expected PRODUCT_UNAVAILABLE, got %v", err)
	}
}

func TestAddItemVariantRules(t *testing.T) {
	store := newFakeCartStore()
	catalog := &fakeCatalog{products: map[string]*domain.Product{
		"p1": simpleProduct(),
		"p2": variantProduct(5),
	}}
	svc := newService(store, catalog)
	ctx := context.Background()
	identity := domain.UserIdentity("u1")

	_, err := svc.AddItem(ctx, identity, AddItemInput{ProductID: "p2", Quantity: 1})
	if v := domain.AsValidation(err); v == nil || v.Code != "VARIANT_REQUIRED" {
		t.Fatalf("expected VARIANT_REQUIRED, got %v", err)
	}

	_, err = svc.AddItem(ctx, identity, AddItemInput{ProductID: "p2", VariantID: "other", Quantity: 1})
	if v := domain.AsValidation(err); v == nil || v.Code != "VARIANT_MISMATCH" {
		t.Fatalf("expected VARIANT_MISMATCH for foreign variant, got %v", err)
	}

	_, err = svc.AddItem(ctx, identity, AddItemInput{ProductID: "p1", VariantID: "v1", Quantity: 1})
	if v := domain.AsValidation(err); v == nil || v.Code != "VARIANT_MISMATCH" {
		t.Fatalf("expected VARIANT_MISMATCH for variant on variantless product, got %v", err)
	}
}

func TestAddItemStockCeiling(t *testing.T) {
	store := newFakeCartStore()
	svc := newService(store, &fakeCatalog{products: map[string]*domain.Product{"p2": variantProduct(5)}})
	ctx := context.Background()
	identity := domain.UserIdentity("u1")

	_, err := svc.AddItem(ctx, identity, AddItemInput{ProductID: "p2", VariantID: "v1", Quantity: 6})
	if v := domain.AsValidation(err); v == nil || v.Code != "INSUFFICIENT_STOCK" {
		t.Fatalf("expected INSUFFICIENT_STOCK for qty 6, got %v", err)
	}

	view, err := svc.AddItem(ctx, identity, AddItemInput{ProductID: "p2", VariantID: "v1", Quantity: 5})
	if err != nil {
		t.Fatalf("qty exactly at stock should pass: %v", err)
	}
	if view.ItemCount != 5 {
		t.Fatalf("unexpected item count %d", view.ItemCount)
	}

	// The combined quantity must respect the ceiling as well.
	_, err = svc.AddItem(ctx, identity, AddItemInput{ProductID: "p2", VariantID: "v1", Quantity: 1})
	if v := domain.AsValidation(err); v == nil || v.Code != "INSUFFICIENT_STOCK" {
		t.Fatalf("expected INSUFFICIENT_STOCK for combined qty, got %v", err)
	}
}

func TestAddItemMergesDuplicateKey(t *testing.T) {
	store := newFakeCartStore()
	product := variantProduct(10)
	catalog := &fakeCatalog{products: map[string]*domain.Product{"p2": product}}
	svc := newService(store, catalog)
	ctx := context.Background()
	identity := domain.GuestIdentity("s1")

	if _, err := svc.AddItem(ctx, identity, AddItemInput{ProductID: "p2", VariantID: "v1", Quantity: 2}); err != nil {
		t.Fatalf("first add: %v", err)
	}

	// A price change between adds refreshes the snapshot on merge.
	product.Variants[0].DiscountPriceCents = 1500

	view, err := svc.AddItem(ctx, identity, AddItemInput{ProductID: "p2", VariantID: "v1", Quantity: 3})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("expected a single merged item, got %d", len(view.Items))
	}
	if view.Items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", view.Items[0].Quantity)
	}
	if view.Items[0].PriceCents != 1500 {
		t.Fatalf("expected refreshed price 1500, got %d", view.Items[0].PriceCents)
	}
}

func TestExpiredCartTreatedAsAbsent(t *testing.T) {
	store := newFakeCartStore()
	svc := newService(store, &fakeCatalog{products: map[string]*domain.Product{"p1": simpleProduct()}})
	ctx := context.Background()
	identity := domain.GuestIdentity("s1")

	// A stale row the sweep has not collected yet.
	store.byOwner[ownerKey(identity)] = &domain.Cart{
		ID:        "stale",
		SessionID: "s1",
		ExpiresAt: testNow.Add(-time.Hour),
		Items:     []domain.CartItem{{ProductID: "p1", Quantity: 1, PriceCents: 1299, AddedAt: testNow.Add(-8 * 24 * time.Hour)}},
	}

	if _, err := svc.Get(ctx, identity); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for expired cart, got %v", err)
	}

	view, err := svc.AddItem(ctx, identity, AddItemInput{ProductID: "p1", Quantity: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if view.ID == "stale" {
		t.Fatal("add must start a fresh cart, not resurrect the expired one")
	}
	if len(view.Items) != 1 || view.Items[0].Quantity != 2 {
		t.Fatalf("stale items leaked into the new cart: %+v", view.Items)
	}
	if want := testNow.Add(domain.GuestCartTTL); !view.ExpiresAt.Equal(want) {
		t.Fatalf("new cart expiry = %v, want %v", view.ExpiresAt, want)
	}
}

func TestUpdateItem(t *testing.T) {
	store := newFakeCartStore()
	product := variantProduct(5)
	svc := newService(store, &fakeCatalog{products: map[string]*domain.Product{"p2": product}})
	ctx := context.Background()
	identity := domain.UserIdentity("u1")

	if _, err := svc.UpdateItem(ctx, identity, 0, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found without a cart, got %v", err)
	}

	if _, err := svc.AddItem(ctx, identity, AddItemInput{ProductID: "p2", VariantID: "v1", Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := svc.UpdateItem(ctx, identity, 3, 1); domain.AsValidation(err) == nil {
		t.Fatalf("expected validation for out-of-bounds index, got %v", err)
	}
	if _, err := svc.UpdateItem(ctx, identity, 0, 6); domain.AsValidation(err) == nil {
		t.Fatalf("expected validation for quantity above stock, got %v", err)
	}

	// The stored price snapshot must survive a quantity change.
	product.Variants[0].PriceCents = 2999
	view, err := svc.UpdateItem(ctx, identity, 0, 4)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.Items[0].Quantity != 4 || view.Items[0].PriceCents != 1999 {
		t.Fatalf("unexpected item after update: %+v", view.Items[0])
	}
}

func TestRemoveItemPreservesOrder(t *testing.T) {
	store := newFakeCartStore()
	catalog := &fakeCatalog{products: map[string]*domain.Product{
		"p1": simpleProduct(),
		"p2": variantProduct(10),
	}}
	extra := simpleProduct()
	extra.ID = "p4"
	extra.SKU = "SKU-POSTER"
	catalog.products["p4"] = extra
	svc := newService(store, catalog)
	ctx := context.Background()
	identity := domain.GuestIdentity("s1")

	for _, in := range []AddItemInput{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", VariantID: "v1", Quantity: 1},
		{ProductID: "p4", Quantity: 1},
	} {
		if _, err := svc.AddItem(ctx, identity, in); err != nil {
			t.Fatalf("add %s: %v", in.ProductID, err)
		}
	}

	view, err := svc.RemoveItem(ctx, identity, 1)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(view.Items) != 2 || view.Items[0].ProductID != "p1" || view.Items[1].ProductID != "p4" {
		t.Fatalf("unexpected items after remove: %+v", view.Items)
	}

	if _, err := svc.RemoveItem(ctx, identity, 5); domain.AsValidation(err) == nil {
		t.Fatalf("expected validation for out-of-bounds remove, got %v", err)
	}
}

func TestClearKeepsCartAndExpiry(t *testing.T) {
	store := newFakeCartStore()
	svc := newService(store, &fakeCatalog{products: map[string]*domain.Product{"p1": simpleProduct()}})
	ctx := context.Background()
	identity := domain.UserIdentity("u1")

	if _, err := svc.AddItem(ctx, identity, AddItemInput{ProductID: "p1", Quantity: 3}); err != nil {
		t.Fatalf("add: %v", err)
	}
	before := store.byOwner[ownerKey(identity)].ExpiresAt

	if err := svc.Clear(ctx, identity); err != nil {
		t.Fatalf("clear: %v", err)
	}

	cart := store.byOwner[ownerKey(identity)]
	if cart == nil {
		t.Fatal("cart document should survive a clear")
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty items, got %d", len(cart.Items))
	}
	if !cart.ExpiresAt.Equal(before) {
		t.Fatalf("clear must not reset expiry: %v != %v", cart.ExpiresAt, before)
	}
}

func TestRecalculate(t *testing.T) {
	store := newFakeCartStore()
	gone := simpleProduct()
	gone.ID = "gone"
	retired := simpleProduct()
	retired.ID = "retired"
	scarce := variantProduct(3)
	soldOut := &domain.Product{
		ID: "soldout", Name: "Cap", SKU: "SKU-CAP", Status: domain.ProductStatusActive, PriceCents: 500,
		Variants: []domain.Variant{{ID: "vx", ProductID: "soldout", SKU: "SKU-CAP-X", PriceCents: 500, Stock: 0}},
	}
	keeper := simpleProduct()

	catalog := &fakeCatalog{products: map[string]*domain.Product{
		"p1": keeper, "gone": gone, "retired": retired, "p2": scarce, "soldout": soldOut,
	}}
	svc := newService(store, catalog)
	ctx := context.Background()
	identity := domain.UserIdentity("u1")

	for _, in := range []AddItemInput{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "gone", Quantity: 1},
		{ProductID: "retired", Quantity: 2},
		{ProductID: "p2", VariantID: "v1", Quantity: 3},
		{ProductID: "soldout", VariantID: "vx", Quantity: 1},
	} {
		if _, err := svc.AddItem(ctx, identity, in); err != nil {
			t.Fatalf("add %s: %v", in.ProductID, err)
		}
	}

	// Catalog drift after the adds: one product deleted, one retired, one
	// variant dropped to less stock than the cart holds, one sold out,
	// and the keeper's price cut.
	delete(catalog.products, "gone")
	retired.Status = domain.ProductStatusArchived
	scarce.Variants[0].Stock = 2
	soldOut.Variants[0].Stock = 0
	keeper.DiscountPriceCents = 999

	view, err := svc.Recalculate(ctx, identity)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if len(view.Items) != 2 {
		t.Fatalf("expected 2 surviving items, got %+v", view.Items)
	}
	if view.Items[0].ProductID != "p1" || view.Items[0].PriceCents != 999 {
		t.Fatalf("keeper price not refreshed: %+v", view.Items[0])
	}
	if view.Items[1].ProductID != "p2" || view.Items[1].Quantity != 2 {
		t.Fatalf("variant quantity not clamped: %+v", view.Items[1])
	}
}

func TestMergeDisjointCarts(t *testing.T) {
	store := newFakeCartStore()
	catalog := &fakeCatalog{products: map[string]*domain.Product{
		"p1": simpleProduct(),
		"p2": variantProduct(10),
	}}
	svc := newService(store, catalog)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, domain.GuestIdentity("s1"), AddItemInput{ProductID: "p1", Quantity: 1}); err != nil {
		t.Fatalf("guest add: %v", err)
	}
	if _, err := svc.AddItem(ctx, domain.GuestIdentity("s1"), AddItemInput{ProductID: "p2", VariantID: "v1", Quantity: 2}); err != nil {
		t.Fatalf("guest add: %v", err)
	}
	guestCartID := store.byOwner["s:s1"].ID

	view, err := svc.Merge(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(view.Items) != 2 || view.Items[0].ProductID != "p1" || view.Items[1].ProductID != "p2" {
		t.Fatalf("unexpected merged items: %+v", view.Items)
	}
	if _, ok := store.byOwner["s:s1"]; ok {
		t.Fatal("guest cart should be deleted after merge")
	}
	if len(store.deleted) != 1 || store.deleted[0] != guestCartID {
		t.Fatalf("expected guest cart delete, got %v", store.deleted)
	}

	// A second merge has no guest cart left and is a no-op.
	again, err := svc.Merge(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if len(again.Items) != 2 || again.ItemCount != view.ItemCount {
		t.Fatalf("second merge should return the same user cart: %+v", again)
	}
}

func TestMergeSumsOverlappingItems(t *testing.T) {
	store := newFakeCartStore()
	product := variantProduct(5)
	catalog := &fakeCatalog{products: map[string]*domain.Product{"p2": product}}
	svc := newService(store, catalog)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, domain.UserIdentity("u1"), AddItemInput{ProductID: "p2", VariantID: "v1", Quantity: 3}); err != nil {
		t.Fatalf("user add: %v", err)
	}

	// The guest adds later at a discounted price; merge takes the guest's
	// snapshot for the overlapping key.
	product.Variants[0].DiscountPriceCents = 1500
	if _, err := svc.AddItem(ctx, domain.GuestIdentity("s1"), AddItemInput{ProductID: "p2", VariantID: "v1", Quantity: 2}); err != nil {
		t.Fatalf("guest add: %v", err)
	}

	view, err := svc.Merge(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %+v", view.Items)
	}
	if view.Items[0].PriceCents != 1500 {
		t.Fatalf("expected guest price to win, got %d", view.Items[0].PriceCents)
	}
}

func TestMergeClampsToStock(t *testing.T) {
	store := newFakeCartStore()
	product := variantProduct(5)
	catalog := &fakeCatalog{products: map[string]*domain.Product{"p2": product}}
	svc := newService(store, catalog)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, domain.UserIdentity("u1"), AddItemInput{ProductID: "p2", VariantID: "v1", Quantity: 4}); err != nil {
		t.Fatalf("user add: %v", err)
	}
	if _, err := svc.AddItem(ctx, domain.GuestIdentity("s1"), AddItemInput{ProductID: "p2", VariantID: "v1", Quantity: 4}); err != nil {
		t.Fatalf("guest add: %v", err)
	}

	view, err := svc.Merge(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Quantity != 5 {
		t.Fatalf("expected clamp to stock 5, got %+v", view.Items)
	}
}

func TestMergeRequiresUser(t *testing.T) {
	svc := newService(newFakeCartStore(), &fakeCatalog{})
	if _, err := svc.Merge(context.Background(), "s1", ""); domain.AsValidation(err) == nil {
		t.Fatal("merge without a user must fail validation")
	}
	if _, err := svc.Merge(context.Background(), "", "u1"); domain.AsValidation(err) == nil {
		t.Fatal("merge without a session must fail validation")
	}
}

func TestViewPopulatesDisplayData(t *testing.T) {
	store := newFakeCartStore()
	product := variantProduct(10)
	product.Images = []domain.ProductImage{{URL: "shirt.jpg", IsPrimary: true}}
	product.Variants[0].Image = "shirt-m.jpg"
	catalog := &fakeCatalog{products: map[string]*domain.Product{"p2": product}}
	svc := newService(store, catalog)
	ctx := context.Background()
	identity := domain.GuestIdentity("s1")

	view, err := svc.AddItem(ctx, identity, AddItemInput{ProductID: "p2", VariantID: "v1", Quantity: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	item := view.Items[0]
	if item.ProductName != "Shirt" || item.VariantName != "Medium" || item.SKU != "SKU-SHIRT-M" || item.Image != "shirt-m.jpg" {
		t.Fatalf("display data not populated: %+v", item)
	}
	if view.SubtotalCents != 2*1999 || view.ItemCount != 2 {
		t.Fatalf("unexpected totals: subtotal=%d count=%d", view.SubtotalCents, view.ItemCount)
	}

	// A vanished product leaves the stored snapshot intact with blank
	// display fields.
	delete(catalog.products, "p2")
	view, err = svc.Get(ctx, identity)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	item = view.Items[0]
	if item.ProductName != "" || item.PriceCents != 1999 {
		t.Fatalf("expected blank display with stored price, got %+v", item)
	}
}
