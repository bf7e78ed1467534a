package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"storefront-api/internal/domain"
	cartrepo "storefront-api/internal/repository/cart"
	catalogrepo "storefront-api/internal/repository/catalog"
)

type Service struct {
	carts   cartStore
	catalog catalogStore
	now     func() time.Time
}

type cartStore interface {
	GetByIdentity(ctx context.Context, identity domain.Identity) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, cartID string) error
}

type catalogStore interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

func New(carts cartrepo.Repository, catalog catalogrepo.Repository) *Service {
	return &Service{carts: carts, catalog: catalog, now: time.Now}
}

type AddItemInput struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Get returns the identity's live cart populated with display data, or
// ErrNotFound when there is none (distinct from an empty cart).
func (s *Service) Get(ctx context.Context, identity domain.Identity) (*domain.CartView, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart), nil
}

func (s *Service) AddItem(ctx context.Context, identity domain.Identity, in AddItemInput) (*domain.CartView, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if in.Quantity < 1 {
		return nil, domain.Validationf("QUANTITY_INVALID", "quantity must be at least 1")
	}

	product, err := s.catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if product.Status != domain.ProductStatusActive {
		return nil, domain.Validationf("PRODUCT_UNAVAILABLE", "product %s is not available", product.Name)
	}

	var variant *domain.Variant
	switch {
	case len(product.Variants) > 0:
		if in.VariantID == "" {
			return nil, domain.Validationf("VARIANT_REQUIRED", "product %s requires a variant selection", product.Name)
		}
		variant = product.Variant(in.VariantID)
		if variant == nil {
			return nil, domain.Validationf("VARIANT_MISMATCH", "variant does not belong to product %s", product.Name)
		}
	case in.VariantID != "":
		return nil, domain.Validationf("VARIANT_MISMATCH", "product %s has no variants", product.Name)
	}

	cart, err := s.loadOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}

	price := domain.UnitPriceCents(product, variant)
	if idx := cart.FindItem(in.ProductID, in.VariantID); idx >= 0 {
		combined := cart.Items[idx].Quantity + in.Quantity
		if variant != nil && combined > variant.Stock {
			return nil, domain.Validationf("INSUFFICIENT_STOCK", "only %d left in stock", variant.Stock)
		}
		cart.Items[idx].Quantity = combined
		cart.Items[idx].PriceCents = price
	} else {
		if variant != nil && in.Quantity > variant.Stock {
			return nil, domain.Validationf("INSUFFICIENT_STOCK", "only %d left in stock", variant.Stock)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:  in.ProductID,
			VariantID:  in.VariantID,
			Quantity:   in.Quantity,
			PriceCents: price,
			AddedAt:    s.now().UTC(),
		})
	}

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return s.view(ctx, cart), nil
}

// UpdateItem replaces the quantity of the item at the given position. The
// stored price snapshot is left untouched.
func (s *Service) UpdateItem(ctx context.Context, identity domain.Identity, index, quantity int) (*domain.CartView, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, domain.Validationf("QUANTITY_INVALID", "quantity must be at least 1")
	}

	cart, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(cart.Items) {
		return nil, domain.Validationf("ITEM_INDEX_INVALID", "no cart item at index %d", index)
	}

	item := &cart.Items[index]
	if item.VariantID != "" {
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		variant := product.Variant(item.VariantID)
		if variant == nil {
			return nil, domain.ErrNotFound
		}
		if quantity > variant.Stock {
			return nil, domain.Validationf("INSUFFICIENT_STOCK", "only %d left in stock", variant.Stock)
		}
	}
	item.Quantity = quantity

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return s.view(ctx, cart), nil
}

func (s *Service) RemoveItem(ctx context.Context, identity domain.Identity, index int) (*domain.CartView, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(cart.Items) {
		return nil, domain.Validationf("ITEM_INDEX_INVALID", "no cart item at index %d", index)
	}

	cart.Items = append(cart.Items[:index], cart.Items[index+1:]...)

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return s.view(ctx, cart), nil
}

// Clear empties the item list in place; the cart document and its expiry
// survive.
func (s *Service) Clear(ctx context.Context, identity domain.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	cart, err := s.load(ctx, identity)
	if err != nil {
		return err
	}
	cart.Items = nil
	return s.carts.Save(ctx, cart)
}

// Recalculate is the authoritative stock/price sync pass and the only path
// allowed to silently shrink quantities or drop items: items whose product
// vanished or went inactive are dropped, variant quantities are clamped to
// live stock, and every surviving price snapshot is refreshed.
func (s *Service) Recalculate(ctx context.Context, identity domain.Identity) (*domain.CartView, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}

	kept := cart.Items[:0]
	for _, item := range cart.Items {
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if product.Status != domain.ProductStatusActive {
			continue
		}

		var variant *domain.Variant
		if item.VariantID != "" {
			variant = product.Variant(item.VariantID)
			if variant == nil {
				continue
			}
			if item.Quantity > variant.Stock {
				item.Quantity = variant.Stock
			}
			if item.Quantity == 0 {
				continue
			}
		}
		item.PriceCents = domain.UnitPriceCents(product, variant)
		kept = append(kept, item)
	}
	cart.Items = kept

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return s.view(ctx, cart), nil
}

// Merge folds a guest cart into the authenticated user's cart, creating the
// latter if absent. Overlapping keys sum quantities and take the guest price
// (presumed more recently validated); afterwards variant items are reclamped
// to live stock. The guest cart is deleted on success; a missing or empty
// guest cart makes the call a no-op.
func (s *Service) Merge(ctx context.Context, guestSessionID, userID string) (*domain.CartView, error) {
	if userID == "" {
		return nil, domain.Validationf("IDENTITY_REQUIRED", "merge requires an authenticated user")
	}
	if guestSessionID == "" {
		return nil, domain.Validationf("SESSION_REQUIRED", "merge requires a guest session id")
	}

	guestCart, err := s.load(ctx, domain.GuestIdentity(guestSessionID))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	userCart, err := s.loadOrCreate(ctx, domain.UserIdentity(userID))
	if err != nil {
		return nil, err
	}

	if guestCart == nil || len(guestCart.Items) == 0 {
		if err := s.carts.Save(ctx, userCart); err != nil {
			return nil, err
		}
		return s.view(ctx, userCart), nil
	}

	for _, guestItem := range guestCart.Items {
		if idx := userCart.FindItem(guestItem.ProductID, guestItem.VariantID); idx >= 0 {
			userCart.Items[idx].Quantity += guestItem.Quantity
			userCart.Items[idx].PriceCents = guestItem.PriceCents
		} else {
			userCart.Items = append(userCart.Items, guestItem)
		}
	}

	kept := userCart.Items[:0]
	for _, item := range userCart.Items {
		if item.VariantID != "" {
			product, err := s.catalog.GetProduct(ctx, item.ProductID)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			variant := product.Variant(item.VariantID)
			if variant == nil {
				continue
			}
			if item.Quantity > variant.Stock {
				item.Quantity = variant.Stock
			}
			if item.Quantity == 0 {
				continue
			}
		}
		kept = append(kept, item)
	}
	userCart.Items = kept

	if err := s.carts.Save(ctx, userCart); err != nil {
		return nil, err
	}
	if err := s.carts.Delete(ctx, guestCart.ID); err != nil {
		return nil, err
	}
	return s.view(ctx, userCart), nil
}

// load fetches the identity's cart, treating an expired one as absent even
// when the store still holds it.
func (s *Service) load(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	cart, err := s.carts.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	if cart.Expired(s.now().UTC()) {
		return nil, domain.ErrNotFound
	}
	return cart, nil
}

func (s *Service) loadOrCreate(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	cart, err := s.load(ctx, identity)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	now := s.now().UTC()
	return &domain.Cart{
		ID:        uuid.New().String(),
		UserID:    identity.UserID,
		SessionID: identity.SessionID,
		ExpiresAt: now.Add(domain.CartTTL(identity)),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// view joins stored items with live display data. The stored price snapshot
// is authoritative here; catalog prices are never substituted.
func (s *Service) view(ctx context.Context, cart *domain.Cart) *domain.CartView {
	out := &domain.CartView{
		ID:        cart.ID,
		UserID:    cart.UserID,
		SessionID: cart.SessionID,
		Items:     make([]domain.CartItemView, 0, len(cart.Items)),
		ExpiresAt: cart.ExpiresAt,
	}

	for _, item := range cart.Items {
		iv := domain.CartItemView{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			PriceCents:     item.PriceCents,
			LineTotalCents: item.PriceCents * int64(item.Quantity),
			AddedAt:        item.AddedAt,
		}
		if product, err := s.catalog.GetProduct(ctx, item.ProductID); err == nil {
			iv.ProductName = product.Name
			iv.SKU = product.SKU
			iv.Image = product.PrimaryImage()
			if item.VariantID != "" {
				if variant := product.Variant(item.VariantID); variant != nil {
					iv.VariantName = variant.Name
					iv.SKU = variant.SKU
					if variant.Image != "" {
						iv.Image = variant.Image
					}
				}
			}
		}
		out.SubtotalCents += iv.LineTotalCents
		out.ItemCount += item.Quantity
		out.Items = append(out.Items, iv)
	}

	return out
}
