package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"storefront-api/internal/domain"
	"storefront-api/internal/events"
	cartrepo "storefront-api/internal/repository/cart"
	catalogrepo "storefront-api/internal/repository/catalog"
	orderrepo "storefront-api/internal/repository/order"
)

// createRetries bounds retries when two checkouts race for the same order
// number and the unique index rejects one of them.
const createRetries = 3

type Service struct {
	orders  orderStore
	carts   cartStore
	catalog catalogStore
	events  publisher
	logger  *log.Logger
	now     func() time.Time
}

type orderStore interface {
	Create(ctx context.Context, o *domain.Order, sourceCartID string) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
}

type cartStore interface {
	GetByIdentity(ctx context.Context, identity domain.Identity) (*domain.Cart, error)
}

type catalogStore interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type publisher interface {
	Publish(ctx context.Context, key string, event events.OrderEvent) error
}

func New(orders orderrepo.Repository, carts cartrepo.Repository, catalog catalogrepo.Repository, pub events.Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{orders: orders, carts: carts, catalog: catalog, events: pub, logger: logger, now: time.Now}
}

type CreateInput struct {
	ShippingAddress    domain.Address
	BillingAddress     *domain.Address
	PaymentMethod      domain.PaymentMethod
	Notes              string
	AcceptPriceChanges bool
}

// Create converts the identity's cart into an immutable order. Item prices
// and the subtotal both come from the catalog as fetched here; when any line
// no longer matches the cart's snapshot the call fails unless the caller
// accepted price changes. Stock is decremented and the cart deleted in the
// same transaction as the insert.
func (s *Service) Create(ctx context.Context, identity domain.Identity, in CreateInput) (*domain.Order, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if in.ShippingAddress.IsZero() {
		return nil, domain.Validationf("SHIPPING_ADDRESS_REQUIRED", "shipping address is required")
	}
	if !domain.ValidPaymentMethod(in.PaymentMethod) {
		return nil, domain.Validationf("PAYMENT_METHOD_INVALID", "payment method must be cash or card")
	}

	cart, err := s.carts.GetByIdentity(ctx, identity)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Validationf("CART_EMPTY", "cart is empty")
	}
	if err != nil {
		return nil, err
	}
	if cart.Expired(s.now().UTC()) || len(cart.Items) == 0 {
		return nil, domain.Validationf("CART_EMPTY", "cart is empty")
	}

	items := make([]domain.OrderItem, 0, len(cart.Items))
	var subtotal int64
	var changed []string
	for _, ci := range cart.Items {
		product, err := s.catalog.GetProduct(ctx, ci.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Validationf("PRODUCT_UNAVAILABLE", "a cart item is no longer available; recalculate the cart")
		}
		if err != nil {
			return nil, err
		}

		var variant *domain.Variant
		if ci.VariantID != "" {
			variant = product.Variant(ci.VariantID)
			if variant == nil {
				return nil, domain.Validationf("PRODUCT_UNAVAILABLE", "a cart item is no longer available; recalculate the cart")
			}
		}

		sku := product.SKU
		variantName := ""
		image := product.PrimaryImage()
		var attrs map[string]string
		if variant != nil {
			sku = variant.SKU
			variantName = variant.Name
			if variant.Image != "" {
				image = variant.Image
			}
			attrs = variant.Attributes
		}

		unitPrice := domain.UnitPriceCents(product, variant)
		if unitPrice != ci.PriceCents {
			changed = append(changed, sku)
		}

		items = append(items, domain.OrderItem{
			ProductID:       ci.ProductID,
			VariantID:       ci.VariantID,
			ProductName:     product.Name,
			VariantName:     variantName,
			SKU:             sku,
			Quantity:        ci.Quantity,
			UnitPriceCents:  unitPrice,
			TotalPriceCents: unitPrice * int64(ci.Quantity),
			Image:           image,
			Attributes:      attrs,
		})
		subtotal += unitPrice * int64(ci.Quantity)
	}

	if len(changed) > 0 && !in.AcceptPriceChanges {
		return nil, domain.Validationf("PRICE_CHANGED",
			"prices changed since items were added (%s); recalculate the cart or accept the change", strings.Join(changed, ", "))
	}

	billing := in.ShippingAddress
	if in.BillingAddress != nil && !in.BillingAddress.IsZero() {
		billing = *in.BillingAddress
	}

	// Tax, shipping and discounts are deferred; totals carry the zeroes so
	// the computation order is fixed.
	o := &domain.Order{
		UserID:          identity.UserID,
		SessionID:       identity.SessionID,
		Items:           items,
		Status:          domain.OrderStatusPending,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		SubtotalCents:   subtotal,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  billing,
		Notes:           in.Notes,
	}
	o.TotalCents = o.SubtotalCents + o.TaxCents + o.ShippingCents - o.DiscountCents

	for attempt := 0; ; attempt++ {
		err = s.orders.Create(ctx, o, cart.ID)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrConflict) && attempt < createRetries {
			s.logger.Printf("order service: number collision, retrying attempt=%d", attempt+1)
			continue
		}
		return nil, err
	}

	s.publish(ctx, events.OrderCreated, o)
	return o, nil
}

// Get resolves an order by internal id or by order number (ORD-...). When
// the order belongs to a user, the requesting user must match.
func (s *Service) Get(ctx context.Context, ref, requestingUserID string) (*domain.Order, error) {
	var o *domain.Order
	var err error
	if strings.HasPrefix(ref, "ORD-") {
		o, err = s.orders.GetByNumber(ctx, ref)
	} else {
		o, err = s.orders.GetByID(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if o.UserID != "" && o.UserID != requestingUserID {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.Validationf("IDENTITY_REQUIRED", "listing orders requires an authenticated user")
	}
	return s.orders.ListByUser(ctx, userID)
}

type UpdateStatusInput struct {
	Status          domain.OrderStatus
	TrackingNumber  string
	InternalNotes   string
	CancelledReason string
}

// UpdateStatus drives the order lifecycle. Terminal orders (cancelled,
// refunded, delivered) reject every further status change.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, in UpdateStatusInput) (*domain.Order, error) {
	if !domain.ValidOrderStatus(in.Status) {
		return nil, domain.Validationf("STATUS_INVALID", "unknown order status %q", in.Status)
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, domain.Validationf("ORDER_TERMINAL", "order %s is %s and cannot change status", o.OrderNumber, o.Status)
	}

	if in.TrackingNumber != "" {
		o.TrackingNumber = in.TrackingNumber
	}
	if in.InternalNotes != "" {
		o.InternalNotes = in.InternalNotes
	}

	now := s.now().UTC()
	switch in.Status {
	case domain.OrderStatusShipped:
		if o.ShippedAt == nil {
			o.ShippedAt = &now
		}
	case domain.OrderStatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
		// Delivery is proof of payment for cash on delivery.
		if o.PaymentMethod == domain.PaymentMethodCash && o.PaymentStatus == domain.PaymentStatusPending {
			o.PaymentStatus = domain.PaymentStatusPaid
		}
	case domain.OrderStatusCancelled:
		o.CancelledAt = &now
		o.CancelledReason = in.CancelledReason
		// TODO: restore variant stock decremented at checkout once a
		// restock policy is agreed with fulfillment.
	}
	o.Status = in.Status

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	s.publish(ctx, events.OrderStatusChanged, o)
	return o, nil
}

// Refund marks the order refunded and records the amount, defaulting to the
// full total. Payment-provider execution is out of scope; the audit trail
// lands in the internal notes.
func (s *Service) Refund(ctx context.Context, orderID string, amountCents *int64, reason string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == domain.OrderStatusRefunded {
		return nil, domain.Validationf("ALREADY_REFUNDED", "order %s is already refunded", o.OrderNumber)
	}

	amount := o.TotalCents
	if amountCents != nil {
		if *amountCents > o.TotalCents {
			return nil, domain.Validationf("REFUND_EXCEEDS_TOTAL", "refund amount exceeds order total")
		}
		if *amountCents <= 0 {
			return nil, domain.Validationf("REFUND_AMOUNT_INVALID", "refund amount must be positive")
		}
		amount = *amountCents
	}

	now := s.now().UTC()
	o.Status = domain.OrderStatusRefunded
	o.PaymentStatus = domain.PaymentStatusRefunded
	o.RefundedAt = &now
	o.RefundedAmountCents = amount

	note := fmt.Sprintf("refunded %d cents at %s", amount, now.Format(time.RFC3339))
	if reason != "" {
		note += ": " + reason
	}
	if o.InternalNotes != "" {
		o.InternalNotes += "\n" + note
	} else {
		o.InternalNotes = note
	}

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	s.publish(ctx, events.OrderRefunded, o)
	return o, nil
}

// UpdatePaymentStatus is driven by payment webhooks; a successful payment on
// a still-pending order advances the order to confirmed.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (*domain.Order, error) {
	if !domain.ValidPaymentStatus(status) {
		return nil, domain.Validationf("PAYMENT_STATUS_INVALID", "unknown payment status %q", status)
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	o.PaymentStatus = status
	advanced := false
	if status == domain.PaymentStatusPaid && o.Status == domain.OrderStatusPending {
		o.Status = domain.OrderStatusConfirmed
		advanced = true
	}

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	if advanced {
		s.publish(ctx, events.OrderStatusChanged, o)
	}
	return o, nil
}

func (s *Service) publish(ctx context.Context, name string, o *domain.Order) {
	err := s.events.Publish(ctx, o.OrderNumber, events.OrderEvent{
		Name:        name,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		TotalCents:  o.TotalCents,
		OccurredAt:  s.now().UTC(),
	})
	if err != nil {
		s.logger.Printf("order service: publish %s number=%s error=%v", name, o.OrderNumber, err)
	}
}
