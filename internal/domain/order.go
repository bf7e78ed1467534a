package domain

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// ValidOrderStatus reports whether s names a known order status.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPaid,
		OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether the status is absorbing: no further status change
// is permitted out of it.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded || s == OrderStatusDelivered
}

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
)

func ValidPaymentMethod(m PaymentMethod) bool {
	return m == PaymentMethodCash || m == PaymentMethodCard
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// Address is copied by value into orders; it never references an address
// book entry.
type Address struct {
	FullName   string `json:"fullName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

func (a Address) IsZero() bool {
	return a == Address{}
}

// OrderItem is a deep snapshot captured at order-creation time; rendering an
// order never joins back to the catalog.
type OrderItem struct {
	ProductID       string            `json:"productId"`
	VariantID       string            `json:"variantId,omitempty"`
	ProductName     string            `json:"productName"`
	VariantName     string            `json:"variantName,omitempty"`
	SKU             string            `json:"sku"`
	Quantity        int               `json:"quantity"`
	UnitPriceCents  int64             `json:"unitPriceCents"`
	TotalPriceCents int64             `json:"totalPriceCents"`
	Image           string            `json:"image,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
}

type Order struct {
	ID              string        `json:"id"`
	OrderNumber     string        `json:"orderNumber"`
	UserID          string        `json:"userId,omitempty"`
	SessionID       string        `json:"sessionId,omitempty"`
	Items           []OrderItem   `json:"items"`
	Status          OrderStatus   `json:"status"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	SubtotalCents   int64         `json:"subtotalCents"`
	TaxCents        int64         `json:"taxCents"`
	ShippingCents   int64         `json:"shippingCents"`
	DiscountCents   int64         `json:"discountCents"`
	TotalCents      int64         `json:"totalCents"`
	ShippingAddress Address       `json:"shippingAddress"`
	BillingAddress  Address       `json:"billingAddress"`
	Notes           string        `json:"notes,omitempty"`
	InternalNotes   string        `json:"internalNotes,omitempty"`
	TrackingNumber  string        `json:"trackingNumber,omitempty"`
	CancelledReason string        `json:"cancelledReason,omitempty"`

	RefundedAmountCents int64      `json:"refundedAmountCents,omitempty"`
	CancelledAt         *time.Time `json:"cancelledAt,omitempty"`
	ShippedAt           *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt         *time.Time `json:"deliveredAt,omitempty"`
	RefundedAt          *time.Time `json:"refundedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (o *Order) Identity() Identity {
	return Identity{UserID: o.UserID, SessionID: o.SessionID}
}

// FormatOrderNumber renders the human-readable, year-scoped order number,
// e.g. ORD-2024-000007.
func FormatOrderNumber(year, seq int) string {
	return fmt.Sprintf("ORD-%d-%06d", year, seq)
}

// OrderNumberPrefix is the shared prefix of all order numbers in a year.
func OrderNumberPrefix(year int) string {
	return fmt.Sprintf("ORD-%d-", year)
}
