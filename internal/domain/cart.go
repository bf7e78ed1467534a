package domain

import "time"

// Cart lifetimes from the last identity-establishing write.
const (
	UserCartTTL  = 30 * 24 * time.Hour
	GuestCartTTL = 7 * 24 * time.Hour
)

type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	Items     []CartItem `json:"items"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CartItem holds a price snapshot taken when the item was added or last
// revalidated; the snapshot is never refreshed implicitly.
type CartItem struct {
	ProductID  string    `json:"productId"`
	VariantID  string    `json:"variantId,omitempty"`
	Quantity   int       `json:"quantity"`
	PriceCents int64     `json:"priceCents"`
	AddedAt    time.Time `json:"addedAt"`
}

func (c *Cart) Identity() Identity {
	return Identity{UserID: c.UserID, SessionID: c.SessionID}
}

func (c *Cart) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// CartTTL is the identity-appropriate lifetime for a fresh cart.
func CartTTL(id Identity) time.Duration {
	if id.IsUser() {
		return UserCartTTL
	}
	return GuestCartTTL
}

// FindItem locates an item by its (productID, variantID) key; an absent
// variant counts as its own key. Returns the index or -1.
func (c *Cart) FindItem(productID, variantID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID && item.VariantID == variantID {
			return i
		}
	}
	return -1
}

// CartView is the populated shape every cart operation returns: stored items
// joined with live display data plus computed totals.
type CartView struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId,omitempty"`
	SessionID     string         `json:"sessionId,omitempty"`
	Items         []CartItemView `json:"items"`
	SubtotalCents int64          `json:"subtotalCents"`
	ItemCount     int            `json:"itemCount"`
	ExpiresAt     time.Time      `json:"expiresAt"`
}

type CartItemView struct {
	ProductID      string    `json:"productId"`
	VariantID      string    `json:"variantId,omitempty"`
	ProductName    string    `json:"productName,omitempty"`
	VariantName    string    `json:"variantName,omitempty"`
	SKU            string    `json:"sku,omitempty"`
	Image          string    `json:"image,omitempty"`
	Quantity       int       `json:"quantity"`
	PriceCents     int64     `json:"priceCents"`
	LineTotalCents int64     `json:"lineTotalCents"`
	AddedAt        time.Time `json:"addedAt"`
}
