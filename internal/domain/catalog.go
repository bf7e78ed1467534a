package domain

import "time"

// Product statuses as stored in the catalog. Only active products may enter
// a cart.
const (
	ProductStatusActive   = "active"
	ProductStatusDraft    = "draft"
	ProductStatusArchived = "archived"
)

type Product struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Description        string                 `json:"description,omitempty"`
	SKU                string                 `json:"sku"`
	Status             string                 `json:"status"`
	PriceCents         int64                  `json:"priceCents"`
	DiscountPriceCents int64                  `json:"discountPriceCents,omitempty"`
	Images             []ProductImage         `json:"images,omitempty"`
	Attributes         map[string]interface{} `json:"attributes,omitempty"`
	Variants           []Variant              `json:"variants,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
}

type ProductImage struct {
	URL       string `json:"url"`
	IsPrimary bool   `json:"isPrimary,omitempty"`
}

type Variant struct {
	ID                 string            `json:"id"`
	ProductID          string            `json:"productId"`
	Name               string            `json:"name"`
	SKU                string            `json:"sku"`
	PriceCents         int64             `json:"priceCents"`
	DiscountPriceCents int64             `json:"discountPriceCents,omitempty"`
	Stock              int               `json:"stock"`
	Image              string            `json:"image,omitempty"`
	Attributes         map[string]string `json:"attributes,omitempty"`
}

// Variant returns the variant with the given id, or nil if the product does
// not carry it.
func (p *Product) Variant(variantID string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			return &p.Variants[i]
		}
	}
	return nil
}

// UnitPriceCents resolves the applicable unit price: variant discount price,
// else variant base price when a variant is given, else product discount
// price, else product base price.
func UnitPriceCents(p *Product, v *Variant) int64 {
	if v != nil {
		if v.DiscountPriceCents > 0 {
			return v.DiscountPriceCents
		}
		return v.PriceCents
	}
	if p.DiscountPriceCents > 0 {
		return p.DiscountPriceCents
	}
	return p.PriceCents
}

// PrimaryImage picks the product's primary image, falling back to the first
// one, or "" when the product has no images at all.
func (p *Product) PrimaryImage() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.URL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}
