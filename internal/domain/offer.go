package domain

import (
	"time"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/rules"
)

// Discount type constants.
const (
	DiscountTypeFlat    = "FLAT"
	DiscountTypePercent = "PERCENT"
)

// Offer level constants. The level decides what an applied offer produces:
// an order-wide discount, per-SKU discounts, or a cashback grant.
const (
	OfferLevelOrder     = "ORDER"
	OfferLevelOrderItem = "ORDER_ITEM"
	OfferLevelCashback  = "CASHBACK"
)

// Rule event type constants.
const (
	EventTypeOrderLevel = "ORDERLEVEL"
	EventTypeItemLevel  = "ITEMLEVEL"
)

// RuleEvent is the payload half of an application rule: what the offer grants
// once its conditions hold.
type RuleEvent struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// ApplicationRules pairs a condition tree with the event it unlocks. Stored
// as a jsonb document on the offer.
type ApplicationRules struct {
	Conditions rules.Node `json:"conditions"`
	Event      RuleEvent  `json:"event"`
}

// SkuDiscountParams is one per-SKU grant produced by applying an ITEMLEVEL
// offer to an order item.
type SkuDiscountParams struct {
	SkuCode       string  `json:"skuCode"`
	DiscountType  string  `json:"discountType"`
	DiscountValue float64 `json:"discountValue"`
}

// Offer represents a promotional offer. Visibility (ViewRules) and
// applicability (ApplicationRules.Conditions) are independent trees: an offer
// can be shown without being applicable to the current cart and vice versa.
type Offer struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	OfferLevel       string           `json:"offerLevel"`
	ApplicationRules ApplicationRules `json:"applicationRules"`
	ViewRules        *rules.Node      `json:"viewRules,omitempty"`
	DiscountType     string           `json:"discountType"`
	DiscountValue    float64          `json:"discountValue"`
	MaxDiscount      *float64         `json:"maxDiscount,omitempty"`
	Title            string           `json:"title,omitempty"`
	Terms            string           `json:"terms,omitempty"`
	SidebarNote      string           `json:"sidebarNote,omitempty"`
	StartDate        time.Time        `json:"startDate"`
	EndDate          time.Time        `json:"endDate"`
	AutoApply        bool             `json:"autoApply"`
	Active           bool             `json:"active"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	UpdatedBy        string           `json:"updatedBy,omitempty"`
}

// IsLive reports whether the offer is active and its validity window
// contains the given instant.
func (o *Offer) IsLive(now time.Time) bool {
	return o.Active && !now.Before(o.StartDate) && !now.After(o.EndDate)
}

// IsValidDiscountType checks a discount type string.
func IsValidDiscountType(t string) bool {
	return t == DiscountTypeFlat || t == DiscountTypePercent
}

// IsValidOfferLevel checks an offer level string.
func IsValidOfferLevel(l string) bool {
	return l == OfferLevelOrder || l == OfferLevelOrderItem || l == OfferLevelCashback
}
