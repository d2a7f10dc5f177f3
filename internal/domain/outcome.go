package domain

// OrderDiscount is the order-wide grant of an applied ORDER level offer. The
// value is already capped against the offer's max discount where one is set.
type OrderDiscount struct {
	DiscountType  string  `json:"discountType"`
	DiscountValue float64 `json:"discountValue"`
}

// CashbackGrant is the grant of an applied CASHBACK level offer. The actual
// credit happens at settlement; applying only records the entitlement. A
// percent offer fills CashbackPercent, a flat offer fills CashbackAmount.
type CashbackGrant struct {
	CashbackPercent float64 `json:"cashbackPercent,omitempty"`
	CashbackAmount  float64 `json:"cashbackAmount,omitempty"`
}

// OfferOutcome is the full result of applying a voucher to an order. Exactly
// one of OrderDiscount, SkuDiscounts, or Cashback is set, matching the
// offer's level.
type OfferOutcome struct {
	VoucherCode   string              `json:"voucherCode"`
	OfferID       string              `json:"offerId"`
	OfferLevel    string              `json:"offerLevel"`
	OfferTitle    string              `json:"offerTitle,omitempty"`
	OrderDiscount *OrderDiscount      `json:"orderDiscount,omitempty"`
	SkuDiscounts  []SkuDiscountParams `json:"skuDiscounts,omitempty"`
	Cashback      *CashbackGrant      `json:"cashback,omitempty"`
}

// TotalFlatDiscount returns the rupee value of the outcome against the given
// order amount, used for display and for the order service's offer snapshot.
func (o *OfferOutcome) TotalFlatDiscount(orderAmount float64) float64 {
	if o.OrderDiscount == nil {
		return 0
	}
	if o.OrderDiscount.DiscountType == DiscountTypePercent {
		return orderAmount * o.OrderDiscount.DiscountValue / 100
	}
	return o.OrderDiscount.DiscountValue
}
