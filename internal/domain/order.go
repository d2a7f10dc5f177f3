package domain

import "time"

// OfferData is the applied-offer snapshot the order service stores on a
// cart. Settlement reads it back to check which voucher a store actually
// applied on a given day.
type OfferData struct {
	OfferID        string  `json:"offerId,omitempty"`
	VoucherCode    string  `json:"voucherCode,omitempty"`
	IsOfferApplied bool    `json:"isOfferApplied,omitempty"`
	OfferType      string  `json:"offerType,omitempty"`
	Amount         float64 `json:"amount,omitempty"`
	OrderDiscount  float64 `json:"orderDiscount,omitempty"`
	OfferTitle     string  `json:"offerTitle,omitempty"`
}

// OrderItem is one line of a cart as the order service reports it.
type OrderItem struct {
	SkuCode       string  `json:"skuCode"`
	ProductName   string  `json:"productName,omitempty"`
	CategoryName  string  `json:"categoryName,omitempty"`
	OrderedQty    float64 `json:"orderedQty"`
	FinalQuantity float64 `json:"finalQuantity"`
	SalePrice     float64 `json:"salePrice"`
	FinalAmount   float64 `json:"finalAmount"`
	SpGrossAmount float64 `json:"spGrossAmount,omitempty"`
	IsBulkSku     bool    `json:"isBulkSku,omitempty"`
}

// Order is the cart snapshot offers are evaluated against. The same shape
// serves consumer carts and franchise store orders; fields a given audience
// does not populate stay at their zero value and simply read as missing
// facts.
type Order struct {
	ID                           string      `json:"id,omitempty"`
	DisplayOrderID               string      `json:"displayOrderId,omitempty"`
	StoreID                      string      `json:"storeId,omitempty"`
	CustomerID                   string      `json:"customerId,omitempty"`
	FinalBillAmount              float64     `json:"finalBillAmount"`
	TotalSpGrossAmount           float64     `json:"totalSpGrossAmount,omitempty"`
	SpGrossAmountWithoutBulkSkus float64     `json:"spGrossAmountWithoutBulkSkus,omitempty"`
	ItemCount                    int         `json:"itemCount"`
	OrderCount                   int         `json:"orderCount,omitempty"`
	DaysSinceStoreCreated        *int        `json:"daysSinceStoreCreated,omitempty"`
	OrderItems                   []OrderItem `json:"orderItems,omitempty"`
	OfferData                    *OfferData  `json:"offerData,omitempty"`
}

// SettlementOrder is one row of the order service's effective-bill-amount
// report: per store, per day, the amounts cashback is computed from.
type SettlementOrder struct {
	StoreID                           string     `json:"storeId"`
	DisplayOrderID                    string     `json:"displayOrderId,omitempty"`
	EffectiveSpGrossAmountForCashback float64    `json:"effectiveSpGrossAmountForCashback"`
	SpGrossAmountWithoutBulkSkus      float64    `json:"spGrossAmountWithoutBulkSkus"`
	HasPendingRefundTicket            bool       `json:"hasPendingRefundTicket"`
	OfferData                         *OfferData `json:"offerData,omitempty"`
}

// Wallet is the payment service's view of a store wallet. Status encodes
// whether the wallet may receive loyalty credits.
type Wallet struct {
	EntityID string `json:"entityId"`
	Status   string `json:"status"`
}

// WalletStatusActive marks a wallet eligible for cashback credits.
const WalletStatusActive = "ACTIVE"

// StoreInfo is the slice of the store service record the engine needs for
// fact enrichment.
type StoreInfo struct {
	StoreID   string    `json:"storeId"`
	CreatedAt time.Time `json:"createdAt"`
}
