package domain

import "time"

// Voucher scope constants. ALL vouchers are shared codes any store can use;
// ASSIGNED vouchers belong to a single store or customer.
const (
	VoucherScopeAll      = "ALL"
	VoucherScopeAssigned = "ASSIGNED"
)

// Voucher type constants. STATIC codes survive redemption; DYNAMIC codes are
// single-use and flip to redeemed on first successful application.
const (
	VoucherTypeStatic  = "STATIC"
	VoucherTypeDynamic = "DYNAMIC"
)

// Voucher audience constants.
const (
	AudienceConsumer  = "CONSUMER"
	AudienceFranchise = "FRANCHISE"
)

// Voucher is a redeemable code bound to an offer. Campaign-generated
// vouchers carry the owning campaign's id so a campaign update can retire
// and reissue them together.
type Voucher struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	OfferID    string    `json:"offerId"`
	Type       string    `json:"type"`
	Scope      string    `json:"scope"`
	AssignedTo string    `json:"assignedTo,omitempty"`
	Audience   string    `json:"audience"`
	IsRedeemed bool      `json:"isRedeemed"`
	IsPublic   bool      `json:"isPublic"`
	Active     bool      `json:"active"`
	CampaignID *int64    `json:"campaignId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	UpdatedBy  string    `json:"updatedBy,omitempty"`
}

// IsUsableBy reports whether the voucher can be presented by the given
// entity: shared-scope vouchers always, assigned vouchers only by their
// assignee.
func (v *Voucher) IsUsableBy(entityID string) bool {
	if v.Scope == VoucherScopeAll {
		return true
	}
	return v.AssignedTo == entityID
}

// IsSpent reports whether a dynamic voucher has already been consumed.
// Static vouchers are never spent.
func (v *Voucher) IsSpent() bool {
	return v.Type == VoucherTypeDynamic && v.IsRedeemed
}

// Redemption is a write-once audit record of a voucher being applied to an
// order.
type Redemption struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	OrderID     string    `json:"orderId"`
	OfferID     string    `json:"offerId"`
	VoucherID   string    `json:"voucherId"`
	VoucherCode string    `json:"voucherCode"`
	CreatedAt   time.Time `json:"createdAt"`
}
