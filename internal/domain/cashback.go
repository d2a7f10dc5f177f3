package domain

import (
	"fmt"
	"time"
)

// Row active flag values for cashback schedule rows.
const (
	CashbackInactive = 0
	CashbackActive   = 1
)

// TxnTypeLoyaltyCashback is the wallet transaction type used for every
// cashback credit.
const TxnTypeLoyaltyCashback = "Loyalty-Cashback"

// Settlement remark strings written into cashback metadata. They surface
// verbatim in the store app, so the wording is part of the contract.
const (
	RemarkNoOrderPlaced       = "No Order Placed."
	RemarkRefundPendingPrefix = "Refund Ticket Pending for order"
	RemarkVoucherNotApplied   = "Voucher not applied"
	RemarkDailyCashbackZero   = "Daily cashback is 0"
	RemarkDifferentVoucher    = "Different Voucher Applied"
	RemarkWalletIneligible    = "Wallet ineligible for cashback."
	RemarkCashbackProcessed   = "Cashback Processed."
	RemarkNoCashbackGiven     = "No Cashback Given."
	RemarkTargetNotMet        = "Target Value Not Met."
	RemarkDailyPending        = "Daily Cashbacks are yet to be processed for this campaign."
)

// CashbackMetadata is the jsonb settlement record on a cashback row. The
// qualifier and effective amounts are only present once the row settles.
type CashbackMetadata struct {
	QualifierOrderBillAmount *float64 `json:"qualifierOrderBillAmount,omitempty"`
	EffectiveOrderBillAmount *float64 `json:"effectiveOrderBillAmount,omitempty"`
	Remarks                  string   `json:"remarks,omitempty"`
	IsWalletEligible         bool     `json:"isWalletEligible,omitempty"`
}

// TargetCashback is one row of a campaign's cashback schedule: the target
// and earned amount for a single date, or for the whole window in the case
// of a WEEKLY bonus row. Cashback stays nil until the row settles; a settled
// row is never recomputed.
type TargetCashback struct {
	ID              int64            `json:"id"`
	StoreID         string           `json:"storeId"`
	CampaignID      int64            `json:"campaignId"`
	CashbackDate    time.Time        `json:"cashbackDate"`
	TargetAmount    float64          `json:"targetAmount"`
	Cadence         string           `json:"cadence"`
	Cashback        *float64         `json:"cashback,omitempty"`
	CashbackPercent float64          `json:"cashbackPercent"`
	Metadata        CashbackMetadata `json:"metadata"`
	Active          int              `json:"active"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	ModifiedBy      string           `json:"modifiedBy,omitempty"`
}

// IsSettled reports whether the row has a settlement outcome recorded.
func (t *TargetCashback) IsSettled() bool {
	return t.Cashback != nil
}

// WalletKey returns the idempotency key used when crediting this row to the
// store wallet. One row credits at most once.
func (t *TargetCashback) WalletKey() string {
	return fmt.Sprintf("LCB-%d", t.ID)
}

// Settle records an outcome on the row.
func (t *TargetCashback) Settle(amount float64, meta CashbackMetadata, by string) {
	t.Cashback = &amount
	t.Metadata = meta
	t.ModifiedBy = by
}

// StoreTab state constants for the campaign progress view shown in the
// store app.
const (
	ProgressCurrent   = "CURRENT"
	ProgressInProcess = "IN_PROCESS"
	ProgressLocked    = "LOCKED"
	ProgressFailed    = "FAILED"
	ProgressEarned    = "EARNED"
)

// CashbackProgress is one day of the store-facing campaign progress view.
type CashbackProgress struct {
	Date           time.Time `json:"date"`
	TargetAmount   float64   `json:"targetAmount"`
	AchievedAmount *float64  `json:"achievedAmount,omitempty"`
	Cashback       *float64  `json:"cashback,omitempty"`
	Status         string    `json:"status"`
}
