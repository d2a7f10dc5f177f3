package repository

import (
	"context"
	"time"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
)

// VoucherFilter defines the criteria for resolving candidate vouchers for an
// entity. Resolution returns every live voucher the entity may present:
// public shared-scope codes, public codes assigned to it, and the code the
// entity already has applied on its cart, public or not.
type VoucherFilter struct {
	EntityID     string
	Audience     string
	At           time.Time
	AutoApply    *bool
	PreviousCode string
}

// OfferRepository defines the interface for offer persistence operations.
type OfferRepository interface {
	// Create inserts a new offer.
	Create(ctx context.Context, offer *domain.Offer) error

	// GetByID retrieves an offer regardless of its active flag or window.
	GetByID(ctx context.Context, id string) (*domain.Offer, error)

	// GetByIDs retrieves offers for a set of ids, keyed by id.
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Offer, error)

	// List returns offers, optionally only active ones.
	List(ctx context.Context, activeOnly bool) ([]domain.Offer, error)

	// Update persists changes to an existing offer.
	Update(ctx context.Context, offer *domain.Offer) error
}

// VoucherRepository defines the interface for voucher persistence operations.
type VoucherRepository interface {
	// Create inserts a new voucher.
	Create(ctx context.Context, voucher *domain.Voucher) error

	// GetByCode retrieves a voucher by its code for the given audience.
	GetByCode(ctx context.Context, code, audience string) (*domain.Voucher, error)

	// ResolveCandidates returns the vouchers an entity may currently present,
	// joined against live offers, ordered oldest first.
	ResolveCandidates(ctx context.Context, filter VoucherFilter) ([]domain.Voucher, error)

	// ListByCampaigns returns vouchers owned by the given campaigns.
	ListByCampaigns(ctx context.Context, campaignIDs []int64, activeOnly bool) ([]domain.Voucher, error)

	// Update persists changes to an existing voucher.
	Update(ctx context.Context, voucher *domain.Voucher) error

	// UpdateBatch persists changes to several vouchers.
	UpdateBatch(ctx context.Context, vouchers []domain.Voucher) error
}

// RedemptionRepository defines the interface for redemption audit records.
type RedemptionRepository interface {
	// Create appends a redemption record. Records are write once.
	Create(ctx context.Context, redemption *domain.Redemption) error
}

// CampaignRepository defines the interface for target campaign persistence.
type CampaignRepository interface {
	// CreateBatch inserts campaigns and backfills their generated ids.
	CreateBatch(ctx context.Context, campaigns []*domain.TargetCampaign) error

	// GetByID retrieves a campaign by id.
	GetByID(ctx context.Context, id int64) (*domain.TargetCampaign, error)

	// List returns all campaigns, newest first.
	List(ctx context.Context) ([]domain.TargetCampaign, error)

	// ListActiveByStores returns active campaigns for the given stores whose
	// windows overlap [from, to].
	ListActiveByStores(ctx context.Context, storeIDs []string, from, to time.Time) ([]domain.TargetCampaign, error)

	// GetRunningForStore returns the store's active campaign whose window
	// contains the given date, or nil when none does.
	GetRunningForStore(ctx context.Context, storeID string, at time.Time) (*domain.TargetCampaign, error)

	// Update persists changes to an existing campaign.
	Update(ctx context.Context, campaign *domain.TargetCampaign) error
}

// CashbackRepository defines the interface for cashback schedule persistence.
type CashbackRepository interface {
	// CreateBatch inserts schedule rows and backfills their generated ids.
	CreateBatch(ctx context.Context, rows []*domain.TargetCashback) error

	// ListByCampaign returns a campaign's rows ordered by cashback date.
	ListByCampaign(ctx context.Context, campaignID int64, activeOnly bool) ([]domain.TargetCashback, error)

	// ListByCampaigns returns rows of the given cadence for several
	// campaigns, ordered by campaign then date.
	ListByCampaigns(ctx context.Context, campaignIDs []int64, cadence string) ([]domain.TargetCashback, error)

	// ListUnsettled returns active, unsettled rows of the given cadence whose
	// cashback date falls in [from, to]. An empty storeIDs slice means all
	// stores.
	ListUnsettled(ctx context.Context, cadence string, from, to time.Time, storeIDs []string) ([]domain.TargetCashback, error)

	// Update persists changes to a single row.
	Update(ctx context.Context, row *domain.TargetCashback) error

	// UpdateBatch persists changes to several rows.
	UpdateBatch(ctx context.Context, rows []domain.TargetCashback) error

	// DeactivateUnsettledByCampaign flags a campaign's unsettled rows
	// inactive, returning how many rows were touched.
	DeactivateUnsettledByCampaign(ctx context.Context, campaignID int64, modifiedBy string) (int64, error)

	// SumSettledByStore returns the total settled cashback for a store
	// between from and to. A nil from means since the beginning.
	SumSettledByStore(ctx context.Context, storeID string, from, to *time.Time) (float64, error)
}
