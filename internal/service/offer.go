package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/event"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/repository"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/rules"
	apperrors "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/errors"
)

// fallbackStoreAgeDays is used when the store service cannot be reached.
const fallbackStoreAgeDays = 1000

// OrderGateway is the slice of the order service the offer flows need.
type OrderGateway interface {
	GetConsumerCart(ctx context.Context, userID string) (*domain.Order, error)
	GetFranchiseCart(ctx context.Context, storeID string) (*domain.Order, error)
	GetFranchiseOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetEffectiveBillAmounts(ctx context.Context, date time.Time, storeIDs []string) ([]domain.SettlementOrder, error)
}

// StoreGateway fetches store records for fact enrichment.
type StoreGateway interface {
	GetStore(ctx context.Context, storeID string) (*domain.StoreInfo, error)
}

// OfferService implements offer and voucher business logic.
type OfferService struct {
	offers        repository.OfferRepository
	vouchers      repository.VoucherRepository
	redemptions   repository.RedemptionRepository
	orders        OrderGateway
	stores        StoreGateway
	applicability *Applicability
	producer      *event.Producer
	logger        *slog.Logger
}

// NewOfferService creates a new offer service.
func NewOfferService(
	offers repository.OfferRepository,
	vouchers repository.VoucherRepository,
	redemptions repository.RedemptionRepository,
	orders OrderGateway,
	stores StoreGateway,
	applicability *Applicability,
	producer *event.Producer,
	logger *slog.Logger,
) *OfferService {
	return &OfferService{
		offers:        offers,
		vouchers:      vouchers,
		redemptions:   redemptions,
		orders:        orders,
		stores:        stores,
		applicability: applicability,
		producer:      producer,
		logger:        logger,
	}
}

// CreateOfferInput holds the parameters for creating an offer.
type CreateOfferInput struct {
	Name             string                  `json:"name" validate:"required"`
	OfferLevel       string                  `json:"offerLevel" validate:"required,oneof=ORDER ORDER_ITEM CASHBACK"`
	ApplicationRules domain.ApplicationRules `json:"applicationRules" validate:"required"`
	ViewRules        *rules.Node             `json:"viewRules,omitempty"`
	DiscountType     string                  `json:"discountType" validate:"required,oneof=FLAT PERCENT"`
	DiscountValue    float64                 `json:"discountValue" validate:"required,gt=0"`
	MaxDiscount      *float64                `json:"maxDiscount,omitempty" validate:"omitempty,gt=0"`
	Title            string                  `json:"title,omitempty"`
	Terms            string                  `json:"terms,omitempty"`
	SidebarNote      string                  `json:"sidebarNote,omitempty"`
	StartDate        time.Time               `json:"startDate" validate:"required"`
	EndDate          time.Time               `json:"endDate" validate:"required"`
	AutoApply        bool                    `json:"autoApply"`
}

// CreateOffer creates a new offer.
func (s *OfferService) CreateOffer(ctx context.Context, input *CreateOfferInput, createdBy string) (*domain.Offer, error) {
	if !input.EndDate.After(input.StartDate) {
		return nil, apperrors.InvalidInput("end date must be after start date")
	}
	if input.ApplicationRules.Conditions.IsZero() {
		return nil, apperrors.InvalidInput("application rules must carry a condition tree")
	}
	if _, err := rules.Evaluate(input.ApplicationRules.Conditions, rules.Facts{}); err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid condition tree: %v", err))
	}

	now := time.Now().UTC()
	offer := &domain.Offer{
		ID:               uuid.NewString(),
		Name:             input.Name,
		OfferLevel:       input.OfferLevel,
		ApplicationRules: input.ApplicationRules,
		ViewRules:        input.ViewRules,
		DiscountType:     input.DiscountType,
		DiscountValue:    input.DiscountValue,
		MaxDiscount:      input.MaxDiscount,
		Title:            input.Title,
		Terms:            input.Terms,
		SidebarNote:      input.SidebarNote,
		StartDate:        input.StartDate,
		EndDate:          input.EndDate,
		AutoApply:        input.AutoApply,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
		UpdatedBy:        createdBy,
	}

	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}

	s.logger.InfoContext(ctx, "offer created",
		slog.String("offer_id", offer.ID),
		slog.String("offer_level", offer.OfferLevel),
	)

	return offer, nil
}

// CreateVoucherInput holds the parameters for creating a voucher.
type CreateVoucherInput struct {
	Code       string `json:"code" validate:"required"`
	OfferID    string `json:"offerId" validate:"required,uuid"`
	Type       string `json:"type" validate:"required,oneof=STATIC DYNAMIC"`
	Scope      string `json:"scope" validate:"required,oneof=ALL ASSIGNED"`
	AssignedTo string `json:"assignedTo,omitempty"`
	Audience   string `json:"audience" validate:"required,oneof=CONSUMER FRANCHISE"`
	IsPublic   bool   `json:"isPublic"`
}

// CreateVoucher creates a new voucher bound to an existing offer.
func (s *OfferService) CreateVoucher(ctx context.Context, input *CreateVoucherInput, createdBy string) (*domain.Voucher, error) {
	if input.Scope == domain.VoucherScopeAssigned && input.AssignedTo == "" {
		return nil, apperrors.InvalidInput("assigned vouchers require an assignee")
	}
	if input.Scope == domain.VoucherScopeAll && !input.IsPublic {
		return nil, apperrors.InvalidInput("shared-scope vouchers must be public")
	}

	if _, err := s.offers.GetByID(ctx, input.OfferID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("offer", input.OfferID)
		}
		return nil, fmt.Errorf("load offer: %w", err)
	}

	existing, err := s.vouchers.GetByCode(ctx, input.Code, input.Audience)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check voucher code: %w", err)
	}
	if existing != nil {
		return nil, apperrors.AlreadyExists("voucher", "code", input.Code)
	}

	now := time.Now().UTC()
	voucher := &domain.Voucher{
		ID:         uuid.NewString(),
		Code:       input.Code,
		OfferID:    input.OfferID,
		Type:       input.Type,
		Scope:      input.Scope,
		AssignedTo: input.AssignedTo,
		Audience:   input.Audience,
		IsPublic:   input.IsPublic,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
		UpdatedBy:  createdBy,
	}

	if err := s.vouchers.Create(ctx, voucher); err != nil {
		return nil, fmt.Errorf("create voucher: %w", err)
	}

	s.logger.InfoContext(ctx, "voucher created",
		slog.String("voucher_code", voucher.Code),
		slog.String("offer_id", voucher.OfferID),
	)

	return voucher, nil
}

// BulkAssignVouchersInput holds the parameters for assigning one voucher
// per entity against a shared offer.
type BulkAssignVouchersInput struct {
	OfferID    string   `json:"offerId" validate:"required,uuid"`
	Type       string   `json:"type" validate:"required,oneof=STATIC DYNAMIC"`
	Audience   string   `json:"audience" validate:"required,oneof=CONSUMER FRANCHISE"`
	CodePrefix string   `json:"codePrefix" validate:"required"`
	Assignees  []string `json:"assignees" validate:"required,min=1,dive,required"`
}

// BulkAssignVouchers creates one assigned voucher per entity, each with a
// unique code derived from the given prefix.
func (s *OfferService) BulkAssignVouchers(ctx context.Context, input *BulkAssignVouchersInput, createdBy string) ([]domain.Voucher, error) {
	if _, err := s.offers.GetByID(ctx, input.OfferID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("offer", input.OfferID)
		}
		return nil, fmt.Errorf("load offer: %w", err)
	}

	now := time.Now().UTC()
	vouchers := make([]domain.Voucher, 0, len(input.Assignees))
	for _, assignee := range input.Assignees {
		voucher := domain.Voucher{
			ID:         uuid.NewString(),
			Code:       input.CodePrefix + "-" + strings.ToUpper(uuid.NewString()[:4]),
			OfferID:    input.OfferID,
			Type:       input.Type,
			Scope:      domain.VoucherScopeAssigned,
			AssignedTo: assignee,
			Audience:   input.Audience,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
			UpdatedBy:  createdBy,
		}
		if err := s.vouchers.Create(ctx, &voucher); err != nil {
			return nil, fmt.Errorf("create voucher for %s: %w", assignee, err)
		}
		vouchers = append(vouchers, voucher)
	}

	s.logger.InfoContext(ctx, "vouchers bulk assigned",
		slog.String("offer_id", input.OfferID),
		slog.Int("count", len(vouchers)),
	)

	return vouchers, nil
}

// OfferView is one entry of the storefront offer listing: the offer plus
// whether it would apply to the entity's current cart.
type OfferView struct {
	Offer        domain.Offer `json:"offer"`
	VoucherCode  string       `json:"voucherCode"`
	IsApplicable bool         `json:"isApplicable"`
}

// ListOffersForEntity returns the public offers visible to a consumer or
// store, annotated with applicability against their current cart. A missing
// cart is not an error: listing proceeds with an empty snapshot.
func (s *OfferService) ListOffersForEntity(ctx context.Context, entityID, audience string) ([]OfferView, error) {
	order, err := s.fetchCart(ctx, entityID, audience)
	if err != nil {
		s.logger.WarnContext(ctx, "cart fetch failed, listing offers without cart facts",
			slog.String("entity_id", entityID),
			slog.String("error", err.Error()),
		)
		order = &domain.Order{}
	}
	s.enrichStoreFacts(ctx, order, entityID, audience)

	// A non-public code the entity already applied stays visible to them, so
	// the listing carries the previously applied voucher along.
	filter := repository.VoucherFilter{
		EntityID: entityID,
		Audience: audience,
		At:       time.Now().UTC(),
	}
	if order.OfferData != nil {
		filter.PreviousCode = order.OfferData.VoucherCode
	}

	candidates, err := s.vouchers.ResolveCandidates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("resolve vouchers: %w", err)
	}

	offerIDs := make([]string, 0, len(candidates))
	for _, v := range candidates {
		offerIDs = append(offerIDs, v.OfferID)
	}
	offersByID, err := s.offers.GetByIDs(ctx, offerIDs)
	if err != nil {
		return nil, fmt.Errorf("load offers: %w", err)
	}

	facts, err := FactsFromOrder(order)
	if err != nil {
		return nil, err
	}

	views := make([]OfferView, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, v := range candidates {
		offer, ok := offersByID[v.OfferID]
		if !ok || seen[offer.ID] {
			continue
		}
		seen[offer.ID] = true

		if !s.applicability.IsViewable(ctx, offer, facts) {
			continue
		}

		views = append(views, OfferView{
			Offer:        *offer,
			VoucherCode:  v.Code,
			IsApplicable: s.applicability.IsApplicable(ctx, offer, facts),
		})
	}

	return views, nil
}

// AutoApplyVoucher picks the voucher the order service should apply to a
// store cart on its own: the oldest live auto-apply candidate for the
// store. Returns an empty code when none qualifies.
func (s *OfferService) AutoApplyVoucher(ctx context.Context, storeID string) (string, error) {
	autoApply := true
	candidates, err := s.vouchers.ResolveCandidates(ctx, repository.VoucherFilter{
		EntityID:  storeID,
		Audience:  domain.AudienceFranchise,
		At:        time.Now().UTC(),
		AutoApply: &autoApply,
	})
	if err != nil {
		return "", fmt.Errorf("resolve auto-apply vouchers: %w", err)
	}
	if len(candidates) == 0 {
		return "", nil
	}
	return candidates[0].Code, nil
}

// ValidateCoupon resolves a voucher code for an entity's current cart and
// returns the grant it would produce. The error encodes why a code cannot
// be applied: unknown, retired, spent, or simply not applicable.
func (s *OfferService) ValidateCoupon(ctx context.Context, code, entityID, audience string) (*domain.OfferOutcome, error) {
	voucher, offer, err := s.resolveVoucher(ctx, code, entityID, audience)
	if err != nil {
		return nil, err
	}

	order, err := s.fetchCart(ctx, entityID, audience)
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	s.enrichStoreFacts(ctx, order, entityID, audience)

	outcome, err := s.applicability.Apply(ctx, offer, order)
	if err != nil {
		return nil, err
	}
	outcome.VoucherCode = voucher.Code

	return outcome, nil
}

// RecordRedemptionInput holds the parameters for recording a redemption.
type RecordRedemptionInput struct {
	UserID      string `json:"userId" validate:"required"`
	OrderID     string `json:"orderId" validate:"required"`
	VoucherCode string `json:"voucherCode" validate:"required"`
	Audience    string `json:"audience" validate:"required,oneof=CONSUMER FRANCHISE"`
}

// RecordRedemption appends the redemption audit record for an applied
// voucher and consumes dynamic vouchers.
func (s *OfferService) RecordRedemption(ctx context.Context, input *RecordRedemptionInput) (*domain.Redemption, error) {
	voucher, offer, err := s.resolveVoucher(ctx, input.VoucherCode, input.UserID, input.Audience)
	if err != nil {
		return nil, err
	}

	redemption := &domain.Redemption{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		OrderID:     input.OrderID,
		OfferID:     offer.ID,
		VoucherID:   voucher.ID,
		VoucherCode: voucher.Code,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.redemptions.Create(ctx, redemption); err != nil {
		return nil, fmt.Errorf("record redemption: %w", err)
	}

	if voucher.Type == domain.VoucherTypeDynamic {
		voucher.IsRedeemed = true
		voucher.UpdatedAt = time.Now().UTC()
		voucher.UpdatedBy = input.UserID
		if err := s.vouchers.Update(ctx, voucher); err != nil {
			return nil, fmt.Errorf("consume voucher: %w", err)
		}
	}

	// Events are best effort: a broker outage must not fail the redemption.
	if err := s.producer.PublishOfferRedeemed(ctx, redemption); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish offer.redeemed event",
			slog.String("voucher_code", voucher.Code),
			slog.String("error", err.Error()),
		)
	}

	return redemption, nil
}

// resolveVoucher loads a voucher and its offer and runs the state checks
// every application path shares.
func (s *OfferService) resolveVoucher(ctx context.Context, code, entityID, audience string) (*domain.Voucher, *domain.Offer, error) {
	voucher, err := s.vouchers.GetByCode(ctx, code, audience)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.NotFound("voucher", code)
		}
		return nil, nil, fmt.Errorf("load voucher: %w", err)
	}

	if !voucher.Active {
		return nil, nil, apperrors.Gone("voucher has been retired")
	}
	if voucher.IsSpent() {
		return nil, nil, apperrors.Gone("voucher has already been used")
	}
	if !voucher.IsUsableBy(entityID) {
		return nil, nil, apperrors.NotApplicable("voucher is not assigned to this account")
	}

	offer, err := s.offers.GetByID(ctx, voucher.OfferID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.NotFound("offer", voucher.OfferID)
		}
		return nil, nil, fmt.Errorf("load offer: %w", err)
	}
	if !offer.IsLive(time.Now().UTC()) {
		return nil, nil, apperrors.Gone("offer is no longer live")
	}

	return voucher, offer, nil
}

func (s *OfferService) fetchCart(ctx context.Context, entityID, audience string) (*domain.Order, error) {
	if audience == domain.AudienceFranchise {
		return s.orders.GetFranchiseCart(ctx, entityID)
	}
	return s.orders.GetConsumerCart(ctx, entityID)
}

// enrichStoreFacts adds the store-age fact for franchise carts. A store
// lookup failure falls back to a value old enough that new-store rules
// never fire for an unknown store.
func (s *OfferService) enrichStoreFacts(ctx context.Context, order *domain.Order, entityID, audience string) {
	if audience != domain.AudienceFranchise || order.DaysSinceStoreCreated != nil {
		return
	}

	days := fallbackStoreAgeDays
	store, err := s.stores.GetStore(ctx, entityID)
	if err != nil {
		s.logger.WarnContext(ctx, "store lookup failed, using fallback store age",
			slog.String("store_id", entityID),
			slog.String("error", err.Error()),
		)
	} else {
		days = int(time.Since(store.CreatedAt).Hours() / 24)
	}
	order.DaysSinceStoreCreated = &days
}
