package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/rules"
	apperrors "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/errors"
)

// Applicability evaluates offers against order snapshots. Visibility and
// applicability are separate questions answered by separate trees on the
// offer, and a broken tree can only ever hide or disqualify that one offer.
type Applicability struct {
	logger *slog.Logger
}

// NewApplicability creates a new applicability engine.
func NewApplicability(logger *slog.Logger) *Applicability {
	return &Applicability{logger: logger}
}

// FactsFromOrder flattens an order snapshot into the fact object rule trees
// are evaluated against. Going through JSON keeps fact names identical to
// the wire field names the rule authors see.
func FactsFromOrder(order *domain.Order) (rules.Facts, error) {
	raw, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order facts: %w", err)
	}

	var facts rules.Facts
	if err := json.Unmarshal(raw, &facts); err != nil {
		return nil, fmt.Errorf("unmarshal order facts: %w", err)
	}
	return facts, nil
}

// IsViewable reports whether an offer should be shown for the given order.
// An offer with no view rules is always shown. An evaluation failure hides
// the offer rather than failing the listing.
func (a *Applicability) IsViewable(ctx context.Context, offer *domain.Offer, facts rules.Facts) bool {
	if offer.ViewRules == nil || offer.ViewRules.IsZero() {
		return true
	}

	ok, err := rules.Evaluate(*offer.ViewRules, facts)
	if err != nil {
		a.logger.WarnContext(ctx, "view rules evaluation failed, hiding offer",
			slog.String("offer_id", offer.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

// IsApplicable reports whether an offer's conditions hold for the given
// facts. Evaluation failures count as not applicable.
func (a *Applicability) IsApplicable(ctx context.Context, offer *domain.Offer, facts rules.Facts) bool {
	ok, err := rules.Evaluate(offer.ApplicationRules.Conditions, facts)
	if err != nil {
		a.logger.WarnContext(ctx, "application rules evaluation failed, treating as not applicable",
			slog.String("offer_id", offer.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

// Apply evaluates an offer against an order and materializes the grant its
// event produces. ORDERLEVEL events run the tree once over whole-order
// facts; ITEMLEVEL events run it once per order item. Returns
// ErrNotApplicable when nothing matches, and a CONFLICT error when the
// offer's level and event type disagree.
func (a *Applicability) Apply(ctx context.Context, offer *domain.Offer, order *domain.Order) (*domain.OfferOutcome, error) {
	outcome := &domain.OfferOutcome{
		OfferID:    offer.ID,
		OfferLevel: offer.OfferLevel,
		OfferTitle: offer.Title,
	}

	switch offer.ApplicationRules.Event.Type {
	case domain.EventTypeOrderLevel:
		if offer.OfferLevel != domain.OfferLevelOrder && offer.OfferLevel != domain.OfferLevelCashback {
			return nil, apperrors.Conflict("offer level and event type are conflicting")
		}

		facts, err := FactsFromOrder(order)
		if err != nil {
			return nil, err
		}
		if !a.IsApplicable(ctx, offer, facts) {
			return nil, apperrors.NotApplicable("offer conditions not met for this order")
		}

		if offer.OfferLevel == domain.OfferLevelCashback {
			outcome.Cashback = cashbackGrantFor(offer)
		} else {
			outcome.OrderDiscount = orderDiscountFor(offer, order.FinalBillAmount)
		}

	case domain.EventTypeItemLevel:
		if offer.OfferLevel != domain.OfferLevelOrderItem {
			return nil, apperrors.Conflict("offer level and event type are conflicting")
		}

		discounts, err := a.itemDiscounts(ctx, offer, order)
		if err != nil {
			return nil, err
		}
		if len(discounts) == 0 {
			return nil, apperrors.NotApplicable("no order item qualifies for this offer")
		}
		outcome.SkuDiscounts = discounts

	default:
		return nil, apperrors.Conflict("offer level and event type are conflicting")
	}

	return outcome, nil
}

// itemDiscounts runs the condition tree once per order item, each item's
// facts merged with the order-level context, and grants an independent
// capped discount for every match. Non-matching items are skipped.
func (a *Applicability) itemDiscounts(ctx context.Context, offer *domain.Offer, order *domain.Order) ([]domain.SkuDiscountParams, error) {
	orderFacts, err := FactsFromOrder(order)
	if err != nil {
		return nil, err
	}

	var matched []domain.SkuDiscountParams
	for _, item := range order.OrderItems {
		facts, err := itemFacts(item, orderFacts, len(matched))
		if err != nil {
			return nil, err
		}
		if !a.IsApplicable(ctx, offer, facts) {
			continue
		}
		matched = append(matched, domain.SkuDiscountParams{
			SkuCode:       item.SkuCode,
			DiscountType:  offer.DiscountType,
			DiscountValue: cappedDiscount(offer, item.SpGrossAmount),
		})
	}
	return matched, nil
}

// itemFacts merges one item's fields with the order-level context, order
// fields winning on collision, plus a running count of items the offer has
// already matched on this order.
func itemFacts(item domain.OrderItem, orderFacts rules.Facts, appliedCount int) (rules.Facts, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshal item facts: %w", err)
	}

	var facts rules.Facts
	if err := json.Unmarshal(raw, &facts); err != nil {
		return nil, fmt.Errorf("unmarshal item facts: %w", err)
	}

	for k, v := range orderFacts {
		facts[k] = v
	}
	facts["offerAppliedSkuCount"] = float64(appliedCount)
	return facts, nil
}

// cappedDiscount computes the rupee discount an offer grants on the given
// base amount: the flat value, or the percent of the base, clamped to the
// offer's max discount when one is set.
func cappedDiscount(offer *domain.Offer, baseAmount float64) float64 {
	raw := offer.DiscountValue
	if offer.DiscountType == domain.DiscountTypePercent {
		raw = baseAmount * offer.DiscountValue / 100
	}
	if offer.MaxDiscount != nil && raw > *offer.MaxDiscount {
		return *offer.MaxDiscount
	}
	return raw
}

// orderDiscountFor builds the order-wide grant. The value is the computed
// rupee amount, so the type is always FLAT from the caller's point of view.
func orderDiscountFor(offer *domain.Offer, orderAmount float64) *domain.OrderDiscount {
	return &domain.OrderDiscount{
		DiscountType:  domain.DiscountTypeFlat,
		DiscountValue: cappedDiscount(offer, orderAmount),
	}
}

// cashbackGrantFor records the cashback entitlement: a percent offer grants
// a rate, a flat offer grants a fixed amount. The credit itself happens at
// settlement.
func cashbackGrantFor(offer *domain.Offer) *domain.CashbackGrant {
	grant := &domain.CashbackGrant{}
	if offer.DiscountType == domain.DiscountTypePercent {
		grant.CashbackPercent = offer.DiscountValue
	} else {
		grant.CashbackAmount = offer.DiscountValue
	}
	return grant
}
