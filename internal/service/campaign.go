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

// CampaignService implements target campaign lifecycle logic: creating
// campaigns with their cashback schedules, backing offers and vouchers, and
// the mid-flight update that retires and regenerates unsettled schedule
// rows.
type CampaignService struct {
	campaigns repository.CampaignRepository
	cashbacks repository.CashbackRepository
	offers    repository.OfferRepository
	vouchers  repository.VoucherRepository
	wallets   WalletGateway
	producer  *event.Producer
	logger    *slog.Logger
}

// NewCampaignService creates a new campaign service.
func NewCampaignService(
	campaigns repository.CampaignRepository,
	cashbacks repository.CashbackRepository,
	offers repository.OfferRepository,
	vouchers repository.VoucherRepository,
	wallets WalletGateway,
	producer *event.Producer,
	logger *slog.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		cashbacks: cashbacks,
		offers:    offers,
		vouchers:  vouchers,
		wallets:   wallets,
		producer:  producer,
		logger:    logger,
	}
}

// CampaignInput holds the parameters for one campaign in an initiate batch.
type CampaignInput struct {
	StoreID               string    `json:"storeId" validate:"required"`
	Cadence               string    `json:"cadence" validate:"required,oneof=DAILY WEEKLY"`
	TargetAmount          float64   `json:"targetAmount" validate:"required,gt=0"`
	StartDate             time.Time `json:"startDate" validate:"required"`
	EndDate               time.Time `json:"endDate" validate:"required"`
	DailyCashbackPercent  float64   `json:"dailyCashbackPercent" validate:"gte=0,lte=100"`
	WeeklyCashbackPercent float64   `json:"weeklyCashbackPercent" validate:"gte=0,lte=100"`
}

// InitiateCampaigns creates a batch of campaigns. Each campaign gets its
// full cashback schedule, a backing cashback offer, and a store voucher. A
// store cannot run two active campaigns over overlapping windows.
func (s *CampaignService) InitiateCampaigns(ctx context.Context, inputs []CampaignInput, createdBy string) ([]domain.TargetCampaign, error) {
	if len(inputs) == 0 {
		return nil, apperrors.InvalidInput("at least one campaign is required")
	}

	storeIDs := make([]string, 0, len(inputs))
	for i := range inputs {
		in := &inputs[i]
		if !in.EndDate.After(in.StartDate) && !in.EndDate.Equal(in.StartDate) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("store %s: end date must not precede start date", in.StoreID))
		}
		if in.Cadence == domain.CadenceWeekly && in.WeeklyCashbackPercent <= 0 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("store %s: weekly campaigns need a weekly cashback percent", in.StoreID))
		}
		storeIDs = append(storeIDs, in.StoreID)
	}

	if err := s.checkOverlaps(ctx, inputs, storeIDs); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	campaigns := make([]*domain.TargetCampaign, 0, len(inputs))
	for _, in := range inputs {
		campaigns = append(campaigns, &domain.TargetCampaign{
			StoreID:      in.StoreID,
			Cadence:      in.Cadence,
			CampaignType: domain.CampaignTypeMOV,
			Metadata: domain.CampaignMetadata{
				WeeklyCashbackPercent: in.WeeklyCashbackPercent,
				DailyCashbackPercent:  in.DailyCashbackPercent,
			},
			StartDate:    in.StartDate,
			EndDate:      in.EndDate,
			TargetAmount: in.TargetAmount,
			Status:       domain.CampaignStatusActive,
			Active:       domain.CampaignStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
			CreatedBy:    createdBy,
			ModifiedBy:   createdBy,
		})
	}

	if err := s.campaigns.CreateBatch(ctx, campaigns); err != nil {
		return nil, fmt.Errorf("create campaigns: %w", err)
	}

	out := make([]domain.TargetCampaign, 0, len(campaigns))
	for _, c := range campaigns {
		if err := s.provisionCampaign(ctx, c, c.StartDate, c.EndDate, createdBy, true); err != nil {
			// The campaign row exists; surface the provisioning failure so
			// an operator can re-run the update flow for this store.
			return nil, fmt.Errorf("provision campaign %d: %w", c.ID, err)
		}

		if err := s.producer.PublishCampaignCreated(ctx, c); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish campaign.created event",
				slog.Int64("campaign_id", c.ID),
				slog.String("error", err.Error()),
			)
		}
		out = append(out, *c)
	}

	return out, nil
}

func (s *CampaignService) checkOverlaps(ctx context.Context, inputs []CampaignInput, storeIDs []string) error {
	var minStart, maxEnd time.Time
	for _, in := range inputs {
		if minStart.IsZero() || in.StartDate.Before(minStart) {
			minStart = in.StartDate
		}
		if in.EndDate.After(maxEnd) {
			maxEnd = in.EndDate
		}
	}

	existing, err := s.campaigns.ListActiveByStores(ctx, storeIDs, minStart, maxEnd)
	if err != nil {
		return fmt.Errorf("check campaign overlap: %w", err)
	}

	for _, in := range inputs {
		for _, c := range existing {
			if c.StoreID == in.StoreID && !in.StartDate.After(c.EndDate) && !in.EndDate.Before(c.StartDate) {
				return apperrors.Conflict(fmt.Sprintf(
					"store %s already has campaign %d running in this window", in.StoreID, c.ID))
			}
		}
	}
	return nil
}

// provisionCampaign creates the schedule rows for [from, to] plus, when
// withVoucher is set, the backing offer and store voucher.
func (s *CampaignService) provisionCampaign(ctx context.Context, c *domain.TargetCampaign, from, to time.Time, by string, withVoucher bool) error {
	rows := buildScheduleRows(c, from, to, by)
	if err := s.cashbacks.CreateBatch(ctx, rows); err != nil {
		return fmt.Errorf("create cashback schedule: %w", err)
	}

	if !withVoucher {
		return nil
	}

	offer, err := s.createCampaignOffer(ctx, c, by)
	if err != nil {
		return err
	}
	if offer == nil {
		return nil
	}

	now := time.Now().UTC()
	voucher := &domain.Voucher{
		ID:         uuid.NewString(),
		Code:       newVoucherCode(),
		OfferID:    offer.ID,
		Type:       domain.VoucherTypeStatic,
		Scope:      domain.VoucherScopeAssigned,
		AssignedTo: c.StoreID,
		Audience:   domain.AudienceFranchise,
		IsPublic:   true,
		Active:     true,
		CampaignID: &c.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
		UpdatedBy:  by,
	}
	if err := s.vouchers.Create(ctx, voucher); err != nil {
		return fmt.Errorf("create campaign voucher: %w", err)
	}

	return nil
}

// buildScheduleRows lays out the cashback schedule: one DAILY row per
// calendar day in [from, to] when the campaign pays a daily cashback, plus
// a single WEEKLY bonus row on the end date for weekly campaigns.
func buildScheduleRows(c *domain.TargetCampaign, from, to time.Time, by string) []*domain.TargetCashback {
	now := time.Now().UTC()
	dailyTarget := c.DailyTarget()

	var rows []*domain.TargetCashback
	for d := from; c.Metadata.DailyCashbackPercent > 0 && !d.After(to); d = d.AddDate(0, 0, 1) {
		rows = append(rows, &domain.TargetCashback{
			StoreID:         c.StoreID,
			CampaignID:      c.ID,
			CashbackDate:    d,
			TargetAmount:    dailyTarget,
			Cadence:         domain.CadenceDaily,
			CashbackPercent: c.Metadata.DailyCashbackPercent,
			Active:          domain.CashbackActive,
			CreatedAt:       now,
			UpdatedAt:       now,
			ModifiedBy:      by,
		})
	}

	if c.Cadence == domain.CadenceWeekly {
		rows = append(rows, &domain.TargetCashback{
			StoreID:         c.StoreID,
			CampaignID:      c.ID,
			CashbackDate:    c.EndDate,
			TargetAmount:    c.TargetAmount,
			Cadence:         domain.CadenceWeekly,
			CashbackPercent: c.Metadata.WeeklyCashbackPercent,
			Active:          domain.CashbackActive,
			CreatedAt:       now,
			UpdatedAt:       now,
			ModifiedBy:      by,
		})
	}

	return rows
}

// createCampaignOffer builds the cashback offer backing a campaign's
// voucher. The condition is the daily target itself: the offer applies once
// the cart's non-bulk gross amount reaches it. Campaigns without a daily
// cashback percent get no offer. The validity window is shifted a day
// earlier than the campaign window, so stores apply tomorrow's voucher
// while placing today's cart.
func (s *CampaignService) createCampaignOffer(ctx context.Context, c *domain.TargetCampaign, by string) (*domain.Offer, error) {
	if c.Metadata.DailyCashbackPercent <= 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	start, end := c.VoucherWindow()

	offer := &domain.Offer{
		ID:         uuid.NewString(),
		Name:       c.OfferName(now),
		OfferLevel: domain.OfferLevelCashback,
		ApplicationRules: domain.ApplicationRules{
			Conditions: rules.Node{All: []rules.Node{
				{Fact: "spGrossAmountWithoutBulkSkus", Operator: rules.OpGreaterThanOrEqual, Value: c.DailyTarget()},
			}},
			Event: domain.RuleEvent{Type: domain.EventTypeOrderLevel},
		},
		DiscountType:  domain.DiscountTypePercent,
		DiscountValue: c.Metadata.DailyCashbackPercent,
		Title:         fmt.Sprintf("%g%% daily cashback on hitting your target", c.Metadata.DailyCashbackPercent),
		StartDate:     start,
		EndDate:       end,
		AutoApply:     true,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
		UpdatedBy:     by,
	}

	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("create campaign offer: %w", err)
	}
	return offer, nil
}

func newVoucherCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "GUL-" + raw[:4]
}

// ListCampaigns returns all campaigns, newest first.
func (s *CampaignService) ListCampaigns(ctx context.Context) ([]domain.TargetCampaign, error) {
	campaigns, err := s.campaigns.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, nil
}

// ListCampaignCashbacks returns a campaign's full cashback schedule,
// settled and pending rows alike, ordered by date.
func (s *CampaignService) ListCampaignCashbacks(ctx context.Context, id int64) ([]domain.TargetCashback, error) {
	if _, err := s.campaigns.GetByID(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("campaign", fmt.Sprintf("%d", id))
		}
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	rows, err := s.cashbacks.ListByCampaign(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("list cashback schedule: %w", err)
	}
	return rows, nil
}

// UpdateCampaignInput holds the mutable fields of a campaign.
type UpdateCampaignInput struct {
	TargetAmount          float64 `json:"targetAmount" validate:"required,gt=0"`
	Status                int     `json:"status" validate:"oneof=0 1"`
	DailyCashbackPercent  float64 `json:"dailyCashbackPercent" validate:"gte=0,lte=100"`
	WeeklyCashbackPercent float64 `json:"weeklyCashbackPercent" validate:"gte=0,lte=100"`
}

// UpdateCampaign changes a campaign's target, status, or percentages
// mid-flight. Settled schedule rows are immutable history: the update
// retires the unsettled remainder, regenerates it from the first unsettled
// date with the new parameters, and repoints the store's vouchers at a
// fresh backing offer. A no-op input leaves everything untouched.
func (s *CampaignService) UpdateCampaign(ctx context.Context, id int64, input *UpdateCampaignInput, modifiedBy string) (*domain.TargetCampaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("campaign", fmt.Sprintf("%d", id))
		}
		return nil, fmt.Errorf("load campaign: %w", err)
	}

	if c.TargetAmount == input.TargetAmount &&
		c.Status == input.Status &&
		c.Metadata.DailyCashbackPercent == input.DailyCashbackPercent &&
		c.Metadata.WeeklyCashbackPercent == input.WeeklyCashbackPercent {
		return c, nil
	}

	// Work out the regeneration window before touching anything. Settled
	// rows pin the start: history stays, only the future is rewritten.
	dailyRows, err := s.cashbacks.ListByCampaign(ctx, c.ID, true)
	if err != nil {
		return nil, fmt.Errorf("load cashback schedule: %w", err)
	}

	regenFrom, regenTo, regenerate := regenerationWindow(c, dailyRows)
	if !regenerate && len(dailyRows) > 0 {
		return nil, apperrors.Conflict("campaign schedule is fully settled and can no longer be updated")
	}

	if _, err := s.cashbacks.DeactivateUnsettledByCampaign(ctx, c.ID, modifiedBy); err != nil {
		return nil, fmt.Errorf("retire unsettled rows: %w", err)
	}

	c.TargetAmount = input.TargetAmount
	c.Status = input.Status
	c.Active = input.Status
	c.Metadata.DailyCashbackPercent = input.DailyCashbackPercent
	c.Metadata.WeeklyCashbackPercent = input.WeeklyCashbackPercent
	c.UpdatedAt = time.Now().UTC()
	c.ModifiedBy = modifiedBy

	if err := s.refreshVouchers(ctx, c, modifiedBy); err != nil {
		return nil, err
	}

	if c.Status == domain.CampaignStatusActive && regenerate {
		rows := buildScheduleRows(c, regenFrom, regenTo, modifiedBy)
		if err := s.cashbacks.CreateBatch(ctx, rows); err != nil {
			return nil, fmt.Errorf("regenerate cashback schedule: %w", err)
		}
	}

	if err := s.campaigns.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}

	if err := s.producer.PublishCampaignUpdated(ctx, c); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish campaign.updated event",
			slog.Int64("campaign_id", c.ID),
			slog.String("error", err.Error()),
		)
	}

	return c, nil
}

// regenerationWindow finds the portion of the schedule that may be
// rewritten. No rows yet, or nothing settled, means the whole campaign
// window. A fully settled schedule means nothing to regenerate.
func regenerationWindow(c *domain.TargetCampaign, rows []domain.TargetCashback) (from, to time.Time, ok bool) {
	var daily []domain.TargetCashback
	for _, r := range rows {
		if r.Cadence == domain.CadenceDaily {
			daily = append(daily, r)
		}
	}

	if len(daily) == 0 || !daily[0].IsSettled() {
		return c.StartDate, c.EndDate, true
	}
	if daily[len(daily)-1].IsSettled() {
		return time.Time{}, time.Time{}, false
	}

	for _, r := range daily {
		if !r.IsSettled() {
			return r.CashbackDate, c.EndDate, true
		}
	}
	return time.Time{}, time.Time{}, false
}

// refreshVouchers repoints the campaign's vouchers at a fresh backing offer
// reflecting the updated parameters, or retires them when the campaign is
// being switched off. A campaign that somehow lost its voucher gets a new
// one.
func (s *CampaignService) refreshVouchers(ctx context.Context, c *domain.TargetCampaign, by string) error {
	vouchers, err := s.vouchers.ListByCampaigns(ctx, []int64{c.ID}, false)
	if err != nil {
		return fmt.Errorf("load campaign vouchers: %w", err)
	}

	if c.Status != domain.CampaignStatusActive {
		now := time.Now().UTC()
		for i := range vouchers {
			vouchers[i].Active = false
			vouchers[i].UpdatedAt = now
			vouchers[i].UpdatedBy = by
		}
		if err := s.vouchers.UpdateBatch(ctx, vouchers); err != nil {
			return fmt.Errorf("retire campaign vouchers: %w", err)
		}
		return nil
	}

	offer, err := s.createCampaignOffer(ctx, c, by)
	if err != nil {
		return err
	}
	if offer == nil {
		// The update dropped the daily cashback, so there is no offer left
		// for a voucher to point at.
		now := time.Now().UTC()
		for i := range vouchers {
			vouchers[i].Active = false
			vouchers[i].UpdatedAt = now
			vouchers[i].UpdatedBy = by
		}
		if err := s.vouchers.UpdateBatch(ctx, vouchers); err != nil {
			return fmt.Errorf("retire campaign vouchers: %w", err)
		}
		return nil
	}

	if len(vouchers) == 0 {
		now := time.Now().UTC()
		voucher := &domain.Voucher{
			ID:         uuid.NewString(),
			Code:       newVoucherCode(),
			OfferID:    offer.ID,
			Type:       domain.VoucherTypeStatic,
			Scope:      domain.VoucherScopeAssigned,
			AssignedTo: c.StoreID,
			Audience:   domain.AudienceFranchise,
			IsPublic:   true,
			Active:     true,
			CampaignID: &c.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
			UpdatedBy:  by,
		}
		if err := s.vouchers.Create(ctx, voucher); err != nil {
			return fmt.Errorf("create campaign voucher: %w", err)
		}
		return nil
	}

	now := time.Now().UTC()
	for i := range vouchers {
		vouchers[i].OfferID = offer.ID
		vouchers[i].Active = true
		vouchers[i].UpdatedAt = now
		vouchers[i].UpdatedBy = by
	}
	if err := s.vouchers.UpdateBatch(ctx, vouchers); err != nil {
		return fmt.Errorf("repoint campaign vouchers: %w", err)
	}
	return nil
}

// StoreCampaignProgress is the store-facing view of a running campaign.
type StoreCampaignProgress struct {
	CampaignID   int64                     `json:"campaignId"`
	Cadence      string                    `json:"cadence"`
	TargetAmount float64                   `json:"targetAmount"`
	StartDate    time.Time                 `json:"startDate"`
	EndDate      time.Time                 `json:"endDate"`
	TotalEarned  float64                   `json:"totalEarned"`
	Days         []domain.CashbackProgress `json:"days"`
}

// StoreCampaignView returns the progress tab for the store's currently
// running campaign, or nil when no campaign covers the given date.
func (s *CampaignService) StoreCampaignView(ctx context.Context, storeID string, at time.Time) (*StoreCampaignProgress, error) {
	c, err := s.campaigns.GetRunningForStore(ctx, storeID, at)
	if err != nil {
		return nil, fmt.Errorf("load running campaign: %w", err)
	}
	if c == nil {
		return nil, nil
	}

	rows, err := s.cashbacks.ListByCampaign(ctx, c.ID, true)
	if err != nil {
		return nil, fmt.Errorf("load cashback schedule: %w", err)
	}

	progress := &StoreCampaignProgress{
		CampaignID:   c.ID,
		Cadence:      c.Cadence,
		TargetAmount: c.TargetAmount,
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
	}

	today := at.Truncate(24 * time.Hour)
	for _, row := range rows {
		if row.Cadence != domain.CadenceDaily {
			continue
		}
		day := domain.CashbackProgress{
			Date:           row.CashbackDate,
			TargetAmount:   row.TargetAmount,
			AchievedAmount: row.Metadata.QualifierOrderBillAmount,
			Cashback:       row.Cashback,
			Status:         progressStatus(row, today),
		}
		if row.Cashback != nil {
			progress.TotalEarned += *row.Cashback
		}
		progress.Days = append(progress.Days, day)
	}

	return progress, nil
}

func progressStatus(row domain.TargetCashback, today time.Time) string {
	rowDay := row.CashbackDate.Truncate(24 * time.Hour)
	switch {
	case row.IsSettled() && *row.Cashback > 0:
		return domain.ProgressEarned
	case row.IsSettled():
		return domain.ProgressFailed
	case rowDay.Equal(today):
		return domain.ProgressCurrent
	case rowDay.Before(today):
		return domain.ProgressInProcess
	default:
		return domain.ProgressLocked
	}
}

// StoreEarnings summarizes a store's settled cashback.
type StoreEarnings struct {
	StoreID        string  `json:"storeId"`
	MonthlyEarned  float64 `json:"monthlyEarned"`
	LifetimeEarned float64 `json:"lifetimeEarned"`
}

// Earnings returns a store's cashback earned this calendar month and over
// its lifetime.
func (s *CampaignService) Earnings(ctx context.Context, storeID string, now time.Time) (*StoreEarnings, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	monthly, err := s.cashbacks.SumSettledByStore(ctx, storeID, &monthStart, nil)
	if err != nil {
		return nil, fmt.Errorf("sum monthly cashback: %w", err)
	}
	lifetime, err := s.cashbacks.SumSettledByStore(ctx, storeID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("sum lifetime cashback: %w", err)
	}

	return &StoreEarnings{
		StoreID:        storeID,
		MonthlyEarned:  monthly,
		LifetimeEarned: lifetime,
	}, nil
}

// MarkWalletEligible backfills wallet eligibility onto unsettled daily rows
// in [from, to]. Settlement later refuses to credit rows whose stores have
// no active wallet, so the flag is stamped ahead of time. Returns the
// number of rows touched.
func (s *CampaignService) MarkWalletEligible(ctx context.Context, from, to time.Time, runBy string) (int, error) {
	rows, err := s.cashbacks.ListUnsettled(ctx, domain.CadenceDaily, from, to, nil)
	if err != nil {
		return 0, fmt.Errorf("load unsettled rows: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	storeSet := make(map[string]bool)
	storeIDs := make([]string, 0)
	for _, row := range rows {
		if !storeSet[row.StoreID] {
			storeSet[row.StoreID] = true
			storeIDs = append(storeIDs, row.StoreID)
		}
	}

	wallets, err := s.wallets.GetWallets(ctx, storeIDs)
	if err != nil {
		return 0, fmt.Errorf("load wallets: %w", err)
	}
	eligible := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		eligible[w.EntityID] = w.Status == domain.WalletStatusActive
	}

	now := time.Now().UTC()
	for i := range rows {
		rows[i].Metadata.IsWalletEligible = eligible[rows[i].StoreID]
		rows[i].UpdatedAt = now
		rows[i].ModifiedBy = runBy
	}

	if err := s.cashbacks.UpdateBatch(ctx, rows); err != nil {
		return 0, fmt.Errorf("update rows: %w", err)
	}

	return len(rows), nil
}
