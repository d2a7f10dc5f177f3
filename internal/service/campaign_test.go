package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/rules"
	apperrors "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/errors"
)

type campaignServiceMocks struct {
	campaigns *mockCampaignRepository
	cashbacks *mockCashbackRepository
	offers    *mockOfferRepository
	vouchers  *mockVoucherRepository
	wallets   *mockWalletGateway
}

func newTestCampaignService() (*CampaignService, *campaignServiceMocks) {
	m := &campaignServiceMocks{
		campaigns: new(mockCampaignRepository),
		cashbacks: new(mockCashbackRepository),
		offers:    new(mockOfferRepository),
		vouchers:  new(mockVoucherRepository),
		wallets:   new(mockWalletGateway),
	}
	svc := NewCampaignService(
		m.campaigns, m.cashbacks, m.offers, m.vouchers, m.wallets,
		newTestProducer(), newTestLogger(),
	)
	return svc, m
}

func weeklyCampaign() *domain.TargetCampaign {
	return &domain.TargetCampaign{
		ID:           42,
		StoreID:      "store-9",
		Cadence:      domain.CadenceWeekly,
		CampaignType: domain.CampaignTypeMOV,
		Metadata: domain.CampaignMetadata{
			DailyCashbackPercent:  2,
			WeeklyCashbackPercent: 5,
		},
		StartDate:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		TargetAmount: 70000,
		Status:       domain.CampaignStatusActive,
		Active:       domain.CampaignStatusActive,
	}
}

func TestInitiateCampaigns_WeeklySchedule(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	m.campaigns.On("ListActiveByStores", ctx, []string{"store-9"}, mock.Anything, mock.Anything).
		Return([]domain.TargetCampaign{}, nil)
	m.campaigns.On("CreateBatch", ctx, mock.AnythingOfType("[]*domain.TargetCampaign")).
		Run(func(args mock.Arguments) {
			for i, c := range args.Get(1).([]*domain.TargetCampaign) {
				c.ID = int64(100 + i)
			}
		}).Return(nil)

	var scheduled []*domain.TargetCashback
	m.cashbacks.On("CreateBatch", ctx, mock.AnythingOfType("[]*domain.TargetCashback")).
		Run(func(args mock.Arguments) {
			scheduled = args.Get(1).([]*domain.TargetCashback)
		}).Return(nil)

	var offer *domain.Offer
	m.offers.On("Create", ctx, mock.AnythingOfType("*domain.Offer")).
		Run(func(args mock.Arguments) {
			offer = args.Get(1).(*domain.Offer)
		}).Return(nil)

	var voucher *domain.Voucher
	m.vouchers.On("Create", ctx, mock.AnythingOfType("*domain.Voucher")).
		Run(func(args mock.Arguments) {
			voucher = args.Get(1).(*domain.Voucher)
		}).Return(nil)

	created, err := svc.InitiateCampaigns(ctx, []CampaignInput{{
		StoreID:               "store-9",
		Cadence:               domain.CadenceWeekly,
		TargetAmount:          70000,
		StartDate:             time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:               time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		DailyCashbackPercent:  2,
		WeeklyCashbackPercent: 5,
	}}, "ops-1")

	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, int64(100), created[0].ID)

	// 7 daily rows plus the weekly bonus row on the end date.
	require.Len(t, scheduled, 8)
	for _, row := range scheduled[:7] {
		assert.Equal(t, domain.CadenceDaily, row.Cadence)
		assert.Equal(t, 10000.0, row.TargetAmount)
		assert.Equal(t, 2.0, row.CashbackPercent)
	}
	bonus := scheduled[7]
	assert.Equal(t, domain.CadenceWeekly, bonus.Cadence)
	assert.Equal(t, 70000.0, bonus.TargetAmount)
	assert.Equal(t, 5.0, bonus.CashbackPercent)
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), bonus.CashbackDate)

	require.NotNil(t, offer)
	assert.Equal(t, domain.OfferLevelCashback, offer.OfferLevel)
	assert.True(t, offer.AutoApply)
	require.Len(t, offer.ApplicationRules.Conditions.All, 1)
	cond := offer.ApplicationRules.Conditions.All[0]
	assert.Equal(t, "spGrossAmountWithoutBulkSkus", cond.Fact)
	assert.Equal(t, rules.OpGreaterThanOrEqual, cond.Operator)
	assert.Equal(t, 10000.0, cond.Value)
	assert.True(t, strings.HasPrefix(offer.Name, "CB-100-"))
	assert.Equal(t, time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC), offer.StartDate)
	assert.Equal(t, time.Date(2026, 3, 7, 18, 0, 0, 0, time.UTC), offer.EndDate)

	require.NotNil(t, voucher)
	assert.True(t, strings.HasPrefix(voucher.Code, "GUL-"))
	assert.Len(t, voucher.Code, 8)
	assert.Equal(t, "store-9", voucher.AssignedTo)
	assert.Equal(t, domain.AudienceFranchise, voucher.Audience)
	require.NotNil(t, voucher.CampaignID)
	assert.Equal(t, int64(100), *voucher.CampaignID)
}

func TestInitiateCampaigns_NoDailyPercentSkipsOfferAndDailyRows(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	m.campaigns.On("ListActiveByStores", ctx, []string{"store-9"}, mock.Anything, mock.Anything).
		Return([]domain.TargetCampaign{}, nil)
	m.campaigns.On("CreateBatch", ctx, mock.AnythingOfType("[]*domain.TargetCampaign")).
		Run(func(args mock.Arguments) {
			args.Get(1).([]*domain.TargetCampaign)[0].ID = 100
		}).Return(nil)

	var scheduled []*domain.TargetCashback
	m.cashbacks.On("CreateBatch", ctx, mock.AnythingOfType("[]*domain.TargetCashback")).
		Run(func(args mock.Arguments) {
			scheduled = args.Get(1).([]*domain.TargetCashback)
		}).Return(nil)

	_, err := svc.InitiateCampaigns(ctx, []CampaignInput{{
		StoreID:               "store-9",
		Cadence:               domain.CadenceWeekly,
		TargetAmount:          70000,
		StartDate:             time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:               time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		WeeklyCashbackPercent: 5,
	}}, "ops-1")

	require.NoError(t, err)

	// Only the weekly bonus row: no daily cashback means no daily schedule
	// and nothing for an auto-apply voucher to grant.
	require.Len(t, scheduled, 1)
	assert.Equal(t, domain.CadenceWeekly, scheduled[0].Cadence)
	m.offers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.vouchers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInitiateCampaigns_OverlapConflict(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	running := *weeklyCampaign()
	m.campaigns.On("ListActiveByStores", ctx, []string{"store-9"}, mock.Anything, mock.Anything).
		Return([]domain.TargetCampaign{running}, nil)

	_, err := svc.InitiateCampaigns(ctx, []CampaignInput{{
		StoreID:               "store-9",
		Cadence:               domain.CadenceDaily,
		TargetAmount:          5000,
		StartDate:             time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		EndDate:               time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DailyCashbackPercent:  2,
		WeeklyCashbackPercent: 0,
	}}, "ops-1")

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	m.campaigns.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestInitiateCampaigns_WeeklyNeedsWeeklyPercent(t *testing.T) {
	svc, _ := newTestCampaignService()

	_, err := svc.InitiateCampaigns(context.Background(), []CampaignInput{{
		StoreID:              "store-9",
		Cadence:              domain.CadenceWeekly,
		TargetAmount:         70000,
		StartDate:            time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:              time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		DailyCashbackPercent: 2,
	}}, "ops-1")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateCampaign_NoOp(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	c := weeklyCampaign()
	m.campaigns.On("GetByID", ctx, int64(42)).Return(c, nil)

	got, err := svc.UpdateCampaign(ctx, 42, &UpdateCampaignInput{
		TargetAmount:          70000,
		Status:                domain.CampaignStatusActive,
		DailyCashbackPercent:  2,
		WeeklyCashbackPercent: 5,
	}, "ops-1")

	require.NoError(t, err)
	assert.Equal(t, c, got)
	m.cashbacks.AssertNotCalled(t, "DeactivateUnsettledByCampaign", mock.Anything, mock.Anything, mock.Anything)
	m.campaigns.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateCampaign_RegeneratesFromFirstUnsettledDay(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	c := weeklyCampaign()
	settled := 180.0
	rows := make([]domain.TargetCashback, 0, 7)
	for i := 0; i < 7; i++ {
		row := domain.TargetCashback{
			ID:           int64(200 + i),
			StoreID:      c.StoreID,
			CampaignID:   c.ID,
			CashbackDate: c.StartDate.AddDate(0, 0, i),
			Cadence:      domain.CadenceDaily,
		}
		if i < 3 {
			row.Cashback = &settled
		}
		rows = append(rows, row)
	}

	m.campaigns.On("GetByID", ctx, int64(42)).Return(c, nil)
	m.cashbacks.On("ListByCampaign", ctx, int64(42), true).Return(rows, nil)
	m.cashbacks.On("DeactivateUnsettledByCampaign", ctx, int64(42), "ops-1").Return(int64(4), nil)
	m.vouchers.On("ListByCampaigns", ctx, []int64{int64(42)}, false).
		Return([]domain.Voucher{{ID: "v-1", Code: "GUL-AB12", OfferID: "old-offer", CampaignID: &c.ID}}, nil)

	var offer *domain.Offer
	m.offers.On("Create", ctx, mock.AnythingOfType("*domain.Offer")).
		Run(func(args mock.Arguments) {
			offer = args.Get(1).(*domain.Offer)
		}).Return(nil)

	var repointed []domain.Voucher
	m.vouchers.On("UpdateBatch", ctx, mock.AnythingOfType("[]domain.Voucher")).
		Run(func(args mock.Arguments) {
			repointed = args.Get(1).([]domain.Voucher)
		}).Return(nil)

	var regenerated []*domain.TargetCashback
	m.cashbacks.On("CreateBatch", ctx, mock.AnythingOfType("[]*domain.TargetCashback")).
		Run(func(args mock.Arguments) {
			regenerated = args.Get(1).([]*domain.TargetCashback)
		}).Return(nil)
	m.campaigns.On("Update", ctx, c).Return(nil)

	got, err := svc.UpdateCampaign(ctx, 42, &UpdateCampaignInput{
		TargetAmount:          84000,
		Status:                domain.CampaignStatusActive,
		DailyCashbackPercent:  3,
		WeeklyCashbackPercent: 5,
	}, "ops-1")

	require.NoError(t, err)
	assert.Equal(t, 84000.0, got.TargetAmount)
	assert.Equal(t, 3.0, got.Metadata.DailyCashbackPercent)

	// The three settled days stay in history: the regenerated schedule runs
	// from day four to the end, with the new per-day target 84000/7.
	require.Len(t, regenerated, 5)
	assert.Equal(t, c.StartDate.AddDate(0, 0, 3), regenerated[0].CashbackDate)
	assert.Equal(t, 12000.0, regenerated[0].TargetAmount)
	assert.Equal(t, 3.0, regenerated[0].CashbackPercent)
	assert.Equal(t, domain.CadenceWeekly, regenerated[4].Cadence)

	require.Len(t, repointed, 1)
	assert.Equal(t, offer.ID, repointed[0].OfferID)
	assert.True(t, repointed[0].Active)
}

func TestUpdateCampaign_DeactivateRetiresVouchers(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	c := weeklyCampaign()
	m.campaigns.On("GetByID", ctx, int64(42)).Return(c, nil)
	m.cashbacks.On("ListByCampaign", ctx, int64(42), true).Return([]domain.TargetCashback{}, nil)
	m.cashbacks.On("DeactivateUnsettledByCampaign", ctx, int64(42), "ops-1").Return(int64(8), nil)
	m.vouchers.On("ListByCampaigns", ctx, []int64{int64(42)}, false).
		Return([]domain.Voucher{{ID: "v-1", Code: "GUL-AB12", Active: true, CampaignID: &c.ID}}, nil)

	var retired []domain.Voucher
	m.vouchers.On("UpdateBatch", ctx, mock.AnythingOfType("[]domain.Voucher")).
		Run(func(args mock.Arguments) {
			retired = args.Get(1).([]domain.Voucher)
		}).Return(nil)
	m.campaigns.On("Update", ctx, c).Return(nil)

	got, err := svc.UpdateCampaign(ctx, 42, &UpdateCampaignInput{
		TargetAmount:          70000,
		Status:                domain.CampaignStatusInactive,
		DailyCashbackPercent:  2,
		WeeklyCashbackPercent: 5,
	}, "ops-1")

	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusInactive, got.Status)
	require.Len(t, retired, 1)
	assert.False(t, retired[0].Active)
	m.offers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.cashbacks.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestUpdateCampaign_FullySettledRejected(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	c := weeklyCampaign()
	amount := 95.0
	rows := make([]domain.TargetCashback, 0, 7)
	for i := 0; i < 7; i++ {
		rows = append(rows, domain.TargetCashback{
			ID:           int64(200 + i),
			StoreID:      c.StoreID,
			CampaignID:   c.ID,
			CashbackDate: c.StartDate.AddDate(0, 0, i),
			Cadence:      domain.CadenceDaily,
			Cashback:     &amount,
		})
	}
	m.campaigns.On("GetByID", ctx, int64(42)).Return(c, nil)
	m.cashbacks.On("ListByCampaign", ctx, int64(42), true).Return(rows, nil)

	_, err := svc.UpdateCampaign(ctx, 42, &UpdateCampaignInput{
		TargetAmount:          84000,
		Status:                domain.CampaignStatusActive,
		DailyCashbackPercent:  3,
		WeeklyCashbackPercent: 5,
	}, "ops-1")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
	m.cashbacks.AssertNotCalled(t, "DeactivateUnsettledByCampaign", mock.Anything, mock.Anything, mock.Anything)
	m.campaigns.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateCampaign_NotFound(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	m.campaigns.On("GetByID", ctx, int64(7)).Return(nil, apperrors.ErrNotFound)

	_, err := svc.UpdateCampaign(ctx, 7, &UpdateCampaignInput{TargetAmount: 100}, "ops-1")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListCampaignCashbacks(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	c := weeklyCampaign()
	rows := []domain.TargetCashback{
		{ID: 201, CampaignID: c.ID, Cadence: domain.CadenceDaily},
		{ID: 202, CampaignID: c.ID, Cadence: domain.CadenceWeekly},
	}
	m.campaigns.On("GetByID", ctx, int64(42)).Return(c, nil)
	m.cashbacks.On("ListByCampaign", ctx, int64(42), false).Return(rows, nil)

	got, err := svc.ListCampaignCashbacks(ctx, 42)

	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestListCampaignCashbacks_UnknownCampaign(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	m.campaigns.On("GetByID", ctx, int64(7)).Return(nil, apperrors.ErrNotFound)

	_, err := svc.ListCampaignCashbacks(ctx, 7)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	m.cashbacks.AssertNotCalled(t, "ListByCampaign", mock.Anything, mock.Anything, mock.Anything)
}

func TestStoreCampaignView_ProgressStatuses(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	c := weeklyCampaign()
	today := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	earned := 150.0
	missed := 0.0
	qualifier := 12500.0
	rows := []domain.TargetCashback{
		{Cadence: domain.CadenceDaily, CashbackDate: c.StartDate, Cashback: &earned,
			Metadata: domain.CashbackMetadata{QualifierOrderBillAmount: &qualifier}},
		{Cadence: domain.CadenceDaily, CashbackDate: c.StartDate.AddDate(0, 0, 1), Cashback: &missed},
		{Cadence: domain.CadenceDaily, CashbackDate: c.StartDate.AddDate(0, 0, 2)},
		{Cadence: domain.CadenceDaily, CashbackDate: today},
		{Cadence: domain.CadenceDaily, CashbackDate: today.AddDate(0, 0, 1)},
		{Cadence: domain.CadenceWeekly, CashbackDate: c.EndDate},
	}

	m.campaigns.On("GetRunningForStore", ctx, "store-9", today).Return(c, nil)
	m.cashbacks.On("ListByCampaign", ctx, int64(42), true).Return(rows, nil)

	view, err := svc.StoreCampaignView(ctx, "store-9", today)

	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, int64(42), view.CampaignID)
	assert.Equal(t, 150.0, view.TotalEarned)

	// The weekly bonus row is not part of the day-by-day view.
	require.Len(t, view.Days, 5)
	assert.Equal(t, domain.ProgressEarned, view.Days[0].Status)
	assert.Equal(t, domain.ProgressFailed, view.Days[1].Status)
	assert.Equal(t, domain.ProgressInProcess, view.Days[2].Status)
	assert.Equal(t, domain.ProgressCurrent, view.Days[3].Status)
	assert.Equal(t, domain.ProgressLocked, view.Days[4].Status)
	assert.Equal(t, &qualifier, view.Days[0].AchievedAmount)
}

func TestStoreCampaignView_NoRunningCampaign(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	m.campaigns.On("GetRunningForStore", ctx, "store-9", at).Return(nil, nil)

	view, err := svc.StoreCampaignView(ctx, "store-9", at)

	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestEarnings(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	monthStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	m.cashbacks.On("SumSettledByStore", ctx, "store-9", &monthStart, (*time.Time)(nil)).Return(450.0, nil)
	m.cashbacks.On("SumSettledByStore", ctx, "store-9", (*time.Time)(nil), (*time.Time)(nil)).Return(2750.0, nil)

	earnings, err := svc.Earnings(ctx, "store-9", now)

	require.NoError(t, err)
	assert.Equal(t, 450.0, earnings.MonthlyEarned)
	assert.Equal(t, 2750.0, earnings.LifetimeEarned)
}

func TestMarkWalletEligible(t *testing.T) {
	svc, m := newTestCampaignService()
	ctx := context.Background()

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	rows := []domain.TargetCashback{
		{ID: 1, StoreID: "store-1"},
		{ID: 2, StoreID: "store-2"},
		{ID: 3, StoreID: "store-1"},
	}
	m.cashbacks.On("ListUnsettled", ctx, domain.CadenceDaily, from, to, []string(nil)).Return(rows, nil)
	m.wallets.On("GetWallets", ctx, []string{"store-1", "store-2"}).Return([]domain.Wallet{
		{EntityID: "store-1", Status: domain.WalletStatusActive},
		{EntityID: "store-2", Status: "INACTIVE"},
	}, nil)

	var updated []domain.TargetCashback
	m.cashbacks.On("UpdateBatch", ctx, mock.AnythingOfType("[]domain.TargetCashback")).
		Run(func(args mock.Arguments) {
			updated = args.Get(1).([]domain.TargetCashback)
		}).Return(nil)

	count, err := svc.MarkWalletEligible(ctx, from, to, "cron")

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, updated, 3)
	assert.True(t, updated[0].Metadata.IsWalletEligible)
	assert.False(t, updated[1].Metadata.IsWalletEligible)
	assert.True(t, updated[2].Metadata.IsWalletEligible)
}
