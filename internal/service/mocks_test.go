package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/client"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/event"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/repository"
	pkgkafka "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/kafka"
)

// --- Mock Repositories ---

type mockOfferRepository struct {
	mock.Mock
}

func (m *mockOfferRepository) Create(ctx context.Context, offer *domain.Offer) error {
	args := m.Called(ctx, offer)
	return args.Error(0)
}

func (m *mockOfferRepository) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Offer), args.Error(1)
}

func (m *mockOfferRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Offer, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.Offer), args.Error(1)
}

func (m *mockOfferRepository) List(ctx context.Context, activeOnly bool) ([]domain.Offer, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]domain.Offer), args.Error(1)
}

func (m *mockOfferRepository) Update(ctx context.Context, offer *domain.Offer) error {
	args := m.Called(ctx, offer)
	return args.Error(0)
}

type mockVoucherRepository struct {
	mock.Mock
}

func (m *mockVoucherRepository) Create(ctx context.Context, voucher *domain.Voucher) error {
	args := m.Called(ctx, voucher)
	return args.Error(0)
}

func (m *mockVoucherRepository) GetByCode(ctx context.Context, code, audience string) (*domain.Voucher, error) {
	args := m.Called(ctx, code, audience)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Voucher), args.Error(1)
}

func (m *mockVoucherRepository) ResolveCandidates(ctx context.Context, filter repository.VoucherFilter) ([]domain.Voucher, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Voucher), args.Error(1)
}

func (m *mockVoucherRepository) ListByCampaigns(ctx context.Context, campaignIDs []int64, activeOnly bool) ([]domain.Voucher, error) {
	args := m.Called(ctx, campaignIDs, activeOnly)
	return args.Get(0).([]domain.Voucher), args.Error(1)
}

func (m *mockVoucherRepository) Update(ctx context.Context, voucher *domain.Voucher) error {
	args := m.Called(ctx, voucher)
	return args.Error(0)
}

func (m *mockVoucherRepository) UpdateBatch(ctx context.Context, vouchers []domain.Voucher) error {
	args := m.Called(ctx, vouchers)
	return args.Error(0)
}

type mockRedemptionRepository struct {
	mock.Mock
}

func (m *mockRedemptionRepository) Create(ctx context.Context, redemption *domain.Redemption) error {
	args := m.Called(ctx, redemption)
	return args.Error(0)
}

type mockCampaignRepository struct {
	mock.Mock
}

func (m *mockCampaignRepository) CreateBatch(ctx context.Context, campaigns []*domain.TargetCampaign) error {
	args := m.Called(ctx, campaigns)
	return args.Error(0)
}

func (m *mockCampaignRepository) GetByID(ctx context.Context, id int64) (*domain.TargetCampaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TargetCampaign), args.Error(1)
}

func (m *mockCampaignRepository) List(ctx context.Context) ([]domain.TargetCampaign, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.TargetCampaign), args.Error(1)
}

func (m *mockCampaignRepository) ListActiveByStores(ctx context.Context, storeIDs []string, from, to time.Time) ([]domain.TargetCampaign, error) {
	args := m.Called(ctx, storeIDs, from, to)
	return args.Get(0).([]domain.TargetCampaign), args.Error(1)
}

func (m *mockCampaignRepository) GetRunningForStore(ctx context.Context, storeID string, at time.Time) (*domain.TargetCampaign, error) {
	args := m.Called(ctx, storeID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TargetCampaign), args.Error(1)
}

func (m *mockCampaignRepository) Update(ctx context.Context, campaign *domain.TargetCampaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

type mockCashbackRepository struct {
	mock.Mock
}

func (m *mockCashbackRepository) CreateBatch(ctx context.Context, rows []*domain.TargetCashback) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *mockCashbackRepository) ListByCampaign(ctx context.Context, campaignID int64, activeOnly bool) ([]domain.TargetCashback, error) {
	args := m.Called(ctx, campaignID, activeOnly)
	return args.Get(0).([]domain.TargetCashback), args.Error(1)
}

func (m *mockCashbackRepository) ListByCampaigns(ctx context.Context, campaignIDs []int64, cadence string) ([]domain.TargetCashback, error) {
	args := m.Called(ctx, campaignIDs, cadence)
	return args.Get(0).([]domain.TargetCashback), args.Error(1)
}

func (m *mockCashbackRepository) ListUnsettled(ctx context.Context, cadence string, from, to time.Time, storeIDs []string) ([]domain.TargetCashback, error) {
	args := m.Called(ctx, cadence, from, to, storeIDs)
	return args.Get(0).([]domain.TargetCashback), args.Error(1)
}

func (m *mockCashbackRepository) Update(ctx context.Context, row *domain.TargetCashback) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *mockCashbackRepository) UpdateBatch(ctx context.Context, rows []domain.TargetCashback) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *mockCashbackRepository) DeactivateUnsettledByCampaign(ctx context.Context, campaignID int64, modifiedBy string) (int64, error) {
	args := m.Called(ctx, campaignID, modifiedBy)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCashbackRepository) SumSettledByStore(ctx context.Context, storeID string, from, to *time.Time) (float64, error) {
	args := m.Called(ctx, storeID, from, to)
	return args.Get(0).(float64), args.Error(1)
}

// --- Mock Gateways ---

type mockOrderGateway struct {
	mock.Mock
}

func (m *mockOrderGateway) GetConsumerCart(ctx context.Context, userID string) (*domain.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderGateway) GetFranchiseCart(ctx context.Context, storeID string) (*domain.Order, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderGateway) GetFranchiseOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderGateway) GetEffectiveBillAmounts(ctx context.Context, date time.Time, storeIDs []string) ([]domain.SettlementOrder, error) {
	args := m.Called(ctx, date, storeIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SettlementOrder), args.Error(1)
}

type mockStoreGateway struct {
	mock.Mock
}

func (m *mockStoreGateway) GetStore(ctx context.Context, storeID string) (*domain.StoreInfo, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StoreInfo), args.Error(1)
}

type mockWalletGateway struct {
	mock.Mock
}

func (m *mockWalletGateway) Credit(ctx context.Context, storeID, key string, req client.WalletCreditRequest) error {
	args := m.Called(ctx, storeID, key, req)
	return args.Error(0)
}

func (m *mockWalletGateway) GetWallets(ctx context.Context, storeIDs []string) ([]domain.Wallet, error) {
	args := m.Called(ctx, storeIDs)
	return args.Get(0).([]domain.Wallet), args.Error(1)
}

type mockClaimer struct {
	mock.Mock
}

func (m *mockClaimer) Claim(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockClaimer) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestProducer returns a producer pointed at a broker that does not
// exist. Publishing fails silently in the services under test.
func newTestProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}

func float64Ptr(f float64) *float64 {
	return &f
}

func int64Ptr(i int64) *int64 {
	return &i
}
