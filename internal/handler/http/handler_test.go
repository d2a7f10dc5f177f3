package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/client"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/event"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/repository"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/rules"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/service"
	apperrors "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/errors"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/health"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/httputil"
	pkgkafka "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/kafka"
)

// ============================================================================
// Mock repositories and gateways
// ============================================================================

type mockOfferRepo struct{ mock.Mock }

func (m *mockOfferRepo) Create(ctx context.Context, offer *domain.Offer) error {
	return m.Called(ctx, offer).Error(0)
}

func (m *mockOfferRepo) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Offer), args.Error(1)
}

func (m *mockOfferRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Offer, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(map[string]*domain.Offer), args.Error(1)
}

func (m *mockOfferRepo) List(ctx context.Context, activeOnly bool) ([]domain.Offer, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]domain.Offer), args.Error(1)
}

func (m *mockOfferRepo) Update(ctx context.Context, offer *domain.Offer) error {
	return m.Called(ctx, offer).Error(0)
}

type mockVoucherRepo struct{ mock.Mock }

func (m *mockVoucherRepo) Create(ctx context.Context, voucher *domain.Voucher) error {
	return m.Called(ctx, voucher).Error(0)
}

func (m *mockVoucherRepo) GetByCode(ctx context.Context, code, audience string) (*domain.Voucher, error) {
	args := m.Called(ctx, code, audience)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Voucher), args.Error(1)
}

func (m *mockVoucherRepo) ResolveCandidates(ctx context.Context, filter repository.VoucherFilter) ([]domain.Voucher, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Voucher), args.Error(1)
}

func (m *mockVoucherRepo) ListByCampaigns(ctx context.Context, campaignIDs []int64, activeOnly bool) ([]domain.Voucher, error) {
	args := m.Called(ctx, campaignIDs, activeOnly)
	return args.Get(0).([]domain.Voucher), args.Error(1)
}

func (m *mockVoucherRepo) Update(ctx context.Context, voucher *domain.Voucher) error {
	return m.Called(ctx, voucher).Error(0)
}

func (m *mockVoucherRepo) UpdateBatch(ctx context.Context, vouchers []domain.Voucher) error {
	return m.Called(ctx, vouchers).Error(0)
}

type mockRedemptionRepo struct{ mock.Mock }

func (m *mockRedemptionRepo) Create(ctx context.Context, redemption *domain.Redemption) error {
	return m.Called(ctx, redemption).Error(0)
}

type mockCampaignRepo struct{ mock.Mock }

func (m *mockCampaignRepo) CreateBatch(ctx context.Context, campaigns []*domain.TargetCampaign) error {
	return m.Called(ctx, campaigns).Error(0)
}

func (m *mockCampaignRepo) GetByID(ctx context.Context, id int64) (*domain.TargetCampaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TargetCampaign), args.Error(1)
}

func (m *mockCampaignRepo) List(ctx context.Context) ([]domain.TargetCampaign, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.TargetCampaign), args.Error(1)
}

func (m *mockCampaignRepo) ListActiveByStores(ctx context.Context, storeIDs []string, from, to time.Time) ([]domain.TargetCampaign, error) {
	args := m.Called(ctx, storeIDs, from, to)
	return args.Get(0).([]domain.TargetCampaign), args.Error(1)
}

func (m *mockCampaignRepo) GetRunningForStore(ctx context.Context, storeID string, at time.Time) (*domain.TargetCampaign, error) {
	args := m.Called(ctx, storeID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TargetCampaign), args.Error(1)
}

func (m *mockCampaignRepo) Update(ctx context.Context, campaign *domain.TargetCampaign) error {
	return m.Called(ctx, campaign).Error(0)
}

type mockCashbackRepo struct{ mock.Mock }

func (m *mockCashbackRepo) CreateBatch(ctx context.Context, rows []*domain.TargetCashback) error {
	return m.Called(ctx, rows).Error(0)
}

func (m *mockCashbackRepo) ListByCampaign(ctx context.Context, campaignID int64, activeOnly bool) ([]domain.TargetCashback, error) {
	args := m.Called(ctx, campaignID, activeOnly)
	return args.Get(0).([]domain.TargetCashback), args.Error(1)
}

func (m *mockCashbackRepo) ListByCampaigns(ctx context.Context, campaignIDs []int64, cadence string) ([]domain.TargetCashback, error) {
	args := m.Called(ctx, campaignIDs, cadence)
	return args.Get(0).([]domain.TargetCashback), args.Error(1)
}

func (m *mockCashbackRepo) ListUnsettled(ctx context.Context, cadence string, from, to time.Time, storeIDs []string) ([]domain.TargetCashback, error) {
	args := m.Called(ctx, cadence, from, to, storeIDs)
	return args.Get(0).([]domain.TargetCashback), args.Error(1)
}

func (m *mockCashbackRepo) Update(ctx context.Context, row *domain.TargetCashback) error {
	return m.Called(ctx, row).Error(0)
}

func (m *mockCashbackRepo) UpdateBatch(ctx context.Context, rows []domain.TargetCashback) error {
	return m.Called(ctx, rows).Error(0)
}

func (m *mockCashbackRepo) DeactivateUnsettledByCampaign(ctx context.Context, campaignID int64, modifiedBy string) (int64, error) {
	args := m.Called(ctx, campaignID, modifiedBy)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCashbackRepo) SumSettledByStore(ctx context.Context, storeID string, from, to *time.Time) (float64, error) {
	args := m.Called(ctx, storeID, from, to)
	return args.Get(0).(float64), args.Error(1)
}

type mockOrders struct{ mock.Mock }

func (m *mockOrders) GetConsumerCart(ctx context.Context, userID string) (*domain.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrders) GetFranchiseCart(ctx context.Context, storeID string) (*domain.Order, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrders) GetFranchiseOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrders) GetEffectiveBillAmounts(ctx context.Context, date time.Time, storeIDs []string) ([]domain.SettlementOrder, error) {
	args := m.Called(ctx, date, storeIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SettlementOrder), args.Error(1)
}

type mockStores struct{ mock.Mock }

func (m *mockStores) GetStore(ctx context.Context, storeID string) (*domain.StoreInfo, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StoreInfo), args.Error(1)
}

type mockWallets struct{ mock.Mock }

func (m *mockWallets) Credit(ctx context.Context, storeID, key string, req client.WalletCreditRequest) error {
	return m.Called(ctx, storeID, key, req).Error(0)
}

func (m *mockWallets) GetWallets(ctx context.Context, storeIDs []string) ([]domain.Wallet, error) {
	args := m.Called(ctx, storeIDs)
	return args.Get(0).([]domain.Wallet), args.Error(1)
}

type mockClaims struct{ mock.Mock }

func (m *mockClaims) Claim(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockClaims) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// ============================================================================
// Test helpers
// ============================================================================

const testInternalToken = "test-secret"

type routerMocks struct {
	offers      *mockOfferRepo
	vouchers    *mockVoucherRepo
	redemptions *mockRedemptionRepo
	campaigns   *mockCampaignRepo
	cashbacks   *mockCashbackRepo
	orders      *mockOrders
	stores      *mockStores
	wallets     *mockWallets
	claims      *mockClaims
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEventProducer() *event.Producer {
	logger := testLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}

func setupRouter() (http.Handler, *routerMocks) {
	m := &routerMocks{
		offers:      new(mockOfferRepo),
		vouchers:    new(mockVoucherRepo),
		redemptions: new(mockRedemptionRepo),
		campaigns:   new(mockCampaignRepo),
		cashbacks:   new(mockCashbackRepo),
		orders:      new(mockOrders),
		stores:      new(mockStores),
		wallets:     new(mockWallets),
		claims:      new(mockClaims),
	}

	logger := testLogger()
	producer := testEventProducer()

	offerService := service.NewOfferService(
		m.offers, m.vouchers, m.redemptions, m.orders, m.stores,
		service.NewApplicability(logger), producer, logger,
	)
	campaignService := service.NewCampaignService(
		m.campaigns, m.cashbacks, m.offers, m.vouchers, m.wallets, producer, logger,
	)
	settlementService := service.NewSettlementService(
		m.campaigns, m.cashbacks, m.vouchers, m.orders, m.wallets, m.claims, producer, logger,
	)

	router := NewRouter(offerService, campaignService, settlementService,
		health.NewHandler(), testInternalToken, logger)
	return router, m
}

func doRequest(router http.Handler, method, path string, body any, internal bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if internal {
		req.Header.Set("X-Internal-Token", testInternalToken)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func testOffer() *domain.Offer {
	now := time.Now().UTC()
	return &domain.Offer{
		ID:         "offer-001",
		Name:       "WELCOME10",
		OfferLevel: domain.OfferLevelOrder,
		ApplicationRules: domain.ApplicationRules{
			Conditions: rules.Node{All: []rules.Node{
				{Fact: "finalBillAmount", Operator: rules.OpGreaterThanOrEqual, Value: 500.0},
			}},
			Event: domain.RuleEvent{Type: domain.EventTypeOrderLevel},
		},
		DiscountType:  domain.DiscountTypePercent,
		DiscountValue: 10,
		StartDate:     now.AddDate(0, 0, -1),
		EndDate:       now.AddDate(0, 0, 7),
		Active:        true,
	}
}

// ============================================================================
// Offer endpoints
// ============================================================================

func TestValidateCouponEndpoint_Success(t *testing.T) {
	router, m := setupRouter()

	voucher := &domain.Voucher{
		ID:       "voucher-001",
		Code:     "WELCOME10",
		OfferID:  "offer-001",
		Type:     domain.VoucherTypeStatic,
		Scope:    domain.VoucherScopeAll,
		Audience: domain.AudienceConsumer,
		Active:   true,
	}
	m.vouchers.On("GetByCode", mock.Anything, "WELCOME10", domain.AudienceConsumer).Return(voucher, nil)
	m.offers.On("GetByID", mock.Anything, "offer-001").Return(testOffer(), nil)
	m.orders.On("GetConsumerCart", mock.Anything, "u-1").Return(&domain.Order{FinalBillAmount: 900}, nil)

	rec := doRequest(router, http.MethodPost, "/api/v1/offers/validate", ValidateCouponRequest{
		Code:     "WELCOME10",
		EntityID: "u-1",
		Audience: domain.AudienceConsumer,
	}, false)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)

	outcome := resp.Data.(map[string]any)
	assert.Equal(t, "WELCOME10", outcome["voucherCode"])
	assert.Equal(t, domain.OfferLevelOrder, outcome["offerLevel"])
}

func TestValidateCouponEndpoint_NotApplicable(t *testing.T) {
	router, m := setupRouter()

	voucher := &domain.Voucher{
		ID:       "voucher-001",
		Code:     "WELCOME10",
		OfferID:  "offer-001",
		Type:     domain.VoucherTypeStatic,
		Scope:    domain.VoucherScopeAll,
		Audience: domain.AudienceConsumer,
		Active:   true,
	}
	m.vouchers.On("GetByCode", mock.Anything, "WELCOME10", domain.AudienceConsumer).Return(voucher, nil)
	m.offers.On("GetByID", mock.Anything, "offer-001").Return(testOffer(), nil)
	m.orders.On("GetConsumerCart", mock.Anything, "u-1").Return(&domain.Order{FinalBillAmount: 100}, nil)

	rec := doRequest(router, http.MethodPost, "/api/v1/offers/validate", ValidateCouponRequest{
		Code:     "WELCOME10",
		EntityID: "u-1",
		Audience: domain.AudienceConsumer,
	}, false)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "OFFER_NOT_APPLICABLE", resp.Error.Code)
}

func TestValidateCouponEndpoint_UnknownCode(t *testing.T) {
	router, m := setupRouter()

	m.vouchers.On("GetByCode", mock.Anything, "NOPE", domain.AudienceConsumer).
		Return(nil, apperrors.ErrNotFound)

	rec := doRequest(router, http.MethodPost, "/api/v1/offers/validate", ValidateCouponRequest{
		Code:     "NOPE",
		EntityID: "u-1",
		Audience: domain.AudienceConsumer,
	}, false)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateCouponEndpoint_MissingFields(t *testing.T) {
	router, _ := setupRouter()

	rec := doRequest(router, http.MethodPost, "/api/v1/offers/validate",
		map[string]string{"code": "WELCOME10"}, false)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestListStoreOffersEndpoint(t *testing.T) {
	router, m := setupRouter()

	m.orders.On("GetFranchiseCart", mock.Anything, "store-9").
		Return(&domain.Order{StoreID: "store-9", FinalBillAmount: 2000}, nil)
	m.stores.On("GetStore", mock.Anything, "store-9").
		Return(&domain.StoreInfo{StoreID: "store-9", CreatedAt: time.Now().UTC().AddDate(0, 0, -30)}, nil)
	m.vouchers.On("ResolveCandidates", mock.Anything, mock.Anything).
		Return([]domain.Voucher{{ID: "v-1", Code: "WELCOME10", OfferID: "offer-001", Active: true}}, nil)
	m.offers.On("GetByIDs", mock.Anything, []string{"offer-001"}).
		Return(map[string]*domain.Offer{"offer-001": testOffer()}, nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/offers/store/store-9", nil, false)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	views := resp.Data.([]any)
	require.Len(t, views, 1)
	view := views[0].(map[string]any)
	assert.Equal(t, "WELCOME10", view["voucherCode"])
	assert.Equal(t, true, view["isApplicable"])
}

func TestCreateOfferEndpoint_RequiresInternalToken(t *testing.T) {
	router, _ := setupRouter()

	rec := doRequest(router, http.MethodPost, "/api/v1/offers", map[string]string{}, false)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
}

// ============================================================================
// Target endpoints
// ============================================================================

func TestUpdateCampaignEndpoint_BadID(t *testing.T) {
	router, _ := setupRouter()

	rec := doRequest(router, http.MethodPut, "/api/v1/targets/campaigns/abc",
		service.UpdateCampaignInput{TargetAmount: 100}, true)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
}

func TestListCampaignsEndpoint(t *testing.T) {
	router, m := setupRouter()

	m.campaigns.On("List", mock.Anything).Return([]domain.TargetCampaign{
		{ID: 42, StoreID: "store-9", Cadence: domain.CadenceWeekly},
	}, nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/targets/campaigns", nil, true)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	campaigns := resp.Data.([]any)
	require.Len(t, campaigns, 1)
}

func TestListCampaignCashbacksEndpoint(t *testing.T) {
	router, m := setupRouter()

	m.campaigns.On("GetByID", mock.Anything, int64(42)).
		Return(&domain.TargetCampaign{ID: 42, StoreID: "store-9"}, nil)
	m.cashbacks.On("ListByCampaign", mock.Anything, int64(42), false).
		Return([]domain.TargetCashback{
			{ID: 201, CampaignID: 42, Cadence: domain.CadenceDaily},
			{ID: 202, CampaignID: 42, Cadence: domain.CadenceWeekly},
		}, nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/targets/campaigns/42/cashbacks", nil, true)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	rows := resp.Data.([]any)
	require.Len(t, rows, 2)
}

func TestSettleDailyEndpoint(t *testing.T) {
	router, m := setupRouter()

	m.cashbacks.On("ListUnsettled", mock.Anything, domain.CadenceDaily,
		mock.Anything, mock.Anything, []string(nil)).
		Return([]domain.TargetCashback{}, nil)

	rec := doRequest(router, http.MethodPost, "/api/v1/targets/cashback/settle-daily", nil, true)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	result := resp.Data.(map[string]any)
	assert.Equal(t, 0.0, result["picked"])
}

func TestSettleDailyEndpoint_RequiresInternalToken(t *testing.T) {
	router, _ := setupRouter()

	rec := doRequest(router, http.MethodPost, "/api/v1/targets/cashback/settle-daily", nil, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMarkWalletEligibleEndpoint_BadDate(t *testing.T) {
	router, _ := setupRouter()

	rec := doRequest(router, http.MethodPost, "/api/v1/targets/cashback/wallet-eligible",
		WalletEligibleRequest{StartDate: "03-02-2026", EndDate: "2026-03-08"}, true)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Contains(t, resp.Error.Message, "startDate")
}

func TestStoreCampaignEndpoint_NoRunningCampaign(t *testing.T) {
	router, m := setupRouter()

	m.campaigns.On("GetRunningForStore", mock.Anything, "store-9", mock.Anything).Return(nil, nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/targets/store/store-9/campaign", nil, false)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Data)
}

func TestStoreEarningsEndpoint(t *testing.T) {
	router, m := setupRouter()

	m.cashbacks.On("SumSettledByStore", mock.Anything, "store-9", mock.Anything, (*time.Time)(nil)).
		Return(450.0, nil).Once()
	m.cashbacks.On("SumSettledByStore", mock.Anything, "store-9", (*time.Time)(nil), (*time.Time)(nil)).
		Return(2750.0, nil).Once()

	rec := doRequest(router, http.MethodGet, "/api/v1/targets/store/store-9/earnings", nil, false)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	earnings := resp.Data.(map[string]any)
	assert.Equal(t, 450.0, earnings["monthlyEarned"])
	assert.Equal(t, 2750.0, earnings["lifetimeEarned"])
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := setupRouter()

	rec := doRequest(router, http.MethodGet, "/health/live", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/health/ready", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}
