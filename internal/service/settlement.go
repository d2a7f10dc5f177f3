package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/client"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/event"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/repository"
)

// WalletGateway is the slice of the payment service settlement needs.
type WalletGateway interface {
	Credit(ctx context.Context, storeID, key string, req client.WalletCreditRequest) error
	GetWallets(ctx context.Context, storeIDs []string) ([]domain.Wallet, error)
}

// CreditClaimer hands out exclusive claims on wallet credit keys. A claim
// must be taken before calling the payment service so a row can never be
// credited twice, even across concurrent cron runs.
type CreditClaimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// settlementLookback bounds how far back a cron run picks up unsettled
// rows, so a long outage cannot trigger an unbounded replay.
const settlementLookback = 9 * 24 * time.Hour

// SettlementService settles cashback schedule rows: it reads the order
// service's effective bill report, decides each row's outcome, credits
// store wallets, and records the result on the row. Every row settles
// independently; one bad row never blocks the rest of the run.
type SettlementService struct {
	campaigns repository.CampaignRepository
	cashbacks repository.CashbackRepository
	vouchers  repository.VoucherRepository
	orders    OrderGateway
	wallets   WalletGateway
	claims    CreditClaimer
	producer  *event.Producer
	logger    *slog.Logger
}

// NewSettlementService creates a new settlement service.
func NewSettlementService(
	campaigns repository.CampaignRepository,
	cashbacks repository.CashbackRepository,
	vouchers repository.VoucherRepository,
	orders OrderGateway,
	wallets WalletGateway,
	claims CreditClaimer,
	producer *event.Producer,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		campaigns: campaigns,
		cashbacks: cashbacks,
		vouchers:  vouchers,
		orders:    orders,
		wallets:   wallets,
		claims:    claims,
		producer:  producer,
		logger:    logger,
	}
}

// RunResult summarizes one settlement run.
type RunResult struct {
	Picked  int `json:"picked"`
	Settled int `json:"settled"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RunDaily settles unsettled DAILY rows dated strictly before today, within
// the lookback window. An empty storeIDs slice settles all stores.
func (s *SettlementService) RunDaily(ctx context.Context, now time.Time, storeIDs []string, runBy string) (*RunResult, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	from := today.Add(-settlementLookback)
	to := today.AddDate(0, 0, -1)

	rows, err := s.cashbacks.ListUnsettled(ctx, domain.CadenceDaily, from, to, storeIDs)
	if err != nil {
		return nil, fmt.Errorf("list unsettled daily rows: %w", err)
	}

	result := &RunResult{Picked: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	voucherByCampaign, err := s.campaignVoucherCodes(ctx, rows)
	if err != nil {
		return nil, err
	}
	walletEligible, err := s.walletEligibility(ctx, rows)
	if err != nil {
		return nil, err
	}

	// The order report is per day, so group the rows by their cashback date.
	byDate := make(map[time.Time][]domain.TargetCashback)
	for _, row := range rows {
		day := row.CashbackDate.Truncate(24 * time.Hour)
		byDate[day] = append(byDate[day], row)
	}

	for day, dayRows := range byDate {
		dayStores := make([]string, 0, len(dayRows))
		for _, row := range dayRows {
			dayStores = append(dayStores, row.StoreID)
		}

		orders, err := s.orders.GetEffectiveBillAmounts(ctx, day, dayStores)
		if err != nil {
			s.logger.ErrorContext(ctx, "effective bill fetch failed, skipping day",
				slog.String("date", day.Format(time.DateOnly)),
				slog.String("error", err.Error()),
			)
			result.Failed += len(dayRows)
			continue
		}
		orderByStore := make(map[string]*domain.SettlementOrder, len(orders))
		for i := range orders {
			orderByStore[orders[i].StoreID] = &orders[i]
		}

		for _, row := range dayRows {
			outcome := s.settleDailyRow(ctx, &row, orderByStore[row.StoreID], voucherByCampaign[row.CampaignID], walletEligible[row.StoreID], runBy)
			switch outcome {
			case settleDone:
				result.Settled++
			case settleSkipped:
				result.Skipped++
			default:
				result.Failed++
			}
		}
	}

	return result, nil
}

type settleOutcome int

const (
	settleDone settleOutcome = iota
	settleSkipped
	settleFailed
)

// settleDailyRow decides and persists one daily row's outcome. Rows with a
// pending refund ticket or an ineligible wallet record why they are blocked
// but stay unsettled, so a later run can pick them up. The campaign voucher
// applying at all proves the daily target was hit, so no separate target
// check happens here.
func (s *SettlementService) settleDailyRow(
	ctx context.Context,
	row *domain.TargetCashback,
	order *domain.SettlementOrder,
	voucherCode string,
	walletEligible bool,
	runBy string,
) settleOutcome {
	// The eligibility cron may have stamped the row already; a fresh lookup
	// can only add eligibility, never revoke a stamp.
	walletOK := row.Metadata.IsWalletEligible || walletEligible

	if order == nil {
		qualifier, effective := 0.0, 0.0
		return s.persistOutcome(ctx, row, 0, domain.CashbackMetadata{
			QualifierOrderBillAmount: &qualifier,
			EffectiveOrderBillAmount: &effective,
			Remarks:                  domain.RemarkNoOrderPlaced,
			IsWalletEligible:         walletOK,
		}, "", runBy)
	}

	qualifier := order.SpGrossAmountWithoutBulkSkus
	effective := order.EffectiveSpGrossAmountForCashback
	meta := domain.CashbackMetadata{
		QualifierOrderBillAmount: &qualifier,
		EffectiveOrderBillAmount: &effective,
		IsWalletEligible:         walletOK,
	}

	if order.HasPendingRefundTicket {
		meta.Remarks = domain.RemarkRefundPendingPrefix
		return s.persistPending(ctx, row, meta, runBy)
	}

	switch {
	case order.OfferData == nil || !order.OfferData.IsOfferApplied:
		meta.Remarks = domain.RemarkVoucherNotApplied
		return s.persistOutcome(ctx, row, 0, meta, "", runBy)

	case row.CashbackPercent == 0:
		meta.Remarks = domain.RemarkDailyCashbackZero
		return s.persistOutcome(ctx, row, 0, meta, "", runBy)

	case voucherCode != "" && order.OfferData.VoucherCode != voucherCode:
		meta.Remarks = domain.RemarkDifferentVoucher
		return s.persistOutcome(ctx, row, 0, meta, "", runBy)

	case !walletOK:
		meta.Remarks = domain.RemarkWalletIneligible
		return s.persistPending(ctx, row, meta, runBy)
	}

	amount := math.Ceil(effective * row.CashbackPercent / 100)
	meta.Remarks = domain.RemarkCashbackProcessed
	meta.IsWalletEligible = true

	creditRemark := fmt.Sprintf("%g%% cashback on effective order value of %g", row.CashbackPercent, effective)
	return s.creditAndPersist(ctx, row, amount, meta, order.DisplayOrderID, creditRemark, runBy)
}

// RunWeekly settles unsettled WEEKLY bonus rows whose date has passed. A
// weekly row only settles once every daily row of its campaign has: the
// bonus is computed over the dailies' recorded amounts.
func (s *SettlementService) RunWeekly(ctx context.Context, now time.Time, storeIDs []string, runBy string) (*RunResult, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	from := today.Add(-settlementLookback)
	to := today.AddDate(0, 0, -1)

	rows, err := s.cashbacks.ListUnsettled(ctx, domain.CadenceWeekly, from, to, storeIDs)
	if err != nil {
		return nil, fmt.Errorf("list unsettled weekly rows: %w", err)
	}

	result := &RunResult{Picked: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	for _, row := range rows {
		switch s.settleWeeklyRow(ctx, &row, runBy) {
		case settleDone:
			result.Settled++
		case settleSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	return result, nil
}

func (s *SettlementService) settleWeeklyRow(ctx context.Context, row *domain.TargetCashback, runBy string) settleOutcome {
	dailies, err := s.cashbacks.ListByCampaigns(ctx, []int64{row.CampaignID}, domain.CadenceDaily)
	if err != nil {
		s.logger.ErrorContext(ctx, "daily rows fetch failed, skipping weekly row",
			slog.Int64("cashback_id", row.ID),
			slog.String("error", err.Error()),
		)
		return settleFailed
	}

	var qualifierSum, effectiveSum float64
	dailiesPending := false
	for _, d := range dailies {
		if !d.IsSettled() {
			dailiesPending = true
			continue
		}
		if d.Metadata.QualifierOrderBillAmount != nil {
			qualifierSum += *d.Metadata.QualifierOrderBillAmount
		}
		if d.Metadata.EffectiveOrderBillAmount != nil {
			effectiveSum += *d.Metadata.EffectiveOrderBillAmount
		}
	}

	meta := domain.CashbackMetadata{
		QualifierOrderBillAmount: &qualifierSum,
		EffectiveOrderBillAmount: &effectiveSum,
	}

	if dailiesPending {
		meta.Remarks = domain.RemarkDailyPending
		return s.persistPending(ctx, row, meta, runBy)
	}
	if qualifierSum < row.TargetAmount {
		meta.Remarks = domain.RemarkTargetNotMet
		return s.persistOutcome(ctx, row, 0, meta, "", runBy)
	}
	if row.CashbackPercent == 0 {
		meta.Remarks = domain.RemarkNoCashbackGiven
		return s.persistOutcome(ctx, row, 0, meta, "", runBy)
	}

	amount := math.Ceil(effectiveSum * row.CashbackPercent / 100)
	meta.Remarks = domain.RemarkCashbackProcessed

	creditRemark := fmt.Sprintf("%g%% extra weekly cashback", row.CashbackPercent)
	return s.creditAndPersist(ctx, row, amount, meta, "Weekly-Cashback", creditRemark, runBy)
}

// creditAndPersist claims the row's credit key, credits the wallet, and
// records the outcome. The order matters: the claim makes the credit
// at-most-once, and a failed credit releases the claim and leaves the row
// unsettled for the next run.
func (s *SettlementService) creditAndPersist(
	ctx context.Context,
	row *domain.TargetCashback,
	amount float64,
	meta domain.CashbackMetadata,
	txnDetail, creditRemark, runBy string,
) settleOutcome {
	key := row.WalletKey()

	claimed, err := s.claims.Claim(ctx, key)
	if err != nil {
		s.logger.ErrorContext(ctx, "credit claim failed, skipping row",
			slog.Int64("cashback_id", row.ID),
			slog.String("error", err.Error()),
		)
		return settleFailed
	}

	if claimed {
		err := s.wallets.Credit(ctx, row.StoreID, key, client.WalletCreditRequest{
			Amount:     amount,
			TxnType:    domain.TxnTypeLoyaltyCashback,
			TxnDetail:  txnDetail,
			Remarks:    creditRemark,
			WalletType: "WALLET",
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "wallet credit failed, leaving row unsettled",
				slog.Int64("cashback_id", row.ID),
				slog.String("store_id", row.StoreID),
				slog.String("error", err.Error()),
			)
			if relErr := s.claims.Release(ctx, key); relErr != nil {
				s.logger.ErrorContext(ctx, "credit claim release failed",
					slog.String("key", key),
					slog.String("error", relErr.Error()),
				)
			}
			return settleFailed
		}
	}

	return s.persistOutcome(ctx, row, amount, meta, txnDetail, runBy)
}

// persistOutcome records a settlement result on the row and emits the
// settled event.
func (s *SettlementService) persistOutcome(
	ctx context.Context,
	row *domain.TargetCashback,
	amount float64,
	meta domain.CashbackMetadata,
	txnDetail, runBy string,
) settleOutcome {
	row.Settle(amount, meta, runBy)
	row.UpdatedAt = time.Now().UTC()

	if err := s.cashbacks.Update(ctx, row); err != nil {
		s.logger.ErrorContext(ctx, "settlement persist failed",
			slog.Int64("cashback_id", row.ID),
			slog.String("error", err.Error()),
		)
		return settleFailed
	}

	if err := s.producer.PublishCashbackSettled(ctx, row, amount > 0); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cashback.settled event",
			slog.Int64("cashback_id", row.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cashback row settled",
		slog.Int64("cashback_id", row.ID),
		slog.String("store_id", row.StoreID),
		slog.Float64("amount", amount),
		slog.String("remarks", meta.Remarks),
		slog.String("txn_detail", txnDetail),
	)

	return settleDone
}

// persistPending records why a row is blocked without marking it settled.
// Cashback stays nil, so the next run picks the row up again.
func (s *SettlementService) persistPending(
	ctx context.Context,
	row *domain.TargetCashback,
	meta domain.CashbackMetadata,
	runBy string,
) settleOutcome {
	row.Metadata = meta
	row.ModifiedBy = runBy
	row.UpdatedAt = time.Now().UTC()

	if err := s.cashbacks.Update(ctx, row); err != nil {
		s.logger.ErrorContext(ctx, "settlement deferral persist failed",
			slog.Int64("cashback_id", row.ID),
			slog.String("error", err.Error()),
		)
		return settleFailed
	}

	s.logger.InfoContext(ctx, "cashback row deferred",
		slog.Int64("cashback_id", row.ID),
		slog.String("store_id", row.StoreID),
		slog.String("remarks", meta.Remarks),
	)

	return settleSkipped
}

// campaignVoucherCodes maps campaign id to its active voucher code, used to
// check that the store applied this campaign's voucher and not some other
// code.
func (s *SettlementService) campaignVoucherCodes(ctx context.Context, rows []domain.TargetCashback) (map[int64]string, error) {
	idSet := make(map[int64]bool)
	ids := make([]int64, 0)
	for _, row := range rows {
		if !idSet[row.CampaignID] {
			idSet[row.CampaignID] = true
			ids = append(ids, row.CampaignID)
		}
	}

	vouchers, err := s.vouchers.ListByCampaigns(ctx, ids, true)
	if err != nil {
		return nil, fmt.Errorf("load campaign vouchers: %w", err)
	}

	out := make(map[int64]string, len(vouchers))
	for _, v := range vouchers {
		if v.CampaignID != nil {
			out[*v.CampaignID] = v.Code
		}
	}
	return out, nil
}

// walletEligibility maps store id to whether its wallet can receive
// credits.
func (s *SettlementService) walletEligibility(ctx context.Context, rows []domain.TargetCashback) (map[string]bool, error) {
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
		return nil, fmt.Errorf("load wallets: %w", err)
	}

	out := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		out[w.EntityID] = w.Status == domain.WalletStatusActive
	}
	return out, nil
}
