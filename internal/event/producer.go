package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	pkgkafka "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/kafka"
)

// Kafka topic constants for loyalty domain events.
const (
	TopicOfferRedeemed   = "loyalty.offer.redeemed"
	TopicCampaignCreated = "loyalty.campaign.created"
	TopicCampaignUpdated = "loyalty.campaign.updated"
	TopicCashbackSettled = "loyalty.cashback.settled"
)

// Aggregate type constants.
const (
	AggregateTypeOffer    = "offer"
	AggregateTypeCampaign = "campaign"
	AggregateTypeCashback = "cashback"
)

// Source identifier for events originating from the loyalty engine.
const SourceLoyaltyEngine = "loyalty-engine"

// OfferRedeemedData is the payload for an offer.redeemed event.
type OfferRedeemedData struct {
	UserID      string `json:"userId"`
	OrderID     string `json:"orderId"`
	OfferID     string `json:"offerId"`
	VoucherCode string `json:"voucherCode"`
}

// CampaignData is the payload for campaign.created and campaign.updated
// events.
type CampaignData struct {
	CampaignID   int64   `json:"campaignId"`
	StoreID      string  `json:"storeId"`
	Cadence      string  `json:"cadence"`
	TargetAmount float64 `json:"targetAmount"`
	StartDate    string  `json:"startDate"`
	EndDate      string  `json:"endDate"`
	Status       int     `json:"status"`
}

// CashbackSettledData is the payload for a cashback.settled event.
type CashbackSettledData struct {
	CashbackID   int64   `json:"cashbackId"`
	CampaignID   int64   `json:"campaignId"`
	StoreID      string  `json:"storeId"`
	CashbackDate string  `json:"cashbackDate"`
	Cadence      string  `json:"cadence"`
	Amount       float64 `json:"amount"`
	Credited     bool    `json:"credited"`
	Remarks      string  `json:"remarks"`
}

// Producer publishes loyalty domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the loyalty engine.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOfferRedeemed publishes an offer.redeemed event.
func (p *Producer) PublishOfferRedeemed(ctx context.Context, red *domain.Redemption) error {
	data := OfferRedeemedData{
		UserID:      red.UserID,
		OrderID:     red.OrderID,
		OfferID:     red.OfferID,
		VoucherCode: red.VoucherCode,
	}

	event, err := pkgkafka.NewEvent(TopicOfferRedeemed, red.OfferID, AggregateTypeOffer, SourceLoyaltyEngine, data)
	if err != nil {
		return fmt.Errorf("create offer.redeemed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOfferRedeemed, event); err != nil {
		return fmt.Errorf("publish offer.redeemed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published offer.redeemed event",
		slog.String("offer_id", red.OfferID),
		slog.String("voucher_code", red.VoucherCode),
	)

	return nil
}

// PublishCampaignCreated publishes a campaign.created event.
func (p *Producer) PublishCampaignCreated(ctx context.Context, c *domain.TargetCampaign) error {
	return p.publishCampaign(ctx, TopicCampaignCreated, "campaign.created", c)
}

// PublishCampaignUpdated publishes a campaign.updated event.
func (p *Producer) PublishCampaignUpdated(ctx context.Context, c *domain.TargetCampaign) error {
	return p.publishCampaign(ctx, TopicCampaignUpdated, "campaign.updated", c)
}

func (p *Producer) publishCampaign(ctx context.Context, topic, name string, c *domain.TargetCampaign) error {
	data := CampaignData{
		CampaignID:   c.ID,
		StoreID:      c.StoreID,
		Cadence:      c.Cadence,
		TargetAmount: c.TargetAmount,
		StartDate:    c.StartDate.Format(time.DateOnly),
		EndDate:      c.EndDate.Format(time.DateOnly),
		Status:       c.Status,
	}

	event, err := pkgkafka.NewEvent(topic, strconv.FormatInt(c.ID, 10), AggregateTypeCampaign, SourceLoyaltyEngine, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", name, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", name, err)
	}

	p.logger.DebugContext(ctx, "published campaign event",
		slog.String("topic", topic),
		slog.Int64("campaign_id", c.ID),
		slog.String("store_id", c.StoreID),
	)

	return nil
}

// PublishCashbackSettled publishes a cashback.settled event for one settled
// schedule row.
func (p *Producer) PublishCashbackSettled(ctx context.Context, row *domain.TargetCashback, credited bool) error {
	amount := 0.0
	if row.Cashback != nil {
		amount = *row.Cashback
	}

	data := CashbackSettledData{
		CashbackID:   row.ID,
		CampaignID:   row.CampaignID,
		StoreID:      row.StoreID,
		CashbackDate: row.CashbackDate.Format(time.DateOnly),
		Cadence:      row.Cadence,
		Amount:       amount,
		Credited:     credited,
		Remarks:      row.Metadata.Remarks,
	}

	event, err := pkgkafka.NewEvent(TopicCashbackSettled, strconv.FormatInt(row.ID, 10), AggregateTypeCashback, SourceLoyaltyEngine, data)
	if err != nil {
		return fmt.Errorf("create cashback.settled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCashbackSettled, event); err != nil {
		return fmt.Errorf("publish cashback.settled event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cashback.settled event",
		slog.Int64("cashback_id", row.ID),
		slog.String("store_id", row.StoreID),
		slog.Float64("amount", amount),
	)

	return nil
}
