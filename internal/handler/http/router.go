package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/service"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/health"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/middleware"
)

// NewRouter creates a chi router with all loyalty engine routes registered.
func NewRouter(
	offerService *service.OfferService,
	campaignService *service.CampaignService,
	settlementService *service.SettlementService,
	healthHandler *health.Handler,
	internalToken string,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("loyalty"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	offerHandler := NewOfferHandler(offerService, logger)
	targetHandler := NewTargetHandler(campaignService, settlementService, logger)

	r.Route("/api/v1/offers", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/consumer/{userId}", offerHandler.ListConsumerOffers)
		r.Get("/store/{storeId}", offerHandler.ListStoreOffers)
		r.Post("/validate", offerHandler.ValidateCoupon)

		// Admin and service-to-service endpoints.
		r.Group(func(r chi.Router) {
			r.Use(InternalOnly(internalToken))

			r.Post("/", offerHandler.CreateOffer)
			r.Post("/vouchers", offerHandler.CreateVoucher)
			r.Post("/vouchers/bulk-assign", offerHandler.BulkAssignVouchers)
			r.Post("/auto-apply", offerHandler.AutoApplyVoucher)
			r.Post("/redeem", offerHandler.RecordRedemption)
		})
	})

	r.Route("/api/v1/targets", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/store/{storeId}/campaign", targetHandler.StoreCampaign)
		r.Get("/store/{storeId}/earnings", targetHandler.StoreEarnings)

		r.Group(func(r chi.Router) {
			r.Use(InternalOnly(internalToken))

			r.Post("/campaigns", targetHandler.InitiateCampaigns)
			r.Get("/campaigns", targetHandler.ListCampaigns)
			r.Put("/campaigns/{id}", targetHandler.UpdateCampaign)
			r.Get("/campaigns/{id}/cashbacks", targetHandler.ListCampaignCashbacks)

			r.Post("/cashback/settle-daily", targetHandler.SettleDaily)
			r.Post("/cashback/settle-weekly", targetHandler.SettleWeekly)
			r.Post("/cashback/wallet-eligible", targetHandler.MarkWalletEligible)
		})
	})

	return r
}
