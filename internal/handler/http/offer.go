package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/service"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/httputil"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/validator"
)

// OfferHandler handles HTTP requests for offer and voucher endpoints.
type OfferHandler struct {
	service *service.OfferService
	logger  *slog.Logger
}

// NewOfferHandler creates a new offer HTTP handler.
func NewOfferHandler(svc *service.OfferService, logger *slog.Logger) *OfferHandler {
	return &OfferHandler{
		service: svc,
		logger:  logger,
	}
}

// ValidateCouponRequest is the JSON request body for validating a coupon.
type ValidateCouponRequest struct {
	Code     string `json:"code" validate:"required"`
	EntityID string `json:"entityId" validate:"required"`
	Audience string `json:"audience" validate:"required,oneof=CONSUMER FRANCHISE"`
}

// CreateOffer handles POST /api/v1/offers
func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req service.CreateOfferInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	offer, err := h.service.CreateOffer(r.Context(), &req, requestActor(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: offer})
}

// CreateVoucher handles POST /api/v1/offers/vouchers
func (h *OfferHandler) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req service.CreateVoucherInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	voucher, err := h.service.CreateVoucher(r.Context(), &req, requestActor(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: voucher})
}

// BulkAssignVouchers handles POST /api/v1/offers/vouchers/bulk-assign
func (h *OfferHandler) BulkAssignVouchers(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req service.BulkAssignVouchersInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	vouchers, err := h.service.BulkAssignVouchers(r.Context(), &req, requestActor(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: vouchers})
}

// ListConsumerOffers handles GET /api/v1/offers/consumer/{userId}
func (h *OfferHandler) ListConsumerOffers(w http.ResponseWriter, r *http.Request) {
	h.listOffers(w, r, chi.URLParam(r, "userId"), domain.AudienceConsumer)
}

// ListStoreOffers handles GET /api/v1/offers/store/{storeId}
func (h *OfferHandler) ListStoreOffers(w http.ResponseWriter, r *http.Request) {
	h.listOffers(w, r, chi.URLParam(r, "storeId"), domain.AudienceFranchise)
}

func (h *OfferHandler) listOffers(w http.ResponseWriter, r *http.Request, entityID, audience string) {
	if entityID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "entity id is required"},
		})
		return
	}

	views, err := h.service.ListOffersForEntity(r.Context(), entityID, audience)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if views == nil {
		views = []service.OfferView{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: views})
}

// AutoApplyRequest is the JSON request body for resolving the auto-apply
// voucher of a store cart.
type AutoApplyRequest struct {
	StoreID string `json:"storeId" validate:"required"`
}

// AutoApplyResponse carries the code the order service should apply, empty
// when no auto-apply voucher is live for the store.
type AutoApplyResponse struct {
	VoucherCode string `json:"voucherCode"`
}

// AutoApplyVoucher handles POST /api/v1/offers/auto-apply
func (h *OfferHandler) AutoApplyVoucher(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req AutoApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	code, err := h.service.AutoApplyVoucher(r.Context(), req.StoreID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: AutoApplyResponse{VoucherCode: code}})
}

// ValidateCoupon handles POST /api/v1/offers/validate
func (h *OfferHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req ValidateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	outcome, err := h.service.ValidateCoupon(r.Context(), req.Code, req.EntityID, req.Audience)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: outcome})
}

// RecordRedemption handles POST /api/v1/offers/redeem
func (h *OfferHandler) RecordRedemption(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req service.RecordRedemptionInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	redemption, err := h.service.RecordRedemption(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: redemption})
}

// requestActor identifies who made an admin request, for audit columns.
func requestActor(r *http.Request) string {
	if actor := r.Header.Get("X-User-Id"); actor != "" {
		return actor
	}
	return "internal"
}
