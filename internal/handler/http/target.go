package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/service"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/httputil"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/validator"
)

// TargetHandler handles HTTP requests for target campaign and cashback
// settlement endpoints.
type TargetHandler struct {
	campaigns  *service.CampaignService
	settlement *service.SettlementService
	logger     *slog.Logger
}

// NewTargetHandler creates a new target HTTP handler.
func NewTargetHandler(campaigns *service.CampaignService, settlement *service.SettlementService, logger *slog.Logger) *TargetHandler {
	return &TargetHandler{
		campaigns:  campaigns,
		settlement: settlement,
		logger:     logger,
	}
}

// InitiateCampaignsRequest is the JSON request body for creating campaigns.
type InitiateCampaignsRequest struct {
	Campaigns []service.CampaignInput `json:"campaigns" validate:"required,min=1,dive"`
}

// SettlementRequest is the JSON request body for the settlement cron
// endpoints. An empty store list settles every store.
type SettlementRequest struct {
	StoreIDs []string `json:"storeIds"`
}

// WalletEligibleRequest is the JSON request body for the wallet eligibility
// backfill.
type WalletEligibleRequest struct {
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
}

// InitiateCampaigns handles POST /api/v1/targets/campaigns
func (h *TargetHandler) InitiateCampaigns(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req InitiateCampaignsRequest
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

	campaigns, err := h.campaigns.InitiateCampaigns(r.Context(), req.Campaigns, requestActor(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: campaigns})
}

// ListCampaigns handles GET /api/v1/targets/campaigns
func (h *TargetHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.campaigns.ListCampaigns(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: campaigns})
}

// ListCampaignCashbacks handles GET /api/v1/targets/campaigns/{id}/cashbacks
func (h *TargetHandler) ListCampaignCashbacks(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "campaign id must be numeric"},
		})
		return
	}

	rows, err := h.campaigns.ListCampaignCashbacks(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if rows == nil {
		rows = []domain.TargetCashback{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: rows})
}

// UpdateCampaign handles PUT /api/v1/targets/campaigns/{id}
func (h *TargetHandler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "campaign id must be numeric"},
		})
		return
	}

	var req service.UpdateCampaignInput
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

	campaign, err := h.campaigns.UpdateCampaign(r.Context(), id, &req, requestActor(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: campaign})
}

// StoreCampaign handles GET /api/v1/targets/store/{storeId}/campaign
func (h *TargetHandler) StoreCampaign(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeId")
	if storeID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "store id is required"},
		})
		return
	}

	view, err := h.campaigns.StoreCampaignView(r.Context(), storeID, time.Now().UTC())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// StoreEarnings handles GET /api/v1/targets/store/{storeId}/earnings
func (h *TargetHandler) StoreEarnings(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeId")
	if storeID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "store id is required"},
		})
		return
	}

	earnings, err := h.campaigns.Earnings(r.Context(), storeID, time.Now().UTC())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: earnings})
}

// SettleDaily handles POST /api/v1/targets/cashback/settle-daily
func (h *TargetHandler) SettleDaily(w http.ResponseWriter, r *http.Request) {
	h.runSettlement(w, r, h.settlement.RunDaily)
}

// SettleWeekly handles POST /api/v1/targets/cashback/settle-weekly
func (h *TargetHandler) SettleWeekly(w http.ResponseWriter, r *http.Request) {
	h.runSettlement(w, r, h.settlement.RunWeekly)
}

func (h *TargetHandler) runSettlement(
	w http.ResponseWriter,
	r *http.Request,
	run func(ctx context.Context, now time.Time, storeIDs []string, runBy string) (*service.RunResult, error),
) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req SettlementRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
			})
			return
		}
	}

	result, err := run(r.Context(), time.Now().UTC(), req.StoreIDs, requestActor(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// MarkWalletEligible handles POST /api/v1/targets/cashback/wallet-eligible
func (h *TargetHandler) MarkWalletEligible(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req WalletEligibleRequest
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

	from, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "startDate must be in YYYY-MM-DD format"},
		})
		return
	}
	to, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "endDate must be in YYYY-MM-DD format"},
		})
		return
	}

	count, err := h.campaigns.MarkWalletEligible(r.Context(), from, to, requestActor(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]int{"updated": count}})
}
