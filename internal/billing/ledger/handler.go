package ledger

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/domus-erp/domus-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for advance entry.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

type upsertAdvanceRequest struct {
	UnitID    int64           `json:"unitId" validate:"required"`
	ServiceID int64           `json:"serviceId" validate:"required"`
	Year      int             `json:"year" validate:"required,min=1990,max=2100"`
	Month     int             `json:"month" validate:"required,min=1,max=12"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *Handler) upsertAdvance(w http.ResponseWriter, r *http.Request) {
	var req upsertAdvanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	err := h.service.UpsertAdvance(r.Context(), UpsertAdvanceInput{
		UnitID:    req.UnitID,
		ServiceID: req.ServiceID,
		Year:      req.Year,
		Month:     req.Month,
		Amount:    req.Amount,
	})
	if err != nil {
		h.logger.Error("upsert advance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
