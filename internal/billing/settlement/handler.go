package settlement

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/domus-erp/domus-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for billing periods and settlements.
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

type periodRequest struct {
	BuildingID int64 `json:"buildingId" validate:"required"`
	Year       int   `json:"year" validate:"required,min=1990,max=2100"`
}

func (h *Handler) decodePeriodRequest(w http.ResponseWriter, r *http.Request) (periodRequest, bool) {
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePeriodRequest(w, r)
	if !ok {
		return
	}
	period, err := h.service.CreatePeriod(r.Context(), req.BuildingID, req.Year)
	if err != nil {
		h.logger.Error("create period", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPeriodResponse(period))
}

func (h *Handler) getPeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "periodID")
	if !ok {
		return
	}
	period, err := h.service.GetPeriod(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) deletePeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "periodID")
	if !ok {
		return
	}
	if err := h.service.DeletePeriod(r.Context(), id); err != nil {
		h.logger.Error("delete period", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transition(target PeriodStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "periodID")
		if !ok {
			return
		}
		period, err := h.service.Transition(r.Context(), id, target)
		if err != nil {
			h.logger.Error("transition period", slog.String("target", string(target)), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
	}
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePeriodRequest(w, r)
	if !ok {
		return
	}
	report, err := h.service.RecalculatePeriod(r.Context(), req.BuildingID, req.Year)
	if err != nil {
		h.logger.Error("recalculate period", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) periodResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "periodID")
	if !ok {
		return
	}
	results, err := h.service.PeriodResults(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]resultResponse, 0, len(results))
	for _, result := range results {
		out = append(out, toResultResponse(result))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) previewService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "serviceID")
	if !ok {
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1990 || year > 2100 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Year", "year query parameter is required")
		return
	}
	preview, err := h.service.ComputeServiceDistribution(r.Context(), id, year)
	if err != nil {
		h.logger.Error("preview distribution", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "path parameter "+name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
