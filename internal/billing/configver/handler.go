package configver

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/domus-erp/domus-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for configuration versions.
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

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.saveVersion)
	r.Get("/", h.listVersions)
	r.Route("/{versionID}", func(r chi.Router) {
		r.Get("/", h.getVersion)
		r.Delete("/", h.deleteVersion)
		r.Post("/restore", h.restoreVersion)
		r.Post("/default", h.setDefaultVersion)
	})
}

type versionResponse struct {
	ID         uuid.UUID         `json:"id"`
	BuildingID int64             `json:"buildingId"`
	Name       string            `json:"name"`
	Note       string            `json:"note,omitempty"`
	IsDefault  bool              `json:"isDefault"`
	Services   int               `json:"services"`
	Snapshot   []ServiceSnapshot `json:"snapshot,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func toVersionResponse(v ConfigVersion, includeSnapshot bool) versionResponse {
	out := versionResponse{
		ID:         v.ID,
		BuildingID: v.BuildingID,
		Name:       v.Name,
		Note:       v.Note,
		IsDefault:  v.IsDefault,
		Services:   len(v.Snapshot),
		CreatedAt:  v.CreatedAt,
	}
	if includeSnapshot {
		out.Snapshot = v.Snapshot
	}
	return out
}

type saveVersionRequest struct {
	BuildingID  int64  `json:"buildingId" validate:"required"`
	Name        string `json:"name" validate:"required,max=120"`
	Note        string `json:"note" validate:"max=500"`
	MakeDefault bool   `json:"makeDefault"`
}

func (h *Handler) saveVersion(w http.ResponseWriter, r *http.Request) {
	var req saveVersionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	version, err := h.service.SaveVersion(r.Context(), req.BuildingID, req.Name, req.Note, req.MakeDefault)
	if err != nil {
		h.logger.Error("save config version", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toVersionResponse(version, false))
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	buildingID, err := strconv.ParseInt(r.URL.Query().Get("buildingId"), 10, 64)
	if err != nil || buildingID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Building", "buildingId query parameter is required")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))

	versions, pagination, err := h.service.List(r.Context(), buildingID, page, perPage)
	if err != nil {
		h.logger.Error("list config versions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]versionResponse, 0, len(versions))
	for _, v := range versions {
		items = append(items, toVersionResponse(v, false))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items": items,
		"pagination": map[string]int{
			"page":       pagination.Page,
			"perPage":    pagination.PerPage,
			"total":      pagination.Total,
			"totalPages": pagination.TotalPages,
		},
	})
}

func (h *Handler) getVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathVersionID(w, r)
	if !ok {
		return
	}
	version, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVersionResponse(version, true))
}

func (h *Handler) deleteVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathVersionID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete config version", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restoreVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathVersionID(w, r)
	if !ok {
		return
	}
	version, err := h.service.Restore(r.Context(), id)
	if err != nil {
		h.logger.Error("restore config version", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVersionResponse(version, false))
}

func (h *Handler) setDefaultVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathVersionID(w, r)
	if !ok {
		return
	}
	version, err := h.service.SetDefaultVersion(r.Context(), id)
	if err != nil {
		h.logger.Error("set default config version", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVersionResponse(version, false))
}

func (h *Handler) pathVersionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "versionID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "version id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
