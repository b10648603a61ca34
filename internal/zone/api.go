package zone

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

// Handler exposes the zone registry over HTTP
type Handler struct {
	registry *Registry
}

// NewHandler creates a zone HTTP handler
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Routes returns the zone sub-router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.listZones)
	r.Post("/", h.createZone)
	r.Get("/{id}", h.getZone)
	r.Patch("/{id}", h.updateZone)
	r.Delete("/{id}", h.deleteZone)

	r.Get("/assignments", h.listAssignments)
	r.Put("/assignments/{userID}", h.assignZones)
	r.Get("/assignments/{userID}", h.getAssignment)
	r.Get("/assignments/{userID}/regions", h.regionsForUser)

	return r
}

type createZoneRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
	Regions     []string `json:"regions"`
}

func (h *Handler) createZone(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req createZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body", nil))
		return
	}

	z, err := h.registry.CreateZone(r.Context(), actor, req.Name, req.Description, req.Color, req.Regions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, z)
}

func (h *Handler) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.registry.ListZones(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": zones, "count": len(zones)})
}

func (h *Handler) getZone(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Validation("invalid zone id", nil))
		return
	}

	z, err := h.registry.GetZone(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, z)
}

func (h *Handler) updateZone(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Validation("invalid zone id", nil))
		return
	}

	var upd Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, errors.Validation("invalid request body", nil))
		return
	}

	z, err := h.registry.UpdateZone(r.Context(), actor, id, upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, z)
}

func (h *Handler) deleteZone(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Validation("invalid zone id", nil))
		return
	}

	deleted, err := h.registry.DeleteZone(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

type assignZonesRequest struct {
	ZoneIDs []string `json:"zone_ids"`
}

func (h *Handler) assignZones(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.Validation("invalid user id", nil))
		return
	}

	var req assignZonesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body", nil))
		return
	}

	a, err := h.registry.AssignZones(r.Context(), actor, userID, req.ZoneIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) getAssignment(w http.ResponseWriter, r *http.Request) {
	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.Validation("invalid user id", nil))
		return
	}

	a, err := h.registry.AssignmentForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if a == nil {
		writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "zone_ids": []string{}})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) regionsForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.Validation("invalid user id", nil))
		return
	}

	regions, err := h.registry.RegionsForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if regions == nil {
		regions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "regions": regions})
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.registry.ListAssignments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments, "count": len(assignments)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
