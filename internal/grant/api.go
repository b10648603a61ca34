package grant

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

// Handler exposes the grant service over HTTP
type Handler struct {
	service *Service
}

// NewHandler creates a grant HTTP handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the grant sub-router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.grant)
	r.Get("/{id}", h.get)
	r.Post("/{id}/revoke", h.revoke)
	r.Post("/{id}/extend", h.extend)
	r.Delete("/{id}", h.delete)
	r.Get("/users/{userID}", h.listForUser)
	r.Get("/users/{userID}/active", h.listActive)

	return r
}

type grantRequest struct {
	UserID    string    `json:"user_id"`
	Region    string    `json:"region"`
	ExpiresAt time.Time `json:"expires_at"`
	Reason    string    `json:"reason"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body", nil))
		return
	}
	userID, err := types.ParseID(req.UserID)
	if err != nil {
		writeError(w, errors.Validation("invalid user id", nil))
		return
	}

	g, err := h.service.Grant(r.Context(), actor, userID, req.Region, req.ExpiresAt, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Validation("invalid grant id", nil))
		return
	}

	g, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Validation("invalid grant id", nil))
		return
	}

	var req revokeRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	g, err := h.service.Revoke(r.Context(), actor, id, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type extendRequest struct {
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) extend(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Validation("invalid grant id", nil))
		return
	}

	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body", nil))
		return
	}

	g, err := h.service.Extend(r.Context(), actor, id, req.ExpiresAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Validation("invalid grant id", nil))
		return
	}

	deleted, err := h.service.Delete(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) listForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.Validation("invalid user id", nil))
		return
	}

	grants, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants, "count": len(grants)})
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.Validation("invalid user id", nil))
		return
	}

	grants, err := h.service.ListActive(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants, "count": len(grants)})
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
