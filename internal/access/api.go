package access

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

// Handler exposes the resolver over HTTP
type Handler struct {
	resolver *Resolver
}

// NewHandler creates an access HTTP handler
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// Routes returns the access sub-router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/users/{userID}/regions", h.effectiveRegions)
	r.Get("/users/{userID}/permissions", h.effectivePermissions)
	r.Get("/users/{userID}/regions/{region}", h.checkRegion)

	return r
}

func (h *Handler) effectiveRegions(w http.ResponseWriter, r *http.Request) {
	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.Validation("invalid user id", nil))
		return
	}

	regions, err := h.resolver.EffectiveRegions(r.Context(), userID, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	if regions == nil {
		regions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "regions": regions})
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.Validation("invalid user id", nil))
		return
	}

	perms, err := h.resolver.EffectivePermissions(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "permissions": perms})
}

func (h *Handler) checkRegion(w http.ResponseWriter, r *http.Request) {
	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.Validation("invalid user id", nil))
		return
	}
	region := chi.URLParam(r, "region")

	allowed, err := h.resolver.CanAccessRegion(r.Context(), userID, region)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "region": region, "allowed": allowed})
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
