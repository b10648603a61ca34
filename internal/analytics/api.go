package analytics

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/errors"
)

// Handler exposes analytics reports over HTTP
type Handler struct {
	aggregator *Aggregator
}

// NewHandler creates an analytics HTTP handler
func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

// Routes returns the analytics sub-router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requireAnalyticsRead)

	r.Get("/regions", h.regionUsage)
	r.Get("/regions/export", h.exportRegionUsage)
	r.Get("/users", h.userActivity)
	r.Get("/heatmap", h.heatmap)

	return r
}

func requireAnalyticsRead(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth.ActorFromContext(r.Context())
		if !ok {
			writeError(w, errors.Unauthorized("authentication required"))
			return
		}
		if !actor.Role.AtLeast(auth.RoleManager) {
			writeError(w, errors.Forbidden("analytics require manager role"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) regionUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.aggregator.RegionUsage(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": usage, "count": len(usage)})
}

func (h *Handler) exportRegionUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.aggregator.RegionUsage(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="region-usage.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"region", "granted", "denied", "total"})
	for _, stat := range usage {
		cw.Write([]string{
			stat.Region,
			strconv.Itoa(stat.Granted),
			strconv.Itoa(stat.Denied),
			strconv.Itoa(stat.Total),
		})
	}
	cw.Flush()
}

func (h *Handler) userActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.aggregator.UserActivity(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": activity, "count": len(activity)})
}

func (h *Handler) heatmap(w http.ResponseWriter, r *http.Request) {
	points, err := h.aggregator.Heatmap(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": points, "count": len(points)})
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
