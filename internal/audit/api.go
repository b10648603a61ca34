package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the audit module
type Handler struct {
	trail *Trail
}

// NewHandler creates a new audit handler
func NewHandler(trail *Trail) *Handler {
	return &Handler{trail: trail}
}

// Routes registers the audit routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListEntries)
	r.Get("/stats", h.GetStats)
	r.Get("/export", h.ExportCSV)

	return r
}

// parseFilter builds a Filter from query parameters
func parseFilter(r *http.Request) Filter {
	filter := Filter{}
	q := r.URL.Query()

	if userID := q.Get("user_id"); userID != "" {
		if id, err := types.ParseID(userID); err == nil {
			filter.UserID = id
		}
	}
	filter.Region = q.Get("region")
	filter.EventType = EventType(q.Get("event_type"))
	filter.Severity = Severity(q.Get("severity"))

	if success := q.Get("success"); success != "" {
		if b, err := strconv.ParseBool(success); err == nil {
			filter.Success = &b
		}
	}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	return filter
}

// ListEntries lists audit entries with filters, newest first
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	if !requireAuditRead(w, r) {
		return
	}

	entries, err := h.trail.Query(r.Context(), parseFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// GetStats summarizes the trail
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if !requireAuditRead(w, r) {
		return
	}

	stats, err := h.trail.Stats(r.Context(), parseFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ExportCSV streams matching entries as CSV rows
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	if !requireAuditRead(w, r) {
		return
	}

	entries, err := h.trail.Query(r.Context(), parseFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-trail.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{
		"id", "timestamp", "user_id", "user_name", "user_role",
		"event_type", "severity", "region", "tool_name",
		"action", "success", "error_message",
	})
	for i := range entries {
		e := &entries[i]
		cw.Write([]string{
			e.ID.String(),
			e.Timestamp.Format(time.RFC3339),
			e.UserID.String(),
			e.UserName,
			string(e.UserRole),
			string(e.EventType),
			string(e.Severity),
			e.Region,
			e.ToolName,
			e.Action,
			fmt.Sprintf("%t", e.Success),
			e.ErrorMessage,
		})
	}
	cw.Flush()
}

// requireAuditRead enforces that only managers and admins read the trail
func requireAuditRead(w http.ResponseWriter, r *http.Request) bool {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return false
	}
	if !actor.Role.AtLeast(auth.RoleManager) {
		writeError(w, errors.Forbidden("audit access requires manager role"))
		return false
	}
	return true
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
