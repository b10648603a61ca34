package request

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

// Handler exposes the access request workflow over HTTP
type Handler struct {
	workflow *Workflow
}

// NewHandler creates an access request HTTP handler
func NewHandler(workflow *Workflow) *Handler {
	return &Handler{workflow: workflow}
}

// Routes returns the request sub-router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.submit)
	r.Get("/mine", h.listMine)
	r.Get("/pending", h.listPending)
	r.Get("/{id}", h.get)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/cancel", h.cancel)

	return r
}

type submitRequest struct {
	Regions []string `json:"regions"`
	Reason  string   `json:"reason"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body", nil))
		return
	}

	created, err := h.workflow.Submit(r.Context(), actor, req.Regions, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Validation("invalid request id", nil))
		return
	}

	req, err := h.workflow.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	requests, err := h.workflow.ListForUser(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests, "count": len(requests)})
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	if !actor.CanReview() {
		writeError(w, errors.Forbidden("request review requires manager role"))
		return
	}

	requests, err := h.workflow.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests, "count": len(requests)})
}

type reviewRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.workflow.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.workflow.Reject)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, decide func(context.Context, auth.Actor, types.ID, string) (*Request, error)) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Validation("invalid request id", nil))
		return
	}

	var req reviewRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	reviewed, err := decide(r.Context(), actor, id, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewed)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Validation("invalid request id", nil))
		return
	}

	req, err := h.workflow.Cancel(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
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
