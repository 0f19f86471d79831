package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/app"
)

// Controller is the part of *app.App the session handlers drive.
type Controller interface {
	Snapshot(ctx context.Context) (app.Snapshot, error)
	Reset(ctx context.Context) error
	HandlePointer(ctx context.Context, ev app.PointerEvent) error
	ToggleAudio(ctx context.Context) (bool, error)
	SetMode(ctx context.Context, mode app.Mode) error
	EditArt(ctx context.Context, cardID int, instruction string) (string, error)
	RetryArt(ctx context.Context, cardID int) (string, error)
}

var _ Controller = (*app.App)(nil)

// SessionHandler serves the session, input and art endpoints.
type SessionHandler struct {
	ctrl Controller
}

// NewSessionHandler creates a SessionHandler for ctrl.
func NewSessionHandler(ctrl Controller) *SessionHandler {
	return &SessionHandler{ctrl: ctrl}
}

// Routes registers the handler on r.
func (h *SessionHandler) Routes(r chi.Router) {
	r.Get("/session", h.snapshot)
	r.Post("/session/reset", h.reset)
	r.Post("/pointer", h.pointer)
	r.Post("/audio/toggle", h.toggleAudio)
	r.Put("/mode", h.setMode)
	r.Post("/cards/{id}/art", h.editArt)
	r.Post("/cards/{id}/art/retry", h.retryArt)
}

type audioResponse struct {
	Playing bool `json:"playing"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type editArtRequest struct {
	Instruction string `json:"instruction"`
}

type artResponse struct {
	RequestID string `json:"request_id"`
	CardID    int    `json:"card_id"`
}

// snapshot handles GET /api/session.
func (h *SessionHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	s, err := h.ctrl.Snapshot(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// reset handles POST /api/session/reset and returns the fresh session.
func (h *SessionHandler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Reset(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	h.snapshot(w, r)
}

// pointer handles POST /api/pointer with one mouse-mode event.
func (h *SessionHandler) pointer(w http.ResponseWriter, r *http.Request) {
	var ev app.PointerEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.ctrl.HandlePointer(r.Context(), ev); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// toggleAudio handles POST /api/audio/toggle.
func (h *SessionHandler) toggleAudio(w http.ResponseWriter, r *http.Request) {
	on, err := h.ctrl.ToggleAudio(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, audioResponse{Playing: on})
}

// setMode handles PUT /api/mode.
func (h *SessionHandler) setMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	mode, err := app.ParseMode(req.Mode)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.ctrl.SetMode(r.Context(), mode); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modeRequest{Mode: string(mode)})
}

// editArt handles POST /api/cards/{id}/art.
func (h *SessionHandler) editArt(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	var req editArtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Instruction == "" {
		writeError(w, http.StatusBadRequest, "Instruction is required")
		return
	}
	reqID, err := h.ctrl.EditArt(r.Context(), id, req.Instruction)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, artResponse{RequestID: reqID, CardID: id})
}

// retryArt handles POST /api/cards/{id}/art/retry.
func (h *SessionHandler) retryArt(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	reqID, err := h.ctrl.RetryArt(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, artResponse{RequestID: reqID, CardID: id})
}

func cardID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, "Invalid card id")
		return 0, false
	}
	return id, true
}
