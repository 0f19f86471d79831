package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/store"
)

// SettingsHandler exposes the persisted UI preferences.
type SettingsHandler struct {
	store *store.Store
}

// NewSettingsHandler creates a SettingsHandler backed by s.
func NewSettingsHandler(s *store.Store) *SettingsHandler {
	return &SettingsHandler{store: s}
}

// Routes registers the handler on r.
func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/settings", h.list)
	r.Get("/settings/{key}", h.get)
	r.Put("/settings/{key}", h.put)
	r.Delete("/settings/{key}", h.delete)
}

type settingRequest struct {
	Value string `json:"value"`
}

type settingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// list handles GET /api/settings.
func (h *SettingsHandler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.Settings().All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settings")
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// get handles GET /api/settings/{key}.
func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, err := h.store.Settings().Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Setting not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get setting")
		return
	}
	writeJSON(w, http.StatusOK, settingResponse{Key: key, Value: v})
}

// put handles PUT /api/settings/{key}.
func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.store.Settings().Set(r.Context(), key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save setting")
		return
	}
	writeJSON(w, http.StatusOK, settingResponse{Key: key, Value: req.Value})
}

// delete handles DELETE /api/settings/{key}.
func (h *SettingsHandler) delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Settings().Delete(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Setting not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete setting")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
