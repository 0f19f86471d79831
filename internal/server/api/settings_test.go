package api

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/store"
)

// newTestStore creates a Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestSettingsHandler(t *testing.T) {
	s := newTestStore(t)
	r := chi.NewRouter()
	r.Route("/api", NewSettingsHandler(s).Routes)

	rec := do(t, r, http.MethodGet, "/api/settings/input_mode", "")
	require.Equal(t, http.StatusNotFound, rec.Code, "missing setting")

	rec = do(t, r, http.MethodPut, "/api/settings/input_mode", `{"value":"mouse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	v, err := s.Settings().Get(context.Background(), store.SettingInputMode)
	require.NoError(t, err)
	assert.Equal(t, "mouse", v)

	rec = do(t, r, http.MethodGet, "/api/settings/input_mode", "")
	var got settingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, settingResponse{Key: "input_mode", Value: "mouse"}, got)

	do(t, r, http.MethodPut, "/api/settings/audio_enabled", `{"value":"true"}`)
	rec = do(t, r, http.MethodGet, "/api/settings", "")
	var all map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Equal(t, map[string]string{"input_mode": "mouse", "audio_enabled": "true"}, all)

	rec = do(t, r, http.MethodDelete, "/api/settings/input_mode", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, r, http.MethodDelete, "/api/settings/input_mode", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "second delete")

	rec = do(t, r, http.MethodPut, "/api/settings/x", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
