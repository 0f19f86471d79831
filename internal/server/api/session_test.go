package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/session"
)

type fakeController struct {
	snapshot app.Snapshot
	resets   int
	pointers []app.PointerEvent
	playing  bool
	mode     app.Mode
	edits    []string
	retries  []int
	err      error
}

func (f *fakeController) Snapshot(context.Context) (app.Snapshot, error) { return f.snapshot, f.err }

func (f *fakeController) Reset(context.Context) error {
	f.resets++
	return f.err
}

func (f *fakeController) HandlePointer(_ context.Context, ev app.PointerEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	f.pointers = append(f.pointers, ev)
	return f.err
}

func (f *fakeController) ToggleAudio(context.Context) (bool, error) {
	f.playing = !f.playing
	return f.playing, f.err
}

func (f *fakeController) SetMode(_ context.Context, m app.Mode) error {
	f.mode = m
	return f.err
}

func (f *fakeController) EditArt(_ context.Context, id int, instruction string) (string, error) {
	if id > 21 {
		return "", fmt.Errorf("%w: %d", app.ErrUnknownCard, id)
	}
	f.edits = append(f.edits, instruction)
	return "req-edit", f.err
}

func (f *fakeController) RetryArt(_ context.Context, id int) (string, error) {
	f.retries = append(f.retries, id)
	return "req-retry", f.err
}

func newSessionRouter(ctrl Controller) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", NewSessionHandler(ctrl).Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSessionHandler_Snapshot(t *testing.T) {
	ctrl := &fakeController{snapshot: app.Snapshot{
		Snapshot: session.Snapshot{State: session.Preview, Drawn: 1, MaxDraws: 3, Remaining: 21},
		Mode:     app.ModeMouse,
	}}
	h := newSessionRouter(ctrl)

	rec := do(t, h, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		State     string `json:"state"`
		Drawn     int    `json:"drawn"`
		Remaining int    `json:"remaining"`
		Mode      string `json:"mode"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "preview", got.State)
	assert.Equal(t, 1, got.Drawn)
	assert.Equal(t, 21, got.Remaining)
	assert.Equal(t, "mouse", got.Mode)
}

func TestSessionHandler_Reset(t *testing.T) {
	ctrl := &fakeController{}
	h := newSessionRouter(ctrl)

	rec := do(t, h, http.MethodPost, "/api/session/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ctrl.resets)

	rec = do(t, h, http.MethodGet, "/api/session/reset", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "GET reset")
}

func TestSessionHandler_Pointer(t *testing.T) {
	ctrl := &fakeController{}
	h := newSessionRouter(ctrl)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"move", `{"kind":"move","x":0.5,"y":0.4}`, http.StatusNoContent},
		{"key", `{"kind":"keydown","key":"f"}`, http.StatusNoContent},
		{"outside viewport", `{"kind":"down","x":1.2,"y":0.4}`, http.StatusBadRequest},
		{"unknown kind", `{"kind":"wave"}`, http.StatusBadRequest},
		{"bad json", `{"kind":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/pointer", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	assert.Len(t, ctrl.pointers, 2, "accepted events")
}

func TestSessionHandler_ToggleAudio(t *testing.T) {
	ctrl := &fakeController{}
	h := newSessionRouter(ctrl)

	for _, want := range []bool{true, false} {
		rec := do(t, h, http.MethodPost, "/api/audio/toggle", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got audioResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, want, got.Playing)
	}
}

func TestSessionHandler_Mode(t *testing.T) {
	ctrl := &fakeController{}
	h := newSessionRouter(ctrl)

	rec := do(t, h, http.MethodPut, "/api/mode", `{"mode":"mouse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, app.ModeMouse, ctrl.mode)

	rec = do(t, h, http.MethodPut, "/api/mode", `{"mode":"telepathy"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandler_ModeRefused(t *testing.T) {
	ctrl := &fakeController{err: fmt.Errorf("%w: no camera available", app.ErrInvalidInput)}
	h := newSessionRouter(ctrl)

	rec := do(t, h, http.MethodPut, "/api/mode", `{"mode":"camera"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no camera available")
}

func TestSessionHandler_Art(t *testing.T) {
	ctrl := &fakeController{}
	h := newSessionRouter(ctrl)

	rec := do(t, h, http.MethodPost, "/api/cards/3/art", `{"instruction":"add a moon"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var got artResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, artResponse{RequestID: "req-edit", CardID: 3}, got)

	rec = do(t, h, http.MethodPost, "/api/cards/3/art/retry", "")
	assert.Equal(t, http.StatusAccepted, rec.Code, "retry")
	assert.Equal(t, []int{3}, ctrl.retries)

	errCases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"missing instruction", "/api/cards/3/art", `{}`, http.StatusBadRequest},
		{"bad id", "/api/cards/abc/art", `{"instruction":"x"}`, http.StatusBadRequest},
		{"unknown card", "/api/cards/99/art", `{"instruction":"x"}`, http.StatusNotFound},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSessionHandler_ErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{app.ErrArtDisabled, http.StatusServiceUnavailable},
		{app.ErrStopped, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := newSessionRouter(&fakeController{err: tt.err})
		rec := do(t, h, http.MethodPost, "/api/cards/1/art/retry", "")
		assert.Equal(t, tt.want, rec.Code, "%v", tt.err)
	}
}
