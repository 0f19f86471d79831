package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/deck"
	"github.com/ayusman/mudra/internal/geom"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// newTestStack runs an App behind a test server.
func newTestStack(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	settings := config.Default()
	settings.TickInterval = 0
	hub := NewHub(nil)
	m := metrics.New()

	a, err := app.New(app.Config{
		Settings: settings,
		Cards:    deck.Numbered(8),
		RNG:      deck.NewRNG(3),
		Store:    st,
		Metrics:  m,
		Scene:    hub,
	})
	require.NoError(t, err)
	a.AddObserver(hub)
	hub.SetInput(a)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ts := httptest.NewServer(New(Config{
		Controller: a,
		Store:      st,
		Hub:        hub,
		Metrics:    m.Handler(),
	}))
	t.Cleanup(ts.Close)
	return ts, hub
}

func TestAPI_SessionOverHTTP(t *testing.T) {
	ts, _ := newTestStack(t)
	client := ts.Client()

	resp, err := client.Get(ts.URL + "/api/session")
	require.NoError(t, err)
	var snap struct {
		State     string `json:"state"`
		Remaining int    `json:"remaining"`
		Ring      []any  `json:"ring"`
		Mode      string `json:"mode"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()

	assert.Equal(t, "ready", snap.State)
	assert.Equal(t, 8, snap.Remaining)
	assert.Len(t, snap.Ring, 8)
	assert.Equal(t, "mouse", snap.Mode)

	resp, err = client.Post(ts.URL+"/api/pointer", "application/json", strings.NewReader(`{"kind":"move","x":0.5,"y":0.5}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "POST /api/pointer")

	resp, err = client.Post(ts.URL+"/api/cards/1/art/retry", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "retry without art service")

	resp, err = client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	scanner := bufio.NewScanner(resp.Body)
	var found bool
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), `mudra_frames_total{mode="mouse"}`) {
			found = true
		}
	}
	resp.Body.Close()
	assert.True(t, found, "mouse frame counter in /metrics")
}

func TestAPI_CameraModeRefusedWithoutCamera(t *testing.T) {
	ts, _ := newTestStack(t)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/mode", strings.NewReader(`{"mode":"camera"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Nothing was persisted for the refused switch.
	resp, err = ts.Client().Get(ts.URL + "/api/settings/input_mode")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHub_BroadcastsEvents(t *testing.T) {
	ts, hub := newTestStack(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() > 0 }, 2*time.Second, 5*time.Millisecond,
		"client never registered")

	resp, err := ts.Client().Post(ts.URL+"/api/session/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == TypeEvent && msg.Event != nil && msg.Event.Kind == session.EventReset {
			break
		}
	}

	// Pointer events can also arrive over the socket.
	assert.NoError(t, conn.WriteJSON(app.PointerEvent{Kind: app.PointerMove, X: 0.2, Y: 0.3}))
}

func TestHub_SceneMessages(t *testing.T) {
	hub := NewHub(nil)
	c := &client{send: make(chan []byte, 4)}
	hub.clients[c] = struct{}{}

	hub.SetPose(4, geom.Pose{Position: geom.V(1, 2, 3), Scale: 1})
	hub.SpawnBurst(geom.Pose{})
	hub.ClearBurst()

	for _, typ := range []string{TypePose, TypeBurst, TypeBurstClear} {
		var msg Message
		require.NoError(t, json.Unmarshal(<-c.send, &msg))
		assert.Equal(t, typ, msg.Type)
		if typ == TypePose {
			require.NotNil(t, msg.CardID)
			assert.Equal(t, 4, *msg.CardID)
		}
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	c := &client{send: make(chan []byte, 1)}
	hub.clients[c] = struct{}{}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.ClearBurst()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full client")
	}
}

func TestStreamHandler(t *testing.T) {
	frames := capture.NewLatest()
	frames.Store([]byte{0xFF, 0xD8, 0x01})

	ts := httptest.NewServer(New(Config{Frames: frames}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "multipart/x-mixed-replace"),
		"Content-Type = %q", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "--frame", strings.TrimSpace(line))
	line, _ = r.ReadString('\n')
	assert.Equal(t, "Content-Type: image/jpeg", strings.TrimSpace(line))
}
