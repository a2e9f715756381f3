package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestEventHubBroadcastsReload(t *testing.T) {
	a := testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"})
	hub := NewEventHub()
	defer hub.Stop()

	srv := httptest.NewServer(LoggerMiddleware(http.HandlerFunc(hub.HandleWebSocket)))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	hub.ArtifactsReloaded(a)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, EventArtifactsReloaded, ev.Type)
	assert.NotEmpty(t, ev.ID)

	var data reloadData
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, 4, data.Features)
	assert.Equal(t, []string{"Rendah", "Sedang", "Tinggi"}, data.Classes)
}

func TestEventHubStopRejectsClients(t *testing.T) {
	hub := NewEventHub()
	hub.Stop()

	w := httptest.NewRecorder()
	hub.HandleWebSocket(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEventsScriptIsServed(t *testing.T) {
	h := newTestServer(t, testArtifacts(t, []string{"Rendah", "Sedang", "Tinggi"}), language.Indonesian)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/events.js", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/javascript", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "artifacts_reloaded")
}
