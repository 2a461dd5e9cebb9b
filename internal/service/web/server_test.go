package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echo_nexus/internal/core/logsink"
	"echo_nexus/internal/shared/types"
)

type fakeStatus struct{}

func (fakeStatus) GetStatus() *types.Status {
	return &types.Status{
		Cores:    4,
		Listener: &types.ListenerInfo{Address: "127.0.0.1", Port: 8081},
		Pool:     types.PoolStats{Size: 4, Running: 1},
		Traffic:  types.TrafficStats{Accepted: 3, Active: 1, BytesIn: 12, BytesOut: 12},
	}
}

func newTestServer(t *testing.T, cfg types.WebConf) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "echo_nexus_pool_workers 4")
	})
	srv := httptest.NewServer(NewMux(cfg, fakeStatus{}, metrics, hub))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, hub
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t, types.WebConf{})

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var st types.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 4, st.Cores)
	assert.Equal(t, 8081, st.Listener.Port)
	assert.Equal(t, int64(3), st.Traffic.Accepted)
}

func TestHandleStatus_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, types.WebConf{})
	resp, err := http.Post(srv.URL+"/api/status", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBasicAuth(t *testing.T) {
	srv, _ := newTestServer(t, types.WebConf{User: "admin", Password: "secret"})

	for _, path := range []string{"/api/status", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)

		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		req.SetBasicAuth("admin", "secret")
		resp, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestWebSocket_ReceivesLogEntries(t *testing.T) {
	srv, hub := newTestServer(t, types.WebConf{})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.BroadcastLogEntry(logsink.Entry{Time: time.Now(), Text: "ping"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type string        `json:"type"`
		Data logsink.Entry `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageLogEntry, msg.Type)
	assert.Equal(t, "ping", msg.Data.Text)

	hub.BroadcastDashboardUpdate(&DashboardStats{ActiveConnections: 2})
	var dash struct {
		Type string         `json:"type"`
		Data DashboardStats `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&dash))
	assert.Equal(t, MessageDashboardUpdate, dash.Type)
	assert.Equal(t, int64(2), dash.Data.ActiveConnections)
}

func TestStartServer_Disabled(t *testing.T) {
	var wg sync.WaitGroup
	s, err := StartServer(&wg, "127.0.0.1", types.WebConf{Port: 0}, fakeStatus{}, nil, NewHub())
	assert.NoError(t, err)
	assert.Nil(t, s)
}
