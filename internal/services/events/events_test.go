package events

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		eventType string
		want      Kind
	}{
		{"DEVICE_UPDATED", KindDevices},
		{"device_added", KindDevices},
		{"PRESET_CREATED", KindPresets},
		{"PROJECT_CHANGED", KindPresets},
		{"SWITCHER_PROGRAM_CHANGED", KindLiveInputs},
		{"AUTOCUT_STARTED", KindAutoCut},
		{"HEARTBEAT", KindUnknown},
		{"", KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.eventType))
		})
	}
}

func TestConfig_URL(t *testing.T) {
	cfg := Config{Host: "10.0.0.2", Port: 8080, Path: "api/gui/updates"}
	assert.Equal(t, "ws://10.0.0.2:8080/api/gui/updates", cfg.URL())
}

type fakeRefresher struct {
	calls []string
	err   error
}

func (f *fakeRefresher) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeRefresher) RefreshDevices(context.Context) error       { return f.record("devices") }
func (f *fakeRefresher) RefreshPresets(context.Context) error       { return f.record("presets") }
func (f *fakeRefresher) RefreshActivePresets(context.Context) error { return f.record("active") }
func (f *fakeRefresher) RefreshLiveInputs(context.Context) error    { return f.record("live") }
func (f *fakeRefresher) RefreshAutoCut(context.Context) error       { return f.record("autocut") }

func TestDispatcher_Handle(t *testing.T) {
	refresher := &fakeRefresher{}
	var kinds []Kind
	d := NewDispatcher(refresher, func(k Kind) { kinds = append(kinds, k) })
	ctx := context.Background()

	for _, typ := range []string{"DEVICE_UPDATED", "PRESET_DELETED", "SWITCHER_CUT", "AUTOCUT_STOPPED", "PING"} {
		require.NoError(t, d.Handle(ctx, Event{Type: typ}))
	}

	assert.Equal(t, []string{"devices", "presets", "active", "live", "autocut"}, refresher.calls)
	assert.Equal(t, []Kind{KindDevices, KindPresets, KindLiveInputs, KindAutoCut}, kinds)
}

func TestDispatcher_HandleError(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("offline")}
	notified := false
	d := NewDispatcher(refresher, func(Kind) { notified = true })

	err := d.Handle(context.Background(), Event{Type: "PRESET_UPDATED"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presets")
	assert.False(t, notified)
	assert.Equal(t, []string{"presets"}, refresher.calls, "active map is skipped after a failed preset refresh")
}

// eventServer accepts websocket connections, sends the given messages and
// closes the connection.
func eventServer(t *testing.T, messages []string, connections *int32, auth *atomic.Value) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth != nil {
			auth.Store(r.Header.Get("Authorization"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(connections, 1)
		for _, m := range messages {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(m))
		}
		_ = conn.Close()
	}))
}

func configFor(t *testing.T, server *httptest.Server) Config {
	t.Helper()
	hostPort := strings.TrimPrefix(server.URL, "http://")
	host, portStr, ok := strings.Cut(hostPort, ":")
	require.True(t, ok)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return Config{Host: host, Port: port, Path: "/api/gui/updates", ReconnectDelay: 20 * time.Millisecond}
}

func TestListener_DeliversEventsAndReconnects(t *testing.T) {
	var connections int32
	var auth atomic.Value
	server := eventServer(t, []string{
		`{"type":"DEVICE_UPDATED","deviceId":3}`,
		`not json`,
		`{"deviceId":1}`,
		`{"type":"PRESET_CREATED"}`,
	}, &connections, &auth)
	defer server.Close()

	cfg := configFor(t, server)
	cfg.Username = "operator"
	cfg.Password = "secret"

	var mu sync.Mutex
	var received []Event
	ctx, cancel := context.WithCancel(context.Background())
	listener := NewListener(cfg, func(_ context.Context, ev Event) {
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		listener.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&connections) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(received), 2)
	assert.Equal(t, "DEVICE_UPDATED", received[0].Type)
	require.NotNil(t, received[0].DeviceID)
	assert.Equal(t, 3, *received[0].DeviceID)
	assert.Equal(t, "PRESET_CREATED", received[1].Type)
	assert.True(t, strings.HasPrefix(auth.Load().(string), "Basic "))
}

func TestListener_StopsWhileServerUnreachable(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: 1, Path: "/updates", ReconnectDelay: time.Hour}
	listener := NewListener(cfg, func(context.Context, Event) {})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		listener.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return while waiting to reconnect")
	}
}
