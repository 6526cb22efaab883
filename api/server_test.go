package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zainbaq/medical-ml/config"
	"github.com/zainbaq/medical-ml/errors"
	"github.com/zainbaq/medical-ml/registry"
)

func TestServer_StartStop(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	srv := NewServer(registry.NewStore(registry.WithLogger(quiet)), nil, cfg, WithLogger(quiet))
	require.NoError(t, srv.Start(context.Background()))

	err := srv.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop(time.Second))
	assert.Empty(t, srv.Addr())
	require.NoError(t, srv.Stop(time.Second))
}

func TestServer_StartBindFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "256.0.0.1"

	srv := NewServer(registry.NewStore(registry.WithLogger(quiet)), nil, cfg, WithLogger(quiet))
	err := srv.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func dialWatch(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/api/v1/services/watch" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) registry.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev registry.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func newWatchEnv(t *testing.T) (*testEnv, *registry.Broadcaster) {
	t.Helper()
	b := registry.NewBroadcaster(nil)
	env := newTestEnvWithStore(t, nil, []registry.Option{registry.WithEventSink(b)}, WithBroadcaster(b))
	return env, b
}

func TestWatch_StreamsEvents(t *testing.T) {
	env, b := newWatchEnv(t)
	conn := dialWatch(t, env, "")
	require.Eventually(t, func() bool { return b.Len() == 1 }, time.Second, 5*time.Millisecond)

	env.do(t, http.MethodPost, "/api/v1/services/register", registration("svc", "cancer"))
	env.do(t, http.MethodPost, "/api/v1/services/svc/heartbeat", nil)
	env.do(t, http.MethodDelete, "/api/v1/services/svc", nil)

	ev := readEvent(t, conn)
	assert.Equal(t, registry.EventRegistered, ev.Type)
	require.NotNil(t, ev.Record)
	assert.Equal(t, []string{"cancer"}, ev.Record.Tags)

	assert.Equal(t, registry.EventHeartbeat, readEvent(t, conn).Type)
	assert.Equal(t, registry.EventUnregistered, readEvent(t, conn).Type)
}

func TestWatch_FilterByService(t *testing.T) {
	env, b := newWatchEnv(t)
	conn := dialWatch(t, env, "?service_id=b")
	require.Eventually(t, func() bool { return b.Len() == 1 }, time.Second, 5*time.Millisecond)

	env.do(t, http.MethodPost, "/api/v1/services/register", registration("a"))
	env.do(t, http.MethodPost, "/api/v1/services/register", registration("b"))

	ev := readEvent(t, conn)
	assert.Equal(t, "b", ev.ServiceID)
}

func TestWatch_ClientCloseUnsubscribes(t *testing.T) {
	env, b := newWatchEnv(t)
	conn := dialWatch(t, env, "")
	require.Eventually(t, func() bool { return b.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return b.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatch_DisabledWithoutBroadcaster(t *testing.T) {
	env := newTestEnv(t, nil)
	// falls through to the {service_id} route
	resp := env.do(t, http.MethodGet, "/api/v1/services/watch", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
