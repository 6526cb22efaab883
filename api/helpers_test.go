package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zainbaq/medical-ml/config"
	"github.com/zainbaq/medical-ml/registry"
)

var quiet = slog.New(slog.DiscardHandler)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)

type testEnv struct {
	server *Server
	store  *registry.Store
	clock  *registry.FakeClock
	http   *httptest.Server
	cfg    *config.Config
}

func newTestEnv(t *testing.T, mutate func(*config.Config), opts ...Option) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, mutate, nil, opts...)
}

func newTestEnvWithStore(t *testing.T, mutate func(*config.Config), storeOpts []registry.Option, opts ...Option) *testEnv {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	clock := registry.NewFakeClock(t0)
	storeOpts = append([]registry.Option{registry.WithClock(clock), registry.WithLogger(quiet)}, storeOpts...)
	store := registry.NewStore(storeOpts...)
	srv := NewServer(store, nil, cfg, append([]Option{WithLogger(quiet)}, opts...)...)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: srv, store: store, clock: clock, http: ts, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.http.URL+path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func registration(id string, tags ...string) map[string]any {
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"service_id":    id,
		"service_name":  id + " Prediction API",
		"version":       "1.0.0",
		"description":   "predicts " + id,
		"base_url":      "http://localhost:8000",
		"port":          8000,
		"endpoints":     map[string]string{"predict": "/api/v1/predict", "health": "/health"},
		"input_schema":  map[string]any{"type": "object", "properties": map[string]any{"age": map[string]any{"type": "integer"}}},
		"output_schema": map[string]any{"type": "object"},
		"tags":          tags,
		"capabilities":  map[string]any{"accuracy": 0.95},
	}
}
