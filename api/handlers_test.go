package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zainbaq/medical-ml/config"
	"github.com/zainbaq/medical-ml/health"
	"github.com/zainbaq/medical-ml/metric"
	"github.com/zainbaq/medical-ml/registry"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/services/register", registration("breast_cancer", "cancer"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[RegisterResponse](t, resp)
	assert.Equal(t, RegisterResponse{
		Status:    "registered",
		ServiceID: "breast_cancer",
		Message:   "Service 'breast_cancer Prediction API' registered successfully",
	}, body)

	rec, ok := env.store.Get("breast_cancer")
	require.True(t, ok)
	assert.Equal(t, []string{"cancer"}, rec.Tags)
	assert.JSONEq(t, `{"accuracy":0.95}`, string(rec.Capabilities))
	require.NotNil(t, rec.LastHeartbeat)
	assert.Equal(t, rec.RegisteredAt, *rec.LastHeartbeat)
}

func TestRegister_OptionalFieldsDefault(t *testing.T) {
	env := newTestEnv(t, nil)

	reg := registration("alzheimers")
	delete(reg, "description")
	delete(reg, "tags")
	delete(reg, "capabilities")

	resp := env.do(t, http.MethodPost, "/api/v1/services/register", reg)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/v1/services/alzheimers", nil))
	assert.Equal(t, "", got["description"])
	assert.Equal(t, []any{}, got["tags"])
	assert.Nil(t, got["capabilities"])
}

func TestRegister_ReplacesExisting(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPost, "/api/v1/services/register", registration("svc", "a"))
	env.clock.Advance(time.Minute)

	second := registration("svc", "b")
	second["version"] = "2.0.0"
	resp := env.do(t, http.MethodPost, "/api/v1/services/register", second)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	list := decode[[]registry.ServiceRecord](t, env.do(t, http.MethodGet, "/api/v1/services", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "2.0.0", list[0].Version)
	assert.Equal(t, []string{"b"}, list[0].Tags)
}

func TestRegister_ValidationListsEveryField(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/services/register", map[string]any{"service_name": "x"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decode[ValidationResponse](t, resp)
	var fields []string
	for _, d := range body.Detail {
		require.Len(t, d.Loc, 2)
		assert.Equal(t, "body", d.Loc[0])
		assert.Equal(t, "missing", d.Type)
		assert.Equal(t, "Field required", d.Msg)
		fields = append(fields, d.Loc[1].(string))
	}
	assert.ElementsMatch(t, []string{
		"service_id", "version", "base_url", "port", "endpoints", "input_schema", "output_schema",
	}, fields)
	assert.Equal(t, 0, env.store.Count())
}

func TestRegister_ValidationTypes(t *testing.T) {
	env := newTestEnv(t, nil)

	reg := registration("svc")
	reg["port"] = "eight thousand"
	reg["tags"] = []any{"ok", 7}
	reg["endpoints"] = map[string]any{"predict": 1}
	reg["capabilities"] = "fast"

	resp := env.do(t, http.MethodPost, "/api/v1/services/register", reg)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decode[ValidationResponse](t, resp)
	locs := make([]string, 0, len(body.Detail))
	for _, d := range body.Detail {
		locs = append(locs, fmt.Sprint(d.Loc))
	}
	assert.ElementsMatch(t, []string{
		"[body port]", "[body tags 1]", "[body endpoints predict]", "[body capabilities]",
	}, locs)
}

func TestRegister_MalformedJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, body := range []string{"", "{not json", "[1,2]"} {
		resp := env.do(t, http.MethodPost, "/api/v1/services/register", body)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "body %q", body)
	}
	assert.Equal(t, 0, env.store.Count())
}

func TestRegister_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Server.MaxBodyBytes = 64 })

	resp := env.do(t, http.MethodPost, "/api/v1/services/register", registration("svc"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "Request body exceeds 64 bytes", decode[DetailResponse](t, resp).Detail)
	assert.Equal(t, 0, env.store.Count())
}

func TestGetAndList(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/v1/services", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]registry.ServiceRecord](t, resp))

	env.do(t, http.MethodPost, "/api/v1/services/register", registration("b"))
	env.do(t, http.MethodPost, "/api/v1/services/register", registration("a"))

	list := decode[[]registry.ServiceRecord](t, env.do(t, http.MethodGet, "/api/v1/services", nil))
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ServiceID)

	resp = env.do(t, http.MethodGet, "/api/v1/services/b", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[registry.ServiceRecord](t, resp)
	want, _ := env.store.Get("b")
	assert.Empty(t, cmp.Diff(want, got))

	resp = env.do(t, http.MethodGet, "/api/v1/services/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Service 'missing' not found", decode[DetailResponse](t, resp).Detail)
}

func TestUnregister(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/v1/services/register", registration("svc"))

	resp := env.do(t, http.MethodDelete, "/api/v1/services/svc", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, RegisterResponse{
		Status:    "unregistered",
		ServiceID: "svc",
		Message:   "Service 'svc' unregistered successfully",
	}, decode[RegisterResponse](t, resp))

	resp = env.do(t, http.MethodDelete, "/api/v1/services/svc", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Service 'svc' not found", decode[DetailResponse](t, resp).Detail)
}

func TestHeartbeat(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/v1/services/register", registration("svc"))
	env.clock.Advance(30 * time.Second)

	resp := env.do(t, http.MethodPost, "/api/v1/services/svc/heartbeat", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ack := decode[HeartbeatResponse](t, resp)
	assert.Equal(t, "acknowledged", ack.Status)
	assert.Equal(t, "svc", ack.ServiceID)

	rec, _ := env.store.Get("svc")
	assert.Equal(t, *rec.LastHeartbeat, ack.Timestamp)
	assert.NotEqual(t, rec.RegisteredAt, ack.Timestamp)

	resp = env.do(t, http.MethodPost, "/api/v1/services/unknown/heartbeat", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.store.Exists("unknown"))
}

func TestSearchByTags(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/v1/services/register", registration("breast_cancer", "cancer", "classification"))
	env.do(t, http.MethodPost, "/api/v1/services/register", registration("heart", "cardiovascular", "classification"))
	env.do(t, http.MethodPost, "/api/v1/services/register", registration("alz", "neurology"))

	ids := func(path string) []string {
		resp := env.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out []string
		for _, rec := range decode[[]registry.ServiceRecord](t, resp) {
			out = append(out, rec.ServiceID)
		}
		return out
	}

	assert.Equal(t, []string{"breast_cancer", "heart"}, ids("/api/v1/services/search/by-tags?tags=classification"))
	assert.Equal(t, []string{"alz", "breast_cancer"}, ids("/api/v1/services/search/by-tags?tags=cancer,%20neurology"))
	assert.Empty(t, ids("/api/v1/services/search/by-tags?tags=Cancer"))
	assert.Len(t, ids("/api/v1/services/search/by-tags"), 3)
	assert.Len(t, ids("/api/v1/services/search/by-tags?tags="), 3)
}

func TestSelfHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/v1/services/register", registration("fresh"))
	env.clock.Advance(2 * time.Minute)
	env.do(t, http.MethodPost, "/api/v1/services/register", registration("stale-later"))
	env.do(t, http.MethodPost, "/api/v1/services/fresh/heartbeat", nil)
	env.clock.Advance(30 * time.Second)
	env.do(t, http.MethodPost, "/api/v1/services/register", registration("newest"))

	resp := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, map[string]any{
		"status":              "healthy",
		"service":             "Medical ML Service Registry",
		"registered_services": float64(3),
		"healthy_services":    float64(3),
		"version":             "1.0.0",
	}, body)

	env.clock.Advance(45 * time.Second)
	health := decode[HealthResponse](t, env.do(t, http.MethodGet, "/health", nil))
	assert.Equal(t, 3, health.RegisteredServices)
	assert.Equal(t, 1, health.HealthyServices)
}

func TestSelfHealth_DependencyDegrades(t *testing.T) {
	env := newTestEnv(t, nil, WithDependency("nats", func() health.Status {
		return health.NewUnhealthy("nats", "disconnected")
	}))

	resp := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[HealthResponse](t, resp)
	assert.Equal(t, health.StatusDegraded, body.Status)
	assert.Equal(t, map[string]string{"nats": health.StatusDegraded}, body.Dependencies)
}

func TestHealthAll_Passive(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/v1/health/all", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[map[string]registry.ServiceHealth](t, resp))

	env.do(t, http.MethodPost, "/api/v1/services/register", registration("old"))
	env.clock.Advance(61 * time.Second)
	env.do(t, http.MethodPost, "/api/v1/services/register", registration("new"))

	report := decode[map[string]registry.ServiceHealth](t, env.do(t, http.MethodGet, "/api/v1/health/all", nil))
	require.Len(t, report, 2)
	assert.Equal(t, registry.Unhealthy, report["old"].Status)
	assert.Equal(t, registry.Healthy, report["new"].Status)
	assert.Equal(t, "old Prediction API", report["old"].ServiceName)
	assert.Equal(t, "http://localhost:8000", report["old"].BaseURL)
	require.NotNil(t, report["new"].LastHeartbeat)
}

func TestHealthAll_Active(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"OK","model_loaded":true}`)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	cfg := config.Default()
	store := registry.NewStore(registry.WithLogger(quiet))
	checker := registry.NewActiveChecker(health.NewProber(time.Second), registry.WithCheckerLogger(quiet))
	srv := NewServer(store, checker, cfg, WithLogger(quiet))

	for id, url := range map[string]string{"up": up.URL, "down": down.URL} {
		reg := registration(id)
		reg["base_url"] = url
		rec, err := decodeRecord(mustJSON(t, reg))
		require.NoError(t, err)
		store.Add(rec)
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health/all", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	report := decode[map[string]registry.ServiceHealth](t, rr.Result())
	assert.Equal(t, registry.Healthy, report["up"].Status)
	assert.Equal(t, registry.Unhealthy, report["down"].Status)
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t, nil, WithBroadcaster(registry.NewBroadcaster(nil)))

	resp := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	info := decode[InfoResponse](t, resp)
	assert.Equal(t, "Medical ML Service Registry", info.Name)
	assert.Equal(t, "/api/v1/services", info.ServicesEndpoint)
	assert.Equal(t, "/health", info.HealthEndpoint)
	assert.Equal(t, "/api/v1/services/watch", info.WatchEndpoint)
	assert.Empty(t, info.MetricsEndpoint)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/nope", nil).StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodPut, "/api/v1/services/register", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	env := newTestEnv(t, nil, WithMetricsRegistry(reg))

	env.do(t, http.MethodPost, "/api/v1/services/register", registration("svc"))
	env.do(t, http.MethodGet, "/api/v1/services/svc", nil)
	env.do(t, http.MethodGet, "/api/v1/services/nope", nil)

	// observations land after the response is written
	require.Eventually(t, func() bool {
		return testutil.CollectAndCount(reg.CoreMetrics().RequestDuration) == 3
	}, time.Second, 5*time.Millisecond)

	resp := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data),
		`medreg_http_request_duration_seconds_count{code="404",method="GET",route="/api/v1/services/{service_id}"} 1`)
}

func TestMetrics_Disabled(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Metrics.Enabled = false },
		WithMetricsRegistry(metric.NewMetricsRegistry()))

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/metrics", nil).StatusCode)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
