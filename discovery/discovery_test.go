package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zainbaq/medical-ml/metric"
	"github.com/zainbaq/medical-ml/natsclient"
	"github.com/zainbaq/medical-ml/registry"
)

var quiet = slog.New(slog.DiscardHandler)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	notify   chan struct{}
	block    chan struct{}
	err      error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{notify: make(chan struct{}, 64)}
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.messages = append(f.messages, published{subject, data})
	f.mu.Unlock()
	f.notify <- struct{}{}
	return f.err
}

func (f *fakePublisher) wait(t *testing.T, n int) []published {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.notify:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %d published messages, got %d", n, i)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.messages...)
}

type fakeSubscriber struct {
	handlers map[string]natsclient.Handler
	queues   map[string]string
	err      error
}

func (f *fakeSubscriber) QueueSubscribe(_ context.Context, subject, queue string, handler natsclient.Handler) error {
	if f.err != nil {
		return f.err
	}
	if f.handlers == nil {
		f.handlers = map[string]natsclient.Handler{}
		f.queues = map[string]string{}
	}
	f.handlers[subject] = handler
	f.queues[subject] = queue
	return nil
}

func record(id string, tags ...string) registry.ServiceRecord {
	return registry.ServiceRecord{
		ServiceID:    id,
		ServiceName:  id + " predictor",
		Version:      "1.0.0",
		BaseURL:      "http://" + id + ":8000",
		Port:         8000,
		Endpoints:    map[string]string{"predict": "/predict"},
		InputSchema:  json.RawMessage(`{"type":"object"}`),
		OutputSchema: json.RawMessage(`{"type":"object"}`),
		Tags:         tags,
	}
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "registry.services.registered", EventSubject("", registry.EventRegistered))
	assert.Equal(t, "medreg.services.heartbeat", EventSubject("medreg", registry.EventHeartbeat))
	assert.Equal(t, "registry.services.list", ListSubject("registry"))
	assert.Equal(t, "registry.services.get", GetSubject(""))
}

func TestPublisher_PublishesStoreEvents(t *testing.T) {
	conn := newFakePublisher()
	pub := NewPublisher(conn, "registry", WithPublisherLogger(quiet))
	require.NoError(t, pub.Start(context.Background()))
	defer pub.Stop(time.Second)

	store := registry.NewStore(registry.WithEventSink(pub), registry.WithLogger(quiet))
	store.Add(record("breast_cancer", "oncology"))

	msgs := conn.wait(t, 1)
	require.Len(t, msgs, 1)
	assert.Equal(t, "registry.services.registered", msgs[0].subject)

	var ev registry.Event
	require.NoError(t, json.Unmarshal(msgs[0].data, &ev))
	assert.Equal(t, registry.EventRegistered, ev.Type)
	assert.Equal(t, "breast_cancer", ev.ServiceID)
	require.NotNil(t, ev.Record)
	assert.Equal(t, []string{"oncology"}, ev.Record.Tags)

	store.Heartbeat("breast_cancer")
	store.Remove("breast_cancer")

	msgs = conn.wait(t, 2)
	subjects := []string{msgs[1].subject, msgs[2].subject}
	assert.ElementsMatch(t, []string{"registry.services.heartbeat", "registry.services.unregistered"}, subjects)
}

func TestPublisher_DropsWhenNotRunning(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	conn := newFakePublisher()
	pub := NewPublisher(conn, "registry", WithPublisherMetrics(reg), WithPublisherLogger(quiet))

	pub.Emit(registry.Event{Type: registry.EventRegistered, ServiceID: "a"})

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.CoreMetrics().EventsDropped.WithLabelValues("nats")))
	assert.Empty(t, conn.messages)
}

func TestPublisher_DropsWhenQueueFull(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	conn := newFakePublisher()
	conn.block = make(chan struct{})

	pub := NewPublisher(conn, "registry",
		WithWorkers(1, 1),
		WithPublisherMetrics(reg),
		WithPublisherLogger(quiet),
	)
	require.NoError(t, pub.Start(context.Background()))

	// first event occupies the worker, second fills the queue
	pub.Emit(registry.Event{Type: registry.EventHeartbeat, ServiceID: "a"})
	require.Eventually(t, func() bool { return pub.Stats().QueueDepth == 0 }, time.Second, 5*time.Millisecond)
	pub.Emit(registry.Event{Type: registry.EventHeartbeat, ServiceID: "a"})
	pub.Emit(registry.Event{Type: registry.EventHeartbeat, ServiceID: "a"})

	assert.Equal(t, int64(1), pub.Stats().Dropped)
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.CoreMetrics().EventsDropped.WithLabelValues("nats")))

	close(conn.block)
	conn.wait(t, 2)
	require.NoError(t, pub.Stop(time.Second))
}

func TestPublisher_PublishFailureCounted(t *testing.T) {
	conn := newFakePublisher()
	conn.err = fmt.Errorf("nats: connection closed")

	pub := NewPublisher(conn, "registry", WithPublisherLogger(quiet))
	require.NoError(t, pub.Start(context.Background()))

	pub.Emit(registry.Event{Type: registry.EventRegistered, ServiceID: "a"})
	conn.wait(t, 1)

	require.NoError(t, pub.Stop(time.Second))
	assert.Equal(t, int64(1), pub.Stats().Failed)
}

func TestResponder_Start(t *testing.T) {
	store := registry.NewStore(registry.WithLogger(quiet))
	sub := &fakeSubscriber{}

	require.NoError(t, NewResponder(store, sub, "registry", quiet).Start(context.Background()))
	assert.Contains(t, sub.handlers, "registry.services.list")
	assert.Contains(t, sub.handlers, "registry.services.get")
	assert.Equal(t, QueueGroup, sub.queues["registry.services.get"])

	failing := &fakeSubscriber{err: natsclient.ErrNotConnected}
	assert.ErrorIs(t, NewResponder(store, failing, "registry", quiet).Start(context.Background()), natsclient.ErrNotConnected)
}

func TestResponder_HandleList(t *testing.T) {
	store := registry.NewStore(registry.WithLogger(quiet))
	r := NewResponder(store, &fakeSubscriber{}, "registry", quiet)

	data, err := r.HandleList(context.Background(), ListSubject("registry"), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	store.Add(record("b"))
	store.Add(record("a"))

	data, err = r.HandleList(context.Background(), ListSubject("registry"), nil)
	require.NoError(t, err)

	var got []registry.ServiceRecord
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ServiceID)
	assert.Equal(t, "b", got[1].ServiceID)
}

func TestResponder_HandleGet(t *testing.T) {
	store := registry.NewStore(registry.WithLogger(quiet))
	store.Add(record("heart_disease", "cardiology"))
	r := NewResponder(store, &fakeSubscriber{}, "registry", quiet)

	tests := []struct {
		name    string
		request string
		wantID  string
		detail  string
	}{
		{"bare id", "heart_disease", "heart_disease", ""},
		{"json request", `{"service_id":"heart_disease"}`, "heart_disease", ""},
		{"unknown", "nope", "", "Service 'nope' not found"},
		{"empty", "  ", "", "read service_id failed"},
		{"json without id", `{}`, "", "read service_id failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := r.HandleGet(context.Background(), GetSubject("registry"), []byte(tt.request))
			require.NoError(t, err)

			var reply map[string]any
			require.NoError(t, json.Unmarshal(data, &reply))
			if tt.wantID != "" {
				assert.Equal(t, tt.wantID, reply["service_id"])
				return
			}
			assert.Contains(t, reply["detail"], tt.detail)
		})
	}
}
