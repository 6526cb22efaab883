package registry

import (
	"encoding/json"
	"sync"
	"time"
)

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local)

func sampleRecord(id string, tags ...string) ServiceRecord {
	if tags == nil {
		tags = []string{}
	}
	return ServiceRecord{
		ServiceID:    id,
		ServiceName:  id + " predictor",
		Version:      "1.0.0",
		Description:  "test service",
		BaseURL:      "http://" + id + ":8000",
		Port:         8000,
		Endpoints:    map[string]string{"predict": "/predict", "health": "/health"},
		InputSchema:  json.RawMessage(`{"type":"object"}`),
		OutputSchema: json.RawMessage(`{"type":"object","properties":{"prediction":{"type":"integer"}}}`),
		Tags:         tags,
		Capabilities: json.RawMessage(`{"batch":true}`),
	}
}

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Emit(ev Event) { r.events = append(r.events, ev) }

func (r *recordingSink) types() []EventType {
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// gateClock reads a fixed time, except that one armed call blocks until
// released and then returns the armed time.
type gateClock struct {
	mu      sync.Mutex
	now     time.Time
	armed   *time.Time
	entered chan struct{}
	release chan struct{}
}

func newGateClock(t time.Time) *gateClock {
	return &gateClock{now: t}
}

// arm makes the next Now call block and return at
func (c *gateClock) arm(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = &at
	c.entered = make(chan struct{})
	c.release = make(chan struct{})
}

func (c *gateClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *gateClock) Now() time.Time {
	c.mu.Lock()
	if c.armed != nil {
		at, entered, release := *c.armed, c.entered, c.release
		c.armed = nil
		c.mu.Unlock()
		close(entered)
		<-release
		return at
	}
	defer c.mu.Unlock()
	return c.now
}
