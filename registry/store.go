package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/zainbaq/medical-ml/metric"
	"github.com/zainbaq/medical-ml/pkg/timestamp"
)

// Store is the in-memory service registry. One mutex guards the record map
// and the heartbeat map together, so no reader observes a record without its
// heartbeat. The clock is read under the lock so timestamps follow mutation
// order. Events are numbered under the lock and delivered after it is
// released; Event.Seq gives the mutation order when deliveries interleave.
//
// Liveness is derived on read from the heartbeat map; nothing is evicted.
type Store struct {
	mu         sync.Mutex
	services   map[string]ServiceRecord
	heartbeats map[string]time.Time
	seq        uint64

	clock   Clock
	sink    EventSink
	metrics *metric.Metrics
	logger  *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock sets the time source
func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithEventSink sets the receiver of store events
func WithEventSink(sink EventSink) Option {
	return func(s *Store) {
		s.sink = sink
	}
}

// WithMetrics records store activity in m
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		services:   make(map[string]ServiceRecord),
		heartbeats: make(map[string]time.Time),
		clock:      SystemClock{},
		logger:     slog.Default().With("component", "registry-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clock returns the store's time source
func (s *Store) Clock() Clock {
	return s.clock
}

// Add inserts or fully replaces the record keyed by rec.ServiceID and marks
// it alive now. Re-registration resets registered_at but never moves the
// heartbeat backwards. The stored copy is returned.
func (s *Store) Add(rec ServiceRecord) ServiceRecord {
	rec = rec.Clone()
	rec.normalize()

	s.mu.Lock()
	now := s.clock.Now()
	beat := now
	if prev, ok := s.heartbeats[rec.ServiceID]; ok && beat.Before(prev) {
		beat = prev
	}
	rec.RegisteredAt = timestamp.FormatISO(now)
	rec.LastHeartbeat = timestamp.Ptr(beat)

	_, replaced := s.services[rec.ServiceID]
	s.services[rec.ServiceID] = rec
	s.heartbeats[rec.ServiceID] = beat
	count := len(s.services)
	ev := s.newEventLocked(EventRegistered, rec.Clone(), now)
	s.mu.Unlock()

	s.logger.Info("Registered service",
		"service_id", rec.ServiceID, "service_name", rec.ServiceName,
		"version", rec.Version, "replaced", replaced)
	if s.metrics != nil {
		s.metrics.RecordRegistration(count)
	}
	s.emit(ev)

	return rec.Clone()
}

// Remove deletes the record and its heartbeat. It reports whether the
// service was registered.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	rec, ok := s.services[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.services, id)
	delete(s.heartbeats, id)
	count := len(s.services)
	ev := s.newEventLocked(EventUnregistered, rec, s.clock.Now())
	s.mu.Unlock()

	s.logger.Info("Unregistered service", "service_id", id)
	if s.metrics != nil {
		s.metrics.RecordUnregistration(count)
	}
	s.emit(ev)
	return true
}

// Get returns a copy of the record for id
func (s *Store) Get(id string) (ServiceRecord, bool) {
	s.mu.Lock()
	rec, ok := s.services[id]
	s.mu.Unlock()

	if !ok {
		return ServiceRecord{}, false
	}
	return rec.Clone(), true
}

// List returns copies of all records ordered by service id
func (s *Store) List() []ServiceRecord {
	return s.filter(func(ServiceRecord, time.Time) bool { return true })
}

// Heartbeat marks id alive now and returns the stored ISO-8601 timestamp.
// Unknown ids report false and change nothing. The stored heartbeat never
// moves backwards.
func (s *Store) Heartbeat(id string) (string, bool) {
	s.mu.Lock()
	rec, ok := s.services[id]
	if !ok {
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordHeartbeat(false)
		}
		return "", false
	}

	now := s.clock.Now()
	if prev := s.heartbeats[id]; now.Before(prev) {
		now = prev
	}
	s.heartbeats[id] = now
	rec.LastHeartbeat = timestamp.Ptr(now)
	s.services[id] = rec
	ev := s.newEventLocked(EventHeartbeat, rec.Clone(), now)
	s.mu.Unlock()

	s.logger.Debug("Heartbeat", "service_id", id)
	if s.metrics != nil {
		s.metrics.RecordHeartbeat(true)
	}
	s.emit(ev)

	return *rec.LastHeartbeat, true
}

// Healthy returns the records whose last heartbeat is strictly after
// now - timeout, ordered by service id.
func (s *Store) Healthy(timeout time.Duration) []ServiceRecord {
	cutoff := s.clock.Now().Add(-timeout)
	healthy := s.filter(func(_ ServiceRecord, hb time.Time) bool {
		return hb.After(cutoff)
	})
	if s.metrics != nil {
		s.metrics.RecordHealthy(len(healthy))
	}
	return healthy
}

// IsHealthy reports whether id is registered and has heartbeated within timeout.
func (s *Store) IsHealthy(id string, timeout time.Duration) bool {
	hb, ok := s.LastHeartbeat(id)
	return ok && hb.After(s.clock.Now().Add(-timeout))
}

// LastHeartbeat returns the last heartbeat time for id
func (s *Store) LastHeartbeat(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hb, ok := s.heartbeats[id]
	return hb, ok
}

// SearchByTags returns records carrying at least one of tags (OR, exact
// match). An empty tag list returns every record.
func (s *Store) SearchByTags(tags []string) []ServiceRecord {
	if len(tags) == 0 {
		return s.List()
	}
	return s.filter(func(rec ServiceRecord, _ time.Time) bool {
		return rec.HasAnyTag(tags)
	})
}

// Count returns the number of registered services
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.services)
}

// Exists reports whether id is registered
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.services[id]
	return ok
}

func (s *Store) filter(keep func(ServiceRecord, time.Time) bool) []ServiceRecord {
	s.mu.Lock()
	out := make([]ServiceRecord, 0, len(s.services))
	for id, rec := range s.services {
		if keep(rec, s.heartbeats[id]) {
			out = append(out, rec.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ServiceID < out[j].ServiceID })
	return out
}

// newEventLocked numbers an event; s.mu must be held.
func (s *Store) newEventLocked(t EventType, rec ServiceRecord, at time.Time) Event {
	s.seq++
	return newEvent(s.seq, t, rec, at)
}

func (s *Store) emit(ev Event) {
	if s.sink != nil {
		s.sink.Emit(ev)
	}
}
