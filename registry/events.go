package registry

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a store mutation
type EventType string

// Event types
const (
	EventRegistered   EventType = "registered"
	EventUnregistered EventType = "unregistered"
	EventHeartbeat    EventType = "heartbeat"
)

// Event describes one successful store mutation. Record is the stored copy
// after the mutation, or the removed record for EventUnregistered. Seq
// increases by one per mutation of the emitting store.
type Event struct {
	ID        string         `json:"id"`
	Seq       uint64         `json:"seq"`
	Type      EventType      `json:"type"`
	ServiceID string         `json:"service_id"`
	Record    *ServiceRecord `json:"record,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func newEvent(seq uint64, t EventType, rec ServiceRecord, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Seq:       seq,
		Type:      t,
		ServiceID: rec.ServiceID,
		Record:    &rec,
		Timestamp: at,
	}
}

// EventSink receives store events. Emit is called outside the store lock
// and must not block.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(Event)

// Emit calls f(ev)
func (f EventSinkFunc) Emit(ev Event) { f(ev) }

// MultiSink delivers each event to every sink in order
type MultiSink []EventSink

// Emit forwards ev to all non-nil sinks
func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}
