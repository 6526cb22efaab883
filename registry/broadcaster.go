package registry

import (
	"sync"
	"sync/atomic"

	"github.com/zainbaq/medical-ml/metric"
)

// DefaultSubscriberBuffer is used when Subscribe is given a non-positive size.
const DefaultSubscriberBuffer = 64

// Broadcaster fans store events out to in-process subscribers, such as
// websocket watchers. A subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	metrics *metric.Metrics
	closed  bool
}

// Subscription is one Broadcaster consumer
type Subscription struct {
	ch      chan Event
	owner   *Broadcaster
	dropped atomic.Int64
	once    sync.Once
}

// NewBroadcaster creates a broadcaster. metrics may be nil.
func NewBroadcaster(metrics *metric.Metrics) *Broadcaster {
	return &Broadcaster{
		subs:    make(map[*Subscription]struct{}),
		metrics: metrics,
	}
}

// Subscribe registers a consumer with the given buffer size. The returned
// subscription's channel is closed by Close or by closing the broadcaster.
func (b *Broadcaster) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	sub := &Subscription{ch: make(chan Event, buffer), owner: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		sub.once.Do(func() {})
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Emit implements EventSink
func (b *Broadcaster) Emit(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
			if b.metrics != nil {
				b.metrics.RecordEventDropped("broadcast")
			}
		}
	}
}

// Len returns the number of active subscribers
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription. Later subscriptions are closed at once.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		sub.once.Do(func() { close(sub.ch) })
	}
}

// C returns the event channel
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Dropped returns how many events this subscriber missed
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unsubscribes and closes the channel. Safe to call more than once.
func (s *Subscription) Close() {
	b := s.owner
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()

	s.once.Do(func() { close(s.ch) })
}
