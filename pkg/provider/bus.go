package provider

import (
	"sync"
	"time"

	"github.com/alim08/coin_ticker/pkg/metrics"
	"github.com/alim08/coin_ticker/pkg/models"
)

type EventType int

const (
	// EventFetchClaimed announces that a fetch is in flight.
	EventFetchClaimed EventType = iota + 1
	// EventDataAvailable carries a new snapshot set.
	EventDataAvailable
	// EventFetchFailed ends the claim made at ClaimedAt without data.
	EventFetchFailed
)

func (t EventType) String() string {
	switch t {
	case EventFetchClaimed:
		return "fetch-claimed"
	case EventDataAvailable:
		return "data-available"
	case EventFetchFailed:
		return "fetch-failed"
	default:
		return "unknown"
	}
}

// Event is delivered to every subscriber of a Bus.
type Event struct {
	Type      EventType
	ClaimedAt time.Time
	Snapshots *models.SnapshotSet
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full loses its oldest pending event.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber. The returned cancel func unsubscribes and
// closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers e to all current subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	metrics.BroadcastCounter.WithLabelValues(e.Type.String()).Inc()
	for _, ch := range b.subs {
		select {
		case ch <- e:
			continue
		default:
		}
		// Full: drop the oldest pending event and retry once
		select {
		case <-ch:
			metrics.BroadcastDropped.Inc()
		default:
		}
		select {
		case ch <- e:
		default:
			metrics.BroadcastDropped.Inc()
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel; later Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
