// Package events delivers PaymentRecorded notifications to observers outside
// the ledger. The Broker is the ledger's Notifier: it stamps every event with
// an ID, remembers a bounded window of recent events and fans them out to
// subscribers (websocket clients) in the order the ledger emitted them.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"payrecorder.mini/prm/internal/types"
)

const defaultRecent = 100

// Event is one delivered notification.
type Event struct {
	ID        string                `json:"id"`
	Published time.Time             `json:"published"`
	Payment   types.PaymentRecorded `json:"payment"`
}

// Broker fans out ledger notifications.
type Broker struct {
	mu        sync.RWMutex
	clients   map[chan Event]struct{}
	recent    []Event
	maxRecent int
}

// NewBroker creates a broker that retains up to maxRecent events.
func NewBroker(maxRecent int) *Broker {
	if maxRecent <= 0 {
		maxRecent = defaultRecent
	}
	return &Broker{
		clients:   make(map[chan Event]struct{}),
		recent:    make([]Event, 0, maxRecent),
		maxRecent: maxRecent,
	}
}

// Notify publishes ev. It never blocks on slow subscribers.
func (b *Broker) Notify(ev types.PaymentRecorded) {
	e := Event{
		ID:        uuid.NewString(),
		Published: time.Now().UTC(),
		Payment:   ev,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.recent = append(b.recent, e)
	if len(b.recent) > b.maxRecent {
		b.recent = b.recent[len(b.recent)-b.maxRecent:]
	}

	for client := range b.clients {
		select {
		case client <- e:
		default:
			// Client is slow/blocked, skip
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release it; it closes the channel.
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of registered subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Recent returns up to n of the latest events, oldest first.
func (b *Broker) Recent(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > len(b.recent) {
		n = len(b.recent)
	}
	out := make([]Event, n)
	copy(out, b.recent[len(b.recent)-n:])
	return out
}
