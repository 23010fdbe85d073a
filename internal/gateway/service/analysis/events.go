package analysis

import (
	"strings"
	"sync"
	"time"

	"codereview/internal/gateway/repository/document"
)

type EventType string

const (
	EventStatus      EventType = "status"
	EventLLMRequest  EventType = "llm_request"
	EventLLMResponse EventType = "llm_response"
	EventCompleted   EventType = "completed"
	EventFailed      EventType = "failed"
	EventStale       EventType = "stale"
)

// Terminal reports whether no further events follow for this run.
func (t EventType) Terminal() bool {
	return t == EventCompleted || t == EventFailed || t == EventStale
}

// Event is one step of an analysis run for a document.
type Event struct {
	DocumentID string          `json:"documentId"`
	Type       EventType       `json:"type"`
	Status     document.Status `json:"status,omitempty"`
	Message    string          `json:"message,omitempty"`
	Revision   int64           `json:"revision,omitempty"`
	At         time.Time       `json:"at"`
}

// EventBroker fans analysis events out to per-document subscribers.
// Publishing never blocks; a subscriber whose buffer is full misses events.
type EventBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	closed bool
}

func NewEventBroker() *EventBroker {
	return &EventBroker{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a channel for docID. The returned cancel func
// unregisters and closes it; it is safe to call more than once.
func (b *EventBroker) Subscribe(docID string, size int) (<-chan Event, func()) {
	if size <= 0 {
		size = 1
	}
	docID = strings.TrimSpace(docID)
	ch := make(chan Event, size)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	set, ok := b.subs[docID]
	if !ok {
		set = make(map[chan Event]struct{})
		b.subs[docID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.subs[docID]; ok {
				if _, live := set[ch]; live {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(b.subs, docID)
				}
			}
		})
	}
}

func (b *EventBroker) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[strings.TrimSpace(ev.DocumentID)] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions for docID.
func (b *EventBroker) Subscribers(docID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[strings.TrimSpace(docID)])
}

// Close ends every subscription; later subscriptions are closed at once.
func (b *EventBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, id)
	}
}
