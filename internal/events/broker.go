// Package events fans run progress out to stream subscribers.
package events

import (
	"sync"
)

// Event types published for a run.
const (
	TypeGeneration = "run.generation"
	TypeCompleted  = "run.completed"
	TypeFailed     = "run.failed"
	TypeCancelled  = "run.cancelled"
)

type Event struct {
	Type  string         `json:"type"`
	RunID string         `json:"runId"`
	Data  map[string]any `json:"data,omitempty"`
}

// Terminal reports whether no further events follow for the run.
func (e Event) Terminal() bool {
	return e.Type == TypeCompleted || e.Type == TypeFailed || e.Type == TypeCancelled
}

// EventBroker delivers events per run ID. Publish never blocks; slow subscribers drop
// generation events, and a terminal event evicts the oldest buffered one instead.
type EventBroker interface {
	Subscribe(runID string) chan Event
	Unsubscribe(runID string, ch chan Event)
	Publish(runID string, evt Event)
}

// Broker is the in-process EventBroker.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // runID -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan Event {
	ch := make(chan Event, 32)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan Event]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[runID]
	if m == nil {
		return
	}
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, runID)
	}
	close(ch)
}

func (b *Broker) Publish(runID string, evt Event) {
	b.mu.Lock()
	for ch := range b.subs[runID] {
		offer(ch, evt)
	}
	b.mu.Unlock()
}

// offer sends evt without blocking. The caller must be the only sender on ch.
func offer(ch chan Event, evt Event) {
	for {
		select {
		case ch <- evt:
			return
		default:
		}
		if !evt.Terminal() {
			return
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribers returns the number of open subscriptions for runID.
func (b *Broker) Subscribers(runID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[runID])
}
