package events

import (
	"sync"
)

// Topics carried by the broker.
const (
	TopicWaves = "waves"
	TopicTasks = "tasks"
)

// Event types.
const (
	WaveProgressUpdated = "wave.progress.updated"
	TaskCompleted       = "task.completed"
	WorkOrderUpdated    = "work_order.updated"
	AssetsImported      = "assets.imported"
)

type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Publisher is the send side of a broker.
type Publisher interface {
	Publish(topic string, evt Event)
}

type EventBroker interface {
	Publisher
	Subscribe(topic string) chan Event
	Unsubscribe(topic string, ch chan Event)
}

// Broker is an in-process fan-out. Slow subscribers drop events.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan Event]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

func (b *Broker) Publish(topic string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(string, Event) {}
