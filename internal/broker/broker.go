// Package broker is an in-process pub/sub used to push live game updates to
// SSE and WebSocket subscribers.
package broker

import (
	"encoding/json"
	"sync"
)

// Event is the payload published to topic subscribers.
type Event struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
}

type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func New() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for topic.
func (b *Broker) Subscribe(topic string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan []byte]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[topic], ch)
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
	b.mu.Unlock()
}

// Publish fans ev out to every subscriber of topic. Slow subscribers miss
// events rather than block the publisher.
func (b *Broker) Publish(topic string, ev Event) {
	ev.Topic = topic
	data, _ := json.Marshal(ev)
	b.mu.RLock()
	for ch := range b.subs[topic] {
		select {
		case ch <- data:
		default:
		}
	}
	b.mu.RUnlock()
}

// Subscribers reports how many channels are listening on topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
