// Package event is an in-process publish/subscribe hub.
//
// The server connection is the only publisher of the wire events,
// the game and the voice coordinators only subscribe,
// so they never reference each other directly.
package event

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/chessduel/client/pkg/logger"
)

// Local topics, the wire events use their api.Tag names.
const (
	ConnectionStatus = "connection.status"
	GameSnapshot     = "game.snapshot"
	GameNotice       = "game.notice"
	PeerSnapshot     = "peer.snapshot"
)

type Handler func(data any)

type subscription struct {
	fn     Handler
	active atomic.Bool
}

type Hub struct {
	log  *logger.Logger
	mu   sync.Mutex
	subs map[string][]*subscription
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{log: log.Module("hub"), subs: make(map[string][]*subscription)}
}

// Subscribe adds a handler of the topic.
// The returned func removes it and may be called any number of times.
func (h *Hub) Subscribe(topic string, fn Handler) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	sub.active.Store(true)
	h.mu.Lock()
	h.subs[topic] = append(h.subs[topic], sub)
	h.mu.Unlock()
	return func() { h.remove(topic, sub) }
}

func (h *Hub) remove(topic string, sub *subscription) {
	if !sub.active.Swap(false) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[topic]
	for i, s := range list {
		if s == sub {
			h.subs[topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(h.subs[topic]) == 0 {
		delete(h.subs, topic)
	}
}

// Publish calls all the current handlers of the topic in the order of subscription.
// A failing handler is logged and doesn't stop the delivery to the others.
func (h *Hub) Publish(topic string, data any) {
	h.mu.Lock()
	list := make([]*subscription, len(h.subs[topic]))
	copy(list, h.subs[topic])
	h.mu.Unlock()

	for _, sub := range list {
		if !sub.active.Load() {
			continue
		}
		h.call(topic, sub.fn, data)
	}
}

func (h *Hub) call(topic string, fn Handler, data any) {
	defer func() {
		if err := recover(); err != nil {
			h.log.Error().Str("topic", topic).Msgf("subscriber failed: %v\n%s", err, debug.Stack())
		}
	}()
	fn(data)
}

// Count returns the number of handlers of the topic.
func (h *Hub) Count(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}

// On subscribes a typed handler.
// Data of another type is logged and skipped.
func On[T any](h *Hub, topic string, fn func(T)) (unsubscribe func()) {
	return h.Subscribe(topic, func(data any) {
		v, ok := data.(T)
		if !ok {
			h.log.Warn().Str("topic", topic).Msgf("unexpected data type %T", data)
			return
		}
		fn(v)
	})
}

// Group collects unsubscribe funcs of a component for teardown.
type Group []func()

func (g *Group) Add(unsubscribe ...func()) { *g = append(*g, unsubscribe...) }

// Clear removes all the subscriptions of the group, safe to call twice.
func (g *Group) Clear() {
	for _, fn := range *g {
		fn()
	}
	*g = nil
}
