package registry

import (
	"sync"

	utils "github.com/go-upf/upf/pkg"
)

// Subscription is one watcher's bounded view of the event stream. A slow
// consumer loses its oldest pending events, never newer ones, and never
// stalls the publisher.
type Subscription struct {
	ID string
	C  <-chan Event

	cancel func()
}

func (s *Subscription) Cancel() {
	s.cancel()
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	filter func(Event) bool
	closed bool
}

func (s *subscriber) push(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.filter != nil && !s.filter(e) {
		return
	}
	for {
		select {
		case s.ch <- e:
			return
		default:
		}
		// full: drop the oldest pending event
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

type hub struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	buffer int
}

func newHub(buffer int) *hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &hub{
		subs:   make(map[string]*subscriber),
		buffer: buffer,
	}
}

func (h *hub) subscribe(filter func(Event) bool) *Subscription {
	sub := &subscriber{
		ch:     make(chan Event, h.buffer),
		filter: filter,
	}
	id := utils.BuildRequestID()
	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()
	return &Subscription{
		ID: id,
		C:  sub.ch,
		cancel: func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			sub.close()
		},
	}
}

func (h *hub) publish(e Event) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()
	for _, sub := range subs {
		sub.push(e)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*subscriber)
	h.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
}
