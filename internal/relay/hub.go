package relay

import (
	"context"
	"sync"
)

// Hub connects relays living in the same process, for example several
// sessions of one client. A change published by one member reaches every
// other member synchronously.
type Hub struct {
	mu      sync.RWMutex
	members map[string]Receiver
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{members: make(map[string]Receiver)}
}

// Join registers r with the hub and installs the hub as one of its
// transports. The returned func removes r again.
func (h *Hub) Join(r *Relay) func() {
	h.mu.Lock()
	h.members[r.ID()] = r
	h.mu.Unlock()

	r.AddTransport(&hubTransport{hub: h})

	return func() {
		h.mu.Lock()
		delete(h.members, r.ID())
		h.mu.Unlock()
	}
}

// Len returns the number of members.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

func (h *Hub) broadcast(c Change) {
	h.mu.RLock()
	targets := make([]Receiver, 0, len(h.members))
	for id, m := range h.members {
		if id != c.Origin {
			targets = append(targets, m)
		}
	}
	h.mu.RUnlock()

	for _, m := range targets {
		m.Receive(c)
	}
}

type hubTransport struct {
	hub *Hub
}

func (t *hubTransport) Name() string { return "hub" }

func (t *hubTransport) Publish(_ context.Context, c Change) error {
	t.hub.broadcast(c)
	return nil
}
