// Package dispatch implements message dispatch to a set of clients via
// a client-map + busy-counter pattern: a mutex guards the client map, a
// busy counter tracks in-flight iteration, and removals requested
// mid-dispatch are deferred until the busy counter returns to zero.
// This lets a client's own handler call back into Remove without
// freeing its own entry out from under the iteration that is still
// calling it.
package dispatch

import "sync"

// Handler is invoked once per dispatched message, per registered
// client. It must not block for long; callers that need buffering
// (e.g. per-connection socket writes) should hand off to their own
// queue instead of doing I/O directly here.
type Handler func(id uint64, msg any)

// Group is a set of clients identified by an opaque id, with
// serialized fan-out dispatch.
type Group struct {
	mu      sync.Mutex
	clients map[uint64]Handler
	busy    int
	pending map[uint64]bool // ids marked for removal during dispatch
	nextID  uint64
}

// NewGroup builds an empty client group.
func NewGroup() *Group {
	return &Group{
		clients: make(map[uint64]Handler),
		pending: make(map[uint64]bool),
	}
}

// Add registers a new client handler and returns its id.
func (g *Group) Add(h Handler) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := g.nextID
	g.clients[id] = h
	return id
}

// Remove unregisters a client. If called while Dispatch is iterating
// (including from inside a handler invoked by that same Dispatch), the
// removal is deferred until the busy counter drops to zero.
func (g *Group) Remove(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy > 0 {
		g.pending[id] = true
		return
	}
	delete(g.clients, id)
}

// Dispatch calls every currently registered client's handler with msg,
// in an unspecified but stable-for-this-call order. The client map is
// safe to mutate (via Add/Remove, including from within a handler)
// during this call.
func (g *Group) Dispatch(msg any) {
	g.mu.Lock()
	g.busy++
	ids := make([]uint64, 0, len(g.clients))
	handlers := make([]Handler, 0, len(g.clients))
	for id, h := range g.clients {
		ids = append(ids, id)
		handlers = append(handlers, h)
	}
	g.mu.Unlock()

	for i, id := range ids {
		handlers[i](id, msg)
	}

	g.mu.Lock()
	g.busy--
	if g.busy == 0 && len(g.pending) > 0 {
		for id := range g.pending {
			delete(g.clients, id)
		}
		g.pending = make(map[uint64]bool)
	}
	g.mu.Unlock()
}

// Len reports the number of currently registered clients (pending
// removals still count until the busy counter reaches zero).
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}
