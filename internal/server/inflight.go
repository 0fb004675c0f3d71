package server

import (
	"context"
	"sync"

	"github.com/Veraticus/dialin/internal/common"
)

// inflightRegistry keeps at most one running analysis per client. Starting a
// new one cancels the previous one with ErrSuperseded as the cause.
type inflightRegistry struct {
	entries map[string]inflightEntry
	nextID  uint64
	mu      sync.Mutex
}

type inflightEntry struct {
	cancel context.CancelCauseFunc
	id     uint64
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{entries: make(map[string]inflightEntry)}
}

// begin registers a new request for key and returns its context. The
// returned done func must be called when the request finishes; it only
// clears the entry if no newer request replaced it.
func (r *inflightRegistry) begin(parent context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	if prev, ok := r.entries[key]; ok {
		prev.cancel(common.ErrSuperseded)
	}
	r.entries[key] = inflightEntry{cancel: cancel, id: id}
	r.mu.Unlock()

	done := func() {
		r.mu.Lock()
		if cur, ok := r.entries[key]; ok && cur.id == id {
			delete(r.entries, key)
		}
		r.mu.Unlock()
		cancel(context.Canceled)
	}
	return ctx, done
}

// cancelAll aborts every running request.
func (r *inflightRegistry) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.entries {
		e.cancel(context.Canceled)
		delete(r.entries, key)
	}
}

func (r *inflightRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
