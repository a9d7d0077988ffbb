package changefeed

import (
	"context"
	"sync"
)

// Hub is an in-process Feed. Publish calls every listener of the collection
// synchronously on the publishing goroutine; listeners must not block.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]func()
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]func())}
}

func (h *Hub) Subscribe(_ context.Context, collection string, onChange func()) (func(), error) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[uint64]func())
	}
	h.subs[collection][id] = onChange
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[collection], id)
			if len(h.subs[collection]) == 0 {
				delete(h.subs, collection)
			}
			h.mu.Unlock()
		})
	}, nil
}

func (h *Hub) Publish(_ context.Context, collection string) error {
	h.notify(collection)
	return nil
}

// Listeners returns the number of listeners attached to collection.
func (h *Hub) Listeners(collection string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[collection])
}

func (h *Hub) notify(collection string) {
	h.mu.RLock()
	fns := make([]func(), 0, len(h.subs[collection]))
	for _, fn := range h.subs[collection] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
