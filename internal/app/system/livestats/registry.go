package livestats

import (
	"context"
	"sync"

	"github.com/dalemusser/producthub/internal/app/system/authz"
)

// Registry shares one Session per scope key between concurrent viewers.
// The last viewer to release a session stops it.
type Registry struct {
	e *Engine

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	s     *Session
	err   error
	refs  int
	ready chan struct{}
}

// NewRegistry returns an empty Registry starting sessions on e.
func NewRegistry(e *Engine) *Registry {
	return &Registry{e: e, entries: make(map[string]*entry)}
}

// Acquire returns the live session for actor's scope, starting one if
// needed. release must be called exactly once when the caller is done.
func (r *Registry) Acquire(ctx context.Context, actor authz.Actor) (*Session, func(), error) {
	key := ScopeKey(actor)

	r.mu.Lock()
	en, ok := r.entries[key]
	if ok {
		en.refs++
		r.mu.Unlock()
		<-en.ready
		if en.err != nil {
			return nil, nil, en.err
		}
		return en.s, r.releaser(key, en), nil
	}
	en = &entry{refs: 1, ready: make(chan struct{})}
	r.entries[key] = en
	r.mu.Unlock()

	s, err := r.e.Start(ctx, actor)

	r.mu.Lock()
	if err != nil {
		en.err = err
		delete(r.entries, key)
	} else {
		en.s = s
	}
	close(en.ready)
	r.mu.Unlock()

	if err != nil {
		return nil, nil, err
	}
	return s, r.releaser(key, en), nil
}

func (r *Registry) releaser(key string, en *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			en.refs--
			last := en.refs == 0
			if last && r.entries[key] == en {
				delete(r.entries, key)
			}
			r.mu.Unlock()
			if last {
				en.s.Stop()
			}
		})
	}
}

// Snapshot returns the current snapshot for actor, served from a live
// session when one is healthy and computed on demand otherwise.
func (r *Registry) Snapshot(ctx context.Context, actor authz.Actor) (Snapshot, error) {
	r.mu.Lock()
	en, ok := r.entries[ScopeKey(actor)]
	r.mu.Unlock()

	if ok {
		select {
		case <-en.ready:
			if en.err == nil {
				if snap, loaded := en.s.Current(); loaded && en.s.Err() == nil {
					return snap, nil
				}
			}
		default:
		}
	}
	return r.e.Compute(ctx, actor)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops every live session, which closes each session's Done channel
// so connected viewers can hang up. Outstanding release funcs become no-ops
// apart from reference bookkeeping.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, en := range entries {
		<-en.ready
		if en.s != nil {
			en.s.Stop()
		}
	}
}
