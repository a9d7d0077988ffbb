package livestats

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/producthub/internal/app/system/authz"
	"go.uber.org/zap"
)

// Session is one actor's live view of the dashboard statistics.
type Session struct {
	e     *Engine
	actor authz.Actor

	snap atomic.Pointer[Snapshot]

	// dispatch is held while listeners run so Stop can wait them out.
	dispatch sync.Mutex

	mu        sync.Mutex
	running   bool
	pending   bool
	stopped   bool
	gen       uint64
	seq       uint64
	published uint64
	err       error
	idle      chan struct{}
	done      chan struct{}
	unsubs    []func()
	nextID    uint64
	listeners map[uint64]listener
}

type listener struct {
	snap func(Snapshot)
	fail func(error)
}

func newSession(e *Engine, actor authz.Actor) *Session {
	return &Session{
		e:         e,
		actor:     actor,
		running:   true,
		idle:      make(chan struct{}),
		done:      make(chan struct{}),
		listeners: make(map[uint64]listener),
	}
}

// Actor returns the actor the session was started for.
func (s *Session) Actor() authz.Actor { return s.actor }

// Current returns the last published snapshot; ok is false until the first
// recompute succeeds.
func (s *Session) Current() (Snapshot, bool) {
	p := s.snap.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

// Err returns the failure of the most recent recompute, or nil once a later
// recompute has succeeded.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session has been stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// OnSnapshotChanged registers fn to receive every snapshot published from
// now on. fn runs on the recompute goroutine, in publication order, and must
// not call Wait or Stop. Once Stop has returned fn is not called again.
func (s *Session) OnSnapshotChanged(fn func(Snapshot)) (cancel func()) {
	return s.listen(listener{snap: fn})
}

// OnError registers fn to receive the error of every failed recompute from
// now on. The same rules as OnSnapshotChanged apply.
func (s *Session) OnError(fn func(error)) (cancel func()) {
	return s.listen(listener{fail: fn})
}

func (s *Session) listen(l listener) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Refresh schedules a recompute as if a change had been observed.
func (s *Session) Refresh() { s.invalidate() }

// Wait blocks until no recompute is in flight or scheduled.
func (s *Session) Wait() {
	for {
		s.mu.Lock()
		running, idle := s.running, s.idle
		s.mu.Unlock()
		if !running {
			return
		}
		<-idle
	}
}

// Stop detaches every collection listener and waits for any snapshot or
// error delivery in progress before returning. A recompute already in
// flight finishes but its result is dropped. Stop is idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.gen++
	close(s.done)
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, cancel := range unsubs {
		cancel()
	}
	// Wait out a notify that passed its liveness check before stopped was set.
	s.dispatch.Lock()
	s.dispatch.Unlock()
	sessionsActive.Dec()
}

func (s *Session) attach(cancel func()) {
	s.mu.Lock()
	s.unsubs = append(s.unsubs, cancel)
	s.mu.Unlock()
}

// abort tears down a session whose Start failed.
func (s *Session) abort() {
	s.mu.Lock()
	s.stopped = true
	s.gen++
	unsubs := s.unsubs
	s.unsubs = nil
	s.running = false
	close(s.idle)
	close(s.done)
	s.mu.Unlock()

	for _, cancel := range unsubs {
		cancel()
	}
}

// invalidate is the change-feed callback. It never blocks.
func (s *Session) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.running {
		s.pending = true
		return
	}
	s.running = true
	s.idle = make(chan struct{})
	go s.loop()
}

func (s *Session) loop() {
	for {
		s.recompute()
		if !s.next() {
			return
		}
	}
}

// next consumes the pending flag. When nothing is pending it marks the
// session idle and returns false.
func (s *Session) next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending && !s.stopped {
		s.pending = false
		return true
	}
	s.pending = false
	s.running = false
	close(s.idle)
	return false
}

func (s *Session) recompute() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq, gen := s.seq, s.gen
	s.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), s.e.timeout)
	snap, err := s.e.compute(ctx, s.actor)
	cancel()
	took := time.Since(start)
	recomputeDuration.Observe(took.Seconds())

	s.mu.Lock()
	if s.stopped || gen != s.gen || seq <= s.published {
		s.mu.Unlock()
		recomputesTotal.WithLabelValues(outcomeDiscarded).Inc()
		return
	}
	if err != nil {
		s.err = err
		s.mu.Unlock()
		recomputesTotal.WithLabelValues(outcomeFailed).Inc()
		s.e.log.Warn("dashboard recompute failed; keeping previous snapshot",
			zap.String("scope", ScopeKey(s.actor)),
			zap.Uint64("seq", seq),
			zap.Duration("took", took),
			zap.Error(err))
		s.notify(gen, func(l listener) {
			if l.fail != nil {
				l.fail(err)
			}
		})
		return
	}
	snap.Sequence = seq
	s.published = seq
	s.err = nil
	s.snap.Store(&snap)
	s.mu.Unlock()

	recomputesTotal.WithLabelValues(outcomePublished).Inc()
	s.notify(gen, func(l listener) {
		if l.snap != nil {
			l.snap(snap)
		}
	})
}

// notify calls each registered listener in turn. Every call is preceded by
// a check that the session is still at gen and the listener is still
// registered, so nothing is delivered once Stop has returned.
func (s *Session) notify(gen uint64, call func(listener)) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	slices.Sort(ids)

	for _, id := range ids {
		s.mu.Lock()
		l, ok := s.listeners[id]
		live := !s.stopped && s.gen == gen
		s.mu.Unlock()
		if !live {
			return
		}
		if ok {
			call(l)
		}
	}
}
