// Package livestats keeps dashboard statistics consistent with the live
// products, tasks and users collections.
//
// A Session observes the three collections through a changefeed.Subscriber
// and, on any change, rescans all of them and publishes a new Snapshot.
// Recomputes are never incremental. At most one recompute runs per session;
// changes that arrive meanwhile coalesce into a single follow-up pass.
package livestats

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/changefeed"
	"github.com/dalemusser/producthub/internal/app/system/docstore"
	"github.com/dalemusser/producthub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Defaults applied by New when Options leaves a field zero.
const (
	DefaultTimeout        = 10 * time.Second
	DefaultRecentProducts = 3
)

// Options tune an Engine.
type Options struct {
	// Timeout bounds one recompute (all three scans).
	Timeout time.Duration
	// RecentProducts is the length of the recent-products list.
	RecentProducts int
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Engine starts sessions against one store.
type Engine struct {
	scanner docstore.Scanner
	feed    changefeed.Subscriber
	log     *zap.Logger

	timeout        time.Duration
	recentProducts int
	now            func() time.Time
}

// New returns an Engine reading through scanner and observing feed.
func New(scanner docstore.Scanner, feed changefeed.Subscriber, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		scanner:        scanner,
		feed:           feed,
		log:            logger,
		timeout:        opts.Timeout,
		recentProducts: opts.RecentProducts,
		now:            opts.Now,
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.recentProducts <= 0 {
		e.recentProducts = DefaultRecentProducts
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Start subscribes to the observed collections, runs one recompute and
// returns the session. A failed initial recompute does not fail Start; it is
// reported by Session.Err. A subscribe failure detaches everything already
// attached and is returned.
func (e *Engine) Start(ctx context.Context, actor authz.Actor) (*Session, error) {
	s := newSession(e, actor)

	for _, coll := range []string{CollProducts, CollTasks, CollUsers} {
		cancel, err := e.feed.Subscribe(ctx, coll, s.invalidate)
		if err != nil {
			s.abort()
			return nil, fmt.Errorf("subscribe %s: %w", coll, err)
		}
		s.attach(cancel)
	}
	sessionsActive.Inc()

	s.recompute()
	if s.next() {
		go s.loop()
	}
	return s, nil
}

// Compute runs one recompute for actor without observing the store.
func (e *Engine) Compute(ctx context.Context, actor authz.Actor) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.compute(ctx, actor)
}

func (e *Engine) compute(ctx context.Context, actor authz.Actor) (Snapshot, error) {
	now := e.now()
	plan := PlanTaskQuery(actor)

	var d Data
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Products, err = docstore.ScanAs[models.Product](gctx, e.scanner, CollProducts,
			docstore.Query{SortField: "created_at", SortDesc: true})
		return err
	})
	g.Go(func() error {
		var err error
		d.Tasks, err = docstore.ScanAs[models.Task](gctx, e.scanner, CollTasks, plan.Query())
		return err
	})
	g.Go(func() error {
		var err error
		d.Users, err = docstore.ScanAs[models.User](gctx, e.scanner, CollUsers, docstore.Query{})
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	return Aggregate(actor, d, now, e.recentProducts), nil
}
