package livestats_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/docstore"
	"github.com/dalemusser/producthub/internal/app/system/livestats"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/producthub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

var errStoreDown = errors.New("store unreachable")

func newEngine(store *testutil.MemStore) *livestats.Engine {
	return livestats.New(store, store, zap.NewNop(), livestats.Options{
		Now: func() time.Time { return refTime },
	})
}

func startSession(t *testing.T, e *livestats.Engine, actor authz.Actor) *livestats.Session {
	t.Helper()
	s, err := e.Start(context.Background(), actor)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s
}

// scanStarted returns a channel that receives once per scan of collection.
func scanStarted(store *testutil.MemStore, collection string) <-chan struct{} {
	ch := make(chan struct{}, 64)
	store.BeforeScan(func(c string) {
		if c == collection {
			ch <- struct{}{}
		}
	})
	return ch
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for scan to start")
	}
}

func TestStart_EmptyStore(t *testing.T) {
	store := testutil.NewMemStore()
	s := startSession(t, newEngine(store), newActor(models.RoleAdmin))

	snap, ok := s.Current()
	require.True(t, ok, "snapshot should be loaded after Start")
	assert.NoError(t, s.Err())
	assert.Equal(t, 0, snap.TotalProducts)
	assert.Equal(t, 0, snap.ActiveProjects)
	assert.Equal(t, 0, snap.PendingTasks)
	assert.Equal(t, 0, snap.TeamMembers)
	assert.Empty(t, snap.RecentProducts)
	assert.Empty(t, snap.RecentTasks)
	assert.Equal(t, uint64(1), snap.Sequence)

	for _, coll := range []string{livestats.CollProducts, livestats.CollTasks, livestats.CollUsers} {
		assert.Equal(t, 1, store.Listeners(coll), "collection %s", coll)
	}
}

func TestStart_InitialFailureIsNotFatal(t *testing.T) {
	store := testutil.NewMemStore()
	store.FailScans(livestats.CollUsers, errStoreDown)

	s := startSession(t, newEngine(store), newActor(models.RoleAdmin))

	_, ok := s.Current()
	assert.False(t, ok, "no snapshot should be published")
	assert.ErrorIs(t, s.Err(), errStoreDown)

	store.FailScans(livestats.CollUsers, nil)
	s.Refresh()
	s.Wait()

	_, ok = s.Current()
	assert.True(t, ok)
	assert.NoError(t, s.Err())
}

func TestStart_SubscribeFailureDetachesEverything(t *testing.T) {
	store := testutil.NewMemStore()
	store.FailSubscribe(livestats.CollUsers, errStoreDown)

	s, err := newEngine(store).Start(context.Background(), newActor(models.RoleAdmin))
	require.ErrorIs(t, err, errStoreDown)
	assert.Nil(t, s)

	assert.Equal(t, 0, store.Listeners(livestats.CollProducts))
	assert.Equal(t, 0, store.Listeners(livestats.CollTasks))
	assert.Equal(t, 0, store.ScanCount(livestats.CollProducts), "no recompute after failed subscribe")
}

func TestChangeNotification_Recomputes(t *testing.T) {
	store := testutil.NewMemStore()
	s := startSession(t, newEngine(store), newActor(models.RoleAdmin))

	ctx := context.Background()
	store.Put(ctx, livestats.CollProducts, testutil.NewProduct("Widget", models.ProductDesign, refTime))
	s.Wait()

	snap, _ := s.Current()
	assert.Equal(t, 1, snap.TotalProducts)
	assert.Equal(t, 1, snap.ActiveProjects)
	require.Len(t, snap.RecentProducts, 1)
	assert.Equal(t, "Widget", snap.RecentProducts[0].Name)
	assert.Equal(t, uint64(2), snap.Sequence)
}

func TestScanFailure_RetainsPreviousSnapshot(t *testing.T) {
	store := testutil.NewMemStore()
	ctx := context.Background()
	store.Insert(livestats.CollProducts, testutil.NewProduct("A", models.ProductIdeation, refTime))

	s := startSession(t, newEngine(store), newActor(models.RoleAdmin))
	before, ok := s.Current()
	require.True(t, ok)

	var published []livestats.Snapshot
	var mu sync.Mutex
	cancel := s.OnSnapshotChanged(func(snap livestats.Snapshot) {
		mu.Lock()
		published = append(published, snap)
		mu.Unlock()
	})
	defer cancel()

	// A products change recomputes while the tasks scan is failing.
	store.FailScans(livestats.CollTasks, errStoreDown)
	store.Put(ctx, livestats.CollProducts, testutil.NewProduct("B", models.ProductDesign, refTime))
	s.Wait()

	after, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, before, after, "previous snapshot must be retained unchanged")
	assert.ErrorIs(t, s.Err(), errStoreDown)
	mu.Lock()
	assert.Empty(t, published)
	mu.Unlock()

	// The next successful notification clears the error and republishes.
	store.FailScans(livestats.CollTasks, nil)
	store.Put(ctx, livestats.CollTasks, testutil.NewTask("T", models.TaskTodo, models.PriorityLow, newActor(models.RoleAdmin).ID, refTime))
	s.Wait()

	assert.NoError(t, s.Err())
	latest, _ := s.Current()
	assert.Equal(t, 2, latest.TotalProducts)
	assert.Equal(t, 1, latest.TotalTasks)
	mu.Lock()
	require.Len(t, published, 1)
	assert.Equal(t, latest.Sequence, published[0].Sequence)
	mu.Unlock()
}

func TestNotificationsDuringRecompute_CoalesceIntoOneFollowUp(t *testing.T) {
	store := testutil.NewMemStore()
	s := startSession(t, newEngine(store), newActor(models.RoleAdmin))
	require.Equal(t, 1, store.ScanCount(livestats.CollProducts))

	started := scanStarted(store, livestats.CollProducts)
	release := store.HoldScans()
	ctx := context.Background()

	_ = store.Publish(ctx, livestats.CollProducts)
	waitFor(t, started)

	// Two more changes while the recompute is in flight.
	_ = store.Publish(ctx, livestats.CollTasks)
	_ = store.Publish(ctx, livestats.CollUsers)

	release()
	s.Wait()

	assert.Equal(t, 3, store.ScanCount(livestats.CollProducts), "initial + in-flight + exactly one follow-up")
	assert.Equal(t, 3, store.ScanCount(livestats.CollTasks))
	assert.Equal(t, 3, store.ScanCount(livestats.CollUsers))

	snap, _ := s.Current()
	assert.Equal(t, uint64(3), snap.Sequence)
}

func TestFinalSnapshotReflectsLastNotification(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	store := testutil.NewMemStore()
	admin := newActor(models.RoleAdmin)
	s := startSession(t, newEngine(store), admin)
	ctx := context.Background()

	var release func()
	for i := 0; i < 200; i++ {
		switch rng.Intn(4) {
		case 0:
			store.Put(ctx, livestats.CollProducts, testutil.NewProduct("p", models.ProductDesign, refTime.Add(time.Duration(i)*time.Second)))
		case 1:
			store.Put(ctx, livestats.CollTasks, testutil.NewTask("t", models.TaskTodo, models.PriorityMedium, admin.ID, refTime.Add(time.Duration(i)*time.Second)))
		case 2:
			store.Put(ctx, livestats.CollUsers, testutil.NewUser("u", "u@x.io", models.RoleTeamMember))
		case 3:
			if release == nil {
				release = store.HoldScans()
			} else {
				release()
				release = nil
			}
		}
	}
	if release != nil {
		release()
	}
	s.Wait()

	products, err := docstore.ScanAs[models.Product](ctx, store, livestats.CollProducts, docstore.Query{})
	require.NoError(t, err)
	tasks, err := docstore.ScanAs[models.Task](ctx, store, livestats.CollTasks, docstore.Query{})
	require.NoError(t, err)
	users, err := docstore.ScanAs[models.User](ctx, store, livestats.CollUsers, docstore.Query{})
	require.NoError(t, err)

	snap, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, len(products), snap.TotalProducts)
	assert.Equal(t, len(tasks), snap.TotalTasks)
	assert.Equal(t, len(tasks), snap.PendingTasks)
	assert.Equal(t, len(users), snap.TeamMembers)
}

func TestStop_DetachesAndDiscardsInFlight(t *testing.T) {
	store := testutil.NewMemStore()
	s, err := newEngine(store).Start(context.Background(), newActor(models.RoleAdmin))
	require.NoError(t, err)
	before, _ := s.Current()

	var calls int
	var mu sync.Mutex
	s.OnSnapshotChanged(func(livestats.Snapshot) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	started := scanStarted(store, livestats.CollProducts)
	release := store.HoldScans()
	store.Put(context.Background(), livestats.CollProducts, testutil.NewProduct("late", models.ProductDesign, refTime))
	waitFor(t, started)

	s.Stop()
	for _, coll := range []string{livestats.CollProducts, livestats.CollTasks, livestats.CollUsers} {
		assert.Equal(t, 0, store.Listeners(coll), "collection %s still attached after Stop", coll)
	}

	release()
	s.Wait()

	after, _ := s.Current()
	assert.Equal(t, before, after, "in-flight result must not be published after Stop")
	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()

	// Idempotent, and later changes are ignored.
	s.Stop()
	s.Refresh()
	store.Put(context.Background(), livestats.CollProducts, testutil.NewProduct("ignored", models.ProductDesign, refTime))
	s.Wait()
	assert.Equal(t, 2, store.ScanCount(livestats.CollProducts), "only the initial and the discarded scan")
}

func TestRecomputeTimeout_SetsError(t *testing.T) {
	store := testutil.NewMemStore()
	e := livestats.New(store, store, zap.NewNop(), livestats.Options{
		Timeout: 20 * time.Millisecond,
		Now:     func() time.Time { return refTime },
	})
	s := startSession(t, e, newActor(models.RoleAdmin))

	release := store.HoldScans()
	defer release()
	s.Refresh()
	s.Wait()

	assert.ErrorIs(t, s.Err(), context.DeadlineExceeded)
	_, ok := s.Current()
	assert.True(t, ok, "initial snapshot retained")
}

// unfilteredScanner drops every filter, as a misbehaving store might.
type unfilteredScanner struct{ *testutil.MemStore }

func (u unfilteredScanner) Scan(ctx context.Context, collection string, q docstore.Query) ([]bson.Raw, error) {
	q.Filter = nil
	return u.MemStore.Scan(ctx, collection, q)
}

func TestNonAdminSession_NeverSeesOthersTasks(t *testing.T) {
	store := testutil.NewMemStore()
	me := newActor(models.RoleTeamMember)
	other := newActor(models.RoleTeamMember)
	store.Insert(livestats.CollTasks,
		testutil.NewTask("mine", models.TaskTodo, models.PriorityLow, me.ID, refTime),
		testutil.NewTask("theirs", models.TaskInProgress, models.PriorityUrgent, other.ID, refTime.Add(time.Minute)),
	)

	e := livestats.New(unfilteredScanner{store}, store, zap.NewNop(), livestats.Options{
		Now: func() time.Time { return refTime },
	})
	s := startSession(t, e, me)

	snap, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, 1, snap.TotalTasks)
	assert.Equal(t, 1, snap.PendingTasks)
	require.Len(t, snap.RecentTasks, 1)
	assert.Equal(t, "mine", snap.RecentTasks[0].Title)
}

func TestOnSnapshotChanged_InOrderAndCancelable(t *testing.T) {
	store := testutil.NewMemStore()
	s := startSession(t, newEngine(store), newActor(models.RoleAdmin))

	var seqs []uint64
	var mu sync.Mutex
	cancel := s.OnSnapshotChanged(func(snap livestats.Snapshot) {
		mu.Lock()
		seqs = append(seqs, snap.Sequence)
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		store.Put(context.Background(), livestats.CollUsers, testutil.NewUser("u", "u@x.io", models.RoleStakeholder))
		s.Wait()
	}
	cancel()
	store.Put(context.Background(), livestats.CollUsers, testutil.NewUser("u", "u@x.io", models.RoleStakeholder))
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seqs, 5)
	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1])
	}
}

func TestCompute_OneShot(t *testing.T) {
	store := testutil.NewMemStore()
	store.Insert(livestats.CollProducts,
		testutil.NewProduct("a", models.ProductDevelopment, refTime),
		testutil.NewProduct("b", models.ProductLaunch, refTime.Add(-time.Hour)),
	)

	snap, err := newEngine(store).Compute(context.Background(), newActor(models.RoleStakeholder))
	require.NoError(t, err)
	assert.Equal(t, 2, snap.TotalProducts)
	assert.Equal(t, 1, snap.ActiveProjects)
	assert.Equal(t, 0, store.Listeners(livestats.CollProducts))

	store.FailScans(livestats.CollProducts, errStoreDown)
	_, err = newEngine(store).Compute(context.Background(), newActor(models.RoleStakeholder))
	assert.ErrorIs(t, err, errStoreDown)
}

func TestStop_WaitsForListenerAndSkipsTheRest(t *testing.T) {
	store := testutil.NewMemStore()
	s := startSession(t, newEngine(store), newActor(models.RoleAdmin))

	var deliveries atomic.Int32
	entered := make(chan struct{})
	gate := make(chan struct{})
	var first atomic.Bool
	listen := func(livestats.Snapshot) {
		deliveries.Add(1)
		if first.CompareAndSwap(false, true) {
			close(entered)
			<-gate
		}
	}
	s.OnSnapshotChanged(listen)
	s.OnSnapshotChanged(listen)

	store.Put(context.Background(), livestats.CollProducts, testutil.NewProduct("p", models.ProductDesign, refTime))
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("listener was never called")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a listener was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	atStop := deliveries.Load()
	s.Wait()

	assert.Equal(t, int32(1), atStop, "second listener must be skipped once Stop began")
	assert.Equal(t, atStop, deliveries.Load(), "no delivery after Stop returned")
	select {
	case <-s.Done():
	default:
		t.Error("Done should be closed after Stop")
	}
}

func TestOnError_ReceivesLaterFailures(t *testing.T) {
	store := testutil.NewMemStore()
	s := startSession(t, newEngine(store), newActor(models.RoleAdmin))

	errs := make(chan error, 4)
	cancel := s.OnError(func(err error) { errs <- err })
	var snaps atomic.Int32
	s.OnSnapshotChanged(func(livestats.Snapshot) { snaps.Add(1) })

	store.FailScans(livestats.CollTasks, errStoreDown)
	store.Put(context.Background(), livestats.CollProducts, testutil.NewProduct("p", models.ProductDesign, refTime))
	s.Wait()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, errStoreDown)
	default:
		t.Fatal("error listener was not called")
	}
	assert.Zero(t, snaps.Load())

	cancel()
	s.Refresh()
	s.Wait()
	assert.Empty(t, errs, "canceled listener must not be called")
}
