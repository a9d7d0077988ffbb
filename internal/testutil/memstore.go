package testutil

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dalemusser/producthub/internal/app/system/changefeed"
	"github.com/dalemusser/producthub/internal/app/system/docstore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemStore is an in-memory document store implementing docstore.Scanner
// and changefeed.Feed, with knobs for failure injection and for holding
// scans open mid-flight.
type MemStore struct {
	*changefeed.Hub

	mu         sync.Mutex
	docs       map[string][]bson.M
	scanErr    map[string]error
	subErr     map[string]error
	gate       chan struct{}
	scans      map[string]int
	beforeScan func(collection string)
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		Hub:     changefeed.NewHub(),
		docs:    make(map[string][]bson.M),
		scanErr: make(map[string]error),
		subErr:  make(map[string]error),
		scans:   make(map[string]int),
	}
}

// Insert adds docs to collection without publishing a change.
func (m *MemStore) Insert(collection string, docs ...any) {
	norm := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		norm = append(norm, toM(d))
	}
	m.mu.Lock()
	m.docs[collection] = append(m.docs[collection], norm...)
	m.mu.Unlock()
}

// Set replaces the contents of collection without publishing a change.
func (m *MemStore) Set(collection string, docs ...any) {
	m.mu.Lock()
	m.docs[collection] = nil
	m.mu.Unlock()
	m.Insert(collection, docs...)
}

// Put inserts docs and publishes a change for collection.
func (m *MemStore) Put(ctx context.Context, collection string, docs ...any) {
	m.Insert(collection, docs...)
	_ = m.Publish(ctx, collection)
}

// FailScans makes every scan of collection return err. A nil err clears it.
func (m *MemStore) FailScans(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.scanErr, collection)
		return
	}
	m.scanErr[collection] = err
}

// FailSubscribe makes Subscribe on collection return err.
func (m *MemStore) FailSubscribe(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subErr[collection] = err
}

// HoldScans blocks every scan that starts from now on until the returned
// release func is called. Data is read after the scan is released.
func (m *MemStore) HoldScans() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// BeforeScan installs fn to run at the start of every scan.
func (m *MemStore) BeforeScan(fn func(collection string)) {
	m.mu.Lock()
	m.beforeScan = fn
	m.mu.Unlock()
}

// ScanCount returns how many scans of collection have started.
func (m *MemStore) ScanCount(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scans[collection]
}

func (m *MemStore) Subscribe(ctx context.Context, collection string, onChange func()) (func(), error) {
	m.mu.Lock()
	err := m.subErr[collection]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.Hub.Subscribe(ctx, collection, onChange)
}

func (m *MemStore) Scan(ctx context.Context, collection string, q docstore.Query) ([]bson.Raw, error) {
	m.mu.Lock()
	m.scans[collection]++
	gate := m.gate
	hook := m.beforeScan
	m.mu.Unlock()

	if hook != nil {
		hook(collection)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if err := m.scanErr[collection]; err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	src := m.docs[collection]
	matched := make([]bson.M, 0, len(src))
	for _, d := range src {
		if matches(d, q.Filter) {
			matched = append(matched, d)
		}
	}
	m.mu.Unlock()

	if q.SortField != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compareValues(matched[i][q.SortField], matched[j][q.SortField])
			if c == 0 {
				c = compareValues(matched[i]["_id"], matched[j]["_id"])
			}
			if q.SortDesc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && int64(len(matched)) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]bson.Raw, 0, len(matched))
	for _, d := range matched {
		raw, err := bson.Marshal(d)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func toM(v any) bson.M {
	raw, err := bson.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("memstore: marshal %T: %v", v, err))
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		panic(fmt.Sprintf("memstore: unmarshal %T: %v", v, err))
	}
	return m
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		if !sameValue(doc[k], want) {
			return false
		}
	}
	return true
}

// sameValue compares two values by their BSON encoding so that e.g. a
// time.Time filter matches a stored primitive.DateTime.
func sameValue(a, b any) bool {
	ra, errA := bson.Marshal(bson.M{"v": a})
	rb, errB := bson.Marshal(bson.M{"v": b})
	return errA == nil && errB == nil && bytes.Equal(ra, rb)
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case primitive.DateTime:
		if bv, ok := b.(primitive.DateTime); ok {
			return cmpOrdered(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return cmpOrdered(av, bv)
		}
	case primitive.ObjectID:
		if bv, ok := b.(primitive.ObjectID); ok {
			return bytes.Compare(av[:], bv[:])
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return cmpOrdered(af, bf)
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cmpOrdered[T ~int64 | ~float64 | ~string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
