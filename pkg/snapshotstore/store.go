// Package snapshotstore implements the atomic RCU-style snapshot pointer
// (spec §4.1): a single mutable shared cell guarded by an atomic exchange,
// with reference-counted reclaim of superseded images.
package snapshotstore

import (
	"sync"
	"sync/atomic"

	"github.com/knhk/workflow-kernel/pkg/sigma"
)

// Ref is a reader's handle on a live snapshot. Release must be called
// exactly once when the reader is done; the underlying image is only
// reclaimed once its last Ref is released and it is no longer current.
type Ref struct {
	entry *entry
}

func (r Ref) Snapshot() *sigma.Snapshot { return r.entry.snap }

// Release drops this reader's hold on the snapshot.
func (r Ref) Release() {
	if r.entry == nil {
		return
	}
	r.entry.release()
}

type entry struct {
	snap    *sigma.Snapshot
	count   int64 // refcount: 1 for the store's own hold + 1 per outstanding Ref
	onEmpty func()
	once    sync.Once
}

func (e *entry) acquire() Ref {
	atomic.AddInt64(&e.count, 1)
	return Ref{entry: e}
}

func (e *entry) release() {
	if atomic.AddInt64(&e.count, -1) == 0 {
		e.once.Do(func() {
			if e.onEmpty != nil {
				e.onEmpty()
			}
		})
	}
}

// Store holds the process-wide current Σ* pointer.
type Store struct {
	current atomic.Pointer[entry]
	mu      sync.Mutex // serializes publish; readers never take it
}

// New constructs an empty store; Current() returns false until Publish is
// called at least once.
func New() *Store {
	return &Store{}
}

// Current acquires a reference to the currently promoted snapshot under an
// acquire-load. Callers must Release() the returned Ref.
func (s *Store) Current() (Ref, bool) {
	e := s.current.Load()
	if e == nil {
		return Ref{}, false
	}
	// The store's own hold keeps e alive across this acquire; acquiring
	// here before any concurrent Publish can retire it is safe because
	// Publish only decrements the store's hold after swapping the
	// pointer, and atomic.Pointer.Load is itself the acquire operation.
	return e.acquire(), true
}

// Publish atomically exchanges the current snapshot pointer for a new one
// and returns the prior snapshot (nil on the first publish). The store's
// own hold on the prior snapshot is dropped as part of Publish, so the
// prior image is reclaimed once all outstanding reader Refs are released;
// the returned pointer itself carries no hold.
func (s *Store) Publish(snap *sigma.Snapshot) (prior *sigma.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newEntry := &entry{snap: snap, count: 1}
	old := s.current.Swap(newEntry)
	if old == nil {
		return nil
	}
	prior = old.snap
	old.release()
	return prior
}

// Hash returns the hash of the currently promoted snapshot, or the zero
// hash if none has been published yet.
func (s *Store) Hash() ([32]byte, bool) {
	ref, ok := s.Current()
	if !ok {
		return [32]byte{}, false
	}
	defer ref.Release()
	return ref.Snapshot().Hash(), true
}
