package snapshotstore

import (
	"sync"
	"testing"

	"github.com/knhk/workflow-kernel/pkg/sigma"
)

func mustSnapshot(t *testing.T, desc string) *sigma.Snapshot {
	t.Helper()
	snap, err := sigma.Build(nil, nil, nil, nil, []byte(desc))
	if err != nil {
		t.Fatalf("sigma.Build() error = %v", err)
	}
	return snap
}

func TestCurrentBeforePublish(t *testing.T) {
	s := New()
	if _, ok := s.Current(); ok {
		t.Fatal("expected Current() to report false before first Publish")
	}
}

func TestPublishThenCurrent(t *testing.T) {
	s := New()
	snap := mustSnapshot(t, "v1")
	prior := s.Publish(snap)
	if prior != nil {
		t.Fatal("expected nil prior on first publish")
	}
	ref, ok := s.Current()
	if !ok {
		t.Fatal("expected Current() to succeed after Publish")
	}
	defer ref.Release()
	if ref.Snapshot().Hash() != snap.Hash() {
		t.Error("Current() snapshot hash mismatch")
	}
}

func TestPublishReturnsPrior(t *testing.T) {
	s := New()
	v1 := mustSnapshot(t, "v1")
	v2 := mustSnapshot(t, "v2")
	s.Publish(v1)
	prior := s.Publish(v2)
	if prior == nil || prior.Hash() != v1.Hash() {
		t.Fatal("expected Publish(v2) to return v1 as prior")
	}
	ref, _ := s.Current()
	defer ref.Release()
	if ref.Snapshot().Hash() != v2.Hash() {
		t.Error("Current() should observe v2 after second publish")
	}
}

func TestReaderHoldsPriorAcrossPublish(t *testing.T) {
	s := New()
	v1 := mustSnapshot(t, "v1")
	s.Publish(v1)

	ref, _ := s.Current()
	v2 := mustSnapshot(t, "v2")
	s.Publish(v2)

	// The reader's Ref, acquired before the swap, must still observe v1.
	if ref.Snapshot().Hash() != v1.Hash() {
		t.Error("existing reader Ref should still observe the prior snapshot")
	}
	ref.Release()

	newRef, _ := s.Current()
	defer newRef.Release()
	if newRef.Snapshot().Hash() != v2.Hash() {
		t.Error("new reader should observe v2")
	}
}

func TestConcurrentReadersDuringPublish(t *testing.T) {
	s := New()
	s.Publish(mustSnapshot(t, "v1"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, ok := s.Current()
			if !ok {
				return
			}
			defer ref.Release()
			_ = ref.Snapshot().Hash()
		}()
	}
	s.Publish(mustSnapshot(t, "v2"))
	wg.Wait()
}

func TestHash(t *testing.T) {
	s := New()
	if _, ok := s.Hash(); ok {
		t.Fatal("expected Hash() to report false before publish")
	}
	v1 := mustSnapshot(t, "v1")
	s.Publish(v1)
	h, ok := s.Hash()
	if !ok || h != v1.Hash() {
		t.Fatal("Hash() mismatch after publish")
	}
}
