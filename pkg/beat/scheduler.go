// Package beat implements the beat scheduler and admission rings (spec
// §4.7): external deltas are stamped with a monotonically non-decreasing
// cycle id and enqueued onto a per-domain ring, so downstream warm-epoch
// work is deterministic and load-shedable.
//
// Grounded on original_source/rust/knhk-sidecar/tests/chicago_tdd_beat_admission.rs
// and the teacher's redis-backed queue depth checks; rings are Redis
// lists (one per domain) via github.com/redis/go-redis/v9.
package beat

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/knhk/workflow-kernel/internal/config"
	"github.com/knhk/workflow-kernel/internal/kerrors"
)

// Scheduler assigns cycle ids to admitted deltas and tracks per-domain
// ring depth in Redis.
type Scheduler struct {
	rdb *redis.Client
	cfg config.BeatConfig

	mu        sync.Mutex
	cycle     uint64
	tick      uint32
	parkCount uint64
}

// New constructs a Scheduler backed by rdb.
func New(rdb *redis.Client, cfg config.BeatConfig) *Scheduler {
	return &Scheduler{rdb: rdb, cfg: cfg}
}

func ringKey(domainID uint32) string {
	return fmt.Sprintf("knhk:beat:ring:%d", domainID)
}

// AdmitDelta stamps delta with the current cycle id and enqueues it on
// domainID's ring, failing with RingFull if the ring is already at
// capacity (spec §4.7 "admit_delta(delta, domain_id?) -> cycle_id |
// RingFull"). Exactly one cycle_id is assigned per admitted delta; cycle
// ids are monotonically non-decreasing and tick progresses 0..ticks_per_cycle-1
// before the cycle advances.
func (s *Scheduler) AdmitDelta(ctx context.Context, domainID uint32, delta []byte) (uint64, error) {
	key := ringKey(domainID)
	depth, err := s.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, kerrors.FailedTo("check ring depth", err)
	}
	if int(depth) >= s.cfg.RingCapacityPerDomain {
		return 0, &kerrors.KernelError{
			Kind:    kerrors.KindResourceExhausted,
			Message: "ring full",
			ShardID: domainID,
		}
	}
	if int(depth) >= s.cfg.HighWaterMarkPerDomain {
		s.mu.Lock()
		s.parkCount++
		s.mu.Unlock()
	}

	if err := s.rdb.RPush(ctx, key, delta).Err(); err != nil {
		return 0, kerrors.FailedTo("enqueue delta onto ring", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cycleID := s.cycle
	s.tick++
	if s.tick >= uint32(s.cfg.TicksPerCycle) {
		s.tick = 0
		s.cycle++
	}
	return cycleID, nil
}

// CurrentCycle returns the cycle id that would be stamped on the next
// admitted delta.
func (s *Scheduler) CurrentCycle() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

// CurrentTick returns the current position within the cycle, 0..ticks_per_cycle-1.
func (s *Scheduler) CurrentTick() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// ParkCount returns how many admissions landed while the ring was at or
// above its high-water mark.
func (s *Scheduler) ParkCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parkCount
}

// ShouldThrottle reports whether domainID's ring depth has reached the
// configured high-water mark (spec §4.7).
func (s *Scheduler) ShouldThrottle(ctx context.Context, domainID uint32) (bool, error) {
	depth, err := s.rdb.LLen(ctx, ringKey(domainID)).Result()
	if err != nil {
		return false, kerrors.FailedTo("check ring depth", err)
	}
	return int(depth) >= s.cfg.HighWaterMarkPerDomain, nil
}

// RingDepth returns the current number of queued deltas for domainID.
func (s *Scheduler) RingDepth(ctx context.Context, domainID uint32) (int64, error) {
	depth, err := s.rdb.LLen(ctx, ringKey(domainID)).Result()
	if err != nil {
		return 0, kerrors.FailedTo("check ring depth", err)
	}
	return depth, nil
}
