package mapek

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SuccessMemoryAlpha is the exponential-smoothing factor applied to each
// action's attempt/success counts (DESIGN.md open question 2).
const SuccessMemoryAlpha = 0.1

// SuccessMemoryHalfLife is how long a success memory takes to decay
// halfway back toward the neutral 0.5 prior if the action is never
// attempted again (SPEC_FULL.md §3 "Success-memory decay").
const SuccessMemoryHalfLife = 24 * time.Hour

// Knowledge persists cycle records, learned patterns, and per-action
// success memories (spec §4.8 "Knowledge").
//
// Grounded on original_source/rust/knhk-autonomic's KnowledgeBase
// (referenced from tests/integration_tests.rs and examples/
// self_healing_workflow.rs; no knowledge/mod.rs source file was retrieved,
// so its public shape is inferred from call sites: record_pattern,
// record_success, get_cycles/get_patterns/get_memories/get_success_rate).
type Knowledge struct {
	mu       sync.RWMutex
	cycles   []CycleRecord
	patterns []LearnedPattern
	memories map[uuid.UUID]*SuccessMemory
}

// NewKnowledge constructs an empty in-memory Knowledge base.
func NewKnowledge() *Knowledge {
	return &Knowledge{memories: make(map[uuid.UUID]*SuccessMemory)}
}

// RecordCycle appends record to the append-only cycle log.
func (k *Knowledge) RecordCycle(record CycleRecord) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cycles = append(k.cycles, record)
}

// GetCycles returns every recorded cycle, oldest first.
func (k *Knowledge) GetCycles() []CycleRecord {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]CycleRecord, len(k.cycles))
	copy(out, k.cycles)
	return out
}

// RecordPattern records that description was associated with actionIDs,
// so future matching symptoms can favor actions that worked before.
func (k *Knowledge) RecordPattern(description string, actionIDs []uuid.UUID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.patterns = append(k.patterns, LearnedPattern{Description: description, ActionIDs: actionIDs})
}

// GetPatterns returns every learned pattern, oldest first.
func (k *Knowledge) GetPatterns() []LearnedPattern {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]LearnedPattern, len(k.patterns))
	copy(out, k.patterns)
	return out
}

// RecordSuccess updates actionID's success memory with one new attempt via
// exponential smoothing, and — on success — learns situation as a pattern
// pointing at actionID (SPEC_FULL.md §3 "Learned patterns table").
func (k *Knowledge) RecordSuccess(situation string, actionID uuid.UUID, success bool) {
	k.mu.Lock()
	mem, ok := k.memories[actionID]
	if !ok {
		mem = &SuccessMemory{ActionID: actionID}
		k.memories[actionID] = mem
	}

	outcome := 0.0
	if success {
		outcome = 1.0
	}
	if mem.Attempts == 0 {
		mem.Attempts = 1
		mem.Successes = outcome
	} else {
		mem.Attempts = (1-SuccessMemoryAlpha)*mem.Attempts + SuccessMemoryAlpha
		mem.Successes = (1-SuccessMemoryAlpha)*mem.Successes + SuccessMemoryAlpha*outcome
	}
	mem.LastUpdated = time.Now()
	k.mu.Unlock()

	if success {
		k.RecordPattern(situation, []uuid.UUID{actionID})
	}
}

// GetMemories returns every tracked success memory.
func (k *Knowledge) GetMemories() []SuccessMemory {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]SuccessMemory, 0, len(k.memories))
	for _, m := range k.memories {
		out = append(out, *m)
	}
	return out
}

// SuccessRate returns 0.5 (optimistic prior) if actionID has no recorded
// history; otherwise the smoothed success ratio, decayed toward 0.5 the
// longer it has been since the last attempt (spec §4.8 / SPEC_FULL.md §3).
func (k *Knowledge) SuccessRate(actionID uuid.UUID) float64 {
	k.mu.RLock()
	mem, ok := k.memories[actionID]
	var snapshot SuccessMemory
	if ok {
		snapshot = *mem
	}
	k.mu.RUnlock()

	if !ok || snapshot.Attempts == 0 {
		return 0.5
	}

	rawRate := snapshot.Successes / snapshot.Attempts
	elapsed := time.Since(snapshot.LastUpdated)
	decay := decayFactor(elapsed, SuccessMemoryHalfLife)
	return 0.5 + (rawRate-0.5)*decay
}

// decayFactor is 1 at elapsed=0 and 0.5 at elapsed=halfLife, an
// exponential half-life curve.
func decayFactor(elapsed, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1
	}
	exponent := float64(elapsed) / float64(halfLife)
	return math.Pow(2, -exponent)
}
