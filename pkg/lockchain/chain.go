package lockchain

import (
	"sync"

	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/internal/telemetry"
	"github.com/knhk/workflow-kernel/pkg/receipt"
)

// Chain is the in-memory append-only lockchain: a linked hash chain whose
// tip is always the Merkle root of every entry appended so far. Append is
// serialized (spec §5 "append is serialized").
type Chain struct {
	mu      sync.Mutex
	entries []Entry
	tipHash [32]byte
	hasTip  bool
}

func New() *Chain {
	return &Chain{}
}

// Append links a new receipt to the previous entry's hash and extends the
// Merkle tree, returning the new entry's own hash. Fails with ChainBroken if a
// parent hash was expected but the chain's internal state is inconsistent
// (defensive; in this single-process implementation that can only happen
// if Append is called concurrently with itself outside the lock, which the
// mutex here prevents).
func (c *Chain) Append(r receipt.Receipt, metadata map[string]string) ([32]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var parent *[32]byte
	if c.hasTip {
		p := c.entries[len(c.entries)-1].Hash
		parent = &p
	} else if len(c.entries) > 0 {
		return [32]byte{}, &kerrors.KernelError{
			Kind:    kerrors.KindChainBroken,
			Message: "lockchain append failed to link: parent hash missing",
		}
	}

	e := newEntry(r, parent, metadata)
	c.entries = append(c.entries, e)
	c.tipHash = merkleRoot(c.leafHashesLocked())
	c.hasTip = true
	telemetry.LockchainAppendsTotal.Inc()
	return e.Hash, nil
}

// Tip returns the current root hash and whether any entry has been
// appended yet.
func (c *Chain) Tip() ([32]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tipHash, c.hasTip
}

// Len returns the number of entries appended so far.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entry returns the entry at idx.
func (c *Chain) Entry(idx int) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < 0 || idx >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[idx], true
}

// VerifyTip checks that the current tip is still the Merkle root of every
// entry, and that each entry's parent_hash equals the prior entry's hash
// (spec §8 "∀ lockchain tip t: verify(t) is true and t.parent_hash equals
// prior tip's hash").
func (c *Chain) VerifyTip() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasTip {
		return true
	}
	if merkleRoot(c.leafHashesLocked()) != c.tipHash {
		return false
	}
	for i := 1; i < len(c.entries); i++ {
		if c.entries[i].ParentHash == nil || *c.entries[i].ParentHash != c.entries[i-1].Hash {
			return false
		}
	}
	return true
}

// Prove builds a Merkle inclusion proof for the entry at leafIdx against
// the current tip.
func (c *Chain) Prove(leafIdx int) (Proof, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Prove(c.leafHashesLocked(), leafIdx)
}

func (c *Chain) leafHashesLocked() [][32]byte {
	leaves := make([][32]byte, len(c.entries))
	for i, e := range c.entries {
		leaves[i] = e.Hash
	}
	return leaves
}

// FoldDigest is a tiered Merkle digest over a chunk of entries, combining
// leaf hashes by XOR within the chunk (spec §4.6 fold). MinTicks/MaxTicks
// are the min/max ticks_consumed across the folded range — a feature carried over
// from original_source/rust/knhk-lockchain's tiered digest (see
// SPEC_FULL.md §3) that spec.md's distillation compressed away.
type FoldDigest struct {
	Root      [32]byte
	Count     int
	MinTicks  uint32
	MaxTicks  uint32
}

// Fold builds a tiered digest over entries [ids...], XOR-combining leaf
// hashes in chunks of foldSize (must be a power of two) and recursing.
// XOR combination makes the fold root insensitive to in-chunk reordering
// of the same leaf multiset (spec §8 "Fold idempotence").
func (c *Chain) Fold(ids []int, foldSize int) (FoldDigest, error) {
	if foldSize <= 0 || foldSize&(foldSize-1) != 0 {
		return FoldDigest{}, &kerrors.KernelError{
			Kind:    kerrors.KindValidationFailed,
			Message: "fold_size must be a power of two",
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(ids) == 0 {
		return FoldDigest{}, nil
	}
	var minTicks, maxTicks uint32
	minTicks = ^uint32(0)
	leaves := make([][32]byte, 0, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(c.entries) {
			return FoldDigest{}, &kerrors.KernelError{Kind: kerrors.KindValidationFailed, Message: "fold id out of range"}
		}
		e := c.entries[id]
		leaves = append(leaves, e.Hash)
		ticks := e.receipt.TicksConsumed
		if ticks < minTicks {
			minTicks = ticks
		}
		if ticks > maxTicks {
			maxTicks = ticks
		}
		_ = i
	}

	root := foldXORTiers(leaves, foldSize)
	return FoldDigest{Root: root, Count: len(ids), MinTicks: minTicks, MaxTicks: maxTicks}, nil
}

// foldXORTiers XOR-combines leaves in chunks of size chunkSize and
// recurses until a single root remains.
func foldXORTiers(leaves [][32]byte, chunkSize int) [32]byte {
	cur := leaves
	for len(cur) > 1 {
		next := make([][32]byte, 0, (len(cur)+chunkSize-1)/chunkSize)
		for i := 0; i < len(cur); i += chunkSize {
			end := i + chunkSize
			if end > len(cur) {
				end = len(cur)
			}
			next = append(next, xorChunk(cur[i:end]))
		}
		cur = next
	}
	if len(cur) == 0 {
		return [32]byte{}
	}
	return cur[0]
}

func xorChunk(chunk [][32]byte) [32]byte {
	var out [32]byte
	for _, h := range chunk {
		for i := range out {
			out[i] ^= h[i]
		}
	}
	return out
}
