package receipt

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/knhk/workflow-kernel/pkg/runwindow"
)

// Context carries everything a single hot-kernel evaluation knows about
// its own causal inputs: the pinned run window, the snapshot it was
// pinned against, the hook's operands, and the scheduling/tracing ids.
// Build derives both hashes from exactly this information — never from
// wall-clock time or randomness (spec §4.3 determinism).
type Context struct {
	CycleID      uint64
	ShardID      uint32
	HookID       uint64
	Opcode       uint8
	S, P, O, K   uint64
	Window       runwindow.Window
	SnapshotHash [32]byte
	SpanID       uint64
	TimestampMs  uint64
}

// canonicalObservation produces the DESIGN.md-decided canonicalization: a
// fixed-order, little-endian concatenation of every field that determines
// the evaluation's outcome. This is deliberately NOT a URDNA2015-style RDF
// canonicalization (see DESIGN.md open question 1) — the hot path must
// stay allocation-light and branchless, and a fixed-order concatenation of
// fixed-width fields satisfies that while still being a faithful
// "canonical form" in the sense spec §4.6 requires: byte-identical output
// for equivalent inputs.
func canonicalObservation(ctx Context) []byte {
	buf := make([]byte, 0, 1+8*4+8+4+1+8*8+8*8+32)
	buf = append(buf, ctx.Opcode)
	buf = appendU64(buf, ctx.S)
	buf = appendU64(buf, ctx.P)
	buf = appendU64(buf, ctx.O)
	buf = appendU64(buf, ctx.K)
	buf = appendU64(buf, ctx.Window.Predicate)
	buf = appendU32(buf, ctx.Window.Offset)
	buf = append(buf, ctx.Window.Length)
	for i := 0; i < runwindow.MaxLanes; i++ {
		buf = appendU64(buf, ctx.Window.Subject[i])
	}
	for i := 0; i < runwindow.MaxLanes; i++ {
		buf = appendU64(buf, ctx.Window.Object[i])
	}
	buf = append(buf, ctx.SnapshotHash[:]...)
	return buf
}

// ObservationDigest returns the 32-byte SHA3-256 over the canonical
// observation, used to make a Receipt self-verifiable.
func ObservationDigest(ctx Context) [32]byte {
	return sha3.Sum256(canonicalObservation(ctx))
}

// hash64 truncates a 32-byte digest to the low 8 bytes as a little-endian
// uint64 — the "fast content-address for inner fields" spec §4.6 allows
// alongside full SHA3-256 for the wrapper.
func hash64(digest [32]byte) uint64 {
	return binary.LittleEndian.Uint64(digest[0:8])
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Build fills in a Receipt for a successful evaluation. By construction
// AHash == MuHash: the action is a pure function of the observation, so
// the kernel content-addresses both by the same canonical digest (spec
// §4.6 provenance law A = μ(O)).
func Build(ctx Context, receiptID uint64, ticksBudgeted, ticksConsumed, laneCount uint32) Receipt {
	digest := ObservationDigest(ctx)
	h := hash64(digest)
	return Receipt{
		ReceiptID:         receiptID,
		CycleID:           ctx.CycleID,
		ShardID:           ctx.ShardID,
		HookID:            ctx.HookID,
		TicksBudgeted:     ticksBudgeted,
		TicksConsumed:     ticksConsumed,
		LaneCount:         laneCount,
		SpanID:            ctx.SpanID,
		AHash:             h,
		MuHash:            h,
		TimestampMs:       ctx.TimestampMs,
		Status:            StatusOK,
		ObservationDigest: digest,
	}
}

// BuildFailed fills in a Receipt for a budget-exceeded evaluation: ticks
// are recorded honestly, outputs are zeroed, and AHash is zeroed so Valid()
// reports false (spec §4.3/§7).
func BuildFailed(ctx Context, receiptID uint64, ticksBudgeted, ticksConsumed uint32) Receipt {
	digest := ObservationDigest(ctx)
	return Receipt{
		ReceiptID:         receiptID,
		CycleID:           ctx.CycleID,
		ShardID:           ctx.ShardID,
		HookID:            ctx.HookID,
		TicksBudgeted:     ticksBudgeted,
		TicksConsumed:     ticksConsumed,
		LaneCount:         0,
		SpanID:            ctx.SpanID,
		AHash:             0,
		MuHash:            hash64(digest),
		TimestampMs:       ctx.TimestampMs,
		Status:            StatusFailed,
		ObservationDigest: digest,
	}
}

// Verify recomputes MuHash from the receipt's own ObservationDigest and
// checks it against the stored hashes, catching both tampering and the
// provenance-law violation directly.
func Verify(r Receipt) bool {
	recomputed := hash64(r.ObservationDigest)
	return recomputed == r.MuHash && r.Valid()
}

// CanonicalBytes returns the fixed-order little-endian wire encoding of
// the receipt's scalar fields, per spec §6's "fixed-order concatenation of
// little-endian encoded fields".
func CanonicalBytes(r Receipt) []byte {
	buf := make([]byte, 0, 8*3+4*4+8*3+1+32)
	buf = appendU64(buf, r.ReceiptID)
	buf = appendU64(buf, r.CycleID)
	buf = appendU32(buf, r.ShardID)
	buf = appendU64(buf, r.HookID)
	buf = appendU32(buf, r.TicksBudgeted)
	buf = appendU32(buf, r.TicksConsumed)
	buf = appendU32(buf, r.LaneCount)
	buf = appendU64(buf, r.SpanID)
	buf = appendU64(buf, r.AHash)
	buf = appendU64(buf, r.MuHash)
	buf = appendU64(buf, r.TimestampMs)
	buf = append(buf, byte(r.Status))
	buf = append(buf, r.ObservationDigest[:]...)
	return buf
}
