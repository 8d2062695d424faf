// Package lockchain implements the append-only, Merkle-linked log of
// receipts (spec §3, §4.6): each entry wraps a receipt's canonical hash
// and a parent-hash link; the current tip is the Merkle root of all
// entries so far.
package lockchain

import (
	"sort"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/knhk/workflow-kernel/pkg/receipt"
)

// Entry wraps a committed receipt with its canonical hash and a link to
// the previous entry's hash.
type Entry struct {
	ReceiptID  uint64
	Hash       [32]byte
	ParentHash *[32]byte
	Metadata   map[string]string
	receipt    receipt.Receipt
}

// Receipt returns the wrapped receipt.
func (e Entry) Receipt() receipt.Receipt { return e.receipt }

// newEntry builds an Entry from a receipt and the previous entry's hash
// (nil for the first entry).
func newEntry(r receipt.Receipt, parent *[32]byte, metadata map[string]string) Entry {
	h := sha3.Sum256(receipt.CanonicalBytes(r))
	return Entry{
		ReceiptID:  r.ReceiptID,
		Hash:       h,
		ParentHash: parent,
		Metadata:   metadata,
		receipt:    r,
	}
}

// VerifyEntry recomputes an entry's hash from its wrapped receipt and
// checks it against the stored Hash — the lockchain-level analogue of
// receipt.Verify.
func VerifyEntry(e Entry) bool {
	return sha3.Sum256(receipt.CanonicalBytes(e.receipt)) == e.Hash
}

// sortedMetadataKeys returns metadata keys in sorted order, per spec §4.6
// "metadata keys are serialized in sorted order".
func sortedMetadataKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// nowMs is a small seam so append paths that need a wall-clock
// timestamp for a receipt-file export can be swapped in tests without
// reaching for time.Now() inside deterministic kernel code.
var nowMs = func() int64 { return time.Now().UnixMilli() }
