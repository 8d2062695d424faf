package sigma

import (
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/crypto/sha3"
)

// Snapshot is the read-only, content-addressed typed view over a Σ* image.
type Snapshot struct {
	header Header
	bytes  []byte

	tasksByID    map[uint64]TaskDescriptor
	guardsByID   map[uint64]GuardDescriptor
	patterns     [OpcodeSlots]PatternBinding
	patternsSet  [OpcodeSlots]bool
	triples      []Triple // sorted by (predicate, subject, object)
	extra        []byte
}

// ErrInvalidHeader / ErrHashMismatch are returned by LoadFromBytes.
type ErrInvalidHeader struct{ Reason string }

func (e *ErrInvalidHeader) Error() string { return "sigma: invalid header: " + e.Reason }

type ErrHashMismatch struct {
	Declared, Computed [32]byte
}

func (e *ErrHashMismatch) Error() string {
	return fmt.Sprintf("sigma: hash mismatch: declared %x computed %x", e.Declared, e.Computed)
}

// Hash returns the 32-byte SHA3-256 content hash of the full image.
func (s *Snapshot) Hash() [32]byte { return s.header.Hash }

// Bytes returns the canonical byte image (for re-publishing or hashing).
func (s *Snapshot) Bytes() []byte { return s.bytes }

// GetTask looks up a task descriptor by id.
func (s *Snapshot) GetTask(id uint64) (TaskDescriptor, bool) {
	t, ok := s.tasksByID[id]
	return t, ok
}

// GetGuard looks up a guard descriptor by id.
func (s *Snapshot) GetGuard(id uint64) (GuardDescriptor, bool) {
	g, ok := s.guardsByID[id]
	return g, ok
}

// GetPattern looks up the handler binding for an opcode.
func (s *Snapshot) GetPattern(op Opcode) (PatternBinding, bool) {
	if int(op) >= OpcodeSlots {
		return PatternBinding{}, false
	}
	return s.patterns[op], s.patternsSet[op]
}

// TriplesForPredicate returns the triples for a predicate, in the stable
// sorted order required to pin a run window (spec §3).
func (s *Snapshot) TriplesForPredicate(predicate uint64) []Triple {
	lo := sort.Search(len(s.triples), func(i int) bool { return s.triples[i].Predicate >= predicate })
	hi := sort.Search(len(s.triples), func(i int) bool { return s.triples[i].Predicate > predicate })
	return s.triples[lo:hi]
}

// AllTriples returns every triple in the snapshot, in stable sorted order.
// Used by pkg/overlay to rebuild a full triple set on commit.
func (s *Snapshot) AllTriples() []Triple {
	out := make([]Triple, len(s.triples))
	copy(out, s.triples)
	return out
}

// Tasks returns every task descriptor in the snapshot.
func (s *Snapshot) Tasks() []TaskDescriptor {
	out := make([]TaskDescriptor, 0, len(s.tasksByID))
	for _, t := range s.tasksByID {
		out = append(out, t)
	}
	return out
}

// Guards returns every guard descriptor in the snapshot.
func (s *Snapshot) Guards() []GuardDescriptor {
	out := make([]GuardDescriptor, 0, len(s.guardsByID))
	for _, g := range s.guardsByID {
		out = append(out, g)
	}
	return out
}

// Patterns returns every bound pattern slot in the snapshot.
func (s *Snapshot) Patterns() []PatternBinding {
	out := make([]PatternBinding, 0, OpcodeSlots)
	for op, set := range s.patternsSet {
		if set {
			out = append(out, s.patterns[op])
		}
	}
	return out
}

// Build assembles a new Snapshot from components, computes its hash, and
// seals it. Used by the overlay commit path (pkg/overlay) — never called
// on the hot path.
func Build(tasks []TaskDescriptor, guards []GuardDescriptor, patterns []PatternBinding, triples []Triple, extra []byte) (*Snapshot, error) {
	if len(tasks) > MaxTasks {
		return nil, fmt.Errorf("sigma: %d tasks exceeds max %d", len(tasks), MaxTasks)
	}
	guardByID := make(map[uint64]GuardDescriptor, len(guards))
	for _, g := range guards {
		guardByID[g.ID] = g
	}
	for _, t := range tasks {
		for i := uint8(0); i < t.GuardCount; i++ {
			if _, ok := guardByID[t.GuardRefs[i]]; !ok {
				return nil, fmt.Errorf("sigma: task %d references unresolved guard %d", t.ID, t.GuardRefs[i])
			}
		}
	}

	sorted := append([]Triple(nil), triples...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Predicate != sorted[j].Predicate {
			return sorted[i].Predicate < sorted[j].Predicate
		}
		if sorted[i].Subject != sorted[j].Subject {
			return sorted[i].Subject < sorted[j].Subject
		}
		return sorted[i].Object < sorted[j].Object
	})

	tasksSection := encodeSection(len(tasks), taskRecordSize, func(i int) []byte { return encodeTask(tasks[i]) })
	guardsSection := encodeSection(len(guards), guardRecordSize, func(i int) []byte { return encodeGuard(guards[i]) })
	patternsSection := encodeSection(len(patterns), patternRecordSize, func(i int) []byte { return encodePattern(patterns[i]) })
	metadataSection := encodeMetadata(sorted, extra)

	offTasks := uint64(HeaderSize)
	offGuards := offTasks + uint64(len(tasksSection))
	offPatterns := offGuards + uint64(len(guardsSection))
	offMetadata := offPatterns + uint64(len(patternsSection))
	total := offMetadata + uint64(len(metadataSection))

	body := make([]byte, 0, total)
	body = append(body, make([]byte, HeaderSize)...) // placeholder, filled after hash
	body = append(body, tasksSection...)
	body = append(body, guardsSection...)
	body = append(body, patternsSection...)
	body = append(body, metadataSection...)

	h := Header{
		Magic:          Magic,
		Version:        Version,
		OffsetTasks:    offTasks,
		OffsetGuards:   offGuards,
		OffsetPatterns: offPatterns,
		OffsetMetadata: offMetadata,
		TotalLen:       total,
	}
	// Hash is computed over the image with the hash field zeroed, then
	// stamped back in — the only two-pass step in an otherwise single
	// linear encode.
	hash := sha3.Sum256(append(h.encode(), body[HeaderSize:]...))
	h.Hash = hash
	copy(body[0:HeaderSize], h.encode())

	return &Snapshot{
		header:      h,
		bytes:       body,
		tasksByID:   indexTasks(tasks),
		guardsByID:  guardByID,
		patterns:    patternArray(patterns),
		patternsSet: patternSetArray(patterns),
		triples:     sorted,
		extra:       extra,
	}, nil
}

// LoadFromBytes parses and validates a Σ* image: header shape, declared
// hash vs. computed hash, and that every offset and guard reference
// resolves within the image (spec §4.1 Failure semantics).
func LoadFromBytes(raw []byte) (*Snapshot, error) {
	h, err := decodeHeader(raw)
	if err != nil {
		return nil, &ErrInvalidHeader{Reason: err.Error()}
	}
	if h.Magic != Magic {
		return nil, &ErrInvalidHeader{Reason: "magic mismatch"}
	}
	if h.Version != Version {
		return nil, &ErrInvalidHeader{Reason: "version mismatch"}
	}
	if h.TotalLen != uint64(len(raw)) {
		return nil, &ErrInvalidHeader{Reason: "declared length does not match buffer"}
	}
	if h.OffsetTasks > h.TotalLen || h.OffsetGuards > h.TotalLen ||
		h.OffsetPatterns > h.TotalLen || h.OffsetMetadata > h.TotalLen {
		return nil, &ErrInvalidHeader{Reason: "section offset exceeds image length"}
	}

	zeroed := h
	zeroed.Hash = [32]byte{}
	computed := sha3.Sum256(append(zeroed.encode(), raw[HeaderSize:]...))
	if computed != h.Hash {
		return nil, &ErrHashMismatch{Declared: h.Hash, Computed: computed}
	}

	tasks := decodeSection(raw[h.OffsetTasks:h.OffsetGuards], taskRecordSize, decodeTask)
	guards := decodeSection(raw[h.OffsetGuards:h.OffsetPatterns], guardRecordSize, decodeGuard)
	patterns := decodeSection(raw[h.OffsetPatterns:h.OffsetMetadata], patternRecordSize, decodePattern)
	triples, extra, err := decodeMetadata(raw[h.OffsetMetadata:])
	if err != nil {
		return nil, &ErrInvalidHeader{Reason: err.Error()}
	}

	guardByID := make(map[uint64]GuardDescriptor, len(guards))
	for _, g := range guards {
		guardByID[g.ID] = g
	}
	for _, t := range tasks {
		for i := uint8(0); i < t.GuardCount && int(i) < MaxGuardsPerTask; i++ {
			if _, ok := guardByID[t.GuardRefs[i]]; !ok {
				return nil, &ErrInvalidHeader{Reason: fmt.Sprintf("task %d references unresolved guard %d", t.ID, t.GuardRefs[i])}
			}
		}
	}

	return &Snapshot{
		header:      h,
		bytes:       raw,
		tasksByID:   indexTasks(tasks),
		guardsByID:  guardByID,
		patterns:    patternArray(patterns),
		patternsSet: patternSetArray(patterns),
		triples:     triples,
		extra:       extra,
	}, nil
}

func indexTasks(tasks []TaskDescriptor) map[uint64]TaskDescriptor {
	m := make(map[uint64]TaskDescriptor, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t
	}
	return m
}

func patternArray(patterns []PatternBinding) [OpcodeSlots]PatternBinding {
	var arr [OpcodeSlots]PatternBinding
	for _, p := range patterns {
		arr[p.Opcode] = p
	}
	return arr
}

func patternSetArray(patterns []PatternBinding) [OpcodeSlots]bool {
	var arr [OpcodeSlots]bool
	for _, p := range patterns {
		arr[p.Opcode] = true
	}
	return arr
}

func encodeSection(n, recordSize int, encodeAt func(i int) []byte) []byte {
	buf := make([]byte, 4, 4+n*recordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n))
	for i := 0; i < n; i++ {
		buf = append(buf, encodeAt(i)...)
	}
	return buf
}

func decodeSection[T any](buf []byte, recordSize int, decodeAt func([]byte) T) []T {
	if len(buf) < 4 {
		return nil
	}
	n := int(binary.LittleEndian.Uint32(buf[0:4]))
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		off := 4 + i*recordSize
		if off+recordSize > len(buf) {
			break
		}
		out = append(out, decodeAt(buf[off:off+recordSize]))
	}
	return out
}

func encodeMetadata(triples []Triple, extra []byte) []byte {
	buf := make([]byte, 4, 4+len(triples)*24+4+len(extra))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(triples)))
	for _, t := range triples {
		rec := make([]byte, 24)
		binary.LittleEndian.PutUint64(rec[0:8], t.Subject)
		binary.LittleEndian.PutUint64(rec[8:16], t.Predicate)
		binary.LittleEndian.PutUint64(rec[16:24], t.Object)
		buf = append(buf, rec...)
	}
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(extra)))
	buf = append(buf, lenBuf...)
	buf = append(buf, extra...)
	return buf
}

func decodeMetadata(buf []byte) ([]Triple, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("sigma: truncated metadata section")
	}
	n := int(binary.LittleEndian.Uint32(buf[0:4]))
	off := 4
	triples := make([]Triple, 0, n)
	for i := 0; i < n; i++ {
		if off+24 > len(buf) {
			return nil, nil, fmt.Errorf("sigma: truncated triple record")
		}
		triples = append(triples, Triple{
			Subject:   binary.LittleEndian.Uint64(buf[off : off+8]),
			Predicate: binary.LittleEndian.Uint64(buf[off+8 : off+16]),
			Object:    binary.LittleEndian.Uint64(buf[off+16 : off+24]),
		})
		off += 24
	}
	if off+4 > len(buf) {
		return nil, nil, fmt.Errorf("sigma: truncated metadata extra-length")
	}
	extraLen := int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	if off+extraLen > len(buf) {
		return nil, nil, fmt.Errorf("sigma: truncated metadata extra bytes")
	}
	return triples, buf[off : off+extraLen], nil
}
