package sigma

import "encoding/binary"

// Fixed, 64-byte-aligned per-record widths (spec §6 "Descriptors are
// fixed-size (64-byte aligned) records").
const (
	taskRecordSize    = 128
	guardRecordSize   = 64
	patternRecordSize = 64
)

func encodeTask(t TaskDescriptor) []byte {
	buf := make([]byte, taskRecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], t.ID)
	buf[8] = byte(t.Opcode)
	buf[9] = t.GuardCount
	binary.LittleEndian.PutUint32(buf[12:16], t.Priority)
	for i := 0; i < MaxGuardsPerTask; i++ {
		off := 16 + i*8
		binary.LittleEndian.PutUint64(buf[off:off+8], t.GuardRefs[i])
	}
	binary.LittleEndian.PutUint64(buf[80:88], t.InputSchema)
	binary.LittleEndian.PutUint64(buf[88:96], t.OutputSchema)
	return buf
}

func decodeTask(buf []byte) TaskDescriptor {
	var t TaskDescriptor
	t.ID = binary.LittleEndian.Uint64(buf[0:8])
	t.Opcode = Opcode(buf[8])
	t.GuardCount = buf[9]
	t.Priority = binary.LittleEndian.Uint32(buf[12:16])
	for i := 0; i < MaxGuardsPerTask; i++ {
		off := 16 + i*8
		t.GuardRefs[i] = binary.LittleEndian.Uint64(buf[off : off+8])
	}
	t.InputSchema = binary.LittleEndian.Uint64(buf[80:88])
	t.OutputSchema = binary.LittleEndian.Uint64(buf[88:96])
	return t
}

func encodeGuard(g GuardDescriptor) []byte {
	buf := make([]byte, guardRecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], g.ID)
	buf[8] = byte(g.Kind)
	binary.LittleEndian.PutUint32(buf[12:16], g.Priority)
	binary.LittleEndian.PutUint64(buf[16:24], g.PredicateBody)
	return buf
}

func decodeGuard(buf []byte) GuardDescriptor {
	var g GuardDescriptor
	g.ID = binary.LittleEndian.Uint64(buf[0:8])
	g.Kind = GuardKind(buf[8])
	g.Priority = binary.LittleEndian.Uint32(buf[12:16])
	g.PredicateBody = binary.LittleEndian.Uint64(buf[16:24])
	return g
}

func encodePattern(p PatternBinding) []byte {
	buf := make([]byte, patternRecordSize)
	buf[0] = byte(p.Opcode)
	binary.LittleEndian.PutUint64(buf[8:16], p.HandlerRef)
	binary.LittleEndian.PutUint32(buf[16:20], p.HandlerVersion)
	return buf
}

func decodePattern(buf []byte) PatternBinding {
	var p PatternBinding
	p.Opcode = Opcode(buf[0])
	p.HandlerRef = binary.LittleEndian.Uint64(buf[8:16])
	p.HandlerVersion = binary.LittleEndian.Uint32(buf[16:20])
	return p
}
