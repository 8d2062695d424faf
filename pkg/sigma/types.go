// Package sigma implements Σ*, the compiled, content-addressed ontology
// snapshot image (spec §3, §4.1, §6). A Snapshot is an immutable byte
// image: a 128-byte header followed directly by the task, guard, pattern
// and metadata sections, with no padding, so neither the sections nor the
// image length are aligned to PageSize. This package provides the typed
// view over it plus the load/hash validation contract.
package sigma

const (
	// Magic is the fixed header magic, spec §6.
	Magic uint64 = 0x4B4E484B53494741
	// Version is the fixed header version, spec §6.
	Version uint64 = 0x0000000020270000

	// PageSize is the page size constant; Build does not pad the image
	// or its sections to it.
	PageSize = 4096
	// HeaderAlign is the header's own alignment.
	HeaderAlign = 64

	// MaxTasks is the compile-time bound on the task descriptor table.
	MaxTasks = 1024
	// MaxGuardsPerTask bounds the inline guard-reference array on a task.
	MaxGuardsPerTask = 8
	// OpcodeSlots is the fixed size of the pattern/opcode binding table.
	OpcodeSlots = 256
)

// GuardKind enumerates the guard descriptor's evaluation kind.
type GuardKind uint8

const (
	GuardKindTickBudget GuardKind = iota
	GuardKindInvariantPreservation
	GuardKindAuthorization
	GuardKindSchema
	GuardKindCustom
)

// Opcode enumerates the fixed, closed opcode set from spec §3.
type Opcode uint8

const (
	OpAskSP Opcode = iota
	OpAskSPO
	OpCountSP
	OpCountOP
	OpSelectSP
	OpCompareObject
	OpValidateSP
	OpConstruct8
)

// Comparator enumerates the count/compare comparators from spec §3.
type Comparator uint8

const (
	CmpGE Comparator = iota
	CmpEQ
	CmpLE
	CmpGT
	CmpLT
)

// TaskDescriptor binds a task id to an opcode family, its guard set,
// priority, and input/output schema offsets (spec §3).
type TaskDescriptor struct {
	ID           uint64
	Opcode       Opcode
	GuardCount   uint8
	GuardRefs    [MaxGuardsPerTask]uint64
	Priority     uint32
	InputSchema  uint64
	OutputSchema uint64
}

// GuardDescriptor is an evaluation precondition: id, kind, priority, and a
// reference into the compiled predicate body region.
type GuardDescriptor struct {
	ID            uint64
	Kind          GuardKind
	Priority      uint32
	PredicateBody uint64
}

// PatternBinding maps one opcode slot to its handler reference (an index
// into the hot kernel's dispatch table — kept abstract here since the
// concrete handler lives in pkg/hotkernel).
type PatternBinding struct {
	Opcode          Opcode
	HandlerRef      uint64
	HandlerVersion  uint32
}

// Triple is the base unit of the column-oriented store a Snapshot exposes
// through run windows (pkg/runwindow).
type Triple struct {
	Subject   uint64
	Predicate uint64
	Object    uint64
}
