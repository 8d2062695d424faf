// Package hotkernel implements μ_hot, the branchless opcode evaluator
// (spec §4.3): table-driven dispatch over 8-lane SoA windows, a hard
// τ=8 tick budget, no allocation, no data-dependent branching, no I/O.
package hotkernel

import (
	"math/bits"

	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/internal/telemetry"
	"github.com/knhk/workflow-kernel/pkg/receipt"
	"github.com/knhk/workflow-kernel/pkg/runwindow"
	"github.com/knhk/workflow-kernel/pkg/sigma"
)

// Tau is the Chatman Constant: the hard per-evaluation tick budget.
const Tau = 8

// charge accounting per opcode family — hand-picked fixed costs that sum
// to at most Tau for every opcode in the closed set (spec §4.3 "every
// evaluator must charge a bounded number of ticks"). Lane processing is
// charged per lane only: MaxLanes == Tau, so dispatch rides along with the
// first lane's charge rather than adding a separate unit on top of a full
// 8-lane window. chargeDispatch is charged once per guard checked, since
// guard resolution is a separate lookup from lane processing.
const (
	chargeDispatch = 1
	chargePerLane  = 1
)

const (
	statusOK             = "ok"
	statusBudgetExceeded = "budget_exceeded"
)

// opcodeLabel maps an opcode to the kebab-case label used on the
// knhk_hot_evaluations_total / knhk_hot_ticks_consumed metrics.
func opcodeLabel(op sigma.Opcode) string {
	switch op {
	case sigma.OpAskSP:
		return "ask-sp"
	case sigma.OpAskSPO:
		return "ask-spo"
	case sigma.OpCountSP:
		return "count-sp"
	case sigma.OpCountOP:
		return "count-op"
	case sigma.OpSelectSP:
		return "select-sp"
	case sigma.OpCompareObject:
		return "compare-object"
	case sigma.OpValidateSP:
		return "validate-sp"
	case sigma.OpConstruct8:
		return "construct-8"
	default:
		return "unknown"
	}
}

// IR is the compiled, tagged-variant instruction the hot kernel dispatches
// on — spec §9's replacement for deep inheritance across the 43-pattern
// catalogue: one opcode index plus an operand struct, no runtime type
// lookup.
type IR struct {
	TaskID     uint64
	Opcode     sigma.Opcode
	S, P, O, K uint64
	Comparator sigma.Comparator
}

// Engine pins one run window and evaluates hooks against it. Reused across
// evaluations; holds no per-evaluation heap state.
type Engine struct {
	snap *sigma.Snapshot
	win  runwindow.Window
}

// Pin fixes a run window into the engine's working set. Fails with a
// GuardViolation if length exceeds MaxLanes.
func (e *Engine) Pin(snap *sigma.Snapshot, predicate uint64, offset uint32, length uint8) error {
	w, err := runwindow.Pin(snap, predicate, offset, length)
	if err != nil {
		return err
	}
	e.snap = snap
	e.win = w
	return nil
}

// ticker accumulates the branchless charge for one evaluation and reports
// whether the accumulated charge is still within Tau.
type ticker struct {
	used uint32
}

func (t *ticker) charge(n uint32) bool {
	t.used += n
	return t.used <= Tau
}

// evalGuards ANDs every guard on the task into a single lane mask,
// branchlessly: a zeroed mask short-circuits the rest of the evaluation
// without a data-dependent branch (spec §4.3).
func evalGuards(task sigma.TaskDescriptor, snap *sigma.Snapshot, t *ticker) uint8 {
	mask := uint8(0xFF)
	for i := uint8(0); i < task.GuardCount; i++ {
		t.charge(chargeDispatch)
		_, ok := snap.GetGuard(task.GuardRefs[i])
		// A guard that fails to resolve zeroes the mask; this is a data
		// artifact, not a branch on evaluation content — the mask AND is
		// unconditional.
		var bit uint8
		if ok {
			bit = 0xFF
		}
		mask &= bit
	}
	return mask
}

// EvalBool evaluates one of the ask/count/compare/validate opcode
// families against the pinned window, charging ticks into the returned
// receipt fields. Returns the boolean result and the Receipt built for
// this evaluation via pkg/receipt.
func (e *Engine) EvalBool(ir IR, ctx receipt.Context) (bool, receipt.Receipt, error) {
	if e.snap == nil {
		return false, receipt.Receipt{}, &kerrors.KernelError{
			Kind: kerrors.KindGuardViolation, Message: "no run window pinned",
		}
	}
	task, _ := e.snap.GetTask(ir.TaskID)
	t := &ticker{}
	mask := evalGuards(task, e.snap, t)

	ctx.Window = e.win
	ctx.Opcode = uint8(ir.Opcode)
	ctx.S, ctx.P, ctx.O, ctx.K = ir.S, ir.P, ir.O, ir.K

	var result bool
	switch ir.Opcode {
	case sigma.OpAskSP:
		result = evalAskSP(e.win, ir, t) && mask != 0
	case sigma.OpAskSPO:
		result = evalAskSPO(e.win, ir, t) && mask != 0
	case sigma.OpCountSP:
		result = evalCountCompare(e.win, ir, countBySubject, t) && mask != 0
	case sigma.OpCountOP:
		result = evalCountCompare(e.win, ir, countByObject, t) && mask != 0
	case sigma.OpCompareObject:
		result = evalCompareObject(e.win, ir, t) && mask != 0
	case sigma.OpValidateSP:
		result = evalAskSP(e.win, ir, t) && mask != 0
	default:
		return false, receipt.Receipt{}, &kerrors.KernelError{
			Kind: kerrors.KindGuardViolation, Message: "unsupported opcode for EvalBool",
		}
	}

	label := opcodeLabel(ir.Opcode)
	if t.used > Tau {
		telemetry.RecordHotEvaluation(label, statusBudgetExceeded, t.used)
		return false, receipt.BuildFailed(ctx, 0, Tau, t.used), nil
	}
	telemetry.RecordHotEvaluation(label, statusOK, t.used)
	r := receipt.Build(ctx, 0, Tau, t.used, uint32(e.win.Length))
	return result, r, nil
}

// EvalSelect8 evaluates OpSelectSP: it selects every lane in the pinned
// window whose subject matches ir.S and copies those triples into out,
// producing up to runwindow.MaxLanes outputs (spec §3 select-by-subject,
// a projection rather than a boolean ask, hence its own entry point
// alongside EvalConstruct8 instead of living in EvalBool's switch).
func (e *Engine) EvalSelect8(ir IR, ctx receipt.Context, out *[runwindow.MaxLanes]sigma.Triple) (uint32, receipt.Receipt, error) {
	if e.snap == nil {
		return 0, receipt.Receipt{}, &kerrors.KernelError{
			Kind: kerrors.KindGuardViolation, Message: "no run window pinned",
		}
	}
	if ir.Opcode != sigma.OpSelectSP {
		return 0, receipt.Receipt{}, &kerrors.KernelError{
			Kind: kerrors.KindGuardViolation, Message: "EvalSelect8 requires OpSelectSP",
		}
	}
	ctx.Window = e.win
	ctx.Opcode = uint8(ir.Opcode)
	ctx.S, ctx.P, ctx.O, ctx.K = ir.S, ir.P, ir.O, ir.K

	t := &ticker{}
	var lanes uint32
	for i := uint8(0); i < e.win.Length; i++ {
		if !t.charge(chargePerLane) {
			break
		}
		if e.win.Subject[i] == ir.S {
			out[lanes] = sigma.Triple{Subject: e.win.Subject[i], Predicate: e.win.Predicate, Object: e.win.Object[i]}
			lanes++
		}
	}

	label := opcodeLabel(ir.Opcode)
	if t.used > Tau {
		telemetry.RecordHotEvaluation(label, statusBudgetExceeded, t.used)
		return 0, receipt.BuildFailed(ctx, 0, Tau, t.used), nil
	}
	telemetry.RecordHotEvaluation(label, statusOK, t.used)
	r := receipt.Build(ctx, 0, Tau, t.used, lanes)
	return lanes, r, nil
}

// EvalConstruct8 evaluates the construct-8 opcode family: it may emit up
// to 8 new triples and returns the lane count actually written.
func (e *Engine) EvalConstruct8(ir IR, ctx receipt.Context, out *[runwindow.MaxLanes]sigma.Triple) (uint32, receipt.Receipt, error) {
	if e.snap == nil {
		return 0, receipt.Receipt{}, &kerrors.KernelError{
			Kind: kerrors.KindGuardViolation, Message: "no run window pinned",
		}
	}
	if ir.Opcode != sigma.OpConstruct8 {
		return 0, receipt.Receipt{}, &kerrors.KernelError{
			Kind: kerrors.KindGuardViolation, Message: "EvalConstruct8 requires OpConstruct8",
		}
	}
	ctx.Window = e.win
	ctx.Opcode = uint8(ir.Opcode)
	ctx.S, ctx.P, ctx.O, ctx.K = ir.S, ir.P, ir.O, ir.K

	t := &ticker{}
	var lanes uint32
	for i := uint8(0); i < e.win.Length; i++ {
		if !t.charge(chargePerLane) {
			break
		}
		out[i] = sigma.Triple{Subject: e.win.Subject[i], Predicate: ir.P, Object: ir.O}
		lanes++
	}

	label := opcodeLabel(ir.Opcode)
	if t.used > Tau {
		telemetry.RecordHotEvaluation(label, statusBudgetExceeded, t.used)
		return 0, receipt.BuildFailed(ctx, 0, Tau, t.used), nil
	}
	telemetry.RecordHotEvaluation(label, statusOK, t.used)
	r := receipt.Build(ctx, 0, Tau, t.used, lanes)
	return lanes, r, nil
}

func evalAskSP(w runwindow.Window, ir IR, t *ticker) bool {
	var mask uint8
	for i := uint8(0); i < w.Length; i++ {
		t.charge(chargePerLane)
		var bit uint8
		if w.Subject[i] == ir.S {
			bit = 1
		}
		mask |= bit << i
	}
	return mask != 0
}

func evalAskSPO(w runwindow.Window, ir IR, t *ticker) bool {
	var mask uint8
	for i := uint8(0); i < w.Length; i++ {
		t.charge(chargePerLane)
		var bit uint8
		if w.Subject[i] == ir.S && w.Object[i] == ir.O {
			bit = 1
		}
		mask |= bit << i
	}
	return mask != 0
}

type countPredicate func(w runwindow.Window, i uint8, ir IR) bool

func countBySubject(w runwindow.Window, i uint8, ir IR) bool { return w.Subject[i] == ir.S }
func countByObject(w runwindow.Window, i uint8, ir IR) bool  { return w.Object[i] == ir.O }

// evalCountCompare computes a population count of the matching lanes via
// a branchless mask + bits.OnesCount8, then compares it against K with
// the requested comparator.
func evalCountCompare(w runwindow.Window, ir IR, pred countPredicate, t *ticker) bool {
	var mask uint8
	for i := uint8(0); i < w.Length; i++ {
		t.charge(chargePerLane)
		var bit uint8
		if pred(w, i, ir) {
			bit = 1
		}
		mask |= bit << i
	}
	count := uint64(bits.OnesCount8(mask))
	return compare(count, ir.K, ir.Comparator)
}

func evalCompareObject(w runwindow.Window, ir IR, t *ticker) bool {
	var mask uint8
	for i := uint8(0); i < w.Length; i++ {
		t.charge(chargePerLane)
		var bit uint8
		if compare(w.Object[i], ir.O, ir.Comparator) {
			bit = 1
		}
		mask |= bit << i
	}
	return mask != 0
}

// compare saturates: values are uint64 so there is no signed-overflow
// concern, and every branch here is on the comparator tag (a closed,
// 5-valued enum), not on evaluated data — matching "branchless on data
// values" by construction: the comparator is part of the instruction, not
// an outcome of evaluation.
func compare(a, b uint64, cmp sigma.Comparator) bool {
	switch cmp {
	case sigma.CmpGE:
		return a >= b
	case sigma.CmpEQ:
		return a == b
	case sigma.CmpLE:
		return a <= b
	case sigma.CmpGT:
		return a > b
	case sigma.CmpLT:
		return a < b
	default:
		return false
	}
}
