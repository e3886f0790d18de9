// Copyright (c) 2024 The Corrosion Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package codegen

import (
	"fmt"
	"math"

	"github.com/y1yang0/corrosion/internal/abi"
	"github.com/y1yang0/corrosion/internal/branch"
	"github.com/y1yang0/corrosion/internal/bytebuf"
	"github.com/y1yang0/corrosion/internal/ir"
	"github.com/y1yang0/corrosion/internal/opstack"
	"github.com/y1yang0/corrosion/internal/types"
	"github.com/y1yang0/corrosion/internal/x86"
)

// scratch3 is a third GPR the legalizer can use transiently alongside
// x86.ScratchInt/x86.ScratchInt2, never live across more than a
// handful of consecutive emits within a single Instr's lowering.
var scratch3 = x86.R10

// walker drives one function's IR stream through internal/opstack's
// bookkeeping and internal/x86's encoder, flattened to this project's
// linear stack-machine IR (there are no basic blocks here, only a flat
// Instr slice and a label-indexed branch fixup table).
type walker struct {
	g   *Generator
	fn  *ir.Func
	as  *x86.Assembler
	dry bool

	stack          *opstack.Stack
	stackAllocSize int
	stackAllocNext int

	frame *frame

	branches *branchState
	returns  branch.Returns

	// ifSnapshots remembers, per branch-fixup label, the stack
	// bookkeeping as it stood right before the arm that label's OpIf
	// guards. Restoring it at the matching OpEndIf makes the other arm
	// (whether reached via OpElse or via the OpGotoEnd+OpEndIf shape
	// assembleShortCircuit uses) allocate the identical slots, so a
	// ternary or short-circuit expression's two arms always commit
	// their result to the same physical location (see opstack.Snapshot).
	ifSnapshots map[int]opstack.Snapshot

	savedRegs []x86.Reg
}

func newWalker(g *Generator, fn *ir.Func, buf *bytebuf.Buffer, dryRun bool) *walker {
	w := &walker{
		g:           g,
		fn:          fn,
		as:          x86.NewAssembler(buf),
		dry:         dryRun,
		stack:       opstack.New(),
		branches:    newBranchState(),
		ifSnapshots: make(map[int]opstack.Snapshot),
	}
	w.savedRegs = calleeGPRList(g.abi.Name())
	if dryRun {
		// The dry run's only job is to reproduce the same sequence of
		// opstack Push/Pop traffic as the real pass so SpillSize and
		// stackAllocSize come out identical; its emitted bytes are
		// discarded, so a placeholder frame only needs to avoid nil
		// derefs in Mem-operand construction, not matching offsets.
		w.frame = newFrame(fn.FrameSize, 4096, 0, len(w.savedRegs))
	}
	return w
}

// calleeGPRList is the set of callee-saved GPRs (beyond rbp/rsp) this
// codegen's prologue preserves verbatim via frame.calleeGPRMem slots,
// independent of which of them internal/opstack hands out as operand
// slots (CalleeSavedGPRs is a fixed subset of either ABI's full list).
func calleeGPRList(abiName string) []x86.Reg {
	if abiName == "win64" {
		return []x86.Reg{x86.RBX, x86.RDI, x86.RSI, x86.R12, x86.R13, x86.R14, x86.R15}
	}
	return []x86.Reg{x86.RBX, x86.R12, x86.R13, x86.R14, x86.R15}
}

func (g *Generator) intArgRegs() []x86.Reg {
	if g.abi.Name() == "win64" {
		return []x86.Reg{x86.RCX, x86.RDX, x86.R8, x86.R9}
	}
	return []x86.Reg{x86.RDI, x86.RSI, x86.RDX, x86.RCX, x86.R8, x86.R9}
}

func (g *Generator) floatArgRegs() []x86.XMMReg {
	n := 8
	if g.abi.Name() == "win64" {
		n = 4
	}
	regs := make([]x86.XMMReg, n)
	for i := range regs {
		regs[i] = x86.XMM(i)
	}
	return regs
}

func paramTypes(fn *ir.Func) []*types.Type {
	out := make([]*types.Type, len(fn.Params))
	for i, p := range fn.Params {
		out[i] = p.Type
	}
	return out
}

// run walks fn.Instrs in order, translating each Instr into machine
// code (or, for a dry run, into the identical opstack bookkeeping with
// throwaway bytes).
func (w *walker) run() error {
	for _, in := range w.fn.Instrs {
		if err := w.step(in); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) step(in ir.Instr) error {
	switch in.Op {
	case ir.OpFunc:
		w.emitPrologue()
	case ir.OpFuncEnd:
		w.emitEpilogue()

	case ir.OpPushI:
		if in.Name != "" {
			// A string literal needs a rodata region to point into,
			// which this backend does not carry yet; it lowers to a
			// null pointer so the surrounding expression still
			// balances the stack.
			w.g.log.WithField("literal", in.Name).Warn("codegen: string literals lower to a null pointer")
		}
		w.stack.PushLiteral(in.Type, in.IVal, 0)
	case ir.OpPushF:
		w.stack.PushLiteral(in.Type, 0, in.FVal)
	case ir.OpPushD:
		w.stack.PushLiteral(in.Type, 0, in.FVal)

	case ir.OpLoad:
		w.opLoad(in)
	case ir.OpLAddr:
		w.as.LeaRegMem(x86.ScratchInt, w.frame.localMem(int(in.IVal), x86.Width64))
		item := w.stack.PushAddress(in.Type)
		w.g.storeAddr(w.as, w.frame, item, x86.ScratchInt)
	case ir.OpLStack:
		w.as.LeaRegMem(x86.ScratchInt, w.frame.stackAllocMem(int(in.IVal), x86.Width64))
		item := w.stack.PushAddress(in.Type)
		w.g.storeAddr(w.as, w.frame, item, x86.ScratchInt)
	case ir.OpStackAlloc:
		off := w.stackAllocNext
		w.stackAllocNext += in.Count
		if w.stackAllocNext > w.stackAllocSize {
			w.stackAllocSize = w.stackAllocNext
		}
		w.as.LeaRegMem(x86.ScratchInt, w.frame.stackAllocMem(off, x86.Width64))
		item := w.stack.PushAddress(in.Type)
		w.g.storeAddr(w.as, w.frame, item, x86.ScratchInt)

	case ir.OpStore:
		w.opStore(in)
	case ir.OpDiscard:
		if in.Type != nil && in.Type.IsVoid() {
			return nil
		}
		w.stack.Pop()

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod, ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpShr:
		w.binaryOp(in)
	case ir.OpAddAgn, ir.OpSubAgn, ir.OpMulAgn, ir.OpDivAgn, ir.OpModAgn,
		ir.OpAndAgn, ir.OpOrAgn, ir.OpXorAgn, ir.OpShlAgn, ir.OpShrAgn:
		w.compoundAssign(in)

	case ir.OpNeg:
		w.opNeg(in)
	case ir.OpBitNot:
		w.opBitNot(in)
	case ir.OpLogNot:
		w.opLogNot(in)

	case ir.OpCmpEq, ir.OpCmpNe, ir.OpCmpGt, ir.OpCmpGe, ir.OpCmpLt, ir.OpCmpLe:
		w.compareOp(in)

	case ir.OpSwp:
		w.stack.Swap()
	case ir.OpCvt:
		w.opCvt(in)
	case ir.OpRval:
		w.opRval(in)

	case ir.OpOffset:
		w.opOffset(in)
	case ir.OpDeref:
		item := w.stack.Pop()
		w.g.loadGPR(w.as, w.frame, item, x86.ScratchInt)
		addr := w.stack.PushAddress(in.Type)
		w.g.storeAddr(w.as, w.frame, addr, x86.ScratchInt)
	case ir.OpIndex:
		w.opIndex(in)

	case ir.OpIf:
		w.opIf(in)
	case ir.OpElse:
		w.branches.branchTo(w.as, in.Label, func() int { return w.as.Jmp() })
	case ir.OpEndIf:
		if snap, ok := w.ifSnapshots[in.Label]; ok {
			w.stack.Restore(snap)
			delete(w.ifSnapshots, in.Label)
		}
		w.branches.define(w.as, in.Label, w.as.Buf.Len())
	case ir.OpGotoTest, ir.OpGotoEnd:
		w.branches.branchTo(w.as, in.Label, func() int { return w.as.Jmp() })
	case ir.OpLoopTest:
		w.branches.define(w.as, in.Label, w.as.Buf.Len())

	case ir.OpCall:
		return w.opCall(in)
	case ir.OpRet:
		w.opRet(in)

	default:
		return fmt.Errorf("codegen: unhandled op %s", in.Op)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Prologue / epilogue

func (w *walker) emitPrologue() {
	as := w.as
	as.Push(x86.RBP)
	as.MovRegReg(x86.RBP, x86.RSP)
	as.AluRegImm(x86.AluSub, x86.RSP, int64(w.frame.reserve))
	for i, r := range w.savedRegs {
		as.MovMemReg(w.frame.calleeGPRMem(i), r)
	}

	slots := w.g.abi.ParamSlots(paramTypes(w.fn))
	intRegs, floatRegs := w.g.intArgRegs(), w.g.floatArgRegs()

	// Overflow slots are consumed in parameter order regardless of
	// whether the parameter is a spilled scalar or a by-reference
	// aggregate pointer, so each one's slot index is fixed up front.
	stackIdxOf := make([]int, len(slots))
	nextStack := 0
	for i, slot := range slots {
		if !slot.InRegister {
			stackIdxOf[i] = nextStack
			nextStack++
		}
	}

	// Pass 1: every scalar/float parameter, whether register- or
	// stack-resident, is read and stored to its frame slot before any
	// by-reference (aggregate) parameter's copy touches rdi/rsi/rcx —
	// all three are argument registers on SysV, and rcx is on Win64, so a
	// by-reference copy must never run until every other parameter's
	// own register has already been consumed.
	for i, slot := range slots {
		if slot.ByReference {
			continue
		}
		p := w.fn.Params[i]
		switch {
		case slot.IsFloat:
			as.MovMemXmm(w.frame.localMem(p.Offset, x86.Width64), floatRegs[slot.RegIndex], isDouble(p.Type))
		case slot.InRegister:
			width := widthOf(p.Type)
			as.MovMemReg(w.frame.localMem(p.Offset, width), intRegs[slot.RegIndex].Cast(width))
		default:
			width := widthOf(p.Type)
			off := 16 + w.g.abi.ShadowSpace() + stackIdxOf[i]*8
			as.MovRegMem(x86.ScratchInt.Cast(width), x86.Mem{W: width, Base: x86.RBP, Disp: int32(off)})
			as.MovMemReg(w.frame.localMem(p.Offset, width), x86.ScratchInt.Cast(width))
		}
	}

	// Pass 2: by-reference aggregate parameters, copied byte-for-byte
	// into their home frame slot via rep movsb.
	for i, slot := range slots {
		if !slot.ByReference {
			continue
		}
		p := w.fn.Params[i]
		if slot.InRegister {
			as.MovRegReg(scratch3, intRegs[slot.RegIndex])
		} else {
			off := 16 + w.g.abi.ShadowSpace() + stackIdxOf[i]*8
			as.MovRegMem(scratch3, x86.Mem{W: x86.Width64, Base: x86.RBP, Disp: int32(off)})
		}
		as.LeaRegMem(x86.RDI, w.frame.localMem(p.Offset, x86.Width64))
		as.MovRegReg(x86.RSI, scratch3)
		as.MovRegImm(x86.RCX, int64(p.Type.Size))
		as.RepMovs(1)
	}
}

func (w *walker) emitEpilogue() {
	as := w.as
	here := as.Buf.Len()
	for _, p := range w.returns.Resolve() {
		as.PatchRel32(p.PatchAt, here)
	}
	for i := len(w.savedRegs) - 1; i >= 0; i-- {
		as.MovRegMem(w.savedRegs[i], w.frame.calleeGPRMem(i))
	}
	as.Leave()
	as.Ret()
}

func (w *walker) opRet(in ir.Instr) {
	if in.Count == 1 {
		val := w.stack.Pop()
		if in.Type.IsFloat() {
			w.g.loadXMM(w.as, w.frame, val, x86.XMM(0), isDouble(in.Type))
		} else {
			w.g.loadGPR(w.as, w.frame, val, x86.RAX.Cast(widthOf(in.Type)))
		}
	}
	patchAt := w.as.Jmp()
	w.returns.Push(branch.Pending{PatchAt: patchAt})
}

// -----------------------------------------------------------------------------
// Loads / stores / address arithmetic

func (w *walker) opLoad(in ir.Instr) {
	if in.Type.IsAggregate() {
		// An aggregate value never rides in a register; its "rvalue"
		// is the storage itself. A named load pushes the lvalue, an
		// anonymous one leaves the already-pushed address in place.
		if in.Name != "" {
			w.stack.PushLvalue(in.Type, in.Name, int(in.IVal))
		}
		return
	}
	var addr opstack.StackItem
	if in.Name != "" {
		addr = opstack.StackItem{Kind: opstack.Lvalue, Type: in.Type, Offset: int(in.IVal), Name: in.Name}
	} else {
		addr = w.stack.Pop()
	}
	if in.Type.IsFloat() {
		double := isDouble(in.Type)
		w.g.loadXMM(w.as, w.frame, addr, x86.ScratchXMM[0], double)
		item := w.stack.PushRvalue(in.Type)
		w.g.storeXMM(w.as, w.frame, item, x86.ScratchXMM[0], double)
		return
	}
	width := widthOf(in.Type)
	w.g.loadGPR(w.as, w.frame, addr, x86.ScratchInt.Cast(width))
	item := w.stack.PushRvalue(in.Type)
	w.g.storeGPR(w.as, w.frame, item, x86.ScratchInt.Cast(width))
}

func (w *walker) opStore(in ir.Instr) {
	val := w.stack.Pop()
	addr := w.stack.Pop()

	switch {
	case in.Type.IsFloat():
		double := isDouble(in.Type)
		w.g.loadXMM(w.as, w.frame, val, x86.ScratchXMM[0], double)
		w.g.storeValueAtXMM(w.as, w.frame, addr, x86.ScratchXMM[0], double)
		item := w.stack.PushRvalue(in.Type)
		w.g.storeXMM(w.as, w.frame, item, x86.ScratchXMM[0], double)
	case in.Type.IsAggregate():
		w.g.loadAddr(w.as, w.frame, val, x86.RSI)
		w.g.loadAddr(w.as, w.frame, addr, x86.RDI)
		w.as.MovRegImm(x86.RCX, int64(in.Type.Size))
		w.as.RepMovs(1)
		item := w.stack.PushAddress(in.Type)
		w.g.loadAddr(w.as, w.frame, addr, x86.ScratchInt)
		w.g.storeAddr(w.as, w.frame, item, x86.ScratchInt)
	default:
		width := widthOf(in.Type)
		w.g.loadGPR(w.as, w.frame, val, x86.ScratchInt.Cast(width))
		w.g.storeValueAt(w.as, w.frame, addr, x86.ScratchInt.Cast(width))
		item := w.stack.PushRvalue(in.Type)
		w.g.storeGPR(w.as, w.frame, item, x86.ScratchInt.Cast(width))
	}
}

func (w *walker) opOffset(in ir.Instr) {
	base := w.stack.Pop()
	w.g.loadAddr(w.as, w.frame, base, x86.ScratchInt)
	w.as.AluRegImm(x86.AluAdd, x86.ScratchInt, in.IVal)
	item := w.stack.PushAddress(in.Type)
	w.g.storeAddr(w.as, w.frame, item, x86.ScratchInt)
}

func (w *walker) opIndex(in ir.Instr) {
	idx := w.stack.Pop()
	base := w.stack.Pop()
	w.g.loadGPR(w.as, w.frame, idx, x86.ScratchInt2)
	w.as.MovRegImm(scratch3, in.IVal)
	w.as.ImulRegReg(x86.ScratchInt2, scratch3)
	w.g.loadAddr(w.as, w.frame, base, x86.ScratchInt)
	w.as.AluRegReg(x86.AluAdd, x86.ScratchInt, x86.ScratchInt2)
	item := w.stack.PushAddress(in.Type)
	w.g.storeAddr(w.as, w.frame, item, x86.ScratchInt)
}

// -----------------------------------------------------------------------------
// Control flow

func (w *walker) opIf(in ir.Instr) {
	cond := w.stack.Pop()
	w.g.loadGPR(w.as, w.frame, cond, x86.ScratchInt.Cast(widthOf(cond.Type)))
	w.as.TestRegReg(x86.ScratchInt.Cast(widthOf(cond.Type)), x86.ScratchInt.Cast(widthOf(cond.Type)))
	w.ifSnapshots[in.Label] = w.stack.Save()
	w.branches.branchTo(w.as, in.Label, func() int { return w.as.Jcc(x86.JccE) })
}

// -----------------------------------------------------------------------------
// Unary / conversion ops

func (w *walker) opNeg(in ir.Instr) {
	item := w.stack.Pop()
	if in.Type.IsFloat() {
		double := isDouble(in.Type)
		w.g.loadXMM(w.as, w.frame, item, x86.ScratchXMM[0], double)
		var mask uint64 = 1 << 31
		if double {
			mask = 1 << 63
		}
		w.as.MovRegImm(x86.ScratchInt, int64(mask))
		w.as.MovqGprToXmm(x86.ScratchXMM[1], x86.ScratchInt)
		w.as.XorpsXmmXmm(x86.ScratchXMM[0], x86.ScratchXMM[1])
		newItem := w.stack.PushRvalue(in.Type)
		w.g.storeXMM(w.as, w.frame, newItem, x86.ScratchXMM[0], double)
		return
	}
	width := widthOf(in.Type)
	w.g.loadGPR(w.as, w.frame, item, x86.ScratchInt.Cast(width))
	w.as.NegReg(x86.ScratchInt.Cast(width))
	newItem := w.stack.PushRvalue(in.Type)
	w.g.storeGPR(w.as, w.frame, newItem, x86.ScratchInt.Cast(width))
}

func (w *walker) opBitNot(in ir.Instr) {
	item := w.stack.Pop()
	width := widthOf(in.Type)
	w.g.loadGPR(w.as, w.frame, item, x86.ScratchInt.Cast(width))
	w.as.NotReg(x86.ScratchInt.Cast(width))
	newItem := w.stack.PushRvalue(in.Type)
	w.g.storeGPR(w.as, w.frame, newItem, x86.ScratchInt.Cast(width))
}

func (w *walker) opLogNot(in ir.Instr) {
	item := w.stack.Pop()
	if item.Type != nil && item.Type.IsFloat() {
		double := isDouble(item.Type)
		w.g.loadXMM(w.as, w.frame, item, x86.ScratchXMM[0], double)
		w.as.XorpsXmmXmm(x86.ScratchXMM[1], x86.ScratchXMM[1])
		w.as.UcomiXmmXmm(x86.ScratchXMM[0], x86.ScratchXMM[1], double)
	} else {
		width := widthOf(item.Type)
		w.g.loadGPR(w.as, w.frame, item, x86.ScratchInt.Cast(width))
		w.as.TestRegReg(x86.ScratchInt.Cast(width), x86.ScratchInt.Cast(width))
	}
	w.as.SetCC(x86.CondE, x86.AL)
	w.as.MovzxRegReg(x86.EAX, x86.AL)
	newItem := w.stack.PushRvalue(types.Int32)
	w.g.storeGPR(w.as, w.frame, newItem, x86.EAX)
}

// opRval forces the top of stack into a freshly allocated register
// slot. Emitted at control-flow joins (ternary arms, short-circuit
// arms): each arm runs this against the same pre-branch bookkeeping,
// so both commit their value to the identical physical location no
// matter what shape (literal, lvalue, rvalue) the arm's expression
// left behind.
func (w *walker) opRval(in ir.Instr) {
	item := w.stack.Pop()
	switch {
	case in.Type.IsFloat():
		double := isDouble(in.Type)
		w.g.loadXMM(w.as, w.frame, item, x86.ScratchXMM[0], double)
		newItem := w.stack.PushRvalue(in.Type)
		w.g.storeXMM(w.as, w.frame, newItem, x86.ScratchXMM[0], double)
	case in.Type.IsAggregate():
		w.g.loadAddr(w.as, w.frame, item, x86.ScratchInt)
		newItem := w.stack.PushAddress(in.Type)
		w.g.storeAddr(w.as, w.frame, newItem, x86.ScratchInt)
	default:
		width := widthOf(in.Type)
		w.g.loadGPR(w.as, w.frame, item, x86.ScratchInt.Cast(width))
		newItem := w.stack.PushRvalue(in.Type)
		w.g.storeGPR(w.as, w.frame, newItem, x86.ScratchInt.Cast(width))
	}
}

func (w *walker) opCvt(in ir.Instr) {
	item := w.stack.Pop()
	src, dst := in.Type, in.Type2
	switch {
	case src.IsFloat() && dst.IsFloat():
		sDouble, dDouble := isDouble(src), isDouble(dst)
		w.g.loadXMM(w.as, w.frame, item, x86.ScratchXMM[0], sDouble)
		if sDouble != dDouble {
			w.as.CvtFloatWidth(x86.ScratchXMM[0], x86.ScratchXMM[0], dDouble)
		}
		newItem := w.stack.PushRvalue(dst)
		w.g.storeXMM(w.as, w.frame, newItem, x86.ScratchXMM[0], dDouble)
	case src.IsFloat() && !dst.IsFloat():
		w.g.loadXMM(w.as, w.frame, item, x86.ScratchXMM[0], isDouble(src))
		w.as.CvttFloatToSi(x86.ScratchInt.Cast(widthOf(dst)), x86.ScratchXMM[0], isDouble(src))
		newItem := w.stack.PushRvalue(dst)
		w.g.storeGPR(w.as, w.frame, newItem, x86.ScratchInt.Cast(widthOf(dst)))
	case !src.IsFloat() && dst.IsFloat():
		srcW := widthOf(src)
		w.g.loadGPR(w.as, w.frame, item, x86.ScratchInt.Cast(srcW))
		if srcW < x86.Width32 {
			// cvtsi2ss/sd only takes 32/64-bit integer sources.
			if src.IsUnsigned {
				w.as.MovzxRegReg(x86.ScratchInt.Cast(x86.Width32), x86.ScratchInt.Cast(srcW))
			} else {
				w.as.MovsxRegReg(x86.ScratchInt.Cast(x86.Width32), x86.ScratchInt.Cast(srcW))
			}
			srcW = x86.Width32
		}
		w.as.CvtsiToFloat(x86.ScratchXMM[0], x86.ScratchInt.Cast(srcW), isDouble(dst))
		newItem := w.stack.PushRvalue(dst)
		w.g.storeXMM(w.as, w.frame, newItem, x86.ScratchXMM[0], isDouble(dst))
	default:
		srcW, dstW := widthOf(src), widthOf(dst)
		w.g.loadGPR(w.as, w.frame, item, x86.ScratchInt.Cast(srcW))
		if dstW > srcW {
			switch {
			case srcW == x86.Width32 && src.IsUnsigned:
				// A 32-bit write already zero-extends to 64 bits
				// architecturally; nothing further to emit.
			case src.IsUnsigned:
				w.as.MovzxRegReg(x86.ScratchInt.Cast(dstW), x86.ScratchInt.Cast(srcW))
			default:
				w.as.MovsxRegReg(x86.ScratchInt.Cast(dstW), x86.ScratchInt.Cast(srcW))
			}
		}
		newItem := w.stack.PushRvalue(dst)
		w.g.storeGPR(w.as, w.frame, newItem, x86.ScratchInt.Cast(dstW))
	}
}

// -----------------------------------------------------------------------------
// Binary arithmetic / comparison

func aluOpFor(op ir.Op) (x86.AluOp, bool) {
	switch op {
	case ir.OpAdd:
		return x86.AluAdd, true
	case ir.OpSub:
		return x86.AluSub, true
	case ir.OpAnd:
		return x86.AluAnd, true
	case ir.OpOr:
		return x86.AluOr, true
	case ir.OpXor:
		return x86.AluXor, true
	}
	return 0, false
}

func (w *walker) binaryOp(in ir.Instr) {
	right := w.stack.Pop()
	left := w.stack.Pop()
	if in.Type.IsFloat() {
		w.floatBinary(in, left, right)
		return
	}
	switch in.Op {
	case ir.OpMul:
		w.intMul(in, left, right)
	case ir.OpDiv, ir.OpMod:
		w.intDivMod(in, left, right, in.Op == ir.OpMod)
	case ir.OpShl, ir.OpShr:
		w.intShift(in, left, right)
	default:
		width := widthOf(in.Type)
		op, ok := aluOpFor(in.Op)
		if !ok {
			op = x86.AluAdd
		}
		dst := x86.ScratchInt.Cast(width)
		w.g.loadGPR(w.as, w.frame, left, dst)
		rhs := w.g.operandFor(w.as, w.frame, right, width)
		w.as.Emit(op.Mnemonic(), dst, rhs)
		newItem := w.stack.PushRvalue(in.Type)
		w.g.storeGPR(w.as, w.frame, newItem, dst)
	}
}

func (w *walker) floatBinary(in ir.Instr, left, right opstack.StackItem) {
	double := isDouble(in.Type)
	w.g.loadXMM(w.as, w.frame, left, x86.ScratchXMM[0], double)
	w.g.loadXMM(w.as, w.frame, right, x86.ScratchXMM[1], double)
	var op x86.FloatAluOp
	switch in.Op {
	case ir.OpSub:
		op = x86.FSub
	case ir.OpMul:
		op = x86.FMul
	case ir.OpDiv:
		op = x86.FDiv
	default:
		op = x86.FAdd
	}
	w.as.FAluXmmXmm(op, x86.ScratchXMM[0], x86.ScratchXMM[1], double)
	newItem := w.stack.PushRvalue(in.Type)
	w.g.storeXMM(w.as, w.frame, newItem, x86.ScratchXMM[0], double)
}

func (w *walker) intMul(in ir.Instr, left, right opstack.StackItem) {
	width := widthOf(in.Type)
	w.g.loadGPR(w.as, w.frame, left, x86.ScratchInt.Cast(width))
	w.g.loadGPR(w.as, w.frame, right, x86.ScratchInt2.Cast(width))
	w.as.ImulRegReg(x86.ScratchInt.Cast(width), x86.ScratchInt2.Cast(width))
	newItem := w.stack.PushRvalue(in.Type)
	w.g.storeGPR(w.as, w.frame, newItem, x86.ScratchInt.Cast(width))
}

func (w *walker) intDivMod(in ir.Instr, left, right opstack.StackItem, mod bool) {
	width := widthOf(in.Type)
	w.g.loadGPR(w.as, w.frame, right, x86.ScratchInt2.Cast(width))
	w.g.loadGPR(w.as, w.frame, left, x86.RAX.Cast(width))
	if in.Type.IsUnsigned {
		w.as.MovRegImm(x86.RDX.Cast(width), 0)
		w.as.DivReg(x86.ScratchInt2.Cast(width))
	} else {
		if width == x86.Width64 {
			w.as.Cqo()
		} else {
			w.as.Cdq()
		}
		w.as.IdivReg(x86.ScratchInt2.Cast(width))
	}
	resultReg := x86.RAX.Cast(width)
	if mod {
		resultReg = x86.RDX.Cast(width)
	}
	newItem := w.stack.PushRvalue(in.Type)
	w.g.storeGPR(w.as, w.frame, newItem, resultReg)
}

func (w *walker) intShift(in ir.Instr, left, right opstack.StackItem) {
	width := widthOf(in.Type)
	w.g.loadGPR(w.as, w.frame, left, x86.ScratchInt.Cast(width))
	w.g.loadGPR(w.as, w.frame, right, x86.RCX)
	kind := x86.ShiftLeft
	if in.Op == ir.OpShr {
		if in.Type.IsUnsigned {
			kind = x86.ShiftRight
		} else {
			kind = x86.ShiftArithRight
		}
	}
	w.as.ShiftRegCL(kind, x86.ScratchInt.Cast(width))
	newItem := w.stack.PushRvalue(in.Type)
	w.g.storeGPR(w.as, w.frame, newItem, x86.ScratchInt.Cast(width))
}

func intCondFor(op ir.Op, unsigned bool) x86.CondCode {
	switch op {
	case ir.OpCmpEq:
		return x86.CondE
	case ir.OpCmpNe:
		return x86.CondNE
	case ir.OpCmpGt:
		if unsigned {
			return x86.CondA
		}
		return x86.CondG
	case ir.OpCmpGe:
		if unsigned {
			return x86.CondAE
		}
		return x86.CondGE
	case ir.OpCmpLt:
		if unsigned {
			return x86.CondB
		}
		return x86.CondL
	case ir.OpCmpLe:
		if unsigned {
			return x86.CondBE
		}
		return x86.CondLE
	}
	return x86.CondE
}

func floatCondFor(op ir.Op) x86.CondCode {
	switch op {
	case ir.OpCmpNe:
		return x86.CondNE
	case ir.OpCmpGt:
		return x86.CondA
	case ir.OpCmpGe:
		return x86.CondAE
	case ir.OpCmpLt:
		return x86.CondB
	case ir.OpCmpLe:
		return x86.CondBE
	default:
		return x86.CondE
	}
}

func (w *walker) compareOp(in ir.Instr) {
	right := w.stack.Pop()
	left := w.stack.Pop()
	var cc x86.CondCode
	if in.Type.IsFloat() {
		double := isDouble(in.Type)
		w.g.loadXMM(w.as, w.frame, left, x86.ScratchXMM[0], double)
		w.g.loadXMM(w.as, w.frame, right, x86.ScratchXMM[1], double)
		w.as.UcomiXmmXmm(x86.ScratchXMM[0], x86.ScratchXMM[1], double)
		cc = floatCondFor(in.Op)
	} else {
		width := widthOf(in.Type)
		w.g.loadGPR(w.as, w.frame, left, x86.ScratchInt.Cast(width))
		w.g.loadGPR(w.as, w.frame, right, x86.ScratchInt2.Cast(width))
		w.as.CmpRegReg(x86.ScratchInt.Cast(width), x86.ScratchInt2.Cast(width))
		unsigned := in.Type.IsUnsigned || in.Type.Kind == types.KindPointer
		cc = intCondFor(in.Op, unsigned)
	}
	w.as.SetCC(cc, x86.AL)
	w.as.MovzxRegReg(x86.EAX, x86.AL)
	newItem := w.stack.PushRvalue(types.Int32)
	w.g.storeGPR(w.as, w.frame, newItem, x86.EAX)
}

// -----------------------------------------------------------------------------
// Compound assignment (OpXxxAgn), also the lowering point for ++/--:
// IVal!=0 marks an increment/decrement by that constant with no rhs on
// the stack; IVal==0 marks a plain `lvalue OP= rhs` with the rhs
// already pushed above the address assembleAssign emitted.

func (w *walker) compoundAssign(in ir.Instr) {
	isInc := in.IVal != 0
	var rhs opstack.StackItem
	if !isInc {
		rhs = w.stack.Pop()
	}
	addr := w.stack.Pop()
	plain := in.Op.PlainOpFor()

	if in.Type.IsFloat() {
		w.floatCompoundAssign(in, plain, addr, rhs, isInc)
		return
	}

	width := widthOf(in.Type)
	w.g.loadGPR(w.as, w.frame, addr, x86.ScratchInt.Cast(width))
	oldReg := scratch3.Cast(width)
	w.as.MovRegReg(oldReg, x86.ScratchInt.Cast(width))

	switch plain {
	case ir.OpMul:
		w.loadRhsOrImm(in, rhs, isInc, width)
		w.as.ImulRegReg(x86.ScratchInt.Cast(width), x86.ScratchInt2.Cast(width))
	case ir.OpDiv, ir.OpMod:
		w.loadRhsOrImm(in, rhs, isInc, width)
		if in.Type.IsUnsigned {
			w.as.MovRegImm(x86.RDX.Cast(width), 0)
			w.as.DivReg(x86.ScratchInt2.Cast(width))
		} else {
			if width == x86.Width64 {
				w.as.Cqo()
			} else {
				w.as.Cdq()
			}
			w.as.IdivReg(x86.ScratchInt2.Cast(width))
		}
		if plain == ir.OpMod {
			w.as.MovRegReg(x86.ScratchInt.Cast(width), x86.RDX.Cast(width))
		}
	case ir.OpShl, ir.OpShr:
		if isInc {
			w.as.MovRegImm(x86.RCX, in.IVal)
		} else {
			w.g.loadGPR(w.as, w.frame, rhs, x86.RCX)
		}
		kind := x86.ShiftLeft
		if plain == ir.OpShr {
			if in.Type.IsUnsigned {
				kind = x86.ShiftRight
			} else {
				kind = x86.ShiftArithRight
			}
		}
		w.as.ShiftRegCL(kind, x86.ScratchInt.Cast(width))
	default:
		op, ok := aluOpFor(plain)
		if !ok {
			op = x86.AluAdd
		}
		var rop x86.Operand
		if isInc {
			rop = x86.Imm{W: width, Value: in.IVal}
		} else {
			rop = w.g.operandFor(w.as, w.frame, rhs, width)
		}
		w.as.Emit(op.Mnemonic(), x86.ScratchInt.Cast(width), rop)
	}

	w.g.storeValueAt(w.as, w.frame, addr, x86.ScratchInt.Cast(width))

	resultReg := x86.ScratchInt.Cast(width)
	if in.Flag {
		resultReg = oldReg
	}
	newItem := w.stack.PushRvalue(in.Type)
	w.g.storeGPR(w.as, w.frame, newItem, resultReg)
}

func (w *walker) loadRhsOrImm(in ir.Instr, rhs opstack.StackItem, isInc bool, width x86.Width) {
	if isInc {
		w.as.MovRegImm(x86.ScratchInt2.Cast(width), in.IVal)
		return
	}
	w.g.loadGPR(w.as, w.frame, rhs, x86.ScratchInt2.Cast(width))
}

func (w *walker) floatCompoundAssign(in ir.Instr, plain ir.Op, addr, rhs opstack.StackItem, isInc bool) {
	double := isDouble(in.Type)
	w.g.loadXMM(w.as, w.frame, addr, x86.ScratchXMM[0], double)
	if isInc {
		var bits uint64
		if double {
			bits = math.Float64bits(float64(in.IVal))
		} else {
			bits = uint64(math.Float32bits(float32(in.IVal)))
		}
		w.as.MovRegImm(x86.ScratchInt, int64(bits))
		w.as.MovqGprToXmm(x86.ScratchXMM[1], x86.ScratchInt)
	} else {
		w.g.loadXMM(w.as, w.frame, rhs, x86.ScratchXMM[1], double)
	}
	var op x86.FloatAluOp
	switch plain {
	case ir.OpSub:
		op = x86.FSub
	case ir.OpMul:
		op = x86.FMul
	case ir.OpDiv:
		op = x86.FDiv
	default:
		op = x86.FAdd
	}
	w.as.FAluXmmXmm(op, x86.ScratchXMM[0], x86.ScratchXMM[1], double)
	w.g.storeValueAtXMM(w.as, w.frame, addr, x86.ScratchXMM[0], double)
	newItem := w.stack.PushRvalue(in.Type)
	w.g.storeXMM(w.as, w.frame, newItem, x86.ScratchXMM[0], double)
}

// -----------------------------------------------------------------------------
// Calls

// assignArgRegs re-derives each argument's register-bank index, since
// abi.Arg carries only the eightbyte Class, not a RegIndex: SysV counts
// integer and floating arguments in two independent left-to-right
// counters (a by-reference aggregate's hidden pointer consumes an
// integer slot too), while Win64 assigns the same positional index i
// to whichever bank the argument's type selects.
func (w *walker) assignArgRegs(plan abi.CallPlan) []int {
	idx := make([]int, len(plan.Args))
	if w.g.abi.Name() == "win64" {
		base := 0
		if plan.Ret.IsBig {
			base = 1
		}
		for i := range plan.Args {
			idx[i] = i + base
		}
		return idx
	}
	intIdx, floatIdx := 0, 0
	if plan.Ret.IsBig {
		intIdx = 1
	}
	for i, a := range plan.Args {
		switch {
		case a.IsBig && a.PtrInRegister:
			idx[i] = intIdx
			intIdx++
		case a.Class == abi.Integer:
			idx[i] = intIdx
			intIdx++
		case a.Class == abi.Floating:
			idx[i] = floatIdx
			floatIdx++
		}
	}
	return idx
}

func (w *walker) opCall(in ir.Instr) error {
	g := w.g
	args := make([]opstack.StackItem, in.Count)
	for i := in.Count - 1; i >= 0; i-- {
		args[i] = w.stack.Pop()
	}
	argTypes := make([]*types.Type, in.Count)
	for i, a := range args {
		argTypes[i] = a.Type
	}
	retType := in.Type
	if retType == nil {
		retType = types.Void
	}
	sig := g.sigs[in.Name]
	plan := g.abi.Classify(retType, argTypes, sig.Variadic)
	regIdx := w.assignArgRegs(plan)

	// A MEMORY-class return gets a caller-allocated buffer in this
	// frame's stackalloc area: the callee receives its address in the
	// first integer argument register (which assignArgRegs already
	// reserved) and writes the value through it. The buffer is
	// rbp-relative so it survives releasing the call's rsp area.
	retBufOff := 0
	if plan.Ret.IsBig {
		retBufOff = w.stackAllocNext
		w.stackAllocNext += (retType.Size + 7) &^ 7
		if w.stackAllocNext > w.stackAllocSize {
			w.stackAllocSize = w.stackAllocNext
		}
	}

	// SysV has no callee-saved XMM register at all; any operand-stack
	// value still live in one of opstack's XMM slots must be spilled
	// to its fixed call-spill cell before the argument registers (some
	// of which alias the same xmm0-7 bank) are loaded, and reloaded
	// once the callee returns.
	saveXMM := g.abi.Name() != "win64"
	var liveXMM []int
	if saveXMM {
		liveXMM = w.stack.LiveXMMSlots()
		for _, slot := range liveXMM {
			w.as.MovMemXmm(w.frame.xmmCallSpillMem(slot), x86.CalleeSavedXMM[slot], true)
		}
	}

	total := align16(plan.StackSize + g.abi.ShadowSpace())
	if total > 0 {
		w.as.AluRegImm(x86.AluSub, x86.RSP, int64(total))
	}

	intRegs, floatRegs := g.intArgRegs(), g.floatArgRegs()

	// Pass 1: everything that lands in the reserved stack area —
	// staged copies of by-reference aggregates (whose rep movs
	// clobbers rdi/rsi/rcx) and overflow scalars. No argument
	// register is live yet, so the clobbering is free.
	overflowCursor := 0
	for i, a := range plan.Args {
		item := args[i]
		switch {
		case a.IsBig:
			w.g.loadAddr(w.as, w.frame, item, x86.RSI)
			w.as.LeaRegMem(x86.RDI, x86.Mem{W: x86.Width64, Base: x86.RSP, Disp: int32(g.abi.ShadowSpace() + a.StackOffset)})
			w.as.MovRegImm(x86.RCX, int64(a.Type.Size))
			w.as.RepMovs(1)
			if !a.PtrInRegister {
				off := g.abi.ShadowSpace() + overflowCursor*8
				overflowCursor++
				w.as.MovMemReg(x86.Mem{W: x86.Width64, Base: x86.RSP, Disp: int32(off)}, x86.RDI)
			}
		case a.Class == abi.Memory:
			off := g.abi.ShadowSpace() + overflowCursor*8
			overflowCursor++
			if item.Type != nil && item.Type.IsFloat() {
				double := isDouble(item.Type)
				w.g.loadXMM(w.as, w.frame, item, x86.ScratchXMM[0], double)
				w.as.MovMemXmm(x86.Mem{W: x86.Width64, Base: x86.RSP, Disp: int32(off)}, x86.ScratchXMM[0], double)
			} else {
				width := widthOf(item.Type)
				w.g.loadGPR(w.as, w.frame, item, x86.ScratchInt.Cast(width))
				w.as.MovMemReg(x86.Mem{W: width, Base: x86.RSP, Disp: int32(off)}, x86.ScratchInt.Cast(width))
			}
		}
	}

	// Pass 2: the register-borne arguments, plus the hidden return
	// pointer. Sources live in callee-saved slots, frame storage, or
	// literals, never in an argument register, so fill order does not
	// matter here; a staged aggregate's hidden pointer is re-derived
	// with a plain lea.
	if plan.Ret.IsBig {
		w.as.LeaRegMem(intRegs[0], w.frame.stackAllocMem(retBufOff, x86.Width64))
	}
	for i, a := range plan.Args {
		item := args[i]
		switch {
		case a.IsBig && a.PtrInRegister:
			w.as.LeaRegMem(intRegs[regIdx[i]], x86.Mem{W: x86.Width64, Base: x86.RSP, Disp: int32(g.abi.ShadowSpace() + a.StackOffset)})
		case a.Class == abi.Floating:
			w.g.loadXMM(w.as, w.frame, item, floatRegs[regIdx[i]], isDouble(item.Type))
		case a.Class == abi.Integer:
			dst := intRegs[regIdx[i]]
			if item.Type != nil && item.Type.Kind == types.KindPointer {
				w.g.loadAddr(w.as, w.frame, item, dst)
			} else {
				w.g.loadGPR(w.as, w.frame, item, dst.Cast(widthOf(item.Type)))
			}
		}
	}
	if plan.HasVarargs {
		w.as.MovRegImm(x86.RAX.Cast(x86.Width8), int64(plan.FloatVarCnt))
	}

	patchAt := w.as.CallRel()
	if off, ok := g.funcOffset[in.Name]; ok {
		w.as.PatchRel32(patchAt, off)
	} else {
		g.pending = append(g.pending, pendingCall{patchAt: patchAt, callee: in.Name})
	}

	if total > 0 {
		w.as.AluRegImm(x86.AluAdd, x86.RSP, int64(total))
	}

	if saveXMM {
		for _, slot := range liveXMM {
			w.as.MovXmmMem(x86.CalleeSavedXMM[slot], w.frame.xmmCallSpillMem(slot), true)
		}
	}

	switch {
	case retType.IsVoid():
	case plan.Ret.IsBig:
		// The callee wrote the value through the hidden pointer; what
		// the expression yields is the buffer's address.
		w.as.LeaRegMem(x86.ScratchInt, w.frame.stackAllocMem(retBufOff, x86.Width64))
		item := w.stack.PushAddress(retType)
		w.g.storeAddr(w.as, w.frame, item, x86.ScratchInt)
	case retType.IsFloat():
		newItem := w.stack.PushRvalue(retType)
		w.g.storeXMM(w.as, w.frame, newItem, x86.XMM(0), isDouble(retType))
	default:
		newItem := w.stack.PushRvalue(retType)
		w.g.storeGPR(w.as, w.frame, newItem, x86.RAX.Cast(widthOf(retType)))
	}
	return nil
}
