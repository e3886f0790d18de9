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
	"math"

	"github.com/y1yang0/corrosion/internal/opstack"
	"github.com/y1yang0/corrosion/internal/types"
	"github.com/y1yang0/corrosion/internal/x86"
)

// widthOf picks the GPR operand width a value of t is carried at.
// Floats never occupy a GPR width slot (they live in XMM registers,
// always addressed at 64 bits per XMMReg.Width()), so only the
// non-float arms matter there.
func widthOf(t *types.Type) x86.Width {
	if t == nil {
		return x86.Width32
	}
	switch t.Kind {
	case types.KindInt8:
		return x86.Width8
	case types.KindInt16:
		return x86.Width16
	case types.KindInt32:
		return x86.Width32
	default:
		return x86.Width64
	}
}

func isDouble(t *types.Type) bool { return t != nil && t.Kind == types.KindFloat64 }

// loc is where a StackItem's value currently lives, resolved against
// a function's frame: either a register (GPR or XMM) or a memory
// operand (a spill cell or, for Lvalue/LvalueAbs items, the location
// itself).
type loc struct {
	inReg bool
	isXMM bool
	reg   x86.Reg
	xmm   x86.XMMReg
	mem   x86.Mem
}

// rvalueLoc resolves an opstack.Rvalue item to its register or spill
// cell, per the slot numbering opstack.Stack.PushRvalue assigned.
func (fr *frame) rvalueLoc(it opstack.StackItem) loc {
	if it.Class == opstack.XMM {
		if it.Spilled {
			return loc{isXMM: true, mem: fr.spillMem(it.SpillOff, x86.Width64)}
		}
		return loc{isXMM: true, inReg: true, xmm: x86.CalleeSavedXMM[it.Slot]}
	}
	w := widthOf(it.Type)
	if it.Spilled {
		return loc{mem: fr.spillMem(it.SpillOff, w)}
	}
	return loc{inReg: true, reg: x86.CalleeSavedGPRs[it.Slot].Cast(w)}
}

// addrLoc resolves an opstack.LvalueAbs item to wherever the pointer
// value itself (not its pointee) lives.
func (fr *frame) addrLoc(it opstack.StackItem) loc {
	if it.ExtraStorage {
		return loc{mem: fr.spillMem(it.AddrSlot, x86.Width64)}
	}
	return loc{inReg: true, reg: x86.CalleeSavedGPRs[it.AddrSlot].Cast(x86.Width64)}
}

// derefMem turns a LvalueAbs item into the Mem operand of the storage
// it addresses, loading the pointer into r11 first if it had itself
// spilled. r11 is reserved for exactly this: every other scratch
// (rax, rcx, r10) can be holding a live value when a caller resolves
// an address mid-sequence, so the pointer gets its own register that
// nothing else ever occupies.
func (g *Generator) derefMem(as *x86.Assembler, fr *frame, it opstack.StackItem, w x86.Width) x86.Mem {
	al := fr.addrLoc(it)
	if al.inReg {
		return x86.Mem{W: w, Base: al.reg}
	}
	as.MovRegMem(x86.R11, al.mem)
	return x86.Mem{W: w, Base: x86.R11}
}

// operandFor resolves it to its natural x86.Operand shape — an
// immediate for a literal, whatever register/memory a rvalue already
// lives in, or a local's/pointee's memory location — without forcing
// it into a register first. This is the one StackItem-to-operand
// resolution x86.Emit's row search still needs done by its caller
// (the legalizer works on already-resolved operand shapes: it decides
// how to bridge an Imm/Reg/Mem to an instruction row's constraints,
// not where a stack slot's value currently lives), letting Emit choose
// the cheapest instruction encoding instead of every call site
// pre-loading both operands into scratch registers by hand.
func (g *Generator) operandFor(as *x86.Assembler, fr *frame, it opstack.StackItem, w x86.Width) x86.Operand {
	switch it.Kind {
	case opstack.Literal:
		return x86.Imm{W: w, Value: it.IVal}
	case opstack.Rvalue:
		loc := fr.rvalueLoc(it)
		if loc.inReg {
			return loc.reg.Cast(w)
		}
		return loc.mem
	case opstack.Lvalue:
		return fr.localMem(it.Offset, w)
	case opstack.LvalueAbs:
		return g.derefMem(as, fr, it, w)
	}
	return x86.Imm{W: w, Value: 0}
}

// loadGPR materializes it's value into dst, whatever Kind it is.
func (g *Generator) loadGPR(as *x86.Assembler, fr *frame, it opstack.StackItem, dst x86.Reg) {
	switch it.Kind {
	case opstack.Literal:
		as.MovRegImm(dst, it.IVal)
	case opstack.Rvalue:
		loc := fr.rvalueLoc(it)
		if loc.inReg {
			as.MovRegReg(dst, loc.reg.Cast(dst.W))
		} else {
			as.MovRegMem(dst, loc.mem)
		}
	case opstack.Lvalue:
		as.MovRegMem(dst, fr.localMem(it.Offset, dst.W))
	case opstack.LvalueAbs:
		as.MovRegMem(dst, g.derefMem(as, fr, it, dst.W))
	}
}

// loadAddr materializes whatever address it denotes into dst: a
// local's own address (Lvalue, via lea), an already-materialized
// pointer (LvalueAbs), or a plain integer value standing in for a
// pointer (Rvalue/Literal, e.g. a pointer returned from a call).
func (g *Generator) loadAddr(as *x86.Assembler, fr *frame, it opstack.StackItem, dst x86.Reg) {
	switch it.Kind {
	case opstack.Lvalue:
		as.LeaRegMem(dst, fr.localMem(it.Offset, x86.Width64))
	case opstack.LvalueAbs:
		al := fr.addrLoc(it)
		if al.inReg {
			as.MovRegReg(dst, al.reg)
		} else {
			as.MovRegMem(dst, al.mem)
		}
	default:
		g.loadGPR(as, fr, it, dst)
	}
}

// loadXMM materializes it's value into dst at the given precision.
func (g *Generator) loadXMM(as *x86.Assembler, fr *frame, it opstack.StackItem, dst x86.XMMReg, double bool) {
	switch it.Kind {
	case opstack.Literal:
		var bits uint64
		if double {
			bits = math.Float64bits(it.FVal)
		} else {
			bits = uint64(math.Float32bits(float32(it.FVal)))
		}
		as.MovRegImm(x86.ScratchInt, int64(bits))
		as.MovqGprToXmm(dst, x86.ScratchInt)
	case opstack.Rvalue:
		loc := fr.rvalueLoc(it)
		if loc.inReg {
			as.MovXmmXmm(dst, loc.xmm, double)
		} else {
			as.MovXmmMem(dst, loc.mem, double)
		}
	case opstack.Lvalue:
		as.MovXmmMem(dst, fr.localMem(it.Offset, x86.Width64), double)
	case opstack.LvalueAbs:
		as.MovXmmMem(dst, g.derefMem(as, fr, it, x86.Width64), double)
	}
}

// storeGPR commits a scratch register's value into the physical
// location a freshly-pushed Rvalue item was assigned.
func (g *Generator) storeGPR(as *x86.Assembler, fr *frame, it opstack.StackItem, src x86.Reg) {
	loc := fr.rvalueLoc(it)
	if loc.inReg {
		as.MovRegReg(loc.reg, src.Cast(loc.reg.W))
	} else {
		as.MovMemReg(loc.mem, src.Cast(loc.mem.W))
	}
}

func (g *Generator) storeXMM(as *x86.Assembler, fr *frame, it opstack.StackItem, src x86.XMMReg, double bool) {
	loc := fr.rvalueLoc(it)
	if loc.inReg {
		as.MovXmmXmm(loc.xmm, src, double)
	} else {
		as.MovMemXmm(loc.mem, src, double)
	}
}

// storeValueAt writes src into the storage an Lvalue/LvalueAbs item
// denotes (a named local/parameter, or a materialized pointer's
// pointee) — the general-assignment counterpart of storeGPR, which
// only ever commits into a freshly-pushed Rvalue's own slot.
func (g *Generator) storeValueAt(as *x86.Assembler, fr *frame, it opstack.StackItem, src x86.Reg) {
	switch it.Kind {
	case opstack.Lvalue:
		as.MovMemReg(fr.localMem(it.Offset, src.W), src)
	case opstack.LvalueAbs:
		as.MovMemReg(g.derefMem(as, fr, it, src.W), src)
	}
}

func (g *Generator) storeValueAtXMM(as *x86.Assembler, fr *frame, it opstack.StackItem, src x86.XMMReg, double bool) {
	switch it.Kind {
	case opstack.Lvalue:
		as.MovMemXmm(fr.localMem(it.Offset, x86.Width64), src, double)
	case opstack.LvalueAbs:
		as.MovMemXmm(g.derefMem(as, fr, it, x86.Width64), src, double)
	}
}

// storeAddr commits a scratch register holding a freshly computed
// address into the physical location a PushAddress item was assigned.
func (g *Generator) storeAddr(as *x86.Assembler, fr *frame, it opstack.StackItem, src x86.Reg) {
	al := fr.addrLoc(it)
	if al.inReg {
		as.MovRegReg(al.reg, src)
	} else {
		as.MovMemReg(al.mem, src)
	}
}
