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

package x86

import "github.com/y1yang0/corrosion/internal/bytebuf"

// Assembler accumulates machine code for a single function body. Its
// single-shape methods each encode the opcode row for their operand
// shapes directly; Emit (legalize.go) is the table-driven entry point
// on top of them, searching instructionTable for the cheapest row and
// materializing operands into scratch registers as that row needs.
// internal/codegen calls both.
type Assembler struct {
	Buf *bytebuf.Buffer
}

func NewAssembler(buf *bytebuf.Buffer) *Assembler { return &Assembler{Buf: buf} }

// MovRegReg: mov dst, src (opcode 0x89/0x88 per width).
func (a *Assembler) MovRegReg(dst, src Reg) {
	op := byte(0x89)
	if dst.W == Width8 {
		op = 0x88
	}
	encodeInstruction(a.Buf, op, dst.Num, src.Num, modReg, 0, hasModRM|sizeFlags(dst.W))
}

// MovRegImm: mov dst, $imm (0xB8+r, or 0xC7 /0 for a 32-bit
// sign-extended immediate into a 64-bit register).
func (a *Assembler) MovRegImm(dst Reg, imm int64) {
	if dst.W == Width64 && (imm < -(1<<31) || imm >= (1<<31)) {
		encodeInstruction(a.Buf, 0xB8, dst.Num, 0, modReg, 0, modrmOpc|forceRexW)
		a.Buf.WriteInt64(uint64(imm))
		return
	}
	if dst.W == Width64 {
		// mov r64, imm32 sign-extends through the 0xC7 /0 form; the
		// 0xB8+rd row at REX.W would demand a full imm64.
		encodeInstruction(a.Buf, 0xC7, dst.Num, 0, modReg, 0, modrmOpExt|hasModRM|forceRexW)
		a.Buf.WriteInt32(uint32(int32(imm)))
		return
	}
	op := byte(0xB8)
	if dst.W == Width8 {
		op = 0xB0
	}
	encodeInstruction(a.Buf, op, dst.Num, 0, modReg, 0, modrmOpc|sizeFlags(dst.W))
	writeImm(a.Buf, dst.W, imm)
}

// MovAbs emits a movabs into dst with a placeholder 64-bit immediate
// and returns the byte offset of that immediate, for a caller to
// patch (bytebuf.Buffer.PatchInt64At) once the 64-bit value is known.
// internal/codegen does not call it: direct calls use CallRel's
// rel32, and string literals lower to a null pointer.
func (a *Assembler) MovAbs(dst Reg) (patchAt int) {
	encodeInstruction(a.Buf, 0xB8, dst.Num, 0, modReg, 0, modrmOpc|forceRexW)
	patchAt = a.Buf.Len()
	a.Buf.WriteInt64(0)
	return patchAt
}

func writeImm(buf *bytebuf.Buffer, w Width, v int64) {
	switch w {
	case Width8:
		buf.WriteByte8(byte(v))
	case Width16:
		buf.WriteInt16(uint16(v))
	case Width64:
		// a 64-bit ALU immediate is still encoded as a sign-extended
		// imm32; callers needing a full 64-bit immediate go through
		// MovRegImm's movabs path instead.
		buf.WriteInt32(uint32(int32(v)))
	default:
		buf.WriteInt32(uint32(v))
	}
}

// MovRegMem: mov dst, disp(base) — load.
func (a *Assembler) MovRegMem(dst Reg, src Mem) {
	op := byte(0x8B)
	if dst.W == Width8 {
		op = 0x8A
	}
	a.emitMem(op, dst.Num, src, hasModRM|flipModRM|sizeFlags(dst.W))
}

// MovMemReg: mov disp(base), src — store.
func (a *Assembler) MovMemReg(dst Mem, src Reg) {
	op := byte(0x89)
	if src.W == Width8 {
		op = 0x88
	}
	a.emitMem(op, src.Num, dst, hasModRM|sizeFlags(src.W))
}

// MovMemImm: mov disp(base), $imm (0xC6 /0 for 8-bit, 0xC7 /0 otherwise).
func (a *Assembler) MovMemImm(dst Mem, imm int64) {
	op := byte(0xC7)
	if dst.W == Width8 {
		op = 0xC6
	}
	a.emitMem(op, 0, dst, hasModRM|modrmOpExt|sizeFlags(dst.W))
	writeImm(a.Buf, dst.W, imm)
}

// LeaRegMem: lea dst, disp(base).
func (a *Assembler) LeaRegMem(dst Reg, src Mem) {
	a.emitMem(0x8D, dst.Num, src, hasModRM|flipModRM|forceRexW)
}

// MovzxRegReg/MovsxRegReg widen a narrower GPR into dst, used for the
// bool/char-returning comparison and logical-not sequences (cmp +
// setcc then zero-extension).
func (a *Assembler) MovzxRegReg(dst, src Reg) {
	op := byte(0xB6)
	if src.W == Width16 {
		op = 0xB7
	}
	encodeInstruction(a.Buf, op, dst.Num, src.Num, modReg, 0, hasModRM|flipModRM|twoByte|sizeFlags(dst.W))
}

func (a *Assembler) MovsxRegReg(dst, src Reg) {
	var op byte
	var f flags = hasModRM | flipModRM | sizeFlags(dst.W)
	switch src.W {
	case Width8:
		op, f = 0xBE, f|twoByte
	case Width16:
		op, f = 0xBF, f|twoByte
	default: // Width32 -> Width64
		op, f = 0x63, f|forceRexW
	}
	encodeInstruction(a.Buf, op, dst.Num, src.Num, modReg, 0, f)
}

// emitMem handles the Mod/disp/SIB bookkeeping shared by every
// memory-operand instruction: pick the addressing mode from the
// displacement magnitude, emit the opcode+ModR/M, then the
// displacement bytes.
func (a *Assembler) emitMem(opcode byte, regField int, m Mem, f flags) {
	mm := dispMode(m.Disp)
	// The base register always lands in ModRM.rm and regField in
	// ModRM.reg for memory forms, regardless of the opcode's
	// direction bit; flipModRM only reorders register-register
	// operands, so it is masked off here.
	encodeInstruction(a.Buf, opcode, m.Base.Num, regField, mm, 0, f&^flipModRM)
	writeDisp(a.Buf, mm, m.Disp)
}

// Push/Pop: single-byte +r encodings, always 64-bit in long mode.
func (a *Assembler) Push(r Reg) {
	rex := r.Num >= 8
	if rex {
		a.Buf.WriteByte8(0x41)
	}
	a.Buf.WriteByte8(0x50 | byte(r.Num&0b111))
}

func (a *Assembler) Pop(r Reg) {
	rex := r.Num >= 8
	if rex {
		a.Buf.WriteByte8(0x41)
	}
	a.Buf.WriteByte8(0x58 | byte(r.Num&0b111))
}

func (a *Assembler) Leave() { a.Buf.WriteByte8(0xC9) }
func (a *Assembler) Ret()   { a.Buf.WriteByte8(0xC3) }
func (a *Assembler) Nop()   { a.Buf.WriteByte8(0x90) }

// RepMovs copies rcx units of `alignment` bytes from rsi to rdi, the
// aggregate-copy primitive used to materialize large call arguments
// and struct assignment/return.
func (a *Assembler) RepMovs(alignment int) {
	a.Buf.WriteByte8(0xF3)
	var op byte
	switch alignment {
	case 1:
		op = 0xA4
	case 2:
		a.Buf.WriteByte8(0x66)
		op = 0xA5
	case 4:
		op = 0xA5
	default:
		encodeInstruction(a.Buf, 0xA5, 0, 0, modReg, 0, forceRexW)
		return
	}
	a.Buf.WriteByte8(op)
}
