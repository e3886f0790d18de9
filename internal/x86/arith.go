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

// AluOp is the ModR/M opcode-extension family sharing the 0x00-0x38
// row layout (add/or/and/sub/xor/cmp); its value doubles as the
// "/digit" opcode extension of the immediate forms.
type AluOp int

const (
	AluAdd AluOp = iota
	AluOr
	AluAnd
	AluSub
	AluXor
	AluCmp
)

// rowBase is the opcode row for `op reg/mem, reg` (the /r form); each
// ALU mnemonic occupies a fixed 8-opcode block.
func (op AluOp) rowBase() byte {
	return [...]byte{0x00, 0x08, 0x20, 0x28, 0x30, 0x38}[op]
}

func (op AluOp) ext() uint8 { return uint8(op) }

func (a *Assembler) AluRegReg(op AluOp, dst, src Reg) {
	w := byte(1)
	if dst.W == Width8 {
		w = 0
	}
	encodeInstruction(a.Buf, op.rowBase()+w, dst.Num, src.Num, modReg, 0, hasModRM|sizeFlags(dst.W))
}

func (a *Assembler) AluRegImm(op AluOp, dst Reg, imm int64) {
	if dst.W != Width8 && imm >= -128 && imm <= 127 {
		encodeInstruction(a.Buf, 0x83, dst.Num, 0, modReg, op.ext(), modrmOpExt|hasModRM|sizeFlags(dst.W))
		a.Buf.WriteByte8(byte(imm))
		return
	}
	opc := byte(0x81)
	if dst.W == Width8 {
		opc = 0x80
	}
	encodeInstruction(a.Buf, opc, dst.Num, 0, modReg, op.ext(), modrmOpExt|hasModRM|sizeFlags(dst.W))
	writeImm(a.Buf, dst.W, imm)
}

func (a *Assembler) AluMemReg(op AluOp, dst Mem, src Reg) {
	w := byte(1)
	if src.W == Width8 {
		w = 0
	}
	a.emitMem(op.rowBase()+w, src.Num, dst, hasModRM|sizeFlags(src.W))
}

func (a *Assembler) AluRegMem(op AluOp, dst Reg, src Mem) {
	w := byte(3)
	if dst.W == Width8 {
		w = 2
	}
	a.emitMem(op.rowBase()+w, dst.Num, src, hasModRM|flipModRM|sizeFlags(dst.W))
}

func (a *Assembler) AluMemImm(op AluOp, dst Mem, imm int64) {
	opc := byte(0x81)
	if dst.W == Width8 {
		opc = 0x80
	}
	a.emitMem(opc, int(op.ext()), dst, hasModRM|modrmOpExt|sizeFlags(dst.W))
	writeImm(a.Buf, dst.W, imm)
}

// Imul: two-operand signed multiply, dst *= src (0x0F 0xAF /r).
// The /r destination rides in ModRM.reg here, unlike the ALU rows.
func (a *Assembler) ImulRegReg(dst, src Reg) {
	encodeInstruction(a.Buf, 0xAF, dst.Num, src.Num, modReg, 0, hasModRM|flipModRM|twoByte|sizeFlags(dst.W))
}

// Idiv/Div: one-operand signed/unsigned divide of rdx:rax (or
// dx:ax/edx:eax) by src; the caller is responsible for emitting the
// cbw/cwd/cdq/cqo or zero-extension sign-preparation instruction
// first.
func (a *Assembler) IdivReg(src Reg) { a.emitF7(7, src) }
func (a *Assembler) DivReg(src Reg)  { a.emitF7(6, src) }
func (a *Assembler) NegReg(src Reg)  { a.emitF7(3, src) }
func (a *Assembler) NotReg(src Reg)  { a.emitF7(2, src) }

func (a *Assembler) emitF7(ext uint8, src Reg) {
	opc := byte(0xF7)
	if src.W == Width8 {
		opc = 0xF6
	}
	encodeInstruction(a.Buf, opc, src.Num, 0, modReg, ext, modrmOpExt|hasModRM|sizeFlags(src.W))
}

// sign-extension helpers for the divide sequence (0x98/0x99 dressed
// by operand-size prefix, matching cbw/cwd/cdq/cqo).
func (a *Assembler) Cbw() { a.Buf.WriteByte8(0x66); a.Buf.WriteByte8(0x98) }
func (a *Assembler) Cwd() { a.Buf.WriteByte8(0x66); a.Buf.WriteByte8(0x99) }
func (a *Assembler) Cdq() { a.Buf.WriteByte8(0x99) }
func (a *Assembler) Cqo() { a.Buf.WriteByte8(0x48); a.Buf.WriteByte8(0x99) }

// ShiftKind is the family of /4 (shl), /5 (shr), /7 (sar) — kept as a
// distinct type from AluOp because the shift group shares the 0xC0
// opcode row (imm8 count) and 0xD3 row (cl count) rather than ALU's
// 0x00 row-per-mnemonic layout. shl/shr/sar are distinct
// opcode-extension values dispatched from the IR op, never aliased
// onto one another.
type ShiftKind uint8

const (
	ShiftLeft     ShiftKind = 4 // shl
	ShiftRight    ShiftKind = 5 // shr (logical)
	ShiftArithRight ShiftKind = 7 // sar (arithmetic, signed)
)

func (a *Assembler) ShiftRegImm(kind ShiftKind, dst Reg, count uint8) {
	if count == 1 {
		opc := byte(0xD1)
		if dst.W == Width8 {
			opc = 0xD0
		}
		encodeInstruction(a.Buf, opc, dst.Num, 0, modReg, uint8(kind), modrmOpExt|hasModRM|sizeFlags(dst.W))
		return
	}
	opc := byte(0xC1)
	if dst.W == Width8 {
		opc = 0xC0
	}
	encodeInstruction(a.Buf, opc, dst.Num, 0, modReg, uint8(kind), modrmOpExt|hasModRM|sizeFlags(dst.W))
	a.Buf.WriteByte8(count)
}

// ShiftRegCL shifts dst by the count in cl, used when the shift
// amount is itself a runtime value rather than a literal.
func (a *Assembler) ShiftRegCL(kind ShiftKind, dst Reg) {
	opc := byte(0xD3)
	if dst.W == Width8 {
		opc = 0xD2
	}
	encodeInstruction(a.Buf, opc, dst.Num, 0, modReg, uint8(kind), modrmOpExt|hasModRM|sizeFlags(dst.W))
}

// SetCC is the byte-setting condition code family (sete, setne,
// setl, setle, setg, setge); dst is always written at 8-bit width
// and the caller movzx-widens it afterward.
type CondCode uint8

const (
	CondE  CondCode = 0x94
	CondNE CondCode = 0x95
	CondL  CondCode = 0x9C
	CondLE CondCode = 0x9E
	CondG  CondCode = 0x9F
	CondGE CondCode = 0x9D

	// Unsigned/unordered counterparts (setb/setbe/seta/setae), needed
	// for unsigned integer comparisons and for scalar float compares:
	// ucomiss/ucomisd set flags the way an unsigned compare would, so
	// an ordered float `<`/`<=`/`>`/`>=` reads CF/ZF through these
	// codes rather than the signed L/LE/G/GE ones.
	CondB  CondCode = 0x92
	CondBE CondCode = 0x96
	CondA  CondCode = 0x97
	CondAE CondCode = 0x93
)

func (a *Assembler) SetCC(cc CondCode, dst Reg) {
	encodeInstruction(a.Buf, byte(cc), dst.Num, 0, modReg, 0, hasModRM|twoByte)
}

// CmpRegReg/CmpRegImm are AluCmp aliases kept for call-site clarity in
// internal/codegen's comparison lowering.
func (a *Assembler) CmpRegReg(l, r Reg)       { a.AluRegReg(AluCmp, l, r) }
func (a *Assembler) CmpRegImm(l Reg, imm int64) { a.AluRegImm(AluCmp, l, imm) }
