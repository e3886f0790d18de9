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

// mode is the ModR/M addressing mode field.
type mode uint8

const (
	modMem    mode = 0b00
	modDisp8  mode = 0b01
	modDisp32 mode = 0b10
	modReg    mode = 0b11
)

// flags is the bit-set describing how a row's opcode byte must be
// dressed (REX.W, 0x66, F2/F3, 0x0F escape, ModR/M presence and
// shape, operand-order flip).
type flags uint16

const (
	forceRexW  flags = 1 << 0
	forceSize  flags = 1 << 1 // 0x66 operand-size prefix (16-bit)
	hasModRM   flags = 1 << 2
	modrmOpExt flags = 1 << 3 // ModR/M.reg field is a fixed opcode extension, not a register
	modrmOpc   flags = 1 << 4 // low 3 bits of the register are folded into the opcode byte
	prefixF2   flags = 1 << 5
	prefixF3   flags = 1 << 6
	twoByte    flags = 1 << 7
	flipModRM  flags = 1 << 8
	noRax      flags = 1 << 9 // scratch register must avoid rax (it is itself a live operand)
)

// encodeInstruction is the one place instruction bytes come from: it
// computes the REX
// prefix from the two register operands' high bits and the
// force-REX.W flag, emits the mandatory prefix bytes, the two-byte
// 0x0F escape if present, the opcode (optionally OR'd with a
// register's low 3 bits for the +rb/+rd encoding), then the ModR/M
// byte and its SIB/displacement-zero follow-on bytes.
func encodeInstruction(buf *bytebuf.Buffer, opcode byte, reg1, reg2 int, m mode, modrmBits uint8, f flags) {
	op1, op2 := reg1, reg2
	if f&flipModRM != 0 {
		op1, op2 = reg2, reg1
	}
	var rex uint8
	if op1 >= 8 {
		rex |= 0x40 | 0b0001
	}
	if op2 >= 8 {
		rex |= 0x40 | 0b0100
	}
	if f&forceRexW != 0 {
		rex |= 0x48
	}
	if f&forceSize != 0 {
		buf.WriteByte8(0x66)
	}
	if f&prefixF3 != 0 {
		buf.WriteByte8(0xF3)
	}
	if f&prefixF2 != 0 {
		buf.WriteByte8(0xF2)
	}
	if rex != 0 {
		buf.WriteByte8(rex)
	}
	if f&twoByte != 0 {
		buf.WriteByte8(0x0F)
	}
	opc := opcode
	if f&modrmOpc != 0 {
		opc |= uint8(reg1) & 0b111
	}
	buf.WriteByte8(opc)
	if f&hasModRM != 0 {
		emitZero := false
		if m == modMem && (op1&0b111) == 0b101 {
			// rbp/r13 in Mod=00 means RIP-relative on some encodings; the
			// assembler never addresses those registers directly with
			// zero displacement, so force a disp8 of 0 instead.
			m = modDisp8
			emitZero = true
		}
		modrm := uint8(m&0b11) << 6
		if f&modrmOpExt != 0 {
			modrm |= (modrmBits & 0b111) << 3
		} else {
			modrm |= (uint8(op2) & 0b111) << 3
		}
		modrm |= uint8(op1) & 0b111
		buf.WriteByte8(modrm)
		if m != modReg && (op1&0b111) == 0b100 {
			buf.WriteByte8(0x24) // SIB: base=rsp/r12, no index, scale=1
		}
		if emitZero {
			buf.WriteByte8(0x00)
		}
	}
}

// dispMode picks the smallest ModR/M addressing mode that can carry
// disp.
func dispMode(disp int32) mode {
	switch {
	case disp == 0:
		return modMem
	case disp >= -128 && disp <= 127:
		return modDisp8
	default:
		return modDisp32
	}
}

func writeDisp(buf *bytebuf.Buffer, m mode, disp int32) {
	switch m {
	case modDisp8:
		buf.WriteByte8(byte(int8(disp)))
	case modDisp32:
		buf.WriteInt32(uint32(disp))
	}
}

// sizeFlags derives the REX.W/0x66 dressing for a GPR operand width;
// the scalar-float widths are handled directly by the SSE emit
// helpers in float.go, which always know their own precision.
func sizeFlags(w Width) flags {
	switch w {
	case Width16:
		return forceSize
	case Width64:
		return forceRexW
	default:
		return 0
	}
}
