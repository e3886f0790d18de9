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

// Package x86 implements the x86-64 operand model, instruction table,
// legalizer, and byte encoder. The register catalogue below carries
// exactly what the REX/ModRM/SIB encoder needs: an encoding Num 0-15
// per register, plus a width.
package x86

// Width is a GPR's operand width in bytes; the encoder prepends a
// REX.W, a 0x66 operand-size prefix, or neither depending on Width.
type Width int

const (
	Width8 Width = 1
	Width16 Width = 2
	Width32 Width = 4
	Width64 Width = 8
)

// Reg is a general-purpose register at a given width. Num is the
// 0-15 encoding used in ModRM.reg/rm and SIB.base/index; Num>=8
// requires a REX prefix to address.
type Reg struct {
	Num  int
	W    Width
	name string
}

func (r Reg) String() string { return r.name }
func (r Reg) NeedsRex() bool { return r.Num >= 8 }

// XMMReg is an SSE2 register, always addressed at Num 0-15 regardless
// of whether the operation is scalar-single or scalar-double (that
// distinction lives in the mnemonic's prefix byte, not the register).
type XMMReg struct {
	Num  int
	name string
}

func (r XMMReg) String() string { return r.name }
func (r XMMReg) NeedsRex() bool { return r.Num >= 8 }

func reg(num int, w Width, name string) Reg { return Reg{Num: num, W: w, name: name} }

var (
	RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI Reg
	R8, R9, R10, R11, R12, R13, R14, R15   Reg
	EAX, ECX, EDX, EBX, ESP, EBP, ESI, EDI Reg
	R8D, R9D, R10D, R11D, R12D, R13D, R14D, R15D Reg
	AL, CL, DL, BL, SPL, BPL, SIL, DIL      Reg
	R8B, R9B, R10B, R11B, R12B, R13B, R14B, R15B Reg
)

func init() {
	RAX, RCX, RDX, RBX = reg(0, Width64, "rax"), reg(1, Width64, "rcx"), reg(2, Width64, "rdx"), reg(3, Width64, "rbx")
	RSP, RBP, RSI, RDI = reg(4, Width64, "rsp"), reg(5, Width64, "rbp"), reg(6, Width64, "rsi"), reg(7, Width64, "rdi")
	R8, R9, R10, R11 = reg(8, Width64, "r8"), reg(9, Width64, "r9"), reg(10, Width64, "r10"), reg(11, Width64, "r11")
	R12, R13, R14, R15 = reg(12, Width64, "r12"), reg(13, Width64, "r13"), reg(14, Width64, "r14"), reg(15, Width64, "r15")

	EAX, ECX, EDX, EBX = reg(0, Width32, "eax"), reg(1, Width32, "ecx"), reg(2, Width32, "edx"), reg(3, Width32, "ebx")
	ESP, EBP, ESI, EDI = reg(4, Width32, "esp"), reg(5, Width32, "ebp"), reg(6, Width32, "esi"), reg(7, Width32, "edi")
	R8D, R9D, R10D, R11D = reg(8, Width32, "r8d"), reg(9, Width32, "r9d"), reg(10, Width32, "r10d"), reg(11, Width32, "r11d")
	R12D, R13D, R14D, R15D = reg(12, Width32, "r12d"), reg(13, Width32, "r13d"), reg(14, Width32, "r14d"), reg(15, Width32, "r15d")

	AL, CL, DL, BL = reg(0, Width8, "al"), reg(1, Width8, "cl"), reg(2, Width8, "dl"), reg(3, Width8, "bl")
	SPL, BPL, SIL, DIL = reg(4, Width8, "spl"), reg(5, Width8, "bpl"), reg(6, Width8, "sil"), reg(7, Width8, "dil")
	R8B, R9B, R10B, R11B = reg(8, Width8, "r8b"), reg(9, Width8, "r9b"), reg(10, Width8, "r10b"), reg(11, Width8, "r11b")
	R12B, R13B, R14B, R15B = reg(12, Width8, "r12b"), reg(13, Width8, "r13b"), reg(14, Width8, "r14b"), reg(15, Width8, "r15b")
}

// GPR64 indexes the 64-bit registers by Num, used by internal/abi
// and internal/codegen to pick an argument/return register by
// calling-convention slot index.
var GPR64 = [16]Reg{}
var GPR32 = [16]Reg{}

func init() {
	GPR64 = [16]Reg{RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15}
	GPR32 = [16]Reg{EAX, ECX, EDX, EBX, ESP, EBP, ESI, EDI, R8D, R9D, R10D, R11D, R12D, R13D, R14D, R15D}
}

// Cast reinterprets r at a different width, preserving its Num.
func (r Reg) Cast(w Width) Reg {
	switch w {
	case Width64:
		return GPR64[r.Num]
	case Width32:
		return GPR32[r.Num]
	case Width16:
		return Reg{Num: r.Num, W: Width16, name: GPR64[r.Num].name + "w"}
	case Width8:
		return Reg{Num: r.Num, W: Width8, name: GPR64[r.Num].name + "b"}
	default:
		return r
	}
}

func XMM(num int) XMMReg { return XMMReg{Num: num, name: xmmName(num)} }

func xmmName(num int) string {
	names := [...]string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7",
		"xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14", "xmm15"}
	return names[num]
}

// CalleeSavedGPRs are the registers this codegen's prologue/epilogue
// save/restore and opstack.Stack hands out as operand slots. rbp and
// rsp are excluded even though both ABIs list them callee-saved: this
// codegen uses rbp as the frame pointer and rsp as the native stack
// pointer, so neither is available as a virtual-stack slot. rax/r10/
// r11 stay reserved as encoder scratch. That leaves the five real
// non-frame callee-saved GPRs.
var CalleeSavedGPRs = []Reg{reg(3, Width64, "rbx"), reg(12, Width64, "r12"), reg(13, Width64, "r13"), reg(14, Width64, "r14"), reg(15, Width64, "r15")}

// CalleeSavedXMM is the opstack.Stack's XMM slot pool: xmm6-xmm13,
// the eight registers Win64's CalleeSaved() also lists (SysV has no
// callee-saved XMM register at all, so a float operand-stack slot
// that is live across a `call` only survives on SysV because this
// codegen saves every live XMM slot to the frame around a call site
// and reloads it afterwards, rather than trusting the callee not to
// clobber it). xmm14/xmm15 stay reserved
// as legalizer scratch (ScratchXMM below).
var CalleeSavedXMM = []XMMReg{XMM(6), XMM(7), XMM(8), XMM(9), XMM(10), XMM(11), XMM(12), XMM(13)}

// ScratchXMM are the two XMM registers the legalizer reserves for
// its own imm->xmm / deref->xmm legalization steps.
var ScratchXMM = []XMMReg{XMM(14), XMM(15)}
