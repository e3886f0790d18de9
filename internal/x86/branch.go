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

// JccCond is the condition field of a near conditional jump (0x0F
// 0x80+cc rel32), distinct from CondCode (SetCC's byte-set family)
// because the opcode bases differ even though the 4-bit condition
// value is the same.
type JccCond uint8

const (
	JccE  JccCond = 0x84
	JccNE JccCond = 0x85
	JccL  JccCond = 0x8C
	JccLE JccCond = 0x8E
	JccG  JccCond = 0x8F
	JccGE JccCond = 0x8D
	JccZ  JccCond = 0x84 // alias: test+jz shares je's condition byte
	JccNZ JccCond = 0x85

	// Unsigned/unordered jump conditions, the jump-instruction
	// counterparts of CondB/BE/A/AE above.
	JccB  JccCond = 0x82
	JccBE JccCond = 0x86
	JccA  JccCond = 0x87
	JccAE JccCond = 0x83
)

// Jmp emits an unconditional near jump with a placeholder rel32 and
// returns the byte offset of that rel32 for internal/branch to patch
// once the target label's address is known.
func (a *Assembler) Jmp() (patchAt int) {
	a.Buf.WriteByte8(0xE9)
	patchAt = a.Buf.Len()
	a.Buf.WriteInt32(0)
	return patchAt
}

// Jcc emits a near conditional jump (two-byte opcode, rel32) and
// returns the patch offset, same convention as Jmp.
func (a *Assembler) Jcc(cc JccCond) (patchAt int) {
	a.Buf.WriteByte8(0x0F)
	a.Buf.WriteByte8(byte(cc))
	patchAt = a.Buf.Len()
	a.Buf.WriteInt32(0)
	return patchAt
}

// PatchRel32 resolves a previously emitted Jmp/Jcc/Call's rel32 given
// the absolute byte offset the branch should land on; rel32 is
// relative to the byte immediately following the 4-byte displacement
// field, the standard x86 PC-relative convention.
func (a *Assembler) PatchRel32(patchAt, targetOffset int) {
	rel := int32(targetOffset - (patchAt + 4))
	a.Buf.PatchInt32At(patchAt, rel)
}

// TestRegReg: test dst, dst (0x85 /r), used ahead of Jz/Jnz for
// boolean-condition branches.
func (a *Assembler) TestRegReg(l, r Reg) {
	opc := byte(0x85)
	if l.W == Width8 {
		opc = 0x84
	}
	encodeInstruction(a.Buf, opc, l.Num, r.Num, modReg, 0, hasModRM|sizeFlags(l.W))
}

// CallRel emits a direct near call with a placeholder rel32, patched
// the same way as Jmp once the callee's entry offset (or, for an
// as-yet-unemitted forward-declared function, its final address) is
// known.
func (a *Assembler) CallRel() (patchAt int) {
	a.Buf.WriteByte8(0xE8)
	patchAt = a.Buf.Len()
	a.Buf.WriteInt32(0)
	return patchAt
}

// CallReg emits an indirect call through a register holding an
// absolute function pointer (0xFF /2), used for calls to a function
// value rather than a statically resolved symbol.
func (a *Assembler) CallReg(r Reg) {
	encodeInstruction(a.Buf, 0xFF, r.Num, 0, modReg, 2, modrmOpExt|hasModRM)
}
