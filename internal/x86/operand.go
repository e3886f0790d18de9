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

import "fmt"

// Operand is the tagged operand variant the legalizer discriminates
// on: an immediate, a register (GPR or XMM), a memory reference, or a
// Label.
type Operand interface {
	operand()
	Width() Width
	String() string
}

// Imm is a compile-time-constant operand, stored widest and narrowed
// by the legalizer/encoder to whatever the chosen instruction row
// needs.
type Imm struct {
	W     Width
	Value int64
}

func (Imm) operand()         {}
func (i Imm) Width() Width   { return i.W }
func (i Imm) String() string { return fmt.Sprintf("$%d", i.Value) }

// Mem is an rbp/rsp/arbitrary-base-relative memory operand. The
// encoder (emitMem/emitMemXMM) emits only disp(base); Index and Scale
// appear in String but are not encoded.
type Mem struct {
	W     Width
	Base  Reg
	Index *Reg
	Scale int // 1, 2, 4, or 8; ignored when Index is nil
	Disp  int32
}

func (Mem) operand()       {}
func (m Mem) Width() Width { return m.W }
func (m Mem) String() string {
	if m.Index != nil {
		return fmt.Sprintf("%d(%%%s,%%%s,%d)", m.Disp, m.Base, *m.Index, m.Scale)
	}
	return fmt.Sprintf("%d(%%%s)", m.Disp, m.Base)
}

func (r Reg) operand() {}

func (r Reg) Width() Width { return r.W }

func (r XMMReg) operand() {}

// Width reports Width64 for every XMM operand; the
// scalar-single-vs-double distinction lives in the F2/F3 prefix byte
// chosen per mnemonic.
func (r XMMReg) Width() Width { return Width64 }

// Label is a branch target id. Jmp, Jcc and CallRel do not take a
// Label: they emit a placeholder rel32 and return its offset for the
// caller to patch with PatchRel32.
type Label struct {
	ID int
}

func (Label) operand()         {}
func (Label) Width() Width     { return Width32 }
func (l Label) String() string { return fmt.Sprintf("L%d", l.ID) }
