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

// Package opstack implements the compile-time operand stack: a LIFO
// of StackItem values standing in for whatever the IR stream is
// currently operating on, backed by a small pool of general-purpose
// and XMM register slots that spill to the native stack
// (rsp-relative) once exhausted.
package opstack

import (
	"fmt"

	"github.com/y1yang0/corrosion/internal/types"
)

// Kind tags the StackItem sum type.
type Kind int

const (
	// Literal is a compile-time constant not yet materialized into a
	// register; the legalizer may fold it directly into an
	// instruction's immediate operand.
	Literal Kind = iota
	// Rvalue lives in a register slot, or has spilled to the native
	// stack when the slot pool was exhausted.
	Rvalue
	// Lvalue is an rbp-relative local/parameter storage location.
	Lvalue
	// LvalueAbs is a materialized pointer to storage (the result of
	// &x, array/struct member addressing, or a dereferenced pointer);
	// ExtraStorage is set when the address itself had to spill.
	LvalueAbs
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Rvalue:
		return "rvalue"
	case Lvalue:
		return "lvalue"
	case LvalueAbs:
		return "lvalue_abs"
	default:
		return "?"
	}
}

// RegClass distinguishes the general-purpose slot pool from the XMM
// slot pool; float/double values never occupy a GPR slot and vice
// versa.
type RegClass int

const (
	GPR RegClass = iota
	XMM
)

// StackItem is one entry of the operand stack. Exactly the fields
// relevant to Kind are meaningful; see the comment on each Kind
// constant above.
type StackItem struct {
	Kind Kind
	Type *types.Type

	// Literal
	IVal int64
	FVal float64

	// Rvalue: which slot (index into Stack's class pool) or, if
	// Spilled, the native-stack byte offset it was pushed to.
	Slot    int
	Class   RegClass
	Spilled bool
	SpillOff int

	// Lvalue: rbp-relative offset of named storage.
	Offset int
	Name   string

	// LvalueAbs: the address itself is held in a register slot (or
	// spilled, same convention as Rvalue above) unless ExtraStorage
	// says the address was itself spilled to a second native-stack cell.
	AddrSlot     int
	AddrClass    RegClass
	AddrSpilled  bool
	ExtraStorage bool
}

func (s StackItem) String() string {
	switch s.Kind {
	case Literal:
		return fmt.Sprintf("literal(%d)", s.IVal)
	case Rvalue:
		if s.Spilled {
			return fmt.Sprintf("rvalue(spill@%d)", s.SpillOff)
		}
		return fmt.Sprintf("rvalue(slot %d/%v)", s.Slot, s.Class)
	case Lvalue:
		return fmt.Sprintf("lvalue(%s@%d)", s.Name, s.Offset)
	case LvalueAbs:
		return "lvalue_abs"
	default:
		return "?"
	}
}

func (s StackItem) IsFloat() bool {
	return s.Type != nil && s.Type.IsFloat()
}
