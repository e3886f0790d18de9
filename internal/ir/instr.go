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

package ir

import (
	"fmt"

	"github.com/y1yang0/corrosion/internal/types"
)

// Instr is one entry of the IR stream. Not every field is meaningful
// for every Op; see the comment beside each Op in op.go for which
// fields it reads.
type Instr struct {
	Op   Op
	Type *types.Type // operand type this instruction acts under
	Type2 *types.Type // OpCvt's destination type

	IVal  int64   // integer immediate / byte offset / count
	FVal  float64 // float/double immediate
	Name  string  // variable or function name
	Count int     // frame size (OpFunc), arg count (OpCall), byte count (OpStackAlloc)

	// SU is this instruction's Sethi-Ullman number when it roots an
	// expression subtree. internal/codegen does not read it; it does
	// not affect the already-reordered IR stream.
	SU int

	Label int // branch-fixup correlation id, see internal/branch

	// Flag is op-specific: for OpAddAgn/OpSubAgn used to lower ++/--,
	// it marks a postfix operator (old value is the expression result)
	// rather than prefix (new value is the result).
	Flag bool
}

func (i Instr) String() string {
	switch i.Op {
	case OpPushI:
		return fmt.Sprintf("pushi %d", i.IVal)
	case OpPushF, OpPushD:
		return fmt.Sprintf("%s %v", i.Op, i.FVal)
	case OpLoad, OpLAddr:
		return fmt.Sprintf("%s %s", i.Op, i.Name)
	case OpCall:
		return fmt.Sprintf("call %s/%d", i.Name, i.Count)
	case OpFunc:
		return fmt.Sprintf("func %s frame=%d", i.Name, i.Count)
	default:
		return i.Op.String()
	}
}

// Func is the IR stream for one function: a flat slice of Instr
// bracketed by OpFunc/OpFuncEnd, plus the signature the ABI lowering
// and codegen stages need. A function is the unit of independent
// compilation.
type Func struct {
	Name       string
	Params     []Param
	Ret        *types.Type
	Variadic   bool
	FrameSize  int // bytes of local storage, from the stack-layout pass
	Instrs     []Instr
}

type Param struct {
	Name   string
	Type   *types.Type
	Offset int // rbp-relative storage offset once spilled to the frame
}
