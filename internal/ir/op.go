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

// Package ir implements the linear stack-machine intermediate
// representation: a flat stream of Op values produced by lowering a
// typed *ast.Func through Sethi-Ullman evaluation-order selection and
// a scoped stack-layout pass. The stream is linear but nests
// implicitly through balanced OpIf…OpEndIf and OpFunc…OpFuncEnd.
package ir

import "fmt"

// Op is the closed tag set of the IR stream. Op values are opaque to
// internal/codegen beyond their tag: all operand data rides along on
// the Instr that carries them.
type Op int

const (
	OpFunc    Op = iota // begin a function: Name, frame size in Count
	OpFuncEnd           // end a function

	OpPushI // push an integer literal (IVal), width/signedness from Type
	OpPushF // push a float32 literal (FVal)
	OpPushD // push a float64 literal (FVal)

	OpLoad   // push local/param Name's rvalue, or dereference top-of-stack if Name==""
	OpLAddr  // push the address of local/param Name (lvalue_abs)
	OpLStack // push the address of a stackalloc'd temporary at Offset

	OpStore // pop value, pop/peek address, store

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr

	// Store-accumulating variants: `lvalue OP= rvalue` without a full
	// push/pop of the lvalue's address; compound assignment never
	// materializes a temporary copy of the address.
	OpAddAgn
	OpSubAgn
	OpMulAgn
	OpDivAgn
	OpModAgn
	OpAndAgn
	OpOrAgn
	OpXorAgn
	OpShlAgn
	OpShrAgn

	OpNeg
	OpBitNot
	OpLogNot

	OpCmpEq
	OpCmpNe
	OpCmpGt
	OpCmpGe
	OpCmpLt
	OpCmpLe

	OpSwp  // swap the top two stack items (Sethi-Ullman reordering)
	OpCvt  // convert top-of-stack from Type to Type2
	OpRval // force top-of-stack into a freshly allocated register slot

	OpStackAlloc // reserve Count bytes of frame space, push its address
	OpOffset     // pop base address, add IVal byte offset, push address
	OpDeref      // pop a pointer rvalue, push the lvalue_abs it addresses
	OpIndex      // pop index, pop base address, push element address

	OpIf       // pop condition, branch to matching OpElse/OpEndIf if false
	OpElse     // unconditional branch to matching OpEndIf
	OpEndIf    // fixup target for OpIf/OpElse
	OpGotoTest // loop back-edge to the condition test
	OpGotoEnd  // forward branch to the loop's exit (break target)
	OpLoopTest // marks the loop condition-test site (continue target)

	OpCall // call Name with Count arguments already pushed, left to right
	OpRet  // pop and return the top of stack (Count==0: return void)

	OpDiscard // pop and drop the top of stack (statement-expressions, store cleanup)
)

func (o Op) String() string {
	names := [...]string{
		"func", "func_end",
		"pushi", "pushf", "pushd",
		"load", "laddr", "lstack",
		"store",
		"add", "sub", "mul", "div", "mod", "and", "or", "xor", "shl", "shr",
		"add_agn", "sub_agn", "mul_agn", "div_agn", "mod_agn",
		"and_agn", "or_agn", "xor_agn", "shl_agn", "shr_agn",
		"neg", "bitnot", "lognot",
		"cmp_eq", "cmp_ne", "cmp_gt", "cmp_ge", "cmp_lt", "cmp_le",
		"swp", "cvt", "rval",
		"stackalloc", "offset", "deref", "index",
		"if", "else", "endif", "goto_test", "goto_end", "loop_test",
		"call", "ret", "discard",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// IsCompoundAssign reports whether o is one of the OpXxxAgn family.
func (o Op) IsCompoundAssign() bool {
	return o >= OpAddAgn && o <= OpShrAgn
}

// PlainOpFor maps a store-accumulating op to the corresponding
// non-assigning arithmetic op (OpAddAgn -> OpAdd), used by the
// legalizer to pick the ALU mnemonic once the accumulate has been
// split into load/compute/store by internal/codegen.
func (o Op) PlainOpFor() Op {
	if !o.IsCompoundAssign() {
		return o
	}
	return OpAdd + (o - OpAddAgn)
}
