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
	"github.com/y1yang0/corrosion/internal/ast"
	"github.com/y1yang0/corrosion/internal/types"
)

// assembleExpr lowers e, pushing its rvalue onto the (conceptual)
// operand stack, and returns its static type.
func (a *Assembler) assembleExpr(e ast.Expr) (*types.Type, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		t := a.typeOf(n)
		a.emit(Instr{Op: OpPushI, IVal: n.Value, Type: t})
		return t, nil
	case *ast.FloatLit:
		t := a.typeOf(n)
		op := OpPushD
		if n.IsFloat {
			op = OpPushF
		}
		a.emit(Instr{Op: op, FVal: n.Value, Type: t})
		return t, nil
	case *ast.CharLit:
		a.emit(Instr{Op: OpPushI, IVal: int64(n.Value), Type: types.Int8})
		return types.Int8, nil
	case *ast.StringLit:
		t := a.typeOf(n)
		a.emit(Instr{Op: OpPushI, Name: n.Value, Type: t}) // Name carries the literal text; codegen lowers it to a null pointer
		return t, nil
	case *ast.Ident:
		slot := a.scope.lookup(n.Name)
		if slot == nil {
			a.error(n.Pos(), "undeclared identifier %q", n.Name)
			return types.Int32, nil
		}
		a.emit(Instr{Op: OpLoad, Name: slot.name, IVal: int64(slot.offset), Type: slot.typ})
		return slot.typ, nil
	case *ast.Unary:
		return a.assembleUnary(n)
	case *ast.Binary:
		return a.assembleBinary(n)
	case *ast.Assign:
		return a.assembleAssign(n)
	case *ast.Ternary:
		return a.assembleTernary(n)
	case *ast.Call:
		return a.assembleCall(n)
	case *ast.Index, *ast.Member:
		elemType, addrErr := a.addressOf(e)
		if addrErr != nil {
			return elemType, addrErr
		}
		a.emit(Instr{Op: OpLoad, Type: elemType}) // Name=="" : load through the address already on top
		return elemType, nil
	case *ast.Cast:
		srcType, _ := a.assembleExpr(n.Operand)
		dst, err := a.resolveType(n.Target)
		if err != nil {
			a.error(n.Pos(), "%v", err)
			return srcType, nil
		}
		if dst != srcType {
			a.emit(Instr{Op: OpCvt, Type: srcType, Type2: dst})
		}
		return dst, nil
	case *ast.Sizeof:
		var t *types.Type
		if n.Target != nil {
			t, _ = a.resolveType(n.Target)
		} else {
			t = a.typeOf(n.Operand)
		}
		a.emit(Instr{Op: OpPushI, IVal: int64(t.Size), Type: types.UInt64})
		return types.UInt64, nil
	default:
		a.error(ast.Pos{}, "unsupported expression %T", e)
		return types.Int32, nil
	}
}

func (a *Assembler) assembleUnary(n *ast.Unary) (*types.Type, error) {
	switch n.Op {
	case ast.TK_BITAND:
		return a.addressOf(n.Operand)
	case ast.TK_TIMES:
		t, err := a.assembleExpr(n.Operand)
		if err != nil || t.Kind != types.KindPointer {
			return t, err
		}
		a.emit(Instr{Op: OpDeref, Type: t})
		a.emit(Instr{Op: OpLoad, Type: t.Elem})
		return t.Elem, nil
	case ast.TK_INC, ast.TK_DEC:
		return a.assembleIncDec(n)
	case ast.TK_MINUS:
		t, err := a.assembleExpr(n.Operand)
		a.emit(Instr{Op: OpNeg, Type: t})
		return t, err
	case ast.TK_PLUS:
		return a.assembleExpr(n.Operand)
	case ast.TK_BITNOT:
		t, err := a.assembleExpr(n.Operand)
		a.emit(Instr{Op: OpBitNot, Type: t})
		return t, err
	case ast.TK_LOGNOT:
		_, err := a.assembleExpr(n.Operand)
		a.emit(Instr{Op: OpLogNot, Type: types.Int32})
		return types.Int32, err
	default:
		a.error(n.Pos(), "unsupported unary operator %v", n.Op)
		return types.Int32, nil
	}
}

// assembleIncDec lowers prefix/postfix ++/-- as a store-accumulating
// op over the operand's address, computed exactly once (so `a[i++]++`
// never re-evaluates the index). Flag marks postfix: the expression's
// value is the operand read before the update.
func (a *Assembler) assembleIncDec(n *ast.Unary) (*types.Type, error) {
	t, err := a.addressOf(n.Operand)
	if err != nil {
		return t, err
	}
	op := OpAddAgn
	if n.Op == ast.TK_DEC {
		op = OpSubAgn
	}
	a.emit(Instr{Op: op, Type: t, IVal: 1, Flag: n.Postfix})
	return t, nil
}

// assembleBinary applies the Sethi-Ullman reordering rule: a pure
// subtree may have its operands evaluated in whichever order needs
// fewer live registers, provided an OpSwp restores the original
// left/right order before the operator itself runs. Reordering is
// unsound across side effects, so impure subtrees always evaluate
// left-to-right.
func (a *Assembler) assembleBinary(n *ast.Binary) (*types.Type, error) {
	if n.Op.IsShortCircuitOp() {
		return a.assembleShortCircuit(n)
	}
	return a.assembleCompareOrArith(n)
}

func (a *Assembler) assembleCompareOrArith(n *ast.Binary) (*types.Type, error) {
	resultType := a.typeOf(n)
	operandType := promote(a.typeOf(n.Left), a.typeOf(n.Right))

	suL, suR := suNumber(n.Left), suNumber(n.Right)
	if isPure(n) && suR > suL {
		a.assembleExprValue(n.Right, operandType)
		a.assembleExprValue(n.Left, operandType)
		a.emit(Instr{Op: OpSwp, Type: operandType})
	} else {
		a.assembleExprValue(n.Left, operandType)
		a.assembleExprValue(n.Right, operandType)
	}
	a.emit(Instr{Op: binOpFor(n.Op), Type: operandType, SU: suNumber(n)})
	return resultType, nil
}

func binOpFor(tok ast.TokenKind) Op {
	switch tok {
	case ast.TK_PLUS:
		return OpAdd
	case ast.TK_MINUS:
		return OpSub
	case ast.TK_TIMES:
		return OpMul
	case ast.TK_DIV:
		return OpDiv
	case ast.TK_MOD:
		return OpMod
	case ast.TK_BITAND:
		return OpAnd
	case ast.TK_BITOR:
		return OpOr
	case ast.TK_BITXOR:
		return OpXor
	case ast.TK_LSHIFT:
		return OpShl
	case ast.TK_RSHIFT:
		return OpShr
	case ast.TK_EQ:
		return OpCmpEq
	case ast.TK_NE:
		return OpCmpNe
	case ast.TK_GT:
		return OpCmpGt
	case ast.TK_GE:
		return OpCmpGe
	case ast.TK_LT:
		return OpCmpLt
	case ast.TK_LE:
		return OpCmpLe
	default:
		return OpAdd
	}
}

func compoundOpFor(tok ast.TokenKind) Op {
	switch tok {
	case ast.TK_PLUS_AGN:
		return OpAddAgn
	case ast.TK_MINUS_AGN:
		return OpSubAgn
	case ast.TK_TIMES_AGN:
		return OpMulAgn
	case ast.TK_DIV_AGN:
		return OpDivAgn
	case ast.TK_MOD_AGN:
		return OpModAgn
	case ast.TK_BITAND_AGN:
		return OpAndAgn
	case ast.TK_BITOR_AGN:
		return OpOrAgn
	case ast.TK_BITXOR_AGN:
		return OpXorAgn
	case ast.TK_LSHIFT_AGN:
		return OpShlAgn
	case ast.TK_RSHIFT_AGN:
		return OpShrAgn
	default:
		return OpAddAgn
	}
}

// assembleShortCircuit lowers && and || without phi nodes: both arms
// of the branch push exactly one value before falling through to a
// shared join label, so the stack depth the rest of the expression
// sees is the same regardless of which arm ran.
func (a *Assembler) assembleShortCircuit(n *ast.Binary) (*types.Type, error) {
	lskip := a.newLabel()
	done := a.newLabel()
	a.assembleExprValue(n.Left, types.Int32)
	a.emit(Instr{Op: OpIf, Label: lskip})
	if n.Op == ast.TK_LOGAND {
		a.assembleExprValue(n.Right, types.Int32)
		a.emit(Instr{Op: OpLogNot, Type: types.Int32})
		a.emit(Instr{Op: OpLogNot, Type: types.Int32})
		a.emit(Instr{Op: OpGotoEnd, Label: done})
		a.emit(Instr{Op: OpEndIf, Label: lskip})
		a.emit(Instr{Op: OpPushI, IVal: 0, Type: types.Int32})
		a.emit(Instr{Op: OpRval, Type: types.Int32})
	} else {
		a.emit(Instr{Op: OpPushI, IVal: 1, Type: types.Int32})
		a.emit(Instr{Op: OpRval, Type: types.Int32})
		a.emit(Instr{Op: OpGotoEnd, Label: done})
		a.emit(Instr{Op: OpEndIf, Label: lskip})
		a.assembleExprValue(n.Right, types.Int32)
		a.emit(Instr{Op: OpLogNot, Type: types.Int32})
		a.emit(Instr{Op: OpLogNot, Type: types.Int32})
	}
	a.emit(Instr{Op: OpEndIf, Label: done})
	return types.Int32, nil
}

func (a *Assembler) assembleTernary(n *ast.Ternary) (*types.Type, error) {
	resultType := a.typeOf(n)
	lelse := a.newLabel()
	done := a.newLabel()
	a.assembleExprValue(n.Cond, types.Int32)
	a.emit(Instr{Op: OpIf, Label: lelse})
	a.assembleExprValue(n.Then, resultType)
	// Both arms must leave their value in the same register slot for
	// the code past the join to read one consistent location; a
	// literal or lvalue item would otherwise survive as compile-time
	// state that only describes the arm that emitted it.
	a.emit(Instr{Op: OpRval, Type: resultType})
	a.emit(Instr{Op: OpGotoEnd, Label: done})
	a.emit(Instr{Op: OpEndIf, Label: lelse})
	a.assembleExprValue(n.Else, resultType)
	a.emit(Instr{Op: OpRval, Type: resultType})
	a.emit(Instr{Op: OpEndIf, Label: done})
	return resultType, nil
}

func (a *Assembler) assembleAssign(n *ast.Assign) (*types.Type, error) {
	lvalType, err := a.addressOf(n.Left)
	if err != nil {
		return lvalType, err
	}
	if n.Op == ast.TK_ASSIGN {
		a.assembleExprValue(n.Right, lvalType)
		a.emit(Instr{Op: OpStore, Type: lvalType})
		return lvalType, nil
	}
	a.assembleExprValue(n.Right, lvalType)
	a.emit(Instr{Op: compoundOpFor(n.Op), Type: lvalType})
	return lvalType, nil
}

func (a *Assembler) assembleCall(n *ast.Call) (*types.Type, error) {
	sig, ok := a.sigs[n.Callee]
	if !ok {
		a.error(n.Pos(), "call to undeclared function %q", n.Callee)
		for _, arg := range n.Args {
			a.assembleExpr(arg)
		}
		a.emit(Instr{Op: OpCall, Name: n.Callee, Count: len(n.Args)})
		return types.Int32, nil
	}
	for i, arg := range n.Args {
		want := types.Int32
		if i < len(sig.Params) {
			if t, err := a.resolveType(sig.Params[i].Type); err == nil {
				want = t
			}
		} else {
			want = a.typeOf(arg) // variadic tail: default argument promotions only
		}
		a.assembleExprValue(arg, want)
	}
	retType, _ := a.resolveType(sig.RetType)
	a.emit(Instr{Op: OpCall, Name: n.Callee, Count: len(n.Args), Type: retType})
	return retType, nil
}

// addressOf emits the address (lvalue) of e and returns the type the
// address points to. Used by &x, assignment targets, ++/--, and as
// the base step for member/index chains.
func (a *Assembler) addressOf(e ast.Expr) (*types.Type, error) {
	switch n := e.(type) {
	case *ast.Ident:
		slot := a.scope.lookup(n.Name)
		if slot == nil {
			a.error(n.Pos(), "undeclared identifier %q", n.Name)
			return types.Int32, nil
		}
		a.emitAddressOfLocal(slot)
		return slot.typ, nil
	case *ast.Unary:
		if n.Op == ast.TK_TIMES {
			t, err := a.assembleExpr(n.Operand)
			if err != nil {
				return t, err
			}
			a.emit(Instr{Op: OpDeref, Type: t})
			if t.Kind == types.KindPointer {
				return t.Elem, nil
			}
			return t, nil
		}
	case *ast.Index:
		baseType := a.typeOf(n.Array)
		var elemType *types.Type
		if baseType.Kind == types.KindPointer {
			a.assembleExpr(n.Array) // pointer rvalue is itself the base address
			elemType = baseType.Elem
		} else {
			a.addressOf(n.Array) // array lvalue decays to its own address
			elemType = baseType.Elem
		}
		a.assembleExprValue(n.Index, types.Int64)
		a.emit(Instr{Op: OpIndex, Type: elemType, IVal: int64(elemType.Size)})
		return elemType, nil
	case *ast.Member:
		baseType := a.typeOf(n.Base)
		if baseType.Kind == types.KindPointer {
			a.assembleExpr(n.Base) // pointer rvalue is the struct's address
			baseType = baseType.Elem
		} else {
			a.addressOf(n.Base)
		}
		for _, f := range baseType.Fields {
			if f.Name == n.Field {
				if f.Offset != 0 {
					a.emit(Instr{Op: OpOffset, IVal: int64(f.Offset), Type: f.Type})
				}
				return f.Type, nil
			}
		}
		a.error(n.Pos(), "type %v has no field %q", baseType, n.Field)
		return types.Int32, nil
	}
	a.error(e.Pos(), "expression is not assignable")
	return types.Int32, nil
}
