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

// typeOf is a non-emitting static type inference, used where the
// static type of a subexpression is needed before any code for it is
// generated (ternary/short-circuit join types, sizeof, compound
// assignment). It mirrors the type rules assembleExpr applies while
// emitting, so the two must be kept in sync.
func (a *Assembler) typeOf(e ast.Expr) *types.Type {
	switch n := e.(type) {
	case *ast.IntLit:
		if n.Unsigned {
			return types.UInt32
		}
		return types.Int32
	case *ast.FloatLit:
		if n.IsFloat {
			return types.Float32
		}
		return types.Float64
	case *ast.CharLit:
		return types.Int8
	case *ast.StringLit:
		return a.cache.Pointer(types.Int8)
	case *ast.Ident:
		if slot := a.scope.lookup(n.Name); slot != nil {
			return slot.typ
		}
		a.error(n.Pos(), "undeclared identifier %q", n.Name)
		return types.Int32
	case *ast.Unary:
		switch n.Op {
		case ast.TK_BITAND:
			return a.cache.Pointer(a.typeOf(n.Operand))
		case ast.TK_TIMES:
			t := a.typeOf(n.Operand)
			if t.Kind == types.KindPointer {
				return t.Elem
			}
			return t
		case ast.TK_LOGNOT:
			return types.Int32
		default:
			return a.typeOf(n.Operand)
		}
	case *ast.Binary:
		if n.Op.IsCmpOp() || n.Op.IsShortCircuitOp() {
			return types.Int32
		}
		return promote(a.typeOf(n.Left), a.typeOf(n.Right))
	case *ast.Assign:
		return a.typeOf(n.Left)
	case *ast.Ternary:
		return promote(a.typeOf(n.Then), a.typeOf(n.Else))
	case *ast.Call:
		if sig, ok := a.sigs[n.Callee]; ok {
			t, _ := a.resolveType(sig.RetType)
			return t
		}
		return types.Int32
	case *ast.Index:
		t := a.typeOf(n.Array)
		if t.Kind == types.KindPointer || t.Kind == types.KindArray {
			return t.Elem
		}
		return t
	case *ast.Member:
		base := a.typeOf(n.Base)
		if base.Kind == types.KindPointer {
			base = base.Elem
		}
		for _, f := range base.Fields {
			if f.Name == n.Field {
				return f.Type
			}
		}
		a.error(n.Pos(), "type %v has no field %q", base, n.Field)
		return types.Int32
	case *ast.Cast:
		t, _ := a.resolveType(n.Target)
		return t
	case *ast.Sizeof:
		return types.UInt64
	default:
		return types.Int32
	}
}

// promote implements C's usual arithmetic conversions, simplified to
// this front end's closed type set: float beats int, wider beats
// narrower, and anything narrower than Int32 is promoted to Int32.
func promote(l, r *types.Type) *types.Type {
	if l == nil {
		return r
	}
	if r == nil {
		return l
	}
	if l.IsFloat() || r.IsFloat() {
		if l.Rank() >= r.Rank() && l.IsFloat() {
			return l
		}
		if r.IsFloat() {
			return r
		}
		return l
	}
	if l.Kind == types.KindPointer {
		return l
	}
	if r.Kind == types.KindPointer {
		return r
	}
	wider := l
	if r.Rank() > l.Rank() {
		wider = r
	}
	if wider.Rank() < types.Int32.Rank() {
		return types.Int32
	}
	return wider
}
