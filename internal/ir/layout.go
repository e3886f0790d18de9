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

// varSlot is one local's resolved storage: its type and (once
// assignOffsets has run) its rbp-relative byte offset.
type varSlot struct {
	name   string
	typ    *types.Type
	offset int
}

// scopeNode is one level of the tree of lexical scopes built while
// walking a function body. Sibling scopes that are never live at the
// same time (the then/else arms of an if, or successive blocks) reuse
// the same frame bytes: the frame only needs to be as deep as the
// single longest root-to-leaf path, not the sum of every declaration
// in the function.
type scopeNode struct {
	vars     []*varSlot
	children []*scopeNode
	parent   *scopeNode
}

func newScope(parent *scopeNode) *scopeNode {
	s := &scopeNode{parent: parent}
	if parent != nil {
		parent.children = append(parent.children, s)
	}
	return s
}

func align(n, a int) int {
	if a <= 1 {
		return n
	}
	if n%a != 0 {
		n += a - n%a
	}
	return n
}

// declare adds a local to this scope, aligned to its own type.
func (s *scopeNode) declare(name string, t *types.Type) *varSlot {
	v := &varSlot{name: name, typ: t}
	s.vars = append(s.vars, v)
	return v
}

// assignOffsets is process_size_tree: it assigns every var in this
// subtree an absolute frame offset starting at base, and returns the
// number of frame bytes this subtree needs (its own declarations plus
// the widest child, since children never overlap in lifetime).
func (s *scopeNode) assignOffsets(base int) int {
	offset := base
	for _, v := range s.vars {
		offset = align(offset, v.typ.Align)
		v.offset = offset
		offset += v.typ.Size
	}
	ownSize := offset - base
	maxChild := 0
	for _, c := range s.children {
		if sz := c.assignOffsets(base + ownSize); sz > maxChild {
			maxChild = sz
		}
	}
	return ownSize + maxChild
}

// lookup searches this scope and its ancestors for name.
func (s *scopeNode) lookup(name string) *varSlot {
	for cur := s; cur != nil; cur = cur.parent {
		for _, v := range cur.vars {
			if v.name == name {
				return v
			}
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Sethi-Ullman numbering

// suNumber computes the Sethi-Ullman label of an expression subtree:
// the minimum number of registers needed to evaluate it without ever
// spilling, per Sethi & Ullman 1970.
func suNumber(e ast.Expr) int {
	switch n := e.(type) {
	case *ast.Binary:
		l, r := suNumber(n.Left), suNumber(n.Right)
		if l == r {
			return l + 1
		}
		if l > r {
			return l
		}
		return r
	case *ast.Assign:
		l, r := suNumber(n.Left), suNumber(n.Right)
		if l > r {
			return l
		}
		return r
	case *ast.Unary:
		return suNumber(n.Operand)
	case *ast.Ternary:
		t, e2 := suNumber(n.Then), suNumber(n.Else)
		if t > e2 {
			return t
		}
		return e2
	case *ast.Cast:
		return suNumber(n.Operand)
	case *ast.Index:
		a, i := suNumber(n.Array), suNumber(n.Index)
		if a > i {
			return a
		}
		return i
	case *ast.Member:
		return suNumber(n.Base)
	case *ast.Call:
		// a call clobbers every caller-saved register regardless of
		// its argument complexity, so it always costs the whole bank.
		return 7
	default:
		return 1
	}
}

// isPure reports whether evaluating e cannot observe or affect any
// mutable state: no calls, no assignments, no increment/decrement.
// Reordering the evaluation of a binary operand pair by Sethi-Ullman
// number is unsound when an operand has a side effect ("a() + b()"
// must evaluate left-to-right, not by whichever has the higher SU
// number), so the swap is gated on both subtrees being pure.
func isPure(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.Binary:
		return isPure(n.Left) && isPure(n.Right)
	case *ast.Unary:
		if n.Op == ast.TK_INC || n.Op == ast.TK_DEC {
			return false
		}
		return isPure(n.Operand)
	case *ast.Ternary:
		return isPure(n.Cond) && isPure(n.Then) && isPure(n.Else)
	case *ast.Cast:
		return isPure(n.Operand)
	case *ast.Index:
		return isPure(n.Array) && isPure(n.Index)
	case *ast.Member:
		return isPure(n.Base)
	case *ast.Call, *ast.Assign:
		return false
	default:
		return true
	}
}
