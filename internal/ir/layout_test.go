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
	"testing"

	"github.com/y1yang0/corrosion/internal/ast"
	"github.com/y1yang0/corrosion/internal/types"
)

func leaf() ast.Expr { return &ast.IntLit{Value: 1} }

func TestSuNumberLeafIsOne(t *testing.T) {
	if got := suNumber(leaf()); got != 1 {
		t.Fatalf("suNumber(leaf) = %d, want 1", got)
	}
}

func TestSuNumberEqualChildrenIncrements(t *testing.T) {
	// (1+2): both leaves have SU number 1, so the sum needs 1+1=2.
	n := &ast.Binary{Op: ast.TK_PLUS, Left: leaf(), Right: leaf()}
	if got := suNumber(n); got != 2 {
		t.Fatalf("suNumber(1+2) = %d, want 2", got)
	}
}

func TestSuNumberUnequalChildrenTakesMax(t *testing.T) {
	// ((1+2)+3): left subtree has SU number 2, right leaf has 1 -> max(2,1)=2.
	deep := &ast.Binary{Op: ast.TK_PLUS, Left: leaf(), Right: leaf()}
	n := &ast.Binary{Op: ast.TK_PLUS, Left: deep, Right: leaf()}
	if got := suNumber(n); got != 2 {
		t.Fatalf("suNumber = %d, want 2", got)
	}
}

func TestSuNumberCallCostsWholeBank(t *testing.T) {
	call := &ast.Call{Callee: "f"}
	if got := suNumber(call); got != 7 {
		t.Fatalf("suNumber(call) = %d, want 7", got)
	}
}

func TestIsPureRejectsCallAnywhereInSubtree(t *testing.T) {
	call := &ast.Call{Callee: "f"}
	n := &ast.Binary{Op: ast.TK_PLUS, Left: leaf(), Right: call}
	if isPure(n) {
		t.Fatal("a binary expression containing a call must not be pure")
	}
}

func TestIsPureRejectsIncrementDecrement(t *testing.T) {
	inc := &ast.Unary{Op: ast.TK_INC, Operand: &ast.Ident{Name: "i"}}
	n := &ast.Binary{Op: ast.TK_PLUS, Left: leaf(), Right: inc}
	if isPure(n) {
		t.Fatal("a binary expression containing ++ must not be pure")
	}
}

func TestIsPureRejectsAssignment(t *testing.T) {
	assign := &ast.Assign{Op: ast.TK_ASSIGN, Left: &ast.Ident{Name: "x"}, Right: leaf()}
	n := &ast.Binary{Op: ast.TK_PLUS, Left: assign, Right: leaf()}
	if isPure(n) {
		t.Fatal("a binary expression containing an assignment must not be pure")
	}
}

func TestIsPureAcceptsArithmeticOnly(t *testing.T) {
	n := &ast.Binary{Op: ast.TK_PLUS,
		Left:  &ast.Binary{Op: ast.TK_TIMES, Left: leaf(), Right: leaf()},
		Right: &ast.Unary{Op: ast.TK_MINUS, Operand: leaf()},
	}
	if !isPure(n) {
		t.Fatal("pure arithmetic nesting should be reported pure")
	}
}

// TestScopeOffsetsSiblingsReuseFrameBytes: independent sibling
// branches may share the same frame offsets, so two
// sibling scopes, each declaring one 4-byte int, must not both be
// charged their own 4 bytes of frame space.
func TestScopeOffsetsSiblingsReuseFrameBytes(t *testing.T) {
	root := newScope(nil)
	thenScope := newScope(root)
	thenScope.declare("a", types.Int32)
	elseScope := newScope(root)
	elseScope.declare("b", types.Int32)

	total := root.assignOffsets(0)
	if total != 4 {
		t.Fatalf("sibling scopes should share frame bytes: got total=%d, want 4", total)
	}
}

func TestScopeOffsetsNestedChildrenAccumulate(t *testing.T) {
	root := newScope(nil)
	root.declare("a", types.Int32)
	child := newScope(root)
	child.declare("b", types.Int64)

	total := root.assignOffsets(0)
	// a at 0 (4 bytes), b aligned to 8 -> offset 8, ends at 16.
	if total != 16 {
		t.Fatalf("nested scope should accumulate with alignment: got %d, want 16", total)
	}
	b := child.lookup("b")
	if b.offset != 8 {
		t.Fatalf("b.offset = %d, want 8 (aligned past a's 4 bytes)", b.offset)
	}
}
