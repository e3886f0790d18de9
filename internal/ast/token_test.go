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

package ast

import "testing"

func TestIsCmpOpCoversAllSixComparisons(t *testing.T) {
	for _, k := range []TokenKind{TK_EQ, TK_NE, TK_GT, TK_GE, TK_LT, TK_LE} {
		if !k.IsCmpOp() {
			t.Fatalf("%v.IsCmpOp() = false, want true", k)
		}
	}
	if TK_PLUS.IsCmpOp() {
		t.Fatal("TK_PLUS.IsCmpOp() = true, want false")
	}
}

func TestIsShortCircuitOpOnlyAndOr(t *testing.T) {
	if !TK_LOGAND.IsShortCircuitOp() || !TK_LOGOR.IsShortCircuitOp() {
		t.Fatal("&& and || must report IsShortCircuitOp()=true")
	}
	if TK_BITAND.IsShortCircuitOp() {
		t.Fatal("& is not a short-circuit operator")
	}
}

func TestIsAssignOpCoversCompoundForms(t *testing.T) {
	compound := []TokenKind{TK_ASSIGN, TK_PLUS_AGN, TK_MINUS_AGN, TK_TIMES_AGN,
		TK_DIV_AGN, TK_MOD_AGN, TK_RSHIFT_AGN, TK_LSHIFT_AGN, TK_BITXOR_AGN,
		TK_BITAND_AGN, TK_BITOR_AGN}
	for _, k := range compound {
		if !k.IsAssignOp() {
			t.Fatalf("%v.IsAssignOp() = false, want true", k)
		}
	}
	if TK_EQ.IsAssignOp() {
		t.Fatal("== must not be treated as an assignment operator")
	}
}

func TestIsTypeStartCoversPrimitivesAndAggregates(t *testing.T) {
	starts := []TokenKind{KW_TYPE_INT, KW_TYPE_LONG, KW_TYPE_SHORT, KW_TYPE_CHAR,
		KW_TYPE_BOOL, KW_TYPE_FLOAT, KW_TYPE_DOUBLE, KW_TYPE_VOID,
		KW_TYPE_UNSIGNED, KW_STRUCT, KW_UNION, KW_CONST}
	for _, k := range starts {
		if !k.IsTypeStart() {
			t.Fatalf("%v.IsTypeStart() = false, want true", k)
		}
	}
	if TK_IDENT.IsTypeStart() {
		t.Fatal("a bare identifier does not start a type")
	}
}

func TestPosStringFormatsFileLineCol(t *testing.T) {
	p := NewPos("main.c", 3, 7)
	if got, want := p.String(), "main.c:3:7"; got != want {
		t.Fatalf("Pos.String() = %q, want %q", got, want)
	}
}

func TestKeywordsTableRoundTripsThroughTokenKindString(t *testing.T) {
	for lexeme, kind := range Keywords {
		if kind.String() != lexeme {
			t.Fatalf("Keywords[%q].String() = %q, want %q", lexeme, kind.String(), lexeme)
		}
	}
}
