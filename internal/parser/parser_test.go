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

package parser

import (
	"strings"
	"testing"

	"github.com/y1yang0/corrosion/internal/ast"
)

func parseOK(t *testing.T, src string) *ast.File {
	t.Helper()
	file, errs := Parse("t.c", strings.NewReader(src))
	if len(errs) != 0 {
		t.Fatalf("Parse(%q) returned errors: %v", src, errs)
	}
	return file
}

func TestParseFunctionSignatureAndParams(t *testing.T) {
	file := parseOK(t, "int sum(int a, int b){ return a+b; }")
	if len(file.Funcs) != 1 {
		t.Fatalf("got %d funcs, want 1", len(file.Funcs))
	}
	fn := file.Funcs[0]
	if fn.Name != "sum" || len(fn.Params) != 2 || fn.Variadic {
		t.Fatalf("fn = %+v", fn)
	}
	if fn.Params[0].Name != "a" || fn.Params[1].Name != "b" {
		t.Fatalf("params = %+v", fn.Params)
	}
}

func TestParseVariadicMarker(t *testing.T) {
	file := parseOK(t, "int printf(char *fmt, ...){ return 0; }")
	fn := file.Funcs[0]
	if !fn.Variadic {
		t.Fatal("expected Variadic=true for a trailing '...' parameter")
	}
	if len(fn.Params) != 1 {
		t.Fatalf("got %d fixed params, want 1", len(fn.Params))
	}
}

func TestParseStructDecl(t *testing.T) {
	file := parseOK(t, "struct P { int x; int y; };\nint main(){ return 0; }")
	if len(file.Aggregates) != 1 {
		t.Fatalf("got %d aggregates, want 1", len(file.Aggregates))
	}
	agg := file.Aggregates[0]
	if agg.Name != "P" || agg.IsUnion || len(agg.Fields) != 2 {
		t.Fatalf("agg = %+v", agg)
	}
}

func TestParseUnionDecl(t *testing.T) {
	file := parseOK(t, "union U { int i; float f; };\nint main(){ return 0; }")
	agg := file.Aggregates[0]
	if !agg.IsUnion {
		t.Fatal("expected IsUnion=true for a union declaration")
	}
}

// TestOperatorPrecedenceMultiplicativeBindsTighterThanAdditive checks
// the precedence-climbing chain actually nests as 1+(2*3), not (1+2)*3.
func TestOperatorPrecedenceMultiplicativeBindsTighterThanAdditive(t *testing.T) {
	file := parseOK(t, "int main(){ return 1+2*3; }")
	ret := file.Funcs[0].Body.Stmts[0].(*ast.Return)
	top, ok := ret.X.(*ast.Binary)
	if !ok || top.Op != ast.TK_PLUS {
		t.Fatalf("top-level op = %+v, want +", ret.X)
	}
	rhs, ok := top.Right.(*ast.Binary)
	if !ok || rhs.Op != ast.TK_TIMES {
		t.Fatalf("rhs = %+v, want a * node", top.Right)
	}
}

func TestTernaryExpressionParsesToTernaryNode(t *testing.T) {
	file := parseOK(t, "int main(){ int a=5; return (a>0)?7:9; }")
	ret := file.Funcs[0].Body.Stmts[1].(*ast.Return)
	if _, ok := ret.X.(*ast.Ternary); !ok {
		t.Fatalf("ret.X = %T, want *ast.Ternary", ret.X)
	}
}

func TestForLoopProducesInitCondPostBody(t *testing.T) {
	file := parseOK(t, "int main(){ int s=0; for(int i=1;i<=10;i++) s+=i; return s; }")
	forStmt := file.Funcs[0].Body.Stmts[1].(*ast.For)
	if forStmt.Init == nil || forStmt.Cond == nil || forStmt.Post == nil || forStmt.Body == nil {
		t.Fatalf("for statement missing a clause: %+v", forStmt)
	}
}

func TestCastExpressionIsDistinguishedFromParenExpr(t *testing.T) {
	file := parseOK(t, "int main(){ return (int)1.5; }")
	ret := file.Funcs[0].Body.Stmts[0].(*ast.Return)
	if _, ok := ret.X.(*ast.Cast); !ok {
		t.Fatalf("ret.X = %T, want *ast.Cast", ret.X)
	}
}

func TestSizeofTypeVsSizeofExpr(t *testing.T) {
	file := parseOK(t, "int main(){ return sizeof(int) + sizeof(1+1); }")
	ret := file.Funcs[0].Body.Stmts[0].(*ast.Return)
	bin := ret.X.(*ast.Binary)
	if _, ok := bin.Left.(*ast.Sizeof); !ok {
		t.Fatalf("lhs = %T, want *ast.Sizeof", bin.Left)
	}
}

func TestCallExpressionCollectsArguments(t *testing.T) {
	file := parseOK(t, "int main(){ return sum(40,2); }")
	ret := file.Funcs[0].Body.Stmts[0].(*ast.Return)
	call := ret.X.(*ast.Call)
	if call.Callee != "sum" || len(call.Args) != 2 {
		t.Fatalf("call = %+v", call)
	}
}

func TestMalformedStatementRecordsErrorAndResynchronizes(t *testing.T) {
	// An unrecognized character in the first statement must not
	// swallow the rest of the function body: the parser records the
	// error and still produces the function.
	file, errs := Parse("t.c", strings.NewReader("int main(){ int x = @ ; return 1; }"))
	if len(errs) == 0 {
		t.Fatal("expected at least one recorded error")
	}
	if len(file.Funcs) != 1 {
		t.Fatalf("got %d funcs, want 1 (parser should still produce a function)", len(file.Funcs))
	}
}
