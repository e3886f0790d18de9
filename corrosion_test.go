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

package corrosion

import (
	"strings"
	"testing"

	"github.com/y1yang0/corrosion/internal/jitmem"
)

// runMain parses source, compiles it, invokes main with zero
// arguments, and returns its integer result. Failures are fatal test
// errors so each scenario reads as a single assertion.
func runMain(t *testing.T, source string) int64 {
	t.Helper()
	ctx := CreateContext(Options{})
	defer DestroyContext(ctx)

	if err := Parse(ctx, strings.NewReader(source), "test.c"); err != nil {
		t.Fatalf("Parse(%q): %v", source, err)
	}
	addr, ok := Get(ctx, "main")
	if !ok {
		t.Fatalf("Get(ctx, \"main\") not found for source %q", source)
	}
	return jitmem.Invoke0(addr)
}

// TestEndToEndScenarios compiles and runs a set of small programs
// and checks main's return value.
func TestEndToEndScenarios(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   int64
	}{
		{"literal-arithmetic", "int main(){return 1+2;}", 3},
		{"integer-division", "int main(){int x=10; int y=3; return x/y;}", 3},
		{"for-loop-accumulate", "int main(){int s=0; for(int i=1;i<=10;i++) s+=i; return s;}", 55},
		{"function-call", "int sum(int a,int b){return a+b;} int main(){return sum(40,2);}", 42},
		{"sizeof-struct-with-padding", "int main(){return sizeof(struct{char a;long b;char c;});}", 24},
		{"ternary", "int main(){int a=5; return (a>0)?7:9;}", 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := runMain(t, tc.source); got != tc.want {
				t.Fatalf("main() = %d, want %d (source: %s)", got, tc.want, tc.source)
			}
		})
	}
}

func TestParseReturnWithoutValueInIntFunctionFails(t *testing.T) {
	ctx := CreateContext(Options{})
	defer DestroyContext(ctx)

	err := Parse(ctx, strings.NewReader("int main(){ return ; }"), "bad.c")
	if err == nil {
		t.Fatal("expected an error for a return with no value in a function returning int")
	}
}

func TestGetUnknownSymbolReturnsFalse(t *testing.T) {
	ctx := CreateContext(Options{})
	defer DestroyContext(ctx)

	if err := Parse(ctx, strings.NewReader("int main(){return 0;}"), "ok.c"); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := Get(ctx, "does_not_exist"); ok {
		t.Fatal("Get on an undefined symbol should report ok=false")
	}
}

func TestOtherFunctionsRemainCompilableAfterOneFails(t *testing.T) {
	// A semantic error aborts compilation of the offending function
	// only; the rest of the translation unit stays callable.
	src := `
int broken(){ return undeclared_identifier; }
int main(){ return 11; }
`
	ctx := CreateContext(Options{})
	defer DestroyContext(ctx)

	_ = Parse(ctx, strings.NewReader(src), "partial.c")
	addr, ok := Get(ctx, "main")
	if !ok {
		t.Fatal("main should still be compiled and registered despite broken()'s semantic error")
	}
	if got := jitmem.Invoke0(addr); got != 11 {
		t.Fatalf("main() = %d, want 11", got)
	}
}
