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

package context

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/y1yang0/corrosion/internal/jitmem"
)

// TestEndToEndScenarios compiles and runs a set of small programs at
// the context layer: parse, compile, Invoke0, assert.
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
			ctx := NewContext(Options{})
			defer ctx.Destroy()

			require.NoError(t, ctx.Parse(strings.NewReader(tc.source), "t.c"))
			addr, ok := ctx.Get("main")
			require.True(t, ok, "Get(\"main\") not found")
			assert.Equal(t, tc.want, jitmem.Invoke0(addr))
		})
	}
}

func TestParseErrorKindIsSyntaxForLexicalFailure(t *testing.T) {
	ctx := NewContext(Options{})
	defer ctx.Destroy()

	err := ctx.Parse(strings.NewReader("int main(){ return @; }"), "t.c")
	require.Error(t, err, "expected an error for an unrecognized character")

	cerr, ok := err.(*Error)
	require.True(t, ok, "err = %T, want *context.Error", err)
	assert.Equal(t, Syntax, cerr.Kind, "an unrecognized character is the lexer's error, not the parser's")
}

func TestParseTwiceAccumulatesEntriesAcrossCalls(t *testing.T) {
	ctx := NewContext(Options{})
	defer ctx.Destroy()

	require.NoError(t, ctx.Parse(strings.NewReader("int f(){return 1;}"), "a.c"))
	require.NoError(t, ctx.Parse(strings.NewReader("int g(){return 2;}"), "b.c"))

	_, ok := ctx.Get("f")
	assert.True(t, ok, "f from the first Parse call should still be resolvable")
	_, ok = ctx.Get("g")
	assert.True(t, ok, "g from the second Parse call should be resolvable")
}

func TestGetUnknownSymbolReturnsFalse(t *testing.T) {
	ctx := NewContext(Options{})
	defer ctx.Destroy()

	require.NoError(t, ctx.Parse(strings.NewReader("int main(){return 0;}"), "t.c"))
	_, ok := ctx.Get("nope")
	assert.False(t, ok, "Get on an undefined symbol should report ok=false")
}

func TestDestroyIsIdempotentWithoutAnyParse(t *testing.T) {
	ctx := NewContext(Options{})
	assert.NoError(t, ctx.Destroy())
	assert.NoError(t, ctx.Destroy())
}
