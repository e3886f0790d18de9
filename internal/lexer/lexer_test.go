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

package lexer

import (
	"strings"
	"testing"

	"github.com/y1yang0/corrosion/internal/ast"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	lx := New("t.c", strings.NewReader(src))
	var toks []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			t.Fatalf("Next(): %v", err)
		}
		toks = append(toks, tok)
		if tok.Kind == ast.TK_EOF {
			return toks
		}
	}
}

func TestKeywordsAreNotIdentifiers(t *testing.T) {
	toks := scanAll(t, "int return struct")
	want := []ast.TokenKind{ast.KW_TYPE_INT, ast.KW_RETURN, ast.KW_STRUCT, ast.TK_EOF}
	for i, w := range want {
		if toks[i].Kind != w {
			t.Fatalf("token %d kind = %v, want %v", i, toks[i].Kind, w)
		}
	}
}

func TestIdentifierWithUnderscoreAndDigits(t *testing.T) {
	toks := scanAll(t, "_foo123 bar")
	if toks[0].Kind != ast.TK_IDENT || toks[0].Text != "_foo123" {
		t.Fatalf("token 0 = %+v, want ident _foo123", toks[0])
	}
	if toks[1].Kind != ast.TK_IDENT || toks[1].Text != "bar" {
		t.Fatalf("token 1 = %+v, want ident bar", toks[1])
	}
}

func TestIntegerVsFloatLiteral(t *testing.T) {
	toks := scanAll(t, "42 3.14 5f")
	if toks[0].Kind != ast.LIT_INT || toks[0].Text != "42" {
		t.Fatalf("token 0 = %+v, want int 42", toks[0])
	}
	if toks[1].Kind != ast.LIT_FLOAT || toks[1].Text != "3.14" {
		t.Fatalf("token 1 = %+v, want float 3.14", toks[1])
	}
	if toks[2].Kind != ast.LIT_FLOAT {
		t.Fatalf("token 2 = %+v, want a float literal (trailing f suffix)", toks[2])
	}
}

func TestIntegerSuffixesAreConsumedAndIgnored(t *testing.T) {
	toks := scanAll(t, "10UL 20L")
	if toks[0].Kind != ast.LIT_INT || toks[0].Text != "10" {
		t.Fatalf("token 0 = %+v, want int 10 (UL suffix stripped)", toks[0])
	}
	if toks[1].Kind != ast.LIT_INT || toks[1].Text != "20" {
		t.Fatalf("token 1 = %+v, want int 20 (L suffix stripped)", toks[1])
	}
}

func TestMaximalMunchOnCompoundOperators(t *testing.T) {
	cases := []struct {
		src  string
		kind ast.TokenKind
	}{
		{"++", ast.TK_INC},
		{"--", ast.TK_DEC},
		{"->", ast.TK_ARROW},
		{"<<=", ast.TK_LSHIFT_AGN},
		{">>=", ast.TK_RSHIFT_AGN},
		{"<<", ast.TK_LSHIFT},
		{">>", ast.TK_RSHIFT},
		{"<=", ast.TK_LE},
		{">=", ast.TK_GE},
		{"==", ast.TK_EQ},
		{"!=", ast.TK_NE},
		{"&&", ast.TK_LOGAND},
		{"||", ast.TK_LOGOR},
	}
	for _, tc := range cases {
		toks := scanAll(t, tc.src)
		if toks[0].Kind != tc.kind {
			t.Fatalf("scanning %q gave kind %v, want %v", tc.src, toks[0].Kind, tc.kind)
		}
		if toks[1].Kind != ast.TK_EOF {
			t.Fatalf("scanning %q left trailing tokens: %+v", tc.src, toks[1:])
		}
	}
}

func TestLineCommentIsSkipped(t *testing.T) {
	toks := scanAll(t, "1 // a comment\n+ 2")
	if toks[0].Kind != ast.LIT_INT || toks[1].Kind != ast.TK_PLUS || toks[2].Kind != ast.LIT_INT {
		t.Fatalf("tokens = %+v, want [int, +, int, eof]", toks)
	}
}

func TestBlockCommentIsSkipped(t *testing.T) {
	toks := scanAll(t, "1 /* multi\nline */ + 2")
	if toks[0].Kind != ast.LIT_INT || toks[1].Kind != ast.TK_PLUS || toks[2].Kind != ast.LIT_INT {
		t.Fatalf("tokens = %+v, want [int, +, int, eof]", toks)
	}
}

func TestUnterminatedBlockCommentIsAnError(t *testing.T) {
	lx := New("t.c", strings.NewReader("/* never closed"))
	if _, err := lx.Next(); err == nil {
		t.Fatal("expected an error for an unterminated block comment")
	}
}

func TestStringLiteralHandlesEscapes(t *testing.T) {
	toks := scanAll(t, `"a\nb"`)
	if toks[0].Kind != ast.LIT_STR || toks[0].Text != "a\nb" {
		t.Fatalf("token 0 = %+v, want string \"a\\nb\"", toks[0])
	}
}

func TestUnterminatedStringIsAnError(t *testing.T) {
	lx := New("t.c", strings.NewReader(`"never closed`))
	if _, err := lx.Next(); err == nil {
		t.Fatal("expected an error for an unterminated string literal")
	}
}

func TestCharLiteralEscape(t *testing.T) {
	toks := scanAll(t, `'\n'`)
	if toks[0].Kind != ast.LIT_CHAR || toks[0].Text != "\n" {
		t.Fatalf("token 0 = %+v, want char '\\n'", toks[0])
	}
}

func TestUnexpectedCharacterIsAnError(t *testing.T) {
	lx := New("t.c", strings.NewReader("@"))
	if _, err := lx.Next(); err == nil {
		t.Fatal("expected an error for an unrecognized character")
	}
}
