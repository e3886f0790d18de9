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

// Package parser builds an *ast.File from a token stream via ordinary
// recursive descent. A parse error is recorded and the parser
// resynchronizes at the next statement boundary, so one bad function
// does not abort the run.
package parser

import (
	"fmt"
	"io"
	"strconv"

	"github.com/y1yang0/corrosion/internal/ast"
	"github.com/y1yang0/corrosion/internal/lexer"
	"github.com/y1yang0/corrosion/internal/types"
)

// Error is a parse diagnostic with a source position.
type Error struct {
	Pos     ast.Pos
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Message) }

type Parser struct {
	lx      *lexer.Lexer
	tok     lexer.Token
	ahead   *lexer.Token
	Errors  []error
	fileName string
}

// Parse tokenizes and parses fileName's contents into an *ast.File.
// Errors encountered are collected on Errors; the caller decides
// whether to keep going with a partial tree.
func Parse(fileName string, src io.Reader) (*ast.File, []error) {
	p := &Parser{lx: lexer.New(fileName, src), fileName: fileName}
	p.advance()
	file := &ast.File{Path: fileName}
	for p.tok.Kind != ast.TK_EOF {
		p.parseTopLevel(file)
	}
	return file, p.Errors
}

func (p *Parser) advance() {
	if p.ahead != nil {
		p.tok = *p.ahead
		p.ahead = nil
		return
	}
	tok, err := p.lx.Next()
	if err != nil {
		p.Errors = append(p.Errors, err)
		p.tok = lexer.Token{Kind: ast.TK_EOF}
		return
	}
	p.tok = tok
}

func (p *Parser) peekAhead() lexer.Token {
	if p.ahead == nil {
		tok, err := p.lx.Next()
		if err != nil {
			p.Errors = append(p.Errors, err)
			tok = lexer.Token{Kind: ast.TK_EOF}
		}
		p.ahead = &tok
	}
	return *p.ahead
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.Errors = append(p.Errors, &Error{Pos: p.tok.Pos, Message: fmt.Sprintf(format, args...)})
}

func (p *Parser) expect(k ast.TokenKind) ast.Pos {
	pos := p.tok.Pos
	if p.tok.Kind != k {
		p.errorf("expected %v, got %v", k, p.tok.Kind)
		return pos
	}
	p.advance()
	return pos
}

// synchronize skips tokens until a likely statement/declaration
// boundary, so one malformed construct does not cascade into spurious
// errors for the rest of the file.
func (p *Parser) synchronize() {
	for p.tok.Kind != ast.TK_EOF && p.tok.Kind != ast.TK_SEMICOLON && p.tok.Kind != ast.TK_RBRACE {
		p.advance()
	}
	if p.tok.Kind == ast.TK_SEMICOLON {
		p.advance()
	}
}

// -----------------------------------------------------------------------------
// Top level: struct/union declarations and function definitions

func (p *Parser) parseTopLevel(file *ast.File) {
	defer func() {
		if r := recover(); r != nil {
			p.errorf("%v", r)
			p.synchronize()
		}
	}()

	if p.tok.Kind == ast.KW_STRUCT || p.tok.Kind == ast.KW_UNION {
		if agg := p.parseAggregateDecl(); agg != nil {
			file.Aggregates = append(file.Aggregates, agg)
		}
		return
	}

	pos := p.tok.Pos
	retType := p.parseTypeSpec()
	name := p.expectIdent()
	p.expect(ast.TK_LPAREN)
	params, variadic := p.parseParamList()
	p.expect(ast.TK_RPAREN)
	body := p.parseBlock()
	file.Funcs = append(file.Funcs, ast.NewFunc(pos, name, params, variadic, retType, body))
}

// parseAggregateDecl parses `struct Name { Type field; ... };`, a
// layout-only declaration consumed by the type cache, never by codegen.
func (p *Parser) parseAggregateDecl() *ast.AggregateDecl {
	pos := p.tok.Pos
	isUnion := p.tok.Kind == ast.KW_UNION
	p.advance()
	name := ""
	if p.tok.Kind == ast.TK_IDENT {
		name = p.tok.Text
		p.advance()
	}
	fields := p.parseAggregateBody()
	p.expect(ast.TK_SEMICOLON)
	return ast.NewAggregateDecl(pos, name, isUnion, fields)
}

// parseAggregateBody parses `{ Type field; ... }`, shared by named
// top-level declarations and inline anonymous struct/union types.
func (p *Parser) parseAggregateBody() []ast.Param {
	p.expect(ast.TK_LBRACE)
	var fields []ast.Param
	for p.tok.Kind != ast.TK_RBRACE && p.tok.Kind != ast.TK_EOF {
		ft := p.parseTypeSpec()
		fname := p.expectIdent()
		for p.tok.Kind == ast.TK_LBRACKET {
			p.advance()
			length := types.UnknownArrayLen
			if p.tok.Kind == ast.LIT_INT {
				n, _ := strconv.ParseInt(p.tok.Text, 10, 64)
				length = int(n)
				p.advance()
			}
			p.expect(ast.TK_RBRACKET)
			ft = &ast.TypeSpec{Kind: ast.SpecArray, Elem: ft, ArrayLen: length}
		}
		fields = append(fields, ast.Param{Name: fname, Type: ft})
		p.expect(ast.TK_SEMICOLON)
	}
	p.expect(ast.TK_RBRACE)
	return fields
}

func (p *Parser) parseParamList() ([]ast.Param, bool) {
	var params []ast.Param
	if p.tok.Kind == ast.KW_TYPE_VOID && p.peekAhead().Kind == ast.TK_RPAREN {
		p.advance()
		return nil, false
	}
	for p.tok.Kind != ast.TK_RPAREN {
		if p.tok.Kind == ast.TK_DOT {
			// '...' variadic marker
			p.advance()
			p.advance()
			p.advance()
			return params, true
		}
		t := p.parseTypeSpec()
		name := ""
		if p.tok.Kind == ast.TK_IDENT {
			name = p.tok.Text
			p.advance()
		}
		params = append(params, ast.Param{Name: name, Type: t})
		if p.tok.Kind == ast.TK_COMMA {
			p.advance()
			continue
		}
		break
	}
	return params, false
}

func (p *Parser) expectIdent() string {
	if p.tok.Kind != ast.TK_IDENT {
		p.errorf("expected identifier, got %v", p.tok.Kind)
		return ""
	}
	name := p.tok.Text
	p.advance()
	return name
}

// parseTypeSpec parses a declaration-specifier plus any number of
// leading '*' pointer declarators: `const unsigned long *` etc.
func (p *Parser) parseTypeSpec() *ast.TypeSpec {
	spec := &ast.TypeSpec{Kind: ast.SpecPrimitive}
	for p.tok.Kind == ast.KW_CONST || p.tok.Kind == ast.KW_TYPE_UNSIGNED {
		if p.tok.Kind == ast.KW_CONST {
			spec.Const = true
		} else {
			spec.Unsigned = true
		}
		p.advance()
	}
	switch p.tok.Kind {
	case ast.KW_STRUCT, ast.KW_UNION:
		isUnion := p.tok.Kind == ast.KW_UNION
		p.advance()
		spec.Kind = ast.SpecUnion
		if !isUnion {
			spec.Kind = ast.SpecStruct
		}
		if p.tok.Kind == ast.TK_IDENT {
			spec.StructName = p.tok.Text
			p.advance()
		} else if p.tok.Kind == ast.TK_LBRACE {
			spec.Fields = p.parseAggregateBody()
		} else {
			p.errorf("expected struct name or body, got %v", p.tok.Kind)
		}
	default:
		if !p.tok.Kind.IsTypeStart() {
			p.errorf("expected a type, got %v", p.tok.Kind)
		}
		spec.Prim = p.tok.Kind
		p.advance()
	}
	for p.tok.Kind == ast.TK_TIMES {
		p.advance()
		spec = &ast.TypeSpec{Kind: ast.SpecPointer, Elem: spec}
	}
	return spec
}

// -----------------------------------------------------------------------------
// Statements

func (p *Parser) parseBlock() *ast.Block {
	pos := p.expect(ast.TK_LBRACE)
	var stmts []ast.Stmt
	for p.tok.Kind != ast.TK_RBRACE && p.tok.Kind != ast.TK_EOF {
		stmts = append(stmts, p.parseStmt())
	}
	p.expect(ast.TK_RBRACE)
	return ast.NewBlock(pos, "", stmts)
}

func (p *Parser) parseStmt() (result ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			p.errorf("%v", r)
			p.synchronize()
			result = ast.NewExprStmt(p.tok.Pos, nil)
		}
	}()

	switch p.tok.Kind {
	case ast.TK_LBRACE:
		return p.parseBlock()
	case ast.KW_IF:
		return p.parseIf()
	case ast.KW_FOR:
		return p.parseFor()
	case ast.KW_WHILE:
		return p.parseWhile()
	case ast.KW_RETURN:
		pos := p.tok.Pos
		p.advance()
		var x ast.Expr
		if p.tok.Kind != ast.TK_SEMICOLON {
			x = p.parseExpr()
		}
		p.expect(ast.TK_SEMICOLON)
		return ast.NewReturn(pos, x)
	case ast.KW_BREAK:
		pos := p.tok.Pos
		p.advance()
		p.expect(ast.TK_SEMICOLON)
		return ast.NewBreak(pos)
	case ast.KW_CONTINUE:
		pos := p.tok.Pos
		p.advance()
		p.expect(ast.TK_SEMICOLON)
		return ast.NewContinue(pos)
	default:
		if p.tok.Kind.IsTypeStart() {
			return p.parseVarDecl()
		}
		pos := p.tok.Pos
		x := p.parseExpr()
		p.expect(ast.TK_SEMICOLON)
		return ast.NewExprStmt(pos, x)
	}
}

func (p *Parser) parseVarDecl() ast.Stmt {
	pos := p.tok.Pos
	t := p.parseTypeSpec()
	name := p.expectIdent()
	for p.tok.Kind == ast.TK_LBRACKET {
		p.advance()
		length := types.UnknownArrayLen
		if p.tok.Kind == ast.LIT_INT {
			n, _ := strconv.ParseInt(p.tok.Text, 10, 64)
			length = int(n)
			p.advance()
		}
		p.expect(ast.TK_RBRACKET)
		t = &ast.TypeSpec{Kind: ast.SpecArray, Elem: t, ArrayLen: length}
	}
	var init ast.Expr
	if p.tok.Kind == ast.TK_ASSIGN {
		p.advance()
		init = p.parseAssignExpr()
	}
	p.expect(ast.TK_SEMICOLON)
	return ast.NewVarDecl(pos, name, t, init)
}

func (p *Parser) parseIf() ast.Stmt {
	pos := p.tok.Pos
	p.advance()
	p.expect(ast.TK_LPAREN)
	cond := p.parseExpr()
	p.expect(ast.TK_RPAREN)
	then := p.parseStmt()
	var els ast.Stmt
	if p.tok.Kind == ast.KW_ELSE {
		p.advance()
		els = p.parseStmt()
	}
	return ast.NewIf(pos, cond, then, els)
}

func (p *Parser) parseFor() ast.Stmt {
	pos := p.tok.Pos
	p.advance()
	p.expect(ast.TK_LPAREN)
	var init ast.Stmt
	if p.tok.Kind != ast.TK_SEMICOLON {
		if p.tok.Kind.IsTypeStart() {
			init = p.parseVarDecl()
		} else {
			init = ast.NewExprStmt(p.tok.Pos, p.parseExpr())
			p.expect(ast.TK_SEMICOLON)
		}
	} else {
		p.advance()
	}
	var cond ast.Expr
	if p.tok.Kind != ast.TK_SEMICOLON {
		cond = p.parseExpr()
	}
	p.expect(ast.TK_SEMICOLON)
	var post ast.Expr
	if p.tok.Kind != ast.TK_RPAREN {
		post = p.parseExpr()
	}
	p.expect(ast.TK_RPAREN)
	body := p.parseStmt()
	return ast.NewFor(pos, init, cond, post, body)
}

func (p *Parser) parseWhile() ast.Stmt {
	pos := p.tok.Pos
	p.advance()
	p.expect(ast.TK_LPAREN)
	cond := p.parseExpr()
	p.expect(ast.TK_RPAREN)
	body := p.parseStmt()
	return ast.NewWhile(pos, cond, body)
}

// -----------------------------------------------------------------------------
// Expressions, precedence-climbing in the classic C grammar order:
// assignment > ternary > logical-or > logical-and > bit-or > bit-xor >
// bit-and > equality > relational > shift > additive > multiplicative
// > unary > postfix > primary.

func (p *Parser) parseExpr() ast.Expr { return p.parseAssignExpr() }

func (p *Parser) parseAssignExpr() ast.Expr {
	left := p.parseTernary()
	if p.tok.Kind.IsAssignOp() {
		pos := p.tok.Pos
		op := p.tok.Kind
		p.advance()
		right := p.parseAssignExpr()
		return ast.NewAssign(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseTernary() ast.Expr {
	cond := p.parseLogicalOr()
	if p.tok.Kind == ast.TK_QUESTION {
		pos := p.tok.Pos
		p.advance()
		then := p.parseExpr()
		p.expect(ast.TK_COLON)
		els := p.parseAssignExpr()
		return ast.NewTernary(pos, cond, then, els)
	}
	return cond
}

func (p *Parser) parseLogicalOr() ast.Expr {
	left := p.parseLogicalAnd()
	for p.tok.Kind == ast.TK_LOGOR {
		pos, op := p.tok.Pos, p.tok.Kind
		p.advance()
		left = ast.NewBinary(pos, op, left, p.parseLogicalAnd())
	}
	return left
}

func (p *Parser) parseLogicalAnd() ast.Expr {
	left := p.parseBitOr()
	for p.tok.Kind == ast.TK_LOGAND {
		pos, op := p.tok.Pos, p.tok.Kind
		p.advance()
		left = ast.NewBinary(pos, op, left, p.parseBitOr())
	}
	return left
}

func (p *Parser) parseBitOr() ast.Expr {
	left := p.parseBitXor()
	for p.tok.Kind == ast.TK_BITOR {
		pos, op := p.tok.Pos, p.tok.Kind
		p.advance()
		left = ast.NewBinary(pos, op, left, p.parseBitXor())
	}
	return left
}

func (p *Parser) parseBitXor() ast.Expr {
	left := p.parseBitAnd()
	for p.tok.Kind == ast.TK_BITXOR {
		pos, op := p.tok.Pos, p.tok.Kind
		p.advance()
		left = ast.NewBinary(pos, op, left, p.parseBitAnd())
	}
	return left
}

func (p *Parser) parseBitAnd() ast.Expr {
	left := p.parseEquality()
	for p.tok.Kind == ast.TK_BITAND {
		pos, op := p.tok.Pos, p.tok.Kind
		p.advance()
		left = ast.NewBinary(pos, op, left, p.parseEquality())
	}
	return left
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseRelational()
	for p.tok.Kind == ast.TK_EQ || p.tok.Kind == ast.TK_NE {
		pos, op := p.tok.Pos, p.tok.Kind
		p.advance()
		left = ast.NewBinary(pos, op, left, p.parseRelational())
	}
	return left
}

func (p *Parser) parseRelational() ast.Expr {
	left := p.parseShift()
	for p.tok.Kind == ast.TK_GT || p.tok.Kind == ast.TK_GE ||
		p.tok.Kind == ast.TK_LT || p.tok.Kind == ast.TK_LE {
		pos, op := p.tok.Pos, p.tok.Kind
		p.advance()
		left = ast.NewBinary(pos, op, left, p.parseShift())
	}
	return left
}

func (p *Parser) parseShift() ast.Expr {
	left := p.parseAdditive()
	for p.tok.Kind == ast.TK_LSHIFT || p.tok.Kind == ast.TK_RSHIFT {
		pos, op := p.tok.Pos, p.tok.Kind
		p.advance()
		left = ast.NewBinary(pos, op, left, p.parseAdditive())
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.tok.Kind == ast.TK_PLUS || p.tok.Kind == ast.TK_MINUS {
		pos, op := p.tok.Pos, p.tok.Kind
		p.advance()
		left = ast.NewBinary(pos, op, left, p.parseMultiplicative())
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseCast()
	for p.tok.Kind == ast.TK_TIMES || p.tok.Kind == ast.TK_DIV || p.tok.Kind == ast.TK_MOD {
		pos, op := p.tok.Pos, p.tok.Kind
		p.advance()
		left = ast.NewBinary(pos, op, left, p.parseCast())
	}
	return left
}

// parseCast handles `(Type)expr`, distinguished from a parenthesized
// expression by lookahead on whether the token after '(' starts a type.
func (p *Parser) parseCast() ast.Expr {
	if p.tok.Kind == ast.TK_LPAREN && p.peekAhead().Kind.IsTypeStart() {
		pos := p.tok.Pos
		p.advance()
		t := p.parseTypeSpec()
		p.expect(ast.TK_RPAREN)
		return ast.NewCast(pos, t, p.parseCast())
	}
	return p.parseUnary()
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.tok.Kind {
	case ast.TK_MINUS, ast.TK_LOGNOT, ast.TK_BITNOT, ast.TK_BITAND, ast.TK_TIMES, ast.TK_PLUS:
		pos, op := p.tok.Pos, p.tok.Kind
		p.advance()
		return ast.NewUnary(pos, op, false, p.parseCast())
	case ast.TK_INC, ast.TK_DEC:
		pos, op := p.tok.Pos, p.tok.Kind
		p.advance()
		return ast.NewUnary(pos, op, false, p.parseUnary())
	case ast.KW_SIZEOF:
		pos := p.tok.Pos
		p.advance()
		if p.tok.Kind == ast.TK_LPAREN && p.peekAhead().Kind.IsTypeStart() {
			p.advance()
			t := p.parseTypeSpec()
			p.expect(ast.TK_RPAREN)
			return ast.NewSizeofType(pos, t)
		}
		return ast.NewSizeofExpr(pos, p.parseUnary())
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		switch p.tok.Kind {
		case ast.TK_LBRACKET:
			pos := p.tok.Pos
			p.advance()
			idx := p.parseExpr()
			p.expect(ast.TK_RBRACKET)
			e = ast.NewIndex(pos, e, idx)
		case ast.TK_DOT, ast.TK_ARROW:
			pos := p.tok.Pos
			p.advance()
			field := p.expectIdent()
			e = ast.NewMember(pos, e, field)
		case ast.TK_INC, ast.TK_DEC:
			pos, op := p.tok.Pos, p.tok.Kind
			p.advance()
			e = ast.NewUnary(pos, op, true, e)
		default:
			return e
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.tok
	switch tok.Kind {
	case ast.LIT_INT:
		p.advance()
		n, _ := strconv.ParseInt(tok.Text, 10, 64)
		return ast.NewIntLit(tok.Pos, n, false)
	case ast.LIT_FLOAT:
		p.advance()
		f, _ := strconv.ParseFloat(tok.Text, 64)
		return ast.NewFloatLit(tok.Pos, f, false)
	case ast.LIT_CHAR:
		p.advance()
		var r rune
		for _, rr := range tok.Text {
			r = rr
			break
		}
		return ast.NewCharLit(tok.Pos, int32(r))
	case ast.LIT_STR:
		p.advance()
		return ast.NewStringLit(tok.Pos, tok.Text)
	case ast.TK_IDENT:
		p.advance()
		if p.tok.Kind == ast.TK_LPAREN {
			p.advance()
			var args []ast.Expr
			for p.tok.Kind != ast.TK_RPAREN {
				args = append(args, p.parseAssignExpr())
				if p.tok.Kind == ast.TK_COMMA {
					p.advance()
					continue
				}
				break
			}
			p.expect(ast.TK_RPAREN)
			return ast.NewCall(tok.Pos, tok.Text, args)
		}
		return ast.NewIdent(tok.Pos, tok.Text)
	case ast.TK_LPAREN:
		p.advance()
		e := p.parseExpr()
		p.expect(ast.TK_RPAREN)
		return e
	default:
		p.errorf("unexpected token %v in expression", tok.Kind)
		p.advance()
		return ast.NewIntLit(tok.Pos, 0, false)
	}
}
