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

// Constructors live apart from the node definitions so the parser
// (a different package) never needs to touch the unexported base
// fields directly.

func NewIntLit(p Pos, v int64, unsigned bool) *IntLit {
	return &IntLit{base: base{pos: p}, Value: v, Unsigned: unsigned}
}

func NewFloatLit(p Pos, v float64, isFloat bool) *FloatLit {
	return &FloatLit{base: base{pos: p}, Value: v, IsFloat: isFloat}
}

func NewCharLit(p Pos, v int32) *CharLit {
	return &CharLit{base: base{pos: p}, Value: v}
}

func NewStringLit(p Pos, v string) *StringLit {
	return &StringLit{base: base{pos: p}, Value: v}
}

func NewIdent(p Pos, name string) *Ident {
	return &Ident{base: base{pos: p}, Name: name}
}

func NewUnary(p Pos, op TokenKind, postfix bool, operand Expr) *Unary {
	return &Unary{base: base{pos: p}, Op: op, Postfix: postfix, Operand: operand}
}

func NewBinary(p Pos, op TokenKind, left, right Expr) *Binary {
	return &Binary{base: base{pos: p}, Op: op, Left: left, Right: right}
}

func NewAssign(p Pos, op TokenKind, left, right Expr) *Assign {
	return &Assign{base: base{pos: p}, Op: op, Left: left, Right: right}
}

func NewTernary(p Pos, cond, then, els Expr) *Ternary {
	return &Ternary{base: base{pos: p}, Cond: cond, Then: then, Else: els}
}

func NewCall(p Pos, callee string, args []Expr) *Call {
	return &Call{base: base{pos: p}, Callee: callee, Args: args}
}

func NewIndex(p Pos, arr, idx Expr) *Index {
	return &Index{base: base{pos: p}, Array: arr, Index: idx}
}

func NewMember(p Pos, base_ Expr, field string) *Member {
	return &Member{base: base{pos: p}, Base: base_, Field: field}
}

func NewCast(p Pos, target *TypeSpec, operand Expr) *Cast {
	return &Cast{base: base{pos: p}, Target: target, Operand: operand}
}

func NewSizeofExpr(p Pos, operand Expr) *Sizeof {
	return &Sizeof{base: base{pos: p}, Operand: operand}
}

func NewSizeofType(p Pos, target *TypeSpec) *Sizeof {
	return &Sizeof{base: base{pos: p}, Target: target}
}

func NewExprStmt(p Pos, x Expr) *ExprStmt { return &ExprStmt{pos: p, X: x} }

func NewVarDecl(p Pos, name string, t *TypeSpec, init Expr) *VarDecl {
	return &VarDecl{pos: p, Name: name, Type: t, Init: init}
}

func NewBlock(p Pos, name string, stmts []Stmt) *Block {
	return &Block{pos: p, Name: name, Stmts: stmts}
}

func NewIf(p Pos, cond Expr, then, els Stmt) *If {
	return &If{pos: p, Cond: cond, Then: then, Else: els}
}

func NewFor(p Pos, init Stmt, cond, post Expr, body Stmt) *For {
	return &For{pos: p, Init: init, Cond: cond, Post: post, Body: body}
}

func NewWhile(p Pos, cond Expr, body Stmt) *While {
	return &While{pos: p, Cond: cond, Body: body}
}

func NewReturn(p Pos, x Expr) *Return { return &Return{pos: p, X: x} }
func NewBreak(p Pos) *Break           { return &Break{pos: p} }
func NewContinue(p Pos) *Continue     { return &Continue{pos: p} }

func NewFunc(p Pos, name string, params []Param, variadic bool, ret *TypeSpec, body *Block) *Func {
	return &Func{pos: p, Name: name, Params: params, Variadic: variadic, RetType: ret, Body: body}
}

func NewAggregateDecl(p Pos, name string, isUnion bool, fields []Param) *AggregateDecl {
	return &AggregateDecl{pos: p, Name: name, IsUnion: isUnion, Fields: fields}
}
