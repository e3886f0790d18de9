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
	"fmt"

	"github.com/y1yang0/corrosion/internal/ast"
	"github.com/y1yang0/corrosion/internal/types"
)

// loopCtx tracks the fixup labels a break/continue inside the current
// loop must branch to. In a for loop, continue lands on the post
// expression, not directly on the condition test.
type loopCtx struct {
	continueLabel int // continue target: the post expression (for) or the test (while)
	endLabel      int // break target: first instruction past the loop
}

// Assembler lowers a typed *ast.File, function by function, into
// ir.Func streams. One Assembler is reused across every function of a
// translation unit so struct/union layout (RegisterAggregates) and
// function signatures are visible to every caller; only the
// per-function symbol table and IR buffer reset between functions.
type Assembler struct {
	cache      *types.Cache
	aggregates map[string]*types.Type
	sigs       map[string]*ast.Func

	scope     *scopeNode
	instrs    []Instr
	labelSeq  int
	loopStack []loopCtx
	errs      []error
	fnName    string
	fnRet     *types.Type
}

func NewAssembler(cache *types.Cache) *Assembler {
	return &Assembler{
		cache:      cache,
		aggregates: make(map[string]*types.Type),
		sigs:       make(map[string]*ast.Func),
	}
}

// RegisterSignatures records every function's signature so calls can
// be checked (and their return type inferred) regardless of
// declaration order within the translation unit.
func (a *Assembler) RegisterSignatures(file *ast.File) {
	for _, fn := range file.Funcs {
		a.sigs[fn.Name] = fn
	}
}

func (a *Assembler) error(pos ast.Pos, format string, args ...interface{}) {
	a.errs = append(a.errs, &Error{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (a *Assembler) newLabel() int {
	a.labelSeq++
	return a.labelSeq
}

func (a *Assembler) emit(i Instr) { a.instrs = append(a.instrs, i) }

// AssembleFunc lowers a single function body to an ir.Func. Errors
// recorded during lowering abort only this function; the caller
// should still move on to the next function in the file.
func (a *Assembler) AssembleFunc(fn *ast.Func) (*Func, []error) {
	a.scope = newScope(nil)
	a.instrs = nil
	a.loopStack = nil
	a.errs = nil
	a.fnName = fn.Name

	retType, err := a.resolveType(fn.RetType)
	if err != nil {
		a.error(fn.Pos(), "%v", err)
		retType = types.Void
	}
	a.fnRet = retType

	params := make([]Param, len(fn.Params))
	for i, p := range fn.Params {
		pt, err := a.resolveType(p.Type)
		if err != nil {
			a.error(fn.Pos(), "%v", err)
			pt = types.Int32
		}
		slot := a.scope.declare(p.Name, pt)
		params[i] = Param{Name: p.Name, Type: pt}
		_ = slot
	}

	// Build the scope tree for the body before assigning offsets: the
	// frame layout pass needs the whole tree to compute sibling reuse.
	bodyScope := newScope(a.scope)
	scopeOf := make(map[ast.Stmt]*scopeNode)
	a.buildScopeTree(bodyScope, fn.Body.Stmts, scopeOf)

	frameSize := a.scope.assignOffsets(0)
	frameSize = align(frameSize, 16)

	for i := range params {
		params[i].Offset = a.scope.lookup(params[i].Name).offset
	}

	a.emit(Instr{Op: OpFunc, Name: fn.Name, Count: frameSize})
	a.assembleBlockWithScope(fn.Body, bodyScope, scopeOf)
	a.emit(Instr{Op: OpFuncEnd, Name: fn.Name})

	return &Func{
		Name:      fn.Name,
		Params:    params,
		Ret:       retType,
		Variadic:  fn.Variadic,
		FrameSize: frameSize,
		Instrs:    a.instrs,
	}, a.errs
}

// -----------------------------------------------------------------------------
// Scope-tree construction (pass 1: discover every declaration so
// sibling scopes can share frame bytes; pass 2, assignOffsets, runs
// once the whole tree is known).

func (a *Assembler) buildScopeTree(scope *scopeNode, stmts []ast.Stmt, scopeOf map[ast.Stmt]*scopeNode) {
	for _, stmt := range stmts {
		a.buildScopeTreeStmt(scope, stmt, scopeOf)
	}
}

func (a *Assembler) buildScopeTreeStmt(scope *scopeNode, stmt ast.Stmt, scopeOf map[ast.Stmt]*scopeNode) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		t, err := a.resolveType(s.Type)
		if err != nil {
			a.error(s.Pos(), "%v", err)
			t = types.Int32
		}
		scope.declare(s.Name, t)
	case *ast.Block:
		child := newScope(scope)
		scopeOf[s] = child
		a.buildScopeTree(child, s.Stmts, scopeOf)
	case *ast.If:
		thenScope := newScope(scope)
		scopeOf[s.Then] = thenScope
		a.buildScopeTreeStmt(thenScope, s.Then, scopeOf)
		if s.Else != nil {
			elseScope := newScope(scope)
			scopeOf[s.Else] = elseScope
			a.buildScopeTreeStmt(elseScope, s.Else, scopeOf)
		}
	case *ast.For:
		forScope := newScope(scope)
		scopeOf[s] = forScope
		if s.Init != nil {
			a.buildScopeTreeStmt(forScope, s.Init, scopeOf)
		}
		a.buildScopeTreeStmt(forScope, s.Body, scopeOf)
	case *ast.While:
		whileScope := newScope(scope)
		scopeOf[s] = whileScope
		a.buildScopeTreeStmt(whileScope, s.Body, scopeOf)
	default:
		// ExprStmt, Return, Break, Continue declare nothing.
	}
}

// -----------------------------------------------------------------------------
// Statement emission (pass 3: walks the same tree shape as pass 1,
// looking scopes back up from scopeOf instead of re-creating them).

func (a *Assembler) assembleBlockWithScope(b *ast.Block, scope *scopeNode, scopeOf map[ast.Stmt]*scopeNode) {
	saved := a.scope
	a.scope = scope
	for _, stmt := range b.Stmts {
		a.assembleStmt(stmt, scopeOf)
	}
	a.scope = saved
}

func (a *Assembler) assembleStmt(stmt ast.Stmt, scopeOf map[ast.Stmt]*scopeNode) {
	switch s := stmt.(type) {
	case *ast.Block:
		a.assembleBlockWithScope(s, scopeOf[s], scopeOf)
	case *ast.VarDecl:
		slot := a.scope.lookup(s.Name)
		if s.Init != nil {
			a.emitAddressOfLocal(slot)
			a.assembleExprValue(s.Init, slot.typ)
			a.emit(Instr{Op: OpStore, Type: slot.typ})
			a.emit(Instr{Op: OpDiscard})
		}
	case *ast.ExprStmt:
		if s.X == nil {
			return
		}
		t, _ := a.assembleExpr(s.X)
		a.emit(Instr{Op: OpDiscard, Type: t})
	case *ast.Return:
		if s.X != nil {
			a.assembleExprValue(s.X, a.fnRet)
			a.emit(Instr{Op: OpRet, Type: a.fnRet, Count: 1})
		} else {
			if a.fnRet != nil && !a.fnRet.IsVoid() {
				a.error(s.Pos(), "return with no value in function returning non-void")
			}
			a.emit(Instr{Op: OpRet, Count: 0})
		}
	case *ast.If:
		a.assembleIf(s, scopeOf)
	case *ast.For:
		a.assembleFor(s, scopeOf)
	case *ast.While:
		a.assembleWhile(s, scopeOf)
	case *ast.Break:
		if len(a.loopStack) == 0 {
			a.error(s.Pos(), "break outside loop")
			return
		}
		a.emit(Instr{Op: OpGotoEnd, Label: a.loopStack[len(a.loopStack)-1].endLabel})
	case *ast.Continue:
		if len(a.loopStack) == 0 {
			a.error(s.Pos(), "continue outside loop")
			return
		}
		a.emit(Instr{Op: OpGotoTest, Label: a.loopStack[len(a.loopStack)-1].continueLabel})
	default:
		a.error(ast.Pos{}, "unsupported statement %T", s)
	}
}

func (a *Assembler) assembleIf(s *ast.If, scopeOf map[ast.Stmt]*scopeNode) {
	elseLabel := a.newLabel()
	a.assembleExprValue(s.Cond, types.Int32)
	a.emit(Instr{Op: OpIf, Label: elseLabel})
	a.assembleStmtInScope(s.Then, scopeOf)
	if s.Else != nil {
		endLabel := a.newLabel()
		a.emit(Instr{Op: OpElse, Label: endLabel})
		a.emit(Instr{Op: OpEndIf, Label: elseLabel})
		a.assembleStmtInScope(s.Else, scopeOf)
		a.emit(Instr{Op: OpEndIf, Label: endLabel})
	} else {
		a.emit(Instr{Op: OpEndIf, Label: elseLabel})
	}
}

func (a *Assembler) assembleStmtInScope(stmt ast.Stmt, scopeOf map[ast.Stmt]*scopeNode) {
	if sc, ok := scopeOf[stmt]; ok {
		saved := a.scope
		a.scope = sc
		a.assembleStmt(stmt, scopeOf)
		a.scope = saved
		return
	}
	a.assembleStmt(stmt, scopeOf)
}

func (a *Assembler) assembleFor(s *ast.For, scopeOf map[ast.Stmt]*scopeNode) {
	saved := a.scope
	a.scope = scopeOf[s]
	defer func() { a.scope = saved }()

	if s.Init != nil {
		a.assembleStmt(s.Init, scopeOf)
	}
	testLabel := a.newLabel()
	endLabel := a.newLabel()
	postLabel := a.newLabel()
	a.emit(Instr{Op: OpLoopTest, Label: testLabel})
	if s.Cond != nil {
		a.assembleExprValue(s.Cond, types.Int32)
		a.emit(Instr{Op: OpIf, Label: endLabel})
	}
	a.loopStack = append(a.loopStack, loopCtx{continueLabel: postLabel, endLabel: endLabel})
	a.assembleStmt(s.Body, scopeOf)
	a.loopStack = a.loopStack[:len(a.loopStack)-1]
	a.emit(Instr{Op: OpLoopTest, Label: postLabel})
	if s.Post != nil {
		t, _ := a.assembleExpr(s.Post)
		a.emit(Instr{Op: OpDiscard, Type: t})
	}
	a.emit(Instr{Op: OpGotoTest, Label: testLabel})
	a.emit(Instr{Op: OpEndIf, Label: endLabel})
}

func (a *Assembler) assembleWhile(s *ast.While, scopeOf map[ast.Stmt]*scopeNode) {
	saved := a.scope
	a.scope = scopeOf[s]
	defer func() { a.scope = saved }()

	testLabel := a.newLabel()
	endLabel := a.newLabel()
	a.emit(Instr{Op: OpLoopTest, Label: testLabel})
	a.assembleExprValue(s.Cond, types.Int32)
	a.emit(Instr{Op: OpIf, Label: endLabel})
	a.loopStack = append(a.loopStack, loopCtx{continueLabel: testLabel, endLabel: endLabel})
	a.assembleStmt(s.Body, scopeOf)
	a.loopStack = a.loopStack[:len(a.loopStack)-1]
	a.emit(Instr{Op: OpGotoTest, Label: testLabel})
	a.emit(Instr{Op: OpEndIf, Label: endLabel})
}

func (a *Assembler) emitAddressOfLocal(slot *varSlot) {
	a.emit(Instr{Op: OpLAddr, Name: slot.name, IVal: int64(slot.offset), Type: slot.typ})
}

// assembleExprValue evaluates e and, if its type differs from want,
// inserts the needed promotion/truncation conversion (e.g. an int
// literal feeding a long parameter).
func (a *Assembler) assembleExprValue(e ast.Expr, want *types.Type) {
	got, _ := a.assembleExpr(e)
	if want != nil && got != nil && got != want && !want.IsVoid() {
		a.emit(Instr{Op: OpCvt, Type: got, Type2: want})
	}
}
