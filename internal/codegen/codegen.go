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

// Package codegen is the machine-code backend: it walks one
// internal/ir.Func at a time, legalizing each Instr through
// internal/opstack's register/spill bookkeeping into internal/x86
// encodings, and finally links and installs the whole translation
// unit into internal/jitmem executable memory.
package codegen

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/y1yang0/corrosion/internal/abi"
	"github.com/y1yang0/corrosion/internal/branch"
	"github.com/y1yang0/corrosion/internal/bytebuf"
	"github.com/y1yang0/corrosion/internal/ir"
	"github.com/y1yang0/corrosion/internal/jitmem"
	"github.com/y1yang0/corrosion/internal/types"
	"github.com/y1yang0/corrosion/internal/x86"
)

// Signature is the subset of a function's type internal/abi's call
// classification needs, cached by name so a forward call to a
// not-yet-compiled function can still be classified correctly.
type Signature struct {
	Ret      *types.Type
	Params   []*types.Type
	Variadic bool
}

// pendingCall is a CallRel site whose target function hadn't been
// compiled yet when the call was emitted.
type pendingCall struct {
	patchAt int
	callee  string
}

// Generator compiles a whole translation unit into one contiguous
// bytebuf.Buffer, function by function, the way a single compilation
// unit shares one object-file text section: every function's call
// sites can reach every other function's entry point by a plain rel32
// regardless of declaration order, resolved once in Finalize.
type Generator struct {
	abi abi.ABI
	buf *bytebuf.Buffer
	log logrus.FieldLogger

	sigs       map[string]Signature
	funcOffset map[string]int
	funcEnd    map[string]int
	order      []string
	pending    []pendingCall
}

func NewGenerator(log logrus.FieldLogger) *Generator {
	return NewGeneratorForABI(log, abi.Host())
}

// NewGeneratorForABI is NewGenerator with an explicit calling
// convention, the hook the target-triple option needs to
// cross-compile a SysV image on a Win64 host or vice versa
// (internal/context selects a here from the context's Options).
func NewGeneratorForABI(log logrus.FieldLogger, a abi.ABI) *Generator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Generator{
		abi:        a,
		buf:        bytebuf.New(),
		log:        log,
		sigs:       make(map[string]Signature),
		funcOffset: make(map[string]int),
		funcEnd:    make(map[string]int),
	}
}

// RegisterSignatures records every function's call-relevant signature
// before any body is compiled, mirroring internal/ir.Assembler's own
// RegisterSignatures pre-pass: a call lowered early in the unit must
// still classify a callee declared later exactly as internal/abi
// would once that callee is reached.
func (g *Generator) RegisterSignatures(fns []*ir.Func) {
	for _, fn := range fns {
		params := make([]*types.Type, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = p.Type
		}
		g.sigs[fn.Name] = Signature{Ret: fn.Ret, Params: params, Variadic: fn.Variadic}
	}
}

// CompileFunc lowers one function's IR stream to machine code and
// appends it to the shared buffer. It runs the body twice: a throwaway
// dry run computes how many bytes of spill/stackalloc space the
// function needs (opstack.Stack's slot pools are deterministic given
// the same instruction sequence, so a second, real walk with a fresh
// Stack reproduces the identical slot assignments once the frame size
// is known), then the real pass emits the prologue's `sub rsp, N` with
// that size and the actual instruction bytes into g.buf.
func (g *Generator) CompileFunc(fn *ir.Func) error {
	g.log.WithField("func", fn.Name).Debug("codegen: compiling function")

	dryBuf := bytebuf.New()
	dryWalker := newWalker(g, fn, dryBuf, true)
	if err := dryWalker.run(); err != nil {
		return fmt.Errorf("codegen: dry run of %s: %w", fn.Name, err)
	}
	fr := newFrame(fn.FrameSize, dryWalker.stack.SpillSize+dryWalker.stackAllocSize, dryWalker.stack.SpillSize, len(dryWalker.savedRegs))

	g.funcOffset[fn.Name] = g.buf.Len()
	g.order = append(g.order, fn.Name)

	walker := newWalker(g, fn, g.buf, false)
	walker.frame = fr
	if err := walker.run(); err != nil {
		return fmt.Errorf("codegen: %s: %w", fn.Name, err)
	}
	g.funcEnd[fn.Name] = g.buf.Len()
	return nil
}

// Finalize patches every forward call site now that every function's
// final offset is known, installs the whole image into region as one
// contiguous executable mapping, and returns each function's absolute
// entry address.
func (g *Generator) Finalize(region *jitmem.Region) (map[string]uintptr, error) {
	for _, p := range g.pending {
		target, ok := g.funcOffset[p.callee]
		if !ok {
			return nil, fmt.Errorf("codegen: call to undefined function %q", p.callee)
		}
		g.x86Assembler().PatchRel32(p.patchAt, target)
	}
	g.pending = nil

	base, err := region.Install("", g.buf.Bytes())
	if err != nil {
		return nil, err
	}
	baseOff := int(base - region.Base())
	entries := make(map[string]uintptr, len(g.order))
	for _, name := range g.order {
		entries[name] = base + uintptr(g.funcOffset[name])
		region.Register(name, baseOff+g.funcOffset[name], baseOff+g.funcEnd[name])
	}
	return entries, nil
}

// x86Assembler wraps g.buf for the one post-hoc patch Finalize needs;
// every other write goes through a walker's own *x86.Assembler over
// the same buffer.
func (g *Generator) x86Assembler() *x86.Assembler { return x86.NewAssembler(g.buf) }

// branchState is the per-function label bookkeeping a walker threads
// through OpIf/OpElse/OpEndIf/OpGotoTest/OpGotoEnd/OpLoopTest.
type branchState struct {
	defined map[int]int
	pending map[int][]branch.Pending
}

func newBranchState() *branchState {
	return &branchState{defined: make(map[int]int), pending: make(map[int][]branch.Pending)}
}

func (b *branchState) define(as *x86.Assembler, id, offset int) {
	b.defined[id] = offset
	for _, p := range b.pending[id] {
		as.PatchRel32(p.PatchAt, offset)
	}
	delete(b.pending, id)
}

// branchTo emits jump (a closure calling Jmp or Jcc) and resolves it
// immediately against an already-defined label, or registers it as
// pending for a still-forward one.
func (b *branchState) branchTo(as *x86.Assembler, id int, jump func() int) {
	patchAt := jump()
	if target, ok := b.defined[id]; ok {
		as.PatchRel32(patchAt, target)
		return
	}
	b.pending[id] = append(b.pending[id], branch.Pending{PatchAt: patchAt})
}
