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

package x86

import "fmt"

// ScratchInt and ScratchInt2 are the fixed scratch GPRs the legalizer
// reaches for when an operand needs materializing before an ALU op
// can run on it; no scratch is ever live across a single Emit call.
// ScratchXMM is declared in registers.go.
var (
	ScratchInt  = reg(0, Width64, "rax")
	ScratchInt2 = reg(1, Width64, "rcx")
)

// FitsImm8 reports whether v can ride in the sign-extended imm8 slot
// that the 0x83-family rows offer in place of a full imm32 — the
// predicate that makes the imm8 row in instructionTable the cheaper,
// winning candidate when it applies.
func FitsImm8(v int64) bool { return v >= -128 && v <= 127 }

// FitsImm32 reports whether v fits a sign-extended 32-bit immediate,
// the widest immediate any row in this table accepts directly (a
// wider literal must first ride through MovRegImm's movabs form,
// which this table does not model as a candidate row).
func FitsImm32(v int64) bool { return v >= -(1 << 31) && v < (1 << 31) }

// Mnemonic is the closed set of operations Emit's static table
// enumerates encodings for.
type Mnemonic uint8

const (
	Mov Mnemonic = iota
	Movzx
	Movsx
	Lea
	MAdd
	MOr
	MAnd
	MSub
	MXor
	MCmp
	MImul
	MNot
	MNeg
)

// Mnemonic maps an ALU opcode-row family onto the legalizer's
// mnemonic space, so a caller holding an AluOp (arith.go) can drive
// Emit without a second switch.
func (op AluOp) Mnemonic() Mnemonic {
	return [...]Mnemonic{MAdd, MOr, MAnd, MSub, MXor, MCmp}[op]
}

// Constraint is the bitmask of operand shapes a table row's slot
// accepts directly, with no synthesis needed.
type Constraint uint8

const (
	CReg Constraint = 1 << iota
	CXmm
	CImm
	CMem
)

// step is one legalization action the synthesizer emits to bridge an
// actual operand to a row's constraint: the bridging moves this
// table's rows ever need (imm/mem -> GPR, mem -> xmm, GPR<->xmm
// bit-reinterpretation).
type step uint8

const (
	stepImmToReg step = iota
	stepDerefToReg
	stepDerefToXmm
	stepToReg
	stepToXmm
)

// InstrRow is one candidate encoding for a Mnemonic. perform is handed
// operands already bridged to satisfy the row's constraints, and
// calls whichever existing single-shape Assembler method (in
// mov.go/arith.go/float.go) that row's opcode corresponds to: Emit's
// job is the row search and step synthesis, not re-deriving REX/ModRM
// bytes the encoder already knows how to produce.
type InstrRow struct {
	mnemonic    Mnemonic
	nops        int
	constraints [2]Constraint
	baseCost    int
	predicate   func(ops []Operand) bool
	perform     func(a *Assembler, ops [2]Operand)
}

func aluImmPerform(op AluOp) func(a *Assembler, ops [2]Operand) {
	return func(a *Assembler, ops [2]Operand) {
		imm := ops[1].(Imm).Value
		if m, ok := ops[0].(Mem); ok {
			a.AluMemImm(op, m, imm)
			return
		}
		a.AluRegImm(op, ops[0].(Reg), imm)
	}
}

// aluRows builds the four candidate encodings every ALU mnemonic
// shares (add/or/and/sub/xor/cmp): the "op r/m, r" and "op r, r/m"
// register-or-memory forms, and the imm8/imm32 immediate forms.
func aluRows(mn Mnemonic, op AluOp) []InstrRow {
	return []InstrRow{
		{ // op r/m, r
			mnemonic:    mn,
			nops:        2,
			constraints: [2]Constraint{CReg | CMem, CReg},
			perform: func(a *Assembler, ops [2]Operand) {
				if m, ok := ops[0].(Mem); ok {
					a.AluMemReg(op, m, ops[1].(Reg))
					return
				}
				a.AluRegReg(op, ops[0].(Reg), ops[1].(Reg))
			},
		},
		{ // op r, r/m
			mnemonic:    mn,
			nops:        2,
			constraints: [2]Constraint{CReg, CReg | CMem},
			perform: func(a *Assembler, ops [2]Operand) {
				if m, ok := ops[1].(Mem); ok {
					a.AluRegMem(op, ops[0].(Reg), m)
					return
				}
				a.AluRegReg(op, ops[0].(Reg), ops[1].(Reg))
			},
		},
		{ // op r/m, imm8 — cheaper than the imm32 row below when it fits
			mnemonic:    mn,
			nops:        2,
			constraints: [2]Constraint{CReg | CMem, CImm},
			baseCost:    0,
			predicate: func(ops []Operand) bool {
				imm, ok := ops[1].(Imm)
				return ok && FitsImm8(imm.Value)
			},
			perform:     aluImmPerform(op),
		},
		{ // op r/m, imm32; a wider literal has to materialize into a
			// register first (the movabs path), so no row accepts it.
			mnemonic:    mn,
			nops:        2,
			constraints: [2]Constraint{CReg | CMem, CImm},
			baseCost:    1,
			predicate: func(ops []Operand) bool {
				imm, ok := ops[1].(Imm)
				return ok && FitsImm32(imm.Value)
			},
			perform:     aluImmPerform(op),
		},
	}
}

// instructionTable is the legalizer's static instruction set,
// expressed against this package's existing single-shape encoder
// methods rather than against encodeInstruction directly: the table
// decides which of those methods applies and at what cost, it does
// not reimplement them.
var instructionTable = buildInstructionTable()

func buildInstructionTable() []InstrRow {
	var t []InstrRow
	t = append(t, aluRows(MAdd, AluAdd)...)
	t = append(t, aluRows(MOr, AluOr)...)
	t = append(t, aluRows(MAnd, AluAnd)...)
	t = append(t, aluRows(MSub, AluSub)...)
	t = append(t, aluRows(MXor, AluXor)...)
	t = append(t, aluRows(MCmp, AluCmp)...)
	t = append(t, []InstrRow{
		{ // mov r, imm — the short 0xB8+r/movabs form; cost 0, tried first
			mnemonic:    Mov,
			nops:        2,
			constraints: [2]Constraint{CReg, CImm},
			perform: func(a *Assembler, ops [2]Operand) {
				a.MovRegImm(ops[0].(Reg), ops[1].(Imm).Value)
			},
		},
		{ // mov r/m, r
			mnemonic:    Mov,
			nops:        2,
			constraints: [2]Constraint{CReg | CMem, CReg},
			baseCost:    1,
			perform: func(a *Assembler, ops [2]Operand) {
				if m, ok := ops[0].(Mem); ok {
					a.MovMemReg(m, ops[1].(Reg))
					return
				}
				a.MovRegReg(ops[0].(Reg), ops[1].(Reg))
			},
		},
		{ // mov r, r/m
			mnemonic:    Mov,
			nops:        2,
			constraints: [2]Constraint{CReg, CReg | CMem},
			baseCost:    1,
			perform: func(a *Assembler, ops [2]Operand) {
				if m, ok := ops[1].(Mem); ok {
					a.MovRegMem(ops[0].(Reg), m)
					return
				}
				a.MovRegReg(ops[0].(Reg), ops[1].(Reg))
			},
		},
		{ // mov r/m, imm — dst is memory, the short-form row above can't apply
			mnemonic:    Mov,
			nops:        2,
			constraints: [2]Constraint{CMem, CImm},
			perform: func(a *Assembler, ops [2]Operand) {
				a.MovMemImm(ops[0].(Mem), ops[1].(Imm).Value)
			},
		},
		{
			mnemonic:    Movzx,
			nops:        2,
			constraints: [2]Constraint{CReg, CReg},
			perform: func(a *Assembler, ops [2]Operand) {
				a.MovzxRegReg(ops[0].(Reg), ops[1].(Reg))
			},
		},
		{
			mnemonic:    Movsx,
			nops:        2,
			constraints: [2]Constraint{CReg, CReg},
			perform: func(a *Assembler, ops [2]Operand) {
				a.MovsxRegReg(ops[0].(Reg), ops[1].(Reg))
			},
		},
		{
			mnemonic:    Lea,
			nops:        2,
			constraints: [2]Constraint{CReg, CMem},
			perform: func(a *Assembler, ops [2]Operand) {
				a.LeaRegMem(ops[0].(Reg), ops[1].(Mem))
			},
		},
		{ // two-operand signed multiply (0x0F 0xAF /r); no imm or mem-dst form
			mnemonic:    MImul,
			nops:        2,
			constraints: [2]Constraint{CReg, CReg},
			perform: func(a *Assembler, ops [2]Operand) {
				a.ImulRegReg(ops[0].(Reg), ops[1].(Reg))
			},
		},
		{
			mnemonic:    MNot,
			nops:        1,
			constraints: [2]Constraint{CReg, 0},
			perform: func(a *Assembler, ops [2]Operand) {
				a.NotReg(ops[0].(Reg))
			},
		},
		{
			mnemonic:    MNeg,
			nops:        1,
			constraints: [2]Constraint{CReg, 0},
			perform: func(a *Assembler, ops [2]Operand) {
				a.NegReg(ops[0].(Reg))
			},
		},
	}...)
	return t
}

// legalizeOperand synthesizes the step sequence needed to bridge op
// into constraint c, or reports that no such sequence exists.
func legalizeOperand(op Operand, c Constraint) ([]step, bool) {
	switch op.(type) {
	case Imm:
		switch {
		case c&CImm != 0:
			return nil, true
		case c&CReg != 0:
			return []step{stepImmToReg}, true
		case c&CXmm != 0:
			return []step{stepImmToReg, stepToXmm}, true
		}
	case Reg:
		switch {
		case c&CReg != 0:
			return nil, true
		case c&CXmm != 0:
			return []step{stepToXmm}, true
		}
	case XMMReg:
		switch {
		case c&CXmm != 0:
			return nil, true
		case c&CReg != 0:
			return []step{stepToReg}, true
		}
	case Mem:
		switch {
		case c&CMem != 0:
			return nil, true
		case c&CReg != 0:
			return []step{stepDerefToReg}, true
		case c&CXmm != 0:
			return []step{stepDerefToXmm}, true
		}
	}
	return nil, false
}

// legalization is one row's fully-costed candidate: per-operand
// synthesis steps, plus whether operand 0 — always the destination,
// by this table's convention — must be written back to its original
// memory location after the op ran against a materialized scratch
// register instead of in place.
type legalization struct {
	row        InstrRow
	steps      [2][]step
	writeback0 bool
	cost       int
}

// findLegalization is emit()'s row search: walk every row for
// mnemonic, reject rows with the wrong operand count, a failing
// predicate, or a constraint no step sequence can bridge, and keep
// the minimum-cost survivor. Cost is the number of synthesis steps a
// row needs; the cheapest wins, with the first-declared row winning a
// tie.
func findLegalization(mnemonic Mnemonic, ops []Operand) (*legalization, bool) {
	var best *legalization
	for _, row := range instructionTable {
		if row.mnemonic != mnemonic || row.nops != len(ops) {
			continue
		}
		if row.predicate != nil && !row.predicate(ops) {
			continue
		}
		cand := legalization{row: row, cost: row.baseCost}
		ok := true
		for i, op := range ops {
			steps, fits := legalizeOperand(op, row.constraints[i])
			if !fits {
				ok = false
				break
			}
			cand.steps[i] = steps
			cand.cost += len(steps)
			if i == 0 {
				if _, isMem := op.(Mem); isMem && row.constraints[0]&CMem == 0 {
					cand.writeback0 = true
					cand.cost++
				}
			}
		}
		if !ok {
			continue
		}
		if best == nil || cand.cost < best.cost {
			c := cand
			best = &c
		}
	}
	return best, best != nil
}

// materialize executes one legalization step, returning the register
// operand (GPR or XMM) it produced in place of op. The scratch
// register is chosen by operand position so materializing the second
// operand never clobbers a first operand already sitting in the
// primary scratch.
func (a *Assembler) materialize(op Operand, s step, opIdx int) Operand {
	gpr, xmm := ScratchInt, ScratchXMM[0]
	if opIdx > 0 {
		gpr, xmm = ScratchInt2, ScratchXMM[1]
	}
	switch s {
	case stepImmToReg:
		imm := op.(Imm)
		r := gpr.Cast(imm.W)
		a.MovRegImm(r, imm.Value)
		return r
	case stepDerefToReg:
		m := op.(Mem)
		r := gpr.Cast(m.W)
		a.MovRegMem(r, m)
		return r
	case stepDerefToXmm:
		m := op.(Mem)
		a.MovXmmMem(xmm, m, m.W == Width64)
		return xmm
	case stepToXmm:
		r := op.(Reg)
		a.MovqGprToXmm(xmm, r)
		return xmm
	case stepToReg:
		a.MovqXmmToGpr(gpr, op.(XMMReg))
		return gpr
	}
	return op
}

// Emit is the generic legalizing entry point: it searches
// instructionTable for every row matching mnemonic and the supplied
// operands' shapes, synthesizes whatever materialization the cheapest
// matching row needs, and executes it. It panics if no row legalizes:
// that is a compiler bug, not a user-facing error.
func (a *Assembler) Emit(mnemonic Mnemonic, ops ...Operand) {
	lz, ok := findLegalization(mnemonic, ops)
	if !ok {
		panic(fmt.Sprintf("x86: legalizer found no encoding for mnemonic %d with operands %v", mnemonic, ops))
	}
	resolved := make([]Operand, len(ops))
	copy(resolved, ops)
	for i, steps := range lz.steps {
		if i >= len(ops) {
			continue
		}
		for _, s := range steps {
			resolved[i] = a.materialize(resolved[i], s, i)
		}
	}
	var args [2]Operand
	copy(args[:], resolved)
	lz.row.perform(a, args)
	if lz.writeback0 {
		orig := ops[0].(Mem)
		switch v := resolved[0].(type) {
		case Reg:
			a.MovMemReg(orig, v)
		case XMMReg:
			a.MovMemXmm(orig, v, orig.W == Width64)
		}
	}
}
