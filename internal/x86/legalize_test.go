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

import (
	"testing"

	"github.com/y1yang0/corrosion/internal/bytebuf"
)

// shapeOf reduces an operand to the constraint bit it satisfies with
// no synthesis, for checking a chosen row against its own mask.
func shapeOf(op Operand) Constraint {
	switch op.(type) {
	case Imm:
		return CImm
	case Reg:
		return CReg
	case XMMReg:
		return CXmm
	case Mem:
		return CMem
	}
	return 0
}

// TestChosenRowSatisfiesEveryConstraint: for a spread of operand
// shapes, whatever row the search settles on must either accept each
// operand's shape directly or carry a synthesis step sequence for it.
func TestChosenRowSatisfiesEveryConstraint(t *testing.T) {
	mem := Mem{W: Width32, Base: RBP, Disp: -8}
	cases := [][]Operand{
		{EAX, ECX},
		{EAX, Imm{W: Width32, Value: 5}},
		{EAX, Imm{W: Width32, Value: 1000}},
		{mem, ECX},
		{EAX, mem},
		{mem, Imm{W: Width32, Value: 3}},
	}
	for _, ops := range cases {
		lz, ok := findLegalization(MAdd, ops)
		if !ok {
			t.Fatalf("no legalization found for %v", ops)
		}
		for i, op := range ops {
			direct := lz.row.constraints[i]&shapeOf(op) != 0
			if !direct && len(lz.steps[i]) == 0 {
				t.Fatalf("row for %v leaves operand %d (%v) neither accepted nor synthesized", ops, i, op)
			}
		}
	}
}

func TestEmitPrefersImm8RowOverImm32(t *testing.T) {
	viaEmit := bytebuf.New()
	NewAssembler(viaEmit).Emit(MAdd, EAX, Imm{W: Width32, Value: 5})
	direct := bytebuf.New()
	NewAssembler(direct).AluRegImm(AluAdd, EAX, 5)
	if string(viaEmit.Bytes()) != string(direct.Bytes()) {
		t.Fatalf("Emit bytes % x differ from the direct imm8 encoding % x", viaEmit.Bytes(), direct.Bytes())
	}
	if viaEmit.Bytes()[0] != 0x83 {
		t.Fatalf("expected the 0x83 imm8 row, got opcode %#x", viaEmit.Bytes()[0])
	}
}

func TestEmitTakesMemorySecondOperandInPlace(t *testing.T) {
	mem := Mem{W: Width32, Base: RBP, Disp: -8}
	viaEmit := bytebuf.New()
	NewAssembler(viaEmit).Emit(MAdd, EAX, mem)
	direct := bytebuf.New()
	NewAssembler(direct).AluRegMem(AluAdd, EAX, mem)
	if string(viaEmit.Bytes()) != string(direct.Bytes()) {
		t.Fatalf("Emit % x should use the op r, r/m row directly, want % x", viaEmit.Bytes(), direct.Bytes())
	}
}

func TestEmitWritesBackMemoryDestinationOnlyWhenRowDemandsIt(t *testing.T) {
	// "add [rbp-8], ecx" has a direct r/m,r row: no scratch load, no
	// writeback, identical to the single-shape method.
	mem := Mem{W: Width32, Base: RBP, Disp: -8}
	viaEmit := bytebuf.New()
	NewAssembler(viaEmit).Emit(MAdd, mem, ECX)
	direct := bytebuf.New()
	NewAssembler(direct).AluMemReg(AluAdd, mem, ECX)
	if string(viaEmit.Bytes()) != string(direct.Bytes()) {
		t.Fatalf("Emit % x should pick the zero-cost memory-destination row, want % x", viaEmit.Bytes(), direct.Bytes())
	}
}

func TestEmitMaterializesTooWideImmediateThroughScratch(t *testing.T) {
	wide := int64(1) << 33
	buf := bytebuf.New()
	NewAssembler(buf).Emit(MAdd, RAX, Imm{W: Width64, Value: wide})
	// No immediate row accepts a 64-bit value, so the legalizer must
	// first movabs it into the secondary scratch, then add reg, reg.
	want := bytebuf.New()
	a := NewAssembler(want)
	a.MovRegImm(ScratchInt2, wide)
	a.AluRegReg(AluAdd, RAX, ScratchInt2)
	if string(buf.Bytes()) != string(want.Bytes()) {
		t.Fatalf("Emit % x, want movabs+add % x", buf.Bytes(), want.Bytes())
	}
}

func TestEmitPanicsWhenNoRowLegalizes(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Emit with an un-encodable operand set must panic: an internal compiler error, not a silent fallback")
		}
	}()
	// lea only accepts (reg, mem); two immediates have no bridge.
	NewAssembler(bytebuf.New()).Emit(Lea, Imm{W: Width64, Value: 1}, Imm{W: Width64, Value: 2})
}
