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

package codegen

import (
	"testing"

	"github.com/y1yang0/corrosion/internal/abi"
	"github.com/y1yang0/corrosion/internal/bytebuf"
	"github.com/y1yang0/corrosion/internal/ir"
	"github.com/y1yang0/corrosion/internal/opstack"
	"github.com/y1yang0/corrosion/internal/types"
)

func bigStruct() *types.Type {
	c := types.NewCache()
	return c.Struct("", []string{"a", "b", "c"}, []*types.Type{types.Int64, types.Int64, types.Int64})
}

// TestCallWithMemoryClassReturnPushesBufferAddress: a call whose
// return classifies MEMORY must leave an lvalue_abs pointing at a
// caller-allocated buffer on the operand stack, never a scalar read
// of rax, and the buffer must be accounted for in the frame's
// stackalloc area.
func TestCallWithMemoryClassReturnPushesBufferAddress(t *testing.T) {
	big := bigStruct()
	g := NewGeneratorForABI(nil, abi.SysV{})
	g.sigs["mk"] = Signature{Ret: big}

	fn := &ir.Func{Name: "caller", Ret: types.Void, Instrs: []ir.Instr{
		{Op: ir.OpFunc, Name: "caller"},
		{Op: ir.OpCall, Name: "mk", Type: big},
	}}
	w := newWalker(g, fn, bytebuf.New(), true)
	if err := w.run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if w.stack.Len() != 1 {
		t.Fatalf("stack depth = %d, want 1 (the returned aggregate's address)", w.stack.Len())
	}
	top := w.stack.Peek(0)
	if top.Kind != opstack.LvalueAbs {
		t.Fatalf("top of stack kind = %v, want lvalue_abs pointing at the return buffer", top.Kind)
	}
	if w.stackAllocSize < big.Size {
		t.Fatalf("stackAllocSize = %d, want >= %d (the caller-allocated return buffer)", w.stackAllocSize, big.Size)
	}
}

// TestHiddenReturnPointerShiftsIntegerArgRegisters: with a MEMORY
// return, the first integer register carries the hidden pointer and
// every integer argument shifts one slot down.
func TestHiddenReturnPointerShiftsIntegerArgRegisters(t *testing.T) {
	big := bigStruct()
	g := NewGeneratorForABI(nil, abi.SysV{})
	plan := abi.SysV{}.Classify(big, []*types.Type{types.Int64}, false)
	if !plan.Ret.IsBig {
		t.Fatalf("fixture return should classify IsBig, got %+v", plan.Ret)
	}
	w := newWalker(g, &ir.Func{Name: "f"}, bytebuf.New(), true)
	idx := w.assignArgRegs(plan)
	if idx[0] != 1 {
		t.Fatalf("first integer argument register index = %d, want 1 (index 0 is the hidden return pointer)", idx[0])
	}
}
