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

package opstack

import (
	"testing"

	"github.com/y1yang0/corrosion/internal/types"
)

func TestPushPopBalance(t *testing.T) {
	s := New()
	a := s.PushRvalue(types.Int32)
	b := s.PushRvalue(types.Int32)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	got := s.Pop()
	if got.Slot != b.Slot || got.Class != b.Class {
		t.Fatalf("Pop() = %+v, want last-pushed %+v", got, b)
	}
	got = s.Pop()
	if got.Slot != a.Slot {
		t.Fatalf("Pop() = %+v, want first-pushed %+v", got, a)
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d after draining, want 0", s.Len())
	}
}

func TestRegisterPoolReuseAfterPop(t *testing.T) {
	s := New()
	first := s.PushRvalue(types.Int32)
	s.Pop()
	second := s.PushRvalue(types.Int32)
	if second.Slot != first.Slot || second.Spilled {
		t.Fatalf("expected freed slot %d to be reused, got %+v", first.Slot, second)
	}
}

func TestSpillOnPoolExhaustion(t *testing.T) {
	s := New()
	for i := 0; i < GPRSlots; i++ {
		item := s.PushRvalue(types.Int32)
		if item.Spilled {
			t.Fatalf("slot %d should not have spilled; pool has %d slots", i, GPRSlots)
		}
	}
	spilled := s.PushRvalue(types.Int32)
	if !spilled.Spilled {
		t.Fatal("expected the (GPRSlots+1)th rvalue to spill")
	}
	if s.SpillSize != 8 {
		t.Fatalf("SpillSize = %d, want 8", s.SpillSize)
	}
}

func TestSpillReleaseIsLIFO(t *testing.T) {
	s := New()
	for i := 0; i < GPRSlots; i++ {
		s.PushRvalue(types.Int32)
	}
	// Two spills now; popping in reverse order should unwind spillTop
	// back to zero, popping out of order must not.
	s.PushRvalue(types.Int32) // spill #1, offset 0
	s.PushRvalue(types.Int32) // spill #2, offset 8
	if s.SpillSize != 16 {
		t.Fatalf("SpillSize = %d, want 16", s.SpillSize)
	}
	s.Pop() // releases spill #2 (top of stack) -> LIFO, spillTop shrinks
	s.Pop() // releases spill #1
	// The GPRSlots register slots are still held, so the next push
	// spills; spillTop is back to 0, so that spill reuses offset 0.
	third := s.PushRvalue(types.Int32)
	if !third.Spilled || third.SpillOff != 0 {
		t.Fatalf("expected spill offset to be reclaimed to 0, got %+v", third)
	}
	if s.SpillSize != 16 {
		t.Fatalf("SpillSize high-water mark should stay 16, got %d", s.SpillSize)
	}
}

func TestFloatUsesXMMPool(t *testing.T) {
	s := New()
	item := s.PushRvalue(types.Float64)
	if item.Class != XMM {
		t.Fatalf("float64 rvalue should allocate from the XMM pool, got class %v", item.Class)
	}
	gpr, xmm := s.Depth()
	if gpr != 0 || xmm != 1 {
		t.Fatalf("Depth() = (%d,%d), want (0,1)", gpr, xmm)
	}
}

func TestSwapExchangesTopTwo(t *testing.T) {
	s := New()
	s.PushLiteral(types.Int32, 1, 0)
	s.PushLiteral(types.Int32, 2, 0)
	s.Swap()
	if s.Peek(0).IVal != 1 || s.Peek(1).IVal != 2 {
		t.Fatalf("Swap() did not exchange top two items: top=%v next=%v", s.Peek(0), s.Peek(1))
	}
}

func TestSnapshotRestoreReproducesSlots(t *testing.T) {
	s := New()
	s.PushRvalue(types.Int32)
	snap := s.Save()

	branchA := s.PushRvalue(types.Int32)
	s.Pop()
	s.Restore(snap)

	branchB := s.PushRvalue(types.Int32)
	if branchA.Slot != branchB.Slot || branchA.Class != branchB.Class {
		t.Fatalf("two arms restored from the same snapshot should allocate identical slots, got %+v and %+v", branchA, branchB)
	}
}

func TestLiveXMMSlotsTracksOnlyUnspilled(t *testing.T) {
	s := New()
	s.PushRvalue(types.Float64)
	s.PushRvalue(types.Float64)
	if got := s.LiveXMMSlots(); len(got) != 2 {
		t.Fatalf("LiveXMMSlots() = %v, want 2 entries", got)
	}
}

func TestPushAddressSpillsWhenGPRPoolExhausted(t *testing.T) {
	s := New()
	for i := 0; i < GPRSlots; i++ {
		s.PushRvalue(types.Int32)
	}
	addr := s.PushAddress(types.Int32)
	if !addr.ExtraStorage || !addr.AddrSpilled {
		t.Fatalf("expected PushAddress to spill once the GPR pool is exhausted, got %+v", addr)
	}
}
