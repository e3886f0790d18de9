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

import "github.com/y1yang0/corrosion/internal/types"

// GPRSlots and XMMSlots size each register-class pool: the five real
// non-frame callee-saved GPRs (rbx, r12-r15) and the eight callee-saved
// XMM registers (xmm6-xmm13), matching x86.CalleeSavedGPRs/
// x86.CalleeSavedXMM (rax/r10/r11 and xmm14/xmm15 stay free for the
// legalizer's own scratch use and are never handed out as
// operand-stack slots; rbp/rsp stay the frame/stack pointers).
const (
	GPRSlots = 5
	XMMSlots = 8
)

// Stack is the per-function operand stack: a LIFO of StackItem over a
// fixed pool of register slots per class, spilling each newly pushed
// item to the native stack once its class pool is exhausted; spill
// cells are reclaimed last-in-first-out.
type Stack struct {
	items []StackItem

	gprUsed [GPRSlots]bool
	xmmUsed [XMMSlots]bool

	// spillTop is the next free byte offset (growing downward from
	// the frame's local storage) for a spilled slot; SpillSize is the
	// total bytes of spill area this function ended up needing, which
	// internal/codegen folds into the final frame size.
	spillTop  int
	SpillSize int
}

func New() *Stack { return &Stack{} }

func classFor(t *types.Type) RegClass {
	if t != nil && t.IsFloat() {
		return XMM
	}
	return GPR
}

func (s *Stack) pool(c RegClass) []bool {
	if c == XMM {
		return s.xmmUsed[:]
	}
	return s.gprUsed[:]
}

// allocSlot reserves the lowest-numbered free slot in class c. Once
// the pool is exhausted it spills a fresh 8-byte cell instead and
// returns that cell's native-stack byte offset with spilled=true.
func (s *Stack) allocSlot(c RegClass) (slot int, spilled bool) {
	pool := s.pool(c)
	for i, used := range pool {
		if !used {
			pool[i] = true
			return i, false
		}
	}
	off := s.spillTop
	s.spillTop += 8
	if s.spillTop > s.SpillSize {
		s.SpillSize = s.spillTop
	}
	return off, true
}

func (s *Stack) freeSlot(c RegClass, slot int, spilled bool, spillOff int) {
	if spilled {
		// LIFO release: a spill is only reclaimed when it is the most
		// recently spilled cell, matching the stack discipline of the
		// native spill area.
		if spillOff+8 == s.spillTop {
			s.spillTop -= 8
		}
		return
	}
	s.pool(c)[slot] = false
}

// PushLiteral pushes a not-yet-materialized constant.
func (s *Stack) PushLiteral(t *types.Type, ival int64, fval float64) {
	s.items = append(s.items, StackItem{Kind: Literal, Type: t, IVal: ival, FVal: fval})
}

// PushLvalue pushes a named local/parameter's storage location.
func (s *Stack) PushLvalue(t *types.Type, name string, offset int) {
	s.items = append(s.items, StackItem{Kind: Lvalue, Type: t, Name: name, Offset: offset})
}

// PushRvalue allocates a register slot (or spill cell) for t and
// pushes it; the caller (internal/codegen) is responsible for
// actually emitting the move into that location.
func (s *Stack) PushRvalue(t *types.Type) StackItem {
	class := classFor(t)
	slot, spilled := s.allocSlot(class)
	item := StackItem{Kind: Rvalue, Type: t, Class: class}
	if spilled {
		item.Spilled = true
		item.SpillOff = slot
	} else {
		item.Slot = slot
	}
	s.items = append(s.items, item)
	return item
}

// PushAddress pushes a materialized address (lvalue_abs), allocating
// a GPR slot for the pointer value itself.
func (s *Stack) PushAddress(t *types.Type) StackItem {
	slot, spilled := s.allocSlot(GPR)
	item := StackItem{Kind: LvalueAbs, Type: t, AddrClass: GPR}
	if spilled {
		item.ExtraStorage = true
		item.AddrSpilled = true
		item.AddrSlot = slot
	} else {
		item.AddrSlot = slot
	}
	s.items = append(s.items, item)
	return item
}

// Pop removes and returns the top item, releasing any register slot
// or spill cell it held.
func (s *Stack) Pop() StackItem {
	top := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	switch top.Kind {
	case Rvalue:
		s.freeSlot(top.Class, top.Slot, top.Spilled, top.SpillOff)
	case LvalueAbs:
		s.freeSlot(top.AddrClass, top.AddrSlot, top.AddrSpilled, top.AddrSlot)
	}
	return top
}

// Peek returns the nth item from the top without removing it (n=0 is
// the top), used by compound-assignment lowering to read an address
// without consuming it.
func (s *Stack) Peek(n int) StackItem {
	return s.items[len(s.items)-1-n]
}

// Swap exchanges the top two items in place, implementing the IR
// stream's OpSwp (the Sethi-Ullman reordering fixup).
func (s *Stack) Swap() {
	n := len(s.items)
	s.items[n-1], s.items[n-2] = s.items[n-2], s.items[n-1]
}

func (s *Stack) Len() int { return len(s.items) }

// Snapshot is a point-in-time copy of a Stack's allocation bookkeeping,
// used by internal/codegen to make an if/else or short-circuit
// expression's two arms allocate the identical register/spill slots
// for the value they each push, even though only one arm's code
// actually runs at a time. There is no phi node, so both arms must
// write the same physical location for the code past the join point
// to read a single consistent operand.
type Snapshot struct {
	items    []StackItem
	gprUsed  [GPRSlots]bool
	xmmUsed  [XMMSlots]bool
	spillTop int
}

// Save captures the current bookkeeping.
func (s *Stack) Save() Snapshot {
	items := make([]StackItem, len(s.items))
	copy(items, s.items)
	return Snapshot{items: items, gprUsed: s.gprUsed, xmmUsed: s.xmmUsed, spillTop: s.spillTop}
}

// Restore resets the bookkeeping to a previously captured Snapshot.
// SpillSize, the whole-function high-water mark, is left untouched so
// the larger of the two arms' spill usage still sizes the frame.
func (s *Stack) Restore(snap Snapshot) {
	items := make([]StackItem, len(snap.items))
	copy(items, snap.items)
	s.items = items
	s.gprUsed = snap.gprUsed
	s.xmmUsed = snap.xmmUsed
	s.spillTop = snap.spillTop
}

// LiveXMMSlots enumerates every XMM slot currently holding a value in
// its register (not yet spilled), used by internal/codegen to save and
// restore CalleeSavedXMM around a call site on System V, which has no
// actual callee-saved XMM register (see x86.CalleeSavedXMM's doc
// comment) — the save/restore is this codegen's own convention, not
// the hardware ABI's.
func (s *Stack) LiveXMMSlots() []int {
	var slots []int
	for i, used := range s.xmmUsed {
		if used {
			slots = append(slots, i)
		}
	}
	return slots
}

// Depth reports how many items of each class are currently live, for
// internal/codegen's debug logging.
func (s *Stack) Depth() (gpr, xmm int) {
	for _, used := range s.gprUsed {
		if used {
			gpr++
		}
	}
	for _, used := range s.xmmUsed {
		if used {
			xmm++
		}
	}
	return
}
