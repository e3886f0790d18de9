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
	"github.com/y1yang0/corrosion/internal/opstack"
	"github.com/y1yang0/corrosion/internal/x86"
)

// frame is one function's rbp-relative layout, stacking four regions
// below the saved frame pointer: the locals/params area internal/ir's
// layout pass already sized (frameSize), internal/opstack's spill area
// (spillSize, only known after a dry-run walk of the body), a
// fixed-size area this package reserves so a live XMM operand-stack
// slot survives a call on System V, which has no callee-saved XMM
// register at all (see x86.CalleeSavedXMM's doc comment), and the
// prologue's callee-saved GPR save slots (calleeGPRBase).
type frame struct {
	frameSize int
	spillSize int
	reserve   int // total bytes the prologue subtracts from rsp

	// stackAllocBase is where OpStackAlloc/OpLStack temporaries start
	// within the combined spill region, i.e. opstack.Stack.SpillSize
	// at the point the dry-run pass finished walking the body: the
	// stackalloc area is appended after the real operand spill cells
	// rather than tracked as a separate frame region.
	stackAllocBase int

	// calleeGPRBase is where the prologue's own callee-saved register
	// save slots begin, past the locals/spill/stackalloc regions; the
	// prologue writes here with plain movs instead of push/pop so the
	// single `sub rsp, reserve` stays the only stack-pointer adjustment
	// for the whole function body (every other offset in this frame is
	// rbp-relative and therefore indifferent to how rsp got there).
	calleeGPRBase  int
	calleeGPRCount int
}

func newFrame(frameSize, spillSize int, stackAllocBase int, calleeGPRCount int) *frame {
	xmmCallArea := opstack.XMMSlots * 8
	calleeGPRArea := calleeGPRCount * 8
	reserve := align16(frameSize + spillSize + xmmCallArea + calleeGPRArea)
	return &frame{
		frameSize:      frameSize,
		spillSize:      spillSize,
		reserve:        reserve,
		stackAllocBase: stackAllocBase,
		calleeGPRBase:  frameSize + spillSize + xmmCallArea,
		calleeGPRCount: calleeGPRCount,
	}
}

// calleeGPRMem resolves the i'th callee-saved register's save slot.
func (f *frame) calleeGPRMem(i int) x86.Mem {
	disp := f.calleeGPRBase + i*8 - f.reserve
	return x86.Mem{W: x86.Width64, Base: x86.RBP, Disp: int32(disp)}
}

func align16(n int) int {
	if n%16 != 0 {
		n += 16 - n%16
	}
	return n
}

// localMem resolves a local/parameter's frame offset (as assigned by
// internal/ir's layout pass, growing upward from 0) to an rbp-relative
// operand.
func (f *frame) localMem(offset int, w x86.Width) x86.Mem {
	return x86.Mem{W: w, Base: x86.RBP, Disp: int32(offset - f.reserve)}
}

// spillMem resolves an internal/opstack spill cell's byte offset
// (also growing upward from 0, within its own region past the locals)
// to an rbp-relative operand.
func (f *frame) spillMem(spillOff int, w x86.Width) x86.Mem {
	return x86.Mem{W: w, Base: x86.RBP, Disp: int32(f.frameSize + spillOff - f.reserve)}
}

// xmmCallSpillMem is the fixed per-slot cell used to save/restore a
// live CalleeSavedXMM register around a call site; slot is the same
// index opstack.Stack handed out (0..opstack.XMMSlots-1).
func (f *frame) xmmCallSpillMem(slot int) x86.Mem {
	disp := f.frameSize + f.spillSize + slot*8 - f.reserve
	return x86.Mem{W: x86.Width64, Base: x86.RBP, Disp: int32(disp)}
}

// stackAllocMem resolves an OpStackAlloc/OpLStack temporary's offset.
// These ops are not emitted by the current front end (no VLA/array-
// literal lowering reaches internal/ir yet); they are wired here so a
// future frontend addition has somewhere ready to land, sharing the
// spill area's dry-run-then-commit sizing discipline rather than
// growing the frame a third way.
func (f *frame) stackAllocMem(offset int, w x86.Width) x86.Mem {
	return f.spillMem(f.stackAllocBase+offset, w)
}
