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

	"github.com/y1yang0/corrosion/internal/opstack"
)

func TestAlign16RoundsUpToNextMultiple(t *testing.T) {
	cases := map[int]int{0: 0, 1: 16, 16: 16, 17: 32, 31: 32, 32: 32}
	for in, want := range cases {
		if got := align16(in); got != want {
			t.Fatalf("align16(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestNewFrameReserveIs16ByteAligned(t *testing.T) {
	f := newFrame(4, 8, 0, 2)
	if f.reserve%16 != 0 {
		t.Fatalf("reserve = %d, not 16-byte aligned", f.reserve)
	}
}

func TestCalleeGPRBaseFollowsLocalsSpillAndXMMArea(t *testing.T) {
	f := newFrame(8, 16, 0, 1)
	wantBase := 8 + 16 + opstack.XMMSlots*8
	if f.calleeGPRBase != wantBase {
		t.Fatalf("calleeGPRBase = %d, want %d", f.calleeGPRBase, wantBase)
	}
}

func TestCalleeGPRMemSlotsAreEightBytesApart(t *testing.T) {
	f := newFrame(0, 0, 0, 3)
	m0 := f.calleeGPRMem(0)
	m1 := f.calleeGPRMem(1)
	if m1.Disp-m0.Disp != 8 {
		t.Fatalf("slot stride = %d, want 8", m1.Disp-m0.Disp)
	}
}

func TestLocalMemAndSpillMemDoNotOverlap(t *testing.T) {
	f := newFrame(16, 8, 0, 0)
	local := f.localMem(0, 0)
	spill := f.spillMem(0, 0)
	if local.Disp == spill.Disp {
		t.Fatal("a locals-region offset and a spill-region offset collided")
	}
	// the spill region starts exactly frameSize bytes after locals.
	if spill.Disp-local.Disp != 16 {
		t.Fatalf("spill region starts %d bytes after locals, want 16", spill.Disp-local.Disp)
	}
}

func TestStackAllocMemLandsPastTheSpillArea(t *testing.T) {
	f := newFrame(0, 16, 16, 0)
	got := f.stackAllocMem(0, 0)
	want := f.spillMem(16, 0)
	if got.Disp != want.Disp {
		t.Fatalf("stackAllocMem(0) disp = %d, want %d (spillMem(stackAllocBase))", got.Disp, want.Disp)
	}
}
