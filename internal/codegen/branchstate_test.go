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

	"github.com/y1yang0/corrosion/internal/bytebuf"
	"github.com/y1yang0/corrosion/internal/x86"
)

// TestForwardBranchPatchesToDefinedOffset:
// a jump's patched displacement equals target - (placeholder+4).
func TestForwardBranchPatchesToDefinedOffset(t *testing.T) {
	buf := bytebuf.New()
	as := x86.NewAssembler(buf)
	bs := newBranchState()

	const label = 1
	bs.branchTo(as, label, as.Jmp) // forward reference, not yet defined

	as.Nop()
	as.Nop()
	target := buf.Len()
	bs.define(as, label, target)

	patchAt := 1 // 0xE9 opcode at offset 0, rel32 starts at offset 1
	gotRel := int32(uint32(buf.Bytes()[patchAt]) | uint32(buf.Bytes()[patchAt+1])<<8 |
		uint32(buf.Bytes()[patchAt+2])<<16 | uint32(buf.Bytes()[patchAt+3])<<24)
	want := int32(target - (patchAt + 4))
	if gotRel != want {
		t.Fatalf("patched rel32 = %d, want %d", gotRel, want)
	}
}

func TestBackwardBranchResolvesImmediately(t *testing.T) {
	buf := bytebuf.New()
	as := x86.NewAssembler(buf)
	bs := newBranchState()

	const label = 1
	bs.define(as, label, buf.Len()) // label defined at offset 0 (loop test)
	as.Nop()
	patchAt := buf.Len() + 1
	bs.branchTo(as, label, as.Jmp) // backward reference resolves on the spot

	gotRel := int32(uint32(buf.Bytes()[patchAt]) | uint32(buf.Bytes()[patchAt+1])<<8 |
		uint32(buf.Bytes()[patchAt+2])<<16 | uint32(buf.Bytes()[patchAt+3])<<24)
	want := int32(0 - (patchAt + 4))
	if gotRel != want {
		t.Fatalf("patched rel32 = %d, want %d", gotRel, want)
	}
}
