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

// Package branch implements the pending-jump-site bookkeeping for
// forward branches. internal/ir attaches an explicit,
// already-unique Label id to every branch instruction it emits
// (OpIf/OpElse/OpEndIf/OpGotoTest/OpGotoEnd/OpLoopTest each carry the
// label of the site they target), so internal/codegen's fixup need
// only be a flat map from label id to the list of not-yet-resolved
// jump sites wanting that label — there is no nested scope to track
// beyond what the label ids already encode. Only the one piece of
// state every branch instruction's label does NOT carry, that every
// `ret` converges on the same, not yet emitted, epilogue, still needs
// its own stack, which Returns below
// provides.
package branch

// Pending is one not-yet-resolved forward branch: the byte offset
// internal/x86.Assembler.Jmp/Jcc returned, to be patched once the
// jump's target address is known.
type Pending struct {
	PatchAt int
}

// Returns is the whole-function stack of pending `ret`-lowered jumps:
// every ret reaches the single leave/ret epilogue via a jmp patched
// once the epilogue's offset is known.
type Returns struct {
	sites []Pending
}

func (r *Returns) Push(p Pending) { r.sites = append(r.sites, p) }

// Resolve hands back every pending return jump so the caller can
// patch each one to the epilogue's offset, then clears the stack.
func (r *Returns) Resolve() []Pending {
	sites := r.sites
	r.sites = nil
	return sites
}
