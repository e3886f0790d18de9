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

package jitmem

import "unsafe"

// Frame is one entry of a Backtrace: the symbol name the saved return
// address falls inside (empty if it is outside every installed
// range, e.g. libc or the Go runtime's own call into the JIT code),
// and the return address itself.
type Frame struct {
	Symbol string
	RetAddr uintptr
}

// Backtrace walks the saved-rbp chain starting at startRBP.
// Every frame this codegen emits begins with `push rbp; mov
// rbp, rsp`, so *(*uintptr)(rbp) is the caller's saved rbp and
// *(*uintptr)(rbp+8) is the return address, the standard frame-pointer
// chain; walking stops at the first rbp that is zero or that fails to
// advance (a non-frame-pointer caller, or the bottom of the chain).
func (r *Region) Backtrace(startRBP uintptr, maxFrames int) []Frame {
	var frames []Frame
	rbp := startRBP
	for i := 0; i < maxFrames && rbp != 0; i++ {
		retAddr := *(*uintptr)(unsafe.Pointer(rbp + 8))
		frames = append(frames, Frame{Symbol: r.Lookup(retAddr), RetAddr: retAddr})
		nextRBP := *(*uintptr)(unsafe.Pointer(rbp))
		if nextRBP <= rbp {
			break
		}
		rbp = nextRBP
	}
	return frames
}
