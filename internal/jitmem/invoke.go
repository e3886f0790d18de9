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

//go:build amd64

package jitmem

import "unsafe"

// Invoke0 calls a zero-argument compiled function and returns its
// scalar integer result, the one shape the CLI test driver needs
// (every test program is `int main()`, no parameters).
//
// It works without cgo or a hand-written assembly trampoline by
// exploiting the one case where Go's own ABIInternal and the host C
// ABI happen to agree: with zero arguments neither has any argument
// registers to disagree about, and both return a single integer
// result in rax. A Go func value is represented as a pointer to a
// one-word funcval struct whose word is the function's entry address;
// overwriting fn's own backing word with a pointer to a local variable
// that holds addr builds exactly such a struct in place, so calling
// fn jumps straight to addr.
//
// This does not generalize to any signature with parameters: Go's
// register-based calling convention assigns argument registers in its
// own order, which matches neither System V's (rdi, rsi, rdx, ...) nor
// Win64's (rcx, rdx, r8, r9). Calls between compiled functions never
// go through here; internal/codegen lowers those directly using
// internal/abi's classification. Only the CLI driver and this
// package's own tests call into compiled code from Go, and both only
// ever call a zero-argument entry point.
func Invoke0(addr uintptr) int64 {
	var fn func() int64
	pfn := (*uintptr)(unsafe.Pointer(&fn))
	*pfn = uintptr(unsafe.Pointer(&addr))
	return fn()
}
