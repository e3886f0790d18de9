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

// Package jitmem implements the executable memory manager: a single
// append-only page mapping, writable during emission and flipped to
// read+execute before any byte in it is ever called, plus the
// function-address map and rbp-chain backtrace helper.
// Platform allocation is split across
// alloc_unix.go (golang.org/x/sys/unix: Mmap/Mprotect) and
// alloc_windows.go (golang.org/x/sys/windows: VirtualAlloc/
// VirtualProtect), selected by the usual Go build-tag convention
// rather than the target-triple runtime switch internal/abi uses,
// since the host process can only ever execute code for the OS it is
// itself running on.
package jitmem

import "fmt"

// DefaultCapacity is the size, in bytes, of the single mapping a
// Region reserves up front. internal/codegen's output for one
// compilation unit is expected to fit comfortably inside it; Region
// never grows or remaps once created: JIT output is append-only and
// the caller never frees individual functions, so the mapping itself
// is never freed or grown either, trading unbounded program size for
// a dead-simple lifetime.
const DefaultCapacity = 1 << 20

// ErrOutOfSpace is returned by Install when the installed image would
// not fit inside the Region's fixed capacity.
type ErrOutOfSpace struct {
	Capacity, Requested int
}

func (e *ErrOutOfSpace) Error() string {
	return fmt.Sprintf("jitmem: region capacity %d exceeded by %d-byte image", e.Capacity, e.Requested)
}

// platformRegion is implemented by alloc_unix.go / alloc_windows.go:
// the handful of OS calls that differ, kept to the minimum surface
// Region needs (the mmap/VirtualAlloc and mprotect/VirtualProtect
// pair).
type platformRegion interface {
	// base is the address of byte 0 of the mapping, stable for the
	// mapping's entire lifetime.
	base() uintptr
	// write copies data into the mapping starting at offset; the
	// mapping must be in its writable state when this is called.
	write(offset int, data []byte)
	// makeExecutable flips the whole mapping from read+write to
	// read+execute; it is never both at once.
	makeExecutable() error
	// makeWritable flips it back, for Install to append more code in
	// a later call.
	makeWritable() error
	close() error
}

// symbolRange is one installed function's extent within the mapping,
// for the backtrace helper and for Context.Get's address lookup.
type symbolRange struct {
	name       string
	start, end int // byte offsets within the mapping
}

// Region owns one executable mapping and the symbol table describing
// what has been installed into it so far: function name -> (start,
// end). A Region is not safe for concurrent Install calls;
// callers serialize, one compilation job (and therefore one Region)
// at a time.
type Region struct {
	plat     platformRegion
	capacity int
	used     int // bytes written so far; growing monotonically
	symbols  []symbolRange
	executable bool
}

// NewRegion reserves a fresh mapping of capacity bytes, initially
// read+write.
func NewRegion(capacity int) (*Region, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	plat, err := newPlatformRegion(capacity)
	if err != nil {
		return nil, err
	}
	return &Region{plat: plat, capacity: capacity}, nil
}

// Install copies image into the mapping at the current high-water
// mark, registers name -> (start, end) in the symbol table, and
// returns the absolute address of image's first byte. The mapping is
// flipped back to read+write for the copy and back to read+execute
// before Install returns; no partially-written function is ever left
// executable.
func (r *Region) Install(name string, image []byte) (uintptr, error) {
	if r.used+len(image) > r.capacity {
		return 0, &ErrOutOfSpace{Capacity: r.capacity, Requested: r.used + len(image)}
	}
	if err := r.plat.makeWritable(); err != nil {
		return 0, err
	}
	start := r.used
	r.plat.write(start, image)
	r.used += len(image)
	if name != "" {
		r.symbols = append(r.symbols, symbolRange{name: name, start: start, end: r.used})
	}
	if err := r.plat.makeExecutable(); err != nil {
		return 0, err
	}
	r.executable = true
	return r.plat.base() + uintptr(start), nil
}

// Register records name -> [start, end) byte offsets relative to the
// region base, for an already-installed image that contains several
// functions (Install with a non-empty name registers the whole image
// as one symbol; a compiler installing a multi-function translation
// unit passes "" there and registers each function here instead).
func (r *Region) Register(name string, start, end int) {
	r.symbols = append(r.symbols, symbolRange{name: name, start: start, end: end})
}

// Lookup finds the function symbol straddling addr, or "" if addr is
// outside every installed range; used by Backtrace to label frames.
func (r *Region) Lookup(addr uintptr) string {
	base := r.plat.base()
	if addr < base {
		return ""
	}
	off := int(addr - base)
	for _, s := range r.symbols {
		if off >= s.start && off < s.end {
			return s.name
		}
	}
	return ""
}

// Base returns the mapping's absolute start address.
func (r *Region) Base() uintptr { return r.plat.base() }

// Close releases the mapping. The caller must not hold or invoke any
// function pointer obtained from this Region afterward.
func (r *Region) Close() error { return r.plat.close() }
