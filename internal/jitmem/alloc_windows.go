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

//go:build windows

package jitmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsRegion backs Region on Windows with VirtualAlloc/
// VirtualProtect, the Win64-side counterpart of unixRegion.
type windowsRegion struct {
	addr uintptr
	size int
}

func newPlatformRegion(capacity int) (platformRegion, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(capacity), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return &windowsRegion{addr: addr, size: capacity}, nil
}

func (w *windowsRegion) base() uintptr { return w.addr }

func (w *windowsRegion) write(offset int, data []byte) {
	dst := unsafe.Slice((*byte)(unsafe.Pointer(w.addr+uintptr(offset))), len(data))
	copy(dst, data)
}

func (w *windowsRegion) makeExecutable() error {
	var old uint32
	return windows.VirtualProtect(w.addr, uintptr(w.size), windows.PAGE_EXECUTE_READ, &old)
}

func (w *windowsRegion) makeWritable() error {
	var old uint32
	return windows.VirtualProtect(w.addr, uintptr(w.size), windows.PAGE_READWRITE, &old)
}

func (w *windowsRegion) close() error {
	return windows.VirtualFree(w.addr, 0, windows.MEM_RELEASE)
}
