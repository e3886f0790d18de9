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

//go:build linux || darwin

package jitmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// unixRegion backs Region on Linux/Darwin with an anonymous mmap,
// toggled between PROT_READ|PROT_WRITE and PROT_READ|PROT_EXEC via
// mprotect, so a page is writable or executable, never both.
type unixRegion struct {
	mem []byte
}

func newPlatformRegion(capacity int) (platformRegion, error) {
	mem, err := unix.Mmap(-1, 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return &unixRegion{mem: mem}, nil
}

func (u *unixRegion) base() uintptr {
	return uintptr(unsafe.Pointer(&u.mem[0]))
}

func (u *unixRegion) write(offset int, data []byte) {
	copy(u.mem[offset:], data)
}

func (u *unixRegion) makeExecutable() error {
	return unix.Mprotect(u.mem, unix.PROT_READ|unix.PROT_EXEC)
}

func (u *unixRegion) makeWritable() error {
	return unix.Mprotect(u.mem, unix.PROT_READ|unix.PROT_WRITE)
}

func (u *unixRegion) close() error {
	return unix.Munmap(u.mem)
}
