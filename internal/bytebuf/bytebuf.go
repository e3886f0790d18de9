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

// Package bytebuf implements the growable append-only byte buffer the
// emitter writes machine code into: typed little-endian appends over a
// Go slice, plus random-access patching for branch fixups.
package bytebuf

import (
	"encoding/binary"
	"math"
)

// Buffer accumulates machine code (or any byte stream) in emission
// order. The zero value is ready to use.
type Buffer struct {
	data []byte
}

func New() *Buffer { return &Buffer{} }

// Len is the number of bytes written so far; internal/x86 uses this
// as the byte offset of the instruction about to be emitted, the
// patch target recorded by internal/branch.
func (b *Buffer) Len() int { return len(b.data) }

func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) WriteByte8(v uint8) { b.data = append(b.data, v) }

func (b *Buffer) WriteBytes(v ...byte) { b.data = append(b.data, v...) }

func (b *Buffer) WriteInt16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

func (b *Buffer) WriteInt32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

func (b *Buffer) WriteInt64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

func (b *Buffer) WriteFloat32(v float32) { b.WriteInt32(math.Float32bits(v)) }

func (b *Buffer) WriteFloat64(v float64) { b.WriteInt64(math.Float64bits(v)) }

// PatchInt32At overwrites the 4 bytes at offset with v, used by
// internal/branch to back-patch a forward jump's rel32 once its
// target label's byte offset is known.
func (b *Buffer) PatchInt32At(offset int, v int32) {
	binary.LittleEndian.PutUint32(b.data[offset:offset+4], uint32(v))
}

func (b *Buffer) PatchByteAt(offset int, v byte) { b.data[offset] = v }

// PatchInt64At overwrites the 8 bytes at offset with v, used to back
// patch a movabs placeholder immediate (x86.Assembler.MovAbs) once the
// 64-bit value it loads is known.
func (b *Buffer) PatchInt64At(offset int, v uint64) {
	binary.LittleEndian.PutUint64(b.data[offset:offset+8], v)
}

// Append copies other's bytes onto b, used when splicing a completed
// function's bytes into the executable region's growing image.
func (b *Buffer) Append(other []byte) { b.data = append(b.data, other...) }
