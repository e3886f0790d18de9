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

package x86

import (
	"testing"

	"github.com/y1yang0/corrosion/internal/bytebuf"
)

// TestXorpsIsTwoByteEscapeNoMandatoryPrefix: the sign flip goes
// through a plain 0x0F 0x57 xorps, never F2/F3/0x66.
func TestXorpsIsTwoByteEscapeNoMandatoryPrefix(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	a.XorpsXmmXmm(XMM(0), XMM(1))
	assertBytes(t, buf.Bytes(), 0x0F, 0x57, 0xC1)
}

func TestMovXmmXmmSinglePrecisionUsesF3(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	a.MovXmmXmm(XMM(1), XMM(0), false)
	assertBytes(t, buf.Bytes(), 0xF3, 0x0F, 0x10, 0xC8)
}

func TestMovXmmXmmDoublePrecisionUsesF2(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	a.MovXmmXmm(XMM(1), XMM(0), true)
	assertBytes(t, buf.Bytes(), 0xF2, 0x0F, 0x10, 0xC8)
}

// TestMovqGprToXmmForcesRexWAndOperandSizePrefix checks the bit
// pattern used to materialize a float/double literal's raw bits into
// an XMM register without a numeric conversion (0x66 REX.W 0x0F 0x6E).
func TestMovqGprToXmmForcesRexWAndOperandSizePrefix(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	a.MovqGprToXmm(XMM(0), RAX)
	assertBytes(t, buf.Bytes(), 0x66, 0x48, 0x0F, 0x6E, 0xC0)
}

func TestFAluOpcodesAreDistinctPerOperator(t *testing.T) {
	ops := []FloatAluOp{FAdd, FSub, FMul, FDiv}
	seen := map[byte]bool{}
	for _, op := range ops {
		if seen[byte(op)] {
			t.Fatalf("duplicate float ALU opcode %#x", op)
		}
		seen[byte(op)] = true
	}
}

func TestUcomiDoublePrecisionAddsForceSizePrefix(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	a.UcomiXmmXmm(XMM(0), XMM(1), true)
	assertBytes(t, buf.Bytes(), 0x66, 0x0F, 0x2E, 0xC1)
}

func TestUcomiSinglePrecisionHasNoMandatoryPrefix(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	a.UcomiXmmXmm(XMM(0), XMM(1), false)
	assertBytes(t, buf.Bytes(), 0x0F, 0x2E, 0xC1)
}
