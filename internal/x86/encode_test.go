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

func assertBytes(t *testing.T, got []byte, want ...byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got % x, want % x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got % x, want % x", got, want)
		}
	}
}

func TestMovRegImm32(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	a.MovRegImm(EAX, 5)
	assertBytes(t, buf.Bytes(), 0xB8, 0x05, 0x00, 0x00, 0x00)
}

func TestAluRegRegAddRaxRcxForcesRexW(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	a.AluRegReg(AluAdd, RAX, RCX)
	assertBytes(t, buf.Bytes(), 0x48, 0x01, 0xC8)
}

func TestRetIsSingleByte(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	a.Ret()
	assertBytes(t, buf.Bytes(), 0xC3)
}

func TestMovAbsPlaceholderPatchesToExactImm64(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	patchAt := a.MovAbs(RAX)
	// opcode(REX.W 48, B8) = 2 bytes, then 8 zero bytes.
	if patchAt != 2 {
		t.Fatalf("patchAt = %d, want 2", patchAt)
	}
	buf.PatchInt64At(patchAt, 0x1122334455667788)
	want := []byte{0x48, 0xB8, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	assertBytes(t, buf.Bytes(), want...)
}

func TestHighRegisterOperandsForceRexBits(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	a.MovRegReg(R8, R9) // both high registers: REX.W not forced here (Width64 does via sizeFlags)
	got := buf.Bytes()
	if len(got) < 1 {
		t.Fatal("expected at least a REX prefix byte")
	}
	rex := got[0]
	if rex&0x45 != 0x45 { // REX.B (dst r8) and REX.R(src r9) both set, plus REX.W from Width64
		t.Fatalf("REX prefix %#x missing R or B bit for r8/r9 operands", rex)
	}
}

func TestShiftDispatchesDistinctOpcodeExtension(t *testing.T) {
	bufL := bytebuf.New()
	NewAssembler(bufL).ShiftRegImm(ShiftLeft, EAX, 3)
	bufR := bytebuf.New()
	NewAssembler(bufR).ShiftRegImm(ShiftRight, EAX, 3)
	if string(bufL.Bytes()) == string(bufR.Bytes()) {
		t.Fatal("shl and shr must not encode to the same bytes")
	}
	// ModR/M opcode-extension field (bits 3-5) must be 4 for shl, 5 for shr.
	extL := (bufL.Bytes()[1] >> 3) & 0b111
	extR := (bufR.Bytes()[1] >> 3) & 0b111
	if extL != 4 {
		t.Fatalf("shl ModR/M extension = %d, want 4", extL)
	}
	if extR != 5 {
		t.Fatalf("shr ModR/M extension = %d, want 5", extR)
	}
}

func TestFitsImm8AndImm32Boundaries(t *testing.T) {
	if !FitsImm8(127) || !FitsImm8(-128) {
		t.Fatal("127 and -128 must fit imm8")
	}
	if FitsImm8(128) || FitsImm8(-129) {
		t.Fatal("128 and -129 must not fit imm8")
	}
	if !FitsImm32(int64(1)<<31 - 1) {
		t.Fatal("2^31-1 must fit imm32")
	}
	if FitsImm32(1 << 31) {
		t.Fatal("2^31 must not fit imm32")
	}
}

func TestAluRegImmPicksImm8FormWhenItFits(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	a.AluRegImm(AluAdd, RAX, 5)
	// 0x83 /0 ib form (sign-extended imm8), not 0x81 id.
	if buf.Bytes()[1] != 0x83 {
		t.Fatalf("expected the cost-one 0x83 imm8 row for a small immediate, got opcode %#x", buf.Bytes()[1])
	}
}

func TestAluRegImmFallsBackToImm32WhenImmDoesNotFitImm8(t *testing.T) {
	buf := bytebuf.New()
	a := NewAssembler(buf)
	a.AluRegImm(AluAdd, RAX, 1000)
	if buf.Bytes()[1] != 0x81 {
		t.Fatalf("expected the 0x81 imm32 row for a large immediate, got opcode %#x", buf.Bytes()[1])
	}
}
