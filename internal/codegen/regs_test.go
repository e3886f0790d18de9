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

	"github.com/y1yang0/corrosion/internal/types"
	"github.com/y1yang0/corrosion/internal/x86"
)

func TestWidthOfMapsIntegerKindsToGPRWidth(t *testing.T) {
	cases := []struct {
		t    *types.Type
		want x86.Width
	}{
		{types.Int8, x86.Width8},
		{types.Int16, x86.Width16},
		{types.Int32, x86.Width32},
		{types.Int64, x86.Width64},
		{nil, x86.Width32},
	}
	for _, tc := range cases {
		if got := widthOf(tc.t); got != tc.want {
			t.Fatalf("widthOf(%v) = %v, want %v", tc.t, got, tc.want)
		}
	}
}

func TestWidthOfDefaultsPointersToWidth64(t *testing.T) {
	c := types.NewCache()
	ptr := c.Pointer(types.Int32)
	if got := widthOf(ptr); got != x86.Width64 {
		t.Fatalf("widthOf(pointer) = %v, want Width64", got)
	}
}

func TestIsDoubleOnlyTrueForFloat64(t *testing.T) {
	if !isDouble(types.Float64) {
		t.Fatal("isDouble(Float64) should be true")
	}
	if isDouble(types.Float32) {
		t.Fatal("isDouble(Float32) should be false")
	}
	if isDouble(types.Int32) {
		t.Fatal("isDouble(Int32) should be false")
	}
	if isDouble(nil) {
		t.Fatal("isDouble(nil) should be false")
	}
}
