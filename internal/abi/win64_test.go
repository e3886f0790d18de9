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

package abi

import (
	"testing"

	"github.com/y1yang0/corrosion/internal/types"
)

func TestWin64ArgsClassifyByPositionNotExhaustion(t *testing.T) {
	// Windows assigns register N to argument N regardless of type,
	// unlike SysV's separate int/float counters.
	plan := Win64{}.Classify(types.Void, []*types.Type{types.Int32, types.Float64, types.Int32, types.Float64}, false)
	wantFloat := []bool{false, true, false, true}
	for i, want := range wantFloat {
		if (plan.Args[i].Class == Floating) != want {
			t.Fatalf("arg %d class=%v, want float=%v", i, plan.Args[i].Class, want)
		}
	}
}

func TestWin64LargeReturnUsesHiddenPointer(t *testing.T) {
	c := types.NewCache()
	big := c.Struct("", []string{"a", "b", "c"}, []*types.Type{types.Int64, types.Int64, types.Int64})
	plan := Win64{}.Classify(big, []*types.Type{types.Int32}, false)
	if plan.Ret.Class != Memory || !plan.Ret.IsBig {
		t.Fatalf("large struct return = %+v, want Class=Memory IsBig=true", plan.Ret)
	}
}

func TestWin64AggregateArgPassedByReference(t *testing.T) {
	c := types.NewCache()
	big := c.Struct("", []string{"a", "b"}, []*types.Type{types.Int64, types.Int64})
	slots := Win64{}.ParamSlots([]*types.Type{big})
	if !slots[0].ByReference {
		t.Fatal("an aggregate parameter larger than 8 bytes must be passed by reference on Win64")
	}
}

func TestWin64ShadowSpaceIs32Bytes(t *testing.T) {
	if got := (Win64{}).ShadowSpace(); got != 32 {
		t.Fatalf("Win64 shadow space = %d, want 32", got)
	}
}

func TestSysVHasNoShadowSpace(t *testing.T) {
	if got := (SysV{}).ShadowSpace(); got != 0 {
		t.Fatalf("SysV shadow space = %d, want 0", got)
	}
}
