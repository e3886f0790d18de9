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

package branch

import "testing"

func TestReturnsResolveDrainsAndClears(t *testing.T) {
	var r Returns
	r.Push(Pending{PatchAt: 4})
	r.Push(Pending{PatchAt: 20})

	sites := r.Resolve()
	if len(sites) != 2 || sites[0].PatchAt != 4 || sites[1].PatchAt != 20 {
		t.Fatalf("Resolve() = %+v, want the two pushed sites in push order", sites)
	}
	if again := r.Resolve(); len(again) != 0 {
		t.Fatalf("Resolve() after draining = %+v, want empty", again)
	}
}

func TestReturnsEmptyInitially(t *testing.T) {
	var r Returns
	if got := r.Resolve(); len(got) != 0 {
		t.Fatalf("fresh Returns.Resolve() = %+v, want empty", got)
	}
}
