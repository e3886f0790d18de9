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

import "testing"

func TestForTripleWindowsSelectsWin64(t *testing.T) {
	if got := ForTriple("x86_64-pc-windows-msvc"); got.Name() != "win64" {
		t.Fatalf("ForTriple(windows triple) = %s, want win64", got.Name())
	}
}

func TestForTripleLinuxSelectsSysV(t *testing.T) {
	if got := ForTriple("x86_64-unknown-linux-gnu"); got.Name() != "sysv-amd64" {
		t.Fatalf("ForTriple(linux triple) = %s, want sysv-amd64", got.Name())
	}
}

func TestForTripleEmptyFallsBackToHost(t *testing.T) {
	if got := ForTriple(""); got == nil {
		t.Fatal("ForTriple(\"\") must never return nil")
	}
}
