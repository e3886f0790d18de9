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
	"runtime"
	"strings"
)

// Host picks the calling convention matching the platform this
// process was built for.
func Host() ABI {
	if runtime.GOOS == "windows" {
		return Win64{}
	}
	return SysV{}
}

// ForTriple resolves a target-triple string to a calling convention,
// so a context can be asked to
// generate Win64 code on a SysV host (or vice versa) instead of
// always matching the running process. An empty triple means "ask
// the host".
func ForTriple(triple string) ABI {
	if triple == "" {
		return Host()
	}
	if strings.Contains(triple, "windows") || strings.Contains(triple, "win32") {
		return Win64{}
	}
	return SysV{}
}
