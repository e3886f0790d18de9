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

// Package corrosion is the library's public surface: a thin
// re-export of internal/context
// so callers outside this module get a stable, documented entry point
// while the actual state lives in internal/context where the rest of
// the back end can see it too (cmd/corrosion's CLI driver and the
// package's own end-to-end tests use this same surface).
package corrosion

import (
	"io"

	"github.com/y1yang0/corrosion/internal/context"
)

// Options is the recognized context configuration.
type Options = context.Options

// Error is a compile diagnostic carrying message, file, row and column.
type Error = context.Error

// Context is a single translation unit's compile handle.
type Context = context.Context

// CreateContext returns a fresh compilation context.
func CreateContext(opts Options) *Context {
	return context.NewContext(opts)
}

// Parse compiles a source stream into ctx.
func Parse(ctx *Context, source io.Reader, filename string) error {
	return ctx.Parse(source, filename)
}

// ParseFile compiles the file at path into ctx.
func ParseFile(ctx *Context, path string) error {
	return ctx.ParseFile(path)
}

// Get looks up a compiled function's entry address by name.
func Get(ctx *Context, name string) (uintptr, bool) {
	return ctx.Get(name)
}

// ReportError writes a human-readable rendering of err to w.
func ReportError(err *Error, w io.Writer) {
	context.ReportError(err, w)
}

// DestroyContext releases everything ctx owns, including executable pages.
func DestroyContext(ctx *Context) error {
	return ctx.Destroy()
}
