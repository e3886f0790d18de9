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

// Package context implements the compiler's programmatic API: it owns
// the type interner, the one jitmem.Region a context compiles into,
// and the error slot every parse/compile error is funneled through.
// All compile state is per-context; there are no package-level
// mutable globals, so independent contexts can compile in parallel.
package context

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/y1yang0/corrosion/internal/abi"
	"github.com/y1yang0/corrosion/internal/codegen"
	"github.com/y1yang0/corrosion/internal/ir"
	"github.com/y1yang0/corrosion/internal/jitmem"
	"github.com/y1yang0/corrosion/internal/lexer"
	"github.com/y1yang0/corrosion/internal/parser"
	"github.com/y1yang0/corrosion/internal/types"
)

// Kind distinguishes the four error categories: syntax, parser,
// semantic, internal. Only the first three ever reach a Context's
// error slot; Internal errors are compiler bugs and panic.
type Kind int

const (
	Syntax Kind = iota
	ParserErr
	Semantic
)

func (k Kind) String() string {
	switch k {
	case Syntax:
		return "syntax"
	case ParserErr:
		return "parser"
	case Semantic:
		return "semantic"
	default:
		return "unknown"
	}
}

// Error is a compile diagnostic with message, file, row, and column.
type Error struct {
	Kind    Kind
	Message string
	File    string
	Row     int
	Col     int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s error: %s", e.File, e.Row, e.Col, e.Kind, e.Message)
}

// Options carries the context's recognized configuration: the target
// triple (ABI + encoder variant
// select), include search paths for a future `#include` directive,
// predefined preprocessor macros, and debug emission. There is no
// flag-parsing concern here — cmd/corrosion's CLI owns that and
// builds one of these.
type Options struct {
	TargetTriple string
	IncludePaths []string
	Macros       map[string]string
	Debug        bool
}

// Context owns one translation unit's interners, its error slot, and
// (once Parse succeeds) the executable region its functions were
// installed into. One Context compiles one program; a surrounding
// scheduler that wants parallel compilation owns one Context per
// job.
type Context struct {
	opts   Options
	log    *logrus.Logger
	cache  *types.Cache
	gen    *codegen.Generator
	region *jitmem.Region
	entries map[string]uintptr

	lastErr *Error
}

// NewContext returns a handle owning the type interner, the code
// generator, and the error slot, with nothing compiled yet.
func NewContext(opts Options) *Context {
	log := logrus.New()
	if opts.Debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return &Context{
		opts:    opts,
		log:     log,
		cache:   types.NewCache(),
		gen:     codegen.NewGeneratorForABI(log, abi.ForTriple(opts.TargetTriple)),
		entries: make(map[string]uintptr),
	}
}

// LastError returns the diagnostic Parse/ParseFile recorded, or nil
// if the most recent call succeeded.
func (c *Context) LastError() *Error { return c.lastErr }

// ParseFile reads and Parses the file at path.
func (c *Context) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		c.lastErr = &Error{Kind: Semantic, Message: err.Error(), File: path}
		return c.lastErr
	}
	defer f.Close()
	return c.Parse(f, path)
}

// Parse lexes and parses source into an *ast.File, resolves
// aggregate layout and function signatures, lowers every function to
// IR, and compiles the whole translation unit into this context's
// executable region. A syntax, parser or aggregate-layout error ends
// the call before any function is compiled. A semantic error in one
// function skips only that function; the other functions in the unit
// remain compilable, so Parse keeps going and reports only the first
// error it saw.
func (c *Context) Parse(source io.Reader, filename string) error {
	c.lastErr = nil

	file, perrs := parser.Parse(filename, source)
	if len(perrs) > 0 {
		c.lastErr = toContextError(ParserErr, perrs[0])
		return c.lastErr
	}

	asm := ir.NewAssembler(c.cache)
	if errs := asm.RegisterAggregates(file); len(errs) > 0 {
		c.lastErr = toContextError(Semantic, errs[0])
		return c.lastErr
	}
	asm.RegisterSignatures(file)

	var funcs []*ir.Func
	for _, fn := range file.Funcs {
		irFn, errs := asm.AssembleFunc(fn)
		if len(errs) > 0 {
			if c.lastErr == nil {
				c.lastErr = toContextError(Semantic, errs[0])
			}
			continue
		}
		funcs = append(funcs, irFn)
	}
	if len(funcs) == 0 {
		return c.errOrNil()
	}

	// A forward call site within this unit must classify a
	// not-yet-compiled callee's ABI exactly as it would once that
	// callee is reached, so every signature is registered before any
	// function body is compiled.
	c.gen.RegisterSignatures(funcs)

	if c.region == nil {
		region, err := jitmem.NewRegion(jitmem.DefaultCapacity)
		if err != nil {
			c.lastErr = &Error{Kind: Semantic, Message: err.Error(), File: filename}
			return c.lastErr
		}
		c.region = region
	}

	for _, fn := range funcs {
		c.log.WithFields(logrus.Fields{"func": fn.Name, "ops": len(fn.Instrs)}).Debug("context: compiling")
		if err := c.gen.CompileFunc(fn); err != nil {
			c.lastErr = &Error{Kind: Semantic, Message: err.Error(), File: filename}
			return c.lastErr
		}
	}

	entries, err := c.gen.Finalize(c.region)
	if err != nil {
		c.lastErr = &Error{Kind: Semantic, Message: err.Error(), File: filename}
		return c.lastErr
	}
	for name, addr := range entries {
		c.entries[name] = addr
	}
	return c.errOrNil()
}

// errOrNil keeps a nil *Error from escaping as a non-nil error
// interface value.
func (c *Context) errOrNil() error {
	if c.lastErr == nil {
		return nil
	}
	return c.lastErr
}

// Get returns a compiled function's entry address, or ok==false if
// name was never defined.
func (c *Context) Get(name string) (uintptr, bool) {
	addr, ok := c.entries[name]
	return addr, ok
}

// ReportError writes a human-readable rendering of err to w.
func ReportError(err *Error, w io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintln(w, err.Error())
}

// Destroy releases the executable region. The caller must not hold
// or invoke any address obtained from Get afterward.
func (c *Context) Destroy() error {
	if c.region == nil {
		return nil
	}
	err := c.region.Close()
	c.region = nil
	return err
}

func toContextError(k Kind, err error) *Error {
	if le, ok := err.(*lexer.Error); ok {
		return &Error{Kind: Syntax, Message: le.Message, File: le.Pos.File, Row: le.Pos.Line, Col: le.Pos.Col}
	}
	if pe, ok := err.(*parser.Error); ok {
		return &Error{Kind: k, Message: pe.Message, File: pe.Pos.File, Row: pe.Pos.Line, Col: pe.Pos.Col}
	}
	if ie, ok := err.(*ir.Error); ok {
		return &Error{Kind: k, Message: ie.Message, File: ie.Pos.File, Row: ie.Pos.Line, Col: ie.Pos.Col}
	}
	return &Error{Kind: k, Message: err.Error()}
}
