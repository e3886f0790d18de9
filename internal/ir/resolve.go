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

package ir

import (
	"fmt"

	"github.com/y1yang0/corrosion/internal/ast"
	"github.com/y1yang0/corrosion/internal/types"
)

// Error is a semantic diagnostic raised while resolving types or
// names; it aborts only the current function.
type Error struct {
	Pos     ast.Pos
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Message) }

// resolveType turns a front-end *ast.TypeSpec into an interned
// *types.Type, looking up struct/union names in the aggregate table
// built from the file's AggregateDecls.
func (a *Assembler) resolveType(spec *ast.TypeSpec) (*types.Type, error) {
	if spec == nil {
		return types.Void, nil
	}
	switch spec.Kind {
	case ast.SpecPointer:
		elem, err := a.resolveType(spec.Elem)
		if err != nil {
			return nil, err
		}
		return a.cache.Pointer(elem), nil
	case ast.SpecArray:
		elem, err := a.resolveType(spec.Elem)
		if err != nil {
			return nil, err
		}
		return a.cache.Array(elem, spec.ArrayLen), nil
	case ast.SpecStruct, ast.SpecUnion:
		if spec.StructName == "" {
			return a.resolveInlineAggregate(spec)
		}
		t, ok := a.aggregates[spec.StructName]
		if !ok {
			return nil, fmt.Errorf("unknown aggregate type %q", spec.StructName)
		}
		return t, nil
	default:
		t := a.resolvePrimitive(spec.Prim, spec.Unsigned)
		if t == nil {
			return nil, fmt.Errorf("unsupported primitive type %v", spec.Prim)
		}
		return t, nil
	}
}

// resolveInlineAggregate lays out an anonymous `struct { ... }` body
// written directly inside a type position (sizeof, a declaration).
// The cache interns it by shape, so the same body written twice is
// one Type.
func (a *Assembler) resolveInlineAggregate(spec *ast.TypeSpec) (*types.Type, error) {
	fieldNames := make([]string, len(spec.Fields))
	fieldTypes := make([]*types.Type, len(spec.Fields))
	for i, f := range spec.Fields {
		t, err := a.resolveType(f.Type)
		if err != nil {
			return nil, err
		}
		fieldNames[i] = f.Name
		fieldTypes[i] = t
	}
	if spec.Kind == ast.SpecUnion {
		return a.cache.Union("", fieldNames, fieldTypes), nil
	}
	return a.cache.Struct("", fieldNames, fieldTypes), nil
}

func (a *Assembler) resolvePrimitive(tok ast.TokenKind, unsigned bool) *types.Type {
	switch tok {
	case ast.KW_TYPE_CHAR:
		if unsigned {
			return types.UInt8
		}
		return types.Int8
	case ast.KW_TYPE_SHORT:
		if unsigned {
			return types.UInt16
		}
		return types.Int16
	case ast.KW_TYPE_INT:
		if unsigned {
			return types.UInt32
		}
		return types.Int32
	case ast.KW_TYPE_LONG:
		if unsigned {
			return types.UInt64
		}
		return types.Int64
	case ast.KW_TYPE_BOOL:
		return types.Bool
	case ast.KW_TYPE_FLOAT:
		return types.Float32
	case ast.KW_TYPE_DOUBLE:
		return types.Float64
	case ast.KW_TYPE_VOID:
		return types.Void
	default:
		return nil
	}
}

// RegisterAggregates resolves every struct/union declaration in file
// into the type cache, in declaration order. Forward references
// between aggregates (a struct naming a later-declared struct by
// value) are not supported, matching the front end's single-pass
// design.
func (a *Assembler) RegisterAggregates(file *ast.File) []error {
	var errs []error
	for _, agg := range file.Aggregates {
		if agg.Name == "" {
			// layout-only anonymous declaration: nothing to register by
			// name, and sizeof over an inline body resolves structurally.
			continue
		}
		fieldNames := make([]string, len(agg.Fields))
		fieldTypes := make([]*types.Type, len(agg.Fields))
		ok := true
		for i, f := range agg.Fields {
			t, err := a.resolveType(f.Type)
			if err != nil {
				errs = append(errs, &Error{Pos: agg.Pos(), Message: err.Error()})
				ok = false
				continue
			}
			fieldNames[i] = f.Name
			fieldTypes[i] = t
		}
		if !ok {
			continue
		}
		var t *types.Type
		if agg.IsUnion {
			t = a.cache.Union(agg.Name, fieldNames, fieldTypes)
		} else {
			t = a.cache.Struct(agg.Name, fieldNames, fieldTypes)
		}
		a.aggregates[agg.Name] = t
	}
	return errs
}
