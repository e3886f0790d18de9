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

// Package types implements the compiler's tagged-variant type system:
// primitives, pointers, arrays, functions, structs/unions.
// Types are interned by the Cache so that pointer equality implies
// semantic equality.
package types

import (
	"fmt"
	"strings"
)

// Kind is the tag of the Type sum type.
type Kind int

const (
	KindInt8 Kind = iota
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindVoid
	KindPointer
	KindArray
	KindFunction
	KindStruct
	KindUnion
	KindVarargs
)

func (k Kind) String() string {
	switch k {
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindVoid:
		return "void"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindFunction:
		return "function"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindVarargs:
		return "varargs"
	default:
		return "?"
	}
}

// UnknownArrayLen marks an array whose size is not known (an
// incomplete array type, e.g. a function parameter written as T[]).
const UnknownArrayLen = -1

// Field is one member of a Struct/Union type: its type and its byte
// offset from the start of the aggregate (offsets are always 0 for a
// Union).
type Field struct {
	Name   string
	Type   *Type
	Offset int
}

// Type is a tagged variant over every kind the language has. Two Types
// with the same shape are the same pointer (see Cache.intern): callers
// may compare *Type values with ==.
type Type struct {
	Kind       Kind
	Size       int  // bytes
	Align      int  // bytes
	Name       string
	Const      bool
	IsUnsigned bool

	// KindPointer / KindArray
	Elem *Type
	// KindArray only; UnknownArrayLen if not given
	ArrayLen int

	// KindFunction
	Ret      *Type
	Params   []*Type
	Variadic bool

	// KindStruct / KindUnion
	Fields []Field

	hash uint64
}

func (t *Type) IsInt() bool {
	switch t.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return true
	}
	return false
}

func (t *Type) IsFloat() bool {
	return t.Kind == KindFloat32 || t.Kind == KindFloat64
}

func (t *Type) IsScalar() bool {
	return t.IsInt() || t.IsFloat() || t.Kind == KindPointer
}

func (t *Type) IsAggregate() bool {
	return t.Kind == KindStruct || t.Kind == KindUnion || t.Kind == KindArray
}

func (t *Type) IsVoid() bool { return t.Kind == KindVoid }

// Rank orders integer types by width, used by internal/ir's integer
// promotion and usual arithmetic conversions (typeof.go).
func (t *Type) Rank() int {
	switch t.Kind {
	case KindInt8:
		return 1
	case KindInt16:
		return 2
	case KindInt32:
		return 3
	case KindInt64, KindPointer:
		return 4
	case KindFloat32:
		return 5
	case KindFloat64:
		return 6
	default:
		return 0
	}
}

func (t *Type) String() string {
	switch t.Kind {
	case KindPointer:
		return fmt.Sprintf("*%s", t.Elem)
	case KindArray:
		if t.ArrayLen == UnknownArrayLen {
			return fmt.Sprintf("%s[]", t.Elem)
		}
		return fmt.Sprintf("%s[%d]", t.Elem, t.ArrayLen)
	case KindFunction:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		variadic := ""
		if t.Variadic {
			variadic = ", ..."
		}
		return fmt.Sprintf("%s(%s%s)", t.Ret, strings.Join(parts, ", "), variadic)
	case KindStruct, KindUnion:
		if t.Name != "" {
			return t.Name
		}
		return fmt.Sprintf("%s{...}", t.Kind)
	default:
		return t.Kind.String()
	}
}
