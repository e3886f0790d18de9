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

package types

import (
	"fmt"
	"strings"
)

// Predefined primitive singletons. Two occurrences of "int" in the
// source must resolve to the same *Type pointer.
var (
	Int8    = &Type{Kind: KindInt8, Size: 1, Align: 1}
	UInt8   = &Type{Kind: KindInt8, Size: 1, Align: 1, IsUnsigned: true}
	Int16   = &Type{Kind: KindInt16, Size: 2, Align: 2}
	UInt16  = &Type{Kind: KindInt16, Size: 2, Align: 2, IsUnsigned: true}
	Int32   = &Type{Kind: KindInt32, Size: 4, Align: 4}
	UInt32  = &Type{Kind: KindInt32, Size: 4, Align: 4, IsUnsigned: true}
	Int64   = &Type{Kind: KindInt64, Size: 8, Align: 8}
	UInt64  = &Type{Kind: KindInt64, Size: 8, Align: 8, IsUnsigned: true}
	Float32 = &Type{Kind: KindFloat32, Size: 4, Align: 4}
	Float64 = &Type{Kind: KindFloat64, Size: 8, Align: 8}
	Void    = &Type{Kind: KindVoid, Size: 0, Align: 1}
	Bool    = &Type{Kind: KindInt8, Size: 1, Align: 1, IsUnsigned: true, Name: "bool"}
	Varargs = &Type{Kind: KindVarargs, Size: 0, Align: 1}
)

// Cache interns derived types (pointer/array/function/struct/union) by
// content hash, so that pointer equality implies semantic equality.
// Lifetime is tied to a single compilation Context; the front end is
// the only writer, the back end only reads through the resulting
// *Type pointers.
type Cache struct {
	byKey map[string]*Type
}

func NewCache() *Cache {
	return &Cache{byKey: make(map[string]*Type)}
}

func (c *Cache) intern(key string, build func() *Type) *Type {
	if t, ok := c.byKey[key]; ok {
		return t
	}
	t := build()
	c.byKey[key] = t
	return t
}

func (c *Cache) Pointer(elem *Type) *Type {
	key := "*" + elem.cacheKey()
	return c.intern(key, func() *Type {
		return &Type{Kind: KindPointer, Size: 8, Align: 8, Elem: elem, IsUnsigned: true}
	})
}

func (c *Cache) Array(elem *Type, length int) *Type {
	key := fmt.Sprintf("[%d]%s", length, elem.cacheKey())
	return c.intern(key, func() *Type {
		size := 0
		if length != UnknownArrayLen {
			size = elem.Size * length
		}
		return &Type{Kind: KindArray, Size: size, Align: elem.Align, Elem: elem, ArrayLen: length}
	})
}

func (c *Cache) Function(ret *Type, params []*Type, variadic bool) *Type {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.cacheKey()
	}
	key := fmt.Sprintf("fn(%s)%v->%s", strings.Join(parts, ","), variadic, ret.cacheKey())
	return c.intern(key, func() *Type {
		return &Type{Kind: KindFunction, Size: 8, Align: 8, Ret: ret, Params: append([]*Type{}, params...), Variadic: variadic}
	})
}

// Struct lays out fields in declaration order with natural alignment
// padding. Size is rounded up to the aggregate's own alignment so
// arrays of the struct stay aligned.
func (c *Cache) Struct(name string, fieldNames []string, fieldTypes []*Type) *Type {
	offsets := make([]int, len(fieldTypes))
	offset := 0
	align := 1
	for i, ft := range fieldTypes {
		if ft.Align > align {
			align = ft.Align
		}
		if offset%ft.Align != 0 {
			offset += ft.Align - offset%ft.Align
		}
		offsets[i] = offset
		offset += ft.Size
	}
	if offset%align != 0 {
		offset += align - offset%align
	}
	fields := make([]Field, len(fieldTypes))
	for i := range fieldTypes {
		fields[i] = Field{Name: fieldNames[i], Type: fieldTypes[i], Offset: offsets[i]}
	}
	t := &Type{Kind: KindStruct, Name: name, Size: offset, Align: align, Fields: fields}
	// Anonymous/structural struct types are still interned by shape so
	// that `sizeof(struct{...})` written twice shares one Type.
	key := "struct:" + name + ":" + t.cacheKey()
	return c.intern(key, func() *Type { return t })
}

// Union lays out every field at offset 0; size is the widest member
// rounded up to the widest alignment.
func (c *Cache) Union(name string, fieldNames []string, fieldTypes []*Type) *Type {
	size, align := 0, 1
	for _, ft := range fieldTypes {
		if ft.Size > size {
			size = ft.Size
		}
		if ft.Align > align {
			align = ft.Align
		}
	}
	if size%align != 0 {
		size += align - size%align
	}
	fields := make([]Field, len(fieldTypes))
	for i, ft := range fieldTypes {
		fields[i] = Field{Name: fieldNames[i], Type: ft, Offset: 0}
	}
	t := &Type{Kind: KindUnion, Name: name, Size: size, Align: align, Fields: fields}
	key := "union:" + name + ":" + t.cacheKey()
	return c.intern(key, func() *Type { return t })
}

func (t *Type) cacheKey() string {
	switch t.Kind {
	case KindPointer:
		return "*" + t.Elem.cacheKey()
	case KindArray:
		return fmt.Sprintf("[%d]%s", t.ArrayLen, t.Elem.cacheKey())
	case KindStruct, KindUnion:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = fmt.Sprintf("%s:%s@%d", f.Name, f.Type.cacheKey(), f.Offset)
		}
		return fmt.Sprintf("%s{%s}", t.Kind, strings.Join(parts, ","))
	default:
		return fmt.Sprintf("%s/%d/%v", t.Kind, t.Size, t.IsUnsigned)
	}
}
