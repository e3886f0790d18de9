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

import "github.com/y1yang0/corrosion/internal/types"

// SysV implements the System V AMD64 calling convention.
type SysV struct{}

const sysvIntRegs = 6
const sysvFloatRegs = 8

// primitiveLeaf is one scalar field discovered by flattening an
// aggregate into its primitive members.
type primitiveLeaf struct {
	isFloat bool
	offset  int
}

func flattenLeaves(t *types.Type, offset int, out *[]primitiveLeaf) {
	if t.Kind == types.KindStruct || t.Kind == types.KindUnion {
		for i, ft := range t.Fields {
			flattenLeaves(ft.Type, offset+t.Fields[i].Offset, out)
		}
		return
	}
	*out = append(*out, primitiveLeaf{isFloat: t.IsFloat(), offset: offset})
}

// classify first checks the size>16 MEMORY shortcut, then flattens
// the type's primitive leaves to decide, per eightbyte, whether any
// integer/pointer leaf is present (which promotes that eightbyte's
// class to INTEGER even if every other leaf is floating).
func (SysV) classify(t *types.Type, intParams, floatParams, stackParams *int) Arg {
	if t.Size > 16 {
		inReg := *intParams < sysvIntRegs
		if inReg {
			*intParams++
		} else {
			*stackParams++
		}
		return Arg{Type: t, Class: Memory, IsBig: true, PtrInRegister: inReg}
	}

	arg := Arg{Type: t, Class: Floating, ClassUpper: Floating, Is128Bit: t.Size > 8}
	var leaves []primitiveLeaf
	flattenLeaves(t, 0, &leaves)
	for _, leaf := range leaves {
		if !leaf.isFloat {
			if leaf.offset >= 8 {
				arg.ClassUpper = Integer
			} else {
				arg.Class = Integer
			}
		}
	}

	counter := intParams
	limit := sysvIntRegs
	if arg.Class == Floating {
		counter, limit = floatParams, sysvFloatRegs
	}
	if *counter >= limit {
		arg.Class = Memory
		counter = stackParams
	}
	*counter++

	if arg.Is128Bit {
		counter2 := intParams
		limit2 := sysvIntRegs
		if arg.ClassUpper == Floating {
			counter2, limit2 = floatParams, sysvFloatRegs
		}
		if *counter2 >= limit2 {
			arg.ClassUpper = Memory
			counter2 = stackParams
		}
		*counter2++
	}
	if arg.ClassUpper == Memory {
		arg.Class = Memory
		*counter--
		*stackParams++
	}
	return arg
}

func (s SysV) Name() string { return "sysv-amd64" }

func (s SysV) Classify(retType *types.Type, argTypes []*types.Type, variadic bool) CallPlan {
	intParams, floatParams, stackParams := 0, 0, 0
	retArg := s.classify(retType, &intParams, &floatParams, &stackParams)

	intParams, floatParams, stackParams = 0, 0, 0
	if retArg.IsBig {
		intParams = 1
	}
	args := make([]Arg, len(argTypes))
	for i, t := range argTypes {
		args[i] = s.classify(t, &intParams, &floatParams, &stackParams)
	}

	// Overflow slots come first so the callee's rbp-relative reads at
	// slot 0, 1, ... line up with what the caller stored; the varargs
	// slot and big-argument staging copies stack on after them.
	stackSize := stackParams * 8
	varargsAt := 0
	if variadic {
		varargsAt = stackSize
		stackSize += 8
	}
	assignBig := func(a *Arg) {
		if !a.IsBig {
			return
		}
		stackSize = classAligned(stackSize, a.Type.Align)
		a.StackOffset = stackSize
		stackSize += a.Type.Size
	}
	assignBig(&retArg)
	for i := range args {
		assignBig(&args[i])
	}
	stackSize = roundUp16(stackSize)

	floatVarCount := 0
	if variadic {
		fixed := len(argTypes) - 1
		for i := fixed; i < len(args); i++ {
			if args[i].Class == Floating {
				floatVarCount++
			}
		}
	}

	return CallPlan{
		Ret: retArg, Args: args, StackSize: stackSize,
		VarargsAt: varargsAt, HasVarargs: variadic, FloatVarCnt: floatVarCount,
	}
}

func (s SysV) ParamSlots(params []*types.Type) []ParamSlot {
	intParams, floatParams := 0, 0
	slots := make([]ParamSlot, len(params))
	for i, t := range params {
		if t.Size > 16 {
			slots[i] = ParamSlot{ByReference: true, InRegister: intParams < sysvIntRegs, RegIndex: intParams}
			intParams++
			continue
		}
		preInt, preFloat := intParams, floatParams
		arg := s.classify(t, &intParams, &floatParams, new(int))
		switch arg.Class {
		case Floating:
			slots[i] = ParamSlot{IsFloat: true, InRegister: true, RegIndex: preFloat}
		case Integer:
			slots[i] = ParamSlot{InRegister: true, RegIndex: preInt}
		default:
			slots[i] = ParamSlot{InRegister: false}
		}
	}
	return slots
}

func (SysV) ShadowSpace() int { return 0 }

func (SysV) CalleeSaved() []string {
	return []string{"rbx", "rbp", "r12", "r13", "r14", "r15"}
}
