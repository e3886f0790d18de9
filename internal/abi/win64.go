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

// Win64 implements the Windows x64 calling convention: positional
// (not type-then-overflow) register assignment, a hidden first
// argument for aggregate returns larger than 8 bytes, and a 32-byte
// caller shadow space.
type Win64 struct{}

const win64ArgRegs = 4

func (w Win64) Name() string { return "win64" }

func (w Win64) Classify(retType *types.Type, argTypes []*types.Type, variadic bool) CallPlan {
	retBig := retType.Size > 8 && retType.IsAggregate()
	retClass := Integer
	if retType.IsFloat() {
		retClass = Floating
	}
	if retBig {
		retClass = Memory
	}
	ret := Arg{Type: retType, Class: retClass, IsBig: retBig}

	regArgs := win64ArgRegs
	if retBig {
		regArgs = 3
	}
	overflow := 0
	if len(argTypes) > regArgs {
		overflow = len(argTypes) - regArgs
	}
	// Overflow slots first (positional, immediately past the shadow
	// space where the callee expects them), then staging copies of
	// by-reference aggregates, then the return staging buffer.
	stackSize := overflow * 8
	args := make([]Arg, len(argTypes))
	for i, t := range argTypes {
		big := t.Size > 8
		class := Integer
		if t.IsFloat() {
			class = Floating
		}
		if big {
			class = Memory
			stackSize = classAligned(stackSize, t.Align)
			args[i].StackOffset = stackSize
			stackSize += t.Size
		} else if i >= regArgs {
			class = Memory
		}
		args[i].Type = t
		args[i].Class = class
		args[i].IsBig = big
		args[i].PtrInRegister = big && i < regArgs
	}
	if retBig {
		stackSize = classAligned(stackSize, retType.Align)
		ret.StackOffset = stackSize
		stackSize += retType.Size
	}
	stackSize = roundUp16(stackSize)

	return CallPlan{Ret: ret, Args: args, StackSize: stackSize}
}

func (w Win64) ParamSlots(params []*types.Type) []ParamSlot {
	slots := make([]ParamSlot, len(params))
	for i, t := range params {
		big := t.Size > 8
		if i < win64ArgRegs {
			slots[i] = ParamSlot{IsFloat: t.IsFloat() && !big, InRegister: true, RegIndex: i, ByReference: big}
		} else {
			// Incoming stack parameters sit above the return address and
			// the callee's own saved-register pushes; internal/codegen
			// resolves the exact rbp-relative constant against its own
			// prologue's push count.
			slots[i] = ParamSlot{InRegister: false, RegIndex: i, ByReference: big}
		}
	}
	return slots
}

func (Win64) ShadowSpace() int { return 32 }

func (Win64) CalleeSaved() []string {
	return []string{"rbx", "rbp", "rdi", "rsi", "r12", "r13", "r14", "r15",
		"xmm6", "xmm7", "xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14", "xmm15"}
}
