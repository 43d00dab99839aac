// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package stackmap

import (
	"github.com/aotkit/stackmap/bitmem"
	"github.com/cockroachdb/errors"
)

// Builder assembles one method's CodeInfo on the code generator side and
// encodes it as a standalone, not-yet-deduplicated blob: the input format of
// TableDeduper.Dedupe. Header scalars are plain fields; rows are appended to
// the typed tables through the Add methods or directly via Table for tests
// that need full control.
type Builder struct {
	CodeSize             uint32
	PackedFrameSize      uint32
	CoreSpillMask        uint32
	FpSpillMask          uint32
	NumberOfDexRegisters uint32
	IsBaseline           bool
	IsDebuggable         bool

	tables      [NumBitTables]BitTableBuilder
	initialized bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.Reset()
	return b
}

// Reset clears all header fields and table rows for reuse.
func (b *Builder) Reset() {
	*b = Builder{initialized: true}
	for i := range b.tables {
		b.tables[i].Init(bitTableFields[i].numColumns)
	}
}

// Table returns the builder for table i.
func (b *Builder) Table(i int) *BitTableBuilder {
	if !b.initialized {
		panic(errors.AssertionFailedf("Builder must be created with NewBuilder"))
	}
	return &b.tables[i]
}

// AddStackMap appends a stack map row. Index columns default to NoValue via
// the arguments.
func (b *Builder) AddStackMap(
	kind, nativePcOffset, dexPc uint32,
	registerMaskIndex, stackMaskIndex, inlineInfoIndex, dexRegisterMaskIndex, dexRegisterMapIndex uint32,
) {
	b.Table(TableStackMaps).AddRow(kind, nativePcOffset, dexPc,
		registerMaskIndex, stackMaskIndex, inlineInfoIndex, dexRegisterMaskIndex, dexRegisterMapIndex)
}

// AddRegisterMask appends a register mask row and returns its index.
func (b *Builder) AddRegisterMask(mask uint32) uint32 {
	t := b.Table(TableRegisterMasks)
	shift := uint32(0)
	if mask != 0 {
		for mask&1 == 0 {
			mask >>= 1
			shift++
		}
	}
	t.AddRow(mask, shift)
	return uint32(t.Rows() - 1)
}

// AddStackMask appends a stack mask row and returns its index.
func (b *Builder) AddStackMask(mask uint32) uint32 {
	t := b.Table(TableStackMasks)
	t.AddRow(mask)
	return uint32(t.Rows() - 1)
}

// AddInlineInfo appends one frame of an inline chain and returns its row
// index. Frames of one chain must be appended contiguously, innermost
// flagged with InlineInfoLast.
func (b *Builder) AddInlineInfo(isLast, dexPc, methodInfoIndex, numberOfDexRegisters uint32) uint32 {
	t := b.Table(TableInlineInfos)
	t.AddRow(isLast, dexPc, methodInfoIndex, numberOfDexRegisters)
	return uint32(t.Rows() - 1)
}

// AddMethodInfo appends a method info row and returns its index.
func (b *Builder) AddMethodInfo(methodIndex, dexFileIndex uint32) uint32 {
	t := b.Table(TableMethodInfos)
	t.AddRow(methodIndex, dexFileIndex)
	return uint32(t.Rows() - 1)
}

// Encode returns the method's standalone CodeInfo blob: interleaved varint
// header, then each non-empty table back to back, byte-aligned at the end.
// No table is marked deduped; presence bits reflect non-empty tables and
// FlagHasInlineInfo is derived from the inline table.
func (b *Builder) Encode() []byte {
	var flags uint32
	if b.tables[TableInlineInfos].Rows() != 0 {
		flags |= FlagHasInlineInfo
	}
	if b.IsBaseline {
		flags |= FlagIsBaseline
	}
	if b.IsDebuggable {
		flags |= FlagIsDebuggable
	}
	var bitTableFlags uint32
	for i := range b.tables {
		if b.tables[i].Rows() != 0 {
			bitTableFlags |= 1 << i
		}
	}

	w := bitmem.NewWriter(64)
	header := [NumHeaders]uint32{
		flags, b.CodeSize, b.PackedFrameSize, b.CoreSpillMask, b.FpSpillMask,
		b.NumberOfDexRegisters, bitTableFlags,
	}
	w.WriteInterleavedVarints(header[:])
	for i := range b.tables {
		if b.tables[i].Rows() != 0 {
			b.tables[i].Encode(w)
		}
	}
	w.ByteAlign()
	return w.Bytes()
}
