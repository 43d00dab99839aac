// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package stackmap implements the compact per-method metadata blob an
// ahead-of-time compiler attaches to each piece of generated code: stack
// maps, inline call chains, register and stack liveness masks, and the
// virtual-register location tables needed for deoptimization.
//
// A method's metadata is one CodeInfo: a handful of varint header fields
// followed by a fixed, ordered set of bit tables. The encoding is designed
// for two consumers with opposite needs. The code generator writes each blob
// once, then TableDeduper collapses bit tables whose content already exists
// earlier in the session buffer into short back-references. The runtime (GC,
// unwinder, deoptimizer) decodes blobs on hot paths: decode records bit
// offsets without unpacking rows, every cell read is a single bit-range
// load, and nothing allocates.
package stackmap

import (
	"github.com/aotkit/stackmap/bitmem"
	"github.com/aotkit/stackmap/internal/invariants"
)

// Indices of the bit tables within a CodeInfo, in encoding order.
const (
	TableStackMaps = iota
	TableRegisterMasks
	TableStackMasks
	TableInlineInfos
	TableMethodInfos
	TableDexRegisterMasks
	TableDexRegisterMaps
	TableDexRegisterCatalog

	// NumBitTables is the number of bit tables in every CodeInfo.
	NumBitTables
)

// NumHeaders is the number of varint header fields in every CodeInfo.
const NumHeaders = 7

// Method-level flags stored in the Flags header field.
const (
	FlagHasInlineInfo uint32 = 1 << iota
	FlagIsBaseline
	FlagIsDebuggable
)

// headerFields describes the varint header in encoding order. The final
// field is always the bit-table flags; the deduper patches exactly that
// field when it rewrites a blob.
var headerFields = [NumHeaders]struct {
	name string
	get  func(*CodeInfo) *uint32
}{
	{"flags", func(ci *CodeInfo) *uint32 { return &ci.Flags }},
	{"code-size", func(ci *CodeInfo) *uint32 { return &ci.CodeSize }},
	{"packed-frame-size", func(ci *CodeInfo) *uint32 { return &ci.PackedFrameSize }},
	{"core-spill-mask", func(ci *CodeInfo) *uint32 { return &ci.CoreSpillMask }},
	{"fp-spill-mask", func(ci *CodeInfo) *uint32 { return &ci.FpSpillMask }},
	{"num-dex-registers", func(ci *CodeInfo) *uint32 { return &ci.NumberOfDexRegisters }},
	{"bit-table-flags", func(ci *CodeInfo) *uint32 { return &ci.bitTableFlags }},
}

// bitTableFields describes the bit tables in encoding order. Generic code
// (decode, dedupe, dump, the debug comparison) iterates this array instead
// of special-casing individual tables.
var bitTableFields = [NumBitTables]struct {
	name       string
	numColumns int
}{
	{"stack-maps", numStackMapColumns},
	{"register-masks", numRegisterMaskColumns},
	{"stack-masks", numStackMaskColumns},
	{"inline-infos", numInlineInfoColumns},
	{"method-infos", numMethodInfoColumns},
	{"dex-register-masks", numDexRegisterMaskColumns},
	{"dex-register-maps", numDexRegisterMapColumns},
	{"dex-register-catalog", numDexRegisterCatalogColumns},
}

// CodeInfo is the decoded, read-only view of one method's metadata. It holds
// bit-range coordinates into the backing buffer rather than unpacked values;
// it is cheap to construct and is never mutated after decode.
type CodeInfo struct {
	Flags                uint32
	CodeSize             uint32
	PackedFrameSize      uint32
	CoreSpillMask        uint32
	FpSpillMask          uint32
	NumberOfDexRegisters uint32

	// bitTableFlags holds one presence bit per table in the low NumBitTables
	// bits and one deduped bit per table in the next NumBitTables bits.
	bitTableFlags uint32

	tables [NumBitTables]BitTable
}

// HasBitTable reports whether table i is present (nonzero rows were
// encoded).
func (ci *CodeInfo) HasBitTable(i int) bool {
	return ci.bitTableFlags&(1<<i) != 0
}

// IsBitTableDeduped reports whether table i's content lives at an earlier
// offset of the session buffer, reached through a back-reference.
func (ci *CodeInfo) IsBitTableDeduped(i int) bool {
	return ci.bitTableFlags&(1<<(i+NumBitTables)) != 0
}

func (ci *CodeInfo) setBitTableDeduped(i int) {
	ci.bitTableFlags |= 1 << (i + NumBitTables)
}

// HasDedupedBitTables reports whether any table is deduped.
func (ci *CodeInfo) HasDedupedBitTables() bool {
	return ci.bitTableFlags>>NumBitTables != 0
}

// Table returns the decoded table at index i. An absent table is the zero
// BitTable.
func (ci *CodeInfo) Table(i int) *BitTable {
	invariants.CheckBounds(i, NumBitTables)
	return &ci.tables[i]
}

// Decode decodes a standalone CodeInfo blob, such as raw code generator
// output. The blob must not contain deduped tables; blobs that do can only
// be decoded with DecodeAt against their whole session buffer.
func Decode(data []byte) CodeInfo {
	return DecodeAt(data, 0)
}

// DecodeAt decodes the CodeInfo starting at byteOffset within buf, following
// back-references into earlier parts of buf transparently. byteOffset is the
// value returned by TableDeduper.Dedupe for the method.
func DecodeAt(buf []byte, byteOffset int) CodeInfo {
	var ci CodeInfo
	r := bitmem.MakeReaderAt(buf, 8*byteOffset)
	ci.decodeFrom(&r)
	return ci
}

func (ci *CodeInfo) decodeFrom(r *bitmem.Reader) {
	var header [NumHeaders]uint32
	r.ReadInterleavedVarints(header[:])
	for i := range headerFields {
		*headerFields[i].get(ci) = header[i]
	}
	for i := range bitTableFields {
		if !ci.HasBitTable(i) {
			continue
		}
		if ci.IsBitTableDeduped(i) {
			// The varint is a backward bit delta from its own position to
			// the canonical copy. Deduped tables always reference a
			// present-unique table, never another back-reference.
			pos := r.NumberOfReadBits()
			fwd := bitmem.MakeReaderAt(r.Data(), pos-int(r.ReadVarint()))
			ci.tables[i].Decode(&fwd, bitTableFields[i].numColumns)
		} else {
			ci.tables[i].Decode(r, bitTableFields[i].numColumns)
		}
	}
}
