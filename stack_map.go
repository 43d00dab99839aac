// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package stackmap

import "github.com/aotkit/stackmap/internal/invariants"

// Column layouts of the individual bit tables. The order within each table
// is part of the wire format.
const (
	stackMapKind = iota
	stackMapNativePcOffset
	stackMapDexPc
	stackMapRegisterMaskIndex
	stackMapStackMaskIndex
	stackMapInlineInfoIndex
	stackMapDexRegisterMaskIndex
	stackMapDexRegisterMapIndex
	numStackMapColumns
)

const (
	registerMaskValue = iota
	registerMaskShift
	numRegisterMaskColumns
)

const (
	stackMaskMask = iota
	numStackMaskColumns
)

const (
	inlineInfoIsLast = iota
	inlineInfoDexPc
	inlineInfoMethodInfoIndex
	inlineInfoNumberOfDexRegisters
	numInlineInfoColumns
)

const (
	methodInfoMethodIndex = iota
	methodInfoDexFileIndex
	numMethodInfoColumns
)

const (
	dexRegisterMaskMask = iota
	numDexRegisterMaskColumns
)

const (
	dexRegisterMapCatalogIndex = iota
	numDexRegisterMapColumns
)

const (
	dexRegisterCatalogKind = iota
	dexRegisterCatalogValue
	numDexRegisterCatalogColumns
)

// Values of the stack map kind column.
const (
	StackMapKindDefault uint32 = NoValue
	StackMapKindCatch   uint32 = 0
	StackMapKindOSR     uint32 = 1
	StackMapKindDebug   uint32 = 2
)

// Values of the inline info is-last column.
const (
	InlineInfoMore uint32 = 0
	InlineInfoLast uint32 = 1
)

// StackMap is one row of the stack map table: the unwind and liveness record
// for one native code offset.
type StackMap struct {
	ci  *CodeInfo
	row int
}

// Row returns the stack map's row index.
func (s StackMap) Row() int { return s.row }

func (s StackMap) get(col int) uint32 { return s.ci.tables[TableStackMaps].Get(s.row, col) }

// Kind returns the stack map kind (StackMapKindDefault for ordinary maps).
func (s StackMap) Kind() uint32 { return s.get(stackMapKind) }

// NativePcOffset returns the native code offset the map describes.
func (s StackMap) NativePcOffset() uint32 { return s.get(stackMapNativePcOffset) }

// DexPc returns the bytecode pc corresponding to the native offset.
func (s StackMap) DexPc() uint32 { return s.get(stackMapDexPc) }

// RegisterMaskIndex returns the row in the register mask table, or NoValue.
func (s StackMap) RegisterMaskIndex() uint32 { return s.get(stackMapRegisterMaskIndex) }

// StackMaskIndex returns the row in the stack mask table, or NoValue.
func (s StackMap) StackMaskIndex() uint32 { return s.get(stackMapStackMaskIndex) }

// InlineInfoIndex returns the first row of the map's inline chain, or
// NoValue when nothing is inlined at this offset.
func (s StackMap) InlineInfoIndex() uint32 { return s.get(stackMapInlineInfoIndex) }

// DexRegisterMaskIndex returns the row in the dex register mask table, or
// NoValue.
func (s StackMap) DexRegisterMaskIndex() uint32 { return s.get(stackMapDexRegisterMaskIndex) }

// DexRegisterMapIndex returns the first row of the map's dex register map
// entries, or NoValue.
func (s StackMap) DexRegisterMapIndex() uint32 { return s.get(stackMapDexRegisterMapIndex) }

// HasInlineInfo reports whether any calls are inlined at this map.
func (s StackMap) HasInlineInfo() bool { return s.InlineInfoIndex() != NoValue }

// Equals reports whether two stack maps denote the same row of the same
// decoded CodeInfo.
func (s StackMap) Equals(other StackMap) bool {
	return s.ci == other.ci && s.row == other.row
}

// NumberOfStackMaps returns the number of stack maps.
func (ci *CodeInfo) NumberOfStackMaps() int { return ci.tables[TableStackMaps].Rows() }

// StackMapAt returns the i'th stack map.
func (ci *CodeInfo) StackMapAt(i int) StackMap {
	invariants.CheckBounds(i, ci.NumberOfStackMaps())
	return StackMap{ci: ci, row: i}
}

// FindStackMapForNativePcOffset returns the first non-catch stack map at the
// given native code offset.
func (ci *CodeInfo) FindStackMapForNativePcOffset(nativePcOffset uint32) (StackMap, bool) {
	for i := 0; i < ci.NumberOfStackMaps(); i++ {
		s := ci.StackMapAt(i)
		if s.NativePcOffset() == nativePcOffset && s.Kind() != StackMapKindCatch {
			return s, true
		}
	}
	return StackMap{}, false
}

// FindStackMapForDexPc returns the first non-debug stack map at the given
// bytecode pc.
func (ci *CodeInfo) FindStackMapForDexPc(dexPc uint32) (StackMap, bool) {
	for i := 0; i < ci.NumberOfStackMaps(); i++ {
		s := ci.StackMapAt(i)
		if s.DexPc() == dexPc && s.Kind() != StackMapKindDebug {
			return s, true
		}
	}
	return StackMap{}, false
}

// InlineInfo is one row of the inline info table: one frame of an inlined
// call chain.
type InlineInfo struct {
	ci  *CodeInfo
	row int
}

func (n InlineInfo) get(col int) uint32 { return n.ci.tables[TableInlineInfos].Get(n.row, col) }

// IsLast reports whether this frame is the innermost of its chain.
func (n InlineInfo) IsLast() bool { return n.get(inlineInfoIsLast) == InlineInfoLast }

// DexPc returns the call site pc within the caller.
func (n InlineInfo) DexPc() uint32 { return n.get(inlineInfoDexPc) }

// MethodInfoIndex returns the row in the method info table identifying the
// inlined method.
func (n InlineInfo) MethodInfoIndex() uint32 { return n.get(inlineInfoMethodInfoIndex) }

// NumberOfDexRegisters returns the cumulative register count of the chain up
// to and including this frame.
func (n InlineInfo) NumberOfDexRegisters() uint32 { return n.get(inlineInfoNumberOfDexRegisters) }

// InlineInfosOf returns the inline chain of s, outermost first. The chain is
// empty when nothing is inlined at s.
func (ci *CodeInfo) InlineInfosOf(s StackMap) []InlineInfo {
	start := s.InlineInfoIndex()
	if start == NoValue {
		return nil
	}
	var chain []InlineInfo
	for row := int(start); ; row++ {
		n := InlineInfo{ci: ci, row: row}
		chain = append(chain, n)
		if n.IsLast() {
			return chain
		}
	}
}

// MethodInfo is one row of the method info table.
type MethodInfo struct {
	ci  *CodeInfo
	row int
}

// MethodIndex returns the method's index within its dex file.
func (m MethodInfo) MethodIndex() uint32 {
	return m.ci.tables[TableMethodInfos].Get(m.row, methodInfoMethodIndex)
}

// DexFileIndex returns the index of the dex file the method belongs to, or
// NoValue for the method's own dex file.
func (m MethodInfo) DexFileIndex() uint32 {
	return m.ci.tables[TableMethodInfos].Get(m.row, methodInfoDexFileIndex)
}

// MethodInfoAt returns the i'th method info row.
func (ci *CodeInfo) MethodInfoAt(i int) MethodInfo {
	invariants.CheckBounds(i, ci.tables[TableMethodInfos].Rows())
	return MethodInfo{ci: ci, row: i}
}

// RegisterMaskOf returns the live-register mask of s, or zero when none is
// recorded. Masks are stored shifted to strip trailing zero runs.
func (ci *CodeInfo) RegisterMaskOf(s StackMap) uint32 {
	i := s.RegisterMaskIndex()
	if i == NoValue {
		return 0
	}
	t := &ci.tables[TableRegisterMasks]
	return t.Get(int(i), registerMaskValue) << t.Get(int(i), registerMaskShift)
}

// StackMaskOf returns the spill-slot liveness mask of s, or zero when none
// is recorded.
func (ci *CodeInfo) StackMaskOf(s StackMap) uint32 {
	i := s.StackMaskIndex()
	if i == NoValue {
		return 0
	}
	return ci.tables[TableStackMasks].Get(int(i), stackMaskMask)
}

// DexRegisterCatalogEntry is one row of the location catalog: a location
// kind and its packed payload (stack offset, register number or constant).
type DexRegisterCatalogEntry struct {
	Kind  uint32
	Value uint32
}

// DexRegisterCatalogEntryAt returns the i'th catalog row.
func (ci *CodeInfo) DexRegisterCatalogEntryAt(i int) DexRegisterCatalogEntry {
	t := &ci.tables[TableDexRegisterCatalog]
	invariants.CheckBounds(i, t.Rows())
	return DexRegisterCatalogEntry{
		Kind:  t.Get(i, dexRegisterCatalogKind),
		Value: t.Get(i, dexRegisterCatalogValue),
	}
}
