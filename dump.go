// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package stackmap

import (
	"fmt"
	"strings"

	"github.com/aotkit/stackmap/bitmem"
	"github.com/aotkit/stackmap/internal/bitfmt"
	"github.com/cockroachdb/crlib/crstrings"
)

// Dump renders the CodeInfo at byteOffset within buf as an annotated bit
// layout: header fields, each table's position and shape, and row contents.
// Back-references are followed, with their targets called out explicitly.
// Intended for debugging and the dump tool; never on a hot path.
func Dump(buf []byte, byteOffset int) string {
	f := bitfmt.New()
	r := bitmem.MakeReaderAt(buf, 8*byteOffset)

	headerStart := r.NumberOfReadBits()
	var header [NumHeaders]uint32
	var ci CodeInfo
	r.ReadInterleavedVarints(header[:])
	for i := range headerFields {
		*headerFields[i].get(&ci) = header[i]
	}
	f.Bits(headerStart, r.NumberOfReadBits()-headerStart, 0, "header")
	for i := range headerFields {
		f.Note(r.NumberOfReadBits(), "  %s: %d", headerFields[i].name, header[i])
	}

	for i := range bitTableFields {
		name := bitTableFields[i].name
		if !ci.HasBitTable(i) {
			f.Note(r.NumberOfReadBits(), "%s: absent", name)
			continue
		}
		tableStart := r.NumberOfReadBits()
		if ci.IsBitTableDeduped(i) {
			delta := r.ReadVarint()
			target := tableStart - int(delta)
			f.Bits(tableStart, r.NumberOfReadBits()-tableStart, uint64(delta),
				"%s: back-reference, %d bits back -> bit %d", name, delta, target)
			fwd := bitmem.MakeReaderAt(buf, target)
			ci.tables[i].Decode(&fwd, bitTableFields[i].numColumns)
			dumpTableRows(f, &ci.tables[i], target, name)
		} else {
			ci.tables[i].Decode(&r, bitTableFields[i].numColumns)
			dumpTableRows(f, &ci.tables[i], tableStart, name)
		}
	}
	return f.String()
}

func dumpTableRows(f *bitfmt.Formatter, t *BitTable, tableStart int, name string) {
	rowBits := t.RowBitSize()
	// Re-measure the table header: one varint for the row count, then the
	// column width varints.
	headerBits := bitmem.VarintBitSize(uint32(t.Rows()))
	if t.Rows() > 0 {
		for c := 0; c < t.NumColumns(); c++ {
			headerBits += bitmem.VarintBitSize(uint32(t.ColumnBitSize(c)))
		}
	}
	payloadStart := tableStart + headerBits
	f.Bits(tableStart, headerBits, 0, "%s: %d rows, %d columns, %d bits/row%s",
		name, t.Rows(), t.NumColumns(), rowBits,
		crstrings.If(t.Rows() == 0, " (empty)"))
	for row := 0; row < t.Rows(); row++ {
		var packed uint64
		if rowBits <= 64 {
			packed = t.data.LoadBits(row*rowBits, rowBits)
		}
		f.Bits(payloadStart+row*rowBits, rowBits, packed, "  row %d: %s", row, formatRow(t, row))
	}
}

func formatRow(t *BitTable, row int) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for c := 0; c < t.NumColumns(); c++ {
		if c > 0 {
			sb.WriteByte(' ')
		}
		if v := t.Get(row, c); v == NoValue {
			sb.WriteByte('-')
		} else {
			fmt.Fprintf(&sb, "%d", v)
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
