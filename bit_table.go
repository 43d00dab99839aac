// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package stackmap

import (
	"math/bits"

	"github.com/aotkit/stackmap/bitmem"
	"github.com/aotkit/stackmap/internal/invariants"
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// NoValue is the sentinel returned by BitTable.Get for an absent or invalid
// column value. It is stored as zero (values are biased by one on encode), so
// a column that is NoValue in every row occupies zero bits per row.
const NoValue = ^uint32(0)

// maxColumns is the widest table in the schema (stack maps).
const maxColumns = 8

// BitTable is a packed two-dimensional table of unsigned integer values: a
// fixed set of columns, each with a single bit width shared by every row, and
// rows packed back to back with no padding. The encoded form is
//
//	varint(numRows) [interleaved varints: column widths] [packed row data]
//
// with the column widths omitted entirely when numRows is zero.
//
// Decode does not unpack row values; it records the payload region and
// computes cumulative column offsets so Get can address any cell with one
// bit-range load. The zero value is an empty, not-present table.
type BitTable struct {
	numRows       uint32
	numColumns    int
	columnOffsets [maxColumns + 1]uint16 // cumulative bit offsets within a row
	data          bitmem.Region
}

// Decode reads a table with numColumns columns from r, leaving r positioned
// immediately after the table's payload.
func (t *BitTable) Decode(r *bitmem.Reader, numColumns int) {
	if numColumns > maxColumns {
		panic(errors.AssertionFailedf("table has %d columns; maximum is %d", numColumns, maxColumns))
	}
	t.numColumns = numColumns
	t.numRows = r.ReadVarint()
	t.columnOffsets = [maxColumns + 1]uint16{}
	if t.numRows != 0 {
		var widths [maxColumns]uint32
		r.ReadInterleavedVarints(widths[:numColumns])
		for i := 0; i < numColumns; i++ {
			t.columnOffsets[i+1] = t.columnOffsets[i] + uint16(widths[i])
		}
	}
	t.data = r.ReadRegion(int(t.numRows) * t.RowBitSize())
}

// Rows returns the number of rows.
func (t *BitTable) Rows() int { return int(t.numRows) }

// NumColumns returns the number of columns.
func (t *BitTable) NumColumns() int { return t.numColumns }

// RowBitSize returns the packed size of one row in bits.
func (t *BitTable) RowBitSize() int { return int(t.columnOffsets[t.numColumns]) }

// ColumnBitSize returns the bit width of one column.
func (t *BitTable) ColumnBitSize(col int) int {
	return int(t.columnOffsets[col+1] - t.columnOffsets[col])
}

// Get returns the value of one cell, or NoValue if the cell holds the
// sentinel.
func (t *BitTable) Get(row, col int) uint32 {
	invariants.CheckBounds(row, t.Rows())
	invariants.CheckBounds(col, t.numColumns)
	offset := row*t.RowBitSize() + int(t.columnOffsets[col])
	// Stored values are biased by one; the zero encoding decodes to NoValue.
	return uint32(t.data.LoadBits(offset, t.ColumnBitSize(col))) - 1
}

// Equals reports whether two decoded tables hold identical logical content:
// same shape, same widths, same packed bits.
func (t *BitTable) Equals(other *BitTable) bool {
	return t.numRows == other.numRows &&
		t.numColumns == other.numColumns &&
		t.columnOffsets == other.columnOffsets &&
		t.data.Equals(other.data)
}

// BitTableBuilder accumulates rows and encodes them with minimal per-column
// bit widths. Values are logical values; NoValue is permitted anywhere and
// costs nothing when a column is all-NoValue.
type BitTableBuilder struct {
	numColumns int
	values     []uint32 // row-major
}

// Init prepares the builder for a table with numColumns columns, discarding
// any accumulated rows.
func (b *BitTableBuilder) Init(numColumns int) {
	if numColumns > maxColumns {
		panic(errors.AssertionFailedf("table has %d columns; maximum is %d", numColumns, maxColumns))
	}
	b.numColumns = numColumns
	b.values = b.values[:0]
}

// AddRow appends one row. The number of values must equal the column count.
func (b *BitTableBuilder) AddRow(values ...uint32) {
	if len(values) != b.numColumns {
		panic(errors.AssertionFailedf("row has %d values; table has %d columns", len(values), b.numColumns))
	}
	b.values = append(b.values, values...)
}

// Rows returns the number of accumulated rows.
func (b *BitTableBuilder) Rows() int {
	if b.numColumns == 0 {
		return 0
	}
	return len(b.values) / b.numColumns
}

// Encode writes the table to w. An empty table encodes as the single varint
// zero.
func (b *BitTableBuilder) Encode(w *bitmem.Writer) {
	numRows := b.Rows()
	w.WriteVarint(uint32(numRows))
	if numRows == 0 {
		return
	}
	// Measure: each column's width must accommodate the largest biased value.
	var widths [maxColumns]uint32
	for i, v := range b.values {
		col := i % b.numColumns
		widths[col] = max(widths[col], uint32(minimumBitsToStore(v+1)))
	}
	w.WriteInterleavedVarints(widths[:b.numColumns])
	for i, v := range b.values {
		w.WriteBits(v+1, int(widths[i%b.numColumns]))
	}
}

// minimumBitsToStore returns the narrowest width that can represent v.
func minimumBitsToStore[T constraints.Unsigned](v T) int {
	return bits.Len64(uint64(v))
}
