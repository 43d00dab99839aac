// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package stackmap

import (
	"testing"

	"github.com/aotkit/stackmap/bitmem"
	"github.com/stretchr/testify/require"
)

func encodeTable(t *testing.T, b *BitTableBuilder) []byte {
	t.Helper()
	w := bitmem.NewWriter(0)
	b.Encode(w)
	w.ByteAlign()
	return w.Bytes()
}

func TestBitTableRoundTrip(t *testing.T) {
	var b BitTableBuilder
	b.Init(3)
	rows := [][3]uint32{
		{0, 7, 100},
		{1, 0, 200},
		{NoValue, 3, 0},
	}
	for _, row := range rows {
		b.AddRow(row[0], row[1], row[2])
	}

	var table BitTable
	r := bitmem.MakeReader(encodeTable(t, &b))
	table.Decode(&r, 3)

	require.Equal(t, 3, table.Rows())
	require.Equal(t, 3, table.NumColumns())
	for i, row := range rows {
		for c, v := range row {
			require.Equal(t, v, table.Get(i, c), "row=%d col=%d", i, c)
		}
	}
}

func TestBitTableMinimalWidths(t *testing.T) {
	var b BitTableBuilder
	b.Init(3)
	// Biased maxima per column: 2 (2 bits), 8 (4 bits), 0 (an all-NoValue
	// column stores zeroes and needs no bits at all).
	b.AddRow(1, 7, NoValue)
	b.AddRow(0, 2, NoValue)

	var table BitTable
	r := bitmem.MakeReader(encodeTable(t, &b))
	table.Decode(&r, 3)

	require.Equal(t, 2, table.ColumnBitSize(0))
	require.Equal(t, 4, table.ColumnBitSize(1))
	require.Equal(t, 0, table.ColumnBitSize(2))
	require.Equal(t, 6, table.RowBitSize())
	require.Equal(t, NoValue, table.Get(0, 2))
	require.Equal(t, NoValue, table.Get(1, 2))
}

func TestBitTableAllNoValueColumnIsFree(t *testing.T) {
	var b BitTableBuilder
	b.Init(1)
	for i := 0; i < 100; i++ {
		b.AddRow(NoValue)
	}

	var table BitTable
	r := bitmem.MakeReader(encodeTable(t, &b))
	table.Decode(&r, 1)

	require.Equal(t, 100, table.Rows())
	require.Equal(t, 0, table.RowBitSize())
	require.Equal(t, NoValue, table.Get(99, 0))
}

func TestBitTableEmpty(t *testing.T) {
	var b BitTableBuilder
	b.Init(4)

	encoded := encodeTable(t, &b)
	// An empty table is just the zero row-count nibble, byte-aligned.
	require.Equal(t, []byte{0}, encoded)

	var table BitTable
	r := bitmem.MakeReader(encoded)
	table.Decode(&r, 4)
	require.Equal(t, 0, table.Rows())
	require.Equal(t, 0, table.RowBitSize())
	require.Equal(t, 4, r.NumberOfReadBits())
}

func TestBitTableMaxValue(t *testing.T) {
	var b BitTableBuilder
	b.Init(1)
	// The largest storable logical value; its biased form needs all 32 bits.
	b.AddRow(NoValue - 1)

	var table BitTable
	r := bitmem.MakeReader(encodeTable(t, &b))
	table.Decode(&r, 1)
	require.Equal(t, 32, table.ColumnBitSize(0))
	require.Equal(t, NoValue-1, table.Get(0, 0))
}

func TestBitTableEquals(t *testing.T) {
	build := func(vals ...uint32) BitTable {
		var b BitTableBuilder
		b.Init(1)
		for _, v := range vals {
			b.AddRow(v)
		}
		var table BitTable
		r := bitmem.MakeReader(encodeTable(t, &b))
		table.Decode(&r, 1)
		return table
	}
	a := build(1, 2, 3)
	b := build(1, 2, 3)
	c := build(1, 2, 4)
	d := build(1, 2)
	require.True(t, a.Equals(&b))
	require.False(t, a.Equals(&c))
	require.False(t, a.Equals(&d))

	var empty1, empty2 BitTable
	require.True(t, empty1.Equals(&empty2))
}

func TestBitTableRowWidthMismatchPanics(t *testing.T) {
	var b BitTableBuilder
	b.Init(2)
	require.Panics(t, func() { b.AddRow(1) })
}
