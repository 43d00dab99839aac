// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package stackmap

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// requireSameCodeInfo asserts that two decoded CodeInfos are logically
// identical up to the deduplication flags.
func requireSameCodeInfo(t *testing.T, want, got *CodeInfo) {
	t.Helper()
	for i := range headerFields {
		if headerFields[i].name == "bit-table-flags" {
			continue
		}
		require.Equal(t, *headerFields[i].get(want), *headerFields[i].get(got),
			"header %s", headerFields[i].name)
	}
	for i := range bitTableFields {
		require.Equal(t, want.HasBitTable(i), got.HasBitTable(i), "presence of %s", bitTableFields[i].name)
		require.True(t, want.tables[i].Equals(&got.tables[i]), "content of %s", bitTableFields[i].name)
	}
}

func TestDedupeIdenticalMethods(t *testing.T) {
	blob := buildMethod(128).Encode()

	d := NewTableDeduper()
	off1 := d.Dedupe(blob)
	off2 := d.Dedupe(blob)
	out := d.Bytes()

	require.Equal(t, 0, off1)
	require.Greater(t, off2, off1)
	// The second copy shares every large table with the first, so the
	// session buffer is well under two verbatim copies.
	require.Less(t, len(out), 2*len(blob))

	src := Decode(blob)
	for _, off := range []int{off1, off2} {
		ci := DecodeAt(out, off)
		requireSameCodeInfo(t, &src, &ci)
	}
	ci1, ci2 := DecodeAt(out, off1), DecodeAt(out, off2)
	require.False(t, ci1.HasDedupedBitTables())
	require.True(t, ci2.HasDedupedBitTables())
}

func TestDedupeSharedTableAcrossDistinctMethods(t *testing.T) {
	// Two methods with identical stack masks (well above the size
	// threshold) but otherwise distinct content.
	build := func(pc uint32) []byte {
		b := NewBuilder()
		b.CodeSize = pc + 512
		b.NumberOfDexRegisters = pc % 7
		for i := uint32(0); i < 5; i++ {
			b.AddStackMask(0xfffff + i)
		}
		sm := b.AddStackMask(0xabcde)
		b.AddStackMap(StackMapKindDefault, pc, 0, NoValue, sm, NoValue, NoValue, NoValue)
		return b.Encode()
	}
	blobA, blobB := build(16), build(4096)
	require.NotEqual(t, blobA, blobB)

	d := NewTableDeduper()
	offA := d.Dedupe(blobA)
	offB := d.Dedupe(blobB)
	out := d.Bytes()

	ciB := DecodeAt(out, offB)
	require.True(t, ciB.IsBitTableDeduped(TableStackMasks))
	require.False(t, ciB.IsBitTableDeduped(TableStackMaps))
	// The second method's encoding is strictly shorter than its standalone
	// blob: the shared table collapsed into a back-reference.
	require.Less(t, len(out)-offB, len(blobB))

	srcA, srcB := Decode(blobA), Decode(blobB)
	ciA := DecodeAt(out, offA)
	requireSameCodeInfo(t, &srcA, &ciA)
	requireSameCodeInfo(t, &srcB, &ciB)

	stats := d.Stats()
	require.Equal(t, uint64(2), stats.CodeInfos)
	require.Equal(t, uint64(1), stats.DedupedBitTables)
}

func TestDedupeSizeThreshold(t *testing.T) {
	// One stack-mask row of width w encodes as 4 bits of row count, 12 bits
	// of column width varint, and w payload bits. Width 16 lands exactly one
	// bit under the dedupe threshold, width 17 exactly on it. The methods
	// carry no other tables so the stack-mask table is the only candidate.
	cases := []struct {
		mask      uint32
		tableBits int
		deduped   bool
	}{
		{40000, 32, false}, // biased width 16
		{70000, 33, true},  // biased width 17
	}
	for _, tc := range cases {
		build := func(codeSize uint32) []byte {
			b := NewBuilder()
			b.CodeSize = codeSize
			b.AddStackMask(tc.mask)
			return b.Encode()
		}
		d := NewTableDeduper()
		d.Dedupe(build(64))
		offB := d.Dedupe(build(128))
		ciB := DecodeAt(d.Bytes(), offB)
		require.Equal(t, tc.deduped, ciB.IsBitTableDeduped(TableStackMasks),
			"mask=%#x tableBits=%d", tc.mask, tc.tableBits)
		if tc.deduped {
			require.Equal(t, 1, d.set.len())
		} else {
			// Below the threshold the identical table is stored twice and
			// never enters the dedupe set.
			require.Equal(t, 0, d.set.len())
		}
	}
}

func TestDedupeHeaderOnlyMethod(t *testing.T) {
	b := NewBuilder()
	b.CodeSize = 32
	blob := b.Encode()

	d := NewTableDeduper()
	off1 := d.Dedupe(blob)
	off2 := d.Dedupe(blob)
	out := d.Bytes()

	// Nothing to dedupe: both copies are verbatim, header-only size.
	require.Equal(t, len(blob), off2-off1)
	require.Equal(t, 2*len(blob), len(out))
	for _, off := range []int{off1, off2} {
		ci := DecodeAt(out, off)
		require.False(t, ci.HasDedupedBitTables())
		require.Equal(t, uint32(32), ci.CodeSize)
	}
}

func TestDedupeOffsetsAreContiguous(t *testing.T) {
	d := NewTableDeduper()
	d.ReserveDedupeBuffer(16)
	var offsets []int
	for i := 0; i < 16; i++ {
		offsets = append(offsets, d.Dedupe(buildMethod(uint32(i)*1024).Encode()))
	}
	for i := 1; i < len(offsets); i++ {
		require.Greater(t, offsets[i], offsets[i-1])
	}
	// Every region starts where the previous one ended; the buffer never
	// shrinks or leaves gaps.
	out := d.Bytes()
	require.Greater(t, len(out), offsets[len(offsets)-1])
}

func TestDedupeManyMethodsSharedTable(t *testing.T) {
	// Many methods share one large table; the dedupe set tracks distinct
	// content, not occurrences.
	const numMethods = 1000
	d := NewTableDeduper()
	d.ReserveDedupeBuffer(numMethods)
	rng := rand.New(rand.NewPCG(7, 7))

	var offsets []int
	for i := 0; i < numMethods; i++ {
		b := NewBuilder()
		b.CodeSize = uint32(rng.IntN(1 << 16))
		for j := uint32(0); j < 4; j++ {
			b.AddStackMask(0xcafe00 + j) // identical across methods
		}
		b.AddStackMap(StackMapKindDefault, uint32(i), uint32(rng.IntN(1<<12)),
			NoValue, 0, NoValue, NoValue, NoValue)
		offsets = append(offsets, d.Dedupe(b.Encode()))
	}
	out := d.Bytes()

	deduped := 0
	for _, off := range offsets {
		ci := DecodeAt(out, off)
		require.Equal(t, uint32(0xcafe00), ci.StackMaskOf(ci.StackMapAt(0)))
		if ci.IsBitTableDeduped(TableStackMasks) {
			deduped++
		}
	}
	require.Equal(t, numMethods-1, deduped)

	// Distinct large tables only: each method's stack-map table is unique
	// (the pc column differs), the stack-mask table is registered once.
	require.Equal(t, numMethods+1, d.set.len())

	stats := d.Stats()
	require.Equal(t, uint64(numMethods), stats.CodeInfos)
	require.Equal(t, uint64(numMethods-1), stats.DedupedBitTables)
	require.Less(t, stats.OutputBytes, stats.InputBytes)
}

func TestDedupeVerify(t *testing.T) {
	// Exercise the debug consistency check directly; it runs implicitly
	// only under the invariants build tag.
	blob := buildMethod(64).Encode()
	d := NewTableDeduper()
	off1 := d.Dedupe(blob)
	off2 := d.Dedupe(blob)
	require.NotPanics(t, func() {
		d.verify(blob, off1)
		d.verify(blob, off2)
	})
}

func TestDedupeRejectsDedupedInput(t *testing.T) {
	blob := buildMethod(64).Encode()
	d := NewTableDeduper()
	d.Dedupe(blob)
	off2 := d.Dedupe(blob)
	// A slice of the session buffer starting at a deduped method is not a
	// valid standalone blob.
	deduped := d.Bytes()[off2:]
	d2 := NewTableDeduper()
	require.Panics(t, func() { d2.Dedupe(deduped) })
}

func TestDedupeStatsString(t *testing.T) {
	d := NewTableDeduper()
	d.Dedupe(buildMethod(0).Encode())
	s := d.Stats().String()
	require.Contains(t, s, "code infos: 1")
}
