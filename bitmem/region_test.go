// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package bitmem

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegionLoadStore(t *testing.T) {
	buf := make([]byte, 32)
	r := MakeRegion(buf, 0, len(buf)*8)
	// Store values of every width at every shift within a byte and read them
	// back.
	for width := 1; width <= 64; width++ {
		for shift := 0; shift < 8; shift++ {
			off := 8*8 + shift
			v := rand.Uint64() & mask64(width)
			r.StoreBits(off, v, width)
			require.Equal(t, v, r.LoadBits(off, width), "width=%d shift=%d", width, shift)
		}
	}
}

func TestRegionStorePreservesNeighbors(t *testing.T) {
	buf := make([]byte, 8)
	r := MakeRegion(buf, 0, 64)
	r.StoreBits(0, mask64(64), 64)
	r.StoreBits(13, 0, 7)
	require.Equal(t, mask64(13), r.LoadBits(0, 13))
	require.Equal(t, uint64(0), r.LoadBits(13, 7))
	require.Equal(t, mask64(44), r.LoadBits(20, 44))
}

func TestRegionLoadAtBufferEnd(t *testing.T) {
	// Loads near the end of the buffer cannot use the 8-byte fast path.
	buf := []byte{0xff, 0xab}
	r := MakeRegion(buf, 4, 12)
	require.Equal(t, uint64(0xabf), r.LoadBits(0, 12))
	require.Equal(t, uint64(0xa), r.LoadBits(8, 4))
}

func TestRegionEqualsIgnoresPosition(t *testing.T) {
	buf := make([]byte, 16)
	whole := MakeRegion(buf, 0, len(buf)*8)
	// Identical 23-bit patterns at different, unaligned offsets.
	const pattern = 0x5a5a5a & (1<<23 - 1)
	whole.StoreBits(3, pattern, 23)
	whole.StoreBits(61, pattern, 23)
	a := whole.Subregion(3, 23)
	b := whole.Subregion(61, 23)
	require.True(t, a.Equals(b))
	require.True(t, b.Equals(a))
	require.Equal(t, a.Hash(), b.Hash())

	// Flip one bit; equality and (overwhelmingly likely) the hash change.
	whole.StoreBits(61+11, pattern>>11&1^1, 1)
	require.False(t, a.Equals(b))
	require.NotEqual(t, a.Hash(), b.Hash())
}

func TestRegionLoadBytesAligned(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	require.Equal(t, []byte{2, 3}, MakeRegion(buf, 8, 16).LoadBytesAligned())
	// A final partial byte is included whole.
	require.Equal(t, []byte{2, 3}, MakeRegion(buf, 8, 13).LoadBytesAligned())
	require.Panics(t, func() { MakeRegion(buf, 4, 16).LoadBytesAligned() })
}

func TestRegionEqualsLength(t *testing.T) {
	buf := make([]byte, 8)
	r := MakeRegion(buf, 0, 64)
	require.False(t, r.Subregion(0, 10).Equals(r.Subregion(0, 11)))
	require.True(t, r.Subregion(0, 0).Equals(r.Subregion(40, 0)))
}

func TestRegionRandomRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(0, 42))
	buf := make([]byte, 128)
	r := MakeRegion(buf, 0, len(buf)*8)
	type write struct {
		off, width int
		v          uint64
	}
	var writes []write
	off := 0
	for {
		width := 1 + rng.IntN(64)
		if off+width > r.BitSize() {
			break
		}
		v := rng.Uint64() & mask64(width)
		r.StoreBits(off, v, width)
		writes = append(writes, write{off, width, v})
		off += width
	}
	for _, w := range writes {
		require.Equal(t, w.v, r.LoadBits(w.off, w.width), "off=%d width=%d", w.off, w.width)
	}
}

func TestBitsToBytesRoundUp(t *testing.T) {
	require.Equal(t, 0, BitsToBytesRoundUp(0))
	require.Equal(t, 1, BitsToBytesRoundUp(1))
	require.Equal(t, 1, BitsToBytesRoundUp(8))
	require.Equal(t, 2, BitsToBytesRoundUp(9))
}
