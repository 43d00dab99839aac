// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package bitmem

import "github.com/cockroachdb/errors"

// Reader is a streaming cursor over a byte buffer. Reads advance the cursor;
// random access within already-read data goes through the Region returned by
// ReadRegion.
//
// The cursor is an absolute bit position within the buffer, so a Reader
// constructed at a nonzero offset (MakeReaderAt) reports positions relative
// to the buffer, not to its construction point. Back-reference arithmetic in
// the stackmap package relies on this.
type Reader struct {
	data      []byte
	bitOffset int
}

// MakeReader returns a Reader positioned at the start of data.
func MakeReader(data []byte) Reader {
	return Reader{data: data}
}

// MakeReaderAt returns a Reader positioned bitOffset bits into data.
func MakeReaderAt(data []byte, bitOffset int) Reader {
	if bitOffset < 0 || bitOffset > len(data)*8 {
		panic(errors.AssertionFailedf("reader offset %d out of bounds of %d-byte buffer", bitOffset, len(data)))
	}
	return Reader{data: data, bitOffset: bitOffset}
}

// NumberOfReadBits returns the cursor's absolute bit position.
func (r *Reader) NumberOfReadBits() int { return r.bitOffset }

// Data returns the underlying buffer. Used to derive secondary readers at
// absolute positions, such as when following a back-reference.
func (r *Reader) Data() []byte { return r.data }

// ReadRegion consumes bitSize bits and returns them as a Region.
func (r *Reader) ReadRegion(bitSize int) Region {
	region := MakeRegion(r.data, r.bitOffset, bitSize)
	r.bitOffset += bitSize
	return region
}

// ReadBits consumes width bits (≤ 32) and returns them as an unsigned
// integer.
func (r *Reader) ReadBits(width int) uint32 {
	if width > 32 {
		panic(errors.AssertionFailedf("read of %d bits exceeds 32", width))
	}
	return uint32(r.ReadRegion(width).LoadBits(0, width))
}

// ReadVarint consumes one varint-encoded value.
func (r *Reader) ReadVarint() uint32 {
	v := r.ReadBits(varintBits)
	if v > varintMax {
		v = r.ReadBits(8 * int(v-varintMax))
	}
	return v
}

// ReadInterleavedVarints consumes len(dst) interleaved varints: all header
// nibbles first, then the payload byte groups in order.
func (r *Reader) ReadInterleavedVarints(dst []uint32) {
	for i := range dst {
		dst[i] = r.ReadBits(varintBits)
	}
	for i, v := range dst {
		if v > varintMax {
			dst[i] = r.ReadBits(8 * int(v-varintMax))
		}
	}
}
