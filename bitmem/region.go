// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package bitmem provides bit-granular views, readers and writers over byte
// buffers. It is the substrate for the packed bit-table encodings in the
// stackmap package: every value is addressed by bit offset and bit width,
// with no padding between fields.
//
// Bit order is little-endian: bit i of a region is bit (i%8) of byte (i/8),
// counting from the least significant bit. An N-bit load therefore yields the
// same value on every platform and a region is a plain (buffer, offset,
// length) triple with no alignment requirements.
package bitmem

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// Region is a non-owning bit-addressable view into a byte buffer. The zero
// value is an empty region.
//
// A Region never outlives or grows past the buffer it was created over: the
// constructor asserts that start+size fits within the buffer's bit length.
type Region struct {
	data     []byte
	bitStart int
	bitSize  int
}

// MakeRegion returns a view of bitSize bits of data beginning at bitStart.
func MakeRegion(data []byte, bitStart, bitSize int) Region {
	if bitStart < 0 || bitSize < 0 || bitStart+bitSize > len(data)*8 {
		panic(errors.AssertionFailedf(
			"bit region [%d, %d) out of bounds of %d-byte buffer", bitStart, bitStart+bitSize, len(data)))
	}
	return Region{data: data, bitStart: bitStart, bitSize: bitSize}
}

// BitSize returns the length of the region in bits.
func (r Region) BitSize() int { return r.bitSize }

// Subregion returns a view of bitSize bits beginning bitOffset bits into r.
func (r Region) Subregion(bitOffset, bitSize int) Region {
	if bitOffset < 0 || bitSize < 0 || bitOffset+bitSize > r.bitSize {
		panic(errors.AssertionFailedf(
			"subregion [%d, %d) out of bounds of %d-bit region", bitOffset, bitOffset+bitSize, r.bitSize))
	}
	return Region{data: r.data, bitStart: r.bitStart + bitOffset, bitSize: bitSize}
}

// LoadBits reads width bits (0 ≤ width ≤ 64) at bitOffset and returns them as
// an unsigned integer with bit 0 of the result holding the bit at bitOffset.
func (r Region) LoadBits(bitOffset, width int) uint64 {
	if width == 0 {
		return 0
	}
	if width < 0 || width > 64 || bitOffset < 0 || bitOffset+width > r.bitSize {
		panic(errors.AssertionFailedf(
			"load of %d bits at %d out of bounds of %d-bit region", width, bitOffset, r.bitSize))
	}
	abs := r.bitStart + bitOffset
	i := abs >> 3
	shift := abs & 7
	// Fast path: an aligned 8-byte load covers the requested bits.
	if shift+width <= 64 && i+8 <= len(r.data) {
		return binary.LittleEndian.Uint64(r.data[i:]) >> shift & mask64(width)
	}
	// Assemble byte by byte near the end of the buffer, or when the bits
	// straddle a 9-byte window.
	v := uint64(r.data[i] >> shift)
	for got := 8 - shift; got < width; got += 8 {
		i++
		v |= uint64(r.data[i]) << got
	}
	return v & mask64(width)
}

// LoadBytesAligned returns the region's content as a byte slice aliasing the
// backing buffer. The region must start on a byte boundary; a final partial
// byte is included whole.
func (r Region) LoadBytesAligned() []byte {
	if r.bitStart%8 != 0 {
		panic(errors.AssertionFailedf("byte load of region at unaligned bit %d", r.bitStart))
	}
	start := r.bitStart / 8
	return r.data[start : start+BitsToBytesRoundUp(r.bitSize)]
}

// LoadBit reads the single bit at bitOffset.
func (r Region) LoadBit(bitOffset int) bool {
	return r.LoadBits(bitOffset, 1) != 0
}

// StoreBits writes the low width bits (0 ≤ width ≤ 64) of value at bitOffset.
// Bits outside the target range are preserved.
func (r Region) StoreBits(bitOffset int, value uint64, width int) {
	if width == 0 {
		return
	}
	if width < 0 || width > 64 || bitOffset < 0 || bitOffset+width > r.bitSize {
		panic(errors.AssertionFailedf(
			"store of %d bits at %d out of bounds of %d-bit region", width, bitOffset, r.bitSize))
	}
	if value != value&mask64(width) {
		panic(errors.AssertionFailedf("value %#x does not fit in %d bits", value, width))
	}
	abs := r.bitStart + bitOffset
	for width > 0 {
		i := abs >> 3
		shift := abs & 7
		n := min(8-shift, width)
		m := byte((1<<n - 1) << shift)
		r.data[i] = r.data[i]&^m | byte(value<<shift)&m
		value >>= n
		abs += n
		width -= n
	}
}

// Equals reports whether two regions have the same bit length and identical
// bit content. Position within the backing buffers is irrelevant; two equal
// regions may live in different buffers or overlap within one.
func (r Region) Equals(other Region) bool {
	if r.bitSize != other.bitSize {
		return false
	}
	off := 0
	for remaining := r.bitSize; remaining > 0; {
		n := min(remaining, 64)
		if r.LoadBits(off, n) != other.LoadBits(off, n) {
			return false
		}
		off += n
		remaining -= n
	}
	return true
}

// Hash returns a 64-bit hash of the region's bit content. Like Equals, the
// hash depends only on content and length, never on position, so structurally
// identical regions at different offsets hash alike.
func (r Region) Hash() uint64 {
	var d xxhash.Digest
	d.Reset()
	var scratch [8]byte
	off := 0
	for remaining := r.bitSize; remaining > 0; {
		n := min(remaining, 64)
		binary.LittleEndian.PutUint64(scratch[:], r.LoadBits(off, n))
		_, _ = d.Write(scratch[:(n+7)/8])
		off += n
		remaining -= n
	}
	return d.Sum64()
}

// BitsToBytesRoundUp returns the number of bytes needed to hold bits.
func BitsToBytesRoundUp(bits int) int {
	return (bits + 7) / 8
}

func mask64(width int) uint64 {
	if width == 64 {
		return ^uint64(0)
	}
	return 1<<width - 1
}
