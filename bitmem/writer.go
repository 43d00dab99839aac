// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package bitmem

import "github.com/cockroachdb/errors"

// Writer is a streaming bit writer over a growable buffer. The written bit
// count is monotonically non-decreasing except for explicit Truncate calls,
// which rewind the cursor so a tentative encoding can be discarded and
// redone.
type Writer struct {
	buf       []byte
	bitOffset int
}

// NewWriter returns a Writer with capacity for at least sizeHint bytes.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// NumberOfWrittenBits returns the cursor's bit position.
func (w *Writer) NumberOfWrittenBits() int { return w.bitOffset }

// Bytes returns the written bytes. The final partial byte, if any, is
// zero-padded. The slice aliases the Writer's buffer and is invalidated by
// further writes.
func (w *Writer) Bytes() []byte {
	return w.buf[:BitsToBytesRoundUp(w.bitOffset)]
}

// allocate extends the buffer to cover bits more bits, advances the cursor,
// and returns the newly covered range as a writable Region.
func (w *Writer) allocate(bits int) Region {
	end := BitsToBytesRoundUp(w.bitOffset + bits)
	if end > len(w.buf) {
		if end > cap(w.buf) {
			grown := make([]byte, end, max(2*cap(w.buf), end))
			copy(grown, w.buf)
			w.buf = grown
		} else {
			w.buf = w.buf[:end]
		}
	}
	region := MakeRegion(w.buf, w.bitOffset, bits)
	w.bitOffset += bits
	return region
}

// WriteBits appends the low width bits (≤ 32) of value.
func (w *Writer) WriteBits(value uint32, width int) {
	if width > 32 {
		panic(errors.AssertionFailedf("write of %d bits exceeds 32", width))
	}
	w.allocate(width).StoreBits(0, uint64(value), width)
}

// WriteRegion appends a copy of src's bit content.
func (w *Writer) WriteRegion(src Region) {
	dst := w.allocate(src.BitSize())
	off := 0
	for remaining := src.BitSize(); remaining > 0; {
		n := min(remaining, 64)
		dst.StoreBits(off, src.LoadBits(off, n), n)
		off += n
		remaining -= n
	}
}

// WriteBytesAligned appends whole bytes. The cursor must be byte-aligned.
func (w *Writer) WriteBytesAligned(data []byte) {
	if w.bitOffset%8 != 0 {
		panic(errors.AssertionFailedf("aligned write at unaligned bit offset %d", w.bitOffset))
	}
	dst := w.allocate(8 * len(data))
	copy(dst.data[dst.bitStart/8:], data)
}

// WriteVarint appends one varint-encoded value.
func (w *Writer) WriteVarint(v uint32) {
	w.WriteInterleavedVarints([]uint32{v})
}

// WriteInterleavedVarints appends values in interleaved varint form: all
// header nibbles first, then the payload byte groups in order.
func (w *Writer) WriteInterleavedVarints(values []uint32) {
	for _, v := range values {
		if n := varintPayloadBytes(v); n != 0 {
			w.WriteBits(varintMax+uint32(n), varintBits)
		} else {
			w.WriteBits(v, varintBits)
		}
	}
	for _, v := range values {
		if n := varintPayloadBytes(v); n != 0 {
			w.WriteBits(v, 8*n)
		}
	}
}

// ByteAlign zero-fills up to the next byte boundary.
func (w *Writer) ByteAlign() {
	if pad := -w.bitOffset & 7; pad != 0 {
		w.WriteBits(0, pad)
	}
}

// Truncate rewinds the cursor to bitOffset, discarding everything written
// after it. The discarded bytes are zeroed so a subsequent rewrite starts
// from clean state even where it stores nothing (alignment padding).
func (w *Writer) Truncate(bitOffset int) {
	if bitOffset < 0 || bitOffset > w.bitOffset {
		panic(errors.AssertionFailedf("truncate to %d outside written range [0, %d]", bitOffset, w.bitOffset))
	}
	if bitOffset%8 != 0 {
		// Clear the dead high bits of the new final byte.
		MakeRegion(w.buf, bitOffset, -bitOffset&7).StoreBits(0, 0, -bitOffset&7)
	}
	for i := BitsToBytesRoundUp(bitOffset); i < len(w.buf); i++ {
		w.buf[i] = 0
	}
	w.bitOffset = bitOffset
}
