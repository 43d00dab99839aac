// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package bitmem

import "math/bits"

// Varint encoding: every value starts with a 4-bit header nibble. Values
// 0 through varintMax are stored directly in the nibble. Larger values store
// varintMax+n in the nibble, where n (1..4) is the number of little-endian
// payload bytes that follow.
//
// The interleaved form batches N values by writing all N header nibbles
// first, then the payload byte groups in the same order. Pairs of nibbles
// pack into whole bytes and the payloads decode with cheap byte loads, which
// is why the header fields of the stack map format use it.
const (
	varintBits = 4
	varintMax  = 11
)

// varintPayloadBytes returns how many payload bytes the varint encoding of v
// requires: zero if v fits in the header nibble, otherwise 1..4.
func varintPayloadBytes(v uint32) int {
	if v <= varintMax {
		return 0
	}
	return (bits.Len32(v) + 7) / 8
}

// VarintBitSize returns the total encoded size of v in bits.
func VarintBitSize(v uint32) int {
	return varintBits + 8*varintPayloadBytes(v)
}
