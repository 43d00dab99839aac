// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package bitfmt exposes utilities for formatting bit-packed binary data
// with descriptive comments. Unlike a conventional hexdump, ranges are
// bit-granular: fields of the stack map format routinely start and end
// inside a byte.
package bitfmt

import (
	"fmt"
	"strconv"
	"strings"
)

// Formatter accumulates annotated bit ranges and renders them as aligned
//
//	<start>-<end>: <binary> <comment>
//
// lines, where start and end are bit offsets and the binary column shows the
// range's bits, least significant first, elided when wide.
type Formatter struct {
	lines []line
	end   int
}

type line struct {
	start, end int
	bits       string
	comment    string
}

// maxBitsShown bounds the binary column; wider ranges show a count instead.
const maxBitsShown = 24

// New constructs a new bit formatter.
func New() *Formatter {
	return &Formatter{}
}

// Bits records a range of width bits starting at the bit offset start, with
// a formatted comment. value holds the range's content for ranges narrow
// enough to display.
func (f *Formatter) Bits(start, width int, value uint64, format string, args ...any) {
	var bits string
	if width <= maxBitsShown {
		var sb strings.Builder
		for i := 0; i < width; i++ {
			sb.WriteByte('0' + byte(value>>i&1))
		}
		bits = sb.String()
	} else {
		bits = fmt.Sprintf("(%d bits)", width)
	}
	f.lines = append(f.lines, line{
		start:   start,
		end:     start + width,
		bits:    bits,
		comment: fmt.Sprintf(format, args...),
	})
	f.end = max(f.end, start+width)
}

// Note records a zero-width annotation at a bit offset, such as a marker for
// an elided or referenced range.
func (f *Formatter) Note(at int, format string, args ...any) {
	f.lines = append(f.lines, line{
		start:   at,
		end:     at,
		comment: fmt.Sprintf(format, args...),
	})
	f.end = max(f.end, at)
}

// String renders the accumulated lines.
func (f *Formatter) String() string {
	offsetWidth := len(strconv.Itoa(f.end))
	bitsWidth := 0
	for _, l := range f.lines {
		bitsWidth = max(bitsWidth, len(l.bits))
	}
	var sb strings.Builder
	for _, l := range f.lines {
		fmt.Fprintf(&sb, "%0*d-%0*d: %-*s %s\n",
			offsetWidth, l.start, offsetWidth, l.end, bitsWidth, l.bits, l.comment)
	}
	return sb.String()
}
