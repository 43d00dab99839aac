// Copyright 2025 The Stackmap Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package stackmap

import (
	"github.com/aotkit/stackmap/bitmem"
	"github.com/aotkit/stackmap/internal/invariants"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/swiss"
)

// minDedupeBits is the smallest table (header plus payload) worth
// deduplicating. A back-reference costs a varint, typically a nibble plus a
// 4-byte offset, so collapsing anything smaller would break even at best.
const minDedupeBits = 33

// TableDeduper re-emits per-method CodeInfo blobs into one session buffer,
// replacing any bit table whose bit content already occurs earlier in the
// buffer with a backward reference. Across a session, the bit content of any
// sufficiently large table is stored physically at most once.
//
// A TableDeduper is single-use and single-threaded: one compilation pass
// feeds it methods in order, then hands the buffer off wholesale via Bytes.
type TableDeduper struct {
	w     *bitmem.Writer
	set   dedupeSet
	stats DedupeStats
}

// NewTableDeduper returns a deduper over a fresh, empty session buffer.
func NewTableDeduper() *TableDeduper {
	return &TableDeduper{
		w:   bitmem.NewWriter(1 << 10),
		set: makeDedupeSet(16),
	}
}

// ReserveDedupeBuffer pre-sizes the dedupe set for numCodeInfos method
// encodings. Half of the theoretical table count is reserved; in practice
// well under half the tables in a session are unique.
func (d *TableDeduper) ReserveDedupeBuffer(numCodeInfos int) {
	if d.set.len() != 0 {
		panic(errors.AssertionFailedf("reserve after %d insertions", d.set.len()))
	}
	d.set = makeDedupeSet(numCodeInfos * NumBitTables / 2)
}

// Bytes returns the session buffer. The slice aliases internal storage and
// is invalidated by further Dedupe calls; callers hand it off after the last
// method.
func (d *TableDeduper) Bytes() []byte { return d.w.Bytes() }

// Stats returns accumulated session statistics.
func (d *TableDeduper) Stats() DedupeStats { return d.stats }

// Dedupe appends one method's CodeInfo to the session buffer, collapsing
// duplicate bit tables, and returns the byte offset the method's encoding
// starts at. blob must be standalone code generator output with no tables
// already deduped.
func (d *TableDeduper) Dedupe(blob []byte) int {
	startBit := d.w.NumberOfWrittenBits()
	if startBit%8 != 0 {
		panic(errors.AssertionFailedf("session buffer not byte-aligned at bit %d", startBit))
	}

	// Walk the source once to learn each table's bit range.
	var header [NumHeaders]uint32
	var ci CodeInfo
	var tableBitStarts [NumBitTables + 1]int
	r := bitmem.MakeReader(blob)
	r.ReadInterleavedVarints(header[:])
	for i := range headerFields {
		*headerFields[i].get(&ci) = header[i]
	}
	if ci.HasDedupedBitTables() {
		panic(errors.AssertionFailedf("input blob already contains deduped tables"))
	}
	for i := range bitTableFields {
		tableBitStarts[i] = r.NumberOfReadBits()
		if ci.HasBitTable(i) {
			ci.tables[i].Decode(&r, bitTableFields[i].numColumns)
		}
	}
	tableBitStarts[NumBitTables] = r.NumberOfReadBits()
	srcBits := r.NumberOfReadBits()
	srcRegion := bitmem.MakeRegion(blob, 0, srcBits)

	// Provisional write: copy the source verbatim. If nothing dedupes, this
	// copy is already the final encoding and the header needs no patching.
	d.w.WriteBytesAligned(srcRegion.LoadBytesAligned())

	// Probe the dedupe set with every large-enough table at its provisional
	// location. A hit means an identical, already-final copy exists at or
	// before startBit; a miss registers this occurrence as the canonical
	// one (its position gets corrected below if the blob is rewritten).
	var entryIndex [NumBitTables]int32
	for i := range entryIndex {
		entryIndex[i] = -1
	}
	for i := range bitTableFields {
		if !ci.HasBitTable(i) {
			continue
		}
		tableBits := tableBitStarts[i+1] - tableBitStarts[i]
		if tableBits < minDedupeBits {
			continue
		}
		idx, inserted := d.set.insert(d.w.Bytes(), startBit+tableBitStarts[i], tableBits)
		entryIndex[i] = idx
		if !inserted {
			ci.setBitTableDeduped(i)
		}
		d.stats.LargeBitTables++
	}

	if ci.HasDedupedBitTables() {
		// Discard the provisional copy and re-encode at the same offset with
		// the corrected flags. Fresh dedupe-set entries briefly point at the
		// discarded bytes; they are repositioned as their tables land.
		d.w.Truncate(startBit)
		header[NumHeaders-1] = ci.bitTableFlags
		d.w.WriteInterleavedVarints(header[:])
		for i := range bitTableFields {
			if !ci.HasBitTable(i) {
				continue
			}
			currentBit := d.w.NumberOfWrittenBits()
			if ci.IsBitTableDeduped(i) {
				canonical := d.set.entry(entryIndex[i])
				d.w.WriteVarint(uint32(currentBit) - canonical.bitStart)
				d.stats.DedupedBitTables++
			} else {
				tableBits := tableBitStarts[i+1] - tableBitStarts[i]
				d.w.WriteRegion(srcRegion.Subregion(tableBitStarts[i], tableBits))
				if tableBits >= minDedupeBits {
					// Content is unchanged, so the entry's hash and equality
					// key are still valid; only the location moved.
					d.set.entry(entryIndex[i]).bitStart = uint32(currentBit)
				}
			}
		}
		d.w.ByteAlign()
	}

	if invariants.Enabled {
		d.verify(blob, startBit/8)
	}

	d.stats.CodeInfos++
	d.stats.InputBytes += uint64(len(blob))
	d.stats.OutputBytes += uint64(d.w.NumberOfWrittenBits()/8 - startBit/8)
	return startBit / 8
}

// verify re-decodes the source and the freshly written region and checks
// they are logically identical: every header field except the bit-table
// flags matches, and every table compares equal with back-references
// resolved.
func (d *TableDeduper) verify(blob []byte, byteOffset int) {
	oldCI := Decode(blob)
	newCI := DecodeAt(d.w.Bytes(), byteOffset)
	for i := range headerFields {
		if headerFields[i].name == "bit-table-flags" {
			continue // expected to differ
		}
		if o, n := *headerFields[i].get(&oldCI), *headerFields[i].get(&newCI); o != n {
			panic(errors.AssertionFailedf("dedupe changed header %s: %d != %d", headerFields[i].name, o, n))
		}
	}
	for i := range bitTableFields {
		if oldCI.HasBitTable(i) != newCI.HasBitTable(i) {
			panic(errors.AssertionFailedf("dedupe changed presence of %s", bitTableFields[i].name))
		}
		if !oldCI.tables[i].Equals(&newCI.tables[i]) {
			panic(errors.AssertionFailedf("dedupe changed content of %s", bitTableFields[i].name))
		}
	}
}

// dedupeEntry describes one already-written table: a bit range of the
// session buffer. Entries are created on first occurrence, repositioned in
// place if their table is rewritten within the same Dedupe call, and never
// removed.
type dedupeEntry struct {
	bitStart uint32
	bitSize  uint32
	// next chains entries whose content hashes collided, -1 terminated.
	next int32
}

// dedupeSet indexes previously written tables by content. The swiss map goes
// from 64-bit content hash to the head of a chain in the entries slab;
// because lookups hand out slab indices rather than pointers, map growth can
// never invalidate an entry reference held across a mutation batch.
type dedupeSet struct {
	index   *swiss.Map[uint64, int32]
	entries []dedupeEntry
}

func makeDedupeSet(capacity int) dedupeSet {
	return dedupeSet{
		index:   swiss.New[uint64, int32](capacity),
		entries: make([]dedupeEntry, 0, capacity),
	}
}

func (s *dedupeSet) len() int { return len(s.entries) }

func (s *dedupeSet) entry(i int32) *dedupeEntry { return &s.entries[i] }

// insert looks up the table occupying [bitStart, bitStart+bitSize) of buf.
// It returns the index of an existing entry with identical content and
// inserted=false, or registers a new entry for this range and returns its
// index with inserted=true.
func (s *dedupeSet) insert(buf []byte, bitStart, bitSize int) (idx int32, inserted bool) {
	region := bitmem.MakeRegion(buf, bitStart, bitSize)
	h := region.Hash()
	head := int32(-1)
	if existing, ok := s.index.Get(h); ok {
		head = existing
		for i := existing; i >= 0; i = s.entries[i].next {
			e := s.entries[i]
			if int(e.bitSize) == bitSize &&
				bitmem.MakeRegion(buf, int(e.bitStart), int(e.bitSize)).Equals(region) {
				return i, false
			}
		}
	}
	idx = int32(len(s.entries))
	s.entries = append(s.entries, dedupeEntry{
		bitStart: uint32(bitStart),
		bitSize:  uint32(bitSize),
		next:     head,
	})
	s.index.Put(h, idx)
	return idx, true
}

// DedupeStats summarizes one dedupe session.
type DedupeStats struct {
	// CodeInfos is the number of methods processed.
	CodeInfos uint64
	// LargeBitTables is the number of tables that met the dedupe size
	// threshold.
	LargeBitTables uint64
	// DedupedBitTables is how many of those were collapsed into
	// back-references.
	DedupedBitTables uint64
	// InputBytes and OutputBytes measure the blobs consumed and the buffer
	// space their encodings occupy.
	InputBytes  uint64
	OutputBytes uint64
}

// String implements fmt.Stringer.
func (s DedupeStats) String() string {
	return redact.StringWithoutMarkers(s)
}

// SafeFormat implements redact.SafeFormatter.
func (s DedupeStats) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("code infos: %d, large tables: %d (%d deduped), bytes: %d in, %d out",
		redact.SafeUint(s.CodeInfos), redact.SafeUint(s.LargeBitTables),
		redact.SafeUint(s.DedupedBitTables), redact.SafeUint(s.InputBytes),
		redact.SafeUint(s.OutputBytes))
}
