// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package postings implements the append-only text postings region (spec
// §4.3): variable-sized (doc_id, positions, next_offset) records, written
// once at the current head and never updated or freed.
//
// Wire layout per record: doc_id (u32 LE) | num_positions (u16 LE) |
// num_positions * delta-encoded position (u16 LE each, first absolute) |
// next_offset (u32 LE). Positions are required by spec §4.3 to be ascending
// within a posting; delta encoding keeps long documents' position lists small.
package postings

import (
	"encoding/binary"

	"github.com/sbsummer/whistlepig/internal/errs"
	"github.com/sbsummer/whistlepig/internal/region"
	"github.com/sbsummer/whistlepig/sentinel"
)

const (
	docIDSize       = 4
	numPositionsSize = 2
	positionSize    = 2
	nextOffsetSize  = 4
)

// Posting is a decoded text posting.
type Posting struct {
	DocID      uint32
	Positions  []uint16 // absolute, ascending
	NextOffset uint32
}

// SizeOf returns the byte size of a posting with numPositions entries, for
// EnsureFit budgeting (mirrors wp_segment_sizeof_posarray in the original).
func SizeOf(numPositions int) uint32 {
	return docIDSize + numPositionsSize + uint32(numPositions)*positionSize + nextOffsetSize
}

// Append writes a new posting at the region's head and returns its offset.
// positions must already be ascending (the tokenizer's responsibility per
// spec §4.3); Append does not re-sort them.
func Append(r *region.Region, docID uint32, positions []uint16, nextOffset uint32) (uint32, error) {
	if len(positions) > 0xFFFF {
		return 0, errs.New(errs.InvalidArgument, "posting has %d positions, more than fit in a u16 count", len(positions))
	}
	n := SizeOf(len(positions))
	off, err := r.Alloc(n)
	if err != nil {
		return 0, errs.Wrap(errs.OutOfSpace, err, "text postings append")
	}
	buf := make([]byte, n)
	binary.LittleEndian.PutUint32(buf[0:4], docID)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(len(positions)))
	prev := uint16(0)
	o := 6
	for _, p := range positions {
		delta := p - prev
		binary.LittleEndian.PutUint16(buf[o:o+2], delta)
		o += 2
		prev = p
	}
	binary.LittleEndian.PutUint32(buf[o:o+4], nextOffset)
	if err := r.WriteAt(off, buf); err != nil {
		return 0, err
	}
	return off, nil
}

// Read decodes the posting at offset.
func Read(r *region.Region, offset uint32) (Posting, error) {
	var hdr [6]byte
	if err := r.ReadAt(offset, hdr[:]); err != nil {
		return Posting{}, errs.Wrap(errs.Corruption, err, "text postings read header at %d", offset)
	}
	docID := binary.LittleEndian.Uint32(hdr[0:4])
	numPositions := int(binary.LittleEndian.Uint16(hdr[4:6]))

	body := make([]byte, numPositions*positionSize+nextOffsetSize)
	if err := r.ReadAt(offset+6, body); err != nil {
		return Posting{}, errs.Wrap(errs.Corruption, err, "text postings read body at %d", offset)
	}
	positions := make([]uint16, numPositions)
	abs := uint16(0)
	for i := 0; i < numPositions; i++ {
		delta := binary.LittleEndian.Uint16(body[i*2 : i*2+2])
		abs += delta
		positions[i] = abs
	}
	nextOffset := binary.LittleEndian.Uint32(body[numPositions*positionSize:])
	return Posting{DocID: docID, Positions: positions, NextOffset: nextOffset}, nil
}

// HeadDocID returns the doc id of the posting currently at the list head,
// or sentinel.DocIDNone if the list is empty. Used by AddPosting to check
// the monotonicity invariant (spec §4.3 step 3) before appending.
func HeadDocID(r *region.Region, headOffset uint32) (uint32, error) {
	if headOffset == sentinel.OffsetNone {
		return sentinel.DocIDNone, nil
	}
	p, err := Read(r, headOffset)
	if err != nil {
		return 0, err
	}
	return p.DocID, nil
}
