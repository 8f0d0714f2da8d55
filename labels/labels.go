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

// Package labels implements the mutable label postings region (spec §4.4),
// ported from original_source/label.c's wp_label_postings_region_add_label
// and _remove_label. Unlike text postings, label postings are fixed size and
// may be reclaimed onto a free list (the "dead list", the PLH stored under
// the sentinel term key (0,0)).
//
// Deliberately NOT replicated: the original remove-label walk's "nasty hack"
// that nulls the offset when lp.doc_id < doc_id "to induce failure" (see
// spec §9). This implementation simply terminates the walk as "not found".
package labels

import (
	"encoding/binary"

	"github.com/sbsummer/whistlepig/internal/errs"
	"github.com/sbsummer/whistlepig/internal/region"
	"github.com/sbsummer/whistlepig/sentinel"
	"github.com/sbsummer/whistlepig/termhash"
)

// RecordSize is the fixed width of one label posting: doc_id (u32) + next_offset (u32).
const RecordSize = 8

// Posting is a decoded label posting.
type Posting struct {
	DocID      uint32
	NextOffset uint32
}

func read(r *region.Region, offset uint32) (Posting, error) {
	var buf [RecordSize]byte
	if err := r.ReadAt(offset, buf[:]); err != nil {
		return Posting{}, errs.Wrap(errs.Corruption, err, "label postings read at %d", offset)
	}
	return Posting{
		DocID:      binary.LittleEndian.Uint32(buf[0:4]),
		NextOffset: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

func write(r *region.Region, offset uint32, p Posting) error {
	var buf [RecordSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], p.DocID)
	binary.LittleEndian.PutUint32(buf[4:8], p.NextOffset)
	return r.WriteAt(offset, buf[:])
}

// EnsureFit grows the region to fit one more label posting.
func EnsureFit(r *region.Region, growthFactor float64) error {
	return r.EnsureFit(RecordSize, growthFactor)
}

// Add inserts doc_id into the postings list headed by plh, reusing a slot
// from deadPLH's free list if one is available, else appending to the
// region's head. A no-op if doc_id is already present. Mirrors label.c's
// wp_label_postings_region_add_label exactly.
func Add(r *region.Region, docID uint32, plh, deadPLH *termhash.PLH) error {
	if docID == sentinel.DocIDNone {
		return errs.New(errs.InvalidArgument, "can't add a label to doc 0")
	}

	nextOffset := plh.HeadOffset
	lastDocID := sentinel.DocIDNone
	haveLast := false
	prevOffset := sentinel.OffsetNone

	for nextOffset != sentinel.OffsetNone {
		lp, err := read(r, nextOffset)
		if err != nil {
			return err
		}

		if haveLast && lp.DocID >= lastDocID {
			return errs.New(errs.Corruption, "label postings list corrupt: posting at %d has doc %d but previous doc was %d", nextOffset, lp.DocID, lastDocID)
		}
		lastDocID, haveLast = lp.DocID, true

		if lp.DocID == docID {
			return nil // already present
		}
		if lp.DocID < docID {
			break // insertion point found; nextOffset is the tail to link to
		}
		prevOffset = nextOffset
		nextOffset = lp.NextOffset
	}

	entryOffset, err := reclaimOrAlloc(r, deadPLH)
	if err != nil {
		return err
	}

	if err := write(r, entryOffset, Posting{DocID: docID, NextOffset: nextOffset}); err != nil {
		return err
	}

	plh.Count++
	if prevOffset == sentinel.OffsetNone {
		plh.HeadOffset = entryOffset
	} else {
		prev, err := read(r, prevOffset)
		if err != nil {
			return err
		}
		prev.NextOffset = entryOffset
		if err := write(r, prevOffset, prev); err != nil {
			return err
		}
	}
	return nil
}

// reclaimOrAlloc takes the head of the dead list if non-empty, else bumps
// the region's head for a fresh slot. Caller must have EnsureFit'd already
// in the fresh-slot case; a reclaimed slot never needs new region capacity.
func reclaimOrAlloc(r *region.Region, deadPLH *termhash.PLH) (uint32, error) {
	if deadPLH.HeadOffset != sentinel.OffsetNone {
		deadOffset := deadPLH.HeadOffset
		dead, err := read(r, deadOffset)
		if err != nil {
			return 0, err
		}
		deadPLH.HeadOffset = dead.NextOffset
		deadPLH.Count--
		return deadOffset, nil
	}
	return r.Alloc(RecordSize)
}

// Remove deletes doc_id from the postings list headed by plh and returns it
// to deadPLH's free list. Absence is a silent no-op (spec §4.4/§7 NotFound).
func Remove(r *region.Region, docID uint32, plh, deadPLH *termhash.PLH) error {
	lastDocID := sentinel.DocIDNone
	haveLast := false
	prevOffset := sentinel.OffsetNone
	offset := plh.HeadOffset

	var found *Posting
	for offset != sentinel.OffsetNone {
		lp, err := read(r, offset)
		if err != nil {
			return err
		}

		if haveLast && lp.DocID >= lastDocID {
			return errs.New(errs.Corruption, "label postings list corrupt: posting at %d has doc %d but previous doc was %d", offset, lp.DocID, lastDocID)
		}
		lastDocID, haveLast = lp.DocID, true

		if lp.DocID < docID {
			// not present: the list has passed where doc_id would be
			return nil
		}
		if lp.DocID == docID {
			found = &lp
			break
		}
		prevOffset = offset
		offset = lp.NextOffset
	}

	if found == nil {
		return nil
	}

	if prevOffset == sentinel.OffsetNone {
		plh.HeadOffset = found.NextOffset
	} else {
		prev, err := read(r, prevOffset)
		if err != nil {
			return err
		}
		prev.NextOffset = found.NextOffset
		if err := write(r, prevOffset, prev); err != nil {
			return err
		}
	}
	plh.Count--

	deadOffset := deadPLH.HeadOffset
	if err := write(r, offset, Posting{DocID: found.DocID, NextOffset: deadOffset}); err != nil {
		return err
	}
	deadPLH.HeadOffset = offset
	deadPLH.Count++
	return nil
}

// Read exposes a single label posting for cursors and introspection.
func Read(r *region.Region, offset uint32) (Posting, error) { return read(r, offset) }
