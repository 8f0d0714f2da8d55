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

package segment

import (
	"github.com/google/btree"

	"github.com/sbsummer/whistlepig/sentinel"
	"github.com/sbsummer/whistlepig/termhash"
)

func lessTermDump(a, b termhash.TermDump) bool {
	if a.Key.FieldID != b.Key.FieldID {
		return a.Key.FieldID < b.Key.FieldID
	}
	return a.Key.WordID < b.Key.WordID
}

// DumpTerms returns every non-dead term's key and PLH, sorted by
// (FieldID, WordID), for diagnostics and introspection tooling.
func (s *Segment) DumpTerms() []termhash.TermDump {
	bt := btree.NewG(32, lessTermDump)
	for _, td := range s.terms.All() {
		if sentinel.IsDeadList(td.Key.FieldID, td.Key.WordID) {
			continue
		}
		bt.ReplaceOrInsert(td)
	}
	out := make([]termhash.TermDump, 0, bt.Len())
	bt.Ascend(func(td termhash.TermDump) bool {
		out = append(out, td)
		return true
	})
	return out
}

// Metadata returns the versioned header describing this segment's current
// size and shape.
func (s *Segment) Metadata() Metadata {
	return Metadata{
		SchemaVersion:         schemaVersion,
		MaxDocID:              s.maxDocID,
		DocCount:              s.maxDocID,
		TermCount:             s.terms.Len() - 1, // exclude the dead list
		StringPoolCapacity:    s.poolR.Capacity(),
		TextPostingsCapacity:  s.textR.Capacity(),
		LabelPostingsCapacity: s.lblR.Capacity(),
		GrowthFactor:          s.cfg.GrowthFactor,
	}
}

// LabelCardinality reports how many documents carry label, using the
// in-memory bitcache rather than walking its postings list.
func (s *Segment) LabelCardinality(label string) (uint64, error) {
	if err := s.checkCorrupt(); err != nil {
		return 0, err
	}
	wid, err := s.strs.Lookup(s.pool, []byte(label))
	if err != nil {
		return 0, s.fail(err)
	}
	if wid == 0 {
		return 0, nil
	}
	return s.cache.Count(wid), nil
}

// LabelsMatchingAll returns, in descending order, the doc ids carrying every
// one of labels. This is a bitcache-backed shortcut for an all-label
// ConjunctionQuery: equivalent in result to compiling and running one
// through RunQuery, but answered directly from the roaring-bitmap mirror
// instead of walking linked label postings lists.
func (s *Segment) LabelsMatchingAll(labels ...string) ([]uint32, error) {
	if err := s.checkCorrupt(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, nil
	}
	wids := make([]uint32, len(labels))
	for i, label := range labels {
		wid, err := s.strs.Lookup(s.pool, []byte(label))
		if err != nil {
			return nil, s.fail(err)
		}
		if wid == 0 {
			return nil, nil // a never-interned label matches nothing
		}
		wids[i] = wid
	}
	bm := s.cache.Intersect(wids...)
	it := bm.ReverseIterator()
	out := make([]uint32, 0, bm.GetCardinality())
	for it.HasNext() {
		out = append(out, it.Next())
	}
	return out, nil
}
