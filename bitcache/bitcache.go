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

// Package bitcache maintains an in-memory roaring-bitmap mirror of every
// label's doc-id set. It is an optimization layer only: the termhash/labels
// postings lists remain the source of truth, and bitcache is rebuilt from
// them on Open rather than persisted. Label conjunctions that involve only
// labels (no text terms, no phrases) can therefore be answered by intersecting
// bitmaps directly instead of walking linked postings lists.
package bitcache

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// LabelCache maps interned label word ids to the set of doc ids carrying
// that label.
type LabelCache struct {
	byWord map[uint32]*roaring.Bitmap
}

// New returns an empty cache.
func New() *LabelCache {
	return &LabelCache{byWord: make(map[uint32]*roaring.Bitmap)}
}

func (c *LabelCache) bitmapFor(wordID uint32) *roaring.Bitmap {
	bm, ok := c.byWord[wordID]
	if !ok {
		bm = roaring.New()
		c.byWord[wordID] = bm
	}
	return bm
}

// Add records that docID carries the label wordID. Idempotent.
func (c *LabelCache) Add(wordID, docID uint32) {
	c.bitmapFor(wordID).Add(docID)
}

// Remove clears the label wordID from docID, if present.
func (c *LabelCache) Remove(wordID, docID uint32) {
	if bm, ok := c.byWord[wordID]; ok {
		bm.Remove(docID)
	}
}

// Bitmap returns the live (not copied) bitmap for wordID, or (nil, false) if
// the label has never been added. Callers must not mutate the result;
// use Clone() for a bitmap they intend to mutate (e.g. via And/Or chains).
func (c *LabelCache) Bitmap(wordID uint32) (*roaring.Bitmap, bool) {
	bm, ok := c.byWord[wordID]
	return bm, ok
}

// Intersect returns a new bitmap that is the AND of every named label's doc
// set. An unknown label makes the whole intersection empty, matching
// conjunction semantics over an empty postings stream.
func (c *LabelCache) Intersect(wordIDs ...uint32) *roaring.Bitmap {
	if len(wordIDs) == 0 {
		return roaring.New()
	}
	first, ok := c.Bitmap(wordIDs[0])
	if !ok {
		return roaring.New()
	}
	out := first.Clone()
	for _, w := range wordIDs[1:] {
		bm, ok := c.Bitmap(w)
		if !ok {
			return roaring.New()
		}
		out.And(bm)
	}
	return out
}

// Count reports how many doc ids carry wordID.
func (c *LabelCache) Count(wordID uint32) uint64 {
	bm, ok := c.byWord[wordID]
	if !ok {
		return 0
	}
	return bm.GetCardinality()
}
