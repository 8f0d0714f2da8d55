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

// Package sentinel holds the reserved values shared by every layer of the
// segment core (spec §6). Kept dependency-free so every other package may
// import it without risking an import cycle.
package sentinel

const (
	// DocIDNone marks "no document". Real doc ids are allocated starting at 1.
	DocIDNone uint32 = 0
	// StringIDNone marks "string not interned". Real string ids are pool
	// offsets, which are always > 0 because offset 0 is reserved by the pool.
	StringIDNone uint32 = 0
	// OffsetNone marks "end of list" / "no posting here".
	OffsetNone uint32 = 0xFFFFFFFF
	// LabelFieldID is the reserved field id that marks a term key as a label
	// rather than a (field, word) text term.
	LabelFieldID uint32 = 0
	// DeadListWordID, paired with LabelFieldID, forms the (0,0) term key
	// that holds the free list of reclaimed label postings.
	DeadListWordID uint32 = 0
)

// DeadListField and DeadListWord name the (0,0) sentinel term key as a whole.
var (
	DeadListField = LabelFieldID
	DeadListWord  = DeadListWordID
)

// IsDeadList reports whether (fieldID, wordID) is the reserved dead-list key.
func IsDeadList(fieldID, wordID uint32) bool {
	return fieldID == DeadListField && wordID == DeadListWord
}
