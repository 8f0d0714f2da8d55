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

// Package termhash maps (field_id, word_id) term keys to postings-list
// headers (spec §4.2). The all-zero key (the "dead list", spec §4.4) must be
// representable, so slots carry an explicit occupied bit rather than relying
// on key-vs-zero comparisons to mean "empty".
package termhash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/sbsummer/whistlepig/internal/errs"
)

// Key identifies a postings list: (field_id, word_id). FieldID == 0 marks a
// label term; Key{0,0} is the reserved dead-list head.
type Key struct {
	FieldID uint32
	WordID  uint32
}

func (k Key) hash() uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[0:4], k.FieldID)
	binary.LittleEndian.PutUint32(b[4:8], k.WordID)
	return xxhash.Sum64(b[:])
}

// PLH is a postings-list header: the entry-count and head offset of one
// term's postings list. HeadOffset == sentinel.OffsetNone means empty.
type PLH struct {
	Count      uint32
	HeadOffset uint32
}

type slot struct {
	occupied bool
	key      Key
	plh      PLH
}

// Table is the open-addressed (Key -> PLH) directory.
type Table struct {
	slots []slot
	count int
}

func nextPow2(n uint32) uint32 {
	if n < 8 {
		n = 8
	}
	p := uint32(1)
	for p < n {
		p <<= 1
	}
	return p
}

// New creates a Table with the given initial slot count, rounded to a power of two.
func New(initialSlots uint32) *Table {
	return &Table{slots: make([]slot, nextPow2(initialSlots))}
}

// Len reports the number of live term keys, including the dead list once created.
func (t *Table) Len() int { return t.count }

// EnsureFit grows (and rehashes) the table so `additional` more keys fit
// while keeping the load factor at or below 0.7.
func (t *Table) EnsureFit(additional int) {
	want := t.count + additional
	for want*10 >= len(t.slots)*7 {
		t.grow()
	}
}

func (t *Table) grow() {
	old := t.slots
	t.slots = make([]slot, nextPow2(uint32(len(old))*2))
	for _, s := range old {
		if s.occupied {
			t.insertSlot(s)
		}
	}
}

func (t *Table) insertSlot(s slot) {
	mask := uint64(len(t.slots) - 1)
	idx := s.key.hash() & mask
	for t.slots[idx].occupied {
		idx = (idx + 1) & mask
	}
	t.slots[idx] = s
}

func (t *Table) find(key Key) (int, bool) {
	mask := uint64(len(t.slots) - 1)
	idx := key.hash() & mask
	for i := uint64(0); i <= mask; i++ {
		pos := (idx + i) & mask
		s := &t.slots[pos]
		if !s.occupied {
			return int(pos), false
		}
		if s.key == key {
			return int(pos), true
		}
	}
	return -1, false
}

// Get returns a pointer to the stored PLH for key, or (nil, false) if absent.
// The returned pointer may be mutated in place by the caller (spec §4.2) but
// becomes invalid after any subsequent EnsureFit call that triggers a grow.
func (t *Table) Get(key Key) (*PLH, bool) {
	pos, found := t.find(key)
	if !found {
		return nil, false
	}
	return &t.slots[pos].plh, true
}

// GetOrCreate returns the existing PLH for key, or inserts a blank one
// (Count 0, HeadOffset sentinel.OffsetNone) and returns that. Callers must
// have called EnsureFit(1) beforehand; returns an errs.OutOfSpace error if the table
// has no empty slot (EnsureFit not called or undersized).
func (t *Table) GetOrCreate(key Key, offsetNone uint32) (*PLH, error) {
	pos, found := t.find(key)
	if pos < 0 {
		return nil, errs.New(errs.OutOfSpace, "term hash is full (EnsureFit not called or undersized)")
	}
	if !found {
		t.slots[pos] = slot{occupied: true, key: key, plh: PLH{Count: 0, HeadOffset: offsetNone}}
		t.count++
	}
	return &t.slots[pos].plh, nil
}

// TermDump is one (key, PLH) pair, used by introspection tooling.
type TermDump struct {
	Key Key
	PLH PLH
}

// All returns every occupied (key, PLH) pair in arbitrary order.
func (t *Table) All() []TermDump {
	out := make([]TermDump, 0, t.count)
	for _, s := range t.slots {
		if s.occupied {
			out = append(out, TermDump{Key: s.key, PLH: s.plh})
		}
	}
	return out
}

// Restore repopulates the table from a previous Table.All() snapshot (used by segment.Open).
func Restore(initialSlots uint32, entries []TermDump) *Table {
	t := New(initialSlots)
	t.EnsureFit(len(entries))
	for _, e := range entries {
		t.insertSlot(slot{occupied: true, key: e.Key, plh: e.PLH})
		t.count++
	}
	return t
}
