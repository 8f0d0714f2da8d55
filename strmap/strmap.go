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

// Package strmap interns byte strings into stable 32-bit ids via a strpool.Pool
// (spec §4.1). It is an open-addressed hash table kept entirely in memory;
// persistence is handled by the segment facade, which snapshots occupied
// slots into its sidecar file (on Create and Unload) and replays them on Open.
package strmap

import (
	"github.com/cespare/xxhash/v2"

	"github.com/sbsummer/whistlepig/internal/errs"
	"github.com/sbsummer/whistlepig/strpool"
)

type slot struct {
	occupied bool
	hash     uint64
	stringID uint32
}

// Map is an open-addressed string -> id intern table.
type Map struct {
	slots []slot
	count int
}

// New creates a Map with the given initial slot count, rounded up to a power of two.
func New(initialSlots uint32) *Map {
	return &Map{slots: make([]slot, nextPow2(initialSlots))}
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

// Len reports the number of interned strings.
func (m *Map) Len() int { return m.count }

// EnsureFit grows (and rehashes) the table so that additional more entries
// fit while keeping the load factor at or below 0.7.
func (m *Map) EnsureFit(additional int) {
	want := m.count + additional
	for want*10 >= len(m.slots)*7 {
		m.grow()
	}
}

func (m *Map) grow() {
	old := m.slots
	m.slots = make([]slot, nextPow2(uint32(len(old))*2))
	for _, s := range old {
		if !s.occupied {
			continue
		}
		m.insertSlot(s)
	}
}

func (m *Map) insertSlot(s slot) {
	mask := uint64(len(m.slots) - 1)
	idx := s.hash & mask
	for m.slots[idx].occupied {
		idx = (idx + 1) & mask
	}
	m.slots[idx] = s
}

// Lookup returns the id for s, or sentinel.StringIDNone if not interned.
// Never allocates or mutates the pool.
func (m *Map) Lookup(pool *strpool.Pool, s []byte) (uint32, error) {
	h := xxhash.Sum64(s)
	mask := uint64(len(m.slots) - 1)
	idx := h & mask
	for i := uint64(0); i <= mask; i++ {
		sl := m.slots[(idx+i)&mask]
		if !sl.occupied {
			return 0, nil
		}
		if sl.hash == h {
			eq, err := pool.Equal(sl.stringID, s)
			if err != nil {
				return 0, err
			}
			if eq {
				return sl.stringID, nil
			}
		}
	}
	return 0, nil
}

// Intern returns the id for s, interning it via pool if not already present.
// Callers must have called EnsureFit(1) and pool.EnsureFit(len(s), ...)
// beforehand; Intern itself never grows anything.
func (m *Map) Intern(pool *strpool.Pool, s []byte) (uint32, error) {
	h := xxhash.Sum64(s)
	mask := uint64(len(m.slots) - 1)
	idx := h & mask
	for i := uint64(0); i <= mask; i++ {
		pos := (idx + i) & mask
		sl := m.slots[pos]
		if !sl.occupied {
			id, err := pool.Append(s)
			if err != nil {
				return 0, err
			}
			m.slots[pos] = slot{occupied: true, hash: h, stringID: id}
			m.count++
			return id, nil
		}
		if sl.hash == h {
			eq, err := pool.Equal(sl.stringID, s)
			if err != nil {
				return 0, err
			}
			if eq {
				return sl.stringID, nil
			}
		}
	}
	return 0, errs.New(errs.OutOfSpace, "string map is full (EnsureFit not called or undersized)")
}

// Entries snapshots every interned (hash, stringID) pair, for persistence.
func (m *Map) Entries() []struct {
	Hash     uint64
	StringID uint32
} {
	out := make([]struct {
		Hash     uint64
		StringID uint32
	}, 0, m.count)
	for _, s := range m.slots {
		if s.occupied {
			out = append(out, struct {
				Hash     uint64
				StringID uint32
			}{s.hash, s.stringID})
		}
	}
	return out
}

// Restore repopulates the map from previously-snapshotted entries, e.g. after Open.
func Restore(initialSlots uint32, entries []struct {
	Hash     uint64
	StringID uint32
}) *Map {
	m := New(initialSlots)
	m.EnsureFit(len(entries))
	for _, e := range entries {
		m.insertSlot(slot{occupied: true, hash: e.Hash, stringID: e.StringID})
		m.count++
	}
	return m
}
