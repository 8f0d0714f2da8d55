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

package query

import (
	"sort"

	"github.com/sbsummer/whistlepig/sentinel"
)

// phraseCursor aligns children doc-id-wise like a conjunction, then requires
// that child i's positions contain p0+i for some starting position p0 in
// child 0's positions (spec §4.5: consecutive ascending positions).
type phraseCursor struct {
	children []PositionCursor
	docID    uint32
	done     bool
}

func newPhraseCursor(children []PositionCursor) (*phraseCursor, error) {
	c := &phraseCursor{children: children}
	if len(children) == 0 {
		c.done = true
		return c, nil
	}
	if err := c.resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *phraseCursor) asCursors() []Cursor {
	out := make([]Cursor, len(c.children))
	for i, ch := range c.children {
		out[i] = ch
	}
	return out
}

// resolve aligns the children on a common doc id (conjunction semantics),
// then checks the position run; if it doesn't match, every child is
// advanced and alignment is retried.
func (c *phraseCursor) resolve() error {
	for {
		cursors := c.asCursors()
		target := uint32(0)
		first := true
		for _, ch := range cursors {
			d := ch.DocID()
			if d == sentinel.DocIDNone {
				c.done = true
				c.docID = sentinel.DocIDNone
				return nil
			}
			if first || d < target {
				target = d
				first = false
			}
		}
		allEqual := true
		for _, ch := range cursors {
			if ch.DocID() != target {
				allEqual = false
				break
			}
		}
		if !allEqual {
			for _, ch := range cursors {
				if ch.DocID() > target {
					if err := ch.Seek(target); err != nil {
						return err
					}
				}
			}
			continue
		}

		if matchesPhrase(c.children) {
			c.docID = target
			return nil
		}
		for _, ch := range cursors {
			if err := ch.Advance(); err != nil {
				return err
			}
		}
	}
}

func matchesPhrase(children []PositionCursor) bool {
	if len(children) == 0 {
		return false
	}
	first := children[0].Positions()
	for _, p0 := range first {
		ok := true
		for i := 1; i < len(children); i++ {
			if !hasPosition(children[i].Positions(), p0+uint16(i)) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func hasPosition(positions []uint16, want uint16) bool {
	i := sort.Search(len(positions), func(i int) bool { return positions[i] >= want })
	return i < len(positions) && positions[i] == want
}

func (c *phraseCursor) DocID() uint32 {
	if c.done {
		return sentinel.DocIDNone
	}
	return c.docID
}

func (c *phraseCursor) Advance() error {
	if c.done {
		return nil
	}
	for _, ch := range c.children {
		if err := ch.Advance(); err != nil {
			return err
		}
	}
	return c.resolve()
}

func (c *phraseCursor) Seek(target uint32) error {
	if c.done {
		return nil
	}
	for _, ch := range c.children {
		if ch.DocID() > target {
			if err := ch.Seek(target); err != nil {
				return err
			}
		}
	}
	return c.resolve()
}
