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

import "github.com/sbsummer/whistlepig/sentinel"

// negCursor yields the complement of child over [1, maxDocID], descending.
// It walks a candidate counter down from maxDocID, skipping any value the
// child stream currently sits on (and advancing the child past it), and
// emitting every other value. A child that has no doc id at all, or whose
// head is past the candidate (smaller), means the candidate is absent from
// child and therefore belongs to the negation.
type negCursor struct {
	child Cursor
	next  uint32 // next candidate to examine; invariant: child.DocID() <= next
	docID uint32
	done  bool
}

func newNegCursor(child Cursor, maxDocID uint32) (*negCursor, error) {
	c := &negCursor{child: child, next: maxDocID}
	if err := c.resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *negCursor) resolve() error {
	for c.next >= 1 {
		if c.child.DocID() == c.next {
			if err := c.child.Advance(); err != nil {
				return err
			}
			c.next--
			continue
		}
		c.docID = c.next
		c.next--
		return nil
	}
	c.done = true
	c.docID = sentinel.DocIDNone
	return nil
}

func (c *negCursor) DocID() uint32 {
	if c.done {
		return sentinel.DocIDNone
	}
	return c.docID
}

func (c *negCursor) Advance() error {
	if c.done {
		return nil
	}
	return c.resolve()
}

func (c *negCursor) Seek(target uint32) error {
	for !c.done && c.docID > target {
		if err := c.Advance(); err != nil {
			return err
		}
	}
	return nil
}
