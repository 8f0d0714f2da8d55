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

// conjCursor intersects n child streams. Because every stream is strictly
// doc-id descending, the merge is the mirror of the classic ascending AND:
// the laggard is whichever child currently holds the *smallest* doc id, and
// every other child seeks down to it until all agree or one is exhausted.
type conjCursor struct {
	children []Cursor
	docID    uint32
	done     bool
}

func newConjCursor(children []Cursor) (*conjCursor, error) {
	c := &conjCursor{children: children}
	if len(children) == 0 {
		c.done = true
		return c, nil
	}
	if err := c.resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *conjCursor) resolve() error {
	for {
		target := uint32(0)
		first := true
		for _, ch := range c.children {
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
		for _, ch := range c.children {
			if ch.DocID() != target {
				allEqual = false
				break
			}
		}
		if allEqual {
			c.docID = target
			return nil
		}
		for _, ch := range c.children {
			if ch.DocID() > target {
				if err := ch.Seek(target); err != nil {
					return err
				}
			}
		}
	}
}

func (c *conjCursor) DocID() uint32 {
	if c.done {
		return sentinel.DocIDNone
	}
	return c.docID
}

func (c *conjCursor) Advance() error {
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

func (c *conjCursor) Seek(target uint32) error {
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
