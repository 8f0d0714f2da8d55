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
	"github.com/sbsummer/whistlepig/internal/region"
	"github.com/sbsummer/whistlepig/labels"
	"github.com/sbsummer/whistlepig/postings"
	"github.com/sbsummer/whistlepig/sentinel"
)

// Cursor walks a stream of doc ids in strictly descending order (spec §4.6).
// DocID returns sentinel.DocIDNone once the stream is exhausted.
type Cursor interface {
	DocID() uint32
	// Advance moves to the next (strictly lower) doc id in the stream.
	Advance() error
	// Seek moves forward until DocID() <= target or the stream is exhausted.
	// target must be <= the cursor's current DocID (streams only move down).
	Seek(target uint32) error
}

// PositionCursor is implemented by cursors over text postings, which carry
// per-document token positions needed by PhraseQuery.
type PositionCursor interface {
	Cursor
	Positions() []uint16
}

// emptyCursor never yields a doc id; used for unresolved terms (spec §4.6:
// an unknown term is an empty stream, not an error).
type emptyCursor struct{}

func (emptyCursor) DocID() uint32       { return sentinel.DocIDNone }
func (emptyCursor) Advance() error      { return nil }
func (emptyCursor) Seek(uint32) error   { return nil }
func (emptyCursor) Positions() []uint16 { return nil }

// textCursor walks an append-only text postings list head-to-tail, which is
// already strictly doc-id descending (spec §4.3).
type textCursor struct {
	r      *region.Region
	offset uint32
	cur    postings.Posting
	done   bool
}

func newTextCursor(r *region.Region, headOffset uint32) (*textCursor, error) {
	c := &textCursor{r: r, offset: headOffset}
	if headOffset == sentinel.OffsetNone {
		c.done = true
		return c, nil
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *textCursor) load() error {
	p, err := postings.Read(c.r, c.offset)
	if err != nil {
		return err
	}
	c.cur = p
	return nil
}

func (c *textCursor) DocID() uint32 {
	if c.done {
		return sentinel.DocIDNone
	}
	return c.cur.DocID
}

func (c *textCursor) Positions() []uint16 {
	if c.done {
		return nil
	}
	return c.cur.Positions
}

func (c *textCursor) Advance() error {
	if c.done {
		return nil
	}
	if c.cur.NextOffset == sentinel.OffsetNone {
		c.done = true
		return nil
	}
	c.offset = c.cur.NextOffset
	return c.load()
}

func (c *textCursor) Seek(target uint32) error {
	for !c.done && c.DocID() > target {
		if err := c.Advance(); err != nil {
			return err
		}
	}
	return nil
}

// labelCursor walks a mutable label postings list head-to-tail, which is
// maintained strictly doc-id descending by labels.Add/Remove (spec §4.4).
type labelCursor struct {
	r      *region.Region
	offset uint32
	cur    labels.Posting
	done   bool
}

func newLabelCursor(r *region.Region, headOffset uint32) (*labelCursor, error) {
	c := &labelCursor{r: r, offset: headOffset}
	if headOffset == sentinel.OffsetNone {
		c.done = true
		return c, nil
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *labelCursor) load() error {
	p, err := labels.Read(c.r, c.offset)
	if err != nil {
		return err
	}
	c.cur = p
	return nil
}

func (c *labelCursor) DocID() uint32 {
	if c.done {
		return sentinel.DocIDNone
	}
	return c.cur.DocID
}

func (c *labelCursor) Advance() error {
	if c.done {
		return nil
	}
	if c.cur.NextOffset == sentinel.OffsetNone {
		c.done = true
		return nil
	}
	c.offset = c.cur.NextOffset
	return c.load()
}

func (c *labelCursor) Seek(target uint32) error {
	for !c.done && c.DocID() > target {
		if err := c.Advance(); err != nil {
			return err
		}
	}
	return nil
}
