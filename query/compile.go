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
	"github.com/sbsummer/whistlepig/internal/errs"
	"github.com/sbsummer/whistlepig/internal/region"
)

// Env supplies Compile with the segment state needed to turn term keys into
// postings-list cursors. segment.Segment is the production implementation;
// tests may supply a fake.
type Env interface {
	// LookupText resolves a (field, word) pair to its text postings list
	// head. found is false if either the field or the word was never
	// interned, which Compile treats as an empty stream, not an error.
	LookupText(field, word string) (head uint32, found bool, err error)
	// LookupLabel resolves a label word to its label postings list head.
	LookupLabel(word string) (head uint32, found bool, err error)
	TextRegion() *region.Region
	LabelRegion() *region.Region
	// MaxDocID is the highest doc id ever grabbed; negation ranges over
	// [1, MaxDocID()].
	MaxDocID() uint32
}

// Compile lowers a Query AST into a single Cursor ready for Run.
func Compile(q Query, env Env) (Cursor, error) {
	switch t := q.(type) {
	case *TermQuery:
		return compileTerm(t, env)
	case *ConjunctionQuery:
		children := make([]Cursor, len(t.Children))
		for i, ch := range t.Children {
			c, err := Compile(ch, env)
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		return newConjCursor(children)
	case *PhraseQuery:
		children := make([]PositionCursor, len(t.Children))
		for i, tq := range t.Children {
			c, err := compileTerm(tq, env)
			if err != nil {
				return nil, err
			}
			pc, ok := c.(PositionCursor)
			if !ok {
				return nil, errs.New(errs.InvalidArgument, "phrase child %q/%q did not yield a position cursor", tq.Field, tq.Word)
			}
			children[i] = pc
		}
		return newPhraseCursor(children)
	case *NegationQuery:
		if t.Child == nil {
			return nil, errs.New(errs.InvalidArgument, "negation has no child")
		}
		child, err := Compile(t.Child, env)
		if err != nil {
			return nil, err
		}
		return newNegCursor(child, env.MaxDocID())
	default:
		return nil, errs.New(errs.InvalidArgument, "unknown query node %T", q)
	}
}

func compileTerm(t *TermQuery, env Env) (Cursor, error) {
	if t.IsLabel {
		head, found, err := env.LookupLabel(t.Word)
		if err != nil {
			return nil, err
		}
		if !found {
			return emptyCursor{}, nil
		}
		return newLabelCursor(env.LabelRegion(), head)
	}
	head, found, err := env.LookupText(t.Field, t.Word)
	if err != nil {
		return nil, err
	}
	if !found {
		return emptyCursor{}, nil
	}
	c, err := newTextCursor(env.TextRegion(), head)
	if err != nil {
		return nil, err
	}
	return c, nil
}
