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

// Package query implements the query AST (spec §4.5) and the evaluator that
// walks postings lists in reverse-document order to answer it (spec §4.6).
package query

import "github.com/sbsummer/whistlepig/internal/errs"

// Query is the sealed interface implemented by every AST node.
type Query interface {
	isQuery()
}

// TermQuery matches a single term's postings list directly. IsLabel selects
// the label postings region (field sentinel, spec §3) instead of the text region.
type TermQuery struct {
	Field   string
	Word    string
	IsLabel bool
}

func (*TermQuery) isQuery() {}

// Term builds a text-field term query.
func Term(field, word string) *TermQuery { return &TermQuery{Field: field, Word: word} }

// Label builds a label term query (the "label:" notation in spec §8).
func Label(word string) *TermQuery { return &TermQuery{IsLabel: true, Word: word} }

// ConjunctionQuery matches doc ids present in every child's stream. An empty
// conjunction matches nothing (spec §4.5).
type ConjunctionQuery struct {
	Children []Query
}

func (*ConjunctionQuery) isQuery() {}

// Conjunction builds an empty conjunction node; use Add to populate it.
func Conjunction() *ConjunctionQuery { return &ConjunctionQuery{} }

// PhraseQuery matches docs where an ordered run of term children appear at
// consecutive positions. Children must all be (non-label) TermQuery nodes.
type PhraseQuery struct {
	Children []*TermQuery
}

func (*PhraseQuery) isQuery() {}

// Phrase builds an empty phrase node; use Add to populate it.
func Phrase() *PhraseQuery { return &PhraseQuery{} }

// NegationQuery matches the complement of its single child over [1, max_docid].
type NegationQuery struct {
	Child Query
}

func (*NegationQuery) isQuery() {}

// Negation builds an empty negation node; use Add to set its one child.
func Negation() *NegationQuery { return &NegationQuery{} }

// Add appends child to parent and returns parent, per spec §6's
// `add(parent, child) -> parent` construction API. Children are stored in
// the order added. Negation accepts exactly one child; Phrase accepts only
// (non-label) TermQuery children.
func Add(parent Query, child Query) (Query, error) {
	switch p := parent.(type) {
	case *ConjunctionQuery:
		p.Children = append(p.Children, child)
		return p, nil
	case *PhraseQuery:
		tq, ok := child.(*TermQuery)
		if !ok || tq.IsLabel {
			return nil, errs.New(errs.InvalidArgument, "phrase children must be non-label term queries, got %T", child)
		}
		p.Children = append(p.Children, tq)
		return p, nil
	case *NegationQuery:
		if p.Child != nil {
			return nil, errs.New(errs.InvalidArgument, "negation accepts exactly one child")
		}
		p.Child = child
		return p, nil
	default:
		return nil, errs.New(errs.InvalidArgument, "%T cannot have children added", parent)
	}
}
