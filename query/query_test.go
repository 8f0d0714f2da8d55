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

package query_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sbsummer/whistlepig/internal/region"
	"github.com/sbsummer/whistlepig/labels"
	"github.com/sbsummer/whistlepig/postings"
	"github.com/sbsummer/whistlepig/query"
	"github.com/sbsummer/whistlepig/sentinel"
	"github.com/sbsummer/whistlepig/termhash"
)

// fakeEnv is a query.Env that skips the string pool/term hash entirely: it
// maps (field, word) and label strings straight to postings-list head
// offsets in two real regions, exercising Compile/Run the way Segment does
// but without the rest of the segment facade.
type fakeEnv struct {
	text, lbl  *region.Region
	textHeads  map[string]uint32
	labelHeads map[string]uint32
	maxDocID   uint32
}

func newFakeEnv(t *testing.T) *fakeEnv {
	t.Helper()
	textR, err := region.Create(filepath.Join(t.TempDir(), "text"), region.KindTextPostings, 4096)
	require.NoError(t, err)
	t.Cleanup(func() { textR.Close() })
	lblR, err := region.Create(filepath.Join(t.TempDir(), "lbl"), region.KindLabelPostings, 4096)
	require.NoError(t, err)
	t.Cleanup(func() { lblR.Close() })
	return &fakeEnv{
		text:       textR,
		lbl:        lblR,
		textHeads:  map[string]uint32{},
		labelHeads: map[string]uint32{},
	}
}

func textKey(field, word string) string { return field + "\x00" + word }

// addPosting appends a posting for (field, word, docID), linking it at the
// head of that term's chain. Callers must add in ascending docID order per
// term, so each new head has a higher doc id than the one it links to,
// mirroring Segment.AddPosting's own monotonicity requirement.
func (e *fakeEnv) addPosting(t *testing.T, field, word string, docID uint32, positions []uint16) {
	t.Helper()
	k := textKey(field, word)
	head, ok := e.textHeads[k]
	if !ok {
		head = sentinel.OffsetNone
	}
	off, err := postings.Append(e.text, docID, positions, head)
	require.NoError(t, err)
	e.textHeads[k] = off
	if docID > e.maxDocID {
		e.maxDocID = docID
	}
}

func (e *fakeEnv) addLabel(t *testing.T, label string, docID uint32) {
	t.Helper()
	plh, ok := e.labelPLH(label)
	if !ok {
		plh = &termhash.PLH{HeadOffset: sentinel.OffsetNone}
	}
	dead := &termhash.PLH{HeadOffset: sentinel.OffsetNone}
	require.NoError(t, labels.Add(e.lbl, docID, plh, dead))
	e.labelHeads[label] = plh.HeadOffset
	if docID > e.maxDocID {
		e.maxDocID = docID
	}
}

func (e *fakeEnv) labelPLH(label string) (*termhash.PLH, bool) {
	head, ok := e.labelHeads[label]
	if !ok {
		return nil, false
	}
	return &termhash.PLH{HeadOffset: head}, true
}

func (e *fakeEnv) LookupText(field, word string) (uint32, bool, error) {
	head, ok := e.textHeads[textKey(field, word)]
	return head, ok, nil
}

func (e *fakeEnv) LookupLabel(word string) (uint32, bool, error) {
	head, ok := e.labelHeads[word]
	return head, ok, nil
}

func (e *fakeEnv) TextRegion() *region.Region  { return e.text }
func (e *fakeEnv) LabelRegion() *region.Region { return e.lbl }
func (e *fakeEnv) MaxDocID() uint32            { return e.maxDocID }

func run(t *testing.T, env query.Env, q query.Query) []uint32 {
	t.Helper()
	cur, err := query.Compile(q, env)
	require.NoError(t, err)
	out, err := query.Run(cur, 0)
	require.NoError(t, err)
	return out
}

// buildCorpus reproduces spec.md §8's three-document fixture directly
// against a fakeEnv, without going through segment.Segment.
func buildCorpus(t *testing.T) (env *fakeEnv, d1, d2, d3 uint32) {
	t.Helper()
	env = newFakeEnv(t)
	d1, d2, d3 = 1, 2, 3

	env.addPosting(t, "body", "one", d1, []uint16{0})
	env.addPosting(t, "body", "two", d1, []uint16{1})
	env.addPosting(t, "body", "three", d1, []uint16{2})

	env.addPosting(t, "body", "two", d2, []uint16{0})
	env.addPosting(t, "body", "three", d2, []uint16{1})
	env.addPosting(t, "body", "four", d2, []uint16{2})

	env.addPosting(t, "body", "three", d3, []uint16{0})
	env.addPosting(t, "body", "four", d3, []uint16{1})
	env.addPosting(t, "body", "five", d3, []uint16{2})

	return env, d1, d2, d3
}

func TestCompileTermUnknownIsEmptyStream(t *testing.T) {
	env, _, _, _ := buildCorpus(t)
	require.Empty(t, run(t, env, query.Term("body", "nonexistent")))
}

func TestCompileConjunctionEmptyMatchesNothing(t *testing.T) {
	env, _, _, _ := buildCorpus(t)
	require.Empty(t, run(t, env, query.Conjunction()))
}

func TestCompilePhraseOrderMatters(t *testing.T) {
	env, d1, d2, _ := buildCorpus(t)

	forward := query.Phrase()
	var q query.Query = forward
	var err error
	q, err = query.Add(q, query.Term("body", "two"))
	require.NoError(t, err)
	q, err = query.Add(q, query.Term("body", "three"))
	require.NoError(t, err)
	require.Equal(t, []uint32{d2, d1}, run(t, env, q))

	backward := query.Phrase()
	var rq query.Query = backward
	rq, err = query.Add(rq, query.Term("body", "three"))
	require.NoError(t, err)
	rq, err = query.Add(rq, query.Term("body", "two"))
	require.NoError(t, err)
	require.Empty(t, run(t, env, rq))
}

func TestCompilePhraseRejectsLabelChild(t *testing.T) {
	p := query.Phrase()
	_, err := query.Add(p, query.Label("starred"))
	require.Error(t, err)
}

func TestCompileNegationRejectsSecondChild(t *testing.T) {
	n := query.Negation()
	q, err := query.Add(n, query.Term("body", "one"))
	require.NoError(t, err)
	_, err = query.Add(q, query.Term("body", "two"))
	require.Error(t, err)
}

func TestCompileNegationOverUniverse(t *testing.T) {
	env, d1, d2, d3 := buildCorpus(t)

	n, err := query.Add(query.Negation(), query.Term("body", "one"))
	require.NoError(t, err)
	require.Equal(t, []uint32{d3, d2}, run(t, env, n))

	allAbsent, err := query.Add(query.Negation(), query.Term("body", "potato"))
	require.NoError(t, err)
	require.Equal(t, []uint32{d3, d2, d1}, run(t, env, allAbsent))
}

func TestCompileLabelTerm(t *testing.T) {
	env, d1, d2, _ := buildCorpus(t)
	env.addLabel(t, "starred", d2)
	env.addLabel(t, "starred", d1)

	require.Equal(t, []uint32{d2, d1}, run(t, env, query.Label("starred")))
}

func TestRunRespectsLimit(t *testing.T) {
	env, _, _, d3 := buildCorpus(t)

	cur, err := query.Compile(query.Term("body", "three"), env)
	require.NoError(t, err)
	out, err := query.Run(cur, 1)
	require.NoError(t, err)
	require.Equal(t, []uint32{d3}, out)
}
