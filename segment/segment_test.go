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

package segment_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sbsummer/whistlepig/internal/config"
	"github.com/sbsummer/whistlepig/query"
	"github.com/sbsummer/whistlepig/segment"
)

const body = "body"

// newTestSegment builds a fresh segment in a temp dir with a config large
// enough that the three-doc corpus never needs a mid-test grow.
func newTestSegment(t *testing.T) *segment.Segment {
	t.Helper()
	dir := t.TempDir()
	s, err := segment.Create(filepath.Join(dir, "seg"), config.Config{
		InitialStringPoolSize: 4096,
		InitialPostingsSize:   4096,
		InitialLabelsSize:     4096,
		TermHashSlots:         16,
		StringMapSlots:        16,
		GrowthFactor:          2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Unload() })
	return s
}

func addPosting(t *testing.T, s *segment.Segment, field, word string, docID uint32, positions []uint16) {
	t.Helper()
	require.NoError(t, s.EnsureFit(64, 0, len(field), len(word)))
	require.NoError(t, s.AddPosting(field, word, docID, positions))
}

// corpus builds the three-document corpus from the end-to-end scenarios:
// doc 1 = {"one"@0, "two"@1, "three"@2}
// doc 2 = {"two"@0, "three"@1, "four"@2}
// doc 3 = {"three"@0, "four"@1, "five"@2}
func buildCorpus(t *testing.T, s *segment.Segment) (doc1, doc2, doc3 uint32) {
	t.Helper()
	d1, err := s.GrabDocID()
	require.NoError(t, err)
	d2, err := s.GrabDocID()
	require.NoError(t, err)
	d3, err := s.GrabDocID()
	require.NoError(t, err)

	addPosting(t, s, body, "one", d1, []uint16{0})
	addPosting(t, s, body, "two", d1, []uint16{1})
	addPosting(t, s, body, "three", d1, []uint16{2})

	addPosting(t, s, body, "two", d2, []uint16{0})
	addPosting(t, s, body, "three", d2, []uint16{1})
	addPosting(t, s, body, "four", d2, []uint16{2})

	addPosting(t, s, body, "three", d3, []uint16{0})
	addPosting(t, s, body, "four", d3, []uint16{1})
	addPosting(t, s, body, "five", d3, []uint16{2})

	return d1, d2, d3
}

func run(t *testing.T, s *segment.Segment, q query.Query) []uint32 {
	t.Helper()
	out, err := s.RunQuery(q, 0)
	require.NoError(t, err)
	return out
}

func TestTermQueries(t *testing.T) {
	s := newTestSegment(t)
	d1, d2, _ := buildCorpus(t, s)

	require.Equal(t, []uint32{d1}, run(t, s, query.Term(body, "one")))
	require.Equal(t, []uint32{d2, d1}, run(t, s, query.Term(body, "two")))
}

func TestConjunctionQueries(t *testing.T) {
	s := newTestSegment(t)
	d1, d2, _ := buildCorpus(t, s)

	c1, err := query.Add(query.Conjunction(), query.Term(body, "one"))
	require.NoError(t, err)
	c1, err = query.Add(c1, query.Term(body, "two"))
	require.NoError(t, err)
	require.Equal(t, []uint32{d1}, run(t, s, c1))

	c2, err := query.Add(query.Conjunction(), query.Term(body, "four"))
	require.NoError(t, err)
	c2, err = query.Add(c2, query.Term(body, "two"))
	require.NoError(t, err)
	require.Equal(t, []uint32{d2}, run(t, s, c2))

	require.Empty(t, run(t, s, query.Conjunction()))
}

func phraseOf(t *testing.T, words ...string) query.Query {
	t.Helper()
	p := query.Phrase()
	var q query.Query = p
	var err error
	for _, w := range words {
		q, err = query.Add(q, query.Term(body, w))
		require.NoError(t, err)
	}
	return q
}

func TestPhraseQueries(t *testing.T) {
	s := newTestSegment(t)
	d1, d2, _ := buildCorpus(t, s)

	require.Equal(t, []uint32{d1}, run(t, s, phraseOf(t, "one", "two")))
	require.Empty(t, run(t, s, phraseOf(t, "two", "one")))
	require.Equal(t, []uint32{d2, d1}, run(t, s, phraseOf(t, "two", "three")))
	require.Equal(t, []uint32{d1}, run(t, s, phraseOf(t, "one", "two", "three")))
}

func TestMixedConjunctionPhraseQueries(t *testing.T) {
	s := newTestSegment(t)
	d1, _, _ := buildCorpus(t, s)

	mix1, err := query.Add(query.Conjunction(), query.Term(body, "one"))
	require.NoError(t, err)
	mix1, err = query.Add(mix1, phraseOf(t, "two", "three"))
	require.NoError(t, err)
	require.Equal(t, []uint32{d1}, run(t, s, mix1))

	mix2, err := query.Add(query.Conjunction(), phraseOf(t, "three", "two"))
	require.NoError(t, err)
	mix2, err = query.Add(mix2, query.Term(body, "one"))
	require.NoError(t, err)
	require.Empty(t, run(t, s, mix2))
}

func TestNegationQueries(t *testing.T) {
	s := newTestSegment(t)
	d1, d2, d3 := buildCorpus(t, s)

	neg1, err := query.Add(query.Negation(), query.Term(body, "one"))
	require.NoError(t, err)
	require.Equal(t, []uint32{d3, d2}, run(t, s, neg1))

	neg2, err := query.Add(query.Negation(), query.Term(body, "three"))
	require.NoError(t, err)
	require.Empty(t, run(t, s, neg2))

	neg3, err := query.Add(query.Negation(), query.Term(body, "potato"))
	require.NoError(t, err)
	require.Equal(t, []uint32{d3, d2, d1}, run(t, s, neg3))

	neg4, err := query.Add(query.Negation(), phraseOf(t, "one", "three"))
	require.NoError(t, err)
	require.Equal(t, []uint32{d3, d2, d1}, run(t, s, neg4))

	conj, err := query.Add(query.Conjunction(), neg1)
	require.NoError(t, err)
	conj, err = query.Add(conj, query.Term(body, "three"))
	require.NoError(t, err)
	require.Equal(t, []uint32{d3, d2}, run(t, s, conj))
}

func TestLabelScenario(t *testing.T) {
	s := newTestSegment(t)
	d1, d2, d3 := buildCorpus(t, s)

	ensureLabel := func() {
		require.NoError(t, s.EnsureFit(0, 16, 0, len("starred")))
	}

	ensureLabel()
	require.NoError(t, s.AddLabel("starred", d2))
	require.Equal(t, []uint32{d2}, run(t, s, query.Label("starred")))

	ensureLabel()
	require.NoError(t, s.AddLabel("starred", d2)) // idempotent
	require.Equal(t, []uint32{d2}, run(t, s, query.Label("starred")))

	ensureLabel()
	require.NoError(t, s.AddLabel("starred", d1))
	require.Equal(t, []uint32{d2, d1}, run(t, s, query.Label("starred")))

	require.NoError(t, s.RemoveLabel("starred", d2))
	require.Equal(t, []uint32{d1}, run(t, s, query.Label("starred")))

	ensureLabel()
	require.NoError(t, s.AddLabel("starred", d3))
	require.Equal(t, []uint32{d3, d1}, run(t, s, query.Label("starred")))
}

func TestOpenRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "seg")
	s, err := segment.Create(dir, config.Config{})
	require.NoError(t, err)

	d1, err := s.GrabDocID()
	require.NoError(t, err)
	require.NoError(t, s.EnsureFit(64, 16, len(body), len("hello")))
	require.NoError(t, s.AddPosting(body, "hello", d1, []uint16{0}))
	require.NoError(t, s.AddLabel("starred", d1))
	require.NoError(t, s.Unload())

	reopened, err := segment.Open(dir)
	require.NoError(t, err)
	defer reopened.Unload()

	require.Equal(t, []uint32{d1}, run(t, reopened, query.Term(body, "hello")))
	require.Equal(t, []uint32{d1}, run(t, reopened, query.Label("starred")))
	require.Equal(t, d1, reopened.MaxDocID())
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestSegment(t)
	d1, d2, _ := buildCorpus(t, s)
	require.NoError(t, s.EnsureFit(0, 16, 0, len("starred")))
	require.NoError(t, s.AddLabel("starred", d2))

	var buf bytes.Buffer
	require.NoError(t, s.Snapshot(&buf))

	fresh := newTestSegment(t)
	require.NoError(t, fresh.RestoreSnapshot(bytes.NewReader(buf.Bytes())))

	require.Equal(t, []uint32{d1}, run(t, fresh, query.Term(body, "one")))
	require.Equal(t, []uint32{d2}, run(t, fresh, query.Label("starred")))
	require.Equal(t, s.MaxDocID(), fresh.MaxDocID())
}

func TestLabelCacheFastPath(t *testing.T) {
	s := newTestSegment(t)
	d1, d2, d3 := buildCorpus(t, s)

	ensure := func(word string) {
		require.NoError(t, s.EnsureFit(0, 16, 0, len(word)))
	}

	ensure("starred")
	require.NoError(t, s.AddLabel("starred", d1))
	ensure("starred")
	require.NoError(t, s.AddLabel("starred", d3))
	ensure("urgent")
	require.NoError(t, s.AddLabel("urgent", d1))
	ensure("urgent")
	require.NoError(t, s.AddLabel("urgent", d2))

	card, err := s.LabelCardinality("starred")
	require.NoError(t, err)
	require.EqualValues(t, 2, card)

	both, err := s.LabelsMatchingAll("starred", "urgent")
	require.NoError(t, err)
	require.Equal(t, []uint32{d1}, both)

	none, err := s.LabelsMatchingAll("starred", "neverseen")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestDumpTermsExcludesDeadList(t *testing.T) {
	s := newTestSegment(t)
	buildCorpus(t, s)

	for _, td := range s.DumpTerms() {
		require.False(t, td.Key.FieldID == 0 && td.Key.WordID == 0, "dead list key leaked into DumpTerms")
	}
	require.NotEmpty(t, s.DumpTerms())
}

func TestAddPostingRejectsDocZero(t *testing.T) {
	s := newTestSegment(t)
	require.NoError(t, s.EnsureFit(64, 0, len(body), len("x")))
	err := s.AddPosting(body, "x", 0, []uint16{0})
	require.Error(t, err)
}
