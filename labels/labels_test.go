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

package labels_test

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/sbsummer/whistlepig/internal/errs"
	"github.com/sbsummer/whistlepig/internal/region"
	"github.com/sbsummer/whistlepig/labels"
	"github.com/sbsummer/whistlepig/sentinel"
	"github.com/sbsummer/whistlepig/termhash"
)

func newRegion(t *testing.T) *region.Region {
	t.Helper()
	r, err := region.Create(filepath.Join(t.TempDir(), "lbl"), region.KindLabelPostings, 256)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func docIDs(t *testing.T, r *region.Region, plh *termhash.PLH) []uint32 {
	t.Helper()
	var out []uint32
	off := plh.HeadOffset
	for off != sentinel.OffsetNone {
		p, err := labels.Read(r, off)
		require.NoError(t, err)
		out = append(out, p.DocID)
		off = p.NextOffset
	}
	return out
}

func TestAddIsIdempotentAndOrdered(t *testing.T) {
	r := newRegion(t)
	plh := &termhash.PLH{HeadOffset: sentinel.OffsetNone}
	dead := &termhash.PLH{HeadOffset: sentinel.OffsetNone}

	require.NoError(t, labels.Add(r, 2, plh, dead))
	require.NoError(t, labels.Add(r, 2, plh, dead)) // idempotent
	require.Equal(t, uint32(1), plh.Count)

	require.NoError(t, labels.Add(r, 1, plh, dead))
	require.Equal(t, []uint32{2, 1}, docIDs(t, r, plh))
	require.Equal(t, uint32(2), plh.Count)
}

func TestRemoveReturnsToDeadListAndIsReused(t *testing.T) {
	r := newRegion(t)
	plh := &termhash.PLH{HeadOffset: sentinel.OffsetNone}
	dead := &termhash.PLH{HeadOffset: sentinel.OffsetNone}

	require.NoError(t, labels.Add(r, 2, plh, dead))
	require.NoError(t, labels.Add(r, 1, plh, dead))
	headBefore := r.Head()

	require.NoError(t, labels.Remove(r, 2, plh, dead))
	require.Equal(t, []uint32{1}, docIDs(t, r, plh))
	require.Equal(t, uint32(1), dead.Count)

	// a new add should reuse the reclaimed slot rather than grow head.
	require.NoError(t, labels.Add(r, 3, plh, dead))
	require.Equal(t, headBefore, r.Head())
	require.Equal(t, []uint32{3, 1}, docIDs(t, r, plh))
	require.Equal(t, uint32(0), dead.Count)
}

func TestRemoveMissingIsSilentNoOp(t *testing.T) {
	r := newRegion(t)
	plh := &termhash.PLH{HeadOffset: sentinel.OffsetNone}
	dead := &termhash.PLH{HeadOffset: sentinel.OffsetNone}

	require.NoError(t, labels.Add(r, 5, plh, dead))
	require.NoError(t, labels.Remove(r, 9, plh, dead)) // 9 not present, list only has 5
	require.Equal(t, []uint32{5}, docIDs(t, r, plh))
	require.Equal(t, uint32(0), dead.Count)
}

func TestAddRejectsDocZero(t *testing.T) {
	r := newRegion(t)
	plh := &termhash.PLH{HeadOffset: sentinel.OffsetNone}
	dead := &termhash.PLH{HeadOffset: sentinel.OffsetNone}

	err := labels.Add(r, 0, plh, dead)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.InvalidArgument, kind)
}

// TestRemoveThenAddRestoresStructuralEquality exercises the spec's property
// 4: remove then re-add of the same label must reproduce the list before
// removal, modulo physical offsets. cmp.Diff on the plain []uint32 doc-id
// sequences (not the raw offsets, which the invariant leaves free to differ) is the
// structural-equality check the invariant calls for.
func TestRemoveThenAddRestoresStructuralEquality(t *testing.T) {
	r := newRegion(t)
	plh := &termhash.PLH{HeadOffset: sentinel.OffsetNone}
	dead := &termhash.PLH{HeadOffset: sentinel.OffsetNone}

	require.NoError(t, labels.Add(r, 5, plh, dead))
	require.NoError(t, labels.Add(r, 3, plh, dead))
	require.NoError(t, labels.Add(r, 1, plh, dead))
	before := docIDs(t, r, plh)

	require.NoError(t, labels.Remove(r, 3, plh, dead))
	require.NoError(t, labels.Add(r, 3, plh, dead))
	after := docIDs(t, r, plh)

	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("doc id sequence changed after remove+add round trip (-before +after):\n%s", diff)
	}
}

func TestWalkDetectsCorruption(t *testing.T) {
	r := newRegion(t)
	plh := &termhash.PLH{HeadOffset: sentinel.OffsetNone}
	dead := &termhash.PLH{HeadOffset: sentinel.OffsetNone}

	require.NoError(t, labels.Add(r, 5, plh, dead))
	require.NoError(t, labels.Add(r, 3, plh, dead))

	// directly corrupt the tail record (doc 3) to claim doc 10, breaking
	// strict descent from the head (doc 5).
	headRec, err := labels.Read(r, plh.HeadOffset)
	require.NoError(t, err)
	var buf [labels.RecordSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], 10)
	binary.LittleEndian.PutUint32(buf[4:8], sentinel.OffsetNone)
	require.NoError(t, r.WriteAt(headRec.NextOffset, buf[:]))

	err = labels.Add(r, 1, plh, dead)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.Corruption, kind)
}
