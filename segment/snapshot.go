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

package segment

import (
	"io"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/sbsummer/whistlepig/internal/errs"
	"github.com/sbsummer/whistlepig/internal/region"
	"github.com/sbsummer/whistlepig/strmap"
	"github.com/sbsummer/whistlepig/termhash"
)

// snapshotPayload is the uncompressed, JSON-encoded body of a Snapshot. It
// carries the live bytes of all three regions plus enough sidecar state to
// rebuild the in-memory indices, so RestoreSnapshot needs nothing but this.
type snapshotPayload struct {
	SchemaVersion int                 `json:"schema_version"`
	MaxDocID      uint32              `json:"max_docid"`
	StringEntries []strEntry          `json:"string_entries"`
	TermEntries   []termhash.TermDump `json:"term_entries"`

	StringPoolBytes []byte `json:"string_pool_bytes"`
	TextBytes       []byte `json:"text_bytes"`
	LabelBytes      []byte `json:"label_bytes"`
}

func regionBytes(r *region.Region) ([]byte, error) {
	view, err := r.Slice(0, r.Head())
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// Snapshot writes a zstd-compressed, replayable point-in-time dump of this
// segment to w. This is a segment-local backup primitive, not a substitute
// for a multi-segment snapshot/recovery wrapper.
func (s *Segment) Snapshot(w io.Writer) error {
	if err := s.checkCorrupt(); err != nil {
		return err
	}
	poolBytes, err := regionBytes(s.poolR)
	if err != nil {
		return s.fail(err)
	}
	textBytes, err := regionBytes(s.textR)
	if err != nil {
		return s.fail(err)
	}
	lblBytes, err := regionBytes(s.lblR)
	if err != nil {
		return s.fail(err)
	}

	payload := snapshotPayload{
		SchemaVersion:   schemaVersion,
		MaxDocID:        s.maxDocID,
		StringEntries:   fromAnonStrEntries(s.strs.Entries()),
		TermEntries:     s.terms.All(),
		StringPoolBytes: poolBytes,
		TextBytes:       textBytes,
		LabelBytes:      lblBytes,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "marshal segment snapshot")
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "open zstd writer")
	}
	if _, err := enc.Write(b); err != nil {
		enc.Close()
		return errs.Wrap(errs.IOError, err, "write segment snapshot")
	}
	if err := enc.Close(); err != nil {
		return errs.Wrap(errs.IOError, err, "close zstd writer")
	}
	return nil
}

// RestoreSnapshot replaces this segment's contents with a previous Snapshot.
// Intended for a freshly Created (empty) segment, e.g. a create-from-snapshot
// flow or a test fixture; restoring into a non-empty segment is unsupported.
func (s *Segment) RestoreSnapshot(r io.Reader) error {
	if err := s.checkCorrupt(); err != nil {
		return err
	}
	dec, err := zstd.NewReader(r)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "open zstd reader")
	}
	defer dec.Close()

	b, err := io.ReadAll(dec)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "read segment snapshot")
	}
	var payload snapshotPayload
	if err := json.Unmarshal(b, &payload); err != nil {
		return errs.Wrap(errs.Corruption, err, "unmarshal segment snapshot")
	}

	if err := restoreRegionBytes(s.poolR, payload.StringPoolBytes, s.cfg.GrowthFactor); err != nil {
		return s.fail(err)
	}
	if err := restoreRegionBytes(s.textR, payload.TextBytes, s.cfg.GrowthFactor); err != nil {
		return s.fail(err)
	}
	if err := restoreRegionBytes(s.lblR, payload.LabelBytes, s.cfg.GrowthFactor); err != nil {
		return s.fail(err)
	}

	s.strs = strmap.Restore(s.cfg.StringMapSlots, toAnonStrEntries(payload.StringEntries))
	s.terms = termhash.Restore(s.cfg.TermHashSlots, payload.TermEntries)
	s.maxDocID = payload.MaxDocID
	s.rebuildCache()
	return nil
}

func restoreRegionBytes(r *region.Region, data []byte, growthFactor float64) error {
	if err := r.SetHead(0); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := r.EnsureFit(uint32(len(data)), growthFactor); err != nil {
		return err
	}
	if err := r.WriteAt(0, data); err != nil {
		return err
	}
	return r.SetHead(uint32(len(data)))
}
