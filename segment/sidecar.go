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
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/sbsummer/whistlepig/internal/errs"
)

// flushSidecar writes the strmap/termhash snapshot and doc-id counter to
// meta.json, then flushes all three regions' mmaps. The region bytes are the
// source of truth for postings; the sidecar only carries what can't be
// recovered from them (the hash indices over those bytes, and the counter).
func (s *Segment) flushSidecar() error {
	side := sidecar{
		SchemaVersion:  schemaVersion,
		MaxDocID:       s.maxDocID,
		TermHashSlots:  s.cfg.TermHashSlots,
		StringMapSlots: s.cfg.StringMapSlots,
		GrowthFactor:   s.cfg.GrowthFactor,
		Trace:          s.cfg.Trace,
		StringEntries:  fromAnonStrEntries(s.strs.Entries()),
		TermEntries:    s.terms.All(),
	}
	b, err := json.MarshalIndent(side, "", "  ")
	if err != nil {
		return errs.Wrap(errs.IOError, err, "marshal segment sidecar")
	}
	tmp := filepath.Join(s.dir, metaFile) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errs.Wrap(errs.IOError, err, "write segment sidecar")
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, metaFile)); err != nil {
		return errs.Wrap(errs.IOError, err, "rename segment sidecar into place")
	}
	if err := s.poolR.Flush(); err != nil {
		return err
	}
	if err := s.textR.Flush(); err != nil {
		return err
	}
	if err := s.lblR.Flush(); err != nil {
		return err
	}
	return nil
}

func readSidecar(path string) (sidecar, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return sidecar{}, errs.Wrap(errs.IOError, err, "read segment sidecar %s", path)
	}
	var side sidecar
	if err := json.Unmarshal(b, &side); err != nil {
		return sidecar{}, errs.Wrap(errs.Corruption, err, "unmarshal segment sidecar %s", path)
	}
	return side, nil
}

func fromAnonStrEntries(in []struct {
	Hash     uint64
	StringID uint32
}) []strEntry {
	out := make([]strEntry, len(in))
	for i, e := range in {
		out[i] = strEntry{Hash: e.Hash, StringID: e.StringID}
	}
	return out
}
