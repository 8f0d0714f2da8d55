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
	"github.com/sbsummer/whistlepig/termhash"
)

// schemaVersion is bumped whenever the on-disk sidecar layout changes
// incompatibly.
const schemaVersion = 1

// Metadata is the versioned, JSON-serializable segment header surfaced by
// Segment.Metadata() for monitoring/diagnostics tooling.
type Metadata struct {
	SchemaVersion        int     `json:"schema_version"`
	MaxDocID             uint32  `json:"max_docid"`
	DocCount             uint32  `json:"doc_count"`
	TermCount            int     `json:"term_count"`
	StringPoolCapacity   uint32  `json:"string_pool_capacity"`
	TextPostingsCapacity uint32  `json:"text_postings_capacity"`
	LabelPostingsCapacity uint32 `json:"label_postings_capacity"`
	GrowthFactor         float64 `json:"growth_factor"`
}

// strEntry mirrors strmap.Map's anonymous snapshot element shape with a
// name goccy/go-json can tag.
type strEntry struct {
	Hash     uint64 `json:"hash"`
	StringID uint32 `json:"string_id"`
}

// sidecar is the full JSON document persisted alongside the region files,
// reconstructing everything region bytes alone don't capture: the in-memory
// strmap/termhash indices, the doc-id counter, and the handful of tuning
// knobs needed to re-create the indices at the same size. The byte-size
// fields of config.Config are deliberately not embedded here: their
// human-readable TOML representation isn't a JSON concern, so the sidecar
// only restates the plain numeric knobs it actually needs.
type sidecar struct {
	SchemaVersion  int    `json:"schema_version"`
	MaxDocID       uint32 `json:"max_docid"`
	TermHashSlots  uint32 `json:"term_hash_slots"`
	StringMapSlots uint32 `json:"string_map_slots"`
	GrowthFactor   float64 `json:"growth_factor"`
	Trace          bool   `json:"trace"`

	StringEntries []strEntry          `json:"string_entries"`
	TermEntries   []termhash.TermDump `json:"term_entries"`
}
