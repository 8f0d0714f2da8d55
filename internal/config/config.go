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

// Package config holds the tunables a Segment is created or opened with.
package config

import (
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"
)

// Config controls initial region sizes and growth behavior. Zero value is
// valid and resolved against Default() by Normalize.
type Config struct {
	// InitialStringPoolSize is the starting capacity of the string pool arena.
	InitialStringPoolSize datasize.ByteSize `toml:"initial_string_pool_size"`
	// InitialPostingsSize is the starting capacity of the text postings region.
	InitialPostingsSize datasize.ByteSize `toml:"initial_postings_size"`
	// InitialLabelsSize is the starting capacity of the label postings region.
	InitialLabelsSize datasize.ByteSize `toml:"initial_labels_size"`
	// TermHashSlots is the initial slot count of the term hash table. Rounded
	// up to the next power of two.
	TermHashSlots uint32 `toml:"term_hash_slots"`
	// StringMapSlots is the initial slot count of the string map.
	StringMapSlots uint32 `toml:"string_map_slots"`
	// GrowthFactor multiplies a region's capacity on each EnsureFit-triggered grow.
	GrowthFactor float64 `toml:"growth_factor"`
	// Trace enables verbose per-operation logging (see internal/xlog).
	Trace bool `toml:"trace"`
}

// Default returns the out-of-the-box tuning used when Config is the zero value.
func Default() Config {
	return Config{
		InitialStringPoolSize: 64 * datasize.KB,
		InitialPostingsSize:   256 * datasize.KB,
		InitialLabelsSize:     64 * datasize.KB,
		TermHashSlots:         1024,
		StringMapSlots:        1024,
		GrowthFactor:          2.0,
		Trace:                 false,
	}
}

// Normalize fills zero fields from Default(), replaces a GrowthFactor of 1.0
// or less with the default, and returns the result.
func (c Config) Normalize() Config {
	d := Default()
	if c.InitialStringPoolSize == 0 {
		c.InitialStringPoolSize = d.InitialStringPoolSize
	}
	if c.InitialPostingsSize == 0 {
		c.InitialPostingsSize = d.InitialPostingsSize
	}
	if c.InitialLabelsSize == 0 {
		c.InitialLabelsSize = d.InitialLabelsSize
	}
	if c.TermHashSlots == 0 {
		c.TermHashSlots = d.TermHashSlots
	}
	if c.StringMapSlots == 0 {
		c.StringMapSlots = d.StringMapSlots
	}
	if c.GrowthFactor <= 1.0 {
		c.GrowthFactor = d.GrowthFactor
	}
	return c
}

// Load reads a TOML config file. A missing file is not an error: the zero
// Config (resolved via Normalize by the caller) is returned instead.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, err
	}
	var c Config
	if err := toml.Unmarshal(b, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
