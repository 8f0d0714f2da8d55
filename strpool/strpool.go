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

// Package strpool implements the string pool: an arena of length-prefixed
// byte strings (spec §4.1). A string's id is the byte offset of its record
// in the pool, which is why offset (and therefore string id) 0 is reserved:
// Pool.Append never hands out offset 0 to a real string.
package strpool

import (
	"encoding/binary"

	"github.com/sbsummer/whistlepig/internal/errs"
	"github.com/sbsummer/whistlepig/internal/region"
)

const lengthPrefixSize = 2 // uint16: strings longer than 65535 bytes are rejected

// Pool wraps a region.Region laid out as a sequence of (uint16 length, bytes) records.
type Pool struct {
	r *region.Region
}

// New wraps an already-created/opened region as a string pool.
func New(r *region.Region) *Pool { return &Pool{r: r} }

// SizeOf returns the number of bytes Append would consume for a string of
// length n, for EnsureFit budgeting.
func SizeOf(n int) uint32 { return uint32(lengthPrefixSize + n) }

// EnsureFit grows the backing region to fit a record of n additional bytes.
func (p *Pool) EnsureFit(n int, growthFactor float64) error {
	return p.r.EnsureFit(SizeOf(n), growthFactor)
}

// Append writes s as a new length-prefixed record and returns its offset
// (the string id). The very first record ever written to a fresh pool is a
// zero-length placeholder consuming offset 0, so real ids are never 0.
func (p *Pool) Append(s []byte) (uint32, error) {
	if len(s) > 0xFFFF {
		return 0, errs.New(errs.InvalidArgument, "string of length %d exceeds pool's 65535 byte limit", len(s))
	}
	if p.r.Head() == 0 {
		if _, err := p.appendRecord(nil); err != nil {
			return 0, err
		}
	}
	return p.appendRecord(s)
}

func (p *Pool) appendRecord(s []byte) (uint32, error) {
	n := SizeOf(len(s))
	off, err := p.r.Alloc(n)
	if err != nil {
		return 0, errs.Wrap(errs.OutOfSpace, err, "string pool append")
	}
	var hdr [lengthPrefixSize]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(s)))
	if err := p.r.WriteAt(off, hdr[:]); err != nil {
		return 0, err
	}
	if len(s) > 0 {
		if err := p.r.WriteAt(off+lengthPrefixSize, s); err != nil {
			return 0, err
		}
	}
	return off, nil
}

// Get returns a copy of the string stored at id.
func (p *Pool) Get(id uint32) ([]byte, error) {
	var hdr [lengthPrefixSize]byte
	if err := p.r.ReadAt(id, hdr[:]); err != nil {
		return nil, errs.Wrap(errs.Corruption, err, "string pool read header at %d", id)
	}
	n := binary.LittleEndian.Uint16(hdr[:])
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	if err := p.r.ReadAt(id+lengthPrefixSize, out); err != nil {
		return nil, errs.Wrap(errs.Corruption, err, "string pool read body at %d", id)
	}
	return out, nil
}

// Equal reports whether the string stored at id equals s, without allocating
// when possible.
func (p *Pool) Equal(id uint32, s []byte) (bool, error) {
	var hdr [lengthPrefixSize]byte
	if err := p.r.ReadAt(id, hdr[:]); err != nil {
		return false, errs.Wrap(errs.Corruption, err, "string pool read header at %d", id)
	}
	n := binary.LittleEndian.Uint16(hdr[:])
	if int(n) != len(s) {
		return false, nil
	}
	if n == 0 {
		return true, nil
	}
	buf, err := p.r.Slice(id+lengthPrefixSize, uint32(n))
	if err != nil {
		return false, errs.Wrap(errs.Corruption, err, "string pool slice at %d", id)
	}
	for i := range s {
		if buf[i] != s[i] {
			return false, nil
		}
	}
	return true, nil
}
