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

// Package region implements the file-backed, growable byte arena that backs
// every postings-adjacent store in the segment core (string pool, text
// postings, label postings). Offsets handed out by a Region are relative to
// the start of its contents area and remain valid across an EnsureFit: a grow
// remaps the backing file but never relocates an existing byte.
package region

import (
	"encoding/binary"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/sbsummer/whistlepig/internal/errs"
	"github.com/sbsummer/whistlepig/internal/safemath"
)

// Kind tags what a region holds, mirroring the {kind_tag, capacity, head}
// conceptual header from spec §6.
type Kind uint8

const (
	KindStringPool Kind = iota + 1
	KindTextPostings
	KindLabelPostings
)

const (
	magic      = uint32(0x77706967) // "wpig"
	headerSize = 16                 // magic(4) + kind(1) + pad(3) + capacity(4) + head(4)
)

// Region is a growable byte arena backed by a memory-mapped file. All
// offsets are relative to the byte immediately after the fixed header.
type Region struct {
	kind Kind
	f    *os.File
	mm   mmap.MMap
	// capacity and head mirror the header fields cached for fast access;
	// the header in mm is kept in sync on every mutation that touches them.
	capacity uint32
	head     uint32
}

// Create creates (or truncates) the backing file at path and initializes a
// fresh region of the given kind with the requested initial capacity.
func Create(path string, kind Kind, initialCapacity uint32) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "create region file %s", path)
	}
	r := &Region{kind: kind, f: f}
	if err := r.remap(initialCapacity); err != nil {
		f.Close()
		return nil, err
	}
	r.capacity = initialCapacity
	r.head = 0
	r.writeHeader()
	return r, nil
}

// Open reopens a previously-created region file, trusting its on-disk header.
func Open(path string) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "open region file %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IOError, err, "stat region file %s", path)
	}
	if fi.Size() < headerSize {
		f.Close()
		return nil, errs.New(errs.Corruption, "region file %s too small for header", path)
	}
	r := &Region{f: f}
	if err := r.remap(uint32(fi.Size()) - headerSize); err != nil {
		f.Close()
		return nil, err
	}
	if err := r.readHeader(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// remap truncates the file to headerSize+contentsCapacity and (re)maps it.
func (r *Region) remap(contentsCapacity uint32) error {
	if r.mm != nil {
		if err := r.mm.Unmap(); err != nil {
			return errs.Wrap(errs.IOError, err, "unmap region during remap")
		}
		r.mm = nil
	}
	total := int64(headerSize) + int64(contentsCapacity)
	if err := r.f.Truncate(total); err != nil {
		return errs.Wrap(errs.IOError, err, "truncate region file")
	}
	mm, err := mmap.MapRegion(r.f, int(total), mmap.RDWR, 0, 0)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "mmap region file")
	}
	r.mm = mm
	return nil
}

func (r *Region) writeHeader() {
	binary.LittleEndian.PutUint32(r.mm[0:4], magic)
	r.mm[4] = byte(r.kind)
	binary.LittleEndian.PutUint32(r.mm[8:12], r.capacity)
	binary.LittleEndian.PutUint32(r.mm[12:16], r.head)
}

func (r *Region) readHeader() error {
	if binary.LittleEndian.Uint32(r.mm[0:4]) != magic {
		return errs.New(errs.Corruption, "region file has bad magic")
	}
	r.kind = Kind(r.mm[4])
	r.capacity = binary.LittleEndian.Uint32(r.mm[8:12])
	r.head = binary.LittleEndian.Uint32(r.mm[12:16])
	return nil
}

// Kind reports what this region stores.
func (r *Region) Kind() Kind { return r.kind }

// Head returns the offset of the next free byte (the append cursor).
func (r *Region) Head() uint32 { return r.head }

// Capacity returns the current contents capacity in bytes.
func (r *Region) Capacity() uint32 { return r.capacity }

// Remaining reports how many bytes can still be appended before a grow is needed.
func (r *Region) Remaining() uint32 { return r.capacity - r.head }

// EnsureFit grows the region, by growthFactor each step, until at least
// additional bytes are available past Head. It is the only operation allowed
// to relocate the backing buffer; it must be called (and must succeed)
// before any mutation that could exceed the current capacity, per spec §4.3/§5.
func (r *Region) EnsureFit(additional uint32, growthFactor float64) error {
	if r.Remaining() >= additional {
		return nil
	}
	newCap := r.capacity
	if newCap == 0 {
		newCap = additional
	}
	for newCap-r.head < additional {
		grown, overflow := safemath.SafeMul(uint64(newCap), uint64(growthFactor*1000))
		grown /= 1000
		if overflow || grown <= uint64(newCap) {
			var addOverflow bool
			grown, addOverflow = safemath.SafeAdd(uint64(newCap), uint64(additional))
			if addOverflow {
				return errs.New(errs.OutOfSpace, "region would exceed uint32 address space")
			}
		}
		if !safemath.Uint32Fits(grown) {
			return errs.New(errs.OutOfSpace, "region would exceed uint32 address space")
		}
		newCap = uint32(grown)
	}
	if err := r.remap(newCap); err != nil {
		return err
	}
	r.capacity = newCap
	r.writeHeader()
	return nil
}

// Alloc bumps the append cursor by n bytes and returns the offset the caller
// should write at. It never grows the region itself; the caller must have
// called EnsureFit first (violating this returns an errs.OutOfSpace error).
func (r *Region) Alloc(n uint32) (uint32, error) {
	if r.Remaining() < n {
		return 0, errs.New(errs.OutOfSpace, "region alloc of %d bytes exceeds remaining capacity %d (EnsureFit not called or undersized)", n, r.Remaining())
	}
	off := r.head
	r.head += n
	r.writeHeader()
	return off, nil
}

// SetHead forcibly repositions the append cursor. Used only by restore paths.
func (r *Region) SetHead(h uint32) error {
	if h > r.capacity {
		return errs.New(errs.Corruption, "SetHead %d beyond capacity %d", h, r.capacity)
	}
	r.head = h
	r.writeHeader()
	return nil
}

// bounds-checks [off, off+n) against the contents area.
func (r *Region) check(off, n uint32) error {
	if off > r.capacity || n > r.capacity-off {
		return errs.New(errs.Corruption, "region access [%d,%d) out of bounds (capacity %d)", off, uint64(off)+uint64(n), r.capacity)
	}
	return nil
}

// WriteAt copies b into the contents area starting at off.
func (r *Region) WriteAt(off uint32, b []byte) error {
	if err := r.check(off, uint32(len(b))); err != nil {
		return err
	}
	copy(r.mm[headerSize+off:], b)
	return nil
}

// ReadAt copies len(b) bytes from the contents area starting at off into b.
func (r *Region) ReadAt(off uint32, b []byte) error {
	if err := r.check(off, uint32(len(b))); err != nil {
		return err
	}
	copy(b, r.mm[headerSize+off:headerSize+off+uint32(len(b))])
	return nil
}

// Slice returns a read-only view of [off, off+n) directly into the mapped
// buffer. Callers must not retain it across any EnsureFit call that might
// grow the region (see package doc).
func (r *Region) Slice(off, n uint32) ([]byte, error) {
	if err := r.check(off, n); err != nil {
		return nil, err
	}
	return r.mm[headerSize+off : headerSize+off+n], nil
}

// Flush persists dirty mmap pages to disk.
func (r *Region) Flush() error {
	if err := r.mm.Flush(); err != nil {
		return errs.Wrap(errs.IOError, err, "flush region")
	}
	return nil
}

// Close unmaps and closes the backing file.
func (r *Region) Close() error {
	var err error
	if r.mm != nil {
		if uerr := r.mm.Unmap(); uerr != nil {
			err = errors.Wrap(uerr, "unmap region")
		}
		r.mm = nil
	}
	if r.f != nil {
		if cerr := r.f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close region file")
		}
	}
	if err != nil {
		return errs.Wrap(errs.IOError, err, "close region")
	}
	return nil
}
