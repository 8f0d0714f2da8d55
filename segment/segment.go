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

// Package segment is the facade that owns every region, index, and cache
// making up one search segment, and exposes the operations of spec.md §6:
// lifecycle, doc-id allocation, posting/label mutation, and query evaluation.
package segment

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/sbsummer/whistlepig/bitcache"
	"github.com/sbsummer/whistlepig/internal/config"
	"github.com/sbsummer/whistlepig/internal/errs"
	"github.com/sbsummer/whistlepig/internal/region"
	"github.com/sbsummer/whistlepig/internal/xlog"
	"github.com/sbsummer/whistlepig/labels"
	"github.com/sbsummer/whistlepig/postings"
	"github.com/sbsummer/whistlepig/query"
	"github.com/sbsummer/whistlepig/sentinel"
	"github.com/sbsummer/whistlepig/strmap"
	"github.com/sbsummer/whistlepig/strpool"
	"github.com/sbsummer/whistlepig/termhash"
)

const (
	stringPoolFile = "strings.region"
	textFile       = "text.region"
	labelsFile     = "labels.region"
	metaFile       = "meta.json"
	lockFile       = "segment.lock"
)

var deadKey = termhash.Key{FieldID: sentinel.DeadListField, WordID: sentinel.DeadListWord}

// Segment owns every subcomponent of one index shard (spec §2/§5): the
// string pool and its map, the term directory, both postings regions, a
// roaring-bitmap label cache, the next-doc-id counter, and the config it was
// opened with. All mutating operations are caller-serialized (spec §5); the
// flock only protects against two processes opening the same path at once.
type Segment struct {
	dir string
	cfg config.Config

	lock *flock.Flock

	pool  *strpool.Pool
	poolR *region.Region

	strs *strmap.Map

	terms *termhash.Table

	textR *region.Region
	lblR  *region.Region

	cache *bitcache.LabelCache

	maxDocID uint32
	corrupt  bool
}

// Create initializes a brand-new segment directory at dir.
func Create(dir string, cfg config.Config) (*Segment, error) {
	cfg = cfg.Normalize()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.IOError, err, "create segment dir %s", dir)
	}

	lk := flock.New(filepath.Join(dir, lockFile))
	ok, err := lk.TryLock()
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "lock segment %s", dir)
	}
	if !ok {
		return nil, errs.New(errs.IOError, "segment %s is already open by another process", dir)
	}

	poolR, err := region.Create(filepath.Join(dir, stringPoolFile), region.KindStringPool, uint32(cfg.InitialStringPoolSize))
	if err != nil {
		lk.Unlock()
		return nil, err
	}
	textR, err := region.Create(filepath.Join(dir, textFile), region.KindTextPostings, uint32(cfg.InitialPostingsSize))
	if err != nil {
		poolR.Close()
		lk.Unlock()
		return nil, err
	}
	lblR, err := region.Create(filepath.Join(dir, labelsFile), region.KindLabelPostings, uint32(cfg.InitialLabelsSize))
	if err != nil {
		textR.Close()
		poolR.Close()
		lk.Unlock()
		return nil, err
	}

	s := &Segment{
		dir:   dir,
		cfg:   cfg,
		lock:  lk,
		pool:  strpool.New(poolR),
		poolR: poolR,
		strs:  strmap.New(cfg.StringMapSlots),
		terms: termhash.New(cfg.TermHashSlots),
		textR: textR,
		lblR:  lblR,
		cache: bitcache.New(),
	}

	xlog.SetTrace(cfg.Trace)
	s.terms.EnsureFit(1)
	if _, err := s.terms.GetOrCreate(deadKey, sentinel.OffsetNone); err != nil {
		s.Unload()
		return nil, err
	}

	if err := s.flushSidecar(); err != nil {
		s.Unload()
		return nil, err
	}
	xlog.Trace("segment created", zap.String("dir", dir))
	return s, nil
}

// Open reopens a previously-created segment directory, replaying its sidecar
// to rebuild the in-memory string map, term hash, and label cache.
func Open(dir string) (*Segment, error) {
	lk := flock.New(filepath.Join(dir, lockFile))
	ok, err := lk.TryLock()
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "lock segment %s", dir)
	}
	if !ok {
		return nil, errs.New(errs.IOError, "segment %s is already open by another process", dir)
	}

	side, err := readSidecar(filepath.Join(dir, metaFile))
	if err != nil {
		lk.Unlock()
		return nil, err
	}
	cfg := config.Config{
		TermHashSlots:  side.TermHashSlots,
		StringMapSlots: side.StringMapSlots,
		GrowthFactor:   side.GrowthFactor,
		Trace:          side.Trace,
	}.Normalize()

	poolR, err := region.Open(filepath.Join(dir, stringPoolFile))
	if err != nil {
		lk.Unlock()
		return nil, err
	}
	textR, err := region.Open(filepath.Join(dir, textFile))
	if err != nil {
		poolR.Close()
		lk.Unlock()
		return nil, err
	}
	lblR, err := region.Open(filepath.Join(dir, labelsFile))
	if err != nil {
		textR.Close()
		poolR.Close()
		lk.Unlock()
		return nil, err
	}

	s := &Segment{
		dir:      dir,
		cfg:      cfg,
		lock:     lk,
		pool:     strpool.New(poolR),
		poolR:    poolR,
		strs:     strmap.Restore(cfg.StringMapSlots, toAnonStrEntries(side.StringEntries)),
		terms:    termhash.Restore(cfg.TermHashSlots, side.TermEntries),
		textR:    textR,
		lblR:     lblR,
		cache:    bitcache.New(),
		maxDocID: side.MaxDocID,
	}
	xlog.SetTrace(cfg.Trace)
	s.rebuildCache()
	xlog.Trace("segment opened", zap.String("dir", dir), zap.Uint32("max_docid", s.maxDocID))
	return s, nil
}

// rebuildCache replays every label's postings list into the bitcache; called
// after Open/RestoreSnapshot since the cache itself is never persisted.
func (s *Segment) rebuildCache() {
	for _, td := range s.terms.All() {
		if td.Key.FieldID != sentinel.LabelFieldID || sentinel.IsDeadList(td.Key.FieldID, td.Key.WordID) {
			continue
		}
		offset := td.PLH.HeadOffset
		for offset != sentinel.OffsetNone {
			p, err := labels.Read(s.lblR, offset)
			if err != nil {
				xlog.Error("rebuildCache: corrupt label walk", zap.Error(err))
				s.corrupt = true
				return
			}
			s.cache.Add(td.Key.WordID, p.DocID)
			offset = p.NextOffset
		}
	}
}

func toAnonStrEntries(in []strEntry) []struct {
	Hash     uint64
	StringID uint32
} {
	out := make([]struct {
		Hash     uint64
		StringID uint32
	}, len(in))
	for i, e := range in {
		out[i] = struct {
			Hash     uint64
			StringID uint32
		}{e.Hash, e.StringID}
	}
	return out
}

// Unload flushes the sidecar, closes every region, and releases the lock.
func (s *Segment) Unload() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if !s.corrupt {
		record(s.flushSidecar())
	}
	if s.textR != nil {
		record(s.textR.Close())
	}
	if s.poolR != nil {
		record(s.poolR.Close())
	}
	if s.lblR != nil {
		record(s.lblR.Close())
	}
	if s.lock != nil {
		record(s.lock.Unlock())
	}
	return first
}

func (s *Segment) checkCorrupt() error {
	if s.corrupt {
		return errs.ErrCorrupt
	}
	return nil
}

func (s *Segment) fail(err error) error {
	if errs.Is(err, errs.Corruption) {
		s.corrupt = true
	}
	return err
}

// GrabDocID allocates the next monotonic document id.
func (s *Segment) GrabDocID() (uint32, error) {
	if err := s.checkCorrupt(); err != nil {
		return 0, err
	}
	s.maxDocID++
	return s.maxDocID, nil
}

// MaxDocID reports the highest doc id allocated so far (0 if none).
func (s *Segment) MaxDocID() uint32 { return s.maxDocID }

// EnsureFit grows the text postings region, label postings region, and the
// string pool/map/term-hash indices to accommodate an upcoming mutation of
// the given approximate sizes, per spec §5/§6.
func (s *Segment) EnsureFit(textPostingBytes, labelPostingBytes uint32, fieldLen, wordLen int) error {
	if err := s.checkCorrupt(); err != nil {
		return err
	}
	if err := s.poolR.EnsureFit(strpool.SizeOf(fieldLen)+strpool.SizeOf(wordLen), s.cfg.GrowthFactor); err != nil {
		return s.fail(err)
	}
	if textPostingBytes > 0 {
		if err := s.textR.EnsureFit(textPostingBytes, s.cfg.GrowthFactor); err != nil {
			return s.fail(err)
		}
	}
	if labelPostingBytes > 0 {
		if err := s.lblR.EnsureFit(labelPostingBytes, s.cfg.GrowthFactor); err != nil {
			return s.fail(err)
		}
	}
	s.strs.EnsureFit(2)
	s.terms.EnsureFit(1)
	return nil
}

// internKey interns field and word and forms their term key. fieldID is
// always nonzero for text terms (spec §4.3 step 1).
func (s *Segment) internKey(field, word string) (termhash.Key, error) {
	fid, err := s.strs.Intern(s.pool, []byte(field))
	if err != nil {
		return termhash.Key{}, s.fail(err)
	}
	wid, err := s.strs.Intern(s.pool, []byte(word))
	if err != nil {
		return termhash.Key{}, s.fail(err)
	}
	return termhash.Key{FieldID: fid, WordID: wid}, nil
}

// AddPosting appends a posting for (field, word, docID) with the given
// ascending positions, linking it at the head of that term's list (spec §4.3).
// Callers must call EnsureFit beforehand with room for this posting.
func (s *Segment) AddPosting(field, word string, docID uint32, positions []uint16) error {
	if err := s.checkCorrupt(); err != nil {
		return err
	}
	if docID == sentinel.DocIDNone {
		return errs.New(errs.InvalidArgument, "can't add a posting to doc 0")
	}
	key, err := s.internKey(field, word)
	if err != nil {
		return err
	}
	plh, err := s.terms.GetOrCreate(key, sentinel.OffsetNone)
	if err != nil {
		return s.fail(err)
	}
	headDocID, err := postings.HeadDocID(s.textR, plh.HeadOffset)
	if err != nil {
		return s.fail(err)
	}
	if headDocID >= docID {
		return s.fail(errs.New(errs.Corruption, "postings for %s/%s: new doc %d does not precede head doc %d", field, word, docID, headDocID))
	}
	off, err := postings.Append(s.textR, docID, positions, plh.HeadOffset)
	if err != nil {
		return s.fail(err)
	}
	plh.HeadOffset = off
	plh.Count++
	xlog.Trace("add posting", zap.String("field", field), zap.String("word", word), zap.Uint32("docid", docID))
	return nil
}

// AddLabel attaches label to docID, a no-op if already present (spec §4.4).
// Callers must call EnsureFit beforehand with room for one label posting.
func (s *Segment) AddLabel(label string, docID uint32) error {
	if err := s.checkCorrupt(); err != nil {
		return err
	}
	wid, err := s.strs.Intern(s.pool, []byte(label))
	if err != nil {
		return s.fail(err)
	}
	key := termhash.Key{FieldID: sentinel.LabelFieldID, WordID: wid}
	plh, err := s.terms.GetOrCreate(key, sentinel.OffsetNone)
	if err != nil {
		return s.fail(err)
	}
	deadPLH, _ := s.terms.Get(deadKey)
	if err := labels.Add(s.lblR, docID, plh, deadPLH); err != nil {
		return s.fail(err)
	}
	s.cache.Add(wid, docID)
	xlog.Trace("add label", zap.String("label", label), zap.Uint32("docid", docID))
	return nil
}

// RemoveLabel detaches label from docID, a silent no-op if absent.
func (s *Segment) RemoveLabel(label string, docID uint32) error {
	if err := s.checkCorrupt(); err != nil {
		return err
	}
	wid, err := s.strs.Lookup(s.pool, []byte(label))
	if err != nil {
		return s.fail(err)
	}
	if wid == sentinel.StringIDNone {
		return nil // label never interned: nothing to remove
	}
	key := termhash.Key{FieldID: sentinel.LabelFieldID, WordID: wid}
	plh, ok := s.terms.Get(key)
	if !ok {
		return nil
	}
	deadPLH, _ := s.terms.Get(deadKey)
	if err := labels.Remove(s.lblR, docID, plh, deadPLH); err != nil {
		return s.fail(err)
	}
	s.cache.Remove(wid, docID)
	xlog.Trace("remove label", zap.String("label", label), zap.Uint32("docid", docID))
	return nil
}

// RunQuery compiles and evaluates q, returning up to limit doc ids in
// strictly descending order (spec §4.6). limit <= 0 means unlimited.
func (s *Segment) RunQuery(q query.Query, limit int) ([]uint32, error) {
	if err := s.checkCorrupt(); err != nil {
		return nil, err
	}
	cur, err := query.Compile(q, s)
	if err != nil {
		return nil, s.fail(err)
	}
	out, err := query.Run(cur, limit)
	if err != nil {
		return out, s.fail(err)
	}
	return out, nil
}

// LookupText implements query.Env.
func (s *Segment) LookupText(field, word string) (uint32, bool, error) {
	fid, err := s.strs.Lookup(s.pool, []byte(field))
	if err != nil {
		return 0, false, err
	}
	if fid == sentinel.StringIDNone {
		return 0, false, nil
	}
	wid, err := s.strs.Lookup(s.pool, []byte(word))
	if err != nil {
		return 0, false, err
	}
	if wid == sentinel.StringIDNone {
		return 0, false, nil
	}
	plh, ok := s.terms.Get(termhash.Key{FieldID: fid, WordID: wid})
	if !ok {
		return 0, false, nil
	}
	return plh.HeadOffset, true, nil
}

// LookupLabel implements query.Env.
func (s *Segment) LookupLabel(word string) (uint32, bool, error) {
	wid, err := s.strs.Lookup(s.pool, []byte(word))
	if err != nil {
		return 0, false, err
	}
	if wid == sentinel.StringIDNone {
		return 0, false, nil
	}
	plh, ok := s.terms.Get(termhash.Key{FieldID: sentinel.LabelFieldID, WordID: wid})
	if !ok {
		return 0, false, nil
	}
	return plh.HeadOffset, true, nil
}

// TextRegion implements query.Env.
func (s *Segment) TextRegion() *region.Region { return s.textR }

// LabelRegion implements query.Env.
func (s *Segment) LabelRegion() *region.Region { return s.lblR }

var _ query.Env = (*Segment)(nil)
