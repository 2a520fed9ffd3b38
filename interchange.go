// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package baobab

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/luxfi/baobab/b62"
	"github.com/luxfi/baobab/entry"
	"github.com/luxfi/baobab/spool"
	"github.com/luxfi/baobab/varu"
)

// LogInfo summarizes one stored log.
type LogInfo struct {
	Author string
	LogID  uint64
	MaxSeq uint64
}

// StoredInfo returns the clump's stored logs as (author, log id, max seq)
// triples, sorted by author then log id.
func (s *Store) StoredInfo(opts ...Option) ([]LogInfo, error) {
	o := applyOpts(opts)
	keys, err := s.sp.Match(spool.Content, o.clump, nil)
	if err != nil {
		return nil, err
	}
	var out []LogInfo
	for _, k := range keys {
		author, logID, seq, ok := parseContentKey(k)
		if !ok {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Author == author && out[n-1].LogID == logID {
			out[n-1].MaxSeq = seq
			continue
		}
		out = append(out, LogInfo{Author: author, LogID: logID, MaxSeq: seq})
	}
	return out, nil
}

// CurrentHash returns the cached digest of the clump's content table or of
// the global identity table.
func (s *Store) CurrentHash(table spool.Table, opts ...Option) (string, error) {
	o := applyOpts(opts)
	h, err := s.sp.CurrentHash(table, o.clump)
	if errors.Is(err, spool.ErrNoDigest) {
		return "", fmt.Errorf("%w: table %s has no digest", ErrImproperArguments, table)
	}
	return h, err
}

// ImportResult reports the outcome for one element of an import batch.
type ImportResult struct {
	Author    string
	LogID     uint64
	Seq       uint64
	Certified bool
	Err       error
}

// ImportBinaries decodes, validates, and stores a batch of raw binary
// entries, returning one outcome per input in input order. Entries whose
// predecessors are not yet stored are accepted uncertified. An existing
// row with different entry bytes fails with ErrConflict; with identical
// bytes the existing row is kept unless WithReplace rewrites it.
func (s *Store) ImportBinaries(bins [][]byte, opts ...Option) []ImportResult {
	o := applyOpts(opts)
	out := make([]ImportResult, len(bins))
	for i, bin := range bins {
		out[i] = s.importOne(bin, o)
	}
	return out
}

func (s *Store) importOne(bin []byte, o callOpts) ImportResult {
	e, err := entry.Decode(bin)
	if err != nil {
		return ImportResult{Err: err}
	}
	author, err := b62.Encode(e.Author[:])
	if err != nil {
		return ImportResult{Err: err}
	}
	res := ImportResult{Author: author, LogID: e.LogID, Seq: e.Seq}

	certified, err := entry.Validate(e, nil, s.lookup(author, e.LogID, o.clump))
	if err != nil {
		res.Err = err
		return res
	}
	res.Certified = certified

	raw, err := e.Raw()
	if err != nil {
		res.Err = err
		return res
	}

	existing, payload, hasPayload, rowErr := s.row(author, e.LogID, e.Seq, o.clump)
	if rowErr == nil && existing != nil {
		if !bytes.Equal(existing, raw) {
			res.Err = fmt.Errorf("%w: (%s, %d, %d)", ErrConflict, author, e.LogID, e.Seq)
			return res
		}
		if !o.replace {
			return res
		}
	}
	key := contentKey(author, e.LogID, e.Seq)
	if err := s.sp.Put(spool.Content, o.clump, key, encodeRow(raw, payload, hasPayload)); err != nil {
		res.Err = err
	}
	return res
}

// Interchange files carry a magic header followed by length-framed
// key/value records.
const interchangeMagic = "BBX1"

func exportTable(s *spool.Spool, t spool.Table, clump, path string) error {
	buf := []byte(interchangeMagic)
	err := s.Fold(t, clump, func(key, val []byte) error {
		buf = varu.Encode(buf, uint64(len(key)))
		buf = append(buf, key...)
		buf = varu.Encode(buf, uint64(len(val)))
		buf = append(buf, val...)
		return nil
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o640)
}

func importTable(s *spool.Spool, t spool.Table, clump, path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(buf) < len(interchangeMagic) || string(buf[:len(interchangeMagic)]) != interchangeMagic {
		return fmt.Errorf("%w: %s is not an interchange file", ErrImproperArguments, path)
	}
	cur := buf[len(interchangeMagic):]
	field := func() ([]byte, error) {
		n, used, err := varu.Decode(cur)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated interchange file %s", ErrImproperArguments, path)
		}
		cur = cur[used:]
		if uint64(len(cur)) < n {
			return nil, fmt.Errorf("%w: truncated interchange file %s", ErrImproperArguments, path)
		}
		f := append([]byte(nil), cur[:n]...)
		cur = cur[n:]
		return f, nil
	}
	for len(cur) > 0 {
		key, err := field()
		if err != nil {
			return err
		}
		val, err := field()
		if err != nil {
			return err
		}
		if err := s.Put(t, clump, key, val); err != nil {
			return err
		}
	}
	return nil
}

// ExportStore serializes the entire spool, every clump's content plus the
// identity table, into dir.
func (s *Store) ExportStore(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	if err := exportTable(s.sp, spool.Identity, "", filepath.Join(dir, "identity.bbx")); err != nil {
		return err
	}
	clumps, err := s.sp.Clumps()
	if err != nil {
		return err
	}
	for _, clump := range clumps {
		if err := exportTable(s.sp, spool.Content, clump, filepath.Join(dir, clump, "content.bbx")); err != nil {
			return err
		}
	}
	s.log.Debug("exported store", "dir", dir, "clumps", len(clumps))
	return nil
}

// ImportStore re-materializes a spool previously written by ExportStore,
// merging its rows into this store.
func (s *Store) ImportStore(dir string) error {
	idFile := filepath.Join(dir, "identity.bbx")
	if _, err := os.Stat(idFile); err == nil {
		if err := importTable(s.sp, spool.Identity, "", idFile); err != nil {
			return err
		}
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, ent := range ents {
		if !ent.IsDir() {
			continue
		}
		cFile := filepath.Join(dir, ent.Name(), "content.bbx")
		if _, err := os.Stat(cFile); err != nil {
			continue
		}
		if err := importTable(s.sp, spool.Content, ent.Name(), cFile); err != nil {
			return err
		}
	}
	return nil
}
