// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package spool is the content-addressed local store behind a log handle.
// It exposes three logical tables over an embedded key/value engine:
// content and status, each partitioned by clump, and a single global
// identity table. Tables are opened lazily and held open for the life of
// the spool.
//
// Any mutation of a content or identity table invalidates that table's
// cached digest in the status table; CurrentHash recomputes and re-caches
// it on demand.
package spool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/database/leveldb"
	"github.com/luxfi/database/memdb"
	log "github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zeebo/blake3"

	"github.com/luxfi/baobab/b62"
	"github.com/luxfi/baobab/varu"
)

// DefaultClump is the clump used when callers do not name one.
const DefaultClump = "default"

// Table names one of the spool's logical tables.
type Table int

const (
	Content Table = iota
	Identity
	Status
)

func (t Table) String() string {
	switch t {
	case Content:
		return "content"
	case Identity:
		return "identity"
	case Status:
		return "status"
	default:
		return fmt.Sprintf("table(%d)", int(t))
	}
}

var (
	ErrClosed   = errors.New("spool: closed")
	ErrBadClump = errors.New("spool: clump id must be a non-empty string")
	ErrNoDigest = errors.New("spool: table has no digest")
)

// Spool owns the per-table database handles under one spool directory.
type Spool struct {
	dir string
	mem bool
	log log.Logger
	reg prometheus.Registerer

	mu     sync.Mutex
	dbs    map[string]database.Database
	closed bool
}

// Option configures a Spool.
type Option func(*Spool)

// WithLogger replaces the default logger.
func WithLogger(l log.Logger) Option {
	return func(s *Spool) { s.log = l }
}

// WithRegisterer sets the Prometheus registerer handed to the storage
// engine.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(s *Spool) { s.reg = r }
}

func newSpool(opts []Option) *Spool {
	s := &Spool{
		log: log.NewTestLogger(log.InfoLevel),
		reg: prometheus.NewRegistry(),
		dbs: map[string]database.Database{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens (creating if needed) the spool rooted at dir.
func Open(dir string, opts ...Option) (*Spool, error) {
	if dir == "" {
		return nil, fmt.Errorf("spool: empty spool directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	s := newSpool(opts)
	s.dir = dir
	return s, nil
}

// OpenMemory opens a spool backed entirely by in-memory databases. Used by
// tests and by baobab.OpenMemory.
func OpenMemory(opts ...Option) *Spool {
	s := newSpool(opts)
	s.mem = true
	return s
}

func (s *Spool) path(t Table, clump string) (string, error) {
	if t == Identity {
		return "identity", nil
	}
	if clump == "" {
		return "", ErrBadClump
	}
	return filepath.Join(clump, t.String()), nil
}

// db returns the open database for (table, clump), opening it on first
// use. Caller must hold s.mu.
func (s *Spool) db(t Table, clump string) (database.Database, error) {
	if s.closed {
		return nil, ErrClosed
	}
	p, err := s.path(t, clump)
	if err != nil {
		return nil, err
	}
	if db, ok := s.dbs[p]; ok {
		return db, nil
	}
	var db database.Database
	if s.mem {
		db = memdb.New()
	} else {
		full := filepath.Join(s.dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			return nil, fmt.Errorf("create clump dir: %w", err)
		}
		db, err = leveldb.New(full, nil, s.log, s.reg)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
	}
	s.dbs[p] = db
	return db, nil
}

// invalidate drops the cached digest for a mutated table. Caller must hold
// s.mu.
func (s *Spool) invalidate(t Table, clump string) {
	if t == Status {
		return
	}
	if t == Identity {
		clump = DefaultClump
	}
	sdb, err := s.db(Status, clump)
	if err != nil {
		return
	}
	if err := sdb.Delete([]byte(t.String())); err != nil {
		s.log.Warn("spool: dropping stale digest failed", "table", t.String(), "clump", clump, "err", err)
	}
}

// Get fetches one row. Absent rows return database.ErrNotFound.
func (s *Spool) Get(t Table, clump string, key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.db(t, clump)
	if err != nil {
		return nil, err
	}
	return db.Get(key)
}

// Put stores one row, invalidating the table digest.
func (s *Spool) Put(t Table, clump string, key, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.db(t, clump)
	if err != nil {
		return err
	}
	if err := db.Put(key, val); err != nil {
		return err
	}
	s.invalidate(t, clump)
	return nil
}

// Delete removes one row, invalidating the table digest. Deleting an
// absent row is a no-op.
func (s *Spool) Delete(t Table, clump string, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.db(t, clump)
	if err != nil {
		return err
	}
	if err := db.Delete(key); err != nil {
		return err
	}
	s.invalidate(t, clump)
	return nil
}

// Match returns, in key order, all keys beginning with prefix.
func (s *Spool) Match(t Table, clump string, prefix []byte) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.db(t, clump)
	if err != nil {
		return nil, err
	}
	it := db.NewIteratorWithPrefix(prefix)
	defer it.Release()
	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()...))
	}
	return keys, it.Error()
}

// MatchDelete removes every row whose key begins with prefix, returning
// the removed keys in key order.
func (s *Spool) MatchDelete(t Table, clump string, prefix []byte) ([][]byte, error) {
	keys, err := s.Match(t, clump, prefix)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.db(t, clump)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if err := db.Delete(k); err != nil {
			return nil, err
		}
	}
	if len(keys) > 0 {
		s.invalidate(t, clump)
	}
	return keys, nil
}

// Truncate removes every row of the table.
func (s *Spool) Truncate(t Table, clump string) error {
	_, err := s.MatchDelete(t, clump, nil)
	return err
}

// Fold applies fn to every row in key order, stopping on the first error.
func (s *Spool) Fold(t Table, clump string, fn func(key, val []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.db(t, clump)
	if err != nil {
		return err
	}
	it := db.NewIterator()
	defer it.Release()
	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

// CurrentHash returns the cached digest of a content or identity table,
// computing and caching it when stale. The digest is the Base62 rendering
// of a BLAKE3 hash over the table's rows in key order.
func (s *Spool) CurrentHash(t Table, clump string) (string, error) {
	if t == Status {
		return "", ErrNoDigest
	}
	statusClump := clump
	if t == Identity {
		statusClump = DefaultClump
	}

	s.mu.Lock()
	sdb, err := s.db(Status, statusClump)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	if cached, err := sdb.Get([]byte(t.String())); err == nil {
		return string(cached), nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return "", err
	}

	h := blake3.New()
	err = s.Fold(t, clump, func(key, val []byte) error {
		h.Write(varu.Encode(nil, uint64(len(key))))
		h.Write(key)
		h.Write(varu.Encode(nil, uint64(len(val))))
		h.Write(val)
		return nil
	})
	if err != nil {
		return "", err
	}
	digest, err := b62.Encode(h.Sum(nil))
	if err != nil {
		return "", err
	}
	if err := sdb.Put([]byte(t.String()), []byte(digest)); err != nil {
		return "", err
	}
	return digest, nil
}

// Clumps lists the clump partitions known to the spool, sorted.
func (s *Spool) Clumps() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	set := map[string]struct{}{}
	if s.mem {
		for p := range s.dbs {
			if dir := filepath.Dir(p); dir != "." {
				set[dir] = struct{}{}
			}
		}
	} else {
		ents, err := os.ReadDir(s.dir)
		if err != nil {
			return nil, err
		}
		for _, e := range ents {
			if e.IsDir() && e.Name() != "identity" {
				set[e.Name()] = struct{}{}
			}
		}
	}
	clumps := make([]string, 0, len(set))
	for c := range set {
		clumps = append(clumps, c)
	}
	sort.Strings(clumps)
	return clumps, nil
}

// Close releases every open table. Further use returns ErrClosed.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	for p, db := range s.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", p, err)
		}
	}
	s.dbs = nil
	return firstErr
}
