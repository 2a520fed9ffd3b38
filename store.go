// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package baobab implements a local store and verifier for Bamboo
// append-only logs: per-author, per-log sequences of Ed25519-signed
// entries chained by backlinks and lipmaa skip links.
//
// A Store wraps a spool directory and exposes appending, retrieval,
// certificate-pool queries, compaction, purging, identity management, and
// bulk interchange. Entries are addressed by (author, log id, sequence
// number) within a named clump partition.
package baobab

import (
	"encoding/binary"

	log "github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/baobab/b62"
	"github.com/luxfi/baobab/identity"
	"github.com/luxfi/baobab/spool"
)

// DefaultClump is the clump used when a call does not name one.
const DefaultClump = spool.DefaultClump

// AllAuthors selects every author in a purge.
const AllAuthors = "*"

// AllLogs selects every log id in a purge.
const AllLogs int64 = -1

// Store is the handle to one local spool and its logs.
type Store struct {
	sp  *spool.Spool
	ids *identity.Registry
	log log.Logger
}

type storeCfg struct {
	logger log.Logger
	reg    prometheus.Registerer
	mem    bool
}

// StoreOption configures Open.
type StoreOption func(*storeCfg)

// WithLogger replaces the default logger.
func WithLogger(l log.Logger) StoreOption {
	return func(c *storeCfg) { c.logger = l }
}

// WithRegisterer sets the Prometheus registerer handed to the storage
// engine.
func WithRegisterer(r prometheus.Registerer) StoreOption {
	return func(c *storeCfg) { c.reg = r }
}

func newStore(cfg storeCfg, sp *spool.Spool) *Store {
	return &Store{sp: sp, ids: identity.New(sp), log: cfg.logger}
}

func applyStoreOpts(opts []StoreOption) storeCfg {
	cfg := storeCfg{
		logger: log.NewTestLogger(log.InfoLevel),
		reg:    prometheus.NewRegistry(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// Open opens (creating if needed) the store rooted at the spool directory.
func Open(spoolDir string, opts ...StoreOption) (*Store, error) {
	cfg := applyStoreOpts(opts)
	sp, err := spool.Open(spoolDir, spool.WithLogger(cfg.logger), spool.WithRegisterer(cfg.reg))
	if err != nil {
		return nil, err
	}
	return newStore(cfg, sp), nil
}

// OpenMemory opens a store backed by in-memory tables.
func OpenMemory(opts ...StoreOption) *Store {
	cfg := applyStoreOpts(opts)
	return newStore(cfg, spool.OpenMemory(spool.WithLogger(cfg.logger), spool.WithRegisterer(cfg.reg)))
}

// Close releases the underlying tables.
func (s *Store) Close() error { return s.sp.Close() }

// Identities exposes the identity registry of this store.
func (s *Store) Identities() *identity.Registry { return s.ids }

// NewIdentity creates (or overwrites) an identity; see identity.Create.
func (s *Store) NewIdentity(alias string, seed []byte) (string, error) {
	return s.ids.Create(alias, seed)
}

// AsBase62 resolves any author reference form to its canonical identifier.
func (s *Store) AsBase62(ref string) (string, error) {
	return s.ids.AsBase62(ref)
}

// Option adjusts one call.
type Option func(*callOpts)

type callOpts struct {
	logID      uint64
	clump      string
	revalidate bool
	replace    bool
}

func applyOpts(opts []Option) callOpts {
	o := callOpts{clump: DefaultClump}
	for _, f := range opts {
		f(&o)
	}
	return o
}

// WithLogID selects the per-author log discriminator (default 0).
func WithLogID(id uint64) Option {
	return func(o *callOpts) { o.logID = id }
}

// WithClump selects the clump partition (default "default").
func WithClump(clump string) Option {
	return func(o *callOpts) { o.clump = clump }
}

// WithRevalidate re-runs entry validation on read.
func WithRevalidate() Option {
	return func(o *callOpts) { o.revalidate = true }
}

// WithReplace lets an import overwrite an existing row.
func WithReplace() Option {
	return func(o *callOpts) { o.replace = true }
}

// Content rows are keyed author identifier + big-endian log id + big-endian
// sequence number, so prefix iteration walks logs and sequences in order.
const (
	contentKeySize = b62.EncodedSize + 8 + 8
	logPrefixSize  = b62.EncodedSize + 8
)

func contentKey(author string, logID, seq uint64) []byte {
	k := make([]byte, contentKeySize)
	copy(k, author)
	binary.BigEndian.PutUint64(k[b62.EncodedSize:], logID)
	binary.BigEndian.PutUint64(k[logPrefixSize:], seq)
	return k
}

func logPrefix(author string, logID uint64) []byte {
	return contentKey(author, logID, 0)[:logPrefixSize]
}

func parseContentKey(k []byte) (author string, logID, seq uint64, ok bool) {
	if len(k) != contentKeySize {
		return "", 0, 0, false
	}
	return string(k[:b62.EncodedSize]),
		binary.BigEndian.Uint64(k[b62.EncodedSize:logPrefixSize]),
		binary.BigEndian.Uint64(k[logPrefixSize:]),
		true
}
