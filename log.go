// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package baobab

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"

	"github.com/luxfi/baobab/b62"
	"github.com/luxfi/baobab/entry"
	"github.com/luxfi/baobab/identity"
	"github.com/luxfi/baobab/lipmaa"
	"github.com/luxfi/baobab/spool"
	"github.com/luxfi/baobab/yamf"
)

// row fetches and parses one content row. Rows that are absent or
// unreadable both surface as ErrNotFound.
func (s *Store) row(author string, logID, seq uint64, clump string) (entryBytes, payload []byte, hasPayload bool, err error) {
	val, err := s.sp.Get(spool.Content, clump, contentKey(author, logID, seq))
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, false, ErrNotFound
	}
	if err != nil {
		return nil, nil, false, err
	}
	entryBytes, payload, hasPayload, err = decodeRow(val)
	if err != nil {
		return nil, nil, false, ErrNotFound
	}
	return entryBytes, payload, hasPayload, nil
}

func (s *Store) entryBytes(author string, logID, seq uint64, clump string) []byte {
	eb, _, _, err := s.row(author, logID, seq, clump)
	if err != nil {
		return nil
	}
	return eb
}

// lookup builds the predecessor accessor validation uses.
func (s *Store) lookup(author string, logID uint64, clump string) entry.Lookup {
	return func(seq uint64) []byte {
		return s.entryBytes(author, logID, seq, clump)
	}
}

// Append signs a new entry over payload at the head of the author's log
// and stores entry and payload. The author alias must resolve in the
// identity registry, and every entry the new links point at must be
// locally present.
func (s *Store) Append(alias string, payload []byte, opts ...Option) (*entry.Entry, error) {
	o := applyOpts(opts)
	if uint64(len(payload)) > entry.MaxPayloadSize {
		return nil, fmt.Errorf("%w: %v", ErrImproperArguments, entry.ErrPayloadTooLarge)
	}
	priv, err := s.ids.Signer(alias)
	if err != nil {
		return nil, err
	}
	pub, err := s.ids.Key(alias, identity.PublicKey)
	if err != nil {
		return nil, err
	}
	author, err := b62.Encode(pub)
	if err != nil {
		return nil, err
	}

	max, err := s.maxSeq(author, o)
	if err != nil {
		return nil, err
	}
	seq := max + 1

	e := &entry.Entry{
		Tag:         entry.TagEntry,
		LogID:       o.logID,
		Seq:         seq,
		Size:        uint64(len(payload)),
		PayloadHash: yamf.Hash(payload),
		Payload:     payload,
	}
	copy(e.Author[:], pub)

	if e.HasBacklink() {
		prev := s.entryBytes(author, o.logID, seq-1, o.clump)
		if prev == nil {
			return nil, fmt.Errorf("%w: entry %d", ErrBrokenChain, seq-1)
		}
		e.Backlink = yamf.Hash(prev)
	}
	if e.HasLipmaaLink() {
		target := lipmaa.Link(seq)
		skip := s.entryBytes(author, o.logID, target, o.clump)
		if skip == nil {
			return nil, fmt.Errorf("%w: entry %d", ErrBrokenChain, target)
		}
		e.LipmaaLink = yamf.Hash(skip)
	}

	if err := e.Sign(priv); err != nil {
		return nil, err
	}
	raw, err := e.Encode()
	if err != nil {
		return nil, err
	}
	key := contentKey(author, o.logID, seq)
	if err := s.sp.Put(spool.Content, o.clump, key, encodeRow(raw, payload, true)); err != nil {
		return nil, err
	}
	s.log.Debug("appended entry", "author", author, "log_id", o.logID, "seqnum", seq, "size", e.Size)
	return e, nil
}

// Entry retrieves one entry by author reference and sequence number. The
// returned entry carries its canonical bytes and, when stored, its
// payload. With WithRevalidate the entry is re-validated against its
// payload and locally available predecessors before being returned.
func (s *Store) Entry(author string, seq uint64, opts ...Option) (*entry.Entry, error) {
	o := applyOpts(opts)
	a, err := s.ids.AsBase62(author)
	if err != nil {
		return nil, err
	}
	eb, payload, hasPayload, err := s.row(a, o.logID, seq, o.clump)
	if err != nil {
		return nil, err
	}
	if eb == nil {
		return nil, ErrNotFound
	}
	e, err := entry.Decode(eb)
	if err != nil {
		return nil, fmt.Errorf("stored entry %d: %w", seq, err)
	}
	if hasPayload {
		e.Payload = payload
	}
	if o.revalidate {
		if _, err := entry.Validate(e, e.Payload, s.lookup(a, o.logID, o.clump)); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (s *Store) maxSeq(author string, o callOpts) (uint64, error) {
	seqs, err := s.allSeqs(author, o)
	if err != nil {
		return 0, err
	}
	if len(seqs) == 0 {
		return 0, nil
	}
	return seqs[len(seqs)-1], nil
}

func (s *Store) allSeqs(author string, o callOpts) ([]uint64, error) {
	keys, err := s.sp.Match(spool.Content, o.clump, logPrefix(author, o.logID))
	if err != nil {
		return nil, err
	}
	seqs := make([]uint64, 0, len(keys))
	for _, k := range keys {
		if _, _, seq, ok := parseContentKey(k); ok {
			seqs = append(seqs, seq)
		}
	}
	return seqs, nil
}

// MaxSeq returns the author's highest stored sequence number, 0 when the
// log is empty.
func (s *Store) MaxSeq(author string, opts ...Option) (uint64, error) {
	o := applyOpts(opts)
	a, err := s.ids.AsBase62(author)
	if err != nil {
		return 0, err
	}
	return s.maxSeq(a, o)
}

// AllSeqs returns the author's stored sequence numbers, ascending.
func (s *Store) AllSeqs(author string, opts ...Option) ([]uint64, error) {
	o := applyOpts(opts)
	a, err := s.ids.AsBase62(author)
	if err != nil {
		return nil, err
	}
	return s.allSeqs(a, o)
}

// CertificatePool returns, in descending order, the sequence numbers that
// certify entry seq and are locally present within the current log head.
func (s *Store) CertificatePool(author string, seq uint64, opts ...Option) ([]uint64, error) {
	o := applyOpts(opts)
	a, err := s.ids.AsBase62(author)
	if err != nil {
		return nil, err
	}
	return s.certPool(a, seq, o)
}

func (s *Store) certPool(author string, seq uint64, o callOpts) ([]uint64, error) {
	max, err := s.maxSeq(author, o)
	if err != nil {
		return nil, err
	}
	var pool []uint64
	for _, n := range lipmaa.CertPool(seq) {
		if n > max {
			continue
		}
		if s.entryBytes(author, o.logID, n, o.clump) != nil {
			pool = append(pool, n)
		}
	}
	return pool, nil
}

// LogAt returns the stored entries of the certificate pool of seq,
// ascending.
func (s *Store) LogAt(author string, seq uint64, opts ...Option) ([]*entry.Entry, error) {
	o := applyOpts(opts)
	a, err := s.ids.AsBase62(author)
	if err != nil {
		return nil, err
	}
	pool, err := s.certPool(a, seq, o)
	if err != nil {
		return nil, err
	}
	entries := make([]*entry.Entry, 0, len(pool))
	for i := len(pool) - 1; i >= 0; i-- {
		e, err := s.Entry(a, pool[i], opts...)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// LogRange returns the stored entries with first <= seq <= last,
// ascending. The range must satisfy first >= 2 and last >= first.
func (s *Store) LogRange(author string, first, last uint64, opts ...Option) ([]*entry.Entry, error) {
	if first < 2 || last < first {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrImproperRange, first, last)
	}
	o := applyOpts(opts)
	a, err := s.ids.AsBase62(author)
	if err != nil {
		return nil, err
	}
	seqs, err := s.allSeqs(a, o)
	if err != nil {
		return nil, err
	}
	var entries []*entry.Entry
	for _, seq := range seqs {
		if seq < first || seq > last {
			continue
		}
		e, err := s.Entry(a, seq, opts...)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FullLog returns every stored entry of the author's log, ascending.
func (s *Store) FullLog(author string, opts ...Option) ([]*entry.Entry, error) {
	o := applyOpts(opts)
	a, err := s.ids.AsBase62(author)
	if err != nil {
		return nil, err
	}
	seqs, err := s.allSeqs(a, o)
	if err != nil {
		return nil, err
	}
	entries := make([]*entry.Entry, 0, len(seqs))
	for _, seq := range seqs {
		e, err := s.Entry(a, seq, opts...)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Compact drops every entry of the author's log outside the certificate
// pool of its latest entry, returning the dropped sequence numbers,
// ascending. The latest entry stays verifiable back to entry 1.
func (s *Store) Compact(author string, opts ...Option) ([]uint64, error) {
	o := applyOpts(opts)
	a, err := s.ids.AsBase62(author)
	if err != nil {
		return nil, err
	}
	seqs, err := s.allSeqs(a, o)
	if err != nil {
		return nil, err
	}
	if len(seqs) == 0 {
		return nil, nil
	}
	last := seqs[len(seqs)-1]
	pool, err := s.certPool(a, last, o)
	if err != nil {
		return nil, err
	}
	keep := make(map[uint64]struct{}, len(pool))
	for _, n := range pool {
		keep[n] = struct{}{}
	}
	var dropped []uint64
	for _, seq := range seqs {
		if _, ok := keep[seq]; ok {
			continue
		}
		if err := s.sp.Delete(spool.Content, o.clump, contentKey(a, o.logID, seq)); err != nil {
			return dropped, err
		}
		dropped = append(dropped, seq)
	}
	s.log.Debug("compacted log", "author", a, "log_id", o.logID, "dropped", len(dropped), "kept", len(pool))
	return dropped, nil
}

// Purge removes entries by author and log id scope. AllAuthors and
// AllLogs widen either axis; a specific author may be given in any
// reference form. Returns the clump's remaining stored logs.
func (s *Store) Purge(author string, logID int64, opts ...Option) ([]LogInfo, error) {
	o := applyOpts(opts)
	if logID < 0 && logID != AllLogs {
		return nil, fmt.Errorf("%w: negative log id", ErrImproperArguments)
	}
	switch {
	case author == AllAuthors && logID == AllLogs:
		if err := s.sp.Truncate(spool.Content, o.clump); err != nil {
			return nil, err
		}
	case author == AllAuthors:
		keys, err := s.sp.Match(spool.Content, o.clump, nil)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if _, id, _, ok := parseContentKey(k); ok && id == uint64(logID) {
				if err := s.sp.Delete(spool.Content, o.clump, k); err != nil {
					return nil, err
				}
			}
		}
	default:
		a, err := s.ids.AsBase62(author)
		if err != nil {
			return nil, err
		}
		prefix := []byte(a)
		if logID != AllLogs {
			prefix = logPrefix(a, uint64(logID))
		}
		if _, err := s.sp.MatchDelete(spool.Content, o.clump, prefix); err != nil {
			return nil, err
		}
	}
	return s.StoredInfo(opts...)
}
