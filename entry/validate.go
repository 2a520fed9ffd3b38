// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package entry

import (
	"github.com/luxfi/baobab/lipmaa"
	"github.com/luxfi/baobab/yamf"
)

// Lookup resolves a sequence number of the same (author, log) to the
// canonical bytes of the stored entry, or nil when the entry is not
// locally available.
type Lookup func(seq uint64) []byte

// Validate checks e against its payload and its locally available
// predecessors.
//
// The signature is always verified. The payload hash and size are verified
// when payload is non-nil; each link is verified when the linked entry is
// available through lookup. A missing payload or predecessor defers that
// check rather than failing it: the entry is acceptable but not yet fully
// certified, which the certified result reports.
func Validate(e *Entry, payload []byte, lookup Lookup) (certified bool, err error) {
	if err := e.checkFields(); err != nil {
		return false, err
	}
	if err := e.VerifySignature(); err != nil {
		return false, err
	}

	certified = true
	if payload == nil {
		certified = false
	} else {
		if uint64(len(payload)) != e.Size || !yamf.Equal(e.PayloadHash, payload) {
			return false, ErrInvalidPayload
		}
	}

	if e.Seq > 1 {
		if prev := lookupBytes(lookup, e.Seq-1); prev == nil {
			certified = false
		} else if !yamf.Equal(e.Backlink, prev) {
			return false, ErrInvalidLink
		}
		if e.HasLipmaaLink() {
			if skip := lookupBytes(lookup, lipmaa.Link(e.Seq)); skip == nil {
				certified = false
			} else if !yamf.Equal(e.LipmaaLink, skip) {
				return false, ErrInvalidLink
			}
		}
	}
	return certified, nil
}

func lookupBytes(lookup Lookup, seq uint64) []byte {
	if lookup == nil {
		return nil
	}
	return lookup(seq)
}
