// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package baobab

import (
	"errors"

	"github.com/luxfi/baobab/varu"
)

// A content row carries up to two framed halves: the canonical entry bytes
// and the payload. Either half may be absent (an import stores entries
// without payloads). A row that fails to parse, from a torn write for
// example, reads as absent.
const (
	rowHasEntry   = 0x01
	rowHasPayload = 0x02
)

var errBadRow = errors.New("baobab: unreadable content row")

func encodeRow(entryBytes, payload []byte, hasPayload bool) []byte {
	var flags byte
	if entryBytes != nil {
		flags |= rowHasEntry
	}
	if hasPayload {
		flags |= rowHasPayload
	}
	out := []byte{flags}
	if entryBytes != nil {
		out = varu.Encode(out, uint64(len(entryBytes)))
		out = append(out, entryBytes...)
	}
	if hasPayload {
		out = varu.Encode(out, uint64(len(payload)))
		out = append(out, payload...)
	}
	return out
}

func decodeRow(val []byte) (entryBytes, payload []byte, hasPayload bool, err error) {
	if len(val) < 1 {
		return nil, nil, false, errBadRow
	}
	flags := val[0]
	cur := val[1:]
	half := func() ([]byte, error) {
		n, used, err := varu.Decode(cur)
		if err != nil {
			return nil, errBadRow
		}
		cur = cur[used:]
		if uint64(len(cur)) < n {
			return nil, errBadRow
		}
		h := append([]byte(nil), cur[:n]...)
		cur = cur[n:]
		return h, nil
	}
	if flags&rowHasEntry != 0 {
		if entryBytes, err = half(); err != nil {
			return nil, nil, false, err
		}
	}
	if flags&rowHasPayload != 0 {
		if payload, err = half(); err != nil {
			return nil, nil, false, err
		}
		hasPayload = true
	}
	if len(cur) != 0 {
		return nil, nil, false, errBadRow
	}
	return entryBytes, payload, hasPayload, nil
}
