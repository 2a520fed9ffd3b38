// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package yamf implements the self-describing 66-byte hash used for every
// link and payload hash in the log format: a two-byte tag naming the
// construction (BLAKE2b, 64-byte digest) followed by the digest itself.
package yamf

import (
	"bytes"
	"errors"

	"golang.org/x/crypto/blake2b"
)

const (
	// DigestSize is the raw digest width.
	DigestSize = blake2b.Size
	// Size is the full tagged hash width.
	Size = 2 + DigestSize

	tagHash   = 0x01 // BLAKE2b
	tagLength = 0x40 // 64-byte digest
)

var ErrBadHash = errors.New("yamf: malformed hash")

// Hash returns the tagged BLAKE2b-512 hash of data.
func Hash(data []byte) []byte {
	sum := blake2b.Sum512(data)
	out := make([]byte, 0, Size)
	out = append(out, tagHash, tagLength)
	return append(out, sum[:]...)
}

// Check verifies that h is a well-formed tagged hash.
func Check(h []byte) error {
	if len(h) != Size || h[0] != tagHash || h[1] != tagLength {
		return ErrBadHash
	}
	return nil
}

// Equal reports whether h is a well-formed tagged hash of data.
func Equal(h, data []byte) bool {
	return Check(h) == nil && bytes.Equal(h, Hash(data))
}
