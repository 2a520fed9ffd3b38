// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package varu implements the VarU64 variable-length unsigned integer
// encoding used throughout the Bamboo wire format. VarU64 is not LEB128:
// values up to 247 occupy a single byte, larger values are prefixed with a
// marker byte 248..255 naming the big-endian width that follows.
package varu

import "errors"

var (
	ErrUnterminated  = errors.New("varu: input too short")
	ErrNonCanonical  = errors.New("varu: non-canonical encoding")
	ErrValueTooLarge = errors.New("varu: value does not fit in 8 bytes")
)

// MaxLen is the longest possible VarU64 encoding (marker + 8 bytes).
const MaxLen = 9

// Len returns the encoded length of n in bytes.
func Len(n uint64) int {
	if n < 248 {
		return 1
	}
	return 1 + byteWidth(n)
}

func byteWidth(n uint64) int {
	w := 0
	for n > 0 {
		w++
		n >>= 8
	}
	return w
}

// Encode appends the VarU64 encoding of n to dst and returns the result.
func Encode(dst []byte, n uint64) []byte {
	if n < 248 {
		return append(dst, byte(n))
	}
	w := byteWidth(n)
	dst = append(dst, byte(247+w))
	for i := w - 1; i >= 0; i-- {
		dst = append(dst, byte(n>>(8*i)))
	}
	return dst
}

// Decode reads a VarU64 from the front of b, returning the value and the
// number of bytes consumed. Non-canonical encodings (a value that fits in
// fewer bytes than were used) are rejected.
func Decode(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrUnterminated
	}
	m := b[0]
	if m < 248 {
		return uint64(m), 1, nil
	}
	w := int(m) - 247
	if len(b) < 1+w {
		return 0, 0, ErrUnterminated
	}
	var n uint64
	for _, c := range b[1 : 1+w] {
		n = n<<8 | uint64(c)
	}
	// Canonical form uses the shortest possible width.
	if w == 1 {
		if n < 248 {
			return 0, 0, ErrNonCanonical
		}
	} else if byteWidth(n) != w {
		return 0, 0, ErrNonCanonical
	}
	return n, 1 + w, nil
}
