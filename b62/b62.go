// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package b62 renders 32-byte keys as fixed-width 43-character Base62
// strings, the canonical public identifier form for log authors. The
// alphabet is 0-9A-Za-z and output is zero-padded so every identifier has
// the same width regardless of leading zero bytes in the key.
package b62

import (
	"errors"
	"math/big"
)

const (
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// KeySize is the raw key width in bytes.
	KeySize = 32
	// EncodedSize is the identifier width in characters.
	EncodedSize = 43
)

var (
	ErrBadLength   = errors.New("b62: wrong input length")
	ErrBadAlphabet = errors.New("b62: character outside Base62 alphabet")
	ErrOutOfRange  = errors.New("b62: identifier exceeds 32 bytes")

	revAlphabet [256]int8
)

func init() {
	for i := range revAlphabet {
		revAlphabet[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		revAlphabet[alphabet[i]] = int8(i)
	}
}

// Encode returns the 43-character Base62 identifier for a 32-byte key.
func Encode(key []byte) (string, error) {
	if len(key) != KeySize {
		return "", ErrBadLength
	}
	n := new(big.Int).SetBytes(key)
	base := big.NewInt(62)
	mod := new(big.Int)
	out := make([]byte, EncodedSize)
	for i := EncodedSize - 1; i >= 0; i-- {
		n.DivMod(n, base, mod)
		out[i] = alphabet[mod.Int64()]
	}
	return string(out), nil
}

// Decode converts a 43-character Base62 identifier back to its 32-byte key.
func Decode(s string) ([]byte, error) {
	if len(s) != EncodedSize {
		return nil, ErrBadLength
	}
	n := new(big.Int)
	base := big.NewInt(62)
	for i := 0; i < len(s); i++ {
		d := revAlphabet[s[i]]
		if d < 0 {
			return nil, ErrBadAlphabet
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(d)))
	}
	b := n.Bytes()
	if len(b) > KeySize {
		return nil, ErrOutOfRange
	}
	key := make([]byte, KeySize)
	copy(key[KeySize-len(b):], b)
	return key, nil
}

// Valid reports whether s is a well-formed 43-character identifier.
func Valid(s string) bool {
	_, err := Decode(s)
	return err == nil
}
