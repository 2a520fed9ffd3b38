// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package b62

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeZero(t *testing.T) {
	id, err := Encode(make([]byte, KeySize))
	if err != nil {
		t.Fatal(err)
	}
	if id != strings.Repeat("0", EncodedSize) {
		t.Fatalf("zero key encoded as %q", id)
	}
}

func TestRoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i*7 + 3)
	}
	id, err := Encode(key)
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != EncodedSize {
		t.Fatalf("identifier length %d", len(id))
	}
	back, err := Decode(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, key) {
		t.Fatalf("round trip mismatch: %x != %x", back, key)
	}
}

func TestLeadingZeroBytes(t *testing.T) {
	key := make([]byte, KeySize)
	key[KeySize-1] = 61
	id, err := Encode(key)
	if err != nil {
		t.Fatal(err)
	}
	if id != strings.Repeat("0", EncodedSize-1)+"z" {
		t.Fatalf("got %q", id)
	}
	back, err := Decode(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, key) {
		t.Fatal("round trip mismatch")
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode("short"); err != ErrBadLength {
		t.Errorf("short: %v", err)
	}
	bad := strings.Repeat("0", EncodedSize-1) + "!"
	if _, err := Decode(bad); err != ErrBadAlphabet {
		t.Errorf("alphabet: %v", err)
	}
	// z...z (43 chars) is 62^43-1 which exceeds 2^256.
	if _, err := Decode(strings.Repeat("z", EncodedSize)); err != ErrOutOfRange {
		t.Errorf("range: %v", err)
	}
	if _, err := Encode(make([]byte, 31)); err != ErrBadLength {
		t.Errorf("encode length: %v", err)
	}
}
