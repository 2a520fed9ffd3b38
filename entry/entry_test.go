// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package entry

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/baobab/lipmaa"
	"github.com/luxfi/baobab/yamf"
)

func testKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return ed25519.NewKeyFromSeed(seed)
}

// chain builds n signed entries of one log, returning them alongside their
// canonical bytes indexed by sequence number.
func chain(t *testing.T, priv ed25519.PrivateKey, n uint64) (map[uint64]*Entry, map[uint64][]byte) {
	t.Helper()
	entries := map[uint64]*Entry{}
	raws := map[uint64][]byte{}
	pub := priv.Public().(ed25519.PublicKey)
	for seq := uint64(1); seq <= n; seq++ {
		payload := []byte(fmt.Sprintf("Entry: %d", seq))
		e := &Entry{
			Tag:         TagEntry,
			LogID:       0,
			Seq:         seq,
			Size:        uint64(len(payload)),
			PayloadHash: yamf.Hash(payload),
			Payload:     payload,
		}
		copy(e.Author[:], pub)
		if e.HasBacklink() {
			e.Backlink = yamf.Hash(raws[seq-1])
		}
		if e.HasLipmaaLink() {
			e.LipmaaLink = yamf.Hash(raws[lipmaa.Link(seq)])
		}
		require.NoError(t, e.Sign(priv))
		raw, err := e.Encode()
		require.NoError(t, err)
		entries[seq] = e
		raws[seq] = raw
	}
	return entries, raws
}

func TestRoundTrip(t *testing.T) {
	priv := testKey(t)
	entries, raws := chain(t, priv, 14)
	for seq, raw := range raws {
		got, err := Decode(raw)
		require.NoError(t, err, "seq %d", seq)
		require.True(t, Equal(entries[seq], got), "seq %d", seq)
		back, err := got.Raw()
		require.NoError(t, err)
		require.True(t, bytes.Equal(raw, back), "seq %d re-encode", seq)
	}
}

func TestLinkPresence(t *testing.T) {
	_, raws := chain(t, testKey(t), 5)

	e1, err := Decode(raws[1])
	require.NoError(t, err)
	require.Nil(t, e1.Backlink)
	require.Nil(t, e1.LipmaaLink)

	// lipmaa(2) == 1 == seq-1: backlink only.
	e2, err := Decode(raws[2])
	require.NoError(t, err)
	require.NotNil(t, e2.Backlink)
	require.Nil(t, e2.LipmaaLink)

	// lipmaa(4) == 1 != 3: both links present.
	e4, err := Decode(raws[4])
	require.NoError(t, err)
	require.NotNil(t, e4.Backlink)
	require.NotNil(t, e4.LipmaaLink)
}

func TestDecodeTrailingIgnored(t *testing.T) {
	_, raws := chain(t, testKey(t), 1)
	padded := append(append([]byte(nil), raws[1]...), 0xDE, 0xAD)
	e, err := Decode(padded)
	require.NoError(t, err)
	raw, err := e.Raw()
	require.NoError(t, err)
	require.True(t, bytes.Equal(raw, raws[1]))
}

func TestDecodeErrors(t *testing.T) {
	_, raws := chain(t, testKey(t), 2)

	_, err := Decode(raws[2][:20])
	require.ErrorIs(t, err, ErrMalformed)

	bad := append([]byte(nil), raws[1]...)
	bad[0] = 0x07
	_, err = Decode(bad)
	require.ErrorIs(t, err, ErrUnknownTag)

	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestValidateChain(t *testing.T) {
	entries, raws := chain(t, testKey(t), 14)
	lookup := func(seq uint64) []byte { return raws[seq] }
	for seq, e := range entries {
		certified, err := Validate(e, e.Payload, lookup)
		require.NoError(t, err, "seq %d", seq)
		require.True(t, certified, "seq %d", seq)
	}
}

func TestValidateBadPayload(t *testing.T) {
	entries, raws := chain(t, testKey(t), 2)
	lookup := func(seq uint64) []byte { return raws[seq] }

	_, err := Validate(entries[2], []byte("tampered"), lookup)
	require.ErrorIs(t, err, ErrInvalidPayload)

	// Truncated payload: neither size nor hash matches the entry.
	e := entries[2]
	short := e.Payload[:len(e.Payload)-1]
	_, err = Validate(e, short, lookup)
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestValidateBadSignature(t *testing.T) {
	entries, raws := chain(t, testKey(t), 1)
	e := entries[1]
	e.Sig[0] ^= 0xFF
	_, err := Validate(e, e.Payload, func(seq uint64) []byte { return raws[seq] })
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateBadLink(t *testing.T) {
	priv := testKey(t)
	entries, raws := chain(t, priv, 4)

	// Feed entry 4 a wrong predecessor for its backlink.
	forged := map[uint64][]byte{}
	for k, v := range raws {
		forged[k] = v
	}
	forged[3] = raws[2]
	_, err := Validate(entries[4], entries[4].Payload, func(seq uint64) []byte { return forged[seq] })
	require.ErrorIs(t, err, ErrInvalidLink)
}

func TestValidateDeferred(t *testing.T) {
	entries, raws := chain(t, testKey(t), 4)

	// No predecessors available at all: accepted, not certified.
	certified, err := Validate(entries[4], entries[4].Payload, nil)
	require.NoError(t, err)
	require.False(t, certified)

	// Backlink target available, lipmaa target missing.
	partial := func(seq uint64) []byte {
		if seq == 3 {
			return raws[3]
		}
		return nil
	}
	certified, err = Validate(entries[4], entries[4].Payload, partial)
	require.NoError(t, err)
	require.False(t, certified)

	// Missing payload defers the payload check but not the rest.
	certified, err = Validate(entries[4], nil, func(seq uint64) []byte { return raws[seq] })
	require.NoError(t, err)
	require.False(t, certified)
}

func TestPayloadTooLarge(t *testing.T) {
	e := &Entry{
		Tag:         TagEntry,
		Seq:         1,
		Size:        MaxPayloadSize + 1,
		PayloadHash: yamf.Hash(nil),
	}
	_, err := e.SigningBytes()
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}
