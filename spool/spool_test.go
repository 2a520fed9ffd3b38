// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package spool

import (
	"errors"
	"testing"

	"github.com/luxfi/database"
	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	s := OpenMemory()
	defer s.Close()

	require.NoError(t, s.Put(Content, DefaultClump, []byte("k"), []byte("v")))
	got, err := s.Get(Content, DefaultClump, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(Content, DefaultClump, []byte("k")))
	_, err = s.Get(Content, DefaultClump, []byte("k"))
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestClumpIsolation(t *testing.T) {
	s := OpenMemory()
	defer s.Close()

	require.NoError(t, s.Put(Content, "a", []byte("k"), []byte("va")))
	require.NoError(t, s.Put(Content, "b", []byte("k"), []byte("vb")))

	got, err := s.Get(Content, "a", []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("va"), got)

	// Identity ignores the clump.
	require.NoError(t, s.Put(Identity, "a", []byte("alias"), []byte("keys")))
	got, err = s.Get(Identity, "b", []byte("alias"))
	require.NoError(t, err)
	require.Equal(t, []byte("keys"), got)
}

func TestEmptyClumpRejected(t *testing.T) {
	s := OpenMemory()
	defer s.Close()
	err := s.Put(Content, "", []byte("k"), []byte("v"))
	require.ErrorIs(t, err, ErrBadClump)
}

func TestMatchAndMatchDelete(t *testing.T) {
	s := OpenMemory()
	defer s.Close()

	for _, k := range []string{"aa1", "aa2", "ab1", "b"} {
		require.NoError(t, s.Put(Content, DefaultClump, []byte(k), []byte("v")))
	}

	keys, err := s.Match(Content, DefaultClump, []byte("aa"))
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("aa1"), []byte("aa2")}, keys)

	deleted, err := s.MatchDelete(Content, DefaultClump, []byte("a"))
	require.NoError(t, err)
	require.Len(t, deleted, 3)

	keys, err = s.Match(Content, DefaultClump, nil)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("b")}, keys)
}

func TestTruncateAndFold(t *testing.T) {
	s := OpenMemory()
	defer s.Close()

	require.NoError(t, s.Put(Content, DefaultClump, []byte("z"), []byte("1")))
	require.NoError(t, s.Put(Content, DefaultClump, []byte("a"), []byte("2")))

	var seen []string
	require.NoError(t, s.Fold(Content, DefaultClump, func(k, v []byte) error {
		seen = append(seen, string(k))
		return nil
	}))
	require.Equal(t, []string{"a", "z"}, seen, "fold must visit in key order")

	require.NoError(t, s.Truncate(Content, DefaultClump))
	count := 0
	require.NoError(t, s.Fold(Content, DefaultClump, func(k, v []byte) error {
		count++
		return nil
	}))
	require.Zero(t, count)
}

func TestCurrentHashCachesAndInvalidates(t *testing.T) {
	s := OpenMemory()
	defer s.Close()

	h0, err := s.CurrentHash(Content, DefaultClump)
	require.NoError(t, err)
	require.Len(t, h0, 43)

	// Stable while nothing changes.
	h1, err := s.CurrentHash(Content, DefaultClump)
	require.NoError(t, err)
	require.Equal(t, h0, h1)

	require.NoError(t, s.Put(Content, DefaultClump, []byte("k"), []byte("v")))
	h2, err := s.CurrentHash(Content, DefaultClump)
	require.NoError(t, err)
	require.NotEqual(t, h0, h2)

	// Unrelated clump digest is untouched by the mutation.
	require.NoError(t, s.Put(Content, "other", []byte("k"), []byte("v")))
	h3, err := s.CurrentHash(Content, DefaultClump)
	require.NoError(t, err)
	require.Equal(t, h2, h3)

	_, err = s.CurrentHash(Status, DefaultClump)
	require.ErrorIs(t, err, ErrNoDigest)
}

func TestIdentityHashGlobal(t *testing.T) {
	s := OpenMemory()
	defer s.Close()

	h0, err := s.CurrentHash(Identity, DefaultClump)
	require.NoError(t, err)

	require.NoError(t, s.Put(Identity, "ignored", []byte("alias"), []byte("keys")))
	h1, err := s.CurrentHash(Identity, "whatever")
	require.NoError(t, err)
	require.NotEqual(t, h0, h1)
}

func TestClumps(t *testing.T) {
	s := OpenMemory()
	defer s.Close()

	require.NoError(t, s.Put(Content, "b", []byte("k"), []byte("v")))
	require.NoError(t, s.Put(Content, "a", []byte("k"), []byte("v")))
	require.NoError(t, s.Put(Identity, "", []byte("alias"), []byte("keys")))

	clumps, err := s.Clumps()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "default"}, clumps)
}

func TestClosed(t *testing.T) {
	s := OpenMemory()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err := s.Get(Content, DefaultClump, []byte("k"))
	require.True(t, errors.Is(err, ErrClosed))
}
