// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package identity manages the local registry of Ed25519 signing pairs.
// Pairs are stored in the spool's global identity table under a
// user-chosen alias; the canonical public identifier is the 43-character
// Base62 rendering of the public key.
package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/luxfi/database"

	"github.com/luxfi/baobab/b62"
	"github.com/luxfi/baobab/spool"
)

var (
	ErrUnknownIdentity   = errors.New("identity: alias or reference does not resolve")
	ErrImproperArguments = errors.New("identity: improper arguments")
)

// Which selects a half of a stored key pair.
type Which int

const (
	SecretKey Which = iota
	PublicKey
)

// Identity is one registry listing.
type Identity struct {
	Alias  string
	Key    string // Base62 public identifier
	Public []byte
}

// Registry reads and writes key pairs through a spool's identity table.
type Registry struct {
	sp *spool.Spool
}

// New returns a registry over sp.
func New(sp *spool.Spool) *Registry {
	return &Registry{sp: sp}
}

// Create derives and stores a key pair under alias, returning the Base62
// public identifier. The seed may be nil (32 random bytes are drawn), a
// 32-byte raw seed, or the 43-byte Base62 text of a seed. An existing
// alias is overwritten; the same seed always yields the same identifier.
func (r *Registry) Create(alias string, seed []byte) (string, error) {
	if alias == "" {
		return "", fmt.Errorf("%w: empty alias", ErrImproperArguments)
	}
	switch len(seed) {
	case 0:
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return "", fmt.Errorf("draw seed: %w", err)
		}
	case ed25519.SeedSize:
	case b62.EncodedSize:
		decoded, err := b62.Decode(string(seed))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrImproperArguments, err)
		}
		seed = decoded
	default:
		return "", fmt.Errorf("%w: seed must be 32 raw or 43 Base62 bytes", ErrImproperArguments)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	val := make([]byte, 0, ed25519.SeedSize+ed25519.PublicKeySize)
	val = append(val, seed...)
	val = append(val, pub...)
	if err := r.sp.Put(spool.Identity, "", []byte(alias), val); err != nil {
		return "", err
	}
	return b62.Encode(pub)
}

func (r *Registry) pair(alias string) (seed, pub []byte, err error) {
	val, err := r.sp.Get(spool.Identity, "", []byte(alias))
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownIdentity, alias)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(val) != ed25519.SeedSize+ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("%w: corrupt pair for %q", ErrUnknownIdentity, alias)
	}
	return val[:ed25519.SeedSize], val[ed25519.SeedSize:], nil
}

// Key returns the requested half of the stored pair as raw bytes.
func (r *Registry) Key(alias string, which Which) ([]byte, error) {
	seed, pub, err := r.pair(alias)
	if err != nil {
		return nil, err
	}
	switch which {
	case SecretKey:
		return seed, nil
	case PublicKey:
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: unknown key half", ErrImproperArguments)
	}
}

// Signer returns the private signing key for alias.
func (r *Registry) Signer(alias string) (ed25519.PrivateKey, error) {
	seed, _, err := r.pair(alias)
	if err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// List returns every stored identity sorted by alias.
func (r *Registry) List() ([]Identity, error) {
	var out []Identity
	err := r.sp.Fold(spool.Identity, "", func(key, val []byte) error {
		if len(val) != ed25519.SeedSize+ed25519.PublicKeySize {
			return nil
		}
		pub := append([]byte(nil), val[ed25519.SeedSize:]...)
		id, err := b62.Encode(pub)
		if err != nil {
			return err
		}
		out = append(out, Identity{Alias: string(key), Key: id, Public: pub})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

// Rename moves the pair stored under old to new.
func (r *Registry) Rename(old, new string) error {
	if new == "" {
		return fmt.Errorf("%w: empty alias", ErrImproperArguments)
	}
	val, err := r.sp.Get(spool.Identity, "", []byte(old))
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %q", ErrUnknownIdentity, old)
	}
	if err != nil {
		return err
	}
	if err := r.sp.Put(spool.Identity, "", []byte(new), val); err != nil {
		return err
	}
	if old == new {
		return nil
	}
	return r.sp.Delete(spool.Identity, "", []byte(old))
}

// Drop removes the pair stored under alias.
func (r *Registry) Drop(alias string) error {
	if _, _, err := r.pair(alias); err != nil {
		return err
	}
	return r.sp.Delete(spool.Identity, "", []byte(alias))
}

// AsBase62 resolves an author reference to its canonical Base62 public
// identifier. The reference may be a 43-character Base62 identifier
// (returned unchanged), the raw 32 bytes of a public key, a known alias,
// or "~prefix" naming a unique identifier prefix.
func (r *Registry) AsBase62(ref string) (string, error) {
	if len(ref) == b62.EncodedSize && b62.Valid(ref) {
		return ref, nil
	}
	if len(ref) == b62.KeySize {
		return b62.Encode([]byte(ref))
	}
	if strings.HasPrefix(ref, "~") {
		return r.byPrefix(ref[1:])
	}
	if _, pub, err := r.pair(ref); err == nil {
		return b62.Encode(pub)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownIdentity, ref)
}

func (r *Registry) byPrefix(prefix string) (string, error) {
	ids, err := r.List()
	if err != nil {
		return "", err
	}
	match := ""
	for _, id := range ids {
		if !strings.HasPrefix(id.Key, prefix) {
			continue
		}
		if match != "" && match != id.Key {
			return "", fmt.Errorf("%w: ambiguous prefix %q", ErrUnknownIdentity, prefix)
		}
		match = id.Key
	}
	if match == "" {
		return "", fmt.Errorf("%w: no identifier with prefix %q", ErrUnknownIdentity, prefix)
	}
	return match, nil
}
