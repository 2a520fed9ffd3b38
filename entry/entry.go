// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package entry implements the Bamboo log entry: its data model, the
// canonical binary codec, Ed25519 signing, and validation against payloads
// and predecessor entries.
//
// The canonical byte form concatenates tag, author, log id, sequence
// number, the optional lipmaa and back links, payload size, payload hash,
// and signature. The payload itself is never part of the canonical bytes;
// it travels and is stored separately.
package entry

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"

	"github.com/luxfi/baobab/lipmaa"
	"github.com/luxfi/baobab/varu"
	"github.com/luxfi/baobab/yamf"
)

const (
	// TagEntry is the only defined entry variant.
	TagEntry byte = 0x00

	// AuthorSize is the Ed25519 public key width.
	AuthorSize = ed25519.PublicKeySize
	// SigSize is the Ed25519 signature width.
	SigSize = ed25519.SignatureSize

	// MaxPayloadSize bounds a single payload.
	MaxPayloadSize = 16 << 20
)

var (
	ErrMalformed        = errors.New("entry: malformed binary entry")
	ErrUnknownTag       = errors.New("entry: unknown entry tag")
	ErrInvalidSignature = errors.New("entry: signature verification failed")
	ErrInvalidLink      = errors.New("entry: link hash mismatch")
	ErrInvalidPayload   = errors.New("entry: payload hash or size mismatch")
	ErrPayloadTooLarge  = fmt.Errorf("entry: payload exceeds %d bytes", MaxPayloadSize)
	ErrBadField         = errors.New("entry: field has wrong width or value")
)

// Entry is a single decoded log entry. Payload may be nil when only the
// signed header is known; Raw carries the canonical encoded bytes once the
// entry has been encoded or decoded.
type Entry struct {
	Tag         byte
	Author      [AuthorSize]byte
	LogID       uint64
	Seq         uint64
	LipmaaLink  []byte // yamf hash, nil when absent
	Backlink    []byte // yamf hash, nil when absent
	Size        uint64
	PayloadHash []byte // yamf hash
	Sig         []byte
	Payload     []byte

	raw []byte
}

// HasBacklink reports whether the canonical form carries a backlink.
func (e *Entry) HasBacklink() bool { return e.Seq > 1 }

// HasLipmaaLink reports whether the canonical form carries a separate
// lipmaa link. When the skip target coincides with the backlink the field
// is omitted.
func (e *Entry) HasLipmaaLink() bool {
	return e.Seq > 1 && lipmaa.Link(e.Seq) != e.Seq-1
}

func (e *Entry) checkFields() error {
	if e.Tag != TagEntry {
		return ErrUnknownTag
	}
	if e.Seq < 1 {
		return ErrBadField
	}
	if err := yamf.Check(e.PayloadHash); err != nil {
		return ErrBadField
	}
	if e.HasBacklink() != (e.Backlink != nil) || e.HasLipmaaLink() != (e.LipmaaLink != nil) {
		return ErrBadField
	}
	if e.Backlink != nil && yamf.Check(e.Backlink) != nil {
		return ErrBadField
	}
	if e.LipmaaLink != nil && yamf.Check(e.LipmaaLink) != nil {
		return ErrBadField
	}
	if e.Size > MaxPayloadSize {
		return ErrPayloadTooLarge
	}
	return nil
}

func (e *Entry) encode(sig []byte) ([]byte, error) {
	if err := e.checkFields(); err != nil {
		return nil, err
	}
	if len(sig) != SigSize {
		return nil, ErrBadField
	}
	out := make([]byte, 0, 1+AuthorSize+2*varu.MaxLen+2*yamf.Size+varu.MaxLen+yamf.Size+SigSize)
	out = append(out, e.Tag)
	out = append(out, e.Author[:]...)
	out = varu.Encode(out, e.LogID)
	out = varu.Encode(out, e.Seq)
	if e.LipmaaLink != nil {
		out = append(out, e.LipmaaLink...)
	}
	if e.Backlink != nil {
		out = append(out, e.Backlink...)
	}
	out = varu.Encode(out, e.Size)
	out = append(out, e.PayloadHash...)
	out = append(out, sig...)
	return out, nil
}

// Encode returns the canonical byte form, including the signature.
func (e *Entry) Encode() ([]byte, error) {
	if len(e.Sig) != SigSize {
		return nil, ErrBadField
	}
	raw, err := e.encode(e.Sig)
	if err != nil {
		return nil, err
	}
	e.raw = raw
	return raw, nil
}

// SigningBytes returns the signature preimage: the canonical form with the
// signature field zeroed.
func (e *Entry) SigningBytes() ([]byte, error) {
	return e.encode(make([]byte, SigSize))
}

// Sign computes and attaches the entry signature.
func (e *Entry) Sign(priv ed25519.PrivateKey) error {
	pre, err := e.SigningBytes()
	if err != nil {
		return err
	}
	e.Sig = ed25519.Sign(priv, pre)
	e.raw = nil
	return nil
}

// VerifySignature checks the embedded signature against the embedded
// author key.
func (e *Entry) VerifySignature() error {
	pre, err := e.SigningBytes()
	if err != nil {
		return err
	}
	if !ed25519.Verify(e.Author[:], pre, e.Sig) {
		return ErrInvalidSignature
	}
	return nil
}

// Raw returns the canonical bytes, encoding on first use.
func (e *Entry) Raw() ([]byte, error) {
	if e.raw != nil {
		return e.raw, nil
	}
	return e.Encode()
}

// Decode parses a canonical byte stream. Bytes beyond the signature are
// ignored; the payload is carried out of band. The returned entry retains
// the exact consumed bytes, so Raw round-trips the input.
func Decode(b []byte) (*Entry, error) {
	e := &Entry{}
	cur := b
	need := func(n int) ([]byte, error) {
		if len(cur) < n {
			return nil, ErrMalformed
		}
		f := cur[:n]
		cur = cur[n:]
		return f, nil
	}
	readVaru := func() (uint64, error) {
		n, used, err := varu.Decode(cur)
		if err != nil {
			return 0, ErrMalformed
		}
		cur = cur[used:]
		return n, nil
	}

	f, err := need(1)
	if err != nil {
		return nil, err
	}
	e.Tag = f[0]
	if e.Tag != TagEntry {
		return nil, ErrUnknownTag
	}
	if f, err = need(AuthorSize); err != nil {
		return nil, err
	}
	copy(e.Author[:], f)
	if e.LogID, err = readVaru(); err != nil {
		return nil, err
	}
	if e.Seq, err = readVaru(); err != nil {
		return nil, err
	}
	if e.Seq < 1 {
		return nil, ErrMalformed
	}
	if e.HasLipmaaLink() {
		if f, err = need(yamf.Size); err != nil {
			return nil, err
		}
		e.LipmaaLink = append([]byte(nil), f...)
	}
	if e.HasBacklink() {
		if f, err = need(yamf.Size); err != nil {
			return nil, err
		}
		e.Backlink = append([]byte(nil), f...)
	}
	if e.Size, err = readVaru(); err != nil {
		return nil, err
	}
	if f, err = need(yamf.Size); err != nil {
		return nil, err
	}
	e.PayloadHash = append([]byte(nil), f...)
	if f, err = need(SigSize); err != nil {
		return nil, err
	}
	e.Sig = append([]byte(nil), f...)

	e.raw = append([]byte(nil), b[:len(b)-len(cur)]...)
	return e, nil
}

// Equal reports field equality of the signed headers, ignoring payloads.
func Equal(a, b *Entry) bool {
	return a.Tag == b.Tag &&
		a.Author == b.Author &&
		a.LogID == b.LogID &&
		a.Seq == b.Seq &&
		bytes.Equal(a.LipmaaLink, b.LipmaaLink) &&
		bytes.Equal(a.Backlink, b.Backlink) &&
		a.Size == b.Size &&
		bytes.Equal(a.PayloadHash, b.PayloadHash) &&
		bytes.Equal(a.Sig, b.Sig)
}
