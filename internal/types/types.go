// Package types defines the core key, signature and hash types shared by the
// playground ledger, runtime and programs.
//
// Text forms are base58, matching Solana tooling.
package types

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	PubkeySize    = 32
	SignatureSize = 64
	HashSize      = 32
)

var (
	ErrInvalidPubkey    = errors.New("invalid pubkey: must be 32 bytes")
	ErrInvalidSignature = errors.New("invalid signature: must be 64 bytes")
	ErrInvalidHash      = errors.New("invalid hash: must be 32 bytes")
)

// decodeFixed decodes base58 text into dst, which must be filled exactly.
func decodeFixed(dst []byte, text string, errSize error) error {
	raw, err := base58.Decode(text)
	if err != nil {
		return fmt.Errorf("base58 decode %q: %w", text, err)
	}
	if len(raw) != len(dst) {
		return errSize
	}
	copy(dst, raw)
	return nil
}

// Pubkey is a 32-byte account address: an ed25519 public key, or a program
// derived address off the curve.
type Pubkey [PubkeySize]byte

func PubkeyFromBase58(s string) (Pubkey, error) {
	var p Pubkey
	err := decodeFixed(p[:], s, ErrInvalidPubkey)
	return p, err
}

func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != PubkeySize {
		return p, ErrInvalidPubkey
	}
	copy(p[:], b)
	return p, nil
}

func PubkeyFromPublicKey(pub ed25519.PublicKey) Pubkey {
	var p Pubkey
	copy(p[:], pub)
	return p
}

// MustPubkeyFromBase58 is for well-known addresses only.
func MustPubkeyFromBase58(s string) Pubkey {
	p, err := PubkeyFromBase58(s)
	if err != nil {
		panic(fmt.Sprintf("invalid pubkey constant %q: %v", s, err))
	}
	return p
}

func (p Pubkey) String() string { return base58.Encode(p[:]) }
func (p Pubkey) IsZero() bool   { return p == Pubkey{} }
func (p Pubkey) Bytes() []byte  { return p[:] }

// Compare orders pubkeys bytewise, the order the ledger iterates in.
func (p Pubkey) Compare(other Pubkey) int {
	return bytes.Compare(p[:], other[:])
}

func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pubkey) UnmarshalText(text []byte) error {
	return decodeFixed(p[:], string(text), ErrInvalidPubkey)
}

// Signature is an ed25519 signature. The first signature of a transaction
// identifies it.
type Signature [SignatureSize]byte

func SignatureFromBase58(s string) (Signature, error) {
	var sig Signature
	err := decodeFixed(sig[:], s, ErrInvalidSignature)
	return sig, err
}

func (s Signature) String() string { return base58.Encode(s[:]) }
func (s Signature) IsZero() bool   { return s == Signature{} }

// Verify checks the signature of message by pubkey.
func (s Signature) Verify(pubkey Pubkey, message []byte) bool {
	return ed25519.Verify(pubkey[:], message, s[:])
}

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	return decodeFixed(s[:], string(text), ErrInvalidSignature)
}

// Hash is a 32-byte digest: blockhashes and account state hashes.
type Hash [HashSize]byte

func HashFromBase58(s string) (Hash, error) {
	var h Hash
	err := decodeFixed(h[:], s, ErrInvalidHash)
	return h, err
}

func (h Hash) String() string { return base58.Encode(h[:]) }
func (h Hash) IsZero() bool   { return h == Hash{} }

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	return decodeFixed(h[:], string(text), ErrInvalidHash)
}
