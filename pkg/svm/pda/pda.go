// Package pda derives program addresses.
//
// A program derived address is sha256(seeds || program_id ||
// "ProgramDerivedAddress") rejected when it decodes as an ed25519 point, so
// no private key exists for it and only the owning program can sign for it.
package pda

import (
	"crypto/sha256"
	"math"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"

	"github.com/fortiblox/stratus-playground/internal/types"
)

// Derivation limits.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

var pdaMarker = []byte("ProgramDerivedAddress")

var (
	ErrMaxSeedsExceeded      = errors.New("max seeds exceeded")
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrOnCurve               = errors.New("invalid seeds, address must fall off the curve")
	ErrNoViableBump          = errors.New("unable to find a viable program address bump seed")
)

// CreateProgramAddress derives the address for seeds under programID. It
// returns ErrOnCurve when the hash is a valid ed25519 public key.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return types.Pubkey{}, ErrMaxSeedsExceeded
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return types.Pubkey{}, ErrMaxSeedLengthExceeded
		}
		if _, err := h.Write(seed); err != nil {
			return types.Pubkey{}, errors.Wrap(err, "failed to hash seed")
		}
	}
	for _, v := range [][]byte{programID[:], pdaMarker} {
		if _, err := h.Write(v); err != nil {
			return types.Pubkey{}, errors.Wrap(err, "failed to hash seed")
		}
	}

	var addr types.Pubkey
	copy(addr[:], h.Sum(nil))

	if IsOnCurve(addr) {
		return types.Pubkey{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bump seeds from 255 down to 1 and returns the
// first off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	return findProgramAddress(seeds, programID, CreateProgramAddress)
}

func findProgramAddress(seeds [][]byte, programID types.Pubkey, derive func([][]byte, types.Pubkey) (types.Pubkey, error)) (types.Pubkey, uint8, error) {
	if len(seeds) > MaxSeeds-1 {
		return types.Pubkey{}, 0, ErrMaxSeedsExceeded
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	bump := []byte{math.MaxUint8}
	withBump[len(seeds)] = bump
	for ; bump[0] > 0; bump[0]-- {
		addr, err := derive(withBump, programID)
		if err == nil {
			return addr, bump[0], nil
		}
		if err != ErrOnCurve {
			return types.Pubkey{}, 0, err
		}
	}
	return types.Pubkey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether key decodes as an ed25519 point.
func IsOnCurve(key types.Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(key[:])
	return err == nil
}
