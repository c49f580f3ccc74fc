package pda

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/stratus-playground/internal/types"
)

func TestCreateProgramAddress_KnownVectors(t *testing.T) {
	programID := types.BPFLoaderUpgradeableAddr

	for _, tc := range []struct {
		seeds    [][]byte
		expected string
	}{
		{[][]byte{{}, {1}}, "BwqrghZA2htAcqq8dzP1WDAhTXYTYWj7CHxF5j7TDBAe"},
		{[][]byte{[]byte("☉"), {0}}, "13yWmRpaTR4r5nAktwLqMpRNr28tnVUZw26rTvPSSB19"},
		{[][]byte{[]byte("Talking"), []byte("Squirrels")}, "2fnQrngrQT4SeLcdToJAD96phoEjNL2man2kfRLCASVk"},
	} {
		addr, err := CreateProgramAddress(tc.seeds, programID)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, addr.String())
	}
}

func TestCreateProgramAddress_OnCurve(t *testing.T) {
	// This seed set hashes to a valid curve point under the playground id.
	_, err := CreateProgramAddress([][]byte{[]byte("counter"), {2}}, types.PlaygroundProgramAddr)
	assert.ErrorIs(t, err, ErrOnCurve)
}

func TestCreateProgramAddress_Limits(t *testing.T) {
	seeds := make([][]byte, MaxSeeds+1)
	_, err := CreateProgramAddress(seeds, types.PlaygroundProgramAddr)
	assert.ErrorIs(t, err, ErrMaxSeedsExceeded)

	_, err = CreateProgramAddress([][]byte{make([]byte, MaxSeedLen+1)}, types.PlaygroundProgramAddr)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	_, _, err = FindProgramAddress(make([][]byte, MaxSeeds), types.PlaygroundProgramAddr)
	assert.ErrorIs(t, err, ErrMaxSeedsExceeded)
}

func TestFindProgramAddress(t *testing.T) {
	addr, bump, err := FindProgramAddress([][]byte{types.PlaygroundProgramAddr[:]}, types.BPFLoaderUpgradeableAddr)
	require.NoError(t, err)
	assert.Equal(t, "7Cc4yf7LvEmhMyDDs8ePq5SihWtPa7ScSzB9AA5iWytx", addr.String())
	assert.Equal(t, uint8(253), bump)

	// Re-deriving with the bump yields the same address.
	again, err := CreateProgramAddress([][]byte{types.PlaygroundProgramAddr[:], {bump}}, types.BPFLoaderUpgradeableAddr)
	require.NoError(t, err)
	assert.Equal(t, addr, again)
	assert.False(t, IsOnCurve(addr))
}

func TestFindProgramAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{[]byte("counter"), {0, 0, 0, 0, 0, 0, 0, 1}}

	a, bumpA, err := FindProgramAddress(seeds, types.PlaygroundProgramAddr)
	require.NoError(t, err)
	b, bumpB, err := FindProgramAddress(seeds, types.PlaygroundProgramAddr)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, bumpA, bumpB)
	assert.Len(t, seeds, 2, "input seeds must not be modified")
}

func TestIsOnCurve_Ed25519Key(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	assert.True(t, IsOnCurve(types.PubkeyFromPublicKey(pub)))
}

func TestFindProgramAddress_NoViableBump(t *testing.T) {
	var tried []uint8
	alwaysOnCurve := func(seeds [][]byte, _ types.Pubkey) (types.Pubkey, error) {
		tried = append(tried, seeds[len(seeds)-1][0])
		return types.Pubkey{}, ErrOnCurve
	}

	_, _, err := findProgramAddress([][]byte{[]byte("vault")}, types.PlaygroundProgramAddr, alwaysOnCurve)
	assert.ErrorIs(t, err, ErrNoViableBump)
	require.Len(t, tried, 255)
	assert.Equal(t, uint8(255), tried[0])
	assert.Equal(t, uint8(1), tried[len(tried)-1])
}
