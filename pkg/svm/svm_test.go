package svm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRentMinimumBalance(t *testing.T) {
	rent := DefaultRent()

	// (128 + 16) * 3480 * 2
	assert.Equal(t, uint64(1_002_240), rent.MinimumBalance(16))
	assert.Equal(t, uint64(890_880), rent.MinimumBalance(0))
	assert.True(t, rent.IsExempt(1_002_240, 16))
	assert.False(t, rent.IsExempt(1_002_239, 16))
}

func TestComputeMeter(t *testing.T) {
	cm := NewComputeMeter(1000)
	require.NoError(t, cm.Consume(400))
	assert.Equal(t, uint64(600), cm.Remaining())

	err := cm.Consume(700)
	assert.ErrorIs(t, err, ErrComputeExceeded)
	assert.Equal(t, uint64(0), cm.Remaining())
	assert.Equal(t, uint64(1000), cm.Consumed())

	capped := NewComputeMeter(CUMax * 2)
	assert.Equal(t, CUMax, capped.Limit())

	zero := NewComputeMeter(0)
	assert.ErrorIs(t, zero.Consume(1), ErrComputeExceeded)
	require.NoError(t, zero.Consume(0))
}

func TestInstructionErrorMatching(t *testing.T) {
	mismatch := NewInstructionError(6000, "UpgradeAuthorityMismatch")
	wrapped := fmt.Errorf("instruction 0: %w", NewInstructionError(6000, "UpgradeAuthorityMismatch"))

	assert.True(t, errors.Is(wrapped, mismatch))
	assert.False(t, errors.Is(wrapped, NewInstructionError(6001, "LamportOverflow")))

	code, ok := ErrorCode(wrapped)
	require.True(t, ok)
	assert.Equal(t, uint32(6000), code)

	_, ok = ErrorCode(ErrUnbalancedInstruction)
	assert.False(t, ok)
	assert.Contains(t, mismatch.Error(), "0x1770")
}
