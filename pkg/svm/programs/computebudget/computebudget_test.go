package computebudget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/stratus-playground/pkg/svm"
)

func TestLimits(t *testing.T) {
	var l Limits
	assert.Equal(t, 2*svm.CUDefault, l.ComputeUnitLimit(2))
	assert.Equal(t, svm.CUMax, l.ComputeUnitLimit(100))

	require.NoError(t, l.Apply(SetComputeUnitLimit(50_000).Data))
	require.NoError(t, l.Apply(SetComputeUnitPrice(1_000).Data))
	assert.Equal(t, uint64(50_000), l.ComputeUnitLimit(3))
	assert.Equal(t, uint64(1_000), l.UnitPrice)

	err := l.Apply(SetComputeUnitLimit(10).Data)
	assert.ErrorIs(t, err, ErrDuplicateInstruction)
}

func TestLimits_Capped(t *testing.T) {
	var l Limits
	require.NoError(t, l.Apply(SetComputeUnitLimit(5_000_000).Data))
	assert.Equal(t, svm.CUMax, l.ComputeUnitLimit(1))
}

func TestLimits_Invalid(t *testing.T) {
	var l Limits
	assert.ErrorIs(t, l.Apply(nil), ErrInvalidInstructionData)
	assert.ErrorIs(t, l.Apply([]byte{InstructionSetComputeUnitLimit, 1}), ErrInvalidInstructionData)
	assert.ErrorIs(t, l.Apply([]byte{9}), ErrInvalidInstructionData)
}
