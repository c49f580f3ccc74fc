package svm

import (
	"errors"
	"fmt"
)

// Transaction limits.
const (
	CUDefault = uint64(200_000)   // per non-budget instruction when no limit is requested
	CUMax     = uint64(1_400_000) // hard cap per transaction
)

// Costs charged by the runtime and native programs.
const (
	CUCreateProgramAddress = uint64(1_500) // per signer seed set on invoke
	CUFindProgramAddress   = uint64(1_500) // per address check against a derivation
	CUInvokeBase           = uint64(1_000)

	CUSystemProgramDefault = uint64(150)
	CUComputeBudgetDefault = uint64(150)
	CUPlaygroundDefault    = uint64(500)
	CUPlaygroundPerAccount = uint64(25) // per account swept by CloseAccounts
)

// CPIDepthMax is how many invocations may be nested below a top-level
// instruction.
const CPIDepthMax = 4

// ErrComputeExceeded is returned once a transaction runs out of compute units.
var ErrComputeExceeded = errors.New("compute budget exceeded")

// ComputeMeter tracks the compute units of one transaction. Inner
// invocations draw from the same meter as the instruction that invoked them.
type ComputeMeter struct {
	limit    uint64
	consumed uint64
}

// NewComputeMeter creates a meter with limit units, capped at CUMax.
func NewComputeMeter(limit uint64) *ComputeMeter {
	return &ComputeMeter{limit: min(limit, CUMax)}
}

// Consume charges cost units. When fewer remain, the meter is drained and
// ErrComputeExceeded is returned.
func (cm *ComputeMeter) Consume(cost uint64) error {
	if remaining := cm.Remaining(); cost > remaining {
		cm.consumed = cm.limit
		return fmt.Errorf("%w: %d units requested, %d remaining", ErrComputeExceeded, cost, remaining)
	}
	cm.consumed += cost
	return nil
}

func (cm *ComputeMeter) Remaining() uint64 { return cm.limit - cm.consumed }
func (cm *ComputeMeter) Consumed() uint64  { return cm.consumed }
func (cm *ComputeMeter) Limit() uint64     { return cm.limit }
