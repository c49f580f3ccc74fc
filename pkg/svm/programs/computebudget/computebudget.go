// Package computebudget implements the Compute Budget program.
//
// Its instructions do nothing when executed; the runtime reads them before
// execution to size the transaction's compute meter.
package computebudget

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/svm"
)

// Instruction tags.
const (
	InstructionRequestHeapFrame    = 1
	InstructionSetComputeUnitLimit = 2
	InstructionSetComputeUnitPrice = 3
)

var (
	ErrInvalidInstructionData = errors.New("invalid compute budget instruction data")
	ErrDuplicateInstruction   = errors.New("duplicate compute budget instruction")
)

// Limits collects the compute budget requested by a transaction.
type Limits struct {
	UnitLimit    uint32
	HasUnitLimit bool
	UnitPrice    uint64
	HeapFrame    uint32
}

// Apply records one compute budget instruction.
func (l *Limits) Apply(data []byte) error {
	if len(data) < 1 {
		return ErrInvalidInstructionData
	}

	switch data[0] {
	case InstructionRequestHeapFrame:
		if len(data) < 5 {
			return ErrInvalidInstructionData
		}
		if l.HeapFrame != 0 {
			return fmt.Errorf("%w: RequestHeapFrame", ErrDuplicateInstruction)
		}
		l.HeapFrame = binary.LittleEndian.Uint32(data[1:5])
	case InstructionSetComputeUnitLimit:
		if len(data) < 5 {
			return ErrInvalidInstructionData
		}
		if l.HasUnitLimit {
			return fmt.Errorf("%w: SetComputeUnitLimit", ErrDuplicateInstruction)
		}
		l.UnitLimit = binary.LittleEndian.Uint32(data[1:5])
		l.HasUnitLimit = true
	case InstructionSetComputeUnitPrice:
		if len(data) < 9 {
			return ErrInvalidInstructionData
		}
		if l.UnitPrice != 0 {
			return fmt.Errorf("%w: SetComputeUnitPrice", ErrDuplicateInstruction)
		}
		l.UnitPrice = binary.LittleEndian.Uint64(data[1:9])
	default:
		return ErrInvalidInstructionData
	}
	return nil
}

// ComputeUnitLimit returns the transaction-wide limit. Without an explicit
// request each non compute budget instruction gets the default allowance.
func (l *Limits) ComputeUnitLimit(numInstructions int) uint64 {
	limit := uint64(numInstructions) * svm.CUDefault
	if l.HasUnitLimit {
		limit = uint64(l.UnitLimit)
	}
	if limit > svm.CUMax {
		limit = svm.CUMax
	}
	return limit
}

// Program is the native Compute Budget program.
type Program struct{}

// New creates the Compute Budget program.
func New() *Program {
	return &Program{}
}

// ID implements svm.Program.
func (p *Program) ID() types.Pubkey {
	return types.ComputeBudgetProgramAddr
}

// Process validates the instruction; its effect was applied before execution.
func (p *Program) Process(ctx svm.InvokeContext, data []byte) error {
	if err := ctx.ConsumeCU(svm.CUComputeBudgetDefault); err != nil {
		return err
	}
	var scratch Limits
	return scratch.Apply(data)
}

// SetComputeUnitLimit builds a SetComputeUnitLimit instruction.
func SetComputeUnitLimit(units uint32) svm.Instruction {
	data := make([]byte, 5)
	data[0] = InstructionSetComputeUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return svm.Instruction{ProgramID: types.ComputeBudgetProgramAddr, Data: data}
}

// SetComputeUnitPrice builds a SetComputeUnitPrice instruction.
func SetComputeUnitPrice(microLamports uint64) svm.Instruction {
	data := make([]byte, 9)
	data[0] = InstructionSetComputeUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return svm.Instruction{ProgramID: types.ComputeBudgetProgramAddr, Data: data}
}
