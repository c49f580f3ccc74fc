package journal

import (
	"github.com/fortiblox/stratus-playground/internal/types"
)

// Receipt records the outcome of one executed transaction.
type Receipt struct {
	// Signature is the first signature, used as the transaction ID.
	Signature types.Signature

	// Slot is the ledger slot the transaction was executed in.
	Slot uint64

	// AccountKeys lists the accounts of the transaction message.
	AccountKeys []types.Pubkey

	// Err describes the failure, empty on success.
	Err string

	// ErrCode is the custom program error code, if the failure carried one.
	ErrCode *uint32

	// FailedInstruction is the index of the failing top-level instruction,
	// -1 when the transaction succeeded or failed before execution.
	FailedInstruction int

	// Logs contains program log output.
	Logs []string

	// ComputeUnitsConsumed is the total compute units used.
	ComputeUnitsConsumed uint64

	// PreBalances are account balances before execution.
	PreBalances []uint64

	// PostBalances are account balances after execution.
	PostBalances []uint64
}

// Succeeded reports whether the transaction committed.
func (r *Receipt) Succeeded() bool {
	return r.Err == ""
}
