package runtime

import (
	"errors"
	"fmt"
)

// Transaction level errors. None of them change the ledger.
var (
	ErrSanitizeFailure      = errors.New("transaction failed to sanitize accounts offsets correctly")
	ErrSignatureFailure     = errors.New("transaction did not pass signature verification")
	ErrBlockhashNotFound    = errors.New("blockhash not found")
	ErrAlreadyProcessed     = errors.New("this transaction has already been processed")
	ErrTransactionTooLarge  = errors.New("transaction too large")
	ErrFeePayerNotFound     = errors.New("attempt to debit an account but found no record of a prior credit")
	ErrInvalidProgramForCPI = errors.New("program is not in the instruction accounts")
	ErrInvalidSeeds         = errors.New("could not create program address with signer seeds")
)

// TransactionError reports the top-level instruction that failed.
type TransactionError struct {
	InstructionIndex int
	Err              error
}

// Error implements error.
func (e *TransactionError) Error() string {
	return fmt.Sprintf("instruction %d: %v", e.InstructionIndex, e.Err)
}

// Unwrap returns the instruction error.
func (e *TransactionError) Unwrap() error {
	return e.Err
}
