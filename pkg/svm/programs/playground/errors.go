package playground

import "github.com/fortiblox/stratus-playground/pkg/svm"

// Program errors.
var (
	// ErrUpgradeAuthorityMismatch: the recipient is not the upgrade authority
	// recorded in the program data account.
	ErrUpgradeAuthorityMismatch = svm.NewInstructionError(6000, "UpgradeAuthorityMismatch")

	// ErrLamportOverflow: the recovered total does not fit in a u64.
	ErrLamportOverflow = svm.NewInstructionError(6001, "LamportOverflow")
)

// Account validation and dispatch errors, numbered like the Anchor framework.
var (
	ErrInstructionMissing           = svm.NewInstructionError(100, "InstructionMissing")
	ErrInstructionFallbackNotFound  = svm.NewInstructionError(101, "InstructionFallbackNotFound")
	ErrInstructionDidNotDeserialize = svm.NewInstructionError(102, "InstructionDidNotDeserialize")
	ErrConstraintMut                = svm.NewInstructionError(2000, "ConstraintMut")
	ErrConstraintSeeds              = svm.NewInstructionError(2006, "ConstraintSeeds")
	ErrAccountDiscriminatorMismatch = svm.NewInstructionError(3002, "AccountDiscriminatorMismatch")
	ErrAccountDidNotDeserialize     = svm.NewInstructionError(3003, "AccountDidNotDeserialize")
	ErrAccountNotEnoughKeys         = svm.NewInstructionError(3005, "AccountNotEnoughKeys")
	ErrAccountOwnedByWrongProgram   = svm.NewInstructionError(3007, "AccountOwnedByWrongProgram")
	ErrInvalidProgramID             = svm.NewInstructionError(3008, "InvalidProgramId")
	ErrAccountNotSigner             = svm.NewInstructionError(3010, "AccountNotSigner")
)
