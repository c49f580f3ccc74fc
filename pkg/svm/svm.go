// Package svm defines the execution model shared by the runtime and the
// native programs it hosts.
//
// A program sees the accounts of one instruction through an InvokeContext.
// Each AccountInfo is a view carrying the per-instruction signer and
// writable flags over account state shared by the whole transaction, so two
// views of the same key observe each other's writes. The runtime checks the
// ownership and balance rules after every instruction and discards the whole
// transaction on any error.
package svm

import (
	"errors"
	"fmt"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/accounts"
)

// Runtime errors raised by the host rather than by a program.
var (
	// ErrAccountNotFound is returned when a required account is missing.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidInstruction is returned for malformed instructions.
	ErrInvalidInstruction = errors.New("invalid instruction")

	// ErrReadonlyLamportChange: a read-only account's balance changed.
	ErrReadonlyLamportChange = errors.New("instruction changed the balance of a read-only account")

	// ErrReadonlyDataModified: a read-only account's data changed.
	ErrReadonlyDataModified = errors.New("instruction modified data of a read-only account")

	// ErrExternalAccountLamportSpend: a program debited an account it does not own.
	ErrExternalAccountLamportSpend = errors.New("instruction spent from the balance of an account it does not own")

	// ErrExternalAccountDataModified: a program wrote data of an account it does not own.
	ErrExternalAccountDataModified = errors.New("instruction modified data of an account it does not own")

	// ErrModifiedProgramID: an owner change not allowed by the ownership rules.
	ErrModifiedProgramID = errors.New("instruction illegally modified the program id of an account")

	// ErrExecutableModified: an executable account was written.
	ErrExecutableModified = errors.New("instruction changed executable accounts data or lamports")

	// ErrUnbalancedInstruction: lamports were created or destroyed.
	ErrUnbalancedInstruction = errors.New("sum of account balances before and after instruction do not match")

	// ErrPrivilegeEscalation: a cross-program invocation asked for a signer
	// or writable privilege the caller does not hold.
	ErrPrivilegeEscalation = errors.New("cross-program invocation with unauthorized signer or writable account")

	// ErrCallDepth: cross-program invocation nested too deeply.
	ErrCallDepth = errors.New("cross-program invocation call depth too deep")

	// ErrUnsupportedProgram: no native program is registered at the address.
	ErrUnsupportedProgram = errors.New("unsupported program id")

	// ErrProgramNotExecutable: the program account is not a deployed program.
	ErrProgramNotExecutable = errors.New("program is not executable")
)

// InstructionError is a program-defined failure carrying a numeric code,
// the equivalent of a custom program error on chain.
type InstructionError struct {
	Code uint32
	Name string
}

// NewInstructionError creates an InstructionError.
func NewInstructionError(code uint32, name string) *InstructionError {
	return &InstructionError{Code: code, Name: name}
}

// Error implements error.
func (e *InstructionError) Error() string {
	return fmt.Sprintf("custom program error: 0x%x (%s)", e.Code, e.Name)
}

// Is matches InstructionErrors by code so errors.Is works against the
// package-level values programs export.
func (e *InstructionError) Is(target error) bool {
	var other *InstructionError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// ErrorCode extracts the custom code from err, if it carries one.
func ErrorCode(err error) (uint32, bool) {
	var ie *InstructionError
	if errors.As(err, &ie) {
		return ie.Code, true
	}
	return 0, false
}

// AccountMeta describes an account referenced by an instruction.
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta creates a writable AccountMeta.
func NewAccountMeta(pubkey types.Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: true}
}

// NewReadonlyAccountMeta creates a read-only AccountMeta.
func NewReadonlyAccountMeta(pubkey types.Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner}
}

// Instruction is a program invocation before it is compiled into a message.
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// AccountInfo is a program's view of one instruction account.
type AccountInfo struct {
	Key        types.Pubkey
	IsSigner   bool
	IsWritable bool

	// Account is shared by every view of Key within a transaction.
	*accounts.Account
}

// InvokeContext is what a native program can see and do while processing
// one instruction.
type InvokeContext interface {
	// ProgramID returns the address of the executing program.
	ProgramID() types.Pubkey

	// NumAccounts returns the number of accounts passed to the instruction.
	NumAccounts() int

	// GetAccount returns the account at the given instruction index.
	GetAccount(index int) (*AccountInfo, error)

	// Rent returns the rent parameters in effect.
	Rent() Rent

	// ConsumeCU charges compute units against the transaction budget.
	ConsumeCU(cost uint64) error

	// Log records a program log message.
	Log(msg string)

	// InvokeSigned runs ix as a cross-program invocation. signerSeeds lists
	// seed sets (bump included) whose derived addresses under the calling
	// program are treated as signers.
	InvokeSigned(ix Instruction, signerSeeds ...[][]byte) error
}

// Program is a native program the runtime can dispatch to.
type Program interface {
	// ID returns the program address.
	ID() types.Pubkey

	// Process executes one instruction.
	Process(ctx InvokeContext, data []byte) error
}

// Logf formats and records a program log message.
func Logf(ctx InvokeContext, format string, args ...any) {
	ctx.Log(fmt.Sprintf(format, args...))
}
