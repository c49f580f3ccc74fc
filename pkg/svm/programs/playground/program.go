// Package playground implements the playground program.
//
// CloseAccounts sweeps the full balance of every remaining account into the
// program's upgrade authority. CreateAccount1 and CreateAccount2 exist for
// tests: each initializes a counter record at a fixed program derived
// address and stores 1 or 2.
package playground

import (
	"bytes"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/svm"
)

// Instruction discriminators.
var (
	CloseAccountsDiscriminator  = instructionDiscriminator("close_accounts")
	CreateAccount1Discriminator = instructionDiscriminator("create_account1")
	CreateAccount2Discriminator = instructionDiscriminator("create_account2")
)

// Config controls program behavior.
type Config struct {
	// ProgramID is the address the program is registered at.
	ProgramID types.Pubkey

	// EnforceUpgradeAuthority requires the CloseAccounts recipient to be the
	// upgrade authority recorded in the program data account. Local test
	// validators deploy with the native loader as authority, which cannot be
	// passed as a writable account, so they turn this off.
	EnforceUpgradeAuthority bool
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		ProgramID:               types.PlaygroundProgramAddr,
		EnforceUpgradeAuthority: true,
	}
}

// Program is the native playground program.
type Program struct {
	config Config
}

// New creates the program.
func New(config Config) *Program {
	if config.ProgramID.IsZero() {
		config.ProgramID = types.PlaygroundProgramAddr
	}
	return &Program{config: config}
}

// ID implements svm.Program.
func (p *Program) ID() types.Pubkey {
	return p.config.ProgramID
}

// Config returns the program configuration.
func (p *Program) Config() Config {
	return p.config
}

// Process dispatches on the instruction discriminator.
func (p *Program) Process(ctx svm.InvokeContext, data []byte) error {
	if err := ctx.ConsumeCU(svm.CUPlaygroundDefault); err != nil {
		return err
	}
	if len(data) < DiscriminatorSize {
		return ErrInstructionMissing
	}

	disc, args := data[:DiscriminatorSize], data[DiscriminatorSize:]

	var handler func(svm.InvokeContext) error
	switch {
	case bytes.Equal(disc, CloseAccountsDiscriminator[:]):
		ctx.Log("Instruction: CloseAccounts")
		handler = p.closeAccounts
	case bytes.Equal(disc, CreateAccount1Discriminator[:]):
		ctx.Log("Instruction: CreateAccount1")
		handler = func(ctx svm.InvokeContext) error { return p.createCounter(ctx, 1) }
	case bytes.Equal(disc, CreateAccount2Discriminator[:]):
		ctx.Log("Instruction: CreateAccount2")
		handler = func(ctx svm.InvokeContext) error { return p.createCounter(ctx, 2) }
	default:
		return ErrInstructionFallbackNotFound
	}

	// None of the instructions take arguments.
	if len(args) != 0 {
		return ErrInstructionDidNotDeserialize
	}
	return handler(ctx)
}
