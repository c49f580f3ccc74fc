package playground

import (
	"fmt"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/svm"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/loader"
)

// NewCloseAccountsInstruction builds a CloseAccounts instruction that sweeps
// every account in toClose into upgradeAuthority.
//
//	Accounts expected by this instruction:
//	0. [WRITE] upgrade_authority
//	1. [] program_data
//	2..N. [WRITE] accounts to close
func NewCloseAccountsInstruction(programID, upgradeAuthority types.Pubkey, toClose ...types.Pubkey) (svm.Instruction, error) {
	programData, _, err := loader.ProgramDataAddress(programID)
	if err != nil {
		return svm.Instruction{}, fmt.Errorf("derive program data address: %w", err)
	}

	metas := make([]svm.AccountMeta, 0, closeAccountsFixedAccounts+len(toClose))
	metas = append(metas,
		svm.NewAccountMeta(upgradeAuthority, false),
		svm.NewReadonlyAccountMeta(programData, false),
	)
	for _, key := range toClose {
		metas = append(metas, svm.NewAccountMeta(key, false))
	}

	return svm.Instruction{
		ProgramID: programID,
		Accounts:  metas,
		Data:      append([]byte(nil), CloseAccountsDiscriminator[:]...),
	}, nil
}

// NewCreateAccount1Instruction builds a CreateAccount1 instruction.
//
//	Accounts expected by this instruction:
//	0. [WRITE, SIGNER] payer
//	1. [WRITE] counter
//	2. [] system_program
func NewCreateAccount1Instruction(programID, payer types.Pubkey) (svm.Instruction, error) {
	return newCreateAccountInstruction(programID, payer, 1, CreateAccount1Discriminator)
}

// NewCreateAccount2Instruction builds a CreateAccount2 instruction.
func NewCreateAccount2Instruction(programID, payer types.Pubkey) (svm.Instruction, error) {
	return newCreateAccountInstruction(programID, payer, 2, CreateAccount2Discriminator)
}

// NewCreateCounterInstruction builds the create instruction for key, which
// must be 1 or 2.
func NewCreateCounterInstruction(programID, payer types.Pubkey, key uint64) (svm.Instruction, error) {
	switch key {
	case 1:
		return NewCreateAccount1Instruction(programID, payer)
	case 2:
		return NewCreateAccount2Instruction(programID, payer)
	default:
		return svm.Instruction{}, fmt.Errorf("no create instruction for counter key %d", key)
	}
}

func newCreateAccountInstruction(programID, payer types.Pubkey, key uint64, disc [DiscriminatorSize]byte) (svm.Instruction, error) {
	counter, _, err := CounterAddress(programID, key)
	if err != nil {
		return svm.Instruction{}, fmt.Errorf("derive counter address: %w", err)
	}

	return svm.Instruction{
		ProgramID: programID,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(payer, true),
			svm.NewAccountMeta(counter, false),
			svm.NewReadonlyAccountMeta(types.SystemProgramAddr, false),
		},
		Data: disc[:],
	}, nil
}
