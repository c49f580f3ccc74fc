package playground

import (
	"math/bits"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/svm"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/loader"
)

// Fixed accounts of CloseAccounts; everything after them is closed.
const (
	closeAccountsAuthorityIndex   = 0
	closeAccountsProgramDataIndex = 1
	closeAccountsFixedAccounts    = 2
)

func (p *Program) closeAccounts(ctx svm.InvokeContext) error {
	if ctx.NumAccounts() < closeAccountsFixedAccounts {
		return ErrAccountNotEnoughKeys
	}

	authority, err := ctx.GetAccount(closeAccountsAuthorityIndex)
	if err != nil {
		return err
	}
	programData, err := ctx.GetAccount(closeAccountsProgramDataIndex)
	if err != nil {
		return err
	}

	if !authority.IsWritable {
		return ErrConstraintMut
	}
	if err := p.checkProgramData(ctx, programData, authority.Key); err != nil {
		return err
	}

	var recovered uint64
	for i := closeAccountsFixedAccounts; i < ctx.NumAccounts(); i++ {
		if err := ctx.ConsumeCU(svm.CUPlaygroundPerAccount); err != nil {
			return err
		}

		account, err := ctx.GetAccount(i)
		if err != nil {
			return err
		}

		sum, carry := bits.Add64(recovered, account.Lamports, 0)
		if carry != 0 {
			return ErrLamportOverflow
		}
		recovered = sum
		account.Lamports = 0
	}

	balance, carry := bits.Add64(authority.Lamports, recovered, 0)
	if carry != 0 {
		return ErrLamportOverflow
	}
	authority.Lamports = balance

	svm.Logf(ctx, "Closed %d accounts, recovered %d lamports",
		ctx.NumAccounts()-closeAccountsFixedAccounts, recovered)
	return nil
}

// checkProgramData validates the program data account of the executing
// program and, when enforced, its upgrade authority.
func (p *Program) checkProgramData(ctx svm.InvokeContext, programData *svm.AccountInfo, recipient types.Pubkey) error {
	if err := ctx.ConsumeCU(svm.CUFindProgramAddress); err != nil {
		return err
	}
	expected, _, err := loader.ProgramDataAddress(ctx.ProgramID())
	if err != nil {
		return err
	}
	if programData.Key != expected {
		svm.Logf(ctx, "program_data: expected %s, got %s", expected, programData.Key)
		return ErrConstraintSeeds
	}

	if programData.Owner != types.BPFLoaderUpgradeableAddr {
		return ErrAccountOwnedByWrongProgram
	}
	state, err := loader.DecodeProgramData(programData.Data)
	if err != nil {
		return ErrAccountDidNotDeserialize
	}

	if !p.config.EnforceUpgradeAuthority {
		return nil
	}
	if state.UpgradeAuthority == nil || *state.UpgradeAuthority != recipient {
		return ErrUpgradeAuthorityMismatch
	}
	return nil
}
