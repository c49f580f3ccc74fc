package loader

import (
	"errors"
	"fmt"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/accounts"
	"github.com/fortiblox/stratus-playground/pkg/svm"
)

var (
	ErrAlreadyDeployed = errors.New("program already deployed")
	ErrNotDeployed     = errors.New("program not deployed")
)

// Deployment describes a deployed program.
type Deployment struct {
	ProgramID          types.Pubkey
	ProgramDataAddress types.Pubkey
	ProgramData        ProgramData
}

// Deploy writes a program account and its program-data account into db in
// one atomic update. Both accounts are funded to the rent-exempt minimum of
// rent. A nil authority deploys an immutable program.
func Deploy(db accounts.DB, rent svm.Rent, programID types.Pubkey, authority *types.Pubkey, programBytes []byte, slot uint64) (*Deployment, error) {
	exists, err := db.HasAccount(programID)
	if err != nil {
		return nil, fmt.Errorf("check program account: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDeployed, programID)
	}

	dataAddr, _, err := ProgramDataAddress(programID)
	if err != nil {
		return nil, fmt.Errorf("derive program data address: %w", err)
	}

	state := ProgramData{Slot: slot, UpgradeAuthority: authority}

	programData := state.Encode(programBytes)
	programAccount := (&Program{ProgramDataAddress: dataAddr}).Encode()

	err = db.SetAccounts([]accounts.AccountEntry{
		{
			Pubkey: dataAddr,
			Account: &accounts.Account{
				Lamports:  rent.MinimumBalance(uint64(len(programData))),
				Data:      programData,
				Owner:     types.BPFLoaderUpgradeableAddr,
				RentEpoch: accounts.RentExemptEpoch,
			},
		},
		{
			Pubkey: programID,
			Account: &accounts.Account{
				Lamports:   rent.MinimumBalance(ProgramSize),
				Data:       programAccount,
				Owner:      types.BPFLoaderUpgradeableAddr,
				Executable: true,
				RentEpoch:  accounts.RentExemptEpoch,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("write program accounts: %w", err)
	}

	return &Deployment{
		ProgramID:          programID,
		ProgramDataAddress: dataAddr,
		ProgramData:        state,
	}, nil
}

// Lookup loads the deployment of programID from db.
func Lookup(db accounts.DB, programID types.Pubkey) (*Deployment, error) {
	programAccount, err := db.GetAccount(programID)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotDeployed, programID)
	}
	if err != nil {
		return nil, err
	}
	if !IsDeployed(programAccount) {
		return nil, fmt.Errorf("%w: %s", ErrNotDeployed, programID)
	}

	program, err := DecodeProgram(programAccount.Data)
	if err != nil {
		return nil, err
	}

	dataAccount, err := db.GetAccount(program.ProgramDataAddress)
	if err != nil {
		return nil, fmt.Errorf("load program data %s: %w", program.ProgramDataAddress, err)
	}
	state, err := DecodeProgramData(dataAccount.Data)
	if err != nil {
		return nil, err
	}

	return &Deployment{
		ProgramID:          programID,
		ProgramDataAddress: program.ProgramDataAddress,
		ProgramData:        *state,
	}, nil
}

// IsDeployed reports whether account is an executable program account of
// the upgradeable loader.
func IsDeployed(account *accounts.Account) bool {
	return account != nil && account.Executable && account.Owner == types.BPFLoaderUpgradeableAddr
}
