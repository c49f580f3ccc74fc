package commands

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/accounts"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/loader"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/playground"
)

func accountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account <address|keypair>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := resolvePubkey(args[0])
			if err != nil {
				return err
			}
			account, err := nd.GetAccount(key)
			if errors.Is(err, accounts.ErrAccountNotFound) {
				fmt.Printf("%s: account does not exist\n", key)
				return nil
			} else if err != nil {
				return err
			}

			fmt.Printf("Public Key: %s\n", key)
			fmt.Printf("Balance:    %d lamports\n", account.Lamports)
			fmt.Printf("Owner:      %s\n", account.Owner)
			fmt.Printf("Executable: %v\n", account.Executable)
			fmt.Printf("Length:     %d bytes\n", len(account.Data))
			describe(key, account)
			return nil
		},
	}
}

// describe prints the decoded contents of accounts the CLI knows about.
func describe(key types.Pubkey, account *accounts.Account) {
	switch account.Owner {
	case nd.Program().ID():
		if c, err := playground.UnmarshalCounter(account.Data); err == nil {
			fmt.Printf("Counter:    %d\n", c.Counter)
			return
		}
	case types.BPFLoaderUpgradeableAddr:
		if loader.IsDeployed(account) {
			if d, err := nd.LookupProgram(key); err == nil {
				fmt.Printf("Program Data Address: %s\n", d.ProgramDataAddress)
				printProgramData(d.ProgramData)
				return
			}
		}
		if pd, err := loader.DecodeProgramData(account.Data); err == nil {
			printProgramData(*pd)
			return
		}
	}
	if len(account.Data) > 0 {
		fmt.Printf("Data:\n%s", hex.Dump(account.Data))
	}
}

func printProgramData(pd loader.ProgramData) {
	fmt.Printf("Last Deployed Slot:   %d\n", pd.Slot)
	if pd.UpgradeAuthority != nil {
		fmt.Printf("Upgrade Authority:    %s\n", *pd.UpgradeAuthority)
	} else {
		fmt.Println("Upgrade Authority:    none")
	}
}
