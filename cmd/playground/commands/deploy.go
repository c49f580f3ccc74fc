package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fortiblox/stratus-playground/internal/types"
)

func deployCmd() *cobra.Command {
	var (
		authorityArg string
		programFile  string
		immutable    bool
	)
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Install the playground program on the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			var authority *types.Pubkey
			switch {
			case immutable && authorityArg != "":
				return fmt.Errorf("--immutable and --authority are exclusive")
			case !immutable && authorityArg == "":
				return fmt.Errorf("--authority is required unless --immutable is set")
			case !immutable:
				key, err := resolvePubkey(authorityArg)
				if err != nil {
					return err
				}
				authority = &key
			}

			var programBytes []byte
			if programFile != "" {
				var err error
				if programBytes, err = os.ReadFile(programFile); err != nil {
					return fmt.Errorf("read program file: %w", err)
				}
			}

			d, err := nd.Deploy(authority, programBytes)
			if err != nil {
				return err
			}
			fmt.Printf("Program Id:   %s\n", d.ProgramID)
			fmt.Printf("Program Data: %s\n", d.ProgramDataAddress)
			if authority != nil {
				fmt.Printf("Authority:    %s\n", *authority)
			} else {
				fmt.Println("Authority:    none (immutable)")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&authorityArg, "authority", "", "upgrade authority address or keypair file")
	cmd.Flags().StringVar(&programFile, "program-file", "", "bytes to store after the program data header")
	cmd.Flags().BoolVar(&immutable, "immutable", false, "deploy without an upgrade authority")
	return cmd
}
