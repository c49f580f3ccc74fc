package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fortiblox/stratus-playground/pkg/svm/programs/playground"
)

func createCounterCmd() *cobra.Command {
	var (
		payerPath string
		key       uint64
	)
	cmd := &cobra.Command{
		Use:   "create-counter",
		Short: "Create counter record 1 or 2",
		RunE: func(cmd *cobra.Command, args []string) error {
			payer, err := readKeypair(payerPath)
			if err != nil {
				return err
			}
			programID := nd.Program().ID()
			ix, err := playground.NewCreateCounterInstruction(programID, keypairPubkey(payer), key)
			if err != nil {
				return err
			}
			if _, err := submit(cmd.Context(), payer, nil, ix); err != nil {
				return err
			}

			addr, _, err := playground.CounterAddress(programID, key)
			if err != nil {
				return err
			}
			fmt.Printf("Counter %d created at %s\n", key, addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&payerPath, "payer", "", "fee payer keypair file")
	cmd.Flags().Uint64Var(&key, "key", 1, "counter key, 1 or 2")
	_ = cmd.MarkFlagRequired("payer")
	return cmd
}
