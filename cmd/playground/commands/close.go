package commands

import (
	"github.com/spf13/cobra"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/playground"
)

func closeAccountsCmd() *cobra.Command {
	var (
		payerPath    string
		recipientArg string
	)
	cmd := &cobra.Command{
		Use:   "close-accounts <address>...",
		Short: "Sweep the balances of accounts into the upgrade authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			payer, err := readKeypair(payerPath)
			if err != nil {
				return err
			}
			recipient := keypairPubkey(payer)
			if recipientArg != "" {
				if recipient, err = resolvePubkey(recipientArg); err != nil {
					return err
				}
			}

			toClose := make([]types.Pubkey, 0, len(args))
			for _, arg := range args {
				key, err := resolvePubkey(arg)
				if err != nil {
					return err
				}
				toClose = append(toClose, key)
			}

			ix, err := playground.NewCloseAccountsInstruction(nd.Program().ID(), recipient, toClose...)
			if err != nil {
				return err
			}
			_, err = submit(cmd.Context(), payer, nil, ix)
			return err
		},
	}
	cmd.Flags().StringVar(&payerPath, "payer", "", "fee payer keypair file")
	cmd.Flags().StringVar(&recipientArg, "recipient", "", "upgrade authority receiving the lamports (default: payer)")
	_ = cmd.MarkFlagRequired("payer")
	return cmd
}
