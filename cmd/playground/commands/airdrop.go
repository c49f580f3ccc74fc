package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func airdropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop <address|keypair> <lamports>",
		Short: "Credit lamports to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := resolvePubkey(args[0])
			if err != nil {
				return err
			}
			lamports, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid lamports %q: %w", args[1], err)
			}
			if err := nd.Executor().Airdrop(to, lamports); err != nil {
				return err
			}
			account, err := nd.GetAccount(to)
			if err != nil {
				return err
			}
			fmt.Printf("%s balance: %d lamports\n", to, account.Lamports)
			return nil
		},
	}
}
