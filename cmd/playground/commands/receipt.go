package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/journal"
)

func receiptCmd() *cobra.Command {
	var (
		recent  int
		address string
	)
	cmd := &cobra.Command{
		Use:   "receipt [signature]",
		Short: "Show a transaction receipt, or the most recent ones",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if address != "" {
				key, err := resolvePubkey(address)
				if err != nil {
					return err
				}
				sigs, err := nd.SignaturesForAddress(key, recent)
				if err != nil {
					return err
				}
				for _, sig := range sigs {
					r, err := nd.GetReceipt(sig)
					if err != nil {
						return err
					}
					printReceiptLine(r)
				}
				return nil
			}

			if len(args) == 1 {
				sig, err := types.SignatureFromBase58(args[0])
				if err != nil {
					return fmt.Errorf("invalid signature: %w", err)
				}
				r, err := nd.GetReceipt(sig)
				if err != nil {
					return err
				}
				printReceipt(r)
				return nil
			}

			receipts, err := nd.RecentReceipts(recent)
			if err != nil {
				return err
			}
			for _, r := range receipts {
				printReceiptLine(r)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&recent, "recent", "n", 10, "number of recent receipts to list")
	cmd.Flags().StringVar(&address, "address", "", "list receipts of transactions that referenced this address or keypair")
	return cmd
}

func printReceiptLine(r *journal.Receipt) {
	status := "ok"
	if !r.Succeeded() {
		status = "failed"
	}
	fmt.Printf("%-8d %-88s %s\n", r.Slot, r.Signature, status)
}
