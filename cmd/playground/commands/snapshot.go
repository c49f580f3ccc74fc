package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import the ledger",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "export <path>",
			Short: "Write every account to a compressed snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				h, err := nd.ExportSnapshot(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Exported %d accounts at slot %d (state hash %s)\n", h.AccountsCount, h.Slot, h.StateHash)
				return nil
			},
		},
		&cobra.Command{
			Use:   "import <path>",
			Short: "Load a snapshot into the ledger",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				h, err := nd.ImportSnapshot(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Imported %d accounts at slot %d (state hash %s)\n", h.AccountsCount, h.Slot, h.StateHash)
				return nil
			},
		},
	)
	return cmd
}
