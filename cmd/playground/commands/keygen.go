package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func keygenCmd() *cobra.Command {
	var outfile string
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a keypair file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(outfile); err == nil && !force {
				return fmt.Errorf("%s exists, use --force to overwrite", outfile)
			}
			key, err := generateKeypair()
			if err != nil {
				return err
			}
			if err := writeKeypair(outfile, key); err != nil {
				return err
			}
			fmt.Printf("Wrote keypair to %s\npubkey: %s\n", outfile, keypairPubkey(key))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outfile, "outfile", "o", "", "path to write the keypair to")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	_ = cmd.MarkFlagRequired("outfile")
	return cmd
}
