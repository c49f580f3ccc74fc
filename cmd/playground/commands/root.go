package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fortiblox/stratus-playground/pkg/config"
	"github.com/fortiblox/stratus-playground/pkg/logger"
	"github.com/fortiblox/stratus-playground/pkg/node"
)

var (
	configPath string
	ledgerPath string
	inMemory   bool
	localnet   bool
	logLevel   string

	log *zap.Logger
	nd  *node.Node
)

// offline commands run without opening the ledger.
var offline = map[string]bool{
	"keygen":  true,
	"version": true,
	"help":    true,
}

func Execute() error {
	err := newRootCmd().ExecuteContext(context.Background())
	if nd != nil {
		if stopErr := nd.Stop(); stopErr != nil && !errors.Is(stopErr, node.ErrNotRunning) && err == nil {
			err = stopErr
		}
		_ = log.Sync()
	}
	if err != nil {
		printErr("Error: %v", err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "playground",
		Short:         "Local ledger for the playground program",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if offline[cmd.Name()] {
				return nil
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err = logger.New(cfg.LogConf.ToLogOption())
			if err != nil {
				return err
			}

			nd, err = node.New(cfg, log)
			if err != nil {
				return err
			}
			return nd.Start(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "ledger directory (overrides config)")
	root.PersistentFlags().BoolVar(&inMemory, "in-memory", false, "use a throwaway in-memory ledger")
	root.PersistentFlags().BoolVar(&localnet, "localnet", false, "do not require the close-accounts recipient to be the upgrade authority")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		keygenCmd(),
		airdropCmd(),
		deployCmd(),
		createCounterCmd(),
		closeAccountsCmd(),
		accountCmd(),
		receiptCmd(),
		snapshotCmd(),
		versionCmd(),
	)
	return root
}

// applyFlags lets explicitly set flags override the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("ledger") {
		cfg.LedgerConf.Path = ledgerPath
	}
	if flags.Changed("in-memory") {
		cfg.LedgerConf.InMemory = inMemory
	}
	if flags.Changed("localnet") && localnet {
		cfg.ProgramConf.EnforceUpgradeAuthority = false
	}
	if flags.Changed("log-level") {
		cfg.LogConf.Level = logLevel
	}
}

func printErr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
