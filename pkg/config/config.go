// Package config loads the playground configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/logger"
	"github.com/fortiblox/stratus-playground/pkg/svm"
)

// ErrConfigInvalid is returned when a loaded configuration fails validation.
var ErrConfigInvalid = errors.New("invalid configuration")

type LogConfig struct {
	Format   string `yaml:"format"`   // console or json
	LogDir   string `yaml:"log_dir"`  // empty logs to stderr
	Level    string `yaml:"level"`    // debug / info / warn / error
	Compress bool   `yaml:"compress"` // gzip rotated files
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// LedgerConfig selects the accounts database.
type LedgerConfig struct {
	Path     string `yaml:"path"`      // badger directory
	InMemory bool   `yaml:"in_memory"` // discard state on exit
}

// JournalConfig configures the receipt journal.
type JournalConfig struct {
	Path   string `yaml:"path"`   // bbolt file; empty disables the journal
	Retain uint64 `yaml:"retain"` // receipts kept, 0 keeps all
	NoSync bool   `yaml:"no_sync"`
}

// ProgramConfig configures the playground program.
type ProgramConfig struct {
	ID                      string `yaml:"id"`
	EnforceUpgradeAuthority bool   `yaml:"enforce_upgrade_authority"`
}

// Config is the root configuration.
type Config struct {
	LogConf     LogConfig     `yaml:"logger"`
	LedgerConf  LedgerConfig  `yaml:"ledger"`
	JournalConf JournalConfig `yaml:"journal"`
	ProgramConf ProgramConfig `yaml:"program"`

	// ComputeUnitLimit applies to transactions that request none. Zero uses
	// the per-instruction default.
	ComputeUnitLimit uint64 `yaml:"compute_unit_limit"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogConf: LogConfig{
			Format: "console",
			Level:  "info",
		},
		LedgerConf: LedgerConfig{
			Path: "./data/ledger",
		},
		JournalConf: JournalConfig{
			Path:   "./data/journal.db",
			Retain: 100_000,
		},
		ProgramConf: ProgramConfig{
			ID:                      types.PlaygroundProgramAddr.String(),
			EnforceUpgradeAuthority: true,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if !c.LedgerConf.InMemory && c.LedgerConf.Path == "" {
		return fmt.Errorf("%w: ledger path is required unless in_memory is set", ErrConfigInvalid)
	}
	if _, err := c.ProgramID(); err != nil {
		return err
	}
	if c.ComputeUnitLimit > svm.CUMax {
		return fmt.Errorf("%w: compute_unit_limit %d exceeds %d", ErrConfigInvalid, c.ComputeUnitLimit, svm.CUMax)
	}
	if _, err := logger.ParseLevel(c.LogConf.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return nil
}

// ProgramID parses the configured program address.
func (c *Config) ProgramID() (types.Pubkey, error) {
	if c.ProgramConf.ID == "" {
		return types.PlaygroundProgramAddr, nil
	}
	id, err := types.PubkeyFromBase58(c.ProgramConf.ID)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("%w: program id: %v", ErrConfigInvalid, err)
	}
	return id, nil
}

// Write saves c to path as YAML.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
