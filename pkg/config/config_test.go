package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/stratus-playground/internal/types"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playground.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.True(t, c.ProgramConf.EnforceUpgradeAuthority)
	assert.Equal(t, uint64(100_000), c.JournalConf.Retain)

	id, err := c.ProgramID()
	require.NoError(t, err)
	assert.Equal(t, types.PlaygroundProgramAddr, id)
}

func TestLoad_EmptyPath(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, `
logger:
  format: json
  level: debug
ledger:
  in_memory: true
program:
  enforce_upgrade_authority: false
compute_unit_limit: 50000
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "json", c.LogConf.Format)
	assert.Equal(t, "debug", c.LogConf.Level)
	assert.True(t, c.LedgerConf.InMemory)
	assert.False(t, c.ProgramConf.EnforceUpgradeAuthority)
	assert.Equal(t, uint64(50_000), c.ComputeUnitLimit)

	// Untouched keys keep their defaults.
	assert.Equal(t, "./data/journal.db", c.JournalConf.Path)
	assert.Equal(t, types.PlaygroundProgramAddr.String(), c.ProgramConf.ID)
}

func TestLoad_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"bad yaml":       "ledger: [",
		"bad program id": "program:\n  id: not-base58!",
		"no ledger path": "ledger:\n  path: \"\"",
		"limit too high": "compute_unit_limit: 2000000",
		"bad level":      "logger:\n  level: chatty",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	c := Default()
	c.LedgerConf.InMemory = true
	c.JournalConf.Path = ""

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, c.Write(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}
